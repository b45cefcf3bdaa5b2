package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/desertthunder/zylofm/internal/models"
	"github.com/desertthunder/zylofm/internal/player"
	"github.com/desertthunder/zylofm/internal/shared"
)

const (
	queueSize     = 20
	defaultUpNext = 5
)

func (s *Server) listGenres(w http.ResponseWriter, r *http.Request) {
	genres, err := s.store.Genres.List(nil)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, genres)
}

func (s *Server) getGenre(w http.ResponseWriter, r *http.Request) {
	genre, err := s.store.Genres.GetBySlug(r.PathValue("slug"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	q := models.MixQuery{GenreID: genre.ID, Sort: parseSort(r), Page: queryPage(r)}
	mixes, err := s.store.Mixes.ListPublic(q)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	total, err := s.store.Mixes.CountPublic(q)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writePage(w, map[string]any{"genre": genre, "mixes": mixes}, q.Page, total)
}

func (s *Server) listDJs(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.store.Users.ListProfiles(queryPage(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, profiles)
}

func (s *Server) getDJ(w http.ResponseWriter, r *http.Request) {
	profile, err := s.store.Users.GetProfile(r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	mixes, err := s.store.Mixes.ListPublic(models.MixQuery{DJID: profile.ID, Sort: parseSort(r), Page: queryPage(r)})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"dj": profile, "mixes": mixes})
}

func (s *Server) listBanners(w http.ResponseWriter, r *http.Request) {
	banners, err := s.store.Banners.ListActive()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, banners)
}

func (s *Server) listStations(w http.ResponseWriter, r *http.Request) {
	criteria := map[string]any{"active": true}
	if queryBool(r, "online") {
		criteria["online"] = true
	}
	if genre := r.URL.Query().Get("genre_id"); genre != "" {
		criteria["genre_id"] = genre
	}

	stations, err := s.store.Stations.List(criteria)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, stations)
}

// getStation returns the station with the radio queue a client switches to.
func (s *Server) getStation(w http.ResponseWriter, r *http.Request) {
	station, err := s.store.Stations.GetBySlug(r.PathValue("slug"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !station.Active {
		s.fail(w, r, fmt.Errorf("%w: station %s", shared.ErrNotFound, station.Slug))
		return
	}

	queue := player.NewRadio(player.ItemFromStation(station))
	writeData(w, http.StatusOK, map[string]any{"station": station, "queue": queue.State(0)})
}

func (s *Server) listKaraoke(w http.ResponseWriter, r *http.Request) {
	page := queryPage(r)
	query := r.URL.Query()

	var (
		tracks []*models.KaraokeTrack
		err    error
	)
	if term := strings.TrimSpace(query.Get("q")); term != "" {
		tracks, err = s.store.Karaoke.Search(term, page)
	} else {
		tracks, err = s.store.Karaoke.List(map[string]any{
			"genre_id": query.Get("genre_id"), "limit": page.Limit, "offset": page.Offset,
		})
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, tracks)
}

func (s *Server) getKaraoke(w http.ResponseWriter, r *http.Request) {
	track, err := s.store.Karaoke.Get(r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"track": track, "synced_lyrics": track.HasSyncedLyrics()})
}

// listMixes serves the public catalog. genre accepts a slug or an id.
func (s *Server) listMixes(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	q := models.MixQuery{
		DJID:     query.Get("dj_id"),
		Search:   query.Get("q"),
		Featured: queryBool(r, "featured"),
		Sort:     parseSort(r),
		Page:     queryPage(r),
	}
	if genre := query.Get("genre"); genre != "" {
		id, err := s.resolveGenre(genre)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		q.GenreID = id
	}

	mixes, err := s.store.Mixes.ListPublic(q)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	total, err := s.store.Mixes.CountPublic(q)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writePage(w, mixes, q.Page, total)
}

func (s *Server) resolveGenre(slugOrID string) (string, error) {
	genre, err := s.store.Genres.GetBySlug(slugOrID)
	if errors.Is(err, shared.ErrNotFound) {
		genre, err = s.store.Genres.Get(slugOrID)
	}
	if err != nil {
		return "", err
	}
	return genre.ID, nil
}

// visibleMix loads a mix the caller may see. Hidden mixes are reported as missing.
func (s *Server) visibleMix(r *http.Request) (*models.Mix, error) {
	mix, err := s.store.Mixes.Get(r.PathValue("id"))
	if err != nil {
		return nil, err
	}

	userID, role := "", models.Role("")
	if user, ok := UserFrom(r.Context()); ok {
		userID, role = user.ID, user.Role
	}
	if !mix.VisibleTo(userID, role) {
		return nil, fmt.Errorf("%w: mix %s", shared.ErrNotFound, mix.ID)
	}
	return mix, nil
}

func (s *Server) getMix(w http.ResponseWriter, r *http.Request) {
	mix, err := s.visibleMix(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, mix)
}

func (s *Server) playMix(w http.ResponseWriter, r *http.Request) {
	plays, err := s.store.Mixes.IncrementPlays(r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]int{"play_count": plays})
}

// mixQueue builds a playlist starting at the mix, followed by the latest approved mixes of its genre.
func (s *Server) mixQueue(w http.ResponseWriter, r *http.Request) {
	mix, err := s.visibleMix(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	related, err := s.store.Mixes.ListPublic(models.MixQuery{GenreID: mix.GenreID, Page: models.NewPage(1, queueSize)})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	items := []player.Item{player.ItemFromMix(mix)}
	for _, m := range related {
		if m.ID != mix.ID {
			items = append(items, player.ItemFromMix(m))
		}
	}

	queue, err := player.NewPlaylist(items, mix.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	queue.Repeat = queryBool(r, "repeat")

	size, err := strconv.Atoi(r.URL.Query().Get("size"))
	if err != nil || size <= 0 {
		size = defaultUpNext
	}
	writeData(w, http.StatusOK, queue.State(min(size, queueSize)))
}

func parseSort(r *http.Request) models.MixSort {
	if models.MixSort(r.URL.Query().Get("sort")) == models.SortPopular {
		return models.SortPopular
	}
	return models.SortLatest
}
