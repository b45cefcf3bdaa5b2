package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/desertthunder/zylofm/internal/models"
	"github.com/desertthunder/zylofm/internal/shared"
)

type genreBody struct {
	Name        *string `json:"name"`
	Slug        *string `json:"slug"`
	Description *string `json:"description"`
	ImageURL    *string `json:"image_url"`
}

func (b genreBody) apply(g *models.Genre) {
	setString(&g.Name, b.Name)
	setString(&g.Description, b.Description)
	setString(&g.ImageURL, b.ImageURL)
	if b.Slug != nil {
		g.Slug = shared.Slugify(*b.Slug)
	}
}

type bannerBody struct {
	Title    *string `json:"title"`
	Subtitle *string `json:"subtitle"`
	ImageURL *string `json:"image_url"`
	LinkURL  *string `json:"link_url"`
	Position *int    `json:"position"`
	Active   *bool   `json:"active"`
}

func (b bannerBody) apply(banner *models.Banner) {
	setString(&banner.Title, b.Title)
	setString(&banner.Subtitle, b.Subtitle)
	setString(&banner.ImageURL, b.ImageURL)
	setString(&banner.LinkURL, b.LinkURL)
	if b.Position != nil {
		banner.Position = *b.Position
	}
	if b.Active != nil {
		banner.Active = *b.Active
	}
}

type stationBody struct {
	Name        *string `json:"name"`
	Slug        *string `json:"slug"`
	StreamURL   *string `json:"stream_url"`
	Description *string `json:"description"`
	ImageURL    *string `json:"image_url"`
	GenreID     *string `json:"genre_id"`
	Active      *bool   `json:"active"`
}

func (b stationBody) apply(st *models.RadioStation) {
	setString(&st.Name, b.Name)
	setString(&st.StreamURL, b.StreamURL)
	setString(&st.Description, b.Description)
	setString(&st.ImageURL, b.ImageURL)
	setString(&st.GenreID, b.GenreID)
	if b.Slug != nil {
		st.Slug = shared.Slugify(*b.Slug)
	}
	if b.Active != nil {
		st.Active = *b.Active
	}
}

type karaokeBody struct {
	Title           *string `json:"title"`
	Artist          *string `json:"artist"`
	AudioURL        *string `json:"audio_url"`
	Lyrics          *string `json:"lyrics"`
	CoverURL        *string `json:"cover_url"`
	GenreID         *string `json:"genre_id"`
	DurationSeconds *int    `json:"duration_seconds"`
}

func (b karaokeBody) apply(k *models.KaraokeTrack) {
	setString(&k.Title, b.Title)
	setString(&k.Artist, b.Artist)
	setString(&k.AudioURL, b.AudioURL)
	setString(&k.CoverURL, b.CoverURL)
	setString(&k.GenreID, b.GenreID)
	if b.Lyrics != nil {
		k.Lyrics = *b.Lyrics
	}
	if b.DurationSeconds != nil {
		k.DurationSeconds = *b.DurationSeconds
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func (s *Server) createGenre(w http.ResponseWriter, r *http.Request) {
	var body genreBody
	if err := decodeJSON(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	genre := &models.Genre{}
	body.apply(genre)

	if err := s.store.Genres.Create(genre); err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, genre)
}

func (s *Server) updateGenre(w http.ResponseWriter, r *http.Request) {
	var body genreBody
	if err := decodeJSON(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	genre, err := s.store.Genres.Get(r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	body.apply(genre)

	if err := s.store.Genres.Update(genre); err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, genre)
}

func (s *Server) deleteGenre(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Genres.Delete(r.PathValue("id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) adminBanners(w http.ResponseWriter, r *http.Request) {
	banners, err := s.store.Banners.List(nil)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, banners)
}

func (s *Server) createBanner(w http.ResponseWriter, r *http.Request) {
	var body bannerBody
	if err := decodeJSON(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	banner := &models.Banner{Active: true}
	body.apply(banner)

	if err := s.store.Banners.Create(banner); err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, banner)
}

func (s *Server) updateBanner(w http.ResponseWriter, r *http.Request) {
	var body bannerBody
	if err := decodeJSON(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	banner, err := s.store.Banners.Get(r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	body.apply(banner)

	if err := s.store.Banners.Update(banner); err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, banner)
}

func (s *Server) deleteBanner(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Banners.Delete(r.PathValue("id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) adminStations(w http.ResponseWriter, r *http.Request) {
	stations, err := s.store.Stations.List(nil)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, stations)
}

func (s *Server) createStation(w http.ResponseWriter, r *http.Request) {
	var body stationBody
	if err := decodeJSON(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	station := models.NewRadioStation("", "")
	body.apply(station)
	if body.Slug == nil {
		station.Slug = shared.Slugify(station.Name)
	}

	if err := s.store.Stations.Create(station); err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, station)
}

func (s *Server) updateStation(w http.ResponseWriter, r *http.Request) {
	var body stationBody
	if err := decodeJSON(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	station, err := s.store.Stations.Get(r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	body.apply(station)

	if err := s.store.Stations.Update(station); err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, station)
}

func (s *Server) deleteStation(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Stations.Delete(r.PathValue("id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) createKaraoke(w http.ResponseWriter, r *http.Request) {
	var body karaokeBody
	if err := decodeJSON(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	track := &models.KaraokeTrack{}
	body.apply(track)

	if err := s.store.Karaoke.Create(track); err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, track)
}

func (s *Server) updateKaraoke(w http.ResponseWriter, r *http.Request) {
	var body karaokeBody
	if err := decodeJSON(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	track, err := s.store.Karaoke.Get(r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	body.apply(track)

	if err := s.store.Karaoke.Update(track); err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, track)
}

func (s *Server) deleteKaraoke(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Karaoke.Delete(r.PathValue("id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) notImplemented(w http.ResponseWriter, r *http.Request, feature string) {
	s.fail(w, r, fmt.Errorf("%w: %s is not configured", shared.ErrNotImplemented, feature))
}
