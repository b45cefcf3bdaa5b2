package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/desertthunder/zylofm/internal/auth"
	"github.com/desertthunder/zylofm/internal/models"
	"github.com/desertthunder/zylofm/internal/repositories"
	"github.com/desertthunder/zylofm/internal/services"
	"github.com/desertthunder/zylofm/internal/shared"
	"github.com/desertthunder/zylofm/internal/tasks"
	tu "github.com/desertthunder/zylofm/internal/testing"
)

type testEnv struct {
	server  *Server
	store   *repositories.Store
	storage *tu.MockStorage
	tokens  *auth.TokenIssuer
}

func newTestEnv(t *testing.T, configure func(*Options)) *testEnv {
	t.Helper()
	db := tu.SetupDB(t)
	store := repositories.NewStore(db)
	storage := tu.NewMockStorage()
	tokens := auth.NewTokenIssuer("test-secret", "zylofm", time.Hour)
	logger := tu.DiscardLogger()

	cfg := shared.DefaultConfig()
	cfg.Limits.RequestsPerSecond = 0

	opts := Options{
		Config:    cfg,
		Store:     store,
		Accounts:  tasks.NewAccounts(store.Users, tokens, logger),
		Moderator: tasks.NewModerator(store, logger),
		Publisher: tasks.NewPublisher(store, storage, tasks.UploadLimitsFromConfig(cfg.Uploads), logger),
		Storage:   storage,
		Logger:    logger,
	}
	if configure != nil {
		configure(&opts)
	}
	return &testEnv{server: New(opts), store: store, storage: storage, tokens: tokens}
}

func (e *testEnv) token(t *testing.T, user *models.User) string {
	t.Helper()
	token, _, err := e.tokens.Issue(user)
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var env struct {
		Data T `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to decode %q: %v", rec.Body.String(), err)
	}
	return env.Data
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, "GET", "/api/health", "", nil)
	expectStatus(t, rec, http.StatusOK)

	data := decode[map[string]any](t, rec)
	if data["database"] != "ok" || data["storage"] != "mock" || data["google"] != false {
		t.Errorf("unexpected health: %v", data)
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Error("expected request id header")
	}
}

func TestNotFound(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, "GET", "/api/nothing-here", "", nil)
	expectStatus(t, rec, http.StatusNotFound)

	var body errorResponse
	json.Unmarshal(rec.Body.Bytes(), &body)
	if !strings.Contains(body.Error, "not found") || body.RequestID == "" {
		t.Errorf("unexpected error body: %+v", body)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, "POST", "/api/genres", "", nil)
	expectStatus(t, rec, http.StatusMethodNotAllowed)
	if allow := rec.Header().Get("Allow"); allow != "GET" {
		t.Errorf("expected Allow: GET, got %q", allow)
	}

	rec = env.do(t, "PATCH", "/api/dj/mixes/abc", "", nil)
	expectStatus(t, rec, http.StatusMethodNotAllowed)
	if allow := rec.Header().Get("Allow"); allow != "PUT, DELETE" {
		t.Errorf("expected Allow: PUT, DELETE, got %q", allow)
	}

	expectStatus(t, env.do(t, "DELETE", "/api/nothing-here", "", nil), http.StatusNotFound)
}

func TestAuthRoutes(t *testing.T) {
	env := newTestEnv(t, nil)
	creds := map[string]string{"email": "nova@example.com", "name": "Nova", "password": "hunter22"}

	rec := env.do(t, "POST", "/api/auth/register", "", creds)
	expectStatus(t, rec, http.StatusCreated)
	session := decode[tasks.Session](t, rec)
	if session.Token == "" || session.User.Role != models.RoleListener {
		t.Fatalf("unexpected session: %+v", session)
	}

	expectStatus(t, env.do(t, "POST", "/api/auth/register", "", creds), http.StatusConflict)

	rec = env.do(t, "POST", "/api/auth/login", "", map[string]string{"email": "nova@example.com", "password": "hunter22"})
	expectStatus(t, rec, http.StatusOK)
	login := decode[tasks.Session](t, rec)

	rec = env.do(t, "GET", "/api/auth/me", login.Token, nil)
	expectStatus(t, rec, http.StatusOK)
	if me := decode[models.User](t, rec); me.Email != "nova@example.com" {
		t.Errorf("unexpected me: %+v", me)
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Error("password hash must not be serialized")
	}

	rec = env.do(t, "PUT", "/api/auth/me", login.Token, map[string]string{"bio": "house heads only"})
	expectStatus(t, rec, http.StatusOK)
	if me := decode[models.User](t, rec); me.Bio != "house heads only" {
		t.Errorf("expected bio update, got %+v", me)
	}

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		want   int
	}{
		{"wrong password", "POST", "/api/auth/login", "", map[string]string{"email": "nova@example.com", "password": "nope12345"}, http.StatusUnauthorized},
		{"malformed body", "POST", "/api/auth/login", "", nil, http.StatusBadRequest},
		{"weak password", "POST", "/api/auth/register", "", map[string]string{"email": "x@example.com", "name": "X", "password": "abc"}, http.StatusBadRequest},
		{"anonymous me", "GET", "/api/auth/me", "", nil, http.StatusUnauthorized},
		{"garbage token", "GET", "/api/auth/me", "not-a-jwt", nil, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectStatus(t, env.do(t, tt.method, tt.path, tt.token, tt.body), tt.want)
		})
	}
}

func TestRoleGuards(t *testing.T) {
	env := newTestEnv(t, nil)
	listener := tu.SeedUser(t, env.store.DB, "l@example.com", models.RoleListener)
	dj := tu.SeedUser(t, env.store.DB, "dj@example.com", models.RoleDJ)
	admin := tu.SeedUser(t, env.store.DB, "admin@example.com", models.RoleAdmin)

	tests := []struct {
		name  string
		path  string
		token string
		want  int
	}{
		{"anonymous dj route", "/api/dj/mixes", "", http.StatusUnauthorized},
		{"listener dj route", "/api/dj/mixes", env.token(t, listener), http.StatusForbidden},
		{"dj dj route", "/api/dj/mixes", env.token(t, dj), http.StatusOK},
		{"dj admin route", "/api/admin/stats", env.token(t, dj), http.StatusForbidden},
		{"admin admin route", "/api/admin/stats", env.token(t, admin), http.StatusOK},
		{"admin dj route", "/api/dj/mixes", env.token(t, admin), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectStatus(t, env.do(t, "GET", tt.path, tt.token, nil), tt.want)
		})
	}
}

func TestPublicCatalog(t *testing.T) {
	env := newTestEnv(t, nil)
	dj := tu.SeedUser(t, env.store.DB, "dj@example.com", models.RoleDJ)
	house := tu.SeedGenre(t, env.store.DB, "House")
	techno := tu.SeedGenre(t, env.store.DB, "Techno")
	first := tu.SeedMix(t, env.store.DB, dj.ID, house.ID, "First", models.MixApproved)
	second := tu.SeedMix(t, env.store.DB, dj.ID, house.ID, "Second", models.MixApproved)
	tu.SeedMix(t, env.store.DB, dj.ID, techno.ID, "Warehouse", models.MixApproved)
	pending := tu.SeedMix(t, env.store.DB, dj.ID, house.ID, "Pending", models.MixPending)

	t.Run("ListMixes", func(t *testing.T) {
		rec := env.do(t, "GET", "/api/mixes?genre=house&page_size=1", "", nil)
		expectStatus(t, rec, http.StatusOK)

		var body struct {
			Data []models.Mix `json:"data"`
			Meta pageMeta     `json:"meta"`
		}
		json.Unmarshal(rec.Body.Bytes(), &body)
		if len(body.Data) != 1 || body.Meta.Total != 2 || body.Data[0].ID != second.ID {
			t.Errorf("unexpected listing: %+v", body)
		}

		expectStatus(t, env.do(t, "GET", "/api/mixes?genre=unknown", "", nil), http.StatusNotFound)
	})

	t.Run("GenreDetail", func(t *testing.T) {
		rec := env.do(t, "GET", "/api/genres/techno", "", nil)
		expectStatus(t, rec, http.StatusOK)
		data := decode[struct {
			Genre models.Genre `json:"genre"`
			Mixes []models.Mix `json:"mixes"`
		}](t, rec)
		if data.Genre.ID != techno.ID || len(data.Mixes) != 1 {
			t.Errorf("unexpected genre detail: %+v", data)
		}
	})

	t.Run("Visibility", func(t *testing.T) {
		expectStatus(t, env.do(t, "GET", "/api/mixes/"+pending.ID, "", nil), http.StatusNotFound)
		expectStatus(t, env.do(t, "GET", "/api/mixes/"+pending.ID, env.token(t, dj), nil), http.StatusOK)
		expectStatus(t, env.do(t, "GET", "/api/mixes/"+first.ID, "", nil), http.StatusOK)
	})

	t.Run("Play", func(t *testing.T) {
		rec := env.do(t, "POST", "/api/mixes/"+first.ID+"/play", "", nil)
		expectStatus(t, rec, http.StatusOK)
		if plays := decode[map[string]int](t, rec); plays["play_count"] != 1 {
			t.Errorf("expected 1 play, got %v", plays)
		}
		expectStatus(t, env.do(t, "POST", "/api/mixes/"+pending.ID+"/play", "", nil), http.StatusNotFound)
	})

	t.Run("Queue", func(t *testing.T) {
		rec := env.do(t, "GET", "/api/mixes/"+first.ID+"/queue?size=3", "", nil)
		expectStatus(t, rec, http.StatusOK)
		data := decode[struct {
			Mode    string `json:"mode"`
			Current struct {
				ID string `json:"id"`
			} `json:"current"`
			UpNext []struct {
				ID string `json:"id"`
			} `json:"up_next"`
		}](t, rec)
		if data.Mode != "playlist" || data.Current.ID != first.ID || len(data.UpNext) != 1 || data.UpNext[0].ID != second.ID {
			t.Errorf("unexpected queue: %+v", data)
		}
	})

	t.Run("DJs", func(t *testing.T) {
		rec := env.do(t, "GET", "/api/djs", "", nil)
		expectStatus(t, rec, http.StatusOK)
		profiles := decode[[]models.Profile](t, rec)
		if len(profiles) != 1 || profiles[0].MixCount != 3 {
			t.Errorf("unexpected profiles: %+v", profiles)
		}
		expectStatus(t, env.do(t, "GET", "/api/djs/"+dj.ID, "", nil), http.StatusOK)
		expectStatus(t, env.do(t, "GET", "/api/djs/missing", "", nil), http.StatusNotFound)
	})
}

func TestRadioAndKaraoke(t *testing.T) {
	env := newTestEnv(t, nil)
	live := models.NewRadioStation("Deep Live", "https://radio.example.com/deep/index.m3u8")
	if err := env.store.Stations.Create(live); err != nil {
		t.Fatal(err)
	}
	retired := models.NewRadioStation("Retired", "https://radio.example.com/old.mp3")
	retired.Active = false
	if err := env.store.Stations.Create(retired); err != nil {
		t.Fatal(err)
	}
	track := &models.KaraokeTrack{Title: "Midnight City", Artist: "M83", AudioURL: "https://cdn.example.com/k.mp3", Lyrics: "[00:01.00] waiting"}
	if err := env.store.Karaoke.Create(track); err != nil {
		t.Fatal(err)
	}

	rec := env.do(t, "GET", "/api/radio", "", nil)
	expectStatus(t, rec, http.StatusOK)
	if stations := decode[[]models.RadioStation](t, rec); len(stations) != 1 {
		t.Errorf("expected only active stations, got %d", len(stations))
	}

	rec = env.do(t, "GET", "/api/radio/deep-live", "", nil)
	expectStatus(t, rec, http.StatusOK)
	station := decode[struct {
		Queue struct {
			Mode    string `json:"mode"`
			Current struct {
				Kind string `json:"kind"`
				Live bool   `json:"live"`
			} `json:"current"`
		} `json:"queue"`
	}](t, rec)
	if station.Queue.Mode != "radio" || station.Queue.Current.Kind != "hls" || !station.Queue.Current.Live {
		t.Errorf("unexpected radio queue: %+v", station)
	}
	expectStatus(t, env.do(t, "GET", "/api/radio/retired", "", nil), http.StatusNotFound)

	rec = env.do(t, "GET", "/api/karaoke?q=m83", "", nil)
	expectStatus(t, rec, http.StatusOK)
	if tracks := decode[[]models.KaraokeTrack](t, rec); len(tracks) != 1 {
		t.Errorf("expected 1 track, got %d", len(tracks))
	}
	rec = env.do(t, "GET", "/api/karaoke/"+track.ID, "", nil)
	expectStatus(t, rec, http.StatusOK)
	if detail := decode[map[string]any](t, rec); detail["synced_lyrics"] != true {
		t.Errorf("expected synced lyrics, got %v", detail)
	}
}

func multipartRequest(t *testing.T, path, token string, fields map[string]string, files map[string][]byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	for field, data := range files {
		fw, err := mw.CreateFormFile(field, field+".bin")
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(data)
	}
	mw.Close()

	req := httptest.NewRequest("POST", path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestDJMixes(t *testing.T) {
	env := newTestEnv(t, nil)
	dj := tu.SeedUser(t, env.store.DB, "dj@example.com", models.RoleDJ)
	other := tu.SeedUser(t, env.store.DB, "other@example.com", models.RoleDJ)
	genre := tu.SeedGenre(t, env.store.DB, "House")
	token := env.token(t, dj)
	audio := append([]byte("ID3\x04\x00"), make([]byte, 256)...)

	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, multipartRequest(t, "/api/dj/mixes", token,
		map[string]string{"title": "Sunrise Set", "genre_id": genre.ID, "duration_seconds": "3600"},
		map[string][]byte{"audio": audio}))
	expectStatus(t, rec, http.StatusCreated)
	mix := decode[models.Mix](t, rec)
	if mix.Status != models.MixPending || mix.DurationSeconds != 3600 || env.storage.Count() != 1 {
		t.Fatalf("unexpected mix: %+v", mix)
	}

	rec = httptest.NewRecorder()
	env.server.ServeHTTP(rec, multipartRequest(t, "/api/dj/mixes", token,
		map[string]string{"title": "Not audio", "genre_id": genre.ID},
		map[string][]byte{"audio": []byte("<html>hello</html>")}))
	expectStatus(t, rec, http.StatusUnprocessableEntity)

	rec = httptest.NewRecorder()
	env.server.ServeHTTP(rec, multipartRequest(t, "/api/dj/mixes", token,
		map[string]string{"title": "Bad duration", "genre_id": genre.ID, "duration_seconds": "-4"},
		map[string][]byte{"audio": audio}))
	expectStatus(t, rec, http.StatusBadRequest)

	rec = env.do(t, "GET", "/api/dj/mixes", token, nil)
	expectStatus(t, rec, http.StatusOK)
	if mixes := decode[[]models.Mix](t, rec); len(mixes) != 1 {
		t.Errorf("expected 1 mix, got %d", len(mixes))
	}

	rec = env.do(t, "PUT", "/api/dj/mixes/"+mix.ID, token, map[string]string{"title": "Sunrise Set (edit)"})
	expectStatus(t, rec, http.StatusOK)
	if updated := decode[models.Mix](t, rec); updated.Title != "Sunrise Set (edit)" {
		t.Errorf("unexpected update: %+v", updated)
	}

	expectStatus(t, env.do(t, "DELETE", "/api/dj/mixes/"+mix.ID, env.token(t, other), nil), http.StatusForbidden)
	expectStatus(t, env.do(t, "DELETE", "/api/dj/mixes/"+mix.ID, token, nil), http.StatusNoContent)
	if env.storage.Count() != 0 || len(env.storage.Deleted) != 1 {
		t.Errorf("expected audio removed from storage, deleted %v", env.storage.Deleted)
	}

	rec = httptest.NewRecorder()
	env.server.ServeHTTP(rec, multipartRequest(t, "/api/uploads", token,
		map[string]string{"kind": "image"},
		map[string][]byte{"file": []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")}))
	expectStatus(t, rec, http.StatusCreated)
	if media := decode[services.StoredMedia](t, rec); !strings.HasPrefix(media.PublicID, "image/assets/") {
		t.Errorf("unexpected media: %+v", media)
	}

	expectStatus(t, env.do(t, "POST", "/api/dj/mixes", token, map[string]string{"title": "json"}), http.StatusBadRequest)
}

func TestModerationRoutes(t *testing.T) {
	env := newTestEnv(t, nil)
	dj := tu.SeedUser(t, env.store.DB, "dj@example.com", models.RoleDJ)
	admin := tu.SeedUser(t, env.store.DB, "admin@example.com", models.RoleAdmin)
	genre := tu.SeedGenre(t, env.store.DB, "House")
	mix := tu.SeedMix(t, env.store.DB, dj.ID, genre.ID, "Set", models.MixPending)
	token := env.token(t, admin)

	rec := env.do(t, "GET", "/api/admin/mixes?status=pending", token, nil)
	expectStatus(t, rec, http.StatusOK)
	if mixes := decode[[]models.Mix](t, rec); len(mixes) != 1 {
		t.Fatalf("expected 1 pending mix, got %d", len(mixes))
	}

	expectStatus(t, env.do(t, "POST", "/api/admin/mixes/"+mix.ID+"/feature", token, nil), http.StatusConflict)

	rec = env.do(t, "POST", "/api/admin/mixes/"+mix.ID+"/approve", token, nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[models.Mix](t, rec); got.Status != models.MixApproved {
		t.Errorf("expected approved, got %s", got.Status)
	}
	expectStatus(t, env.do(t, "POST", "/api/admin/mixes/"+mix.ID+"/approve", token, nil), http.StatusConflict)

	rec = env.do(t, "POST", "/api/admin/mixes/"+mix.ID+"/feature", token, nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[models.Mix](t, rec); !got.Featured {
		t.Error("expected featured mix")
	}

	rec = env.do(t, "POST", "/api/admin/mixes/"+mix.ID+"/reject", token, map[string]string{"reason": "copyright claim"})
	expectStatus(t, rec, http.StatusOK)
	if got := decode[models.Mix](t, rec); got.Status != models.MixRejected || got.RejectionReason != "copyright claim" || got.Featured {
		t.Errorf("unexpected rejection: %+v", got)
	}

	expectStatus(t, env.do(t, "POST", "/api/admin/mixes/missing/approve", token, nil), http.StatusNotFound)

	rec = env.do(t, "GET", "/api/admin/stats", token, nil)
	expectStatus(t, rec, http.StatusOK)
	if stats := decode[tasks.Stats](t, rec); stats.Mixes["rejected"] != 1 || stats.Users["admin"] != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}

	expectStatus(t, env.do(t, "DELETE", "/api/admin/mixes/"+mix.ID, token, nil), http.StatusNoContent)
}

func TestDJRequestRoutes(t *testing.T) {
	env := newTestEnv(t, nil)
	listener := tu.SeedUser(t, env.store.DB, "l@example.com", models.RoleListener)
	admin := tu.SeedUser(t, env.store.DB, "admin@example.com", models.RoleAdmin)
	listenerToken := env.token(t, listener)
	adminToken := env.token(t, admin)

	rec := env.do(t, "POST", "/api/dj-requests", listenerToken, map[string]string{"message": "Friday night residency"})
	expectStatus(t, rec, http.StatusCreated)
	req := decode[models.DJRequest](t, rec)

	expectStatus(t, env.do(t, "POST", "/api/dj-requests", listenerToken, map[string]string{"message": "again"}), http.StatusConflict)

	rec = env.do(t, "GET", "/api/admin/dj-requests?status=pending", adminToken, nil)
	expectStatus(t, rec, http.StatusOK)
	if pending := decode[[]models.DJRequest](t, rec); len(pending) != 1 || pending[0].UserEmail != "l@example.com" {
		t.Errorf("unexpected pending requests: %+v", pending)
	}

	expectStatus(t, env.do(t, "POST", "/api/admin/dj-requests/"+req.ID+"/approve", adminToken, nil), http.StatusOK)

	// The same token now carries the promoted role.
	expectStatus(t, env.do(t, "GET", "/api/dj/mixes", listenerToken, nil), http.StatusOK)

	rec = env.do(t, "GET", "/api/dj-requests/me", listenerToken, nil)
	expectStatus(t, rec, http.StatusOK)
	if mine := decode[[]models.DJRequest](t, rec); len(mine) != 1 || mine[0].Status != models.RequestApproved {
		t.Errorf("unexpected requests: %+v", mine)
	}

	rec = env.do(t, "PUT", "/api/admin/users/"+listener.ID+"/role", adminToken, map[string]string{"role": "listener"})
	expectStatus(t, rec, http.StatusOK)
	expectStatus(t, env.do(t, "PUT", "/api/admin/users/"+admin.ID+"/role", adminToken, map[string]string{"role": "dj"}), http.StatusForbidden)
	expectStatus(t, env.do(t, "PUT", "/api/admin/users/"+listener.ID+"/role", adminToken, map[string]string{"role": "superuser"}), http.StatusBadRequest)

	rec = env.do(t, "GET", "/api/admin/users?role=listener", adminToken, nil)
	expectStatus(t, rec, http.StatusOK)
	if users := decode[[]models.User](t, rec); len(users) != 1 {
		t.Errorf("expected 1 listener, got %d", len(users))
	}
}

func TestCatalogAdmin(t *testing.T) {
	env := newTestEnv(t, nil)
	admin := tu.SeedUser(t, env.store.DB, "admin@example.com", models.RoleAdmin)
	dj := tu.SeedUser(t, env.store.DB, "dj@example.com", models.RoleDJ)
	token := env.token(t, admin)

	rec := env.do(t, "POST", "/api/admin/genres", token, map[string]string{"name": "Drum & Bass", "description": "fast"})
	expectStatus(t, rec, http.StatusCreated)
	genre := decode[models.Genre](t, rec)
	if genre.Slug != "drum-bass" {
		t.Errorf("unexpected slug %q", genre.Slug)
	}
	expectStatus(t, env.do(t, "POST", "/api/admin/genres", token, map[string]string{"name": "Drum & Bass"}), http.StatusConflict)

	rec = env.do(t, "PUT", "/api/admin/genres/"+genre.ID, token, map[string]string{"description": "170 bpm"})
	expectStatus(t, rec, http.StatusOK)
	if updated := decode[models.Genre](t, rec); updated.Description != "170 bpm" || updated.Name != "Drum & Bass" {
		t.Errorf("unexpected update: %+v", updated)
	}

	tu.SeedMix(t, env.store.DB, dj.ID, genre.ID, "Roller", models.MixApproved)
	expectStatus(t, env.do(t, "DELETE", "/api/admin/genres/"+genre.ID, token, nil), http.StatusConflict)

	expectStatus(t, env.do(t, "POST", "/api/admin/banners", token, map[string]string{"title": "No image"}), http.StatusBadRequest)
	rec = env.do(t, "POST", "/api/admin/banners", token, map[string]any{
		"title": "Summer", "image_url": "https://cdn.example.com/b.png", "link_url": "/mixes",
	})
	expectStatus(t, rec, http.StatusCreated)
	banner := decode[models.Banner](t, rec)
	rec = env.do(t, "PUT", "/api/admin/banners/"+banner.ID, token, map[string]any{"active": false})
	expectStatus(t, rec, http.StatusOK)
	rec = env.do(t, "GET", "/api/banners", "", nil)
	if banners := decode[[]models.Banner](t, rec); len(banners) != 0 {
		t.Errorf("inactive banner should be hidden, got %d", len(banners))
	}
	expectStatus(t, env.do(t, "DELETE", "/api/admin/banners/"+banner.ID, token, nil), http.StatusNoContent)

	rec = env.do(t, "POST", "/api/admin/stations", token, map[string]string{"name": "Night Shift", "stream_url": "https://radio.example.com/ns.mp3"})
	expectStatus(t, rec, http.StatusCreated)
	station := decode[models.RadioStation](t, rec)
	if station.Slug != "night-shift" || !station.Active {
		t.Errorf("unexpected station: %+v", station)
	}
	expectStatus(t, env.do(t, "POST", "/api/admin/stations", token, map[string]string{"name": "Bad", "stream_url": "ftp://x"}), http.StatusBadRequest)
	expectStatus(t, env.do(t, "DELETE", "/api/admin/stations/"+station.ID, token, nil), http.StatusNoContent)
	expectStatus(t, env.do(t, "POST", "/api/admin/stations/probe", token, nil), http.StatusNotImplemented)

	rec = env.do(t, "POST", "/api/admin/karaoke", token, map[string]any{
		"title": "Song", "artist": "Band", "audio_url": "https://cdn.example.com/s.mp3", "duration_seconds": 200,
	})
	expectStatus(t, rec, http.StatusCreated)
	track := decode[models.KaraokeTrack](t, rec)
	rec = env.do(t, "PUT", "/api/admin/karaoke/"+track.ID, token, map[string]string{"lyrics": "la la"})
	expectStatus(t, rec, http.StatusOK)
	if updated := decode[models.KaraokeTrack](t, rec); updated.Lyrics != "la la" || updated.DurationSeconds != 200 {
		t.Errorf("unexpected track: %+v", updated)
	}
	expectStatus(t, env.do(t, "DELETE", "/api/admin/karaoke/"+track.ID, token, nil), http.StatusNoContent)
	expectStatus(t, env.do(t, "DELETE", "/api/admin/karaoke/"+track.ID, token, nil), http.StatusNotFound)
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest("OPTIONS", "/api/mixes", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusNoContent)
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Errorf("expected allowed origin, got %v", rec.Header())
	}

	req = httptest.NewRequest("GET", "/api/genres", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusOK)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("unexpected CORS header for unknown origin")
	}
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, func(o *Options) {
		o.Config.Limits.RequestsPerSecond = 1
		o.Config.Limits.Burst = 2
	})

	codes := []int{}
	for range 3 {
		codes = append(codes, env.do(t, "GET", "/api/genres", "", nil).Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("unexpected status sequence: %v", codes)
	}
}

func TestClientLimiter(t *testing.T) {
	now := time.Now()
	l := NewClientLimiter(1, 1)
	l.now = func() time.Time { return now }

	if !l.Allow("a") || l.Allow("a") {
		t.Error("expected a single token for a")
	}
	if !l.Allow("b") {
		t.Error("clients must not share buckets")
	}

	now = now.Add(time.Hour)
	l.Allow("c")
	if l.Len() != 1 {
		t.Errorf("expected idle clients swept, got %d", l.Len())
	}
}

func TestRecoverAndRequestID(t *testing.T) {
	logger := tu.DiscardLogger()
	r := NewBasicRouter()
	r.Use(RequestID(), Recover(logger))
	r.HandleFunc("GET", "/boom", func(w http.ResponseWriter, r *http.Request) { panic("kaboom") })

	req := httptest.NewRequest("GET", "/boom", nil)
	id := "6f1c8f0e-1b7a-4a62-9a57-3f4d8c2b9e10"
	req.Header.Set(requestIDHeader, id)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	expectStatus(t, rec, http.StatusInternalServerError)
	var body errorResponse
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Error != "internal server error" || body.RequestID != id {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{shared.ErrNotFound, http.StatusNotFound},
		{shared.ErrInvalidCredentials, http.StatusUnauthorized},
		{shared.ErrForbidden, http.StatusForbidden},
		{shared.ErrMethodNotAllowed, http.StatusMethodNotAllowed},
		{shared.ErrInvalidTransition, http.StatusConflict},
		{shared.ErrUploadRejected, http.StatusUnprocessableEntity},
		{shared.ErrMissingArgument, http.StatusBadRequest},
		{shared.ErrServiceUnavailable, http.StatusServiceUnavailable},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func newFakeGoogle(t *testing.T) *services.GoogleProvider {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		w.Header().Set("Content-Type", "application/json")
		if r.FormValue("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Write([]byte(`{"access_token":"access-123","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("GET /userinfo", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(services.GoogleUserInfo{Sub: "g-1", Email: "kaya@example.com", EmailVerified: true, Name: "Kaya"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	g, err := services.NewGoogleProvider(
		shared.GoogleConfig{ClientID: "client", ClientSecret: "secret", RedirectURL: "http://localhost/api/auth/google/callback"},
		services.WithGoogleEndpoint(oauth2.Endpoint{
			AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token", AuthStyle: oauth2.AuthStyleInParams,
		}, srv.URL+"/userinfo"),
		services.WithGoogleHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestGoogleSignIn(t *testing.T) {
	t.Run("NotConfigured", func(t *testing.T) {
		env := newTestEnv(t, nil)
		expectStatus(t, env.do(t, "GET", "/api/auth/google", "", nil), http.StatusNotImplemented)
	})

	env := newTestEnv(t, func(o *Options) { o.Google = newFakeGoogle(t) })

	rec := env.do(t, "GET", "/api/auth/google", "", nil)
	expectStatus(t, rec, http.StatusFound)
	location, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatal(err)
	}
	state := location.Query().Get("state")
	cookies := rec.Result().Cookies()
	if state == "" || len(cookies) != 1 || cookies[0].Value != state {
		t.Fatalf("expected state cookie matching %q, got %v", state, cookies)
	}

	callback := func(state, code string, cookie *http.Cookie) *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", "/api/auth/google/callback?"+url.Values{"state": {state}, "code": {code}}.Encode(), nil)
		if cookie != nil {
			req.AddCookie(cookie)
		}
		rec := httptest.NewRecorder()
		env.server.ServeHTTP(rec, req)
		return rec
	}

	expectStatus(t, callback(state, "good-code", nil), http.StatusBadRequest)
	expectStatus(t, callback("forged", "good-code", cookies[0]), http.StatusBadRequest)
	expectStatus(t, callback(state, "bad-code", cookies[0]), http.StatusUnauthorized)

	rec = callback(state, "good-code", cookies[0])
	expectStatus(t, rec, http.StatusFound)
	target := rec.Header().Get("Location")
	if !strings.HasPrefix(target, "http://localhost:5173/auth/callback#") || !strings.Contains(target, "token=") {
		t.Errorf("unexpected redirect %q", target)
	}

	user, err := env.store.Users.GetByProvider(models.ProviderGoogle, "g-1")
	if err != nil || user.Email != "kaya@example.com" {
		t.Errorf("expected google user stored, got %v %v", user, err)
	}
}

func TestServeShutdown(t *testing.T) {
	env := newTestEnv(t, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.server.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
