package repositories

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/desertthunder/zylofm/internal/models"
	"github.com/desertthunder/zylofm/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := shared.NewDatabase("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if _, err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// setupFileDB creates a migrated SQLite database on disk so concurrent callers use separate connections.
func setupFileDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := shared.NewDatabase("sqlite3", filepath.Join(t.TempDir(), "zylofm.db"))
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if _, err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func createUser(t *testing.T, db *sqlx.DB, email string, role models.Role) *models.User {
	t.Helper()
	user := models.NewUser(email, "User "+email)
	user.Role = role
	if err := NewUserRepository(db).Create(user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}

func createGenre(t *testing.T, db *sqlx.DB, name string) *models.Genre {
	t.Helper()
	genre := models.NewGenre(name, "")
	if err := NewGenreRepository(db).Create(genre); err != nil {
		t.Fatalf("failed to create genre: %v", err)
	}
	return genre
}

func createMix(t *testing.T, db *sqlx.DB, djID, genreID, title string, status models.MixStatus) *models.Mix {
	t.Helper()
	mix := models.NewMix(djID, genreID, title, "")
	mix.AudioURL = "https://cdn.example.com/" + shared.Slugify(title) + ".mp3"
	mix.Status = status
	if err := NewMixRepository(db).Create(mix); err != nil {
		t.Fatalf("failed to create mix: %v", err)
	}
	return mix
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)

	for want := 1; want <= 3; want++ {
		got, err := NextSequence(db, "users")
		if err != nil {
			t.Fatalf("NextSequence failed: %v", err)
		}
		if got != want {
			t.Errorf("expected sequence %d, got %d", want, got)
		}
	}

	if _, err := NextSequence(db, "missing"); err == nil {
		t.Error("expected error for unknown sequence table")
	}
}

func TestUserRepository(t *testing.T) {
	t.Run("CreateAndGet", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewUserRepository(db)

		user := models.NewUser("Listener@Example.com", "Listener")
		user.PasswordHash = "hash"
		if err := repo.Create(user); err != nil {
			t.Fatalf("failed to create user: %v", err)
		}
		if user.ID == "" || user.Sequence != 1 {
			t.Errorf("expected id and sequence to be set, got %q / %d", user.ID, user.Sequence)
		}

		retrieved, err := repo.Get(user.ID)
		if err != nil {
			t.Fatalf("failed to get user: %v", err)
		}
		if retrieved.Email != "listener@example.com" {
			t.Errorf("expected normalized email, got %s", retrieved.Email)
		}
		if retrieved.PasswordHash != "hash" || retrieved.Role != models.RoleListener {
			t.Errorf("unexpected user: %+v", retrieved)
		}

		byEmail, err := repo.GetByEmail("  LISTENER@example.com")
		if err != nil {
			t.Fatalf("GetByEmail failed: %v", err)
		}
		if byEmail.ID != user.ID {
			t.Errorf("expected %s, got %s", user.ID, byEmail.ID)
		}
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewUserRepository(db)

		createUser(t, db, "dup@example.com", models.RoleListener)
		err := repo.Create(models.NewUser("DUP@example.com", "Other"))
		if !errors.Is(err, shared.ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("ValidationError", func(t *testing.T) {
		db := setupTestDB(t)
		err := NewUserRepository(db).Create(models.NewUser("", "Nobody"))
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("GetByProvider", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewUserRepository(db)

		user := models.NewUser("g@example.com", "Google User")
		user.Provider = models.ProviderGoogle
		user.ProviderID = "google-123"
		if err := repo.Create(user); err != nil {
			t.Fatal(err)
		}

		got, err := repo.GetByProvider(models.ProviderGoogle, "google-123")
		if err != nil {
			t.Fatalf("GetByProvider failed: %v", err)
		}
		if got.ID != user.ID {
			t.Errorf("expected %s, got %s", user.ID, got.ID)
		}

		if _, err := repo.GetByProvider(models.ProviderGoogle, "other"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("UpdateAndSetRole", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewUserRepository(db)
		user := createUser(t, db, "u@example.com", models.RoleListener)

		user.Bio = "Selector from Lagos"
		if err := repo.Update(user); err != nil {
			t.Fatalf("failed to update user: %v", err)
		}
		if err := repo.SetRole(user.ID, models.RoleDJ); err != nil {
			t.Fatalf("failed to set role: %v", err)
		}

		got, _ := repo.Get(user.ID)
		if got.Bio != "Selector from Lagos" || got.Role != models.RoleDJ {
			t.Errorf("unexpected user after update: %+v", got)
		}

		if err := repo.SetRole(user.ID, "root"); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
		if err := repo.SetRole("missing", models.RoleDJ); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("UpdateKeepsRole", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewUserRepository(db)
		user := createUser(t, db, "l@example.com", models.RoleListener)
		stale, _ := repo.Get(user.ID)

		if err := repo.SetRole(user.ID, models.RoleDJ); err != nil {
			t.Fatal(err)
		}

		stale.Bio = "now spinning"
		if err := repo.UpdateProfile(stale); err != nil {
			t.Fatalf("UpdateProfile failed: %v", err)
		}
		stale.Image = "https://cdn.example.com/me.jpg"
		if err := repo.Update(stale); err != nil {
			t.Fatalf("Update failed: %v", err)
		}

		got, _ := repo.Get(user.ID)
		if got.Role != models.RoleDJ {
			t.Errorf("expected role dj to survive profile edits, got %s", got.Role)
		}
		if got.Bio != "now spinning" || got.Image != "https://cdn.example.com/me.jpg" {
			t.Errorf("expected profile fields written, got %+v", got)
		}

		ghost := models.NewUser("ghost@example.com", "Ghost")
		ghost.ID = "missing"
		if err := repo.UpdateProfile(ghost); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewUserRepository(db)
		user := createUser(t, db, "gone@example.com", models.RoleListener)

		if err := repo.Delete(user.ID); err != nil {
			t.Fatalf("failed to delete user: %v", err)
		}
		if _, err := repo.Get(user.ID); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound for deleted user, got %v", err)
		}
		if err := repo.Delete(user.ID); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound on second delete, got %v", err)
		}
	})

	t.Run("ListAndCount", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewUserRepository(db)
		createUser(t, db, "a@example.com", models.RoleListener)
		createUser(t, db, "b@example.com", models.RoleDJ)
		createUser(t, db, "c@example.com", models.RoleDJ)
		createUser(t, db, "d@example.com", models.RoleAdmin)

		all, err := repo.List(nil)
		if err != nil {
			t.Fatalf("failed to list users: %v", err)
		}
		if len(all) != 4 {
			t.Errorf("expected 4 users, got %d", len(all))
		}

		djs, _ := repo.List(map[string]any{"role": models.RoleDJ})
		if len(djs) != 2 {
			t.Errorf("expected 2 DJs, got %d", len(djs))
		}

		found, _ := repo.List(map[string]any{"search": "C@EXAMPLE"})
		if len(found) != 1 || found[0].Email != "c@example.com" {
			t.Errorf("unexpected search result: %v", found)
		}

		paged, _ := repo.List(map[string]any{"limit": 2, "offset": 2})
		if len(paged) != 2 || paged[0].Email != "c@example.com" {
			t.Errorf("unexpected page: %v", paged)
		}

		counts, err := repo.CountByRole()
		if err != nil {
			t.Fatalf("CountByRole failed: %v", err)
		}
		if counts[models.RoleListener] != 1 || counts[models.RoleDJ] != 2 || counts[models.RoleAdmin] != 1 {
			t.Errorf("unexpected counts: %v", counts)
		}
	})

	t.Run("Profiles", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewUserRepository(db)
		dj := createUser(t, db, "dj@example.com", models.RoleDJ)
		createUser(t, db, "listener@example.com", models.RoleListener)
		genre := createGenre(t, db, "House")
		createMix(t, db, dj.ID, genre.ID, "One", models.MixApproved)
		createMix(t, db, dj.ID, genre.ID, "Two", models.MixPending)

		profiles, err := repo.ListProfiles(models.NewPage(1, 10))
		if err != nil {
			t.Fatalf("ListProfiles failed: %v", err)
		}
		if len(profiles) != 1 {
			t.Fatalf("expected 1 DJ profile, got %d", len(profiles))
		}
		if profiles[0].MixCount != 1 {
			t.Errorf("expected only approved mixes counted, got %d", profiles[0].MixCount)
		}

		if _, err := repo.GetProfile(dj.ID); err != nil {
			t.Errorf("GetProfile failed: %v", err)
		}
		listener, _ := repo.GetByEmail("listener@example.com")
		if _, err := repo.GetProfile(listener.ID); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound for listener profile, got %v", err)
		}
	})
}

func TestMixRepository(t *testing.T) {
	t.Run("CreateAndGet", func(t *testing.T) {
		db := setupTestDB(t)
		dj := createUser(t, db, "dj@example.com", models.RoleDJ)
		genre := createGenre(t, db, "Deep House")
		mix := createMix(t, db, dj.ID, genre.ID, "Sunset", models.MixPending)

		got, err := NewMixRepository(db).Get(mix.ID)
		if err != nil {
			t.Fatalf("failed to get mix: %v", err)
		}
		if got.DJName != dj.Name || got.GenreName != "Deep House" || got.GenreSlug != "deep-house" {
			t.Errorf("joined fields not populated: %+v", got)
		}
		if got.Status != models.MixPending || got.Featured {
			t.Errorf("unexpected status/featured: %s/%v", got.Status, got.Featured)
		}
	})

	t.Run("MissingReferences", func(t *testing.T) {
		db := setupTestDB(t)
		dj := createUser(t, db, "dj@example.com", models.RoleDJ)

		mix := models.NewMix(dj.ID, "no-such-genre", "Orphan", "")
		mix.AudioURL = "https://cdn.example.com/o.mp3"
		if err := NewMixRepository(db).Create(mix); !errors.Is(err, shared.ErrConflict) {
			t.Fatalf("expected ErrConflict for missing genre, got %v", err)
		}
	})

	t.Run("ListPublic", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewMixRepository(db)
		dj := createUser(t, db, "dj@example.com", models.RoleDJ)
		house := createGenre(t, db, "House")
		techno := createGenre(t, db, "Techno")

		a := createMix(t, db, dj.ID, house.ID, "Morning House", models.MixApproved)
		b := createMix(t, db, dj.ID, techno.ID, "Warehouse Techno", models.MixApproved)
		createMix(t, db, dj.ID, house.ID, "Pending Set", models.MixPending)
		createMix(t, db, dj.ID, house.ID, "Rejected Set", models.MixRejected)

		for range 3 {
			if _, err := repo.IncrementPlays(a.ID); err != nil {
				t.Fatalf("IncrementPlays failed: %v", err)
			}
		}
		if err := repo.SetFeatured(b.ID, true); err != nil {
			t.Fatal(err)
		}

		latest, err := repo.ListPublic(models.MixQuery{Sort: models.SortLatest})
		if err != nil {
			t.Fatalf("ListPublic failed: %v", err)
		}
		if len(latest) != 2 || latest[0].ID != b.ID {
			t.Errorf("expected newest approved mix first, got %v", latest)
		}

		popular, _ := repo.ListPublic(models.MixQuery{Sort: models.SortPopular})
		if popular[0].ID != a.ID || popular[0].PlayCount != 3 {
			t.Errorf("expected most played first, got %+v", popular[0])
		}

		byGenre, _ := repo.ListPublic(models.MixQuery{GenreID: house.ID})
		if len(byGenre) != 1 || byGenre[0].ID != a.ID {
			t.Errorf("genre filter failed: %v", byGenre)
		}

		featured, _ := repo.ListPublic(models.MixQuery{Featured: true})
		if len(featured) != 1 || featured[0].ID != b.ID {
			t.Errorf("featured filter failed: %v", featured)
		}

		searched, _ := repo.ListPublic(models.MixQuery{Search: "WAREHOUSE"})
		if len(searched) != 1 || searched[0].ID != b.ID {
			t.Errorf("search failed: %v", searched)
		}

		paged, _ := repo.ListPublic(models.MixQuery{Page: models.Page{Limit: 1, Offset: 1}})
		if len(paged) != 1 || paged[0].ID != a.ID {
			t.Errorf("pagination failed: %v", paged)
		}

		count, err := repo.CountPublic(models.MixQuery{Page: models.Page{Limit: 1}})
		if err != nil || count != 2 {
			t.Errorf("expected 2 public mixes, got %d (%v)", count, err)
		}
	})

	t.Run("SetStatus", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewMixRepository(db)
		dj := createUser(t, db, "dj@example.com", models.RoleDJ)
		admin := createUser(t, db, "admin@example.com", models.RoleAdmin)
		genre := createGenre(t, db, "House")
		mix := createMix(t, db, dj.ID, genre.ID, "Set", models.MixApproved)
		_ = repo.SetFeatured(mix.ID, true)

		if err := repo.SetStatus(mix.ID, models.MixRejected, admin.ID, "copyright"); err != nil {
			t.Fatalf("SetStatus failed: %v", err)
		}
		got, _ := repo.Get(mix.ID)
		if got.Status != models.MixRejected || got.RejectionReason != "copyright" || got.ReviewedBy != admin.ID {
			t.Errorf("unexpected mix after reject: %+v", got)
		}
		if got.ReviewedAt == nil || got.Featured {
			t.Errorf("expected reviewed_at set and featured cleared: %+v", got)
		}

		if err := repo.SetStatus("missing", models.MixApproved, admin.ID, ""); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("UpdateFromStaleStatus", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewMixRepository(db)
		dj := createUser(t, db, "dj@example.com", models.RoleDJ)
		admin := createUser(t, db, "admin@example.com", models.RoleAdmin)
		genre := createGenre(t, db, "House")
		mix := createMix(t, db, dj.ID, genre.ID, "Set", models.MixPending)
		stale, _ := repo.Get(mix.ID)

		if err := repo.SetStatus(mix.ID, models.MixApproved, admin.ID, ""); err != nil {
			t.Fatal(err)
		}
		if err := repo.SetFeatured(mix.ID, true); err != nil {
			t.Fatal(err)
		}

		stale.Title = "Set (edit)"
		if err := repo.UpdateFrom(stale, models.MixPending); !errors.Is(err, shared.ErrConflict) {
			t.Errorf("expected ErrConflict for a mix reviewed since it was read, got %v", err)
		}
		got, _ := repo.Get(mix.ID)
		if got.Status != models.MixApproved || got.Title != "Set" || !got.Featured {
			t.Errorf("stale edit changed the mix: %+v", got)
		}

		got.Title = "Set (edit)"
		got.Featured = false
		if err := repo.Update(got); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		fresh, _ := repo.Get(mix.ID)
		if fresh.Title != "Set (edit)" || fresh.Status != models.MixApproved || !fresh.Featured {
			t.Errorf("expected title edit only, got %+v", fresh)
		}

		got.ID = "missing"
		if err := repo.Update(got); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("IncrementPlaysRequiresApproval", func(t *testing.T) {
		db := setupTestDB(t)
		dj := createUser(t, db, "dj@example.com", models.RoleDJ)
		genre := createGenre(t, db, "House")
		mix := createMix(t, db, dj.ID, genre.ID, "Set", models.MixPending)

		if _, err := NewMixRepository(db).IncrementPlays(mix.ID); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound for pending mix, got %v", err)
		}
	})

	t.Run("ListAndCountByStatus", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewMixRepository(db)
		dj := createUser(t, db, "dj@example.com", models.RoleDJ)
		genre := createGenre(t, db, "House")
		createMix(t, db, dj.ID, genre.ID, "A", models.MixPending)
		createMix(t, db, dj.ID, genre.ID, "B", models.MixPending)
		deleted := createMix(t, db, dj.ID, genre.ID, "C", models.MixApproved)
		if err := repo.Delete(deleted.ID); err != nil {
			t.Fatal(err)
		}

		pending, err := repo.List(map[string]any{"status": models.MixPending})
		if err != nil {
			t.Fatal(err)
		}
		if len(pending) != 2 || pending[0].Title != "A" {
			t.Errorf("expected oldest pending first, got %v", pending)
		}

		counts, err := repo.CountByStatus()
		if err != nil {
			t.Fatal(err)
		}
		if counts[models.MixPending] != 2 || counts[models.MixApproved] != 0 {
			t.Errorf("unexpected counts: %v", counts)
		}
	})

	t.Run("ListRejectedBefore", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewMixRepository(db)
		dj := createUser(t, db, "dj@example.com", models.RoleDJ)
		genre := createGenre(t, db, "House")
		old := createMix(t, db, dj.ID, genre.ID, "Old", models.MixPending)
		createMix(t, db, dj.ID, genre.ID, "Fresh", models.MixPending)

		if err := repo.SetStatus(old.ID, models.MixRejected, dj.ID, ""); err != nil {
			t.Fatal(err)
		}

		none, _ := repo.ListRejectedBefore(time.Now().Add(-time.Hour))
		if len(none) != 0 {
			t.Errorf("expected no mixes rejected an hour ago, got %d", len(none))
		}
		due, err := repo.ListRejectedBefore(time.Now().Add(time.Minute))
		if err != nil {
			t.Fatal(err)
		}
		if len(due) != 1 || due[0].ID != old.ID {
			t.Errorf("expected old rejected mix, got %v", due)
		}
	})
}

func TestCatalogRepositories(t *testing.T) {
	t.Run("Genres", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewGenreRepository(db)
		genre := createGenre(t, db, "Drum & Bass")

		got, err := repo.GetBySlug("drum-bass")
		if err != nil {
			t.Fatalf("GetBySlug failed: %v", err)
		}
		if got.ID != genre.ID {
			t.Errorf("expected %s, got %s", genre.ID, got.ID)
		}

		if err := repo.Create(models.NewGenre("Drum Bass", "")); !errors.Is(err, shared.ErrConflict) {
			t.Errorf("expected ErrConflict for duplicate slug, got %v", err)
		}

		createGenre(t, db, "Ambient")
		genres, _ := repo.List(nil)
		if len(genres) != 2 || genres[0].Name != "Ambient" {
			t.Errorf("expected genres ordered by name, got %v", genres)
		}
	})

	t.Run("GenreInUse", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewGenreRepository(db)
		dj := createUser(t, db, "dj@example.com", models.RoleDJ)
		used := createGenre(t, db, "House")
		unused := createGenre(t, db, "Jazz")
		createMix(t, db, dj.ID, used.ID, "Set", models.MixPending)

		if err := repo.Delete(used.ID); !errors.Is(err, shared.ErrConflict) {
			t.Errorf("expected ErrConflict, got %v", err)
		}

		onAir := createGenre(t, db, "Ambient")
		station := models.NewRadioStation("Drift", "https://radio.example.com/drift.mp3")
		station.GenreID = onAir.ID
		if err := NewStationRepository(db).Create(station); err != nil {
			t.Fatal(err)
		}
		if err := repo.Delete(onAir.ID); !errors.Is(err, shared.ErrConflict) {
			t.Errorf("expected ErrConflict for genre used by a station, got %v", err)
		}

		sung := createGenre(t, db, "Pop")
		track := &models.KaraokeTrack{Title: "Halo", Artist: "Beyonce", AudioURL: "https://cdn.example.com/k.mp3", GenreID: sung.ID}
		if err := NewKaraokeRepository(db).Create(track); err != nil {
			t.Fatal(err)
		}
		if err := repo.Delete(sung.ID); !errors.Is(err, shared.ErrConflict) {
			t.Errorf("expected ErrConflict for genre used by a karaoke track, got %v", err)
		}
		if _, err := repo.Get(sung.ID); err != nil {
			t.Errorf("expected referenced genre to remain, got %v", err)
		}
		if err := repo.Delete(unused.ID); err != nil {
			t.Errorf("failed to delete unused genre: %v", err)
		}
		if _, err := repo.Get(unused.ID); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
	})

	t.Run("Banners", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewBannerRepository(db)
		for i, title := range []string{"Third", "First", "Hidden"} {
			b := &models.Banner{Title: title, ImageURL: "https://cdn.example.com/b.jpg", Active: title != "Hidden"}
			b.Position = []int{3, 1, 0}[i]
			if err := repo.Create(b); err != nil {
				t.Fatalf("failed to create banner: %v", err)
			}
		}

		active, err := repo.ListActive()
		if err != nil {
			t.Fatal(err)
		}
		if len(active) != 2 || active[0].Title != "First" || active[1].Title != "Third" {
			t.Errorf("expected active banners by position, got %v", active)
		}

		all, _ := repo.List(nil)
		if len(all) != 3 {
			t.Errorf("expected 3 banners, got %d", len(all))
		}
	})

	t.Run("Stations", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewStationRepository(db)
		live := models.NewRadioStation("Night Drive", "https://radio.example.com/night.m3u8")
		if err := repo.Create(live); err != nil {
			t.Fatal(err)
		}
		off := models.NewRadioStation("Old Station", "https://radio.example.com/old.mp3")
		off.Active = false
		if err := repo.Create(off); err != nil {
			t.Fatal(err)
		}

		if err := repo.Create(models.NewRadioStation("Night Drive", "https://other.example.com/x")); !errors.Is(err, shared.ErrConflict) {
			t.Errorf("expected ErrConflict for duplicate slug, got %v", err)
		}

		checked := time.Now()
		if err := repo.RecordProbe(live.ID, true, checked); err != nil {
			t.Fatalf("RecordProbe failed: %v", err)
		}

		got, err := repo.GetBySlug("night-drive")
		if err != nil {
			t.Fatal(err)
		}
		if !got.Online || got.LastCheckedAt == nil {
			t.Errorf("probe not recorded: %+v", got)
		}

		active, _ := repo.ListActive()
		if len(active) != 1 || active[0].ID != live.ID {
			t.Errorf("expected only active station, got %v", active)
		}
	})

	t.Run("Karaoke", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewKaraokeRepository(db)
		for _, tr := range [][2]string{{"Halo", "Beyonce"}, {"Hello", "Adele"}, {"Creep", "Radiohead"}} {
			track := &models.KaraokeTrack{Title: tr[0], Artist: tr[1], AudioURL: "https://cdn.example.com/k.mp3"}
			if err := repo.Create(track); err != nil {
				t.Fatal(err)
			}
		}

		found, err := repo.Search("ADELE", models.NewPage(1, 10))
		if err != nil {
			t.Fatal(err)
		}
		if len(found) != 1 || found[0].Title != "Hello" {
			t.Errorf("unexpected search result: %v", found)
		}

		byTitle, _ := repo.Search("h", models.NewPage(1, 10))
		if len(byTitle) != 3 {
			t.Errorf("expected 3 matches, got %d", len(byTitle))
		}

		all, _ := repo.Search("", models.Page{})
		if len(all) != 3 || all[0].Artist != "Adele" {
			t.Errorf("expected all tracks by artist, got %v", all)
		}
	})
}

func TestDJRequestRepository(t *testing.T) {
	t.Run("OnePendingPerUser", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewDJRequestRepository(db)
		user := createUser(t, db, "l@example.com", models.RoleListener)

		if err := repo.Create(models.NewDJRequest(user.ID, "let me play", "")); err != nil {
			t.Fatalf("failed to create request: %v", err)
		}
		if err := repo.Create(models.NewDJRequest(user.ID, "again", "")); !errors.Is(err, shared.ErrConflict) {
			t.Errorf("expected ErrConflict, got %v", err)
		}

		pending, err := repo.GetPendingForUser(user.ID)
		if err != nil {
			t.Fatal(err)
		}
		if pending.UserEmail != "l@example.com" {
			t.Errorf("expected joined user email, got %q", pending.UserEmail)
		}
	})

	t.Run("ConcurrentSubmissions", func(t *testing.T) {
		db := setupFileDB(t)
		repo := NewDJRequestRepository(db)
		user := createUser(t, db, "l@example.com", models.RoleListener)

		const attempts = 16
		errs := make(chan error, attempts)
		var wg sync.WaitGroup
		for range attempts {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- repo.Create(models.NewDJRequest(user.ID, "pick me", ""))
			}()
		}
		wg.Wait()
		close(errs)

		created := 0
		for err := range errs {
			switch {
			case err == nil:
				created++
			case !errors.Is(err, shared.ErrConflict):
				t.Errorf("expected ErrConflict for duplicate submission, got %v", err)
			}
		}
		if created != 1 {
			t.Errorf("expected exactly one request created, got %d", created)
		}
		if count, _ := repo.CountPending(); count != 1 {
			t.Errorf("expected 1 pending request, got %d", count)
		}
	})

	t.Run("ConcurrentApprovals", func(t *testing.T) {
		db := setupFileDB(t)
		repo := NewDJRequestRepository(db)
		users := NewUserRepository(db)
		admin := createUser(t, db, "a@example.com", models.RoleAdmin)

		requests := []*models.DJRequest{}
		for _, email := range []string{"a1@example.com", "a2@example.com", "a3@example.com", "a4@example.com", "a5@example.com", "a6@example.com"} {
			user := createUser(t, db, email, models.RoleListener)
			req := models.NewDJRequest(user.ID, "", "")
			if err := repo.Create(req); err != nil {
				t.Fatal(err)
			}
			requests = append(requests, req)
		}

		var wg sync.WaitGroup
		errs := make(chan error, len(requests))
		for _, req := range requests {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- repo.Approve(req.ID, admin.ID)
			}()
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			if err != nil {
				t.Errorf("Approve failed: %v", err)
			}
		}
		for _, req := range requests {
			if got, _ := users.Get(req.UserID); got == nil || got.Role != models.RoleDJ {
				t.Errorf("expected applicant %s promoted, got %+v", req.UserID, got)
			}
		}
	})

	t.Run("ApprovePromotes", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewDJRequestRepository(db)
		users := NewUserRepository(db)
		user := createUser(t, db, "l@example.com", models.RoleListener)
		admin := createUser(t, db, "a@example.com", models.RoleAdmin)

		req := models.NewDJRequest(user.ID, "", "")
		if err := repo.Create(req); err != nil {
			t.Fatal(err)
		}
		if err := repo.Approve(req.ID, admin.ID); err != nil {
			t.Fatalf("Approve failed: %v", err)
		}

		got, _ := users.Get(user.ID)
		if got.Role != models.RoleDJ {
			t.Errorf("expected user promoted to dj, got %s", got.Role)
		}
		resolved, _ := repo.Get(req.ID)
		if resolved.Status != models.RequestApproved || resolved.ReviewedBy != admin.ID {
			t.Errorf("unexpected request: %+v", resolved)
		}

		if err := repo.Approve(req.ID, admin.ID); !errors.Is(err, shared.ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got %v", err)
		}
		if err := repo.Approve("missing", admin.ID); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("ApproveNeverDemotes", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewDJRequestRepository(db)
		admin := createUser(t, db, "a@example.com", models.RoleAdmin)

		req := models.NewDJRequest(admin.ID, "", "")
		if err := repo.Create(req); err != nil {
			t.Fatal(err)
		}
		if err := repo.Approve(req.ID, admin.ID); err != nil {
			t.Fatal(err)
		}
		got, _ := NewUserRepository(db).Get(admin.ID)
		if got.Role != models.RoleAdmin {
			t.Errorf("admin was demoted to %s", got.Role)
		}
	})

	t.Run("RejectAllowsNewRequest", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewDJRequestRepository(db)
		user := createUser(t, db, "l@example.com", models.RoleListener)

		req := models.NewDJRequest(user.ID, "", "")
		if err := repo.Create(req); err != nil {
			t.Fatal(err)
		}
		if err := repo.Reject(req.ID, "admin"); err != nil {
			t.Fatalf("Reject failed: %v", err)
		}
		got, _ := NewUserRepository(db).Get(user.ID)
		if got.Role != models.RoleListener {
			t.Errorf("rejection changed role to %s", got.Role)
		}

		count, _ := repo.CountPending()
		if count != 0 {
			t.Errorf("expected 0 pending, got %d", count)
		}
		if err := repo.Create(models.NewDJRequest(user.ID, "second try", "")); err != nil {
			t.Errorf("expected new request after rejection, got %v", err)
		}

		list, _ := repo.List(map[string]any{"user_id": user.ID})
		if len(list) != 2 || list[0].Message != "second try" {
			t.Errorf("expected newest request first, got %v", list)
		}
	})
}

func TestNewStore(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	if store.Users == nil || store.Mixes == nil || store.Requests == nil || store.Karaoke == nil {
		t.Fatal("expected all repositories to be initialized")
	}
	if store.DB != db {
		t.Error("store should keep the database handle")
	}
}
