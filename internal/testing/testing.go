// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/jmoiron/sqlx"

	"github.com/desertthunder/zylofm/internal/models"
	"github.com/desertthunder/zylofm/internal/repositories"
	"github.com/desertthunder/zylofm/internal/services"
	"github.com/desertthunder/zylofm/internal/shared"
)

// SetupDB creates an in-memory SQLite database with migrations applied, closed on cleanup.
func SetupDB(t *testing.T) *sqlx.DB {
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

// DiscardLogger returns a logger that writes nowhere.
func DiscardLogger() *log.Logger {
	return log.New(io.Discard)
}

// SeedUser creates a user with the given role.
func SeedUser(t *testing.T, db *sqlx.DB, email string, role models.Role) *models.User {
	t.Helper()
	user := models.NewUser(email, "User "+email)
	user.Role = role
	if err := repositories.NewUserRepository(db).Create(user); err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return user
}

// SeedGenre creates a genre named name.
func SeedGenre(t *testing.T, db *sqlx.DB, name string) *models.Genre {
	t.Helper()
	genre := models.NewGenre(name, "")
	if err := repositories.NewGenreRepository(db).Create(genre); err != nil {
		t.Fatalf("failed to seed genre: %v", err)
	}
	return genre
}

// SeedMix creates a mix in the given status with placeholder media.
func SeedMix(t *testing.T, db *sqlx.DB, djID, genreID, title string, status models.MixStatus) *models.Mix {
	t.Helper()
	mix := models.NewMix(djID, genreID, title, "")
	mix.AudioURL = "https://cdn.example.com/audio/" + shared.Slugify(title) + ".mp3"
	mix.AudioPublicID = "audio/" + shared.Slugify(title)
	mix.CoverURL = "https://cdn.example.com/image/" + shared.Slugify(title) + ".jpg"
	mix.CoverPublicID = "image/" + shared.Slugify(title)
	mix.DurationSeconds = 3600
	mix.Status = status
	if err := repositories.NewMixRepository(db).Create(mix); err != nil {
		t.Fatalf("failed to seed mix: %v", err)
	}
	return mix
}

// MockStorage is a test double for [services.MediaStorage] that keeps uploads in memory.
type MockStorage struct {
	mu        sync.Mutex
	next      int
	Uploaded  map[string][]byte
	Deleted   []string
	FailOn    services.MediaKind // FailOn makes uploads of this kind fail.
	DeleteErr error
}

func NewMockStorage() *MockStorage {
	return &MockStorage{Uploaded: map[string][]byte{}}
}

func (m *MockStorage) Upload(ctx context.Context, req services.UploadRequest) (*services.StoredMedia, error) {
	if m.FailOn != "" && req.Kind == m.FailOn {
		return nil, fmt.Errorf("%w: mock upload failure", shared.ErrServiceUnavailable)
	}
	data, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	publicID := path.Join(string(req.Kind), req.Folder, fmt.Sprintf("%d", m.next))
	m.Uploaded[publicID] = data
	return &services.StoredMedia{
		PublicID: publicID,
		URL:      "https://cdn.example.com/" + publicID,
		Kind:     req.Kind,
		Bytes:    int64(len(data)),
	}, nil
}

func (m *MockStorage) Delete(ctx context.Context, publicID string, kind services.MediaKind) error {
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deleted = append(m.Deleted, publicID)
	delete(m.Uploaded, publicID)
	return nil
}

func (m *MockStorage) Name() string { return "mock" }

// Count returns the number of files currently stored.
func (m *MockStorage) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Uploaded)
}

// WasDeleted reports whether publicID was passed to Delete.
func (m *MockStorage) WasDeleted(publicID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.Deleted {
		if id == publicID {
			return true
		}
	}
	return false
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
