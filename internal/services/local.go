package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/desertthunder/zylofm/internal/shared"
)

// LocalStorage implements [MediaStorage] on the local filesystem.
//
// Files are written below dir and served by the API under publicBaseURL.
type LocalStorage struct {
	dir           string
	publicBaseURL string
}

// NewLocalStorage creates the storage directory if needed.
func NewLocalStorage(dir, publicBaseURL string) (*LocalStorage, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: storage local_dir is required", shared.ErrMissingConfig)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStorage{dir: dir, publicBaseURL: strings.TrimRight(publicBaseURL, "/")}, nil
}

func (l *LocalStorage) Name() string {
	return "local"
}

// Dir returns the root directory files are written to.
func (l *LocalStorage) Dir() string { return l.dir }

// Upload writes the body to <dir>/<kind>/<folder>/<uuid><ext>.
func (l *LocalStorage) Upload(ctx context.Context, req UploadRequest) (*StoredMedia, error) {
	if req.Body == nil {
		return nil, fmt.Errorf("%w: empty upload", shared.ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(req.Filename))
	publicID := path.Join(string(req.Kind), cleanFolder(req.Folder), shared.GenerateID()+ext)
	target := filepath.Join(l.dir, filepath.FromSlash(publicID))

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := os.Create(target)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	n, err := io.Copy(f, req.Body)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(target)
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	return &StoredMedia{
		PublicID: publicID,
		URL:      l.publicBaseURL + "/" + publicID,
		Kind:     req.Kind,
		Bytes:    n,
		Format:   strings.TrimPrefix(ext, "."),
	}, nil
}

// Delete removes a stored file. Missing files are ignored.
func (l *LocalStorage) Delete(ctx context.Context, publicID string, kind MediaKind) error {
	if publicID == "" {
		return nil
	}
	clean := path.Clean("/" + publicID)[1:]
	if clean == "" || strings.HasPrefix(clean, "..") {
		return fmt.Errorf("%w: invalid public id %q", shared.ErrInvalidInput, publicID)
	}

	err := os.Remove(filepath.Join(l.dir, filepath.FromSlash(clean)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func cleanFolder(folder string) string {
	clean := path.Clean("/" + strings.TrimSpace(folder))
	return strings.TrimPrefix(clean, "/")
}
