// package services defines interface MediaStorage for storing uploaded media, and the OAuth identity provider
//
// Cloudinary, local disk, Google
package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/desertthunder/zylofm/internal/shared"
)

// MediaKind distinguishes uploads by how they are stored and played back.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaAudio MediaKind = "audio"
)

// ParseMediaKind validates a media kind name.
func ParseMediaKind(s string) (MediaKind, error) {
	switch k := MediaKind(strings.ToLower(strings.TrimSpace(s))); k {
	case MediaImage, MediaAudio:
		return k, nil
	default:
		return "", fmt.Errorf("%w: unknown media kind %q", shared.ErrInvalidInput, s)
	}
}

// UploadRequest describes a file to store.
type UploadRequest struct {
	Kind        MediaKind
	Filename    string
	ContentType string
	Folder      string // Folder is a sub-path below the backend's root, e.g. "mixes" or "covers".
	Body        io.Reader
}

// StoredMedia is the result of a successful upload.
type StoredMedia struct {
	PublicID        string    `json:"public_id"`
	URL             string    `json:"url"`
	Kind            MediaKind `json:"kind"`
	Bytes           int64     `json:"bytes"`
	Format          string    `json:"format,omitempty"`
	DurationSeconds int       `json:"duration_seconds,omitempty"`
}

// MediaStorage stores and deletes uploaded media.
type MediaStorage interface {
	// Upload stores the request body and returns its public location.
	Upload(ctx context.Context, req UploadRequest) (*StoredMedia, error)

	// Delete removes a previously uploaded file. Deleting a missing file is not an error.
	Delete(ctx context.Context, publicID string, kind MediaKind) error

	// Name returns the name of the backend (e.g., "cloudinary", "local")
	Name() string
}

// NewMediaStorage builds the backend selected by cfg.
func NewMediaStorage(cfg shared.StorageConfig, client *http.Client) (MediaStorage, error) {
	switch cfg.Backend {
	case "cloudinary":
		return NewCloudinaryStorage(cfg.Cloudinary, client)
	case "local", "":
		return NewLocalStorage(cfg.LocalDir, cfg.PublicBaseURL)
	default:
		return nil, fmt.Errorf("%w: unknown storage backend %q", shared.ErrInvalidConfig, cfg.Backend)
	}
}
