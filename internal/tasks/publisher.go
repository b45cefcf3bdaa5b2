package tasks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/zylofm/internal/models"
	"github.com/desertthunder/zylofm/internal/repositories"
	"github.com/desertthunder/zylofm/internal/services"
	"github.com/desertthunder/zylofm/internal/shared"
)

const sniffLen = 512

var (
	audioTypes = map[string]bool{
		"audio/mpeg": true, "audio/wave": true, "audio/aiff": true, "audio/flac": true,
		"audio/aac": true, "audio/mp4": true, "video/mp4": true, "application/ogg": true,
	}
	imageTypes = map[string]bool{
		"image/jpeg": true, "image/png": true, "image/webp": true, "image/gif": true,
	}
)

// FileInput is an uploaded file as received from a multipart form.
type FileInput struct {
	Filename string
	Size     int64 // Size is the declared size; 0 when unknown.
	Reader   io.Reader
}

// MixSubmission is a DJ's new mix.
type MixSubmission struct {
	Title           string
	Description     string
	GenreID         string
	DurationSeconds int
	Audio           *FileInput
	Cover           *FileInput
}

// MixChanges holds the fields a DJ may edit. Nil fields are left unchanged.
type MixChanges struct {
	Title           *string
	Description     *string
	GenreID         *string
	DurationSeconds *int
	Cover           *FileInput
}

// UploadLimits bounds accepted file sizes in bytes.
type UploadLimits struct {
	MaxAudioBytes int64
	MaxImageBytes int64
}

// UploadLimitsFromConfig converts the [uploads] config section.
func UploadLimitsFromConfig(cfg shared.UploadsConfig) UploadLimits {
	return UploadLimits{MaxAudioBytes: cfg.MaxAudioBytes(), MaxImageBytes: cfg.MaxImageBytes()}
}

func (l UploadLimits) max(kind services.MediaKind) int64 {
	if kind == services.MediaAudio {
		return l.MaxAudioBytes
	}
	return l.MaxImageBytes
}

// Publisher moves DJ uploads into media storage and the mix catalog.
type Publisher struct {
	store   *repositories.Store
	storage services.MediaStorage
	limits  UploadLimits
	logger  *log.Logger
}

// NewPublisher creates a [Publisher].
func NewPublisher(store *repositories.Store, storage services.MediaStorage, limits UploadLimits, logger *log.Logger) *Publisher {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Publisher{store: store, storage: storage, limits: limits, logger: logger}
}

// SubmitMix validates and uploads a new mix, which starts out pending review.
//
// Media already uploaded is deleted again when a later step fails.
func (p *Publisher) SubmitMix(ctx context.Context, dj *models.User, sub MixSubmission) (*models.Mix, error) {
	if !dj.Role.AtLeast(models.RoleDJ) {
		return nil, fmt.Errorf("%w: only DJs can upload mixes", shared.ErrForbidden)
	}
	if sub.Audio == nil {
		return nil, fmt.Errorf("%w: audio file is required", shared.ErrInvalidInput)
	}
	if _, err := p.store.Genres.Get(sub.GenreID); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown genre %q", shared.ErrInvalidInput, sub.GenreID)
		}
		return nil, err
	}

	mix := models.NewMix(dj.ID, sub.GenreID, sub.Title, sub.Description)
	mix.DurationSeconds = sub.DurationSeconds
	mix.AudioURL = "pending-upload"
	if err := mix.Validate(); err != nil {
		return nil, err
	}

	uploaded := map[string]services.MediaKind{}
	cleanup := func() {
		_ = deleteMedia(context.WithoutCancel(ctx), p.storage, p.logger, uploaded)
	}

	if sub.Cover != nil {
		cover, err := p.upload(ctx, services.MediaImage, "covers", sub.Cover)
		if err != nil {
			return nil, err
		}
		uploaded[cover.PublicID] = services.MediaImage
		mix.CoverURL, mix.CoverPublicID = cover.URL, cover.PublicID
	}

	audio, err := p.upload(ctx, services.MediaAudio, "mixes", sub.Audio)
	if err != nil {
		cleanup()
		return nil, err
	}
	uploaded[audio.PublicID] = services.MediaAudio
	mix.AudioURL, mix.AudioPublicID = audio.URL, audio.PublicID
	if mix.DurationSeconds == 0 {
		mix.DurationSeconds = audio.DurationSeconds
	}

	if err := p.store.Mixes.Create(mix); err != nil {
		cleanup()
		return nil, err
	}

	p.logger.Info("mix submitted", "mix_id", mix.ID, "dj_id", dj.ID, "bytes", audio.Bytes, "backend", p.storage.Name())
	return p.store.Mixes.Get(mix.ID)
}

// UploadAsset stores a standalone image or audio file for DJs and admins.
func (p *Publisher) UploadAsset(ctx context.Context, user *models.User, kind services.MediaKind, folder string, file *FileInput) (*services.StoredMedia, error) {
	if !user.Role.AtLeast(models.RoleDJ) {
		return nil, fmt.Errorf("%w: uploads require the DJ role", shared.ErrForbidden)
	}
	if file == nil {
		return nil, fmt.Errorf("%w: file is required", shared.ErrInvalidInput)
	}
	if folder == "" {
		folder = "assets"
	}

	media, err := p.upload(ctx, kind, folder, file)
	if err != nil {
		return nil, err
	}
	p.logger.Info("asset uploaded", "public_id", media.PublicID, "user_id", user.ID, "kind", kind)
	return media, nil
}

// UpdateMix applies an owner's edits. Editing a rejected mix resubmits it for review.
func (p *Publisher) UpdateMix(ctx context.Context, user *models.User, mixID string, changes MixChanges) (*models.Mix, error) {
	mix, err := p.store.Mixes.Get(mixID)
	if err != nil {
		return nil, err
	}
	if mix.DJID != user.ID && user.Role != models.RoleAdmin {
		return nil, fmt.Errorf("%w: not the owner of this mix", shared.ErrForbidden)
	}
	from := mix.Status

	if changes.Title != nil {
		mix.Title = strings.TrimSpace(*changes.Title)
	}
	if changes.Description != nil {
		mix.Description = strings.TrimSpace(*changes.Description)
	}
	if changes.DurationSeconds != nil {
		mix.DurationSeconds = *changes.DurationSeconds
	}
	if changes.GenreID != nil && *changes.GenreID != mix.GenreID {
		if _, err := p.store.Genres.Get(*changes.GenreID); err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil, fmt.Errorf("%w: unknown genre %q", shared.ErrInvalidInput, *changes.GenreID)
			}
			return nil, err
		}
		mix.GenreID = *changes.GenreID
	}
	if err := mix.Validate(); err != nil {
		return nil, err
	}

	if mix.Status == models.MixRejected && mix.DJID == user.ID {
		if err := mix.Transition(models.MixPending, "", ""); err != nil {
			return nil, err
		}
	}

	oldCover := mix.CoverPublicID
	var newCover string
	if changes.Cover != nil {
		cover, err := p.upload(ctx, services.MediaImage, "covers", changes.Cover)
		if err != nil {
			return nil, err
		}
		newCover = cover.PublicID
		mix.CoverURL, mix.CoverPublicID = cover.URL, cover.PublicID
	}

	if err := p.store.Mixes.UpdateFrom(mix, from); err != nil {
		if newCover != "" {
			_ = deleteMedia(context.WithoutCancel(ctx), p.storage, p.logger, map[string]services.MediaKind{newCover: services.MediaImage})
		}
		return nil, err
	}
	if newCover != "" && oldCover != "" {
		_ = deleteMedia(ctx, p.storage, p.logger, map[string]services.MediaKind{oldCover: services.MediaImage})
	}

	p.logger.Info("mix updated", "mix_id", mix.ID, "status", mix.Status, "user_id", user.ID)
	return p.store.Mixes.Get(mix.ID)
}

// DeleteMix removes a mix on behalf of its owner or an admin, then deletes its media.
//
// Storage failures are logged; the mix stays deleted.
func (p *Publisher) DeleteMix(ctx context.Context, user *models.User, mixID string) error {
	mix, err := p.store.Mixes.Get(mixID)
	if err != nil {
		return err
	}
	if mix.DJID != user.ID && user.Role != models.RoleAdmin {
		return fmt.Errorf("%w: not the owner of this mix", shared.ErrForbidden)
	}
	if err := p.store.Mixes.Delete(mix.ID); err != nil {
		return err
	}

	_ = deleteMedia(ctx, p.storage, p.logger, map[string]services.MediaKind{
		mix.AudioPublicID: services.MediaAudio,
		mix.CoverPublicID: services.MediaImage,
	})
	p.logger.Info("mix deleted", "mix_id", mix.ID, "user_id", user.ID)
	return nil
}

// upload checks size and content type, then streams the file to storage.
func (p *Publisher) upload(ctx context.Context, kind services.MediaKind, folder string, file *FileInput) (*services.StoredMedia, error) {
	limit := p.limits.max(kind)
	if limit > 0 && file.Size > limit {
		return nil, fmt.Errorf("%w: %s exceeds %d MB", shared.ErrUploadRejected, kind, limit>>20)
	}

	body, contentType, err := Sniff(kind, file.Filename, file.Reader)
	if err != nil {
		return nil, err
	}

	var capped io.Reader = body
	if limit > 0 {
		capped = &capReader{r: body, max: limit}
	}

	media, err := p.storage.Upload(ctx, services.UploadRequest{
		Kind:        kind,
		Filename:    file.Filename,
		ContentType: contentType,
		Folder:      folder,
		Body:        capped,
	})
	if err != nil {
		if errors.Is(err, shared.ErrUploadRejected) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to upload %s: %w", kind, err)
	}
	return media, nil
}

// Sniff detects the content type of r and rejects files that are not audio or images
// respectively. The returned reader yields the full content including the sniffed prefix.
func Sniff(kind services.MediaKind, filename string, r io.Reader) (io.Reader, string, error) {
	if r == nil {
		return nil, "", fmt.Errorf("%w: empty file", shared.ErrUploadRejected)
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, "", fmt.Errorf("failed to read upload: %w", err)
	}
	head = head[:n]
	if n == 0 {
		return nil, "", fmt.Errorf("%w: empty file", shared.ErrUploadRejected)
	}

	contentType := detectContentType(head)
	allowed := imageTypes
	if kind == services.MediaAudio {
		allowed = audioTypes
	}
	if !allowed[contentType] {
		return nil, "", fmt.Errorf("%w: %s is %s, not an accepted %s type", shared.ErrUploadRejected,
			filepath.Base(filename), contentType, kind)
	}
	return io.MultiReader(bytes.NewReader(head), r), contentType, nil
}

// detectContentType extends [http.DetectContentType] with audio signatures it does not know.
func detectContentType(head []byte) string {
	switch {
	case bytes.HasPrefix(head, []byte("fLaC")):
		return "audio/flac"
	case len(head) >= 2 && head[0] == 0xFF && head[1]&0xF6 == 0xF0:
		return "audio/aac"
	case len(head) >= 2 && head[0] == 0xFF && head[1]&0xE0 == 0xE0:
		return "audio/mpeg"
	case len(head) >= 8 && string(head[4:8]) == "ftyp" && len(head) >= 11 && string(head[8:11]) == "M4A":
		return "audio/mp4"
	}
	ct := http.DetectContentType(head)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return ct
}

// capReader fails once more than max bytes have been read.
type capReader struct {
	r   io.Reader
	n   int64
	max int64
}

func (c *capReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	if c.n > c.max {
		return n, fmt.Errorf("%w: file exceeds %d MB", shared.ErrUploadRejected, c.max>>20)
	}
	return n, err
}
