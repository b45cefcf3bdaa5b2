package repositories

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/desertthunder/zylofm/internal/models"
	"github.com/desertthunder/zylofm/internal/shared"
)

const karaokeColumns = `id, sequence, title, artist, audio_url, audio_public_id, lyrics, cover_url, duration_seconds,
	genre_id, created_at, updated_at, deleted_at`

// KaraokeRepository implements [models.Repository] for [models.KaraokeTrack] persistence.
type KaraokeRepository struct {
	db *sqlx.DB
}

// NewKaraokeRepository creates a new [KaraokeRepository] with the given database connection
func NewKaraokeRepository(db *sqlx.DB) *KaraokeRepository {
	return &KaraokeRepository{db: db}
}

// Create inserts a karaoke track
func (r *KaraokeRepository) Create(track *models.KaraokeTrack) error {
	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "karaoke_tracks")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	track.ID = shared.GenerateID()
	track.Sequence = sequence
	track.Touch()

	query := `
		INSERT INTO karaoke_tracks (id, sequence, title, artist, audio_url, audio_public_id, lyrics, cover_url,
			duration_seconds, genre_id, created_at, updated_at)
		VALUES (:id, :sequence, :title, :artist, :audio_url, :audio_public_id, :lyrics, :cover_url,
			:duration_seconds, :genre_id, :created_at, :updated_at)
	`
	if _, err := r.db.NamedExec(query, track); err != nil {
		return writeError("insert", "karaoke track", err)
	}
	return nil
}

// Get retrieves a karaoke track by ID
func (r *KaraokeRepository) Get(id string) (*models.KaraokeTrack, error) {
	var track models.KaraokeTrack
	query := r.db.Rebind(`SELECT ` + karaokeColumns + ` FROM karaoke_tracks WHERE id = ?`)
	if err := r.db.Get(&track, query, id); err != nil {
		return nil, readError("karaoke track", id, err)
	}
	return &track, nil
}

// Update modifies an existing karaoke track
func (r *KaraokeRepository) Update(track *models.KaraokeTrack) error {
	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	track.Touch()

	query := `
		UPDATE karaoke_tracks
		SET title = :title, artist = :artist, audio_url = :audio_url, audio_public_id = :audio_public_id,
			lyrics = :lyrics, cover_url = :cover_url, duration_seconds = :duration_seconds,
			genre_id = :genre_id, updated_at = :updated_at
		WHERE id = :id
	`
	result, err := r.db.NamedExec(query, track)
	if err != nil {
		return writeError("update", "karaoke track", err)
	}
	return expectAffected(result, "karaoke track", track.ID)
}

// Delete removes a karaoke track
func (r *KaraokeRepository) Delete(id string) error {
	result, err := r.db.Exec(r.db.Rebind(`DELETE FROM karaoke_tracks WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete karaoke track: %w", err)
	}
	return expectAffected(result, "karaoke track", id)
}

// List returns karaoke tracks ordered by artist then title.
//
// Supported criteria: "genre_id", "limit", "offset".
func (r *KaraokeRepository) List(criteria map[string]any) ([]*models.KaraokeTrack, error) {
	query := `SELECT ` + karaokeColumns + ` FROM karaoke_tracks`
	args := []any{}
	if genreID, ok := criteria["genre_id"].(string); ok && genreID != "" {
		query += " WHERE genre_id = ?"
		args = append(args, genreID)
	}
	query += " ORDER BY artist ASC, title ASC"
	query, args = paginate(query, args, criteria)
	return r.selectTracks(query, args...)
}

// Search matches term against title and artist, case-insensitively.
func (r *KaraokeRepository) Search(term string, page models.Page) ([]*models.KaraokeTrack, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return r.List(map[string]any{"limit": page.Limit, "offset": page.Offset})
	}
	pattern := likePattern(term)
	query := `SELECT ` + karaokeColumns + ` FROM karaoke_tracks
		WHERE LOWER(title) LIKE ? OR LOWER(artist) LIKE ?
		ORDER BY artist ASC, title ASC LIMIT ? OFFSET ?`
	limit := page.Limit
	if limit <= 0 {
		limit = models.DefaultPageSize
	}
	return r.selectTracks(query, pattern, pattern, limit, page.Offset)
}

func (r *KaraokeRepository) selectTracks(query string, args ...any) ([]*models.KaraokeTrack, error) {
	tracks := []*models.KaraokeTrack{}
	if err := r.db.Select(&tracks, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query karaoke tracks: %w", err)
	}
	return tracks, nil
}
