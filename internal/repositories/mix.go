package repositories

import (
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/desertthunder/zylofm/internal/models"
	"github.com/desertthunder/zylofm/internal/shared"
)

const mixSelect = `
	SELECT m.id, m.sequence, m.title, m.description, m.dj_id, m.genre_id, m.audio_url, m.audio_public_id,
		m.cover_url, m.cover_public_id, m.duration_seconds, m.status, m.rejection_reason, m.reviewed_by,
		m.reviewed_at, m.play_count, m.featured, m.created_at, m.updated_at, m.deleted_at,
		COALESCE(u.name, '') AS dj_name, COALESCE(g.name, '') AS genre_name, COALESCE(g.slug, '') AS genre_slug
	FROM mixes m
	LEFT JOIN users u ON u.id = m.dj_id
	LEFT JOIN genres g ON g.id = m.genre_id`

// MixRepository implements [models.Repository] for [models.Mix] persistence.
type MixRepository struct {
	db *sqlx.DB
}

// NewMixRepository creates a new [MixRepository] with the given database connection
func NewMixRepository(db *sqlx.DB) *MixRepository {
	return &MixRepository{db: db}
}

// Create inserts a new mix. A missing DJ or genre is [shared.ErrConflict].
func (r *MixRepository) Create(mix *models.Mix) error {
	if mix.Status == "" {
		mix.Status = models.MixPending
	}
	if err := mix.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "mixes")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	mix.ID = shared.GenerateID()
	mix.Sequence = sequence
	mix.Touch()

	query := `
		INSERT INTO mixes (id, sequence, title, description, dj_id, genre_id, audio_url, audio_public_id,
			cover_url, cover_public_id, duration_seconds, status, rejection_reason, reviewed_by, reviewed_at,
			play_count, featured, created_at, updated_at)
		VALUES (:id, :sequence, :title, :description, :dj_id, :genre_id, :audio_url, :audio_public_id,
			:cover_url, :cover_public_id, :duration_seconds, :status, :rejection_reason, :reviewed_by, :reviewed_at,
			:play_count, :featured, :created_at, :updated_at)
	`
	if _, err := r.db.NamedExec(query, mix); err != nil {
		return writeError("insert", "mix", err)
	}
	return nil
}

// Get retrieves a mix by ID with its DJ and genre names, excluding soft-deleted mixes.
func (r *MixRepository) Get(id string) (*models.Mix, error) {
	var mix models.Mix
	query := r.db.Rebind(mixSelect + ` WHERE m.id = ? AND m.deleted_at IS NULL`)
	if err := r.db.Get(&mix, query, id); err != nil {
		return nil, readError("mix", id, err)
	}
	return &mix, nil
}

// Update persists an edit to a mix whose stored status still matches mix.Status.
func (r *MixRepository) Update(mix *models.Mix) error {
	return r.UpdateFrom(mix, mix.Status)
}

// UpdateFrom persists editable fields and the review state carried by mix, provided the stored
// status is still from. A review that landed after mix was read is [shared.ErrConflict].
// The featured flag is never written here.
func (r *MixRepository) UpdateFrom(mix *models.Mix, from models.MixStatus) error {
	if err := mix.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	mix.Touch()

	query := r.db.Rebind(`
		UPDATE mixes
		SET title = ?, description = ?, genre_id = ?, audio_url = ?, audio_public_id = ?, cover_url = ?,
			cover_public_id = ?, duration_seconds = ?, status = ?, rejection_reason = ?, reviewed_by = ?,
			reviewed_at = ?, updated_at = ?
		WHERE id = ? AND status = ? AND deleted_at IS NULL
	`)
	result, err := r.db.Exec(query,
		mix.Title, mix.Description, mix.GenreID, mix.AudioURL, mix.AudioPublicID, mix.CoverURL,
		mix.CoverPublicID, mix.DurationSeconds, mix.Status, mix.RejectionReason, mix.ReviewedBy,
		mix.ReviewedAt, mix.UpdatedAt, mix.ID, from)
	if err != nil {
		return writeError("update", "mix", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var current models.MixStatus
	err = r.db.Get(&current, r.db.Rebind(`SELECT status FROM mixes WHERE id = ? AND deleted_at IS NULL`), mix.ID)
	if err != nil {
		return readError("mix", mix.ID, err)
	}
	return fmt.Errorf("%w: mix %s is now %s", shared.ErrConflict, mix.ID, current)
}

// SetStatus records a moderation decision. Rejections also clear the featured flag.
func (r *MixRepository) SetStatus(id string, status models.MixStatus, reviewerID, reason string) error {
	now := time.Now().UTC()
	set := "status = ?, rejection_reason = ?, reviewed_by = ?, reviewed_at = ?, updated_at = ?"
	if status == models.MixRejected {
		set += ", featured = FALSE"
	}
	query := r.db.Rebind(`UPDATE mixes SET ` + set + ` WHERE id = ? AND deleted_at IS NULL`)
	result, err := r.db.Exec(query, status, reason, reviewerID, now, now, id)
	if err != nil {
		return writeError("update", "mix", err)
	}
	return expectAffected(result, "mix", id)
}

// SetFeatured toggles whether a mix is promoted on the home page.
func (r *MixRepository) SetFeatured(id string, featured bool) error {
	query := r.db.Rebind(`UPDATE mixes SET featured = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`)
	result, err := r.db.Exec(query, featured, time.Now().UTC(), id)
	if err != nil {
		return writeError("update", "mix", err)
	}
	return expectAffected(result, "mix", id)
}

// IncrementPlays bumps the play counter of an approved mix and returns the new count.
func (r *MixRepository) IncrementPlays(id string) (int, error) {
	query := r.db.Rebind(`UPDATE mixes SET play_count = play_count + 1
		WHERE id = ? AND status = 'approved' AND deleted_at IS NULL`)
	result, err := r.db.Exec(query, id)
	if err != nil {
		return 0, fmt.Errorf("failed to increment plays: %w", err)
	}
	if err := expectAffected(result, "mix", id); err != nil {
		return 0, err
	}

	var count int
	if err := r.db.Get(&count, r.db.Rebind(`SELECT play_count FROM mixes WHERE id = ?`), id); err != nil {
		return 0, readError("mix", id, err)
	}
	return count, nil
}

// Delete soft-deletes a mix by ID
func (r *MixRepository) Delete(id string) error {
	query := r.db.Rebind(`UPDATE mixes SET deleted_at = ?, featured = ? WHERE id = ? AND deleted_at IS NULL`)
	result, err := r.db.Exec(query, time.Now().UTC(), false, id)
	if err != nil {
		return fmt.Errorf("failed to delete mix: %w", err)
	}
	return expectAffected(result, "mix", id)
}

// List retrieves mixes of any status.
//
// Supported criteria: "status", "dj_id", "genre_id", "search", "limit", "offset".
// Results are ordered oldest first so moderation queues are worked in submission order.
func (r *MixRepository) List(criteria map[string]any) ([]*models.Mix, error) {
	query := mixSelect + ` WHERE m.deleted_at IS NULL`
	args := []any{}

	switch status := criteria["status"].(type) {
	case models.MixStatus:
		if status != "" {
			query += " AND m.status = ?"
			args = append(args, string(status))
		}
	case string:
		if status != "" {
			query += " AND m.status = ?"
			args = append(args, status)
		}
	}
	if djID, ok := criteria["dj_id"].(string); ok && djID != "" {
		query += " AND m.dj_id = ?"
		args = append(args, djID)
	}
	if genreID, ok := criteria["genre_id"].(string); ok && genreID != "" {
		query += " AND m.genre_id = ?"
		args = append(args, genreID)
	}
	if search, ok := criteria["search"].(string); ok && strings.TrimSpace(search) != "" {
		query += " AND LOWER(m.title) LIKE ?"
		args = append(args, likePattern(strings.ToLower(strings.TrimSpace(search))))
	}

	query += " ORDER BY m.sequence ASC"
	query, args = paginate(query, args, criteria)

	return r.selectMixes(query, args...)
}

// ListPublic returns approved mixes for listeners.
func (r *MixRepository) ListPublic(q models.MixQuery) ([]*models.Mix, error) {
	where, args := publicFilter(q)
	query := mixSelect + where

	switch q.Sort {
	case models.SortPopular:
		query += " ORDER BY m.play_count DESC, m.sequence DESC"
	default:
		query += " ORDER BY m.sequence DESC"
	}

	limit := q.Page.Limit
	if limit <= 0 {
		limit = models.DefaultPageSize
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, q.Page.Offset)

	return r.selectMixes(query, args...)
}

// CountPublic returns the number of approved mixes matching q, ignoring pagination.
func (r *MixRepository) CountPublic(q models.MixQuery) (int, error) {
	where, args := publicFilter(q)
	var count int
	query := `SELECT COUNT(*) FROM mixes m LEFT JOIN users u ON u.id = m.dj_id LEFT JOIN genres g ON g.id = m.genre_id` + where
	if err := r.db.Get(&count, r.db.Rebind(query), args...); err != nil {
		return 0, fmt.Errorf("failed to count mixes: %w", err)
	}
	return count, nil
}

func publicFilter(q models.MixQuery) (string, []any) {
	where := ` WHERE m.deleted_at IS NULL AND m.status = ?`
	args := []any{string(models.MixApproved)}

	if q.GenreID != "" {
		where += " AND m.genre_id = ?"
		args = append(args, q.GenreID)
	}
	if q.DJID != "" {
		where += " AND m.dj_id = ?"
		args = append(args, q.DJID)
	}
	if q.Featured {
		where += " AND m.featured = ?"
		args = append(args, true)
	}
	if search := strings.ToLower(strings.TrimSpace(q.Search)); search != "" {
		where += " AND (LOWER(m.title) LIKE ? OR LOWER(m.description) LIKE ? OR LOWER(u.name) LIKE ?)"
		pattern := likePattern(search)
		args = append(args, pattern, pattern, pattern)
	}
	return where, args
}

// CountByStatus returns the number of live mixes per moderation status.
func (r *MixRepository) CountByStatus() (map[models.MixStatus]int, error) {
	var rows []struct {
		Status models.MixStatus `db:"status"`
		Count  int              `db:"count"`
	}
	query := `SELECT status, COUNT(*) AS count FROM mixes WHERE deleted_at IS NULL GROUP BY status`
	if err := r.db.Select(&rows, query); err != nil {
		return nil, fmt.Errorf("failed to count mixes: %w", err)
	}

	counts := map[models.MixStatus]int{models.MixPending: 0, models.MixApproved: 0, models.MixRejected: 0}
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// TotalPlays sums play counts over live mixes.
func (r *MixRepository) TotalPlays() (int, error) {
	var total int
	if err := r.db.Get(&total, `SELECT COALESCE(SUM(play_count), 0) FROM mixes WHERE deleted_at IS NULL`); err != nil {
		return 0, fmt.Errorf("failed to sum plays: %w", err)
	}
	return total, nil
}

// ListRejectedBefore returns live rejected mixes reviewed before cutoff.
func (r *MixRepository) ListRejectedBefore(cutoff time.Time) ([]*models.Mix, error) {
	query := mixSelect + ` WHERE m.deleted_at IS NULL AND m.status = ? AND m.reviewed_at IS NOT NULL AND m.reviewed_at < ?
		ORDER BY m.sequence ASC`
	return r.selectMixes(query, string(models.MixRejected), cutoff.UTC())
}

func (r *MixRepository) selectMixes(query string, args ...any) ([]*models.Mix, error) {
	mixes := []*models.Mix{}
	if err := r.db.Select(&mixes, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query mixes: %w", err)
	}
	return mixes, nil
}
