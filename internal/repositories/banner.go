package repositories

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/desertthunder/zylofm/internal/models"
	"github.com/desertthunder/zylofm/internal/shared"
)

const bannerColumns = `id, sequence, title, subtitle, image_url, link_url, position, active, created_at, updated_at, deleted_at`

// BannerRepository implements [models.Repository] for [models.Banner] persistence.
type BannerRepository struct {
	db *sqlx.DB
}

// NewBannerRepository creates a new [BannerRepository] with the given database connection
func NewBannerRepository(db *sqlx.DB) *BannerRepository {
	return &BannerRepository{db: db}
}

// Create inserts a banner
func (r *BannerRepository) Create(banner *models.Banner) error {
	if err := banner.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "banners")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	banner.ID = shared.GenerateID()
	banner.Sequence = sequence
	banner.Touch()

	query := `
		INSERT INTO banners (id, sequence, title, subtitle, image_url, link_url, position, active, created_at, updated_at)
		VALUES (:id, :sequence, :title, :subtitle, :image_url, :link_url, :position, :active, :created_at, :updated_at)
	`
	if _, err := r.db.NamedExec(query, banner); err != nil {
		return writeError("insert", "banner", err)
	}
	return nil
}

// Get retrieves a banner by ID
func (r *BannerRepository) Get(id string) (*models.Banner, error) {
	var banner models.Banner
	query := r.db.Rebind(`SELECT ` + bannerColumns + ` FROM banners WHERE id = ?`)
	if err := r.db.Get(&banner, query, id); err != nil {
		return nil, readError("banner", id, err)
	}
	return &banner, nil
}

// Update modifies an existing banner
func (r *BannerRepository) Update(banner *models.Banner) error {
	if err := banner.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	banner.Touch()

	query := `
		UPDATE banners
		SET title = :title, subtitle = :subtitle, image_url = :image_url, link_url = :link_url,
			position = :position, active = :active, updated_at = :updated_at
		WHERE id = :id
	`
	result, err := r.db.NamedExec(query, banner)
	if err != nil {
		return writeError("update", "banner", err)
	}
	return expectAffected(result, "banner", banner.ID)
}

// Delete removes a banner
func (r *BannerRepository) Delete(id string) error {
	result, err := r.db.Exec(r.db.Rebind(`DELETE FROM banners WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete banner: %w", err)
	}
	return expectAffected(result, "banner", id)
}

// List returns banners ordered by position. The "active" criterion (bool) filters on visibility.
func (r *BannerRepository) List(criteria map[string]any) ([]*models.Banner, error) {
	query := `SELECT ` + bannerColumns + ` FROM banners`
	args := []any{}
	if active, ok := criteria["active"].(bool); ok {
		query += " WHERE active = ?"
		args = append(args, active)
	}
	query += " ORDER BY position ASC, sequence ASC"
	query, args = paginate(query, args, criteria)

	banners := []*models.Banner{}
	if err := r.db.Select(&banners, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query banners: %w", err)
	}
	return banners, nil
}

// ListActive returns the banners shown on the home page.
func (r *BannerRepository) ListActive() ([]*models.Banner, error) {
	return r.List(map[string]any{"active": true})
}
