package repositories

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/desertthunder/zylofm/internal/models"
	"github.com/desertthunder/zylofm/internal/shared"
)

const genreColumns = `id, sequence, name, slug, description, image_url, created_at, updated_at, deleted_at`

// GenreRepository implements [models.Repository] for [models.Genre] persistence.
type GenreRepository struct {
	db *sqlx.DB
}

// NewGenreRepository creates a new [GenreRepository] with the given database connection
func NewGenreRepository(db *sqlx.DB) *GenreRepository {
	return &GenreRepository{db: db}
}

// Create inserts a genre. A duplicate slug is [shared.ErrConflict].
func (r *GenreRepository) Create(genre *models.Genre) error {
	if genre.Slug == "" {
		genre.Slug = shared.Slugify(genre.Name)
	}
	if err := genre.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "genres")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	genre.ID = shared.GenerateID()
	genre.Sequence = sequence
	genre.Touch()

	query := `
		INSERT INTO genres (id, sequence, name, slug, description, image_url, created_at, updated_at)
		VALUES (:id, :sequence, :name, :slug, :description, :image_url, :created_at, :updated_at)
	`
	if _, err := r.db.NamedExec(query, genre); err != nil {
		return writeError("insert", "genre", err)
	}
	return nil
}

// Get retrieves a genre by ID
func (r *GenreRepository) Get(id string) (*models.Genre, error) {
	var genre models.Genre
	query := r.db.Rebind(`SELECT ` + genreColumns + ` FROM genres WHERE id = ?`)
	if err := r.db.Get(&genre, query, id); err != nil {
		return nil, readError("genre", id, err)
	}
	return &genre, nil
}

// GetBySlug retrieves a genre by its URL slug
func (r *GenreRepository) GetBySlug(slug string) (*models.Genre, error) {
	var genre models.Genre
	query := r.db.Rebind(`SELECT ` + genreColumns + ` FROM genres WHERE slug = ?`)
	if err := r.db.Get(&genre, query, slug); err != nil {
		return nil, readError("genre", slug, err)
	}
	return &genre, nil
}

// Update modifies an existing genre
func (r *GenreRepository) Update(genre *models.Genre) error {
	if err := genre.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	genre.Touch()

	query := `
		UPDATE genres
		SET name = :name, slug = :slug, description = :description, image_url = :image_url, updated_at = :updated_at
		WHERE id = :id
	`
	result, err := r.db.NamedExec(query, genre)
	if err != nil {
		return writeError("update", "genre", err)
	}
	return expectAffected(result, "genre", genre.ID)
}

// Delete removes a genre. Genres still referenced by mixes, radio stations or karaoke tracks
// are [shared.ErrConflict].
func (r *GenreRepository) Delete(id string) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"mixes", "radio_stations", "karaoke_tracks"} {
		var inUse int
		query := tx.Rebind(fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE genre_id = ?`, table))
		if err := tx.Get(&inUse, query, id); err != nil {
			return fmt.Errorf("failed to check genre usage: %w", err)
		}
		if inUse > 0 {
			return fmt.Errorf("%w: genre %s is used by %d %s", shared.ErrConflict, id, inUse, strings.ReplaceAll(table, "_", " "))
		}
	}

	result, err := tx.Exec(tx.Rebind(`DELETE FROM genres WHERE id = ?`), id)
	if err != nil {
		return writeError("delete", "genre", err)
	}
	if err := expectAffected(result, "genre", id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit genre delete: %w", err)
	}
	return nil
}

// List returns all genres ordered by name. Criteria are ignored.
func (r *GenreRepository) List(criteria map[string]any) ([]*models.Genre, error) {
	query := `SELECT ` + genreColumns + ` FROM genres ORDER BY name ASC`
	query, args := paginate(query, nil, criteria)

	genres := []*models.Genre{}
	if err := r.db.Select(&genres, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query genres: %w", err)
	}
	return genres, nil
}
