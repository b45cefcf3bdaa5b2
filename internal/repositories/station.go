package repositories

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/desertthunder/zylofm/internal/models"
	"github.com/desertthunder/zylofm/internal/shared"
)

const stationColumns = `id, sequence, name, slug, stream_url, description, image_url, genre_id, active, online,
	last_checked_at, created_at, updated_at, deleted_at`

// StationRepository implements [models.Repository] for [models.RadioStation] persistence.
type StationRepository struct {
	db *sqlx.DB
}

// NewStationRepository creates a new [StationRepository] with the given database connection
func NewStationRepository(db *sqlx.DB) *StationRepository {
	return &StationRepository{db: db}
}

// Create inserts a station. A duplicate slug is [shared.ErrConflict].
func (r *StationRepository) Create(station *models.RadioStation) error {
	if station.Slug == "" {
		station.Slug = shared.Slugify(station.Name)
	}
	if err := station.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "radio_stations")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	station.ID = shared.GenerateID()
	station.Sequence = sequence
	station.Touch()

	query := `
		INSERT INTO radio_stations (id, sequence, name, slug, stream_url, description, image_url, genre_id,
			active, online, last_checked_at, created_at, updated_at)
		VALUES (:id, :sequence, :name, :slug, :stream_url, :description, :image_url, :genre_id,
			:active, :online, :last_checked_at, :created_at, :updated_at)
	`
	if _, err := r.db.NamedExec(query, station); err != nil {
		return writeError("insert", "station", err)
	}
	return nil
}

// Get retrieves a station by ID
func (r *StationRepository) Get(id string) (*models.RadioStation, error) {
	return r.getBy("id", id)
}

// GetBySlug retrieves a station by its URL slug
func (r *StationRepository) GetBySlug(slug string) (*models.RadioStation, error) {
	return r.getBy("slug", slug)
}

func (r *StationRepository) getBy(column, value string) (*models.RadioStation, error) {
	var station models.RadioStation
	query := r.db.Rebind(fmt.Sprintf(`SELECT %s FROM radio_stations WHERE %s = ?`, stationColumns, column))
	if err := r.db.Get(&station, query, value); err != nil {
		return nil, readError("station", value, err)
	}
	return &station, nil
}

// Update modifies an existing station
func (r *StationRepository) Update(station *models.RadioStation) error {
	if err := station.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	station.Touch()

	query := `
		UPDATE radio_stations
		SET name = :name, slug = :slug, stream_url = :stream_url, description = :description,
			image_url = :image_url, genre_id = :genre_id, active = :active, updated_at = :updated_at
		WHERE id = :id
	`
	result, err := r.db.NamedExec(query, station)
	if err != nil {
		return writeError("update", "station", err)
	}
	return expectAffected(result, "station", station.ID)
}

// RecordProbe stores the outcome of a stream health check.
func (r *StationRepository) RecordProbe(id string, online bool, checkedAt time.Time) error {
	query := r.db.Rebind(`UPDATE radio_stations SET online = ?, last_checked_at = ? WHERE id = ?`)
	result, err := r.db.Exec(query, online, checkedAt.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to record probe: %w", err)
	}
	return expectAffected(result, "station", id)
}

// Delete removes a station
func (r *StationRepository) Delete(id string) error {
	result, err := r.db.Exec(r.db.Rebind(`DELETE FROM radio_stations WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete station: %w", err)
	}
	return expectAffected(result, "station", id)
}

// List returns stations ordered by name.
//
// Supported criteria: "active" (bool), "online" (bool), "genre_id".
func (r *StationRepository) List(criteria map[string]any) ([]*models.RadioStation, error) {
	query := `SELECT ` + stationColumns + ` FROM radio_stations WHERE 1 = 1`
	args := []any{}
	if active, ok := criteria["active"].(bool); ok {
		query += " AND active = ?"
		args = append(args, active)
	}
	if online, ok := criteria["online"].(bool); ok {
		query += " AND online = ?"
		args = append(args, online)
	}
	if genreID, ok := criteria["genre_id"].(string); ok && genreID != "" {
		query += " AND genre_id = ?"
		args = append(args, genreID)
	}
	query += " ORDER BY name ASC"
	query, args = paginate(query, args, criteria)

	stations := []*models.RadioStation{}
	if err := r.db.Select(&stations, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query stations: %w", err)
	}
	return stations, nil
}

// ListActive returns stations visible to listeners.
func (r *StationRepository) ListActive() ([]*models.RadioStation, error) {
	return r.List(map[string]any{"active": true})
}
