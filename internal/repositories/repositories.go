package repositories

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/desertthunder/zylofm/internal/shared"
)

// NextSequence atomically increments and returns the next sequence number for the given table.
//
// Sequence numbers give stable ordering independent of UUIDs and creation timestamps.
// They are not exposed over the API.
func NextSequence(db *sqlx.DB, table string) (int, error) {
	tx, err := db.Beginx()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	sequenceTable := table + "_sequence"

	if _, err = tx.Exec(fmt.Sprintf("UPDATE %s SET value = value + 1 WHERE id = 1", sequenceTable)); err != nil {
		return 0, fmt.Errorf("failed to increment sequence: %w", err)
	}

	var sequence int
	if err = tx.Get(&sequence, fmt.Sprintf("SELECT value FROM %s WHERE id = 1", sequenceTable)); err != nil {
		return 0, fmt.Errorf("failed to get sequence value: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit sequence transaction: %w", err)
	}

	return sequence, nil
}

// writeError translates driver constraint failures into [shared.ErrConflict].
func writeError(action, entity string, err error) error {
	switch {
	case shared.IsUniqueViolation(err):
		return fmt.Errorf("%w: %s already exists", shared.ErrConflict, entity)
	case shared.IsForeignKeyViolation(err):
		return fmt.Errorf("%w: %s references a missing or in-use record", shared.ErrConflict, entity)
	default:
		return fmt.Errorf("failed to %s %s: %w", action, entity, err)
	}
}

// readError maps [sql.ErrNoRows] onto [shared.ErrNotFound].
func readError(entity, key string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s %s", shared.ErrNotFound, entity, key)
	}
	return fmt.Errorf("failed to query %s: %w", entity, err)
}

// expectAffected returns [shared.ErrNotFound] when result touched no rows.
func expectAffected(result sql.Result, entity, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s %s", shared.ErrNotFound, entity, id)
	}
	return nil
}

// paginate appends LIMIT/OFFSET for positive limits found in criteria.
func paginate(query string, args []any, criteria map[string]any) (string, []any) {
	limit, _ := criteria["limit"].(int)
	if limit <= 0 {
		return query, args
	}
	offset, _ := criteria["offset"].(int)
	return query + " LIMIT ? OFFSET ?", append(args, limit, offset)
}

// likePattern wraps a search term for a case-insensitive LIKE match.
func likePattern(term string) string {
	return "%" + term + "%"
}

// Store groups the repositories that share one database handle.
type Store struct {
	DB       *sqlx.DB
	Users    *UserRepository
	Mixes    *MixRepository
	Genres   *GenreRepository
	Banners  *BannerRepository
	Stations *StationRepository
	Karaoke  *KaraokeRepository
	Requests *DJRequestRepository
}

// NewStore creates every repository over db.
func NewStore(db *sqlx.DB) *Store {
	return &Store{
		DB:       db,
		Users:    NewUserRepository(db),
		Mixes:    NewMixRepository(db),
		Genres:   NewGenreRepository(db),
		Banners:  NewBannerRepository(db),
		Stations: NewStationRepository(db),
		Karaoke:  NewKaraokeRepository(db),
		Requests: NewDJRequestRepository(db),
	}
}
