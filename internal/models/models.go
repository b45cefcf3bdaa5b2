// package models defines the data model for the ZyloFM radio and mix platform
package models

import (
	"time"
)

// Model defines the base interface for all persistent models.
type Model interface {
	RecordID() string // RecordID returns the unique identifier for this model
	Validate() error  // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
// Implementations handle database interactions for specific model types.
type Repository[T Model] interface {
	Create(model T) error                      // Create inserts a new model into the database
	Get(id string) (T, error)                  // Get retrieves a model by its ID
	Update(model T) error                      // Update modifies an existing model in the database
	Delete(id string) error                    // Delete removes a model from the database by its ID
	List(criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}

// Record holds the columns shared by every table.
type Record struct {
	ID        string     `json:"id" db:"id"`
	Sequence  int        `json:"-" db:"sequence"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"-" db:"deleted_at"`
}

// RecordID returns the record's UUID.
func (r *Record) RecordID() string { return r.ID }

// Touch stamps CreatedAt (when unset) and UpdatedAt with the current time.
func (r *Record) Touch() {
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
}

// Deleted reports whether the record was soft-deleted.
func (r *Record) Deleted() bool { return r.DeletedAt != nil }

// Page describes limit/offset pagination.
type Page struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// NewPage clamps a 1-based page number and size into a [Page].
func NewPage(page, size int) Page {
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	if page < 1 {
		page = 1
	}
	return Page{Limit: size, Offset: (page - 1) * size}
}

// Number returns the 1-based page number.
func (p Page) Number() int {
	if p.Limit <= 0 {
		return 1
	}
	return p.Offset/p.Limit + 1
}
