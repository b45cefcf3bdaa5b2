package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/zylofm/internal/shared"
)

// MixStatus is a mix's position in the moderation workflow.
type MixStatus string

const (
	MixPending  MixStatus = "pending"
	MixApproved MixStatus = "approved"
	MixRejected MixStatus = "rejected"
)

var mixTransitions = map[MixStatus][]MixStatus{
	MixPending:  {MixApproved, MixRejected},
	MixApproved: {MixRejected},
	MixRejected: {MixApproved, MixPending},
}

// ParseMixStatus validates a status name.
func ParseMixStatus(s string) (MixStatus, error) {
	status := MixStatus(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := mixTransitions[status]; !ok {
		return "", fmt.Errorf("%w: unknown mix status %q", shared.ErrInvalidInput, s)
	}
	return status, nil
}

// CanTransition reports whether a mix may move from s to next.
func (s MixStatus) CanTransition(next MixStatus) bool {
	for _, allowed := range mixTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Mix is a DJ-uploaded set. Only approved mixes are visible to listeners.
type Mix struct {
	Record
	Title           string     `json:"title" db:"title"`
	Description     string     `json:"description" db:"description"`
	DJID            string     `json:"dj_id" db:"dj_id"`
	GenreID         string     `json:"genre_id" db:"genre_id"`
	AudioURL        string     `json:"audio_url" db:"audio_url"`
	AudioPublicID   string     `json:"-" db:"audio_public_id"`
	CoverURL        string     `json:"cover_url" db:"cover_url"`
	CoverPublicID   string     `json:"-" db:"cover_public_id"`
	DurationSeconds int        `json:"duration_seconds" db:"duration_seconds"`
	Status          MixStatus  `json:"status" db:"status"`
	RejectionReason string     `json:"rejection_reason,omitempty" db:"rejection_reason"`
	ReviewedBy      string     `json:"reviewed_by,omitempty" db:"reviewed_by"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty" db:"reviewed_at"`
	PlayCount       int        `json:"play_count" db:"play_count"`
	Featured        bool       `json:"featured" db:"featured"`

	// Read-only, filled from joins.
	DJName    string `json:"dj_name" db:"dj_name"`
	GenreName string `json:"genre_name" db:"genre_name"`
	GenreSlug string `json:"genre_slug" db:"genre_slug"`
}

// NewMix creates a pending mix owned by djID.
func NewMix(djID, genreID, title, description string) *Mix {
	return &Mix{
		DJID:        djID,
		GenreID:     genreID,
		Title:       strings.TrimSpace(title),
		Description: strings.TrimSpace(description),
		Status:      MixPending,
	}
}

// Validate checks required fields and bounds.
func (m *Mix) Validate() error {
	if m.Title == "" {
		return fmt.Errorf("%w: title is required", shared.ErrInvalidInput)
	}
	if len(m.Title) > 200 {
		return fmt.Errorf("%w: title must be at most 200 characters", shared.ErrInvalidInput)
	}
	if len(m.Description) > 5000 {
		return fmt.Errorf("%w: description must be at most 5000 characters", shared.ErrInvalidInput)
	}
	if m.DJID == "" {
		return fmt.Errorf("%w: dj is required", shared.ErrInvalidInput)
	}
	if m.GenreID == "" {
		return fmt.Errorf("%w: genre is required", shared.ErrInvalidInput)
	}
	if m.AudioURL == "" {
		return fmt.Errorf("%w: audio is required", shared.ErrInvalidInput)
	}
	if m.DurationSeconds < 0 {
		return fmt.Errorf("%w: duration cannot be negative", shared.ErrInvalidInput)
	}
	if _, ok := mixTransitions[m.Status]; !ok {
		return fmt.Errorf("%w: unknown status %q", shared.ErrInvalidInput, m.Status)
	}
	return nil
}

// Transition moves the mix to next, recording the reviewer and, for rejections, the reason.
func (m *Mix) Transition(next MixStatus, reviewerID, reason string) error {
	if !m.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", shared.ErrInvalidTransition, m.Status, next)
	}

	now := time.Now().UTC()
	m.Status = next
	switch next {
	case MixRejected:
		m.RejectionReason = strings.TrimSpace(reason)
		m.ReviewedBy = reviewerID
		m.ReviewedAt = &now
		m.Featured = false
	case MixApproved:
		m.RejectionReason = ""
		m.ReviewedBy = reviewerID
		m.ReviewedAt = &now
	case MixPending:
		m.ReviewedBy = ""
		m.ReviewedAt = nil
	}
	return nil
}

// IsPublic reports whether listeners may see the mix.
func (m *Mix) IsPublic() bool {
	return m.Status == MixApproved && !m.Deleted()
}

// VisibleTo reports whether a viewer with the given id and role may see the mix.
func (m *Mix) VisibleTo(userID string, role Role) bool {
	if m.IsPublic() {
		return true
	}
	if m.Deleted() {
		return false
	}
	return role == RoleAdmin || (userID != "" && userID == m.DJID)
}

// MixSort orders public mix listings.
type MixSort string

const (
	SortLatest  MixSort = "latest"
	SortPopular MixSort = "popular"
)

// MixQuery filters mix listings.
type MixQuery struct {
	GenreID  string
	DJID     string
	Search   string
	Status   MixStatus
	Featured bool
	Sort     MixSort
	Page     Page
}
