package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/zylofm/internal/shared"
)

// RequestStatus tracks a DJ application.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// DJRequest is a listener's application for the DJ role.
type DJRequest struct {
	Record
	UserID       string        `json:"user_id" db:"user_id"`
	Message      string        `json:"message" db:"message"`
	PortfolioURL string        `json:"portfolio_url" db:"portfolio_url"`
	Status       RequestStatus `json:"status" db:"status"`
	ReviewedBy   string        `json:"reviewed_by,omitempty" db:"reviewed_by"`
	ReviewedAt   *time.Time    `json:"reviewed_at,omitempty" db:"reviewed_at"`

	UserName  string `json:"user_name" db:"user_name"`
	UserEmail string `json:"user_email" db:"user_email"`
}

// NewDJRequest creates a pending request for userID.
func NewDJRequest(userID, message, portfolioURL string) *DJRequest {
	return &DJRequest{
		UserID:       userID,
		Message:      strings.TrimSpace(message),
		PortfolioURL: strings.TrimSpace(portfolioURL),
		Status:       RequestPending,
	}
}

func (r *DJRequest) Validate() error {
	if r.UserID == "" {
		return fmt.Errorf("%w: user is required", shared.ErrInvalidInput)
	}
	if len(r.Message) > 2000 {
		return fmt.Errorf("%w: message must be at most 2000 characters", shared.ErrInvalidInput)
	}
	switch r.Status {
	case RequestPending, RequestApproved, RequestRejected:
	default:
		return fmt.Errorf("%w: unknown request status %q", shared.ErrInvalidInput, r.Status)
	}
	return validateOptionalURL("portfolio_url", r.PortfolioURL)
}

// Resolve marks a pending request approved or rejected by reviewerID.
func (r *DJRequest) Resolve(status RequestStatus, reviewerID string) error {
	if r.Status != RequestPending {
		return fmt.Errorf("%w: request already %s", shared.ErrInvalidTransition, r.Status)
	}
	if status != RequestApproved && status != RequestRejected {
		return fmt.Errorf("%w: cannot resolve request as %s", shared.ErrInvalidTransition, status)
	}
	now := time.Now().UTC()
	r.Status = status
	r.ReviewedBy = reviewerID
	r.ReviewedAt = &now
	return nil
}

// CanRequestDJ reports whether a user with role may apply for the DJ role.
func CanRequestDJ(role Role) bool { return role == RoleListener }
