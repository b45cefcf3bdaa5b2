package tasks

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/zylofm/internal/models"
	"github.com/desertthunder/zylofm/internal/repositories"
	"github.com/desertthunder/zylofm/internal/shared"
)

// Moderator applies admin decisions to mixes and DJ requests.
type Moderator struct {
	store  *repositories.Store
	logger *log.Logger
}

// NewModerator creates a [Moderator] over store.
func NewModerator(store *repositories.Store, logger *log.Logger) *Moderator {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Moderator{store: store, logger: logger}
}

// ApproveMix publishes a pending or previously rejected mix.
func (m *Moderator) ApproveMix(ctx context.Context, mixID, reviewerID string) (*models.Mix, error) {
	return m.transition(ctx, mixID, models.MixApproved, reviewerID, "")
}

// RejectMix rejects a pending mix or takes down an approved one. The reason is optional.
func (m *Moderator) RejectMix(ctx context.Context, mixID, reviewerID, reason string) (*models.Mix, error) {
	return m.transition(ctx, mixID, models.MixRejected, reviewerID, reason)
}

func (m *Moderator) transition(ctx context.Context, mixID string, next models.MixStatus, reviewerID, reason string) (*models.Mix, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mix, err := m.store.Mixes.Get(mixID)
	if err != nil {
		return nil, err
	}
	if err := mix.Transition(next, reviewerID, reason); err != nil {
		return nil, err
	}
	if err := m.store.Mixes.SetStatus(mix.ID, mix.Status, mix.ReviewedBy, mix.RejectionReason); err != nil {
		return nil, err
	}

	m.logger.Info("mix reviewed", "mix_id", mix.ID, "status", mix.Status, "reviewer", reviewerID)
	return m.store.Mixes.Get(mix.ID)
}

// FeatureMix promotes or demotes a mix on the home page. Only approved mixes can be featured.
func (m *Moderator) FeatureMix(ctx context.Context, mixID string, featured bool) (*models.Mix, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mix, err := m.store.Mixes.Get(mixID)
	if err != nil {
		return nil, err
	}
	if featured && mix.Status != models.MixApproved {
		return nil, fmt.Errorf("%w: only approved mixes can be featured", shared.ErrInvalidTransition)
	}
	if err := m.store.Mixes.SetFeatured(mix.ID, featured); err != nil {
		return nil, err
	}

	m.logger.Info("mix featured", "mix_id", mix.ID, "featured", featured)
	mix.Featured = featured
	return mix, nil
}

// RequestDJ files a listener's application for the DJ role.
func (m *Moderator) RequestDJ(ctx context.Context, user *models.User, message, portfolioURL string) (*models.DJRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !models.CanRequestDJ(user.Role) {
		return nil, fmt.Errorf("%w: only listeners can request the DJ role", shared.ErrConflict)
	}

	req := models.NewDJRequest(user.ID, message, portfolioURL)
	if err := m.store.Requests.Create(req); err != nil {
		return nil, err
	}

	m.logger.Info("dj request submitted", "request_id", req.ID, "user_id", user.ID)
	return m.store.Requests.Get(req.ID)
}

// ApproveDJRequest resolves a request and promotes its applicant.
func (m *Moderator) ApproveDJRequest(ctx context.Context, requestID, reviewerID string) (*models.DJRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := m.store.Requests.Approve(requestID, reviewerID); err != nil {
		return nil, err
	}

	req, err := m.store.Requests.Get(requestID)
	if err != nil {
		return nil, err
	}
	m.logger.Info("dj request approved", "request_id", requestID, "user_id", req.UserID, "reviewer", reviewerID)
	return req, nil
}

// RejectDJRequest resolves a request without promoting its applicant.
func (m *Moderator) RejectDJRequest(ctx context.Context, requestID, reviewerID string) (*models.DJRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := m.store.Requests.Reject(requestID, reviewerID); err != nil {
		return nil, err
	}

	m.logger.Info("dj request rejected", "request_id", requestID, "reviewer", reviewerID)
	return m.store.Requests.Get(requestID)
}

// SetRole changes a user's role. Admins cannot demote themselves.
func (m *Moderator) SetRole(ctx context.Context, actorID, userID string, role models.Role) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if actorID == userID && role != models.RoleAdmin {
		return nil, fmt.Errorf("%w: admins cannot demote themselves", shared.ErrForbidden)
	}
	if err := m.store.Users.SetRole(userID, role); err != nil {
		return nil, err
	}

	m.logger.Info("role changed", "user_id", userID, "role", role, "actor", actorID)
	return m.store.Users.Get(userID)
}

// Stats returns the admin dashboard counters.
func (m *Moderator) Stats(ctx context.Context) (*Stats, error) {
	return CollectStats(ctx, m.store)
}

// PendingQueue returns mixes awaiting review and open DJ requests, oldest mixes first.
func (m *Moderator) PendingQueue(ctx context.Context) ([]*models.Mix, []*models.DJRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	mixes, err := m.store.Mixes.List(map[string]any{"status": models.MixPending})
	if err != nil {
		return nil, nil, err
	}
	requests, err := m.store.Requests.List(map[string]any{"status": models.RequestPending})
	if err != nil {
		return nil, nil, err
	}
	return mixes, requests, nil
}
