package repositories

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/desertthunder/zylofm/internal/models"
	"github.com/desertthunder/zylofm/internal/shared"
)

const djRequestSelect = `
	SELECT r.id, r.sequence, r.user_id, r.message, r.portfolio_url, r.status, r.reviewed_by, r.reviewed_at,
		r.created_at, r.updated_at, r.deleted_at,
		COALESCE(u.name, '') AS user_name, COALESCE(u.email, '') AS user_email
	FROM dj_requests r
	LEFT JOIN users u ON u.id = r.user_id`

// DJRequestRepository implements [models.Repository] for [models.DJRequest] persistence.
type DJRequestRepository struct {
	db *sqlx.DB
}

// NewDJRequestRepository creates a new [DJRequestRepository] with the given database connection
func NewDJRequestRepository(db *sqlx.DB) *DJRequestRepository {
	return &DJRequestRepository{db: db}
}

// Create inserts a pending request. A user with a pending request already is [shared.ErrConflict];
// a unique index on open requests settles concurrent submissions.
func (r *DJRequestRepository) Create(req *models.DJRequest) error {
	if req.Status == "" {
		req.Status = models.RequestPending
	}
	if err := req.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if _, err := r.GetPendingForUser(req.UserID); err == nil {
		return fmt.Errorf("%w: user already has a pending DJ request", shared.ErrConflict)
	}

	sequence, err := NextSequence(r.db, "dj_requests")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	req.ID = shared.GenerateID()
	req.Sequence = sequence
	req.Touch()

	query := `
		INSERT INTO dj_requests (id, sequence, user_id, message, portfolio_url, status, reviewed_by, reviewed_at, created_at, updated_at)
		VALUES (:id, :sequence, :user_id, :message, :portfolio_url, :status, :reviewed_by, :reviewed_at, :created_at, :updated_at)
	`
	if _, err := r.db.NamedExec(query, req); err != nil {
		if shared.IsUniqueViolation(err) {
			return fmt.Errorf("%w: user already has a pending DJ request", shared.ErrConflict)
		}
		return writeError("insert", "dj request", err)
	}
	return nil
}

// Get retrieves a request with the applicant's name and email.
func (r *DJRequestRepository) Get(id string) (*models.DJRequest, error) {
	var req models.DJRequest
	query := r.db.Rebind(djRequestSelect + ` WHERE r.id = ? AND r.deleted_at IS NULL`)
	if err := r.db.Get(&req, query, id); err != nil {
		return nil, readError("dj request", id, err)
	}
	return &req, nil
}

// GetPendingForUser returns the user's open request, or [shared.ErrNotFound].
func (r *DJRequestRepository) GetPendingForUser(userID string) (*models.DJRequest, error) {
	var req models.DJRequest
	query := r.db.Rebind(djRequestSelect + ` WHERE r.user_id = ? AND r.status = ? AND r.deleted_at IS NULL`)
	if err := r.db.Get(&req, query, userID, string(models.RequestPending)); err != nil {
		return nil, readError("pending dj request for user", userID, err)
	}
	return &req, nil
}

// Update modifies message and portfolio of an existing request
func (r *DJRequestRepository) Update(req *models.DJRequest) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	req.Touch()

	query := `
		UPDATE dj_requests
		SET message = :message, portfolio_url = :portfolio_url, status = :status, reviewed_by = :reviewed_by,
			reviewed_at = :reviewed_at, updated_at = :updated_at
		WHERE id = :id AND deleted_at IS NULL
	`
	result, err := r.db.NamedExec(query, req)
	if err != nil {
		return writeError("update", "dj request", err)
	}
	return expectAffected(result, "dj request", req.ID)
}

// Delete soft-deletes a request by ID
func (r *DJRequestRepository) Delete(id string) error {
	query := r.db.Rebind(`UPDATE dj_requests SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`)
	result, err := r.db.Exec(query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete dj request: %w", err)
	}
	return expectAffected(result, "dj request", id)
}

// List returns requests newest first.
//
// Supported criteria: "status" ([models.RequestStatus] or string), "user_id", "limit", "offset".
func (r *DJRequestRepository) List(criteria map[string]any) ([]*models.DJRequest, error) {
	query := djRequestSelect + ` WHERE r.deleted_at IS NULL`
	args := []any{}

	switch status := criteria["status"].(type) {
	case models.RequestStatus:
		if status != "" {
			query += " AND r.status = ?"
			args = append(args, string(status))
		}
	case string:
		if status != "" {
			query += " AND r.status = ?"
			args = append(args, status)
		}
	}
	if userID, ok := criteria["user_id"].(string); ok && userID != "" {
		query += " AND r.user_id = ?"
		args = append(args, userID)
	}

	query += " ORDER BY r.sequence DESC"
	query, args = paginate(query, args, criteria)

	requests := []*models.DJRequest{}
	if err := r.db.Select(&requests, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query dj requests: %w", err)
	}
	return requests, nil
}

// Approve resolves a pending request and promotes a listener applicant to DJ in one transaction.
//
// Users who already hold the DJ or admin role keep it.
func (r *DJRequestRepository) Approve(id, reviewerID string) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := resolveRequest(tx, id, models.RequestApproved, reviewerID); err != nil {
		return err
	}

	var userID string
	if err := tx.Get(&userID, tx.Rebind(`SELECT user_id FROM dj_requests WHERE id = ?`), id); err != nil {
		return readError("dj request", id, err)
	}

	promote := tx.Rebind(`UPDATE users SET role = ?, updated_at = ? WHERE id = ? AND role = ? AND deleted_at IS NULL`)
	if _, err := tx.Exec(promote, string(models.RoleDJ), time.Now().UTC(), userID, string(models.RoleListener)); err != nil {
		return fmt.Errorf("failed to promote user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit approval: %w", err)
	}
	return nil
}

// Reject resolves a pending request without changing the applicant's role.
func (r *DJRequestRepository) Reject(id, reviewerID string) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := resolveRequest(tx, id, models.RequestRejected, reviewerID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rejection: %w", err)
	}
	return nil
}

// CountPending returns the number of open requests.
func (r *DJRequestRepository) CountPending() (int, error) {
	var count int
	query := r.db.Rebind(`SELECT COUNT(*) FROM dj_requests WHERE status = ? AND deleted_at IS NULL`)
	if err := r.db.Get(&count, query, string(models.RequestPending)); err != nil {
		return 0, fmt.Errorf("failed to count dj requests: %w", err)
	}
	return count, nil
}

func resolveRequest(tx *sqlx.Tx, id string, status models.RequestStatus, reviewerID string) error {
	now := time.Now().UTC()
	query := tx.Rebind(`UPDATE dj_requests SET status = ?, reviewed_by = ?, reviewed_at = ?, updated_at = ?
		WHERE id = ? AND status = ? AND deleted_at IS NULL`)
	result, err := tx.Exec(query, string(status), reviewerID, now, now, id, string(models.RequestPending))
	if err != nil {
		return fmt.Errorf("failed to resolve dj request: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		var exists int
		if err := tx.Get(&exists, tx.Rebind(`SELECT COUNT(*) FROM dj_requests WHERE id = ? AND deleted_at IS NULL`), id); err == nil && exists > 0 {
			return fmt.Errorf("%w: dj request %s is not pending", shared.ErrInvalidTransition, id)
		}
		return fmt.Errorf("%w: dj request %s", shared.ErrNotFound, id)
	}
	return nil
}
