package repositories

import (
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/desertthunder/zylofm/internal/models"
	"github.com/desertthunder/zylofm/internal/shared"
)

const userColumns = `id, sequence, email, name, password_hash, role, image, bio, provider, provider_id,
	created_at, updated_at, deleted_at`

// UserRepository implements [models.Repository] for [models.User] persistence.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new [UserRepository] with the given database connection
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user with generated ID and sequence. Duplicate emails are [shared.ErrConflict].
func (r *UserRepository) Create(user *models.User) error {
	user.Email = shared.NormalizeEmail(user.Email)
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "users")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	user.ID = shared.GenerateID()
	user.Sequence = sequence
	user.Touch()

	query := `
		INSERT INTO users (id, sequence, email, name, password_hash, role, image, bio, provider, provider_id, created_at, updated_at)
		VALUES (:id, :sequence, :email, :name, :password_hash, :role, :image, :bio, :provider, :provider_id, :created_at, :updated_at)
	`
	if _, err := r.db.NamedExec(query, user); err != nil {
		return writeError("insert", "user", err)
	}
	return nil
}

// Get retrieves a user by ID, excluding soft-deleted users
func (r *UserRepository) Get(id string) (*models.User, error) {
	return r.getBy("id", id)
}

// GetByEmail retrieves a user by (normalized) email.
func (r *UserRepository) GetByEmail(email string) (*models.User, error) {
	return r.getBy("email", shared.NormalizeEmail(email))
}

// GetByProvider retrieves the user linked to an external identity.
func (r *UserRepository) GetByProvider(provider, providerID string) (*models.User, error) {
	var user models.User
	query := r.db.Rebind(`SELECT ` + userColumns + ` FROM users
		WHERE provider = ? AND provider_id = ? AND deleted_at IS NULL`)
	if err := r.db.Get(&user, query, provider, providerID); err != nil {
		return nil, readError("user", provider+":"+providerID, err)
	}
	return &user, nil
}

func (r *UserRepository) getBy(column, value string) (*models.User, error) {
	var user models.User
	query := r.db.Rebind(fmt.Sprintf(`SELECT %s FROM users WHERE %s = ? AND deleted_at IS NULL`, userColumns, column))
	if err := r.db.Get(&user, query, value); err != nil {
		return nil, readError("user", value, err)
	}
	return &user, nil
}

// Update modifies an existing user in the database. The role is left alone; it only changes
// through [UserRepository.SetRole] and DJ request approval.
func (r *UserRepository) Update(user *models.User) error {
	user.Email = shared.NormalizeEmail(user.Email)
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	user.Touch()

	query := `
		UPDATE users
		SET email = :email, name = :name, password_hash = :password_hash, image = :image,
			bio = :bio, provider = :provider, provider_id = :provider_id, updated_at = :updated_at
		WHERE id = :id AND deleted_at IS NULL
	`
	result, err := r.db.NamedExec(query, user)
	if err != nil {
		return writeError("update", "user", err)
	}
	return expectAffected(result, "user", user.ID)
}

// UpdateProfile writes only the fields a user edits on their own account.
func (r *UserRepository) UpdateProfile(user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	user.Touch()

	query := `
		UPDATE users
		SET name = :name, image = :image, bio = :bio, password_hash = :password_hash, updated_at = :updated_at
		WHERE id = :id AND deleted_at IS NULL
	`
	result, err := r.db.NamedExec(query, user)
	if err != nil {
		return writeError("update", "user", err)
	}
	return expectAffected(result, "user", user.ID)
}

// SetRole changes a user's role.
func (r *UserRepository) SetRole(id string, role models.Role) error {
	if !role.Valid() {
		return fmt.Errorf("%w: unknown role %q", shared.ErrInvalidInput, role)
	}
	query := r.db.Rebind(`UPDATE users SET role = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`)
	result, err := r.db.Exec(query, role, time.Now().UTC(), id)
	if err != nil {
		return writeError("update", "user", err)
	}
	return expectAffected(result, "user", id)
}

// Delete soft-deletes a user by ID
func (r *UserRepository) Delete(id string) error {
	query := r.db.Rebind(`UPDATE users SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`)
	result, err := r.db.Exec(query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return expectAffected(result, "user", id)
}

// List retrieves users matching criteria, excluding soft-deleted users.
//
// Supported criteria: "role" ([models.Role] or string), "search" (name or email substring),
// "limit" and "offset".
func (r *UserRepository) List(criteria map[string]any) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE deleted_at IS NULL`
	args := []any{}

	switch role := criteria["role"].(type) {
	case models.Role:
		query += " AND role = ?"
		args = append(args, string(role))
	case string:
		if role != "" {
			query += " AND role = ?"
			args = append(args, role)
		}
	}

	if search, ok := criteria["search"].(string); ok && strings.TrimSpace(search) != "" {
		query += " AND (LOWER(name) LIKE ? OR LOWER(email) LIKE ?)"
		pattern := likePattern(strings.ToLower(strings.TrimSpace(search)))
		args = append(args, pattern, pattern)
	}

	query += " ORDER BY sequence ASC"
	query, args = paginate(query, args, criteria)

	users := []*models.User{}
	if err := r.db.Select(&users, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	return users, nil
}

// CountByRole returns the number of active users per role.
func (r *UserRepository) CountByRole() (map[models.Role]int, error) {
	var rows []struct {
		Role  models.Role `db:"role"`
		Count int         `db:"count"`
	}
	query := `SELECT role, COUNT(*) AS count FROM users WHERE deleted_at IS NULL GROUP BY role`
	if err := r.db.Select(&rows, query); err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	counts := map[models.Role]int{models.RoleListener: 0, models.RoleDJ: 0, models.RoleAdmin: 0}
	for _, row := range rows {
		counts[row.Role] = row.Count
	}
	return counts, nil
}

const profileQuery = `
	SELECT u.id, u.name, u.image, u.bio,
		COUNT(m.id) AS mix_count, COALESCE(SUM(m.play_count), 0) AS plays
	FROM users u
	LEFT JOIN mixes m ON m.dj_id = u.id AND m.status = 'approved' AND m.deleted_at IS NULL
	WHERE u.role = 'dj' AND u.deleted_at IS NULL`

// ListProfiles returns public DJ profiles ordered by name.
func (r *UserRepository) ListProfiles(page models.Page) ([]models.Profile, error) {
	query := profileQuery + ` GROUP BY u.id, u.name, u.image, u.bio ORDER BY u.name ASC LIMIT ? OFFSET ?`
	profiles := []models.Profile{}
	if err := r.db.Select(&profiles, r.db.Rebind(query), page.Limit, page.Offset); err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	return profiles, nil
}

// GetProfile returns a single DJ's public profile.
func (r *UserRepository) GetProfile(id string) (*models.Profile, error) {
	var profile models.Profile
	query := profileQuery + ` AND u.id = ? GROUP BY u.id, u.name, u.image, u.bio`
	if err := r.db.Get(&profile, r.db.Rebind(query), id); err != nil {
		return nil, readError("dj", id, err)
	}
	return &profile, nil
}
