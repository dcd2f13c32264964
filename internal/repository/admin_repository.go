package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"helmet-shop/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrAdminGrantNotFound = errors.New("admin grant not found")
)

// AdminRepository is the single store of elevated-role grants.
type AdminRepository interface {
	Exists(ctx context.Context, profileID uuid.UUID) (bool, error)
	Grant(ctx context.Context, grant *domain.AdminGrant) error
	Revoke(ctx context.Context, profileID uuid.UUID) error
}

type adminRepository struct {
	db *sql.DB
}

// NewAdminRepository creates a new instance of AdminRepository
func NewAdminRepository(db *sql.DB) AdminRepository {
	return &adminRepository{db: db}
}

func (r *adminRepository) Exists(ctx context.Context, profileID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM admins WHERE profile_id = $1)`, profileID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check admin grant: %w", err)
	}
	return exists, nil
}

// Grant is idempotent; granting again updates the role.
func (r *adminRepository) Grant(ctx context.Context, grant *domain.AdminGrant) error {
	query := `
		INSERT INTO admins (profile_id, role)
		VALUES ($1, $2)
		ON CONFLICT (profile_id) DO UPDATE SET role = EXCLUDED.role
		RETURNING created_at
	`

	err := r.db.QueryRowContext(ctx, query, grant.ProfileID, grant.Role).Scan(&grant.CreatedAt)
	if err != nil {
		if isPgCode(err, codeForeignKeyViolation) {
			return ErrProfileNotFound
		}
		return fmt.Errorf("failed to grant admin: %w", err)
	}

	return nil
}

func (r *adminRepository) Revoke(ctx context.Context, profileID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM admins WHERE profile_id = $1`, profileID)
	if err != nil {
		return fmt.Errorf("failed to revoke admin: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrAdminGrantNotFound
	}

	return nil
}
