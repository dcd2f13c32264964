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
	ErrProfileNotFound = errors.New("profile not found")
)

// ProfileRepository defines the interface for profile data access
type ProfileRepository interface {
	// Upsert creates the profile on first save and overwrites the editable
	// fields afterwards.
	Upsert(ctx context.Context, profile *domain.Profile) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Profile, error)
	List(ctx context.Context) ([]*domain.Profile, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type profileRepository struct {
	db *sql.DB
}

// NewProfileRepository creates a new instance of ProfileRepository
func NewProfileRepository(db *sql.DB) ProfileRepository {
	return &profileRepository{db: db}
}

const profileSelect = `
	SELECT p.id, p.email, p.username, p.full_name, p.address, p.phone, p.age,
	       EXISTS (SELECT 1 FROM admins a WHERE a.profile_id = p.id),
	       p.created_at, p.updated_at
	FROM profiles p
`

func scanProfile(row rowScanner) (*domain.Profile, error) {
	profile := &domain.Profile{}
	err := row.Scan(
		&profile.ID,
		&profile.Email,
		&profile.Username,
		&profile.FullName,
		&profile.Address,
		&profile.Phone,
		&profile.Age,
		&profile.IsAdmin,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	return profile, err
}

func (r *profileRepository) Upsert(ctx context.Context, profile *domain.Profile) error {
	query := `
		INSERT INTO profiles (id, email, username, full_name, address, phone, age)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET email = CASE WHEN EXCLUDED.email = '' THEN profiles.email ELSE EXCLUDED.email END,
		    username = EXCLUDED.username,
		    full_name = EXCLUDED.full_name,
		    address = EXCLUDED.address,
		    phone = EXCLUDED.phone,
		    age = EXCLUDED.age
		RETURNING email, created_at, updated_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		profile.ID,
		profile.Email,
		profile.Username,
		profile.FullName,
		profile.Address,
		profile.Phone,
		profile.Age,
	).Scan(&profile.Email, &profile.CreatedAt, &profile.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}

	return nil
}

func (r *profileRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Profile, error) {
	profile, err := scanProfile(r.db.QueryRowContext(ctx, profileSelect+` WHERE p.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to find profile by ID: %w", err)
	}

	return profile, nil
}

func (r *profileRepository) List(ctx context.Context) ([]*domain.Profile, error) {
	rows, err := r.db.QueryContext(ctx, profileSelect+` ORDER BY p.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	profiles := []*domain.Profile{}
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, profile)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating profiles: %w", err)
	}

	return profiles, nil
}

func (r *profileRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM profiles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrProfileNotFound
	}

	return nil
}
