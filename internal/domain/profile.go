package domain

import (
	"time"

	"github.com/google/uuid"
)

// Profile shares its ID with the auth identity. IsAdmin is derived from
// the admins table on read and never stored on the profile row.
type Profile struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Username  *string   `json:"username" db:"username"`
	FullName  *string   `json:"full_name" db:"full_name"`
	Address   *string   `json:"address" db:"address"`
	Phone     *string   `json:"phone" db:"phone"`
	Age       *int      `json:"age" db:"age"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// AdminGrant records an elevated role for a profile.
type AdminGrant struct {
	ProfileID uuid.UUID `json:"profile_id" db:"profile_id"`
	Role      string    `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Principal is the authenticated caller extracted from a session token.
type Principal struct {
	UserID uuid.UUID
	Email  string
}
