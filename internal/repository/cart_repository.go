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
	ErrCartEntryNotFound = errors.New("cart entry not found")
)

// CartRepository defines the interface for cart data access
type CartRepository interface {
	// Increment adds one unit for the key, creating the entry with quantity 1
	// when it does not exist yet.
	Increment(ctx context.Context, userID uuid.UUID, key domain.CartKey) (*domain.CartEntry, error)
	SetQuantity(ctx context.Context, userID uuid.UUID, key domain.CartKey, quantity int) error
	Remove(ctx context.Context, userID uuid.UUID, key domain.CartKey) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.CartEntry, error)
}

type cartRepository struct {
	db *sql.DB
}

// NewCartRepository creates a new instance of CartRepository
func NewCartRepository(db *sql.DB) CartRepository {
	return &cartRepository{db: db}
}

// Increment performs the add-to-cart upsert in a single statement so two
// concurrent adds both count.
func (r *cartRepository) Increment(ctx context.Context, userID uuid.UUID, key domain.CartKey) (*domain.CartEntry, error) {
	query := `
		INSERT INTO cart_items (user_id, product_id, size, quantity)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (user_id, product_id, size)
		DO UPDATE SET quantity = cart_items.quantity + 1
		RETURNING user_id, product_id, size, quantity, created_at, updated_at
	`

	entry := &domain.CartEntry{}
	err := r.db.QueryRowContext(ctx, query, userID, key.ProductID, key.Size).Scan(
		&entry.UserID,
		&entry.ProductID,
		&entry.Size,
		&entry.Quantity,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if err != nil {
		if isPgCode(err, codeForeignKeyViolation) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to add cart entry: %w", err)
	}

	return entry, nil
}

// SetQuantity overwrites the quantity of an existing entry. Quantity must be positive.
func (r *cartRepository) SetQuantity(ctx context.Context, userID uuid.UUID, key domain.CartKey, quantity int) error {
	query := `
		UPDATE cart_items
		SET quantity = $4
		WHERE user_id = $1 AND product_id = $2 AND size = $3
	`

	result, err := r.db.ExecContext(ctx, query, userID, key.ProductID, key.Size, quantity)
	if err != nil {
		return fmt.Errorf("failed to update cart entry: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrCartEntryNotFound
	}

	return nil
}

// Remove deletes the entry; removing an absent entry is not an error.
func (r *cartRepository) Remove(ctx context.Context, userID uuid.UUID, key domain.CartKey) error {
	query := `DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2 AND size = $3`

	if _, err := r.db.ExecContext(ctx, query, userID, key.ProductID, key.Size); err != nil {
		return fmt.Errorf("failed to remove cart entry: %w", err)
	}

	return nil
}

// ListByUser returns the user's entries joined with the current product data.
func (r *cartRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.CartEntry, error) {
	query := `
		SELECT c.user_id, c.product_id, c.size, c.quantity, c.created_at, c.updated_at,
		       p.name, p.price, COALESCE(p.image_path, ''), COALESCE(p.color, '')
		FROM cart_items c
		JOIN products p ON p.id = c.product_id
		WHERE c.user_id = $1
		ORDER BY c.created_at ASC, c.size ASC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cart entries: %w", err)
	}
	defer rows.Close()

	entries := []domain.CartEntry{}
	for rows.Next() {
		entry := domain.CartEntry{Product: &domain.ProductSnapshot{}}
		err := rows.Scan(
			&entry.UserID,
			&entry.ProductID,
			&entry.Size,
			&entry.Quantity,
			&entry.CreatedAt,
			&entry.UpdatedAt,
			&entry.Product.Name,
			&entry.Product.Price,
			&entry.Product.ImagePath,
			&entry.Product.Color,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cart entry: %w", err)
		}
		entry.Product.ID = entry.ProductID
		entries = append(entries, entry)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cart entries: %w", err)
	}

	return entries, nil
}
