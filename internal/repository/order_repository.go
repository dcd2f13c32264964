package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"helmet-shop/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrDuplicateOrder      = errors.New("order with this idempotency key already exists")
	ErrPaymentIntentUsed   = errors.New("payment intent already paid for another order")
	ErrOrderStatusConflict = errors.New("order status changed concurrently")
)

// OrderRepository defines the interface for order data access
type OrderRepository interface {
	// Place writes the order, one item per line priced from the current
	// catalog, and deletes exactly the consumed cart entries, all in one
	// transaction. On success order.Items holds the stored items.
	Place(ctx context.Context, order *domain.Order, lines []domain.OrderLine) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	FindByIdempotencyKey(ctx context.Context, userID uuid.UUID, key string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Order, error)
	List(ctx context.Context, status *domain.OrderStatus) ([]*domain.Order, error)
	// UpdateStatus moves the order from one status to another and fails with
	// ErrOrderStatusConflict when the stored status is no longer from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) error
	Update(ctx context.Context, id uuid.UUID, update domain.OrderUpdate) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new instance of OrderRepository
func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepository{db: db}
}

// Payment columns are read through to_jsonb so listings keep working on
// databases that have not added them yet.
const orderSelect = `
	SELECT o.id, o.user_id, o.total_amount, o.shipping_address, o.payment_method, o.status,
	       to_jsonb(o) ->> 'payment_intent_id', to_jsonb(o) ->> 'payment_status',
	       o.idempotency_key, COALESCE(p.full_name, ''), o.created_at, o.updated_at
	FROM orders o
	LEFT JOIN profiles p ON p.id = o.user_id
`

const paymentSavepoint = "order_payment_columns"

func (r *orderRepository) Place(ctx context.Context, order *domain.Order, lines []domain.OrderLine) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin order transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	items, err := priceLines(ctx, tx, order.ID, lines)
	if err != nil {
		return err
	}

	if err = insertOrder(ctx, tx, order); err != nil {
		return err
	}

	itemQuery := `
		INSERT INTO order_items (id, order_id, product_id, product_size, product_color, quantity, price_at_purchase)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`
	for i := range items {
		item := &items[i]
		err = tx.QueryRowContext(ctx, itemQuery,
			item.ID,
			item.OrderID,
			*item.ProductID,
			item.ProductSize,
			item.ProductColor,
			item.Quantity,
			item.PriceAtPurchase,
		).Scan(&item.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}

	deleteQuery := `DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2 AND size = $3`
	for _, line := range lines {
		if _, err = tx.ExecContext(ctx, deleteQuery, order.UserID, line.ProductID, line.Size); err != nil {
			return fmt.Errorf("failed to remove consumed cart entry: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit order: %w", err)
	}

	order.Items = items
	return nil
}

// priceLines snapshots the current price of every line's product.
func priceLines(ctx context.Context, tx *sql.Tx, orderID uuid.UUID, lines []domain.OrderLine) ([]domain.OrderItem, error) {
	query := `SELECT name, price, COALESCE(image_path, ''), COALESCE(color, '') FROM products WHERE id = $1 FOR SHARE`

	items := make([]domain.OrderItem, 0, len(lines))
	for _, line := range lines {
		productID := line.ProductID
		snapshot := &domain.ProductSnapshot{ID: productID}

		err := tx.QueryRowContext(ctx, query, productID).Scan(
			&snapshot.Name,
			&snapshot.Price,
			&snapshot.ImagePath,
			&snapshot.Color,
		)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
			}
			return nil, fmt.Errorf("failed to price order line: %w", err)
		}

		color := line.Color
		if color == "" {
			color = snapshot.Color
		}

		items = append(items, domain.OrderItem{
			ID:              uuid.New(),
			OrderID:         orderID,
			ProductID:       &productID,
			ProductSize:     line.Size,
			ProductColor:    color,
			Quantity:        line.Quantity,
			PriceAtPurchase: snapshot.Price,
			Product:         snapshot,
		})
	}

	return items, nil
}

// insertOrder stores the order row. When payment details are present and the
// schema lacks the payment columns, the insert is retried once without them
// and the fields are cleared on the order.
func insertOrder(ctx context.Context, tx *sql.Tx, order *domain.Order) error {
	withPayment := order.PaymentIntentID != nil || order.PaymentStatus != nil

	if withPayment {
		if _, err := tx.ExecContext(ctx, "SAVEPOINT "+paymentSavepoint); err != nil {
			return fmt.Errorf("failed to create savepoint: %w", err)
		}

		query := `
			INSERT INTO orders (id, user_id, total_amount, shipping_address, payment_method, status,
			                    idempotency_key, payment_intent_id, payment_status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING created_at, updated_at
		`
		err := tx.QueryRowContext(ctx, query,
			order.ID,
			order.UserID,
			order.TotalAmount,
			order.ShippingAddress,
			string(order.PaymentMethod),
			string(order.Status),
			order.IdempotencyKey,
			order.PaymentIntentID,
			order.PaymentStatus,
		).Scan(&order.CreatedAt, &order.UpdatedAt)
		if err == nil {
			return nil
		}
		if !isMissingPaymentColumn(err) {
			return mapOrderInsertError(err)
		}

		if _, err := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+paymentSavepoint); err != nil {
			return fmt.Errorf("failed to roll back to savepoint: %w", err)
		}
		order.PaymentIntentID = nil
		order.PaymentStatus = nil
	}

	query := `
		INSERT INTO orders (id, user_id, total_amount, shipping_address, payment_method, status, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	err := tx.QueryRowContext(ctx, query,
		order.ID,
		order.UserID,
		order.TotalAmount,
		order.ShippingAddress,
		string(order.PaymentMethod),
		string(order.Status),
		order.IdempotencyKey,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return mapOrderInsertError(err)
	}

	return nil
}

func mapOrderInsertError(err error) error {
	if pgErr := pgError(err); pgErr != nil && pgErr.Code == codeUniqueViolation {
		if pgErr.ConstraintName == paymentIntentIndex {
			return ErrPaymentIntentUsed
		}
		return ErrDuplicateOrder
	}
	return fmt.Errorf("failed to create order: %w", err)
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	order := &domain.Order{}
	err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.TotalAmount,
		&order.ShippingAddress,
		&order.PaymentMethod,
		&order.Status,
		&order.PaymentIntentID,
		&order.PaymentStatus,
		&order.IdempotencyKey,
		&order.CustomerName,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	return order, err
}

func (r *orderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	orders, err := r.query(ctx, orderSelect+` WHERE o.id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, ErrOrderNotFound
	}
	return orders[0], nil
}

func (r *orderRepository) FindByIdempotencyKey(ctx context.Context, userID uuid.UUID, key string) (*domain.Order, error) {
	orders, err := r.query(ctx, orderSelect+` WHERE o.user_id = $1 AND o.idempotency_key = $2`, userID, key)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, ErrOrderNotFound
	}
	return orders[0], nil
}

// ListByUser returns the user's orders newest first with their items.
func (r *orderRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Order, error) {
	return r.query(ctx, orderSelect+` WHERE o.user_id = $1 ORDER BY o.created_at DESC, o.id`, userID)
}

// List returns all orders newest first, optionally restricted to one status.
func (r *orderRepository) List(ctx context.Context, status *domain.OrderStatus) ([]*domain.Order, error) {
	if status != nil {
		return r.query(ctx, orderSelect+` WHERE o.status = $1 ORDER BY o.created_at DESC, o.id`, string(*status))
	}
	return r.query(ctx, orderSelect+` ORDER BY o.created_at DESC, o.id`)
}

// query loads the matching orders and then their items in one round trip.
func (r *orderRepository) query(ctx context.Context, query string, args ...interface{}) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := []*domain.Order{}
	byID := map[uuid.UUID]*domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		order.Items = []domain.OrderItem{}
		orders = append(orders, order)
		byID[order.ID] = order
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]string, 0, len(orders))
	for _, order := range orders {
		ids = append(ids, order.ID.String())
	}

	if err := r.attachItems(ctx, ids, byID); err != nil {
		return nil, err
	}

	return orders, nil
}

func (r *orderRepository) attachItems(ctx context.Context, ids []string, byID map[uuid.UUID]*domain.Order) error {
	query := `
		SELECT oi.id, oi.order_id, oi.product_id, oi.product_size, COALESCE(oi.product_color, ''),
		       oi.quantity, oi.price_at_purchase, oi.created_at,
		       p.name, p.price, p.image_path, p.color
		FROM order_items oi
		LEFT JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = ANY($1::uuid[])
		ORDER BY oi.created_at ASC, oi.id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item         domain.OrderItem
			productName  sql.NullString
			productPrice decimal.NullDecimal
			productImage sql.NullString
			productColor sql.NullString
		)
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.ProductSize,
			&item.ProductColor,
			&item.Quantity,
			&item.PriceAtPurchase,
			&item.CreatedAt,
			&productName,
			&productPrice,
			&productImage,
			&productColor,
		)
		if err != nil {
			return fmt.Errorf("failed to scan order item: %w", err)
		}

		if item.ProductID != nil && productName.Valid {
			item.Product = &domain.ProductSnapshot{
				ID:        *item.ProductID,
				Name:      productName.String,
				Price:     productPrice.Decimal,
				ImagePath: productImage.String,
				Color:     productColor.String,
			}
		}

		if order, ok := byID[item.OrderID]; ok {
			order.Items = append(order.Items, item)
		}
	}

	if err = rows.Err(); err != nil {
		return fmt.Errorf("error iterating order items: %w", err)
	}

	return nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) error {
	query := `UPDATE orders SET status = $3 WHERE id = $1 AND status = $2`

	result, err := r.db.ExecContext(ctx, query, id, string(from), string(to))
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
		return ErrOrderStatusConflict
	}

	return nil
}

func (r *orderRepository) Update(ctx context.Context, id uuid.UUID, update domain.OrderUpdate) error {
	query := `
		UPDATE orders
		SET total_amount = COALESCE($2, total_amount),
		    shipping_address = COALESCE($3, shipping_address),
		    payment_method = COALESCE($4, payment_method)
		WHERE id = $1
	`

	var total decimal.NullDecimal
	if update.TotalAmount != nil {
		total = decimal.NewNullDecimal(*update.TotalAmount)
	}

	var method sql.NullString
	if update.PaymentMethod != nil {
		method = sql.NullString{String: string(*update.PaymentMethod), Valid: true}
	}

	var address sql.NullString
	if update.ShippingAddress != nil {
		address = sql.NullString{String: *update.ShippingAddress, Valid: true}
	}

	result, err := r.db.ExecContext(ctx, query, id, total, address, method)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrOrderNotFound
	}

	return nil
}

// Delete removes the order together with its items.
func (r *orderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrOrderNotFound
	}

	return nil
}
