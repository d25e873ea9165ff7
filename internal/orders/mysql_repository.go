package orders

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kisanmarket/kisan-golang/internal/models"
)

// MySQLRepository implements Repository on the primary MySQL pool.
type MySQLRepository struct {
	db      *sql.DB
	timeout time.Duration
	retry   time.Duration
}

func NewMySQLRepository(db *sql.DB, timeout time.Duration) *MySQLRepository {
	return &MySQLRepository{db: db, timeout: timeout, retry: 100 * time.Millisecond}
}

// Querier is implemented by both *sql.DB and *sql.Tx.
type Querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

const orderColumns = `id, user_id, customer_email, total_amount, currency, status,
	delivery_address, payment_session_id, created_at, updated_at`

func (r *MySQLRepository) CreatePendingOrder(ctx context.Context, order *models.Order, items []models.OrderLineItem) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	address, err := marshalAddress(order.DeliveryAddress)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInsertOrder, err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %w", ErrInsertOrder, err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	order.ID = uuid.New().String()
	order.Status = models.OrderStatusPending
	order.CreatedAt = now
	order.UpdatedAt = now

	orderQuery := `
		INSERT INTO orders
		(id, user_id, customer_email, total_amount, currency, status, delivery_address, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, orderQuery,
		order.ID, order.UserID, order.CustomerEmail, order.TotalAmount, order.Currency,
		order.Status, address, now, now)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInsertOrder, err)
	}

	itemQuery := `
		INSERT INTO order_items
		(order_id, product_id, product_name, product_image, farmer_name, farmer_location,
		 price, quantity, unit, subtotal, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	for i := range items {
		item := &items[i]
		item.OrderID = order.ID
		item.CreatedAt = now

		result, err := tx.ExecContext(ctx, itemQuery,
			item.OrderID, item.ProductID, item.ProductName, item.ProductImage,
			item.FarmerName, item.FarmerLocation, item.Price, item.Quantity,
			item.Unit, item.Subtotal, now)
		if err != nil {
			return fmt.Errorf("%w: product %s: %w", ErrInsertItems, item.ProductID, err)
		}
		if item.ID, err = result.LastInsertId(); err != nil {
			return fmt.Errorf("%w: %w", ErrInsertItems, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrInsertOrder, err)
	}

	order.Items = items
	return nil
}

func (r *MySQLRepository) LinkPaymentSession(ctx context.Context, orderID, sessionID string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	// The session id is write-once.
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET payment_session_id = ?, updated_at = ?
		WHERE id = ? AND payment_session_id IS NULL`,
		sessionID, time.Now().UTC(), orderID)
	if err != nil {
		return fmt.Errorf("link payment session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("link payment session: %w", err)
	}
	if rowsAffected == 1 {
		return nil
	}

	var existing sql.NullString
	err = r.db.QueryRowContext(ctx, "SELECT payment_session_id FROM orders WHERE id = ?", orderID).Scan(&existing)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrOrderNotFound
	}
	if err != nil {
		return fmt.Errorf("check linked session: %w", err)
	}
	if existing.Valid && existing.String == sessionID {
		return nil
	}
	return ErrSessionAlreadyLinked
}

func (r *MySQLRepository) TransitionStatus(ctx context.Context, orderID string, to models.OrderStatus) (Transition, error) {
	if !models.OrderStatusPending.CanTransitionTo(to) {
		return Transition{}, fmt.Errorf("%w: pending -> %s", ErrIllegalTransition, to)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	// Only one concurrent caller can match status = 'pending'.
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		to, time.Now().UTC(), orderID, models.OrderStatusPending)
	if err != nil {
		return Transition{}, fmt.Errorf("update order status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return Transition{}, fmt.Errorf("update order status: %w", err)
	}
	if rowsAffected == 1 {
		return Transition{Applied: true, Current: to}, nil
	}

	var current models.OrderStatus
	err = r.db.QueryRowContext(ctx, "SELECT status FROM orders WHERE id = ?", orderID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return Transition{}, ErrOrderNotFound
	}
	if err != nil {
		return Transition{}, fmt.Errorf("read order status: %w", err)
	}
	return Transition{Applied: false, Current: current}, nil
}

func (r *MySQLRepository) GetOrderWithItems(ctx context.Context, orderID string) (*models.Order, error) {
	var order *models.Order
	err := r.readWithRetry(ctx, func(ctx context.Context) error {
		o, err := r.scanOrder(r.db.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = ?", orderID))
		if err != nil {
			return err
		}
		items, err := r.listItems(ctx, r.db, o.ID)
		if err != nil {
			return err
		}
		o.Items = items
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (r *MySQLRepository) ListOrdersByUser(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	err := r.readWithRetry(ctx, func(ctx context.Context) error {
		rows, err := r.db.QueryContext(ctx,
			"SELECT "+orderColumns+" FROM orders WHERE user_id = ? ORDER BY created_at DESC", userID)
		if err != nil {
			return fmt.Errorf("query orders by user: %w", err)
		}
		defer rows.Close()

		orders = orders[:0]
		for rows.Next() {
			o, err := r.scanOrder(rows)
			if err != nil {
				return err
			}
			orders = append(orders, *o)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	if orders == nil {
		orders = []models.Order{}
	}
	return orders, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *MySQLRepository) scanOrder(row rowScanner) (*models.Order, error) {
	var (
		o         models.Order
		userID    sql.NullString
		address   []byte
		sessionID sql.NullString
	)
	err := row.Scan(&o.ID, &userID, &o.CustomerEmail, &o.TotalAmount, &o.Currency, &o.Status,
		&address, &sessionID, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}

	if userID.Valid {
		o.UserID = &userID.String
	}
	if sessionID.Valid {
		o.PaymentSessionID = &sessionID.String
	}
	if len(address) > 0 && string(address) != "null" {
		var a models.Address
		if err := json.Unmarshal(address, &a); err != nil {
			return nil, fmt.Errorf("decode delivery address: %w", err)
		}
		o.DeliveryAddress = &a
	}
	return &o, nil
}

func (r *MySQLRepository) listItems(ctx context.Context, q Querier, orderID string) ([]models.OrderLineItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, order_id, product_id, product_name, product_image, farmer_name,
		       farmer_location, price, quantity, unit, subtotal, created_at
		FROM order_items
		WHERE order_id = ?
		ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	items := []models.OrderLineItem{}
	for rows.Next() {
		var item models.OrderLineItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName,
			&item.ProductImage, &item.FarmerName, &item.FarmerLocation, &item.Price,
			&item.Quantity, &item.Unit, &item.Subtotal, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}
	return items, nil
}

// readWithRetry runs an idempotent read with a bounded timeout and retries it
// once. ErrOrderNotFound is final.
func (r *MySQLRepository) readWithRetry(ctx context.Context, read func(context.Context) error) error {
	attempt := func() error {
		readCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		return read(readCtx)
	}

	err := attempt()
	if err == nil || errors.Is(err, ErrOrderNotFound) || ctx.Err() != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return err
	case <-time.After(r.retry):
	}
	return attempt()
}

func marshalAddress(a *models.Address) (sql.NullString, error) {
	if a == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(a)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode delivery address: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}
