package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"outfit-studio/internal/domain"
)

var ErrOrderNotFound = errors.New("order not found")

// OrderRepository is the order ledger used to reconcile analytics.
type OrderRepository interface {
	Record(ctx context.Context, order domain.OrderRecord, delivered bool) error
	FindByID(ctx context.Context, id string) (*domain.OrderRecord, bool, error)
	ListUndelivered(ctx context.Context, limit int) ([]domain.OrderRecord, error)
	MarkDelivered(ctx context.Context, id string) error
}

type orderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepository{db: db}
}

const orderColumns = `id, session_id, combination_id, items, total, delivery_from, delivery_to, created_at`

func (r *orderRepository) Record(ctx context.Context, order domain.OrderRecord, delivered bool) error {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("failed to encode order items: %w", err)
	}

	var combinationID sql.NullString
	if order.CombinationID != "" {
		combinationID = sql.NullString{String: order.CombinationID, Valid: true}
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO orders (id, session_id, combination_id, items, total, delivery_from, delivery_to, analytics_delivered, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		order.ID,
		order.SessionID,
		combinationID,
		string(items),
		order.Total,
		order.EstimatedDelivery.From,
		order.EstimatedDelivery.To,
		delivered,
		order.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record order: %w", err)
	}
	return nil
}

func scanOrder(row rowScanner, extra ...any) (*domain.OrderRecord, error) {
	o := &domain.OrderRecord{}
	var combinationID sql.NullString
	var items []byte

	dest := []any{&o.ID, &o.SessionID, &combinationID, &items, &o.Total, &o.EstimatedDelivery.From, &o.EstimatedDelivery.To, &o.CreatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	o.CombinationID = combinationID.String
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("failed to decode items of %s: %w", o.ID, err)
	}
	return o, nil
}

// FindByID returns the order and whether its analytics event was delivered.
func (r *orderRepository) FindByID(ctx context.Context, id string) (*domain.OrderRecord, bool, error) {
	var delivered bool
	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+`, analytics_delivered FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row, &delivered)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, ErrOrderNotFound
		}
		return nil, false, fmt.Errorf("failed to find order: %w", err)
	}
	return o, delivered, nil
}

// ListUndelivered returns orders whose analytics event is missing, oldest first.
func (r *orderRepository) ListUndelivered(ctx context.Context, limit int) ([]domain.OrderRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE analytics_delivered = FALSE ORDER BY created_at LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list undelivered orders: %w", err)
	}
	defer rows.Close()

	orders := []domain.OrderRecord{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}
	return orders, nil
}

func (r *orderRepository) MarkDelivered(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE orders SET analytics_delivered = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark order delivered: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrOrderNotFound
	}
	return nil
}
