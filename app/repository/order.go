package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vibast-solutions/ms-go-bunq-gateway/app/entity"
)

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrOrderAlreadyExists = errors.New("order already exists")
	ErrOrderNotPending    = errors.New("order is not pending")
)

type OrderRepository struct {
	db DBTX
}

func NewOrderRepository(db DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(ctx context.Context, order *entity.Order) error {
	query := `
		INSERT INTO orders (
			number, customer_ref, total, currency, status,
			payment_request_id, payment_id, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		order.Number,
		order.CustomerRef,
		order.Total,
		order.Currency,
		order.Status,
		nullableStringValue(order.PaymentRequestID),
		nullableStringValue(order.PaymentID),
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrOrderAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	order.ID = uint64(id)
	return nil
}

func (r *OrderRepository) Update(ctx context.Context, order *entity.Order) error {
	query := `
		UPDATE orders SET
			customer_ref = ?,
			total = ?,
			currency = ?,
			status = ?,
			payment_request_id = ?,
			payment_id = ?,
			updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		order.CustomerRef,
		order.Total,
		order.Currency,
		order.Status,
		nullableStringValue(order.PaymentRequestID),
		nullableStringValue(order.PaymentID),
		order.UpdatedAt,
		order.ID,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOrderNotFound
	}

	return nil
}

func (r *OrderRepository) FindByID(ctx context.Context, id uint64) (*entity.Order, error) {
	query := `
		SELECT id, number, customer_ref, total, currency, status,
			payment_request_id, payment_id, created_at, updated_at
		FROM orders
		WHERE id = ?
	`

	order := &entity.Order{}
	if err := scanOrder(r.db.QueryRowContext(ctx, query, id), order); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return order, nil
}

// FindByPaymentRequestID correlates an inbound notification back to orders.
// The lookup is exact string equality on the correlation key; the caller is
// responsible for refusing to act unless exactly one order matches.
func (r *OrderRepository) FindByPaymentRequestID(ctx context.Context, requestID string) ([]*entity.Order, error) {
	query := `
		SELECT id, number, customer_ref, total, currency, status,
			payment_request_id, payment_id, created_at, updated_at
		FROM orders
		WHERE payment_request_id = ?
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]*entity.Order, 0)
	for rows.Next() {
		item := &entity.Order{}
		if err := scanOrder(rows, item); err != nil {
			return nil, err
		}
		orders = append(orders, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}

// MarkPaid transitions pending -> paid with a compare-and-set so a duplicate
// notification delivery can never complete the same order twice.
func (r *OrderRepository) MarkPaid(ctx context.Context, id uint64, now time.Time) error {
	query := `
		UPDATE orders SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`

	result, err := r.db.ExecContext(ctx, query, entity.OrderStatusPaid, now, id, entity.OrderStatusPending)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOrderNotPending
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(scan rowScanner, order *entity.Order) error {
	var paymentRequestID sql.NullString
	var paymentID sql.NullString

	err := scan.Scan(
		&order.ID,
		&order.Number,
		&order.CustomerRef,
		&order.Total,
		&order.Currency,
		&order.Status,
		&paymentRequestID,
		&paymentID,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return err
	}

	order.PaymentRequestID = stringPtrFromNull(paymentRequestID)
	order.PaymentID = stringPtrFromNull(paymentID)

	return nil
}
