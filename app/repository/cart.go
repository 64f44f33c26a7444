package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vibast-solutions/ms-go-bunq-gateway/app/entity"
)

var ErrCartAlreadyExists = errors.New("cart already exists")

type CartRepository struct {
	db DBTX
}

func NewCartRepository(db DBTX) *CartRepository {
	return &CartRepository{db: db}
}

func (r *CartRepository) Create(ctx context.Context, cart *entity.Cart) error {
	itemsJSON, err := serializeItems(cart.Items)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO carts (customer_ref, items_json, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		cart.CustomerRef,
		itemsJSON,
		cart.CreatedAt,
		cart.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrCartAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	cart.ID = uint64(id)

	return nil
}

func (r *CartRepository) FindByCustomerRef(ctx context.Context, customerRef string) (*entity.Cart, error) {
	query := `
		SELECT id, customer_ref, items_json, created_at, updated_at
		FROM carts
		WHERE customer_ref = ?
		LIMIT 1
	`

	cart := &entity.Cart{}
	var itemsJSON string
	err := r.db.QueryRowContext(ctx, query, customerRef).Scan(
		&cart.ID,
		&cart.CustomerRef,
		&itemsJSON,
		&cart.CreatedAt,
		&cart.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	items, err := parseItems(itemsJSON)
	if err != nil {
		return nil, err
	}
	cart.Items = items

	return cart, nil
}

// EmptyByCustomerRef clears a customer's cart after a completed payment.
// A missing cart is not an error; there is simply nothing to clear.
func (r *CartRepository) EmptyByCustomerRef(ctx context.Context, customerRef string, now time.Time) error {
	query := `
		UPDATE carts SET items_json = '{}', updated_at = ?
		WHERE customer_ref = ?
	`

	_, err := r.db.ExecContext(ctx, query, now, customerRef)
	return err
}
