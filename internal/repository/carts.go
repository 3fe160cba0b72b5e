package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Chidera001-dev/e-commerce-system/internal/domain"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const selectActiveCart = `SELECT id, user_id, is_active, created_at, updated_at
	FROM carts WHERE user_id = $1 AND is_active`

func (r *queries) GetActiveCart(ctx context.Context, userID string) (*domain.Cart, error) {
	return r.activeCart(ctx, selectActiveCart, userID)
}

// LockActiveCart serializes concurrent checkouts of the same cart. A waiter
// that resumes after the cart was closed sees ErrCartNotFound.
func (r *queries) LockActiveCart(ctx context.Context, userID string) (*domain.Cart, error) {
	return r.activeCart(ctx, selectActiveCart+" FOR UPDATE", userID)
}

func (r *queries) GetOrCreateActiveCart(ctx context.Context, userID string) (*domain.Cart, error) {
	query := `INSERT INTO carts (id, user_id, is_active, created_at, updated_at)
	          VALUES ($1, $2, TRUE, NOW(), NOW())
	          ON CONFLICT (user_id) WHERE is_active DO NOTHING`

	if _, err := r.q.ExecContext(ctx, query, uuid.New(), userID); err != nil {
		return nil, fmt.Errorf("insert cart: %w", mapError(err))
	}
	return r.GetActiveCart(ctx, userID)
}

func (r *queries) activeCart(ctx context.Context, query, userID string) (*domain.Cart, error) {
	var cart domain.Cart
	err := r.q.QueryRowContext(ctx, query, userID).Scan(
		&cart.ID,
		&cart.UserID,
		&cart.Active,
		&cart.CreatedAt,
		&cart.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query active cart: %w", mapError(err))
	}

	lines, err := r.cartLines(ctx, cart.ID)
	if err != nil {
		return nil, err
	}
	cart.Lines = lines
	return &cart, nil
}

func (r *queries) cartLines(ctx context.Context, cartID uuid.UUID) ([]domain.CartLine, error) {
	query := `SELECT product_id, quantity, unit_price, added_at
	          FROM cart_lines WHERE cart_id = $1 ORDER BY product_id`

	rows, err := r.q.QueryContext(ctx, query, cartID)
	if err != nil {
		return nil, fmt.Errorf("query cart lines: %w", err)
	}
	defer rows.Close()

	var lines []domain.CartLine
	for rows.Next() {
		var l domain.CartLine
		if err := rows.Scan(&l.ProductID, &l.Quantity, &l.UnitPrice, &l.AddedAt); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return lines, nil
}

func (r *queries) UpsertCartLine(ctx context.Context, cartID uuid.UUID, line domain.CartLine) error {
	query := `INSERT INTO cart_lines (cart_id, product_id, quantity, unit_price, added_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, NOW())
	          ON CONFLICT (cart_id, product_id)
	          DO UPDATE SET quantity = EXCLUDED.quantity, unit_price = EXCLUDED.unit_price, updated_at = NOW()`

	_, err := r.q.ExecContext(ctx, query, cartID, line.ProductID, line.Quantity, line.UnitPrice, line.AddedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return ErrProductNotFound
		}
		return fmt.Errorf("upsert cart line: %w", mapError(err))
	}
	return nil
}

func (r *queries) DeleteCartLine(ctx context.Context, cartID uuid.UUID, productID int64) error {
	query := `DELETE FROM cart_lines WHERE cart_id = $1 AND product_id = $2`
	if _, err := r.q.ExecContext(ctx, query, cartID, productID); err != nil {
		return fmt.Errorf("delete cart line: %w", mapError(err))
	}
	return nil
}

func (r *queries) DeleteCartLines(ctx context.Context, cartID uuid.UUID) error {
	query := `DELETE FROM cart_lines WHERE cart_id = $1`
	if _, err := r.q.ExecContext(ctx, query, cartID); err != nil {
		return fmt.Errorf("delete cart lines: %w", mapError(err))
	}
	return nil
}

func (r *queries) DeactivateCart(ctx context.Context, cartID uuid.UUID) error {
	query := `UPDATE carts SET is_active = FALSE, updated_at = NOW() WHERE id = $1`
	if _, err := r.q.ExecContext(ctx, query, cartID); err != nil {
		return fmt.Errorf("deactivate cart: %w", mapError(err))
	}
	return nil
}
