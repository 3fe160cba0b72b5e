package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/Chidera001-dev/e-commerce-system/internal/domain"
	"github.com/lib/pq"
)

func (r *queries) GetProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	query := `SELECT id, name, price, stock, created_at FROM products WHERE id = $1`

	var p domain.Product
	err := r.q.QueryRowContext(ctx, query, productID).Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", mapError(err))
	}
	return &p, nil
}

func (r *queries) LockStock(ctx context.Context, productIDs []int64) (map[int64]int32, error) {
	ids := append([]int64(nil), productIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	query := `SELECT id, stock FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE`

	rows, err := r.q.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("lock stock: %w", mapError(err))
	}
	defer rows.Close()

	stock := make(map[int64]int32, len(ids))
	for rows.Next() {
		var id int64
		var available int32
		if err := rows.Scan(&id, &available); err != nil {
			return nil, fmt.Errorf("scan stock row: %w", err)
		}
		stock[id] = available
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lock stock: %w", mapError(err))
	}

	for _, id := range ids {
		if _, ok := stock[id]; !ok {
			return nil, fmt.Errorf("%w: %d", ErrProductNotFound, id)
		}
	}
	return stock, nil
}

// AdjustStock adds delta to the counter. Callers hold the row lock from LockStock.
func (r *queries) AdjustStock(ctx context.Context, productID int64, delta int32) error {
	query := `UPDATE products SET stock = stock + $2, updated_at = NOW() WHERE id = $1`

	res, err := r.q.ExecContext(ctx, query, productID, delta)
	if err != nil {
		return fmt.Errorf("adjust stock: %w", mapError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("adjust stock: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", ErrProductNotFound, productID)
	}
	return nil
}
