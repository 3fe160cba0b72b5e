package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Chidera001-dev/e-commerce-system/internal/domain"
	"github.com/lib/pq"
)

const orderColumns = `id, user_id, contact_email, total, status, payment_status, payment_reference, fulfilled,
	shipping_full_name, shipping_phone, shipping_address, shipping_city, shipping_state,
	shipping_postal_code, shipping_country, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var o domain.Order
	var reference sql.NullString
	err := row.Scan(
		&o.ID,
		&o.UserID,
		&o.ContactEmail,
		&o.Total,
		&o.Status,
		&o.PaymentStatus,
		&reference,
		&o.Fulfilled,
		&o.Shipping.FullName,
		&o.Shipping.Phone,
		&o.Shipping.Address,
		&o.Shipping.City,
		&o.Shipping.State,
		&o.Shipping.PostalCode,
		&o.Shipping.Country,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.PaymentReference = reference.String
	return &o, nil
}

func (r *queries) CreateOrder(ctx context.Context, order *domain.Order) error {
	query := `INSERT INTO orders (user_id, contact_email, total, status, payment_status, payment_reference,
	              shipping_full_name, shipping_phone, shipping_address, shipping_city, shipping_state,
	              shipping_postal_code, shipping_country, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
	          RETURNING id, created_at, updated_at`

	err := r.q.QueryRowContext(ctx, query,
		order.UserID,
		order.ContactEmail,
		order.Total,
		order.Status,
		order.PaymentStatus,
		nullString(order.PaymentReference),
		order.Shipping.FullName,
		order.Shipping.Phone,
		order.Shipping.Address,
		order.Shipping.City,
		order.Shipping.State,
		order.Shipping.PostalCode,
		order.Shipping.Country,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", mapError(err))
	}

	itemQuery := `INSERT INTO order_items (order_id, product_id, quantity, unit_price)
	              VALUES ($1, $2, $3, $4) RETURNING id`
	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		if err := r.q.QueryRowContext(ctx, itemQuery, order.ID, item.ProductID, item.Quantity, item.UnitPrice).Scan(&item.ID); err != nil {
			return fmt.Errorf("insert order item: %w", mapError(err))
		}
	}
	return nil
}

func (r *queries) GetOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	return r.order(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID)
}

func (r *queries) LockOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	return r.order(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, orderID)
}

func (r *queries) order(ctx context.Context, query string, orderID int64) (*domain.Order, error) {
	o, err := scanOrder(r.q.QueryRowContext(ctx, query, orderID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", mapError(err))
	}

	items, err := r.orderItems(ctx, []int64{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]
	return o, nil
}

func (r *queries) ListOrdersByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id DESC`

	rows, err := r.q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query orders by user id: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	var ids []int64
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	items, err := r.orderItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, o := range orders {
		o.Items = items[o.ID]
	}
	return orders, nil
}

func (r *queries) orderItems(ctx context.Context, orderIDs []int64) (map[int64][]domain.OrderItem, error) {
	query := `SELECT id, order_id, product_id, quantity, unit_price
	          FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, id`

	rows, err := r.q.QueryContext(ctx, query, pq.Array(orderIDs))
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	items := make(map[int64][]domain.OrderItem, len(orderIDs))
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items[it.OrderID] = append(items[it.OrderID], it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return items, nil
}

func (r *queries) UpdateOrderStatus(ctx context.Context, orderID int64, status domain.OrderStatus, payment domain.PaymentStatus) error {
	query := `UPDATE orders SET status = $2, payment_status = $3, updated_at = NOW() WHERE id = $1`
	return r.execOrder(ctx, "update order status", query, orderID, status, payment)
}

func (r *queries) SetPaymentReference(ctx context.Context, orderID int64, reference string) error {
	query := `UPDATE orders SET payment_reference = $2, updated_at = NOW() WHERE id = $1`
	return r.execOrder(ctx, "set payment reference", query, orderID, reference)
}

func (r *queries) MarkFulfilled(ctx context.Context, orderID int64) (bool, error) {
	query := `UPDATE orders SET fulfilled = TRUE, updated_at = NOW() WHERE id = $1 AND NOT fulfilled`

	res, err := r.q.ExecContext(ctx, query, orderID)
	if err != nil {
		return false, fmt.Errorf("mark fulfilled: %w", mapError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark fulfilled: %w", err)
	}
	return n == 1, nil
}

func (r *queries) execOrder(ctx context.Context, op, query string, args ...any) error {
	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
