package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Chidera001-dev/e-commerce-system/internal/domain"
)

func (r *queries) GetShipmentByOrder(ctx context.Context, orderID int64) (*domain.Shipment, error) {
	query := `SELECT id, order_id, shipping_full_name, shipping_phone, shipping_address, shipping_city,
	              shipping_state, shipping_postal_code, shipping_country, delivery_status,
	              tracking_number, courier_name, created_at, updated_at
	          FROM shipments WHERE order_id = $1`

	var s domain.Shipment
	err := r.q.QueryRowContext(ctx, query, orderID).Scan(
		&s.ID,
		&s.OrderID,
		&s.Destination.FullName,
		&s.Destination.Phone,
		&s.Destination.Address,
		&s.Destination.City,
		&s.Destination.State,
		&s.Destination.PostalCode,
		&s.Destination.Country,
		&s.DeliveryStatus,
		&s.TrackingNumber,
		&s.CourierName,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrShipmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query shipment: %w", mapError(err))
	}
	return &s, nil
}

func (r *queries) CreateShipment(ctx context.Context, s *domain.Shipment) error {
	query := `INSERT INTO shipments (id, order_id, shipping_full_name, shipping_phone, shipping_address,
	              shipping_city, shipping_state, shipping_postal_code, shipping_country, delivery_status,
	              tracking_number, courier_name, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.q.ExecContext(ctx, query,
		s.ID,
		s.OrderID,
		s.Destination.FullName,
		s.Destination.Phone,
		s.Destination.Address,
		s.Destination.City,
		s.Destination.State,
		s.Destination.PostalCode,
		s.Destination.Country,
		s.DeliveryStatus,
		s.TrackingNumber,
		s.CourierName,
		s.CreatedAt,
		s.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateShipment
	}
	if err != nil {
		return fmt.Errorf("insert shipment: %w", mapError(err))
	}
	return nil
}

func (r *queries) UpdateShipmentStatus(ctx context.Context, orderID int64, status domain.DeliveryStatus) error {
	query := `UPDATE shipments SET delivery_status = $2, updated_at = NOW() WHERE order_id = $1`

	res, err := r.q.ExecContext(ctx, query, orderID, status)
	if err != nil {
		return fmt.Errorf("update shipment status: %w", mapError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update shipment status: %w", err)
	}
	if n == 0 {
		return ErrShipmentNotFound
	}
	return nil
}
