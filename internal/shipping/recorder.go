package shipping

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Chidera001-dev/e-commerce-system/internal/domain"
	"github.com/Chidera001-dev/e-commerce-system/internal/repository"
)

// Recorder owns shipment records. Carrier integration (labels, rates,
// tracking numbers) happens elsewhere and only updates these rows.
type Recorder struct {
	db     repository.Store
	logger *slog.Logger
}

func NewRecorder(db repository.Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{db: db, logger: logger.With("component", "shipping")}
}

// EnsureShipment returns the order's shipment, creating it from the order's
// shipping snapshot with delivery status pending if none exists yet.
func (r *Recorder) EnsureShipment(ctx context.Context, orderID int64) (*domain.Shipment, error) {
	var shipment *domain.Shipment
	err := r.db.InTx(ctx, func(q repository.Queries) error {
		existing, err := q.GetShipmentByOrder(ctx, orderID)
		if err == nil {
			shipment = existing
			return nil
		}
		if !errors.Is(err, repository.ErrShipmentNotFound) {
			return err
		}

		order, err := q.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		shipment = domain.NewShipment(order)
		return q.CreateShipment(ctx, shipment)
	})
	if errors.Is(err, repository.ErrDuplicateShipment) {
		// lost a race with a concurrent delivery; its row is the shipment
		return r.Get(ctx, orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("ensure shipment: %w", err)
	}

	r.logger.DebugContext(ctx, "shipment ensured", "order_id", orderID, "shipment_id", shipment.ID)
	return shipment, nil
}

func (r *Recorder) Get(ctx context.Context, orderID int64) (*domain.Shipment, error) {
	var shipment *domain.Shipment
	err := r.db.InTx(ctx, func(q repository.Queries) error {
		var err error
		shipment, err = q.GetShipmentByOrder(ctx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return shipment, nil
}
