// Package fulfillment runs the post-payment side effects of an order off the
// request path.
package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Chidera001-dev/e-commerce-system/internal/domain"
	"github.com/Chidera001-dev/e-commerce-system/internal/notification"
	"github.com/Chidera001-dev/e-commerce-system/internal/repository"
)

var ErrNotPaid = errors.New("order is not paid")

type CartInvalidator interface {
	Invalidate(ctx context.Context, owner domain.OwnerKey)
}

type ShipmentRecorder interface {
	EnsureShipment(ctx context.Context, orderID int64) (*domain.Shipment, error)
}

type Worker struct {
	db        repository.Store
	carts     CartInvalidator
	shipments ShipmentRecorder
	sender    notification.Sender
	logger    *slog.Logger
}

func NewWorker(db repository.Store, carts CartInvalidator, shipments ShipmentRecorder, sender notification.Sender, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		db:        db,
		carts:     carts,
		shipments: shipments,
		sender:    sender,
		logger:    logger.With("component", "fulfillment"),
	}
}

// Process completes fulfillment for a paid order. Stock was already taken at
// checkout, so this only clears the cart cache, makes sure the shipment
// exists, sends the receipt and sets the fulfilled marker. Running it again
// after the marker is set does nothing, and a task for an order that does not
// exist is dropped.
func (w *Worker) Process(ctx context.Context, orderID int64) error {
	log := w.logger.With("order_id", orderID)

	var order *domain.Order
	err := w.db.InTx(ctx, func(q repository.Queries) error {
		var err error
		order, err = q.GetOrder(ctx, orderID)
		return err
	})
	if errors.Is(err, repository.ErrOrderNotFound) {
		log.WarnContext(ctx, "fulfillment task for unknown order, dropping")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load order: %w", err)
	}

	if order.Fulfilled {
		log.InfoContext(ctx, "order already fulfilled")
		return nil
	}
	if order.PaymentStatus != domain.PaymentStatusPaid {
		return Permanent(fmt.Errorf("%w: payment status %s", ErrNotPaid, order.PaymentStatus))
	}
	if order.Status == domain.OrderStatusCancelled {
		log.InfoContext(ctx, "order cancelled before fulfillment, skipping")
		return nil
	}

	w.carts.Invalidate(ctx, domain.UserOwner(order.UserID))

	if _, err := w.shipments.EnsureShipment(ctx, order.ID); err != nil {
		return err
	}

	if err := w.sender.Send(ctx, notification.Receipt(order)); err != nil {
		log.WarnContext(ctx, "receipt not sent", "error", err)
	}

	var marked bool
	err = w.db.InTx(ctx, func(q repository.Queries) error {
		var err error
		marked, err = q.MarkFulfilled(ctx, order.ID)
		return err
	})
	if err != nil {
		return fmt.Errorf("mark fulfilled: %w", err)
	}
	if !marked {
		log.InfoContext(ctx, "order was fulfilled concurrently")
		return nil
	}

	log.InfoContext(ctx, "order fulfilled")
	return nil
}
