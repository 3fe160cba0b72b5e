package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/Chidera001-dev/e-commerce-system/internal/domain"
	"github.com/Chidera001-dev/e-commerce-system/internal/repository"
)

var (
	ErrAuthenticationRequired = errors.New("orders are only available to authenticated users")
	ErrAlreadyPaid            = errors.New("paid orders can only be cancelled by an operator")
)

type Service struct {
	db     repository.Store
	logger *slog.Logger
}

func NewService(db repository.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, logger: logger.With("component", "orders")}
}

// Get returns the order if owner placed it. Someone else's order is reported
// as not found.
func (s *Service) Get(ctx context.Context, owner domain.OwnerKey, orderID int64) (*domain.Order, error) {
	userID, ok := owner.UserID()
	if !ok {
		return nil, ErrAuthenticationRequired
	}

	var order *domain.Order
	err := s.db.InTx(ctx, func(q repository.Queries) error {
		var err error
		order, err = q.GetOrder(ctx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, repository.ErrOrderNotFound
	}
	return order, nil
}

// List returns owner's orders, newest first.
func (s *Service) List(ctx context.Context, owner domain.OwnerKey) ([]*domain.Order, error) {
	userID, ok := owner.UserID()
	if !ok {
		return nil, ErrAuthenticationRequired
	}

	var orders []*domain.Order
	err := s.db.InTx(ctx, func(q repository.Queries) error {
		var err error
		orders, err = q.ListOrdersByUser(ctx, userID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// CancelOwned lets a customer cancel an order they placed while it is still
// unpaid. Cancelling after payment needs a refund and goes through Cancel.
func (s *Service) CancelOwned(ctx context.Context, owner domain.OwnerKey, orderID int64) (*domain.Order, error) {
	userID, ok := owner.UserID()
	if !ok {
		return nil, ErrAuthenticationRequired
	}
	return s.cancel(ctx, orderID, func(o *domain.Order) error {
		if o.UserID != userID {
			return repository.ErrOrderNotFound
		}
		if o.PaymentStatus == domain.PaymentStatusPaid {
			return ErrAlreadyPaid
		}
		return nil
	})
}

// Cancel moves a pending or processing order to cancelled and puts every
// item back on the shelf in the same transaction.
func (s *Service) Cancel(ctx context.Context, orderID int64) (*domain.Order, error) {
	return s.cancel(ctx, orderID, nil)
}

func (s *Service) cancel(ctx context.Context, orderID int64, guard func(*domain.Order) error) (*domain.Order, error) {
	var order *domain.Order
	err := s.db.InTx(ctx, func(q repository.Queries) error {
		var err error
		order, err = q.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if guard != nil {
			if err := guard(order); err != nil {
				return err
			}
		}
		if !order.Status.CanTransitionTo(domain.OrderStatusCancelled) {
			return &domain.IllegalTransitionError{From: order.Status, To: domain.OrderStatusCancelled}
		}

		if err := restock(ctx, q, order.Items); err != nil {
			return err
		}
		if err := q.UpdateOrderStatus(ctx, order.ID, domain.OrderStatusCancelled, order.PaymentStatus); err != nil {
			return err
		}

		err = q.UpdateShipmentStatus(ctx, order.ID, domain.DeliveryStatusCancelled)
		if err != nil && !errors.Is(err, repository.ErrShipmentNotFound) {
			return fmt.Errorf("cancel shipment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	order.Status = domain.OrderStatusCancelled
	s.logger.InfoContext(ctx, "order cancelled", "order_id", order.ID, "restocked_items", len(order.Items))
	return order, nil
}

// restock returns each item's quantity to the ledger, taking the row locks in
// the same ascending order checkout does.
func restock(ctx context.Context, q repository.Queries, items []domain.OrderItem) error {
	qty := make(map[int64]int32, len(items))
	for _, it := range items {
		qty[it.ProductID] += it.Quantity
	}
	ids := make([]int64, 0, len(qty))
	for id := range qty {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	if _, err := q.LockStock(ctx, ids); err != nil {
		return fmt.Errorf("lock stock: %w", err)
	}
	for _, id := range ids {
		if err := q.AdjustStock(ctx, id, qty[id]); err != nil {
			return fmt.Errorf("restock product %d: %w", id, err)
		}
	}
	return nil
}

// MarkShipped records that the carrier has the parcel.
func (s *Service) MarkShipped(ctx context.Context, orderID int64) (*domain.Order, error) {
	return s.advance(ctx, orderID, domain.OrderStatusShipped, domain.DeliveryStatusDispatched)
}

// MarkDelivered closes out a shipped order.
func (s *Service) MarkDelivered(ctx context.Context, orderID int64) (*domain.Order, error) {
	return s.advance(ctx, orderID, domain.OrderStatusDelivered, domain.DeliveryStatusDelivered)
}

func (s *Service) advance(ctx context.Context, orderID int64, next domain.OrderStatus, delivery domain.DeliveryStatus) (*domain.Order, error) {
	var order *domain.Order
	err := s.db.InTx(ctx, func(q repository.Queries) error {
		var err error
		order, err = q.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if !order.Status.CanTransitionTo(next) {
			return &domain.IllegalTransitionError{From: order.Status, To: next}
		}
		if err := q.UpdateShipmentStatus(ctx, order.ID, delivery); err != nil {
			return fmt.Errorf("update shipment: %w", err)
		}
		return q.UpdateOrderStatus(ctx, order.ID, next, order.PaymentStatus)
	})
	if err != nil {
		return nil, err
	}

	order.Status = next
	s.logger.InfoContext(ctx, "order advanced", "order_id", order.ID, "status", next, "delivery_status", delivery)
	return order, nil
}
