package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Chidera001-dev/e-commerce-system/internal/domain"
	"github.com/Chidera001-dev/e-commerce-system/internal/metrics"
	"github.com/Chidera001-dev/e-commerce-system/internal/repository"
)

// PaymentGateway starts a payment and returns where to send the customer.
type PaymentGateway interface {
	Initiate(ctx context.Context, req domain.PaymentRequest) (*domain.PaymentAuthorization, error)
}

type CartInvalidator interface {
	Invalidate(ctx context.Context, owner domain.OwnerKey)
}

type Request struct {
	Owner       domain.OwnerKey
	Contact     string
	Destination domain.ShippingDestination
}

// Result always carries the committed order. Authorization is nil when the
// gateway could not be reached.
type Result struct {
	Order         *domain.Order
	Authorization *domain.PaymentAuthorization
}

type Coordinator struct {
	db      repository.Store
	carts   CartInvalidator
	gateway PaymentGateway
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewCoordinator(db repository.Store, carts CartInvalidator, gateway PaymentGateway, m *metrics.Metrics, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		db:      db,
		carts:   carts,
		gateway: gateway,
		metrics: m,
		logger:  logger.With("component", "checkout"),
	}
}

// Checkout turns the owner's active cart into a pending order. Stock is
// validated and decremented under row locks in the same transaction that
// creates the order and closes the cart, so a failure leaves nothing behind.
// Payment initiation happens after commit; if it fails the order stays
// pending and RetryPayment can be used with its id.
func (c *Coordinator) Checkout(ctx context.Context, req Request) (*Result, error) {
	userID, ok := req.Owner.UserID()
	if !ok {
		c.metrics.ObserveCheckout("guest")
		return nil, ErrGuestCheckout
	}
	if err := req.Destination.Validate(); err != nil {
		c.metrics.ObserveCheckout("invalid")
		return nil, err
	}

	var order *domain.Order
	err := c.db.InTx(ctx, func(q repository.Queries) error {
		cart, err := q.LockActiveCart(ctx, userID)
		if errors.Is(err, repository.ErrCartNotFound) {
			return ErrEmptyCart
		}
		if err != nil {
			return fmt.Errorf("load cart: %w", err)
		}
		lines := domain.ViewOf(cart).Lines()
		if len(lines) == 0 {
			return ErrEmptyCart
		}

		if err := reserveStock(ctx, q, lines); err != nil {
			return err
		}

		order = domain.NewOrder(userID, req.Contact, req.Destination, lines)
		if err := q.CreateOrder(ctx, order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		if err := q.DeleteCartLines(ctx, cart.ID); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}
		if err := q.DeactivateCart(ctx, cart.ID); err != nil {
			return fmt.Errorf("close cart: %w", err)
		}
		return nil
	})
	if err != nil {
		c.metrics.ObserveCheckout(outcomeOf(err))
		return nil, err
	}

	c.carts.Invalidate(ctx, req.Owner)
	c.logger.InfoContext(ctx, "order created", "order_id", order.ID, "user_id", userID, "total", order.Total.StringFixed(2))

	res, err := c.initiatePayment(ctx, order)
	if err != nil {
		c.metrics.ObserveCheckout("payment_unavailable")
		return res, err
	}
	c.metrics.ObserveCheckout("created")
	return res, nil
}

// reserveStock locks every product row in ascending id order, checks all
// lines, and only then decrements.
func reserveStock(ctx context.Context, q repository.Queries, lines []domain.CartLine) error {
	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}

	available, err := q.LockStock(ctx, ids)
	if err != nil {
		return fmt.Errorf("lock stock: %w", err)
	}

	for _, l := range lines {
		if available[l.ProductID] < l.Quantity {
			return &InsufficientStockError{
				ProductID: l.ProductID,
				Requested: l.Quantity,
				Available: available[l.ProductID],
			}
		}
	}

	for _, l := range lines {
		if err := q.AdjustStock(ctx, l.ProductID, -l.Quantity); err != nil {
			return fmt.Errorf("decrement stock: %w", err)
		}
	}
	return nil
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, repository.ErrLockTimeout):
		return "lock_timeout"
	default:
		return "error"
	}
}
