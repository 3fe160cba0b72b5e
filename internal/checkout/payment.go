package checkout

import (
	"context"
	"fmt"

	"github.com/Chidera001-dev/e-commerce-system/internal/domain"
	"github.com/Chidera001-dev/e-commerce-system/internal/repository"
)

// RetryPayment re-runs payment initiation for an order that is still
// pending/pending. The order is never re-created.
func (c *Coordinator) RetryPayment(ctx context.Context, owner domain.OwnerKey, orderID int64) (*Result, error) {
	userID, ok := owner.UserID()
	if !ok {
		return nil, ErrGuestCheckout
	}

	var order *domain.Order
	err := c.db.InTx(ctx, func(q repository.Queries) error {
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
	if !order.Payable() {
		return nil, ErrOrderNotPayable
	}

	return c.initiatePayment(ctx, order)
}

func (c *Coordinator) initiatePayment(ctx context.Context, order *domain.Order) (*Result, error) {
	res := &Result{Order: order}
	reference := domain.PaymentReference(order.ID)

	auth, err := c.gateway.Initiate(ctx, domain.PaymentRequest{
		Contact:   order.ContactEmail,
		Amount:    order.Total,
		Reference: reference,
	})
	if err != nil {
		c.logger.ErrorContext(ctx, "payment initiation failed", "order_id", order.ID, "error", err)
		return res, fmt.Errorf("%w: %v", ErrPaymentInitiation, err)
	}
	if auth.Reference == "" {
		auth.Reference = reference
	}
	res.Authorization = auth

	err = c.db.InTx(ctx, func(q repository.Queries) error {
		return q.SetPaymentReference(ctx, order.ID, auth.Reference)
	})
	if err != nil {
		c.logger.ErrorContext(ctx, "persist payment reference failed", "order_id", order.ID, "reference", auth.Reference, "error", err)
		return res, nil
	}
	order.PaymentReference = auth.Reference
	return res, nil
}
