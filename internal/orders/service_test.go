package orders

import (
	"context"
	"errors"
	"testing"

	"github.com/Chidera001-dev/e-commerce-system/internal/domain"
	"github.com/Chidera001-dev/e-commerce-system/internal/repository"
	"github.com/Chidera001-dev/e-commerce-system/internal/repository/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var dest = domain.ShippingDestination{FullName: "Ada", Address: "1 Marina", City: "Lagos", Country: "NG"}

// placeOrder mimics checkout: stock is taken when the order is created.
func placeOrder(t *testing.T, db *memory.Store, userID string, lines ...domain.CartLine) *domain.Order {
	t.Helper()
	ctx := context.Background()
	order := domain.NewOrder(userID, userID+"@example.com", dest, lines)
	err := db.InTx(ctx, func(q repository.Queries) error {
		for _, l := range lines {
			if err := q.AdjustStock(ctx, l.ProductID, -l.Quantity); err != nil {
				return err
			}
		}
		return q.CreateOrder(ctx, order)
	})
	require.NoError(t, err)
	return order
}

func pay(t *testing.T, db *memory.Store, order *domain.Order, withShipment bool) {
	t.Helper()
	ctx := context.Background()
	err := db.InTx(ctx, func(q repository.Queries) error {
		if err := q.UpdateOrderStatus(ctx, order.ID, domain.OrderStatusProcessing, domain.PaymentStatusPaid); err != nil {
			return err
		}
		if !withShipment {
			return nil
		}
		o, err := q.GetOrder(ctx, order.ID)
		if err != nil {
			return err
		}
		return q.CreateShipment(ctx, domain.NewShipment(o))
	})
	require.NoError(t, err)
}

func shipmentOf(t *testing.T, db *memory.Store, orderID int64) *domain.Shipment {
	t.Helper()
	var s *domain.Shipment
	err := db.InTx(context.Background(), func(q repository.Queries) error {
		var err error
		s, err = q.GetShipmentByOrder(context.Background(), orderID)
		return err
	})
	require.NoError(t, err)
	return s
}

func setup(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	db := memory.NewStore()
	db.SetProduct(1, "Widget", decimal.RequireFromString("15.00"), 5)
	db.SetProduct(2, "Gadget", decimal.RequireFromString("5.00"), 10)
	return NewService(db, nil), db
}

func line(pid int64, qty int32) domain.CartLine {
	return domain.CartLine{ProductID: pid, Quantity: qty, UnitPrice: decimal.NewFromInt(1)}
}

func TestGet_OwnerOnly(t *testing.T) {
	s, db := setup(t)
	order := placeOrder(t, db, "42", line(1, 1))
	ctx := context.Background()

	got, err := s.Get(ctx, domain.UserOwner("42"), order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)

	_, err = s.Get(ctx, domain.UserOwner("7"), order.ID)
	assert.ErrorIs(t, err, repository.ErrOrderNotFound)

	_, err = s.Get(ctx, "session-1", order.ID)
	assert.ErrorIs(t, err, ErrAuthenticationRequired)
}

func TestList_NewestFirst(t *testing.T) {
	s, db := setup(t)
	first := placeOrder(t, db, "42", line(1, 1))
	second := placeOrder(t, db, "42", line(2, 1))
	placeOrder(t, db, "7", line(2, 1))

	orders, err := s.List(context.Background(), domain.UserOwner("42"))
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, second.ID, orders[0].ID)
	assert.Equal(t, first.ID, orders[1].ID)
}

func TestCancelOwned_RestocksPendingOrder(t *testing.T) {
	s, db := setup(t)
	order := placeOrder(t, db, "42", line(1, 2), line(2, 3))
	require.Equal(t, int32(3), db.Stock(1))
	require.Equal(t, int32(7), db.Stock(2))

	got, err := s.CancelOwned(context.Background(), domain.UserOwner("42"), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, got.Status)
	assert.Equal(t, int32(5), db.Stock(1))
	assert.Equal(t, int32(10), db.Stock(2))

	_, err = s.CancelOwned(context.Background(), domain.UserOwner("42"), order.ID)
	var illegal *domain.IllegalTransitionError
	assert.True(t, errors.As(err, &illegal), "cancelled is terminal")
	assert.Equal(t, int32(5), db.Stock(1), "no double restock")
}

func TestCancelOwned_Guards(t *testing.T) {
	s, db := setup(t)
	order := placeOrder(t, db, "42", line(1, 1))
	ctx := context.Background()

	_, err := s.CancelOwned(ctx, domain.UserOwner("7"), order.ID)
	assert.ErrorIs(t, err, repository.ErrOrderNotFound)

	pay(t, db, order, false)
	_, err = s.CancelOwned(ctx, domain.UserOwner("42"), order.ID)
	assert.ErrorIs(t, err, ErrAlreadyPaid)
	assert.Equal(t, int32(4), db.Stock(1))
}

func TestCancel_ProcessingOrderCancelsShipment(t *testing.T) {
	s, db := setup(t)
	order := placeOrder(t, db, "42", line(1, 2))
	pay(t, db, order, true)

	got, err := s.Cancel(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, got.Status)
	assert.Equal(t, domain.PaymentStatusPaid, got.PaymentStatus)
	assert.Equal(t, int32(5), db.Stock(1))
	assert.Equal(t, domain.DeliveryStatusCancelled, shipmentOf(t, db, order.ID).DeliveryStatus)
}

func TestShipAndDeliver(t *testing.T) {
	s, db := setup(t)
	order := placeOrder(t, db, "42", line(1, 1))
	ctx := context.Background()

	_, err := s.MarkShipped(ctx, order.ID)
	var illegal *domain.IllegalTransitionError
	require.True(t, errors.As(err, &illegal), "unpaid orders cannot ship")

	pay(t, db, order, true)

	got, err := s.MarkShipped(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusShipped, got.Status)
	assert.Equal(t, domain.DeliveryStatusDispatched, shipmentOf(t, db, order.ID).DeliveryStatus)

	_, err = s.Cancel(ctx, order.ID)
	assert.True(t, errors.As(err, &illegal), "shipped orders cannot be cancelled")

	got, err = s.MarkDelivered(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusDelivered, got.Status)
	assert.Equal(t, domain.DeliveryStatusDelivered, shipmentOf(t, db, order.ID).DeliveryStatus)
}

func TestMarkShipped_RequiresShipment(t *testing.T) {
	s, db := setup(t)
	order := placeOrder(t, db, "42", line(1, 1))
	pay(t, db, order, false)

	_, err := s.MarkShipped(context.Background(), order.ID)
	assert.ErrorIs(t, err, repository.ErrShipmentNotFound)
}
