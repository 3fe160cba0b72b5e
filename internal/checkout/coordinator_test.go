package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Chidera001-dev/e-commerce-system/internal/domain"
	"github.com/Chidera001-dev/e-commerce-system/internal/repository"
	"github.com/Chidera001-dev/e-commerce-system/internal/repository/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockGateway struct {
	m     sync.Mutex
	err   error
	calls []domain.PaymentRequest
}

func (g *mockGateway) Initiate(_ context.Context, req domain.PaymentRequest) (*domain.PaymentAuthorization, error) {
	g.m.Lock()
	defer g.m.Unlock()
	g.calls = append(g.calls, req)
	if g.err != nil {
		return nil, g.err
	}
	return &domain.PaymentAuthorization{
		AuthorizationURL: "https://pay.example/" + req.Reference,
		AccessCode:       "code-" + req.Reference,
		Reference:        req.Reference,
	}, nil
}

type mockInvalidator struct {
	m      sync.Mutex
	owners []domain.OwnerKey
}

func (i *mockInvalidator) Invalidate(_ context.Context, owner domain.OwnerKey) {
	i.m.Lock()
	defer i.m.Unlock()
	i.owners = append(i.owners, owner)
}

var testDestination = domain.ShippingDestination{
	FullName: "Ada Lovelace",
	Address:  "1 Marina",
	City:     "Lagos",
	Country:  "NG",
}

func setup(t *testing.T) (*Coordinator, *memory.Store, *mockGateway, *mockInvalidator) {
	t.Helper()
	db := memory.NewStore()
	gw := &mockGateway{}
	inv := &mockInvalidator{}
	return NewCoordinator(db, inv, gw, nil, nil), db, gw, inv
}

func fillCart(t *testing.T, db *memory.Store, userID string, lines ...domain.CartLine) {
	t.Helper()
	ctx := context.Background()
	err := db.InTx(ctx, func(q repository.Queries) error {
		cart, err := q.GetOrCreateActiveCart(ctx, userID)
		if err != nil {
			return err
		}
		for _, l := range lines {
			if err := q.UpsertCartLine(ctx, cart.ID, l); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func line(pid int64, qty int32, price string) domain.CartLine {
	l, _ := domain.NewCartLine(pid, qty, decimal.RequireFromString(price))
	return l
}

func activeCart(t *testing.T, db *memory.Store, userID string) *domain.Cart {
	t.Helper()
	var cart *domain.Cart
	err := db.InTx(context.Background(), func(q repository.Queries) error {
		var err error
		cart, err = q.GetActiveCart(context.Background(), userID)
		return err
	})
	if errors.Is(err, repository.ErrCartNotFound) {
		return nil
	}
	require.NoError(t, err)
	return cart
}

func listOrders(t *testing.T, db *memory.Store, userID string) []*domain.Order {
	t.Helper()
	var orders []*domain.Order
	err := db.InTx(context.Background(), func(q repository.Queries) error {
		var err error
		orders, err = q.ListOrdersByUser(context.Background(), userID)
		return err
	})
	require.NoError(t, err)
	return orders
}

func TestCheckout_Success(t *testing.T) {
	c, db, gw, inv := setup(t)
	db.SetProduct(1, "A", decimal.RequireFromString("15.00"), 5)
	fillCart(t, db, "42", line(1, 2, "15.00"))
	owner := domain.UserOwner("42")

	res, err := c.Checkout(context.Background(), Request{Owner: owner, Contact: "ada@example.com", Destination: testDestination})
	require.NoError(t, err)

	assert.True(t, decimal.RequireFromString("30.00").Equal(res.Order.Total))
	assert.Equal(t, domain.OrderStatusPending, res.Order.Status)
	assert.Equal(t, domain.PaymentStatusPending, res.Order.PaymentStatus)
	assert.Equal(t, int32(3), db.Stock(1))
	assert.Nil(t, activeCart(t, db, "42"), "cart must be closed")
	assert.Equal(t, []domain.OwnerKey{owner}, inv.owners)

	require.NotNil(t, res.Authorization)
	ref := domain.PaymentReference(res.Order.ID)
	assert.Equal(t, ref, res.Authorization.Reference)
	require.Len(t, gw.calls, 1)
	assert.True(t, res.Order.Total.Equal(gw.calls[0].Amount))
	assert.Equal(t, "ada@example.com", gw.calls[0].Contact)

	orders := listOrders(t, db, "42")
	require.Len(t, orders, 1)
	assert.Equal(t, ref, orders[0].PaymentReference)
	assert.Equal(t, testDestination, orders[0].Shipping)
	require.Len(t, orders[0].Items, 1)
	assert.True(t, decimal.RequireFromString("15.00").Equal(orders[0].Items[0].UnitPrice))
}

func TestCheckout_InsufficientStock(t *testing.T) {
	c, db, gw, _ := setup(t)
	db.SetProduct(2, "B", decimal.RequireFromString("5.00"), 4)
	fillCart(t, db, "42", line(2, 10, "5.00"))

	_, err := c.Checkout(context.Background(), Request{Owner: domain.UserOwner("42"), Destination: testDestination})
	require.ErrorIs(t, err, ErrInsufficientStock)

	var stockErr *InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, int64(2), stockErr.ProductID)
	assert.Equal(t, int32(10), stockErr.Requested)
	assert.Equal(t, int32(4), stockErr.Available)

	assert.Equal(t, int32(4), db.Stock(2))
	assert.Empty(t, listOrders(t, db, "42"))
	cart := activeCart(t, db, "42")
	require.NotNil(t, cart)
	assert.Len(t, cart.Lines, 1)
	assert.Empty(t, gw.calls)
}

func TestCheckout_AllOrNothing(t *testing.T) {
	c, db, _, _ := setup(t)
	db.SetProduct(1, "A", decimal.RequireFromString("1.00"), 10)
	db.SetProduct(2, "B", decimal.RequireFromString("1.00"), 1)
	fillCart(t, db, "42", line(1, 3, "1.00"), line(2, 2, "1.00"))

	_, err := c.Checkout(context.Background(), Request{Owner: domain.UserOwner("42"), Destination: testDestination})
	require.ErrorIs(t, err, ErrInsufficientStock)

	assert.Equal(t, int32(10), db.Stock(1))
	assert.Equal(t, int32(1), db.Stock(2))
}

func TestCheckout_Validation(t *testing.T) {
	c, db, _, _ := setup(t)
	ctx := context.Background()

	_, err := c.Checkout(ctx, Request{Owner: "session-1", Destination: testDestination})
	assert.ErrorIs(t, err, ErrGuestCheckout)

	_, err = c.Checkout(ctx, Request{Owner: domain.UserOwner("42"), Destination: testDestination})
	assert.ErrorIs(t, err, ErrEmptyCart)

	fillCart(t, db, "43")
	_, err = c.Checkout(ctx, Request{Owner: domain.UserOwner("43"), Destination: testDestination})
	assert.ErrorIs(t, err, ErrEmptyCart)

	_, err = c.Checkout(ctx, Request{Owner: domain.UserOwner("43"), Destination: domain.ShippingDestination{}})
	assert.ErrorIs(t, err, domain.ErrInvalidDestination)
}

func TestCheckout_GatewayDownLeavesOrderPending(t *testing.T) {
	c, db, gw, _ := setup(t)
	db.SetProduct(1, "A", decimal.RequireFromString("15.00"), 5)
	fillCart(t, db, "42", line(1, 1, "15.00"))
	gw.err = errors.New("dial tcp: connection refused")
	owner := domain.UserOwner("42")

	res, err := c.Checkout(context.Background(), Request{Owner: owner, Destination: testDestination})
	require.ErrorIs(t, err, ErrPaymentInitiation)
	require.NotNil(t, res)
	require.NotNil(t, res.Order)
	assert.Nil(t, res.Authorization)
	assert.Equal(t, int32(4), db.Stock(1), "order is committed before payment")

	gw.err = nil
	retry, err := c.RetryPayment(context.Background(), owner, res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Order.ID, retry.Order.ID)
	assert.Equal(t, domain.PaymentReference(res.Order.ID), retry.Authorization.Reference)
	assert.Len(t, listOrders(t, db, "42"), 1)
}

func TestRetryPayment_Guards(t *testing.T) {
	c, db, _, _ := setup(t)
	db.SetProduct(1, "A", decimal.RequireFromString("15.00"), 5)
	fillCart(t, db, "42", line(1, 1, "15.00"))
	ctx := context.Background()

	res, err := c.Checkout(ctx, Request{Owner: domain.UserOwner("42"), Destination: testDestination})
	require.NoError(t, err)

	_, err = c.RetryPayment(ctx, domain.UserOwner("other"), res.Order.ID)
	assert.ErrorIs(t, err, repository.ErrOrderNotFound)

	_, err = c.RetryPayment(ctx, domain.UserOwner("42"), 999)
	assert.ErrorIs(t, err, repository.ErrOrderNotFound)

	err = db.InTx(ctx, func(q repository.Queries) error {
		return q.UpdateOrderStatus(ctx, res.Order.ID, domain.OrderStatusProcessing, domain.PaymentStatusPaid)
	})
	require.NoError(t, err)

	_, err = c.RetryPayment(ctx, domain.UserOwner("42"), res.Order.ID)
	assert.ErrorIs(t, err, ErrOrderNotPayable)
}

func TestCheckout_ConcurrentNeverOversells(t *testing.T) {
	c, db, _, _ := setup(t)
	const stock = 3
	const buyers = 10
	db.SetProduct(1, "Hot item", decimal.RequireFromString("9.99"), stock)
	for i := 0; i < buyers; i++ {
		fillCart(t, db, fmt.Sprintf("buyer-%d", i), line(1, 1, "9.99"))
	}

	var ok, short atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := c.Checkout(context.Background(), Request{
				Owner:       domain.UserOwner(fmt.Sprintf("buyer-%d", i)),
				Destination: testDestination,
			})
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, ErrInsufficientStock):
				short.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(stock), ok.Load())
	assert.Equal(t, int32(buyers-stock), short.Load())
	assert.Equal(t, int32(0), db.Stock(1))
}
