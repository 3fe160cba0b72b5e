package cart

import (
	"context"
	"testing"

	"github.com/Chidera001-dev/e-commerce-system/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge_MaxQuantityAndCurrentPrice(t *testing.T) {
	s, db, c := setupStore(t)
	ctx := context.Background()
	guest := domain.OwnerKey("session-1")
	user := domain.UserOwner("42")

	_, err := s.AddItem(ctx, user, 1, 3)
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, guest, domain.CartView{
		1: {ProductID: 1, Quantity: 2, UnitPrice: decimal.RequireFromString("9.99")},
		2: {ProductID: 2, Quantity: 4, UnitPrice: decimal.RequireFromString("1.00")},
	}))

	view, err := s.Merge(ctx, guest, user)
	require.NoError(t, err)

	assert.Equal(t, int32(3), view[1].Quantity, "max(existing, incoming)")
	assert.Equal(t, int32(4), view[2].Quantity)
	assert.True(t, decimal.RequireFromString("5.00").Equal(view[2].UnitPrice), "guest snapshot price is replaced")
	assert.False(t, c.has(guest))
	assert.Len(t, durableCart(t, db, "42").Lines, 2)
}

func TestMerge_Idempotent(t *testing.T) {
	s, _, c := setupStore(t)
	ctx := context.Background()
	guest := domain.OwnerKey("session-1")
	user := domain.UserOwner("42")
	guestCart := domain.CartView{
		1: {ProductID: 1, Quantity: 2, UnitPrice: decimal.RequireFromString("15.00")},
	}

	require.NoError(t, c.Set(ctx, guest, guestCart))
	once, err := s.Merge(ctx, guest, user)
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, guest, guestCart))
	twice, err := s.Merge(ctx, guest, user)
	require.NoError(t, err)

	assert.Equal(t, once[1].Quantity, twice[1].Quantity)
	assert.True(t, once.Total().Equal(twice.Total()))
}

func TestMerge_EmptyGuestIsNoop(t *testing.T) {
	s, _, _ := setupStore(t)
	ctx := context.Background()
	user := domain.UserOwner("42")

	_, err := s.AddItem(ctx, user, 2, 1)
	require.NoError(t, err)

	view, err := s.Merge(ctx, "session-none", user)
	require.NoError(t, err)
	assert.Len(t, view, 1)
}

func TestMerge_SkipsUnknownProducts(t *testing.T) {
	s, _, c := setupStore(t)
	ctx := context.Background()
	guest := domain.OwnerKey("session-1")

	require.NoError(t, c.Set(ctx, guest, domain.CartView{
		404: {ProductID: 404, Quantity: 1, UnitPrice: decimal.NewFromInt(1)},
		1:   {ProductID: 1, Quantity: 1, UnitPrice: decimal.NewFromInt(1)},
	}))

	view, err := s.Merge(ctx, guest, domain.UserOwner("42"))
	require.NoError(t, err)
	assert.Len(t, view, 1)
	assert.False(t, c.has(guest))
}

func TestMerge_RejectsWrongOwners(t *testing.T) {
	s, _, _ := setupStore(t)
	ctx := context.Background()

	_, err := s.Merge(ctx, domain.UserOwner("1"), domain.UserOwner("2"))
	assert.ErrorIs(t, err, ErrGuestOnly)

	_, err = s.Merge(ctx, "session-1", "session-2")
	assert.ErrorIs(t, err, ErrUserOnly)
}
