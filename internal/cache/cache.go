package cache

import (
	"context"
	"errors"

	"github.com/Chidera001-dev/e-commerce-system/internal/domain"
)

// CartCache holds the derived, disposable cart view per owner key.
type CartCache interface {
	Get(ctx context.Context, owner domain.OwnerKey) (domain.CartView, error)
	Set(ctx context.Context, owner domain.OwnerKey, view domain.CartView) error
	Delete(ctx context.Context, owner domain.OwnerKey) error
}

var ErrCacheMiss = errors.New("cache miss")
