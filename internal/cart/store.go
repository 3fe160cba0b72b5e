package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Chidera001-dev/e-commerce-system/internal/cache"
	"github.com/Chidera001-dev/e-commerce-system/internal/domain"
	"github.com/Chidera001-dev/e-commerce-system/internal/repository"
	"golang.org/x/sync/singleflight"
)

var (
	ErrNotEnoughStock = errors.New("not enough stock")
	ErrGuestOnly      = errors.New("merge source must be a guest cart")
	ErrUserOnly       = errors.New("merge target must be an authenticated cart")
)

// sharedReadTimeout bounds a coalesced read, which outlives any single caller.
const sharedReadTimeout = 5 * time.Second

// Store keeps the durable cart authoritative for authenticated owners and
// the cache as its derived view. Guest carts live only in the cache.
type Store struct {
	db     repository.Store
	cache  cache.CartCache
	logger *slog.Logger
	sfg    singleflight.Group
}

func NewStore(db repository.Store, c cache.CartCache, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		db:     db,
		cache:  c,
		logger: logger.With("component", "cart"),
	}
}

// Read returns the owner's cart view, rebuilding the cache from durable
// state on a miss. Cache hits slide the expiry window. Concurrent reads of
// one owner share a single load, so it runs detached from the caller that
// started it.
func (s *Store) Read(ctx context.Context, owner domain.OwnerKey) (domain.CartView, error) {
	ch := s.sfg.DoChan(owner.String(), func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedReadTimeout)
		defer cancel()

		view, err := s.cache.Get(ctx, owner)
		if err == nil {
			return view, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			if !owner.IsAuthenticated() {
				return nil, fmt.Errorf("read guest cart: %w", err)
			}
			s.logger.WarnContext(ctx, "cart cache read failed, using durable cart", "owner", owner, "error", err)
		}

		userID, ok := owner.UserID()
		if !ok {
			return domain.CartView{}, nil
		}

		var durable *domain.Cart
		errTx := s.db.InTx(ctx, func(q repository.Queries) error {
			var err error
			durable, err = q.GetOrCreateActiveCart(ctx, userID)
			return err
		})
		if errTx != nil {
			return nil, fmt.Errorf("load cart: %w", errTx)
		}

		view = domain.ViewOf(durable)
		s.refresh(ctx, owner, view)
		return view, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(domain.CartView).Clone(), nil
	}
}

// UpsertLine sets the line to exactly quantity, snapshotting the current
// catalog price. The subtotal is always derived from the two.
func (s *Store) UpsertLine(ctx context.Context, owner domain.OwnerKey, productID int64, quantity int32) (domain.CartView, error) {
	if productID <= 0 {
		return nil, domain.ErrInvalidProduct
	}
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	return s.apply(ctx, owner, productID, func(q repository.Queries, current *domain.CartLine) (domain.CartLine, error) {
		product, err := q.GetProduct(ctx, productID)
		if err != nil {
			return domain.CartLine{}, err
		}

		line, err := domain.NewCartLine(productID, quantity, product.Price)
		if err != nil {
			return domain.CartLine{}, err
		}
		if current != nil {
			line.AddedAt = current.AddedAt
		}
		return line, nil
	})
}

// AddItem increments the line by quantity and snapshots the current catalog price.
func (s *Store) AddItem(ctx context.Context, owner domain.OwnerKey, productID int64, quantity int32) (domain.CartView, error) {
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	return s.apply(ctx, owner, productID, func(q repository.Queries, current *domain.CartLine) (domain.CartLine, error) {
		product, err := q.GetProduct(ctx, productID)
		if err != nil {
			return domain.CartLine{}, err
		}

		total := quantity
		if current != nil {
			total += current.Quantity
		}
		if total > product.Stock {
			return domain.CartLine{}, fmt.Errorf("%w: product %d has %d available, cart wants %d",
				ErrNotEnoughStock, productID, product.Stock, total)
		}

		line, err := domain.NewCartLine(productID, total, product.Price)
		if err != nil {
			return domain.CartLine{}, err
		}
		if current != nil {
			line.AddedAt = current.AddedAt
		}
		return line, nil
	})
}

type lineChange func(q repository.Queries, current *domain.CartLine) (domain.CartLine, error)

func (s *Store) apply(ctx context.Context, owner domain.OwnerKey, productID int64, change lineChange) (domain.CartView, error) {
	if userID, ok := owner.UserID(); ok {
		var view domain.CartView
		err := s.db.InTx(ctx, func(q repository.Queries) error {
			cart, err := q.GetOrCreateActiveCart(ctx, userID)
			if err != nil {
				return err
			}

			next, err := change(q, findLine(cart.Lines, productID))
			if err != nil {
				return err
			}
			if err := q.UpsertCartLine(ctx, cart.ID, next); err != nil {
				return err
			}

			cart, err = q.GetActiveCart(ctx, userID)
			if err != nil {
				return err
			}
			view = domain.ViewOf(cart)
			return nil
		})
		if err != nil {
			return nil, err
		}

		s.refresh(ctx, owner, view)
		return view, nil
	}

	view, err := s.guestView(ctx, owner)
	if err != nil {
		return nil, err
	}

	var current *domain.CartLine
	if l, ok := view[productID]; ok {
		current = &l
	}

	var next domain.CartLine
	err = s.db.InTx(ctx, func(q repository.Queries) error {
		var err error
		next, err = change(q, current)
		return err
	})
	if err != nil {
		return nil, err
	}

	view[productID] = next
	if err := s.cache.Set(ctx, owner, view); err != nil {
		return nil, fmt.Errorf("write guest cart: %w", err)
	}
	return view, nil
}

// RemoveLine drops a product from the cart. A cart left empty is closed and
// its cache entry removed rather than stored as an empty object.
func (s *Store) RemoveLine(ctx context.Context, owner domain.OwnerKey, productID int64) (domain.CartView, error) {
	if userID, ok := owner.UserID(); ok {
		view := domain.CartView{}
		err := s.db.InTx(ctx, func(q repository.Queries) error {
			cart, err := q.GetActiveCart(ctx, userID)
			if errors.Is(err, repository.ErrCartNotFound) {
				return nil
			}
			if err != nil {
				return err
			}

			if err := q.DeleteCartLine(ctx, cart.ID, productID); err != nil {
				return err
			}
			cart, err = q.GetActiveCart(ctx, userID)
			if err != nil {
				return err
			}

			view = domain.ViewOf(cart)
			if len(view) == 0 {
				return q.DeactivateCart(ctx, cart.ID)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		s.refresh(ctx, owner, view)
		return view, nil
	}

	view, err := s.guestView(ctx, owner)
	if err != nil {
		return nil, err
	}
	delete(view, productID)
	if err := s.cache.Set(ctx, owner, view); err != nil {
		return nil, fmt.Errorf("write guest cart: %w", err)
	}
	return view, nil
}

// Invalidate drops the cached view. Failures are logged only.
func (s *Store) Invalidate(ctx context.Context, owner domain.OwnerKey) {
	if err := s.cache.Delete(ctx, owner); err != nil {
		s.logger.WarnContext(ctx, "cart cache invalidate failed", "owner", owner, "error", err)
	}
}

func (s *Store) guestView(ctx context.Context, owner domain.OwnerKey) (domain.CartView, error) {
	view, err := s.cache.Get(ctx, owner)
	if errors.Is(err, cache.ErrCacheMiss) {
		return domain.CartView{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read guest cart: %w", err)
	}
	return view, nil
}

// refresh rewrites the cached view from durable state. If the write fails
// the entry is dropped so the next read rebuilds it.
func (s *Store) refresh(ctx context.Context, owner domain.OwnerKey, view domain.CartView) {
	err := s.cache.Set(ctx, owner, view)
	if err == nil {
		return
	}
	s.logger.WarnContext(ctx, "cart cache write failed", "owner", owner, "error", err)
	s.Invalidate(ctx, owner)
}

func findLine(lines []domain.CartLine, productID int64) *domain.CartLine {
	for i := range lines {
		if lines[i].ProductID == productID {
			l := lines[i]
			return &l
		}
	}
	return nil
}
