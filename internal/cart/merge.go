package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/Chidera001-dev/e-commerce-system/internal/domain"
	"github.com/Chidera001-dev/e-commerce-system/internal/repository"
)

// Merge folds the guest cart into the user's durable cart. Existing lines
// keep max(existing, incoming) so a retried merge changes nothing; every
// merged line is repriced at the current catalog price. Once the merge
// commits the guest entry is removed, including when lines were skipped.
func (s *Store) Merge(ctx context.Context, guest, user domain.OwnerKey) (domain.CartView, error) {
	if guest.IsAuthenticated() {
		return nil, ErrGuestOnly
	}
	userID, ok := user.UserID()
	if !ok {
		return nil, ErrUserOnly
	}

	incoming, err := s.guestView(ctx, guest)
	if err != nil {
		return nil, err
	}
	if len(incoming) == 0 {
		return s.Read(ctx, user)
	}

	var view domain.CartView
	err = s.db.InTx(ctx, func(q repository.Queries) error {
		cart, err := q.GetOrCreateActiveCart(ctx, userID)
		if err != nil {
			return err
		}
		existing := domain.ViewOf(cart)

		for _, in := range incoming.Lines() {
			product, err := q.GetProduct(ctx, in.ProductID)
			if errors.Is(err, repository.ErrProductNotFound) {
				s.logger.WarnContext(ctx, "skipping unknown product in guest cart", "product_id", in.ProductID)
				continue
			}
			if err != nil {
				return err
			}

			qty := in.Quantity
			line := domain.CartLine{ProductID: in.ProductID, AddedAt: in.AddedAt}
			if cur, ok := existing[in.ProductID]; ok {
				qty = max(cur.Quantity, in.Quantity)
				line.AddedAt = cur.AddedAt
			}
			line.Quantity = qty
			line.UnitPrice = product.Price

			if err := q.UpsertCartLine(ctx, cart.ID, line); err != nil {
				return fmt.Errorf("merge product %d: %w", in.ProductID, err)
			}
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

	s.Invalidate(ctx, guest)
	s.refresh(ctx, user, view)
	return view, nil
}
