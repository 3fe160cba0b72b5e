package checkout

import (
	"errors"
	"fmt"
)

var (
	ErrGuestCheckout     = errors.New("checkout requires an authenticated user")
	ErrEmptyCart         = errors.New("cart is empty, nothing to checkout")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrPaymentInitiation = errors.New("payment initiation failed")
	ErrOrderNotPayable   = errors.New("order is not awaiting payment")
)

type InsufficientStockError struct {
	ProductID int64
	Requested int32
	Available int32
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}
