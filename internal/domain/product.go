package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product carries the catalog price and the stock ledger counter for one item.
type Product struct {
	ID        int64
	Name      string
	Price     decimal.Decimal
	Stock     int32
	CreatedAt time.Time
}
