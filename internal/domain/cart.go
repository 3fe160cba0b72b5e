package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrInvalidPrice    = errors.New("unit price must not be negative")
	ErrInvalidProduct  = errors.New("invalid product id")
	ErrMalformedView   = errors.New("malformed cart view")
)

// Cart is the durable record. Only authenticated principals own one.
type Cart struct {
	ID        uuid.UUID
	UserID    string
	Active    bool
	Lines     []CartLine
	CreatedAt time.Time
	UpdatedAt time.Time
}

type CartLine struct {
	ProductID int64
	Quantity  int32
	UnitPrice decimal.Decimal
	AddedAt   time.Time
}

func NewCartLine(productID int64, quantity int32, unitPrice decimal.Decimal) (CartLine, error) {
	if productID <= 0 {
		return CartLine{}, ErrInvalidProduct
	}
	if quantity <= 0 {
		return CartLine{}, ErrInvalidQuantity
	}
	if unitPrice.IsNegative() {
		return CartLine{}, ErrInvalidPrice
	}
	return CartLine{
		ProductID: productID,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		AddedAt:   time.Now().UTC(),
	}, nil
}

func (l CartLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt32(l.Quantity))
}

// CartView is the projection shared by the cache and the API: product id to line.
type CartView map[int64]CartLine

// ViewOf projects durable lines. A nil cart yields an empty view.
func ViewOf(c *Cart) CartView {
	v := CartView{}
	if c == nil {
		return v
	}
	for _, l := range c.Lines {
		v[l.ProductID] = l
	}
	return v
}

func (v CartView) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range v {
		total = total.Add(l.Subtotal())
	}
	return total
}

// Lines returns the lines ordered by product id.
func (v CartView) Lines() []CartLine {
	lines := make([]CartLine, 0, len(v))
	for _, l := range v {
		lines = append(lines, l)
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
	return lines
}

func (v CartView) Clone() CartView {
	c := make(CartView, len(v))
	for k, l := range v {
		c[k] = l
	}
	return c
}

type cachedLine struct {
	Quantity  *int32           `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal  `json:"subtotal"`
	AddedAt   time.Time        `json:"added_at,omitempty"`
}

func (v CartView) MarshalJSON() ([]byte, error) {
	out := make(map[string]cachedLine, len(v))
	for pid, l := range v {
		q, p := l.Quantity, l.UnitPrice
		out[strconv.FormatInt(pid, 10)] = cachedLine{
			Quantity:  &q,
			UnitPrice: &p,
			Subtotal:  l.Subtotal(),
			AddedAt:   l.AddedAt,
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts only a well-formed mapping. Any stored subtotal is
// ignored and recomputed from quantity and unit price.
func (v *CartView) UnmarshalJSON(data []byte) error {
	var raw map[string]*cachedLine
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedView, err)
	}
	if raw == nil {
		return fmt.Errorf("%w: null", ErrMalformedView)
	}

	view := make(CartView, len(raw))
	for key, cl := range raw {
		pid, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: product key %q", ErrMalformedView, key)
		}
		if cl == nil || cl.Quantity == nil || cl.UnitPrice == nil {
			return fmt.Errorf("%w: product %d missing fields", ErrMalformedView, pid)
		}
		line, err := NewCartLine(pid, *cl.Quantity, *cl.UnitPrice)
		if err != nil {
			return fmt.Errorf("%w: product %d: %v", ErrMalformedView, pid, err)
		}
		if !cl.AddedAt.IsZero() {
			line.AddedAt = cl.AddedAt
		}
		view[pid] = line
	}
	*v = view
	return nil
}
