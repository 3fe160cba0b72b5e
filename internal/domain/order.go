package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	return len(orderTransitions[s]) == 0
}

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	return s == PaymentStatusPending && (next == PaymentStatusPaid || next == PaymentStatusFailed)
}

type IllegalTransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal order transition from %s to %s", e.From, e.To)
}

var ErrInvalidDestination = errors.New("invalid shipping destination")

// ShippingDestination is copied onto the order and its shipment, never referenced.
type ShippingDestination struct {
	FullName   string `json:"full_name"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

func (d ShippingDestination) Validate() error {
	missing := []string{}
	if strings.TrimSpace(d.FullName) == "" {
		missing = append(missing, "full_name")
	}
	if strings.TrimSpace(d.Address) == "" {
		missing = append(missing, "address")
	}
	if strings.TrimSpace(d.City) == "" {
		missing = append(missing, "city")
	}
	if strings.TrimSpace(d.Country) == "" {
		missing = append(missing, "country")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidDestination, strings.Join(missing, ", "))
	}
	return nil
}

type Order struct {
	ID               int64
	UserID           string
	ContactEmail     string
	Total            decimal.Decimal
	Status           OrderStatus
	PaymentStatus    PaymentStatus
	PaymentReference string
	Fulfilled        bool
	Shipping         ShippingDestination
	Items            []OrderItem
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type OrderItem struct {
	ID        int64
	OrderID   int64
	ProductID int64
	Quantity  int32
	UnitPrice decimal.Decimal
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt32(i.Quantity))
}

// NewOrder builds a pending order from cart lines. Prices are copied as snapshotted.
func NewOrder(userID, contact string, dest ShippingDestination, lines []CartLine) *Order {
	now := time.Now().UTC()
	o := &Order{
		UserID:        userID,
		ContactEmail:  contact,
		Total:         decimal.Zero,
		Status:        OrderStatusPending,
		PaymentStatus: PaymentStatusPending,
		Shipping:      dest,
		Items:         make([]OrderItem, 0, len(lines)),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for _, l := range lines {
		item := OrderItem{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: l.UnitPrice}
		o.Items = append(o.Items, item)
		o.Total = o.Total.Add(item.Subtotal())
	}
	return o
}

// Payable reports whether payment may still be initiated for the order.
func (o *Order) Payable() bool {
	return o.Status == OrderStatusPending && o.PaymentStatus == PaymentStatusPending
}

const referencePrefix = "ORD-"

var ErrInvalidReference = errors.New("invalid payment reference")

func PaymentReference(orderID int64) string {
	return referencePrefix + strconv.FormatInt(orderID, 10)
}

func ParsePaymentReference(ref string) (int64, error) {
	raw, ok := strings.CutPrefix(strings.TrimSpace(ref), referencePrefix)
	if !ok {
		return 0, ErrInvalidReference
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidReference
	}
	return id, nil
}
