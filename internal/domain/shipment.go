package domain

import (
	"time"

	"github.com/google/uuid"
)

type DeliveryStatus string

const (
	DeliveryStatusPending    DeliveryStatus = "pending"
	DeliveryStatusProcessing DeliveryStatus = "processing"
	DeliveryStatusDispatched DeliveryStatus = "dispatched"
	DeliveryStatusInTransit  DeliveryStatus = "in_transit"
	DeliveryStatusDelivered  DeliveryStatus = "delivered"
	DeliveryStatusCancelled  DeliveryStatus = "cancelled"
)

type Shipment struct {
	ID             uuid.UUID
	OrderID        int64
	Destination    ShippingDestination
	DeliveryStatus DeliveryStatus
	TrackingNumber string
	CourierName    string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func NewShipment(o *Order) *Shipment {
	now := time.Now().UTC()
	return &Shipment{
		ID:             uuid.New(),
		OrderID:        o.ID,
		Destination:    o.Shipping,
		DeliveryStatus: DeliveryStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
