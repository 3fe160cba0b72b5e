package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

const EventTypeFulfillmentRequested = "FulfillmentRequested"

type OutboxEvent struct {
	ID          int64
	EventID     string
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// FulfillmentTask is the queue message for one paid order.
type FulfillmentTask struct {
	OrderID     int64     `json:"order_id"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewFulfillmentEvent keys the event by order id so a second insert for the
// same order is rejected by the outbox's unique event id.
func NewFulfillmentEvent(orderID int64) (*OutboxEvent, error) {
	now := time.Now().UTC()
	payload, err := json.Marshal(FulfillmentTask{OrderID: orderID, RequestedAt: now})
	if err != nil {
		return nil, fmt.Errorf("marshal fulfillment task: %w", err)
	}
	return &OutboxEvent{
		EventID:     "fulfillment-" + strconv.FormatInt(orderID, 10),
		AggregateID: strconv.FormatInt(orderID, 10),
		EventType:   EventTypeFulfillmentRequested,
		Payload:     payload,
		CreatedAt:   now,
	}, nil
}
