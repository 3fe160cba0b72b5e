package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentRequest struct {
	Contact   string
	Amount    decimal.Decimal
	Reference string
}

type PaymentAuthorization struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// DeadLetter records a fulfillment task that will not be retried automatically.
type DeadLetter struct {
	ID         string     `bson:"_id"`
	Topic      string     `bson:"topic"`
	Key        string     `bson:"key"`
	Payload    []byte     `bson:"payload"`
	OrderID    int64      `bson:"order_id"`
	Attempts   int        `bson:"attempts"`
	LastError  string     `bson:"last_error"`
	Permanent  bool       `bson:"permanent"`
	FailedAt   time.Time  `bson:"failed_at"`
	ReplayedAt *time.Time `bson:"replayed_at,omitempty"`
}
