package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated = "VoucherOrderCreated"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type OrderCreatedPayload struct {
	OrderID   int64  `json:"order_id"`
	UserID    int64  `json:"user_id"`
	VoucherID int64  `json:"voucher_id"`
	Status    Status `json:"status"`
}
