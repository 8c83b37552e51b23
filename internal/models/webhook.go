package models

import "time"

// Estados de entrega de webhook de saída.
const (
	DeliveryPending   = "pending"
	DeliveryDelivered = "delivered"
	DeliveryDead      = "dead"
)

type WebhookDelivery struct {
	ID            int64      `json:"id"`
	EventID       int64      `json:"event_id"`
	TargetURL     string     `json:"target_url"`
	Status        string     `json:"status"`
	Attempts      int        `json:"attempts"`
	NextAttemptAt time.Time  `json:"next_attempt_at"`
	LastError     string     `json:"last_error,omitempty"`
	DeliveredAt   *time.Time `json:"delivered_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}
