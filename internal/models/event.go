package models

import (
	"encoding/json"
	"time"
)

// Tipos de entidade que geram eventos de workflow.
const (
	EntitySimulation   = "simulation"
	EntityUpload       = "upload"
	EntityVerification = "verification"
	EntityMargin       = "margin"
)

// WorkflowEvent — registro append-only de uma transição de estado.
// EntitySeq é monotônico por (entity_type, entity_id); assinantes usam o ID
// global como cursor de replay.
type WorkflowEvent struct {
	ID         int64           `json:"id"`
	UserID     int64           `json:"user_id"`
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	EntitySeq  int64           `json:"entitySeq"`
	FromStatus string          `json:"from"`
	ToStatus   string          `json:"to"`
	Actor      string          `json:"actor"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}
