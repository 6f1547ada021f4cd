package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// WebhookEventLogEntry is the append-only audit record of an inbound gateway event.
type WebhookEventLogEntry struct {
	ID              uuid.UUID       `json:"id"`
	EventID         string          `json:"event_id"`
	EventType       string          `json:"event_type"`
	ExternalID      string          `json:"external_id"`
	RawPayload      json.RawMessage `json:"raw_payload"`
	ReceivedAt      time.Time       `json:"received_at"`
	DispatchOutcome string          `json:"dispatch_outcome"`
}
