package model

import (
	"time"

	"github.com/google/uuid"
)

// TenantProvisioned is sent to the webhook and the message broker once a
// tenant's tables exist.
type TenantProvisioned struct {
	TenantID    uuid.UUID `json:"tenant_id"`
	TenantName  string    `json:"tenant_name"`
	TablePrefix string    `json:"table_prefix"`
	Tables      []string  `json:"tables"`
	OccurredAt  time.Time `json:"occurred_at"`
}
