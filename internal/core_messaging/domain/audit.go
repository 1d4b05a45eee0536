package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditLogEntry is a durable snapshot of one dispatch call, recorded
// for every invocation regardless of outcome.
type AuditLogEntry struct {
	ID        uuid.UUID
	Endpoint  string
	CallerIP  string
	Payload   []byte
	Response  []byte
	Status    string
	CreatedAt time.Time
}
