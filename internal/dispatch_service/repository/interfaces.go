package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/zapdesk/golang_services/internal/core_messaging/domain"
)

// TemplateRepository serves approved message templates.
type TemplateRepository interface {
	// GetByID returns (nil, nil) when the template does not exist.
	GetByID(ctx context.Context, templateID uuid.UUID) (*domain.Template, error)
}

// AuditLogRepository persists request/response snapshots of dispatch
// calls. Recording failures must not fail the call being audited.
type AuditLogRepository interface {
	Record(ctx context.Context, entry *domain.AuditLogEntry) error
}
