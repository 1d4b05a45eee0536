package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zapdesk/golang_services/internal/core_messaging/domain"
	"github.com/zapdesk/golang_services/internal/dispatch_service/repository"
	"github.com/zapdesk/golang_services/internal/platform/database"
)

type PgAuditLogRepository struct {
	db     database.PgxIface
	logger *slog.Logger
}

func NewPgAuditLogRepository(db database.PgxIface, logger *slog.Logger) repository.AuditLogRepository {
	return &PgAuditLogRepository{db: db, logger: logger.With("component", "audit_log_repository_pg")}
}

func (r *PgAuditLogRepository) Record(ctx context.Context, entry *domain.AuditLogEntry) error {
	query := `
		INSERT INTO dispatch_audit_log (id, endpoint, caller_ip, payload, response, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.Exec(ctx, query,
		entry.ID, entry.Endpoint, entry.CallerIP, entry.Payload, entry.Response, entry.Status, entry.CreatedAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to record audit log entry", "error", err, "endpoint", entry.Endpoint)
		return fmt.Errorf("recording audit log entry: %w", err)
	}
	return nil
}
