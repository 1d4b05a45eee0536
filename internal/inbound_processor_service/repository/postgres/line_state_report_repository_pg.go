package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zapdesk/golang_services/internal/core_messaging/domain"
	"github.com/zapdesk/golang_services/internal/inbound_processor_service/repository"
	"github.com/zapdesk/golang_services/internal/platform/database"
)

type PgLineStateReportRepository struct {
	db     database.PgxIface
	logger *slog.Logger
}

func NewPgLineStateReportRepository(db database.PgxIface, logger *slog.Logger) repository.LineStateReportRepository {
	return &PgLineStateReportRepository{db: db, logger: logger.With("component", "line_state_report_repository_pg")}
}

func (r *PgLineStateReportRepository) Create(ctx context.Context, report *domain.LineStateReport) error {
	query := `
		INSERT INTO line_state_reports (id, line_id, reported_status, source, confirmed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.Exec(ctx, query,
		report.ID, report.LineID, report.ReportedStatus, report.Source, report.Confirmed, report.CreatedAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to create line state report", "error", err, "line_id", report.LineID)
		return fmt.Errorf("creating line state report: %w", err)
	}
	return nil
}
