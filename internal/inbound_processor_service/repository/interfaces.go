package repository

import (
	"context"

	"github.com/zapdesk/golang_services/internal/core_messaging/domain"
)

// LineStateReportRepository stores connection-state proposals. Reports
// never change line status themselves; a separate monitor confirms
// them.
type LineStateReportRepository interface {
	Create(ctx context.Context, report *domain.LineStateReport) error
}
