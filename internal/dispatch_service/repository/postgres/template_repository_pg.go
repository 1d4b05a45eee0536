package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/zapdesk/golang_services/internal/core_messaging/domain"
	"github.com/zapdesk/golang_services/internal/dispatch_service/repository"
	"github.com/zapdesk/golang_services/internal/platform/database"
)

type PgTemplateRepository struct {
	db     database.PgxIface
	logger *slog.Logger
}

func NewPgTemplateRepository(db database.PgxIface, logger *slog.Logger) repository.TemplateRepository {
	return &PgTemplateRepository{db: db, logger: logger.With("component", "template_repository_pg")}
}

func (r *PgTemplateRepository) GetByID(ctx context.Context, templateID uuid.UUID) (*domain.Template, error) {
	query := `SELECT id, name, language, body, created_at FROM templates WHERE id = $1`
	var t domain.Template
	err := r.db.QueryRow(ctx, query, templateID).Scan(&t.ID, &t.Name, &t.Language, &t.Body, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying template %s: %w", templateID, err)
	}
	return &t, nil
}
