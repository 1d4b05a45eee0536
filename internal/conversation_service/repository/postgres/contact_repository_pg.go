package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zapdesk/golang_services/internal/conversation_service/repository"
	"github.com/zapdesk/golang_services/internal/core_messaging/domain"
	"github.com/zapdesk/golang_services/internal/platform/database"
)

type PgContactRepository struct {
	db     database.PgxIface
	logger *slog.Logger
}

func NewPgContactRepository(db database.PgxIface, logger *slog.Logger) repository.ContactRepository {
	return &PgContactRepository{db: db, logger: logger.With("component", "contact_repository_pg")}
}

// Upsert inserts the contact or refreshes name/updated_at on phone conflict.
func (r *PgContactRepository) Upsert(ctx context.Context, contact *domain.Contact) error {
	query := `
		INSERT INTO contacts (id, phone, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (phone) DO UPDATE
		SET name = COALESCE(NULLIF(EXCLUDED.name, ''), contacts.name), updated_at = EXCLUDED.updated_at`
	_, err := r.db.Exec(ctx, query, contact.ID, contact.Phone, contact.Name, contact.CreatedAt, contact.UpdatedAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to upsert contact", "error", err, "phone", contact.Phone)
		return fmt.Errorf("upserting contact: %w", err)
	}
	return nil
}
