package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/zapdesk/golang_services/internal/conversation_service/repository"
	"github.com/zapdesk/golang_services/internal/core_messaging/domain"
	"github.com/zapdesk/golang_services/internal/platform/database"
)

type PgStickyBindingRepository struct {
	db     database.PgxIface
	logger *slog.Logger
}

func NewPgStickyBindingRepository(db database.PgxIface, logger *slog.Logger) repository.StickyBindingRepository {
	return &PgStickyBindingRepository{db: db, logger: logger.With("component", "sticky_binding_repository_pg")}
}

func (r *PgStickyBindingRepository) Get(ctx context.Context, contactPhone string, lineID uuid.UUID) (*domain.ConversationOperatorBinding, error) {
	query := `
		SELECT id, contact_phone, line_id, operator_id, expires_at, created_at, updated_at
		FROM conversation_operator_bindings
		WHERE contact_phone = $1 AND line_id = $2`
	var b domain.ConversationOperatorBinding
	err := r.db.QueryRow(ctx, query, contactPhone, lineID).Scan(
		&b.ID, &b.ContactPhone, &b.LineID, &b.OperatorID, &b.ExpiresAt, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.ErrorContext(ctx, "Failed to get sticky binding", "error", err, "contact_phone", contactPhone, "line_id", lineID)
		return nil, fmt.Errorf("querying sticky binding: %w", err)
	}
	return &b, nil
}

// Upsert writes the binding for (contact_phone, line_id). The unique
// constraint on the key guarantees at most one binding per pair.
func (r *PgStickyBindingRepository) Upsert(ctx context.Context, binding *domain.ConversationOperatorBinding) error {
	query := `
		INSERT INTO conversation_operator_bindings (id, contact_phone, line_id, operator_id, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (contact_phone, line_id) DO UPDATE
		SET operator_id = EXCLUDED.operator_id, expires_at = EXCLUDED.expires_at, updated_at = EXCLUDED.updated_at`
	_, err := r.db.Exec(ctx, query,
		binding.ID, binding.ContactPhone, binding.LineID, binding.OperatorID,
		binding.ExpiresAt, binding.CreatedAt, binding.UpdatedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to upsert sticky binding", "error", err, "contact_phone", binding.ContactPhone, "line_id", binding.LineID)
		return fmt.Errorf("upserting sticky binding: %w", err)
	}
	return nil
}
