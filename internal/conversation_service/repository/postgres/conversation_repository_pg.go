package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/zapdesk/golang_services/internal/conversation_service/repository"
	"github.com/zapdesk/golang_services/internal/core_messaging/domain"
	"github.com/zapdesk/golang_services/internal/platform/database"
)

type PgConversationRepository struct {
	db     database.PgxIface
	logger *slog.Logger
}

func NewPgConversationRepository(db database.PgxIface, logger *slog.Logger) repository.ConversationRepository {
	return &PgConversationRepository{db: db, logger: logger.With("component", "conversation_repository_pg")}
}

func (r *PgConversationRepository) Create(ctx context.Context, conv *domain.Conversation) error {
	query := `
		INSERT INTO conversations (id, line_id, contact_phone, operator_id, direction, body, template_name, tabulated, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.db.Exec(ctx, query,
		conv.ID, conv.LineID, conv.ContactPhone, conv.OperatorID, conv.Direction,
		conv.Body, conv.TemplateName, conv.Tabulated, conv.CreatedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert conversation record", "error", err, "line_id", conv.LineID, "contact_phone", conv.ContactPhone)
		return fmt.Errorf("inserting conversation record: %w", err)
	}
	return nil
}

const conversationColumns = `id, line_id, contact_phone, operator_id, direction, body, template_name, tabulated, created_at`

func (r *PgConversationRepository) ListByContact(ctx context.Context, contactPhone string) ([]*domain.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE contact_phone = $1 ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query, contactPhone)
	if err != nil {
		return nil, fmt.Errorf("querying conversations by contact: %w", err)
	}
	defer rows.Close()
	return scanConversations(rows)
}

func (r *PgConversationRepository) ListByLineSince(ctx context.Context, lineID uuid.UUID, since time.Time) ([]*domain.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE line_id = $1 AND created_at >= $2 ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query, lineID, since)
	if err != nil {
		return nil, fmt.Errorf("querying conversations by line: %w", err)
	}
	defer rows.Close()
	return scanConversations(rows)
}

func (r *PgConversationRepository) CountOpenByOperatorOnLine(ctx context.Context, operatorID, lineID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM conversations WHERE operator_id = $1 AND line_id = $2 AND tabulated = FALSE`
	var count int
	if err := r.db.QueryRow(ctx, query, operatorID, lineID).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting open conversations: %w", err)
	}
	return count, nil
}

func (r *PgConversationRepository) CountOutboundByLineSince(ctx context.Context, lineID uuid.UUID, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM conversations WHERE line_id = $1 AND direction = $2 AND created_at >= $3`
	var count int
	if err := r.db.QueryRow(ctx, query, lineID, domain.DirectionOperator, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting outbound conversations: %w", err)
	}
	return count, nil
}

type rowsScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanConversations(rows rowsScanner) ([]*domain.Conversation, error) {
	var records []*domain.Conversation
	for rows.Next() {
		var conv domain.Conversation
		if err := rows.Scan(
			&conv.ID, &conv.LineID, &conv.ContactPhone, &conv.OperatorID, &conv.Direction,
			&conv.Body, &conv.TemplateName, &conv.Tabulated, &conv.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning conversation row: %w", err)
		}
		records = append(records, &conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conversation rows: %w", err)
	}
	return records, nil
}
