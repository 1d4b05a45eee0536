package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/zapdesk/golang_services/internal/compliance_service/repository"
	"github.com/zapdesk/golang_services/internal/platform/database"
)

type PgBlocklistRepository struct {
	db     database.PgxIface
	logger *slog.Logger
}

func NewPgBlocklistRepository(db database.PgxIface, logger *slog.Logger) repository.BlocklistRepository {
	return &PgBlocklistRepository{db: db, logger: logger.With("component", "blocklist_repository_pg")}
}

// IsBlocked matches identifier exactly against blocked phones and
// associated identifiers.
func (r *PgBlocklistRepository) IsBlocked(ctx context.Context, identifier string) (bool, string, error) {
	query := `SELECT reason FROM blocklist_entries WHERE phone = $1 OR identifier = $1 LIMIT 1`

	var nullableReason sql.NullString
	err := r.db.QueryRow(ctx, query, identifier).Scan(&nullableReason)
	if err == nil {
		reason := ""
		if nullableReason.Valid {
			reason = nullableReason.String
		}
		r.logger.InfoContext(ctx, "Identifier found in blocklist", "identifier", identifier)
		return true, reason, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return false, "", nil
	}
	r.logger.ErrorContext(ctx, "Error checking blocklist", "identifier", identifier, "error", err)
	return false, "", fmt.Errorf("checking blocklist: %w", err)
}
