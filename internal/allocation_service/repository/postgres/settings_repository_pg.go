package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/zapdesk/golang_services/internal/allocation_service/repository"
	"github.com/zapdesk/golang_services/internal/platform/database"
)

type PgSettingsRepository struct {
	db     database.PgxIface
	logger *slog.Logger
}

func NewPgSettingsRepository(db database.PgxIface, logger *slog.Logger) repository.SettingsRepository {
	return &PgSettingsRepository{db: db, logger: logger.With("component", "settings_repository_pg")}
}

// SharedModeEnabled reads the pool-wide shared-mode flag. A missing row
// means the flag was never set: shared mode off.
func (r *PgSettingsRepository) SharedModeEnabled(ctx context.Context) (bool, error) {
	var value bool
	err := r.db.QueryRow(ctx, `SELECT bool_value FROM app_settings WHERE key = 'line_shared_mode'`).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("querying shared mode setting: %w", err)
	}
	return value, nil
}
