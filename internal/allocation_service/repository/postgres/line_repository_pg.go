package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/zapdesk/golang_services/internal/allocation_service/repository"
	"github.com/zapdesk/golang_services/internal/core_messaging/domain"
	"github.com/zapdesk/golang_services/internal/platform/database"
)

const lineColumns = `id, phone_number, status, segment_id, gateway_instance, official_number_id, official_token, created_at`

type PgLineRepository struct {
	db     database.PgxIface
	logger *slog.Logger
}

func NewPgLineRepository(db database.PgxIface, logger *slog.Logger) repository.LineRepository {
	return &PgLineRepository{db: db, logger: logger.With("component", "line_repository_pg")}
}

func scanLine(row pgx.Row) (*domain.Line, error) {
	var line domain.Line
	err := row.Scan(
		&line.ID, &line.PhoneNumber, &line.Status, &line.SegmentID,
		&line.GatewayInstance, &line.OfficialNumberID, &line.OfficialToken, &line.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &line, nil
}

func (r *PgLineRepository) GetLine(ctx context.Context, lineID uuid.UUID) (*domain.Line, error) {
	query := `SELECT ` + lineColumns + ` FROM lines WHERE id = $1`
	line, err := scanLine(r.db.QueryRow(ctx, query, lineID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("line %s not found", lineID)
		}
		return nil, fmt.Errorf("querying line: %w", err)
	}
	return line, nil
}

// GetLineForUpdate locks the line row for the duration of tx. Two
// concurrent allocations against the same line serialize here.
func (r *PgLineRepository) GetLineForUpdate(ctx context.Context, tx pgx.Tx, lineID uuid.UUID) (*domain.Line, error) {
	query := `SELECT ` + lineColumns + ` FROM lines WHERE id = $1 FOR UPDATE`
	line, err := scanLine(tx.QueryRow(ctx, query, lineID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("line %s not found", lineID)
		}
		return nil, fmt.Errorf("locking line row: %w", err)
	}
	return line, nil
}

func (r *PgLineRepository) ListAllocatableBySegment(ctx context.Context, segmentID uuid.UUID) ([]*domain.Line, error) {
	query := `
		SELECT ` + prefixedLineColumns("l") + `
		FROM lines l
		JOIN gateway_instances gi ON gi.name = l.gateway_instance
		WHERE l.segment_id = $1 AND l.status = $2 AND gi.enabled = TRUE
		ORDER BY l.created_at ASC`
	rows, err := r.db.Query(ctx, query, segmentID, domain.LineStatusActive)
	if err != nil {
		return nil, fmt.Errorf("querying allocatable lines: %w", err)
	}
	defer rows.Close()
	return collectLines(rows)
}

func (r *PgLineRepository) ListBySegment(ctx context.Context, segmentID uuid.UUID) ([]*domain.Line, error) {
	query := `SELECT ` + lineColumns + ` FROM lines WHERE segment_id = $1 ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query, segmentID)
	if err != nil {
		return nil, fmt.Errorf("querying segment lines: %w", err)
	}
	defer rows.Close()
	return collectLines(rows)
}

func (r *PgLineRepository) GetByGatewayInstance(ctx context.Context, instance string) (*domain.Line, error) {
	query := `SELECT ` + lineColumns + ` FROM lines WHERE gateway_instance = $1`
	line, err := scanLine(r.db.QueryRow(ctx, query, instance))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying line by gateway instance: %w", err)
	}
	return line, nil
}

func prefixedLineColumns(alias string) string {
	return alias + `.id, ` + alias + `.phone_number, ` + alias + `.status, ` + alias + `.segment_id, ` +
		alias + `.gateway_instance, ` + alias + `.official_number_id, ` + alias + `.official_token, ` + alias + `.created_at`
}

func collectLines(rows pgx.Rows) ([]*domain.Line, error) {
	var lines []*domain.Line
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning line row: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating line rows: %w", err)
	}
	return lines, nil
}
