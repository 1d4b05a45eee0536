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

type PgSegmentRepository struct {
	db     database.PgxIface
	logger *slog.Logger
}

func NewPgSegmentRepository(db database.PgxIface, logger *slog.Logger) repository.SegmentRepository {
	return &PgSegmentRepository{db: db, logger: logger.With("component", "segment_repository_pg")}
}

func (r *PgSegmentRepository) GetByID(ctx context.Context, segmentID uuid.UUID) (*domain.Segment, error) {
	query := `SELECT id, name, max_operators_per_line, created_at FROM segments WHERE id = $1`
	return r.scanOne(ctx, query, segmentID)
}

func (r *PgSegmentRepository) GetByName(ctx context.Context, name string) (*domain.Segment, error) {
	query := `SELECT id, name, max_operators_per_line, created_at FROM segments WHERE name = $1`
	return r.scanOne(ctx, query, name)
}

func (r *PgSegmentRepository) scanOne(ctx context.Context, query string, arg any) (*domain.Segment, error) {
	var seg domain.Segment
	err := r.db.QueryRow(ctx, query, arg).Scan(&seg.ID, &seg.Name, &seg.MaxOperatorsPerLine, &seg.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying segment: %w", err)
	}
	return &seg, nil
}
