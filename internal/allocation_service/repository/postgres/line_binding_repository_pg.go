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

type PgLineBindingRepository struct {
	db     database.PgxIface
	logger *slog.Logger
}

func NewPgLineBindingRepository(db database.PgxIface, logger *slog.Logger) repository.LineBindingRepository {
	return &PgLineBindingRepository{db: db, logger: logger.With("component", "line_binding_repository_pg")}
}

func (r *PgLineBindingRepository) GetActiveByOperator(ctx context.Context, operatorID uuid.UUID) (*domain.LineOperatorBinding, error) {
	query := `SELECT id, line_id, operator_id, created_at FROM line_operator_bindings WHERE operator_id = $1`
	var b domain.LineOperatorBinding
	err := r.db.QueryRow(ctx, query, operatorID).Scan(&b.ID, &b.LineID, &b.OperatorID, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying operator binding: %w", err)
	}
	return &b, nil
}

func (r *PgLineBindingRepository) ListByLineTx(ctx context.Context, tx pgx.Tx, lineID uuid.UUID) ([]*domain.LineOperatorBinding, error) {
	query := `SELECT id, line_id, operator_id, created_at FROM line_operator_bindings WHERE line_id = $1 ORDER BY created_at ASC`
	rows, err := tx.Query(ctx, query, lineID)
	if err != nil {
		return nil, fmt.Errorf("querying line bindings: %w", err)
	}
	defer rows.Close()

	var bindings []*domain.LineOperatorBinding
	for rows.Next() {
		var b domain.LineOperatorBinding
		if err := rows.Scan(&b.ID, &b.LineID, &b.OperatorID, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning binding row: %w", err)
		}
		bindings = append(bindings, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating binding rows: %w", err)
	}
	return bindings, nil
}

func (r *PgLineBindingRepository) CountByLineTx(ctx context.Context, tx pgx.Tx, lineID uuid.UUID) (int, error) {
	var count int
	err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM line_operator_bindings WHERE line_id = $1`, lineID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting line bindings: %w", err)
	}
	return count, nil
}

func (r *PgLineBindingRepository) ListOperatorSegmentsByLineTx(ctx context.Context, tx pgx.Tx, lineID uuid.UUID) ([]uuid.NullUUID, error) {
	query := `
		SELECT o.segment_id
		FROM line_operator_bindings b
		JOIN operators o ON o.id = b.operator_id
		WHERE b.line_id = $1`
	rows, err := tx.Query(ctx, query, lineID)
	if err != nil {
		return nil, fmt.Errorf("querying bound operator segments: %w", err)
	}
	defer rows.Close()

	var segments []uuid.NullUUID
	for rows.Next() {
		var segmentID uuid.NullUUID
		if err := rows.Scan(&segmentID); err != nil {
			return nil, fmt.Errorf("scanning segment row: %w", err)
		}
		segments = append(segments, segmentID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating segment rows: %w", err)
	}
	return segments, nil
}

func (r *PgLineBindingRepository) CreateTx(ctx context.Context, tx pgx.Tx, binding *domain.LineOperatorBinding) error {
	query := `INSERT INTO line_operator_bindings (id, line_id, operator_id, created_at) VALUES ($1, $2, $3, $4)`
	_, err := tx.Exec(ctx, query, binding.ID, binding.LineID, binding.OperatorID, binding.CreatedAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to create line binding", "error", err, "line_id", binding.LineID, "operator_id", binding.OperatorID)
		return fmt.Errorf("creating line binding: %w", err)
	}
	return nil
}

func (r *PgLineBindingRepository) DeleteTx(ctx context.Context, tx pgx.Tx, bindingID uuid.UUID) error {
	_, err := tx.Exec(ctx, `DELETE FROM line_operator_bindings WHERE id = $1`, bindingID)
	if err != nil {
		return fmt.Errorf("deleting line binding: %w", err)
	}
	return nil
}
