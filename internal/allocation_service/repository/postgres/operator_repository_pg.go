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

const operatorColumns = `id, name, email, role, segment_id, online, line_id, created_at`

type PgOperatorRepository struct {
	db     database.PgxIface
	logger *slog.Logger
}

func NewPgOperatorRepository(db database.PgxIface, logger *slog.Logger) repository.OperatorRepository {
	return &PgOperatorRepository{db: db, logger: logger.With("component", "operator_repository_pg")}
}

func scanOperator(row pgx.Row) (*domain.Operator, error) {
	var op domain.Operator
	err := row.Scan(&op.ID, &op.Name, &op.Email, &op.Role, &op.SegmentID, &op.Online, &op.LineID, &op.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &op, nil
}

func (r *PgOperatorRepository) GetByID(ctx context.Context, operatorID uuid.UUID) (*domain.Operator, error) {
	query := `SELECT ` + operatorColumns + ` FROM operators WHERE id = $1`
	op, err := scanOperator(r.db.QueryRow(ctx, query, operatorID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("operator %s not found", operatorID)
		}
		return nil, fmt.Errorf("querying operator: %w", err)
	}
	return op, nil
}

// FindBySpecialistCode matches the operator whose email local-part
// equals code.
func (r *PgOperatorRepository) FindBySpecialistCode(ctx context.Context, code string) (*domain.Operator, error) {
	query := `SELECT ` + operatorColumns + ` FROM operators WHERE split_part(email, '@', 1) = $1 LIMIT 1`
	op, err := scanOperator(r.db.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying operator by specialist code: %w", err)
	}
	return op, nil
}

func (r *PgOperatorRepository) UpdateLinePointerTx(ctx context.Context, tx pgx.Tx, operatorID uuid.UUID, lineID uuid.NullUUID) error {
	_, err := tx.Exec(ctx, `UPDATE operators SET line_id = $1 WHERE id = $2`, lineID, operatorID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update operator line pointer", "error", err, "operator_id", operatorID)
		return fmt.Errorf("updating operator line pointer: %w", err)
	}
	return nil
}

func (r *PgOperatorRepository) ListOnlineBoundToLine(ctx context.Context, lineID uuid.UUID) ([]*domain.Operator, error) {
	query := `
		SELECT ` + prefixedOperatorColumns("o") + `
		FROM operators o
		JOIN line_operator_bindings b ON b.operator_id = o.id
		WHERE b.line_id = $1 AND o.online = TRUE
		ORDER BY b.created_at ASC`
	rows, err := r.db.Query(ctx, query, lineID)
	if err != nil {
		return nil, fmt.Errorf("querying online bound operators: %w", err)
	}
	defer rows.Close()
	return collectOperators(rows)
}

// ListOnlineAssociatedWithLine returns the routing fallback set: any
// online operator, admin or supervisor in the line's segment.
func (r *PgOperatorRepository) ListOnlineAssociatedWithLine(ctx context.Context, lineID uuid.UUID) ([]*domain.Operator, error) {
	query := `
		SELECT ` + prefixedOperatorColumns("o") + `
		FROM operators o
		JOIN lines l ON l.id = $1
		WHERE o.online = TRUE
		  AND (o.segment_id = l.segment_id OR o.role IN ($2, $3))
		ORDER BY o.created_at ASC`
	rows, err := r.db.Query(ctx, query, lineID, domain.RoleAdmin, domain.RoleSupervisor)
	if err != nil {
		return nil, fmt.Errorf("querying associated operators: %w", err)
	}
	defer rows.Close()
	return collectOperators(rows)
}

func prefixedOperatorColumns(alias string) string {
	return alias + `.id, ` + alias + `.name, ` + alias + `.email, ` + alias + `.role, ` +
		alias + `.segment_id, ` + alias + `.online, ` + alias + `.line_id, ` + alias + `.created_at`
}

func collectOperators(rows pgx.Rows) ([]*domain.Operator, error) {
	var operators []*domain.Operator
	for rows.Next() {
		op, err := scanOperator(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning operator row: %w", err)
		}
		operators = append(operators, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating operator rows: %w", err)
	}
	return operators, nil
}
