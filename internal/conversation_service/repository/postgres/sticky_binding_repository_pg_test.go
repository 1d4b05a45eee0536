package postgres

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapdesk/golang_services/internal/core_messaging/domain"
)

func TestPgStickyBindingRepository_Get(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	lineID := uuid.New()

	t.Run("Found", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := NewPgStickyBindingRepository(mockPool, logger)

		bindingID := uuid.New()
		operatorID := uuid.New()
		now := time.Now()
		rows := mockPool.NewRows([]string{"id", "contact_phone", "line_id", "operator_id", "expires_at", "created_at", "updated_at"}).
			AddRow(bindingID, "5511900001111", lineID, operatorID, now.Add(24*time.Hour), now, now)
		mockPool.ExpectQuery(`SELECT id, contact_phone, line_id, operator_id, expires_at, created_at, updated_at`).
			WithArgs("5511900001111", lineID).
			WillReturnRows(rows)

		binding, err := repo.Get(context.Background(), "5511900001111", lineID)
		require.NoError(t, err)
		require.NotNil(t, binding)
		assert.Equal(t, bindingID, binding.ID)
		assert.Equal(t, operatorID, binding.OperatorID)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("AbsentReturnsNilNil", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := NewPgStickyBindingRepository(mockPool, logger)

		mockPool.ExpectQuery(`SELECT id, contact_phone, line_id, operator_id, expires_at, created_at, updated_at`).
			WithArgs("5511900002222", lineID).
			WillReturnError(pgx.ErrNoRows)

		binding, err := repo.Get(context.Background(), "5511900002222", lineID)
		assert.NoError(t, err)
		assert.Nil(t, binding)
	})
}

func TestPgStickyBindingRepository_Upsert(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()
	repo := NewPgStickyBindingRepository(mockPool, logger)

	now := time.Now()
	binding := &domain.ConversationOperatorBinding{
		ID:           uuid.New(),
		ContactPhone: "5511900001111",
		LineID:       uuid.New(),
		OperatorID:   uuid.New(),
		ExpiresAt:    now.Add(24 * time.Hour),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	mockPool.ExpectExec(`INSERT INTO conversation_operator_bindings`).
		WithArgs(binding.ID, binding.ContactPhone, binding.LineID, binding.OperatorID,
			binding.ExpiresAt, binding.CreatedAt, binding.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.Upsert(context.Background(), binding)
	assert.NoError(t, err)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
