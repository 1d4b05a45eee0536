package app

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zapdesk/golang_services/internal/core_messaging/domain"
)

type MockBlocklistRepository struct{ mock.Mock }

func (m *MockBlocklistRepository) IsBlocked(ctx context.Context, identifier string) (bool, string, error) {
	args := m.Called(ctx, identifier)
	return args.Bool(0), args.String(1), args.Error(2)
}

type MockConversationRepository struct{ mock.Mock }

func (m *MockConversationRepository) Create(ctx context.Context, conv *domain.Conversation) error {
	return m.Called(ctx, conv).Error(0)
}

func (m *MockConversationRepository) ListByContact(ctx context.Context, contactPhone string) ([]*domain.Conversation, error) {
	args := m.Called(ctx, contactPhone)
	if v := args.Get(0); v != nil {
		return v.([]*domain.Conversation), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockConversationRepository) ListByLineSince(ctx context.Context, lineID uuid.UUID, since time.Time) ([]*domain.Conversation, error) {
	args := m.Called(ctx, lineID, since)
	if v := args.Get(0); v != nil {
		return v.([]*domain.Conversation), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockConversationRepository) CountOpenByOperatorOnLine(ctx context.Context, operatorID, lineID uuid.UUID) (int, error) {
	args := m.Called(ctx, operatorID, lineID)
	return args.Int(0), args.Error(1)
}

func (m *MockConversationRepository) CountOutboundByLineSince(ctx context.Context, lineID uuid.UUID, since time.Time) (int, error) {
	args := m.Called(ctx, lineID, since)
	return args.Int(0), args.Error(1)
}

func newTestGate(blocklist *MockBlocklistRepository, conv *MockConversationRepository, now time.Time) *Gate {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	g := NewGate(blocklist, conv, logger)
	g.now = func() time.Time { return now }
	return g
}

func operatorMsg(at time.Time) *domain.Conversation {
	return &domain.Conversation{ID: uuid.New(), Direction: domain.DirectionOperator, CreatedAt: at}
}

func contactMsg(at time.Time) *domain.Conversation {
	return &domain.Conversation{ID: uuid.New(), Direction: domain.DirectionContact, CreatedAt: at}
}

func TestGate_AllowsUnknownContact(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	blocklist := new(MockBlocklistRepository)
	conv := new(MockConversationRepository)
	phone := "5511999990000"

	blocklist.On("IsBlocked", mock.Anything, phone).Return(false, "", nil)
	conv.On("ListByContact", mock.Anything, phone).Return([]*domain.Conversation{}, nil)

	decision, err := newTestGate(blocklist, conv, now).CanContact(context.Background(), phone)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestGate_DeniesBlocklistedContact(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	blocklist := new(MockBlocklistRepository)
	conv := new(MockConversationRepository)
	phone := "5511999990000"

	blocklist.On("IsBlocked", mock.Anything, phone).Return(true, "opt-out request", nil)

	decision, err := newTestGate(blocklist, conv, now).CanContact(context.Background(), phone)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, "opt-out request", decision.Reason)
	assert.Zero(t, decision.RetryAfter)
	conv.AssertNotCalled(t, "ListByContact", mock.Anything, mock.Anything)
}

func TestGate_DeniesInsideWindowWithRetryAfter(t *testing.T) {
	firstContact := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := firstContact.Add(10 * time.Hour)
	blocklist := new(MockBlocklistRepository)
	conv := new(MockConversationRepository)
	phone := "5511999990000"

	blocklist.On("IsBlocked", mock.Anything, phone).Return(false, "", nil)
	conv.On("ListByContact", mock.Anything, phone).Return([]*domain.Conversation{operatorMsg(firstContact)}, nil)

	decision, err := newTestGate(blocklist, conv, now).CanContact(context.Background(), phone)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, 14*time.Hour, decision.RetryAfter)

	var denied *domain.ComplianceDeniedError
	require.ErrorAs(t, decision.DeniedError(), &denied)
	assert.Equal(t, 14*time.Hour, denied.RetryAfter)
}

func TestGate_AllowsExactlyAtWindowBoundary(t *testing.T) {
	firstContact := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	blocklist := new(MockBlocklistRepository)
	conv := new(MockConversationRepository)
	phone := "5511999990000"

	blocklist.On("IsBlocked", mock.Anything, phone).Return(false, "", nil)
	conv.On("ListByContact", mock.Anything, phone).Return([]*domain.Conversation{operatorMsg(firstContact)}, nil)

	// One nanosecond before the boundary: denied.
	decision, err := newTestGate(blocklist, conv, firstContact.Add(24*time.Hour-time.Nanosecond)).CanContact(context.Background(), phone)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)

	// At exactly 24h: allowed (boundary inclusive).
	decision, err = newTestGate(blocklist, conv, firstContact.Add(24*time.Hour)).CanContact(context.Background(), phone)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestGate_AllowsAfterContactReply(t *testing.T) {
	firstContact := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	reply := firstContact.Add(30 * time.Minute)
	now := reply.Add(time.Minute)
	blocklist := new(MockBlocklistRepository)
	conv := new(MockConversationRepository)
	phone := "5511999990000"

	blocklist.On("IsBlocked", mock.Anything, phone).Return(false, "", nil)
	conv.On("ListByContact", mock.Anything, phone).Return([]*domain.Conversation{
		operatorMsg(firstContact),
		contactMsg(reply),
	}, nil)

	decision, err := newTestGate(blocklist, conv, now).CanContact(context.Background(), phone)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestGate_AllowsWhenContactReachedOutFirst(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	blocklist := new(MockBlocklistRepository)
	conv := new(MockConversationRepository)
	phone := "5511999990000"

	blocklist.On("IsBlocked", mock.Anything, phone).Return(false, "", nil)
	conv.On("ListByContact", mock.Anything, phone).Return([]*domain.Conversation{
		contactMsg(now.Add(-time.Hour)),
	}, nil)

	decision, err := newTestGate(blocklist, conv, now).CanContact(context.Background(), phone)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}
