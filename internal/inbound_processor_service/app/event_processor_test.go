package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	convapp "github.com/zapdesk/golang_services/internal/conversation_service/app"
	coredomain "github.com/zapdesk/golang_services/internal/core_messaging/domain"
	"github.com/zapdesk/golang_services/internal/inbound_processor_service/domain"
	"github.com/zapdesk/golang_services/internal/notification"
)

type MockLineResolver struct{ mock.Mock }

func (m *MockLineResolver) GetByGatewayInstance(ctx context.Context, instance string) (*coredomain.Line, error) {
	args := m.Called(ctx, instance)
	if v := args.Get(0); v != nil {
		return v.(*coredomain.Line), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockInboundRouter struct{ mock.Mock }

func (m *MockInboundRouter) RouteInbound(ctx context.Context, contactPhone string, lineID uuid.UUID) (convapp.RouteResult, error) {
	args := m.Called(ctx, contactPhone, lineID)
	return args.Get(0).(convapp.RouteResult), args.Error(1)
}

type MockConversationRepository struct{ mock.Mock }

func (m *MockConversationRepository) Create(ctx context.Context, conv *coredomain.Conversation) error {
	return m.Called(ctx, conv).Error(0)
}

func (m *MockConversationRepository) ListByContact(ctx context.Context, contactPhone string) ([]*coredomain.Conversation, error) {
	args := m.Called(ctx, contactPhone)
	if v := args.Get(0); v != nil {
		return v.([]*coredomain.Conversation), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockConversationRepository) ListByLineSince(ctx context.Context, lineID uuid.UUID, since time.Time) ([]*coredomain.Conversation, error) {
	args := m.Called(ctx, lineID, since)
	if v := args.Get(0); v != nil {
		return v.([]*coredomain.Conversation), args.Error(1)
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

type MockContactRepository struct{ mock.Mock }

func (m *MockContactRepository) Upsert(ctx context.Context, contact *coredomain.Contact) error {
	return m.Called(ctx, contact).Error(0)
}

type MockReportRepository struct{ mock.Mock }

func (m *MockReportRepository) Create(ctx context.Context, report *coredomain.LineStateReport) error {
	return m.Called(ctx, report).Error(0)
}

type MockGroupNameFetcher struct{ mock.Mock }

func (m *MockGroupNameFetcher) FetchGroupName(ctx context.Context, instance, groupID string) (string, error) {
	args := m.Called(ctx, instance, groupID)
	return args.String(0), args.Error(1)
}

type MockEventNotifier struct{ mock.Mock }

func (m *MockEventNotifier) NewMessage(ctx context.Context, event notification.NewMessageEvent) {
	m.Called(ctx, event)
}

func (m *MockEventNotifier) LineBanned(ctx context.Context, event notification.LineBannedEvent) {
	m.Called(ctx, event)
}

func (m *MockEventNotifier) EnqueuePendingInbound(ctx context.Context, msg notification.PendingInboundMessage) error {
	return m.Called(ctx, msg).Error(0)
}

type processorFixture struct {
	lines    *MockLineResolver
	router   *MockInboundRouter
	convRepo *MockConversationRepository
	contacts *MockContactRepository
	reports  *MockReportRepository
	groups   *MockGroupNameFetcher
	notifier *MockEventNotifier
	line     *coredomain.Line
}

func newProcessorFixture(t *testing.T) (*EventProcessor, *processorFixture) {
	t.Helper()
	f := &processorFixture{
		lines:    new(MockLineResolver),
		router:   new(MockInboundRouter),
		convRepo: new(MockConversationRepository),
		contacts: new(MockContactRepository),
		reports:  new(MockReportRepository),
		groups:   new(MockGroupNameFetcher),
		notifier: new(MockEventNotifier),
	}
	f.line = &coredomain.Line{ID: uuid.New(), Status: coredomain.LineStatusActive, GatewayInstance: "instance-a"}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := NewEventProcessor(f.lines, f.router, f.convRepo, f.contacts, f.reports, f.groups, f.notifier, logger)
	return p, f
}

func messageEvent() domain.MessageEvent {
	return domain.MessageEvent{
		Instance:   "instance-a",
		Sender:     "5511900001111",
		Body:       "oi, preciso de ajuda",
		ReceivedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestEventProcessor_RoutesMessageAndNotifies(t *testing.T) {
	p, f := newProcessorFixture(t)
	operatorID := uuid.New()

	f.lines.On("GetByGatewayInstance", mock.Anything, "instance-a").Return(f.line, nil)
	f.contacts.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	f.router.On("RouteInbound", mock.Anything, "5511900001111", f.line.ID).
		Return(convapp.RouteResult{OperatorID: uuid.NullUUID{UUID: operatorID, Valid: true}}, nil)
	f.convRepo.On("Create", mock.Anything, mock.MatchedBy(func(c *coredomain.Conversation) bool {
		return c.Direction == coredomain.DirectionContact && c.OperatorID.UUID == operatorID
	})).Return(nil)
	f.notifier.On("NewMessage", mock.Anything, mock.MatchedBy(func(e notification.NewMessageEvent) bool {
		return e.LineID == f.line.ID && e.OperatorID == operatorID
	})).Return()

	outcome := p.HandleMessage(context.Background(), messageEvent())

	assert.Equal(t, OutcomeProcessed, outcome)
	f.notifier.AssertCalled(t, "NewMessage", mock.Anything, mock.Anything)
}

func TestEventProcessor_QueuesMessageWhenNobodyOnline(t *testing.T) {
	p, f := newProcessorFixture(t)

	f.lines.On("GetByGatewayInstance", mock.Anything, "instance-a").Return(f.line, nil)
	f.contacts.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	f.router.On("RouteInbound", mock.Anything, "5511900001111", f.line.ID).
		Return(convapp.RouteResult{Queued: true}, nil)
	f.convRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.notifier.On("EnqueuePendingInbound", mock.Anything, mock.MatchedBy(func(m notification.PendingInboundMessage) bool {
		return m.LineID == f.line.ID && m.Body == "oi, preciso de ajuda"
	})).Return(nil)

	outcome := p.HandleMessage(context.Background(), messageEvent())

	assert.Equal(t, OutcomeQueued, outcome)
	f.notifier.AssertNotCalled(t, "NewMessage", mock.Anything, mock.Anything)
}

func TestEventProcessor_IgnoresUnknownInstance(t *testing.T) {
	p, f := newProcessorFixture(t)
	f.lines.On("GetByGatewayInstance", mock.Anything, "instance-a").Return(nil, nil)

	outcome := p.HandleMessage(context.Background(), messageEvent())

	assert.Equal(t, OutcomeIgnored, outcome)
	f.router.AssertNotCalled(t, "RouteInbound", mock.Anything, mock.Anything, mock.Anything)
}

func TestEventProcessor_GroupNameFetchIsBestEffort(t *testing.T) {
	p, f := newProcessorFixture(t)
	event := messageEvent()
	event.GroupID = "g-42"

	f.lines.On("GetByGatewayInstance", mock.Anything, "instance-a").Return(f.line, nil)
	f.groups.On("FetchGroupName", mock.Anything, "instance-a", "g-42").Return("", errors.New("gateway timeout"))
	f.contacts.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	f.router.On("RouteInbound", mock.Anything, mock.Anything, mock.Anything).
		Return(convapp.RouteResult{OperatorID: uuid.NullUUID{UUID: uuid.New(), Valid: true}}, nil)
	f.convRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.notifier.On("NewMessage", mock.Anything, mock.Anything).Return()

	outcome := p.HandleMessage(context.Background(), event)

	assert.Equal(t, OutcomeProcessed, outcome)
}

func TestEventProcessor_ConnectionBanRecordsProposalOnly(t *testing.T) {
	p, f := newProcessorFixture(t)

	f.lines.On("GetByGatewayInstance", mock.Anything, "instance-a").Return(f.line, nil)
	f.reports.On("Create", mock.Anything, mock.MatchedBy(func(r *coredomain.LineStateReport) bool {
		return r.LineID == f.line.ID &&
			r.ReportedStatus == coredomain.LineStatusBanned &&
			!r.Confirmed &&
			r.Source == "gateway_webhook"
	})).Return(nil)
	f.notifier.On("LineBanned", mock.Anything, mock.MatchedBy(func(e notification.LineBannedEvent) bool {
		return e.LineID == f.line.ID && e.ReportedStatus == string(coredomain.LineStatusBanned)
	})).Return()

	outcome := p.HandleConnection(context.Background(), domain.ConnectionEvent{
		Instance: "instance-a", State: "banned", Reason: "policy", ReceivedAt: time.Now(),
	})

	assert.Equal(t, OutcomeProcessed, outcome)
	f.reports.AssertExpectations(t)
}

func TestEventProcessor_HealthyConnectionStateIgnored(t *testing.T) {
	p, f := newProcessorFixture(t)

	outcome := p.HandleConnection(context.Background(), domain.ConnectionEvent{
		Instance: "instance-a", State: "open", ReceivedAt: time.Now(),
	})

	assert.Equal(t, OutcomeIgnored, outcome)
	f.reports.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestEventProcessor_PerEventFailureReturnsErrorOutcome(t *testing.T) {
	p, f := newProcessorFixture(t)
	f.lines.On("GetByGatewayInstance", mock.Anything, "instance-a").Return(nil, errors.New("db down"))

	outcome := p.HandleMessage(context.Background(), messageEvent())

	assert.Equal(t, OutcomeError, outcome)
}
