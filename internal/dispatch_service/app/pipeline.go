package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	compliance "github.com/zapdesk/golang_services/internal/compliance_service/app"
	convrepo "github.com/zapdesk/golang_services/internal/conversation_service/repository"
	"github.com/zapdesk/golang_services/internal/core_messaging/domain"
	"github.com/zapdesk/golang_services/internal/dispatch_service/adapters/gateway"
	"github.com/zapdesk/golang_services/internal/dispatch_service/repository"
	"github.com/zapdesk/golang_services/internal/platform/circuitbreaker"
)

// DefaultBulkWorkers bounds parallelism inside a bulk batch.
const DefaultBulkWorkers = 4

var phonePattern = regexp.MustCompile(`^\+?[0-9]{10,15}$`)

// ComplianceGate admits or denies an outbound contact attempt.
type ComplianceGate interface {
	CanContact(ctx context.Context, contactPhone string) (compliance.Decision, error)
}

// OperatorResolver maps a specialist code (email local-part) to an
// operator.
type OperatorResolver interface {
	FindBySpecialistCode(ctx context.Context, code string) (*domain.Operator, error)
}

// LineAllocator provisions a sending line for an operator.
type LineAllocator interface {
	EnsureLine(ctx context.Context, operatorID uuid.UUID) (uuid.UUID, error)
}

// LineProvider loads line records.
type LineProvider interface {
	GetLine(ctx context.Context, lineID uuid.UUID) (*domain.Line, error)
}

// AdmissionGate is the per-line rate gate.
type AdmissionGate interface {
	CanSend(ctx context.Context, lineID uuid.UUID) (bool, error)
}

// CircuitExecutor wraps gateway calls in a breaker keyed by
// destination. Satisfied by circuitbreaker.Manager.
type CircuitExecutor interface {
	Execute(ctx context.Context, key string, action func(ctx context.Context) error) error
}

// MessageRequest is one outbound message inside a single or bulk call.
type MessageRequest struct {
	Phone          string
	SpecialistCode string
	TemplateID     uuid.NullUUID
	Text           string
	Variables      []string
}

// BulkRequest is a batch of messages sharing a campaign tag.
type BulkRequest struct {
	Tag      string
	CallerIP string
	Messages []MessageRequest
}

// MessageError records one failed message inside a batch.
type MessageError struct {
	Phone  string `json:"phone"`
	Reason string `json:"reason"`
}

// BatchStatus is the aggregate outcome of a bulk call.
type BatchStatus string

const (
	BatchSuccess BatchStatus = "success"
	BatchPartial BatchStatus = "partial"
	BatchError   BatchStatus = "error"
)

// HTTPStatus maps the batch status to the response code contract:
// clean batches 200, mixed 207, total failure 400.
func (s BatchStatus) HTTPStatus() int {
	switch s {
	case BatchSuccess:
		return 200
	case BatchPartial:
		return 207
	default:
		return 400
	}
}

// BulkResult reports how a batch fared.
type BulkResult struct {
	Processed int            `json:"processed"`
	Errors    []MessageError `json:"errors"`
	Status    BatchStatus    `json:"status"`
}

// SingleRequest is a one-off send.
type SingleRequest struct {
	Phone          string
	SpecialistCode string
	TemplateID     uuid.NullUUID
	Text           string
	Variables      []string
	CallerIP       string
}

// SingleResult reports a one-off send.
type SingleResult struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
}

// Pipeline runs the per-message dispatch chain: validation, compliance,
// operator resolution, line allocation, rate admission, template and
// spintax resolution, breaker-wrapped gateway send, persistence. A
// failing message never aborts the rest of its batch.
type Pipeline struct {
	gate      ComplianceGate
	operators OperatorResolver
	allocator LineAllocator
	lines     LineProvider
	rateGate  AdmissionGate
	templates repository.TemplateRepository
	convRepo  convrepo.ConversationRepository
	contacts  convrepo.ContactRepository
	audit     repository.AuditLogRepository
	gateway   gateway.Client
	breakers  CircuitExecutor
	expander  *SpintaxExpander
	delay     DelayFunc
	workers   int
	logger    *slog.Logger
	now       func() time.Time
}

func NewPipeline(
	gate ComplianceGate,
	operators OperatorResolver,
	allocator LineAllocator,
	lines LineProvider,
	rateGate AdmissionGate,
	templates repository.TemplateRepository,
	conversations convrepo.ConversationRepository,
	contacts convrepo.ContactRepository,
	audit repository.AuditLogRepository,
	gw gateway.Client,
	breakers CircuitExecutor,
	expander *SpintaxExpander,
	delay DelayFunc,
	workers int,
	logger *slog.Logger,
) *Pipeline {
	if workers <= 0 {
		workers = DefaultBulkWorkers
	}
	if delay == nil {
		delay = NoDelay
	}
	return &Pipeline{
		gate:      gate,
		operators: operators,
		allocator: allocator,
		lines:     lines,
		rateGate:  rateGate,
		templates: templates,
		convRepo:  conversations,
		contacts:  contacts,
		audit:     audit,
		gateway:   gw,
		breakers:  breakers,
		expander:  expander,
		delay:     delay,
		workers:   workers,
		logger:    logger.With("component", "dispatch_pipeline"),
		now:       time.Now,
	}
}

// SendBulk dispatches every message in the batch with bounded
// parallelism. Per-message failures are collected; the batch always
// runs to completion.
func (p *Pipeline) SendBulk(ctx context.Context, req BulkRequest) BulkResult {
	errsByIndex := make([]*MessageError, len(req.Messages))
	var g errgroup.Group
	g.SetLimit(p.workers)

	for i, msg := range req.Messages {
		i, msg := i, msg
		g.Go(func() error {
			if err := p.processMessage(ctx, msg); err != nil {
				dispatchMessagesCounter.WithLabelValues("failed").Inc()
				errsByIndex[i] = &MessageError{Phone: msg.Phone, Reason: reasonFor(err)}
			} else {
				dispatchMessagesCounter.WithLabelValues("sent").Inc()
			}
			return nil
		})
	}
	_ = g.Wait()

	result := BulkResult{}
	for _, e := range errsByIndex {
		if e != nil {
			result.Errors = append(result.Errors, *e)
		}
	}
	result.Processed = len(req.Messages) - len(result.Errors)
	switch {
	case len(result.Errors) == 0:
		result.Status = BatchSuccess
	case result.Processed == 0:
		result.Status = BatchError
	default:
		result.Status = BatchPartial
	}

	dispatchBatchesCounter.WithLabelValues(string(result.Status)).Inc()
	p.logger.InfoContext(ctx, "Bulk batch completed",
		"tag", req.Tag, "total", len(req.Messages), "processed", result.Processed, "errors", len(result.Errors), "status", result.Status)
	p.recordAudit(ctx, "/api/v1/messages/bulk", req.CallerIP, req, result, string(result.Status))
	return result
}

// SendSingle dispatches one message and reports the outcome.
func (p *Pipeline) SendSingle(ctx context.Context, req SingleRequest) SingleResult {
	msg := MessageRequest{
		Phone:          req.Phone,
		SpecialistCode: req.SpecialistCode,
		TemplateID:     req.TemplateID,
		Text:           req.Text,
		Variables:      req.Variables,
	}
	result := SingleResult{Success: true}
	if err := p.processMessage(ctx, msg); err != nil {
		dispatchMessagesCounter.WithLabelValues("failed").Inc()
		result = SingleResult{Success: false, Reason: reasonFor(err)}
	} else {
		dispatchMessagesCounter.WithLabelValues("sent").Inc()
	}

	status := "success"
	if !result.Success {
		status = "error"
	}
	p.recordAudit(ctx, "/api/v1/messages/send", req.CallerIP, req, result, status)
	return result
}

func (p *Pipeline) processMessage(ctx context.Context, msg MessageRequest) error {
	if !phonePattern.MatchString(msg.Phone) {
		return &domain.ValidationError{Field: "phone", Reason: "must be 10 to 15 digits"}
	}

	decision, err := p.gate.CanContact(ctx, msg.Phone)
	if err != nil {
		return fmt.Errorf("compliance check: %w", err)
	}
	if !decision.Allowed {
		return decision.DeniedError()
	}

	operator, err := p.operators.FindBySpecialistCode(ctx, msg.SpecialistCode)
	if err != nil {
		return fmt.Errorf("resolving operator: %w", err)
	}
	if operator == nil {
		return &domain.ValidationError{Field: "specialist_code", Reason: "unknown specialist code"}
	}

	lineID, err := p.allocator.EnsureLine(ctx, operator.ID)
	if err != nil {
		return err
	}
	line, err := p.lines.GetLine(ctx, lineID)
	if err != nil {
		return fmt.Errorf("loading line: %w", err)
	}
	if line.Status != domain.LineStatusActive {
		return domain.ErrLineNotActive
	}

	allowed, err := p.rateGate.CanSend(ctx, line.ID)
	if err != nil {
		return fmt.Errorf("rate gate: %w", err)
	}
	if !allowed {
		return domain.ErrRateLimited
	}

	var template *domain.Template
	body := msg.Text
	if msg.TemplateID.Valid {
		template, err = p.templates.GetByID(ctx, msg.TemplateID.UUID)
		if err != nil {
			return fmt.Errorf("loading template: %w", err)
		}
		if template == nil {
			return &domain.ValidationError{Field: "template_id", Reason: "unknown template"}
		}
		body = substituteVariables(template.Body, msg.Variables)
	}
	body = p.expander.Expand(body)

	// Pacing and the typing indicator are side calls: never fail the
	// send on their account.
	if err := p.delay(ctx, line.ID); err != nil {
		p.logger.DebugContext(ctx, "Pre-send delay interrupted", "error", err, "line_id", line.ID)
	}
	go func(gwCtx context.Context) {
		if err := p.gateway.SendTyping(gwCtx, line.GatewayInstance, msg.Phone); err != nil {
			p.logger.DebugContext(gwCtx, "Typing indicator failed", "error", err, "line_id", line.ID)
		}
	}(context.WithoutCancel(ctx))

	started := p.now()
	var sendErr error
	execErr := p.breakers.Execute(ctx, line.GatewayInstance, func(ctx context.Context) error {
		sendErr = p.sendOnce(ctx, line, msg.Phone, template, body, msg.Variables)
		return sendErr
	})
	gatewaySendDuration.Observe(p.now().Sub(started).Seconds())
	if execErr != nil {
		if errors.Is(execErr, circuitbreaker.ErrCircuitOpen) {
			return execErr
		}
		return fmt.Errorf("gateway send failed: %w", execErr)
	}

	contact := &domain.Contact{ID: uuid.New(), Phone: msg.Phone, CreatedAt: p.now(), UpdatedAt: p.now()}
	if err := p.contacts.Upsert(ctx, contact); err != nil {
		return fmt.Errorf("upserting contact: %w", err)
	}
	conv := &domain.Conversation{
		ID:           uuid.New(),
		LineID:       line.ID,
		ContactPhone: msg.Phone,
		OperatorID:   uuid.NullUUID{UUID: operator.ID, Valid: true},
		Direction:    domain.DirectionOperator,
		Body:         body,
		CreatedAt:    p.now(),
	}
	if template != nil {
		conv.TemplateName = &template.Name
	}
	if err := p.convRepo.Create(ctx, conv); err != nil {
		return fmt.Errorf("persisting conversation: %w", err)
	}
	return nil
}

// sendOnce picks the channel: official cloud API when the line carries
// its own credentials, otherwise the fallback gateway, downgrading a
// rejected template to plain text as a last attempt.
func (p *Pipeline) sendOnce(ctx context.Context, line *domain.Line, phone string, template *domain.Template, body string, variables []string) error {
	if template == nil {
		_, err := p.gateway.SendText(ctx, line.GatewayInstance, phone, body)
		return err
	}

	if line.HasOfficialChannel() {
		_, err := p.gateway.SendTemplateCloud(ctx, *line.OfficialNumberID, *line.OfficialToken, template.Name, variables)
		if err == nil {
			return nil
		}
		p.logger.WarnContext(ctx, "Official channel send failed, falling back to gateway",
			"error", err, "line_id", line.ID, "template", template.Name)
	}

	_, err := p.gateway.SendTemplate(ctx, line.GatewayInstance, phone, template.Name, template.Language, variables)
	if err == nil {
		return nil
	}
	p.logger.WarnContext(ctx, "Template send failed, downgrading to text",
		"error", err, "line_id", line.ID, "template", template.Name)
	_, err = p.gateway.SendText(ctx, line.GatewayInstance, phone, body)
	return err
}

func (p *Pipeline) recordAudit(ctx context.Context, endpoint, callerIP string, payload, response any, status string) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to marshal audit payload", "error", err, "endpoint", endpoint)
	}
	responseBytes, err := json.Marshal(response)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to marshal audit response", "error", err, "endpoint", endpoint)
	}
	entry := &domain.AuditLogEntry{
		ID:        uuid.New(),
		Endpoint:  endpoint,
		CallerIP:  callerIP,
		Payload:   payloadBytes,
		Response:  responseBytes,
		Status:    status,
		CreatedAt: p.now(),
	}
	if err := p.audit.Record(ctx, entry); err != nil {
		p.logger.ErrorContext(ctx, "Failed to record audit entry", "error", err, "endpoint", endpoint)
	}
}

// reasonFor turns a pipeline error into the per-message reason exposed
// to callers. Breaker state is never surfaced.
func reasonFor(err error) string {
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		return "service temporarily unavailable"
	}
	return err.Error()
}

// substituteVariables fills 1-based {{n}} placeholders in a template
// body. Placeholders without a matching variable stay untouched.
func substituteVariables(body string, variables []string) string {
	for i, v := range variables {
		body = strings.ReplaceAll(body, fmt.Sprintf("{{%d}}", i+1), v)
	}
	return body
}
