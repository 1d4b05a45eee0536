package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	conversationRepo "github.com/zapdesk/golang_services/internal/conversation_service/repository"
	"github.com/zapdesk/golang_services/internal/core_messaging/domain"
)

// Tier is an age-based send ceiling, possibly tightened by reputation.
type Tier struct {
	Name        string `json:"name"`
	HourlyLimit int    `json:"hourly_limit"`
	DailyLimit  int    `json:"daily_limit"`
}

// Base tiers by line age.
var (
	tierNew     = Tier{Name: "new", HourlyLimit: 50, DailyLimit: 200}
	tierWarming = Tier{Name: "warming", HourlyLimit: 100, DailyLimit: 500}
	tierMature  = Tier{Name: "mature", HourlyLimit: 200, DailyLimit: 1000}
)

// minHourlyLimit is the floor under reputation tightening.
const minHourlyLimit = 50

// Info is the rate standing of a line.
type Info struct {
	Tier        Tier     `json:"tier"`
	HourlyCount int      `json:"hourly_count"`
	DailyCount  int      `json:"daily_count"`
	Reputation  Snapshot `json:"reputation"`
}

// LineProvider is the gate's view of line records.
type LineProvider interface {
	GetLine(ctx context.Context, lineID uuid.UUID) (*domain.Line, error)
}

// RateGate computes send admission from line age, reputation and
// historical volume. Enforcement is disabled in the current deployment:
// CanSend always allows unless the enforcement toggle is on, but the
// tiering logic always runs and Info always reports the real standing.
type RateGate struct {
	scorer             *Scorer
	convRepo           conversationRepo.ConversationRepository
	lines              LineProvider
	enforcementEnabled bool
	logger             *slog.Logger
	now                func() time.Time
}

func NewRateGate(
	scorer *Scorer,
	convRepo conversationRepo.ConversationRepository,
	lines LineProvider,
	enforcementEnabled bool,
	logger *slog.Logger,
) *RateGate {
	return &RateGate{
		scorer:             scorer,
		convRepo:           convRepo,
		lines:              lines,
		enforcementEnabled: enforcementEnabled,
		logger:             logger.With("component", "rate_gate"),
		now:                time.Now,
	}
}

// CanSend reports whether the line may send right now.
func (g *RateGate) CanSend(ctx context.Context, lineID uuid.UUID) (bool, error) {
	info, err := g.Info(ctx, lineID)
	if err != nil {
		return false, err
	}

	withinLimits := info.HourlyCount < info.Tier.HourlyLimit && info.DailyCount < info.Tier.DailyLimit
	if !g.enforcementEnabled {
		if !withinLimits {
			g.logger.DebugContext(ctx, "Line over tier ceiling but enforcement is disabled",
				"line_id", lineID, "tier", info.Tier.Name,
				"hourly", info.HourlyCount, "daily", info.DailyCount)
		}
		return true, nil
	}
	return withinLimits, nil
}

// Info reports the line's tier and current hourly/daily volume.
func (g *RateGate) Info(ctx context.Context, lineID uuid.UUID) (Info, error) {
	line, err := g.lines.GetLine(ctx, lineID)
	if err != nil {
		return Info{}, fmt.Errorf("loading line %s: %w", lineID, err)
	}

	snapshot, err := g.scorer.Score(ctx, lineID)
	if err != nil {
		return Info{}, err
	}

	now := g.now()
	tier := tierFor(line.AgeDays(now), snapshot.HealthScore)

	hourly, err := g.convRepo.CountOutboundByLineSince(ctx, lineID, now.Add(-time.Hour))
	if err != nil {
		return Info{}, fmt.Errorf("counting hourly volume: %w", err)
	}
	daily, err := g.convRepo.CountOutboundByLineSince(ctx, lineID, now.Add(-24*time.Hour))
	if err != nil {
		return Info{}, fmt.Errorf("counting daily volume: %w", err)
	}

	return Info{Tier: tier, HourlyCount: hourly, DailyCount: daily, Reputation: snapshot}, nil
}

// tierFor picks the age tier and tightens it by health score. Low health
// halves the ceilings, middling health trims them to 75%, with the
// hourly floor at 50.
func tierFor(ageDays int, healthScore float64) Tier {
	var tier Tier
	switch {
	case ageDays < 7:
		tier = tierNew
	case ageDays <= 30:
		tier = tierWarming
	default:
		tier = tierMature
	}

	var factor float64
	switch {
	case healthScore < healthyThreshold:
		factor = 0.5
	case healthScore < 60:
		factor = 0.75
	default:
		return tier
	}

	tier.HourlyLimit = int(float64(tier.HourlyLimit) * factor)
	tier.DailyLimit = int(float64(tier.DailyLimit) * factor)
	if tier.HourlyLimit < minHourlyLimit {
		tier.HourlyLimit = minHourlyLimit
	}
	return tier
}
