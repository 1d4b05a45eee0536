package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	conversationRepo "github.com/zapdesk/golang_services/internal/conversation_service/repository"
	"github.com/zapdesk/golang_services/internal/core_messaging/domain"
)

const (
	// scoringWindow is how far back conversation records are pulled.
	scoringWindow = 7 * 24 * time.Hour
	// blockProxyAge: an unanswered operator message older than this
	// counts the contact as a probable block.
	blockProxyAge = 24 * time.Hour
	// neutralScore is returned for lines with no contact history.
	neutralScore = 50.0
	// healthyThreshold gates a line as healthy.
	healthyThreshold = 30.0
)

// Snapshot is the derived reputation of a line. Rates are percentages.
type Snapshot struct {
	ResponseRate   float64 `json:"response_rate"`
	BlockRate      float64 `json:"block_rate"`
	MessagesPerDay float64 `json:"messages_per_day"`
	HealthScore    float64 `json:"health_score"`
}

// Healthy reports whether the line passes the health gate.
func (s Snapshot) Healthy() bool {
	return s.HealthScore >= healthyThreshold
}

// Scorer computes line reputation from the last 7 days of conversation
// records. Every Score call recomputes from the store unless a cache
// TTL is configured.
type Scorer struct {
	convRepo conversationRepo.ConversationRepository
	cacheTTL time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu    sync.Mutex
	cache map[uuid.UUID]cachedSnapshot
}

type cachedSnapshot struct {
	snapshot   Snapshot
	computedAt time.Time
}

// NewScorer creates a Scorer. cacheTTL of zero disables caching.
func NewScorer(convRepo conversationRepo.ConversationRepository, cacheTTL time.Duration, logger *slog.Logger) *Scorer {
	return &Scorer{
		convRepo: convRepo,
		cacheTTL: cacheTTL,
		logger:   logger.With("component", "reputation_scorer"),
		now:      time.Now,
		cache:    make(map[uuid.UUID]cachedSnapshot),
	}
}

// Score computes the reputation snapshot for lineID.
func (s *Scorer) Score(ctx context.Context, lineID uuid.UUID) (Snapshot, error) {
	now := s.now()

	if s.cacheTTL > 0 {
		s.mu.Lock()
		if entry, ok := s.cache[lineID]; ok && now.Sub(entry.computedAt) < s.cacheTTL {
			s.mu.Unlock()
			return entry.snapshot, nil
		}
		s.mu.Unlock()
	}

	records, err := s.convRepo.ListByLineSince(ctx, lineID, now.Add(-scoringWindow))
	if err != nil {
		return Snapshot{}, fmt.Errorf("loading conversation window for line %s: %w", lineID, err)
	}

	snapshot := compute(records, now)
	s.logger.DebugContext(ctx, "Computed reputation snapshot",
		"line_id", lineID, "health_score", snapshot.HealthScore, "records", len(records))

	if s.cacheTTL > 0 {
		s.mu.Lock()
		s.cache[lineID] = cachedSnapshot{snapshot: snapshot, computedAt: now}
		s.mu.Unlock()
	}
	return snapshot, nil
}

// compute derives the snapshot from records sorted by created_at
// ascending (the repository guarantees the order).
func compute(records []*domain.Conversation, now time.Time) Snapshot {
	byContact := make(map[string][]*domain.Conversation)
	for _, rec := range records {
		byContact[rec.ContactPhone] = append(byContact[rec.ContactPhone], rec)
	}

	if len(byContact) == 0 {
		return Snapshot{HealthScore: neutralScore}
	}

	contacted := 0
	responded := 0
	blocked := 0
	for _, msgs := range byContact {
		hasOperatorMsg := false
		hasReply := false
		seenOperator := false
		for _, msg := range msgs {
			switch msg.Direction {
			case domain.DirectionOperator:
				hasOperatorMsg = true
				seenOperator = true
			case domain.DirectionContact:
				if seenOperator {
					hasReply = true
				}
			}
		}
		if !hasOperatorMsg {
			continue
		}
		contacted++
		if hasReply {
			responded++
			continue
		}
		last := msgs[len(msgs)-1]
		if last.Direction == domain.DirectionOperator && now.Sub(last.CreatedAt) > blockProxyAge {
			blocked++
		}
	}

	if contacted == 0 {
		return Snapshot{HealthScore: neutralScore}
	}

	responseRate := float64(responded) / float64(contacted) * 100
	blockRate := float64(blocked) / float64(contacted) * 100
	messagesPerDay := float64(len(records)) / (scoringWindow.Hours() / 24)

	volumeFactor := messagesPerDay / 50
	if volumeFactor > 1 {
		volumeFactor = 1
	}
	score := 0.6*responseRate - 0.3*blockRate + 0.1*volumeFactor*100
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return Snapshot{
		ResponseRate:   responseRate,
		BlockRate:      blockRate,
		MessagesPerDay: messagesPerDay,
		HealthScore:    score,
	}
}
