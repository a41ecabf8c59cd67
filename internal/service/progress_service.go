package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"duet/internal/cache"
	"duet/internal/models"
	"duet/internal/observability"
	"duet/internal/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ProgressService derives progress summaries from slot rows. Summaries are
// never stored authoritatively; the lifetime view may be served from a short
// Redis cache.
type ProgressService struct {
	slotRepo    repository.SlotRepository
	pairingRepo repository.PairingRepository
	rdb         *redis.Client
}

// NewProgressService returns a new ProgressService. rdb may be nil, which
// disables the lifetime cache.
func NewProgressService(slotRepo repository.SlotRepository, pairingRepo repository.PairingRepository, rdb *redis.Client) *ProgressService {
	return &ProgressService{
		slotRepo:    slotRepo,
		pairingRepo: pairingRepo,
		rdb:         rdb,
	}
}

// Daily summarizes the pairing's slots for one day from the caller's side:
// "answered by user" counts the caller's own column regardless of role.
func (s *ProgressService) Daily(ctx context.Context, userID uuid.UUID, pairingID uint, day string) (*models.DailyProgress, error) {
	role, err := s.memberRole(ctx, userID, pairingID)
	if err != nil {
		return nil, err
	}

	counters, err := s.slotRepo.CountersForDay(ctx, pairingID, day)
	if err != nil {
		return nil, err
	}

	own, other := counters.InitiatorAnswered, counters.CounterpartAnswered
	if role == models.RoleCounterpart {
		own, other = other, own
	}
	return &models.DailyProgress{
		Day:                   day,
		TotalSlots:            counters.Total,
		AnsweredByUser:        own,
		AnsweredByCounterpart: other,
		CompletedSlots:        counters.Completed,
		MatchCount:            counters.Matches,
	}, nil
}

// Lifetime summarizes the pairing's whole history. The summary is identical
// for both members, so it is cached per pairing.
func (s *ProgressService) Lifetime(ctx context.Context, userID uuid.UUID, pairingID uint) (*models.LifetimeProgress, error) {
	role, err := s.memberRole(ctx, userID, pairingID)
	if err != nil {
		return nil, err
	}

	if cached := s.readCached(ctx, pairingID); cached != nil {
		return s.forRole(cached, role), nil
	}

	counters, err := s.slotRepo.LifetimeCounters(ctx, pairingID)
	if err != nil {
		return nil, err
	}
	s.writeCached(ctx, pairingID, counters)
	return s.forRole(counters, role), nil
}

func (s *ProgressService) forRole(counters *repository.LifetimeCounters, role models.PartyRole) *models.LifetimeProgress {
	answered := counters.InitiatorAnswered
	if role == models.RoleCounterpart {
		answered = counters.CounterpartAnswered
	}
	rate := 0.0
	if counters.Completed > 0 {
		rate = float64(counters.Matches) / float64(counters.Completed)
	}
	return &models.LifetimeProgress{
		DaysPlayed:     counters.DaysPlayed,
		TotalAnswered:  answered,
		TotalCompleted: counters.Completed,
		TotalMatches:   counters.Matches,
		MatchRate:      rate,
	}
}

func (s *ProgressService) memberRole(ctx context.Context, userID uuid.UUID, pairingID uint) (models.PartyRole, error) {
	pairing, err := s.pairingRepo.GetByID(ctx, pairingID)
	if err != nil {
		return "", err
	}
	role, ok := pairing.RoleOf(userID)
	if !ok {
		return "", models.NewNotFoundError("Pairing", pairingID)
	}
	return role, nil
}

// InvalidateLifetime drops the cached summary. The game service calls it
// after every accepted answer write.
func (s *ProgressService) InvalidateLifetime(ctx context.Context, pairingID uint) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, cache.LifetimeProgressKey(pairingID)).Err(); err != nil {
		observability.RedisErrorRate.WithLabelValues("del").Inc()
	}
}

func (s *ProgressService) readCached(ctx context.Context, pairingID uint) *repository.LifetimeCounters {
	if s.rdb == nil {
		return nil
	}
	ctx, span := observability.GetTraceLayer().TraceRedisOperation(ctx, "get")
	defer span.End()
	raw, err := s.rdb.Get(ctx, cache.LifetimeProgressKey(pairingID)).Result()
	if err != nil {
		return nil
	}
	var counters repository.LifetimeCounters
	if err := json.Unmarshal([]byte(raw), &counters); err != nil {
		return nil
	}
	return &counters
}

func (s *ProgressService) writeCached(ctx context.Context, pairingID uint, counters *repository.LifetimeCounters) {
	if s.rdb == nil {
		return
	}
	raw, err := json.Marshal(counters)
	if err != nil {
		return
	}
	ctx, span := observability.GetTraceLayer().TraceRedisOperation(ctx, "set")
	defer span.End()
	if err := s.rdb.Set(ctx, cache.LifetimeProgressKey(pairingID), raw, cache.LifetimeProgressTTL).Err(); err != nil {
		observability.GlobalLogger.WarnContext(ctx, "failed to cache lifetime progress",
			slog.Uint64("pairing_id", uint64(pairingID)),
			slog.String("error", err.Error()),
		)
	}
}
