package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"duet/internal/models"
	"duet/internal/observability"
	"duet/internal/repository"
	"duet/internal/validation"

	"github.com/google/uuid"
)

// repeatWindowDays is how far back the generator looks when avoiding
// questions the pairing has already played.
const repeatWindowDays = 14

// MatchOutcome classifies what an accepted answer submission produced.
type MatchOutcome string

const (
	// OutcomePending means the other party has not answered yet.
	OutcomePending MatchOutcome = observability.OutcomePending
	// OutcomeMatch means both parties picked the same option.
	OutcomeMatch MatchOutcome = observability.OutcomeMatch
	// OutcomeMismatch means the parties picked different options.
	OutcomeMismatch MatchOutcome = observability.OutcomeMismatch
)

// SubmitResult is the post-write state of an accepted answer submission.
type SubmitResult struct {
	Outcome MatchOutcome     `json:"outcome"`
	Slot    *models.GameSlot `json:"slot"`
}

// ProgressInvalidator drops derived progress caches after a slot write.
// *ProgressService satisfies it.
type ProgressInvalidator interface {
	InvalidateLifetime(ctx context.Context, pairingID uint)
}

type noopInvalidator struct{}

func (noopInvalidator) InvalidateLifetime(context.Context, uint) {}

// GameService provides daily-game generation and answer submission logic.
type GameService struct {
	slotRepo     repository.SlotRepository
	pairingRepo  repository.PairingRepository
	questionRepo repository.QuestionRepository
	selector     *Selector
	publisher    EventPublisher
	progress     ProgressInvalidator
	slotTTL      time.Duration
}

// NewGameService returns a new GameService. progress may be nil, which
// disables progress cache invalidation.
func NewGameService(
	slotRepo repository.SlotRepository,
	pairingRepo repository.PairingRepository,
	questionRepo repository.QuestionRepository,
	selector *Selector,
	publisher EventPublisher,
	progress ProgressInvalidator,
	slotTTL time.Duration,
) *GameService {
	if progress == nil {
		progress = noopInvalidator{}
	}
	return &GameService{
		slotRepo:     slotRepo,
		pairingRepo:  pairingRepo,
		questionRepo: questionRepo,
		selector:     selector,
		publisher:    orNoop(publisher),
		progress:     progress,
		slotTTL:      slotTTL,
	}
}

// memberPairing loads the pairing and resolves the caller's role, hiding the
// pairing's existence from non-members.
func (s *GameService) memberPairing(ctx context.Context, userID uuid.UUID, pairingID uint) (*models.Pairing, models.PartyRole, error) {
	pairing, err := s.pairingRepo.GetByID(ctx, pairingID)
	if err != nil {
		return nil, "", err
	}
	role, ok := pairing.RoleOf(userID)
	if !ok {
		return nil, "", models.NewNotFoundError("Pairing", pairingID)
	}
	return pairing, role, nil
}

// GetOrCreateTodaysGames returns the pairing's slot set for the given day,
// materializing it on first access. Both members calling concurrently get
// the same set: the losing writer's batch is discarded on the unique day
// index and the winner's rows are returned.
func (s *GameService) GetOrCreateTodaysGames(
	ctx context.Context, userID uuid.UUID, pairingID uint, day string,
) ([]models.GameSlot, error) {
	pairing, _, err := s.memberPairing(ctx, userID, pairingID)
	if err != nil {
		return nil, err
	}
	if !pairing.IsAccepted() {
		return nil, models.NewConflictError("Pairing is not active")
	}
	if err := validation.ValidateDayKey(day, time.Now()); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	// Fast path: the day already materialized.
	existing, err := s.slotRepo.ListForDay(ctx, pairingID, day)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return existing, nil
	}

	picked, err := s.selectDay(ctx, pairing, day)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	slots := make([]models.GameSlot, len(picked))
	for i, q := range picked {
		slots[i] = models.GameSlot{
			PairingID:  pairingID,
			QuestionID: q.ID,
			Day:        day,
			Position:   i + 1,
			Status:     models.SlotAwaitingBoth,
			ExpiresAt:  now.Add(s.slotTTL),
		}
	}

	if err := s.slotRepo.CreateBatch(ctx, slots); err != nil {
		if errors.Is(err, models.ErrConflict) {
			// Lost the creation race; the first writer's set is the day.
			observability.GenerateConflicts.Inc()
			return s.slotRepo.ListForDay(ctx, pairingID, day)
		}
		return nil, err
	}
	observability.SlotsCreated.Add(float64(len(slots)))

	created, err := s.slotRepo.ListForDay(ctx, pairingID, day)
	if err != nil {
		return nil, err
	}
	for i := range created {
		s.publisher.PublishSlotEvent(ctx, models.NewSlotEvent(models.EventSlotCreated, &created[i]))
	}
	return created, nil
}

// selectDay draws the day's question set from the pairing's eligible pool.
func (s *GameService) selectDay(ctx context.Context, pairing *models.Pairing, day string) ([]models.Question, error) {
	pool, err := s.questionRepo.ListEligible(ctx, pairing.CategoryList(), pairing.AudienceKind())
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return nil, models.NewValidationError("No questions available for this pairing's categories")
	}

	exclude := map[uint]bool{}
	if parsed, parseErr := time.Parse(models.DayKeyLayout, day); parseErr == nil {
		sinceDay := parsed.AddDate(0, 0, -repeatWindowDays).Format(models.DayKeyLayout)
		recent, recentErr := s.slotRepo.RecentQuestionIDs(ctx, pairing.ID, sinceDay)
		if recentErr != nil {
			return nil, recentErr
		}
		for _, id := range recent {
			exclude[id] = true
		}
	}

	return s.selector.Pick(pool, pairing.DailyQuota, exclude), nil
}

// SubmitAnswer records the caller's answer on a slot. The first write wins;
// re-submissions are rejected without touching the stored answer. When the
// write completes the slot, the result carries the match outcome.
func (s *GameService) SubmitAnswer(ctx context.Context, userID uuid.UUID, slotID uint, option int) (*SubmitResult, error) {
	slot, err := s.slotRepo.GetWithQuestion(ctx, slotID)
	if err != nil {
		return nil, err
	}
	pairing, err := s.pairingRepo.GetByID(ctx, slot.PairingID)
	if err != nil {
		return nil, err
	}
	role, ok := pairing.RoleOf(userID)
	if !ok {
		return nil, models.NewNotFoundError("Game slot", slotID)
	}
	if err := validation.ValidateOptionIndex(&slot.Question, option); err != nil {
		observability.AnswersSubmitted.WithLabelValues(observability.OutcomeRejected).Inc()
		return nil, models.NewValidationError(err.Error())
	}

	now := time.Now()
	rows, err := s.slotRepo.ClaimAnswer(ctx, slotID, role, option, now)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, s.classifyClaimFailure(ctx, slotID, role, now)
	}

	// Re-read the authoritative row; a concurrent counterpart answer may
	// already have completed the slot.
	updated, err := s.slotRepo.GetByID(ctx, slotID)
	if err != nil {
		return nil, err
	}

	outcome := OutcomePending
	if updated.Status == models.SlotCompleted && updated.Matched != nil {
		if *updated.Matched {
			outcome = OutcomeMatch
		} else {
			outcome = OutcomeMismatch
		}
	}
	observability.AnswersSubmitted.WithLabelValues(string(outcome)).Inc()
	s.publisher.PublishSlotEvent(ctx, models.NewSlotEvent(models.EventSlotUpdated, updated))
	// Every accepted write stales the cached lifetime counters, not just
	// the completing one: answered totals move on the first answer too.
	s.progress.InvalidateLifetime(ctx, updated.PairingID)

	return &SubmitResult{Outcome: outcome, Slot: updated}, nil
}

// classifyClaimFailure re-reads the slot to explain why the conditional
// answer write matched no rows.
func (s *GameService) classifyClaimFailure(ctx context.Context, slotID uint, role models.PartyRole, now time.Time) error {
	slot, err := s.slotRepo.GetByID(ctx, slotID)
	if err != nil {
		return err
	}
	switch {
	case slot.AnsweredBy(role):
		observability.AnswersSubmitted.WithLabelValues(observability.OutcomeDuplicate).Inc()
		return models.NewDuplicateAnswerError()
	case slot.Status == models.SlotExpired || slot.IsExpired(now):
		observability.AnswersSubmitted.WithLabelValues(observability.OutcomeExpired).Inc()
		return models.NewExpiredError("Game slot")
	default:
		return models.NewConflictError("Answer could not be recorded")
	}
}

// GetSlot returns a single slot with its question for a pairing member.
func (s *GameService) GetSlot(ctx context.Context, userID uuid.UUID, slotID uint) (*models.GameSlot, error) {
	slot, err := s.slotRepo.GetWithQuestion(ctx, slotID)
	if err != nil {
		return nil, err
	}
	pairing, err := s.pairingRepo.GetByID(ctx, slot.PairingID)
	if err != nil {
		return nil, err
	}
	if !pairing.Involves(userID) {
		return nil, models.NewNotFoundError("Game slot", slotID)
	}
	return slot, nil
}

// ExpireOverdueOnce runs a single expiry sweep, retiring overdue unanswered
// slots and notifying subscribers. Returns the number of slots retired.
func (s *GameService) ExpireOverdueOnce(ctx context.Context) (int, error) {
	span, ctx := observability.NewSpan(ctx, "game.expire_overdue",
		observability.WithSpanKind(observability.SpanKindInternal))
	defer span.End()

	expired, err := s.slotRepo.ExpireOverdue(ctx, time.Now())
	if err != nil {
		span.SetError(err)
		return 0, err
	}
	for i := range expired {
		s.publisher.PublishSlotEvent(ctx, models.NewSlotEvent(models.EventSlotExpired, &expired[i]))
	}
	if len(expired) > 0 {
		observability.SlotsExpired.Add(float64(len(expired)))
	}
	return len(expired), nil
}

// RunExpirySweeper sweeps overdue slots on the given interval until ctx is
// cancelled. enabled is consulted before every sweep so a feature-flag kill
// switch can pause a running sweeper; nil means always on. Run it on one
// goroutine per process; overlapping sweeps across processes are safe, only
// the winner's conditional update takes effect.
func (s *GameService) RunExpirySweeper(ctx context.Context, interval time.Duration, enabled func() bool) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	observability.GlobalLogger.InfoContext(ctx, "expiry sweeper started",
		slog.Duration("interval", interval),
	)
	for {
		select {
		case <-ctx.Done():
			observability.GlobalLogger.InfoContext(ctx, "expiry sweeper stopped")
			return
		case <-ticker.C:
			if enabled != nil && !enabled() {
				continue
			}
			count, err := s.ExpireOverdueOnce(ctx)
			if err != nil {
				observability.GlobalLogger.ErrorContext(ctx, "expiry sweep failed",
					slog.String("error", err.Error()),
				)
				continue
			}
			if count > 0 {
				observability.GlobalLogger.InfoContext(ctx, "expired overdue slots",
					slog.Int("count", count),
				)
			}
		}
	}
}
