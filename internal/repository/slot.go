package repository

import (
	"context"
	"errors"
	"time"

	"duet/internal/models"
	"duet/internal/observability"

	"gorm.io/gorm"
)

// DayCounters aggregates one pairing's slots for a single day, keyed by the
// fixed pairing roles. Services translate roles into the caller's perspective.
type DayCounters struct {
	Total               int
	InitiatorAnswered   int
	CounterpartAnswered int
	Completed           int
	Matches             int
}

// LifetimeCounters aggregates a pairing's whole slot history.
type LifetimeCounters struct {
	DaysPlayed          int
	InitiatorAnswered   int
	CounterpartAnswered int
	Completed           int
	Matches             int
}

// SlotRepository defines the interface for game-slot data operations
type SlotRepository interface {
	CreateBatch(ctx context.Context, slots []models.GameSlot) error
	GetByID(ctx context.Context, id uint) (*models.GameSlot, error)
	GetWithQuestion(ctx context.Context, id uint) (*models.GameSlot, error)
	ListForDay(ctx context.Context, pairingID uint, day string) ([]models.GameSlot, error)
	ClaimAnswer(ctx context.Context, slotID uint, role models.PartyRole, option int, now time.Time) (int64, error)
	ExpireOverdue(ctx context.Context, now time.Time) ([]models.GameSlot, error)
	CountersForDay(ctx context.Context, pairingID uint, day string) (*DayCounters, error)
	LifetimeCounters(ctx context.Context, pairingID uint) (*LifetimeCounters, error)
	RecentQuestionIDs(ctx context.Context, pairingID uint, sinceDay string) ([]uint, error)
}

// slotRepository implements SlotRepository
type slotRepository struct {
	db *gorm.DB
}

// NewSlotRepository creates a new slot repository
func NewSlotRepository(db *gorm.DB) SlotRepository {
	return &slotRepository{db: db}
}

// CreateBatch inserts a day's slot set as one statement. A unique violation
// on (pairing_id, day, position) means a concurrent caller created the day
// first; that surfaces as Conflict and the caller re-reads the winner's rows.
func (r *slotRepository) CreateBatch(ctx context.Context, slots []models.GameSlot) error {
	if len(slots) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&slots).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.NewConflictError("slots already created for this day")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *slotRepository) GetByID(ctx context.Context, id uint) (*models.GameSlot, error) {
	var slot models.GameSlot
	if err := r.db.WithContext(ctx).First(&slot, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Game slot", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &slot, nil
}

func (r *slotRepository) GetWithQuestion(ctx context.Context, id uint) (*models.GameSlot, error) {
	var slot models.GameSlot
	if err := r.db.WithContext(ctx).Preload("Question").First(&slot, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Game slot", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &slot, nil
}

func (r *slotRepository) ListForDay(ctx context.Context, pairingID uint, day string) ([]models.GameSlot, error) {
	var slots []models.GameSlot
	if err := r.db.WithContext(ctx).
		Where("pairing_id = ? AND day = ?", pairingID, day).
		Order("position ASC").
		Preload("Question").
		Find(&slots).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return slots, nil
}

// ClaimAnswer writes one party's answer as a single conditional update. The
// WHERE clause claims the caller's still-null column; the CASE expressions
// derive status, matched and completed_at from the other column's value at
// write time, so two near-simultaneous claims both succeed and exactly one
// produces the completed transition. Returns the number of rows claimed; a
// zero means the claim failed and the caller re-reads to classify why.
func (r *slotRepository) ClaimAnswer(ctx context.Context, slotID uint, role models.PartyRole, option int, now time.Time) (int64, error) {
	ownCol, otherCol, ownAt := "initiator_option", "counterpart_option", "initiator_answered_at"
	awaitingSelf := models.SlotAwaitingInitiator
	awaitingOther := models.AwaitingStatusFor(role)
	if role == models.RoleCounterpart {
		ownCol, otherCol, ownAt = "counterpart_option", "initiator_option", "counterpart_answered_at"
		awaitingSelf = models.SlotAwaitingCounterpart
	}

	ctx, span := observability.GetTraceLayer().TraceRepositoryMethod(ctx, "ClaimAnswer", "game_slots")
	defer span.End()

	sql := `
UPDATE game_slots SET
	` + ownCol + ` = ?,
	` + ownAt + ` = ?,
	status = CASE WHEN ` + otherCol + ` IS NULL THEN ? ELSE ? END,
	matched = CASE WHEN ` + otherCol + ` IS NULL THEN NULL ELSE (` + otherCol + ` = ?) END,
	completed_at = CASE WHEN ` + otherCol + ` IS NULL THEN NULL ELSE ? END,
	updated_at = ?
WHERE id = ?
	AND ` + ownCol + ` IS NULL
	AND status IN (?, ?)
	AND expires_at > ?`

	result := r.db.WithContext(ctx).Exec(sql,
		option, now,
		awaitingOther, models.SlotCompleted,
		option,
		now, now,
		slotID,
		models.SlotAwaitingBoth, awaitingSelf,
		now,
	)
	if result.Error != nil {
		return 0, models.NewInternalError(result.Error)
	}
	return result.RowsAffected, nil
}

// ExpireOverdue retires awaiting slots past their expiry and returns the rows
// it transitioned. The update is conditional on the awaiting statuses, so a
// slot completed between the candidate read and the update is left alone.
func (r *slotRepository) ExpireOverdue(ctx context.Context, now time.Time) ([]models.GameSlot, error) {
	awaiting := []models.SlotStatus{models.SlotAwaitingBoth, models.SlotAwaitingInitiator, models.SlotAwaitingCounterpart}

	var candidateIDs []uint
	if err := r.db.WithContext(ctx).
		Model(&models.GameSlot{}).
		Where("status IN ? AND expires_at <= ?", awaiting, now).
		Pluck("id", &candidateIDs).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	if len(candidateIDs) == 0 {
		return nil, nil
	}

	if err := r.db.WithContext(ctx).
		Model(&models.GameSlot{}).
		Where("id IN ? AND status IN ? AND expires_at <= ?", candidateIDs, awaiting, now).
		Update("status", models.SlotExpired).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	var expired []models.GameSlot
	if err := r.db.WithContext(ctx).
		Where("id IN ? AND status = ?", candidateIDs, models.SlotExpired).
		Find(&expired).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return expired, nil
}

func (r *slotRepository) CountersForDay(ctx context.Context, pairingID uint, day string) (*DayCounters, error) {
	var counters DayCounters
	if err := r.db.WithContext(ctx).Raw(`
SELECT
	COUNT(*) AS total,
	COALESCE(SUM(CASE WHEN initiator_option IS NOT NULL THEN 1 ELSE 0 END), 0) AS initiator_answered,
	COALESCE(SUM(CASE WHEN counterpart_option IS NOT NULL THEN 1 ELSE 0 END), 0) AS counterpart_answered,
	COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS completed,
	COALESCE(SUM(CASE WHEN matched THEN 1 ELSE 0 END), 0) AS matches
FROM game_slots
WHERE pairing_id = ? AND day = ?`,
		models.SlotCompleted, pairingID, day).
		Scan(&counters).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return &counters, nil
}

func (r *slotRepository) LifetimeCounters(ctx context.Context, pairingID uint) (*LifetimeCounters, error) {
	var counters LifetimeCounters
	if err := r.db.WithContext(ctx).Raw(`
SELECT
	COUNT(DISTINCT day) AS days_played,
	COALESCE(SUM(CASE WHEN initiator_option IS NOT NULL THEN 1 ELSE 0 END), 0) AS initiator_answered,
	COALESCE(SUM(CASE WHEN counterpart_option IS NOT NULL THEN 1 ELSE 0 END), 0) AS counterpart_answered,
	COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS completed,
	COALESCE(SUM(CASE WHEN matched THEN 1 ELSE 0 END), 0) AS matches
FROM game_slots
WHERE pairing_id = ?`,
		models.SlotCompleted, pairingID).
		Scan(&counters).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return &counters, nil
}

// RecentQuestionIDs returns the question ids this pairing has seen since
// sinceDay inclusive. Day keys sort lexicographically.
func (r *slotRepository) RecentQuestionIDs(ctx context.Context, pairingID uint, sinceDay string) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).
		Model(&models.GameSlot{}).
		Where("pairing_id = ? AND day >= ?", pairingID, sinceDay).
		Distinct().
		Pluck("question_id", &ids).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}
