package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"duet/internal/models"
	"duet/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// seedSlotFixtures creates an accepted pairing and enough questions for a day.
func seedSlotFixtures(t *testing.T, db *gorm.DB, questionCount int) (*models.Pairing, []models.Question) {
	t.Helper()
	ctx := context.Background()

	pairingRepo := NewPairingRepository(db)
	pairing := newPendingPairing(uuid.New(), "hash-"+t.Name())
	require.NoError(t, pairingRepo.Create(ctx, pairing))
	_, err := pairingRepo.AcceptPending(ctx, pairing.ID, uuid.New(), time.Now())
	require.NoError(t, err)

	questions := make([]models.Question, questionCount)
	for i := range questions {
		q := models.Question{
			Text:     t.Name() + "-q-" + string(rune('a'+i)),
			Category: "daily_life",
			Audience: models.AudienceCouple,
			Active:   true,
		}
		q.SetOptionList([]string{"yes", "no", "maybe"})
		questions[i] = q
	}
	require.NoError(t, db.Create(&questions).Error)

	reloaded, err := pairingRepo.GetByID(ctx, pairing.ID)
	require.NoError(t, err)
	return reloaded, questions
}

func buildSlots(pairing *models.Pairing, questions []models.Question, day string) []models.GameSlot {
	slots := make([]models.GameSlot, len(questions))
	for i, q := range questions {
		slots[i] = models.GameSlot{
			PairingID:  pairing.ID,
			QuestionID: q.ID,
			Day:        day,
			Position:   i + 1,
			Status:     models.SlotAwaitingBoth,
			ExpiresAt:  time.Now().Add(24 * time.Hour),
		}
	}
	return slots
}

func TestSlotRepository_CreateBatchConflictOnDuplicateDay(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewSlotRepository(db)
	ctx := context.Background()

	pairing, questions := seedSlotFixtures(t, db, 3)

	require.NoError(t, repo.CreateBatch(ctx, buildSlots(pairing, questions, "2026-03-15")))

	err := repo.CreateBatch(ctx, buildSlots(pairing, questions, "2026-03-15"))
	assert.ErrorIs(t, err, models.ErrConflict)

	slots, err := repo.ListForDay(ctx, pairing.ID, "2026-03-15")
	require.NoError(t, err)
	assert.Len(t, slots, 3, "losing batch left no partial rows")
	for i, s := range slots {
		assert.Equal(t, i+1, s.Position)
		assert.Equal(t, models.SlotAwaitingBoth, s.Status)
		assert.NotEmpty(t, s.Question.Text, "questions preloaded")
	}
}

func TestSlotRepository_ClaimAnswerLifecycle(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewSlotRepository(db)
	ctx := context.Background()

	pairing, questions := seedSlotFixtures(t, db, 1)
	require.NoError(t, repo.CreateBatch(ctx, buildSlots(pairing, questions, "2026-03-15")))
	slots, err := repo.ListForDay(ctx, pairing.ID, "2026-03-15")
	require.NoError(t, err)
	slot := slots[0]

	// First answer: initiator claims, slot awaits the counterpart.
	rows, err := repo.ClaimAnswer(ctx, slot.ID, models.RoleInitiator, 1, time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 1, rows)

	got, err := repo.GetByID(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SlotAwaitingCounterpart, got.Status)
	require.NotNil(t, got.InitiatorOption)
	assert.Equal(t, 1, *got.InitiatorOption)
	assert.Nil(t, got.CounterpartOption)
	assert.Nil(t, got.Matched)
	assert.NotNil(t, got.InitiatorAnsweredAt)
	assert.Nil(t, got.CompletedAt)

	// Duplicate claim by the same role touches nothing.
	rows, err = repo.ClaimAnswer(ctx, slot.ID, models.RoleInitiator, 2, time.Now())
	require.NoError(t, err)
	assert.Zero(t, rows)
	unchanged, err := repo.GetByID(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, *unchanged.InitiatorOption)

	// Second answer completes the slot and computes the match.
	rows, err = repo.ClaimAnswer(ctx, slot.ID, models.RoleCounterpart, 1, time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 1, rows)

	done, err := repo.GetByID(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SlotCompleted, done.Status)
	require.NotNil(t, done.Matched)
	assert.True(t, *done.Matched)
	assert.NotNil(t, done.CompletedAt)
}

func TestSlotRepository_ClaimAnswerMismatch(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewSlotRepository(db)
	ctx := context.Background()

	pairing, questions := seedSlotFixtures(t, db, 1)
	require.NoError(t, repo.CreateBatch(ctx, buildSlots(pairing, questions, "2026-03-15")))
	slots, err := repo.ListForDay(ctx, pairing.ID, "2026-03-15")
	require.NoError(t, err)

	_, err = repo.ClaimAnswer(ctx, slots[0].ID, models.RoleCounterpart, 0, time.Now())
	require.NoError(t, err)
	_, err = repo.ClaimAnswer(ctx, slots[0].ID, models.RoleInitiator, 2, time.Now())
	require.NoError(t, err)

	done, err := repo.GetByID(ctx, slots[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.SlotCompleted, done.Status)
	require.NotNil(t, done.Matched)
	assert.False(t, *done.Matched)
}

func TestSlotRepository_ConcurrentClaimsCompleteOnce(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewSlotRepository(db)
	ctx := context.Background()

	pairing, questions := seedSlotFixtures(t, db, 1)
	require.NoError(t, repo.CreateBatch(ctx, buildSlots(pairing, questions, "2026-03-15")))
	slots, err := repo.ListForDay(ctx, pairing.ID, "2026-03-15")
	require.NoError(t, err)
	slotID := slots[0].ID

	var rowsA, rowsB int64
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		rowsA, _ = repo.ClaimAnswer(ctx, slotID, models.RoleInitiator, 1, time.Now())
	}()
	go func() {
		defer wg.Done()
		rowsB, _ = repo.ClaimAnswer(ctx, slotID, models.RoleCounterpart, 1, time.Now())
	}()
	wg.Wait()

	assert.EqualValues(t, 1, rowsA, "both parties claim their own column")
	assert.EqualValues(t, 1, rowsB)

	done, err := repo.GetByID(ctx, slotID)
	require.NoError(t, err)
	assert.Equal(t, models.SlotCompleted, done.Status)
	require.NotNil(t, done.Matched)
	assert.True(t, *done.Matched, "match equals answer equality")
}

func TestSlotRepository_ClaimAnswerRejectsExpired(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewSlotRepository(db)
	ctx := context.Background()

	pairing, questions := seedSlotFixtures(t, db, 1)
	slots := buildSlots(pairing, questions, "2026-03-15")
	slots[0].ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, repo.CreateBatch(ctx, slots))

	listed, err := repo.ListForDay(ctx, pairing.ID, "2026-03-15")
	require.NoError(t, err)

	rows, err := repo.ClaimAnswer(ctx, listed[0].ID, models.RoleInitiator, 0, time.Now())
	require.NoError(t, err)
	assert.Zero(t, rows)
}

func TestSlotRepository_ExpireOverdue(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewSlotRepository(db)
	ctx := context.Background()

	pairing, questions := seedSlotFixtures(t, db, 3)
	slots := buildSlots(pairing, questions, "2026-03-14")
	slots[0].ExpiresAt = time.Now().Add(-time.Hour)
	slots[1].ExpiresAt = time.Now().Add(-time.Hour)
	require.NoError(t, repo.CreateBatch(ctx, slots))

	listed, err := repo.ListForDay(ctx, pairing.ID, "2026-03-14")
	require.NoError(t, err)

	// Complete the second overdue slot; completed slots are never expired.
	_, err = repo.ClaimAnswer(ctx, listed[1].ID, models.RoleInitiator, 0, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)
	_, err = repo.ClaimAnswer(ctx, listed[1].ID, models.RoleCounterpart, 0, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)

	expired, err := repo.ExpireOverdue(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, listed[0].ID, expired[0].ID)
	assert.Equal(t, models.SlotExpired, expired[0].Status)

	second, err := repo.GetByID(ctx, listed[1].ID)
	require.NoError(t, err)
	assert.Equal(t, models.SlotCompleted, second.Status)

	third, err := repo.GetByID(ctx, listed[2].ID)
	require.NoError(t, err)
	assert.Equal(t, models.SlotAwaitingBoth, third.Status)

	// A second sweep finds nothing.
	again, err := repo.ExpireOverdue(ctx, time.Now())
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestSlotRepository_CountersForDay(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewSlotRepository(db)
	ctx := context.Background()

	pairing, questions := seedSlotFixtures(t, db, 3)
	require.NoError(t, repo.CreateBatch(ctx, buildSlots(pairing, questions, "2026-03-15")))
	listed, err := repo.ListForDay(ctx, pairing.ID, "2026-03-15")
	require.NoError(t, err)

	// Slot 1 completed as a match, slot 2 answered by initiator only.
	_, err = repo.ClaimAnswer(ctx, listed[0].ID, models.RoleInitiator, 0, time.Now())
	require.NoError(t, err)
	_, err = repo.ClaimAnswer(ctx, listed[0].ID, models.RoleCounterpart, 0, time.Now())
	require.NoError(t, err)
	_, err = repo.ClaimAnswer(ctx, listed[1].ID, models.RoleInitiator, 1, time.Now())
	require.NoError(t, err)

	counters, err := repo.CountersForDay(ctx, pairing.ID, "2026-03-15")
	require.NoError(t, err)
	assert.Equal(t, 3, counters.Total)
	assert.Equal(t, 2, counters.InitiatorAnswered)
	assert.Equal(t, 1, counters.CounterpartAnswered)
	assert.Equal(t, 1, counters.Completed)
	assert.Equal(t, 1, counters.Matches)

	empty, err := repo.CountersForDay(ctx, pairing.ID, "2026-03-16")
	require.NoError(t, err)
	assert.Zero(t, empty.Total)
}

func TestSlotRepository_LifetimeCountersAndRecentQuestions(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewSlotRepository(db)
	ctx := context.Background()

	pairing, questions := seedSlotFixtures(t, db, 2)
	require.NoError(t, repo.CreateBatch(ctx, buildSlots(pairing, questions, "2026-03-14")))
	require.NoError(t, repo.CreateBatch(ctx, buildSlots(pairing, questions[:1], "2026-03-15")))

	day1, err := repo.ListForDay(ctx, pairing.ID, "2026-03-14")
	require.NoError(t, err)
	_, err = repo.ClaimAnswer(ctx, day1[0].ID, models.RoleInitiator, 0, time.Now())
	require.NoError(t, err)
	_, err = repo.ClaimAnswer(ctx, day1[0].ID, models.RoleCounterpart, 1, time.Now())
	require.NoError(t, err)

	lifetime, err := repo.LifetimeCounters(ctx, pairing.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, lifetime.DaysPlayed)
	assert.Equal(t, 1, lifetime.InitiatorAnswered)
	assert.Equal(t, 1, lifetime.CounterpartAnswered)
	assert.Equal(t, 1, lifetime.Completed)
	assert.Equal(t, 0, lifetime.Matches)

	recent, err := repo.RecentQuestionIDs(ctx, pairing.ID, "2026-03-15")
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{questions[0].ID}, recent)

	all, err := repo.RecentQuestionIDs(ctx, pairing.ID, "2026-03-01")
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{questions[0].ID, questions[1].ID}, all)
}
