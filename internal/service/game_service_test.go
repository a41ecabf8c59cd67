package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"duet/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGameServiceGetOrCreateTodaysGames(t *testing.T) {
	f := newServiceFixture(t)
	svc := f.gameService(24 * time.Hour)
	ctx := context.Background()

	pairing := f.acceptedPairing(t, 3)

	slots, err := svc.GetOrCreateTodaysGames(ctx, f.initiator, pairing.ID, today())
	require.NoError(t, err)
	require.Len(t, slots, 3)

	seen := map[uint]bool{}
	for i, slot := range slots {
		assert.Equal(t, i+1, slot.Position)
		assert.Equal(t, models.SlotAwaitingBoth, slot.Status)
		assert.False(t, seen[slot.QuestionID], "no repeated question within a day")
		seen[slot.QuestionID] = true
		assert.NotEmpty(t, slot.Question.Text, "questions preloaded for rendering")
	}

	assert.Equal(t, []string{
		models.EventSlotCreated, models.EventSlotCreated, models.EventSlotCreated,
	}, f.publisher.slotEventTypes())

	// Second call, from either member, returns the same set without events.
	again, err := svc.GetOrCreateTodaysGames(ctx, f.counterpart, pairing.ID, today())
	require.NoError(t, err)
	require.Len(t, again, 3)
	for i := range again {
		assert.Equal(t, slots[i].ID, again[i].ID)
	}
	assert.Len(t, f.publisher.slotEvents, 3, "fast path publishes nothing")
}

func TestGameServiceGetOrCreateRejections(t *testing.T) {
	f := newServiceFixture(t)
	svc := f.gameService(24 * time.Hour)
	ctx := context.Background()

	pairing := f.acceptedPairing(t, 3)

	_, err := svc.GetOrCreateTodaysGames(ctx, uuid.New(), pairing.ID, today())
	assert.ErrorIs(t, err, models.ErrNotFound, "non-members cannot see the pairing")

	_, err = svc.GetOrCreateTodaysGames(ctx, f.initiator, pairing.ID, "2020-01-01")
	assert.ErrorIs(t, err, models.ErrValidation, "day key outside the skew window")

	_, err = svc.GetOrCreateTodaysGames(ctx, f.initiator, pairing.ID, "not-a-day")
	assert.ErrorIs(t, err, models.ErrValidation)

	pending := &models.Pairing{
		InitiatorID:     f.initiator,
		Kind:            models.KindCouple,
		Status:          models.PairingPending,
		DailyQuota:      3,
		InviteCodeHash:  "pending-hash",
		InviteExpiresAt: time.Now().Add(time.Hour),
	}
	pending.SetCategoryList([]string{"daily_life"})
	require.NoError(t, f.pairingRepo.Create(ctx, pending))
	_, err = svc.GetOrCreateTodaysGames(ctx, f.initiator, pending.ID, today())
	assert.ErrorIs(t, err, models.ErrConflict, "pending pairings play nothing")
}

func TestGameServiceConcurrentGenerateSharesOneSet(t *testing.T) {
	f := newServiceFixture(t)
	svc := f.gameService(24 * time.Hour)
	ctx := context.Background()

	pairing := f.acceptedPairing(t, 5)

	var wg sync.WaitGroup
	results := make([][]models.GameSlot, 2)
	errs := make([]error, 2)
	for i, member := range []uuid.UUID{f.initiator, f.counterpart} {
		wg.Add(1)
		go func(idx int, userID uuid.UUID) {
			defer wg.Done()
			results[idx], errs[idx] = svc.GetOrCreateTodaysGames(ctx, userID, pairing.ID, today())
		}(i, member)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	require.Len(t, results[0], 5)
	require.Len(t, results[1], 5)
	for i := range results[0] {
		assert.Equal(t, results[0][i].ID, results[1][i].ID, "both members see the first writer's set")
	}
}

func TestGameServiceAvoidsRecentQuestions(t *testing.T) {
	f := newServiceFixture(t)
	svc := f.gameService(24 * time.Hour)
	ctx := context.Background()

	pairing := f.acceptedPairing(t, 3)

	day1 := time.Now().AddDate(0, 0, -1).Format(models.DayKeyLayout)
	first, err := svc.GetOrCreateTodaysGames(ctx, f.initiator, pairing.ID, day1)
	require.NoError(t, err)

	second, err := svc.GetOrCreateTodaysGames(ctx, f.initiator, pairing.ID, today())
	require.NoError(t, err)

	used := map[uint]bool{}
	for _, slot := range first {
		used[slot.QuestionID] = true
	}
	for _, slot := range second {
		assert.False(t, used[slot.QuestionID], "fresh pool covers the quota, so yesterday's questions sit out")
	}
}

func TestGameServiceQuotaChangeDoesNotReshapeExistingDay(t *testing.T) {
	f := newServiceFixture(t)
	svc := f.gameService(24 * time.Hour)
	ctx := context.Background()

	pairing := f.acceptedPairing(t, 5)

	slots, err := svc.GetOrCreateTodaysGames(ctx, f.initiator, pairing.ID, today())
	require.NoError(t, err)
	require.Len(t, slots, 5)

	require.NoError(t, f.pairingRepo.UpdateSettings(ctx, pairing.ID, 2, pairing.Categories))

	again, err := svc.GetOrCreateTodaysGames(ctx, f.initiator, pairing.ID, today())
	require.NoError(t, err)
	assert.Len(t, again, 5, "already materialized days keep their slot set")
}

func TestGameServiceSubmitAnswerFlow(t *testing.T) {
	f := newServiceFixture(t)
	svc := f.gameService(24 * time.Hour)
	ctx := context.Background()

	pairing := f.acceptedPairing(t, 3)
	slots, err := svc.GetOrCreateTodaysGames(ctx, f.initiator, pairing.ID, today())
	require.NoError(t, err)
	slot := slots[0]

	// First answer leaves the slot waiting on the counterpart.
	result, err := svc.SubmitAnswer(ctx, f.initiator, slot.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, OutcomePending, result.Outcome)
	assert.Equal(t, models.SlotAwaitingCounterpart, result.Slot.Status)
	assert.Nil(t, result.Slot.Matched)

	// Matching second answer completes the slot.
	result, err = svc.SubmitAnswer(ctx, f.counterpart, slot.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, OutcomeMatch, result.Outcome)
	assert.Equal(t, models.SlotCompleted, result.Slot.Status)
	require.NotNil(t, result.Slot.Matched)
	assert.True(t, *result.Slot.Matched)

	// Mismatching answers on another slot.
	_, err = svc.SubmitAnswer(ctx, f.counterpart, slots[1].ID, 1)
	require.NoError(t, err)
	result, err = svc.SubmitAnswer(ctx, f.initiator, slots[1].ID, 0)
	require.NoError(t, err)
	assert.Equal(t, OutcomeMismatch, result.Outcome)

	types := f.publisher.slotEventTypes()
	assert.Equal(t, models.EventSlotUpdated, types[len(types)-1])
}

func TestGameServiceSubmitAnswerRejections(t *testing.T) {
	f := newServiceFixture(t)
	svc := f.gameService(24 * time.Hour)
	ctx := context.Background()

	pairing := f.acceptedPairing(t, 3)
	slots, err := svc.GetOrCreateTodaysGames(ctx, f.initiator, pairing.ID, today())
	require.NoError(t, err)
	slot := slots[0]

	_, err = svc.SubmitAnswer(ctx, uuid.New(), slot.ID, 0)
	assert.ErrorIs(t, err, models.ErrNotFound, "outsiders cannot see the slot")

	_, err = svc.SubmitAnswer(ctx, f.initiator, slot.ID, 99)
	assert.ErrorIs(t, err, models.ErrValidation, "option index out of range")

	_, err = svc.SubmitAnswer(ctx, f.initiator, slot.ID, 0)
	require.NoError(t, err)

	// Re-submission does not overwrite the stored answer.
	_, err = svc.SubmitAnswer(ctx, f.initiator, slot.ID, 1)
	assert.ErrorIs(t, err, models.ErrDuplicateAnswer)

	stored, err := f.slotRepo.GetByID(ctx, slot.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.InitiatorOption)
	assert.Equal(t, 0, *stored.InitiatorOption)
}

func TestGameServiceSubmitAnswerOnExpiredSlot(t *testing.T) {
	f := newServiceFixture(t)
	svc := f.gameService(-time.Minute)
	ctx := context.Background()

	pairing := f.acceptedPairing(t, 2)
	slots, err := svc.GetOrCreateTodaysGames(ctx, f.initiator, pairing.ID, today())
	require.NoError(t, err)

	_, err = svc.SubmitAnswer(ctx, f.initiator, slots[0].ID, 0)
	assert.ErrorIs(t, err, models.ErrExpired)
}

func TestGameServiceExpireOverdueOnce(t *testing.T) {
	f := newServiceFixture(t)
	svc := f.gameService(-time.Minute)
	ctx := context.Background()

	pairing := f.acceptedPairing(t, 3)
	_, err := svc.GetOrCreateTodaysGames(ctx, f.initiator, pairing.ID, today())
	require.NoError(t, err)
	f.publisher.slotEvents = nil

	count, err := svc.ExpireOverdueOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, []string{
		models.EventSlotExpired, models.EventSlotExpired, models.EventSlotExpired,
	}, f.publisher.slotEventTypes())

	// Sweeps are idempotent.
	count, err = svc.ExpireOverdueOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestGameServiceExpirySweeperHonorsKillSwitch(t *testing.T) {
	f := newServiceFixture(t)
	svc := f.gameService(-time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pairing := f.acceptedPairing(t, 1)
	slots, err := svc.GetOrCreateTodaysGames(ctx, f.initiator, pairing.ID, today())
	require.NoError(t, err)

	var enabled atomic.Bool
	done := make(chan struct{})
	go func() {
		defer close(done)
		svc.RunExpirySweeper(ctx, 5*time.Millisecond, enabled.Load)
	}()

	// With the switch off the sweeper ticks but never sweeps.
	time.Sleep(50 * time.Millisecond)
	slot, err := f.slotRepo.GetByID(ctx, slots[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.SlotAwaitingBoth, slot.Status)

	// Flipping the switch revives the already-running sweeper.
	enabled.Store(true)
	assert.Eventually(t, func() bool {
		slot, err := f.slotRepo.GetByID(ctx, slots[0].ID)
		return err == nil && slot.Status == models.SlotExpired
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop on context cancel")
	}
}

func TestGameServiceGetSlot(t *testing.T) {
	f := newServiceFixture(t)
	svc := f.gameService(24 * time.Hour)
	ctx := context.Background()

	pairing := f.acceptedPairing(t, 2)
	slots, err := svc.GetOrCreateTodaysGames(ctx, f.initiator, pairing.ID, today())
	require.NoError(t, err)

	got, err := svc.GetSlot(ctx, f.counterpart, slots[0].ID)
	require.NoError(t, err)
	assert.Equal(t, slots[0].ID, got.ID)
	assert.NotEmpty(t, got.Question.Text)

	_, err = svc.GetSlot(ctx, uuid.New(), slots[0].ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}
