package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func TestDayKeyOf(t *testing.T) {
	t.Parallel()
	// 23:30 in UTC-5 is already the next day in UTC; day keys are UTC-based.
	loc := time.FixedZone("UTC-5", -5*3600)
	at := time.Date(2026, 3, 14, 23, 30, 0, 0, loc)
	assert.Equal(t, "2026-03-15", DayKeyOf(at))
	assert.Equal(t, "2026-03-14", DayKeyOf(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)))
}

func TestSlotOptionOf(t *testing.T) {
	t.Parallel()
	s := &GameSlot{InitiatorOption: intPtr(2)}

	assert.Equal(t, 2, *s.OptionOf(RoleInitiator))
	assert.Nil(t, s.OptionOf(RoleCounterpart))
	assert.True(t, s.AnsweredBy(RoleInitiator))
	assert.False(t, s.AnsweredBy(RoleCounterpart))
	assert.False(t, s.BothAnswered())

	s.CounterpartOption = intPtr(2)
	assert.True(t, s.BothAnswered())
}

func TestAwaitingStatusFor(t *testing.T) {
	t.Parallel()
	// Whoever answers first leaves the slot awaiting the other role.
	assert.Equal(t, SlotAwaitingCounterpart, AwaitingStatusFor(RoleInitiator))
	assert.Equal(t, SlotAwaitingInitiator, AwaitingStatusFor(RoleCounterpart))
}

func TestSlotIsExpired(t *testing.T) {
	t.Parallel()
	now := time.Now()
	tests := []struct {
		name string
		slot GameSlot
		want bool
	}{
		{"fresh awaiting", GameSlot{Status: SlotAwaitingBoth, ExpiresAt: now.Add(time.Hour)}, false},
		{"overdue awaiting", GameSlot{Status: SlotAwaitingBoth, ExpiresAt: now.Add(-time.Minute)}, true},
		{"overdue half answered", GameSlot{Status: SlotAwaitingCounterpart, ExpiresAt: now.Add(-time.Minute)}, true},
		{"marked expired", GameSlot{Status: SlotExpired, ExpiresAt: now.Add(time.Hour)}, true},
		{"completed past expiry", GameSlot{Status: SlotCompleted, ExpiresAt: now.Add(-time.Hour)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.slot.IsExpired(now))
		})
	}
}

func TestSlotIsTerminal(t *testing.T) {
	t.Parallel()
	assert.False(t, (&GameSlot{Status: SlotAwaitingBoth}).IsTerminal())
	assert.False(t, (&GameSlot{Status: SlotAwaitingInitiator}).IsTerminal())
	assert.True(t, (&GameSlot{Status: SlotCompleted}).IsTerminal())
	assert.True(t, (&GameSlot{Status: SlotExpired}).IsTerminal())
}

func TestQuestionOptionListRoundTrip(t *testing.T) {
	t.Parallel()
	q := &Question{}
	q.SetOptionList([]string{"Coffee", "Tea"})
	assert.Equal(t, []string{"Coffee", "Tea"}, q.OptionList())
	assert.Equal(t, 2, q.OptionCount())

	assert.True(t, q.ValidOption(0))
	assert.True(t, q.ValidOption(1))
	assert.False(t, q.ValidOption(2))
	assert.False(t, q.ValidOption(-1))

	empty := &Question{}
	assert.Nil(t, empty.OptionList())
	assert.False(t, empty.ValidOption(0))
}

func TestNewSlotEventCarriesFullState(t *testing.T) {
	t.Parallel()
	matched := true
	completedAt := time.Now().UTC()
	slot := &GameSlot{
		ID:                7,
		PairingID:         3,
		Day:               "2026-03-14",
		Position:          2,
		Status:            SlotCompleted,
		InitiatorOption:   intPtr(1),
		CounterpartOption: intPtr(1),
		Matched:           &matched,
		CompletedAt:       &completedAt,
	}

	ev := NewSlotEvent(EventSlotUpdated, slot)
	assert.Equal(t, EventSlotUpdated, ev.Type)
	assert.Equal(t, uint(7), ev.SlotID)
	assert.Equal(t, uint(3), ev.PairingID)
	assert.Equal(t, "2026-03-14", ev.Day)
	assert.Equal(t, 2, ev.Position)
	assert.Equal(t, SlotCompleted, ev.Status)
	assert.Equal(t, 1, *ev.InitiatorOption)
	assert.Equal(t, 1, *ev.CounterpartOption)
	assert.True(t, *ev.Matched)
	assert.Equal(t, completedAt, *ev.CompletedAt)
	assert.False(t, ev.OccurredAt.IsZero())
}
