package models

import (
	"time"

	"github.com/google/uuid"
)

// Realtime event type names delivered to feed subscribers.
const (
	// EventSlotCreated is emitted once per slot when a day's set materializes.
	EventSlotCreated = "slot_created"
	// EventSlotUpdated is emitted on every answer-driven state change.
	EventSlotUpdated = "slot_update"
	// EventSlotExpired is emitted when the expiry sweep retires a slot.
	EventSlotExpired = "slot_expired"
	// EventPairingUpdated is emitted on pairing lifecycle transitions.
	EventPairingUpdated = "pairing_update"
)

// SlotEvent is the normalized full-state change notification for one game
// slot. It carries enough for a subscriber to update local state without a
// follow-up fetch, and applying the same event twice must be a no-op.
type SlotEvent struct {
	Type              string     `json:"type"`
	SlotID            uint       `json:"slot_id"`
	PairingID         uint       `json:"pairing_id"`
	Day               string     `json:"day"`
	Position          int        `json:"position"`
	Status            SlotStatus `json:"status"`
	InitiatorOption   *int       `json:"initiator_option,omitempty"`
	CounterpartOption *int       `json:"counterpart_option,omitempty"`
	Matched           *bool      `json:"matched,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	OccurredAt        time.Time  `json:"occurred_at"`
}

// NewSlotEvent builds an event of the given type from the slot's current
// (post-write) row state.
func NewSlotEvent(eventType string, slot *GameSlot) SlotEvent {
	return SlotEvent{
		Type:              eventType,
		SlotID:            slot.ID,
		PairingID:         slot.PairingID,
		Day:               slot.Day,
		Position:          slot.Position,
		Status:            slot.Status,
		InitiatorOption:   slot.InitiatorOption,
		CounterpartOption: slot.CounterpartOption,
		Matched:           slot.Matched,
		CompletedAt:       slot.CompletedAt,
		OccurredAt:        time.Now().UTC(),
	}
}

// PairingEvent notifies members about pairing lifecycle transitions, and lets
// user-scoped feeds learn about new memberships.
type PairingEvent struct {
	Type          string        `json:"type"`
	PairingID     uint          `json:"pairing_id"`
	InitiatorID   uuid.UUID     `json:"initiator_id"`
	CounterpartID *uuid.UUID    `json:"counterpart_id,omitempty"`
	Status        PairingStatus `json:"status"`
	Kind          PairingKind   `json:"kind"`
	OccurredAt    time.Time     `json:"occurred_at"`
}

// NewPairingEvent builds a pairing lifecycle event from the current row state.
func NewPairingEvent(pairing *Pairing) PairingEvent {
	return PairingEvent{
		Type:          EventPairingUpdated,
		PairingID:     pairing.ID,
		InitiatorID:   pairing.InitiatorID,
		CounterpartID: pairing.CounterpartID,
		Status:        pairing.Status,
		Kind:          pairing.Kind,
		OccurredAt:    time.Now().UTC(),
	}
}
