package models

import (
	"time"

	"github.com/google/uuid"
)

// PresenceState is the closed set of activity states a member can report.
// Ephemeral only: presence is never an input to game state or match results.
type PresenceState string

const (
	// PresenceOnline indicates the member's app is in the foreground.
	PresenceOnline PresenceState = "online"
	// PresenceAway indicates the app is backgrounded but connected.
	PresenceAway PresenceState = "away"
	// PresencePlaying indicates the member is inside today's game.
	PresencePlaying PresenceState = "playing"
)

// ValidPresenceState reports whether s is a known presence state.
func ValidPresenceState(s PresenceState) bool {
	switch s {
	case PresenceOnline, PresenceAway, PresencePlaying:
		return true
	}
	return false
}

// Presence event type names.
const (
	// PresenceJoin is delivered when a member starts being tracked.
	PresenceJoin = "join"
	// PresenceUpdate is delivered on state or screen changes.
	PresenceUpdate = "update"
	// PresenceLeave is delivered when tracking stops or times out.
	PresenceLeave = "leave"
)

// PresenceEvent is delivered to presence observers on a pairing channel.
// Observers never receive their own events.
type PresenceEvent struct {
	Type      string        `json:"type"`
	PairingID uint          `json:"pairing_id"`
	UserID    uuid.UUID     `json:"user_id"`
	State     PresenceState `json:"state,omitempty"`
	Screen    string        `json:"screen,omitempty"`
	At        time.Time     `json:"at"`
}

// PresenceDoc is the stored per-member presence state with its freshness.
type PresenceDoc struct {
	UserID    uuid.UUID     `json:"user_id"`
	State     PresenceState `json:"state"`
	Screen    string        `json:"screen,omitempty"`
	UpdatedAt time.Time     `json:"updated_at"`
}
