package models

import (
	"time"
)

// DayKeyLayout is the format of the opaque pair-local date key. A day key is
// a calendar label, never a timestamp; two members in different timezones
// share whatever key their clients agree on.
const DayKeyLayout = "2006-01-02"

// DayKeyOf formats t's UTC calendar date as a day key.
func DayKeyOf(t time.Time) string {
	return t.UTC().Format(DayKeyLayout)
}

// SlotStatus defines the lifecycle state of a game slot.
type SlotStatus string

const (
	// SlotAwaitingBoth indicates neither party has answered.
	SlotAwaitingBoth SlotStatus = "awaiting_both"
	// SlotAwaitingInitiator indicates the counterpart answered first and the
	// initiator's answer is still missing.
	SlotAwaitingInitiator SlotStatus = "awaiting_initiator"
	// SlotAwaitingCounterpart indicates the initiator answered first and the
	// counterpart's answer is still missing.
	SlotAwaitingCounterpart SlotStatus = "awaiting_counterpart"
	// SlotCompleted indicates both parties answered and the match is computed.
	SlotCompleted SlotStatus = "completed"
	// SlotExpired indicates the slot lapsed before completion. Terminal.
	SlotExpired SlotStatus = "expired"
)

// GameSlot is one day's instance of one question for a pairing, with its own
// independent answer/match lifecycle. At most one row exists per
// (pairing, day, position).
type GameSlot struct {
	ID                    uint       `gorm:"primaryKey" json:"id"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
	PairingID             uint       `gorm:"not null;uniqueIndex:idx_slots_pairing_day_position,priority:1" json:"pairing_id"`
	QuestionID            uint       `gorm:"not null" json:"question_id"`
	Day                   string     `gorm:"type:varchar(10);not null;uniqueIndex:idx_slots_pairing_day_position,priority:2" json:"day"`
	Position              int        `gorm:"not null;uniqueIndex:idx_slots_pairing_day_position,priority:3" json:"position"`
	Status                SlotStatus `gorm:"type:varchar(24);default:'awaiting_both';index:idx_slots_status" json:"status"`
	InitiatorOption       *int       `json:"initiator_option,omitempty"`
	CounterpartOption     *int       `json:"counterpart_option,omitempty"`
	Matched               *bool      `json:"matched,omitempty"`
	InitiatorAnsweredAt   *time.Time `json:"initiator_answered_at,omitempty"`
	CounterpartAnsweredAt *time.Time `json:"counterpart_answered_at,omitempty"`
	CompletedAt           *time.Time `json:"completed_at,omitempty"`
	ExpiresAt             time.Time  `gorm:"not null;index:idx_slots_expires_at" json:"expires_at"`

	Question Question `gorm:"foreignKey:QuestionID" json:"question,omitempty"`
}

// TableName specifies the table name for GORM
func (GameSlot) TableName() string {
	return "game_slots"
}

// OptionOf returns the answer the given role has recorded, if any.
func (s *GameSlot) OptionOf(role PartyRole) *int {
	if role == RoleInitiator {
		return s.InitiatorOption
	}
	return s.CounterpartOption
}

// AnsweredBy reports whether the given role has already answered.
func (s *GameSlot) AnsweredBy(role PartyRole) bool {
	return s.OptionOf(role) != nil
}

// BothAnswered reports whether both parties have answered.
func (s *GameSlot) BothAnswered() bool {
	return s.InitiatorOption != nil && s.CounterpartOption != nil
}

// AwaitingStatusFor returns the status a slot enters when `answered` submits
// first: the slot then awaits the other role.
func AwaitingStatusFor(answered PartyRole) SlotStatus {
	if answered == RoleInitiator {
		return SlotAwaitingCounterpart
	}
	return SlotAwaitingInitiator
}

// IsExpired reports whether the slot can no longer accept answers.
func (s *GameSlot) IsExpired(now time.Time) bool {
	if s.Status == SlotExpired {
		return true
	}
	return s.Status != SlotCompleted && now.After(s.ExpiresAt)
}

// IsTerminal reports whether the slot's lifecycle is finished.
func (s *GameSlot) IsTerminal() bool {
	return s.Status == SlotCompleted || s.Status == SlotExpired
}
