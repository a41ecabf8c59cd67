package service

import (
	"context"

	"duet/internal/models"
)

// EventPublisher pushes game and pairing state changes into the realtime
// feed. Services treat publication as best-effort: a failed publish never
// rolls back the database write that caused it.
type EventPublisher interface {
	PublishSlotEvent(ctx context.Context, event models.SlotEvent)
	PublishPairingEvent(ctx context.Context, event models.PairingEvent)
}

// noopPublisher is used when no realtime stack is wired, e.g. in CLI tools.
type noopPublisher struct{}

func (noopPublisher) PublishSlotEvent(context.Context, models.SlotEvent)       {}
func (noopPublisher) PublishPairingEvent(context.Context, models.PairingEvent) {}

func orNoop(p EventPublisher) EventPublisher {
	if p == nil {
		return noopPublisher{}
	}
	return p
}
