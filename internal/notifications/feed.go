package notifications

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"duet/internal/models"
	"duet/internal/observability"

	"github.com/google/uuid"
)

// ScopeKind names the two feed shapes a client can subscribe to.
type ScopeKind string

const (
	// ScopePairing delivers everything that happens on one pairing.
	ScopePairing ScopeKind = "pairing"
	// ScopeUser delivers events across all pairings the user belongs to.
	ScopeUser ScopeKind = "user"
)

// Scope identifies a feed subscription target. Comparable so it can key maps.
type Scope struct {
	Kind      ScopeKind
	PairingID uint
	UserID    uuid.UUID
}

// PairingScope returns the scope covering one pairing.
func PairingScope(pairingID uint) Scope {
	return Scope{Kind: ScopePairing, PairingID: pairingID}
}

// UserScope returns the scope covering all of a user's pairings.
func UserScope(userID uuid.UUID) Scope {
	return Scope{Kind: ScopeUser, UserID: userID}
}

const defaultSubscriberBuffer = 64

// SubscribeOptions tunes one subscription.
type SubscribeOptions struct {
	// SelfID suppresses the subscriber's own presence events. Zero value
	// disables suppression.
	SelfID uuid.UUID
	// PairingIDs seeds the membership filter for user-scoped subscriptions.
	// The filter follows pairing lifecycle events afterwards.
	PairingIDs []uint
	// Buffer overrides the outbound channel capacity.
	Buffer int
}

type subscriber struct {
	scope  Scope
	selfID uuid.UUID
	ch     chan []byte

	mu       sync.Mutex
	pairings map[uint]struct{}
	closed   bool
}

func (s *subscriber) memberOf(pairingID uint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pairings[pairingID]
	return ok
}

func (s *subscriber) setMembership(pairingID uint, member bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if member {
		s.pairings[pairingID] = struct{}{}
	} else {
		delete(s.pairings, pairingID)
	}
}

// deliver hands a frame to the subscriber without blocking the dispatcher.
// A full buffer drops the frame; the client is expected to re-fetch state
// after any gap, which the idempotent full-state events make safe.
func (s *subscriber) deliver(frame []byte) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	select {
	case s.ch <- frame:
		s.mu.Unlock()
		observability.FeedEventsDelivered.WithLabelValues(string(s.scope.Kind)).Inc()
	default:
		s.mu.Unlock()
		observability.FeedBackpressureDrops.WithLabelValues(string(s.scope.Kind), "full").Inc()
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// Propagator fans game, pairing, and presence events out to feed
// subscribers. With Redis wired, events travel through pub/sub so every
// process sees them; without it, delivery is process-local. Either way
// delivery is at least once and ordered per pairing.
type Propagator struct {
	notifier *Notifier

	mu        sync.RWMutex
	byPairing map[uint]map[*subscriber]struct{}
	byUser    map[uuid.UUID]map[*subscriber]struct{}
}

// NewPropagator returns a propagator publishing through notifier.
func NewPropagator(notifier *Notifier) *Propagator {
	return &Propagator{
		notifier:  notifier,
		byPairing: make(map[uint]map[*subscriber]struct{}),
		byUser:    make(map[uuid.UUID]map[*subscriber]struct{}),
	}
}

// Start routes Redis-delivered events into local dispatch until ctx is
// cancelled. Call once per process when Redis is wired.
func (p *Propagator) Start(ctx context.Context) error {
	return p.notifier.StartEventSubscriber(ctx, p.dispatchSlot, p.dispatchPairing, p.dispatchPresence)
}

// PublishSlotEvent implements the game service's publisher.
func (p *Propagator) PublishSlotEvent(ctx context.Context, event models.SlotEvent) {
	observability.FeedEventsPublished.WithLabelValues(event.Type).Inc()
	if p.notifier.hasRedis() {
		if err := p.notifier.PublishSlotEvent(ctx, event); err != nil {
			log.Printf("slot event publish failed for pairing %d: %v", event.PairingID, err)
		}
		return
	}
	p.dispatchSlot(event)
}

// PublishPairingEvent implements the pairing service's publisher.
func (p *Propagator) PublishPairingEvent(ctx context.Context, event models.PairingEvent) {
	observability.FeedEventsPublished.WithLabelValues(event.Type).Inc()
	if p.notifier.hasRedis() {
		if err := p.notifier.PublishPairingEvent(ctx, event); err != nil {
			log.Printf("pairing event publish failed for pairing %d: %v", event.PairingID, err)
		}
		return
	}
	p.dispatchPairing(event)
}

// PublishPresenceEvent propagates a presence transition to pairing feeds.
func (p *Propagator) PublishPresenceEvent(ctx context.Context, event models.PresenceEvent) {
	observability.FeedEventsPublished.WithLabelValues("presence_" + event.Type).Inc()
	if p.notifier.hasRedis() {
		if err := p.notifier.PublishPresenceEvent(ctx, event); err != nil {
			log.Printf("presence event publish failed for pairing %d: %v", event.PairingID, err)
		}
		return
	}
	p.dispatchPresence(event)
}

// Subscribe opens a feed stream for the scope. The returned channel closes
// when the cancel function runs; cancel is idempotent and safe from any
// goroutine.
func (p *Propagator) Subscribe(scope Scope, opts SubscribeOptions) (<-chan []byte, func()) {
	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	sub := &subscriber{
		scope:    scope,
		selfID:   opts.SelfID,
		ch:       make(chan []byte, buffer),
		pairings: make(map[uint]struct{}, len(opts.PairingIDs)),
	}
	for _, id := range opts.PairingIDs {
		sub.pairings[id] = struct{}{}
	}

	p.mu.Lock()
	switch scope.Kind {
	case ScopePairing:
		set, ok := p.byPairing[scope.PairingID]
		if !ok {
			set = make(map[*subscriber]struct{})
			p.byPairing[scope.PairingID] = set
		}
		set[sub] = struct{}{}
	case ScopeUser:
		set, ok := p.byUser[scope.UserID]
		if !ok {
			set = make(map[*subscriber]struct{})
			p.byUser[scope.UserID] = set
		}
		set[sub] = struct{}{}
	}
	p.mu.Unlock()
	observability.FeedStreams.WithLabelValues(string(scope.Kind)).Inc()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			p.mu.Lock()
			switch scope.Kind {
			case ScopePairing:
				if set, ok := p.byPairing[scope.PairingID]; ok {
					delete(set, sub)
					if len(set) == 0 {
						delete(p.byPairing, scope.PairingID)
					}
				}
			case ScopeUser:
				if set, ok := p.byUser[scope.UserID]; ok {
					delete(set, sub)
					if len(set) == 0 {
						delete(p.byUser, scope.UserID)
					}
				}
			}
			p.mu.Unlock()
			observability.FeedStreams.WithLabelValues(string(scope.Kind)).Dec()
			sub.close()
		})
	}
	return sub.ch, cancel
}

func encodeEvent(event any) ([]byte, bool) {
	raw, err := json.Marshal(event)
	if err != nil {
		log.Printf("encode feed event: %v", err)
		return nil, false
	}
	return raw, true
}

func (p *Propagator) dispatchSlot(event models.SlotEvent) {
	frame, ok := encodeEvent(event)
	if !ok {
		return
	}

	p.mu.RLock()
	targets := make([]*subscriber, 0, 4)
	for sub := range p.byPairing[event.PairingID] {
		targets = append(targets, sub)
	}
	for _, set := range p.byUser {
		for sub := range set {
			if sub.memberOf(event.PairingID) {
				targets = append(targets, sub)
			}
		}
	}
	p.mu.RUnlock()

	for _, sub := range targets {
		sub.deliver(frame)
	}
}

func (p *Propagator) dispatchPairing(event models.PairingEvent) {
	frame, ok := encodeEvent(event)
	if !ok {
		return
	}

	member := event.Status == models.PairingAccepted

	p.mu.RLock()
	targets := make([]*subscriber, 0, 4)
	for sub := range p.byPairing[event.PairingID] {
		targets = append(targets, sub)
	}
	for _, userID := range pairingMembers(event) {
		for sub := range p.byUser[userID] {
			// Keep the membership filter in step with the lifecycle so
			// user feeds pick up slot events from newly accepted pairings.
			sub.setMembership(event.PairingID, member)
			targets = append(targets, sub)
		}
	}
	p.mu.RUnlock()

	for _, sub := range targets {
		sub.deliver(frame)
	}
}

func (p *Propagator) dispatchPresence(event models.PresenceEvent) {
	frame, ok := encodeEvent(event)
	if !ok {
		return
	}

	p.mu.RLock()
	targets := make([]*subscriber, 0, 2)
	for sub := range p.byPairing[event.PairingID] {
		// A member never observes their own presence transitions.
		if sub.selfID != uuid.Nil && sub.selfID == event.UserID {
			continue
		}
		targets = append(targets, sub)
	}
	p.mu.RUnlock()

	for _, sub := range targets {
		sub.deliver(frame)
	}
}

func pairingMembers(event models.PairingEvent) []uuid.UUID {
	members := []uuid.UUID{event.InitiatorID}
	if event.CounterpartID != nil {
		members = append(members, *event.CounterpartID)
	}
	return members
}
