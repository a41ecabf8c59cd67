package notifications

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"duet/internal/cache"
	"duet/internal/models"
	"duet/internal/observability"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultPresenceTTL    = 75 * time.Second
	defaultPresenceSweep  = 30 * time.Second
	defaultPresenceGrace  = 5 * time.Second
	presenceMemberSetTTL  = 24 * time.Hour
)

type presenceKey struct {
	pairingID uint
	userID    uuid.UUID
}

// PresencePublisher delivers presence transitions to feed subscribers.
type PresencePublisher interface {
	PublishPresenceEvent(ctx context.Context, event models.PresenceEvent)
}

// TrackerConfig controls presence freshness and cleanup behavior.
type TrackerConfig struct {
	// TTL bounds how stale a presence doc may get before the member is
	// considered gone. Keep it a few heartbeats wide.
	TTL time.Duration
	// SweepInterval is how often stale members are reaped.
	SweepInterval time.Duration
	// DisconnectGrace suppresses leave events across quick reconnects.
	DisconnectGrace time.Duration
}

// Tracker mirrors each member's ephemeral presence in Redis and emits
// join/update/leave transitions. Presence is advisory only: nothing here
// touches game state, and losing every doc loses nothing durable.
type Tracker struct {
	rdb       *redis.Client
	publisher PresencePublisher

	mu            sync.Mutex
	localConns    map[presenceKey]int
	localDocs     map[presenceKey]models.PresenceDoc
	graceTimers   map[presenceKey]*time.Timer
	graceStarted  map[presenceKey]time.Time
	leaveNotified map[presenceKey]bool

	ttl   time.Duration
	sweep time.Duration
	grace time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewTracker creates a tracker and starts the stale-member reaper. rdb may
// be nil, which keeps presence process-local.
func NewTracker(rdb *redis.Client, publisher PresencePublisher, cfg TrackerConfig) *Tracker {
	t := &Tracker{
		rdb:           rdb,
		publisher:     publisher,
		localConns:    make(map[presenceKey]int),
		localDocs:     make(map[presenceKey]models.PresenceDoc),
		graceTimers:   make(map[presenceKey]*time.Timer),
		graceStarted:  make(map[presenceKey]time.Time),
		leaveNotified: make(map[presenceKey]bool),
		ttl:           defaultPresenceTTL,
		sweep:         defaultPresenceSweep,
		grace:         defaultPresenceGrace,
		stopCh:        make(chan struct{}),
	}
	if cfg.TTL > 0 {
		t.ttl = cfg.TTL
	}
	if cfg.SweepInterval > 0 {
		t.sweep = cfg.SweepInterval
	}
	if cfg.DisconnectGrace > 0 {
		t.grace = cfg.DisconnectGrace
	}

	go t.reaperLoop()
	return t
}

// Stop halts the reaper and cancels pending grace timers.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() {
		close(t.stopCh)
		t.mu.Lock()
		for key, timer := range t.graceTimers {
			timer.Stop()
			delete(t.graceTimers, key)
		}
		t.mu.Unlock()
	})
}

// Track starts presence for a member's connection. The first connection
// emits a join; reconnects inside the grace window stay silent.
func (t *Tracker) Track(ctx context.Context, pairingID uint, userID uuid.UUID, state models.PresenceState, screen string) error {
	if !models.ValidPresenceState(state) {
		return models.NewValidationError("unknown presence state")
	}
	key := presenceKey{pairingID: pairingID, userID: userID}

	t.mu.Lock()
	if timer, ok := t.graceTimers[key]; ok {
		timer.Stop()
		delete(t.graceTimers, key)
		delete(t.graceStarted, key)
	}
	wasTracked := t.localConns[key] > 0
	t.localConns[key]++
	t.leaveNotified[key] = false
	t.mu.Unlock()

	doc := t.writeDoc(ctx, pairingID, userID, state, screen)
	if !wasTracked {
		t.emit(ctx, models.PresenceJoin, pairingID, doc)
	}
	return nil
}

// Update refreshes a member's state or screen and notifies observers.
func (t *Tracker) Update(ctx context.Context, pairingID uint, userID uuid.UUID, state models.PresenceState, screen string) error {
	if !models.ValidPresenceState(state) {
		return models.NewValidationError("unknown presence state")
	}
	doc := t.writeDoc(ctx, pairingID, userID, state, screen)
	t.emit(ctx, models.PresenceUpdate, pairingID, doc)
	return nil
}

// Touch refreshes the presence TTL without emitting an event; heartbeats
// land here.
func (t *Tracker) Touch(ctx context.Context, pairingID uint, userID uuid.UUID) {
	key := presenceKey{pairingID: pairingID, userID: userID}

	t.mu.Lock()
	doc, ok := t.localDocs[key]
	t.mu.Unlock()
	if !ok {
		return
	}
	t.writeDoc(ctx, pairingID, userID, doc.State, doc.Screen)
}

// Untrack ends presence for one connection. The leave fires only after the
// grace window passes without a reconnect.
func (t *Tracker) Untrack(ctx context.Context, pairingID uint, userID uuid.UUID) {
	key := presenceKey{pairingID: pairingID, userID: userID}

	t.mu.Lock()
	if n := t.localConns[key]; n > 1 {
		t.localConns[key] = n - 1
		t.mu.Unlock()
		return
	}
	delete(t.localConns, key)

	if timer, ok := t.graceTimers[key]; ok {
		timer.Stop()
	}
	t.graceStarted[key] = time.Now()
	t.graceTimers[key] = time.AfterFunc(t.grace, func() {
		t.finalizeLeave(context.Background(), key)
	})
	t.mu.Unlock()
}

// Snapshot returns the current presence docs for a pairing's members,
// dropping anything stale.
func (t *Tracker) Snapshot(ctx context.Context, pairingID uint) []models.PresenceDoc {
	if t.rdb == nil {
		return t.localSnapshot(pairingID)
	}

	members, err := t.rdb.SMembers(ctx, cache.PresenceMembersKey(pairingID)).Result()
	if err != nil {
		observability.RedisErrorRate.WithLabelValues("smembers").Inc()
		return t.localSnapshot(pairingID)
	}

	docs := make([]models.PresenceDoc, 0, len(members))
	for _, raw := range members {
		userID, parseErr := uuid.Parse(raw)
		if parseErr != nil {
			continue
		}
		doc, ok := t.readDoc(ctx, pairingID, userID)
		if !ok {
			_ = t.rdb.SRem(ctx, cache.PresenceMembersKey(pairingID), raw).Err()
			continue
		}
		docs = append(docs, doc)
	}
	return docs
}

func (t *Tracker) localSnapshot(pairingID uint) []models.PresenceDoc {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := time.Now().Add(-t.ttl)
	docs := make([]models.PresenceDoc, 0, 2)
	for key, doc := range t.localDocs {
		if key.pairingID != pairingID {
			continue
		}
		if doc.UpdatedAt.Before(cutoff) {
			continue
		}
		docs = append(docs, doc)
	}
	return docs
}

func (t *Tracker) writeDoc(ctx context.Context, pairingID uint, userID uuid.UUID, state models.PresenceState, screen string) models.PresenceDoc {
	doc := models.PresenceDoc{
		UserID:    userID,
		State:     state,
		Screen:    screen,
		UpdatedAt: time.Now().UTC(),
	}
	key := presenceKey{pairingID: pairingID, userID: userID}

	t.mu.Lock()
	t.localDocs[key] = doc
	t.mu.Unlock()

	if t.rdb == nil {
		return doc
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		log.Printf("presence doc marshal failed for user %s: %v", userID, err)
		return doc
	}
	if err := t.rdb.SetEx(ctx, cache.PresenceKey(pairingID, userID), raw, t.ttl).Err(); err != nil {
		observability.RedisErrorRate.WithLabelValues("setex").Inc()
	}
	if err := t.rdb.SAdd(ctx, cache.PresenceMembersKey(pairingID), userID.String()).Err(); err != nil {
		observability.RedisErrorRate.WithLabelValues("sadd").Inc()
	}
	_ = t.rdb.Expire(ctx, cache.PresenceMembersKey(pairingID), presenceMemberSetTTL).Err()
	return doc
}

func (t *Tracker) readDoc(ctx context.Context, pairingID uint, userID uuid.UUID) (models.PresenceDoc, bool) {
	raw, err := t.rdb.Get(ctx, cache.PresenceKey(pairingID, userID)).Result()
	if err != nil {
		return models.PresenceDoc{}, false
	}
	var doc models.PresenceDoc
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return models.PresenceDoc{}, false
	}
	return doc, true
}

func (t *Tracker) finalizeLeave(ctx context.Context, key presenceKey) {
	t.mu.Lock()
	if t.localConns[key] > 0 {
		delete(t.graceTimers, key)
		delete(t.graceStarted, key)
		t.mu.Unlock()
		return
	}
	started := t.graceStarted[key]
	delete(t.graceTimers, key)
	delete(t.graceStarted, key)
	doc, hadDoc := t.localDocs[key]
	delete(t.localDocs, key)
	t.mu.Unlock()

	if t.rdb != nil {
		// A doc refreshed after the disconnect means another process still
		// tracks this member there; leave their presence alone.
		if remote, ok := t.readDoc(ctx, key.pairingID, key.userID); ok && remote.UpdatedAt.After(started) {
			return
		}
		_ = t.rdb.Del(ctx, cache.PresenceKey(key.pairingID, key.userID)).Err()
		_ = t.rdb.SRem(ctx, cache.PresenceMembersKey(key.pairingID), key.userID.String()).Err()
	}

	if !hadDoc {
		doc = models.PresenceDoc{UserID: key.userID, UpdatedAt: time.Now().UTC()}
	}
	t.emitLeave(ctx, key, doc)
}

func (t *Tracker) emit(ctx context.Context, eventType string, pairingID uint, doc models.PresenceDoc) {
	observability.PresenceTransitions.WithLabelValues(eventType).Inc()
	if t.publisher == nil {
		return
	}
	t.publisher.PublishPresenceEvent(ctx, models.PresenceEvent{
		Type:      eventType,
		PairingID: pairingID,
		UserID:    doc.UserID,
		State:     doc.State,
		Screen:    doc.Screen,
		At:        time.Now().UTC(),
	})
}

func (t *Tracker) emitLeave(ctx context.Context, key presenceKey, doc models.PresenceDoc) {
	t.mu.Lock()
	if t.leaveNotified[key] {
		t.mu.Unlock()
		return
	}
	t.leaveNotified[key] = true
	t.mu.Unlock()

	observability.PresenceTransitions.WithLabelValues(models.PresenceLeave).Inc()
	if t.publisher == nil {
		return
	}
	t.publisher.PublishPresenceEvent(ctx, models.PresenceEvent{
		Type:      models.PresenceLeave,
		PairingID: key.pairingID,
		UserID:    key.userID,
		At:        time.Now().UTC(),
	})
}

// reapOnce sweeps the member sets this process knows about, emitting leaves
// for members whose docs lapsed without a clean disconnect.
func (t *Tracker) reapOnce(ctx context.Context) {
	if t.rdb == nil {
		return
	}

	t.mu.Lock()
	pairings := make(map[uint]struct{})
	for key := range t.localDocs {
		pairings[key.pairingID] = struct{}{}
	}
	for key := range t.localConns {
		pairings[key.pairingID] = struct{}{}
	}
	t.mu.Unlock()

	for pairingID := range pairings {
		members, err := t.rdb.SMembers(ctx, cache.PresenceMembersKey(pairingID)).Result()
		if err != nil {
			continue
		}
		for _, raw := range members {
			userID, parseErr := uuid.Parse(raw)
			if parseErr != nil {
				_ = t.rdb.SRem(ctx, cache.PresenceMembersKey(pairingID), raw).Err()
				continue
			}
			if _, ok := t.readDoc(ctx, pairingID, userID); ok {
				continue
			}
			_ = t.rdb.SRem(ctx, cache.PresenceMembersKey(pairingID), raw).Err()

			key := presenceKey{pairingID: pairingID, userID: userID}
			t.mu.Lock()
			hasLocal := t.localConns[key] > 0
			delete(t.localDocs, key)
			t.mu.Unlock()
			if !hasLocal {
				t.emitLeave(ctx, key, models.PresenceDoc{UserID: userID})
			}
		}
	}
}

func (t *Tracker) reaperLoop() {
	ticker := time.NewTicker(t.sweep)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopCh:
			return
		case <-ticker.C:
			t.reapOnce(context.Background())
		}
	}
}
