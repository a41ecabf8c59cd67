// Package notifications provides real-time event delivery for pairings:
// the Redis transport, the feed propagator, the presence tracker, and the
// websocket plumbing.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"runtime/debug"
	"strconv"
	"strings"

	"duet/internal/models"
	"duet/internal/observability"

	"github.com/redis/go-redis/v9"
)

// Redis channel layout. Slot events fan out per pairing; pairing lifecycle
// events share one firehose so user-scoped feeds can learn about new
// memberships; presence has its own per-pairing channel.
const (
	pairingChannelPrefix  = "duet:pairing:"
	pairingsChannel       = "duet:pairings"
	presenceChannelPrefix = "duet:presence:"
)

func pairingChannel(pairingID uint) string {
	return pairingChannelPrefix + strconv.FormatUint(uint64(pairingID), 10)
}

func presenceChannel(pairingID uint) string {
	return presenceChannelPrefix + strconv.FormatUint(uint64(pairingID), 10)
}

// Notifier publishes duet events into Redis channels. All methods are no-ops
// without a Redis client; the Propagator falls back to local dispatch then.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

func (n *Notifier) hasRedis() bool {
	return n != nil && n.rdb != nil
}

func (n *Notifier) publish(ctx context.Context, channel string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := n.rdb.Publish(ctx, channel, raw).Err(); err != nil {
		observability.RedisErrorRate.WithLabelValues("publish").Inc()
		return err
	}
	return nil
}

// PublishSlotEvent sends a slot event to the pairing's channel.
func (n *Notifier) PublishSlotEvent(ctx context.Context, event models.SlotEvent) error {
	if !n.hasRedis() {
		return nil
	}
	return n.publish(ctx, pairingChannel(event.PairingID), event)
}

// PublishPairingEvent sends a pairing lifecycle event to the shared firehose.
func (n *Notifier) PublishPairingEvent(ctx context.Context, event models.PairingEvent) error {
	if !n.hasRedis() {
		return nil
	}
	return n.publish(ctx, pairingsChannel, event)
}

// PublishPresenceEvent sends a presence event to the pairing's presence
// channel.
func (n *Notifier) PublishPresenceEvent(ctx context.Context, event models.PresenceEvent) error {
	if !n.hasRedis() {
		return nil
	}
	return n.publish(ctx, presenceChannel(event.PairingID), event)
}

// StartEventSubscriber subscribes to every duet channel and routes decoded
// events to the handlers until ctx is cancelled. Handlers run on the
// subscriber goroutine; panics are contained per message.
func (n *Notifier) StartEventSubscriber(
	ctx context.Context,
	onSlot func(models.SlotEvent),
	onPairing func(models.PairingEvent),
	onPresence func(models.PresenceEvent),
) error {
	if !n.hasRedis() {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, pairingChannelPrefix+"*", pairingsChannel, presenceChannelPrefix+"*")
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							log.Printf("PANIC in EventSubscriber: %v\n%s", r, debug.Stack())
						}
					}()
					routeMessage(msg.Channel, []byte(msg.Payload), onSlot, onPairing, onPresence)
				}()
			}
		}
	}()

	return nil
}

func routeMessage(
	channel string, payload []byte,
	onSlot func(models.SlotEvent),
	onPairing func(models.PairingEvent),
	onPresence func(models.PresenceEvent),
) {
	switch {
	case channel == pairingsChannel:
		var event models.PairingEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			log.Printf("invalid pairing event on %s: %v", channel, err)
			return
		}
		if onPairing != nil {
			onPairing(event)
		}
	case strings.HasPrefix(channel, presenceChannelPrefix):
		var event models.PresenceEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			log.Printf("invalid presence event on %s: %v", channel, err)
			return
		}
		if onPresence != nil {
			onPresence(event)
		}
	case strings.HasPrefix(channel, pairingChannelPrefix):
		var event models.SlotEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			log.Printf("invalid slot event on %s: %v", channel, err)
			return
		}
		if onSlot != nil {
			onSlot(event)
		}
	default:
		log.Printf("unexpected channel: %s", channel)
	}
}
