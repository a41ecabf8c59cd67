package cache

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Key layouts for everything duet stores in Redis outside pub/sub. The
// realtime channels live in internal/notifications; these are the plain
// keyed entries.
const (
	// WSTicketPrefix keys single-use websocket auth tickets.
	WSTicketPrefix = "duet:ws_ticket:%s"
	// PresencePrefix keys one member's ephemeral presence doc on a pairing.
	PresencePrefix = "duet:presence:pairing:%d:user:%s"
	// PresenceMembersPrefix keys the set of members seen on a pairing.
	PresenceMembersPrefix = "duet:presence:pairing:%d:members"
	// LifetimeProgressPrefix keys the cached lifetime progress summary.
	LifetimeProgressPrefix = "duet:progress:pairing:%d:lifetime"
	// TokenBlacklistPrefix keys revoked JWT ids.
	TokenBlacklistPrefix = "duet:jwt_blacklist:%s"
)

const (
	// WSTicketTTL bounds the window between ticket issue and socket dial.
	WSTicketTTL = 30 * time.Second
	// LifetimeProgressTTL keeps the cached summary slightly stale at most.
	LifetimeProgressTTL = time.Minute
)

func WSTicketKey(ticket string) string {
	return fmt.Sprintf(WSTicketPrefix, ticket)
}

func PresenceKey(pairingID uint, userID uuid.UUID) string {
	return fmt.Sprintf(PresencePrefix, pairingID, userID)
}

func PresenceMembersKey(pairingID uint) string {
	return fmt.Sprintf(PresenceMembersPrefix, pairingID)
}

func LifetimeProgressKey(pairingID uint) string {
	return fmt.Sprintf(LifetimeProgressPrefix, pairingID)
}

func TokenBlacklistKey(jti string) string {
	return fmt.Sprintf(TokenBlacklistPrefix, jti)
}

