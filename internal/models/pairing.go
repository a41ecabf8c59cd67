package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// PairingKind describes the relationship between the two members of a pairing.
type PairingKind string

const (
	// KindCouple is a romantic couple pairing.
	KindCouple PairingKind = "couple"
	// KindFriend is a friend pairing.
	KindFriend PairingKind = "friend"
	// KindFamily is a generic family pairing.
	KindFamily PairingKind = "family"
	// KindSibling is a sibling pairing.
	KindSibling PairingKind = "sibling"
	// KindParent is a parent pairing.
	KindParent PairingKind = "parent"
	// KindChild is a child pairing.
	KindChild PairingKind = "child"
	// KindCousin is a cousin pairing.
	KindCousin PairingKind = "cousin"
)

// Audience is the coarse question audience a pairing kind maps onto.
type Audience string

const (
	// AudienceCouple marks questions written for romantic couples.
	AudienceCouple Audience = "couple"
	// AudienceFriend marks questions written for friends.
	AudienceFriend Audience = "friend"
	// AudienceFamily marks questions written for family members.
	AudienceFamily Audience = "family"
)

// PairingStatus represents the lifecycle state of a pairing.
type PairingStatus string

const (
	// PairingPending indicates an invitation awaiting acceptance.
	PairingPending PairingStatus = "pending"
	// PairingAccepted indicates an active pairing.
	PairingAccepted PairingStatus = "accepted"
	// PairingDeclined indicates the counterpart declined the invitation.
	PairingDeclined PairingStatus = "declined"
	// PairingExpired indicates the invitation lapsed before acceptance.
	PairingExpired PairingStatus = "expired"
	// PairingBlocked indicates the pairing was blocked by account management.
	PairingBlocked PairingStatus = "blocked"
)

// PartyRole identifies which fixed side of a pairing a user occupies.
// Roles are assigned at invitation time and never change.
type PartyRole string

const (
	// RoleInitiator is the member who created the invitation.
	RoleInitiator PartyRole = "initiator"
	// RoleCounterpart is the member who accepted the invitation.
	RoleCounterpart PartyRole = "counterpart"
)

// ValidKind reports whether k is a known pairing kind.
func ValidKind(k PairingKind) bool {
	switch k {
	case KindCouple, KindFriend, KindFamily, KindSibling, KindParent, KindChild, KindCousin:
		return true
	}
	return false
}

// AudienceForKind maps a pairing kind onto the question audience it draws from.
func AudienceForKind(k PairingKind) Audience {
	switch k {
	case KindCouple:
		return AudienceCouple
	case KindFriend:
		return AudienceFriend
	default:
		return AudienceFamily
	}
}

// Pairing represents the two-party relationship that shares a daily game.
// Members are identified by the auth provider's account UUIDs; no profile
// data is stored here.
type Pairing struct {
	ID              uint          `gorm:"primaryKey" json:"id"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
	InitiatorID     uuid.UUID     `gorm:"type:uuid;not null;index:idx_pairings_initiator" json:"initiator_id"`
	CounterpartID   *uuid.UUID    `gorm:"type:uuid;index:idx_pairings_counterpart" json:"counterpart_id,omitempty"`
	Kind            PairingKind   `gorm:"type:varchar(20);not null" json:"kind"`
	Status          PairingStatus `gorm:"type:varchar(20);default:'pending';index:idx_pairings_status" json:"status"`
	DailyQuota      int           `gorm:"not null;default:10" json:"daily_quota"`
	Categories      string        `gorm:"type:text;not null" json:"-"`
	InviteCodeHash  string        `gorm:"type:varchar(64);uniqueIndex:idx_pairings_invite_hash" json:"-"`
	InviteExpiresAt time.Time     `json:"invite_expires_at"`
	AcceptedAt      *time.Time    `json:"accepted_at,omitempty"`
}

// TableName specifies the table name for GORM
func (Pairing) TableName() string {
	return "pairings"
}

// CategoryList returns the allowed question categories for this pairing.
func (p *Pairing) CategoryList() []string {
	if p.Categories == "" {
		return nil
	}
	parts := strings.Split(p.Categories, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// SetCategoryList stores the allowed question categories.
func (p *Pairing) SetCategoryList(categories []string) {
	p.Categories = strings.Join(categories, ",")
}

// AudienceKind returns the question audience this pairing draws from.
func (p *Pairing) AudienceKind() Audience {
	return AudienceForKind(p.Kind)
}

// Involves reports whether userID is a member of this pairing.
func (p *Pairing) Involves(userID uuid.UUID) bool {
	_, ok := p.RoleOf(userID)
	return ok
}

// RoleOf resolves the fixed role userID occupies on this pairing.
func (p *Pairing) RoleOf(userID uuid.UUID) (PartyRole, bool) {
	if p.InitiatorID == userID {
		return RoleInitiator, true
	}
	if p.CounterpartID != nil && *p.CounterpartID == userID {
		return RoleCounterpart, true
	}
	return "", false
}

// CounterpartOf returns the other member's account id.
func (p *Pairing) CounterpartOf(userID uuid.UUID) (uuid.UUID, bool) {
	role, ok := p.RoleOf(userID)
	if !ok {
		return uuid.Nil, false
	}
	if role == RoleInitiator {
		if p.CounterpartID == nil {
			return uuid.Nil, false
		}
		return *p.CounterpartID, true
	}
	return p.InitiatorID, true
}

// MemberIDs returns both member ids; the counterpart slot is nil while pending.
func (p *Pairing) MemberIDs() (uuid.UUID, *uuid.UUID) {
	return p.InitiatorID, p.CounterpartID
}

// IsAccepted reports whether the pairing is active.
func (p *Pairing) IsAccepted() bool {
	return p.Status == PairingAccepted && p.CounterpartID != nil
}

// InviteExpired reports whether a pending invitation has lapsed.
func (p *Pairing) InviteExpired(now time.Time) bool {
	return p.Status == PairingPending && now.After(p.InviteExpiresAt)
}
