package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestAudienceForKind(t *testing.T) {
	t.Parallel()
	tests := []struct {
		kind PairingKind
		want Audience
	}{
		{KindCouple, AudienceCouple},
		{KindFriend, AudienceFriend},
		{KindFamily, AudienceFamily},
		{KindSibling, AudienceFamily},
		{KindParent, AudienceFamily},
		{KindChild, AudienceFamily},
		{KindCousin, AudienceFamily},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, AudienceForKind(tt.kind))
		})
	}
}

func TestPairingRoleOf(t *testing.T) {
	t.Parallel()
	initiator := uuid.New()
	counterpart := uuid.New()
	stranger := uuid.New()

	p := &Pairing{InitiatorID: initiator, CounterpartID: &counterpart}

	role, ok := p.RoleOf(initiator)
	assert.True(t, ok)
	assert.Equal(t, RoleInitiator, role)

	role, ok = p.RoleOf(counterpart)
	assert.True(t, ok)
	assert.Equal(t, RoleCounterpart, role)

	_, ok = p.RoleOf(stranger)
	assert.False(t, ok)
	assert.False(t, p.Involves(stranger))
	assert.True(t, p.Involves(initiator))
}

func TestPairingRoleOfPending(t *testing.T) {
	t.Parallel()
	initiator := uuid.New()
	p := &Pairing{InitiatorID: initiator}

	role, ok := p.RoleOf(initiator)
	assert.True(t, ok)
	assert.Equal(t, RoleInitiator, role)

	// No counterpart yet: nobody else has a role.
	_, ok = p.RoleOf(uuid.New())
	assert.False(t, ok)

	_, ok = p.CounterpartOf(initiator)
	assert.False(t, ok)
}

func TestPairingCounterpartOf(t *testing.T) {
	t.Parallel()
	initiator := uuid.New()
	counterpart := uuid.New()
	p := &Pairing{InitiatorID: initiator, CounterpartID: &counterpart}

	got, ok := p.CounterpartOf(initiator)
	assert.True(t, ok)
	assert.Equal(t, counterpart, got)

	got, ok = p.CounterpartOf(counterpart)
	assert.True(t, ok)
	assert.Equal(t, initiator, got)

	_, ok = p.CounterpartOf(uuid.New())
	assert.False(t, ok)
}

func TestPairingCategoryListRoundTrip(t *testing.T) {
	t.Parallel()
	p := &Pairing{}
	p.SetCategoryList([]string{"daily_life", "memories", "future"})
	assert.Equal(t, []string{"daily_life", "memories", "future"}, p.CategoryList())

	p.Categories = " daily_life , , memories "
	assert.Equal(t, []string{"daily_life", "memories"}, p.CategoryList())

	p.Categories = ""
	assert.Nil(t, p.CategoryList())
}

func TestPairingInviteExpired(t *testing.T) {
	t.Parallel()
	now := time.Now()
	p := &Pairing{Status: PairingPending, InviteExpiresAt: now.Add(time.Hour)}
	assert.False(t, p.InviteExpired(now))
	assert.True(t, p.InviteExpired(now.Add(2*time.Hour)))

	// Accepted pairings never report an expired invite.
	accepted := &Pairing{Status: PairingAccepted, InviteExpiresAt: now.Add(-time.Hour)}
	assert.False(t, accepted.InviteExpired(now))
}

func TestPairingIsAccepted(t *testing.T) {
	t.Parallel()
	counterpart := uuid.New()
	assert.False(t, (&Pairing{Status: PairingPending}).IsAccepted())
	assert.False(t, (&Pairing{Status: PairingAccepted}).IsAccepted())
	assert.True(t, (&Pairing{Status: PairingAccepted, CounterpartID: &counterpart}).IsAccepted())
}
