package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"duet/internal/models"
	"duet/internal/questionbank"
	"duet/internal/repository"
	"duet/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// recordingPublisher captures published events for assertions.
type recordingPublisher struct {
	mu            sync.Mutex
	slotEvents    []models.SlotEvent
	pairingEvents []models.PairingEvent
}

func (p *recordingPublisher) PublishSlotEvent(_ context.Context, event models.SlotEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.slotEvents = append(p.slotEvents, event)
}

func (p *recordingPublisher) PublishPairingEvent(_ context.Context, event models.PairingEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pairingEvents = append(p.pairingEvents, event)
}

func (p *recordingPublisher) slotEventTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, len(p.slotEvents))
	for i, ev := range p.slotEvents {
		types[i] = ev.Type
	}
	return types
}

func mustBank(t *testing.T) *questionbank.Bank {
	t.Helper()
	bank, err := questionbank.Load()
	require.NoError(t, err)
	return bank
}

// serviceFixture wires real repositories over a sqlite DB with the embedded
// question bank seeded.
type serviceFixture struct {
	db           *gorm.DB
	pairingRepo  repository.PairingRepository
	slotRepo     repository.SlotRepository
	questionRepo repository.QuestionRepository
	bank         *questionbank.Bank
	publisher    *recordingPublisher
	initiator    uuid.UUID
	counterpart  uuid.UUID
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	db := testutil.OpenTestDB(t)
	bank := mustBank(t)

	questionRepo := repository.NewQuestionRepository(db)
	require.NoError(t, questionRepo.UpsertBank(context.Background(), bank.Models()))

	return &serviceFixture{
		db:           db,
		pairingRepo:  repository.NewPairingRepository(db),
		slotRepo:     repository.NewSlotRepository(db),
		questionRepo: questionRepo,
		bank:         bank,
		publisher:    &recordingPublisher{},
		initiator:    uuid.New(),
		counterpart:  uuid.New(),
	}
}

// acceptedPairing creates an active couple pairing between the fixture's two
// members.
func (f *serviceFixture) acceptedPairing(t *testing.T, quota int) *models.Pairing {
	t.Helper()
	ctx := context.Background()

	pairing := &models.Pairing{
		InitiatorID:     f.initiator,
		Kind:            models.KindCouple,
		Status:          models.PairingPending,
		DailyQuota:      quota,
		InviteCodeHash:  "hash-" + uuid.NewString(),
		InviteExpiresAt: time.Now().Add(time.Hour),
	}
	pairing.SetCategoryList(f.bank.DefaultCategories(models.KindCouple))
	require.NoError(t, f.pairingRepo.Create(ctx, pairing))

	rows, err := f.pairingRepo.AcceptPending(ctx, pairing.ID, f.counterpart, time.Now())
	require.NoError(t, err)
	require.EqualValues(t, 1, rows)

	accepted, err := f.pairingRepo.GetByID(ctx, pairing.ID)
	require.NoError(t, err)
	return accepted
}

func (f *serviceFixture) gameService(slotTTL time.Duration) *GameService {
	return NewGameService(f.slotRepo, f.pairingRepo, f.questionRepo, NewSelector(testutil.NewSeededRand(1)), f.publisher, nil, slotTTL)
}

func today() string {
	return time.Now().Format(models.DayKeyLayout)
}
