package seed

import (
	"context"
	"fmt"
	"math/rand"
	randv2 "math/rand/v2"
	"time"

	"duet/internal/models"
	"duet/internal/questionbank"
	"duet/internal/repository"
	"duet/internal/service"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var demoKinds = []models.PairingKind{
	models.KindCouple,
	models.KindFriend,
	models.KindFamily,
	models.KindSibling,
	models.KindParent,
}

// Factory fabricates demo pairings and play history. Pairings go through the
// real invite/accept flow so invite hashing and role assignment stay honest;
// historical slots are written directly because day keys in the past are not
// reachable through the game service.
type Factory struct {
	rng       *rand.Rand
	bank      *questionbank.Bank
	pairings  *service.PairingService
	selector  *service.Selector
	questions repository.QuestionRepository
	slots     repository.SlotRepository
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB) (*Factory, error) {
	gofakeit.Seed(time.Now().UnixNano())
	bank, err := questionbank.Load()
	if err != nil {
		return nil, fmt.Errorf("load question bank: %w", err)
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Factory{
		rng:       rng,
		bank:      bank,
		pairings:  service.NewPairingService(repository.NewPairingRepository(db), bank, nil, 3, 72*time.Hour),
		selector:  service.NewSelector(randv2.New(randv2.NewPCG(uint64(time.Now().UnixNano()), 0))),
		questions: repository.NewQuestionRepository(db),
		slots:     repository.NewSlotRepository(db),
	}, nil
}

// AcceptedPairing creates a pairing of a random kind and accepts it with a
// second fabricated account.
func (f *Factory) AcceptedPairing(ctx context.Context) (*models.Pairing, error) {
	kind := demoKinds[f.rng.Intn(len(demoKinds))]
	quota := 2 + f.rng.Intn(4)
	initiator := uuid.New()
	counterpart := uuid.New()

	_, code, err := f.pairings.CreateInvite(ctx, initiator, kind, quota, nil)
	if err != nil {
		return nil, err
	}
	return f.pairings.AcceptInvite(ctx, counterpart, code)
}

// DemoQuestions fabricates n extra questions spread across the existing
// categories so demo pairings draw from a larger pool than the stock bank.
func (f *Factory) DemoQuestions(ctx context.Context, n int) error {
	slugs := f.bank.CategorySlugs()
	if len(slugs) == 0 || n <= 0 {
		return nil
	}
	audiences := []models.Audience{models.AudienceCouple, models.AudienceFriend, models.AudienceFamily}
	questions := make([]models.Question, 0, n)
	for i := 0; i < n; i++ {
		q := models.Question{
			Text:     gofakeit.Question(),
			Category: slugs[f.rng.Intn(len(slugs))],
			Audience: audiences[f.rng.Intn(len(audiences))],
			Active:   true,
		}
		options := make([]string, 3+f.rng.Intn(2))
		for j := range options {
			options[j] = gofakeit.HipsterWord()
		}
		q.SetOptionList(options)
		questions = append(questions, q)
	}
	return f.questions.UpsertBank(ctx, questions)
}

// BackfillHistory writes daysBack days of finished slots for the pairing,
// ending yesterday. Returns the number of slots created.
func (f *Factory) BackfillHistory(ctx context.Context, pairing *models.Pairing, daysBack int) (int, error) {
	if daysBack <= 0 {
		return 0, nil
	}
	pool, err := f.questions.ListEligible(ctx, pairing.CategoryList(), models.AudienceForKind(pairing.Kind))
	if err != nil {
		return 0, err
	}

	total := 0
	today := time.Now().UTC().Truncate(24 * time.Hour)
	for d := daysBack; d >= 1; d-- {
		dayStart := today.AddDate(0, 0, -d)
		picked := f.selector.Pick(pool, pairing.DailyQuota, nil)
		slots := make([]models.GameSlot, 0, len(picked))
		for pos, q := range picked {
			slots = append(slots, f.historicalSlot(pairing.ID, &q, dayStart, pos))
		}
		if err := f.slots.CreateBatch(ctx, slots); err != nil {
			return total, err
		}
		total += len(slots)
	}
	return total, nil
}

// historicalSlot rolls a plausible finished outcome for one past slot:
// mostly completed matches and mismatches, with a tail of one-sided and
// fully missed days ending in expiry.
func (f *Factory) historicalSlot(pairingID uint, q *models.Question, dayStart time.Time, pos int) models.GameSlot {
	slot := models.GameSlot{
		PairingID:  pairingID,
		QuestionID: q.ID,
		Day:        models.DayKeyOf(dayStart),
		Position:   pos,
		CreatedAt:  dayStart.Add(time.Duration(f.rng.Intn(60)) * time.Minute),
		ExpiresAt:  dayStart.Add(24 * time.Hour),
	}

	optionCount := q.OptionCount()
	if optionCount == 0 {
		optionCount = 1
	}
	initiatorAt := dayStart.Add(time.Duration(1+f.rng.Intn(12)) * time.Hour)
	counterpartAt := dayStart.Add(time.Duration(1+f.rng.Intn(20)) * time.Hour)

	switch roll := f.rng.Float64(); {
	case roll < 0.65:
		initiatorOpt := f.rng.Intn(optionCount)
		counterpartOpt := initiatorOpt
		if f.rng.Float64() > 0.45 && optionCount > 1 {
			counterpartOpt = (initiatorOpt + 1 + f.rng.Intn(optionCount-1)) % optionCount
		}
		matched := initiatorOpt == counterpartOpt
		completedAt := initiatorAt
		if counterpartAt.After(completedAt) {
			completedAt = counterpartAt
		}
		slot.Status = models.SlotCompleted
		slot.InitiatorOption = &initiatorOpt
		slot.CounterpartOption = &counterpartOpt
		slot.Matched = &matched
		slot.InitiatorAnsweredAt = &initiatorAt
		slot.CounterpartAnsweredAt = &counterpartAt
		slot.CompletedAt = &completedAt
	case roll < 0.85:
		opt := f.rng.Intn(optionCount)
		slot.Status = models.SlotExpired
		if f.rng.Intn(2) == 0 {
			slot.InitiatorOption = &opt
			slot.InitiatorAnsweredAt = &initiatorAt
		} else {
			slot.CounterpartOption = &opt
			slot.CounterpartAnsweredAt = &counterpartAt
		}
	default:
		slot.Status = models.SlotExpired
	}
	return slot
}
