package service

import (
	"math/rand/v2"
	"sort"

	"duet/internal/models"
)

// Selector picks a day's question set from an eligible pool. Selection is
// uniform without replacement; recently used questions are avoided but never
// at the cost of an empty day.
type Selector struct {
	rng *rand.Rand
}

// NewSelector returns a selector backed by rng. Pass a seeded source in tests
// for reproducible picks; pass nil for the shared default source.
func NewSelector(rng *rand.Rand) *Selector {
	return &Selector{rng: rng}
}

func (s *Selector) shuffle(pool []models.Question) []models.Question {
	shuffled := make([]models.Question, len(pool))
	copy(shuffled, pool)
	swap := func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] }
	if s.rng != nil {
		s.rng.Shuffle(len(shuffled), swap)
	} else {
		rand.Shuffle(len(shuffled), swap)
	}
	return shuffled
}

// Pick selects up to quota questions from pool, preferring questions outside
// the exclude set. When the fresh remainder cannot fill the quota, excluded
// questions are recycled rather than shrinking the day below what the pool
// supports. The result order is the day's slot order.
func (s *Selector) Pick(pool []models.Question, quota int, exclude map[uint]bool) []models.Question {
	if quota <= 0 || len(pool) == 0 {
		return nil
	}

	fresh := make([]models.Question, 0, len(pool))
	recycled := make([]models.Question, 0)
	for _, q := range pool {
		if exclude[q.ID] {
			recycled = append(recycled, q)
		} else {
			fresh = append(fresh, q)
		}
	}

	picked := s.shuffle(fresh)
	if len(picked) > quota {
		picked = picked[:quota]
	} else if len(picked) < quota {
		refill := s.shuffle(recycled)
		if need := quota - len(picked); len(refill) > need {
			refill = refill[:need]
		}
		picked = append(picked, refill...)
	}

	// Stable slot order regardless of draw order.
	sort.Slice(picked, func(i, j int) bool { return picked[i].ID < picked[j].ID })
	return picked
}
