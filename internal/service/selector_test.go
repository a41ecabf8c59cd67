package service

import (
	"testing"

	"duet/internal/models"
	"duet/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func questionPool(n int) []models.Question {
	pool := make([]models.Question, n)
	for i := range pool {
		pool[i] = models.Question{ID: uint(i + 1)}
	}
	return pool
}

func idsOf(questions []models.Question) []uint {
	ids := make([]uint, len(questions))
	for i, q := range questions {
		ids[i] = q.ID
	}
	return ids
}

func TestSelectorPickRespectsQuota(t *testing.T) {
	sel := NewSelector(testutil.NewSeededRand(1))

	picked := sel.Pick(questionPool(20), 5, nil)
	require.Len(t, picked, 5)

	seen := map[uint]bool{}
	for _, q := range picked {
		assert.False(t, seen[q.ID], "no question picked twice")
		seen[q.ID] = true
	}
}

func TestSelectorPickShortPoolReturnsEverything(t *testing.T) {
	sel := NewSelector(testutil.NewSeededRand(1))

	picked := sel.Pick(questionPool(3), 10, nil)
	assert.ElementsMatch(t, []uint{1, 2, 3}, idsOf(picked))
}

func TestSelectorPickPrefersFreshQuestions(t *testing.T) {
	sel := NewSelector(testutil.NewSeededRand(7))

	exclude := map[uint]bool{1: true, 2: true, 3: true}
	picked := sel.Pick(questionPool(8), 5, exclude)
	require.Len(t, picked, 5)
	for _, q := range picked {
		assert.False(t, exclude[q.ID], "fresh pool covers the quota, so nothing recycled")
	}
}

func TestSelectorPickRecyclesWhenFreshPoolStarves(t *testing.T) {
	sel := NewSelector(testutil.NewSeededRand(7))

	// Only questions 4 and 5 are fresh; quota 4 forces two recycled picks.
	exclude := map[uint]bool{1: true, 2: true, 3: true}
	picked := sel.Pick(questionPool(5), 4, exclude)
	require.Len(t, picked, 4)
	assert.Subset(t, idsOf(picked), []uint{4, 5})
}

func TestSelectorPickReturnsStableOrder(t *testing.T) {
	sel := NewSelector(testutil.NewSeededRand(42))

	picked := sel.Pick(questionPool(30), 10, nil)
	ids := idsOf(picked)
	for i := 1; i < len(ids); i++ {
		assert.Less(t, ids[i-1], ids[i], "slot order follows question id")
	}
}

func TestSelectorPickEdgeCases(t *testing.T) {
	sel := NewSelector(testutil.NewSeededRand(1))

	assert.Empty(t, sel.Pick(nil, 5, nil))
	assert.Empty(t, sel.Pick(questionPool(5), 0, nil))
}
