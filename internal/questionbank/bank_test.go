package questionbank

import (
	"testing"

	"duet/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbeddedBank(t *testing.T) {
	bank, err := Load()
	require.NoError(t, err)
	assert.NotEmpty(t, bank.Categories)
	assert.NotEmpty(t, bank.Questions)
	assert.True(t, bank.HasCategory("daily_life"))
}

func TestDefaultCategoriesExcludeCoupleOnlyForNonCouples(t *testing.T) {
	bank, err := Load()
	require.NoError(t, err)

	coupleCats := bank.DefaultCategories(models.KindCouple)
	friendCats := bank.DefaultCategories(models.KindFriend)

	assert.Contains(t, coupleCats, "romance")
	assert.NotContains(t, friendCats, "romance")
	assert.Contains(t, friendCats, "daily_life")

	assert.True(t, bank.AllowedForKind("romance", models.KindCouple))
	assert.False(t, bank.AllowedForKind("romance", models.KindSibling))
	assert.False(t, bank.AllowedForKind("no_such_category", models.KindCouple))
}

func TestParseRejectsInvalidBanks(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "unknown category",
			yaml: `
categories:
  - slug: a
    title: A
questions:
  - text: q
    category: missing
    audience: friend
    options: ["x", "y"]
`,
		},
		{
			name: "too few options",
			yaml: `
categories:
  - slug: a
    title: A
questions:
  - text: q
    category: a
    audience: friend
    options: ["only one"]
`,
		},
		{
			name: "bad audience",
			yaml: `
categories:
  - slug: a
    title: A
questions:
  - text: q
    category: a
    audience: aliens
    options: ["x", "y"]
`,
		},
		{
			name: "couple-only category with friend audience",
			yaml: `
categories:
  - slug: a
    title: A
    couple_only: true
questions:
  - text: q
    category: a
    audience: friend
    options: ["x", "y"]
`,
		},
		{
			name: "duplicate slug",
			yaml: `
categories:
  - slug: a
    title: A
  - slug: a
    title: Again
questions: []
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestModelsCarryOptions(t *testing.T) {
	bank, err := Load()
	require.NoError(t, err)

	rows := bank.Models()
	require.Len(t, rows, len(bank.Questions))
	for _, q := range rows {
		assert.True(t, q.Active)
		assert.GreaterOrEqual(t, q.OptionCount(), 2)
	}
}
