// Package questionbank loads the embedded daily-question bank and validates
// its structure. The bank is the static content source for the questions
// table; the seeder upserts it at startup or via cmd/seed.
package questionbank

import (
	_ "embed"
	"fmt"

	"duet/internal/models"

	"gopkg.in/yaml.v3"
)

//go:embed bank.yml
var bankYAML []byte

// Category describes one question category in the bank.
type Category struct {
	Slug       string `yaml:"slug"`
	Title      string `yaml:"title"`
	CoupleOnly bool   `yaml:"couple_only"`
}

// Entry is one question as authored in the bank file.
type Entry struct {
	Text     string          `yaml:"text"`
	Category string          `yaml:"category"`
	Audience models.Audience `yaml:"audience"`
	Options  []string        `yaml:"options"`
}

// Bank is the parsed and validated question bank.
type Bank struct {
	Categories []Category `yaml:"categories"`
	Questions  []Entry    `yaml:"questions"`

	bySlug map[string]Category
}

// Load parses the embedded bank and validates it.
func Load() (*Bank, error) {
	return Parse(bankYAML)
}

// Parse parses and validates a bank document.
func Parse(data []byte) (*Bank, error) {
	var b Bank
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse question bank: %w", err)
	}
	if err := b.validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

func (b *Bank) validate() error {
	if len(b.Categories) == 0 {
		return fmt.Errorf("question bank has no categories")
	}
	b.bySlug = make(map[string]Category, len(b.Categories))
	for _, c := range b.Categories {
		if c.Slug == "" {
			return fmt.Errorf("category with empty slug")
		}
		if _, dup := b.bySlug[c.Slug]; dup {
			return fmt.Errorf("duplicate category slug %q", c.Slug)
		}
		b.bySlug[c.Slug] = c
	}

	for i, q := range b.Questions {
		if q.Text == "" {
			return fmt.Errorf("question %d has empty text", i)
		}
		cat, ok := b.bySlug[q.Category]
		if !ok {
			return fmt.Errorf("question %q references unknown category %q", q.Text, q.Category)
		}
		switch q.Audience {
		case models.AudienceCouple, models.AudienceFriend, models.AudienceFamily:
		default:
			return fmt.Errorf("question %q has unknown audience %q", q.Text, q.Audience)
		}
		if cat.CoupleOnly && q.Audience != models.AudienceCouple {
			return fmt.Errorf("question %q is in couple-only category %q but has audience %q", q.Text, q.Category, q.Audience)
		}
		if len(q.Options) < 2 || len(q.Options) > 6 {
			return fmt.Errorf("question %q must have 2..6 options, has %d", q.Text, len(q.Options))
		}
	}

	return nil
}

// HasCategory reports whether slug is a known category.
func (b *Bank) HasCategory(slug string) bool {
	_, ok := b.bySlug[slug]
	return ok
}

// Category returns the category for slug.
func (b *Bank) Category(slug string) (Category, bool) {
	c, ok := b.bySlug[slug]
	return c, ok
}

// CategorySlugs returns every category slug in bank order.
func (b *Bank) CategorySlugs() []string {
	out := make([]string, 0, len(b.Categories))
	for _, c := range b.Categories {
		out = append(out, c.Slug)
	}
	return out
}

// DefaultCategories returns the categories a new pairing of the given kind is
// allowed to draw from. Couple-only categories are excluded for every
// non-couple kind.
func (b *Bank) DefaultCategories(kind models.PairingKind) []string {
	couple := kind == models.KindCouple
	out := make([]string, 0, len(b.Categories))
	for _, c := range b.Categories {
		if c.CoupleOnly && !couple {
			continue
		}
		out = append(out, c.Slug)
	}
	return out
}

// AllowedForKind reports whether the category may be used by a pairing of the
// given kind.
func (b *Bank) AllowedForKind(slug string, kind models.PairingKind) bool {
	c, ok := b.bySlug[slug]
	if !ok {
		return false
	}
	return !c.CoupleOnly || kind == models.KindCouple
}

// Models converts the bank entries into question rows for upserting.
func (b *Bank) Models() []models.Question {
	out := make([]models.Question, 0, len(b.Questions))
	for _, e := range b.Questions {
		q := models.Question{
			Text:     e.Text,
			Category: e.Category,
			Audience: e.Audience,
			Active:   true,
		}
		q.SetOptionList(e.Options)
		out = append(out, q)
	}
	return out
}
