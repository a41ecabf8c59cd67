// Package validation contains request-level validators shared by handlers and
// services.
package validation

import (
	"fmt"
	"regexp"
	"time"

	"duet/internal/models"
	"duet/internal/questionbank"
)

const (
	// MinDailyQuota and MaxDailyQuota bound the per-pairing daily quota.
	MinDailyQuota = 1
	MaxDailyQuota = 30

	// DayKeySkew is how far a client-supplied day key may drift from server
	// UTC today. Members in different timezones may legitimately be a
	// calendar day apart.
	DayKeySkew = 24 * time.Hour
)

var inviteCodeRegex = regexp.MustCompile(`^[A-Z2-7]{10}$`)

// ValidateDayKey checks that day parses as YYYY-MM-DD and lies within ±1 day
// of server UTC today.
func ValidateDayKey(day string, now time.Time) error {
	parsed, err := time.Parse(models.DayKeyLayout, day)
	if err != nil {
		return fmt.Errorf("day must be formatted as YYYY-MM-DD")
	}
	today := now.UTC().Truncate(24 * time.Hour)
	diff := parsed.Sub(today)
	if diff < 0 {
		diff = -diff
	}
	if diff > DayKeySkew {
		return fmt.Errorf("day %s is too far from today", day)
	}
	return nil
}

// ValidateKind checks that kind is a known pairing kind.
func ValidateKind(kind models.PairingKind) error {
	if !models.ValidKind(kind) {
		return fmt.Errorf("unknown pairing kind %q", kind)
	}
	return nil
}

// ClampQuota normalizes a requested daily quota into the allowed range,
// substituting fallback when the request left it unset.
func ClampQuota(quota, fallback int) int {
	if quota == 0 {
		quota = fallback
	}
	if quota < MinDailyQuota {
		return MinDailyQuota
	}
	if quota > MaxDailyQuota {
		return MaxDailyQuota
	}
	return quota
}

// ValidateCategories checks that every category exists in the bank and is
// allowed for the pairing kind. An empty list is invalid; callers default it
// from the bank before validating.
func ValidateCategories(kind models.PairingKind, categories []string, bank *questionbank.Bank) error {
	if len(categories) == 0 {
		return fmt.Errorf("at least one category is required")
	}
	seen := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		if _, dup := seen[c]; dup {
			return fmt.Errorf("duplicate category %q", c)
		}
		seen[c] = struct{}{}
		if !bank.HasCategory(c) {
			return fmt.Errorf("unknown category %q", c)
		}
		if !bank.AllowedForKind(c, kind) {
			return fmt.Errorf("category %q is not available for %s pairings", c, kind)
		}
	}
	return nil
}

// ValidateOptionIndex checks that option indexes one of the question's answer
// choices.
func ValidateOptionIndex(question *models.Question, option int) error {
	if !question.ValidOption(option) {
		return fmt.Errorf("option %d is out of range for this question", option)
	}
	return nil
}

// ValidateInviteCode checks the shape of an invitation code before hashing.
// Codes are 10 characters of the base32 alphabet.
func ValidateInviteCode(code string) error {
	if !inviteCodeRegex.MatchString(code) {
		return fmt.Errorf("invite code must be 10 characters (A-Z, 2-7)")
	}
	return nil
}
