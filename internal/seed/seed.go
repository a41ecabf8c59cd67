// Package seed provides database seeding utilities for development and testing.
package seed

import (
	"context"
	"fmt"
	"log"

	"duet/internal/models"
	"duet/internal/questionbank"
	"duet/internal/repository"

	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	// NumPairings is how many accepted demo pairings to fabricate.
	NumPairings int
	// DaysBack is how many past days of play history each pairing gets.
	DaysBack int
	// ShouldClean drops all pairings and slots before seeding. The question
	// bank is upserted either way and is never cleaned.
	ShouldClean bool
}

// LoadQuestionBank upserts the embedded question bank into the database.
// It is idempotent and safe to run on every boot.
func LoadQuestionBank(ctx context.Context, db *gorm.DB) (int, error) {
	bank, err := questionbank.Load()
	if err != nil {
		return 0, fmt.Errorf("load embedded question bank: %w", err)
	}
	questions := bank.Models()
	if err := repository.NewQuestionRepository(db).UpsertBank(ctx, questions); err != nil {
		return 0, fmt.Errorf("upsert question bank: %w", err)
	}
	return len(questions), nil
}

// Clean removes all pairings and game slots. Questions are left in place.
func Clean(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.GameSlot{}).Error; err != nil {
		return fmt.Errorf("clean game slots: %w", err)
	}
	if err := db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Pairing{}).Error; err != nil {
		return fmt.Errorf("clean pairings: %w", err)
	}
	return nil
}

// Run seeds the database with the question bank and, when NumPairings > 0,
// a set of demo pairings with fabricated play history.
func Run(ctx context.Context, db *gorm.DB, opts Options) error {
	if opts.ShouldClean {
		log.Println("Cleaning existing pairings and slots...")
		if err := Clean(ctx, db); err != nil {
			return err
		}
	}

	count, err := LoadQuestionBank(ctx, db)
	if err != nil {
		return err
	}
	log.Printf("Question bank loaded: %d questions", count)

	if opts.NumPairings <= 0 {
		return nil
	}

	factory, err := NewFactory(db)
	if err != nil {
		return err
	}
	if err := factory.DemoQuestions(ctx, 25); err != nil {
		return fmt.Errorf("seed demo questions: %w", err)
	}
	for i := 0; i < opts.NumPairings; i++ {
		pairing, err := factory.AcceptedPairing(ctx)
		if err != nil {
			return fmt.Errorf("seed pairing %d: %w", i+1, err)
		}
		slots, err := factory.BackfillHistory(ctx, pairing, opts.DaysBack)
		if err != nil {
			return fmt.Errorf("backfill pairing %d: %w", pairing.ID, err)
		}
		log.Printf("Seeded %s pairing %d with %d historical slots", pairing.Kind, pairing.ID, slots)
	}
	log.Printf("Seeded %d demo pairings", opts.NumPairings)
	return nil
}
