// Command main runs the database seeder for Duet.
package main

import (
	"context"
	"flag"
	"log"

	"duet/internal/bootstrap"
	"duet/internal/config"
	"duet/internal/seed"
)

func main() {
	demo := flag.Bool("demo", false, "Fabricate demo pairings with play history")
	pairings := flag.Int("pairings", 10, "Number of demo pairings to create (with -demo)")
	daysBack := flag.Int("days", 14, "Days of play history per demo pairing (with -demo)")
	shouldClean := flag.Bool("clean", false, "Drop existing pairings and slots before seeding")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()
	db, _, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{ApplySchema: true})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}

	opts := seed.Options{ShouldClean: *shouldClean}
	if *demo {
		opts.NumPairings = *pairings
		opts.DaysBack = *daysBack
		log.Printf("Target: %d demo pairings, %d days of history, clean=%v\n", opts.NumPairings, opts.DaysBack, *shouldClean)
	} else {
		log.Printf("Target: question bank only, clean=%v\n", *shouldClean)
	}

	if err := seed.Run(ctx, db, opts); err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}
	log.Println("✅ Seeding complete")
}
