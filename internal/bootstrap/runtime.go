// Package bootstrap wires the persistence layer up for the server and the
// operational commands: it connects the database, applies the schema policy,
// initializes Redis, and loads the built-in question bank.
package bootstrap

import (
	"context"
	"fmt"
	"log"

	"duet/internal/cache"
	"duet/internal/config"
	"duet/internal/database"
	"duet/internal/seed"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// ApplySchema runs the configured schema policy (SQL migrations,
	// AutoMigrate, or both) before anything touches the tables.
	ApplySchema bool
	// LoadQuestionBank upserts the embedded question bank on boot.
	LoadQuestionBank bool
}

// InitRuntime connects to DB and Redis and prepares them for serving.
// The Redis client may be nil when the server is unreachable; callers run
// degraded without it.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	if opts.ApplySchema {
		if err := database.ApplySchema(ctx, db, cfg); err != nil {
			return nil, nil, fmt.Errorf("schema apply failed: %w", err)
		}
	}

	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()
	if r == nil {
		log.Println("Redis unavailable; realtime fan-out and caching run degraded")
	}

	if opts.LoadQuestionBank {
		count, err := seed.LoadQuestionBank(ctx, db)
		if err != nil {
			return nil, nil, fmt.Errorf("question bank load failed: %w", err)
		}
		log.Printf("Question bank ready: %d questions", count)
	}

	return db, r, nil
}
