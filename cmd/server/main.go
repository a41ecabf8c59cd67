// Command main is the entry point for the Duet backend server.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"duet/internal/bootstrap"
	"duet/internal/config"
	"duet/internal/featureflags"
	"duet/internal/observability"
	"duet/internal/server"

	"github.com/google/uuid"
)

// @title Duet API
// @version 1.0
// @description Paired daily-question game API with shared slots, match results, and realtime feeds

// @contact.name API Support
// @contact.email support@duet.dev

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8460
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:    "duet-api",
		ServiceVersion: "1.0.0",
		Environment:    cfg.Env,
		Enabled:        cfg.TracingEnabled,
		Exporter:       cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplerRatio:   cfg.TracingSampler,
	})
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Printf("Tracing shutdown error: %v", err)
		}
	}()

	db, redisClient, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{
		ApplySchema:      true,
		LoadQuestionBank: true,
	})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}

	srv, err := server.NewServerWithDeps(cfg, db, redisClient)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	// Background expiry sweep for slots that lapsed without both answers.
	// The flag is checked every tick so the kill switch also pauses a
	// sweeper that is already running.
	go srv.GameService().RunExpirySweeper(ctx, cfg.SweepInterval, func() bool {
		return srv.FeatureFlags().Enabled(featureflags.FlagExpirySweeper, uuid.Nil)
	})

	// Graceful shutdown on SIGINT/SIGTERM
	go func() {
		<-ctx.Done()
		log.Println("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	if err := srv.Start(); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}
