// Package main is the entry point for the city exploration quest server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"city-quest/internal/config"
	"city-quest/internal/handler"
	"city-quest/internal/knowledge"
	"city-quest/internal/pkg/db"
	"city-quest/internal/pkg/lock"
	"city-quest/internal/repository"
	"city-quest/internal/service"
	"city-quest/internal/special"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, using system environment variables")
	}

	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log.Info().Msg("Configuration loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	// Run database migrations
	if err := runMigrations(ctx, dbPool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Initialize repositories
	catalogRepo := repository.NewCatalogRepository(dbPool.Pool)
	progressRepo := repository.NewProgressRepository(dbPool.Pool)

	seeded, err := catalogRepo.SeedAchievements(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to seed achievements")
	}
	if seeded > 0 {
		log.Info().Int("count", seeded).Msg("Achievements seeded")
	}

	// Initialize user lock and services
	userLock := lock.NewUserLock()
	evaluator := service.NewEvaluator(special.DefaultRegistry)

	progressService := service.NewProgressService(catalogRepo, progressRepo, evaluator, userLock, cfg.Rewards)
	questService := service.NewQuestService(catalogRepo, progressRepo, evaluator, userLock, cfg.Rewards)
	leaderboardService := service.NewLeaderboardService(progressRepo, cfg.Leaderboard)

	// Initialize knowledge retrieval
	knowledgeStore := knowledge.NewLocalStore(nil)
	loaded, err := knowledge.LoadFile(ctx, knowledgeStore, cfg.Knowledge.DataPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load knowledge base")
	}
	log.Info().Int("chunks", loaded).Msg("Knowledge base loaded")

	knowledgeService := knowledge.NewService(knowledgeStore, progressRepo, cfg.Knowledge.TopK)

	// Initialize HTTP server
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.CORSOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	h := handler.New(progressService, questService, leaderboardService, catalogRepo, knowledgeService)
	h.RegisterRoutes(app)

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info().Str("addr", cfg.Server.Addr()).Msg("Server is starting...")
		if err := app.Listen(cfg.Server.Addr()); err != nil {
			log.Fatal().Err(err).Msg("Server stopped unexpectedly")
		}
	}()

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	if err := app.Shutdown(); err != nil {
		log.Error().Err(err).Msg("Failed to shut down server cleanly")
	}
	log.Info().Msg("Server stopped gracefully")
}

// runMigrations executes database migrations.
func runMigrations(ctx context.Context, pool *db.Pool) error {
	log.Info().Msg("Running database migrations...")

	// Migration 1: Create catalog tables
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS locations (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			local_name VARCHAR(255) NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			category VARCHAR(50) NOT NULL DEFAULT 'landmark',
			latitude DOUBLE PRECISION NOT NULL DEFAULT 0,
			longitude DOUBLE PRECISION NOT NULL DEFAULT 0,
			xp_reward BIGINT NOT NULL DEFAULT 0,
			image_url TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_locations_category ON locations(category);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 1: locations table created")

	// Migration 2: Create achievements table
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS achievements (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			icon VARCHAR(50) NOT NULL DEFAULT '',
			requirement_type VARCHAR(50) NOT NULL,
			requirement_value BIGINT NOT NULL DEFAULT 0,
			xp_reward BIGINT NOT NULL DEFAULT 0,
			is_secret BOOLEAN NOT NULL DEFAULT FALSE,
			category VARCHAR(50) NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 2: achievements table created")

	// Migration 3: Create quests table
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS quests (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			story_intro TEXT NOT NULL DEFAULT '',
			xp_reward BIGINT NOT NULL DEFAULT 0,
			steps JSONB NOT NULL DEFAULT '[]',
			difficulty VARCHAR(20) NOT NULL DEFAULT 'easy',
			estimated_time INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 3: quests table created")

	// Migration 4: Create user progress tables
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS user_progress (
			user_id VARCHAR(64) PRIMARY KEY,
			total_xp BIGINT NOT NULL DEFAULT 0,
			locations_visited BIGINT NOT NULL DEFAULT 0,
			phrases_learned BIGINT NOT NULL DEFAULT 0,
			photos_taken BIGINT NOT NULL DEFAULT 0,
			quests_completed BIGINT NOT NULL DEFAULT 0,
			achievements_earned BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_user_progress_xp ON user_progress(total_xp DESC);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 4: user_progress table created")

	// Migration 5: Create per-user uniqueness tables
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS user_location_visits (
			user_id VARCHAR(64) NOT NULL,
			location_id VARCHAR(64) NOT NULL,
			visited_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, location_id)
		);
		CREATE TABLE IF NOT EXISTS user_phrases (
			user_id VARCHAR(64) NOT NULL,
			phrase TEXT NOT NULL,
			learned_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, phrase)
		);
		CREATE TABLE IF NOT EXISTS user_achievements (
			user_id VARCHAR(64) NOT NULL,
			achievement_id VARCHAR(64) NOT NULL,
			earned_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, achievement_id)
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 5: uniqueness tables created")

	// Migration 6: Create user quests table
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS user_quests (
			user_id VARCHAR(64) NOT NULL,
			quest_id VARCHAR(64) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'active',
			current_step INT NOT NULL DEFAULT 0,
			started_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			completed_at TIMESTAMPTZ,
			PRIMARY KEY (user_id, quest_id)
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 6: user_quests table created")

	log.Info().Msg("All migrations completed successfully")
	return nil
}
