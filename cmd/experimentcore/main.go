// Command experimentcore wires the experiment lifecycle core's
// collaborators and exposes a minimal liveness endpoint. HTTP/REST framing
// for the core's operations is explicitly out of scope (spec §1); this
// process only boots the service and its stores.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.uber.org/zap"

	"github.com/abtest/experiment-core/internal/buckets"
	"github.com/abtest/experiment-core/internal/clock"
	"github.com/abtest/experiment-core/internal/config"
	"github.com/abtest/experiment-core/internal/events"
	"github.com/abtest/experiment-core/internal/pages"
	"github.com/abtest/experiment-core/internal/priority"
	"github.com/abtest/experiment-core/internal/rules"
	"github.com/abtest/experiment-core/internal/service"
	"github.com/abtest/experiment-core/internal/store/relational"
	"github.com/abtest/experiment-core/internal/store/widecolumn"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file found")
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("ENVIRONMENT") == "development" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	cfg := config.Load()
	ctx := context.Background()

	primary, err := widecolumn.Open(ctx, cfg.PrimaryDatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open primary store")
	}
	defer primary.Close()

	secondary, err := relational.Open(ctx, cfg.SecondaryDatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open secondary store")
	}
	defer secondary.Close()

	if err := runMigrations(cfg.PrimaryDatabaseURL, "migrations/primary"); err != nil {
		log.Fatal().Err(err).Msg("failed to run primary migrations")
	}
	if err := runMigrations(cfg.SecondaryDatabaseURL, "migrations/secondary"); err != nil {
		log.Fatal().Err(err).Msg("failed to run secondary migrations")
	}

	zapLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build zap logger")
	}
	defer zapLogger.Sync()

	svc := service.New(
		primary,
		secondary,
		priority.New(),
		rules.NewCache(),
		rules.NewCompiler(),
		buckets.NewMemStore(),
		pages.NoopBinder{},
		events.NewZapLog(zapLogger),
		clock.Real{},
		zapLogger,
	)
	_ = svc // wired, and reachable once a transport layer is added downstream

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: mux,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("shutting down experimentcore")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server shutdown failed")
		}
	}()

	log.Info().Str("port", cfg.Port).Msg("starting experimentcore")
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server failed to start")
	}
}

func runMigrations(databaseURL, sourcePath string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("open for migration: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+sourcePath, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
