package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/saturnino-fabrica-de-software/eventcore/internal/config"
	"github.com/saturnino-fabrica-de-software/eventcore/internal/database"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Flags
	action := flag.String("action", "up", "Migration action: up, down, steps, version, force")
	steps := flag.Int("steps", 0, "Number of steps (steps action) or target version (force action)")
	dbName := flag.String("db", "eventcore", "Database name recorded by the migration driver")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}

	logger := config.NewLogger(cfg.Environment)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// golang-migrate needs database/sql
	db, err := database.OpenSQL(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	logger.Info("connected to database")

	migrator, err := database.NewMigrator(db, *dbName, logger)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer func() { _ = migrator.Close() }()

	switch *action {
	case "up":
		logger.Info("running migrations")
		if err := migrator.Up(); err != nil {
			return fmt.Errorf("migration up failed: %w", err)
		}
		logger.Info("migrations completed")

	case "down":
		logger.Info("rolling back last migration")
		if err := migrator.Down(); err != nil {
			return fmt.Errorf("migration down failed: %w", err)
		}
		logger.Info("migration rolled back")

	case "steps":
		if *steps == 0 {
			return errors.New("steps flag is required for steps action")
		}
		if err := migrator.Steps(*steps); err != nil {
			return fmt.Errorf("migration steps failed: %w", err)
		}
		logger.Info("migration steps applied", slog.Int("steps", *steps))

	case "version":
		version, dirty, err := migrator.Version()
		if err != nil {
			return fmt.Errorf("failed to get version: %w", err)
		}
		logger.Info("current migration version",
			slog.Uint64("version", uint64(version)),
			slog.Bool("dirty", dirty),
		)

	case "force":
		if *steps == 0 {
			return errors.New("steps flag is required for force action")
		}
		logger.Warn("forcing migration version", slog.Int("version", *steps))
		if err := migrator.Force(*steps); err != nil {
			return fmt.Errorf("force migration failed: %w", err)
		}
		logger.Info("migration version forced")

	default:
		return fmt.Errorf("invalid action: %s (use: up, down, steps, version, force)", *action)
	}

	return nil
}
