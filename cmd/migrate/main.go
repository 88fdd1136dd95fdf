package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	"github.com/dialerops/callgate-backend/internal/infrastructure/config"
)

const migrationsPath = "file://migrations"

func main() {
	var (
		action = flag.String("action", "up", "Migration action: up, down, status, force")
		steps  = flag.Int("steps", 0, "Number of migrations to run (0 = all)")
		target = flag.Int("version", -1, "Target version (for force action)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	m, err := newMigrator(cfg.Database.URL)
	if err != nil {
		slog.Error("failed to initialize migrator", "error", err)
		os.Exit(1)
	}
	defer m.Close()

	switch *action {
	case "up":
		err = runUp(m, *steps)
	case "down":
		err = runDown(m, *steps)
	case "status":
		err = printStatus(m)
	case "force":
		if *target < 0 {
			slog.Error("version is required for force action")
			os.Exit(1)
		}
		err = m.Force(*target)
	default:
		slog.Error("unknown action", "action", *action)
		os.Exit(1)
	}

	if err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}
}

func newMigrator(databaseURL string) (*migrate.Migrate, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("creating postgres driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(migrationsPath, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("creating migrator: %w", err)
	}
	m.LockTimeout = 30 * time.Second
	return m, nil
}

func runUp(m *migrate.Migrate, steps int) error {
	var err error
	if steps > 0 {
		err = m.Steps(steps)
	} else {
		err = m.Up()
	}
	if errors.Is(err, migrate.ErrNoChange) {
		slog.Info("no pending migrations")
		return nil
	}
	if err != nil {
		return err
	}

	version, _, _ := m.Version()
	slog.Info("migrations applied", "version", version)
	return nil
}

func runDown(m *migrate.Migrate, steps int) error {
	if steps <= 0 {
		steps = 1
	}
	err := m.Steps(-steps)
	if errors.Is(err, migrate.ErrNoChange) {
		slog.Info("no migrations to roll back")
		return nil
	}
	if err != nil {
		return err
	}

	version, _, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		slog.Info("rolled back all migrations")
		return nil
	}
	if err != nil {
		return err
	}
	slog.Info("rollback completed", "version", version)
	return nil
}

func printStatus(m *migrate.Migrate) error {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		fmt.Println("No migrations applied")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Printf("Current version: %d (dirty: %v)\n", version, dirty)
	return nil
}
