// Command migrate applies the schema and runs one-off maintenance.
//
//	migrate            apply pending migrations
//	migrate prune      apply migrations, then delete processed billing events
//	                   older than BILLING_EVENT_RETENTION
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/kybernus/license-api/internal/config"
	"github.com/kybernus/license-api/internal/domain/job"
	"github.com/kybernus/license-api/internal/kv"
	"github.com/kybernus/license-api/internal/pkg/logger"
	"github.com/kybernus/license-api/internal/repository/postgres"
	"github.com/kybernus/license-api/internal/services"
	"github.com/kybernus/license-api/migrations"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	command := "up"
	if len(args) > 0 {
		command = args[0]
	}
	if command != "up" && command != "prune" {
		return fmt.Errorf("unknown command %q (want up or prune)", command)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, dialect, err := postgres.New(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	fmt.Printf("Connected to %s database\n", dialect)

	applied, err := postgres.RunMigrations(db, dialect, migrations.GetFS())
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	if len(applied) == 0 {
		fmt.Println("Schema is up to date")
	}
	for _, name := range applied {
		fmt.Printf("✓ Migration %s applied\n", name)
	}

	if command != "prune" {
		return nil
	}

	log := logger.New(logger.Config{
		Level:   cfg.Logging.Level,
		Format:  "console",
		Service: "kybernus-migrate",
	})
	jobs := services.NewJobService(
		postgres.NewBillingRepository(db, dialect),
		kv.NewMemoryStore(),
		services.JobOptions{EventRetention: cfg.Jobs.EventRetention},
		log,
	)
	exec, err := jobs.Trigger(context.Background(), job.JobTypePruneBillingEvents)
	if err != nil {
		return err
	}
	fmt.Printf("Pruned %d billing event(s) older than %s\n", exec.Affected, cfg.Jobs.EventRetention)
	return nil
}
