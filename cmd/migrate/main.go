package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/fruteria-pos/pkg/config"
	"github.com/angelmondragon/fruteria-pos/pkg/db"
	"github.com/angelmondragon/fruteria-pos/pkg/instance"
	"github.com/angelmondragon/fruteria-pos/pkg/logger"
	"github.com/angelmondragon/fruteria-pos/pkg/migrate"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})

	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|validate")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Instance:    instance.GetID(),
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	driver := cfg.DB.DriverName()
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":    cfg.App.Env,
		"cmd":    *cmd,
		"driver": driver,
	})

	if *cmd == "validate" {
		if err := migrate.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "migration validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("migration validation passed")
		return
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	requireResource(ctx, logg, "sql database", err)

	logg.Info(ctx, "migrate ready")

	switch *cmd {
	case "up", "status":
		if err := migrate.Run(ctx, sqlDB, driver, *cmd); err != nil {
			fmt.Fprintf(os.Stderr, "goose %s failed: %v\n", *cmd, err)
			os.Exit(1)
		}

	case "down":
		if cfg.App.IsProd() {
			fmt.Fprintln(os.Stderr, "refusing to roll back the receipts journal in prod")
			os.Exit(1)
		}
		if err := migrate.Run(ctx, sqlDB, driver, "down"); err != nil {
			fmt.Fprintf(os.Stderr, "goose down failed: %v\n", err)
			os.Exit(1)
		}

	case "version":
		if *version == "" {
			current, err := migrate.Version(ctx, sqlDB, driver)
			if err != nil {
				fmt.Fprintf(os.Stderr, "goose version failed: %v\n", err)
				os.Exit(1)
			}
			fmt.Println("schema version:", current)
			return
		}
		if err := migrate.MigrateToVersion(ctx, sqlDB, driver, *version); err != nil {
			fmt.Fprintf(os.Stderr, "goose version migrate failed: %v\n", err)
			os.Exit(1)
		}

	default:
		fmt.Fprintln(os.Stderr, "unknown -cmd value:", *cmd)
		os.Exit(1)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
