package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/fruteria-pos/pkg/config"
	"github.com/angelmondragon/fruteria-pos/pkg/db"
	"github.com/angelmondragon/fruteria-pos/pkg/logger"
)

// MaybeRun applies pending migrations at boot when FRUTERIA_DB_AUTO_MIGRATE is
// set. Deployments that manage the schema through cmd/migrate turn it off.
func MaybeRun(ctx context.Context, cfg config.DBConfig, logg *logger.Logger, client *db.Client) error {
	if !cfg.AutoMigrate {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	ctx = logg.WithFields(ctx, map[string]any{"driver": cfg.DriverName(), "dir": DefaultDir})
	logg.Info(ctx, "running goose migrations (auto-run)")

	if err := Run(ctx, sqlDB, cfg.DriverName(), "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	logg.Info(ctx, "goose migrations completed")
	return nil
}
