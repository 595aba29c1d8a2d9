package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"bbs/internal/config"
	"bbs/internal/middleware"

	"gorm.io/gorm"
)

// DB_SCHEMA_MODE values.
const (
	SchemaModeHybrid = "hybrid"
	SchemaModeSQL    = "sql"
	SchemaModeAuto   = "auto"
)

var guardedEnvs = map[string]bool{"production": true, "prod": true, "staging": true, "stage": true}

// SchemaPlan is what DB_SCHEMA_MODE resolves to for one environment and driver.
type SchemaPlan struct {
	Mode        string
	Environment string
	SQL         bool
	AutoMigrate bool
	// Destructive is set when auto mode was explicitly allowed in a guarded environment.
	Destructive bool
}

// PlanSchema resolves the configured schema mode. Hybrid never runs AutoMigrate on sqlite,
// where GORM rebuilds a table whenever declared and reflected column types differ.
func PlanSchema(cfg *config.Config) (SchemaPlan, error) {
	plan := SchemaPlan{
		Mode:        strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode)),
		Environment: cfg.Env,
	}
	if plan.Mode == "" {
		plan.Mode = SchemaModeHybrid
	}
	guarded := guardedEnvs[strings.ToLower(strings.TrimSpace(cfg.Env))]

	switch plan.Mode {
	case SchemaModeSQL:
		plan.SQL = true
	case SchemaModeHybrid:
		plan.SQL = true
		plan.AutoMigrate = !guarded && cfg.DBDriver != config.DriverSQLite
	case SchemaModeAuto:
		if guarded {
			if !cfg.DBAutoMigrateAllowDestructive {
				return SchemaPlan{}, fmt.Errorf("refusing DB_SCHEMA_MODE=auto in %q without DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true", cfg.Env)
			}
			plan.Destructive = true
		}
		plan.AutoMigrate = true
	default:
		return SchemaPlan{}, fmt.Errorf("unsupported DB_SCHEMA_MODE %q", plan.Mode)
	}
	return plan, nil
}

// ApplySchema runs the steps PlanSchema selects: embedded SQL migrations first, then AutoMigrate.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	plan, err := PlanSchema(cfg)
	if err != nil {
		return err
	}

	if plan.SQL {
		if err := RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("run sql migrations: %w", err)
		}
	}
	if !plan.AutoMigrate {
		return nil
	}

	if plan.Destructive {
		middleware.Logger.WarnContext(ctx, "AutoMigrate allowed in a guarded environment; review schema diffs before deploying",
			slog.String("env", plan.Environment))
	}
	middleware.Logger.InfoContext(ctx, "Running GORM AutoMigrate", slog.String("mode", plan.Mode), slog.String("env", plan.Environment))
	if err := db.WithContext(ctx).AutoMigrate(PersistentModels()...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

// SchemaStatus is the plan plus the migration state of the connected database.
type SchemaStatus struct {
	SchemaPlan
	Dialect           string
	AppliedVersions   []int
	PendingMigrations []Migration
}

// GetSchemaStatus reports the plan and, when SQL migrations are part of it, what is still pending.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	plan, err := PlanSchema(cfg)
	if err != nil {
		return nil, err
	}
	status := &SchemaStatus{SchemaPlan: plan, Dialect: db.Dialector.Name()}
	if !plan.SQL {
		return status, nil
	}

	status.AppliedVersions, err = NewMigrationStore(db).GetAppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	status.PendingMigrations = pendingMigrations(status.AppliedVersions, GetMigrations(status.Dialect))
	return status, nil
}

// pendingMigrations returns the registered migrations missing from applied, in registration order.
func pendingMigrations(applied []int, registered []Migration) []Migration {
	done := make(map[int]struct{}, len(applied))
	for _, v := range applied {
		done[v] = struct{}{}
	}
	var pending []Migration
	for _, m := range registered {
		if _, ok := done[m.Version]; !ok {
			pending = append(pending, m)
		}
	}
	return pending
}
