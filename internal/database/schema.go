package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"penfeed/internal/config"
	"penfeed/internal/middleware"

	"gorm.io/gorm"
)

// SchemaMode is the DB_SCHEMA_MODE value.
type SchemaMode string

const (
	// SchemaModeHybrid runs SQL migrations everywhere and AutoMigrate on dev and test.
	SchemaModeHybrid SchemaMode = "hybrid"
	SchemaModeSQL    SchemaMode = "sql"
	// SchemaModeAuto only runs AutoMigrate. Staging and production need
	// DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true.
	SchemaModeAuto SchemaMode = "auto"
)

// SchemaPlan is what ApplySchema does for one configuration.
type SchemaPlan struct {
	Mode        SchemaMode
	Env         string
	SQL         bool
	AutoMigrate bool
}

// TableState describes one of the blog tables.
type TableState struct {
	Table   string
	Present bool
	Rows    int64
}

// SchemaStatus is the plan plus what the database holds right now.
type SchemaStatus struct {
	Plan    SchemaPlan
	Applied []int
	Pending []Migration
	Tables  []TableState
}

// Missing lists the blog tables that do not exist yet.
func (s *SchemaStatus) Missing() []string {
	return missingTables(s.Tables)
}

func releaseEnv(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod", "staging", "stage":
		return true
	}
	return false
}

// PlanSchema resolves DB_SCHEMA_MODE for cfg.Env.
func PlanSchema(cfg *config.Config) (SchemaPlan, error) {
	mode := SchemaMode(strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode)))
	if mode == "" {
		mode = SchemaModeHybrid
	}
	plan := SchemaPlan{Mode: mode, Env: cfg.Env}
	release := releaseEnv(cfg.Env)

	switch mode {
	case SchemaModeSQL:
		plan.SQL = true
	case SchemaModeHybrid:
		plan.SQL, plan.AutoMigrate = true, !release
	case SchemaModeAuto:
		if release && !cfg.DBAutoMigrateAllowDestructive {
			return plan, fmt.Errorf("DB_SCHEMA_MODE=auto is disabled in %q unless DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true", cfg.Env)
		}
		plan.AutoMigrate = true
	default:
		return plan, fmt.Errorf("unknown DB_SCHEMA_MODE %q (want hybrid, sql or auto)", mode)
	}
	return plan, nil
}

// AutoMigrate syncs the gorm models into the current database.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(PersistentModels()...)
}

// ApplySchema executes the plan for cfg and fails when a blog table is still missing.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	plan, err := PlanSchema(cfg)
	if err != nil {
		return err
	}
	log := middleware.Logger.With(slog.String("mode", string(plan.Mode)), slog.String("env", plan.Env))

	if plan.SQL {
		if err := RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("run sql migrations: %w", err)
		}
	}
	if plan.AutoMigrate {
		if plan.Mode == SchemaModeAuto && releaseEnv(plan.Env) {
			log.WarnContext(ctx, "AutoMigrate against a release database; check the schema diff")
		}
		log.InfoContext(ctx, "Running GORM AutoMigrate")
		if err := AutoMigrate(db.WithContext(ctx)); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}

	tables, err := InspectTables(ctx, db)
	if err != nil {
		return err
	}
	if missing := missingTables(tables); len(missing) > 0 {
		return fmt.Errorf("schema incomplete after %s apply: missing tables %s", plan.Mode, strings.Join(missing, ", "))
	}
	return nil
}

// InspectTables reports presence and row count for every persistent model's table.
func InspectTables(ctx context.Context, db *gorm.DB) ([]TableState, error) {
	db = db.WithContext(ctx)
	migrator := db.Migrator()

	states := make([]TableState, 0, len(PersistentModels()))
	for _, model := range PersistentModels() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(model); err != nil {
			return nil, fmt.Errorf("parse %T: %w", model, err)
		}
		state := TableState{Table: stmt.Schema.Table, Present: migrator.HasTable(model)}
		if state.Present {
			if err := db.Model(model).Count(&state.Rows).Error; err != nil {
				return nil, fmt.Errorf("count %s: %w", state.Table, err)
			}
		}
		states = append(states, state)
	}
	return states, nil
}

func missingTables(states []TableState) []string {
	var missing []string
	for _, s := range states {
		if !s.Present {
			missing = append(missing, s.Table)
		}
	}
	return missing
}

// GetSchemaStatus reports the plan, pending SQL migrations and the blog tables.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	plan, err := PlanSchema(cfg)
	if err != nil {
		return nil, err
	}
	status := &SchemaStatus{Plan: plan}

	if plan.SQL {
		if status.Applied, err = NewMigrationStore(db).GetAppliedMigrations(ctx); err != nil {
			return nil, err
		}
		status.Pending = pendingMigrations(status.Applied, migrations)
	}

	if status.Tables, err = InspectTables(ctx, db); err != nil {
		return nil, err
	}
	return status, nil
}
