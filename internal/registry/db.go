// Package registry records one audit-log row per merge invocation in a
// SQL database. It is entirely optional: the merge engine runs identically
// whether or not a registry is configured.
package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/podaac/concise/internal/apperr"
	"github.com/podaac/concise/internal/config"
	"github.com/podaac/concise/internal/telemetry"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

// Open connects to the database described by cfg and migrates the
// merge_runs table. Returns (nil, nil) if the registry is disabled.
func Open(cfg config.RegistryConfig) (*gorm.DB, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	var dialector gorm.Dialector
	switch cfg.Type {
	case "sqlite", "":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "concise.db"
		}
		dialector = sqlite.Open(dsn)
	case "postgres", "postgresql":
		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database,
		)
		dialector = postgres.Open(dsn)
	case "mysql":
		dsn := fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true&loc=Local",
			cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
		)
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported registry type: %s", cfg.Type)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open registry database: %w", err)
	}

	if telemetry.Enabled() {
		if err := db.Use(tracing.NewPlugin()); err != nil {
			return nil, fmt.Errorf("enable registry telemetry: %w", err)
		}
	}

	if sqlDB, err := db.DB(); err == nil {
		maxConns := cfg.MaxConns
		if maxConns <= 0 {
			maxConns = 10
		}
		sqlDB.SetMaxOpenConns(maxConns)
		sqlDB.SetMaxIdleConns(maxConns / 2)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	if err := db.AutoMigrate(&MergeRun{}); err != nil {
		return nil, fmt.Errorf("migrate registry schema: %w", err)
	}

	return db, nil
}

// Ledger records merge run lifecycle events against the registry database.
type Ledger struct {
	db *gorm.DB
}

// NewLedger wraps a (possibly nil) *gorm.DB. A nil db makes every method a
// no-op, so callers don't need to branch on whether the registry is enabled.
func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// Begin records the start of a merge run and returns its ID for use with
// Finish. Returns 0, nil when the registry is disabled.
func (l *Ledger) Begin(ctx context.Context, dataDir, outputPath string, workerCount, inputCount int) (int64, error) {
	if l.db == nil {
		return 0, nil
	}
	run := &MergeRun{
		DataDir:     dataDir,
		OutputPath:  outputPath,
		WorkerCount: workerCount,
		InputCount:  inputCount,
		Status:      StatusRunning,
		StartedAt:   time.Now(),
	}
	if err := l.db.WithContext(ctx).Create(run).Error; err != nil {
		return 0, fmt.Errorf("record merge run start: %w", err)
	}
	return run.ID, nil
}

// Finish records the terminal status of a merge run. No-op when id is 0
// (registry disabled, or Begin failed before the caller noticed).
func (l *Ledger) Finish(ctx context.Context, id int64, retainedCount int, err error) error {
	if l.db == nil || id == 0 {
		return nil
	}

	updates := map[string]any{
		"retained_count": retainedCount,
		"finished_at":    time.Now(),
	}
	if err != nil {
		updates["status"] = StatusFailed
		updates["error_message"] = err.Error()
		updates["error_code"] = apperr.Code(err)
	} else {
		updates["status"] = StatusSuccess
	}

	if dbErr := l.db.WithContext(ctx).Model(&MergeRun{}).Where("id = ?", id).Updates(updates).Error; dbErr != nil {
		return fmt.Errorf("record merge run finish: %w", dbErr)
	}
	return nil
}
