package migrations

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const schemaSQL = `CREATE TABLE IF NOT EXISTS schema_migrations (
    version     BIGINT PRIMARY KEY,
    description VARCHAR(255) NOT NULL,
    applied_at  TIMESTAMP    NOT NULL
)`

// ErrNoAppliedMigrations is returned by MigrateDown on an empty history.
var ErrNoAppliedMigrations = errors.New("no applied migrations to roll back")

// SchemaMigration is one row of the schema_migrations history.
type SchemaMigration struct {
	Version     int64     `gorm:"column:version;primaryKey;autoIncrement:false"`
	Description string    `gorm:"column:description"`
	AppliedAt   time.Time `gorm:"column:applied_at"`
}

func (SchemaMigration) TableName() string {
	return "schema_migrations"
}

// Status represents the current state of migrations
type Status struct {
	CurrentVersion    int64   `json:"current_version"`
	AppliedMigrations []int64 `json:"applied_migrations"`
	PendingMigrations []int64 `json:"pending_migrations"`
	TotalMigrations   int     `json:"total_migrations"`
	HasPendingChanges bool    `json:"has_pending_changes"`
}

// Migrator applies and rolls back migrations, one transaction per migration.
type Migrator struct {
	db          *gorm.DB
	provider    Provider
	logger      *zap.Logger
	initialized bool
}

func NewMigrator(db *gorm.DB, provider Provider, logger *zap.Logger) *Migrator {
	return &Migrator{
		db:       db,
		provider: provider,
		logger:   logger.Named("migrator"),
	}
}

// NewFSMigrator loads migrations from fsys.
func NewFSMigrator(db *gorm.DB, fsys fs.FS, logger *zap.Logger) (*Migrator, error) {
	provider, err := NewFSProvider(fsys)
	if err != nil {
		return nil, err
	}
	return NewMigrator(db, provider, logger), nil
}

// Initialize creates the migrations table if it doesn't exist
func (m *Migrator) Initialize(ctx context.Context) error {
	if m.initialized {
		return nil
	}
	if err := m.db.WithContext(ctx).Exec(schemaSQL).Error; err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	m.initialized = true
	return nil
}

// AppliedVersions returns applied versions in ascending order.
func (m *Migrator) AppliedVersions(ctx context.Context) ([]int64, error) {
	if err := m.Initialize(ctx); err != nil {
		return nil, err
	}
	var versions []int64
	err := m.db.WithContext(ctx).Model(&SchemaMigration{}).Order("version").Pluck("version", &versions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	return versions, nil
}

// CurrentVersion is the highest applied version, or 0.
func (m *Migrator) CurrentVersion(ctx context.Context) (int64, error) {
	applied, err := m.AppliedVersions(ctx)
	if err != nil {
		return 0, err
	}
	if len(applied) == 0 {
		return 0, nil
	}
	return applied[len(applied)-1], nil
}

// PendingVersions lists known migrations that have not been applied, including gaps below the current version.
func (m *Migrator) PendingVersions(ctx context.Context) ([]int64, error) {
	applied, err := m.AppliedVersions(ctx)
	if err != nil {
		return nil, err
	}
	done := make(map[int64]struct{}, len(applied))
	for _, v := range applied {
		done[v] = struct{}{}
	}
	var pending []int64
	for _, mig := range m.provider.Migrations() {
		if _, ok := done[mig.Version]; !ok {
			pending = append(pending, mig.Version)
		}
	}
	return pending, nil
}

// Status summarizes applied and pending migrations.
func (m *Migrator) Status(ctx context.Context) (*Status, error) {
	applied, err := m.AppliedVersions(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := m.PendingVersions(ctx)
	if err != nil {
		return nil, err
	}
	var current int64
	if len(applied) > 0 {
		current = applied[len(applied)-1]
	}
	return &Status{
		CurrentVersion:    current,
		AppliedMigrations: applied,
		PendingMigrations: pending,
		TotalMigrations:   len(m.provider.Migrations()),
		HasPendingChanges: len(pending) > 0,
	}, nil
}

// MigrateUp applies every pending migration in version order and returns how many ran.
func (m *Migrator) MigrateUp(ctx context.Context) (int, error) {
	pending, err := m.PendingVersions(ctx)
	if err != nil {
		return 0, err
	}
	want := make(map[int64]struct{}, len(pending))
	for _, v := range pending {
		want[v] = struct{}{}
	}

	m.logger.Info("Migrating up", zap.Int("pending", len(pending)), zap.Int("total", len(m.provider.Migrations())))

	applied := 0
	for _, mig := range m.provider.Migrations() {
		if _, ok := want[mig.Version]; !ok {
			continue
		}
		m.logger.Info("Applying migration", zap.Int64("version", mig.Version), zap.String("description", mig.Description))

		err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := mig.Up(ctx, tx); err != nil {
				return err
			}
			record := SchemaMigration{
				Version:     mig.Version,
				Description: mig.Description,
				AppliedAt:   time.Now().UTC(),
			}
			if err := tx.Create(&record).Error; err != nil {
				return fmt.Errorf("failed to record migration: %w", err)
			}
			return nil
		})
		if err != nil {
			return applied, fmt.Errorf("failed to apply migration %d: %w", mig.Version, err)
		}
		applied++
	}

	m.logger.Info("All migrations applied successfully", zap.Int("applied", applied))
	return applied, nil
}

// MigrateDown rolls back the most recently applied migration and returns its version.
func (m *Migrator) MigrateDown(ctx context.Context) (int64, error) {
	current, err := m.CurrentVersion(ctx)
	if err != nil {
		return 0, err
	}
	if current == 0 {
		return 0, ErrNoAppliedMigrations
	}

	var target *Migration
	for _, mig := range m.provider.Migrations() {
		if mig.Version == current {
			target = mig
			break
		}
	}
	if target == nil {
		return 0, fmt.Errorf("applied migration %d has no matching file", current)
	}

	m.logger.Info("Rolling back migration", zap.Int64("version", target.Version), zap.String("description", target.Description))

	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := target.Down(ctx, tx); err != nil {
			return err
		}
		if err := tx.Delete(&SchemaMigration{}, "version = ?", target.Version).Error; err != nil {
			return fmt.Errorf("failed to remove migration record: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to revert migration %d: %w", target.Version, err)
	}

	m.logger.Info("Rolled back migration", zap.Int64("version", target.Version))
	return target.Version, nil
}
