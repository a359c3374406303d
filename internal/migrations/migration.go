package migrations

import (
	"context"
	"fmt"
	"io/fs"

	"github.com/stokaro/ptah/core/sqlutil"
	"gorm.io/gorm"
)

// MigrationFunc applies one direction of a migration inside the transaction tx.
type MigrationFunc func(ctx context.Context, tx *gorm.DB) error

// Migration represents a database migration
type Migration struct {
	Version     int64
	Description string
	Up          MigrationFunc
	Down        MigrationFunc
}

// NoopMigrationFunc is a no-op migration function
func NoopMigrationFunc(_ context.Context, _ *gorm.DB) error {
	return nil
}

// NewSQLMigration builds a migration from literal up and down SQL.
func NewSQLMigration(version int64, description, upSQL, downSQL string) *Migration {
	return &Migration{
		Version:     version,
		Description: description,
		Up: func(ctx context.Context, tx *gorm.DB) error {
			return execStatements(ctx, tx, upSQL)
		},
		Down: func(ctx context.Context, tx *gorm.DB) error {
			return execStatements(ctx, tx, downSQL)
		},
	}
}

// MigrationFuncFromSQLFile reads filename from fsys when the migration runs.
func MigrationFuncFromSQLFile(filename string, fsys fs.FS) MigrationFunc {
	return func(ctx context.Context, tx *gorm.DB) error {
		sql, err := fs.ReadFile(fsys, filename)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", filename, err)
		}
		return execStatements(ctx, tx, string(sql))
	}
}

func execStatements(ctx context.Context, tx *gorm.DB, sql string) error {
	for _, stmt := range SplitStatements(sql) {
		if err := tx.WithContext(ctx).Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to execute SQL statement: %w\nSQL: %s", err, stmt)
		}
	}
	return nil
}

// SplitStatements splits a script into statements with ptah's SQL lexer, dropping comments.
// Semicolons inside string literals, quoted identifiers and dollar-quoted bodies are kept.
func SplitStatements(sql string) []string {
	return sqlutil.SplitSQLStatements(sqlutil.StripComments(sql))
}
