package db

import (
	"fmt"

	"github.com/cretee/creteebot/internal/models"
	"gorm.io/gorm"
)

// Migrate applies the schema and indexes for the current dialect.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}

	if errAutoMigrate := conn.AutoMigrate(
		&models.Admin{},
		&models.User{},
		&models.Account{},
		&models.Group{},
		&models.BulkRun{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}

	// ddl defines an index or DDL statement to apply.
	type ddl struct {
		name string // Human-readable name for error reporting.
		sql  string // SQL to execute.
	}
	ddls := []ddl{
		{
			name: "idx_accounts_owner_active",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_accounts_owner_active
				ON accounts (owner_id)
				WHERE active = true
			`,
		},
		{
			name: "idx_groups_owner_created_at",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_groups_owner_created_at
				ON groups (owner_id, created_at DESC)
			`,
		},
		{
			name: "idx_bulk_runs_owner_started_at",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_bulk_runs_owner_started_at
				ON bulk_runs (owner_id, started_at DESC)
			`,
		},
	}
	for _, item := range ddls {
		if errDDL := conn.Exec(item.sql).Error; errDDL != nil {
			return fmt.Errorf("db: create index %s: %w", item.name, errDDL)
		}
	}

	return nil
}
