package db

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

//go:embed sql/post_automigrate.sql
var postAutoMigrateSQL string

// Migrate creates or updates the catalog tables, then applies the indexes gorm tags cannot express.
func Migrate(ctx context.Context, gdb *gorm.DB) error {
	if gdb == nil {
		return fmt.Errorf("database is not initialized")
	}

	if err := gdb.WithContext(ctx).AutoMigrate(autoMigrateModels()...); err != nil {
		return fmt.Errorf("gorm auto-migrate models: %w", err)
	}

	for _, statement := range splitStatements(postAutoMigrateSQL) {
		if err := gdb.WithContext(ctx).Exec(statement).Error; err != nil {
			return fmt.Errorf("execute post-auto-migrate SQL: %w", err)
		}
	}
	return nil
}

func splitStatements(sqlText string) []string {
	parts := strings.Split(sqlText, ";")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		lines := strings.Split(part, "\n")
		kept := lines[:0]
		for _, line := range lines {
			if strings.HasPrefix(strings.TrimSpace(line), "--") {
				continue
			}
			kept = append(kept, line)
		}
		statement := strings.TrimSpace(strings.Join(kept, "\n"))
		if statement != "" {
			out = append(out, statement)
		}
	}
	return out
}
