package migration

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// ApplySQLite creates the schema on a sqlite database. It backs local runs
// with DATABASE_TYPE=sqlite and the package tests.
func ApplySQLite(conn *gorm.DB) error {
	for _, stmt := range strings.Split(sqliteSchema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if err := conn.Exec(stmt).Error; err != nil {
			return fmt.Errorf("apply sqlite schema: %w", err)
		}
	}
	return nil
}
