package db

import "gorm.io/gorm"

// SkipLockedClause is the row-lock suffix for batch claims. Only postgres
// supports it; other dialects read without a lock.
func SkipLockedClause(db *gorm.DB) string {
	if db == nil || db.Config == nil || db.Dialector == nil {
		return ""
	}
	if db.Dialector.Name() == "postgres" {
		return "FOR UPDATE SKIP LOCKED"
	}
	return ""
}
