package db

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestSkipLockedClause(t *testing.T) {
	pg := &gorm.DB{Config: &gorm.Config{Dialector: postgres.Dialector{}}}
	assert.Equal(t, "FOR UPDATE SKIP LOCKED", SkipLockedClause(pg))

	lite := &gorm.DB{Config: &gorm.Config{Dialector: sqlite.Open(":memory:")}}
	assert.Empty(t, SkipLockedClause(lite))

	assert.Empty(t, SkipLockedClause(nil))
}
