package repository

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/planix/internal/floorplan/domain"
	"github.com/smallbiznis/planix/internal/migration"
	pkgdb "github.com/smallbiznis/planix/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openSQLite opens the database the way DATABASE_TYPE=sqlite does at runtime.
func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	dialector, err := pkgdb.Dialect(pkgdb.Config{
		Type: "sqlite",
		Name: "file:floorplan_repository?mode=memory&cache=shared",
	})
	require.NoError(t, err)

	conn, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, migration.ApplySQLite(conn))
	return conn
}

func TestListStaleAndFailOnSQLite(t *testing.T) {
	conn := openSQLite(t)
	r := Provide()
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	for i, age := range []time.Duration{40 * time.Minute, 20 * time.Minute, time.Minute} {
		created := now.Add(-age)
		require.NoError(t, r.Insert(ctx, conn, &domain.FloorPlan{
			ID:          snowflake.ID(i + 1),
			UserID:      7,
			Title:       "Floor Plan - Row house",
			Slug:        "floor-plan-row-house",
			Description: "Row house with two floors",
			Status:      domain.StatusGenerating,
			CreatedAt:   created,
			UpdatedAt:   created,
		}))
	}

	ids, err := r.ListStale(ctx, conn, now.Add(-15*time.Minute), 10)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{1, 2}, ids)

	ok, err := r.Fail(ctx, conn, ids[0], domain.StaleFailureReason, now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.Fail(ctx, conn, ids[0], domain.StaleFailureReason, now)
	require.NoError(t, err)
	assert.False(t, ok, "a terminal plan does not transition again")

	ids, err = r.ListStale(ctx, conn, now.Add(-15*time.Minute), 10)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{2}, ids)
}
