package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/planix/internal/clock"
	"github.com/smallbiznis/planix/internal/config"
	"github.com/smallbiznis/planix/internal/migration"
	"github.com/smallbiznis/planix/internal/observability"
	"github.com/smallbiznis/planix/internal/scheduler"
	"github.com/smallbiznis/planix/internal/server"
	"github.com/smallbiznis/planix/pkg/db"
	"go.uber.org/fx"
)

// Monolith: HTTP API and background jobs in one process.
func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,

		server.Module,
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
