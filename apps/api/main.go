package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/planix/internal/clock"
	"github.com/smallbiznis/planix/internal/config"
	"github.com/smallbiznis/planix/internal/migration"
	"github.com/smallbiznis/planix/internal/observability"
	"github.com/smallbiznis/planix/internal/server"
	"github.com/smallbiznis/planix/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,

		// No scheduler: run apps/scheduler alongside.
		server.Module,
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
