package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/graindesk/millbook/internal/clock"
	"github.com/graindesk/millbook/internal/config"
	"github.com/graindesk/millbook/internal/migration"
	"github.com/graindesk/millbook/internal/observability"
	"github.com/graindesk/millbook/internal/scheduler"
	"github.com/graindesk/millbook/internal/seed"
	"github.com/graindesk/millbook/internal/server"
	"github.com/graindesk/millbook/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Functional domains
		server.Module,
		scheduler.Module,
		seed.Module,
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
