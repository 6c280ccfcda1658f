package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/opencampus/campuspay/internal/clock"
	"github.com/opencampus/campuspay/internal/config"
	"github.com/opencampus/campuspay/internal/logger"
	"github.com/opencampus/campuspay/internal/migration"
	"github.com/opencampus/campuspay/internal/server"
	"github.com/opencampus/campuspay/pkg/db"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		// Reconciliation pipeline and HTTP surface
		server.Module,
		migration.Module,
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
