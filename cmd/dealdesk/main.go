package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallops/dealdesk/internal/clock"
	"github.com/smallops/dealdesk/internal/config"
	"github.com/smallops/dealdesk/internal/observability"
	"github.com/smallops/dealdesk/internal/server"
	"github.com/smallops/dealdesk/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
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
