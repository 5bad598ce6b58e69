package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/beacon/internal/assist"
	"github.com/smallbiznis/beacon/internal/clock"
	"github.com/smallbiznis/beacon/internal/config"
	"github.com/smallbiznis/beacon/internal/issue"
	"github.com/smallbiznis/beacon/internal/migration"
	"github.com/smallbiznis/beacon/internal/observability"
	"github.com/smallbiznis/beacon/internal/providers/ai"
	"github.com/smallbiznis/beacon/internal/ratelimit"
	"github.com/smallbiznis/beacon/internal/server"
	"github.com/smallbiznis/beacon/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		issue.Module,
		assist.Module,
		ai.Module,
		ratelimit.Module,

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
