package main

import (
	"go.uber.org/fx"

	"overscope/pkg/asynq"
	"overscope/pkg/config"
	"overscope/pkg/db"
	"overscope/pkg/gen"
	"overscope/pkg/health"
	"overscope/pkg/logger"
	"overscope/pkg/otelcol"
	"overscope/pkg/redis"
	"overscope/pkg/server"
	"overscope/services/estimation"
	"overscope/services/metrics"
	"overscope/services/organization"
	"overscope/services/task"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		otelcol.Module,
		gen.Module,
		db.Module,
		redis.Module,
		asynq.Client,
		asynq.Server,

		server.Module,
		health.Module,

		organization.Server,
		estimation.Server,
		task.Server,
		metrics.Server,
	)

	app.Run()
}
