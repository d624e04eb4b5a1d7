package metrics

import "go.uber.org/fx"

var Module = fx.Module("metrics.module",
	fx.Provide(
		NewAggregator,
		NewScheduler,
	),
)

// Server wires the HTTP surface, the asynq worker, and the daily scheduler.
var Server = fx.Module("metrics.server",
	Module,
	fx.Invoke(
		RegisterRoutes,
		RegisterHandlers,
		registerScheduler,
	),
)
