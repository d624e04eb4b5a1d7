package task

import "go.uber.org/fx"

var Module = fx.Module("task.module",
	fx.Provide(
		NewService,
	),
)

var Server = fx.Module("task.server",
	Module,
	fx.Invoke(RegisterRoutes),
)
