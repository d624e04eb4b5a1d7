package estimation

import "go.uber.org/fx"

var Module = fx.Module("estimation.module",
	fx.Provide(
		fx.Annotate(NewClient, fx.As(new(Gateway))),
	),
)

var Server = fx.Module("estimation.server",
	Module,
	fx.Invoke(RegisterRoutes),
)
