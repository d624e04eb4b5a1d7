package organization

import "go.uber.org/fx"

var Module = fx.Module("organization.module",
	fx.Provide(
		NewService,
	),
)

var Server = fx.Module("organization.server",
	Module,
	fx.Invoke(RegisterRoutes),
)
