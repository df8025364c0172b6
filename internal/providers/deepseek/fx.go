package deepseek

import "go.uber.org/fx"

var Module = fx.Module("deepseek.provider",
	fx.Provide(New),
)
