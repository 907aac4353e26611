package preview

import "go.uber.org/fx"

// Module provides the preview quote repository to Fx.
var Module = fx.Provide(NewRepository)
