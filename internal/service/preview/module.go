package preview

import "go.uber.org/fx"

// Module provides the preview service to Fx.
var Module = fx.Provide(NewService)
