package http

import (
	"go.uber.org/fx"

	invoicetransport "github.com/Additional-Code/tradehub/internal/transport/http/invoice"
	ordertransport "github.com/Additional-Code/tradehub/internal/transport/http/order"
	reporttransport "github.com/Additional-Code/tradehub/internal/transport/http/report"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	ordertransport.Module,
	invoicetransport.Module,
	reporttransport.Module,
)
