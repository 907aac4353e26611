package app

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/tradehub/internal/cache"
	"github.com/Additional-Code/tradehub/internal/config"
	"github.com/Additional-Code/tradehub/internal/database"
	"github.com/Additional-Code/tradehub/internal/logger"
	"github.com/Additional-Code/tradehub/internal/messaging"
	"github.com/Additional-Code/tradehub/internal/observability"
	repositorycatalog "github.com/Additional-Code/tradehub/internal/repository/catalog"
	repositoryinvoice "github.com/Additional-Code/tradehub/internal/repository/invoice"
	repositoryorder "github.com/Additional-Code/tradehub/internal/repository/order"
	repositorypreview "github.com/Additional-Code/tradehub/internal/repository/preview"
	grpcserver "github.com/Additional-Code/tradehub/internal/server/grpc"
	httpserver "github.com/Additional-Code/tradehub/internal/server/http"
	serviceinvoice "github.com/Additional-Code/tradehub/internal/service/invoice"
	serviceorder "github.com/Additional-Code/tradehub/internal/service/order"
	servicepreview "github.com/Additional-Code/tradehub/internal/service/preview"
	servicereport "github.com/Additional-Code/tradehub/internal/service/report"
	transporthttp "github.com/Additional-Code/tradehub/internal/transport/http"
	"github.com/Additional-Code/tradehub/internal/worker"
	workerorder "github.com/Additional-Code/tradehub/internal/worker/order"
)

// Infra provides configuration, logging and storage without the domain services.
var Infra = fx.Options(
	config.Module,
	database.Module,
	logger.Module,
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	Infra,
	cache.Module,
	messaging.Module,
	observability.Module,
	repositorycatalog.Module,
	repositorypreview.Module,
	repositoryorder.Module,
	repositoryinvoice.Module,
	servicepreview.Module,
	serviceinvoice.Module,
	serviceorder.Module,
	servicereport.Module,
)

// HTTP wires the HTTP and gRPC servers on top of the core modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	grpcserver.Module,
	transporthttp.Module,
)

// Worker exposes background worker processing.
var Worker = fx.Options(
	Core,
	worker.Module,
	workerorder.Module,
)

// Module is the default application wiring.
var Module = HTTP
