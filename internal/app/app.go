package app

import (
	"go.uber.org/fx"

	"github.com/courierhq/dispatch/internal/cache"
	"github.com/courierhq/dispatch/internal/config"
	"github.com/courierhq/dispatch/internal/database"
	"github.com/courierhq/dispatch/internal/logger"
	"github.com/courierhq/dispatch/internal/mailer"
	"github.com/courierhq/dispatch/internal/messaging"
	"github.com/courierhq/dispatch/internal/observability"
	repositorycart "github.com/courierhq/dispatch/internal/repository/cart"
	repositorypayment "github.com/courierhq/dispatch/internal/repository/payment"
	repositoryshipment "github.com/courierhq/dispatch/internal/repository/shipment"
	repositoryuser "github.com/courierhq/dispatch/internal/repository/user"
	grpcserver "github.com/courierhq/dispatch/internal/server/grpc"
	httpserver "github.com/courierhq/dispatch/internal/server/http"
	serviceauth "github.com/courierhq/dispatch/internal/service/auth"
	servicecart "github.com/courierhq/dispatch/internal/service/cart"
	servicepayment "github.com/courierhq/dispatch/internal/service/payment"
	serviceshipment "github.com/courierhq/dispatch/internal/service/shipment"
	servicetracking "github.com/courierhq/dispatch/internal/service/tracking"
	serviceuser "github.com/courierhq/dispatch/internal/service/user"
	transporthttp "github.com/courierhq/dispatch/internal/transport/http"
	"github.com/courierhq/dispatch/internal/worker"
	workerevents "github.com/courierhq/dispatch/internal/worker/events"
	workerpayment "github.com/courierhq/dispatch/internal/worker/payment"
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	config.Module,
	cache.Module,
	database.Module,
	logger.Module,
	mailer.Module,
	messaging.Module,
	observability.Module,
	repositoryuser.Module,
	repositoryshipment.Module,
	repositorycart.Module,
	repositorypayment.Module,
	serviceauth.Module,
	serviceshipment.Module,
	servicecart.Module,
	servicepayment.Module,
	servicetracking.Module,
	serviceuser.Module,
)

// HTTP wires the HTTP and gRPC transports on top of the core modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	grpcserver.Module,
	transporthttp.Module,
)

// Worker exposes background processing: the event consumer and the
// manual payment expiry sweeper.
var Worker = fx.Options(
	Core,
	worker.Module,
	workerevents.Module,
	workerpayment.Module,
)

// Module is the default application wiring (HTTP only).
var Module = HTTP
