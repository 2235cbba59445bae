package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/courierhq/dispatch/internal/cache"
	"github.com/courierhq/dispatch/internal/config"
	"github.com/courierhq/dispatch/internal/entity"
	shipmentrepo "github.com/courierhq/dispatch/internal/repository/shipment"
	"github.com/courierhq/dispatch/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/courierhq/dispatch/service/tracking")

// Store is the persistence surface the tracking service needs.
type Store interface {
	PackageByTrackingNumber(ctx context.Context, trackingNumber string) (*entity.Package, error)
	PackageByID(ctx context.Context, id int64) (*entity.Package, error)
	AdvancePackageStatus(ctx context.Context, pkgID int64, from, to entity.PackageStatus, location, description string) error
}

// Service answers public tracking lookups and applies admin status
// updates through the transition table.
type Service struct {
	store    Store
	cache    cache.Store
	cacheTTL time.Duration
	logger   *zap.Logger
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Store  Store
	Cache  cache.Store
	Config config.Config
	Logger *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		store:    p.Store,
		cache:    p.Cache,
		cacheTTL: p.Config.Cache.DefaultTTL,
		logger:   p.Logger,
	}
}

// Track returns the package and its history for a tracking number.
// Unknown numbers are a NotFound, never a fabricated payload.
func (s *Service) Track(ctx context.Context, trackingNumber string) (*entity.Package, error) {
	ctx, span := serviceTracer.Start(ctx, "TrackingService.Track", trace.WithAttributes(attribute.String("package.tracking_number", trackingNumber)))
	defer span.End()

	if trackingNumber == "" {
		return nil, errorbank.BadRequest("tracking number is required")
	}

	if pkg, err := s.getFromCache(ctx, trackingNumber); err == nil {
		return pkg, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("tracking cache read failed", zap.String("tracking_number", trackingNumber), zap.Error(err))
	}

	pkg, err := s.store.PackageByTrackingNumber(ctx, trackingNumber)
	if err != nil {
		if errors.Is(err, shipmentrepo.ErrNotFound) {
			return nil, errorbank.NotFound("tracking number not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load package", errorbank.WithCause(err))
	}

	if err := s.storeInCache(ctx, pkg); err != nil {
		s.logger.Warn("tracking cache write failed", zap.String("tracking_number", trackingNumber), zap.Error(err))
	}
	return pkg, nil
}

// UpdateStatus applies an admin status change. The transition must be
// an edge of the package status table.
func (s *Service) UpdateStatus(ctx context.Context, packageID int64, next entity.PackageStatus, location, description string) (*entity.Package, error) {
	ctx, span := serviceTracer.Start(ctx, "TrackingService.UpdateStatus", trace.WithAttributes(
		attribute.Int64("package.id", packageID),
		attribute.String("status.to", string(next)),
	))
	defer span.End()

	if !next.Valid() {
		return nil, errorbank.BadRequest("unknown status", errorbank.WithDetail("status", string(next)))
	}

	pkg, err := s.store.PackageByID(ctx, packageID)
	if err != nil {
		if errors.Is(err, shipmentrepo.ErrNotFound) {
			return nil, errorbank.NotFound("package not found")
		}
		return nil, errorbank.Internal("failed to load package", errorbank.WithCause(err))
	}

	if !pkg.Status.CanTransitionTo(next) {
		return nil, errorbank.Unprocessable("status transition not allowed",
			errorbank.WithDetail("from", string(pkg.Status)),
			errorbank.WithDetail("to", string(next)),
		)
	}

	if description == "" {
		description = fmt.Sprintf("Status changed to %s", next.Display())
	}

	if err := s.store.AdvancePackageStatus(ctx, packageID, pkg.Status, next, location, description); err != nil {
		if errors.Is(err, shipmentrepo.ErrStatusConflict) {
			return nil, errorbank.Conflict("package status changed concurrently")
		}
		span.RecordError(err)
		return nil, errorbank.Internal("failed to update status", errorbank.WithCause(err))
	}

	s.invalidate(ctx, pkg.TrackingNumber)

	pkg.Status = next
	if location != "" {
		pkg.CurrentLocation = location
	}
	return pkg, nil
}

func (s *Service) cacheKey(trackingNumber string) string {
	return "track:" + trackingNumber
}

func (s *Service) getFromCache(ctx context.Context, trackingNumber string) (*entity.Package, error) {
	if s.cache == nil {
		return nil, cache.ErrCacheMiss
	}
	raw, err := s.cache.Get(ctx, s.cacheKey(trackingNumber))
	if err != nil {
		return nil, err
	}
	var pkg entity.Package
	if err := json.Unmarshal(raw, &pkg); err != nil {
		return nil, err
	}
	return &pkg, nil
}

func (s *Service) storeInCache(ctx context.Context, pkg *entity.Package) error {
	if s.cache == nil || pkg == nil {
		return nil
	}
	raw, err := json.Marshal(pkg)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, s.cacheKey(pkg.TrackingNumber), raw, s.cacheTTL)
}

func (s *Service) invalidate(ctx context.Context, trackingNumber string) {
	if s.cache == nil || trackingNumber == "" {
		return
	}
	if err := s.cache.Delete(ctx, s.cacheKey(trackingNumber)); err != nil {
		s.logger.Warn("tracking cache invalidation failed", zap.String("tracking_number", trackingNumber), zap.Error(err))
	}
}
