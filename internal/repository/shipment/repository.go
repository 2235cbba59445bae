package shipment

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/courierhq/dispatch/internal/database"
	"github.com/courierhq/dispatch/internal/entity"
)

var repoTracer = otel.Tracer("github.com/courierhq/dispatch/repository/shipment")

// ErrNotFound is returned when a shipment or package is missing.
var ErrNotFound = errors.New("shipment not found")

// ErrStatusConflict indicates the package moved concurrently and the
// requested transition no longer applies.
var ErrStatusConflict = errors.New("package status changed concurrently")

// Repository encapsulates read/write access for shipments, packages and
// their tracking history.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// CreateBatch persists shipments with their packages and an initial
// tracking event inside a single transaction. A failure anywhere rolls
// the whole batch back.
func (r *Repository) CreateBatch(ctx context.Context, shipments []*entity.Shipment) error {
	if len(shipments) == 0 {
		return errors.New("empty batch")
	}
	ctx, span := repoTracer.Start(ctx, "ShipmentRepository.CreateBatch", trace.WithAttributes(attribute.Int("batch.size", len(shipments))))
	defer span.End()

	err := r.writer.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return InsertTree(ctx, tx, shipments)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "batch insert failed")
	}
	return err
}

// InsertTree inserts shipments plus dependent rows on the given
// connection or transaction. Payment consumption reuses it so shipment
// creation shares one code path with checkout.
func InsertTree(ctx context.Context, db bun.IDB, shipments []*entity.Shipment) error {
	now := time.Now().UTC()
	for _, s := range shipments {
		if s == nil || s.Package == nil {
			return errors.New("shipment without package")
		}
		if s.CreatedAt.IsZero() {
			s.CreatedAt = now
			s.UpdatedAt = now
		}
		if _, err := db.NewInsert().Model(s).Exec(ctx); err != nil {
			return err
		}

		pkg := s.Package
		pkg.ShipmentID = s.ID
		pkg.UserID = s.UserID
		if pkg.CreatedAt.IsZero() {
			pkg.CreatedAt = now
			pkg.UpdatedAt = now
		}
		if _, err := db.NewInsert().Model(pkg).Exec(ctx); err != nil {
			return err
		}

		event := &entity.TrackingEvent{
			PackageID:   pkg.ID,
			Status:      pkg.Status,
			Location:    pkg.CurrentLocation,
			Description: "Shipment created",
			OccurredAt:  now,
		}
		if _, err := db.NewInsert().Model(event).Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

// PackageByTrackingNumber loads a package and its full history, newest
// event first.
func (r *Repository) PackageByTrackingNumber(ctx context.Context, trackingNumber string) (*entity.Package, error) {
	ctx, span := repoTracer.Start(ctx, "ShipmentRepository.PackageByTrackingNumber", trace.WithAttributes(attribute.String("package.tracking_number", trackingNumber)))
	defer span.End()

	pkg := new(entity.Package)
	err := r.reader.NewSelect().Model(pkg).
		Relation("History", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("occurred_at DESC").Order("id DESC")
		}).
		Where("tracking_number = ?", trackingNumber).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return pkg, nil
}

// PackageByID loads a package without history.
func (r *Repository) PackageByID(ctx context.Context, id int64) (*entity.Package, error) {
	ctx, span := repoTracer.Start(ctx, "ShipmentRepository.PackageByID", trace.WithAttributes(attribute.Int64("package.id", id)))
	defer span.End()

	pkg := new(entity.Package)
	err := r.reader.NewSelect().Model(pkg).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return pkg, nil
}

// ListByUser returns a user's shipments with packages, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID int64) ([]*entity.Shipment, error) {
	ctx, span := repoTracer.Start(ctx, "ShipmentRepository.ListByUser", trace.WithAttributes(attribute.Int64("user.id", userID)))
	defer span.End()

	var shipments []*entity.Shipment
	err := r.reader.NewSelect().Model(&shipments).
		Relation("Package").
		Where("s.user_id = ?", userID).
		Order("s.created_at DESC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return shipments, nil
}

// AdvancePackageStatus moves a package from one status to another and
// appends the matching history event in one transaction. The update is
// guarded on the expected current status; a concurrent change returns
// ErrStatusConflict.
func (r *Repository) AdvancePackageStatus(ctx context.Context, pkgID int64, from, to entity.PackageStatus, location, description string) error {
	ctx, span := repoTracer.Start(ctx, "ShipmentRepository.AdvancePackageStatus", trace.WithAttributes(
		attribute.Int64("package.id", pkgID),
		attribute.String("status.from", string(from)),
		attribute.String("status.to", string(to)),
	))
	defer span.End()

	now := time.Now().UTC()
	err := r.writer.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		q := tx.NewUpdate().Model((*entity.Package)(nil)).
			Set("status = ?", to).
			Set("updated_at = ?", now).
			Where("id = ? AND status = ?", pkgID, from)
		if location != "" {
			q = q.Set("current_location = ?", location)
		}
		res, err := q.Exec(ctx)
		if err != nil {
			return err
		}
		if rows, _ := res.RowsAffected(); rows == 0 {
			return ErrStatusConflict
		}

		event := &entity.TrackingEvent{
			PackageID:   pkgID,
			Status:      to,
			Location:    location,
			Description: description,
			OccurredAt:  now,
		}
		_, err = tx.NewInsert().Model(event).Exec(ctx)
		return err
	})
	if err != nil && !errors.Is(err, ErrStatusConflict) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "status update failed")
	}
	return err
}

// IsUniqueViolation re-exports the driver check for callers retrying
// generated numbers.
func IsUniqueViolation(err error) bool {
	return database.IsUniqueViolation(err)
}
