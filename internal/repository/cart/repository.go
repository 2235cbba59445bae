package cart

import (
	"context"
	"errors"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/courierhq/dispatch/internal/database"
	"github.com/courierhq/dispatch/internal/entity"
)

var repoTracer = otel.Tracer("github.com/courierhq/dispatch/repository/cart")

// ErrNotFound is returned when a cart item is missing or owned by
// another user.
var ErrNotFound = errors.New("cart item not found")

// Repository encapsulates per-user cart rows.
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

// ListByUser returns a user's cart, oldest item first.
func (r *Repository) ListByUser(ctx context.Context, userID int64) ([]*entity.CartItem, error) {
	ctx, span := repoTracer.Start(ctx, "CartRepository.ListByUser", trace.WithAttributes(attribute.Int64("user.id", userID)))
	defer span.End()

	var items []*entity.CartItem
	err := r.reader.NewSelect().Model(&items).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return items, nil
}

// Add inserts a new cart item.
func (r *Repository) Add(ctx context.Context, item *entity.CartItem) error {
	if item == nil {
		return errors.New("nil cart item")
	}
	ctx, span := repoTracer.Start(ctx, "CartRepository.Add", trace.WithAttributes(attribute.Int64("user.id", item.UserID)))
	defer span.End()

	_, err := r.writer.NewInsert().Model(item).Exec(ctx)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// Remove deletes one item, scoped to its owner.
func (r *Repository) Remove(ctx context.Context, userID, itemID int64) error {
	ctx, span := repoTracer.Start(ctx, "CartRepository.Remove", trace.WithAttributes(
		attribute.Int64("user.id", userID),
		attribute.Int64("cart.item_id", itemID),
	))
	defer span.End()

	res, err := r.writer.NewDelete().Model((*entity.CartItem)(nil)).
		Where("id = ? AND user_id = ?", itemID, userID).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Clear removes every item in a user's cart.
func (r *Repository) Clear(ctx context.Context, userID int64) error {
	ctx, span := repoTracer.Start(ctx, "CartRepository.Clear", trace.WithAttributes(attribute.Int64("user.id", userID)))
	defer span.End()

	_, err := r.writer.NewDelete().Model((*entity.CartItem)(nil)).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
	}
	return err
}
