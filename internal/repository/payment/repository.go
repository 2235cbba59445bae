package payment

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
	shipmentrepo "github.com/courierhq/dispatch/internal/repository/shipment"
)

var repoTracer = otel.Tracer("github.com/courierhq/dispatch/repository/payment")

// ErrNotFound is returned when a payment record is missing.
var ErrNotFound = errors.New("payment not found")

// ErrAlreadySettled indicates the record left the pending state earlier.
var ErrAlreadySettled = errors.New("payment already settled")

// ErrExpired indicates a manual payment past its expiry window.
var ErrExpired = errors.New("manual payment expired")

// Repository persists Stripe intent mirrors and manual payments.
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

// CreateIntent records a freshly created Stripe intent as pending.
func (r *Repository) CreateIntent(ctx context.Context, rec *entity.PaymentIntentRecord) error {
	if rec == nil {
		return errors.New("nil intent record")
	}
	ctx, span := repoTracer.Start(ctx, "PaymentRepository.CreateIntent", trace.WithAttributes(attribute.String("payment.intent_id", rec.IntentID)))
	defer span.End()

	_, err := r.writer.NewInsert().Model(rec).Exec(ctx)
	if database.IsUniqueViolation(err) {
		return ErrAlreadySettled
	}
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// IntentByID fetches the local mirror of a Stripe intent.
func (r *Repository) IntentByID(ctx context.Context, intentID string) (*entity.PaymentIntentRecord, error) {
	ctx, span := repoTracer.Start(ctx, "PaymentRepository.IntentByID", trace.WithAttributes(attribute.String("payment.intent_id", intentID)))
	defer span.End()

	rec := new(entity.PaymentIntentRecord)
	err := r.reader.NewSelect().Model(rec).Where("intent_id = ?", intentID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return rec, nil
}

// ConsumeIntent marks a pending intent consumed and, in the same
// transaction, creates the resulting shipments and removes the cart
// rows that were snapshotted into the intent. Rows added to the cart
// after checkout are untouched. It returns false without error when
// the intent was consumed before, which makes webhook redelivery a
// no-op.
func (r *Repository) ConsumeIntent(ctx context.Context, intentID string, shipments []*entity.Shipment, cartItemIDs []int64) (bool, error) {
	ctx, span := repoTracer.Start(ctx, "PaymentRepository.ConsumeIntent", trace.WithAttributes(attribute.String("payment.intent_id", intentID)))
	defer span.End()

	consumed := false
	err := r.writer.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		rec := new(entity.PaymentIntentRecord)
		err := tx.NewSelect().Model(rec).Where("intent_id = ?", intentID).Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		res, err := tx.NewUpdate().Model((*entity.PaymentIntentRecord)(nil)).
			Set("status = ?", entity.IntentConsumed).
			Set("consumed_at = ?", time.Now().UTC()).
			Where("intent_id = ? AND status = ?", intentID, entity.IntentPending).
			Exec(ctx)
		if err != nil {
			return err
		}
		if rows, _ := res.RowsAffected(); rows == 0 {
			// Redelivered webhook; earlier delivery already settled it.
			return nil
		}

		if err := shipmentrepo.InsertTree(ctx, tx, shipments); err != nil {
			return err
		}

		if len(cartItemIDs) > 0 {
			if _, err := tx.NewDelete().Model((*entity.CartItem)(nil)).
				Where("user_id = ?", rec.UserID).
				Where("id IN (?)", bun.In(cartItemIDs)).
				Exec(ctx); err != nil {
				return err
			}
		}

		consumed = true
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "consume failed")
		return false, err
	}
	return consumed, nil
}

// MarkIntentFailed flags a pending intent as failed.
func (r *Repository) MarkIntentFailed(ctx context.Context, intentID string) error {
	ctx, span := repoTracer.Start(ctx, "PaymentRepository.MarkIntentFailed", trace.WithAttributes(attribute.String("payment.intent_id", intentID)))
	defer span.End()

	res, err := r.writer.NewUpdate().Model((*entity.PaymentIntentRecord)(nil)).
		Set("status = ?", entity.IntentFailed).
		Where("intent_id = ? AND status = ?", intentID, entity.IntentPending).
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

// CreateManual records a new bank-transfer payment reference.
func (r *Repository) CreateManual(ctx context.Context, mp *entity.ManualPayment) error {
	if mp == nil {
		return errors.New("nil manual payment")
	}
	ctx, span := repoTracer.Start(ctx, "PaymentRepository.CreateManual", trace.WithAttributes(attribute.String("payment.reference", mp.Reference)))
	defer span.End()

	_, err := r.writer.NewInsert().Model(mp).Exec(ctx)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// ManualByReference fetches a manual payment by its reference number.
func (r *Repository) ManualByReference(ctx context.Context, reference string) (*entity.ManualPayment, error) {
	ctx, span := repoTracer.Start(ctx, "PaymentRepository.ManualByReference", trace.WithAttributes(attribute.String("payment.reference", reference)))
	defer span.End()

	mp := new(entity.ManualPayment)
	err := r.reader.NewSelect().Model(mp).Where("reference = ?", reference).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return mp, nil
}

// VerifyManual settles a pending, unexpired manual payment and creates
// its shipments in the same transaction.
func (r *Repository) VerifyManual(ctx context.Context, reference string, shipments []*entity.Shipment) error {
	ctx, span := repoTracer.Start(ctx, "PaymentRepository.VerifyManual", trace.WithAttributes(attribute.String("payment.reference", reference)))
	defer span.End()

	now := time.Now().UTC()
	err := r.writer.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		mp := new(entity.ManualPayment)
		err := tx.NewSelect().Model(mp).Where("reference = ?", reference).Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if mp.Status != entity.ManualPending {
			return ErrAlreadySettled
		}
		if mp.Expired(now) {
			return ErrExpired
		}

		res, err := tx.NewUpdate().Model((*entity.ManualPayment)(nil)).
			Set("status = ?", entity.ManualVerified).
			Set("verified_at = ?", now).
			Where("reference = ? AND status = ?", reference, entity.ManualPending).
			Exec(ctx)
		if err != nil {
			return err
		}
		if rows, _ := res.RowsAffected(); rows == 0 {
			return ErrAlreadySettled
		}

		return shipmentrepo.InsertTree(ctx, tx, shipments)
	})
	if err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrAlreadySettled) && !errors.Is(err, ErrExpired) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "verify failed")
	}
	return err
}

// ExpireManual marks every pending manual payment past its deadline as
// expired and returns how many rows changed.
func (r *Repository) ExpireManual(ctx context.Context, now time.Time) (int64, error) {
	ctx, span := repoTracer.Start(ctx, "PaymentRepository.ExpireManual")
	defer span.End()

	res, err := r.writer.NewUpdate().Model((*entity.ManualPayment)(nil)).
		Set("status = ?", entity.ManualExpired).
		Where("status = ? AND expires_at <= ?", entity.ManualPending, now).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	rows, _ := res.RowsAffected()
	span.SetAttributes(attribute.Int64("payment.expired_count", rows))
	return rows, nil
}
