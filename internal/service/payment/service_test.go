package payment

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/courierhq/dispatch/internal/config"
	"github.com/courierhq/dispatch/internal/entity"
	paymentrepo "github.com/courierhq/dispatch/internal/repository/payment"
	"github.com/courierhq/dispatch/pkg/errorbank"
)

type fakeStore struct {
	intents        map[string]*entity.PaymentIntentRecord
	manuals        map[string]*entity.ManualPayment
	created        []*entity.Shipment
	consumed       int
	removedCartIDs []int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		intents: map[string]*entity.PaymentIntentRecord{},
		manuals: map[string]*entity.ManualPayment{},
	}
}

func (f *fakeStore) CreateIntent(_ context.Context, rec *entity.PaymentIntentRecord) error {
	f.intents[rec.IntentID] = rec
	return nil
}

func (f *fakeStore) IntentByID(_ context.Context, intentID string) (*entity.PaymentIntentRecord, error) {
	rec, ok := f.intents[intentID]
	if !ok {
		return nil, paymentrepo.ErrNotFound
	}
	clone := *rec
	return &clone, nil
}

func (f *fakeStore) ConsumeIntent(_ context.Context, intentID string, shipments []*entity.Shipment, cartItemIDs []int64) (bool, error) {
	rec, ok := f.intents[intentID]
	if !ok {
		return false, paymentrepo.ErrNotFound
	}
	if rec.Status != entity.IntentPending {
		return false, nil
	}
	rec.Status = entity.IntentConsumed
	f.created = append(f.created, shipments...)
	f.removedCartIDs = append(f.removedCartIDs, cartItemIDs...)
	f.consumed++
	return true, nil
}

func (f *fakeStore) MarkIntentFailed(_ context.Context, intentID string) error {
	rec, ok := f.intents[intentID]
	if !ok || rec.Status != entity.IntentPending {
		return paymentrepo.ErrNotFound
	}
	rec.Status = entity.IntentFailed
	return nil
}

func (f *fakeStore) CreateManual(_ context.Context, mp *entity.ManualPayment) error {
	f.manuals[mp.Reference] = mp
	return nil
}

func (f *fakeStore) ManualByReference(_ context.Context, reference string) (*entity.ManualPayment, error) {
	mp, ok := f.manuals[reference]
	if !ok {
		return nil, paymentrepo.ErrNotFound
	}
	clone := *mp
	return &clone, nil
}

func (f *fakeStore) VerifyManual(_ context.Context, reference string, shipments []*entity.Shipment) error {
	mp, ok := f.manuals[reference]
	if !ok {
		return paymentrepo.ErrNotFound
	}
	if mp.Status != entity.ManualPending {
		return paymentrepo.ErrAlreadySettled
	}
	if mp.Expired(time.Now().UTC()) {
		return paymentrepo.ErrExpired
	}
	mp.Status = entity.ManualVerified
	f.created = append(f.created, shipments...)
	return nil
}

func (f *fakeStore) ExpireManual(_ context.Context, now time.Time) (int64, error) {
	var count int64
	for _, mp := range f.manuals {
		if mp.Status == entity.ManualPending && mp.Expired(now) {
			mp.Status = entity.ManualExpired
			count++
		}
	}
	return count, nil
}

type fakeCarts struct {
	items   map[int64][]*entity.CartItem
	cleared []int64
}

func (f *fakeCarts) ListByUser(_ context.Context, userID int64) ([]*entity.CartItem, error) {
	return f.items[userID], nil
}

func (f *fakeCarts) Clear(_ context.Context, userID int64) error {
	delete(f.items, userID)
	f.cleared = append(f.cleared, userID)
	return nil
}

type fakeGateway struct {
	lastAmount   int64
	lastCurrency string
	nextID       string
}

func (f *fakeGateway) CreateIntent(_ context.Context, amountCents int64, currency string, _ int64) (string, string, error) {
	f.lastAmount = amountCents
	f.lastCurrency = currency
	return f.nextID, f.nextID + "_secret", nil
}

func cartItem(userID, price int64) *entity.CartItem {
	return &entity.CartItem{
		UserID:            userID,
		Customer:          "default",
		ServiceType:       "standard",
		RecipientName:     "Robin Doe",
		RecipientAddress:  "42 King St W, Toronto",
		OriginPostal:      "10001",
		DestinationPostal: "90001",
		WeightKg:          5,
		PriceCents:        price,
	}
}

func newTestService(store Store, carts Carts, gw Gateway) *Service {
	cfg := config.Config{}
	cfg.Payments.Currency = "cad"
	cfg.Payments.ManualPaymentTTL = 24 * time.Hour
	cfg.Messaging.Enabled = false
	return NewService(Params{
		Store:   store,
		Carts:   carts,
		Gateway: gw,
		Config:  cfg,
		Logger:  zap.NewNop(),
	})
}

func TestCreateIntentTotalsCartServerSide(t *testing.T) {
	store := newFakeStore()
	carts := &fakeCarts{items: map[int64][]*entity.CartItem{
		7: {cartItem(7, 9625), cartItem(7, 4300)},
	}}
	gw := &fakeGateway{nextID: "pi_1"}
	svc := newTestService(store, carts, gw)

	intent, err := svc.CreateIntent(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, int64(13925), intent.AmountCents)
	require.Equal(t, int64(13925), gw.lastAmount)
	require.Equal(t, "cad", gw.lastCurrency)
	require.Equal(t, "pi_1_secret", intent.ClientSecret)
	require.Equal(t, entity.IntentPending, store.intents["pi_1"].Status)
}

func TestCreateIntentRejectsEmptyCart(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeCarts{items: map[int64][]*entity.CartItem{}}, &fakeGateway{nextID: "pi_1"})

	_, err := svc.CreateIntent(context.Background(), 7)
	require.Equal(t, errorbank.KindBadRequest, errorbank.From(err).Kind())
}

func TestHandleIntentSucceededIsIdempotent(t *testing.T) {
	store := newFakeStore()
	carts := &fakeCarts{items: map[int64][]*entity.CartItem{
		7: {cartItem(7, 9625), cartItem(7, 9625)},
	}}
	gw := &fakeGateway{nextID: "pi_1"}
	svc := newTestService(store, carts, gw)

	_, err := svc.CreateIntent(context.Background(), 7)
	require.NoError(t, err)

	require.NoError(t, svc.HandleIntentSucceeded(context.Background(), "pi_1"))
	require.Len(t, store.created, 2)
	require.Equal(t, entity.PaymentPaid, store.created[0].PaymentStatus)
	require.Equal(t, 1, store.consumed)

	// Redelivered webhook changes nothing.
	require.NoError(t, svc.HandleIntentSucceeded(context.Background(), "pi_1"))
	require.Len(t, store.created, 2)
	require.Equal(t, 1, store.consumed)
}

func TestHandleIntentSucceededSettlesChargedSnapshotOnly(t *testing.T) {
	store := newFakeStore()
	paid := cartItem(7, 9625)
	paid.ID = 1
	carts := &fakeCarts{items: map[int64][]*entity.CartItem{7: {paid}}}
	gw := &fakeGateway{nextID: "pi_1"}
	svc := newTestService(store, carts, gw)

	intent, err := svc.CreateIntent(context.Background(), 7)
	require.NoError(t, err)

	// Items added between the charge and webhook delivery must neither
	// ship as paid nor be deleted.
	late := cartItem(7, 9625)
	late.ID = 2
	later := cartItem(7, 9625)
	later.ID = 3
	carts.items[7] = append(carts.items[7], late, later)

	require.NoError(t, svc.HandleIntentSucceeded(context.Background(), "pi_1"))
	require.Len(t, store.created, 1)
	require.Equal(t, intent.AmountCents, shipmentTotal(store.created))
	require.Equal(t, []int64{1}, store.removedCartIDs)
}

func TestHandleIntentSucceededRejectsAmountMismatch(t *testing.T) {
	store := newFakeStore()
	carts := &fakeCarts{items: map[int64][]*entity.CartItem{7: {cartItem(7, 9625)}}}
	gw := &fakeGateway{nextID: "pi_1"}
	svc := newTestService(store, carts, gw)

	_, err := svc.CreateIntent(context.Background(), 7)
	require.NoError(t, err)

	// Simulate tariff drift: the snapshot no longer rebuilds to the
	// charged amount.
	store.intents["pi_1"].AmountCents = 100

	err = svc.HandleIntentSucceeded(context.Background(), "pi_1")
	require.Error(t, err)
	require.Empty(t, store.created)
	require.Zero(t, store.consumed)
	require.Equal(t, entity.IntentPending, store.intents["pi_1"].Status)
}

func TestHandleIntentSucceededIgnoresUnknownIntent(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeCarts{items: map[int64][]*entity.CartItem{}}, &fakeGateway{})

	require.NoError(t, svc.HandleIntentSucceeded(context.Background(), "pi_other"))
	require.Empty(t, store.created)
}

func TestHandleIntentFailedKeepsCart(t *testing.T) {
	store := newFakeStore()
	carts := &fakeCarts{items: map[int64][]*entity.CartItem{7: {cartItem(7, 9625)}}}
	gw := &fakeGateway{nextID: "pi_1"}
	svc := newTestService(store, carts, gw)

	_, err := svc.CreateIntent(context.Background(), 7)
	require.NoError(t, err)

	require.NoError(t, svc.HandleIntentFailed(context.Background(), "pi_1"))
	require.Equal(t, entity.IntentFailed, store.intents["pi_1"].Status)
	require.Len(t, carts.items[7], 1)
	require.Empty(t, carts.cleared)

	// Unknown intents are tolerated.
	require.NoError(t, svc.HandleIntentFailed(context.Background(), "pi_other"))
}

func TestCreateManualSnapshotsAndClearsCart(t *testing.T) {
	store := newFakeStore()
	carts := &fakeCarts{items: map[int64][]*entity.CartItem{7: {cartItem(7, 9625)}}}
	svc := newTestService(store, carts, &fakeGateway{})

	mp, err := svc.CreateManual(context.Background(), 7, "")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(mp.Reference, "MP-"))
	require.Equal(t, "bank_transfer", mp.Method)
	require.Equal(t, int64(9625), mp.AmountCents)
	require.NotEmpty(t, mp.OrderPayload)
	require.WithinDuration(t, time.Now().UTC().Add(24*time.Hour), mp.ExpiresAt, time.Minute)
	require.Equal(t, []int64{7}, carts.cleared)
}

func TestVerifyManualSettlesOnce(t *testing.T) {
	store := newFakeStore()
	carts := &fakeCarts{items: map[int64][]*entity.CartItem{7: {cartItem(7, 9625), cartItem(7, 9625)}}}
	svc := newTestService(store, carts, &fakeGateway{})

	mp, err := svc.CreateManual(context.Background(), 7, "bank_transfer")
	require.NoError(t, err)

	verified, err := svc.VerifyManual(context.Background(), mp.Reference)
	require.NoError(t, err)
	require.Equal(t, entity.ManualVerified, verified.Status)
	require.Len(t, store.created, 2)
	require.Equal(t, entity.PaymentPaid, store.created[0].PaymentStatus)

	_, err = svc.VerifyManual(context.Background(), mp.Reference)
	require.Equal(t, errorbank.KindConflict, errorbank.From(err).Kind())
	require.Len(t, store.created, 2)
}

func TestVerifyManualRejectsExpired(t *testing.T) {
	store := newFakeStore()
	carts := &fakeCarts{items: map[int64][]*entity.CartItem{7: {cartItem(7, 9625)}}}
	svc := newTestService(store, carts, &fakeGateway{})

	mp, err := svc.CreateManual(context.Background(), 7, "bank_transfer")
	require.NoError(t, err)
	store.manuals[mp.Reference].ExpiresAt = time.Now().UTC().Add(-time.Hour)

	_, err = svc.VerifyManual(context.Background(), mp.Reference)
	require.Equal(t, errorbank.KindUnprocessableEntity, errorbank.From(err).Kind())
	require.Empty(t, store.created)
}

func TestManualByReferenceScopedToOwner(t *testing.T) {
	store := newFakeStore()
	carts := &fakeCarts{items: map[int64][]*entity.CartItem{7: {cartItem(7, 9625)}}}
	svc := newTestService(store, carts, &fakeGateway{})

	mp, err := svc.CreateManual(context.Background(), 7, "bank_transfer")
	require.NoError(t, err)

	_, err = svc.ManualByReference(context.Background(), mp.Reference, 8, false)
	require.Equal(t, errorbank.KindNotFound, errorbank.From(err).Kind())

	got, err := svc.ManualByReference(context.Background(), mp.Reference, 0, true)
	require.NoError(t, err)
	require.Equal(t, mp.Reference, got.Reference)
}

func TestExpireManualSweeps(t *testing.T) {
	store := newFakeStore()
	carts := &fakeCarts{items: map[int64][]*entity.CartItem{7: {cartItem(7, 9625)}}}
	svc := newTestService(store, carts, &fakeGateway{})

	mp, err := svc.CreateManual(context.Background(), 7, "bank_transfer")
	require.NoError(t, err)
	store.manuals[mp.Reference].ExpiresAt = time.Now().UTC().Add(-time.Hour)

	count, err := svc.ExpireManual(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
	require.Equal(t, entity.ManualExpired, store.manuals[mp.Reference].Status)
}
