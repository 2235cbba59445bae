package shipment

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/courierhq/dispatch/internal/config"
	"github.com/courierhq/dispatch/internal/entity"
	"github.com/courierhq/dispatch/pkg/errorbank"
)

type fakeStore struct {
	batches    [][]*entity.Shipment
	failTimes  int
	failWith   error
	nextID     int64
	listResult []*entity.Shipment
}

func (f *fakeStore) CreateBatch(_ context.Context, shipments []*entity.Shipment) error {
	if f.failTimes > 0 {
		f.failTimes--
		return f.failWith
	}
	for _, s := range shipments {
		f.nextID++
		s.ID = f.nextID
		if s.Package != nil {
			s.Package.ID = f.nextID
			s.Package.ShipmentID = s.ID
		}
	}
	f.batches = append(f.batches, shipments)
	return nil
}

func (f *fakeStore) ListByUser(context.Context, int64) ([]*entity.Shipment, error) {
	return f.listResult, nil
}

func newTestService(store Store) *Service {
	cfg := config.Config{}
	cfg.Messaging.Enabled = false
	return NewService(Params{
		Store:     store,
		Config:    cfg,
		Logger:    zap.NewNop(),
		Publisher: nil,
	})
}

func validInput() Input {
	return Input{
		Customer:          "default",
		ServiceType:       "standard",
		RecipientName:     "Robin Doe",
		RecipientAddress:  "42 King St W, Toronto",
		OriginPostal:      "10001",
		DestinationPostal: "90001",
		WeightKg:          5,
	}
}

func TestCreatePricesServerSide(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store)

	s, err := svc.Create(context.Background(), 7, validInput())
	require.NoError(t, err)
	require.Equal(t, int64(9625), s.PriceCents)
	require.Equal(t, entity.PaymentUnpaid, s.PaymentStatus)
	require.Equal(t, entity.StatusPending, s.Status)
	require.NotNil(t, s.Package)
	require.True(t, strings.HasPrefix(s.Package.TrackingNumber, "DT"))
	require.True(t, strings.HasPrefix(s.ShipmentNumber, "SHP-"))
	require.Len(t, store.batches, 1)
}

func TestCreateBulkAtomicValidation(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store)

	inputs := []Input{validInput(), validInput(), validInput(), validInput(), validInput()}
	inputs[2].WeightKg = -1

	_, err := svc.CreateBulk(context.Background(), 7, inputs)
	require.Error(t, err)
	require.Equal(t, errorbank.KindBadRequest, errorbank.From(err).Kind())
	require.Equal(t, 2, errorbank.From(err).Details()["index"])

	// Nothing was written.
	require.Empty(t, store.batches)
}

func TestCreateBulkSingleBatch(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store)

	created, err := svc.CreateBulk(context.Background(), 7, []Input{validInput(), validInput(), validInput()})
	require.NoError(t, err)
	require.Len(t, created, 3)
	require.Len(t, store.batches, 1, "bulk create must be one transaction")
}

func TestCreateRetriesOnCollision(t *testing.T) {
	store := &fakeStore{
		failTimes: 1,
		failWith:  errors.New("ERROR: duplicate key value violates UNIQUE constraint"),
	}
	svc := newTestService(store)

	s, err := svc.Create(context.Background(), 7, validInput())
	require.NoError(t, err)
	require.NotEmpty(t, s.Package.TrackingNumber)
}

func TestCreateGivesUpAfterRetries(t *testing.T) {
	store := &fakeStore{
		failTimes: createAttempts,
		failWith:  errors.New("ERROR: duplicate key value violates UNIQUE constraint"),
	}
	svc := newTestService(store)

	_, err := svc.Create(context.Background(), 7, validInput())
	require.Error(t, err)
	require.Equal(t, errorbank.KindInternal, errorbank.From(err).Kind())
}

func TestBuildRejectsUnknownService(t *testing.T) {
	in := validInput()
	in.ServiceType = "teleport"
	_, err := Build(1, in, entity.PaymentUnpaid)
	require.Equal(t, errorbank.KindBadRequest, errorbank.From(err).Kind())
}

func TestBuildNormalizesPostals(t *testing.T) {
	in := validInput()
	in.OriginPostal = "m5v 2t6"
	s, err := Build(1, in, entity.PaymentPaid)
	require.NoError(t, err)
	require.Equal(t, "M5V2T6", s.OriginPostal)
	require.Equal(t, entity.PaymentPaid, s.PaymentStatus)
}

func TestTrackingNumbersDiffer(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		n := NewTrackingNumber()
		require.False(t, seen[n], "duplicate tracking number %s", n)
		seen[n] = true
	}
}
