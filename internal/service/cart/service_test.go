package cart

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/courierhq/dispatch/internal/entity"
	cartrepo "github.com/courierhq/dispatch/internal/repository/cart"
	"github.com/courierhq/dispatch/internal/service/shipment"
	"github.com/courierhq/dispatch/pkg/errorbank"
)

type fakeStore struct {
	items  []*entity.CartItem
	nextID int64
}

func (f *fakeStore) ListByUser(_ context.Context, userID int64) ([]*entity.CartItem, error) {
	var out []*entity.CartItem
	for _, item := range f.items {
		if item.UserID == userID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (f *fakeStore) Add(_ context.Context, item *entity.CartItem) error {
	f.nextID++
	item.ID = f.nextID
	f.items = append(f.items, item)
	return nil
}

func (f *fakeStore) Remove(_ context.Context, userID, itemID int64) error {
	for i, item := range f.items {
		if item.ID == itemID && item.UserID == userID {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return nil
		}
	}
	return cartrepo.ErrNotFound
}

func (f *fakeStore) Clear(_ context.Context, userID int64) error {
	kept := f.items[:0]
	for _, item := range f.items {
		if item.UserID != userID {
			kept = append(kept, item)
		}
	}
	f.items = kept
	return nil
}

func newTestService(store Store) *Service {
	return NewService(Params{Store: store, Logger: zap.NewNop()})
}

func input() shipment.Input {
	return shipment.Input{
		Customer:          "default",
		ServiceType:       "standard",
		RecipientName:     "Robin Doe",
		RecipientAddress:  "42 King St W, Toronto",
		OriginPostal:      "10001",
		DestinationPostal: "90001",
		WeightKg:          5,
	}
}

func TestAddPricesItem(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store)

	item, err := svc.Add(context.Background(), 7, input())
	require.NoError(t, err)
	require.Equal(t, int64(9625), item.PriceCents)
	require.Equal(t, "10001", item.OriginPostal)
}

func TestAddRejectsInvalid(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store)

	bad := input()
	bad.ServiceType = "teleport"
	_, err := svc.Add(context.Background(), 7, bad)
	require.Equal(t, errorbank.KindBadRequest, errorbank.From(err).Kind())
	require.Empty(t, store.items)
}

func TestListTotals(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store)

	_, err := svc.Add(context.Background(), 7, input())
	require.NoError(t, err)
	_, err = svc.Add(context.Background(), 7, input())
	require.NoError(t, err)

	items, total, err := svc.List(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, int64(2*9625), total)
}

func TestRemoveScopedToOwner(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store)

	item, err := svc.Add(context.Background(), 7, input())
	require.NoError(t, err)

	err = svc.Remove(context.Background(), 8, item.ID)
	require.Equal(t, errorbank.KindNotFound, errorbank.From(err).Kind())

	require.NoError(t, svc.Remove(context.Background(), 7, item.ID))
	require.Empty(t, store.items)
}

func TestInputsRoundTrip(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store)

	item, err := svc.Add(context.Background(), 7, input())
	require.NoError(t, err)

	inputs := Inputs([]*entity.CartItem{item})
	require.Len(t, inputs, 1)

	built, err := shipment.Build(7, inputs[0], entity.PaymentPaid)
	require.NoError(t, err)
	require.Equal(t, item.PriceCents, built.PriceCents)
}
