package tracking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/courierhq/dispatch/internal/cache"
	"github.com/courierhq/dispatch/internal/config"
	"github.com/courierhq/dispatch/internal/entity"
	shipmentrepo "github.com/courierhq/dispatch/internal/repository/shipment"
	"github.com/courierhq/dispatch/pkg/errorbank"
)

type fakeStore struct {
	packages map[string]*entity.Package
	lookups  int
	advanced []entity.PackageStatus
}

func (f *fakeStore) PackageByTrackingNumber(_ context.Context, trackingNumber string) (*entity.Package, error) {
	f.lookups++
	pkg, ok := f.packages[trackingNumber]
	if !ok {
		return nil, shipmentrepo.ErrNotFound
	}
	clone := *pkg
	return &clone, nil
}

func (f *fakeStore) PackageByID(_ context.Context, id int64) (*entity.Package, error) {
	for _, pkg := range f.packages {
		if pkg.ID == id {
			clone := *pkg
			return &clone, nil
		}
	}
	return nil, shipmentrepo.ErrNotFound
}

func (f *fakeStore) AdvancePackageStatus(_ context.Context, pkgID int64, from, to entity.PackageStatus, _, _ string) error {
	for _, pkg := range f.packages {
		if pkg.ID == pkgID {
			if pkg.Status != from {
				return shipmentrepo.ErrStatusConflict
			}
			pkg.Status = to
			f.advanced = append(f.advanced, to)
			return nil
		}
	}
	return shipmentrepo.ErrNotFound
}

type memoryCache struct {
	data map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: map[string][]byte{}}
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, error) {
	raw, ok := c.data[key]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return raw, nil
}

func (c *memoryCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.data[key] = value
	return nil
}

func (c *memoryCache) Delete(_ context.Context, key string) error {
	delete(c.data, key)
	return nil
}

func newTestService(store Store, cacheStore cache.Store) *Service {
	cfg := config.Config{}
	cfg.Cache.DefaultTTL = time.Minute
	return NewService(Params{
		Store:  store,
		Cache:  cacheStore,
		Config: cfg,
		Logger: zap.NewNop(),
	})
}

func testPackage() *entity.Package {
	return &entity.Package{
		ID:             1,
		TrackingNumber: "DTTEST123",
		Status:         entity.StatusPending,
		RecipientName:  "Robin Doe",
	}
}

func TestTrackUnknownNumberIsNotFound(t *testing.T) {
	svc := newTestService(&fakeStore{packages: map[string]*entity.Package{}}, newMemoryCache())

	_, err := svc.Track(context.Background(), "DTNOPE")
	require.Equal(t, errorbank.KindNotFound, errorbank.From(err).Kind())
}

func TestTrackCachesLookups(t *testing.T) {
	store := &fakeStore{packages: map[string]*entity.Package{"DTTEST123": testPackage()}}
	svc := newTestService(store, newMemoryCache())

	first, err := svc.Track(context.Background(), "DTTEST123")
	require.NoError(t, err)
	require.Equal(t, "DTTEST123", first.TrackingNumber)

	second, err := svc.Track(context.Background(), "DTTEST123")
	require.NoError(t, err)
	require.Equal(t, first.TrackingNumber, second.TrackingNumber)
	require.Equal(t, 1, store.lookups, "second lookup must come from cache")
}

func TestUpdateStatusFollowsTransitionTable(t *testing.T) {
	store := &fakeStore{packages: map[string]*entity.Package{"DTTEST123": testPackage()}}
	svc := newTestService(store, newMemoryCache())

	pkg, err := svc.UpdateStatus(context.Background(), 1, entity.StatusProcessing, "Toronto", "")
	require.NoError(t, err)
	require.Equal(t, entity.StatusProcessing, pkg.Status)
	require.Equal(t, "Toronto", pkg.CurrentLocation)
}

func TestUpdateStatusRejectsIllegalTransition(t *testing.T) {
	store := &fakeStore{packages: map[string]*entity.Package{"DTTEST123": testPackage()}}
	svc := newTestService(store, newMemoryCache())

	_, err := svc.UpdateStatus(context.Background(), 1, entity.StatusDelivered, "", "")
	require.Equal(t, errorbank.KindUnprocessableEntity, errorbank.From(err).Kind())
	require.Empty(t, store.advanced)
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	store := &fakeStore{packages: map[string]*entity.Package{"DTTEST123": testPackage()}}
	svc := newTestService(store, newMemoryCache())

	_, err := svc.UpdateStatus(context.Background(), 1, entity.PackageStatus("teleported"), "", "")
	require.Equal(t, errorbank.KindBadRequest, errorbank.From(err).Kind())
}

func TestUpdateStatusInvalidatesCache(t *testing.T) {
	store := &fakeStore{packages: map[string]*entity.Package{"DTTEST123": testPackage()}}
	mem := newMemoryCache()
	svc := newTestService(store, mem)

	_, err := svc.Track(context.Background(), "DTTEST123")
	require.NoError(t, err)
	require.Contains(t, mem.data, "track:DTTEST123")

	_, err = svc.UpdateStatus(context.Background(), 1, entity.StatusProcessing, "", "")
	require.NoError(t, err)
	require.NotContains(t, mem.data, "track:DTTEST123")

	fresh, err := svc.Track(context.Background(), "DTTEST123")
	require.NoError(t, err)
	require.Equal(t, entity.StatusProcessing, fresh.Status)
}
