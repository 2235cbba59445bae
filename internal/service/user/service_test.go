package user

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/courierhq/dispatch/internal/entity"
	userrepo "github.com/courierhq/dispatch/internal/repository/user"
	"github.com/courierhq/dispatch/pkg/errorbank"
)

type fakeStore struct {
	users     map[int64]*entity.User
	updates   int
	updateErr error
}

func (f *fakeStore) List(context.Context) ([]*entity.User, error) {
	out := make([]*entity.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeStore) GetByID(_ context.Context, id int64) (*entity.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, userrepo.ErrNotFound
	}
	clone := *u
	return &clone, nil
}

func (f *fakeStore) Update(_ context.Context, u *entity.User) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.users[u.ID] = u
	f.updates++
	return nil
}

func strptr(s string) *string { return &s }

func newTestService(store Store) *Service {
	return NewService(Params{Store: store, Logger: zap.NewNop()})
}

func TestSetRolePromotes(t *testing.T) {
	store := &fakeStore{users: map[int64]*entity.User{1: {ID: 1, Role: entity.RoleUser}}}
	svc := newTestService(store)

	u, err := svc.SetRole(context.Background(), 1, entity.RoleAdmin)
	require.NoError(t, err)
	require.Equal(t, entity.RoleAdmin, u.Role)
	require.Equal(t, entity.RoleAdmin, store.users[1].Role)
}

func TestSetRoleRejectsUnknownRole(t *testing.T) {
	store := &fakeStore{users: map[int64]*entity.User{1: {ID: 1, Role: entity.RoleUser}}}
	svc := newTestService(store)

	_, err := svc.SetRole(context.Background(), 1, "superadmin")
	require.Equal(t, errorbank.KindBadRequest, errorbank.From(err).Kind())
}

func TestSetRoleUnknownUser(t *testing.T) {
	svc := newTestService(&fakeStore{users: map[int64]*entity.User{}})

	_, err := svc.SetRole(context.Background(), 9, entity.RoleAdmin)
	require.Equal(t, errorbank.KindNotFound, errorbank.From(err).Kind())
}

func TestSetRoleNoopWhenUnchanged(t *testing.T) {
	store := &fakeStore{users: map[int64]*entity.User{1: {ID: 1, Role: entity.RoleAdmin}}}
	svc := newTestService(store)

	_, err := svc.SetRole(context.Background(), 1, entity.RoleAdmin)
	require.NoError(t, err)
	require.Zero(t, store.updates)
}

func TestUpdateEditsAccountFields(t *testing.T) {
	store := &fakeStore{users: map[int64]*entity.User{
		1: {ID: 1, Username: "old", Email: "old@example.com", Role: entity.RoleUser},
	}}
	svc := newTestService(store)

	u, err := svc.Update(context.Background(), 1, UpdateInput{
		Username: strptr("renamed"),
		Email:    strptr(" Renamed@Example.COM "),
	})
	require.NoError(t, err)
	require.Equal(t, "renamed", u.Username)
	require.Equal(t, "renamed@example.com", u.Email)
	require.Equal(t, entity.RoleUser, u.Role)
	require.Equal(t, 1, store.updates)
}

func TestUpdateRejectsEmptyUsername(t *testing.T) {
	store := &fakeStore{users: map[int64]*entity.User{1: {ID: 1, Username: "old"}}}
	svc := newTestService(store)

	_, err := svc.Update(context.Background(), 1, UpdateInput{Username: strptr("  ")})
	require.Equal(t, errorbank.KindBadRequest, errorbank.From(err).Kind())
	require.Zero(t, store.updates)
}

func TestUpdateDuplicateIsConflict(t *testing.T) {
	store := &fakeStore{
		users:     map[int64]*entity.User{1: {ID: 1, Username: "old"}},
		updateErr: userrepo.ErrDuplicate,
	}
	svc := newTestService(store)

	_, err := svc.Update(context.Background(), 1, UpdateInput{Username: strptr("taken")})
	require.Equal(t, errorbank.KindConflict, errorbank.From(err).Kind())
}

func TestUpdateNoopWhenUnchanged(t *testing.T) {
	store := &fakeStore{users: map[int64]*entity.User{
		1: {ID: 1, Username: "same", Email: "same@example.com", Role: entity.RoleUser},
	}}
	svc := newTestService(store)

	_, err := svc.Update(context.Background(), 1, UpdateInput{
		Username: strptr("same"),
		Email:    strptr("same@example.com"),
	})
	require.NoError(t, err)
	require.Zero(t, store.updates)
}
