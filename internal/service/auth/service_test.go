package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/courierhq/dispatch/internal/config"
	"github.com/courierhq/dispatch/internal/entity"
	userrepo "github.com/courierhq/dispatch/internal/repository/user"
	"github.com/courierhq/dispatch/pkg/errorbank"
)

type fakeUserStore struct {
	byID       map[int64]*entity.User
	byUsername map[string]*entity.User
	byEmail    map[string]*entity.User
	createErr  error
	verified   []int64
	nextID     int64
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		byID:       map[int64]*entity.User{},
		byUsername: map[string]*entity.User{},
		byEmail:    map[string]*entity.User{},
	}
}

func (f *fakeUserStore) Create(_ context.Context, u *entity.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.byUsername[u.Username]; ok {
		return userrepo.ErrDuplicate
	}
	if _, ok := f.byEmail[u.Email]; ok {
		return userrepo.ErrDuplicate
	}
	f.nextID++
	u.ID = f.nextID
	f.byID[u.ID] = u
	f.byUsername[u.Username] = u
	f.byEmail[u.Email] = u
	return nil
}

func (f *fakeUserStore) GetByID(_ context.Context, id int64) (*entity.User, error) {
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return nil, userrepo.ErrNotFound
}

func (f *fakeUserStore) GetByUsername(_ context.Context, username string) (*entity.User, error) {
	if u, ok := f.byUsername[username]; ok {
		return u, nil
	}
	return nil, userrepo.ErrNotFound
}

func (f *fakeUserStore) GetByEmail(_ context.Context, email string) (*entity.User, error) {
	if u, ok := f.byEmail[email]; ok {
		return u, nil
	}
	return nil, userrepo.ErrNotFound
}

func (f *fakeUserStore) MarkVerified(_ context.Context, id int64) error {
	u, ok := f.byID[id]
	if !ok {
		return userrepo.ErrNotFound
	}
	u.EmailVerified = true
	u.VerificationCode = ""
	f.verified = append(f.verified, id)
	return nil
}

type fakeMailer struct {
	codes map[string]string
}

func (m *fakeMailer) SendVerificationCode(_ context.Context, to, code string) error {
	if m.codes == nil {
		m.codes = map[string]string{}
	}
	m.codes[to] = code
	return nil
}

func (m *fakeMailer) SendShipmentConfirmation(context.Context, string, string, string) error {
	return nil
}

func (m *fakeMailer) Dev() bool { return true }

func testService(store UserStore) *Service {
	cfg := config.Config{}
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.AccessTTL = 24 * time.Hour
	cfg.Auth.BcryptCost = bcrypt.MinCost
	return NewService(Params{
		Store:  store,
		Mailer: &fakeMailer{},
		Config: cfg,
		Logger: zap.NewNop(),
	})
}

func register(t *testing.T, s *Service) *RegisterResult {
	t.Helper()
	res, err := s.Register(context.Background(), RegisterInput{
		Username: "casey",
		Email:    "casey@example.com",
		Password: "correct-horse",
	})
	require.NoError(t, err)
	return res
}

func TestRegisterAndVerify(t *testing.T) {
	store := newFakeUserStore()
	s := testService(store)

	res := register(t, s)
	require.NotNil(t, res.User)
	require.False(t, res.User.EmailVerified)
	require.Len(t, res.DevCode, 6)
	require.Equal(t, entity.RoleUser, res.User.Role)
	require.NotEqual(t, "correct-horse", res.User.PasswordHash)

	require.NoError(t, s.VerifyEmail(context.Background(), "casey@example.com", res.DevCode))
	require.True(t, store.byID[res.User.ID].EmailVerified)

	// The code is single use.
	err := s.VerifyEmail(context.Background(), "casey@example.com", res.DevCode)
	require.Error(t, err)
}

func TestRegisterDuplicateConflict(t *testing.T) {
	store := newFakeUserStore()
	s := testService(store)
	register(t, s)

	_, err := s.Register(context.Background(), RegisterInput{
		Username: "casey",
		Email:    "other@example.com",
		Password: "correct-horse",
	})
	require.Error(t, err)
	require.Equal(t, errorbank.KindConflict, errorbank.From(err).Kind())
}

func TestRegisterValidation(t *testing.T) {
	s := testService(newFakeUserStore())

	_, err := s.Register(context.Background(), RegisterInput{Username: "x", Email: "x@example.com", Password: "short"})
	require.Equal(t, errorbank.KindBadRequest, errorbank.From(err).Kind())

	_, err = s.Register(context.Background(), RegisterInput{Username: "x", Email: "x@example.com", Password: "long-enough", Phone: "123"})
	require.Equal(t, errorbank.KindBadRequest, errorbank.From(err).Kind())

	_, err = s.Register(context.Background(), RegisterInput{Username: "", Email: "", Password: ""})
	require.Equal(t, errorbank.KindBadRequest, errorbank.From(err).Kind())
}

func TestLoginUnverifiedForbidden(t *testing.T) {
	store := newFakeUserStore()
	s := testService(store)
	register(t, s)

	// Rejected before the password is even checked.
	_, err := s.Login(context.Background(), "casey", "totally-wrong")
	require.Equal(t, errorbank.KindForbidden, errorbank.From(err).Kind())

	_, err = s.Login(context.Background(), "casey", "correct-horse")
	require.Equal(t, errorbank.KindForbidden, errorbank.From(err).Kind())
}

func TestLoginIssuesDecodableToken(t *testing.T) {
	store := newFakeUserStore()
	s := testService(store)
	res := register(t, s)
	require.NoError(t, s.VerifyEmail(context.Background(), "casey@example.com", res.DevCode))

	login, err := s.Login(context.Background(), "casey", "correct-horse")
	require.NoError(t, err)
	require.NotEmpty(t, login.Token)

	claims := new(Claims)
	token, err := jwt.ParseWithClaims(login.Token, claims, func(*jwt.Token) (any, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	require.True(t, token.Valid)
	require.Equal(t, "1", claims.Subject)
	require.Equal(t, "casey", claims.Username)
	require.WithinDuration(t, time.Now().Add(24*time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestLoginWrongPassword(t *testing.T) {
	store := newFakeUserStore()
	s := testService(store)
	res := register(t, s)
	require.NoError(t, s.VerifyEmail(context.Background(), "casey@example.com", res.DevCode))

	_, err := s.Login(context.Background(), "casey", "wrong")
	require.Equal(t, errorbank.KindUnauthorized, errorbank.From(err).Kind())

	_, err = s.Login(context.Background(), "nobody", "wrong")
	require.Equal(t, errorbank.KindUnauthorized, errorbank.From(err).Kind())
}

func TestParseTokenRoundTrip(t *testing.T) {
	store := newFakeUserStore()
	s := testService(store)
	res := register(t, s)
	require.NoError(t, s.VerifyEmail(context.Background(), "casey@example.com", res.DevCode))

	login, err := s.Login(context.Background(), "casey", "correct-horse")
	require.NoError(t, err)

	claims, err := s.ParseToken(login.Token)
	require.NoError(t, err)

	u, err := s.UserFromClaims(context.Background(), claims)
	require.NoError(t, err)
	require.Equal(t, res.User.ID, u.ID)

	_, err = s.ParseToken("not-a-token")
	require.Equal(t, errorbank.KindUnauthorized, errorbank.From(err).Kind())
}
