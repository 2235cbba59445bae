package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/courierhq/dispatch/internal/config"
	"github.com/courierhq/dispatch/internal/entity"
	"github.com/courierhq/dispatch/internal/mailer"
	userrepo "github.com/courierhq/dispatch/internal/repository/user"
	"github.com/courierhq/dispatch/internal/validate"
	"github.com/courierhq/dispatch/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/courierhq/dispatch/service/auth")

// UserStore is the persistence surface the auth service needs.
type UserStore interface {
	Create(ctx context.Context, u *entity.User) error
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	GetByUsername(ctx context.Context, username string) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	MarkVerified(ctx context.Context, id int64) error
}

// Claims is the JWT payload issued at login.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Service implements registration, email verification and login.
type Service struct {
	store  UserStore
	mail   mailer.Mailer
	logger *zap.Logger

	secret     []byte
	accessTTL  time.Duration
	bcryptCost int
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Store  UserStore
	Mailer mailer.Mailer
	Config config.Config
	Logger *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		store:      p.Store,
		mail:       p.Mailer,
		logger:     p.Logger,
		secret:     []byte(p.Config.Auth.JWTSecret),
		accessTTL:  p.Config.Auth.AccessTTL,
		bcryptCost: p.Config.Auth.BcryptCost,
	}
}

// RegisterInput carries a registration request.
type RegisterInput struct {
	Username   string
	Email      string
	Password   string
	Phone      string
	Country    string
	Province   string
	PostalCode string
}

// RegisterResult reports the created user. DevCode is set only when
// mail delivery is bypassed in development.
type RegisterResult struct {
	User    *entity.User
	DevCode string
}

// Register creates an unverified account and sends the verification code.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	ctx, span := serviceTracer.Start(ctx, "AuthService.Register", trace.WithAttributes(attribute.String("user.username", in.Username)))
	defer span.End()

	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Username == "" || in.Email == "" || in.Password == "" {
		return nil, errorbank.BadRequest("username, email and password are required")
	}
	if len(in.Password) < 8 {
		return nil, errorbank.BadRequest("password must be at least 8 characters")
	}

	phone := ""
	if in.Phone != "" {
		normalized, ok := validate.Phone(in.Phone, in.Country)
		if !ok {
			return nil, errorbank.BadRequest("invalid phone number", errorbank.WithDetail("phone", in.Phone))
		}
		phone = normalized
	}

	postal := ""
	if in.PostalCode != "" {
		normalized, ok := validate.Postal(in.PostalCode)
		if !ok {
			return nil, errorbank.BadRequest("invalid postal code", errorbank.WithDetail("postal_code", in.PostalCode))
		}
		postal = normalized
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, errorbank.Internal("failed to hash password", errorbank.WithCause(err))
	}

	code, err := verificationCode()
	if err != nil {
		return nil, errorbank.Internal("failed to generate verification code", errorbank.WithCause(err))
	}

	now := time.Now().UTC()
	u := &entity.User{
		Username:         in.Username,
		Email:            in.Email,
		PasswordHash:     string(hash),
		VerificationCode: code,
		Phone:            phone,
		Province:         in.Province,
		PostalCode:       postal,
		Role:             entity.RoleUser,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.store.Create(ctx, u); err != nil {
		if errors.Is(err, userrepo.ErrDuplicate) {
			return nil, errorbank.Conflict("username or email already registered")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "store error")
		return nil, errorbank.Internal("failed to create user", errorbank.WithCause(err))
	}

	res := &RegisterResult{User: u}
	if err := s.mail.SendVerificationCode(ctx, u.Email, code); err != nil {
		// Account exists; the user can request the code again.
		s.logger.Warn("verification mail failed", zap.String("email", u.Email), zap.Error(err))
	}
	if s.mail.Dev() {
		res.DevCode = code
	}
	return res, nil
}

// VerifyEmail matches the submitted code and flips the verified flag.
// The code is single use.
func (s *Service) VerifyEmail(ctx context.Context, email, code string) error {
	ctx, span := serviceTracer.Start(ctx, "AuthService.VerifyEmail")
	defer span.End()

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || code == "" {
		return errorbank.BadRequest("email and code are required")
	}

	u, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return errorbank.NotFound("user not found")
		}
		return errorbank.Internal("failed to load user", errorbank.WithCause(err))
	}

	if u.EmailVerified {
		return errorbank.BadRequest("email already verified")
	}
	if u.VerificationCode == "" || u.VerificationCode != code {
		return errorbank.BadRequest("invalid verification code")
	}

	if err := s.store.MarkVerified(ctx, u.ID); err != nil {
		span.RecordError(err)
		return errorbank.Internal("failed to verify email", errorbank.WithCause(err))
	}
	return nil
}

// LoginResult carries the issued token and its subject.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *entity.User
}

// Login authenticates by username and password and issues an access
// token. Unverified accounts are rejected before the password check.
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	ctx, span := serviceTracer.Start(ctx, "AuthService.Login", trace.WithAttributes(attribute.String("user.username", username)))
	defer span.End()

	if username == "" || password == "" {
		return nil, errorbank.BadRequest("username and password are required")
	}

	u, err := s.store.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return nil, errorbank.Unauthorized("invalid credentials")
		}
		return nil, errorbank.Internal("failed to load user", errorbank.WithCause(err))
	}

	if !u.EmailVerified {
		return nil, errorbank.Forbidden("email not verified")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, errorbank.Unauthorized("invalid credentials")
	}

	token, expiresAt, err := s.issueToken(u)
	if err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("failed to issue token", errorbank.WithCause(err))
	}

	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: u}, nil
}

// ParseToken validates a bearer token and returns its claims.
func (s *Service) ParseToken(tokenString string) (*Claims, error) {
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, errorbank.Unauthorized("invalid token", errorbank.WithCause(err))
	}
	return claims, nil
}

// UserFromClaims resolves the subject of validated claims.
func (s *Service) UserFromClaims(ctx context.Context, claims *Claims) (*entity.User, error) {
	var id int64
	if _, err := fmt.Sscanf(claims.Subject, "%d", &id); err != nil {
		return nil, errorbank.Unauthorized("invalid token subject")
	}
	u, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return nil, errorbank.Unauthorized("unknown user")
		}
		return nil, errorbank.Internal("failed to load user", errorbank.WithCause(err))
	}
	return u, nil
}

func (s *Service) issueToken(u *entity.User) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(s.accessTTL)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", u.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Username: u.Username,
		Role:     u.Role,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	return token, expiresAt, err
}

// verificationCode produces a 6-digit numeric code.
func verificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
