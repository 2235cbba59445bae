package user

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/courierhq/dispatch/internal/entity"
	userrepo "github.com/courierhq/dispatch/internal/repository/user"
	"github.com/courierhq/dispatch/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/courierhq/dispatch/service/user")

// Store is the persistence surface the user service needs.
type Store interface {
	List(ctx context.Context) ([]*entity.User, error)
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	Update(ctx context.Context, u *entity.User) error
}

// Service covers back-office account management.
type Service struct {
	store  Store
	logger *zap.Logger
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Store  Store
	Logger *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{store: p.Store, logger: p.Logger}
}

// List returns every registered account.
func (s *Service) List(ctx context.Context) ([]*entity.User, error) {
	ctx, span := serviceTracer.Start(ctx, "UserService.List")
	defer span.End()

	users, err := s.store.List(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("failed to list users", errorbank.WithCause(err))
	}
	return users, nil
}

// UpdateInput carries the admin-editable account fields. Nil fields are
// left untouched.
type UpdateInput struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Role     *string `json:"role"`
}

// Update edits an account's username, email or role. Unique collisions
// surface as conflicts.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (*entity.User, error) {
	ctx, span := serviceTracer.Start(ctx, "UserService.Update", trace.WithAttributes(attribute.Int64("user.id", id)))
	defer span.End()

	u, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return nil, errorbank.NotFound("user not found")
		}
		return nil, errorbank.Internal("failed to load user", errorbank.WithCause(err))
	}

	changed := false
	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		if username == "" {
			return nil, errorbank.BadRequest("username cannot be empty")
		}
		if username != u.Username {
			u.Username = username
			changed = true
		}
	}
	if in.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		if email == "" {
			return nil, errorbank.BadRequest("email cannot be empty")
		}
		if email != u.Email {
			u.Email = email
			changed = true
		}
	}
	if in.Role != nil {
		if *in.Role != entity.RoleUser && *in.Role != entity.RoleAdmin {
			return nil, errorbank.BadRequest("unknown role", errorbank.WithDetail("role", *in.Role))
		}
		if *in.Role != u.Role {
			u.Role = *in.Role
			changed = true
		}
	}

	if !changed {
		return u, nil
	}
	if err := s.store.Update(ctx, u); err != nil {
		if errors.Is(err, userrepo.ErrDuplicate) {
			return nil, errorbank.Conflict("username or email already taken")
		}
		span.RecordError(err)
		return nil, errorbank.Internal("failed to update user", errorbank.WithCause(err))
	}
	s.logger.Info("user updated", zap.Int64("user_id", id))
	return u, nil
}

// SetRole changes one account's role.
func (s *Service) SetRole(ctx context.Context, id int64, role string) (*entity.User, error) {
	ctx, span := serviceTracer.Start(ctx, "UserService.SetRole", trace.WithAttributes(
		attribute.Int64("user.id", id),
		attribute.String("user.role", role),
	))
	defer span.End()

	if role != entity.RoleUser && role != entity.RoleAdmin {
		return nil, errorbank.BadRequest("unknown role", errorbank.WithDetail("role", role))
	}

	u, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return nil, errorbank.NotFound("user not found")
		}
		return nil, errorbank.Internal("failed to load user", errorbank.WithCause(err))
	}

	if u.Role == role {
		return u, nil
	}
	u.Role = role
	if err := s.store.Update(ctx, u); err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("failed to update user", errorbank.WithCause(err))
	}
	s.logger.Info("user role changed", zap.Int64("user_id", id), zap.String("role", role))
	return u, nil
}
