package user

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
)

var repoTracer = otel.Tracer("github.com/courierhq/dispatch/repository/user")

// ErrNotFound is returned when a user is missing.
var ErrNotFound = errors.New("user not found")

// ErrDuplicate indicates a username or email collision.
var ErrDuplicate = errors.New("username or email already taken")

// Repository encapsulates read/write access for users.
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

// Create persists a new user. Unique-constraint violations surface as
// ErrDuplicate so the service can answer with a conflict.
func (r *Repository) Create(ctx context.Context, u *entity.User) error {
	if u == nil {
		return errors.New("nil user")
	}
	ctx, span := repoTracer.Start(ctx, "UserRepository.Create", trace.WithAttributes(attribute.String("user.username", u.Username)))
	defer span.End()

	_, err := r.writer.NewInsert().Model(u).Exec(ctx)
	if database.IsUniqueViolation(err) {
		span.SetStatus(codes.Error, "duplicate")
		return ErrDuplicate
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// GetByID fetches a user by primary key.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	ctx, span := repoTracer.Start(ctx, "UserRepository.GetByID", trace.WithAttributes(attribute.Int64("user.id", id)))
	defer span.End()

	u := new(entity.User)
	err := r.reader.NewSelect().Model(u).Where("id = ?", id).Scan(ctx)
	return r.wrap(span, u, err)
}

// GetByUsername fetches a user by unique username.
func (r *Repository) GetByUsername(ctx context.Context, username string) (*entity.User, error) {
	ctx, span := repoTracer.Start(ctx, "UserRepository.GetByUsername")
	defer span.End()

	u := new(entity.User)
	err := r.reader.NewSelect().Model(u).Where("username = ?", username).Scan(ctx)
	return r.wrap(span, u, err)
}

// GetByEmail fetches a user by unique email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	ctx, span := repoTracer.Start(ctx, "UserRepository.GetByEmail")
	defer span.End()

	u := new(entity.User)
	err := r.reader.NewSelect().Model(u).Where("email = ?", email).Scan(ctx)
	return r.wrap(span, u, err)
}

// MarkVerified flips the verified flag and clears the one-time code.
func (r *Repository) MarkVerified(ctx context.Context, id int64) error {
	ctx, span := repoTracer.Start(ctx, "UserRepository.MarkVerified", trace.WithAttributes(attribute.Int64("user.id", id)))
	defer span.End()

	res, err := r.writer.NewUpdate().Model((*entity.User)(nil)).
		Set("email_verified = ?", true).
		Set("verification_code = NULL").
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
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

// List returns all users, newest first. Admin surface only.
func (r *Repository) List(ctx context.Context) ([]*entity.User, error) {
	ctx, span := repoTracer.Start(ctx, "UserRepository.List")
	defer span.End()

	var users []*entity.User
	if err := r.reader.NewSelect().Model(&users).Order("created_at DESC").Scan(ctx); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return users, nil
}

// Update rewrites the admin-editable fields of a user.
func (r *Repository) Update(ctx context.Context, u *entity.User) error {
	if u == nil {
		return errors.New("nil user")
	}
	ctx, span := repoTracer.Start(ctx, "UserRepository.Update", trace.WithAttributes(attribute.Int64("user.id", u.ID)))
	defer span.End()

	u.UpdatedAt = time.Now().UTC()
	res, err := r.writer.NewUpdate().Model(u).
		Column("username", "email", "role", "updated_at").
		WherePK().
		Exec(ctx)
	if database.IsUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		span.RecordError(err)
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) wrap(span trace.Span, u *entity.User, err error) (*entity.User, error) {
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return u, nil
}
