package seeder

import (
	"context"

	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/courierhq/dispatch/internal/config"
	"github.com/courierhq/dispatch/internal/database"
	"github.com/courierhq/dispatch/internal/entity"
)

// Module provides the seeder to the Fx graph.
var Module = fx.Provide(New)

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	db     *bun.DB
	cfg    config.Config
	logger *zap.Logger
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, cfg config.Config, logger *zap.Logger) *Seeder {
	return &Seeder{db: conns.Writer, cfg: cfg, logger: logger}
}

// Admin seeds the back-office account if it is missing. The password
// is for local development only.
func (s *Seeder) Admin(ctx context.Context) error {
	hash, err := bcrypt.GenerateFromPassword([]byte("dispatch-admin"), s.cfg.Auth.BcryptCost)
	if err != nil {
		return err
	}

	admin := entity.User{
		Username:      "admin",
		Email:         "admin@dispatch.local",
		PasswordHash:  string(hash),
		EmailVerified: true,
		Role:          entity.RoleAdmin,
	}

	_, err = s.db.NewInsert().Model(&admin).
		On("CONFLICT (username) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return err
	}

	if s.logger != nil {
		s.logger.Info("seeded admin account", zap.String("username", admin.Username))
	}
	return nil
}
