package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := New()
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.HTTP.Port)
	require.Equal(t, "test-secret", cfg.Auth.JWTSecret)
	require.Equal(t, 24*time.Hour, cfg.Auth.AccessTTL)
	require.Equal(t, 10, cfg.Auth.BcryptCost)
	require.Equal(t, "cad", cfg.Payments.Currency)
	require.Equal(t, 24*time.Hour, cfg.Payments.ManualPaymentTTL)
	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, cfg.Database.WriterDSN, cfg.Database.ReaderDSN, "reader falls back to writer")
	require.Equal(t, "courier.events", cfg.Messaging.Kafka.Topic)
	require.Equal(t, "dispatch", cfg.Observability.ServiceName)
}

func TestNewRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := New()
	require.Error(t, err)
	require.Contains(t, err.Error(), "JWT_SECRET")
}

func TestNewNormalizesCurrency(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("PAYMENTS_CURRENCY", " USD ")

	cfg, err := New()
	require.NoError(t, err)
	require.Equal(t, "usd", cfg.Payments.Currency)
}

func TestNewRejectsBadBcryptCost(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("BCRYPT_COST", "99")

	_, err := New()
	require.Error(t, err)
}

func TestNewDisabledMessagingUsesNoop(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("MESSAGING_ENABLED", "false")

	cfg, err := New()
	require.NoError(t, err)
	require.Equal(t, "noop", cfg.Messaging.Driver)
}
