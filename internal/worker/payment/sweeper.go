package payment

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/courierhq/dispatch/internal/config"
	paymentservice "github.com/courierhq/dispatch/internal/service/payment"
)

// Sweeper periodically expires manual payments whose window closed.
type Sweeper struct {
	payments *paymentservice.Service
	logger   *zap.Logger
	interval time.Duration
	enabled  bool
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewSweeper constructs the expiry sweeper.
func NewSweeper(payments *paymentservice.Service, cfg config.Config, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		payments: payments,
		logger:   logger,
		interval: cfg.Payments.ExpirySweep,
		enabled:  cfg.Messaging.Workers.Enabled,
	}
}

// Module ties the sweeper to the Fx lifecycle.
var Module = fx.Options(
	fx.Provide(NewSweeper),
	fx.Invoke(func(lc fx.Lifecycle, s *Sweeper) {
		lc.Append(fx.Hook{
			OnStart: s.start,
			OnStop:  s.stop,
		})
	}),
)

func (s *Sweeper) start(context.Context) error {
	if !s.enabled {
		s.logger.Info("manual payment sweeper disabled")
		return nil
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(runCtx)
	s.logger.Info("manual payment sweeper started", zap.Duration("interval", s.interval))
	return nil
}

func (s *Sweeper) stop(ctx context.Context) error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		s.logger.Info("manual payment sweeper stopped")
		return nil
	}
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := s.payments.ExpireManual(ctx)
			if err != nil {
				s.logger.Error("expiry sweep failed", zap.Error(err))
				continue
			}
			if count > 0 {
				s.logger.Info("expired manual payments", zap.Int64("count", count))
			}
		}
	}
}
