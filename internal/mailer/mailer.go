package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/courierhq/dispatch/internal/config"
)

// Mailer delivers transactional mail.
type Mailer interface {
	SendVerificationCode(ctx context.Context, to, code string) error
	SendShipmentConfirmation(ctx context.Context, to, shipmentNumber, trackingNumber string) error
	// Dev reports whether mail is not actually delivered, so callers
	// may surface codes directly during development.
	Dev() bool
}

// Module provides the mailer to the Fx graph.
var Module = fx.Provide(New)

// New selects the SMTP mailer, or the dev mailer when SMTP_HOST is
// unset.
func New(cfg config.Config, logger *zap.Logger) Mailer {
	if cfg.SMTP.Host == "" {
		logger.Info("SMTP unconfigured; using dev mailer")
		return &devMailer{logger: logger}
	}
	return &smtpMailer{cfg: cfg.SMTP, logger: logger}
}

type smtpMailer struct {
	cfg    config.SMTP
	logger *zap.Logger
}

func (m *smtpMailer) Dev() bool { return false }

func (m *smtpMailer) SendVerificationCode(ctx context.Context, to, code string) error {
	subject := "Verify your email"
	body := fmt.Sprintf("Your verification code is %s. It is valid for one use.", code)
	return m.send(ctx, to, subject, body)
}

func (m *smtpMailer) SendShipmentConfirmation(ctx context.Context, to, shipmentNumber, trackingNumber string) error {
	subject := fmt.Sprintf("Shipment %s confirmed", shipmentNumber)
	body := fmt.Sprintf("Your shipment %s is confirmed. Track it with number %s.", shipmentNumber, trackingNumber)
	return m.send(ctx, to, subject, body)
}

func (m *smtpMailer) send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	msg := strings.Join([]string{
		"From: " + m.cfg.From,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")

	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{to}, []byte(msg)); err != nil {
		m.logger.Error("smtp send failed", zap.String("to", to), zap.Error(err))
		return err
	}
	return nil
}

type devMailer struct {
	logger *zap.Logger
}

func (m *devMailer) Dev() bool { return true }

func (m *devMailer) SendVerificationCode(_ context.Context, to, code string) error {
	m.logger.Info("dev mailer: verification code", zap.String("to", to), zap.String("code", code))
	return nil
}

func (m *devMailer) SendShipmentConfirmation(_ context.Context, to, shipmentNumber, trackingNumber string) error {
	m.logger.Info("dev mailer: shipment confirmation",
		zap.String("to", to),
		zap.String("shipment_number", shipmentNumber),
		zap.String("tracking_number", trackingNumber),
	)
	return nil
}
