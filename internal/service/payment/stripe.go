package payment

import (
	"context"
	"strconv"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/courierhq/dispatch/internal/config"
)

// Gateway abstracts the card processor so the service can be tested
// without network calls.
type Gateway interface {
	CreateIntent(ctx context.Context, amountCents int64, currency string, userID int64) (intentID, clientSecret string, err error)
}

type stripeGateway struct {
	api *client.API
}

// NewStripeGateway builds a Gateway backed by the Stripe API.
func NewStripeGateway(cfg config.Config) Gateway {
	api := &client.API{}
	api.Init(cfg.Stripe.SecretKey, nil)
	return &stripeGateway{api: api}
}

func (g *stripeGateway) CreateIntent(ctx context.Context, amountCents int64, currency string, userID int64) (string, string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("user_id", strconv.FormatInt(userID, 10))

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return "", "", err
	}
	return pi.ID, pi.ClientSecret, nil
}
