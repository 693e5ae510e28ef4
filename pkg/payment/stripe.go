package payment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/example/foodhall/pkg/config"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.uber.org/zap"
)

type StripeGateway struct {
	api      *client.API
	currency string
	timeout  time.Duration
	logger   *zap.Logger
}

func NewStripeGateway(cfg *config.PaymentConfig, logger *zap.Logger) (*StripeGateway, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("payment.secret_key is required for online payments")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	httpClient := &http.Client{Timeout: timeout}
	api := client.New(cfg.SecretKey, stripe.NewBackends(httpClient))

	return &StripeGateway{
		api:      api,
		currency: cfg.Currency,
		timeout:  timeout,
		logger:   logger,
	}, nil
}

func (g *StripeGateway) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.Items))
	for _, item := range req.Items {
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(g.currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
				UnitAmount: stripe.Int64(MinorUnits(item.UnitPrice)),
			},
			Quantity: stripe.Int64(int64(item.Quantity)),
		})
	}

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:          lineItems,
		SuccessURL:         stripe.String(req.SuccessURL),
		CancelURL:          stripe.String(req.CancelURL),
		ClientReferenceID:  stripe.String(req.OrderID),
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	params.Context = ctx
	params.AddMetadata("order_id", req.OrderID)
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	g.logger.Info("Checkout session created",
		zap.String("order_id", req.OrderID),
		zap.String("session_id", s.ID))

	return toSession(s), nil
}

func (g *StripeGateway) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	s, err := g.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		var serr *stripe.Error
		if errors.As(err, &serr) && serr.HTTPStatusCode == http.StatusNotFound {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to retrieve checkout session: %w", err)
	}
	return toSession(s), nil
}

func toSession(s *stripe.CheckoutSession) *Session {
	out := &Session{
		ID:          s.ID,
		URL:         s.URL,
		Paid:        s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		AmountTotal: s.AmountTotal,
		Currency:    string(s.Currency),
	}
	if s.PaymentIntent != nil {
		out.PaymentIntentID = s.PaymentIntent.ID
	}
	return out
}

// MinorUnits converts a decimal amount to the smallest currency unit, rounding half away from zero.
func MinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
