package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"
	"go.uber.org/zap"
)

type stripeSessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// StripeProviderConfig configures the StripeProvider
type StripeProviderConfig struct {
	APIKey    string
	AccountID string
	// WebhookSecret is the endpoint signing secret (whsec_...)
	WebhookSecret string
	Backends      *stripe.Backends
	Logger    *zap.Logger
	Clock     func() time.Time

	sessions stripeSessionAPI
}

// StripeProvider creates Stripe Checkout sessions
type StripeProvider struct {
	sessions      stripeSessionAPI
	account       string
	webhookSecret string
	clock         func() time.Time
	logger        *zap.Logger
}

// NewStripeProvider constructs a Stripe provider
func NewStripeProvider(cfg StripeProviderConfig) (*StripeProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.sessions == nil {
		return nil, errors.New("stripe: api key is required")
	}

	sessions := cfg.sessions
	if sessions == nil {
		sc := client.New(apiKey, cfg.Backends)
		sessions = sc.CheckoutSessions
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &StripeProvider{
		sessions:      sessions,
		account:       strings.TrimSpace(cfg.AccountID),
		webhookSecret: strings.TrimSpace(cfg.WebhookSecret),
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// CreateCheckoutSession creates a one-line Checkout session for the sale total.
// Tax, coupon and points are already folded into the amount.
func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (CheckoutSession, error) {
	if p == nil {
		return CheckoutSession{}, errors.New("stripe: provider is nil")
	}

	name := req.Description
	if name == "" {
		name = "Sale " + req.Reference
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.Reference),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(req.Currency)),
					UnitAmount: stripe.Int64(ToMinorUnits(req.Amount)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(name),
					},
				},
			},
		},
	}
	params.Context = ctx
	if p.account != "" {
		params.SetStripeAccount(p.account)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	params.AddMetadata("sale_id", req.Reference)

	session, err := p.sessions.New(params)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("stripe: create checkout session: %w", err)
	}

	p.logger.Info("stripe checkout session created",
		zap.String("session_id", session.ID),
		zap.String("sale_id", req.Reference),
		zap.String("currency", string(session.Currency)),
	)

	expiresAt := p.clock().Add(24 * time.Hour)
	if session.ExpiresAt != 0 {
		expiresAt = time.Unix(session.ExpiresAt, 0).UTC()
	}

	return CheckoutSession{
		ID:          session.ID,
		Provider:    "stripe",
		RedirectURL: session.URL,
		ExpiresAt:   expiresAt,
	}, nil
}

// GetCheckoutSession fetches the session from Stripe. Only payment_status
// "paid" counts as paid; a session in status "complete" may still be
// waiting on an asynchronous payment.
func (p *StripeProvider) GetCheckoutSession(ctx context.Context, id string) (SessionStatus, error) {
	if p == nil {
		return SessionStatus{}, errors.New("stripe: provider is nil")
	}

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	if p.account != "" {
		params.SetStripeAccount(p.account)
	}

	session, err := p.sessions.Get(id, params)
	if err != nil {
		return SessionStatus{}, fmt.Errorf("stripe: get checkout session: %w", err)
	}
	return stripeSessionStatus(session), nil
}

// ParseWebhook verifies the Stripe-Signature header and decodes checkout
// session events. Other event types come back as EventIgnored.
func (p *StripeProvider) ParseWebhook(payload []byte, signature string) (WebhookEvent, error) {
	if p == nil || p.webhookSecret == "" {
		return WebhookEvent{}, ErrWebhooksDisabled
	}

	event, err := webhook.ConstructEvent(payload, signature, p.webhookSecret)
	if err != nil {
		return WebhookEvent{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := WebhookEvent{ID: event.ID, Type: EventIgnored}
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		out.Type = EventSessionPaid
	case stripe.EventTypeCheckoutSessionExpired:
		out.Type = EventSessionExpired
	default:
		return out, nil
	}

	if event.Data == nil {
		return WebhookEvent{}, fmt.Errorf("stripe: event %s has no data", event.ID)
	}
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return WebhookEvent{}, fmt.Errorf("stripe: decode checkout session: %w", err)
	}
	out.Session = stripeSessionStatus(&session)

	// checkout.session.completed fires before delayed methods settle
	if out.Type == EventSessionPaid && !out.Session.Paid {
		out.Type = EventIgnored
	}

	p.logger.Info("stripe webhook received",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("session_id", session.ID),
	)
	return out, nil
}

func stripeSessionStatus(session *stripe.CheckoutSession) SessionStatus {
	reference := session.ClientReferenceID
	if reference == "" {
		reference = session.Metadata["sale_id"]
	}
	return SessionStatus{
		ID:        session.ID,
		Reference: reference,
		Paid:      session.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		Expired:   session.Status == stripe.CheckoutSessionStatusExpired,
	}
}
