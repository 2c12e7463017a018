// Package payments creates hosted checkout sessions with external payment
// gateways. Sales paid this way stay pending until the gateway confirms them.
package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrUnsupportedProvider is returned when no provider is registered for a method
	ErrUnsupportedProvider = errors.New("payments: unsupported provider")
	// ErrInvalidAmount is returned for non-positive charges
	ErrInvalidAmount = errors.New("payments: amount must be positive")
	// ErrInvalidSignature is returned for webhook payloads that fail verification
	ErrInvalidSignature = errors.New("payments: invalid webhook signature")
	// ErrWebhooksDisabled is returned when no signing secret is configured
	ErrWebhooksDisabled = errors.New("payments: webhooks not configured")
)

// CheckoutSessionRequest captures what a gateway needs to take a payment
type CheckoutSessionRequest struct {
	// Reference ties the session back to the sale
	Reference      string
	Description    string
	Amount         decimal.Decimal
	Currency       string
	SuccessURL     string
	CancelURL      string
	Metadata       map[string]string
	IdempotencyKey string
}

// CheckoutSession is the gateway session the cashier is redirected to
type CheckoutSession struct {
	ID          string    `json:"id"`
	Provider    string    `json:"provider"`
	RedirectURL string    `json:"redirect_url"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// SessionStatus is what the gateway reports about a checkout session
type SessionStatus struct {
	ID        string
	Reference string
	Paid      bool
	Expired   bool
}

// Event types carried by WebhookEvent
const (
	EventSessionPaid    = "session.paid"
	EventSessionExpired = "session.expired"
	EventIgnored        = "ignored"
)

// WebhookEvent is a verified gateway notification
type WebhookEvent struct {
	ID      string
	Type    string
	Session SessionStatus
}

// Provider creates and inspects checkout sessions for one gateway
type Provider interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, id string) (SessionStatus, error)
}

// WebhookVerifier is implemented by providers that push signed notifications
type WebhookVerifier interface {
	ParseWebhook(payload []byte, signature string) (WebhookEvent, error)
}

// Manager routes requests to the provider registered for a payment method
type Manager struct {
	providers map[string]Provider
}

// NewManager builds a manager; provider names are case-insensitive
func NewManager(providers map[string]Provider) (*Manager, error) {
	m := &Manager{providers: make(map[string]Provider, len(providers))}
	for name, p := range providers {
		if p == nil {
			return nil, fmt.Errorf("payments: provider %q is nil", name)
		}
		m.providers[strings.ToLower(strings.TrimSpace(name))] = p
	}
	return m, nil
}

// Supports reports whether a provider is registered for name
func (m *Manager) Supports(name string) bool {
	if m == nil {
		return false
	}
	_, ok := m.providers[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// CreateCheckoutSession delegates to the named provider
func (m *Manager) CreateCheckoutSession(ctx context.Context, provider string, req CheckoutSessionRequest) (CheckoutSession, error) {
	if m == nil {
		return CheckoutSession{}, ErrUnsupportedProvider
	}
	name := strings.ToLower(strings.TrimSpace(provider))
	p, ok := m.providers[name]
	if !ok {
		return CheckoutSession{}, fmt.Errorf("%w: %s", ErrUnsupportedProvider, provider)
	}
	if !req.Amount.IsPositive() {
		return CheckoutSession{}, ErrInvalidAmount
	}

	session, err := p.CreateCheckoutSession(ctx, req)
	if err != nil {
		return CheckoutSession{}, err
	}
	if session.Provider == "" {
		session.Provider = name
	}
	return session, nil
}

// GetCheckoutSession asks the named provider for the state of a session
func (m *Manager) GetCheckoutSession(ctx context.Context, provider, id string) (SessionStatus, error) {
	p, err := m.provider(provider)
	if err != nil {
		return SessionStatus{}, err
	}
	return p.GetCheckoutSession(ctx, id)
}

// ParseWebhook verifies and decodes a notification from the named provider
func (m *Manager) ParseWebhook(provider string, payload []byte, signature string) (WebhookEvent, error) {
	p, err := m.provider(provider)
	if err != nil {
		return WebhookEvent{}, err
	}
	v, ok := p.(WebhookVerifier)
	if !ok {
		return WebhookEvent{}, fmt.Errorf("%w: %s has no webhooks", ErrUnsupportedProvider, provider)
	}
	return v.ParseWebhook(payload, signature)
}

func (m *Manager) provider(name string) (Provider, error) {
	if m == nil {
		return nil, ErrUnsupportedProvider
	}
	p, ok := m.providers[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, name)
	}
	return p, nil
}

// ToMinorUnits converts an amount to cents, rounding half away from zero
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Round(2).Shift(2).IntPart()
}
