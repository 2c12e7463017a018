package payments

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"
)

type fakeSessions struct {
	last    *stripe.CheckoutSessionParams
	resp    *stripe.CheckoutSession
	err     error
	gotID   string
	session *stripe.CheckoutSession
}

func (f *fakeSessions) New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.last = params
	return f.resp, f.err
}

func (f *fakeSessions) Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.gotID = id
	f.last = params
	return f.session, f.err
}

type fakeProvider struct {
	calls int
	err   error
}

func (f *fakeProvider) CreateCheckoutSession(context.Context, CheckoutSessionRequest) (CheckoutSession, error) {
	f.calls++
	return CheckoutSession{ID: "sess_fake", RedirectURL: "https://pay.example/sess_fake"}, f.err
}

func (f *fakeProvider) GetCheckoutSession(_ context.Context, id string) (SessionStatus, error) {
	return SessionStatus{ID: id, Paid: true}, f.err
}

const testWebhookSecret = "whsec_test_secret"

func signedEvent(t *testing.T, eventType string, session map[string]any) (payload []byte, header string) {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id":          "evt_1",
		"object":      "event",
		"api_version": stripe.APIVersion,
		"type":        eventType,
		"data":        map[string]any{"object": session},
	})
	require.NoError(t, err)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: payload,
		Secret:  testWebhookSecret,
	})
	return signed.Payload, signed.Header
}

func TestStripeProviderCreateCheckoutSession(t *testing.T) {
	api := &fakeSessions{resp: &stripe.CheckoutSession{
		ID:        "cs_test_123",
		URL:       "https://checkout.stripe.com/c/pay/cs_test_123",
		ExpiresAt: 1767225600,
		Currency:  stripe.CurrencyUSD,
	}}
	p, err := NewStripeProvider(StripeProviderConfig{sessions: api, AccountID: "acct_1"})
	require.NoError(t, err)

	session, err := p.CreateCheckoutSession(context.Background(), CheckoutSessionRequest{
		Reference:      "sale-1",
		Amount:         decimal.RequireFromString("22.005"),
		Currency:       "USD",
		SuccessURL:     "https://pos.example/ok",
		CancelURL:      "https://pos.example/cancel",
		IdempotencyKey: "idem-1",
		Metadata:       map[string]string{"receipt_no": "RCP-1"},
	})
	require.NoError(t, err)

	assert.Equal(t, "cs_test_123", session.ID)
	assert.Equal(t, "stripe", session.Provider)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_123", session.RedirectURL)
	assert.Equal(t, time.Unix(1767225600, 0).UTC(), session.ExpiresAt)

	require.NotNil(t, api.last)
	require.Len(t, api.last.LineItems, 1)
	line := api.last.LineItems[0]
	assert.Equal(t, int64(2201), *line.PriceData.UnitAmount)
	assert.Equal(t, "usd", *line.PriceData.Currency)
	assert.Equal(t, "Sale sale-1", *line.PriceData.ProductData.Name)
	assert.Equal(t, "sale-1", *api.last.ClientReferenceID)
	assert.Equal(t, "sale-1", api.last.Metadata["sale_id"])
	assert.Equal(t, "RCP-1", api.last.Metadata["receipt_no"])
	assert.Equal(t, "idem-1", *api.last.IdempotencyKey)
	assert.Equal(t, "acct_1", *api.last.StripeAccount)
}

func TestStripeProviderWrapsErrors(t *testing.T) {
	api := &fakeSessions{err: errors.New("card_declined")}
	p, err := NewStripeProvider(StripeProviderConfig{sessions: api})
	require.NoError(t, err)

	_, err = p.CreateCheckoutSession(context.Background(), CheckoutSessionRequest{Reference: "s", Amount: decimal.NewFromInt(1), Currency: "usd"})
	assert.ErrorContains(t, err, "stripe: create checkout session")
}

func TestNewStripeProviderRequiresKey(t *testing.T) {
	_, err := NewStripeProvider(StripeProviderConfig{})
	assert.Error(t, err)
}

func TestManagerRoutesByName(t *testing.T) {
	stripeP := &fakeProvider{}
	m, err := NewManager(map[string]Provider{"Stripe": stripeP})
	require.NoError(t, err)

	assert.True(t, m.Supports("stripe"))
	assert.False(t, m.Supports("paypal"))

	session, err := m.CreateCheckoutSession(context.Background(), "STRIPE", CheckoutSessionRequest{Amount: decimal.NewFromInt(5)})
	require.NoError(t, err)
	assert.Equal(t, "stripe", session.Provider)
	assert.Equal(t, 1, stripeP.calls)

	_, err = m.CreateCheckoutSession(context.Background(), "paypal", CheckoutSessionRequest{Amount: decimal.NewFromInt(5)})
	assert.ErrorIs(t, err, ErrUnsupportedProvider)

	_, err = m.CreateCheckoutSession(context.Background(), "stripe", CheckoutSessionRequest{Amount: decimal.Zero})
	assert.ErrorIs(t, err, ErrInvalidAmount)
	assert.Equal(t, 1, stripeP.calls)
}

func TestNewManagerRejectsNilProvider(t *testing.T) {
	_, err := NewManager(map[string]Provider{"stripe": nil})
	assert.Error(t, err)
}

func TestToMinorUnits(t *testing.T) {
	assert.Equal(t, int64(1999), ToMinorUnits(decimal.RequireFromString("19.99")))
	assert.Equal(t, int64(2201), ToMinorUnits(decimal.RequireFromString("22.005")))
	assert.Equal(t, int64(0), ToMinorUnits(decimal.Zero))
}

func TestStripeProviderGetCheckoutSession(t *testing.T) {
	tests := []struct {
		name        string
		session     *stripe.CheckoutSession
		wantPaid    bool
		wantExpired bool
	}{
		{
			name:     "paid",
			session:  &stripe.CheckoutSession{ID: "cs_1", ClientReferenceID: "sale-1", Status: stripe.CheckoutSessionStatusComplete, PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid},
			wantPaid: true,
		},
		{
			name:    "complete but awaiting async payment",
			session: &stripe.CheckoutSession{ID: "cs_1", ClientReferenceID: "sale-1", Status: stripe.CheckoutSessionStatusComplete, PaymentStatus: stripe.CheckoutSessionPaymentStatusUnpaid},
		},
		{
			name:        "expired",
			session:     &stripe.CheckoutSession{ID: "cs_1", ClientReferenceID: "sale-1", Status: stripe.CheckoutSessionStatusExpired, PaymentStatus: stripe.CheckoutSessionPaymentStatusUnpaid},
			wantExpired: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeSessions{session: tt.session}
			p, err := NewStripeProvider(StripeProviderConfig{sessions: api, AccountID: "acct_1"})
			require.NoError(t, err)

			status, err := p.GetCheckoutSession(context.Background(), "cs_1")
			require.NoError(t, err)
			assert.Equal(t, "cs_1", api.gotID)
			assert.Equal(t, "acct_1", *api.last.StripeAccount)
			assert.Equal(t, "sale-1", status.Reference)
			assert.Equal(t, tt.wantPaid, status.Paid)
			assert.Equal(t, tt.wantExpired, status.Expired)
		})
	}
}

func TestStripeProviderGetCheckoutSessionWrapsErrors(t *testing.T) {
	p, err := NewStripeProvider(StripeProviderConfig{sessions: &fakeSessions{err: errors.New("timeout")}})
	require.NoError(t, err)

	_, err = p.GetCheckoutSession(context.Background(), "cs_1")
	assert.ErrorContains(t, err, "stripe: get checkout session")
}

func TestStripeProviderParseWebhook(t *testing.T) {
	p, err := NewStripeProvider(StripeProviderConfig{sessions: &fakeSessions{}, WebhookSecret: testWebhookSecret})
	require.NoError(t, err)

	t.Run("completed and paid", func(t *testing.T) {
		payload, header := signedEvent(t, "checkout.session.completed", map[string]any{
			"id": "cs_1", "object": "checkout.session", "client_reference_id": "sale-1",
			"status": "complete", "payment_status": "paid",
		})
		event, err := p.ParseWebhook(payload, header)
		require.NoError(t, err)
		assert.Equal(t, EventSessionPaid, event.Type)
		assert.Equal(t, "cs_1", event.Session.ID)
		assert.Equal(t, "sale-1", event.Session.Reference)
		assert.True(t, event.Session.Paid)
	})

	t.Run("completed but unpaid is ignored", func(t *testing.T) {
		payload, header := signedEvent(t, "checkout.session.completed", map[string]any{
			"id": "cs_1", "object": "checkout.session", "status": "complete", "payment_status": "unpaid",
		})
		event, err := p.ParseWebhook(payload, header)
		require.NoError(t, err)
		assert.Equal(t, EventIgnored, event.Type)
	})

	t.Run("expired", func(t *testing.T) {
		payload, header := signedEvent(t, "checkout.session.expired", map[string]any{
			"id": "cs_2", "object": "checkout.session", "status": "expired", "payment_status": "unpaid",
		})
		event, err := p.ParseWebhook(payload, header)
		require.NoError(t, err)
		assert.Equal(t, EventSessionExpired, event.Type)
		assert.True(t, event.Session.Expired)
	})

	t.Run("other events are ignored", func(t *testing.T) {
		payload, header := signedEvent(t, "customer.created", map[string]any{"id": "cus_1", "object": "customer"})
		event, err := p.ParseWebhook(payload, header)
		require.NoError(t, err)
		assert.Equal(t, EventIgnored, event.Type)
	})

	t.Run("bad signature", func(t *testing.T) {
		payload, _ := signedEvent(t, "checkout.session.completed", map[string]any{"id": "cs_1"})
		_, err := p.ParseWebhook(payload, "t=1,v1=deadbeef")
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("tampered payload", func(t *testing.T) {
		payload, header := signedEvent(t, "checkout.session.completed", map[string]any{"id": "cs_1"})
		payload = append(payload, ' ')
		_, err := p.ParseWebhook(payload, header)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})
}

func TestStripeProviderWebhooksNeedSecret(t *testing.T) {
	p, err := NewStripeProvider(StripeProviderConfig{sessions: &fakeSessions{}})
	require.NoError(t, err)

	_, err = p.ParseWebhook([]byte("{}"), "t=1,v1=00")
	assert.ErrorIs(t, err, ErrWebhooksDisabled)
}

func TestManagerGetCheckoutSessionAndWebhooks(t *testing.T) {
	m, err := NewManager(map[string]Provider{"stripe": &fakeProvider{}})
	require.NoError(t, err)

	status, err := m.GetCheckoutSession(context.Background(), "Stripe", "sess_1")
	require.NoError(t, err)
	assert.Equal(t, "sess_1", status.ID)
	assert.True(t, status.Paid)

	_, err = m.GetCheckoutSession(context.Background(), "paypal", "sess_1")
	assert.ErrorIs(t, err, ErrUnsupportedProvider)

	// fakeProvider does not verify webhooks
	_, err = m.ParseWebhook("stripe", []byte("{}"), "")
	assert.ErrorIs(t, err, ErrUnsupportedProvider)
}
