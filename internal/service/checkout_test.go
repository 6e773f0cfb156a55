package service_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/boddenberg/portal-membros-go/internal/domain"
	"github.com/boddenberg/portal-membros-go/internal/infra/memstore"
	"github.com/boddenberg/portal-membros-go/internal/service"
)

var checkoutCfg = service.CheckoutConfig{
	PriceID:    "price_membro",
	SuccessURL: "https://portal/pagamento/sucesso",
	CancelURL:  "https://portal/pagamento/cancelado",
}

func TestStartCheckout(t *testing.T) {
	store := memstore.New()
	seedProfile(store, domain.Profile{ID: "u-1", Email: "ana@example.com"})
	provider := &stubCheckout{session: &domain.CheckoutSession{ID: "cs_1", URL: "https://checkout.stripe.com/c/pay/cs_1", CustomerRef: "cus_1"}}
	svc := service.NewCheckoutService(provider, store, checkoutCfg, zap.NewNop())

	resp, err := svc.StartCheckout(context.Background(), domain.Identity{ID: "u-1", Email: "ana@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_1", resp.URL)

	require.NotNil(t, provider.last)
	assert.Equal(t, "price_membro", provider.last.PriceID)
	assert.Equal(t, "u-1", provider.last.UserID)
	assert.Equal(t, checkoutCfg.SuccessURL, provider.last.SuccessURL)

	sub, err := store.GetSubscriber(context.Background(), "u-1")
	require.NoError(t, err)
	assert.False(t, sub.Subscribed)
	require.NotNil(t, sub.StripeCustomerID)
	assert.Equal(t, "cus_1", *sub.StripeCustomerID)
}

// interleavedStore runs before each intent write, standing in for a webhook
// that lands while checkout is in flight.
type interleavedStore struct {
	*memstore.Store
	before func()
}

func (s *interleavedStore) RecordSubscriberIntent(ctx context.Context, sub *domain.Subscriber) (*domain.Subscriber, error) {
	s.before()
	return s.Store.RecordSubscriberIntent(ctx, sub)
}

func TestStartCheckout_ConcurrentApprovalSurvives(t *testing.T) {
	mem := memstore.New()
	seedProfile(mem, domain.Profile{ID: "u-1", Email: "ana@example.com"})

	ev := &domain.CheckoutCompleted{EventID: "evt_1", SessionID: "cs_1", UserID: "u-1", Email: "ana@example.com", CustomerRef: "cus_1"}
	payments, _ := newPayments(mem, eventParser(ev), nil)
	store := &interleavedStore{Store: mem, before: func() {
		_, err := payments.HandleStripeEvent(context.Background(), []byte(`{}`), http.Header{})
		require.NoError(t, err)
	}}

	provider := &stubCheckout{session: &domain.CheckoutSession{ID: "cs_1", URL: "https://checkout", CustomerRef: "cus_1"}}
	svc := service.NewCheckoutService(provider, store, checkoutCfg, zap.NewNop())

	_, err := svc.StartCheckout(context.Background(), domain.Identity{ID: "u-1", Email: "ana@example.com"})
	require.NoError(t, err)

	sub, err := mem.GetSubscriber(context.Background(), "u-1")
	require.NoError(t, err)
	assert.True(t, sub.Subscribed)
	require.NotNil(t, sub.SubscriptionEnd)
}

func TestStartCheckout_KeepsActiveSubscription(t *testing.T) {
	store := memstore.New()
	seedProfile(store, domain.Profile{ID: "u-1", Email: "ana@example.com"})
	_, err := store.UpsertSubscriber(context.Background(), &domain.Subscriber{UserID: "u-1", Email: "ana@example.com", Subscribed: true})
	require.NoError(t, err)

	provider := &stubCheckout{session: &domain.CheckoutSession{ID: "cs_2", URL: "https://checkout"}}
	svc := service.NewCheckoutService(provider, store, checkoutCfg, zap.NewNop())

	_, err = svc.StartCheckout(context.Background(), domain.Identity{ID: "u-1", Email: "ana@example.com"})
	require.NoError(t, err)

	sub, _ := store.GetSubscriber(context.Background(), "u-1")
	assert.True(t, sub.Subscribed)
	assert.Equal(t, 1, store.SubscriberCount())
}

func TestStartCheckout_Errors(t *testing.T) {
	store := memstore.New()

	t.Run("no identity", func(t *testing.T) {
		provider := &stubCheckout{}
		svc := service.NewCheckoutService(provider, store, checkoutCfg, zap.NewNop())
		_, err := svc.StartCheckout(context.Background(), domain.Identity{})
		var unauth *domain.ErrUnauthorized
		require.ErrorAs(t, err, &unauth)
		assert.Zero(t, provider.calls)
	})

	t.Run("provider failure is not retried", func(t *testing.T) {
		provider := &stubCheckout{err: &domain.ErrExternalService{Service: "stripe", Err: errors.New("card_declined")}}
		svc := service.NewCheckoutService(provider, store, checkoutCfg, zap.NewNop())
		_, err := svc.StartCheckout(context.Background(), domain.Identity{ID: "u-1", Email: "ana@example.com"})
		var ext *domain.ErrExternalService
		require.ErrorAs(t, err, &ext)
		assert.Equal(t, 1, provider.calls)
		assert.Zero(t, store.SubscriberCount())
	})

	t.Run("not configured", func(t *testing.T) {
		svc := service.NewCheckoutService(nil, store, checkoutCfg, zap.NewNop())
		_, err := svc.StartCheckout(context.Background(), domain.Identity{ID: "u-1", Email: "ana@example.com"})
		var ext *domain.ErrExternalService
		require.ErrorAs(t, err, &ext)
	})
}

func TestBillingOverview(t *testing.T) {
	store := memstore.New()
	seedProfile(store, domain.Profile{ID: "u-1", Email: "ana@example.com"})
	svc := service.NewCheckoutService(nil, store, checkoutCfg, zap.NewNop())

	out, err := svc.BillingOverview(context.Background(), domain.Identity{ID: "u-1"})
	require.NoError(t, err)
	assert.Nil(t, out.Subscriber)
	assert.NotNil(t, out.Payments)
	assert.Empty(t, out.Payments)

	_, err = store.CreatePayment(context.Background(), &domain.Payment{UserID: "u-1", Amount: 49.9, PaymentID: strPtr("mp-1"), Status: "approved"})
	require.NoError(t, err)
	_, err = store.UpsertSubscriber(context.Background(), &domain.Subscriber{UserID: "u-1", Email: "ana@example.com", Subscribed: true})
	require.NoError(t, err)

	out, err = svc.BillingOverview(context.Background(), domain.Identity{ID: "u-1"})
	require.NoError(t, err)
	require.NotNil(t, out.Subscriber)
	assert.True(t, out.Subscriber.Subscribed)
	assert.Len(t, out.Payments, 1)
}
