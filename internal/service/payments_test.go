package service_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/boddenberg/portal-membros-go/internal/domain"
	"github.com/boddenberg/portal-membros-go/internal/infra/memstore"
	"github.com/boddenberg/portal-membros-go/internal/port"
	"github.com/boddenberg/portal-membros-go/internal/service"
)

func newPayments(store service.PaymentStore, stripe, mp parserFunc) (*service.PaymentService, *webhookCounter) {
	counter := newWebhookCounter()
	var stripeParser, mpParser port.WebhookParser
	if stripe != nil {
		stripeParser = stripe
	}
	if mp != nil {
		mpParser = mp
	}
	return service.NewPaymentService(store, stripeParser, mpParser, counter, zap.NewNop()), counter
}

func TestHandleStripeEvent_ReplayKeepsOneSubscriber(t *testing.T) {
	store := memstore.New()
	seedProfile(store, domain.Profile{ID: "u-1", Email: "ana@example.com"})

	ev := &domain.CheckoutCompleted{EventID: "evt_1", SessionID: "cs_1", UserID: "u-1", Email: "ana@example.com", CustomerRef: "cus_1"}
	svc, counter := newPayments(store, eventParser(ev), nil)

	for i := 0; i < 2; i++ {
		ack, err := svc.HandleStripeEvent(context.Background(), []byte(`{}`), http.Header{})
		require.NoError(t, err)
		assert.True(t, ack.Received)
		assert.Equal(t, service.ActionApproved, ack.Action)
	}

	p, err := store.GetProfile(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusAprovado, p.PaymentStatus)
	assert.Equal(t, 1, store.SubscriberCount())

	sub, err := store.GetSubscriber(context.Background(), "u-1")
	require.NoError(t, err)
	assert.True(t, sub.Subscribed)
	require.NotNil(t, sub.StripeCustomerID)
	assert.Equal(t, "cus_1", *sub.StripeCustomerID)
	require.NotNil(t, sub.SubscriptionEnd)
	assert.WithinDuration(t, sub.UpdatedAt.Add(domain.SubscriptionPeriod), *sub.SubscriptionEnd, time.Minute)

	assert.Equal(t, 2, counter.count("stripe/processed"))
}

func TestHandleStripeEvent_Failures(t *testing.T) {
	t.Run("parser rejects", func(t *testing.T) {
		bad := parserFunc(func([]byte, http.Header) (domain.PaymentEvent, error) {
			return nil, &domain.ErrValidation{Field: "metadata.user_id", Message: "user_id ausente no checkout"}
		})
		svc, counter := newPayments(memstore.New(), bad, nil)

		_, err := svc.HandleStripeEvent(context.Background(), nil, http.Header{})
		var verr *domain.ErrValidation
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, 1, counter.count("stripe/failed"))
	})

	t.Run("unknown user", func(t *testing.T) {
		store := memstore.New()
		svc, _ := newPayments(store, eventParser(&domain.CheckoutCompleted{UserID: "ghost"}), nil)

		_, err := svc.HandleStripeEvent(context.Background(), nil, http.Header{})
		var nf *domain.ErrNotFound
		require.ErrorAs(t, err, &nf)
		assert.Zero(t, store.SubscriberCount())
	})

	t.Run("not configured", func(t *testing.T) {
		svc, _ := newPayments(memstore.New(), nil, nil)
		_, err := svc.HandleStripeEvent(context.Background(), nil, http.Header{})
		var ext *domain.ErrExternalService
		require.ErrorAs(t, err, &ext)
	})
}

func TestHandleStripeEvent_Ignored(t *testing.T) {
	svc, counter := newPayments(memstore.New(), eventParser(&domain.IgnoredEvent{Source: "stripe", Type: "invoice.paid"}), nil)

	ack, err := svc.HandleStripeEvent(context.Background(), nil, http.Header{})
	require.NoError(t, err)
	assert.Equal(t, service.ActionIgnored, ack.Action)
	assert.Equal(t, 1, counter.count("stripe/ignored"))
}

func mpPayment() *domain.ProviderPayment {
	return &domain.ProviderPayment{
		PaymentID:  "123456",
		Amount:     49.9,
		PayerEmail: "ana@example.com",
		Method:     "pix",
		Status:     "approved",
	}
}

func TestHandleMercadoPagoEvent_ReplayDeduplicated(t *testing.T) {
	store := memstore.New()
	seedProfile(store, domain.Profile{ID: "u-1", Email: "ana@example.com"})
	svc, counter := newPayments(store, nil, eventParser(mpPayment()))

	ack, err := svc.HandleMercadoPagoEvent(context.Background(), nil, http.Header{})
	require.NoError(t, err)
	assert.Equal(t, service.ActionApproved, ack.Action)

	ack, err = svc.HandleMercadoPagoEvent(context.Background(), nil, http.Header{})
	require.NoError(t, err)
	assert.Equal(t, service.ActionDuplicate, ack.Action)

	assert.Equal(t, 1, store.PaymentCount())
	assert.Equal(t, 1, counter.duplicates)

	payments, err := store.ListPayments(context.Background(), "u-1")
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, 49.9, payments[0].Amount)
	require.NotNil(t, payments[0].PaymentMethod)
	assert.Equal(t, "pix", *payments[0].PaymentMethod)

	p, _ := store.GetProfile(context.Background(), "u-1")
	assert.Equal(t, domain.PaymentStatusAprovado, p.PaymentStatus)
}

func TestHandleMercadoPagoEvent_ExternalReferenceWins(t *testing.T) {
	store := memstore.New()
	seedProfile(store, domain.Profile{ID: "u-1", Email: "ana@example.com"})
	seedProfile(store, domain.Profile{ID: "u-2", Email: "bia@example.com"})

	pay := mpPayment()
	pay.ExternalReference = "u-2"
	svc, _ := newPayments(store, nil, eventParser(pay))

	_, err := svc.HandleMercadoPagoEvent(context.Background(), nil, http.Header{})
	require.NoError(t, err)

	ana, _ := store.GetProfile(context.Background(), "u-1")
	bia, _ := store.GetProfile(context.Background(), "u-2")
	assert.Equal(t, domain.PaymentStatusPendente, ana.PaymentStatus)
	assert.Equal(t, domain.PaymentStatusAprovado, bia.PaymentStatus)
}

func TestHandleMercadoPagoEvent_UnknownReferenceFallsBackToEmail(t *testing.T) {
	store := memstore.New()
	seedProfile(store, domain.Profile{ID: "u-1", Email: "ana@example.com"})

	pay := mpPayment()
	pay.ExternalReference = "deleted-user"
	svc, _ := newPayments(store, nil, eventParser(pay))

	_, err := svc.HandleMercadoPagoEvent(context.Background(), nil, http.Header{})
	require.NoError(t, err)
	p, _ := store.GetProfile(context.Background(), "u-1")
	assert.Equal(t, domain.PaymentStatusAprovado, p.PaymentStatus)
}

func TestHandleMercadoPagoEvent_UnknownPayer(t *testing.T) {
	store := memstore.New()
	svc, counter := newPayments(store, nil, eventParser(mpPayment()))

	_, err := svc.HandleMercadoPagoEvent(context.Background(), nil, http.Header{})
	var nf *domain.ErrNotFound
	require.ErrorAs(t, err, &nf)
	assert.Zero(t, store.PaymentCount())
	assert.Equal(t, 1, counter.count("mercadopago/failed"))
}

func TestHandleMercadoPagoEvent_LedgerFailureNotSurfaced(t *testing.T) {
	store := &flakyStore{Store: memstore.New(), createPaymentErr: &domain.ErrStore{Op: "create_payment", Err: errStoreDown}}
	seedProfile(store.Store, domain.Profile{ID: "u-1", Email: "ana@example.com"})
	svc, counter := newPayments(store, nil, eventParser(mpPayment()))

	ack, err := svc.HandleMercadoPagoEvent(context.Background(), nil, http.Header{})
	require.NoError(t, err)
	assert.Equal(t, service.ActionApproved, ack.Action)
	assert.Equal(t, 1, counter.count("mercadopago/processed"))

	p, _ := store.GetProfile(context.Background(), "u-1")
	assert.Equal(t, domain.PaymentStatusAprovado, p.PaymentStatus)
	assert.Zero(t, store.PaymentCount())
}

func TestHandleMercadoPagoEvent_ProfileUpdateFailureSurfaced(t *testing.T) {
	store := &flakyStore{Store: memstore.New(), updateProfileErr: &domain.ErrStore{Op: "update_profile", Err: errStoreDown}}
	seedProfile(store.Store, domain.Profile{ID: "u-1", Email: "ana@example.com"})
	svc, _ := newPayments(store, nil, eventParser(mpPayment()))

	_, err := svc.HandleMercadoPagoEvent(context.Background(), nil, http.Header{})
	var serr *domain.ErrStore
	require.ErrorAs(t, err, &serr)
	assert.Zero(t, store.PaymentCount())
}

func TestHandleMercadoPagoEvent_NonPaymentIgnored(t *testing.T) {
	svc, counter := newPayments(memstore.New(), nil, eventParser(&domain.IgnoredEvent{Source: "mercadopago", Type: "merchant_order"}))

	ack, err := svc.HandleMercadoPagoEvent(context.Background(), nil, http.Header{})
	require.NoError(t, err)
	assert.Equal(t, service.ActionIgnored, ack.Action)
	assert.Equal(t, 1, counter.count("mercadopago/ignored"))
}

func TestHandleMercadoPagoEvent_UnsettledStatusIgnored(t *testing.T) {
	for _, status := range []string{"rejected", "pending", "in_process", "cancelled"} {
		t.Run(status, func(t *testing.T) {
			store := memstore.New()
			seedProfile(store, domain.Profile{ID: "u-1", Email: "ana@example.com"})
			pay := mpPayment()
			pay.Status = status
			svc, counter := newPayments(store, nil, eventParser(pay))

			ack, err := svc.HandleMercadoPagoEvent(context.Background(), nil, http.Header{})
			require.NoError(t, err)
			assert.True(t, ack.Received)
			assert.Equal(t, service.ActionIgnored, ack.Action)
			assert.Equal(t, 1, counter.count("mercadopago/ignored"))
			assert.Zero(t, store.PaymentCount())

			p, err := store.GetProfile(context.Background(), "u-1")
			require.NoError(t, err)
			assert.Equal(t, domain.PaymentStatusPendente, p.PaymentStatus)
		})
	}
}

func TestHandleMercadoPagoEvent_StatusCaseInsensitive(t *testing.T) {
	store := memstore.New()
	seedProfile(store, domain.Profile{ID: "u-1", Email: "ana@example.com"})
	pay := mpPayment()
	pay.Status = "APPROVED"
	svc, _ := newPayments(store, nil, eventParser(pay))

	ack, err := svc.HandleMercadoPagoEvent(context.Background(), nil, http.Header{})
	require.NoError(t, err)
	assert.Equal(t, service.ActionApproved, ack.Action)
	assert.Equal(t, 1, store.PaymentCount())
}
