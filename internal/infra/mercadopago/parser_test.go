package mercadopago

import (
	"encoding/hex"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boddenberg/portal-membros-go/internal/domain"
)

const paymentNotification = `{
  "type": "payment",
  "data": {"id": "123456", "transaction_amount": 49.9, "payment_method_id": "pix"},
  "payer": {"email": " Ana@Example.com "},
  "external_reference": "user-1"
}`

func signedHeader(secret, dataID, requestID, ts string) http.Header {
	h := http.Header{}
	h.Set("x-request-id", requestID)
	h.Set("x-signature", "ts="+ts+",v1="+hex.EncodeToString(Sign(secret, dataID, requestID, ts)))
	return h
}

func TestParseWebhook_Payment(t *testing.T) {
	ev, err := NewParser("").ParseWebhook([]byte(paymentNotification), http.Header{})
	require.NoError(t, err)

	pay, ok := ev.(*domain.ProviderPayment)
	require.True(t, ok, "unexpected event %T", ev)
	assert.Equal(t, "123456", pay.PaymentID)
	assert.InDelta(t, 49.9, pay.Amount, 0.0001)
	assert.Equal(t, "ana@example.com", pay.PayerEmail)
	assert.Equal(t, "user-1", pay.ExternalReference)
	assert.Equal(t, "pix", pay.Method)
	assert.Equal(t, "approved", pay.Status)
}

func TestParseWebhook_NumericID(t *testing.T) {
	payload := `{"type":"payment","data":{"id":987654321,"transaction_amount":10},"payer":{"email":"a@b.com"}}`
	ev, err := NewParser("").ParseWebhook([]byte(payload), http.Header{})
	require.NoError(t, err)
	assert.Equal(t, "987654321", ev.(*domain.ProviderPayment).PaymentID)
}

func TestParseWebhook_NonPaymentIgnored(t *testing.T) {
	ev, err := NewParser("").ParseWebhook([]byte(`{"type":"merchant_order","data":{"id":"1"}}`), http.Header{})
	require.NoError(t, err)
	ignored, ok := ev.(*domain.IgnoredEvent)
	require.True(t, ok)
	assert.Equal(t, "mercadopago", ignored.Source)
	assert.Equal(t, "merchant_order", ignored.Type)
}

func TestParseWebhook_Validation(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		field   string
	}{
		{"invalid json", `{"type":`, "payload"},
		{"missing id", `{"type":"payment","data":{},"payer":{"email":"a@b.com"}}`, "data.id"},
		{"missing email", `{"type":"payment","data":{"id":"1"}}`, "payer.email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParser("").ParseWebhook([]byte(tt.payload), http.Header{})
			var verr *domain.ErrValidation
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestParseWebhook_Signature(t *testing.T) {
	p := NewParser("mp-secret")

	_, err := p.ParseWebhook([]byte(paymentNotification), signedHeader("mp-secret", "123456", "req-1", "1704908010"))
	require.NoError(t, err)

	_, err = p.ParseWebhook([]byte(paymentNotification), signedHeader("other", "123456", "req-1", "1704908010"))
	var verr *domain.ErrValidation
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "x-signature", verr.Field)

	_, err = p.ParseWebhook([]byte(paymentNotification), http.Header{})
	require.ErrorAs(t, err, &verr)

	bad := http.Header{}
	bad.Set("x-signature", "ts=1,v1=zz")
	_, err = p.ParseWebhook([]byte(paymentNotification), bad)
	require.ErrorAs(t, err, &verr)
}
