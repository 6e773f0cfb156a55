// Package mercadopago decodes Mercado Pago payment notifications.
package mercadopago

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/boddenberg/portal-membros-go/internal/domain"
	"github.com/boddenberg/portal-membros-go/internal/port"
)

var _ port.WebhookParser = (*Parser)(nil)

const (
	// EventPayment is the only notification type the portal records.
	EventPayment = "payment"

	defaultStatus = domain.ProviderStatusApproved
)

// Parser validates Mercado Pago webhooks. When a secret is configured the
// x-signature header is required.
type Parser struct {
	secret string
}

// NewParser creates a parser. An empty secret disables signature checks.
func NewParser(secret string) *Parser {
	return &Parser{secret: secret}
}

// ParseWebhook decodes a notification. Non-payment types become IgnoredEvent.
func (p *Parser) ParseWebhook(payload []byte, header http.Header) (domain.PaymentEvent, error) {
	if !gjson.ValidBytes(payload) {
		return nil, &domain.ErrValidation{Field: "payload", Message: "JSON inválido"}
	}
	doc := gjson.ParseBytes(payload)

	dataID := doc.Get("data.id").String()
	if p.secret != "" {
		if err := p.verify(dataID, header); err != nil {
			return nil, err
		}
	}

	eventType := doc.Get("type").String()
	if eventType == "" {
		eventType = doc.Get("topic").String()
	}
	if eventType != EventPayment {
		return &domain.IgnoredEvent{Source: "mercadopago", Type: eventType}, nil
	}

	if dataID == "" {
		return nil, &domain.ErrValidation{Field: "data.id", Message: "id do pagamento ausente"}
	}

	email := strings.ToLower(strings.TrimSpace(firstString(doc, "payer.email", "data.payer.email")))
	if email == "" {
		return nil, &domain.ErrValidation{Field: "payer.email", Message: "e-mail do pagador ausente"}
	}

	status := firstString(doc, "data.status", "status")
	if status == "" {
		status = defaultStatus
	}

	return &domain.ProviderPayment{
		PaymentID:         dataID,
		Amount:            firstFloat(doc, "data.transaction_amount", "transaction_amount"),
		PayerEmail:        email,
		ExternalReference: firstString(doc, "external_reference", "data.external_reference"),
		Method:            firstString(doc, "data.payment_method_id", "payment_method_id"),
		Status:            status,
	}, nil
}

// verify checks x-signature ("ts=...,v1=...") against the manifest
// id:<data.id>;request-id:<x-request-id>;ts:<ts>;
func (p *Parser) verify(dataID string, header http.Header) error {
	invalid := &domain.ErrValidation{Field: "x-signature", Message: "assinatura inválida"}

	var ts, v1 string
	for _, part := range strings.Split(header.Get("x-signature"), ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "ts":
			ts = value
		case "v1":
			v1 = value
		}
	}
	if ts == "" || v1 == "" {
		return invalid
	}

	got, err := hex.DecodeString(v1)
	if err != nil {
		return invalid
	}
	if !hmac.Equal(got, Sign(p.secret, dataID, header.Get("x-request-id"), ts)) {
		return invalid
	}
	return nil
}

// Sign computes the raw HMAC-SHA256 of a notification manifest.
func Sign(secret, dataID, requestID, ts string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = fmt.Fprintf(mac, "id:%s;request-id:%s;ts:%s;", strings.ToLower(dataID), requestID, ts)
	return mac.Sum(nil)
}

func firstString(doc gjson.Result, paths ...string) string {
	for _, path := range paths {
		if v := doc.Get(path); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

func firstFloat(doc gjson.Result, paths ...string) float64 {
	for _, path := range paths {
		if v := doc.Get(path); v.Exists() {
			return v.Float()
		}
	}
	return 0
}
