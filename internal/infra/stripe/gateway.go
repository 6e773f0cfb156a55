// Package stripe adapts Stripe Checkout and Stripe webhooks to the
// checkout and webhook ports.
package stripe

import (
	"context"
	"errors"
	"net/http"

	"github.com/sony/gobreaker"
	stripego "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/portal-membros-go/internal/domain"
	"github.com/boddenberg/portal-membros-go/internal/infra/resilience"
	"github.com/boddenberg/portal-membros-go/internal/port"
)

var tracer = otel.Tracer("stripe")

var (
	_ port.CheckoutProvider = (*Gateway)(nil)
	_ port.WebhookParser    = (*Gateway)(nil)
)

// EventCheckoutCompleted is the only Stripe event the portal acts on.
const EventCheckoutCompleted = "checkout.session.completed"

// NewAPI builds a Stripe client without network retries. baseURL overrides
// the API endpoint when non-empty.
func NewAPI(secretKey, baseURL string, httpClient *http.Client) *client.API {
	cfg := &stripego.BackendConfig{
		HTTPClient:        httpClient,
		MaxNetworkRetries: stripego.Int64(0),
		LeveledLogger:     &stripego.LeveledLogger{Level: stripego.LevelError},
	}
	if baseURL != "" {
		cfg.URL = stripego.String(baseURL)
	}

	api := &client.API{}
	api.Init(secretKey, &stripego.Backends{
		API:     stripego.GetBackendWithConfig(stripego.APIBackend, cfg),
		Connect: stripego.GetBackend(stripego.ConnectBackend),
		Uploads: stripego.GetBackend(stripego.UploadsBackend),
	})
	return api
}

// Gateway creates checkout sessions and verifies Stripe webhooks.
type Gateway struct {
	api           *client.API
	webhookSecret string
	cb            *gobreaker.CircuitBreaker
	logger        *zap.Logger
}

// NewGateway creates a gateway. webhookSecret is the endpoint signing
// secret (whsec_...), never the API key.
func NewGateway(api *client.API, webhookSecret string, cb *gobreaker.CircuitBreaker, logger *zap.Logger) *Gateway {
	return &Gateway{api: api, webhookSecret: webhookSecret, cb: cb, logger: logger}
}

// CreateCheckoutSession opens a subscription-mode checkout for req.PriceID.
// An existing Stripe customer with the same e-mail is reused.
func (g *Gateway) CreateCheckoutSession(ctx context.Context, req *domain.CheckoutRequest) (*domain.CheckoutSession, error) {
	ctx, span := tracer.Start(ctx, "Stripe.CreateCheckoutSession")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", req.UserID))

	return resilience.Execute(g.cb, func() (*domain.CheckoutSession, error) {
		customerID, err := g.findCustomer(ctx, req.Email)
		if err != nil {
			return nil, &domain.ErrExternalService{Service: "stripe", Err: err}
		}

		params := &stripego.CheckoutSessionParams{
			Mode: stripego.String(string(stripego.CheckoutSessionModeSubscription)),
			LineItems: []*stripego.CheckoutSessionLineItemParams{
				{Price: stripego.String(req.PriceID), Quantity: stripego.Int64(1)},
			},
			SuccessURL:        stripego.String(req.SuccessURL),
			CancelURL:         stripego.String(req.CancelURL),
			ClientReferenceID: stripego.String(req.UserID),
			SubscriptionData: &stripego.CheckoutSessionSubscriptionDataParams{
				Metadata: map[string]string{"user_id": req.UserID},
			},
		}
		if customerID != "" {
			params.Customer = stripego.String(customerID)
		} else {
			params.CustomerEmail = stripego.String(req.Email)
		}
		params.AddMetadata("user_id", req.UserID)
		params.Context = ctx

		sess, err := g.api.CheckoutSessions.New(params)
		if err != nil {
			g.logger.Warn("stripe: checkout session failed", zap.String("user_id", req.UserID), zap.Error(err))
			return nil, &domain.ErrExternalService{Service: "stripe", Err: err}
		}

		g.logger.Info("stripe: checkout session created",
			zap.String("user_id", req.UserID),
			zap.String("session_id", sess.ID),
			zap.Bool("existing_customer", customerID != ""),
		)
		return &domain.CheckoutSession{ID: sess.ID, URL: sess.URL, CustomerRef: customerID}, nil
	})
}

func (g *Gateway) findCustomer(ctx context.Context, email string) (string, error) {
	params := &stripego.CustomerListParams{Email: stripego.String(email)}
	params.Limit = stripego.Int64(1)
	params.Context = ctx

	iter := g.api.Customers.List(params)
	for iter.Next() {
		return iter.Customer().ID, nil
	}
	return "", iter.Err()
}

// ParseWebhook verifies the Stripe-Signature header and decodes the event.
func (g *Gateway) ParseWebhook(payload []byte, header http.Header) (domain.PaymentEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, header.Get("Stripe-Signature"), g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		if errors.Is(err, webhook.ErrNotSigned) || errors.Is(err, webhook.ErrInvalidHeader) ||
			errors.Is(err, webhook.ErrNoValidSignature) || errors.Is(err, webhook.ErrTooOld) {
			return nil, &domain.ErrValidation{Field: "Stripe-Signature", Message: "assinatura inválida"}
		}
		return nil, &domain.ErrValidation{Field: "payload", Message: "evento inválido"}
	}

	if string(event.Type) != EventCheckoutCompleted {
		return &domain.IgnoredEvent{Source: "stripe", Type: string(event.Type)}, nil
	}

	obj := event.Data.Raw
	userID := gjson.GetBytes(obj, "metadata.user_id").String()
	if userID == "" {
		return nil, &domain.ErrValidation{Field: "metadata.user_id", Message: "user_id ausente no checkout"}
	}

	email := gjson.GetBytes(obj, "customer_details.email").String()
	if email == "" {
		email = gjson.GetBytes(obj, "customer_email").String()
	}

	return &domain.CheckoutCompleted{
		EventID:     event.ID,
		SessionID:   gjson.GetBytes(obj, "id").String(),
		UserID:      userID,
		Email:       email,
		CustomerRef: gjson.GetBytes(obj, "customer").String(),
		AmountTotal: gjson.GetBytes(obj, "amount_total").Int(),
	}, nil
}
