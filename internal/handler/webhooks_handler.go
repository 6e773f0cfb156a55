package handler

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/portal-membros-go/internal/service"
)

// ============================================================
// 2. Webhooks de pagamento
// ============================================================

// Provider webhooks must see a non-2xx answer on any failure so they retry.

func stripeWebhookHandler(paymentSvc *service.PaymentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/webhooks/stripe")
		defer span.End()

		payload, ok := readRaw(w, r)
		if !ok {
			return
		}

		ack, err := paymentSvc.HandleStripeEvent(ctx, payload, r.Header)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.String("webhook.action", ack.Action))
		writeJSON(w, http.StatusOK, ack)
	}
}

func mercadoPagoWebhookHandler(paymentSvc *service.PaymentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/webhooks/mercadopago")
		defer span.End()

		payload, ok := readRaw(w, r)
		if !ok {
			return
		}

		ack, err := paymentSvc.HandleMercadoPagoEvent(ctx, payload, r.Header)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.String("webhook.action", ack.Action))
		writeJSON(w, http.StatusOK, ack)
	}
}
