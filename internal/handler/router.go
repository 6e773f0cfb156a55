package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/boddenberg/portal-membros-go/internal/domain"
	"github.com/boddenberg/portal-membros-go/internal/infra/observability"
	"github.com/boddenberg/portal-membros-go/internal/service"
)

var tracer = otel.Tracer("handler")

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services groups the use cases exposed over HTTP.
type Services struct {
	Tokens   *service.TokenVerifier
	Access   *service.AccessService
	Tickets  *service.TicketService
	CRM      *service.CRMService
	Payments *service.PaymentService
	Checkout *service.CheckoutService
	Config   *service.SystemConfigService
	Contact  *service.ContactService
	Store    Pinger
	// StoreName labels the store in /healthz ("supabase", "postgres", "memory").
	StoreName string
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svc *Services, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger, metrics))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svc.Store, svc.StoreName))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// =============================================
		// 1. Público
		// POST /v1/contact
		// GET  /v1/config/public
		// =============================================
		r.Post("/contact", contactHandler(svc.Contact, logger))
		r.Get("/config/public", publicConfigHandler(svc.Config, logger))

		// =============================================
		// 2. Webhooks de pagamento (assinatura, sem JWT)
		// POST /v1/webhooks/stripe
		// POST /v1/webhooks/mercadopago
		// =============================================
		r.Post("/webhooks/stripe", stripeWebhookHandler(svc.Payments, logger))
		r.Post("/webhooks/mercadopago", mercadoPagoWebhookHandler(svc.Payments, logger))

		// --- Authenticated routes ---
		r.Group(func(r chi.Router) {
			r.Use(JWTAuthMiddleware(svc.Tokens, svc.Access, logger))

			// =============================================
			// 3. Membro
			// GET /v1/me
			// PUT /v1/me
			// GET /v1/me/billing
			// POST /v1/checkout
			// =============================================
			r.Get("/me", getMeHandler(logger))
			r.Put("/me", updateMeHandler(svc.Access, logger))
			r.Get("/me/billing", billingHandler(svc.Checkout, logger))
			r.Post("/checkout", checkoutHandler(svc.Checkout, logger))

			// =============================================
			// 4. Tickets de suporte
			// POST /v1/tickets
			// GET  /v1/tickets
			// GET  /v1/tickets/{ticketId}
			// POST /v1/tickets/{ticketId}/messages
			// PUT  /v1/tickets/{ticketId}/status
			// =============================================
			r.Post("/tickets", createTicketHandler(svc.Tickets, logger))
			r.Get("/tickets", listTicketsHandler(svc.Tickets, logger))
			r.Get("/tickets/{ticketId}", getTicketHandler(svc.Tickets, logger))
			r.Post("/tickets/{ticketId}/messages", addMessageHandler(svc.Tickets, logger))
			r.Put("/tickets/{ticketId}/status", updateTicketStatusHandler(svc.Tickets, logger))

			// --- Admin routes ---
			r.Route("/admin", func(r chi.Router) {
				r.Use(RequireAdmin(logger))

				// =============================================
				// 5. Membros
				// =============================================
				r.Get("/profiles", listProfilesHandler(svc.Access, logger))
				r.Post("/profiles/{id}/approve", approvePaymentHandler(svc.Access, logger))
				r.Put("/profiles/{id}/payment-status", setPaymentStatusHandler(svc.Access, logger))
				r.Post("/profiles/{id}/toggle-admin", toggleAdminHandler(svc.Access, logger))

				// =============================================
				// 6. Tickets (admin)
				// =============================================
				r.Get("/tickets", listAllTicketsHandler(svc.Tickets, logger))
				r.Delete("/tickets/{ticketId}", deleteTicketHandler(svc.Tickets, logger))

				// =============================================
				// 7. CRM
				// =============================================
				r.Route("/crm", func(r chi.Router) {
					r.Get("/dashboard", dashboardHandler(svc.CRM, logger))

					r.Get("/customers", listCustomersHandler(svc.CRM, logger))
					r.Post("/customers", createCustomerHandler(svc.CRM, logger))
					r.Get("/customers/{id}", getCustomerHandler(svc.CRM, logger))
					r.Put("/customers/{id}", updateCustomerHandler(svc.CRM, logger))
					r.Delete("/customers/{id}", deleteCustomerHandler(svc.CRM, logger))
					r.Get("/customers/{id}/interactions", listInteractionsHandler(svc.CRM, logger))
					r.Post("/customers/{id}/interactions", createInteractionHandler(svc.CRM, logger))
					r.Post("/customers/{id}/deals", createDealHandler(svc.CRM, logger))

					r.Get("/deals", listDealsHandler(svc.CRM, logger))
					r.Get("/deals/{id}", getDealHandler(svc.CRM, logger))
					r.Put("/deals/{id}", updateDealHandler(svc.CRM, logger))
					r.Delete("/deals/{id}", deleteDealHandler(svc.CRM, logger))
				})

				// =============================================
				// 8. Configuração & métricas
				// =============================================
				r.Get("/config", getConfigHandler(svc.Config, logger))
				r.Put("/config", saveConfigHandler(svc.Config, logger))
				r.Get("/metrics/webhooks", webhookMetricsHandler(metrics))
			})
		})
	})

	return r
}

// ============================================================
// Operational handlers
// ============================================================

func healthzHandler(store Pinger, storeName string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "portal-api", Status: "healthy", LatencyMs: 0, LastChecked: now},
		}

		if store != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()

			start := time.Now()
			err := store.Ping(ctx)
			status := "healthy"
			if err != nil {
				status = "unhealthy"
			}
			services = append(services, domain.ServiceHealth{
				Name: storeName, Status: status,
				LatencyMs: time.Since(start).Milliseconds(), LastChecked: now,
			})
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		status := http.StatusOK
		if overallStatus == "unhealthy" {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func webhookMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.WebhookSnapshot())
	}
}
