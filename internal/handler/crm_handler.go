package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/boddenberg/portal-membros-go/internal/domain"
	"github.com/boddenberg/portal-membros-go/internal/service"
)

// ============================================================
// 7. CRM
// ============================================================

func dashboardHandler(crmSvc *service.CRMService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/crm/dashboard")
		defer span.End()

		stats, err := crmSvc.ComputeStats(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

// --- Customers ---

func listCustomersHandler(crmSvc *service.CRMService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/crm/customers")
		defer span.End()

		customers, err := crmSvc.ListCustomers(ctx, r.URL.Query().Get("q"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if customers == nil {
			customers = []domain.Customer{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"customers": customers})
	}
}

func createCustomerHandler(crmSvc *service.CRMService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/admin/crm/customers")
		defer span.End()

		var in domain.CustomerInput
		if !decodeJSON(w, r, &in) {
			return
		}

		customer, err := crmSvc.CreateCustomer(ctx, &in)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, customer)
	}
}

func getCustomerHandler(crmSvc *service.CRMService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/crm/customers/{id}")
		defer span.End()

		customer, err := crmSvc.GetCustomer(ctx, chi.URLParam(r, "id"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, customer)
	}
}

func updateCustomerHandler(crmSvc *service.CRMService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/admin/crm/customers/{id}")
		defer span.End()

		var in domain.CustomerInput
		if !decodeJSON(w, r, &in) {
			return
		}

		customer, err := crmSvc.UpdateCustomer(ctx, chi.URLParam(r, "id"), &in)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, customer)
	}
}

func deleteCustomerHandler(crmSvc *service.CRMService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/admin/crm/customers/{id}")
		defer span.End()

		id := chi.URLParam(r, "id")
		if err := crmSvc.DeleteCustomer(ctx, id); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "Cliente excluído", ID: id})
	}
}

// --- Interactions ---

func listInteractionsHandler(crmSvc *service.CRMService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/crm/customers/{id}/interactions")
		defer span.End()

		interactions, err := crmSvc.ListInteractions(ctx, chi.URLParam(r, "id"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if interactions == nil {
			interactions = []domain.InteractionView{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"interactions": interactions})
	}
}

func createInteractionHandler(crmSvc *service.CRMService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/admin/crm/customers/{id}/interactions")
		defer span.End()

		var in domain.InteractionInput
		if !decodeJSON(w, r, &in) {
			return
		}

		interaction, err := crmSvc.CreateInteraction(ctx, chi.URLParam(r, "id"), actorFromContext(ctx), &in)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, interaction)
	}
}

// --- Deals ---

func createDealHandler(crmSvc *service.CRMService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/admin/crm/customers/{id}/deals")
		defer span.End()

		var in domain.DealInput
		if !decodeJSON(w, r, &in) {
			return
		}

		deal, err := crmSvc.CreateDeal(ctx, chi.URLParam(r, "id"), &in)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, deal)
	}
}

func listDealsHandler(crmSvc *service.CRMService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/crm/deals")
		defer span.End()

		filter := domain.DealFilter{
			Status:     domain.DealStatus(r.URL.Query().Get("status")),
			CustomerID: r.URL.Query().Get("customer_id"),
		}

		deals, err := crmSvc.ListDeals(ctx, filter)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if deals == nil {
			deals = []domain.DealView{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"deals": deals})
	}
}

func getDealHandler(crmSvc *service.CRMService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/crm/deals/{id}")
		defer span.End()

		deal, err := crmSvc.GetDeal(ctx, chi.URLParam(r, "id"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, deal)
	}
}

func updateDealHandler(crmSvc *service.CRMService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/admin/crm/deals/{id}")
		defer span.End()

		var in domain.DealInput
		if !decodeJSON(w, r, &in) {
			return
		}

		deal, err := crmSvc.UpdateDeal(ctx, chi.URLParam(r, "id"), &in)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, deal)
	}
}

func deleteDealHandler(crmSvc *service.CRMService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/admin/crm/deals/{id}")
		defer span.End()

		id := chi.URLParam(r, "id")
		if err := crmSvc.DeleteDeal(ctx, id); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "Negócio excluído", ID: id})
	}
}
