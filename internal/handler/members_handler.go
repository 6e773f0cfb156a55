package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/boddenberg/portal-membros-go/internal/domain"
	"github.com/boddenberg/portal-membros-go/internal/service"
)

// ============================================================
// 3. Membro
// ============================================================

func getMeHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "GET /v1/me")
		defer span.End()

		access := AccessFromContext(r.Context())
		if access.Profile == nil {
			logger.Debug("me: identity without profile", zap.String("user_id", IdentityFromContext(r.Context()).ID))
		}
		writeJSON(w, http.StatusOK, access)
	}
}

func updateMeHandler(accessSvc *service.AccessService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/me")
		defer span.End()

		var req domain.UpdateOwnProfileRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		profile, err := accessSvc.UpdateOwnProfile(ctx, IdentityFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	}
}

func billingHandler(checkoutSvc *service.CheckoutService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/me/billing")
		defer span.End()

		overview, err := checkoutSvc.BillingOverview(ctx, IdentityFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, overview)
	}
}

func checkoutHandler(checkoutSvc *service.CheckoutService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/checkout")
		defer span.End()

		resp, err := checkoutSvc.StartCheckout(ctx, IdentityFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// ============================================================
// 5. Membros (admin)
// ============================================================

func listProfilesHandler(accessSvc *service.AccessService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/profiles")
		defer span.End()

		profiles, err := accessSvc.ListProfiles(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if profiles == nil {
			profiles = []domain.Profile{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"profiles": profiles})
	}
}

func approvePaymentHandler(accessSvc *service.AccessService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/admin/profiles/{id}/approve")
		defer span.End()

		profile, err := accessSvc.ApprovePayment(ctx, chi.URLParam(r, "id"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		logger.Info("payment approved by admin",
			zap.String("profile_id", profile.ID),
			zap.String("admin_id", IdentityFromContext(ctx).ID),
		)
		writeJSON(w, http.StatusOK, profile)
	}
}

func setPaymentStatusHandler(accessSvc *service.AccessService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/admin/profiles/{id}/payment-status")
		defer span.End()

		var req domain.SetPaymentStatusRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		profile, err := accessSvc.SetPaymentStatus(ctx, chi.URLParam(r, "id"), req.PaymentStatus)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	}
}

func toggleAdminHandler(accessSvc *service.AccessService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/admin/profiles/{id}/toggle-admin")
		defer span.End()

		profile, err := accessSvc.ToggleAdmin(ctx, chi.URLParam(r, "id"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		logger.Info("admin flag toggled",
			zap.String("profile_id", profile.ID),
			zap.Bool("is_admin", profile.IsAdmin),
			zap.String("admin_id", IdentityFromContext(ctx).ID),
		)
		writeJSON(w, http.StatusOK, profile)
	}
}
