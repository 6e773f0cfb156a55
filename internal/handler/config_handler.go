package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/boddenberg/portal-membros-go/internal/domain"
	"github.com/boddenberg/portal-membros-go/internal/service"
)

// ============================================================
// 1. Público
// ============================================================

func contactHandler(contactSvc *service.ContactService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/contact")
		defer span.End()

		var form domain.ContactForm
		if !decodeJSON(w, r, &form) {
			return
		}

		if err := contactSvc.Submit(ctx, &form); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusAccepted, domain.SuccessResponse{Message: "Mensagem enviada com sucesso"})
	}
}

func publicConfigHandler(configSvc *service.SystemConfigService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/config/public")
		defer span.End()

		view, err := configSvc.PublicView(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

// ============================================================
// 8. Configuração (admin)
// ============================================================

func getConfigHandler(configSvc *service.SystemConfigService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/config")
		defer span.End()

		cfg, err := configSvc.Load(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	}
}

func saveConfigHandler(configSvc *service.SystemConfigService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/admin/config")
		defer span.End()

		var upd domain.SystemConfigUpdate
		if !decodeJSON(w, r, &upd) {
			return
		}

		cfg, err := configSvc.Save(ctx, actorFromContext(ctx), &upd)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	}
}
