package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/portal-membros-go/internal/domain"
	"github.com/boddenberg/portal-membros-go/internal/service"
)

// ============================================================
// 4. Tickets de suporte
// ============================================================

func createTicketHandler(ticketSvc *service.TicketService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/tickets")
		defer span.End()

		var req domain.CreateTicketRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		ticket, err := ticketSvc.CreateTicket(ctx, actorFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, ticket)
	}
}

func listTicketsHandler(ticketSvc *service.TicketService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/tickets")
		defer span.End()

		tickets, err := ticketSvc.ListTickets(ctx, IdentityFromContext(ctx).ID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeTickets(w, tickets)
	}
}

func listAllTicketsHandler(ticketSvc *service.TicketService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/admin/tickets")
		defer span.End()

		tickets, err := ticketSvc.ListAllTickets(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeTickets(w, tickets)
	}
}

func writeTickets(w http.ResponseWriter, tickets []domain.TicketView) {
	if tickets == nil {
		tickets = []domain.TicketView{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tickets": tickets})
}

func getTicketHandler(ticketSvc *service.TicketService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/tickets/{ticketId}")
		defer span.End()

		ticketID := chi.URLParam(r, "ticketId")
		span.SetAttributes(attribute.String("ticket.id", ticketID))

		ticket, err := ticketSvc.GetTicketWithMessages(ctx, actorFromContext(ctx), ticketID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, ticket)
	}
}

func addMessageHandler(ticketSvc *service.TicketService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/tickets/{ticketId}/messages")
		defer span.End()

		ticketID := chi.URLParam(r, "ticketId")
		span.SetAttributes(attribute.String("ticket.id", ticketID))

		var req domain.AddMessageRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		msg, err := ticketSvc.AddMessage(ctx, actorFromContext(ctx), ticketID, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, msg)
	}
}

func updateTicketStatusHandler(ticketSvc *service.TicketService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/tickets/{ticketId}/status")
		defer span.End()

		ticketID := chi.URLParam(r, "ticketId")
		span.SetAttributes(attribute.String("ticket.id", ticketID))

		var req domain.UpdateTicketStatusRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		ticket, err := ticketSvc.UpdateStatus(ctx, actorFromContext(ctx), ticketID, req.Status)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, ticket)
	}
}

func deleteTicketHandler(ticketSvc *service.TicketService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/admin/tickets/{ticketId}")
		defer span.End()

		ticketID := chi.URLParam(r, "ticketId")
		if err := ticketSvc.DeleteTicket(ctx, actorFromContext(ctx), ticketID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "Ticket excluído", ID: ticketID})
	}
}
