package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/portal-membros-go/internal/domain"
	"github.com/boddenberg/portal-membros-go/internal/port"
)

var ticketTracer = otel.Tracer("service/tickets")

// ConfigLoader returns the current system configuration aggregate.
type ConfigLoader interface {
	Load(ctx context.Context) (*domain.SystemConfig, error)
}

// TicketService manages support tickets and their threads.
type TicketService struct {
	store    port.TicketStore
	config   ConfigLoader
	notifier port.Notifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewTicketService creates a ticket service.
func NewTicketService(store port.TicketStore, config ConfigLoader, notifier port.Notifier, logger *zap.Logger) *TicketService {
	return &TicketService{
		store:    store,
		config:   config,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

func requireActor(actor domain.Actor) error {
	if actor.ID == "" {
		return &domain.ErrUnauthorized{Message: "Usuário não autenticado"}
	}
	return nil
}

func (s *TicketService) CreateTicket(ctx context.Context, actor domain.Actor, req *domain.CreateTicketRequest) (*domain.Ticket, error) {
	ctx, span := ticketTracer.Start(ctx, "TicketService.CreateTicket")
	defer span.End()

	if err := requireActor(actor); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, &domain.ErrValidation{Field: "title", Message: "Título é obrigatório"}
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		return nil, &domain.ErrValidation{Field: "description", Message: "Descrição é obrigatória"}
	}

	t, err := s.store.CreateTicket(ctx, &domain.Ticket{
		Title:       title,
		Description: description,
		Status:      domain.TicketStatusAberto,
		UserID:      actor.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("create ticket: %w", err)
	}

	s.logger.Info("ticket created", zap.String("ticket_id", t.ID), zap.String("user_id", actor.ID))
	return t, nil
}

// ListTickets returns the owner's tickets, newest first.
func (s *TicketService) ListTickets(ctx context.Context, ownerID string) ([]domain.TicketView, error) {
	ctx, span := ticketTracer.Start(ctx, "TicketService.ListTickets")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", ownerID))

	if ownerID == "" {
		return nil, &domain.ErrUnauthorized{Message: "Usuário não autenticado"}
	}
	return s.store.ListTickets(ctx, domain.TicketFilter{UserID: ownerID})
}

// ListAllTickets returns every ticket, newest first.
func (s *TicketService) ListAllTickets(ctx context.Context) ([]domain.TicketView, error) {
	ctx, span := ticketTracer.Start(ctx, "TicketService.ListAllTickets")
	defer span.End()

	return s.store.ListTickets(ctx, domain.TicketFilter{})
}

// loadVisible reads a ticket the actor may see.
func (s *TicketService) loadVisible(ctx context.Context, actor domain.Actor, ticketID string) (*domain.TicketView, error) {
	t, err := s.store.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin && t.UserID != actor.ID {
		return nil, &domain.ErrForbidden{Action: "acessar ticket de outro usuário"}
	}
	return t, nil
}

func (s *TicketService) GetTicketWithMessages(ctx context.Context, actor domain.Actor, ticketID string) (*domain.TicketWithMessages, error) {
	ctx, span := ticketTracer.Start(ctx, "TicketService.GetTicketWithMessages")
	defer span.End()
	span.SetAttributes(attribute.String("ticket.id", ticketID))

	if err := requireActor(actor); err != nil {
		return nil, err
	}
	t, err := s.loadVisible(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}

	msgs, err := s.store.ListTicketResponses(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	if msgs == nil {
		msgs = []domain.TicketMessage{}
	}
	return &domain.TicketWithMessages{Ticket: *t, Messages: msgs}, nil
}

// AddMessage appends a response. The is_admin flag comes from the actor.
func (s *TicketService) AddMessage(ctx context.Context, actor domain.Actor, ticketID string, req *domain.AddMessageRequest) (*domain.TicketResponse, error) {
	ctx, span := ticketTracer.Start(ctx, "TicketService.AddMessage")
	defer span.End()
	span.SetAttributes(attribute.String("ticket.id", ticketID), attribute.Bool("actor.admin", actor.IsAdmin))

	if err := requireActor(actor); err != nil {
		return nil, err
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, &domain.ErrValidation{Field: "content", Message: "Mensagem não pode ser vazia"}
	}

	t, err := s.loadVisible(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if t.Status == domain.TicketStatusFechado {
		return nil, &domain.ErrTicketClosed{TicketID: ticketID}
	}

	r, err := s.store.CreateTicketResponse(ctx, &domain.TicketResponse{
		TicketID: ticketID,
		UserID:   actor.ID,
		Content:  content,
		IsAdmin:  actor.IsAdmin,
	})
	if err != nil {
		return nil, fmt.Errorf("create response: %w", err)
	}
	return r, nil
}

// UpdateStatus moves a ticket between aberto, respondido and fechado.
// Owners may only close their own ticket. Closing notifies the configured
// ticket webhook after the write.
func (s *TicketService) UpdateStatus(ctx context.Context, actor domain.Actor, ticketID string, status domain.TicketStatus) (*domain.Ticket, error) {
	ctx, span := ticketTracer.Start(ctx, "TicketService.UpdateStatus")
	defer span.End()
	span.SetAttributes(attribute.String("ticket.id", ticketID), attribute.String("ticket.status", string(status)))

	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !status.Writable() {
		return nil, &domain.ErrValidation{Field: "status", Message: "Status inválido"}
	}

	current, err := s.loadVisible(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin && status != domain.TicketStatusFechado {
		return nil, &domain.ErrForbidden{Action: "alterar status do ticket"}
	}

	updated, err := s.store.UpdateTicketStatus(ctx, ticketID, status)
	if err != nil {
		return nil, fmt.Errorf("update ticket status: %w", err)
	}

	if status == domain.TicketStatusFechado && current.Status != domain.TicketStatusFechado {
		s.notifyClosed(ctx, actor, current, updated)
	}
	return updated, nil
}

func (s *TicketService) notifyClosed(ctx context.Context, actor domain.Actor, view *domain.TicketView, t *domain.Ticket) {
	cfg, err := s.config.Load(ctx)
	if err != nil {
		s.logger.Warn("ticket closed: config unavailable, notification skipped", zap.String("ticket_id", t.ID), zap.Error(err))
		return
	}
	url := cfg.TicketWebhook()
	if url == "" {
		return
	}

	s.notifier.Dispatch(domain.Notification{
		Event: domain.EventTicketClosed,
		URL:   url,
		Data: domain.TicketClosedData{
			TicketID:     t.ID,
			Title:        t.Title,
			Status:       string(t.Status),
			UserName:     view.UserName,
			UserEmail:    view.UserEmail,
			UserWhatsApp: view.UserWhatsApp,
			ClosedBy:     actor.Name,
			ClosedAt:     s.now().UTC(),
		},
	})
}

// DeleteTicket removes a ticket and its responses atomically. Admin only.
func (s *TicketService) DeleteTicket(ctx context.Context, actor domain.Actor, ticketID string) error {
	ctx, span := ticketTracer.Start(ctx, "TicketService.DeleteTicket")
	defer span.End()
	span.SetAttributes(attribute.String("ticket.id", ticketID))

	if !actor.IsAdmin {
		return &domain.ErrForbidden{Action: "excluir ticket"}
	}
	if err := s.store.DeleteTicket(ctx, ticketID); err != nil {
		return fmt.Errorf("delete ticket: %w", err)
	}

	s.logger.Info("ticket deleted", zap.String("ticket_id", ticketID), zap.String("by", actor.ID))
	return nil
}
