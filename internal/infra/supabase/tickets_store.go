package supabase

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/boddenberg/portal-membros-go/internal/domain"
)

// ============================================================
// Support tickets & responses
// ============================================================

const ticketSelect = "select=*,profiles(full_name,email,whatsapp)"

type ticketRow struct {
	domain.Ticket
	Profile *profileEmbed `json:"profiles"`
}

func (r ticketRow) view() domain.TicketView {
	v := domain.TicketView{Ticket: r.Ticket}
	if r.Profile != nil {
		v.UserName = r.Profile.FullName
		v.UserEmail = r.Profile.Email
		v.UserWhatsApp = r.Profile.WhatsApp
	}
	return v
}

type responseRow struct {
	domain.TicketResponse
	Profile *profileEmbed `json:"profiles"`
}

func (c *Client) CreateTicket(ctx context.Context, t *domain.Ticket) (*domain.Ticket, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateTicket")
	defer span.End()

	row := map[string]any{
		"title":       t.Title,
		"description": t.Description,
		"status":      t.Status,
		"user_id":     t.UserID,
	}

	var rows []domain.Ticket
	if err := c.write(ctx, "create_ticket", http.MethodPost, "support_tickets", row, preferRepresentation, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.ErrStore{Op: "create_ticket", Err: errEmptyRepresentation}
	}
	return &rows[0], nil
}

func (c *Client) GetTicket(ctx context.Context, id string) (*domain.TicketView, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetTicket")
	defer span.End()
	span.SetAttributes(attribute.String("ticket.id", id))

	var rows []ticketRow
	if err := c.read(ctx, "get_ticket", query("support_tickets", ticketSelect, "id="+eq(id), "limit=1"), &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "ticket", ID: id}
	}
	v := rows[0].view()
	return &v, nil
}

func (c *Client) ListTickets(ctx context.Context, filter domain.TicketFilter) ([]domain.TicketView, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListTickets")
	defer span.End()

	var userFilter string
	if filter.UserID != "" {
		userFilter = "user_id=" + eq(filter.UserID)
	}

	var rows []ticketRow
	if err := c.read(ctx, "list_tickets", query("support_tickets", ticketSelect, userFilter, "order=created_at.desc"), &rows); err != nil {
		return nil, err
	}

	views := make([]domain.TicketView, 0, len(rows))
	for _, r := range rows {
		views = append(views, r.view())
	}
	return views, nil
}

func (c *Client) UpdateTicketStatus(ctx context.Context, id string, status domain.TicketStatus) (*domain.Ticket, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateTicketStatus")
	defer span.End()
	span.SetAttributes(attribute.String("ticket.id", id), attribute.String("ticket.status", string(status)))

	row := map[string]any{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}

	var rows []domain.Ticket
	if err := c.write(ctx, "update_ticket_status", http.MethodPatch, query("support_tickets", "id="+eq(id)), row, preferRepresentation, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "ticket", ID: id}
	}
	return &rows[0], nil
}

// DeleteTicket removes the ticket and its responses in one transaction
// through the delete_ticket_cascade function.
func (c *Client) DeleteTicket(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteTicket")
	defer span.End()
	span.SetAttributes(attribute.String("ticket.id", id))

	var deleted bool
	if err := c.rpc(ctx, "delete_ticket_cascade", map[string]any{"p_ticket_id": id}, &deleted); err != nil {
		return err
	}
	if !deleted {
		return &domain.ErrNotFound{Resource: "ticket", ID: id}
	}
	return nil
}

func (c *Client) CreateTicketResponse(ctx context.Context, r *domain.TicketResponse) (*domain.TicketResponse, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateTicketResponse")
	defer span.End()

	row := map[string]any{
		"ticket_id": r.TicketID,
		"user_id":   r.UserID,
		"content":   r.Content,
		"is_admin":  r.IsAdmin,
	}

	var rows []domain.TicketResponse
	if err := c.write(ctx, "create_ticket_response", http.MethodPost, "ticket_responses", row, preferRepresentation, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.ErrStore{Op: "create_ticket_response", Err: errEmptyRepresentation}
	}
	return &rows[0], nil
}

func (c *Client) ListTicketResponses(ctx context.Context, ticketID string) ([]domain.TicketMessage, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListTicketResponses")
	defer span.End()
	span.SetAttributes(attribute.String("ticket.id", ticketID))

	var rows []responseRow
	path := query("ticket_responses", "select=*,profiles(full_name,email)", "ticket_id="+eq(ticketID), "order=created_at.asc")
	if err := c.read(ctx, "list_ticket_responses", path, &rows); err != nil {
		return nil, err
	}

	msgs := make([]domain.TicketMessage, 0, len(rows))
	for _, r := range rows {
		msgs = append(msgs, domain.TicketMessage{TicketResponse: r.TicketResponse, AuthorName: r.Profile.displayName()})
	}
	return msgs, nil
}
