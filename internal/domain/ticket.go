package domain

import "time"

// ============================================================
// Support tickets
// ============================================================

// TicketStatus is the state of a support ticket.
type TicketStatus string

const (
	TicketStatusAberto     TicketStatus = "aberto"
	TicketStatusRespondido TicketStatus = "respondido"
	TicketStatusFechado    TicketStatus = "fechado"
	// TicketStatusUrgente is only rendered, never written.
	TicketStatusUrgente TicketStatus = "urgente"
)

// Writable reports whether s may be stored by a status update.
func (s TicketStatus) Writable() bool {
	switch s {
	case TicketStatusAberto, TicketStatusRespondido, TicketStatusFechado:
		return true
	}
	return false
}

// Label is the human-readable status shown in the portal.
func (s TicketStatus) Label() string {
	switch s {
	case TicketStatusAberto:
		return "Aberto"
	case TicketStatusRespondido:
		return "Respondido"
	case TicketStatusFechado:
		return "Fechado"
	case TicketStatusUrgente:
		return "Urgente"
	}
	return string(s)
}

// Ticket is a support request opened by a member.
type Ticket struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Status      TicketStatus `json:"status"`
	UserID      string       `json:"user_id"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// TicketView is a ticket joined with its owner's profile fields.
type TicketView struct {
	Ticket
	UserName     string `json:"user_name"`
	UserEmail    string `json:"user_email"`
	UserWhatsApp string `json:"user_whatsapp"`
}

// TicketResponse is one immutable message in a ticket thread.
type TicketResponse struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticket_id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}

// TicketMessage is a response enriched with the author display name.
type TicketMessage struct {
	TicketResponse
	AuthorName string `json:"author_name"`
}

// TicketWithMessages is a ticket plus its thread, oldest message first.
type TicketWithMessages struct {
	Ticket   TicketView      `json:"ticket"`
	Messages []TicketMessage `json:"messages"`
}

// TicketFilter narrows ticket listings. An empty UserID lists all tickets.
type TicketFilter struct {
	UserID string
}

// CreateTicketRequest is the body for POST /v1/tickets.
type CreateTicketRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// AddMessageRequest is the body for POST /v1/tickets/{id}/messages.
type AddMessageRequest struct {
	Content string `json:"content"`
}

// UpdateTicketStatusRequest is the body for PUT /v1/tickets/{id}/status.
type UpdateTicketStatusRequest struct {
	Status TicketStatus `json:"status"`
}
