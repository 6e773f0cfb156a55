package domain

import "time"

// ============================================================
// Outbound notifications & contact form
// ============================================================

// Notification events sent to admin-configured webhooks.
const (
	EventTicketClosed     = "ticket.closed"
	EventContactSubmitted = "contact.submitted"
)

// Notification is a fire-and-forget POST to an admin-configured URL.
type Notification struct {
	ID        string    `json:"id"`
	Event     string    `json:"event"`
	URL       string    `json:"-"`
	Data      any       `json:"data"`
	CreatedAt time.Time `json:"created_at"`
}

// TicketClosedData is the payload of a ticket.closed notification.
type TicketClosedData struct {
	TicketID     string    `json:"ticket_id"`
	Title        string    `json:"title"`
	Status       string    `json:"status"`
	UserName     string    `json:"user_name"`
	UserEmail    string    `json:"user_email"`
	UserWhatsApp string    `json:"user_whatsapp"`
	ClosedBy     string    `json:"closed_by"`
	ClosedAt     time.Time `json:"closed_at"`
}

// ContactForm is the public contact form submission.
type ContactForm struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Company string `json:"company,omitempty"`
	Service string `json:"service,omitempty"`
	Message string `json:"message"`
}
