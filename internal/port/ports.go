// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"net/http"

	"github.com/boddenberg/portal-membros-go/internal/domain"
)

// ProfileStore persists member profiles.
type ProfileStore interface {
	GetProfile(ctx context.Context, id string) (*domain.Profile, error)
	GetProfileByEmail(ctx context.Context, email string) (*domain.Profile, error)
	CreateProfile(ctx context.Context, p *domain.Profile) (*domain.Profile, error)
	UpdateProfile(ctx context.Context, id string, upd *domain.ProfileUpdate) (*domain.Profile, error)
	ListProfiles(ctx context.Context) ([]domain.Profile, error)
}

// TicketStore persists support tickets and their threads.
// DeleteTicket removes the responses and the ticket atomically.
type TicketStore interface {
	CreateTicket(ctx context.Context, t *domain.Ticket) (*domain.Ticket, error)
	GetTicket(ctx context.Context, id string) (*domain.TicketView, error)
	ListTickets(ctx context.Context, filter domain.TicketFilter) ([]domain.TicketView, error)
	UpdateTicketStatus(ctx context.Context, id string, status domain.TicketStatus) (*domain.Ticket, error)
	DeleteTicket(ctx context.Context, id string) error
	CreateTicketResponse(ctx context.Context, r *domain.TicketResponse) (*domain.TicketResponse, error)
	ListTicketResponses(ctx context.Context, ticketID string) ([]domain.TicketMessage, error)
}

// CRMStore persists customers, deals and interactions.
// DeleteCustomer removes interactions, deals and the customer atomically.
type CRMStore interface {
	// Customers
	CreateCustomer(ctx context.Context, c *domain.Customer) (*domain.Customer, error)
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	UpdateCustomer(ctx context.Context, c *domain.Customer) (*domain.Customer, error)
	DeleteCustomer(ctx context.Context, id string) error
	ListCustomers(ctx context.Context, search string) ([]domain.Customer, error)

	// Deals
	CreateDeal(ctx context.Context, d *domain.Deal) (*domain.Deal, error)
	GetDeal(ctx context.Context, id string) (*domain.DealView, error)
	UpdateDeal(ctx context.Context, d *domain.Deal) (*domain.Deal, error)
	DeleteDeal(ctx context.Context, id string) error
	ListDeals(ctx context.Context, filter domain.DealFilter) ([]domain.DealView, error)

	// Interactions
	CreateInteraction(ctx context.Context, i *domain.Interaction) (*domain.Interaction, error)
	ListInteractions(ctx context.Context, customerID string) ([]domain.InteractionView, error)
}

// BillingStore persists the payment ledger and subscriber-intent rows.
type BillingStore interface {
	CreatePayment(ctx context.Context, p *domain.Payment) (*domain.Payment, error)
	GetPaymentByProviderID(ctx context.Context, paymentID string) (*domain.Payment, error)
	ListPayments(ctx context.Context, userID string) ([]domain.Payment, error)
	UpsertSubscriber(ctx context.Context, s *domain.Subscriber) (*domain.Subscriber, error)
	// RecordSubscriberIntent inserts an unsubscribed row or refreshes the
	// e-mail and customer ref of an existing one. It never writes subscribed,
	// subscription_tier or subscription_end on an existing row.
	RecordSubscriberIntent(ctx context.Context, s *domain.Subscriber) (*domain.Subscriber, error)
	GetSubscriber(ctx context.Context, userID string) (*domain.Subscriber, error)
}

// SystemConfigStore persists the single configuration row.
// GetSystemConfig returns *domain.ErrNotFound when no row exists.
type SystemConfigStore interface {
	GetSystemConfig(ctx context.Context) (*domain.SystemConfig, error)
	CreateSystemConfig(ctx context.Context, cfg *domain.SystemConfig) (*domain.SystemConfig, error)
	UpdateSystemConfig(ctx context.Context, id string, upd *domain.SystemConfigUpdate) (*domain.SystemConfig, error)
}

// Store is implemented by every persistence backend.
type Store interface {
	ProfileStore
	TicketStore
	CRMStore
	BillingStore
	SystemConfigStore
	Ping(ctx context.Context) error
}

// CheckoutProvider creates hosted checkout sessions.
type CheckoutProvider interface {
	CreateCheckoutSession(ctx context.Context, req *domain.CheckoutRequest) (*domain.CheckoutSession, error)
}

// WebhookParser verifies and decodes an inbound provider webhook into a
// validated event.
type WebhookParser interface {
	ParseWebhook(payload []byte, header http.Header) (domain.PaymentEvent, error)
}

// Notifier dispatches outbound notifications without blocking the caller.
type Notifier interface {
	Dispatch(n domain.Notification)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
