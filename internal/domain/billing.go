package domain

import (
	"strings"
	"time"
)

// ============================================================
// Payments ledger, subscribers & provider events
// ============================================================

// SubscriptionPeriod is how long a confirmed checkout keeps a subscriber active.
const SubscriptionPeriod = 30 * 24 * time.Hour

// Payment is an append-only ledger entry for a received payment event.
type Payment struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Amount        float64   `json:"amount"`
	PaymentID     *string   `json:"payment_id,omitempty"` // provider reference, unique
	PaymentMethod *string   `json:"payment_method,omitempty"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Subscriber is the subscription-intent row keyed by user id.
type Subscriber struct {
	UserID           string     `json:"user_id"`
	Email            string     `json:"email"`
	StripeCustomerID *string    `json:"stripe_customer_id,omitempty"`
	Subscribed       bool       `json:"subscribed"`
	SubscriptionTier *string    `json:"subscription_tier,omitempty"`
	SubscriptionEnd  *time.Time `json:"subscription_end,omitempty"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// BillingOverview is returned by GET /v1/me/billing.
type BillingOverview struct {
	Subscriber *Subscriber `json:"subscriber,omitempty"`
	Payments   []Payment   `json:"payments"`
}

// CheckoutRequest describes a hosted checkout session to create.
type CheckoutRequest struct {
	UserID     string
	Email      string
	PriceID    string
	SuccessURL string
	CancelURL  string
}

// CheckoutSession is the provider's answer to a checkout request.
type CheckoutSession struct {
	ID          string `json:"session_id"`
	URL         string `json:"url"`
	CustomerRef string `json:"-"`
}

// CheckoutResponse is the body returned by POST /v1/checkout.
type CheckoutResponse struct {
	URL string `json:"url"`
}

// ------------------------------------------------------------
// Provider events (validated at the webhook boundary)
// ------------------------------------------------------------

// PaymentEvent is a provider event already validated by its parser.
// Concrete types: *CheckoutCompleted, *ProviderPayment, *IgnoredEvent.
type PaymentEvent interface {
	paymentEvent()
}

// CheckoutCompleted is Stripe's checkout.session.completed.
type CheckoutCompleted struct {
	EventID     string
	SessionID   string
	UserID      string
	Email       string
	CustomerRef string
	AmountTotal int64 // cents
}

// ProviderPayment is a Mercado Pago "payment" notification.
type ProviderPayment struct {
	PaymentID         string
	Amount            float64
	PayerEmail        string
	ExternalReference string // profile id when the checkout carried one
	Method            string
	Status            string
}

// ProviderStatusApproved is the Mercado Pago status that grants access.
const ProviderStatusApproved = "approved"

// Approved reports whether the provider settled the payment.
func (p *ProviderPayment) Approved() bool {
	return strings.EqualFold(strings.TrimSpace(p.Status), ProviderStatusApproved)
}

// IgnoredEvent is any provider event this service does not act on.
type IgnoredEvent struct {
	Source string
	Type   string
}

func (*CheckoutCompleted) paymentEvent() {}
func (*ProviderPayment) paymentEvent()   {}
func (*IgnoredEvent) paymentEvent()      {}

// WebhookAck is the body returned to payment providers.
type WebhookAck struct {
	Received bool   `json:"received"`
	Action   string `json:"action,omitempty"`
}
