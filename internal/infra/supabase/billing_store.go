package supabase

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/boddenberg/portal-membros-go/internal/domain"
)

// ============================================================
// Payments ledger & subscribers
// ============================================================

func (c *Client) CreatePayment(ctx context.Context, p *domain.Payment) (*domain.Payment, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreatePayment")
	defer span.End()

	row := map[string]any{
		"user_id":        p.UserID,
		"amount":         p.Amount,
		"payment_id":     p.PaymentID,
		"payment_method": p.PaymentMethod,
		"status":         p.Status,
	}

	var rows []domain.Payment
	if err := c.write(ctx, "create_payment", http.MethodPost, "payments", row, preferRepresentation, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.ErrStore{Op: "create_payment", Err: errEmptyRepresentation}
	}
	return &rows[0], nil
}

func (c *Client) GetPaymentByProviderID(ctx context.Context, paymentID string) (*domain.Payment, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetPaymentByProviderID")
	defer span.End()
	span.SetAttributes(attribute.String("payment.provider_id", paymentID))

	var rows []domain.Payment
	if err := c.read(ctx, "get_payment", query("payments", "payment_id="+eq(paymentID), "limit=1"), &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "payment", ID: paymentID}
	}
	return &rows[0], nil
}

func (c *Client) ListPayments(ctx context.Context, userID string) ([]domain.Payment, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListPayments")
	defer span.End()

	rows := []domain.Payment{}
	if err := c.read(ctx, "list_payments", query("payments", "user_id="+eq(userID), "order=created_at.desc"), &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// UpsertSubscriber inserts or merges the subscriber row keyed by user_id.
func (c *Client) UpsertSubscriber(ctx context.Context, s *domain.Subscriber) (*domain.Subscriber, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UpsertSubscriber")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", s.UserID))

	row := map[string]any{
		"user_id":    s.UserID,
		"email":      s.Email,
		"subscribed": s.Subscribed,
		"updated_at": time.Now().UTC(),
	}
	// optional columns are only sent when known so a merge keeps stored values
	if s.StripeCustomerID != nil {
		row["stripe_customer_id"] = *s.StripeCustomerID
	}
	if s.SubscriptionTier != nil {
		row["subscription_tier"] = *s.SubscriptionTier
	}
	if s.SubscriptionEnd != nil {
		row["subscription_end"] = s.SubscriptionEnd.UTC()
	}

	var rows []domain.Subscriber
	if err := c.write(ctx, "upsert_subscriber", http.MethodPost, "subscribers?on_conflict=user_id", row, preferUpsert, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.ErrStore{Op: "upsert_subscriber", Err: errEmptyRepresentation}
	}
	return &rows[0], nil
}

// RecordSubscriberIntent upserts without the subscribed column, so a new row
// takes the column default and a merge leaves it as stored.
func (c *Client) RecordSubscriberIntent(ctx context.Context, s *domain.Subscriber) (*domain.Subscriber, error) {
	ctx, span := tracer.Start(ctx, "Supabase.RecordSubscriberIntent")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", s.UserID))

	row := map[string]any{
		"user_id":    s.UserID,
		"email":      s.Email,
		"updated_at": time.Now().UTC(),
	}
	if s.StripeCustomerID != nil {
		row["stripe_customer_id"] = *s.StripeCustomerID
	}

	var rows []domain.Subscriber
	if err := c.write(ctx, "record_subscriber_intent", http.MethodPost, "subscribers?on_conflict=user_id", row, preferUpsert, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.ErrStore{Op: "record_subscriber_intent", Err: errEmptyRepresentation}
	}
	return &rows[0], nil
}

func (c *Client) GetSubscriber(ctx context.Context, userID string) (*domain.Subscriber, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetSubscriber")
	defer span.End()

	var rows []domain.Subscriber
	if err := c.read(ctx, "get_subscriber", query("subscribers", "user_id="+eq(userID), "limit=1"), &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "subscriber", ID: userID}
	}
	return &rows[0], nil
}
