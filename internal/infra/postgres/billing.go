package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/boddenberg/portal-membros-go/internal/domain"
)

var paymentColumns = []string{
	"id", "user_id", "amount", "payment_id", "payment_method", "status", "created_at", "updated_at",
}

func scanPayment(row rowScanner) (*domain.Payment, error) {
	var (
		p                 domain.Payment
		paymentID, method sql.NullString
	)
	if err := row.Scan(&p.ID, &p.UserID, &p.Amount, &paymentID, &method, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.PaymentID = stringPtr(paymentID)
	p.PaymentMethod = stringPtr(method)
	return &p, nil
}

var subscriberColumns = []string{
	"user_id", "email", "stripe_customer_id", "subscribed", "subscription_tier", "subscription_end", "updated_at",
}

func scanSubscriber(row rowScanner) (*domain.Subscriber, error) {
	var (
		s              domain.Subscriber
		customer, tier sql.NullString
		end            sql.NullTime
	)
	if err := row.Scan(&s.UserID, &s.Email, &customer, &s.Subscribed, &tier, &end, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.StripeCustomerID = stringPtr(customer)
	s.SubscriptionTier = stringPtr(tier)
	if end.Valid {
		t := end.Time
		s.SubscriptionEnd = &t
	}
	return &s, nil
}

func (s *Store) CreatePayment(ctx context.Context, p *domain.Payment) (*domain.Payment, error) {
	ctx, span := tracer.Start(ctx, "Postgres.CreatePayment")
	defer span.End()

	now := time.Now().UTC()
	out := *p
	out.ID = uuid.New().String()
	out.CreatedAt = now
	out.UpdatedAt = now

	query, args, err := psql.Insert("payments").
		Columns(paymentColumns...).
		Values(out.ID, out.UserID, out.Amount, nullString(out.PaymentID), nullString(out.PaymentMethod), out.Status, out.CreatedAt, out.UpdatedAt).
		ToSql()
	if err != nil {
		return nil, mapError("create_payment", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, mapError("create_payment", err)
	}
	return &out, nil
}

func (s *Store) GetPaymentByProviderID(ctx context.Context, paymentID string) (*domain.Payment, error) {
	ctx, span := tracer.Start(ctx, "Postgres.GetPaymentByProviderID")
	defer span.End()

	query, args, err := psql.Select(paymentColumns...).From("payments").Where(sq.Eq{"payment_id": paymentID}).Limit(1).ToSql()
	if err != nil {
		return nil, mapError("get_payment", err)
	}

	p, err := scanPayment(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "payment", ID: paymentID}
	}
	return p, mapError("get_payment", err)
}

func (s *Store) ListPayments(ctx context.Context, userID string) ([]domain.Payment, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ListPayments")
	defer span.End()

	query, args, err := psql.Select(paymentColumns...).From("payments").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, mapError("list_payments", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError("list_payments", err)
	}
	defer rows.Close()

	payments := []domain.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, mapError("list_payments", err)
		}
		payments = append(payments, *p)
	}
	return payments, mapError("list_payments", rows.Err())
}

// UpsertSubscriber inserts the row or merges it on user_id. Nil optional
// fields keep the stored values.
func (s *Store) UpsertSubscriber(ctx context.Context, sub *domain.Subscriber) (*domain.Subscriber, error) {
	ctx, span := tracer.Start(ctx, "Postgres.UpsertSubscriber")
	defer span.End()

	var end any
	if sub.SubscriptionEnd != nil {
		end = sub.SubscriptionEnd.UTC()
	}

	query, args, err := psql.Insert("subscribers").
		Columns(subscriberColumns...).
		Values(sub.UserID, sub.Email, nullString(sub.StripeCustomerID), sub.Subscribed, nullString(sub.SubscriptionTier), end, time.Now().UTC()).
		Suffix(`ON CONFLICT (user_id) DO UPDATE SET
			email = EXCLUDED.email,
			stripe_customer_id = COALESCE(EXCLUDED.stripe_customer_id, subscribers.stripe_customer_id),
			subscribed = EXCLUDED.subscribed,
			subscription_tier = COALESCE(EXCLUDED.subscription_tier, subscribers.subscription_tier),
			subscription_end = COALESCE(EXCLUDED.subscription_end, subscribers.subscription_end),
			updated_at = EXCLUDED.updated_at
		RETURNING user_id, email, stripe_customer_id, subscribed, subscription_tier, subscription_end, updated_at`).
		ToSql()
	if err != nil {
		return nil, mapError("upsert_subscriber", err)
	}

	out, err := scanSubscriber(s.db.QueryRowContext(ctx, query, args...))
	return out, mapError("upsert_subscriber", err)
}

// RecordSubscriberIntent inserts an unsubscribed row. On conflict only the
// e-mail, customer ref and timestamp are updated.
func (s *Store) RecordSubscriberIntent(ctx context.Context, sub *domain.Subscriber) (*domain.Subscriber, error) {
	ctx, span := tracer.Start(ctx, "Postgres.RecordSubscriberIntent")
	defer span.End()

	query, args, err := psql.Insert("subscribers").
		Columns("user_id", "email", "stripe_customer_id", "updated_at").
		Values(sub.UserID, sub.Email, nullString(sub.StripeCustomerID), time.Now().UTC()).
		Suffix(`ON CONFLICT (user_id) DO UPDATE SET
			email = EXCLUDED.email,
			stripe_customer_id = COALESCE(EXCLUDED.stripe_customer_id, subscribers.stripe_customer_id),
			updated_at = EXCLUDED.updated_at
		RETURNING user_id, email, stripe_customer_id, subscribed, subscription_tier, subscription_end, updated_at`).
		ToSql()
	if err != nil {
		return nil, mapError("record_subscriber_intent", err)
	}

	out, err := scanSubscriber(s.db.QueryRowContext(ctx, query, args...))
	return out, mapError("record_subscriber_intent", err)
}

func (s *Store) GetSubscriber(ctx context.Context, userID string) (*domain.Subscriber, error) {
	ctx, span := tracer.Start(ctx, "Postgres.GetSubscriber")
	defer span.End()

	query, args, err := psql.Select(subscriberColumns...).From("subscribers").Where(sq.Eq{"user_id": userID}).ToSql()
	if err != nil {
		return nil, mapError("get_subscriber", err)
	}

	sub, err := scanSubscriber(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "subscriber", ID: userID}
	}
	return sub, mapError("get_subscriber", err)
}
