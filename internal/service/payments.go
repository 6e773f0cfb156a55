package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/portal-membros-go/internal/domain"
	"github.com/boddenberg/portal-membros-go/internal/port"
)

var paymentTracer = otel.Tracer("service/payments")

// Providers as labelled in metrics and logs.
const (
	ProviderStripe      = "stripe"
	ProviderMercadoPago = "mercadopago"
)

// Webhook outcomes.
const (
	OutcomeProcessed = "processed"
	OutcomeIgnored   = "ignored"
	OutcomeFailed    = "failed"
)

// Ack actions reported back to providers.
const (
	ActionApproved  = "approved"
	ActionIgnored   = "ignored"
	ActionDuplicate = "duplicate"
)

// subscriptionTier is the tier recorded for Stripe subscribers.
const subscriptionTier = "membro"

// WebhookRecorder counts webhook outcomes. *observability.Metrics satisfies it.
type WebhookRecorder interface {
	IncrWebhookEvent(provider, outcome string)
	IncrLedgerDuplicate()
}

// PaymentStore is the persistence needed by the webhook relay.
type PaymentStore interface {
	port.ProfileStore
	port.BillingStore
}

// PaymentService turns validated provider events into profile approvals,
// subscriber rows and ledger entries.
type PaymentService struct {
	store       PaymentStore
	stripe      port.WebhookParser
	mercadoPago port.WebhookParser
	metrics     WebhookRecorder
	logger      *zap.Logger
	now         func() time.Time
}

// NewPaymentService creates the relay. stripe may be nil when Stripe is not configured.
func NewPaymentService(store PaymentStore, stripe, mercadoPago port.WebhookParser, metrics WebhookRecorder, logger *zap.Logger) *PaymentService {
	return &PaymentService{
		store:       store,
		stripe:      stripe,
		mercadoPago: mercadoPago,
		metrics:     metrics,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *PaymentService) count(provider, outcome string) {
	if s.metrics != nil {
		s.metrics.IncrWebhookEvent(provider, outcome)
	}
}

// HandleStripeEvent verifies and applies a Stripe webhook. Any error must
// be answered with a non-2xx status so Stripe retries.
func (s *PaymentService) HandleStripeEvent(ctx context.Context, payload []byte, header http.Header) (*domain.WebhookAck, error) {
	ctx, span := paymentTracer.Start(ctx, "PaymentService.HandleStripeEvent")
	defer span.End()

	if s.stripe == nil {
		s.count(ProviderStripe, OutcomeFailed)
		return nil, &domain.ErrExternalService{Service: ProviderStripe, Err: errors.New("stripe not configured")}
	}

	ev, err := s.stripe.ParseWebhook(payload, header)
	if err != nil {
		s.count(ProviderStripe, OutcomeFailed)
		s.logger.Warn("stripe webhook rejected", zap.Error(err))
		return nil, err
	}

	switch e := ev.(type) {
	case *domain.CheckoutCompleted:
		span.SetAttributes(attribute.String("user.id", e.UserID), attribute.String("stripe.event", e.EventID))
		if err := s.applyCheckout(ctx, e); err != nil {
			s.count(ProviderStripe, OutcomeFailed)
			s.logger.Error("stripe checkout not applied",
				zap.String("event_id", e.EventID),
				zap.String("user_id", e.UserID),
				zap.Error(err),
			)
			return nil, err
		}
		s.count(ProviderStripe, OutcomeProcessed)
		return &domain.WebhookAck{Received: true, Action: ActionApproved}, nil
	case *domain.IgnoredEvent:
		s.count(ProviderStripe, OutcomeIgnored)
		s.logger.Debug("stripe event ignored", zap.String("type", e.Type))
		return &domain.WebhookAck{Received: true, Action: ActionIgnored}, nil
	default:
		s.count(ProviderStripe, OutcomeIgnored)
		return &domain.WebhookAck{Received: true, Action: ActionIgnored}, nil
	}
}

func (s *PaymentService) applyCheckout(ctx context.Context, e *domain.CheckoutCompleted) error {
	approved := domain.PaymentStatusAprovado
	profile, err := s.store.UpdateProfile(ctx, e.UserID, &domain.ProfileUpdate{PaymentStatus: &approved})
	if err != nil {
		return fmt.Errorf("approve profile: %w", err)
	}

	email := e.Email
	if email == "" {
		email = profile.Email
	}
	end := s.now().UTC().Add(domain.SubscriptionPeriod)
	tier := subscriptionTier
	sub := &domain.Subscriber{
		UserID:           e.UserID,
		Email:            email,
		Subscribed:       true,
		SubscriptionTier: &tier,
		SubscriptionEnd:  &end,
	}
	if e.CustomerRef != "" {
		ref := e.CustomerRef
		sub.StripeCustomerID = &ref
	}
	if _, err := s.store.UpsertSubscriber(ctx, sub); err != nil {
		return fmt.Errorf("upsert subscriber: %w", err)
	}

	s.logger.Info("stripe checkout applied",
		zap.String("user_id", e.UserID),
		zap.String("session_id", e.SessionID),
		zap.Time("subscription_end", end),
	)
	return nil
}

// HandleMercadoPagoEvent applies a Mercado Pago payment notification. The
// profile update must succeed; ledger failures are only logged.
func (s *PaymentService) HandleMercadoPagoEvent(ctx context.Context, payload []byte, header http.Header) (*domain.WebhookAck, error) {
	ctx, span := paymentTracer.Start(ctx, "PaymentService.HandleMercadoPagoEvent")
	defer span.End()

	ev, err := s.mercadoPago.ParseWebhook(payload, header)
	if err != nil {
		s.count(ProviderMercadoPago, OutcomeFailed)
		s.logger.Warn("mercadopago webhook rejected", zap.Error(err))
		return nil, err
	}

	pay, ok := ev.(*domain.ProviderPayment)
	if !ok {
		s.count(ProviderMercadoPago, OutcomeIgnored)
		return &domain.WebhookAck{Received: true, Action: ActionIgnored}, nil
	}
	span.SetAttributes(attribute.String("payment.id", pay.PaymentID))

	if !pay.Approved() {
		s.count(ProviderMercadoPago, OutcomeIgnored)
		s.logger.Info("mercadopago payment not approved",
			zap.String("payment_id", pay.PaymentID),
			zap.String("status", pay.Status),
		)
		return &domain.WebhookAck{Received: true, Action: ActionIgnored}, nil
	}

	profile, err := s.resolvePayer(ctx, pay)
	if err != nil {
		s.count(ProviderMercadoPago, OutcomeFailed)
		s.logger.Warn("mercadopago payer not resolved", zap.String("payment_id", pay.PaymentID), zap.Error(err))
		return nil, err
	}

	approved := domain.PaymentStatusAprovado
	if _, err := s.store.UpdateProfile(ctx, profile.ID, &domain.ProfileUpdate{PaymentStatus: &approved}); err != nil {
		s.count(ProviderMercadoPago, OutcomeFailed)
		s.logger.Error("mercadopago approval failed", zap.String("user_id", profile.ID), zap.Error(err))
		return nil, fmt.Errorf("approve profile: %w", err)
	}

	action := ActionApproved
	if s.recordLedger(ctx, profile.ID, pay) {
		action = ActionDuplicate
	}

	s.count(ProviderMercadoPago, OutcomeProcessed)
	s.logger.Info("mercadopago payment applied",
		zap.String("user_id", profile.ID),
		zap.String("payment_id", pay.PaymentID),
		zap.String("action", action),
	)
	return &domain.WebhookAck{Received: true, Action: action}, nil
}

// resolvePayer prefers external_reference (a profile id) and falls back to
// the payer e-mail.
func (s *PaymentService) resolvePayer(ctx context.Context, pay *domain.ProviderPayment) (*domain.Profile, error) {
	var nf *domain.ErrNotFound
	if pay.ExternalReference != "" {
		p, err := s.store.GetProfile(ctx, pay.ExternalReference)
		if err == nil {
			return p, nil
		}
		if !errors.As(err, &nf) {
			return nil, err
		}
		s.logger.Warn("mercadopago external_reference unknown, falling back to e-mail",
			zap.String("external_reference", pay.ExternalReference))
	}
	return s.store.GetProfileByEmail(ctx, pay.PayerEmail)
}

// recordLedger inserts the payment unless one with the same provider id
// exists. It reports whether the payment was a duplicate.
func (s *PaymentService) recordLedger(ctx context.Context, userID string, pay *domain.ProviderPayment) bool {
	var nf *domain.ErrNotFound
	existing, err := s.store.GetPaymentByProviderID(ctx, pay.PaymentID)
	switch {
	case err == nil && existing != nil:
		s.duplicate(pay.PaymentID)
		return true
	case err != nil && !errors.As(err, &nf):
		s.logger.Error("ledger lookup failed", zap.String("payment_id", pay.PaymentID), zap.Error(err))
		return false
	}

	paymentID := pay.PaymentID
	entry := &domain.Payment{
		UserID:    userID,
		Amount:    pay.Amount,
		PaymentID: &paymentID,
		Status:    pay.Status,
	}
	if pay.Method != "" {
		method := pay.Method
		entry.PaymentMethod = &method
	}

	if _, err := s.store.CreatePayment(ctx, entry); err != nil {
		var conflict *domain.ErrConflict
		if errors.As(err, &conflict) {
			s.duplicate(pay.PaymentID)
			return true
		}
		s.logger.Error("ledger insert failed", zap.String("payment_id", pay.PaymentID), zap.Error(err))
	}
	return false
}

func (s *PaymentService) duplicate(paymentID string) {
	if s.metrics != nil {
		s.metrics.IncrLedgerDuplicate()
	}
	s.logger.Info("ledger entry already recorded", zap.String("payment_id", paymentID))
}
