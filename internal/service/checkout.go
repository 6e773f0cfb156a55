package service

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/portal-membros-go/internal/domain"
	"github.com/boddenberg/portal-membros-go/internal/port"
)

var checkoutTracer = otel.Tracer("service/checkout")

// CheckoutConfig holds the fixed checkout parameters.
type CheckoutConfig struct {
	PriceID    string
	SuccessURL string
	CancelURL  string
}

// CheckoutService starts hosted subscription checkouts.
type CheckoutService struct {
	provider port.CheckoutProvider
	store    port.BillingStore
	cfg      CheckoutConfig
	logger   *zap.Logger
}

// NewCheckoutService creates the checkout initiator. provider may be nil
// when no payment provider is configured.
func NewCheckoutService(provider port.CheckoutProvider, store port.BillingStore, cfg CheckoutConfig, logger *zap.Logger) *CheckoutService {
	return &CheckoutService{provider: provider, store: store, cfg: cfg, logger: logger}
}

// StartCheckout creates a checkout session and records the subscriber
// intent. Provider errors are returned as is and never retried.
func (s *CheckoutService) StartCheckout(ctx context.Context, id domain.Identity) (*domain.CheckoutResponse, error) {
	ctx, span := checkoutTracer.Start(ctx, "CheckoutService.StartCheckout")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", id.ID))

	if id.ID == "" {
		return nil, &domain.ErrUnauthorized{Message: "Usuário não autenticado"}
	}
	if id.Email == "" {
		return nil, &domain.ErrValidation{Field: "email", Message: "E-mail do usuário ausente"}
	}
	if s.provider == nil || s.cfg.PriceID == "" {
		return nil, &domain.ErrExternalService{Service: "stripe", Err: errors.New("checkout not configured")}
	}

	sess, err := s.provider.CreateCheckoutSession(ctx, &domain.CheckoutRequest{
		UserID:     id.ID,
		Email:      id.Email,
		PriceID:    s.cfg.PriceID,
		SuccessURL: s.cfg.SuccessURL,
		CancelURL:  s.cfg.CancelURL,
	})
	if err != nil {
		s.logger.Warn("checkout session failed", zap.String("user_id", id.ID), zap.Error(err))
		return nil, err
	}

	if err := s.recordIntent(ctx, id, sess); err != nil {
		return nil, err
	}

	s.logger.Info("checkout started", zap.String("user_id", id.ID), zap.String("session_id", sess.ID))
	return &domain.CheckoutResponse{URL: sess.URL}, nil
}

// recordIntent records the subscriber row without touching an active
// subscription.
func (s *CheckoutService) recordIntent(ctx context.Context, id domain.Identity, sess *domain.CheckoutSession) error {
	sub := &domain.Subscriber{UserID: id.ID, Email: id.Email}
	if sess.CustomerRef != "" {
		ref := sess.CustomerRef
		sub.StripeCustomerID = &ref
	}

	if _, err := s.store.RecordSubscriberIntent(ctx, sub); err != nil {
		return fmt.Errorf("record subscriber intent: %w", err)
	}
	return nil
}

// BillingOverview returns the caller's subscriber row (if any) and payments.
func (s *CheckoutService) BillingOverview(ctx context.Context, id domain.Identity) (*domain.BillingOverview, error) {
	ctx, span := checkoutTracer.Start(ctx, "CheckoutService.BillingOverview")
	defer span.End()

	if id.ID == "" {
		return nil, &domain.ErrUnauthorized{Message: "Usuário não autenticado"}
	}

	out := &domain.BillingOverview{Payments: []domain.Payment{}}
	sub, err := s.store.GetSubscriber(ctx, id.ID)
	var nf *domain.ErrNotFound
	switch {
	case err == nil:
		out.Subscriber = sub
	case !errors.As(err, &nf):
		return nil, fmt.Errorf("get subscriber: %w", err)
	}

	payments, err := s.store.ListPayments(ctx, id.ID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	if payments != nil {
		out.Payments = payments
	}
	return out, nil
}
