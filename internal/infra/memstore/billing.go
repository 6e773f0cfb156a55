package memstore

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/boddenberg/portal-membros-go/internal/domain"
)

// ============================================================
// Payments, subscribers & system config
// ============================================================

func (s *Store) CreatePayment(_ context.Context, p *domain.Payment) (*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.PaymentID != nil {
		for _, r := range s.payments {
			if r.row.PaymentID != nil && *r.row.PaymentID == *p.PaymentID {
				return nil, &domain.ErrConflict{Message: "Registro já existe"}
			}
		}
	}

	now := s.now()
	row := *p
	row.ID = uuid.New().String()
	row.CreatedAt = now
	row.UpdatedAt = now
	s.payments[row.ID] = &record[domain.Payment]{seq: s.next(), row: row}

	return &row, nil
}

func (s *Store) GetPaymentByProviderID(_ context.Context, paymentID string) (*domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.payments {
		if r.row.PaymentID != nil && *r.row.PaymentID == paymentID {
			p := r.row
			return &p, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "payment", ID: paymentID}
}

func (s *Store) ListPayments(_ context.Context, userID string) ([]domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := values(s.payments, func(p domain.Payment) bool { return p.UserID == userID })
	sortRecords(recs, func(p domain.Payment) time.Time { return p.CreatedAt }, true)

	out := make([]domain.Payment, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.row)
	}
	return out, nil
}

func (s *Store) UpsertSubscriber(_ context.Context, sub *domain.Subscriber) (*domain.Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := *sub
	if existing, ok := s.subscribers[sub.UserID]; ok {
		if row.StripeCustomerID == nil {
			row.StripeCustomerID = existing.StripeCustomerID
		}
		if row.SubscriptionTier == nil {
			row.SubscriptionTier = existing.SubscriptionTier
		}
		if row.SubscriptionEnd == nil {
			row.SubscriptionEnd = existing.SubscriptionEnd
		}
	}
	row.UpdatedAt = s.now()
	s.subscribers[row.UserID] = &row

	out := row
	return &out, nil
}

func (s *Store) RecordSubscriberIntent(_ context.Context, sub *domain.Subscriber) (*domain.Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.subscribers[sub.UserID]
	if !ok {
		row = &domain.Subscriber{UserID: sub.UserID}
		s.subscribers[sub.UserID] = row
	}
	row.Email = sub.Email
	if sub.StripeCustomerID != nil {
		ref := *sub.StripeCustomerID
		row.StripeCustomerID = &ref
	}
	row.UpdatedAt = s.now()

	out := *row
	return &out, nil
}

func (s *Store) GetSubscriber(_ context.Context, userID string) (*domain.Subscriber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subscribers[userID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "subscriber", ID: userID}
	}
	out := *sub
	return &out, nil
}

// SubscriberCount reports how many subscriber rows exist.
func (s *Store) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers)
}

// PaymentCount reports how many ledger rows exist.
func (s *Store) PaymentCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.payments)
}

// ResponseCount reports how many ticket responses reference ticketID.
func (s *Store) ResponseCount(ticketID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(values(s.responses, func(r domain.TicketResponse) bool { return r.TicketID == ticketID }))
}

func (s *Store) GetSystemConfig(_ context.Context) (*domain.SystemConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.config == nil {
		return nil, &domain.ErrNotFound{Resource: "system_config", ID: "singleton"}
	}
	out := *s.config
	return &out, nil
}

func (s *Store) CreateSystemConfig(_ context.Context, cfg *domain.SystemConfig) (*domain.SystemConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.config != nil {
		return nil, &domain.ErrConflict{Message: "Configuração já existe"}
	}
	row := *cfg
	row.ID = uuid.New().String()
	row.UpdatedAt = s.now()
	s.config = &row

	out := row
	return &out, nil
}

func (s *Store) UpdateSystemConfig(_ context.Context, id string, upd *domain.SystemConfigUpdate) (*domain.SystemConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.config == nil || s.config.ID != id {
		return nil, &domain.ErrNotFound{Resource: "system_config", ID: id}
	}
	upd.Apply(s.config)
	s.config.UpdatedAt = s.now()

	out := *s.config
	return &out, nil
}
