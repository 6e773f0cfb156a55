// Package memstore is an in-process implementation of port.Store used for
// local development (STORE_BACKEND=memory) and tests. A single mutex makes
// every multi-row operation atomic.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/boddenberg/portal-membros-go/internal/domain"
	"github.com/boddenberg/portal-membros-go/internal/port"
)

var _ port.Store = (*Store)(nil)

// Store keeps every table in maps guarded by one mutex.
type Store struct {
	mu  sync.RWMutex
	seq int64
	now func() time.Time

	profiles     map[string]*domain.Profile
	tickets      map[string]*record[domain.Ticket]
	responses    map[string]*record[domain.TicketResponse]
	customers    map[string]*record[domain.Customer]
	deals        map[string]*record[domain.Deal]
	interactions map[string]*record[domain.Interaction]
	payments     map[string]*record[domain.Payment]
	subscribers  map[string]*domain.Subscriber
	config       *domain.SystemConfig
}

// record pairs a row with its insertion sequence so equal timestamps keep a stable order.
type record[T any] struct {
	seq int64
	row T
}

// New creates an empty store.
func New() *Store {
	return &Store{
		now:          func() time.Time { return time.Now().UTC() },
		profiles:     make(map[string]*domain.Profile),
		tickets:      make(map[string]*record[domain.Ticket]),
		responses:    make(map[string]*record[domain.TicketResponse]),
		customers:    make(map[string]*record[domain.Customer]),
		deals:        make(map[string]*record[domain.Deal]),
		interactions: make(map[string]*record[domain.Interaction]),
		payments:     make(map[string]*record[domain.Payment]),
		subscribers:  make(map[string]*domain.Subscriber),
	}
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) next() int64 {
	s.seq++
	return s.seq
}

// sortRecords orders by the given time, then by insertion.
func sortRecords[T any](recs []*record[T], at func(T) time.Time, desc bool) {
	sort.SliceStable(recs, func(i, j int) bool {
		ti, tj := at(recs[i].row), at(recs[j].row)
		if !ti.Equal(tj) {
			if desc {
				return ti.After(tj)
			}
			return ti.Before(tj)
		}
		if desc {
			return recs[i].seq > recs[j].seq
		}
		return recs[i].seq < recs[j].seq
	})
}

func values[T any](m map[string]*record[T], keep func(T) bool) []*record[T] {
	out := make([]*record[T], 0, len(m))
	for _, r := range m {
		if keep == nil || keep(r.row) {
			out = append(out, r)
		}
	}
	return out
}

// ============================================================
// Profiles
// ============================================================

func (s *Store) GetProfile(_ context.Context, id string) (*domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "profile", ID: id}
	}
	cp := *p
	return &cp, nil
}

func (s *Store) GetProfileByEmail(_ context.Context, email string) (*domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email = strings.ToLower(strings.TrimSpace(email))
	for _, p := range s.profiles {
		if strings.ToLower(p.Email) == email {
			cp := *p
			return &cp, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "profile", ID: email}
}

func (s *Store) CreateProfile(_ context.Context, p *domain.Profile) (*domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[p.ID]; ok {
		return nil, &domain.ErrConflict{Message: "Registro já existe"}
	}
	for _, existing := range s.profiles {
		if strings.EqualFold(existing.Email, p.Email) {
			return nil, &domain.ErrConflict{Message: "Registro já existe"}
		}
	}

	now := s.now()
	cp := *p
	if cp.PaymentStatus == "" {
		cp.PaymentStatus = domain.PaymentStatusPendente
	}
	cp.CreatedAt = now
	cp.UpdatedAt = now
	s.profiles[cp.ID] = &cp

	out := cp
	return &out, nil
}

func (s *Store) UpdateProfile(_ context.Context, id string, upd *domain.ProfileUpdate) (*domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "profile", ID: id}
	}
	if upd.Email != nil {
		p.Email = *upd.Email
	}
	if upd.FullName != nil {
		p.FullName = *upd.FullName
	}
	if upd.WhatsApp != nil {
		p.WhatsApp = *upd.WhatsApp
	}
	if upd.IsAdmin != nil {
		p.IsAdmin = *upd.IsAdmin
	}
	if upd.PaymentStatus != nil {
		p.PaymentStatus = *upd.PaymentStatus
	}
	p.UpdatedAt = s.now()

	cp := *p
	return &cp, nil
}

func (s *Store) ListProfiles(_ context.Context) ([]domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, *p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ============================================================
// Tickets
// ============================================================

func (s *Store) ticketView(t domain.Ticket) domain.TicketView {
	v := domain.TicketView{Ticket: t}
	if p, ok := s.profiles[t.UserID]; ok {
		v.UserName = p.FullName
		v.UserEmail = p.Email
		v.UserWhatsApp = p.WhatsApp
	}
	return v
}

func (s *Store) CreateTicket(_ context.Context, t *domain.Ticket) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	row := *t
	row.ID = uuid.New().String()
	row.CreatedAt = now
	row.UpdatedAt = now
	s.tickets[row.ID] = &record[domain.Ticket]{seq: s.next(), row: row}

	return &row, nil
}

func (s *Store) GetTicket(_ context.Context, id string) (*domain.TicketView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.tickets[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "ticket", ID: id}
	}
	v := s.ticketView(r.row)
	return &v, nil
}

func (s *Store) ListTickets(_ context.Context, filter domain.TicketFilter) ([]domain.TicketView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := values(s.tickets, func(t domain.Ticket) bool {
		return filter.UserID == "" || t.UserID == filter.UserID
	})
	sortRecords(recs, func(t domain.Ticket) time.Time { return t.CreatedAt }, true)

	out := make([]domain.TicketView, 0, len(recs))
	for _, r := range recs {
		out = append(out, s.ticketView(r.row))
	}
	return out, nil
}

func (s *Store) UpdateTicketStatus(_ context.Context, id string, status domain.TicketStatus) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.tickets[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "ticket", ID: id}
	}
	r.row.Status = status
	r.row.UpdatedAt = s.now()

	t := r.row
	return &t, nil
}

func (s *Store) DeleteTicket(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tickets[id]; !ok {
		return &domain.ErrNotFound{Resource: "ticket", ID: id}
	}
	for rid, r := range s.responses {
		if r.row.TicketID == id {
			delete(s.responses, rid)
		}
	}
	delete(s.tickets, id)
	return nil
}

func (s *Store) CreateTicketResponse(_ context.Context, r *domain.TicketResponse) (*domain.TicketResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tickets[r.TicketID]; !ok {
		return nil, &domain.ErrNotFound{Resource: "ticket", ID: r.TicketID}
	}

	row := *r
	row.ID = uuid.New().String()
	row.CreatedAt = s.now()
	s.responses[row.ID] = &record[domain.TicketResponse]{seq: s.next(), row: row}

	return &row, nil
}

func (s *Store) ListTicketResponses(_ context.Context, ticketID string) ([]domain.TicketMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := values(s.responses, func(r domain.TicketResponse) bool { return r.TicketID == ticketID })
	sortRecords(recs, func(r domain.TicketResponse) time.Time { return r.CreatedAt }, false)

	out := make([]domain.TicketMessage, 0, len(recs))
	for _, r := range recs {
		out = append(out, domain.TicketMessage{TicketResponse: r.row, AuthorName: s.profiles[r.row.UserID].DisplayName()})
	}
	return out, nil
}
