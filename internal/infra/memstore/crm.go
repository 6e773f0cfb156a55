package memstore

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/boddenberg/portal-membros-go/internal/domain"
)

// ============================================================
// CRM
// ============================================================

func (s *Store) CreateCustomer(_ context.Context, c *domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	row := *c
	row.ID = uuid.New().String()
	row.CreatedAt = now
	row.UpdatedAt = now
	s.customers[row.ID] = &record[domain.Customer]{seq: s.next(), row: row}

	return &row, nil
}

func (s *Store) GetCustomer(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.customers[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "customer", ID: id}
	}
	c := r.row
	return &c, nil
}

func (s *Store) UpdateCustomer(_ context.Context, c *domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.customers[c.ID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "customer", ID: c.ID}
	}
	row := *c
	row.CreatedAt = r.row.CreatedAt
	row.UpdatedAt = s.now()
	r.row = row

	return &row, nil
}

func (s *Store) DeleteCustomer(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[id]; !ok {
		return &domain.ErrNotFound{Resource: "customer", ID: id}
	}
	for iid, r := range s.interactions {
		if r.row.CustomerID == id {
			delete(s.interactions, iid)
		}
	}
	for did, r := range s.deals {
		if r.row.CustomerID == id {
			delete(s.deals, did)
		}
	}
	delete(s.customers, id)
	return nil
}

func (s *Store) ListCustomers(_ context.Context, search string) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	term := strings.ToLower(strings.TrimSpace(search))
	recs := values(s.customers, func(c domain.Customer) bool {
		if term == "" {
			return true
		}
		return strings.Contains(strings.ToLower(c.Name), term) ||
			strings.Contains(strings.ToLower(c.Email), term) ||
			strings.Contains(strings.ToLower(c.Phone), term)
	})
	sortRecords(recs, func(c domain.Customer) time.Time { return c.CreatedAt }, true)

	out := make([]domain.Customer, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.row)
	}
	return out, nil
}

func (s *Store) dealView(d domain.Deal) domain.DealView {
	v := domain.DealView{Deal: d}
	if c, ok := s.customers[d.CustomerID]; ok {
		v.CustomerName = c.row.Name
		v.CustomerEmail = c.row.Email
		v.CustomerCompany = c.row.Company
	}
	return v
}

func (s *Store) CreateDeal(_ context.Context, d *domain.Deal) (*domain.Deal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[d.CustomerID]; !ok {
		return nil, &domain.ErrNotFound{Resource: "customer", ID: d.CustomerID}
	}

	now := s.now()
	row := *d
	row.ID = uuid.New().String()
	row.CreatedAt = now
	row.UpdatedAt = now
	s.deals[row.ID] = &record[domain.Deal]{seq: s.next(), row: row}

	return &row, nil
}

func (s *Store) GetDeal(_ context.Context, id string) (*domain.DealView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.deals[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "deal", ID: id}
	}
	v := s.dealView(r.row)
	return &v, nil
}

func (s *Store) UpdateDeal(_ context.Context, d *domain.Deal) (*domain.Deal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.deals[d.ID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "deal", ID: d.ID}
	}
	row := *d
	row.CustomerID = r.row.CustomerID
	row.CreatedAt = r.row.CreatedAt
	row.UpdatedAt = s.now()
	r.row = row

	return &row, nil
}

func (s *Store) DeleteDeal(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.deals[id]; !ok {
		return &domain.ErrNotFound{Resource: "deal", ID: id}
	}
	delete(s.deals, id)
	return nil
}

func (s *Store) ListDeals(_ context.Context, filter domain.DealFilter) ([]domain.DealView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := values(s.deals, func(d domain.Deal) bool {
		return (filter.Status == "" || d.Status == filter.Status) &&
			(filter.CustomerID == "" || d.CustomerID == filter.CustomerID)
	})
	sortRecords(recs, func(d domain.Deal) time.Time { return d.CreatedAt }, true)

	out := make([]domain.DealView, 0, len(recs))
	for _, r := range recs {
		out = append(out, s.dealView(r.row))
	}
	return out, nil
}

func (s *Store) CreateInteraction(_ context.Context, i *domain.Interaction) (*domain.Interaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[i.CustomerID]; !ok {
		return nil, &domain.ErrNotFound{Resource: "customer", ID: i.CustomerID}
	}

	now := s.now()
	row := *i
	row.ID = uuid.New().String()
	row.CreatedAt = now
	row.UpdatedAt = now
	s.interactions[row.ID] = &record[domain.Interaction]{seq: s.next(), row: row}

	return &row, nil
}

func (s *Store) ListInteractions(_ context.Context, customerID string) ([]domain.InteractionView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := values(s.interactions, func(i domain.Interaction) bool { return i.CustomerID == customerID })
	sortRecords(recs, func(i domain.Interaction) time.Time { return i.Date }, true)

	out := make([]domain.InteractionView, 0, len(recs))
	for _, r := range recs {
		out = append(out, domain.InteractionView{Interaction: r.row, AuthorName: s.profiles[r.row.CreatedBy].DisplayName()})
	}
	return out, nil
}
