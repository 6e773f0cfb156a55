package service_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/boddenberg/portal-membros-go/internal/domain"
	"github.com/boddenberg/portal-membros-go/internal/infra/memstore"
)

// --- Mocks ---

var errStoreDown = errors.New("connection refused")

type recordingNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
}

func (n *recordingNotifier) Dispatch(notification domain.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
}

func (n *recordingNotifier) Sent() []domain.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.Notification(nil), n.sent...)
}

// parserFunc adapts a function to port.WebhookParser.
type parserFunc func(payload []byte, header http.Header) (domain.PaymentEvent, error)

func (f parserFunc) ParseWebhook(payload []byte, header http.Header) (domain.PaymentEvent, error) {
	return f(payload, header)
}

func eventParser(ev domain.PaymentEvent) parserFunc {
	return func([]byte, http.Header) (domain.PaymentEvent, error) { return ev, nil }
}

type webhookCounter struct {
	mu         sync.Mutex
	events     map[string]int
	duplicates int
}

func newWebhookCounter() *webhookCounter {
	return &webhookCounter{events: map[string]int{}}
}

func (c *webhookCounter) IncrWebhookEvent(provider, outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events[provider+"/"+outcome]++
}

func (c *webhookCounter) IncrLedgerDuplicate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.duplicates++
}

func (c *webhookCounter) count(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events[key]
}

type opRecorder struct {
	mu  sync.Mutex
	ops []string
}

func (r *opRecorder) RecordOperation(op string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
}

// flakyStore wraps memstore and lets tests fail selected calls.
type flakyStore struct {
	*memstore.Store
	getProfileErr    error
	notFoundReads    int
	createPaymentErr error
	listDealsErr     error
	updateProfileErr error
}

func (f *flakyStore) GetProfile(ctx context.Context, id string) (*domain.Profile, error) {
	if f.getProfileErr != nil {
		return nil, f.getProfileErr
	}
	if f.notFoundReads > 0 {
		f.notFoundReads--
		return nil, &domain.ErrNotFound{Resource: "profile", ID: id}
	}
	return f.Store.GetProfile(ctx, id)
}

func (f *flakyStore) UpdateProfile(ctx context.Context, id string, upd *domain.ProfileUpdate) (*domain.Profile, error) {
	if f.updateProfileErr != nil {
		return nil, f.updateProfileErr
	}
	return f.Store.UpdateProfile(ctx, id, upd)
}

func (f *flakyStore) CreatePayment(ctx context.Context, p *domain.Payment) (*domain.Payment, error) {
	if f.createPaymentErr != nil {
		return nil, f.createPaymentErr
	}
	return f.Store.CreatePayment(ctx, p)
}

func (f *flakyStore) ListDeals(ctx context.Context, filter domain.DealFilter) ([]domain.DealView, error) {
	if f.listDealsErr != nil {
		return nil, f.listDealsErr
	}
	return f.Store.ListDeals(ctx, filter)
}

type stubCheckout struct {
	session *domain.CheckoutSession
	err     error
	calls   int
	last    *domain.CheckoutRequest
}

func (s *stubCheckout) CreateCheckoutSession(_ context.Context, req *domain.CheckoutRequest) (*domain.CheckoutSession, error) {
	s.calls++
	s.last = req
	return s.session, s.err
}

func seedProfile(store *memstore.Store, p domain.Profile) *domain.Profile {
	created, err := store.CreateProfile(context.Background(), &p)
	if err != nil {
		panic(err)
	}
	return created
}

func strPtr(s string) *string { return &s }
