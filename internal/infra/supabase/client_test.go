package supabase_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/boddenberg/portal-membros-go/internal/domain"
	"github.com/boddenberg/portal-membros-go/internal/infra/resilience"
	"github.com/boddenberg/portal-membros-go/internal/infra/supabase"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *supabase.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg := resilience.Config{MaxRetries: 2, InitialBackoff: time.Millisecond}
	return supabase.NewClient(srv.Client(), srv.URL+"/", "service-key",
		resilience.NewCircuitBreaker("supabase-test", nil), cfg, zap.NewNop())
}

func TestGetTicket_JoinsOwnerProfile(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/support_tickets", r.URL.Path)
		assert.Equal(t, "service-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))
		assert.Equal(t, "eq.t-1", r.URL.Query().Get("id"))
		assert.Contains(t, r.URL.Query().Get("select"), "profiles(full_name,email,whatsapp)")

		_, _ = io.WriteString(w, `[{
			"id":"t-1","title":"Erro no login","description":"não entra","status":"aberto","user_id":"u-1",
			"created_at":"2024-03-01T10:00:00.123456+00:00","updated_at":"2024-03-01T10:00:00+00:00",
			"profiles":{"full_name":"Ana","email":"ana@ex.com","whatsapp":"+5511999999999"}
		}]`)
	})

	view, err := c.GetTicket(context.Background(), "t-1")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusAberto, view.Status)
	assert.Equal(t, "Ana", view.UserName)
	assert.Equal(t, "ana@ex.com", view.UserEmail)
	assert.Equal(t, "+5511999999999", view.UserWhatsApp)
	assert.Equal(t, 2024, view.CreatedAt.Year())
}

func TestGetTicket_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	})

	_, err := c.GetTicket(context.Background(), "missing")
	var nf *domain.ErrNotFound
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "ticket", nf.Resource)
}

func TestDeleteTicket_UsesCascadeFunction(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/v1/rpc/delete_ticket_cascade", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = io.WriteString(w, `true`)
	})

	require.NoError(t, c.DeleteTicket(context.Background(), "t-1"))
	assert.Equal(t, "t-1", body["p_ticket_id"])
}

func TestDeleteCustomer_NotFoundWhenFunctionReturnsFalse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/rpc/delete_customer_cascade", r.URL.Path)
		_, _ = io.WriteString(w, `false`)
	})

	err := c.DeleteCustomer(context.Background(), "c-1")
	var nf *domain.ErrNotFound
	assert.True(t, errors.As(err, &nf))
}

func TestCreateProfile_DuplicateIsConflict(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusConflict)
		_, _ = io.WriteString(w, `{"code":"23505","message":"duplicate key value violates unique constraint \"profiles_pkey\""}`)
	})

	_, err := c.CreateProfile(context.Background(), &domain.Profile{ID: "u-1", Email: "admin@ex.com"})
	var conflict *domain.ErrConflict
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRead_RetriesServerErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, `[{"id":"u-1","email":"ana@ex.com","payment_status":"aprovado"}]`)
	})

	p, err := c.GetProfile(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusAprovado, p.PaymentStatus)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRead_ExhaustedRetriesIsStoreError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.ListProfiles(context.Background())
	var se *domain.ErrStore
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "list_profiles", se.Op)
}

func TestListCustomers_SearchFilter(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "(name.ilike.*Silva*,email.ilike.*Silva*,phone.ilike.*Silva*)", r.URL.Query().Get("or"))
		_, _ = io.WriteString(w, `[{"id":"c-1","name":"João Silva","email":"joao@ex.com","phone":"11","status":"ativo"}]`)
	})

	rows, err := c.ListCustomers(context.Background(), " Sil(va), ")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.CustomerStatusAtivo, rows[0].Status)
}

func TestListDeals_FiltersAndJoin(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "eq.fechado_ganho", q.Get("status"))
		assert.Equal(t, "eq.c-1", q.Get("customer_id"))
		_, _ = io.WriteString(w, `[{"id":"d-1","customer_id":"c-1","title":"Site","value":1500.5,"status":"fechado_ganho",
			"expected_close_date":"2024-05-01","customers":{"name":"ACME","email":"a@acme.com","company":"ACME Ltda"}}]`)
	})

	deals, err := c.ListDeals(context.Background(), domain.DealFilter{Status: domain.DealStatusFechadoGanho, CustomerID: "c-1"})
	require.NoError(t, err)
	require.Len(t, deals, 1)
	assert.Equal(t, 1500.5, deals[0].Value)
	assert.Equal(t, "ACME", deals[0].CustomerName)
	require.NotNil(t, deals[0].CustomerCompany)
	assert.Equal(t, "ACME Ltda", *deals[0].CustomerCompany)
	require.NotNil(t, deals[0].ExpectedCloseDate)
	assert.Equal(t, "2024-05-01", *deals[0].ExpectedCloseDate)
}

func TestListInteractions_AuthorFallsBackToEmail(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "date.desc", r.URL.Query().Get("order"))
		_, _ = io.WriteString(w, `[{"id":"i-1","customer_id":"c-1","type":"ligacao","description":"follow-up",
			"date":"2024-03-02T15:00:00Z","created_by":"u-9","author":{"full_name":"","email":"admin@ex.com"}}]`)
	})

	rows, err := c.ListInteractions(context.Background(), "c-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "admin@ex.com", rows[0].AuthorName)
	assert.Equal(t, domain.InteractionLigacao, rows[0].Type)
}

func TestUpsertSubscriber_MergesOnUserID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "user_id", r.URL.Query().Get("on_conflict"))
		assert.Contains(t, r.Header.Get("Prefer"), "resolution=merge-duplicates")

		var row map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&row))
		assert.Equal(t, true, row["subscribed"])
		_, hasCustomer := row["stripe_customer_id"]
		assert.False(t, hasCustomer)

		_, _ = io.WriteString(w, `[{"user_id":"u-1","email":"ana@ex.com","subscribed":true}]`)
	})

	s, err := c.UpsertSubscriber(context.Background(), &domain.Subscriber{UserID: "u-1", Email: "ana@ex.com", Subscribed: true})
	require.NoError(t, err)
	assert.True(t, s.Subscribed)
}

func TestRecordSubscriberIntent_OmitsSubscribed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "user_id", r.URL.Query().Get("on_conflict"))
		assert.Contains(t, r.Header.Get("Prefer"), "resolution=merge-duplicates")

		var row map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&row))
		for _, col := range []string{"subscribed", "subscription_tier", "subscription_end"} {
			_, has := row[col]
			assert.False(t, has, col)
		}
		assert.Equal(t, "cus_1", row["stripe_customer_id"])

		_, _ = io.WriteString(w, `[{"user_id":"u-1","email":"ana@ex.com","stripe_customer_id":"cus_1","subscribed":true}]`)
	})

	cus := "cus_1"
	s, err := c.RecordSubscriberIntent(context.Background(), &domain.Subscriber{UserID: "u-1", Email: "ana@ex.com", StripeCustomerID: &cus})
	require.NoError(t, err)
	assert.True(t, s.Subscribed)
}

func TestGetProfileByEmail_CaseInsensitive(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/profiles", r.URL.Path)
		assert.Equal(t, `ilike.ana\_b@example.com`, r.URL.Query().Get("email"))
		_, _ = io.WriteString(w, `[{"id":"u-1","email":"Ana_B@Example.com","payment_status":"pendente"}]`)
	})

	p, err := c.GetProfileByEmail(context.Background(), " Ana_B@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, "u-1", p.ID)
}

func TestGetProfileByEmail_WildcardsMatchLiterally(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, `ilike.\*\%@ex.com`, r.URL.Query().Get("email"))
		_, _ = io.WriteString(w, `[]`)
	})

	_, err := c.GetProfileByEmail(context.Background(), "*%@ex.com")
	var nf *domain.ErrNotFound
	assert.True(t, errors.As(err, &nf))
}

func TestGetSystemConfig_NoRowIsNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	})

	_, err := c.GetSystemConfig(context.Background())
	var nf *domain.ErrNotFound
	assert.True(t, errors.As(err, &nf))
}

func TestUpdateSystemConfig_SendsOnlySetFields(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "eq.cfg-1", r.URL.Query().Get("id"))

		var row map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&row))
		assert.Equal(t, "https://hooks.example.com/ticket", row["webhook_ticket_response"])
		assert.Equal(t, "admin-1", row["updated_by"])
		_, hasChat := row["live_chat_code"]
		assert.False(t, hasChat)

		_, _ = io.WriteString(w, `[{"id":"cfg-1","webhook_ticket_response":"https://hooks.example.com/ticket","updated_by":"admin-1"}]`)
	})

	url := "https://hooks.example.com/ticket"
	by := "admin-1"
	cfg, err := c.UpdateSystemConfig(context.Background(), "cfg-1", &domain.SystemConfigUpdate{WebhookTicketResponse: &url, UpdatedBy: &by})
	require.NoError(t, err)
	assert.Equal(t, url, cfg.TicketWebhook())
}
