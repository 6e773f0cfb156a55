package service_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/boddenberg/portal-membros-go/internal/domain"
	"github.com/boddenberg/portal-membros-go/internal/infra/memstore"
	"github.com/boddenberg/portal-membros-go/internal/service"
)

func newCRM(t *testing.T) (*service.CRMService, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	seedProfile(store, domain.Profile{ID: admin.ID, Email: admin.Email, FullName: "Suporte", IsAdmin: true})
	return service.NewCRMService(store, nil, zap.NewNop()), store
}

func acme() *domain.CustomerInput {
	return &domain.CustomerInput{
		Name:   "Acme",
		Email:  "a@acme.com",
		Phone:  "11999999999",
		Status: domain.CustomerStatusPotencial,
	}
}

// Scenarios: a new deal does not count as revenue until it is won.
func TestScenario_DashboardRevenue(t *testing.T) {
	svc, _ := newCRM(t)
	ctx := context.Background()

	customer, err := svc.CreateCustomer(ctx, acme())
	require.NoError(t, err)

	deal, err := svc.CreateDeal(ctx, customer.ID, &domain.DealInput{
		Title:  "Contrato Anual",
		Value:  "1200.00",
		Status: domain.DealStatusProspeccao,
	})
	require.NoError(t, err)

	stats, err := svc.ComputeStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalCustomers)
	assert.Equal(t, 1, stats.CustomersByStatus[domain.CustomerStatusPotencial])
	assert.Equal(t, 1, stats.TotalDeals)
	assert.Equal(t, 0.0, stats.TotalRevenue)
	assert.Equal(t, 1200.0, stats.PipelineValue)

	_, err = svc.UpdateDeal(ctx, deal.ID, &domain.DealInput{
		Title:  deal.Title,
		Value:  "1200.00",
		Status: domain.DealStatusFechadoGanho,
	})
	require.NoError(t, err)

	stats, err = svc.ComputeStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1200.00, stats.TotalRevenue)
	assert.Equal(t, domain.DealStageStat{Count: 1, Value: 1200}, stats.DealsByStatus[domain.DealStatusFechadoGanho])
	assert.Equal(t, domain.DealStageStat{}, stats.DealsByStatus[domain.DealStatusProspeccao])
	assert.Equal(t, 0.0, stats.PipelineValue)
}

func TestComputeStats_SumsInCents(t *testing.T) {
	svc, _ := newCRM(t)
	ctx := context.Background()
	customer, err := svc.CreateCustomer(ctx, acme())
	require.NoError(t, err)

	for _, v := range []domain.AmountText{"0.10", "0.20"} {
		_, err := svc.CreateDeal(ctx, customer.ID, &domain.DealInput{Title: "x", Value: v, Status: domain.DealStatusFechadoGanho})
		require.NoError(t, err)
	}

	stats, err := svc.ComputeStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0.3, stats.TotalRevenue)
	assert.Len(t, stats.DealsByStatus, len(domain.DealStatuses))
	assert.Len(t, stats.CustomersByStatus, len(domain.CustomerStatuses))
}

func TestComputeStats_StoreError(t *testing.T) {
	store := &flakyStore{Store: memstore.New(), listDealsErr: &domain.ErrStore{Op: "list_deals", Err: errStoreDown}}
	rec := &opRecorder{}
	svc := service.NewCRMService(store, rec, zap.NewNop())

	_, err := svc.ComputeStats(context.Background())
	var serr *domain.ErrStore
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, []string{"crm.compute_stats"}, rec.ops)
}

func TestCreateDeal_RejectsBadValues(t *testing.T) {
	svc, store := newCRM(t)
	customer, err := svc.CreateCustomer(context.Background(), acme())
	require.NoError(t, err)

	for _, v := range []domain.AmountText{"-1", "-0.01", "abc", "", "NaN", "Inf", "12,5,0", "1e20", "99999999999999999999", "10000000000", "9999999999.999"} {
		t.Run(string(v), func(t *testing.T) {
			_, err := svc.CreateDeal(context.Background(), customer.ID, &domain.DealInput{Title: "Contrato", Value: v})
			var verr *domain.ErrValidation
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "value", verr.Field)
		})
	}

	deals, err := store.ListDeals(context.Background(), domain.DealFilter{})
	require.NoError(t, err)
	assert.Empty(t, deals)
}

func TestParseAmount(t *testing.T) {
	tests := map[domain.AmountText]float64{
		"0":             0,
		"1200":          1200,
		"1200.5":        1200.5,
		"1200,50":       1200.5,
		" 99.999 ":      100,
		"9999999999.99": 9999999999.99,
	}
	for in, want := range tests {
		got, err := service.ParseAmount(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestDealInput_ValueAcceptsNumberOrString(t *testing.T) {
	var in domain.DealInput
	require.NoError(t, json.Unmarshal([]byte(`{"title":"a","value":1500.5}`), &in))
	assert.Equal(t, domain.AmountText("1500.5"), in.Value)

	require.NoError(t, json.Unmarshal([]byte(`{"title":"a","value":"1500,50"}`), &in))
	assert.Equal(t, domain.AmountText("1500,50"), in.Value)
}

func TestCreateDeal_Validation(t *testing.T) {
	svc, _ := newCRM(t)
	customer, err := svc.CreateCustomer(context.Background(), acme())
	require.NoError(t, err)

	_, err = svc.CreateDeal(context.Background(), customer.ID, &domain.DealInput{Title: " ", Value: "10"})
	var verr *domain.ErrValidation
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "title", verr.Field)

	_, err = svc.CreateDeal(context.Background(), customer.ID, &domain.DealInput{Title: "x", Value: "10", Status: "ganho"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "status", verr.Field)

	_, err = svc.CreateDeal(context.Background(), customer.ID, &domain.DealInput{Title: "x", Value: "10", ExpectedCloseDate: strPtr("31/12/2025")})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "expected_close_date", verr.Field)

	_, err = svc.CreateDeal(context.Background(), "missing", &domain.DealInput{Title: "x", Value: "10"})
	var nf *domain.ErrNotFound
	require.ErrorAs(t, err, &nf)

	d, err := svc.CreateDeal(context.Background(), customer.ID, &domain.DealInput{Title: "x", Value: "10", ExpectedCloseDate: strPtr("2025-12-31")})
	require.NoError(t, err)
	assert.Equal(t, domain.DealStatusProspeccao, d.Status)
	require.NotNil(t, d.ExpectedCloseDate)
	assert.Equal(t, "2025-12-31", *d.ExpectedCloseDate)
}

func TestListDeals_FilterAndJoin(t *testing.T) {
	svc, _ := newCRM(t)
	ctx := context.Background()
	c1, err := svc.CreateCustomer(ctx, acme())
	require.NoError(t, err)
	in := acme()
	in.Name, in.Email = "Globex", "contato@globex.com"
	c2, err := svc.CreateCustomer(ctx, in)
	require.NoError(t, err)

	_, err = svc.CreateDeal(ctx, c1.ID, &domain.DealInput{Title: "A", Value: "1", Status: domain.DealStatusProposta})
	require.NoError(t, err)
	_, err = svc.CreateDeal(ctx, c2.ID, &domain.DealInput{Title: "B", Value: "2", Status: domain.DealStatusProposta})
	require.NoError(t, err)
	_, err = svc.CreateDeal(ctx, c2.ID, &domain.DealInput{Title: "C", Value: "3", Status: domain.DealStatusNegociacao})
	require.NoError(t, err)

	deals, err := svc.ListDeals(ctx, domain.DealFilter{Status: domain.DealStatusProposta})
	require.NoError(t, err)
	assert.Len(t, deals, 2)

	deals, err = svc.ListDeals(ctx, domain.DealFilter{CustomerID: c2.ID})
	require.NoError(t, err)
	require.Len(t, deals, 2)
	assert.Equal(t, "Globex", deals[0].CustomerName)

	_, err = svc.ListDeals(ctx, domain.DealFilter{Status: "perdido"})
	var verr *domain.ErrValidation
	require.ErrorAs(t, err, &verr)
}

func TestCustomerValidation(t *testing.T) {
	svc, _ := newCRM(t)

	tests := []struct {
		field  string
		mutate func(*domain.CustomerInput)
	}{
		{"name", func(in *domain.CustomerInput) { in.Name = "" }},
		{"email", func(in *domain.CustomerInput) { in.Email = "" }},
		{"email", func(in *domain.CustomerInput) { in.Email = "not-an-email" }},
		{"phone", func(in *domain.CustomerInput) { in.Phone = " " }},
		{"status", func(in *domain.CustomerInput) { in.Status = "vip" }},
	}
	for _, tt := range tests {
		in := acme()
		tt.mutate(in)
		_, err := svc.CreateCustomer(context.Background(), in)
		var verr *domain.ErrValidation
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, tt.field, verr.Field)
	}

	in := acme()
	in.Status = ""
	in.Email = " A@ACME.com "
	c, err := svc.CreateCustomer(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, domain.CustomerStatusAtivo, c.Status)
	assert.Equal(t, "a@acme.com", c.Email)
}

func TestListCustomers_Search(t *testing.T) {
	svc, _ := newCRM(t)
	ctx := context.Background()
	_, err := svc.CreateCustomer(ctx, acme())
	require.NoError(t, err)
	in := acme()
	in.Name, in.Email, in.Phone = "Globex", "contato@globex.com", "2133334444"
	_, err = svc.CreateCustomer(ctx, in)
	require.NoError(t, err)

	for q, want := range map[string]int{"": 2, "ACME": 1, "globex.com": 1, "3333": 1, "zzz": 0} {
		got, err := svc.ListCustomers(ctx, q)
		require.NoError(t, err)
		assert.Len(t, got, want, q)
	}
}

func TestDeleteCustomer_Cascades(t *testing.T) {
	svc, store := newCRM(t)
	ctx := context.Background()
	c, err := svc.CreateCustomer(ctx, acme())
	require.NoError(t, err)
	_, err = svc.CreateDeal(ctx, c.ID, &domain.DealInput{Title: "A", Value: "10"})
	require.NoError(t, err)
	_, err = svc.CreateInteraction(ctx, c.ID, admin, &domain.InteractionInput{Type: domain.InteractionLigacao, Description: "Primeiro contato"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteCustomer(ctx, c.ID))

	deals, err := store.ListDeals(ctx, domain.DealFilter{CustomerID: c.ID})
	require.NoError(t, err)
	assert.Empty(t, deals)
	interactions, err := store.ListInteractions(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, interactions)

	_, err = svc.GetCustomer(ctx, c.ID)
	var nf *domain.ErrNotFound
	require.ErrorAs(t, err, &nf)
}

func TestInteractions(t *testing.T) {
	svc, _ := newCRM(t)
	ctx := context.Background()
	c, err := svc.CreateCustomer(ctx, acme())
	require.NoError(t, err)

	older := time.Date(2025, 1, 10, 14, 0, 0, 0, time.UTC)
	_, err = svc.CreateInteraction(ctx, c.ID, admin, &domain.InteractionInput{Type: domain.InteractionReuniao, Description: "Kickoff", Date: &older})
	require.NoError(t, err)
	_, err = svc.CreateInteraction(ctx, c.ID, admin, &domain.InteractionInput{Type: domain.InteractionWhatsApp, Description: "Follow-up"})
	require.NoError(t, err)

	list, err := svc.ListInteractions(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Follow-up", list[0].Description, "newest first")
	assert.Equal(t, "Suporte", list[0].AuthorName)
	assert.Equal(t, admin.ID, list[1].CreatedBy)

	_, err = svc.CreateInteraction(ctx, c.ID, admin, &domain.InteractionInput{Type: "fax", Description: "x"})
	var verr *domain.ErrValidation
	require.ErrorAs(t, err, &verr)

	_, err = svc.CreateInteraction(ctx, c.ID, domain.Actor{}, &domain.InteractionInput{Type: domain.InteractionOutro, Description: "x"})
	var unauth *domain.ErrUnauthorized
	require.ErrorAs(t, err, &unauth)
}
