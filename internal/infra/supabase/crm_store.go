package supabase

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/boddenberg/portal-membros-go/internal/domain"
)

// ============================================================
// CRM: customers, deals, interactions
// ============================================================

const (
	dealSelect        = "select=*,customers(name,email,company)"
	interactionSelect = "select=*,author:profiles!created_by(full_name,email)"
)

type customerEmbed struct {
	Name    string  `json:"name"`
	Email   string  `json:"email"`
	Company *string `json:"company"`
}

type dealRow struct {
	domain.Deal
	Customer *customerEmbed `json:"customers"`
}

func (r dealRow) view() domain.DealView {
	v := domain.DealView{Deal: r.Deal}
	if r.Customer != nil {
		v.CustomerName = r.Customer.Name
		v.CustomerEmail = r.Customer.Email
		v.CustomerCompany = r.Customer.Company
	}
	return v
}

type interactionRow struct {
	domain.Interaction
	Author *profileEmbed `json:"author"`
}

func customerRow(cu *domain.Customer) map[string]any {
	return map[string]any{
		"name":    cu.Name,
		"email":   cu.Email,
		"phone":   cu.Phone,
		"company": cu.Company,
		"address": cu.Address,
		"status":  cu.Status,
		"notes":   cu.Notes,
	}
}

func dealRowMap(d *domain.Deal) map[string]any {
	return map[string]any{
		"customer_id":         d.CustomerID,
		"title":               d.Title,
		"value":               d.Value,
		"status":              d.Status,
		"expected_close_date": d.ExpectedCloseDate,
		"notes":               d.Notes,
	}
}

// --- Customers ---

func (c *Client) CreateCustomer(ctx context.Context, cu *domain.Customer) (*domain.Customer, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateCustomer")
	defer span.End()

	var rows []domain.Customer
	if err := c.write(ctx, "create_customer", http.MethodPost, "customers", customerRow(cu), preferRepresentation, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.ErrStore{Op: "create_customer", Err: errEmptyRepresentation}
	}
	return &rows[0], nil
}

func (c *Client) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetCustomer")
	defer span.End()
	span.SetAttributes(attribute.String("customer.id", id))

	var rows []domain.Customer
	if err := c.read(ctx, "get_customer", query("customers", "id="+eq(id), "limit=1"), &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "customer", ID: id}
	}
	return &rows[0], nil
}

func (c *Client) UpdateCustomer(ctx context.Context, cu *domain.Customer) (*domain.Customer, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateCustomer")
	defer span.End()
	span.SetAttributes(attribute.String("customer.id", cu.ID))

	row := customerRow(cu)
	row["updated_at"] = time.Now().UTC()

	var rows []domain.Customer
	if err := c.write(ctx, "update_customer", http.MethodPatch, query("customers", "id="+eq(cu.ID)), row, preferRepresentation, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "customer", ID: cu.ID}
	}
	return &rows[0], nil
}

// DeleteCustomer removes interactions, deals and the customer in one
// transaction through the delete_customer_cascade function.
func (c *Client) DeleteCustomer(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteCustomer")
	defer span.End()
	span.SetAttributes(attribute.String("customer.id", id))

	var deleted bool
	if err := c.rpc(ctx, "delete_customer_cascade", map[string]any{"p_customer_id": id}, &deleted); err != nil {
		return err
	}
	if !deleted {
		return &domain.ErrNotFound{Resource: "customer", ID: id}
	}
	return nil
}

func (c *Client) ListCustomers(ctx context.Context, search string) ([]domain.Customer, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListCustomers")
	defer span.End()

	rows := []domain.Customer{}
	path := query("customers", searchFilter(search, "name", "email", "phone"), "order=created_at.desc")
	if err := c.read(ctx, "list_customers", path, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// --- Deals ---

func (c *Client) CreateDeal(ctx context.Context, d *domain.Deal) (*domain.Deal, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateDeal")
	defer span.End()

	var rows []domain.Deal
	if err := c.write(ctx, "create_deal", http.MethodPost, "deals", dealRowMap(d), preferRepresentation, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.ErrStore{Op: "create_deal", Err: errEmptyRepresentation}
	}
	return &rows[0], nil
}

func (c *Client) GetDeal(ctx context.Context, id string) (*domain.DealView, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetDeal")
	defer span.End()
	span.SetAttributes(attribute.String("deal.id", id))

	var rows []dealRow
	if err := c.read(ctx, "get_deal", query("deals", dealSelect, "id="+eq(id), "limit=1"), &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "deal", ID: id}
	}
	v := rows[0].view()
	return &v, nil
}

func (c *Client) UpdateDeal(ctx context.Context, d *domain.Deal) (*domain.Deal, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateDeal")
	defer span.End()
	span.SetAttributes(attribute.String("deal.id", d.ID))

	row := dealRowMap(d)
	row["updated_at"] = time.Now().UTC()

	var rows []domain.Deal
	if err := c.write(ctx, "update_deal", http.MethodPatch, query("deals", "id="+eq(d.ID)), row, preferRepresentation, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "deal", ID: d.ID}
	}
	return &rows[0], nil
}

func (c *Client) DeleteDeal(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteDeal")
	defer span.End()
	span.SetAttributes(attribute.String("deal.id", id))

	var rows []domain.Deal
	if err := c.write(ctx, "delete_deal", http.MethodDelete, query("deals", "id="+eq(id)), nil, preferRepresentation, &rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		return &domain.ErrNotFound{Resource: "deal", ID: id}
	}
	return nil
}

func (c *Client) ListDeals(ctx context.Context, filter domain.DealFilter) ([]domain.DealView, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListDeals")
	defer span.End()

	var statusFilter, customerFilter string
	if filter.Status != "" {
		statusFilter = "status=" + eq(string(filter.Status))
	}
	if filter.CustomerID != "" {
		customerFilter = "customer_id=" + eq(filter.CustomerID)
	}

	var rows []dealRow
	path := query("deals", dealSelect, statusFilter, customerFilter, "order=created_at.desc")
	if err := c.read(ctx, "list_deals", path, &rows); err != nil {
		return nil, err
	}

	views := make([]domain.DealView, 0, len(rows))
	for _, r := range rows {
		views = append(views, r.view())
	}
	return views, nil
}

// --- Interactions ---

func (c *Client) CreateInteraction(ctx context.Context, i *domain.Interaction) (*domain.Interaction, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateInteraction")
	defer span.End()

	row := map[string]any{
		"customer_id": i.CustomerID,
		"type":        i.Type,
		"description": i.Description,
		"date":        i.Date.UTC(),
		"created_by":  i.CreatedBy,
	}

	var rows []domain.Interaction
	if err := c.write(ctx, "create_interaction", http.MethodPost, "interactions", row, preferRepresentation, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.ErrStore{Op: "create_interaction", Err: errEmptyRepresentation}
	}
	return &rows[0], nil
}

func (c *Client) ListInteractions(ctx context.Context, customerID string) ([]domain.InteractionView, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListInteractions")
	defer span.End()
	span.SetAttributes(attribute.String("customer.id", customerID))

	var rows []interactionRow
	path := query("interactions", interactionSelect, "customer_id="+eq(customerID), "order=date.desc")
	if err := c.read(ctx, "list_interactions", path, &rows); err != nil {
		return nil, err
	}

	views := make([]domain.InteractionView, 0, len(rows))
	for _, r := range rows {
		views = append(views, domain.InteractionView{Interaction: r.Interaction, AuthorName: r.Author.displayName()})
	}
	return views, nil
}
