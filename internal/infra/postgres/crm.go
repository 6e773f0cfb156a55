package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/boddenberg/portal-membros-go/internal/domain"
)

// ============================================================
// CRM: customers, deals, interactions
// ============================================================

var customerColumns = []string{
	"id", "name", "email", "phone", "company", "address", "status", "notes", "created_at", "updated_at",
}

func scanCustomer(row rowScanner) (*domain.Customer, error) {
	var (
		c                       domain.Customer
		company, address, notes sql.NullString
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &company, &address, &c.Status, &notes, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Company = stringPtr(company)
	c.Address = stringPtr(address)
	c.Notes = stringPtr(notes)
	return &c, nil
}

var dealViewColumns = []string{
	"d.id", "d.customer_id", "d.title", "d.value", "d.status",
	"to_char(d.expected_close_date, 'YYYY-MM-DD')", "d.notes", "d.created_at", "d.updated_at",
	"COALESCE(c.name, '')", "COALESCE(c.email, '')", "c.company",
}

func dealViews() sq.SelectBuilder {
	return psql.Select(dealViewColumns...).
		From("deals d").
		LeftJoin("customers c ON c.id = d.customer_id")
}

func scanDealView(row rowScanner) (*domain.DealView, error) {
	var (
		v                     domain.DealView
		closeDate, notes, com sql.NullString
	)
	err := row.Scan(&v.ID, &v.CustomerID, &v.Title, &v.Value, &v.Status, &closeDate, &notes, &v.CreatedAt, &v.UpdatedAt,
		&v.CustomerName, &v.CustomerEmail, &com)
	if err != nil {
		return nil, err
	}
	v.ExpectedCloseDate = stringPtr(closeDate)
	v.Notes = stringPtr(notes)
	v.CustomerCompany = stringPtr(com)
	return &v, nil
}

// --- Customers ---

func (s *Store) CreateCustomer(ctx context.Context, c *domain.Customer) (*domain.Customer, error) {
	ctx, span := tracer.Start(ctx, "Postgres.CreateCustomer")
	defer span.End()

	now := time.Now().UTC()
	out := *c
	out.ID = uuid.New().String()
	out.CreatedAt = now
	out.UpdatedAt = now

	query, args, err := psql.Insert("customers").
		Columns(customerColumns...).
		Values(out.ID, out.Name, out.Email, out.Phone, nullString(out.Company), nullString(out.Address),
			out.Status, nullString(out.Notes), out.CreatedAt, out.UpdatedAt).
		ToSql()
	if err != nil {
		return nil, mapError("create_customer", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, mapError("create_customer", err)
	}
	return &out, nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	ctx, span := tracer.Start(ctx, "Postgres.GetCustomer")
	defer span.End()

	query, args, err := psql.Select(customerColumns...).From("customers").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, mapError("get_customer", err)
	}

	c, err := scanCustomer(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "customer", ID: id}
	}
	return c, mapError("get_customer", err)
}

func (s *Store) UpdateCustomer(ctx context.Context, c *domain.Customer) (*domain.Customer, error) {
	ctx, span := tracer.Start(ctx, "Postgres.UpdateCustomer")
	defer span.End()

	query, args, err := psql.Update("customers").
		Set("name", c.Name).
		Set("email", c.Email).
		Set("phone", c.Phone).
		Set("company", nullString(c.Company)).
		Set("address", nullString(c.Address)).
		Set("status", c.Status).
		Set("notes", nullString(c.Notes)).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": c.ID}).
		Suffix("RETURNING " + strings.Join(customerColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, mapError("update_customer", err)
	}

	out, err := scanCustomer(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "customer", ID: c.ID}
	}
	return out, mapError("update_customer", err)
}

// DeleteCustomer removes interactions, deals and the customer in one transaction.
func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Postgres.DeleteCustomer")
	defer span.End()

	err := s.WithTransaction(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"interactions", "deals"} {
			query, args, err := psql.Delete(table).Where(sq.Eq{"customer_id": id}).ToSql()
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return err
			}
		}

		query, args, err := psql.Delete("customers").Where(sq.Eq{"id": id}).ToSql()
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return &domain.ErrNotFound{Resource: "customer", ID: id}
		}
		return nil
	})
	return mapError("delete_customer", err)
}

func (s *Store) ListCustomers(ctx context.Context, search string) ([]domain.Customer, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ListCustomers")
	defer span.End()

	b := psql.Select(customerColumns...).From("customers").OrderBy("created_at DESC")
	if term := strings.TrimSpace(search); term != "" {
		pattern := "%" + escapeLike(term) + "%"
		b = b.Where(sq.Or{
			sq.ILike{"name": pattern},
			sq.ILike{"email": pattern},
			sq.ILike{"phone": pattern},
		})
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, mapError("list_customers", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError("list_customers", err)
	}
	defer rows.Close()

	customers := []domain.Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, mapError("list_customers", err)
		}
		customers = append(customers, *c)
	}
	return customers, mapError("list_customers", rows.Err())
}

func escapeLike(v string) string {
	return strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(v)
}

// --- Deals ---

func (s *Store) CreateDeal(ctx context.Context, d *domain.Deal) (*domain.Deal, error) {
	ctx, span := tracer.Start(ctx, "Postgres.CreateDeal")
	defer span.End()

	now := time.Now().UTC()
	out := *d
	out.ID = uuid.New().String()
	out.CreatedAt = now
	out.UpdatedAt = now

	query, args, err := psql.Insert("deals").
		Columns("id", "customer_id", "title", "value", "status", "expected_close_date", "notes", "created_at", "updated_at").
		Values(out.ID, out.CustomerID, out.Title, out.Value, out.Status, nullString(out.ExpectedCloseDate),
			nullString(out.Notes), out.CreatedAt, out.UpdatedAt).
		ToSql()
	if err != nil {
		return nil, mapError("create_deal", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, mapError("create_deal", err)
	}
	return &out, nil
}

func (s *Store) GetDeal(ctx context.Context, id string) (*domain.DealView, error) {
	ctx, span := tracer.Start(ctx, "Postgres.GetDeal")
	defer span.End()

	query, args, err := dealViews().Where(sq.Eq{"d.id": id}).ToSql()
	if err != nil {
		return nil, mapError("get_deal", err)
	}

	v, err := scanDealView(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "deal", ID: id}
	}
	return v, mapError("get_deal", err)
}

func (s *Store) UpdateDeal(ctx context.Context, d *domain.Deal) (*domain.Deal, error) {
	ctx, span := tracer.Start(ctx, "Postgres.UpdateDeal")
	defer span.End()

	query, args, err := psql.Update("deals").
		Set("title", d.Title).
		Set("value", d.Value).
		Set("status", d.Status).
		Set("expected_close_date", nullString(d.ExpectedCloseDate)).
		Set("notes", nullString(d.Notes)).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": d.ID}).
		Suffix("RETURNING id, customer_id, title, value, status, to_char(expected_close_date, 'YYYY-MM-DD'), notes, created_at, updated_at").
		ToSql()
	if err != nil {
		return nil, mapError("update_deal", err)
	}

	var (
		out              domain.Deal
		closeDate, notes sql.NullString
	)
	err = s.db.QueryRowContext(ctx, query, args...).
		Scan(&out.ID, &out.CustomerID, &out.Title, &out.Value, &out.Status, &closeDate, &notes, &out.CreatedAt, &out.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "deal", ID: d.ID}
	}
	if err != nil {
		return nil, mapError("update_deal", err)
	}
	out.ExpectedCloseDate = stringPtr(closeDate)
	out.Notes = stringPtr(notes)
	return &out, nil
}

func (s *Store) DeleteDeal(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Postgres.DeleteDeal")
	defer span.End()

	query, args, err := psql.Delete("deals").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return mapError("delete_deal", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return mapError("delete_deal", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.ErrNotFound{Resource: "deal", ID: id}
	}
	return nil
}

func (s *Store) ListDeals(ctx context.Context, filter domain.DealFilter) ([]domain.DealView, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ListDeals")
	defer span.End()

	b := dealViews().OrderBy("d.created_at DESC")
	if filter.Status != "" {
		b = b.Where(sq.Eq{"d.status": filter.Status})
	}
	if filter.CustomerID != "" {
		b = b.Where(sq.Eq{"d.customer_id": filter.CustomerID})
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, mapError("list_deals", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError("list_deals", err)
	}
	defer rows.Close()

	views := []domain.DealView{}
	for rows.Next() {
		v, err := scanDealView(rows)
		if err != nil {
			return nil, mapError("list_deals", err)
		}
		views = append(views, *v)
	}
	return views, mapError("list_deals", rows.Err())
}

// --- Interactions ---

func (s *Store) CreateInteraction(ctx context.Context, i *domain.Interaction) (*domain.Interaction, error) {
	ctx, span := tracer.Start(ctx, "Postgres.CreateInteraction")
	defer span.End()

	now := time.Now().UTC()
	out := *i
	out.ID = uuid.New().String()
	out.Date = out.Date.UTC()
	out.CreatedAt = now
	out.UpdatedAt = now

	query, args, err := psql.Insert("interactions").
		Columns("id", "customer_id", "type", "description", "date", "created_by", "created_at", "updated_at").
		Values(out.ID, out.CustomerID, out.Type, out.Description, out.Date, out.CreatedBy, out.CreatedAt, out.UpdatedAt).
		ToSql()
	if err != nil {
		return nil, mapError("create_interaction", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, mapError("create_interaction", err)
	}
	return &out, nil
}

func (s *Store) ListInteractions(ctx context.Context, customerID string) ([]domain.InteractionView, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ListInteractions")
	defer span.End()

	query, args, err := psql.Select(
		"i.id", "i.customer_id", "i.type", "i.description", "i.date", "i.created_by", "i.created_at", "i.updated_at",
		"COALESCE(NULLIF(p.full_name, ''), p.email, '')",
	).
		From("interactions i").
		LeftJoin("profiles p ON p.id = i.created_by").
		Where(sq.Eq{"i.customer_id": customerID}).
		OrderBy("i.date DESC").
		ToSql()
	if err != nil {
		return nil, mapError("list_interactions", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError("list_interactions", err)
	}
	defer rows.Close()

	views := []domain.InteractionView{}
	for rows.Next() {
		var v domain.InteractionView
		if err := rows.Scan(&v.ID, &v.CustomerID, &v.Type, &v.Description, &v.Date, &v.CreatedBy, &v.CreatedAt, &v.UpdatedAt, &v.AuthorName); err != nil {
			return nil, mapError("list_interactions", err)
		}
		views = append(views, v)
	}
	return views, mapError("list_interactions", rows.Err())
}
