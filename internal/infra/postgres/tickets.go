package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/boddenberg/portal-membros-go/internal/domain"
)

var ticketViewColumns = []string{
	"t.id", "t.title", "t.description", "t.status", "t.user_id", "t.created_at", "t.updated_at",
	"COALESCE(p.full_name, '')", "COALESCE(p.email, '')", "COALESCE(p.whatsapp, '')",
}

func ticketViews() sq.SelectBuilder {
	return psql.Select(ticketViewColumns...).
		From("support_tickets t").
		LeftJoin("profiles p ON p.id = t.user_id")
}

func scanTicketView(row rowScanner) (*domain.TicketView, error) {
	var v domain.TicketView
	err := row.Scan(&v.ID, &v.Title, &v.Description, &v.Status, &v.UserID, &v.CreatedAt, &v.UpdatedAt,
		&v.UserName, &v.UserEmail, &v.UserWhatsApp)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *Store) CreateTicket(ctx context.Context, t *domain.Ticket) (*domain.Ticket, error) {
	ctx, span := tracer.Start(ctx, "Postgres.CreateTicket")
	defer span.End()

	now := time.Now().UTC()
	out := *t
	out.ID = uuid.New().String()
	out.CreatedAt = now
	out.UpdatedAt = now

	query, args, err := psql.Insert("support_tickets").
		Columns("id", "title", "description", "status", "user_id", "created_at", "updated_at").
		Values(out.ID, out.Title, out.Description, out.Status, out.UserID, out.CreatedAt, out.UpdatedAt).
		ToSql()
	if err != nil {
		return nil, mapError("create_ticket", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, mapError("create_ticket", err)
	}
	return &out, nil
}

func (s *Store) GetTicket(ctx context.Context, id string) (*domain.TicketView, error) {
	ctx, span := tracer.Start(ctx, "Postgres.GetTicket")
	defer span.End()

	query, args, err := ticketViews().Where(sq.Eq{"t.id": id}).ToSql()
	if err != nil {
		return nil, mapError("get_ticket", err)
	}

	v, err := scanTicketView(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "ticket", ID: id}
	}
	return v, mapError("get_ticket", err)
}

func (s *Store) ListTickets(ctx context.Context, filter domain.TicketFilter) ([]domain.TicketView, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ListTickets")
	defer span.End()

	b := ticketViews().OrderBy("t.created_at DESC")
	if filter.UserID != "" {
		b = b.Where(sq.Eq{"t.user_id": filter.UserID})
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, mapError("list_tickets", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError("list_tickets", err)
	}
	defer rows.Close()

	views := []domain.TicketView{}
	for rows.Next() {
		v, err := scanTicketView(rows)
		if err != nil {
			return nil, mapError("list_tickets", err)
		}
		views = append(views, *v)
	}
	return views, mapError("list_tickets", rows.Err())
}

func (s *Store) UpdateTicketStatus(ctx context.Context, id string, status domain.TicketStatus) (*domain.Ticket, error) {
	ctx, span := tracer.Start(ctx, "Postgres.UpdateTicketStatus")
	defer span.End()

	query, args, err := psql.Update("support_tickets").
		Set("status", status).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING id, title, description, status, user_id, created_at, updated_at").
		ToSql()
	if err != nil {
		return nil, mapError("update_ticket_status", err)
	}

	var t domain.Ticket
	err = s.db.QueryRowContext(ctx, query, args...).
		Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.UserID, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "ticket", ID: id}
	}
	if err != nil {
		return nil, mapError("update_ticket_status", err)
	}
	return &t, nil
}

// DeleteTicket removes the responses and the ticket in one transaction.
func (s *Store) DeleteTicket(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Postgres.DeleteTicket")
	defer span.End()

	err := s.WithTransaction(ctx, func(tx *sql.Tx) error {
		query, args, err := psql.Delete("ticket_responses").Where(sq.Eq{"ticket_id": id}).ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}

		query, args, err = psql.Delete("support_tickets").Where(sq.Eq{"id": id}).ToSql()
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return &domain.ErrNotFound{Resource: "ticket", ID: id}
		}
		return nil
	})
	return mapError("delete_ticket", err)
}

func (s *Store) CreateTicketResponse(ctx context.Context, r *domain.TicketResponse) (*domain.TicketResponse, error) {
	ctx, span := tracer.Start(ctx, "Postgres.CreateTicketResponse")
	defer span.End()

	out := *r
	out.ID = uuid.New().String()
	out.CreatedAt = time.Now().UTC()

	query, args, err := psql.Insert("ticket_responses").
		Columns("id", "ticket_id", "user_id", "content", "is_admin", "created_at").
		Values(out.ID, out.TicketID, out.UserID, out.Content, out.IsAdmin, out.CreatedAt).
		ToSql()
	if err != nil {
		return nil, mapError("create_ticket_response", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, mapError("create_ticket_response", err)
	}
	return &out, nil
}

func (s *Store) ListTicketResponses(ctx context.Context, ticketID string) ([]domain.TicketMessage, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ListTicketResponses")
	defer span.End()

	query, args, err := psql.Select(
		"r.id", "r.ticket_id", "r.user_id", "r.content", "r.is_admin", "r.created_at",
		"COALESCE(NULLIF(p.full_name, ''), p.email, '')",
	).
		From("ticket_responses r").
		LeftJoin("profiles p ON p.id = r.user_id").
		Where(sq.Eq{"r.ticket_id": ticketID}).
		OrderBy("r.created_at ASC").
		ToSql()
	if err != nil {
		return nil, mapError("list_ticket_responses", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError("list_ticket_responses", err)
	}
	defer rows.Close()

	msgs := []domain.TicketMessage{}
	for rows.Next() {
		var m domain.TicketMessage
		if err := rows.Scan(&m.ID, &m.TicketID, &m.UserID, &m.Content, &m.IsAdmin, &m.CreatedAt, &m.AuthorName); err != nil {
			return nil, mapError("list_ticket_responses", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, mapError("list_ticket_responses", rows.Err())
}
