package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/boddenberg/portal-membros-go/internal/domain"
)

var profileColumns = []string{
	"id", "email", "COALESCE(full_name, '')", "COALESCE(whatsapp, '')",
	"is_admin", "payment_status", "created_at", "updated_at",
}

func scanProfile(row rowScanner) (*domain.Profile, error) {
	var p domain.Profile
	if err := row.Scan(&p.ID, &p.Email, &p.FullName, &p.WhatsApp, &p.IsAdmin, &p.PaymentStatus, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) getProfileWhere(ctx context.Context, op string, where sq.Sqlizer, id string) (*domain.Profile, error) {
	query, args, err := psql.Select(profileColumns...).From("profiles").Where(where).Limit(1).ToSql()
	if err != nil {
		return nil, mapError(op, err)
	}

	p, err := scanProfile(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "profile", ID: id}
	}
	return p, mapError(op, err)
}

func (s *Store) GetProfile(ctx context.Context, id string) (*domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Postgres.GetProfile")
	defer span.End()

	return s.getProfileWhere(ctx, "get_profile", sq.Eq{"id": id}, id)
}

func (s *Store) GetProfileByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Postgres.GetProfileByEmail")
	defer span.End()

	email = strings.ToLower(strings.TrimSpace(email))
	return s.getProfileWhere(ctx, "get_profile_by_email", sq.Expr("lower(email) = ?", email), email)
}

func (s *Store) CreateProfile(ctx context.Context, p *domain.Profile) (*domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Postgres.CreateProfile")
	defer span.End()

	now := time.Now().UTC()
	out := *p
	out.CreatedAt = now
	out.UpdatedAt = now
	if out.PaymentStatus == "" {
		out.PaymentStatus = domain.PaymentStatusPendente
	}

	query, args, err := psql.Insert("profiles").
		Columns("id", "email", "full_name", "whatsapp", "is_admin", "payment_status", "created_at", "updated_at").
		Values(out.ID, out.Email, out.FullName, out.WhatsApp, out.IsAdmin, out.PaymentStatus, out.CreatedAt, out.UpdatedAt).
		ToSql()
	if err != nil {
		return nil, mapError("create_profile", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, mapError("create_profile", err)
	}
	return &out, nil
}

func (s *Store) UpdateProfile(ctx context.Context, id string, upd *domain.ProfileUpdate) (*domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Postgres.UpdateProfile")
	defer span.End()

	b := psql.Update("profiles").Set("updated_at", time.Now().UTC()).Where(sq.Eq{"id": id})
	if upd.Email != nil {
		b = b.Set("email", *upd.Email)
	}
	if upd.FullName != nil {
		b = b.Set("full_name", *upd.FullName)
	}
	if upd.WhatsApp != nil {
		b = b.Set("whatsapp", *upd.WhatsApp)
	}
	if upd.IsAdmin != nil {
		b = b.Set("is_admin", *upd.IsAdmin)
	}
	if upd.PaymentStatus != nil {
		b = b.Set("payment_status", *upd.PaymentStatus)
	}

	query, args, err := b.Suffix("RETURNING " + strings.Join(profileColumns, ", ")).ToSql()
	if err != nil {
		return nil, mapError("update_profile", err)
	}

	p, err := scanProfile(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "profile", ID: id}
	}
	return p, mapError("update_profile", err)
}

func (s *Store) ListProfiles(ctx context.Context) ([]domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ListProfiles")
	defer span.End()

	query, args, err := psql.Select(profileColumns...).From("profiles").OrderBy("created_at DESC").ToSql()
	if err != nil {
		return nil, mapError("list_profiles", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError("list_profiles", err)
	}
	defer rows.Close()

	profiles := []domain.Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, mapError("list_profiles", err)
		}
		profiles = append(profiles, *p)
	}
	return profiles, mapError("list_profiles", rows.Err())
}
