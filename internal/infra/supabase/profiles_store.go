package supabase

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/boddenberg/portal-membros-go/internal/domain"
)

// ============================================================
// Profiles
// ============================================================

func (c *Client) GetProfile(ctx context.Context, id string) (*domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetProfile")
	defer span.End()
	span.SetAttributes(attribute.String("profile.id", id))

	var rows []domain.Profile
	if err := c.read(ctx, "get_profile", query("profiles", "id="+eq(id), "limit=1"), &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "profile", ID: id}
	}
	return &rows[0], nil
}

func (c *Client) GetProfileByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetProfileByEmail")
	defer span.End()

	email = strings.ToLower(strings.TrimSpace(email))
	var rows []domain.Profile
	if err := c.read(ctx, "get_profile_by_email", query("profiles", "email="+ilikeExact(email), "limit=1"), &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "profile", ID: email}
	}
	return &rows[0], nil
}

func (c *Client) CreateProfile(ctx context.Context, p *domain.Profile) (*domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateProfile")
	defer span.End()

	row := map[string]any{
		"id":             p.ID,
		"email":          p.Email,
		"full_name":      p.FullName,
		"whatsapp":       p.WhatsApp,
		"is_admin":       p.IsAdmin,
		"payment_status": p.PaymentStatus,
	}

	var rows []domain.Profile
	if err := c.write(ctx, "create_profile", http.MethodPost, "profiles", row, preferRepresentation, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.ErrStore{Op: "create_profile", Err: errEmptyRepresentation}
	}
	return &rows[0], nil
}

func (c *Client) UpdateProfile(ctx context.Context, id string, upd *domain.ProfileUpdate) (*domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateProfile")
	defer span.End()
	span.SetAttributes(attribute.String("profile.id", id))

	row := map[string]any{"updated_at": time.Now().UTC()}
	if upd.Email != nil {
		row["email"] = *upd.Email
	}
	if upd.FullName != nil {
		row["full_name"] = *upd.FullName
	}
	if upd.WhatsApp != nil {
		row["whatsapp"] = *upd.WhatsApp
	}
	if upd.IsAdmin != nil {
		row["is_admin"] = *upd.IsAdmin
	}
	if upd.PaymentStatus != nil {
		row["payment_status"] = *upd.PaymentStatus
	}

	var rows []domain.Profile
	if err := c.write(ctx, "update_profile", http.MethodPatch, query("profiles", "id="+eq(id)), row, preferRepresentation, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "profile", ID: id}
	}
	return &rows[0], nil
}

func (c *Client) ListProfiles(ctx context.Context) ([]domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListProfiles")
	defer span.End()

	rows := []domain.Profile{}
	if err := c.read(ctx, "list_profiles", query("profiles", "order=created_at.desc"), &rows); err != nil {
		return nil, err
	}
	return rows, nil
}
