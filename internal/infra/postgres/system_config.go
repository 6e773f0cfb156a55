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

var systemConfigColumns = []string{
	"id", "webhook_contact_form", "webhook_ticket_response", "live_chat_code", "live_chat_enabled",
	"chat_button_text", "cal_api_key", "updated_at", "updated_by",
}

func scanSystemConfig(row rowScanner) (*domain.SystemConfig, error) {
	var (
		c                                         domain.SystemConfig
		contact, ticket, chatCode, button, calKey sql.NullString
		updatedBy                                 sql.NullString
		chatEnabled                               sql.NullBool
	)
	err := row.Scan(&c.ID, &contact, &ticket, &chatCode, &chatEnabled, &button, &calKey, &c.UpdatedAt, &updatedBy)
	if err != nil {
		return nil, err
	}
	c.WebhookContactForm = stringPtr(contact)
	c.WebhookTicketResponse = stringPtr(ticket)
	c.LiveChatCode = stringPtr(chatCode)
	c.ChatButtonText = stringPtr(button)
	c.CalAPIKey = stringPtr(calKey)
	c.UpdatedBy = stringPtr(updatedBy)
	if chatEnabled.Valid {
		v := chatEnabled.Bool
		c.LiveChatEnabled = &v
	}
	return &c, nil
}

func (s *Store) GetSystemConfig(ctx context.Context) (*domain.SystemConfig, error) {
	ctx, span := tracer.Start(ctx, "Postgres.GetSystemConfig")
	defer span.End()

	query, args, err := psql.Select(systemConfigColumns...).From("system_config").
		OrderBy("updated_at DESC").Limit(1).ToSql()
	if err != nil {
		return nil, mapError("get_system_config", err)
	}

	c, err := scanSystemConfig(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "system_config", ID: "singleton"}
	}
	return c, mapError("get_system_config", err)
}

func (s *Store) CreateSystemConfig(ctx context.Context, cfg *domain.SystemConfig) (*domain.SystemConfig, error) {
	ctx, span := tracer.Start(ctx, "Postgres.CreateSystemConfig")
	defer span.End()

	out := *cfg
	out.ID = uuid.New().String()
	out.UpdatedAt = time.Now().UTC()

	var chatEnabled sql.NullBool
	if out.LiveChatEnabled != nil {
		chatEnabled = sql.NullBool{Bool: *out.LiveChatEnabled, Valid: true}
	}

	query, args, err := psql.Insert("system_config").
		Columns(systemConfigColumns...).
		Values(out.ID, nullString(out.WebhookContactForm), nullString(out.WebhookTicketResponse), nullString(out.LiveChatCode),
			chatEnabled, nullString(out.ChatButtonText), nullString(out.CalAPIKey), out.UpdatedAt, nullString(out.UpdatedBy)).
		ToSql()
	if err != nil {
		return nil, mapError("create_system_config", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, mapError("create_system_config", err)
	}
	return &out, nil
}

func (s *Store) UpdateSystemConfig(ctx context.Context, id string, upd *domain.SystemConfigUpdate) (*domain.SystemConfig, error) {
	ctx, span := tracer.Start(ctx, "Postgres.UpdateSystemConfig")
	defer span.End()

	b := psql.Update("system_config").Set("updated_at", time.Now().UTC()).Where(sq.Eq{"id": id})
	if upd.WebhookContactForm != nil {
		b = b.Set("webhook_contact_form", *upd.WebhookContactForm)
	}
	if upd.WebhookTicketResponse != nil {
		b = b.Set("webhook_ticket_response", *upd.WebhookTicketResponse)
	}
	if upd.LiveChatCode != nil {
		b = b.Set("live_chat_code", *upd.LiveChatCode)
	}
	if upd.LiveChatEnabled != nil {
		b = b.Set("live_chat_enabled", *upd.LiveChatEnabled)
	}
	if upd.ChatButtonText != nil {
		b = b.Set("chat_button_text", *upd.ChatButtonText)
	}
	if upd.CalAPIKey != nil {
		b = b.Set("cal_api_key", *upd.CalAPIKey)
	}
	if upd.UpdatedBy != nil {
		b = b.Set("updated_by", *upd.UpdatedBy)
	}

	query, args, err := b.Suffix("RETURNING " + strings.Join(systemConfigColumns, ", ")).ToSql()
	if err != nil {
		return nil, mapError("update_system_config", err)
	}

	c, err := scanSystemConfig(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "system_config", ID: id}
	}
	return c, mapError("update_system_config", err)
}
