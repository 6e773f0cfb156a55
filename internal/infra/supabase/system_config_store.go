package supabase

import (
	"context"
	"net/http"
	"time"

	"github.com/boddenberg/portal-membros-go/internal/domain"
)

// ============================================================
// System configuration (single row)
// ============================================================

func (c *Client) GetSystemConfig(ctx context.Context) (*domain.SystemConfig, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetSystemConfig")
	defer span.End()

	var rows []domain.SystemConfig
	if err := c.read(ctx, "get_system_config", query("system_config", "order=updated_at.desc", "limit=1"), &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "system_config", ID: "singleton"}
	}
	return &rows[0], nil
}

func (c *Client) CreateSystemConfig(ctx context.Context, cfg *domain.SystemConfig) (*domain.SystemConfig, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateSystemConfig")
	defer span.End()

	row := systemConfigRow(&domain.SystemConfigUpdate{
		WebhookContactForm:    cfg.WebhookContactForm,
		WebhookTicketResponse: cfg.WebhookTicketResponse,
		LiveChatCode:          cfg.LiveChatCode,
		LiveChatEnabled:       cfg.LiveChatEnabled,
		ChatButtonText:        cfg.ChatButtonText,
		CalAPIKey:             cfg.CalAPIKey,
		UpdatedBy:             cfg.UpdatedBy,
	})

	var rows []domain.SystemConfig
	if err := c.write(ctx, "create_system_config", http.MethodPost, "system_config", row, preferRepresentation, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.ErrStore{Op: "create_system_config", Err: errEmptyRepresentation}
	}
	return &rows[0], nil
}

func (c *Client) UpdateSystemConfig(ctx context.Context, id string, upd *domain.SystemConfigUpdate) (*domain.SystemConfig, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateSystemConfig")
	defer span.End()

	var rows []domain.SystemConfig
	if err := c.write(ctx, "update_system_config", http.MethodPatch, query("system_config", "id="+eq(id)), systemConfigRow(upd), preferRepresentation, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "system_config", ID: id}
	}
	return &rows[0], nil
}

func systemConfigRow(u *domain.SystemConfigUpdate) map[string]any {
	row := map[string]any{"updated_at": time.Now().UTC()}
	if u.WebhookContactForm != nil {
		row["webhook_contact_form"] = *u.WebhookContactForm
	}
	if u.WebhookTicketResponse != nil {
		row["webhook_ticket_response"] = *u.WebhookTicketResponse
	}
	if u.LiveChatCode != nil {
		row["live_chat_code"] = *u.LiveChatCode
	}
	if u.LiveChatEnabled != nil {
		row["live_chat_enabled"] = *u.LiveChatEnabled
	}
	if u.ChatButtonText != nil {
		row["chat_button_text"] = *u.ChatButtonText
	}
	if u.CalAPIKey != nil {
		row["cal_api_key"] = *u.CalAPIKey
	}
	if u.UpdatedBy != nil {
		row["updated_by"] = *u.UpdatedBy
	}
	return row
}
