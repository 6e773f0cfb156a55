package domain

import "time"

// ============================================================
// System configuration aggregate
// ============================================================

// SystemConfig holds admin-managed settings. There is at most one row.
type SystemConfig struct {
	ID                    string    `json:"id"`
	WebhookContactForm    *string   `json:"webhook_contact_form,omitempty"`
	WebhookTicketResponse *string   `json:"webhook_ticket_response,omitempty"`
	LiveChatCode          *string   `json:"live_chat_code,omitempty"`
	LiveChatEnabled       *bool     `json:"live_chat_enabled,omitempty"`
	ChatButtonText        *string   `json:"chat_button_text,omitempty"`
	CalAPIKey             *string   `json:"cal_api_key,omitempty"`
	UpdatedAt             time.Time `json:"updated_at"`
	UpdatedBy             *string   `json:"updated_by,omitempty"`
}

// ContactFormWebhook returns the configured contact form URL, or "".
func (c *SystemConfig) ContactFormWebhook() string {
	if c == nil || c.WebhookContactForm == nil {
		return ""
	}
	return *c.WebhookContactForm
}

// TicketWebhook returns the configured ticket notification URL, or "".
func (c *SystemConfig) TicketWebhook() string {
	if c == nil || c.WebhookTicketResponse == nil {
		return ""
	}
	return *c.WebhookTicketResponse
}

// SystemConfigUpdate is a partial update of the configuration aggregate.
type SystemConfigUpdate struct {
	WebhookContactForm    *string `json:"webhook_contact_form,omitempty"`
	WebhookTicketResponse *string `json:"webhook_ticket_response,omitempty"`
	LiveChatCode          *string `json:"live_chat_code,omitempty"`
	LiveChatEnabled       *bool   `json:"live_chat_enabled,omitempty"`
	ChatButtonText        *string `json:"chat_button_text,omitempty"`
	CalAPIKey             *string `json:"cal_api_key,omitempty"`
	UpdatedBy             *string `json:"-"`
}

// Apply copies the set fields of u onto c.
func (u *SystemConfigUpdate) Apply(c *SystemConfig) {
	if u.WebhookContactForm != nil {
		c.WebhookContactForm = u.WebhookContactForm
	}
	if u.WebhookTicketResponse != nil {
		c.WebhookTicketResponse = u.WebhookTicketResponse
	}
	if u.LiveChatCode != nil {
		c.LiveChatCode = u.LiveChatCode
	}
	if u.LiveChatEnabled != nil {
		c.LiveChatEnabled = u.LiveChatEnabled
	}
	if u.ChatButtonText != nil {
		c.ChatButtonText = u.ChatButtonText
	}
	if u.CalAPIKey != nil {
		c.CalAPIKey = u.CalAPIKey
	}
	if u.UpdatedBy != nil {
		c.UpdatedBy = u.UpdatedBy
	}
}

// PublicConfig is the subset of the configuration exposed without auth.
type PublicConfig struct {
	LiveChatEnabled bool   `json:"live_chat_enabled"`
	LiveChatCode    string `json:"live_chat_code,omitempty"`
	ChatButtonText  string `json:"chat_button_text,omitempty"`
}

// Public returns the unauthenticated view of the configuration.
func (c *SystemConfig) Public() PublicConfig {
	var p PublicConfig
	if c == nil {
		return p
	}
	if c.LiveChatEnabled != nil && *c.LiveChatEnabled {
		p.LiveChatEnabled = true
		if c.LiveChatCode != nil {
			p.LiveChatCode = *c.LiveChatCode
		}
	}
	if c.ChatButtonText != nil {
		p.ChatButtonText = *c.ChatButtonText
	}
	return p
}
