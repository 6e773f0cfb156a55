package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"time"
)

// ============================================================
// CRM deals (sales pipeline) & interactions
// ============================================================

// DealStatus is a pipeline stage. Any stage may move to any other.
type DealStatus string

const (
	DealStatusProspeccao     DealStatus = "prospeccao"
	DealStatusQualificado    DealStatus = "qualificado"
	DealStatusProposta       DealStatus = "proposta"
	DealStatusNegociacao     DealStatus = "negociacao"
	DealStatusFechadoGanho   DealStatus = "fechado_ganho"
	DealStatusFechadoPerdido DealStatus = "fechado_perdido"
)

// DealStatuses lists the pipeline in order.
var DealStatuses = []DealStatus{
	DealStatusProspeccao,
	DealStatusQualificado,
	DealStatusProposta,
	DealStatusNegociacao,
	DealStatusFechadoGanho,
	DealStatusFechadoPerdido,
}

// Valid reports whether s is a known pipeline stage.
func (s DealStatus) Valid() bool {
	for _, v := range DealStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Deal is a sales opportunity tied to a customer.
type Deal struct {
	ID                string     `json:"id"`
	CustomerID        string     `json:"customer_id"`
	Title             string     `json:"title"`
	Value             float64    `json:"value"`
	Status            DealStatus `json:"status"`
	ExpectedCloseDate *string    `json:"expected_close_date,omitempty"` // YYYY-MM-DD
	Notes             *string    `json:"notes,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// DealView is a deal joined with its customer's display fields.
type DealView struct {
	Deal
	CustomerName    string  `json:"customer_name"`
	CustomerEmail   string  `json:"customer_email"`
	CustomerCompany *string `json:"customer_company,omitempty"`
}

// AmountText is a currency amount sent either as a JSON number or as the
// raw text typed in the admin form. It is parsed by the service.
type AmountText string

func (a *AmountText) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*a = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = AmountText(s)
	default:
		*a = AmountText(b)
	}
	return nil
}

// DealInput is the create/update body for a deal.
type DealInput struct {
	Title             string     `json:"title"`
	Value             AmountText `json:"value"`
	Status            DealStatus `json:"status"`
	ExpectedCloseDate *string    `json:"expected_close_date,omitempty"`
	Notes             *string    `json:"notes,omitempty"`
}

// DealFilter narrows deal listings.
type DealFilter struct {
	Status     DealStatus
	CustomerID string
}

// MaxAmount is the largest value a numeric(12,2) deal column holds.
const MaxAmount = 9999999999.99

// ToCents converts a currency amount to integer cents.
func ToCents(v float64) int64 {
	return int64(math.Round(v * 100))
}

// FromCents converts integer cents back to a currency amount.
func FromCents(c int64) float64 {
	return float64(c) / 100
}

// InteractionType is the channel of a logged contact.
type InteractionType string

const (
	InteractionEmail    InteractionType = "email"
	InteractionLigacao  InteractionType = "ligacao"
	InteractionReuniao  InteractionType = "reuniao"
	InteractionWhatsApp InteractionType = "whatsapp"
	InteractionOutro    InteractionType = "outro"
)

// Valid reports whether t is a known interaction type.
func (t InteractionType) Valid() bool {
	switch t {
	case InteractionEmail, InteractionLigacao, InteractionReuniao, InteractionWhatsApp, InteractionOutro:
		return true
	}
	return false
}

// Interaction is an append-only log entry of a contact with a customer.
type Interaction struct {
	ID          string          `json:"id"`
	CustomerID  string          `json:"customer_id"`
	Type        InteractionType `json:"type"`
	Description string          `json:"description"`
	Date        time.Time       `json:"date"`
	CreatedBy   string          `json:"created_by"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// InteractionView is an interaction enriched with the author's name.
type InteractionView struct {
	Interaction
	AuthorName string `json:"author_name"`
}

// InteractionInput is the create body for an interaction.
type InteractionInput struct {
	Type        InteractionType `json:"type"`
	Description string          `json:"description"`
	Date        *time.Time      `json:"date,omitempty"`
}
