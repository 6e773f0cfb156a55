package domain

import (
	"strings"
	"time"
)

// ============================================================
// Profiles & access
// ============================================================

// PaymentStatus is the membership payment state stored on a profile.
type PaymentStatus string

const (
	PaymentStatusPendente PaymentStatus = "pendente"
	PaymentStatusAprovado PaymentStatus = "aprovado"
)

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	return s == PaymentStatusPendente || s == PaymentStatusAprovado
}

// Profile is the stored record of an authenticated identity.
type Profile struct {
	ID            string        `json:"id"`
	Email         string        `json:"email"`
	FullName      string        `json:"full_name"`
	WhatsApp      string        `json:"whatsapp"`
	IsAdmin       bool          `json:"is_admin"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// HasPaidAccess reports whether the profile may enter member-only areas.
// Admins always have paid access.
func (p *Profile) HasPaidAccess() bool {
	if p == nil {
		return false
	}
	return p.IsAdmin || p.PaymentStatus == PaymentStatusAprovado
}

// DisplayName returns the full name, falling back to the e-mail.
func (p *Profile) DisplayName() string {
	if p == nil {
		return ""
	}
	if strings.TrimSpace(p.FullName) != "" {
		return p.FullName
	}
	return p.Email
}

// ProfileUpdate carries a partial profile update. Nil fields are left untouched.
type ProfileUpdate struct {
	Email         *string        `json:"email,omitempty"`
	FullName      *string        `json:"full_name,omitempty"`
	WhatsApp      *string        `json:"whatsapp,omitempty"`
	IsAdmin       *bool          `json:"is_admin,omitempty"`
	PaymentStatus *PaymentStatus `json:"payment_status,omitempty"`
}

// IsEmpty reports whether the update changes nothing.
func (u *ProfileUpdate) IsEmpty() bool {
	return u == nil || (u.Email == nil && u.FullName == nil && u.WhatsApp == nil && u.IsAdmin == nil && u.PaymentStatus == nil)
}

// Identity is the authenticated caller as asserted by the auth provider token.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Access is the derived access state for an identity.
type Access struct {
	Profile *Profile `json:"profile"`
	IsAdmin bool     `json:"is_admin"`
	IsPaid  bool     `json:"is_paid"`
}

// Actor is an identity with its resolved admin flag, passed to services
// that authorise per operation.
type Actor struct {
	ID      string
	Email   string
	Name    string
	IsAdmin bool
}

// ActorFrom builds an Actor from an identity and its resolved access.
func ActorFrom(id Identity, access Access) Actor {
	return Actor{
		ID:      id.ID,
		Email:   id.Email,
		Name:    access.Profile.DisplayName(),
		IsAdmin: access.IsAdmin,
	}
}

// UpdateOwnProfileRequest is the self-service profile edit body.
type UpdateOwnProfileRequest struct {
	FullName *string `json:"full_name,omitempty"`
	WhatsApp *string `json:"whatsapp,omitempty"`
}

// SetPaymentStatusRequest is the admin body for PUT /v1/admin/profiles/{id}/payment-status.
type SetPaymentStatusRequest struct {
	PaymentStatus PaymentStatus `json:"payment_status"`
}
