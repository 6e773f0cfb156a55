package supabase

import (
	"errors"
	"net/url"
	"strings"
)

// errEmptyRepresentation is returned when a write answers without the row.
var errEmptyRepresentation = errors.New("empty representation")

// uniqueViolation is the Postgres SQLSTATE PostgREST forwards for duplicate keys.
const uniqueViolation = "23505"

// eq builds a PostgREST equality filter value with the operand escaped.
func eq(v string) string {
	return "eq." + url.QueryEscape(v)
}

// ilikeExact builds a case-insensitive equality filter. LIKE wildcards in v,
// including PostgREST's '*', are escaped so they match literally.
func ilikeExact(v string) string {
	var b strings.Builder
	for _, r := range v {
		switch r {
		case '\\', '%', '_', '*':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return "ilike." + url.QueryEscape(b.String())
}

// searchFilter builds an or=(...) filter matching term case-insensitively
// against each column. PostgREST reserved characters are stripped from term.
func searchFilter(term string, columns ...string) string {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ',', '(', ')', '"', '\\', '*', '%':
			return -1
		}
		return r
	}, strings.TrimSpace(term))
	if clean == "" {
		return ""
	}

	parts := make([]string, 0, len(columns))
	for _, col := range columns {
		parts = append(parts, col+".ilike.*"+clean+"*")
	}
	return "or=" + url.QueryEscape("("+strings.Join(parts, ",")+")")
}

// query joins non-empty PostgREST query parts.
func query(table string, parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return table
	}
	return table + "?" + strings.Join(kept, "&")
}

// profileEmbed is the subset of profiles columns embedded in joined reads.
type profileEmbed struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	WhatsApp string `json:"whatsapp"`
}

// displayName returns the full name, falling back to the e-mail.
func (p *profileEmbed) displayName() string {
	if p == nil {
		return ""
	}
	if strings.TrimSpace(p.FullName) != "" {
		return p.FullName
	}
	return p.Email
}
