package service_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/boddenberg/portal-membros-go/internal/domain"
	"github.com/boddenberg/portal-membros-go/internal/infra/memstore"
	"github.com/boddenberg/portal-membros-go/internal/service"
)

func TestContactSubmit(t *testing.T) {
	store := memstore.New()
	cfg := service.NewSystemConfigService(store, nil, zap.NewNop())
	notifier := &recordingNotifier{}
	svc := service.NewContactService(cfg, notifier, zap.NewNop())

	form := &domain.ContactForm{Name: "Carlos", Email: "carlos@empresa.com", Message: "Quero um orçamento"}

	// accepted without a webhook
	require.NoError(t, svc.Submit(context.Background(), form))
	assert.Empty(t, notifier.Sent())

	_, err := cfg.Save(context.Background(), admin, &domain.SystemConfigUpdate{WebhookContactForm: strPtr("https://hooks.example.com/contact")})
	require.NoError(t, err)

	require.NoError(t, svc.Submit(context.Background(), &domain.ContactForm{
		Name: " Carlos ", Email: "Carlos@Empresa.com", Company: "Empresa", Message: "Quero um orçamento",
	}))
	sent := notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, domain.EventContactSubmitted, sent[0].Event)
	assert.Equal(t, "https://hooks.example.com/contact", sent[0].URL)
	data := sent[0].Data.(domain.ContactForm)
	assert.Equal(t, "Carlos", data.Name)
	assert.Equal(t, "carlos@empresa.com", data.Email)
}

func TestContactSubmit_Validation(t *testing.T) {
	svc := service.NewContactService(service.NewSystemConfigService(memstore.New(), nil, zap.NewNop()), &recordingNotifier{}, zap.NewNop())

	tests := map[string]domain.ContactForm{
		"name":    {Email: "a@b.com", Message: "oi"},
		"email":   {Name: "A", Email: "invalido", Message: "oi"},
		"message": {Name: "A", Email: "a@b.com", Message: strings.Repeat("x", 5001)},
	}
	for field, form := range tests {
		form := form
		err := svc.Submit(context.Background(), &form)
		var verr *domain.ErrValidation
		require.ErrorAs(t, err, &verr, field)
		assert.Equal(t, field, verr.Field)
	}
}
