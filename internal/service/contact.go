package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/asaskevich/govalidator"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/boddenberg/portal-membros-go/internal/domain"
	"github.com/boddenberg/portal-membros-go/internal/port"
)

var contactTracer = otel.Tracer("service/contact")

const maxContactMessage = 5000

// ContactService relays the public contact form to the configured webhook.
type ContactService struct {
	config   ConfigLoader
	notifier port.Notifier
	logger   *zap.Logger
}

// NewContactService creates the contact form relay.
func NewContactService(config ConfigLoader, notifier port.Notifier, logger *zap.Logger) *ContactService {
	return &ContactService{config: config, notifier: notifier, logger: logger}
}

// Submit validates the form and dispatches it. A missing webhook URL is not an error.
func (s *ContactService) Submit(ctx context.Context, form *domain.ContactForm) error {
	ctx, span := contactTracer.Start(ctx, "ContactService.Submit")
	defer span.End()

	form.Name = strings.TrimSpace(form.Name)
	form.Email = strings.ToLower(strings.TrimSpace(form.Email))
	form.Phone = strings.TrimSpace(form.Phone)
	form.Company = strings.TrimSpace(form.Company)
	form.Service = strings.TrimSpace(form.Service)
	form.Message = strings.TrimSpace(form.Message)

	switch {
	case form.Name == "":
		return &domain.ErrValidation{Field: "name", Message: "Nome é obrigatório"}
	case !govalidator.IsEmail(form.Email):
		return &domain.ErrValidation{Field: "email", Message: "E-mail inválido"}
	case form.Message == "":
		return &domain.ErrValidation{Field: "message", Message: "Mensagem é obrigatória"}
	case utf8.RuneCountInString(form.Message) > maxContactMessage:
		return &domain.ErrValidation{Field: "message", Message: "Mensagem muito longa"}
	}

	cfg, err := s.config.Load(ctx)
	if err != nil {
		s.logger.Warn("contact form: config unavailable, submission not relayed", zap.Error(err))
		return nil
	}
	url := cfg.ContactFormWebhook()
	if url == "" {
		s.logger.Info("contact form received without webhook configured", zap.String("email", form.Email))
		return nil
	}

	s.notifier.Dispatch(domain.Notification{
		Event: domain.EventContactSubmitted,
		URL:   url,
		Data:  *form,
	})
	return nil
}
