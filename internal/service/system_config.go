package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/asaskevich/govalidator"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/boddenberg/portal-membros-go/internal/domain"
	"github.com/boddenberg/portal-membros-go/internal/port"
)

var configTracer = otel.Tracer("service/system_config")

const systemConfigCacheKey = "system_config"

// SystemConfigService owns the single configuration aggregate.
type SystemConfigService struct {
	store  port.SystemConfigStore
	cache  port.Cache[*domain.SystemConfig]
	logger *zap.Logger
}

// NewSystemConfigService creates the service. cache may be nil.
func NewSystemConfigService(store port.SystemConfigStore, cache port.Cache[*domain.SystemConfig], logger *zap.Logger) *SystemConfigService {
	return &SystemConfigService{store: store, cache: cache, logger: logger}
}

// Load returns the stored aggregate, or an empty one when none exists.
func (s *SystemConfigService) Load(ctx context.Context) (*domain.SystemConfig, error) {
	ctx, span := configTracer.Start(ctx, "SystemConfigService.Load")
	defer span.End()

	if s.cache != nil {
		if cfg, ok := s.cache.Get(systemConfigCacheKey); ok && cfg != nil {
			return cfg, nil
		}
	}

	cfg, err := s.store.GetSystemConfig(ctx)
	if err != nil {
		var nf *domain.ErrNotFound
		if !errors.As(err, &nf) {
			return nil, fmt.Errorf("load system config: %w", err)
		}
		cfg = &domain.SystemConfig{}
	}

	if s.cache != nil {
		s.cache.Set(systemConfigCacheKey, cfg)
	}
	return cfg, nil
}

// EnsureExists returns the stored row, creating an empty one when absent.
// A concurrent create is resolved by re-reading.
func (s *SystemConfigService) EnsureExists(ctx context.Context) (*domain.SystemConfig, error) {
	ctx, span := configTracer.Start(ctx, "SystemConfigService.EnsureExists")
	defer span.End()

	cfg, err := s.store.GetSystemConfig(ctx)
	if err == nil {
		return cfg, nil
	}
	var nf *domain.ErrNotFound
	if !errors.As(err, &nf) {
		return nil, fmt.Errorf("get system config: %w", err)
	}

	created, err := s.store.CreateSystemConfig(ctx, &domain.SystemConfig{})
	if err != nil {
		var conflict *domain.ErrConflict
		if errors.As(err, &conflict) {
			return s.store.GetSystemConfig(ctx)
		}
		return nil, fmt.Errorf("create system config: %w", err)
	}
	s.logger.Info("system config row created", zap.String("id", created.ID))
	return created, nil
}

// Save applies upd to the aggregate. Admin only.
func (s *SystemConfigService) Save(ctx context.Context, actor domain.Actor, upd *domain.SystemConfigUpdate) (*domain.SystemConfig, error) {
	ctx, span := configTracer.Start(ctx, "SystemConfigService.Save")
	defer span.End()

	if !actor.IsAdmin {
		return nil, &domain.ErrForbidden{Action: "alterar configurações"}
	}
	if err := validateWebhookURL("webhook_contact_form", upd.WebhookContactForm); err != nil {
		return nil, err
	}
	if err := validateWebhookURL("webhook_ticket_response", upd.WebhookTicketResponse); err != nil {
		return nil, err
	}

	current, err := s.EnsureExists(ctx)
	if err != nil {
		return nil, err
	}

	by := actor.ID
	upd.UpdatedBy = &by
	saved, err := s.store.UpdateSystemConfig(ctx, current.ID, upd)
	if err != nil {
		return nil, fmt.Errorf("update system config: %w", err)
	}

	if s.cache != nil {
		s.cache.Delete(systemConfigCacheKey)
	}
	s.logger.Info("system config saved", zap.String("by", actor.ID))
	return saved, nil
}

// PublicView exposes only the live-chat fields.
func (s *SystemConfigService) PublicView(ctx context.Context) (domain.PublicConfig, error) {
	cfg, err := s.Load(ctx)
	if err != nil {
		return domain.PublicConfig{}, err
	}
	return cfg.Public(), nil
}

// validateWebhookURL accepts an empty value, which clears the URL.
func validateWebhookURL(field string, v *string) error {
	if v == nil {
		return nil
	}
	*v = strings.TrimSpace(*v)
	if *v == "" {
		return nil
	}
	if !govalidator.IsRequestURL(*v) || !(strings.HasPrefix(*v, "https://") || strings.HasPrefix(*v, "http://")) {
		return &domain.ErrValidation{Field: field, Message: "URL inválida"}
	}
	return nil
}
