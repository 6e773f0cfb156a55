// Package service provides the business logic layer (use cases).
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/portal-membros-go/internal/domain"
	"github.com/boddenberg/portal-membros-go/internal/port"
)

var accessTracer = otel.Tracer("service/access")

// AccessService derives admin and paid-access flags from stored profiles
// and keeps the bootstrap admin profile consistent.
type AccessService struct {
	store          port.ProfileStore
	bootstrapEmail string
	logger         *zap.Logger
}

// NewAccessService creates an access resolver. bootstrapEmail may be empty.
func NewAccessService(store port.ProfileStore, bootstrapEmail string, logger *zap.Logger) *AccessService {
	return &AccessService{
		store:          store,
		bootstrapEmail: strings.ToLower(strings.TrimSpace(bootstrapEmail)),
		logger:         logger,
	}
}

func (s *AccessService) isBootstrap(email string) bool {
	return s.bootstrapEmail != "" && strings.EqualFold(strings.TrimSpace(email), s.bootstrapEmail)
}

// ResolveAccess never fails: store errors yield an empty Access.
func (s *AccessService) ResolveAccess(ctx context.Context, id domain.Identity) domain.Access {
	ctx, span := accessTracer.Start(ctx, "AccessService.ResolveAccess")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", id.ID))

	if id.ID == "" {
		return domain.Access{}
	}

	profile, err := s.store.GetProfile(ctx, id.ID)
	if err != nil {
		var nf *domain.ErrNotFound
		if !errors.As(err, &nf) {
			s.logger.Warn("resolve access: profile read failed", zap.String("user_id", id.ID), zap.Error(err))
			return domain.Access{}
		}
		if !s.isBootstrap(id.Email) {
			return domain.Access{}
		}
		profile, err = s.createBootstrap(ctx, id)
		if err != nil {
			s.logger.Warn("resolve access: bootstrap create failed", zap.String("user_id", id.ID), zap.Error(err))
			return domain.Access{}
		}
	} else if s.isBootstrap(id.Email) && (!profile.IsAdmin || profile.PaymentStatus != domain.PaymentStatusAprovado) {
		profile = s.repairBootstrap(ctx, profile)
	}

	return accessOf(profile)
}

func accessOf(p *domain.Profile) domain.Access {
	return domain.Access{
		Profile: p,
		IsAdmin: p.IsAdmin,
		IsPaid:  p.HasPaidAccess(),
	}
}

func (s *AccessService) createBootstrap(ctx context.Context, id domain.Identity) (*domain.Profile, error) {
	created, err := s.store.CreateProfile(ctx, &domain.Profile{
		ID:            id.ID,
		Email:         strings.ToLower(strings.TrimSpace(id.Email)),
		IsAdmin:       true,
		PaymentStatus: domain.PaymentStatusAprovado,
	})
	if err == nil {
		s.logger.Info("bootstrap admin profile created", zap.String("user_id", id.ID))
		return created, nil
	}

	// a concurrent request created it first
	var conflict *domain.ErrConflict
	if !errors.As(err, &conflict) {
		return nil, err
	}
	existing, err := s.store.GetProfile(ctx, id.ID)
	if err != nil {
		return nil, err
	}
	if !existing.IsAdmin || existing.PaymentStatus != domain.PaymentStatusAprovado {
		existing = s.repairBootstrap(ctx, existing)
	}
	return existing, nil
}

// repairBootstrap overwrites the admin flags. On failure the corrected
// flags are still reported for this request.
func (s *AccessService) repairBootstrap(ctx context.Context, p *domain.Profile) *domain.Profile {
	admin := true
	status := domain.PaymentStatusAprovado
	updated, err := s.store.UpdateProfile(ctx, p.ID, &domain.ProfileUpdate{IsAdmin: &admin, PaymentStatus: &status})
	if err != nil {
		s.logger.Warn("resolve access: bootstrap repair failed", zap.String("user_id", p.ID), zap.Error(err))
		fixed := *p
		fixed.IsAdmin = true
		fixed.PaymentStatus = status
		return &fixed
	}
	s.logger.Info("bootstrap admin profile repaired", zap.String("user_id", p.ID))
	return updated
}

// ============================================================
// Admin & self-service profile operations
// ============================================================

func (s *AccessService) ListProfiles(ctx context.Context) ([]domain.Profile, error) {
	ctx, span := accessTracer.Start(ctx, "AccessService.ListProfiles")
	defer span.End()

	return s.store.ListProfiles(ctx)
}

// ApprovePayment marks a member as paid.
func (s *AccessService) ApprovePayment(ctx context.Context, profileID string) (*domain.Profile, error) {
	return s.SetPaymentStatus(ctx, profileID, domain.PaymentStatusAprovado)
}

func (s *AccessService) SetPaymentStatus(ctx context.Context, profileID string, status domain.PaymentStatus) (*domain.Profile, error) {
	ctx, span := accessTracer.Start(ctx, "AccessService.SetPaymentStatus")
	defer span.End()
	span.SetAttributes(attribute.String("profile.id", profileID), attribute.String("payment.status", string(status)))

	if !status.Valid() {
		return nil, &domain.ErrValidation{Field: "payment_status", Message: "Status de pagamento inválido"}
	}

	p, err := s.store.UpdateProfile(ctx, profileID, &domain.ProfileUpdate{PaymentStatus: &status})
	if err != nil {
		return nil, fmt.Errorf("update payment status: %w", err)
	}
	s.logger.Info("payment status changed", zap.String("profile_id", profileID), zap.String("status", string(status)))
	return p, nil
}

// ToggleAdmin flips is_admin. The bootstrap admin cannot be demoted.
func (s *AccessService) ToggleAdmin(ctx context.Context, profileID string) (*domain.Profile, error) {
	ctx, span := accessTracer.Start(ctx, "AccessService.ToggleAdmin")
	defer span.End()
	span.SetAttributes(attribute.String("profile.id", profileID))

	current, err := s.store.GetProfile(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if current.IsAdmin && s.isBootstrap(current.Email) {
		return nil, &domain.ErrForbidden{Action: "remover administrador principal"}
	}

	admin := !current.IsAdmin
	p, err := s.store.UpdateProfile(ctx, profileID, &domain.ProfileUpdate{IsAdmin: &admin})
	if err != nil {
		return nil, fmt.Errorf("toggle admin: %w", err)
	}
	s.logger.Info("admin flag toggled", zap.String("profile_id", profileID), zap.Bool("is_admin", admin))
	return p, nil
}

// UpdateOwnProfile edits the caller's name and WhatsApp number.
func (s *AccessService) UpdateOwnProfile(ctx context.Context, id domain.Identity, req *domain.UpdateOwnProfileRequest) (*domain.Profile, error) {
	ctx, span := accessTracer.Start(ctx, "AccessService.UpdateOwnProfile")
	defer span.End()

	if id.ID == "" {
		return nil, &domain.ErrUnauthorized{Message: "Usuário não autenticado"}
	}

	upd := &domain.ProfileUpdate{}
	if req.FullName != nil {
		name := strings.TrimSpace(*req.FullName)
		if name == "" {
			return nil, &domain.ErrValidation{Field: "full_name", Message: "Nome não pode ser vazio"}
		}
		upd.FullName = &name
	}
	if req.WhatsApp != nil {
		phone := strings.TrimSpace(*req.WhatsApp)
		upd.WhatsApp = &phone
	}
	if upd.IsEmpty() {
		return nil, &domain.ErrValidation{Field: "body", Message: "Nenhum campo para atualizar"}
	}

	p, err := s.store.UpdateProfile(ctx, id.ID, upd)
	if err != nil {
		return nil, fmt.Errorf("update own profile: %w", err)
	}
	return p, nil
}
