package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/boddenberg/portal-membros-go/internal/domain"
	"github.com/boddenberg/portal-membros-go/internal/infra/memstore"
	"github.com/boddenberg/portal-membros-go/internal/service"
)

const bootstrapEmail = "admin@portal.com.br"

func TestResolveAccess_BootstrapCreatesAdmin(t *testing.T) {
	store := memstore.New()
	svc := service.NewAccessService(store, bootstrapEmail, zap.NewNop())

	access := svc.ResolveAccess(context.Background(), domain.Identity{ID: "u-admin", Email: "Admin@Portal.com.br"})

	require.NotNil(t, access.Profile)
	assert.True(t, access.IsAdmin)
	assert.True(t, access.IsPaid)
	assert.Equal(t, domain.PaymentStatusAprovado, access.Profile.PaymentStatus)

	stored, err := store.GetProfile(context.Background(), "u-admin")
	require.NoError(t, err)
	assert.True(t, stored.IsAdmin)
	assert.Equal(t, bootstrapEmail, stored.Email)
}

func TestResolveAccess_BootstrapRepairsFlags(t *testing.T) {
	store := memstore.New()
	seedProfile(store, domain.Profile{ID: "u-admin", Email: bootstrapEmail, PaymentStatus: domain.PaymentStatusPendente})
	svc := service.NewAccessService(store, bootstrapEmail, zap.NewNop())

	access := svc.ResolveAccess(context.Background(), domain.Identity{ID: "u-admin", Email: bootstrapEmail})
	assert.True(t, access.IsAdmin)
	assert.True(t, access.IsPaid)

	stored, _ := store.GetProfile(context.Background(), "u-admin")
	assert.True(t, stored.IsAdmin)
	assert.Equal(t, domain.PaymentStatusAprovado, stored.PaymentStatus)

	// second call is a no-op
	again := svc.ResolveAccess(context.Background(), domain.Identity{ID: "u-admin", Email: bootstrapEmail})
	assert.Equal(t, access.IsAdmin, again.IsAdmin)
}

func TestResolveAccess_BootstrapConcurrentCreate(t *testing.T) {
	store := &flakyStore{Store: memstore.New(), notFoundReads: 1}
	// another request already created the profile, but without admin flags
	seedProfile(store.Store, domain.Profile{ID: "u-admin", Email: bootstrapEmail})
	svc := service.NewAccessService(store, bootstrapEmail, zap.NewNop())

	access := svc.ResolveAccess(context.Background(), domain.Identity{ID: "u-admin", Email: bootstrapEmail})
	assert.True(t, access.IsAdmin)
	assert.True(t, access.IsPaid)
}

func TestResolveAccess_UnknownUser(t *testing.T) {
	svc := service.NewAccessService(memstore.New(), bootstrapEmail, zap.NewNop())

	access := svc.ResolveAccess(context.Background(), domain.Identity{ID: "u-1", Email: "ana@example.com"})
	assert.Nil(t, access.Profile)
	assert.False(t, access.IsAdmin)
	assert.False(t, access.IsPaid)
}

func TestResolveAccess_StoreErrorYieldsNoProfile(t *testing.T) {
	store := &flakyStore{Store: memstore.New(), getProfileErr: &domain.ErrStore{Op: "get_profile", Err: errStoreDown}}
	svc := service.NewAccessService(store, bootstrapEmail, zap.NewNop())

	access := svc.ResolveAccess(context.Background(), domain.Identity{ID: "u-admin", Email: bootstrapEmail})
	assert.Equal(t, domain.Access{}, access)
}

func TestResolveAccess_AdminImpliesPaid(t *testing.T) {
	for _, status := range []domain.PaymentStatus{domain.PaymentStatusPendente, domain.PaymentStatusAprovado, ""} {
		t.Run(string(status), func(t *testing.T) {
			store := memstore.New()
			seedProfile(store, domain.Profile{ID: "u-1", Email: "ana@example.com", IsAdmin: true})
			if status != "" {
				_, err := store.UpdateProfile(context.Background(), "u-1", &domain.ProfileUpdate{PaymentStatus: &status})
				require.NoError(t, err)
			}
			svc := service.NewAccessService(store, "", zap.NewNop())

			access := svc.ResolveAccess(context.Background(), domain.Identity{ID: "u-1", Email: "ana@example.com"})
			assert.True(t, access.IsAdmin)
			assert.True(t, access.IsPaid)
		})
	}
}

func TestResolveAccess_PaidMember(t *testing.T) {
	store := memstore.New()
	seedProfile(store, domain.Profile{ID: "u-1", Email: "ana@example.com", PaymentStatus: domain.PaymentStatusAprovado})
	svc := service.NewAccessService(store, bootstrapEmail, zap.NewNop())

	access := svc.ResolveAccess(context.Background(), domain.Identity{ID: "u-1", Email: "ana@example.com"})
	assert.False(t, access.IsAdmin)
	assert.True(t, access.IsPaid)
}

func TestSetPaymentStatus(t *testing.T) {
	store := memstore.New()
	seedProfile(store, domain.Profile{ID: "u-1", Email: "ana@example.com"})
	svc := service.NewAccessService(store, "", zap.NewNop())

	p, err := svc.ApprovePayment(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusAprovado, p.PaymentStatus)

	_, err = svc.SetPaymentStatus(context.Background(), "u-1", "pago")
	var verr *domain.ErrValidation
	require.ErrorAs(t, err, &verr)

	_, err = svc.ApprovePayment(context.Background(), "missing")
	var nf *domain.ErrNotFound
	require.ErrorAs(t, err, &nf)
}

func TestToggleAdmin(t *testing.T) {
	store := memstore.New()
	seedProfile(store, domain.Profile{ID: "u-1", Email: "ana@example.com"})
	seedProfile(store, domain.Profile{ID: "u-admin", Email: bootstrapEmail, IsAdmin: true})
	svc := service.NewAccessService(store, bootstrapEmail, zap.NewNop())

	p, err := svc.ToggleAdmin(context.Background(), "u-1")
	require.NoError(t, err)
	assert.True(t, p.IsAdmin)

	p, err = svc.ToggleAdmin(context.Background(), "u-1")
	require.NoError(t, err)
	assert.False(t, p.IsAdmin)

	_, err = svc.ToggleAdmin(context.Background(), "u-admin")
	var forbidden *domain.ErrForbidden
	require.ErrorAs(t, err, &forbidden)
}

func TestUpdateOwnProfile(t *testing.T) {
	store := memstore.New()
	seedProfile(store, domain.Profile{ID: "u-1", Email: "ana@example.com"})
	svc := service.NewAccessService(store, "", zap.NewNop())
	id := domain.Identity{ID: "u-1", Email: "ana@example.com"}

	p, err := svc.UpdateOwnProfile(context.Background(), id, &domain.UpdateOwnProfileRequest{
		FullName: strPtr("  Ana Souza "),
		WhatsApp: strPtr("11988887777"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Ana Souza", p.FullName)
	assert.Equal(t, "11988887777", p.WhatsApp)

	_, err = svc.UpdateOwnProfile(context.Background(), id, &domain.UpdateOwnProfileRequest{FullName: strPtr(" ")})
	var verr *domain.ErrValidation
	require.ErrorAs(t, err, &verr)

	_, err = svc.UpdateOwnProfile(context.Background(), id, &domain.UpdateOwnProfileRequest{})
	require.ErrorAs(t, err, &verr)

	_, err = svc.UpdateOwnProfile(context.Background(), domain.Identity{}, &domain.UpdateOwnProfileRequest{FullName: strPtr("x")})
	var unauth *domain.ErrUnauthorized
	require.ErrorAs(t, err, &unauth)
}

// --- Token verification ---

const jwtSecret = "super-secret-jwt-token-with-at-least-32-characters"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

func TestTokenVerifier(t *testing.T) {
	v := service.NewTokenVerifier(jwtSecret)
	exp := time.Now().Add(time.Hour).Unix()

	t.Run("valid", func(t *testing.T) {
		tok := signToken(t, jwtSecret, jwt.MapClaims{"sub": "u-1", "email": "Ana@Example.com", "role": "authenticated", "exp": exp})
		id, err := v.Verify(tok)
		require.NoError(t, err)
		assert.Equal(t, "u-1", id.ID)
		assert.Equal(t, "ana@example.com", id.Email)
	})

	rejected := map[string]string{
		"wrong secret": signToken(t, "another-secret", jwt.MapClaims{"sub": "u-1", "role": "authenticated", "exp": exp}),
		"anon role":    signToken(t, jwtSecret, jwt.MapClaims{"sub": "u-1", "role": "anon", "exp": exp}),
		"no subject":   signToken(t, jwtSecret, jwt.MapClaims{"role": "authenticated", "exp": exp}),
		"expired":      signToken(t, jwtSecret, jwt.MapClaims{"sub": "u-1", "role": "authenticated", "exp": time.Now().Add(-time.Minute).Unix()}),
		"no expiry":    signToken(t, jwtSecret, jwt.MapClaims{"sub": "u-1", "role": "authenticated"}),
		"garbage":      "not-a-token",
	}
	for name, tok := range rejected {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(tok)
			var unauth *domain.ErrUnauthorized
			require.ErrorAs(t, err, &unauth)
		})
	}
}
