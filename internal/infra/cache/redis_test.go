package cache_test

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/boddenberg/portal-membros-go/internal/domain"
	"github.com/boddenberg/portal-membros-go/internal/infra/cache"
)

func setupRedisCache(t *testing.T) (*miniredis.Miniredis, *cache.Redis[*domain.SystemConfig]) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, cache.NewRedis[*domain.SystemConfig](client, "portal:", time.Minute, zap.NewNop())
}

func TestRedis_SetAndGet(t *testing.T) {
	mr, c := setupRedisCache(t)

	enabled := true
	code := "<script>chat()</script>"
	c.Set("system_config", &domain.SystemConfig{ID: "cfg-1", LiveChatEnabled: &enabled, LiveChatCode: &code})

	assert.True(t, mr.Exists("portal:system_config"))

	got, ok := c.Get("system_config")
	require.True(t, ok)
	assert.Equal(t, "cfg-1", got.ID)
	require.NotNil(t, got.LiveChatEnabled)
	assert.True(t, *got.LiveChatEnabled)
	assert.Equal(t, code, *got.LiveChatCode)
}

func TestRedis_Expiration(t *testing.T) {
	mr, c := setupRedisCache(t)

	c.Set("system_config", &domain.SystemConfig{ID: "cfg-1"})
	mr.FastForward(2 * time.Minute)

	_, ok := c.Get("system_config")
	assert.False(t, ok)
}

func TestRedis_Delete(t *testing.T) {
	mr, c := setupRedisCache(t)

	c.Set("system_config", &domain.SystemConfig{ID: "cfg-1"})
	c.Delete("system_config")

	assert.False(t, mr.Exists("portal:system_config"))
	_, ok := c.Get("system_config")
	assert.False(t, ok)
}

func TestRedis_CorruptValueIsMiss(t *testing.T) {
	mr, c := setupRedisCache(t)

	require.NoError(t, mr.Set("portal:system_config", "{not json"))

	_, ok := c.Get("system_config")
	assert.False(t, ok)
}

func TestRedis_ServerDownIsMiss(t *testing.T) {
	mr, c := setupRedisCache(t)
	mr.Close()

	c.Set("system_config", &domain.SystemConfig{ID: "cfg-1"})
	_, ok := c.Get("system_config")
	assert.False(t, ok)
}

func TestNewRedisClient_ParsesURL(t *testing.T) {
	client, err := cache.NewRedisClient("redis://localhost:6379/2")
	require.NoError(t, err)
	defer client.Close()
	assert.Equal(t, 2, client.Options().DB)

	_, err = cache.NewRedisClient("://bad")
	assert.Error(t, err)
}
