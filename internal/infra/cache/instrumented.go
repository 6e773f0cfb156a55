package cache

import "github.com/boddenberg/portal-membros-go/internal/port"

// HitRecorder receives cache hit/miss counts. *observability.Metrics satisfies it.
type HitRecorder interface {
	IncrCacheHit(cache string)
	IncrCacheMiss(cache string)
}

// Instrumented wraps a cache and counts hits and misses under name.
type Instrumented[T any] struct {
	inner    port.Cache[T]
	name     string
	recorder HitRecorder
}

// WithMetrics wraps inner so every Get is recorded.
func WithMetrics[T any](inner port.Cache[T], name string, recorder HitRecorder) *Instrumented[T] {
	return &Instrumented[T]{inner: inner, name: name, recorder: recorder}
}

func (c *Instrumented[T]) Get(key string) (T, bool) {
	v, ok := c.inner.Get(key)
	if ok {
		c.recorder.IncrCacheHit(c.name)
	} else {
		c.recorder.IncrCacheMiss(c.name)
	}
	return v, ok
}

func (c *Instrumented[T]) Set(key string, value T) { c.inner.Set(key, value) }

func (c *Instrumented[T]) Delete(key string) { c.inner.Delete(key) }
