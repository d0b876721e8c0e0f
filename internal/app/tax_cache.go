package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/pplcallmesatz/gst-auditor-report/internal/domain"
	"github.com/pplcallmesatz/gst-auditor-report/internal/observability"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// TaxSchemaBackend stores a cached tax schema.
type TaxSchemaBackend interface {
	Get(ctx context.Context) ([]domain.TaxClass, bool, error)
	Set(ctx context.Context, classes []domain.TaxClass, ttl time.Duration) error
}

// TaxSchemaCache serves the tax schema from a backend, reloading it from the
// source once the TTL lapses. Concurrent misses share one load.
type TaxSchemaCache struct {
	source  TaxSchemaSource
	backend TaxSchemaBackend
	ttl     time.Duration
	group   singleflight.Group
	metrics *observability.Metrics
	logger  *slog.Logger
}

func NewTaxSchemaCache(source TaxSchemaSource, backend TaxSchemaBackend, ttl time.Duration, metrics *observability.Metrics, logger *slog.Logger) *TaxSchemaCache {
	if backend == nil {
		backend = NewMemoryTaxSchemaBackend()
	}
	return &TaxSchemaCache{source: source, backend: backend, ttl: ttl, metrics: metrics, logger: logger}
}

func (c *TaxSchemaCache) ListTaxClassesAndRates(ctx context.Context) ([]domain.TaxClass, error) {
	classes, ok, err := c.backend.Get(ctx)
	if err != nil {
		c.logger.Warn("tax schema cache read failed", "error", err)
	} else if ok {
		c.metrics.CacheHit()
		return classes, nil
	}
	c.metrics.CacheMiss()

	v, err, _ := c.group.Do("tax-schema", func() (interface{}, error) {
		classes, err := c.source.ListTaxClassesAndRates(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.backend.Set(ctx, classes, c.ttl); err != nil {
			c.logger.Warn("tax schema cache write failed", "error", err)
		}
		return classes, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.TaxClass), nil
}

// MemoryTaxSchemaBackend keeps the schema in process memory.
type MemoryTaxSchemaBackend struct {
	mu      sync.RWMutex
	classes []domain.TaxClass
	expires time.Time
	now     func() time.Time
}

func NewMemoryTaxSchemaBackend() *MemoryTaxSchemaBackend {
	return &MemoryTaxSchemaBackend{now: time.Now}
}

func (m *MemoryTaxSchemaBackend) Get(ctx context.Context) ([]domain.TaxClass, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.classes == nil || !m.now().Before(m.expires) {
		return nil, false, nil
	}
	return m.classes, true, nil
}

func (m *MemoryTaxSchemaBackend) Set(ctx context.Context, classes []domain.TaxClass, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if classes == nil {
		classes = []domain.TaxClass{}
	}
	m.classes = classes
	m.expires = m.now().Add(ttl)
	return nil
}

// RedisTaxSchemaBackend shares the cached schema between replicas.
type RedisTaxSchemaBackend struct {
	client redis.UniversalClient
	key    string
}

func NewRedisTaxSchemaBackend(client redis.UniversalClient, prefix string) *RedisTaxSchemaBackend {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = "gst-report"
	}
	return &RedisTaxSchemaBackend{client: client, key: prefix + ":tax_schema"}
}

func (r *RedisTaxSchemaBackend) Get(ctx context.Context) ([]domain.TaxClass, bool, error) {
	raw, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var classes []domain.TaxClass
	if err := json.Unmarshal(raw, &classes); err != nil {
		return nil, false, fmt.Errorf("decode cached tax schema: %w", err)
	}
	return classes, true, nil
}

func (r *RedisTaxSchemaBackend) Set(ctx context.Context, classes []domain.TaxClass, ttl time.Duration) error {
	raw, err := json.Marshal(classes)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key, raw, ttl).Err()
}
