package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestTaxSchemaCache_ServesWithinTTL(t *testing.T) {
	source := &taxSourceStub{classes: reportSchema()}
	backend := NewMemoryTaxSchemaBackend()
	clock := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	backend.now = func() time.Time { return clock }
	cache := NewTaxSchemaCache(source, backend, time.Hour, nil, discardLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		classes, err := cache.ListTaxClassesAndRates(ctx)
		if err != nil {
			t.Fatalf("ListTaxClassesAndRates returned error: %v", err)
		}
		if len(classes) != 2 {
			t.Fatalf("expected 2 classes, got %d", len(classes))
		}
	}
	if source.calls.Load() != 1 {
		t.Fatalf("expected one source load within TTL, got %d", source.calls.Load())
	}

	clock = clock.Add(time.Hour)
	if _, err := cache.ListTaxClassesAndRates(ctx); err != nil {
		t.Fatalf("ListTaxClassesAndRates returned error: %v", err)
	}
	if source.calls.Load() != 2 {
		t.Fatalf("expected reload after TTL, got %d loads", source.calls.Load())
	}
}

func TestTaxSchemaCache_ConcurrentAccess(t *testing.T) {
	source := &taxSourceStub{classes: reportSchema()}
	cache := NewTaxSchemaCache(source, nil, time.Hour, nil, discardLogger())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.ListTaxClassesAndRates(context.Background()); err != nil {
				t.Errorf("ListTaxClassesAndRates returned error: %v", err)
			}
		}()
	}
	wg.Wait()

	loads := source.calls.Load()
	if _, err := cache.ListTaxClassesAndRates(context.Background()); err != nil {
		t.Fatalf("ListTaxClassesAndRates returned error: %v", err)
	}
	if source.calls.Load() != loads {
		t.Fatal("expected warm cache to serve without a load")
	}
}

func TestTaxSchemaCache_SourceErrorIsReturned(t *testing.T) {
	source := &taxSourceStub{err: errors.New("db down")}
	cache := NewTaxSchemaCache(source, nil, time.Hour, nil, discardLogger())
	if _, err := cache.ListTaxClassesAndRates(context.Background()); err == nil {
		t.Fatal("expected source error")
	}
}
