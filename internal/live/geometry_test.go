package live

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"tracker.transitlive.org/internal/cache"
	"tracker.transitlive.org/internal/geo"
	"tracker.transitlive.org/internal/models"
)

func newGeometryFixture(t *testing.T) (*cache.MemoryKV, *countingStore, *GeometryCache) {
	t.Helper()
	kv := cache.NewMemoryKV()
	cs := newCountingStore()
	seedDelhiRoute(t, cs)
	return kv, cs, NewGeometryCache(kv, cs, 0, discardLogger())
}

func TestGeometryCacheMissThenHit(t *testing.T) {
	_, cs, gc := newGeometryFixture(t)
	ctx := context.Background()

	geom, err := gc.Get(ctx, "R1")
	if err != nil {
		t.Fatalf("first Get failed: %v", err)
	}
	if len(geom.Coords) != 2 {
		t.Fatalf("expected 2 polyline vertices, got %d", len(geom.Coords))
	}
	if len(geom.Stops) != 2 || len(geom.StopOffsetsKm) != 2 {
		t.Fatalf("expected 2 stops with offsets, got %d stops, %d offsets", len(geom.Stops), len(geom.StopOffsetsKm))
	}
	if geom.StopOffsetsKm[0] > 0.01 {
		t.Errorf("origin stop offset = %f km, want ~0", geom.StopOffsetsKm[0])
	}
	total := geo.PolylineLengthKm(geom.Coords)
	if math.Abs(geom.StopOffsetsKm[1]-total) > 0.05 {
		t.Errorf("terminus stop offset = %f km, want ~%f", geom.StopOffsetsKm[1], total)
	}
	if cs.loads() != 1 {
		t.Fatalf("expected 1 polyline load, got %d", cs.loads())
	}

	if _, err := gc.Get(ctx, "R1"); err != nil {
		t.Fatalf("second Get failed: %v", err)
	}
	if cs.loads() != 1 {
		t.Errorf("second Get hit the durable store, loads = %d", cs.loads())
	}
}

func TestGeometryCacheCoalescesConcurrentLoads(t *testing.T) {
	_, cs, gc := newGeometryFixture(t)
	cs.gate = make(chan struct{})
	ctx := context.Background()

	const readers = 8
	var wg sync.WaitGroup
	errs := make([]error, readers)
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = gc.Get(ctx, "R1")
		}(i)
	}

	// Hold the durable store's answer open until every reader has missed
	// the cache and queued behind the first load.
	time.Sleep(50 * time.Millisecond)
	close(cs.gate)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("reader %d Get failed: %v", i, err)
		}
	}
	if cs.loads() != 1 {
		t.Errorf("concurrent Gets hit the durable store %d times, want 1", cs.loads())
	}
}

func TestGeometryCacheSurvivesProcessRestart(t *testing.T) {
	kv, cs, gc := newGeometryFixture(t)
	ctx := context.Background()

	if _, err := gc.Get(ctx, "R1"); err != nil {
		t.Fatalf("warming Get failed: %v", err)
	}

	// A fresh cache over the same KV models a restarted process: the entry
	// must be served without touching the durable store.
	restarted := NewGeometryCache(kv, cs, 0, discardLogger())
	geom, err := restarted.Get(ctx, "R1")
	if err != nil {
		t.Fatalf("Get after restart failed: %v", err)
	}
	if len(geom.Coords) != 2 {
		t.Fatalf("expected 2 vertices after restart, got %d", len(geom.Coords))
	}
	if cs.loads() != 1 {
		t.Errorf("restarted cache reloaded from store, loads = %d", cs.loads())
	}
}

func TestGeometryCacheInvalidate(t *testing.T) {
	_, cs, gc := newGeometryFixture(t)
	ctx := context.Background()

	if _, err := gc.Get(ctx, "R1"); err != nil {
		t.Fatalf("warming Get failed: %v", err)
	}
	if err := gc.Invalidate(ctx, "R1"); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	if _, err := gc.Get(ctx, "R1"); err != nil {
		t.Fatalf("Get after invalidate failed: %v", err)
	}
	if cs.loads() != 2 {
		t.Errorf("expected reload after invalidate, loads = %d", cs.loads())
	}
}

func TestGeometryCacheUnknownRoute(t *testing.T) {
	_, _, gc := newGeometryFixture(t)

	_, err := gc.Get(context.Background(), "no-such-route")
	if !errors.Is(err, ErrGeometryNotFound) {
		t.Fatalf("expected ErrGeometryNotFound, got %v", err)
	}
}

func TestGeometryCacheUndecodablePolyline(t *testing.T) {
	_, cs, gc := newGeometryFixture(t)
	cs.polylines["R1"].Geometry = "!!!"

	_, err := gc.Get(context.Background(), "R1")
	if !errors.Is(err, ErrGeometryInvariant) {
		t.Fatalf("expected ErrGeometryInvariant, got %v", err)
	}
}

func TestGeometryCacheRejectsStopOffPath(t *testing.T) {
	_, cs, gc := newGeometryFixture(t)
	cs.routes["R1"].Stops = append(cs.routes["R1"].Stops, models.Stop{
		StopID: "s3", Name: "Wrong City", Latitude: 30.0, Longitude: 78.0,
	})

	_, err := gc.Get(context.Background(), "R1")
	if !errors.Is(err, ErrGeometryInvariant) {
		t.Fatalf("expected ErrGeometryInvariant for drifted stop, got %v", err)
	}
}

func TestGeometryCacheMalformedEntryReloads(t *testing.T) {
	kv, cs, gc := newGeometryFixture(t)
	ctx := context.Background()

	err := kv.HSet(ctx, "route:R1", map[string]string{
		"polyline": "not json",
		"stops":    "also not json",
	})
	if err != nil {
		t.Fatalf("seeding malformed entry failed: %v", err)
	}

	geom, err := gc.Get(ctx, "R1")
	if err != nil {
		t.Fatalf("Get over malformed entry failed: %v", err)
	}
	if len(geom.Coords) != 2 {
		t.Fatalf("expected geometry reloaded from store, got %d vertices", len(geom.Coords))
	}
	if cs.loads() != 1 {
		t.Errorf("expected exactly one store load, got %d", cs.loads())
	}
}
