package live

import (
	"context"
	"math"
	"reflect"
	"testing"
	"time"

	"tracker.transitlive.org/internal/cache"
)

func TestRecordReportRingWindow(t *testing.T) {
	vs := NewVehicleStateStore(cache.NewMemoryKV(), 3)
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	var ring []float64
	for i, speed := range []float64{30, 60, 90, 0} {
		state, err := vs.RecordReport(ctx, "V1", "R1", 28.6328, 77.2197, speed, now.Add(time.Duration(i)*time.Second))
		if err != nil {
			t.Fatalf("RecordReport(%f) failed: %v", speed, err)
		}
		ring = state.SpeedRing
	}

	want := []float64{0, 90, 60}
	if !reflect.DeepEqual(ring, want) {
		t.Errorf("speed ring = %v, want %v (newest first, oldest evicted)", ring, want)
	}
}

func TestRecordReportSkipsUnusableSpeeds(t *testing.T) {
	vs := NewVehicleStateStore(cache.NewMemoryKV(), 3)
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	if _, err := vs.RecordReport(ctx, "V1", "R1", 28.6328, 77.2197, 42, now); err != nil {
		t.Fatalf("RecordReport failed: %v", err)
	}
	for _, bad := range []float64{math.NaN(), math.Inf(1), -5} {
		state, err := vs.RecordReport(ctx, "V1", "R1", 28.6329, 77.2198, bad, now.Add(time.Second))
		if err != nil {
			t.Fatalf("RecordReport(%f) failed: %v", bad, err)
		}
		if !reflect.DeepEqual(state.SpeedRing, []float64{42}) {
			t.Errorf("ring after unusable speed %f = %v, want [42]", bad, state.SpeedRing)
		}
		// Position still moves even when the sample is dropped.
		if state.LastLat != 28.6329 {
			t.Errorf("lastLat = %f, want 28.6329", state.LastLat)
		}
	}
}

func TestReadStateRoundTrip(t *testing.T) {
	vs := NewVehicleStateStore(cache.NewMemoryKV(), 3)
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 9, 30, 0, 250*int(time.Millisecond), time.UTC)

	if _, err := vs.RecordReport(ctx, "V1", "R1", 28.6328, 77.2197, 40, now); err != nil {
		t.Fatalf("RecordReport failed: %v", err)
	}

	state, err := vs.ReadState(ctx, "V1")
	if err != nil {
		t.Fatalf("ReadState failed: %v", err)
	}
	if state == nil {
		t.Fatal("ReadState returned nil for a reporting vehicle")
	}
	if state.VehicleID != "V1" || state.RouteID != "R1" {
		t.Errorf("identity = (%s, %s), want (V1, R1)", state.VehicleID, state.RouteID)
	}
	if state.LastLat != 28.6328 || state.LastLng != 77.2197 {
		t.Errorf("position = (%f, %f), want (28.6328, 77.2197)", state.LastLat, state.LastLng)
	}
	if !state.LastUpdated.Equal(now) {
		t.Errorf("lastUpdated = %v, want %v", state.LastUpdated, now)
	}
	if !reflect.DeepEqual(state.SpeedRing, []float64{40}) {
		t.Errorf("ring = %v, want [40]", state.SpeedRing)
	}
}

func TestReadStateNeverReported(t *testing.T) {
	vs := NewVehicleStateStore(cache.NewMemoryKV(), 3)

	state, err := vs.ReadState(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("ReadState failed: %v", err)
	}
	if state != nil {
		t.Fatalf("expected nil state for a vehicle that never reported, got %+v", state)
	}
}

func TestReadRingDropsCorruptEntries(t *testing.T) {
	kv := cache.NewMemoryKV()
	vs := NewVehicleStateStore(kv, 3)
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	if _, err := vs.RecordReport(ctx, "V1", "R1", 28.6328, 77.2197, 40, now); err != nil {
		t.Fatalf("RecordReport failed: %v", err)
	}
	if err := kv.LPushTrim(ctx, "bus:V1:speeds", "garbage", 3); err != nil {
		t.Fatalf("seeding corrupt entry failed: %v", err)
	}

	state, err := vs.ReadState(ctx, "V1")
	if err != nil {
		t.Fatalf("ReadState failed: %v", err)
	}
	if !reflect.DeepEqual(state.SpeedRing, []float64{40}) {
		t.Errorf("ring = %v, want [40] with the corrupt entry dropped", state.SpeedRing)
	}
}
