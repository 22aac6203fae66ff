package live

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"tracker.transitlive.org/internal/cache"
	"tracker.transitlive.org/internal/models"
	"tracker.transitlive.org/internal/utils"
)

// DefaultSpeedRingSize bounds the per-vehicle ring of recent raw speeds.
const DefaultSpeedRingSize = 3

// VehicleStateStore persists per-vehicle hot state across reports and
// query requests. The backing hash write is atomic per vehicle, so a
// concurrent reader sees either the full previous record or the full new
// one. There is no write-ahead log and no durability across cache eviction:
// the next report rehydrates a lost record (minus the smoothed speed).
type VehicleStateStore struct {
	kv       cache.KV
	ringSize int
}

// NewVehicleStateStore creates a state store with the given ring bound.
func NewVehicleStateStore(kv cache.KV, ringSize int) *VehicleStateStore {
	if ringSize <= 0 {
		ringSize = DefaultSpeedRingSize
	}
	return &VehicleStateStore{kv: kv, ringSize: ringSize}
}

func vehicleKey(vehicleID string) string {
	return "bus:" + vehicleID
}

func speedsKey(vehicleID string) string {
	return "bus:" + vehicleID + ":speeds"
}

// RecordReport updates the vehicle's position, stamps lastUpdated, and
// pushes the speed sample onto the head of the bounded ring. A non-finite
// or negative speed is omitted from the ring; position and timestamp are
// still updated. The routeID is an echo of what the ingest resolver
// provided, not the authoritative binding.
func (vs *VehicleStateStore) RecordReport(ctx context.Context, vehicleID, routeID string, lat, lng, speed float64, now time.Time) (*models.VehicleLiveState, error) {
	fields := map[string]string{
		"lastLat":     strconv.FormatFloat(lat, 'f', -1, 64),
		"lastLng":     strconv.FormatFloat(lng, 'f', -1, 64),
		"lastUpdated": now.UTC().Format(utils.ISOMillis),
		"routeId":     routeID,
	}
	if err := vs.kv.HSet(ctx, vehicleKey(vehicleID), fields); err != nil {
		return nil, fmt.Errorf("failed to write state for vehicle %s: %w", vehicleID, err)
	}

	if isUsableSpeed(speed) {
		sample := strconv.FormatFloat(speed, 'f', -1, 64)
		if err := vs.kv.LPushTrim(ctx, speedsKey(vehicleID), sample, vs.ringSize); err != nil {
			return nil, fmt.Errorf("failed to push speed for vehicle %s: %w", vehicleID, err)
		}
	}

	ring, err := vs.readRing(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	return &models.VehicleLiveState{
		VehicleID:   vehicleID,
		RouteID:     routeID,
		LastLat:     lat,
		LastLng:     lng,
		LastUpdated: now.UTC(),
		SpeedRing:   ring,
	}, nil
}

// ReadState returns the current record for the vehicle, or nil when the
// vehicle has never reported (not an error).
func (vs *VehicleStateStore) ReadState(ctx context.Context, vehicleID string) (*models.VehicleLiveState, error) {
	fields, err := vs.kv.HGetAll(ctx, vehicleKey(vehicleID))
	if err != nil {
		return nil, fmt.Errorf("failed to read state for vehicle %s: %w", vehicleID, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	lat, err := strconv.ParseFloat(fields["lastLat"], 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt lastLat for vehicle %s: %w", vehicleID, err)
	}
	lng, err := strconv.ParseFloat(fields["lastLng"], 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt lastLng for vehicle %s: %w", vehicleID, err)
	}
	lastUpdated, err := time.Parse(utils.ISOMillis, fields["lastUpdated"])
	if err != nil {
		return nil, fmt.Errorf("corrupt lastUpdated for vehicle %s: %w", vehicleID, err)
	}

	ring, err := vs.readRing(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	return &models.VehicleLiveState{
		VehicleID:   vehicleID,
		RouteID:     fields["routeId"],
		LastLat:     lat,
		LastLng:     lng,
		LastUpdated: lastUpdated,
		SpeedRing:   ring,
	}, nil
}

// readRing returns the speed ring newest-first, dropping any entry that no
// longer parses as a float.
func (vs *VehicleStateStore) readRing(ctx context.Context, vehicleID string) ([]float64, error) {
	raw, err := vs.kv.LRange(ctx, speedsKey(vehicleID), 0, int64(vs.ringSize-1))
	if err != nil {
		return nil, fmt.Errorf("failed to read speed ring for vehicle %s: %w", vehicleID, err)
	}
	ring := make([]float64, 0, len(raw))
	for _, entry := range raw {
		if v, err := strconv.ParseFloat(entry, 64); err == nil {
			ring = append(ring, v)
		}
	}
	return ring, nil
}

// isUsableSpeed reports whether a raw speed sample belongs in the ring:
// finite and non-negative.
func isUsableSpeed(speed float64) bool {
	return !math.IsNaN(speed) && !math.IsInf(speed, 0) && speed >= 0
}
