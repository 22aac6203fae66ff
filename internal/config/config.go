package config

import (
	"fmt"
	"sync"
	"time"
)

// Settings is the dynamic portion of the configuration: the live-tracking
// tunables that may be refreshed at runtime from a remote config source.
type Settings struct {
	StalenessThresholdSeconds int     `json:"stalenessThresholdSeconds"`
	SpeedRingSize             int     `json:"speedRingSize"`
	MinSpeedFloorKmh          float64 `json:"minSpeedFloorKmh"`
	GeometryCacheTTLSeconds   int     `json:"geometryCacheTTLSeconds"`
}

// DefaultSettings returns the tunables used when a field is absent from the
// config source.
func DefaultSettings() Settings {
	return Settings{
		StalenessThresholdSeconds: 90,
		SpeedRingSize:             3,
		MinSpeedFloorKmh:          1.0,
		GeometryCacheTTLSeconds:   0,
	}
}

// Normalize fills zero-valued fields with their defaults and rejects
// negative values.
func (s *Settings) Normalize() error {
	defaults := DefaultSettings()
	if s.StalenessThresholdSeconds == 0 {
		s.StalenessThresholdSeconds = defaults.StalenessThresholdSeconds
	}
	if s.SpeedRingSize == 0 {
		s.SpeedRingSize = defaults.SpeedRingSize
	}
	if s.MinSpeedFloorKmh == 0 {
		s.MinSpeedFloorKmh = defaults.MinSpeedFloorKmh
	}

	if s.StalenessThresholdSeconds < 0 {
		return fmt.Errorf("stalenessThresholdSeconds must not be negative, got %d", s.StalenessThresholdSeconds)
	}
	if s.SpeedRingSize < 0 {
		return fmt.Errorf("speedRingSize must not be negative, got %d", s.SpeedRingSize)
	}
	if s.MinSpeedFloorKmh < 0 {
		return fmt.Errorf("minSpeedFloorKmh must not be negative, got %f", s.MinSpeedFloorKmh)
	}
	if s.GeometryCacheTTLSeconds < 0 {
		return fmt.Errorf("geometryCacheTTLSeconds must not be negative, got %d", s.GeometryCacheTTLSeconds)
	}
	return nil
}

// StalenessThreshold returns the liveness threshold as a duration.
func (s Settings) StalenessThreshold() time.Duration {
	return time.Duration(s.StalenessThresholdSeconds) * time.Second
}

// GeometryCacheTTL returns the geometry cache TTL as a duration; zero means
// entries live until invalidated.
func (s Settings) GeometryCacheTTL() time.Duration {
	return time.Duration(s.GeometryCacheTTLSeconds) * time.Second
}

// Config holds all the configuration settings for our application. The
// static fields are fixed at startup; Settings may be swapped by the
// refresh routine and is guarded by Mu.
type Config struct {
	Port         int
	Env          string
	RedisAddr    string
	DatabasePath string
	Mu           sync.RWMutex
	Settings     Settings
}

// NewConfig creates a new instance of a Config struct.
func NewConfig(port int, env string, settings Settings) *Config {
	return &Config{
		Port:     port,
		Env:      env,
		Settings: settings,
	}
}

// UpdateSettings safely replaces the dynamic settings.
func (cfg *Config) UpdateSettings(settings Settings) {
	cfg.Mu.Lock()
	defer cfg.Mu.Unlock()
	cfg.Settings = settings
}

// GetSettings safely returns a copy of the dynamic settings. This method
// should be used to access the settings from other parts of the
// application.
func (cfg *Config) GetSettings() Settings {
	cfg.Mu.RLock()
	defer cfg.Mu.RUnlock()
	return cfg.Settings
}
