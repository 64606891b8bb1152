package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// Landmark spaces accepted by landmark_space.
const (
	LandmarkSpaceWorld  = "world"
	LandmarkSpaceScreen = "screen"
)

// TuningConfig represents the root configuration for tuning parameters.
// Every field is optional; the Get* accessors supply the defaults.
type TuningConfig struct {
	// Retargeting params
	SmoothingFactor *float64 `json:"smoothing_factor,omitempty"`
	PositionScale   *float64 `json:"position_scale,omitempty"`
	SeedFromFirst   *bool    `json:"seed_from_first,omitempty"`

	// Input params
	LandmarkSpace *string  `json:"landmark_space,omitempty"` // "world" or "screen"
	ScreenWidth   *float64 `json:"screen_width,omitempty"`
	ScreenHeight  *float64 `json:"screen_height,omitempty"`
	DepthScale    *float64 `json:"depth_scale,omitempty"`
	UDPRcvBuf     *int     `json:"udp_rcvbuf,omitempty"`

	// Output params
	PublishMaxRate *float64 `json:"publish_max_rate,omitempty"`
	RecordFrames   *bool    `json:"record_frames,omitempty"`
	StatsInterval  *string  `json:"stats_interval,omitempty"` // duration string like "10s"
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field set to the
// value its accessor falls back to.
func DefaultTuningConfig() *TuningConfig {
	return &TuningConfig{
		SmoothingFactor: ptrFloat64(0.5),
		PositionScale:   ptrFloat64(0.01),
		SeedFromFirst:   ptrBool(true),
		LandmarkSpace:   ptrString(LandmarkSpaceWorld),
		ScreenWidth:     ptrFloat64(640),
		ScreenHeight:    ptrFloat64(480),
		DepthScale:      ptrFloat64(1),
		UDPRcvBuf:       ptrInt(1 << 20),
		PublishMaxRate:  ptrFloat64(30),
		RecordFrames:    ptrBool(true),
		StatsInterval:   ptrString("10s"),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/pose/pipeline/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.SmoothingFactor != nil {
		if *c.SmoothingFactor < 0 || *c.SmoothingFactor >= 1 {
			return fmt.Errorf("smoothing_factor must be in [0, 1), got %f", *c.SmoothingFactor)
		}
	}

	if c.PositionScale != nil && *c.PositionScale <= 0 {
		return fmt.Errorf("position_scale must be positive, got %f", *c.PositionScale)
	}

	if c.LandmarkSpace != nil {
		switch *c.LandmarkSpace {
		case LandmarkSpaceWorld, LandmarkSpaceScreen:
		default:
			return fmt.Errorf("landmark_space must be %q or %q, got %q",
				LandmarkSpaceWorld, LandmarkSpaceScreen, *c.LandmarkSpace)
		}
	}

	if c.ScreenWidth != nil && *c.ScreenWidth <= 0 {
		return fmt.Errorf("screen_width must be positive, got %f", *c.ScreenWidth)
	}
	if c.ScreenHeight != nil && *c.ScreenHeight <= 0 {
		return fmt.Errorf("screen_height must be positive, got %f", *c.ScreenHeight)
	}
	if c.DepthScale != nil && *c.DepthScale <= 0 {
		return fmt.Errorf("depth_scale must be positive, got %f", *c.DepthScale)
	}

	if c.UDPRcvBuf != nil && *c.UDPRcvBuf < 0 {
		return fmt.Errorf("udp_rcvbuf must be non-negative, got %d", *c.UDPRcvBuf)
	}

	if c.PublishMaxRate != nil && *c.PublishMaxRate < 0 {
		return fmt.Errorf("publish_max_rate must be non-negative, got %f", *c.PublishMaxRate)
	}

	// Validate StatsInterval can be parsed if set
	if c.StatsInterval != nil && *c.StatsInterval != "" {
		d, err := time.ParseDuration(*c.StatsInterval)
		if err != nil {
			return fmt.Errorf("invalid stats_interval '%s': %w", *c.StatsInterval, err)
		}
		if d <= 0 {
			return fmt.Errorf("stats_interval must be positive, got %s", d)
		}
	}

	return nil
}

// GetSmoothingFactor returns the smoothing_factor value or the default.
func (c *TuningConfig) GetSmoothingFactor() float64 {
	if c.SmoothingFactor == nil {
		return 0.5 // default
	}
	return *c.SmoothingFactor
}

// GetPositionScale returns the position_scale value or the default.
func (c *TuningConfig) GetPositionScale() float64 {
	if c.PositionScale == nil {
		return 0.01 // default
	}
	return *c.PositionScale
}

// GetSeedFromFirst returns the seed_from_first value or the default.
func (c *TuningConfig) GetSeedFromFirst() bool {
	if c.SeedFromFirst == nil {
		return true // default
	}
	return *c.SeedFromFirst
}

// GetLandmarkSpace returns the landmark_space value or the default.
func (c *TuningConfig) GetLandmarkSpace() string {
	if c.LandmarkSpace == nil || *c.LandmarkSpace == "" {
		return LandmarkSpaceWorld
	}
	return *c.LandmarkSpace
}

// GetScreenWidth returns the screen_width value or the default.
func (c *TuningConfig) GetScreenWidth() float64 {
	if c.ScreenWidth == nil {
		return 640
	}
	return *c.ScreenWidth
}

// GetScreenHeight returns the screen_height value or the default.
func (c *TuningConfig) GetScreenHeight() float64 {
	if c.ScreenHeight == nil {
		return 480
	}
	return *c.ScreenHeight
}

// GetDepthScale returns the depth_scale value or the default.
func (c *TuningConfig) GetDepthScale() float64 {
	if c.DepthScale == nil {
		return 1
	}
	return *c.DepthScale
}

// GetUDPRcvBuf returns the udp_rcvbuf value or the default.
func (c *TuningConfig) GetUDPRcvBuf() int {
	if c.UDPRcvBuf == nil {
		return 1 << 20 // 1MB
	}
	return *c.UDPRcvBuf
}

// GetPublishMaxRate returns the publish_max_rate value or the default.
// Zero means unlimited.
func (c *TuningConfig) GetPublishMaxRate() float64 {
	if c.PublishMaxRate == nil {
		return 30
	}
	return *c.PublishMaxRate
}

// GetRecordFrames returns the record_frames value or the default.
func (c *TuningConfig) GetRecordFrames() bool {
	if c.RecordFrames == nil {
		return true // default
	}
	return *c.RecordFrames
}

// GetStatsInterval parses and returns the StatsInterval as a time.Duration.
func (c *TuningConfig) GetStatsInterval() time.Duration {
	if c.StatsInterval == nil || *c.StatsInterval == "" {
		return 10 * time.Second // default
	}
	d, err := time.ParseDuration(*c.StatsInterval)
	if err != nil || d <= 0 {
		return 10 * time.Second // default on parse error
	}
	return d
}
