package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultTuningConfig(t *testing.T) {
	cfg := DefaultTuningConfig()

	if cfg.SmoothingFactor == nil || *cfg.SmoothingFactor != 0.5 {
		t.Errorf("Expected SmoothingFactor 0.5, got %v", cfg.SmoothingFactor)
	}
	if cfg.SeedFromFirst == nil || *cfg.SeedFromFirst != true {
		t.Errorf("Expected SeedFromFirst true, got %v", cfg.SeedFromFirst)
	}
	if cfg.LandmarkSpace == nil || *cfg.LandmarkSpace != LandmarkSpaceWorld {
		t.Errorf("Expected LandmarkSpace 'world', got %v", cfg.LandmarkSpace)
	}
	if cfg.StatsInterval == nil || *cfg.StatsInterval != "10s" {
		t.Errorf("Expected StatsInterval '10s', got %v", cfg.StatsInterval)
	}

	// The defaults and the accessor fallbacks must agree.
	empty := EmptyTuningConfig()
	if cfg.GetSmoothingFactor() != empty.GetSmoothingFactor() {
		t.Errorf("GetSmoothingFactor() = %f, fallback %f", cfg.GetSmoothingFactor(), empty.GetSmoothingFactor())
	}
	if cfg.GetPositionScale() != empty.GetPositionScale() {
		t.Errorf("GetPositionScale() = %f, fallback %f", cfg.GetPositionScale(), empty.GetPositionScale())
	}
	if cfg.GetScreenWidth() != empty.GetScreenWidth() || cfg.GetScreenHeight() != empty.GetScreenHeight() {
		t.Errorf("screen size %vx%v, fallback %vx%v",
			cfg.GetScreenWidth(), cfg.GetScreenHeight(), empty.GetScreenWidth(), empty.GetScreenHeight())
	}
	if cfg.GetDepthScale() != empty.GetDepthScale() {
		t.Errorf("GetDepthScale() = %f, fallback %f", cfg.GetDepthScale(), empty.GetDepthScale())
	}
	if cfg.GetUDPRcvBuf() != empty.GetUDPRcvBuf() {
		t.Errorf("GetUDPRcvBuf() = %d, fallback %d", cfg.GetUDPRcvBuf(), empty.GetUDPRcvBuf())
	}
	if cfg.GetPublishMaxRate() != empty.GetPublishMaxRate() {
		t.Errorf("GetPublishMaxRate() = %f, fallback %f", cfg.GetPublishMaxRate(), empty.GetPublishMaxRate())
	}
	if cfg.GetRecordFrames() != empty.GetRecordFrames() {
		t.Errorf("GetRecordFrames() = %v, fallback %v", cfg.GetRecordFrames(), empty.GetRecordFrames())
	}
	if cfg.GetStatsInterval() != empty.GetStatsInterval() {
		t.Errorf("GetStatsInterval() = %v, fallback %v", cfg.GetStatsInterval(), empty.GetStatsInterval())
	}
}

func TestLoadTuningConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	testJSON := `{
  "smoothing_factor": 0.25,
  "seed_from_first": false,
  "landmark_space": "screen",
  "screen_width": 1280,
  "screen_height": 720,
  "publish_max_rate": 0,
  "stats_interval": "30s"
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.GetSmoothingFactor() != 0.25 {
		t.Errorf("Expected SmoothingFactor 0.25, got %f", cfg.GetSmoothingFactor())
	}
	if cfg.GetSeedFromFirst() != false {
		t.Errorf("Expected SeedFromFirst false, got %v", cfg.GetSeedFromFirst())
	}
	if cfg.GetLandmarkSpace() != LandmarkSpaceScreen {
		t.Errorf("Expected LandmarkSpace 'screen', got %q", cfg.GetLandmarkSpace())
	}
	if cfg.GetScreenWidth() != 1280 || cfg.GetScreenHeight() != 720 {
		t.Errorf("Expected 1280x720, got %vx%v", cfg.GetScreenWidth(), cfg.GetScreenHeight())
	}
	if cfg.GetPublishMaxRate() != 0 {
		t.Errorf("Expected PublishMaxRate 0, got %f", cfg.GetPublishMaxRate())
	}
	if cfg.GetStatsInterval() != 30*time.Second {
		t.Errorf("Expected StatsInterval 30s, got %v", cfg.GetStatsInterval())
	}
	// Omitted fields fall back to defaults.
	if cfg.GetPositionScale() != 0.01 {
		t.Errorf("Expected default PositionScale 0.01, got %f", cfg.GetPositionScale())
	}
	if cfg.GetRecordFrames() != true {
		t.Errorf("Expected default RecordFrames true, got %v", cfg.GetRecordFrames())
	}
}

func TestLoadTuningConfigMissing(t *testing.T) {
	_, err := LoadTuningConfig("/nonexistent/path/to/config.json")
	if err == nil {
		t.Error("Expected error when loading missing file, got nil")
	}
}

func TestLoadTuningConfigInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid_config.json")

	invalidJSON := `{
  "smoothing_factor": "invalid"
`
	if err := os.WriteFile(configPath, []byte(invalidJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	_, err := LoadTuningConfig(configPath)
	if err == nil {
		t.Error("Expected error when loading invalid JSON, got nil")
	}
}

func TestLoadTuningConfigRejectsInvalidValues(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "bad_values.json")

	if err := os.WriteFile(configPath, []byte(`{"smoothing_factor": 1}`), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	_, err := LoadTuningConfig(configPath)
	if err == nil {
		t.Error("Expected validation error for smoothing_factor 1, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *TuningConfig
		wantErr bool
	}{
		{
			name:    "valid config",
			cfg:     DefaultTuningConfig(),
			wantErr: false,
		},
		{
			name:    "empty config is valid",
			cfg:     &TuningConfig{},
			wantErr: false,
		},
		{
			name:    "zero smoothing is valid",
			cfg:     &TuningConfig{SmoothingFactor: ptrFloat64(0)},
			wantErr: false,
		},
		{
			name:    "negative smoothing",
			cfg:     &TuningConfig{SmoothingFactor: ptrFloat64(-0.1)},
			wantErr: true,
		},
		{
			name:    "smoothing of one freezes output",
			cfg:     &TuningConfig{SmoothingFactor: ptrFloat64(1)},
			wantErr: true,
		},
		{
			name:    "zero position scale",
			cfg:     &TuningConfig{PositionScale: ptrFloat64(0)},
			wantErr: true,
		},
		{
			name:    "unknown landmark space",
			cfg:     &TuningConfig{LandmarkSpace: ptrString("camera")},
			wantErr: true,
		},
		{
			name:    "zero screen width",
			cfg:     &TuningConfig{ScreenWidth: ptrFloat64(0)},
			wantErr: true,
		},
		{
			name:    "negative screen height",
			cfg:     &TuningConfig{ScreenHeight: ptrFloat64(-480)},
			wantErr: true,
		},
		{
			name:    "zero depth scale",
			cfg:     &TuningConfig{DepthScale: ptrFloat64(0)},
			wantErr: true,
		},
		{
			name:    "negative receive buffer",
			cfg:     &TuningConfig{UDPRcvBuf: ptrInt(-1)},
			wantErr: true,
		},
		{
			name:    "negative publish rate",
			cfg:     &TuningConfig{PublishMaxRate: ptrFloat64(-1)},
			wantErr: true,
		},
		{
			name:    "invalid stats interval",
			cfg:     &TuningConfig{StatsInterval: ptrString("invalid")},
			wantErr: true,
		},
		{
			name:    "negative stats interval",
			cfg:     &TuningConfig{StatsInterval: ptrString("-1s")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetStatsInterval(t *testing.T) {
	tests := []struct {
		name string
		cfg  *TuningConfig
		want time.Duration
	}{
		{
			name: "5 seconds",
			cfg:  &TuningConfig{StatsInterval: ptrString("5s")},
			want: 5 * time.Second,
		},
		{
			name: "1 minute",
			cfg:  &TuningConfig{StatsInterval: ptrString("1m")},
			want: time.Minute,
		},
		{
			name: "nil pointer returns default",
			cfg:  &TuningConfig{},
			want: 10 * time.Second,
		},
		{
			name: "empty string returns default",
			cfg:  &TuningConfig{StatsInterval: ptrString("")},
			want: 10 * time.Second,
		},
		{
			name: "invalid duration returns default",
			cfg:  &TuningConfig{StatsInterval: ptrString("invalid")},
			want: 10 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.cfg.GetStatsInterval()
			if got != tt.want {
				t.Errorf("GetStatsInterval() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetLandmarkSpace(t *testing.T) {
	if got := (&TuningConfig{}).GetLandmarkSpace(); got != LandmarkSpaceWorld {
		t.Errorf("GetLandmarkSpace() = %q, want %q", got, LandmarkSpaceWorld)
	}
	if got := (&TuningConfig{LandmarkSpace: ptrString("")}).GetLandmarkSpace(); got != LandmarkSpaceWorld {
		t.Errorf("GetLandmarkSpace() = %q, want %q", got, LandmarkSpaceWorld)
	}
}

func TestLoadDefaultConfigFile(t *testing.T) {
	cfg, err := LoadTuningConfig("../../config/tuning.defaults.json")
	if err != nil {
		t.Fatalf("Failed to load defaults: %v", err)
	}
	if cfg.GetSmoothingFactor() != 0.5 {
		t.Errorf("Expected 0.5, got %f", cfg.GetSmoothingFactor())
	}
	if cfg.GetSeedFromFirst() != true {
		t.Errorf("Expected true, got %v", cfg.GetSeedFromFirst())
	}
	if cfg.GetUDPRcvBuf() != 1<<20 {
		t.Errorf("Expected 1MB receive buffer, got %d", cfg.GetUDPRcvBuf())
	}
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	if cfg.GetLandmarkSpace() != LandmarkSpaceWorld {
		t.Errorf("Expected 'world', got %q", cfg.GetLandmarkSpace())
	}
}

func TestLoadTuningConfigRejectsNonJSON(t *testing.T) {
	_, err := LoadTuningConfig("/some/path/config.yaml")
	if err == nil {
		t.Error("Expected error for non-.json extension, got nil")
	}
}

func TestLoadTuningConfigRejectsLargeFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "large.json")

	largeData := make([]byte, 2*1024*1024) // 2MB
	if err := os.WriteFile(configPath, largeData, 0644); err != nil {
		t.Fatalf("Failed to write large file: %v", err)
	}

	_, err := LoadTuningConfig(configPath)
	if err == nil {
		t.Error("Expected error for file size > 1MB, got nil")
	}
}
