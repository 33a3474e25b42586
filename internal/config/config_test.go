package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Policy.ScooperActiveMaxPx != 50 {
		t.Errorf("expected ScooperActiveMaxPx 50, got %f", cfg.Policy.ScooperActiveMaxPx)
	}
	if cfg.Policy.ScooperNearbyMaxPx != 100 {
		t.Errorf("expected ScooperNearbyMaxPx 100, got %f", cfg.Policy.ScooperNearbyMaxPx)
	}
	if !cfg.Policy.AllowNearbyScooperFallback {
		t.Error("expected AllowNearbyScooperFallback to be true")
	}
	if cfg.Policy.WorkSessionCooldownSec != 30 {
		t.Errorf("expected WorkSessionCooldownSec 30, got %d", cfg.Policy.WorkSessionCooldownSec)
	}
	if cfg.Policy.SequenceStalenessSec != 30 {
		t.Errorf("expected SequenceStalenessSec 30, got %d", cfg.Policy.SequenceStalenessSec)
	}
	if cfg.Policy.ScooperUsageRequiredPercent != 70 {
		t.Errorf("expected ScooperUsageRequiredPercent 70, got %f", cfg.Policy.ScooperUsageRequiredPercent)
	}
	if cfg.Policy.HandWorkerAssocMaxPx != 150 {
		t.Errorf("expected HandWorkerAssocMaxPx 150, got %f", cfg.Policy.HandWorkerAssocMaxPx)
	}
	if cfg.Policy.RichModeEnabled {
		t.Error("expected RichModeEnabled to default to false")
	}
	if cfg.Policy.EnableROIDepthFactor {
		t.Error("expected EnableROIDepthFactor to default to false")
	}
	if cfg.Storage.FrameDir != "violation_frames" {
		t.Errorf("expected default frame dir violation_frames, got %s", cfg.Storage.FrameDir)
	}
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg == nil {
		t.Fatal("expected non-nil config")
	}
}

func TestLoad_NonExistentFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.toml")
	if err != nil {
		t.Fatalf("unexpected error for non-existent file: %v", err)
	}
	if cfg == nil {
		t.Fatal("expected default config for non-existent file")
	}
}

func TestLoad_ValidFile(t *testing.T) {
	content := `
[policy]
scooper_active_max_px = 40
scooper_nearby_max_px = 90
allow_nearby_scooper_fallback = false
work_session_cooldown_sec = 45
sequence_staleness_sec = 20
scooper_usage_required_percent = 80
hand_worker_assoc_max_px = 120
rich_mode_enabled = true

[clients]
detector_url = "http://detector.internal"
roi_store_url = "http://rois.internal"
violation_store_url = "http://violations.internal"
broker_url = "http://broker.internal"

[storage]
frame_dir = "/data/frames"
`
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Policy.ScooperActiveMaxPx != 40 {
		t.Errorf("expected ScooperActiveMaxPx 40, got %f", cfg.Policy.ScooperActiveMaxPx)
	}
	if cfg.Policy.AllowNearbyScooperFallback {
		t.Error("expected AllowNearbyScooperFallback to be false")
	}
	if !cfg.Policy.RichModeEnabled {
		t.Error("expected RichModeEnabled to be true")
	}
	if cfg.Clients.DetectorURL != "http://detector.internal" {
		t.Errorf("expected detector url override, got %s", cfg.Clients.DetectorURL)
	}
	if cfg.Storage.FrameDir != "/data/frames" {
		t.Errorf("expected frame dir override, got %s", cfg.Storage.FrameDir)
	}
}

func TestLoad_InvalidTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "invalid.toml")
	if err := os.WriteFile(path, []byte("invalid [ toml"), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	_, err := Load(path)
	if err == nil {
		t.Error("expected error for invalid TOML")
	}
}

func TestLoad_EnvOverridesTakePrecedence(t *testing.T) {
	t.Setenv("SCOOPER_ACTIVE_MAX_PX", "35")
	t.Setenv("RICH_MODE_ENABLED", "true")
	t.Setenv("DETECTOR_URL", "http://env-detector")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Policy.ScooperActiveMaxPx != 35 {
		t.Errorf("expected env override 35, got %f", cfg.Policy.ScooperActiveMaxPx)
	}
	if !cfg.Policy.RichModeEnabled {
		t.Error("expected env override to enable rich mode")
	}
	if cfg.Clients.DetectorURL != "http://env-detector" {
		t.Errorf("expected env override for detector url, got %s", cfg.Clients.DetectorURL)
	}
}

func TestValidate_InvalidActiveThreshold(t *testing.T) {
	cfg := Default()
	cfg.Policy.ScooperActiveMaxPx = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for non-positive active threshold")
	}
}

func TestValidate_NearbyMustExceedActive(t *testing.T) {
	cfg := Default()
	cfg.Policy.ScooperNearbyMaxPx = cfg.Policy.ScooperActiveMaxPx
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when nearby threshold does not exceed active threshold")
	}
}

func TestValidate_InvalidCooldown(t *testing.T) {
	cfg := Default()
	cfg.Policy.WorkSessionCooldownSec = -1
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for negative cooldown")
	}
}

func TestValidate_InvalidUsagePercent(t *testing.T) {
	cfg := Default()
	cfg.Policy.ScooperUsageRequiredPercent = 150
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for usage percent above 100")
	}
}

func TestValidate_EmptyFrameDir(t *testing.T) {
	cfg := Default()
	cfg.Storage.FrameDir = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for empty frame dir")
	}
}
