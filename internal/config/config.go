// Package config provides TOML configuration loading for the violation
// analysis pipeline.
//
// The configuration file supports the following structure:
//
//	[policy]
//	scooper_active_max_px = 50
//	scooper_nearby_max_px = 100
//	allow_nearby_scooper_fallback = true
//	work_session_cooldown_sec = 30
//	sequence_staleness_sec = 30
//	scooper_usage_required_percent = 70
//	hand_worker_assoc_max_px = 150
//	rich_mode_enabled = false
//
//	[clients]
//	detector_url = "http://localhost:8001"
//	roi_store_url = "http://localhost:8002"
//	violation_store_url = "http://localhost:8003"
//	broker_url = "http://localhost:8004"
//
//	[storage]
//	frame_dir = "violation_frames"
//
// Every field except enable_roi_depth_factor can also be set with an
// environment variable: the [policy] fields by the names of the wire
// envelope (e.g. SCOOPER_ACTIVE_MAX_PX), the URLs by DETECTOR_URL,
// ROI_STORE_URL, VIOLATION_STORE_URL and BROKER_URL, and frame_dir by
// FRAME_DIR; env values are applied after the TOML decode and take
// precedence.
//
// Example usage:
//
//	cfg, err := config.Load("config.toml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Active threshold: %f\n", cfg.Policy.ScooperActiveMaxPx)
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Config represents the complete configuration for the pipeline.
type Config struct {
	Policy  PolicyConfig  `toml:"policy"`
	Clients ClientsConfig `toml:"clients"`
	Storage StorageConfig `toml:"storage"`
}

// PolicyConfig holds every envelope option from the wire contract's
// configuration table.
type PolicyConfig struct {
	// ScooperActiveMaxPx is the tier-1 "active use" distance threshold
	// (default: 50).
	ScooperActiveMaxPx float64 `toml:"scooper_active_max_px"`
	// ScooperNearbyMaxPx is the tier-2 fallback distance threshold
	// (default: 100).
	ScooperNearbyMaxPx float64 `toml:"scooper_nearby_max_px"`
	// AllowNearbyScooperFallback makes the simple tiered classifier treat
	// a tier-2 distance as active use when true; when false, tier-2 is a
	// violation. The rich-evidence classifier does not read it
	// (default: true).
	AllowNearbyScooperFallback bool `toml:"allow_nearby_scooper_fallback"`
	// WorkSessionCooldownSec is W, the per-key dedup window in seconds
	// (default: 30).
	WorkSessionCooldownSec int `toml:"work_session_cooldown_sec"`
	// SequenceStalenessSec force-closes idle sequences after this many
	// seconds (default: 30).
	SequenceStalenessSec int `toml:"sequence_staleness_sec"`
	// ScooperUsageRequiredPercent is informational only; it never gates
	// a violation (default: 70).
	ScooperUsageRequiredPercent float64 `toml:"scooper_usage_required_percent"`
	// HandWorkerAssocMaxPx bounds hand-to-person association distance
	// (default: 150).
	HandWorkerAssocMaxPx float64 `toml:"hand_worker_assoc_max_px"`
	// RichModeEnabled selects the rich-evidence classifier over the
	// simple tiered-distance classifier (default: false).
	RichModeEnabled bool `toml:"rich_mode_enabled"`
	// EnableROIDepthFactor folds the optional hand-touching-food depth
	// heuristic into rich mode's spatial score (default: false).
	EnableROIDepthFactor bool `toml:"enable_roi_depth_factor"`
}

// ClientsConfig holds the external collaborator base URLs.
type ClientsConfig struct {
	DetectorURL        string `toml:"detector_url"`
	ROIStoreURL        string `toml:"roi_store_url"`
	ViolationStoreURL  string `toml:"violation_store_url"`
	BrokerURL          string `toml:"broker_url"`
}

// StorageConfig holds persistence settings for annotated frames.
type StorageConfig struct {
	// FrameDir is the root directory for persisted violation frames
	// (default: "violation_frames").
	FrameDir string `toml:"frame_dir"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Policy: PolicyConfig{
			ScooperActiveMaxPx:          50,
			ScooperNearbyMaxPx:          100,
			AllowNearbyScooperFallback:  true,
			WorkSessionCooldownSec:      30,
			SequenceStalenessSec:        30,
			ScooperUsageRequiredPercent: 70,
			HandWorkerAssocMaxPx:        150,
			RichModeEnabled:             false,
			EnableROIDepthFactor:        false,
		},
		Clients: ClientsConfig{
			DetectorURL:       "http://localhost:8001",
			ROIStoreURL:       "http://localhost:8002",
			ViolationStoreURL: "http://localhost:8003",
			BrokerURL:         "http://localhost:8004",
		},
		Storage: StorageConfig{
			FrameDir: "violation_frames",
		},
	}
}

// Load reads and parses a TOML configuration file, then applies any
// matching environment variable overrides. If the file does not exist,
// it returns the default configuration (with env overrides still
// applied).
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		} else if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v, ok := envFloat("SCOOPER_ACTIVE_MAX_PX"); ok {
		cfg.Policy.ScooperActiveMaxPx = v
	}
	if v, ok := envFloat("SCOOPER_NEARBY_MAX_PX"); ok {
		cfg.Policy.ScooperNearbyMaxPx = v
	}
	if v, ok := envBool("ALLOW_NEARBY_SCOOPER_FALLBACK"); ok {
		cfg.Policy.AllowNearbyScooperFallback = v
	}
	if v, ok := envInt("WORK_SESSION_COOLDOWN_SEC"); ok {
		cfg.Policy.WorkSessionCooldownSec = v
	}
	if v, ok := envInt("SEQUENCE_STALENESS_SEC"); ok {
		cfg.Policy.SequenceStalenessSec = v
	}
	if v, ok := envFloat("SCOOPER_USAGE_REQUIRED_PERCENT"); ok {
		cfg.Policy.ScooperUsageRequiredPercent = v
	}
	if v, ok := envFloat("HAND_WORKER_ASSOC_MAX_PX"); ok {
		cfg.Policy.HandWorkerAssocMaxPx = v
	}
	if v, ok := envBool("RICH_MODE_ENABLED"); ok {
		cfg.Policy.RichModeEnabled = v
	}
	if v, ok := os.LookupEnv("DETECTOR_URL"); ok {
		cfg.Clients.DetectorURL = v
	}
	if v, ok := os.LookupEnv("ROI_STORE_URL"); ok {
		cfg.Clients.ROIStoreURL = v
	}
	if v, ok := os.LookupEnv("VIOLATION_STORE_URL"); ok {
		cfg.Clients.ViolationStoreURL = v
	}
	if v, ok := os.LookupEnv("BROKER_URL"); ok {
		cfg.Clients.BrokerURL = v
	}
	if v, ok := os.LookupEnv("FRAME_DIR"); ok {
		cfg.Storage.FrameDir = v
	}
}

func envFloat(name string) (float64, bool) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func envInt(name string) (int, bool) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return 0, false
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return i, true
}

func envBool(name string) (bool, bool) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Policy.ScooperActiveMaxPx <= 0 {
		return fmt.Errorf("scooper_active_max_px must be positive, got %f", c.Policy.ScooperActiveMaxPx)
	}
	if c.Policy.ScooperNearbyMaxPx <= c.Policy.ScooperActiveMaxPx {
		return fmt.Errorf("scooper_nearby_max_px (%f) must exceed scooper_active_max_px (%f)", c.Policy.ScooperNearbyMaxPx, c.Policy.ScooperActiveMaxPx)
	}
	if c.Policy.WorkSessionCooldownSec <= 0 {
		return fmt.Errorf("work_session_cooldown_sec must be positive, got %d", c.Policy.WorkSessionCooldownSec)
	}
	if c.Policy.SequenceStalenessSec <= 0 {
		return fmt.Errorf("sequence_staleness_sec must be positive, got %d", c.Policy.SequenceStalenessSec)
	}
	if c.Policy.ScooperUsageRequiredPercent < 0 || c.Policy.ScooperUsageRequiredPercent > 100 {
		return fmt.Errorf("scooper_usage_required_percent must be between 0 and 100, got %f", c.Policy.ScooperUsageRequiredPercent)
	}
	if c.Policy.HandWorkerAssocMaxPx <= 0 {
		return fmt.Errorf("hand_worker_assoc_max_px must be positive, got %f", c.Policy.HandWorkerAssocMaxPx)
	}
	if c.Storage.FrameDir == "" {
		return fmt.Errorf("storage.frame_dir must not be empty")
	}
	return nil
}
