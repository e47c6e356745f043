package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/echo.sim/internal/echo"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default simulator values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for simulator parameters.
// The schema matches the string keys accepted by Simulator.SetParameter so
// the same JSON can be used for both startup configuration and runtime
// updates.
type TuningConfig struct {
	// Simulation params
	SoundSpeed       *float64 `json:"sound_speed,omitempty"`
	RadialDecimation *int     `json:"radial_decimation,omitempty"`
	NoiseAmplitude   *float64 `json:"noise_amplitude,omitempty"`
	UseArcProjection *bool    `json:"use_arc_projection,omitempty"`
	PhaseDelay       *bool    `json:"phase_delay,omitempty"`
	NumLanes         *int     `json:"num_lanes,omitempty"`

	// Output params
	OutputType *string `json:"output_type,omitempty"` // "rf" or "env"

	// Diagnostics params
	WorkGroupSize      *int  `json:"work_group_size,omitempty"`
	StoreKernelDetails *bool `json:"store_kernel_details,omitempty"`
	Verbose            *bool `json:"verbose,omitempty"`
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

// DefaultTuningConfig returns a TuningConfig with every field populated
// with its default value.
func DefaultTuningConfig() *TuningConfig {
	p := echo.DefaultSimParams()
	return &TuningConfig{
		SoundSpeed:         ptrFloat64(p.SoundSpeed),
		RadialDecimation:   ptrInt(p.RadialDecimation),
		NoiseAmplitude:     ptrFloat64(p.NoiseAmplitude),
		UseArcProjection:   ptrBool(p.UseArcProjection),
		PhaseDelay:         ptrBool(p.EnablePhaseDelay),
		NumLanes:           ptrInt(p.NumLanes),
		OutputType:         ptrString("rf"),
		WorkGroupSize:      ptrInt(128),
		StoreKernelDetails: ptrBool(false),
		Verbose:            ptrBool(false),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	// Validate the config file path.
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

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	// Try paths from current dir up to repo root
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from internal/echo/monitor/
		"../../../../" + DefaultConfigPath,
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
	if c.SoundSpeed != nil {
		if *c.SoundSpeed <= 0 {
			return fmt.Errorf("sound_speed must be positive, got %f", *c.SoundSpeed)
		}
	}

	if c.RadialDecimation != nil {
		if *c.RadialDecimation < 1 {
			return fmt.Errorf("radial_decimation must be at least 1, got %d", *c.RadialDecimation)
		}
	}

	if c.NoiseAmplitude != nil {
		if *c.NoiseAmplitude < 0 {
			return fmt.Errorf("noise_amplitude must be non-negative, got %f", *c.NoiseAmplitude)
		}
	}

	if c.NumLanes != nil {
		if *c.NumLanes < 1 {
			return fmt.Errorf("num_lanes must be at least 1, got %d", *c.NumLanes)
		}
	}

	if c.OutputType != nil && *c.OutputType != "" {
		if _, err := echo.ParseOutputType(*c.OutputType); err != nil {
			return fmt.Errorf("invalid output_type '%s': %w", *c.OutputType, err)
		}
	}

	if c.WorkGroupSize != nil {
		if *c.WorkGroupSize < 1 {
			return fmt.Errorf("work_group_size must be at least 1, got %d", *c.WorkGroupSize)
		}
	}

	return nil
}

// GetSoundSpeed returns the sound_speed value or the default.
func (c *TuningConfig) GetSoundSpeed() float64 {
	if c.SoundSpeed == nil {
		return echo.DefaultSimParams().SoundSpeed
	}
	return *c.SoundSpeed
}

// GetRadialDecimation returns the radial_decimation value or the default.
func (c *TuningConfig) GetRadialDecimation() int {
	if c.RadialDecimation == nil {
		return echo.DefaultSimParams().RadialDecimation
	}
	return *c.RadialDecimation
}

// GetNoiseAmplitude returns the noise_amplitude value or the default.
func (c *TuningConfig) GetNoiseAmplitude() float64 {
	if c.NoiseAmplitude == nil {
		return 0
	}
	return *c.NoiseAmplitude
}

// GetUseArcProjection returns the use_arc_projection value or the default.
func (c *TuningConfig) GetUseArcProjection() bool {
	if c.UseArcProjection == nil {
		return false
	}
	return *c.UseArcProjection
}

// GetPhaseDelay returns the phase_delay value or the default.
func (c *TuningConfig) GetPhaseDelay() bool {
	if c.PhaseDelay == nil {
		return false
	}
	return *c.PhaseDelay
}

// GetNumLanes returns the num_lanes value or the default.
func (c *TuningConfig) GetNumLanes() int {
	if c.NumLanes == nil {
		return echo.DefaultSimParams().NumLanes
	}
	return *c.NumLanes
}

// GetOutputType returns the parsed output_type value or the default.
func (c *TuningConfig) GetOutputType() echo.OutputType {
	if c.OutputType == nil || *c.OutputType == "" {
		return echo.OutputRF
	}
	t, err := echo.ParseOutputType(*c.OutputType)
	if err != nil {
		return echo.OutputRF // default on parse error
	}
	return t
}

// GetWorkGroupSize returns the work_group_size value or the default.
func (c *TuningConfig) GetWorkGroupSize() int {
	if c.WorkGroupSize == nil {
		return 128
	}
	return *c.WorkGroupSize
}

// GetStoreKernelDetails returns the store_kernel_details value or the default.
func (c *TuningConfig) GetStoreKernelDetails() bool {
	if c.StoreKernelDetails == nil {
		return false
	}
	return *c.StoreKernelDetails
}

// GetVerbose returns the verbose value or the default.
func (c *TuningConfig) GetVerbose() bool {
	if c.Verbose == nil {
		return false
	}
	return *c.Verbose
}

// ApplyTo configures a simulator from this config. Fields left nil fall
// back to their defaults.
func (c *TuningConfig) ApplyTo(s *echo.Simulator) error {
	params := echo.SimParams{
		SoundSpeed:       c.GetSoundSpeed(),
		RadialDecimation: c.GetRadialDecimation(),
		NoiseAmplitude:   c.GetNoiseAmplitude(),
		UseArcProjection: c.GetUseArcProjection(),
		EnablePhaseDelay: c.GetPhaseDelay(),
		NumLanes:         c.GetNumLanes(),
	}
	if err := s.SetParameters(params); err != nil {
		return fmt.Errorf("applying simulation params: %w", err)
	}

	s.SetOutputType(c.GetOutputType())

	if err := s.SetParameter("work_group_size", fmt.Sprintf("%d", c.GetWorkGroupSize())); err != nil {
		return fmt.Errorf("applying work_group_size: %w", err)
	}
	if err := s.SetParameter("store_kernel_details", onOff(c.GetStoreKernelDetails())); err != nil {
		return fmt.Errorf("applying store_kernel_details: %w", err)
	}
	if err := s.SetParameter("verbose", onOff(c.GetVerbose())); err != nil {
		return fmt.Errorf("applying verbose: %w", err)
	}
	return nil
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
