package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/banshee-data/echo.sim/internal/echo"
)

func TestDefaultTuningConfig(t *testing.T) {
	cfg := DefaultTuningConfig()

	// Test that defaults are set via pointers
	if cfg.SoundSpeed == nil || *cfg.SoundSpeed != 1540.0 {
		t.Errorf("Expected SoundSpeed 1540, got %v", cfg.SoundSpeed)
	}
	if cfg.RadialDecimation == nil || *cfg.RadialDecimation != 1 {
		t.Errorf("Expected RadialDecimation 1, got %v", cfg.RadialDecimation)
	}
	if cfg.NumLanes == nil || *cfg.NumLanes != 2 {
		t.Errorf("Expected NumLanes 2, got %v", cfg.NumLanes)
	}
	if cfg.OutputType == nil || *cfg.OutputType != "rf" {
		t.Errorf("Expected OutputType 'rf', got %v", cfg.OutputType)
	}
	if cfg.WorkGroupSize == nil || *cfg.WorkGroupSize != 128 {
		t.Errorf("Expected WorkGroupSize 128, got %v", cfg.WorkGroupSize)
	}

	// Test getter methods
	if cfg.GetSoundSpeed() != 1540.0 {
		t.Errorf("GetSoundSpeed() = %f, want 1540", cfg.GetSoundSpeed())
	}
	if cfg.GetRadialDecimation() != 1 {
		t.Errorf("GetRadialDecimation() = %d, want 1", cfg.GetRadialDecimation())
	}
	if cfg.GetOutputType() != echo.OutputRF {
		t.Errorf("GetOutputType() = %v, want OutputRF", cfg.GetOutputType())
	}
	if cfg.GetStoreKernelDetails() != false {
		t.Errorf("GetStoreKernelDetails() = %v, want false", cfg.GetStoreKernelDetails())
	}
}

func TestEmptyTuningConfigDefaults(t *testing.T) {
	cfg := EmptyTuningConfig()

	if cfg.GetSoundSpeed() != 1540.0 {
		t.Errorf("GetSoundSpeed() = %f, want 1540", cfg.GetSoundSpeed())
	}
	if cfg.GetNumLanes() != 2 {
		t.Errorf("GetNumLanes() = %d, want 2", cfg.GetNumLanes())
	}
	if cfg.GetNoiseAmplitude() != 0 {
		t.Errorf("GetNoiseAmplitude() = %f, want 0", cfg.GetNoiseAmplitude())
	}
	if cfg.GetUseArcProjection() {
		t.Error("GetUseArcProjection() = true, want false")
	}
	if cfg.GetPhaseDelay() {
		t.Error("GetPhaseDelay() = true, want false")
	}
	if cfg.GetOutputType() != echo.OutputRF {
		t.Errorf("GetOutputType() = %v, want OutputRF", cfg.GetOutputType())
	}
	if cfg.GetWorkGroupSize() != 128 {
		t.Errorf("GetWorkGroupSize() = %d, want 128", cfg.GetWorkGroupSize())
	}
}

func TestLoadTuningConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	// Write test config with flat schema
	testJSON := `{
  "sound_speed": 1480.0,
  "radial_decimation": 4,
  "noise_amplitude": 0.01,
  "use_arc_projection": true,
  "phase_delay": true,
  "num_lanes": 3,
  "output_type": "env",
  "store_kernel_details": true
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.SoundSpeed == nil || *cfg.SoundSpeed != 1480.0 {
		t.Errorf("Expected SoundSpeed 1480, got %v", cfg.SoundSpeed)
	}
	if cfg.RadialDecimation == nil || *cfg.RadialDecimation != 4 {
		t.Errorf("Expected RadialDecimation 4, got %v", cfg.RadialDecimation)
	}
	if cfg.NoiseAmplitude == nil || *cfg.NoiseAmplitude != 0.01 {
		t.Errorf("Expected NoiseAmplitude 0.01, got %v", cfg.NoiseAmplitude)
	}
	if cfg.UseArcProjection == nil || *cfg.UseArcProjection != true {
		t.Errorf("Expected UseArcProjection true, got %v", cfg.UseArcProjection)
	}
	if cfg.PhaseDelay == nil || *cfg.PhaseDelay != true {
		t.Errorf("Expected PhaseDelay true, got %v", cfg.PhaseDelay)
	}
	if cfg.NumLanes == nil || *cfg.NumLanes != 3 {
		t.Errorf("Expected NumLanes 3, got %v", cfg.NumLanes)
	}
	if cfg.GetOutputType() != echo.OutputEnvelope {
		t.Errorf("GetOutputType() = %v, want OutputEnvelope", cfg.GetOutputType())
	}
	if !cfg.GetStoreKernelDetails() {
		t.Error("GetStoreKernelDetails() = false, want true")
	}

	// Omitted fields retain defaults
	if cfg.GetWorkGroupSize() != 128 {
		t.Errorf("GetWorkGroupSize() = %d, want 128 default", cfg.GetWorkGroupSize())
	}
}

func TestLoadTuningConfigPartial(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "partial.json")

	if err := os.WriteFile(configPath, []byte(`{"num_lanes": 8}`), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.GetNumLanes() != 8 {
		t.Errorf("GetNumLanes() = %d, want 8", cfg.GetNumLanes())
	}
	if cfg.GetSoundSpeed() != 1540.0 {
		t.Errorf("GetSoundSpeed() = %f, want default 1540", cfg.GetSoundSpeed())
	}
}

func TestLoadTuningConfigMissing(t *testing.T) {
	_, err := LoadTuningConfig("/nonexistent/path/to/config.json")
	if err == nil {
		t.Error("Expected error when loading missing file, got nil")
	}
}

func TestLoadTuningConfigBadExtension(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(path, []byte(`{}`), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	if _, err := LoadTuningConfig(path); err == nil {
		t.Error("Expected error for non-json extension, got nil")
	}
}

func TestLoadTuningConfigInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid_config.json")

	// Write invalid JSON
	invalidJSON := `{
  "sound_speed": "invalid"
`
	if err := os.WriteFile(configPath, []byte(invalidJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	_, err := LoadTuningConfig(configPath)
	if err == nil {
		t.Error("Expected error when loading invalid JSON, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *TuningConfig
		wantErr bool
	}{
		{name: "valid config", cfg: DefaultTuningConfig(), wantErr: false},
		{name: "empty config", cfg: EmptyTuningConfig(), wantErr: false},
		{name: "zero sound speed", cfg: &TuningConfig{SoundSpeed: ptrFloat64(0)}, wantErr: true},
		{name: "negative sound speed", cfg: &TuningConfig{SoundSpeed: ptrFloat64(-1540)}, wantErr: true},
		{name: "zero decimation", cfg: &TuningConfig{RadialDecimation: ptrInt(0)}, wantErr: true},
		{name: "negative noise", cfg: &TuningConfig{NoiseAmplitude: ptrFloat64(-0.1)}, wantErr: true},
		{name: "zero lanes", cfg: &TuningConfig{NumLanes: ptrInt(0)}, wantErr: true},
		{name: "bad output type", cfg: &TuningConfig{OutputType: ptrString("iq")}, wantErr: true},
		{name: "zero work group", cfg: &TuningConfig{WorkGroupSize: ptrInt(0)}, wantErr: true},
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

func TestApplyTo(t *testing.T) {
	cfg := &TuningConfig{
		SoundSpeed:       ptrFloat64(1480),
		RadialDecimation: ptrInt(2),
		NoiseAmplitude:   ptrFloat64(0.05),
		UseArcProjection: ptrBool(true),
		NumLanes:         ptrInt(4),
		OutputType:       ptrString("env"),
	}

	sim := echo.NewSimulator()
	if err := cfg.ApplyTo(sim); err != nil {
		t.Fatalf("ApplyTo failed: %v", err)
	}

	params := sim.Params()
	if params.SoundSpeed != 1480 {
		t.Errorf("SoundSpeed = %f, want 1480", params.SoundSpeed)
	}
	if params.RadialDecimation != 2 {
		t.Errorf("RadialDecimation = %d, want 2", params.RadialDecimation)
	}
	if params.NoiseAmplitude != 0.05 {
		t.Errorf("NoiseAmplitude = %f, want 0.05", params.NoiseAmplitude)
	}
	if !params.UseArcProjection {
		t.Error("UseArcProjection = false, want true")
	}
	if params.NumLanes != 4 {
		t.Errorf("NumLanes = %d, want 4", params.NumLanes)
	}
	if sim.OutputType() != echo.OutputEnvelope {
		t.Errorf("OutputType = %v, want OutputEnvelope", sim.OutputType())
	}
}

func TestApplyToInvalidParams(t *testing.T) {
	cfg := &TuningConfig{SoundSpeed: ptrFloat64(-1)}
	sim := echo.NewSimulator()
	if err := cfg.ApplyTo(sim); err == nil {
		t.Error("expected error applying negative sound speed")
	}
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	if cfg.GetSoundSpeed() != 1540.0 {
		t.Errorf("GetSoundSpeed() = %f, want 1540", cfg.GetSoundSpeed())
	}
	if cfg.GetNumLanes() != 2 {
		t.Errorf("GetNumLanes() = %d, want 2", cfg.GetNumLanes())
	}
}
