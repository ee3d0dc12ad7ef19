package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultTuningConfig(t *testing.T) {
	cfg := DefaultTuningConfig()

	if cfg.Format == nil || *cfg.Format != "ibm_mfm_dd" {
		t.Errorf("Expected Format 'ibm_mfm_dd', got %v", cfg.Format)
	}
	if cfg.SpikeFraction == nil || *cfg.SpikeFraction != 0.25 {
		t.Errorf("Expected SpikeFraction 0.25, got %v", cfg.SpikeFraction)
	}
	if cfg.ViterbiEnable == nil || *cfg.ViterbiEnable != true {
		t.Errorf("Expected ViterbiEnable true, got %v", cfg.ViterbiEnable)
	}
	if cfg.Workers == nil || *cfg.Workers != 4 {
		t.Errorf("Expected Workers 4, got %v", cfg.Workers)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}

	if cfg.GetWeakSigma() != 3.0 {
		t.Errorf("GetWeakSigma() = %f, want 3.0", cfg.GetWeakSigma())
	}
	if cfg.GetViterbiDepth() != 32 {
		t.Errorf("GetViterbiDepth() = %d, want 32", cfg.GetViterbiDepth())
	}
	if cfg.GetPreset() != "" {
		t.Errorf("GetPreset() = %q, want empty", cfg.GetPreset())
	}
}

func TestDefaultsFileMatchesBuiltins(t *testing.T) {
	fromFile := MustLoadDefaultConfig()
	builtin := DefaultTuningConfig()

	if fromFile.GetFormat() != builtin.GetFormat() {
		t.Errorf("format: file %q, builtin %q", fromFile.GetFormat(), builtin.GetFormat())
	}
	if fromFile.GetMaxBits() != builtin.GetMaxBits() {
		t.Errorf("max_bits: file %d, builtin %d", fromFile.GetMaxBits(), builtin.GetMaxBits())
	}
	if fromFile.GetWeakBitThreshold() != builtin.GetWeakBitThreshold() {
		t.Errorf("weak_bit_threshold: file %f, builtin %f", fromFile.GetWeakBitThreshold(), builtin.GetWeakBitThreshold())
	}
	if fromFile.GetProtectionToleranceNs() != builtin.GetProtectionToleranceNs() {
		t.Errorf("protection_tolerance_ns: file %f, builtin %f", fromFile.GetProtectionToleranceNs(), builtin.GetProtectionToleranceNs())
	}
	if fromFile.GetMaxVotedBits() != builtin.GetMaxVotedBits() {
		t.Errorf("max_voted_bits: file %d, builtin %d", fromFile.GetMaxVotedBits(), builtin.GetMaxVotedBits())
	}
}

func TestLoadTuningConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	testJSON := `{
  "format": "ibm_mfm_hd",
  "preset": "mfm_hd",
  "weak_sigma": 2.5,
  "viterbi_enable": false,
  "workers": 8,
  "min_passes": 2
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.GetFormat() != "ibm_mfm_hd" {
		t.Errorf("GetFormat() = %q, want ibm_mfm_hd", cfg.GetFormat())
	}
	if cfg.GetPreset() != "mfm_hd" {
		t.Errorf("GetPreset() = %q, want mfm_hd", cfg.GetPreset())
	}
	if cfg.GetWeakSigma() != 2.5 {
		t.Errorf("GetWeakSigma() = %f, want 2.5", cfg.GetWeakSigma())
	}
	if cfg.GetViterbiEnable() {
		t.Error("GetViterbiEnable() = true, want false")
	}
	if cfg.GetWorkers() != 8 {
		t.Errorf("GetWorkers() = %d, want 8", cfg.GetWorkers())
	}
	if cfg.GetMinPasses() != 2 {
		t.Errorf("GetMinPasses() = %d, want 2", cfg.GetMinPasses())
	}
	// Omitted fields fall back to defaults.
	if cfg.GetSpikeFraction() != 0.25 {
		t.Errorf("GetSpikeFraction() = %f, want 0.25", cfg.GetSpikeFraction())
	}
}

func TestLoadTuningConfig_Errors(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{"wrong extension", "cfg.yaml", `{}`, "must have .json extension"},
		{"bad json", "bad.json", `{"workers":`, "failed to parse config JSON"},
		{"workers over cap", "workers.json", `{"workers": 64}`, "workers must be between 1 and 16"},
		{"spike fraction", "spike.json", `{"spike_fraction": 1.5}`, "spike_fraction"},
		{"passes inverted", "passes.json", `{"min_passes": 5, "max_passes": 3}`, "min_passes 5 exceeds max_passes 3"},
		{"viterbi candidates", "vit.json", `{"viterbi_candidates": 0}`, "viterbi_candidates"},
		{"weak threshold", "weak.json", `{"weak_bit_threshold": 0.5}`, "weak_bit_threshold"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(tmpDir, tt.file)
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("write: %v", err)
			}
			_, err := LoadTuningConfig(path)
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}

	if _, err := LoadTuningConfig(filepath.Join(tmpDir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestGetWorkers_Clamps(t *testing.T) {
	huge := 100
	zero := 0
	if got := (&TuningConfig{Workers: &huge}).GetWorkers(); got != MaxWorkers {
		t.Errorf("GetWorkers() = %d, want %d", got, MaxWorkers)
	}
	if got := (&TuningConfig{Workers: &zero}).GetWorkers(); got != 4 {
		t.Errorf("GetWorkers() = %d, want 4", got)
	}
}
