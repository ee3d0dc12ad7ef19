package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// MaxWorkers is the soft cap on the per-track worker pool.
const MaxWorkers = 16

// TuningConfig represents the root configuration for the recovery pipeline.
// The schema is flat so the same JSON can be used as a CLI --config file
// and as a partial override.
type TuningConfig struct {
	// Format selection
	Format *string `json:"format,omitempty"` // format table name, e.g. "ibm_mfm_dd"
	Preset *string `json:"preset,omitempty"` // PLL preset name; empty follows the format

	// Bit synchronizer params
	PLLBandwidth      *float64 `json:"pll_bandwidth,omitempty"` // scales cell process noise
	PLLDamping        *float64 `json:"pll_damping,omitempty"`   // scales drift process noise
	MeasurementNoise  *float64 `json:"measurement_noise,omitempty"`
	SpikeFraction     *float64 `json:"spike_fraction,omitempty"`
	WeakSigma         *float64 `json:"weak_sigma,omitempty"`
	MaxBits           *int     `json:"max_bits,omitempty"`
	ProcessNoiseCell  *float64 `json:"process_noise_cell,omitempty"`
	ProcessNoiseDrift *float64 `json:"process_noise_drift,omitempty"`

	// Viterbi params
	ViterbiEnable     *bool    `json:"viterbi_enable,omitempty"`
	ViterbiDepth      *int     `json:"viterbi_depth,omitempty"`
	ViterbiThreshold  *float64 `json:"viterbi_threshold,omitempty"`
	ViterbiCandidates *int     `json:"viterbi_candidates,omitempty"`

	// Fusion params
	WeakBitRevolutions *int     `json:"weak_bit_revolutions,omitempty"`
	WeakBitThreshold   *float64 `json:"weak_bit_threshold,omitempty"`
	MinPasses          *int     `json:"min_passes,omitempty"`
	MaxPasses          *int     `json:"max_passes,omitempty"`
	MaxVotedBits       *int     `json:"max_voted_bits,omitempty"`

	// Pipeline params
	Workers *int `json:"workers,omitempty"`

	// Protection params
	ProtectionCellNs      *float64 `json:"protection_cell_ns,omitempty"`
	ProtectionToleranceNs *float64 `json:"protection_tolerance_ns,omitempty"`
	ProtectionMinSectors  *int     `json:"protection_min_sectors,omitempty"`
	ReferenceTrack        *int     `json:"reference_track,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Every Get* method then falls back to its built-in default.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a config with every field populated from the
// built-in defaults. It mirrors config/tuning.defaults.json.
func DefaultTuningConfig() *TuningConfig {
	e := EmptyTuningConfig()
	return &TuningConfig{
		Format:                ptrString(e.GetFormat()),
		PLLBandwidth:          ptrFloat64(e.GetPLLBandwidth()),
		PLLDamping:            ptrFloat64(e.GetPLLDamping()),
		SpikeFraction:         ptrFloat64(e.GetSpikeFraction()),
		WeakSigma:             ptrFloat64(e.GetWeakSigma()),
		MaxBits:               ptrInt(e.GetMaxBits()),
		ViterbiEnable:         ptrBool(e.GetViterbiEnable()),
		ViterbiDepth:          ptrInt(e.GetViterbiDepth()),
		ViterbiThreshold:      ptrFloat64(e.GetViterbiThreshold()),
		ViterbiCandidates:     ptrInt(e.GetViterbiCandidates()),
		WeakBitRevolutions:    ptrInt(e.GetWeakBitRevolutions()),
		WeakBitThreshold:      ptrFloat64(e.GetWeakBitThreshold()),
		Workers:               ptrInt(e.GetWorkers()),
		MinPasses:             ptrInt(e.GetMinPasses()),
		MaxPasses:             ptrInt(e.GetMaxPasses()),
		MaxVotedBits:          ptrInt(e.GetMaxVotedBits()),
		ProtectionCellNs:      ptrFloat64(e.GetProtectionCellNs()),
		ProtectionToleranceNs: ptrFloat64(e.GetProtectionToleranceNs()),
		ProtectionMinSectors:  ptrInt(e.GetProtectionMinSectors()),
		ReferenceTrack:        ptrInt(e.GetReferenceTrack()),
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
		"../../../" + DefaultConfigPath,    // from internal/flux/pipeline/
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
	if c.PLLBandwidth != nil && *c.PLLBandwidth <= 0 {
		return fmt.Errorf("pll_bandwidth must be positive, got %f", *c.PLLBandwidth)
	}
	if c.PLLDamping != nil && *c.PLLDamping <= 0 {
		return fmt.Errorf("pll_damping must be positive, got %f", *c.PLLDamping)
	}
	if c.SpikeFraction != nil {
		if *c.SpikeFraction < 0 || *c.SpikeFraction >= 1 {
			return fmt.Errorf("spike_fraction must be in [0, 1), got %f", *c.SpikeFraction)
		}
	}
	if c.WeakSigma != nil && *c.WeakSigma <= 0 {
		return fmt.Errorf("weak_sigma must be positive, got %f", *c.WeakSigma)
	}
	if c.MaxBits != nil && *c.MaxBits <= 0 {
		return fmt.Errorf("max_bits must be positive, got %d", *c.MaxBits)
	}
	if c.ViterbiDepth != nil && *c.ViterbiDepth <= 0 {
		return fmt.Errorf("viterbi_depth must be positive, got %d", *c.ViterbiDepth)
	}
	if c.ViterbiThreshold != nil {
		if *c.ViterbiThreshold < 0 || *c.ViterbiThreshold > 1 {
			return fmt.Errorf("viterbi_threshold must be between 0 and 1, got %f", *c.ViterbiThreshold)
		}
	}
	if c.ViterbiCandidates != nil {
		if *c.ViterbiCandidates < 1 || *c.ViterbiCandidates > 16 {
			return fmt.Errorf("viterbi_candidates must be between 1 and 16, got %d", *c.ViterbiCandidates)
		}
	}
	if c.WeakBitThreshold != nil {
		if *c.WeakBitThreshold < 0 || *c.WeakBitThreshold > 0.25 {
			return fmt.Errorf("weak_bit_threshold must be between 0 and 0.25, got %f", *c.WeakBitThreshold)
		}
	}
	if c.Workers != nil {
		if *c.Workers < 1 || *c.Workers > MaxWorkers {
			return fmt.Errorf("workers must be between 1 and %d, got %d", MaxWorkers, *c.Workers)
		}
	}
	if c.MinPasses != nil && *c.MinPasses < 1 {
		return fmt.Errorf("min_passes must be at least 1, got %d", *c.MinPasses)
	}
	if c.MinPasses != nil && c.MaxPasses != nil && *c.MinPasses > *c.MaxPasses {
		return fmt.Errorf("min_passes %d exceeds max_passes %d", *c.MinPasses, *c.MaxPasses)
	}
	if c.ProtectionToleranceNs != nil && *c.ProtectionToleranceNs < 0 {
		return fmt.Errorf("protection_tolerance_ns must be non-negative, got %f", *c.ProtectionToleranceNs)
	}
	return nil
}

// GetFormat returns the format value or the default.
func (c *TuningConfig) GetFormat() string {
	if c.Format == nil || *c.Format == "" {
		return "ibm_mfm_dd"
	}
	return *c.Format
}

// GetPreset returns the preset override; empty means follow the format.
func (c *TuningConfig) GetPreset() string {
	if c.Preset == nil {
		return ""
	}
	return *c.Preset
}

// GetPLLBandwidth returns the pll_bandwidth value or the default.
func (c *TuningConfig) GetPLLBandwidth() float64 {
	if c.PLLBandwidth == nil {
		return 1.0
	}
	return *c.PLLBandwidth
}

// GetPLLDamping returns the pll_damping value or the default.
func (c *TuningConfig) GetPLLDamping() float64 {
	if c.PLLDamping == nil {
		return 1.0
	}
	return *c.PLLDamping
}

// GetMeasurementNoise returns the measurement noise override; zero keeps the preset value.
func (c *TuningConfig) GetMeasurementNoise() float64 {
	if c.MeasurementNoise == nil {
		return 0
	}
	return *c.MeasurementNoise
}

// GetProcessNoiseCell returns the cell process noise override; zero keeps the preset value.
func (c *TuningConfig) GetProcessNoiseCell() float64 {
	if c.ProcessNoiseCell == nil {
		return 0
	}
	return *c.ProcessNoiseCell
}

// GetProcessNoiseDrift returns the drift process noise override; zero keeps the preset value.
func (c *TuningConfig) GetProcessNoiseDrift() float64 {
	if c.ProcessNoiseDrift == nil {
		return 0
	}
	return *c.ProcessNoiseDrift
}

// GetSpikeFraction returns the spike_fraction value or the default.
func (c *TuningConfig) GetSpikeFraction() float64 {
	if c.SpikeFraction == nil {
		return 0.25
	}
	return *c.SpikeFraction
}

// GetWeakSigma returns the weak_sigma value or the default.
func (c *TuningConfig) GetWeakSigma() float64 {
	if c.WeakSigma == nil {
		return 3.0
	}
	return *c.WeakSigma
}

// GetMaxBits returns the max_bits value or the default.
func (c *TuningConfig) GetMaxBits() int {
	if c.MaxBits == nil {
		return 500000
	}
	return *c.MaxBits
}

// GetViterbiEnable returns the viterbi_enable value or the default.
func (c *TuningConfig) GetViterbiEnable() bool {
	if c.ViterbiEnable == nil {
		return true
	}
	return *c.ViterbiEnable
}

// GetViterbiDepth returns the viterbi_depth value or the default.
func (c *TuningConfig) GetViterbiDepth() int {
	if c.ViterbiDepth == nil {
		return 32
	}
	return *c.ViterbiDepth
}

// GetViterbiThreshold returns the viterbi_threshold value or the default.
func (c *TuningConfig) GetViterbiThreshold() float64 {
	if c.ViterbiThreshold == nil {
		return 0.5
	}
	return *c.ViterbiThreshold
}

// GetViterbiCandidates returns the viterbi_candidates value or the default.
func (c *TuningConfig) GetViterbiCandidates() int {
	if c.ViterbiCandidates == nil {
		return 4
	}
	return *c.ViterbiCandidates
}

// GetWeakBitRevolutions returns the weak_bit_revolutions value or the default.
func (c *TuningConfig) GetWeakBitRevolutions() int {
	if c.WeakBitRevolutions == nil {
		return 2
	}
	return *c.WeakBitRevolutions
}

// GetWeakBitThreshold returns the weak_bit_threshold value or the default.
func (c *TuningConfig) GetWeakBitThreshold() float64 {
	if c.WeakBitThreshold == nil {
		return 0.15
	}
	return *c.WeakBitThreshold
}

// GetWorkers returns the workers value or the default, capped at MaxWorkers.
func (c *TuningConfig) GetWorkers() int {
	if c.Workers == nil || *c.Workers < 1 {
		return 4
	}
	if *c.Workers > MaxWorkers {
		return MaxWorkers
	}
	return *c.Workers
}

// GetMinPasses returns the min_passes value or the default.
func (c *TuningConfig) GetMinPasses() int {
	if c.MinPasses == nil {
		return 1
	}
	return *c.MinPasses
}

// GetMaxPasses returns the max_passes value or the default.
func (c *TuningConfig) GetMaxPasses() int {
	if c.MaxPasses == nil {
		return 8
	}
	return *c.MaxPasses
}

// GetMaxVotedBits returns the max_voted_bits value or the default.
func (c *TuningConfig) GetMaxVotedBits() int {
	if c.MaxVotedBits == nil {
		return 400000
	}
	return *c.MaxVotedBits
}

// GetProtectionCellNs returns the protection_cell_ns value or the default.
func (c *TuningConfig) GetProtectionCellNs() float64 {
	if c.ProtectionCellNs == nil {
		return 2000
	}
	return *c.ProtectionCellNs
}

// GetProtectionToleranceNs returns the protection_tolerance_ns value or the default.
func (c *TuningConfig) GetProtectionToleranceNs() float64 {
	if c.ProtectionToleranceNs == nil {
		return 250
	}
	return *c.ProtectionToleranceNs
}

// GetProtectionMinSectors returns the protection_min_sectors value or the default.
func (c *TuningConfig) GetProtectionMinSectors() int {
	if c.ProtectionMinSectors == nil {
		return 2
	}
	return *c.ProtectionMinSectors
}

// GetReferenceTrack returns the reference_track value or the default.
func (c *TuningConfig) GetReferenceTrack() int {
	if c.ReferenceTrack == nil {
		return 0
	}
	return *c.ReferenceTrack
}
