package l2bits

import (
	"github.com/banshee-data/flux.recovery/internal/config"
	"github.com/banshee-data/flux.recovery/internal/flux"
)

// Config holds everything a Synchronizer needs beyond its preset.
type Config struct {
	Preset        Preset
	SpikeFraction float64 // deltas below SpikeFraction·x_cell are rejected
	WeakSigma     float64 // normalised innovation above this flags a weak bit
	MaxBits       int     // output bound per revolution
}

// DefaultConfig wraps p with the default gating values.
func DefaultConfig(p Preset) Config {
	return Config{
		Preset:        p,
		SpikeFraction: 0.25,
		WeakSigma:     3.0,
		MaxBits:       500000,
	}
}

// ConfigFromTuning maps tuning values onto p. Bandwidth scales the cell
// process noise and damping scales the drift process noise, so a wider loop
// follows speed wobble faster at the cost of more jitter in x_cell.
func ConfigFromTuning(cfg *config.TuningConfig, p Preset) Config {
	if v := cfg.GetMeasurementNoise(); v > 0 {
		p.MeasurementNoise = v
	}
	if v := cfg.GetProcessNoiseCell(); v > 0 {
		p.ProcessNoiseCell = v
	}
	if v := cfg.GetProcessNoiseDrift(); v > 0 {
		p.ProcessNoiseDrift = v
	}
	p.ProcessNoiseCell *= cfg.GetPLLBandwidth()
	p.ProcessNoiseDrift *= cfg.GetPLLDamping()
	return Config{
		Preset:        p,
		SpikeFraction: cfg.GetSpikeFraction(),
		WeakSigma:     cfg.GetWeakSigma(),
		MaxBits:       cfg.GetMaxBits(),
	}
}

// Validate checks the config before a Synchronizer is built from it.
func (c Config) Validate() error {
	if err := c.Preset.Validate(); err != nil {
		return err
	}
	if c.SpikeFraction < 0 || c.SpikeFraction >= 1 {
		return flux.InvalidArgf("spike fraction %.2f outside [0, 1)", c.SpikeFraction)
	}
	if c.WeakSigma <= 0 {
		return flux.InvalidArgf("weak sigma %.2f must be positive", c.WeakSigma)
	}
	if c.MaxBits <= 0 {
		return flux.InvalidArgf("max bits %d must be positive", c.MaxBits)
	}
	return nil
}
