// Package l5fusion combines several passes over one track into a single
// best bit sequence with a quality score, and votes repeated sector
// observations into one verdict per sector.
package l5fusion

import (
	"github.com/banshee-data/flux.recovery/internal/config"
	"github.com/banshee-data/flux.recovery/internal/flux"
)

// Config bounds fusion.
type Config struct {
	MinPasses       int     // passes with bits required to fuse at all
	MaxPasses       int     // passes beyond this are ignored
	MaxVotedBits    int     // cap on the voted length
	WeakVariance    float64 // p(1-p) above this marks a weak position
	WeakRevolutions int     // passes needed before weak positions are reported
}

// DefaultConfig matches the defaults in the tuning file.
func DefaultConfig() Config {
	return Config{
		MinPasses:       1,
		MaxPasses:       8,
		MaxVotedBits:    400000,
		WeakVariance:    0.15,
		WeakRevolutions: 2,
	}
}

// ConfigFromTuning maps tuning values onto a fusion config.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		MinPasses:       cfg.GetMinPasses(),
		MaxPasses:       cfg.GetMaxPasses(),
		MaxVotedBits:    cfg.GetMaxVotedBits(),
		WeakVariance:    cfg.GetWeakBitThreshold(),
		WeakRevolutions: cfg.GetWeakBitRevolutions(),
	}
}

// Validate checks the bounds.
func (c Config) Validate() error {
	if c.MinPasses < 1 || c.MaxPasses < c.MinPasses {
		return flux.InvalidArgf("passes min %d max %d", c.MinPasses, c.MaxPasses)
	}
	if c.MaxVotedBits < 1 {
		return flux.InvalidArgf("max voted bits %d must be positive", c.MaxVotedBits)
	}
	if c.WeakVariance < 0 || c.WeakVariance > 0.25 {
		return flux.InvalidArgf("weak variance %.3f outside [0, 0.25]", c.WeakVariance)
	}
	if c.WeakRevolutions < 2 {
		return flux.InvalidArgf("weak revolutions %d must be at least 2", c.WeakRevolutions)
	}
	return nil
}
