package pipeline

import (
	"github.com/banshee-data/flux.recovery/internal/config"
	"github.com/banshee-data/flux.recovery/internal/flux"
	"github.com/banshee-data/flux.recovery/internal/flux/l2bits"
	"github.com/banshee-data/flux.recovery/internal/flux/l3decode"
	"github.com/banshee-data/flux.recovery/internal/flux/l5fusion"
	"github.com/banshee-data/flux.recovery/internal/flux/l6protection"
	"github.com/banshee-data/flux.recovery/internal/timeutil"
)

// Config wires the layer configs together.
type Config struct {
	Workers    int
	Tuning     *config.TuningConfig // PLL preset and loop values
	Decode     l3decode.Config
	Fusion     l5fusion.Config
	Protection l6protection.Config
	Clock      timeutil.Clock
}

// ConfigFromTuning builds a pipeline config from one tuning file.
func ConfigFromTuning(cfg *config.TuningConfig) (Config, error) {
	if cfg == nil {
		cfg = config.DefaultTuningConfig()
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, flux.InvalidArgf("tuning: %v", err)
	}
	dec, err := l3decode.ConfigFromTuning(cfg)
	if err != nil {
		return Config{}, err
	}
	return Config{
		Workers:    cfg.GetWorkers(),
		Tuning:     cfg,
		Decode:     dec,
		Fusion:     l5fusion.ConfigFromTuning(cfg),
		Protection: l6protection.ConfigFromTuning(cfg),
		Clock:      timeutil.RealClock{},
	}, nil
}

// Validate checks every layer config, including the PLL config of every
// cylinder the format can hold.
func (c Config) Validate() error {
	if c.Workers < 1 || c.Workers > config.MaxWorkers {
		return flux.InvalidArgf("workers %d outside [1, %d]", c.Workers, config.MaxWorkers)
	}
	if c.Tuning == nil {
		return flux.InvalidArgf("missing tuning config")
	}
	if c.Decode.Format.MaxSectors <= 0 {
		return flux.InvalidArgf("format %q has no sector capacity", c.Decode.Format.Name)
	}
	if err := c.Decode.Viterbi.Validate(); err != nil {
		return err
	}
	if err := c.Fusion.Validate(); err != nil {
		return err
	}
	if err := c.Protection.Validate(); err != nil {
		return err
	}
	for cyl := 0; cyl < c.Decode.Format.Cylinders; cyl++ {
		if _, err := c.syncConfig(cyl); err != nil {
			return err
		}
	}
	return nil
}

// syncConfig resolves the PLL config for a cylinder: an explicit preset
// wins, otherwise the format picks one (zoned formats vary by cylinder).
func (c Config) syncConfig(cyl int) (l2bits.Config, error) {
	name := c.Tuning.GetPreset()
	if name == "" {
		name = c.Decode.Format.PresetFor(cyl)
	}
	p, err := l2bits.LookupPreset(name)
	if err != nil {
		return l2bits.Config{}, err
	}
	sc := l2bits.ConfigFromTuning(c.Tuning, p)
	return sc, sc.Validate()
}
