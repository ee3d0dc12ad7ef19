// Package l6protection recognises deliberate weak-bit copy protection from
// the fused output of a reference track. The verdict is advisory: it
// annotates sectors so that later stages can preserve the instability
// instead of repairing it.
package l6protection

import (
	"fmt"
	"math"
	"sort"

	"github.com/banshee-data/flux.recovery/internal/config"
	"github.com/banshee-data/flux.recovery/internal/flux"
)

// Scheme versions.
const (
	SchemeWeakSector  = "weak-sector"
	VersionFourSector = "4-weak-sector"
	VersionGeneric    = "generic"
)

const (
	baseConfidence      = 85
	perSectorConfidence = 5
	maxConfidence       = 99
	fourSectorCount     = 4
)

// Config sets the reference track and the timing window a weak sector has
// to fall into.
type Config struct {
	ReferenceTrack int
	CellNs         float64
	ToleranceNs    float64
	MinWeakSectors int
}

// DefaultConfig looks for at least two weak sectors written at 500 kbit/s.
func DefaultConfig() Config {
	return Config{ReferenceTrack: 0, CellNs: 2000, ToleranceNs: 250, MinWeakSectors: 2}
}

// ConfigFromTuning maps tuning values onto a detector config.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		ReferenceTrack: cfg.GetReferenceTrack(),
		CellNs:         cfg.GetProtectionCellNs(),
		ToleranceNs:    cfg.GetProtectionToleranceNs(),
		MinWeakSectors: cfg.GetProtectionMinSectors(),
	}
}

// Validate checks the bounds.
func (c Config) Validate() error {
	if c.ReferenceTrack < 0 {
		return flux.InvalidArgf("reference track %d", c.ReferenceTrack)
	}
	if c.CellNs <= 0 || c.ToleranceNs < 0 {
		return flux.InvalidArgf("protection timing %.0f±%.0fns", c.CellNs, c.ToleranceNs)
	}
	if c.MinWeakSectors < 1 {
		return flux.InvalidArgf("min weak sectors %d must be positive", c.MinWeakSectors)
	}
	return nil
}

// ProtectionProfile is the detector's verdict for one track.
type ProtectionProfile struct {
	Track       int
	Detected    bool
	Confidence  float64 // percent
	Scheme      string
	Version     string
	WeakSectors []int
	Candidates  int // sectors examined
}

func (p ProtectionProfile) String() string {
	if !p.Detected {
		return fmt.Sprintf("track %d: none (%d sectors examined)", p.Track, p.Candidates)
	}
	return fmt.Sprintf("track %d: %s/%s %.0f%% sectors %v", p.Track, p.Scheme, p.Version, p.Confidence, p.WeakSectors)
}

// Detect counts weak sectors whose mean cell time lies within the window.
// MinWeakSectors of them raise detection at 85% plus 5% per additional
// sector, capped at 99%. Four or more classify the four-sector variant.
func Detect(cfg Config, track int, sectors []SectorWeakness) ProtectionProfile {
	p := ProtectionProfile{Track: track, Candidates: len(sectors)}
	for _, s := range sectors {
		if !s.Weak() || math.Abs(s.CellNs-cfg.CellNs) > cfg.ToleranceNs {
			continue
		}
		p.WeakSectors = append(p.WeakSectors, s.Sector)
	}
	sort.Ints(p.WeakSectors)

	n := len(p.WeakSectors)
	if n < cfg.MinWeakSectors || n == 0 {
		return p
	}
	p.Detected = true
	p.Scheme = SchemeWeakSector
	p.Confidence = math.Min(maxConfidence, baseConfidence+perSectorConfidence*float64(n-1))
	p.Version = VersionGeneric
	if n >= fourSectorCount {
		p.Version = VersionFourSector
	}
	return p
}
