package l2bits

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/flux.recovery/internal/flux"
	"github.com/banshee-data/flux.recovery/internal/flux/l1flux"
	"github.com/banshee-data/flux.recovery/internal/monitoring"
)

// initialCellSpread sets the starting cell-time uncertainty as a fraction of
// the nominal cell: P00 = (initialCellSpread·nominal)².
const initialCellSpread = 0.25

// initialDriftVariance is P11 at reset, in (ns/step)².
const initialDriftVariance = 1.0

// BitSynchronizer converts flux revolutions into bit-cell streams.
type BitSynchronizer interface {
	Reset(cellNs float64)
	Process(rev *l1flux.Revolution) (*BitCellStream, error)
}

// Observation describes what one flux delta did to the loop.
type Observation struct {
	Cells      int     // whole cells covered by the delta; 0 for a spike
	Innovation float64 // measurement − cells·x_cell'
	NIS        float64 // |innovation| / sqrt(S)
	Confidence float64 // per-bit confidence for every cell of this delta
	CellNs     float64 // x_cell after the step
	Spike      bool
	Weak       bool
	Gap        bool
}

// Synchronizer is a two-state Kalman PLL tracking cell time and drift.
//
// State x = [x_cell, x_drift], transition F = [[1,1],[0,1]], measurement
// H = [n, 0] for a delta spanning n cells. P is stored row-major.
type Synchronizer struct {
	cfg Config

	xCell  float64
	xDrift float64
	P      [4]float64

	carry    float64 // time from rejected spikes, added to the next delta
	driftRun int     // consecutive steps with x_cell outside the lock range
	stats    Stats
}

// NewSynchronizer validates cfg and returns a synchronizer locked to the
// preset's nominal cell time.
func NewSynchronizer(cfg Config) (*Synchronizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Synchronizer{cfg: cfg}
	s.Reset(cfg.Preset.NominalCellNs)
	return s, nil
}

// Reset restarts the loop at cellNs with zero drift and the initial
// covariance. Counters are kept; use ResetStats to clear them.
func (s *Synchronizer) Reset(cellNs float64) {
	spread := initialCellSpread * s.cfg.Preset.NominalCellNs
	s.xCell = cellNs
	s.xDrift = 0
	s.P = [4]float64{spread * spread, 0, 0, initialDriftVariance}
	s.carry = 0
	s.driftRun = 0
}

// ResetStats clears the running counters.
func (s *Synchronizer) ResetStats() { s.stats = Stats{} }

// CellNs is the current cell-time estimate.
func (s *Synchronizer) CellNs() float64 { return s.xCell }

// Drift is the current per-step drift estimate.
func (s *Synchronizer) Drift() float64 { return s.xDrift }

// Covariance returns P row-major.
func (s *Synchronizer) Covariance() [4]float64 { return s.P }

// Stats returns a copy of the running counters.
func (s *Synchronizer) Stats() Stats {
	st := s.stats
	st.DriftResets = append([]int(nil), s.stats.DriftResets...)
	return st
}

// Predict returns the a-priori state and covariance without committing it:
// x_cell' = x_cell + x_drift and P' = F·P·Fᵀ + Q.
func (s *Synchronizer) Predict() (float64, [4]float64) {
	p00, p01, p10, p11 := s.P[0], s.P[1], s.P[2], s.P[3]
	return s.xCell + s.xDrift, [4]float64{
		p00 + p01 + p10 + p11 + s.cfg.Preset.ProcessNoiseCell,
		p01 + p11,
		p10 + p11,
		p11 + s.cfg.Preset.ProcessNoiseDrift,
	}
}

// Update runs one predict/correct cycle for a measurement spanning n cells.
// When the normalised innovation exceeds WeakSigma the measurement is
// treated as a weak bit and the loop keeps the predicted state.
func (s *Synchronizer) Update(measurement float64, n int) Observation {
	xc, pp := s.Predict()
	fn := float64(n)

	y := measurement - fn*xc
	S := fn*fn*pp[0] + s.cfg.Preset.MeasurementNoise
	sd := math.Sqrt(S)
	nis := math.Abs(y) / sd

	obs := Observation{Cells: n, Innovation: y, NIS: nis}
	obs.Confidence = 1 - math.Min(1, nis/s.cfg.WeakSigma)

	if nis > s.cfg.WeakSigma {
		obs.Weak = true
		s.stats.WeakBitsDetected++
		s.xCell = xc
		s.P = pp
		obs.CellNs = s.xCell
		return obs
	}

	k0 := pp[0] * fn / S
	k1 := pp[2] * fn / S
	s.xCell = xc + k0*y
	s.xDrift += k1 * y
	s.P = [4]float64{
		(1 - k0*fn) * pp[0],
		(1 - k0*fn) * pp[1],
		pp[2] - k1*fn*pp[0],
		pp[3] - k1*fn*pp[1],
	}
	obs.CellNs = s.xCell
	return obs
}

// Step consumes one flux delta. Spikes are absorbed into the following
// delta. Runs longer than MaxRunCells are emitted with zero confidence and
// leave the loop untouched. ErrSyncDrift is returned once x_cell has stayed
// outside [CellNsMin, CellNsMax] for more than MaxRunCells steps.
func (s *Synchronizer) Step(delta float64) (Observation, error) {
	s.stats.Transitions++
	p := s.cfg.Preset

	d := delta + s.carry
	if d < s.cfg.SpikeFraction*s.xCell {
		s.carry = d
		s.stats.SpikeRejections++
		return Observation{Spike: true, CellNs: s.xCell}, nil
	}
	s.carry = 0

	xc, _ := s.Predict()
	n := int(math.Round(d / xc))
	if n < 1 {
		n = 1
	}
	if n > p.MaxRunCells {
		s.stats.Gaps++
		return Observation{Cells: n, Gap: true, CellNs: s.xCell}, nil
	}

	obs := s.Update(d, n)

	if s.xCell < p.CellNsMin || s.xCell > p.CellNsMax {
		s.driftRun++
		if s.driftRun > p.MaxRunCells {
			return obs, fmt.Errorf("cell estimate %.0fns outside [%.0f, %.0f] for %d steps: %w",
				s.xCell, p.CellNsMin, p.CellNsMax, s.driftRun, flux.ErrSyncDrift)
		}
	} else {
		s.driftRun = 0
	}
	return obs, nil
}

// Process synchronizes one revolution from the preset's nominal cell time.
// A delta of n cells emits n−1 zeros followed by a one. On SyncDrift the
// loop restarts at nominal and the bit offset is recorded in
// Stats.DriftResets. When the output would exceed MaxBits the cells decoded
// so far are returned together with ErrBoundsExceeded.
func (s *Synchronizer) Process(rev *l1flux.Revolution) (*BitCellStream, error) {
	if rev == nil || rev.Len() == 0 {
		return nil, flux.InvalidArgf("empty revolution")
	}
	s.Reset(s.cfg.Preset.NominalCellNs)
	s.ResetStats()

	estimate := int(float64(rev.DurationNs())/s.cfg.Preset.NominalCellNs) + 16
	if estimate > s.cfg.MaxBits {
		estimate = s.cfg.MaxBits
	}
	out := NewBitCellStream(estimate)

	for _, d := range rev.Deltas() {
		obs, err := s.Step(d)
		drifted := errors.Is(err, flux.ErrSyncDrift)
		if err != nil && !drifted {
			out.Stats = s.Stats()
			return out, err
		}
		if obs.Spike {
			continue
		}
		if out.Len()+obs.Cells > s.cfg.MaxBits {
			out.Stats = s.Stats()
			return out, fmt.Errorf("revolution %d needs more than %d cells: %w", rev.Index, s.cfg.MaxBits, flux.ErrBoundsExceeded)
		}
		for i := 1; i < obs.Cells; i++ {
			out.Append(0, obs.Confidence, obs.CellNs)
		}
		if obs.Weak {
			out.Weak = append(out.Weak, out.Len())
		}
		out.Append(1, obs.Confidence, obs.CellNs)

		if drifted {
			monitoring.Debugf("[pll] %s: %v, restarting at bit %d", rev, err, out.Len())
			s.stats.DriftResets = append(s.stats.DriftResets, out.Len())
			s.Reset(s.cfg.Preset.NominalCellNs)
		}
	}
	out.Stats = s.Stats()
	return out, nil
}
