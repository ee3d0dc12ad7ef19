package pipeline

import (
	"time"

	"github.com/banshee-data/flux.recovery/internal/flux"
	"github.com/banshee-data/flux.recovery/internal/flux/l4sectors"
	"github.com/banshee-data/flux.recovery/internal/flux/l5fusion"
	"github.com/banshee-data/flux.recovery/internal/flux/l6protection"
)

// Counters are the run totals.
type Counters struct {
	Tracks   int64
	Sectors  int64
	Bits     int64
	WeakBits int64
}

// TrackResult is everything learned about one track.
type TrackResult struct {
	Key          flux.TrackKey
	Passes       int // revolutions that produced bits
	SyncedPasses int // of those, passes with an address mark
	Skipped      bool

	Fusion      *l5fusion.TrackFusionResult
	FusedDigest uint64
	Votes       []l5fusion.SectorVote
	Protection  *l6protection.ProtectionProfile // reference track only
	Sectors     []*l4sectors.SectorStatus

	// Err is the track-level failure, e.g. ErrInsufficientPasses. It never
	// stops the run.
	Err      error
	Duration time.Duration
}

// Quality is the fused quality on a 0..1 scale, 0 without a fusion.
func (r *TrackResult) Quality() float64 {
	if r.Fusion == nil {
		return 0
	}
	return r.Fusion.Quality
}

// Report is the outcome of one run. Tracks and Statuses are sorted by key.
type Report struct {
	RunID     string
	Format    string
	Started   time.Time
	Finished  time.Time
	Tracks    []TrackResult
	Statuses  []*l4sectors.SectorStatus
	Counters  Counters
	Cancelled bool

	// Protection is the strongest verdict among the reference tracks.
	Protection *l6protection.ProtectionProfile
}

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration { return r.Finished.Sub(r.Started) }

// Counts tallies statuses per state.
func (r *Report) Counts() map[l4sectors.SectorState]int {
	out := make(map[l4sectors.SectorState]int)
	for _, s := range r.Statuses {
		out[s.State]++
	}
	return out
}

// Usable is the number of sectors whose payload verified.
func (r *Report) Usable() int {
	n := 0
	for _, s := range r.Statuses {
		if s.Usable() {
			n++
		}
	}
	return n
}

// MeanQuality averages track quality over tracks that fused.
func (r *Report) MeanQuality() float64 {
	var sum float64
	n := 0
	for i := range r.Tracks {
		if r.Tracks[i].Fusion != nil && r.Tracks[i].Err == nil {
			sum += r.Tracks[i].Fusion.Quality
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
