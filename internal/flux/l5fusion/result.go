package l5fusion

import (
	"fmt"

	"github.com/zeebo/xxh3"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/flux.recovery/internal/flux/l2bits"
	"github.com/banshee-data/flux.recovery/internal/flux/l3decode"
)

// RevolutionDecode is one decoded pass over a track.
type RevolutionDecode struct {
	Index      int
	Stream     *l2bits.BitCellStream
	SyncOffset int
	HasSync    bool
	Sectors    []l3decode.SectorRecord
	RPM        float64
}

// Dropped counts transitions the synchronizer discarded or could not place.
func (p *RevolutionDecode) Dropped() int {
	if p.Stream == nil {
		return 0
	}
	return p.Stream.Stats.SpikeRejections + p.Stream.Stats.Gaps
}

func (p *RevolutionDecode) offset() int {
	if p.HasSync {
		return p.SyncOffset
	}
	return 0
}

// RPMStats summarises rotation speed across passes.
type RPMStats struct {
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
	N      int
}

func rpmStats(passes []RevolutionDecode) RPMStats {
	var xs []float64
	for _, p := range passes {
		if p.RPM > 0 {
			xs = append(xs, p.RPM)
		}
	}
	if len(xs) == 0 {
		return RPMStats{}
	}
	mean, std := stat.MeanStdDev(xs, nil)
	if len(xs) == 1 {
		std = 0
	}
	return RPMStats{Mean: mean, StdDev: std, Min: floats.Min(xs), Max: floats.Max(xs), N: len(xs)}
}

// TrackFusionResult is the voted bit sequence of one track. Bit i of the
// result corresponds to bit offset+i of every pass.
type TrackFusionResult struct {
	Bits          []uint8
	Confidence    []float64
	CellNs        []float64
	WeakPositions []int

	Quality       float64 // 0..1
	VotedLength   int
	ReferencePass int // index into the passes slice, -1 when none
	Passes        int // passes that took part in the vote
	Unanimous     int
	Considered    int
	Dropped       int
	RPM           RPMStats
}

// QualityPercent is Quality on a 0..100 scale.
func (r *TrackFusionResult) QualityPercent() float64 { return r.Quality * 100 }

// Stream exposes the fused bits as a bit-cell stream so the track decoder
// can run over them.
func (r *TrackFusionResult) Stream() *l2bits.BitCellStream {
	return &l2bits.BitCellStream{
		Bits:       r.Bits,
		Confidence: r.Confidence,
		CellNs:     r.CellNs,
		Weak:       r.WeakPositions,
	}
}

// Digest fingerprints the fused bits.
func (r *TrackFusionResult) Digest() uint64 { return Digest(r.Bits) }

func (r *TrackFusionResult) String() string {
	return fmt.Sprintf("voted=%d passes=%d quality=%.1f%% weak=%d", r.VotedLength, r.Passes, r.QualityPercent(), len(r.WeakPositions))
}

// Digest is the xxh3 hash of a bit or byte sequence.
func Digest(b []byte) uint64 { return xxh3.Hash(b) }
