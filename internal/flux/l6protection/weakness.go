package l6protection

import (
	"github.com/banshee-data/flux.recovery/internal/flux/l3decode"
	"github.com/banshee-data/flux.recovery/internal/flux/l5fusion"
)

// WeakRun is a run of adjacent weak bit positions in fused coordinates.
type WeakRun struct {
	Start  int
	Length int
}

// SectorWeakness is the weak-bit evidence for one sector.
type SectorWeakness struct {
	Sector         int
	WeakBits       []WeakRun
	ObservedValues [][]byte // distinct payloads seen across passes
	CellNs         float64  // mean cell time over the sector
}

// WeakCount is the number of weak bit positions.
func (w SectorWeakness) WeakCount() int {
	n := 0
	for _, r := range w.WeakBits {
		n += r.Length
	}
	return n
}

// Weak reports bit-level disagreement or more than one payload.
func (w SectorWeakness) Weak() bool {
	return w.WeakCount() > 0 || len(w.ObservedValues) > 1
}

// AnalyzeTrack collects weak evidence for every sector of a fused track.
// decode is the decode of the fused stream, so record offsets and the
// fused weak positions share coordinates; votes supply the payloads seen
// on the individual passes.
func AnalyzeTrack(fused *l5fusion.TrackFusionResult, decode *l3decode.TrackDecode, votes []l5fusion.SectorVote) []SectorWeakness {
	if fused == nil || decode == nil {
		return nil
	}
	observed := make(map[int][][]byte, len(votes))
	for _, v := range votes {
		observed[v.Sector] = v.Payloads
	}

	seen := make(map[int]bool)
	var out []SectorWeakness
	for i := range decode.Sectors {
		rec := &decode.Sectors[i]
		if !rec.HeaderCRCOK || seen[rec.Sector] {
			continue
		}
		seen[rec.Sector] = true
		out = append(out, SectorWeakness{
			Sector:         rec.Sector,
			WeakBits:       weakRuns(fused.WeakPositions, rec.BitStart, rec.BitEnd),
			ObservedValues: observed[rec.Sector],
			CellNs:         fused.Stream().MeanCellNs(rec.BitStart, rec.BitEnd),
		})
	}
	return out
}

// weakRuns groups sorted positions inside [start, end) into runs.
func weakRuns(positions []int, start, end int) []WeakRun {
	var runs []WeakRun
	for _, p := range positions {
		if p < start || p >= end {
			continue
		}
		if n := len(runs); n > 0 && runs[n-1].Start+runs[n-1].Length == p {
			runs[n-1].Length++
			continue
		}
		runs = append(runs, WeakRun{Start: p, Length: 1})
	}
	return runs
}
