package l1flux

import (
	"fmt"

	"github.com/banshee-data/flux.recovery/internal/flux"
)

// Revolution is one physical rotation of one track side: cumulative
// transition times in nanoseconds measured from the index pulse. A
// Revolution is never modified after construction; decoders only borrow it.
type Revolution struct {
	Cylinder int
	Head     int
	Index    int // revolution number within the capture

	// TransitionsNs is strictly increasing.
	TransitionsNs []uint64

	// IndexNs is the index-to-index time when the capture recorded it; zero
	// means the last transition stands in for the rotation time.
	IndexNs uint64
}

// NewRevolution validates transitions and returns an immutable revolution.
// The slice is copied so later caller writes cannot alter it.
func NewRevolution(cylinder, head, index int, transitionsNs []uint64) (*Revolution, error) {
	if len(transitionsNs) == 0 {
		return nil, flux.InvalidArgf("revolution %d of %02d.%d has no transitions", index, cylinder, head)
	}
	var prev uint64
	for i, t := range transitionsNs {
		if i > 0 && t <= prev {
			return nil, flux.InvalidArgf("transition %d at %dns is not after %dns", i, t, prev)
		}
		prev = t
	}
	ts := make([]uint64, len(transitionsNs))
	copy(ts, transitionsNs)
	return &Revolution{Cylinder: cylinder, Head: head, Index: index, TransitionsNs: ts}, nil
}

// NewRevolutionFromDeltas accumulates per-transition deltas. Zero deltas are
// rejected since they would produce a non-increasing time series.
func NewRevolutionFromDeltas(cylinder, head, index int, deltasNs []uint32) (*Revolution, error) {
	if len(deltasNs) == 0 {
		return nil, flux.InvalidArgf("revolution %d of %02d.%d has no deltas", index, cylinder, head)
	}
	ts := make([]uint64, len(deltasNs))
	var acc uint64
	for i, d := range deltasNs {
		if d == 0 {
			return nil, flux.InvalidArgf("delta %d is zero", i)
		}
		acc += uint64(d)
		ts[i] = acc
	}
	return &Revolution{Cylinder: cylinder, Head: head, Index: index, TransitionsNs: ts}, nil
}

// Key returns the track side this revolution belongs to.
func (r *Revolution) Key() flux.TrackKey {
	return flux.TrackKey{Cylinder: r.Cylinder, Head: r.Head}
}

// Len is the number of transitions.
func (r *Revolution) Len() int { return len(r.TransitionsNs) }

// Deltas returns the interval before each transition. The first interval is
// measured from the index pulse at t=0.
func (r *Revolution) Deltas() []float64 {
	out := make([]float64, len(r.TransitionsNs))
	var prev uint64
	for i, t := range r.TransitionsNs {
		out[i] = float64(t - prev)
		prev = t
	}
	return out
}

// DurationNs is the rotation time.
func (r *Revolution) DurationNs() uint64 {
	if r.IndexNs > 0 {
		return r.IndexNs
	}
	if len(r.TransitionsNs) == 0 {
		return 0
	}
	return r.TransitionsNs[len(r.TransitionsNs)-1]
}

// RPM derives spindle speed from the rotation time.
func (r *Revolution) RPM() float64 {
	d := r.DurationNs()
	if d == 0 {
		return 0
	}
	return 60e9 / float64(d)
}

func (r *Revolution) String() string {
	return fmt.Sprintf("rev %d %02d.%d (%d transitions, %.1f rpm)", r.Index, r.Cylinder, r.Head, r.Len(), r.RPM())
}
