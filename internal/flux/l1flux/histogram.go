package l1flux

import "github.com/banshee-data/flux.recovery/internal/flux"

// Histogram counts flux intervals into fixed-width bins. Intervals at or
// beyond the last bin edge land in Overflow.
type Histogram struct {
	BinNs    float64
	Counts   []int
	Overflow int
	Total    int
}

// NewHistogram builds an interval histogram over every revolution.
func NewHistogram(revs []*Revolution, binNs, maxNs float64) (*Histogram, error) {
	if binNs <= 0 || maxNs <= binNs {
		return nil, flux.InvalidArgf("histogram bin %.0fns / max %.0fns", binNs, maxNs)
	}
	h := &Histogram{BinNs: binNs, Counts: make([]int, int(maxNs/binNs))}
	for _, r := range revs {
		for _, d := range r.Deltas() {
			h.Total++
			i := int(d / binNs)
			if i >= len(h.Counts) {
				h.Overflow++
				continue
			}
			h.Counts[i]++
		}
	}
	return h, nil
}

// Peaks returns the centre of every bin that is a local maximum holding at
// least minFraction of all intervals. MFM captures show three peaks at 2, 3
// and 4 cells; the spacing gives the cell time independently of the PLL.
func (h *Histogram) Peaks(minFraction float64) []float64 {
	if h.Total == 0 {
		return nil
	}
	minCount := int(minFraction * float64(h.Total))
	var peaks []float64
	for i, c := range h.Counts {
		if c == 0 || c < minCount {
			continue
		}
		if i > 0 && h.Counts[i-1] > c {
			continue
		}
		if i+1 < len(h.Counts) && h.Counts[i+1] >= c {
			continue
		}
		peaks = append(peaks, (float64(i)+0.5)*h.BinNs)
	}
	return peaks
}
