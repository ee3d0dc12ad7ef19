package l3decode

import (
	"fmt"
	"math"
	"sort"

	"github.com/banshee-data/flux.recovery/internal/flux"
)

// flipCostFloor is charged for every flipped cell on top of its confidence,
// so that among equally confident paths the one with fewer flips wins.
const flipCostFloor = 0.01

// Codebook describes a block code: Decode[code] is the symbol for a
// Width-bit code, or invalidCode when the code is unused.
type Codebook struct {
	Width  int
	Decode []uint8
}

// ViterbiConfig bounds the soft-decision search.
type ViterbiConfig struct {
	Enable     bool
	Depth      int     // groups per traceback window (max path length)
	Candidates int     // alternative codes kept per ambiguous group
	Threshold  float64 // a group with any cell below this confidence is ambiguous
	MaxZeroRun int     // longest legal run of zero cells
}

// DefaultViterbiConfig matches the defaults in the tuning file.
func DefaultViterbiConfig() ViterbiConfig {
	return ViterbiConfig{Enable: true, Depth: 32, Candidates: 4, Threshold: 0.5, MaxZeroRun: 2}
}

// Validate checks the bounds.
func (c ViterbiConfig) Validate() error {
	if !c.Enable {
		return nil
	}
	if c.Depth < 1 || c.Candidates < 1 || c.MaxZeroRun < 1 {
		return flux.InvalidArgf("viterbi depth %d, candidates %d, zero run %d must be positive", c.Depth, c.Candidates, c.MaxZeroRun)
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		return flux.InvalidArgf("viterbi threshold %.2f outside [0, 1]", c.Threshold)
	}
	return nil
}

// Viterbi picks the maximum-likelihood sequence of valid codes for a run of
// soft cells. Path state is the count of trailing zero cells, which enforces
// the run-length limit across group boundaries.
type Viterbi struct {
	cfg   ViterbiConfig
	book  Codebook
	codes []codeInfo
}

type codeInfo struct {
	code     uint32
	symbol   uint8
	leading  int // zero cells before the first one
	trailing int // zero cells after the last one
}

type candidate struct {
	info codeInfo
	cost float64
}

// NewViterbi builds a decoder over book. Codes whose internal zero run
// exceeds the limit can never be emitted and are dropped.
func NewViterbi(cfg ViterbiConfig, book Codebook) (*Viterbi, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	v := &Viterbi{cfg: cfg, book: book}
	for code, sym := range book.Decode {
		if sym == invalidCode {
			continue
		}
		bits := WordBits(uint32(code), book.Width)
		lead, trail, inner := zeroRuns(bits)
		if inner > cfg.MaxZeroRun || lead > cfg.MaxZeroRun || trail > cfg.MaxZeroRun {
			continue
		}
		v.codes = append(v.codes, codeInfo{code: uint32(code), symbol: sym, leading: lead, trailing: trail})
	}
	if len(v.codes) == 0 {
		return nil, flux.InvalidArgf("codebook has no usable codes")
	}
	return v, nil
}

func zeroRuns(bits []uint8) (lead, trail, inner int) {
	first, last := -1, -1
	for i, b := range bits {
		if b == 1 {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return len(bits), len(bits), len(bits)
	}
	run := 0
	for _, b := range bits[first : last+1] {
		if b == 0 {
			run++
			if run > inner {
				inner = run
			}
			continue
		}
		run = 0
	}
	return first, len(bits) - 1 - last, inner
}

// candidates ranks the codes for one observed group by flip cost.
func (v *Viterbi) candidates(bits []uint8, conf []float64) []candidate {
	observed := BitsWord(bits)
	ambiguous := v.book.Decode[observed] == invalidCode
	for _, c := range conf {
		if c < v.cfg.Threshold {
			ambiguous = true
			break
		}
	}

	if !ambiguous {
		for _, ci := range v.codes {
			if ci.code == observed {
				return []candidate{{info: ci}}
			}
		}
	}

	out := make([]candidate, 0, len(v.codes))
	for _, ci := range v.codes {
		var cost float64
		diff := ci.code ^ observed
		for i := 0; i < v.book.Width; i++ {
			if diff&(1<<uint(v.book.Width-1-i)) != 0 {
				cost += flipCostFloor + conf[i]
			}
		}
		out = append(out, candidate{info: ci, cost: cost})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].cost < out[j].cost })
	if len(out) > v.cfg.Candidates {
		out = out[:v.cfg.Candidates]
	}
	return out
}

// Decode reads n groups starting at start and returns their symbols plus
// the number of groups where the chosen code differs from the observed one.
func (v *Viterbi) Decode(bits []uint8, conf []float64, start, n int) ([]uint8, int, error) {
	w := v.book.Width
	if start < 0 || start+n*w > len(bits) || start+n*w > len(conf) {
		return nil, 0, fmt.Errorf("need %d cells at %d: %w", n*w, start, flux.ErrBoundsExceeded)
	}

	symbols := make([]uint8, 0, n)
	corrections := 0
	state := 0 // trailing zeros entering the next window
	for g0 := 0; g0 < n; g0 += v.cfg.Depth {
		g1 := g0 + v.cfg.Depth
		if g1 > n {
			g1 = n
		}
		syms, fixed, end := v.window(bits, conf, start, g0, g1, state)
		symbols = append(symbols, syms...)
		corrections += fixed
		state = end
	}
	return symbols, corrections, nil
}

// window runs the trellis over groups [g0, g1) and traces back the best path.
func (v *Viterbi) window(bits []uint8, conf []float64, start, g0, g1, entry int) ([]uint8, int, int) {
	w := v.book.Width
	states := v.cfg.MaxZeroRun + 1
	inf := math.Inf(1)

	metric := make([]float64, states)
	for s := range metric {
		metric[s] = inf
	}
	metric[entry] = 0

	type back struct {
		prev int
		cand candidate
	}
	steps := make([][]back, 0, g1-g0)

	for g := g0; g < g1; g++ {
		off := start + g*w
		cs := v.candidates(bits[off:off+w], conf[off:off+w])

		next := make([]float64, states)
		for s := range next {
			next[s] = inf
		}
		bp := make([]back, states)
		for s, m := range metric {
			if math.IsInf(m, 1) {
				continue
			}
			for _, c := range cs {
				if s+c.info.leading > v.cfg.MaxZeroRun {
					continue
				}
				ns := c.info.trailing
				if m+c.cost < next[ns] {
					next[ns] = m + c.cost
					bp[ns] = back{prev: s, cand: c}
				}
			}
		}

		if allInf(next) {
			// No candidate satisfies the run-length limit from any live
			// state; restart the trellis from the cheapest candidate.
			best := cs[0]
			for s := range next {
				next[s] = inf
			}
			next[best.info.trailing] = metric[argmin(metric)] + best.cost
			bp[best.info.trailing] = back{prev: argmin(metric), cand: best}
		}
		steps = append(steps, bp)
		metric = next
	}

	end := argmin(metric)
	syms := make([]uint8, g1-g0)
	fixed := 0
	s := end
	for i := len(steps) - 1; i >= 0; i-- {
		b := steps[i][s]
		syms[i] = b.cand.info.symbol
		off := start + (g0+i)*w
		if b.cand.info.code != BitsWord(bits[off:off+w]) {
			fixed++
		}
		s = b.prev
	}
	return syms, fixed, end
}

func allInf(m []float64) bool {
	for _, v := range m {
		if !math.IsInf(v, 1) {
			return false
		}
	}
	return true
}

func argmin(m []float64) int {
	best := 0
	for i, v := range m {
		if v < m[best] {
			best = i
		}
	}
	return best
}
