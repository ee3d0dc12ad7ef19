package synth

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/banshee-data/flux.recovery/internal/flux"
	"github.com/banshee-data/flux.recovery/internal/flux/l1flux"
	"github.com/banshee-data/flux.recovery/internal/flux/l2bits"
	"github.com/banshee-data/flux.recovery/internal/flux/l3decode"
)

// Generator turns track layouts into flux revolutions.
type Generator struct {
	// Configuration
	Format      l3decode.Format
	Revolutions int     // revolutions per track
	JitterNs    float64 // gaussian σ added to every transition
	Wobble      float64 // relative speed variation, e.g. 0.01 for ±1%
	SpikeEvery  int     // insert a spike after every Nth transition, 0 for none
	MaxRotation int     // each revolution starts up to this many cells late

	// Sectors overrides the standard sector set for a track. Returning nil
	// falls back to StandardSectors.
	Sectors func(cyl, head int) []Sector

	rng *rand.Rand
}

// NewGenerator creates a deterministic generator for f.
func NewGenerator(f l3decode.Format, seed int64) *Generator {
	return &Generator{
		Format:      f,
		Revolutions: 3,
		JitterNs:    0.02 * nominalCell(f, 0),
		Wobble:      0.005,
		MaxRotation: 32,
		rng:         rand.New(rand.NewSource(seed)),
	}
}

func nominalCell(f l3decode.Format, cyl int) float64 {
	p, err := l2bits.LookupPreset(f.PresetFor(cyl))
	if err != nil {
		return 2000
	}
	return p.NominalCellNs
}

// Track synthesises every revolution of one track side.
func (g *Generator) Track(cyl, head int) (*l1flux.Track, error) {
	var sectors []Sector
	if g.Sectors != nil {
		sectors = g.Sectors(cyl, head)
	}
	if sectors == nil {
		sectors = StandardSectors(g.Format, cyl, head)
	}
	cell := nominalCell(g.Format, cyl)

	t := &l1flux.Track{Cylinder: cyl, Head: head}
	for r := 0; r < g.Revolutions; r++ {
		bits, err := TrackBits(g.Format, cyl, head, sectors, g.rng)
		if err != nil {
			return nil, err
		}
		if g.MaxRotation > 0 {
			bits = rotate(bits, g.rng.Intn(g.MaxRotation+1))
		}
		rev, err := g.Flux(bits, cell, cyl, head, r)
		if err != nil {
			return nil, fmt.Errorf("track %02d.%d rev %d: %w", cyl, head, r, err)
		}
		t.Revolutions = append(t.Revolutions, rev)
	}
	return t, nil
}

// Capture synthesises a whole disk.
func (g *Generator) Capture(cylinders, heads int) (*l1flux.Capture, error) {
	if cylinders <= 0 || heads <= 0 {
		return nil, flux.InvalidArgf("capture geometry %dx%d", cylinders, heads)
	}
	c := &l1flux.Capture{Format: g.Format.Name}
	for cyl := 0; cyl < cylinders; cyl++ {
		for head := 0; head < heads; head++ {
			t, err := g.Track(cyl, head)
			if err != nil {
				return nil, err
			}
			c.Tracks = append(c.Tracks, t)
		}
	}
	return c, nil
}

// Flux converts cells to transition times: every one cell is a transition
// at the end of its cell. Speed wobble is sinusoidal over the revolution.
func (g *Generator) Flux(bits []uint8, cellNs float64, cyl, head, index int) (*l1flux.Revolution, error) {
	var ts []uint64
	var t, last float64
	n := 0
	for i, b := range bits {
		phase := 2 * math.Pi * float64(i) / float64(len(bits))
		t += cellNs * (1 + g.Wobble*math.Sin(phase))
		if b == 0 {
			continue
		}
		at := t + g.rng.NormFloat64()*g.JitterNs
		if at <= last+1 {
			at = last + 1
		}
		ts = append(ts, uint64(at))
		last = float64(uint64(at))
		n++
		if g.SpikeEvery > 0 && n%g.SpikeEvery == 0 {
			// A spike is a spurious transition shortly after a real one.
			spike := last + 0.1*cellNs
			ts = append(ts, uint64(spike))
			last = float64(uint64(spike))
		}
	}
	rev, err := l1flux.NewRevolution(cyl, head, index, ts)
	if err != nil {
		return nil, err
	}
	rev.IndexNs = uint64(t)
	return rev, nil
}

// rotate moves the last k cells to the front. The tail is always gap, so
// the index pulse lands inside the gap and no field is split.
func rotate(bits []uint8, k int) []uint8 {
	if k <= 0 || k >= len(bits) {
		return bits
	}
	cut := len(bits) - k
	out := make([]uint8, 0, len(bits))
	out = append(out, bits[cut:]...)
	return append(out, bits[:cut]...)
}
