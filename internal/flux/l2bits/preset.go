package l2bits

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/banshee-data/flux.recovery/internal/flux"
)

//go:embed presets.json
var embeddedPresets []byte

// Preset is one format's PLL configuration. Presets are data: the table is
// loaded from presets.json and may be replaced at runtime with LoadPresets.
type Preset struct {
	Name              string  `json:"name"`
	Description       string  `json:"description,omitempty"`
	NominalCellNs     float64 `json:"nominal_cell_ns"`
	CellNsMin         float64 `json:"cell_ns_min"`
	CellNsMax         float64 `json:"cell_ns_max"`
	MaxRunCells       int     `json:"max_run_cells"`
	ProcessNoiseCell  float64 `json:"process_noise_cell"`
	ProcessNoiseDrift float64 `json:"process_noise_drift"`
	MeasurementNoise  float64 `json:"measurement_noise"` // R, in ns²
}

// Validate checks the preset is usable by a Synchronizer.
func (p Preset) Validate() error {
	switch {
	case p.Name == "":
		return flux.InvalidArgf("preset has no name")
	case p.NominalCellNs <= 0:
		return flux.InvalidArgf("preset %s: nominal_cell_ns must be positive", p.Name)
	case p.CellNsMin <= 0 || p.CellNsMin > p.NominalCellNs || p.CellNsMax < p.NominalCellNs:
		return flux.InvalidArgf("preset %s: nominal %.0fns outside [%.0f, %.0f]", p.Name, p.NominalCellNs, p.CellNsMin, p.CellNsMax)
	case p.MaxRunCells < 2:
		return flux.InvalidArgf("preset %s: max_run_cells must be at least 2", p.Name)
	case p.MeasurementNoise <= 0:
		return flux.InvalidArgf("preset %s: measurement_noise must be positive", p.Name)
	case p.ProcessNoiseCell < 0 || p.ProcessNoiseDrift < 0:
		return flux.InvalidArgf("preset %s: process noise must be non-negative", p.Name)
	}
	return nil
}

var (
	presetsMu sync.RWMutex
	presets   map[string]Preset
)

func init() {
	if err := LoadPresets(bytes.NewReader(embeddedPresets)); err != nil {
		panic(fmt.Sprintf("embedded presets.json: %v", err))
	}
}

// LoadPresets replaces the preset table with the JSON array read from r.
// The table is left untouched when any entry fails validation.
func LoadPresets(r io.Reader) error {
	var list []Preset
	if err := json.NewDecoder(r).Decode(&list); err != nil {
		return fmt.Errorf("failed to parse presets: %w", err)
	}
	if len(list) == 0 {
		return flux.InvalidArgf("preset table is empty")
	}
	next := make(map[string]Preset, len(list))
	for _, p := range list {
		if err := p.Validate(); err != nil {
			return err
		}
		if _, dup := next[p.Name]; dup {
			return flux.InvalidArgf("duplicate preset %q", p.Name)
		}
		next[p.Name] = p
	}
	presetsMu.Lock()
	presets = next
	presetsMu.Unlock()
	return nil
}

// ResetPresets restores the built-in table.
func ResetPresets() {
	if err := LoadPresets(bytes.NewReader(embeddedPresets)); err != nil {
		panic(err)
	}
}

// LookupPreset returns the named preset.
func LookupPreset(name string) (Preset, error) {
	presetsMu.RLock()
	defer presetsMu.RUnlock()
	p, ok := presets[name]
	if !ok {
		return Preset{}, flux.InvalidArgf("unknown PLL preset %q", name)
	}
	return p, nil
}

// Presets returns every preset sorted by name.
func Presets() []Preset {
	presetsMu.RLock()
	defer presetsMu.RUnlock()
	out := make([]Preset, 0, len(presets))
	for _, p := range presets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
