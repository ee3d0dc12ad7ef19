package l3decode

import (
	"sort"

	"github.com/banshee-data/flux.recovery/internal/flux"
)

// Encoding selects the track decoder.
type Encoding string

const (
	EncodingMFM      Encoding = "mfm"
	EncodingFM       Encoding = "fm"
	EncodingGCRC64   Encoding = "gcr_c64"
	EncodingGCRApple Encoding = "gcr_apple"

	// EncodingGCRApple53 is the 13-sector 5-and-3 layout of DOS 3.2.
	EncodingGCRApple53 Encoding = "gcr_apple_53"
)

// Format describes one physical track layout. Capacity is bounded by
// MaxSectors so a corrupt stream can never grow the record list without
// limit.
type Format struct {
	Name            string
	Encoding        Encoding
	Preset          string // PLL preset; C64 zones override it per track
	SectorsPerTrack int
	FirstSector     int
	SizeCode        int // payload is 128 << SizeCode bytes
	MaxSectors      int
	Cylinders       int
	Heads           int
}

// c64Zones maps 1541 track ranges to sectors per track and PLL preset.
var c64Zones = []struct {
	lastTrack int
	sectors   int
	preset    string
}{
	{17, 21, "c64_zone1"},
	{24, 19, "c64_zone2"},
	{30, 18, "c64_zone3"},
	{42, 17, "c64_zone4"},
}

var formats = map[string]Format{
	"ibm_mfm_dd":   {Name: "ibm_mfm_dd", Encoding: EncodingMFM, Preset: "mfm_dd", SectorsPerTrack: 9, FirstSector: 1, SizeCode: 2, MaxSectors: 64, Cylinders: 80, Heads: 2},
	"ibm_mfm_hd":   {Name: "ibm_mfm_hd", Encoding: EncodingMFM, Preset: "mfm_hd", SectorsPerTrack: 18, FirstSector: 1, SizeCode: 2, MaxSectors: 64, Cylinders: 80, Heads: 2},
	"ibm_mfm_ed":   {Name: "ibm_mfm_ed", Encoding: EncodingMFM, Preset: "mfm_ed", SectorsPerTrack: 36, FirstSector: 1, SizeCode: 2, MaxSectors: 96, Cylinders: 80, Heads: 2},
	"ibm_fm_sd":    {Name: "ibm_fm_sd", Encoding: EncodingFM, Preset: "fm_sd", SectorsPerTrack: 10, FirstSector: 1, SizeCode: 1, MaxSectors: 32, Cylinders: 40, Heads: 1},
	"c64_gcr":      {Name: "c64_gcr", Encoding: EncodingGCRC64, Preset: "c64_zone1", SectorsPerTrack: 21, FirstSector: 0, SizeCode: 1, MaxSectors: 32, Cylinders: 35, Heads: 1},
	"apple_gcr":    {Name: "apple_gcr", Encoding: EncodingGCRApple, Preset: "apple_gcr", SectorsPerTrack: 16, FirstSector: 0, SizeCode: 1, MaxSectors: 32, Cylinders: 35, Heads: 1},
	"apple_gcr_13": {Name: "apple_gcr_13", Encoding: EncodingGCRApple53, Preset: "apple_gcr", SectorsPerTrack: 13, FirstSector: 0, SizeCode: 1, MaxSectors: 32, Cylinders: 35, Heads: 1},
}

// LookupFormat returns the named format.
func LookupFormat(name string) (Format, error) {
	f, ok := formats[name]
	if !ok {
		return Format{}, flux.InvalidArgf("unknown format %q", name)
	}
	return f, nil
}

// Formats lists every format sorted by name.
func Formats() []Format {
	out := make([]Format, 0, len(formats))
	for _, f := range formats {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SectorSize is the payload length for size code n.
func SectorSize(n int) int { return 128 << uint(n) }

// SectorSize is the payload length of this format's sectors.
func (f Format) SectorSize() int { return SectorSize(f.SizeCode) }

func (f Format) c64Zone(cylinder int) int {
	track := cylinder + 1
	for i, z := range c64Zones {
		if track <= z.lastTrack {
			return i
		}
	}
	return len(c64Zones) - 1
}

// PresetFor returns the PLL preset for a cylinder.
func (f Format) PresetFor(cylinder int) string {
	if f.Encoding == EncodingGCRC64 {
		return c64Zones[f.c64Zone(cylinder)].preset
	}
	return f.Preset
}

// SectorsFor returns the expected sector count on a cylinder.
func (f Format) SectorsFor(cylinder int) int {
	if f.Encoding == EncodingGCRC64 {
		return c64Zones[f.c64Zone(cylinder)].sectors
	}
	return f.SectorsPerTrack
}

// SectorIDs lists the sector numbers expected on a cylinder.
func (f Format) SectorIDs(cylinder int) []int {
	n := f.SectorsFor(cylinder)
	ids := make([]int, n)
	for i := range ids {
		ids[i] = f.FirstSector + i
	}
	return ids
}
