package main

import (
	"encoding/hex"
	"fmt"

	"github.com/banshee-data/flux.recovery/internal/flux/pipeline"
)

// reportView is the JSON shape of a run. Fused bit arrays are left out;
// sector payloads are hex.
type reportView struct {
	RunID      string         `json:"run_id"`
	Format     string         `json:"format"`
	DurationMs int64          `json:"duration_ms"`
	Cancelled  bool           `json:"cancelled,omitempty"`
	Counters   countersView   `json:"counters"`
	Protection *protectView   `json:"protection,omitempty"`
	Tracks     []trackView    `json:"tracks"`
	Sectors    []sectorView   `json:"sectors"`
	Counts     map[string]int `json:"counts"`
}

type countersView struct {
	Tracks   int64 `json:"tracks"`
	Sectors  int64 `json:"sectors"`
	Bits     int64 `json:"bits"`
	WeakBits int64 `json:"weak_bits"`
}

type protectView struct {
	Track       int     `json:"track"`
	Detected    bool    `json:"detected"`
	Confidence  float64 `json:"confidence"`
	Scheme      string  `json:"scheme,omitempty"`
	Version     string  `json:"version,omitempty"`
	WeakSectors []int   `json:"weak_sectors,omitempty"`
}

type trackView struct {
	Cylinder     int     `json:"cylinder"`
	Head         int     `json:"head"`
	Passes       int     `json:"passes"`
	SyncedPasses int     `json:"synced_passes"`
	Skipped      bool    `json:"skipped,omitempty"`
	Quality      float64 `json:"quality"`
	Digest       string  `json:"digest,omitempty"`
	Error        string  `json:"error,omitempty"`
}

type sectorView struct {
	Track      int     `json:"track"`
	Head       int     `json:"head"`
	Sector     int     `json:"sector"`
	State      string  `json:"state"`
	Confidence float64 `json:"confidence"`
	Retries    int     `json:"retries"`
	Flags      string  `json:"flags"`
	CRC        uint16  `json:"crc"`
	Data       string  `json:"data,omitempty"`
}

func newReportView(r *pipeline.Report) reportView {
	v := reportView{
		RunID:      r.RunID,
		Format:     r.Format,
		DurationMs: r.Duration().Milliseconds(),
		Cancelled:  r.Cancelled,
		Counters: countersView{
			Tracks:   r.Counters.Tracks,
			Sectors:  r.Counters.Sectors,
			Bits:     r.Counters.Bits,
			WeakBits: r.Counters.WeakBits,
		},
		Counts: make(map[string]int),
	}
	if p := r.Protection; p != nil {
		v.Protection = &protectView{
			Track:       p.Track,
			Detected:    p.Detected,
			Confidence:  p.Confidence,
			Scheme:      p.Scheme,
			Version:     p.Version,
			WeakSectors: p.WeakSectors,
		}
	}
	for i := range r.Tracks {
		tr := &r.Tracks[i]
		tv := trackView{
			Cylinder:     tr.Key.Cylinder,
			Head:         tr.Key.Head,
			Passes:       tr.Passes,
			SyncedPasses: tr.SyncedPasses,
			Skipped:      tr.Skipped,
			Quality:      tr.Quality(),
		}
		if tr.FusedDigest != 0 {
			tv.Digest = fmt.Sprintf("%016x", tr.FusedDigest)
		}
		if tr.Err != nil {
			tv.Error = tr.Err.Error()
		}
		v.Tracks = append(v.Tracks, tv)
	}
	for _, s := range r.Statuses {
		v.Sectors = append(v.Sectors, sectorView{
			Track:      s.Track,
			Head:       s.Head,
			Sector:     s.Sector,
			State:      string(s.State),
			Confidence: s.Confidence,
			Retries:    s.Retries,
			Flags:      s.Flags.String(),
			CRC:        s.CRC,
			Data:       hex.EncodeToString(s.Data),
		})
	}
	for state, n := range r.Counts() {
		v.Counts[string(state)] = n
	}
	return v
}
