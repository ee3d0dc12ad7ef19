package l1flux

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/banshee-data/flux.recovery/internal/flux"
)

// Track groups the revolutions captured for one track side.
type Track struct {
	Cylinder    int
	Head        int
	Revolutions []*Revolution
}

// Key returns the track side.
func (t *Track) Key() flux.TrackKey {
	return flux.TrackKey{Cylinder: t.Cylinder, Head: t.Head}
}

// Capture is a whole-disk flux dump as handed over by the capture layer.
type Capture struct {
	Format string
	Tracks []*Track
}

// captureFile is the on-disk JSON layout. Revolutions are stored as deltas,
// which keeps the numbers small and matches what capture hardware emits.
type captureFile struct {
	Format string      `json:"format"`
	Tracks []trackFile `json:"tracks"`
}

type trackFile struct {
	Cylinder    int       `json:"cylinder"`
	Head        int       `json:"head"`
	Revolutions []revFile `json:"revolutions"`
}

type revFile struct {
	Index    int      `json:"index"`
	IndexNs  uint64   `json:"index_ns,omitempty"`
	DeltasNs []uint32 `json:"deltas_ns"`
}

// maxCaptureBytes bounds a capture document; an 84-track, 5-revolution HD
// dump is well under this.
const maxCaptureBytes = 512 * 1024 * 1024

// LoadCapture parses a JSON capture. Tracks are returned sorted by key.
func LoadCapture(r io.Reader) (*Capture, error) {
	var f captureFile
	dec := json.NewDecoder(io.LimitReader(r, maxCaptureBytes))
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse capture JSON: %w", err)
	}
	c := &Capture{Format: f.Format}
	for _, tf := range f.Tracks {
		t := &Track{Cylinder: tf.Cylinder, Head: tf.Head}
		for _, rf := range tf.Revolutions {
			rev, err := NewRevolutionFromDeltas(tf.Cylinder, tf.Head, rf.Index, rf.DeltasNs)
			if err != nil {
				return nil, fmt.Errorf("track %02d.%d: %w", tf.Cylinder, tf.Head, err)
			}
			rev.IndexNs = rf.IndexNs
			t.Revolutions = append(t.Revolutions, rev)
		}
		c.Tracks = append(c.Tracks, t)
	}
	sort.Slice(c.Tracks, func(i, j int) bool { return c.Tracks[i].Key().Less(c.Tracks[j].Key()) })
	return c, nil
}

// WriteCapture serialises c in the layout LoadCapture reads.
func WriteCapture(w io.Writer, c *Capture) error {
	f := captureFile{Format: c.Format}
	for _, t := range c.Tracks {
		tf := trackFile{Cylinder: t.Cylinder, Head: t.Head}
		for _, rev := range t.Revolutions {
			deltas := make([]uint32, len(rev.TransitionsNs))
			var prev uint64
			for i, ts := range rev.TransitionsNs {
				deltas[i] = uint32(ts - prev)
				prev = ts
			}
			tf.Revolutions = append(tf.Revolutions, revFile{Index: rev.Index, IndexNs: rev.IndexNs, DeltasNs: deltas})
		}
		f.Tracks = append(f.Tracks, tf)
	}
	enc := json.NewEncoder(w)
	if err := enc.Encode(&f); err != nil {
		return fmt.Errorf("failed to write capture JSON: %w", err)
	}
	return nil
}

// Find returns the track for key, or nil.
func (c *Capture) Find(key flux.TrackKey) *Track {
	for _, t := range c.Tracks {
		if t.Key() == key {
			return t
		}
	}
	return nil
}
