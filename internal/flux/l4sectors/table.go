package l4sectors

import (
	"fmt"
	"sort"
)

// Key identifies one physical sector.
type Key struct {
	Track  int
	Head   int
	Sector int
}

func (k Key) String() string { return fmt.Sprintf("%02d.%d/%02d", k.Track, k.Head, k.Sector) }

// Less orders keys by track, head, then sector.
func (k Key) Less(o Key) bool {
	if k.Track != o.Track {
		return k.Track < o.Track
	}
	if k.Head != o.Head {
		return k.Head < o.Head
	}
	return k.Sector < o.Sector
}

// Table collects statuses for a set of sectors. It is not safe for
// concurrent use; each track owns its own table.
type Table struct {
	entries map[Key]*SectorStatus
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{entries: make(map[Key]*SectorStatus)}
}

// Expect seeds MISSING entries for sectors the format promises, so a
// sector that never shows up is still reported.
func (t *Table) Expect(track, head int, ids []int, size int) {
	for _, id := range ids {
		k := Key{Track: track, Head: head, Sector: id}
		if _, ok := t.entries[k]; !ok {
			t.entries[k] = Init(track, head, id, size)
		}
	}
}

// Observe merges s into the entry for its key, creating the entry first
// when the sector was not expected.
func (t *Table) Observe(s *SectorStatus) {
	if s == nil {
		return
	}
	k := s.Key()
	dst, ok := t.entries[k]
	if !ok {
		dst = Init(s.Track, s.Head, s.Sector, s.Size)
		t.entries[k] = dst
	}
	dst.Merge(s)
}

// Get returns the entry for k.
func (t *Table) Get(k Key) (*SectorStatus, bool) {
	s, ok := t.entries[k]
	return s, ok
}

// Len is the number of entries.
func (t *Table) Len() int { return len(t.entries) }

// Sorted returns copies of every entry in key order.
func (t *Table) Sorted() []*SectorStatus {
	out := make([]*SectorStatus, 0, len(t.entries))
	for _, s := range t.entries {
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key().Less(out[j].Key()) })
	return out
}

// Counts tallies entries per state.
func (t *Table) Counts() map[SectorState]int {
	out := make(map[SectorState]int)
	for _, s := range t.entries {
		out[s.State]++
	}
	return out
}
