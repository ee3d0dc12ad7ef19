package l5fusion

import (
	"sort"

	"github.com/banshee-data/flux.recovery/internal/flux/l3decode"
	"github.com/banshee-data/flux.recovery/internal/flux/l4sectors"
)

// partialConfidence caps the confidence of a voted payload that still
// fails its checksum.
const partialConfidence = 50

// SectorVote summarises every data-bearing observation of one sector.
type SectorVote struct {
	Sector   int
	Copies   int      // observations with a trusted header and a data field
	Distinct int      // distinct payloads among them
	Unstable []int    // byte offsets where the copies disagree
	Payloads [][]byte // distinct payloads in first-seen order
	Verified bool     // at least one copy passed its checksum

	// Status is the verdict of a byte-wise majority vote. It is nil when a
	// copy already verified or when there was only one copy to vote with.
	Status *l4sectors.SectorStatus
}

// VoteSectors groups records by sector number and votes the payloads of
// sectors that no pass read cleanly. Copies are told apart by their xxh3
// digest. A majority payload that passes the format's checksum becomes
// RECOVERED; otherwise it is PARTIAL. Results are sorted by sector.
func VoteSectors(f l3decode.Format, track, head int, records []l3decode.SectorRecord) []SectorVote {
	groups := make(map[int][]*l3decode.SectorRecord)
	for i := range records {
		r := &records[i]
		if !r.HeaderCRCOK || !r.HasData || len(r.Data) == 0 {
			continue
		}
		groups[r.Sector] = append(groups[r.Sector], r)
	}
	ids := make([]int, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	out := make([]SectorVote, 0, len(ids))
	for _, id := range ids {
		out = append(out, voteSector(f, track, head, id, groups[id]))
	}
	return out
}

func voteSector(f l3decode.Format, track, head, id int, copies []*l3decode.SectorRecord) SectorVote {
	first := copies[0]
	size := len(first.Data)
	v := SectorVote{Sector: id}

	seen := make(map[uint64]bool)
	var same []*l3decode.SectorRecord
	for _, c := range copies {
		if len(c.Data) != size {
			continue
		}
		same = append(same, c)
		if c.DataCRCOK {
			v.Verified = true
		}
		d := Digest(c.Data)
		if !seen[d] {
			seen[d] = true
			v.Payloads = append(v.Payloads, c.Data)
		}
	}
	v.Copies = len(same)
	v.Distinct = len(v.Payloads)

	data := make([]byte, size)
	for i := 0; i < size; i++ {
		var counts [256]int
		best := first.Data[i]
		for _, c := range same {
			b := c.Data[i]
			counts[b]++
			if counts[b] > counts[best] {
				best = b
			}
			if b != first.Data[i] && (len(v.Unstable) == 0 || v.Unstable[len(v.Unstable)-1] != i) {
				v.Unstable = append(v.Unstable, i)
			}
		}
		data[i] = best
	}

	if v.Verified || v.Copies < 2 {
		return v
	}

	var conf float64
	for _, c := range same {
		conf += c.Confidence
	}
	conf = conf / float64(len(same)) * 100
	stable := 1 - float64(len(v.Unstable))/float64(size)

	flags := l4sectors.FlagVoted
	if v.Distinct > 1 {
		flags |= l4sectors.FlagWeak
	}
	if first.Deleted {
		flags |= l4sectors.FlagDeleted
	}
	st := l4sectors.Init(track, head, id, size)
	if l3decode.VerifyData(f, first, data) {
		st.Mark(l4sectors.StateRecovered, conf*(0.5+0.5*stable), flags, first.DataCRCRead)
	} else {
		st.Mark(l4sectors.StatePartial, partialConfidence*stable, flags, first.DataCRCRead)
	}
	st.Data = data
	v.Status = st
	return v
}
