package l4sectors

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/flux.recovery/internal/flux/l3decode"
)

var allStates = []SectorState{StateMissing, StateBadCRC, StatePartial, StateRecovered, StateOK}

func TestRank(t *testing.T) {
	t.Parallel()

	for i := 1; i < len(allStates); i++ {
		assert.Greater(t, allStates[i].Rank(), allStates[i-1].Rank())
	}
	assert.Equal(t, 4, StateOK.Rank())
	assert.Equal(t, 0, StateMissing.Rank())
	assert.Less(t, SectorState("bogus").Rank(), 0)
}

func TestInit(t *testing.T) {
	t.Parallel()

	s := Init(3, 1, 7, 512)
	assert.Equal(t, Key{Track: 3, Head: 1, Sector: 7}, s.Key())
	assert.Equal(t, StateMissing, s.State)
	assert.Zero(t, s.Confidence)
	assert.Zero(t, s.Retries)
	assert.Equal(t, 512, s.Size)
	assert.False(t, s.Usable())
}

func TestMark_Overwrites(t *testing.T) {
	t.Parallel()

	s := Init(0, 0, 1, 512)
	s.Mark(StateOK, 95, FlagWeak, 0x1234)
	s.Mark(StateBadCRC, 20, FlagJitter, 0xBEEF)
	assert.Equal(t, StateBadCRC, s.State)
	assert.Equal(t, 20.0, s.Confidence)
	assert.Equal(t, FlagJitter, s.Flags)
	assert.Equal(t, uint16(0xBEEF), s.CRC)
	assert.Zero(t, s.Retries)

	s.Mark(StateOK, 140, 0, 0)
	assert.Equal(t, 100.0, s.Confidence)
	s.Mark(StateOK, -3, 0, 0)
	assert.Zero(t, s.Confidence)
}

func TestMerge_Monotonic(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(99))
	for _, ds := range allStates {
		for _, ss := range allStates {
			for i := 0; i < 20; i++ {
				dst := Init(0, 0, 1, 512)
				dst.Mark(ds, rng.Float64()*100, Flags(rng.Intn(256)), uint16(rng.Intn(1<<16)))
				dst.Retries = rng.Intn(5)
				src := Init(0, 0, 1, 512)
				src.Mark(ss, rng.Float64()*100, Flags(rng.Intn(256)), uint16(rng.Intn(1<<16)))
				pre := *dst

				dst.Merge(src)

				assert.Equal(t, maxf(pre.Confidence, src.Confidence), dst.Confidence)
				assert.GreaterOrEqual(t, dst.Confidence, pre.Confidence)
				assert.GreaterOrEqual(t, dst.State.Rank(), pre.State.Rank())
				assert.Equal(t, pre.Retries+1, dst.Retries)
				assert.Equal(t, pre.Flags|src.Flags, dst.Flags)
				if ss.Rank() > ds.Rank() {
					assert.Equal(t, ss, dst.State)
					assert.Equal(t, src.CRC, dst.CRC)
				} else {
					assert.Equal(t, ds, dst.State)
					assert.Equal(t, pre.CRC, dst.CRC)
				}
			}
		}
	}
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func TestMerge_WorseSourceStillCounts(t *testing.T) {
	t.Parallel()

	dst := Init(0, 0, 1, 512)
	dst.Mark(StateOK, 90, 0, 0xAAAA)
	dst.Data = []byte{1, 2, 3}

	src := Init(0, 0, 1, 512)
	src.Mark(StateBadCRC, 10, FlagWeak, 0x5555)
	src.Data = []byte{9, 9, 9}

	dst.Merge(src)
	dst.Merge(nil)
	assert.Equal(t, 2, dst.Retries)
	assert.Equal(t, StateOK, dst.State)
	assert.Equal(t, uint16(0xAAAA), dst.CRC)
	assert.Equal(t, []byte{1, 2, 3}, dst.Data)
	assert.True(t, dst.Flags.Has(FlagWeak))
}

func TestFlags_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "-", Flags(0).String())
	assert.Equal(t, "WEAK|PROTECTION", (FlagWeak | FlagProtection).String())
	assert.True(t, (FlagVoted | FlagCorrected).Has(FlagVoted))
	assert.False(t, FlagVoted.Has(FlagVoted|FlagCorrected))
}

func TestClone(t *testing.T) {
	t.Parallel()

	s := Init(1, 0, 2, 4)
	s.Data = []byte{1, 2, 3, 4}
	c := s.Clone()
	c.Data[0] = 9
	c.Retries = 7
	assert.Equal(t, byte(1), s.Data[0])
	assert.Zero(t, s.Retries)
}

func TestFromRecord(t *testing.T) {
	t.Parallel()

	payload := []byte{1, 2, 3}
	tests := []struct {
		name  string
		rec   l3decode.SectorRecord
		state SectorState
		conf  float64
		flags Flags
		crc   uint16
	}{
		{
			name:  "clean",
			rec:   l3decode.SectorRecord{Sector: 4, SizeCode: 2, HeaderCRCOK: true, HasData: true, DataCRCOK: true, DataCRCRead: 0x1111, Confidence: 0.9},
			state: StateOK, conf: 90, crc: 0x1111,
		},
		{
			name:  "viterbi repaired",
			rec:   l3decode.SectorRecord{Sector: 4, SizeCode: 2, HeaderCRCOK: true, HasData: true, DataCRCOK: true, Corrections: 2, Bitslips: 2, DataCRCRead: 0x2222, Confidence: 0.8},
			state: StateRecovered, conf: 80, flags: FlagCorrected | FlagJitter, crc: 0x2222,
		},
		{
			name:  "bad data crc",
			rec:   l3decode.SectorRecord{Sector: 4, SizeCode: 2, HeaderCRCOK: true, HasData: true, DataCRCRead: 0x3333, Confidence: 0.95},
			state: StateBadCRC, conf: 50, crc: 0x3333,
		},
		{
			name:  "header only",
			rec:   l3decode.SectorRecord{Sector: 4, SizeCode: 2, HeaderCRCOK: true, HeaderCRCRead: 0x4444, Confidence: 0.95},
			state: StateMissing, conf: 0, flags: FlagHeaderOnly, crc: 0x4444,
		},
		{
			name:  "deleted",
			rec:   l3decode.SectorRecord{Sector: 4, SizeCode: 2, HeaderCRCOK: true, HasData: true, DataCRCOK: true, Deleted: true, Confidence: 1},
			state: StateOK, conf: 100, flags: FlagDeleted,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := tt.rec
			if rec.HasData {
				rec.Data = payload
			}
			s, ok := FromRecord(&rec, 10, 1)
			require.True(t, ok)
			assert.Equal(t, Key{Track: 10, Head: 1, Sector: 4}, s.Key())
			assert.Equal(t, 512, s.Size)
			assert.Equal(t, tt.state, s.State)
			assert.InDelta(t, tt.conf, s.Confidence, 1e-9)
			assert.Equal(t, tt.flags, s.Flags)
			assert.Equal(t, tt.crc, s.CRC)
			assert.Zero(t, s.Retries)
		})
	}

	_, ok := FromRecord(&l3decode.SectorRecord{Sector: 4, HasData: true, DataCRCOK: true}, 0, 0)
	assert.False(t, ok, "an untrusted header cannot be attributed to a sector")
	_, ok = FromRecord(nil, 0, 0)
	assert.False(t, ok)
}
