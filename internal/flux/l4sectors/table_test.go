package l4sectors

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_ExpectAndObserve(t *testing.T) {
	t.Parallel()

	tbl := NewTable()
	tbl.Expect(0, 0, []int{1, 2, 3}, 512)
	tbl.Expect(0, 0, []int{1}, 512)
	require.Equal(t, 3, tbl.Len())

	ok := Init(0, 0, 2, 512)
	ok.Mark(StateOK, 97, 0, 0xCAFE)
	bad := Init(0, 0, 2, 512)
	bad.Mark(StateBadCRC, 40, FlagWeak, 0xDEAD)

	tbl.Observe(bad)
	tbl.Observe(ok)
	tbl.Observe(nil)

	s, found := tbl.Get(Key{Track: 0, Head: 0, Sector: 2})
	require.True(t, found)
	assert.Equal(t, StateOK, s.State)
	assert.Equal(t, 97.0, s.Confidence)
	assert.Equal(t, 2, s.Retries)
	assert.Equal(t, uint16(0xCAFE), s.CRC)
	assert.Equal(t, FlagWeak, s.Flags)

	// An unexpected sector still gets an entry.
	stray := Init(0, 0, 9, 512)
	stray.Mark(StateOK, 80, 0, 0)
	tbl.Observe(stray)
	assert.Equal(t, 4, tbl.Len())

	assert.Equal(t, map[SectorState]int{StateMissing: 2, StateOK: 2}, tbl.Counts())
}

func TestTable_SortedReturnsCopies(t *testing.T) {
	t.Parallel()

	tbl := NewTable()
	tbl.Expect(1, 1, []int{2, 1}, 256)
	tbl.Expect(1, 0, []int{5}, 256)
	tbl.Expect(0, 1, []int{3}, 256)

	got := tbl.Sorted()
	keys := make([]Key, len(got))
	for i, s := range got {
		keys[i] = s.Key()
	}
	want := []Key{{0, 1, 3}, {1, 0, 5}, {1, 1, 1}, {1, 1, 2}}
	if diff := cmp.Diff(want, keys); diff != "" {
		t.Errorf("Sorted() order mismatch (-want +got):\n%s", diff)
	}

	got[0].State = StateOK
	s, _ := tbl.Get(Key{0, 1, 3})
	assert.Equal(t, StateMissing, s.State)
}

func TestKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "02.1/07", Key{Track: 2, Head: 1, Sector: 7}.String())
	assert.True(t, Key{1, 0, 9}.Less(Key{1, 1, 0}))
	assert.False(t, Key{1, 1, 0}.Less(Key{1, 1, 0}))
}
