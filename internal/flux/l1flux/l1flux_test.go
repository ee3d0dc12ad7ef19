package l1flux

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/flux.recovery/internal/flux"
)

func TestNewRevolution_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewRevolution(0, 0, 0, nil)
	assert.True(t, errors.Is(err, flux.ErrInvalidArgument))

	_, err = NewRevolution(0, 0, 0, []uint64{100, 100})
	assert.True(t, errors.Is(err, flux.ErrInvalidArgument))

	in := []uint64{4000, 10000, 14000}
	rev, err := NewRevolution(1, 1, 2, in)
	require.NoError(t, err)
	in[0] = 1
	assert.Equal(t, uint64(4000), rev.TransitionsNs[0], "revolution must own its transitions")
	assert.Equal(t, []float64{4000, 6000, 4000}, rev.Deltas())
	assert.Equal(t, flux.TrackKey{Cylinder: 1, Head: 1}, rev.Key())
}

func TestRevolution_RPM(t *testing.T) {
	t.Parallel()

	rev, err := NewRevolutionFromDeltas(0, 0, 0, []uint32{100_000_000, 100_000_000})
	require.NoError(t, err)
	assert.InDelta(t, 300.0, rev.RPM(), 1e-9)

	rev.IndexNs = 166_666_667
	assert.InDelta(t, 360.0, rev.RPM(), 0.01)

	_, err = NewRevolutionFromDeltas(0, 0, 0, []uint32{10, 0})
	assert.True(t, errors.Is(err, flux.ErrInvalidArgument))
}

func TestDecodeSCPDeltas(t *testing.T) {
	t.Parallel()

	// 0x0050 ticks, overflow, 0x0010 ticks -> cumulative 0x50, 0x50+0x10000+0x10
	raw := []byte{0x00, 0x50, 0x00, 0x00, 0x00, 0x10}
	got, err := DecodeSCPDeltas(raw, 25)
	require.NoError(t, err)
	want := []uint64{0x50 * 25, (0x50 + 0x10000 + 0x10) * 25}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("DecodeSCPDeltas mismatch (-want +got):\n%s", diff)
	}

	_, err = DecodeSCPDeltas([]byte{0x01}, 25)
	assert.True(t, errors.Is(err, flux.ErrInvalidArgument))
	_, err = DecodeSCPDeltas(nil, 25)
	assert.True(t, errors.Is(err, flux.ErrInvalidArgument))
	_, err = DecodeSCPDeltas(raw, 0)
	assert.True(t, errors.Is(err, flux.ErrInvalidArgument))
}

func TestSCPDeltas_RoundTrip(t *testing.T) {
	t.Parallel()

	times := []uint64{2000, 6000, 10000, 10000 + 0x10000*25 + 4000, 10000 + 0x20000*25 + 8000}
	raw := EncodeSCPDeltas(times, 25)
	got, err := DecodeSCPDeltas(raw, 25)
	require.NoError(t, err)
	assert.Equal(t, times, got)
}

func TestHistogram_Peaks(t *testing.T) {
	t.Parallel()

	var deltas []uint32
	for i := 0; i < 300; i++ {
		deltas = append(deltas, 4000, 6000, 8000, 4000)
	}
	rev, err := NewRevolutionFromDeltas(0, 0, 0, deltas)
	require.NoError(t, err)

	h, err := NewHistogram([]*Revolution{rev}, 100, 10000)
	require.NoError(t, err)
	assert.Equal(t, 1200, h.Total)
	assert.Equal(t, 0, h.Overflow)
	assert.Equal(t, []float64{4050, 6050, 8050}, h.Peaks(0.05))

	_, err = NewHistogram(nil, 0, 100)
	assert.True(t, errors.Is(err, flux.ErrInvalidArgument))
}

func TestCapture_RoundTrip(t *testing.T) {
	t.Parallel()

	r0, err := NewRevolution(1, 0, 0, []uint64{4000, 8000, 14000})
	require.NoError(t, err)
	r0.IndexNs = 200_000_000
	r1, err := NewRevolution(0, 1, 0, []uint64{2000, 6000})
	require.NoError(t, err)

	in := &Capture{Format: "ibm_mfm_dd", Tracks: []*Track{
		{Cylinder: 1, Head: 0, Revolutions: []*Revolution{r0}},
		{Cylinder: 0, Head: 1, Revolutions: []*Revolution{r1}},
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteCapture(&buf, in))
	out, err := LoadCapture(&buf)
	require.NoError(t, err)

	assert.Equal(t, "ibm_mfm_dd", out.Format)
	require.Len(t, out.Tracks, 2)
	assert.Equal(t, flux.TrackKey{Cylinder: 0, Head: 1}, out.Tracks[0].Key(), "tracks are sorted")
	got := out.Find(flux.TrackKey{Cylinder: 1, Head: 0})
	require.NotNil(t, got)
	assert.Equal(t, r0.TransitionsNs, got.Revolutions[0].TransitionsNs)
	assert.Equal(t, uint64(200_000_000), got.Revolutions[0].IndexNs)
	assert.False(t, math.IsNaN(got.Revolutions[0].RPM()))
	assert.Nil(t, out.Find(flux.TrackKey{Cylinder: 9, Head: 9}))
}

func TestLoadCapture_Rejects(t *testing.T) {
	t.Parallel()

	_, err := LoadCapture(bytes.NewBufferString(`{"tracks":[{"cylinder":0,"head":0,"revolutions":[{"deltas_ns":[]}]}]}`))
	assert.True(t, errors.Is(err, flux.ErrInvalidArgument))

	_, err = LoadCapture(bytes.NewBufferString(`not json`))
	assert.Error(t, err)
}
