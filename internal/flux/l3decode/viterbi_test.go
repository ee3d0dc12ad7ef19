package l3decode

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/flux.recovery/internal/flux"
)

func ones(n int) []float64 {
	c := make([]float64, n)
	for i := range c {
		c[i] = 1
	}
	return c
}

func newC64Viterbi(t *testing.T, cfg ViterbiConfig) *Viterbi {
	t.Helper()
	v, err := NewViterbi(cfg, C64Codebook)
	require.NoError(t, err)
	return v
}

func TestViterbi_CleanInput(t *testing.T) {
	t.Parallel()

	in := []byte{0x07, 0x12, 0xA5, 0xFF, 0x00}
	bits := GCREncodeC64(in)
	v := newC64Viterbi(t, DefaultViterbiConfig())

	syms, fixed, err := v.Decode(bits, ones(len(bits)), 0, 2*len(in))
	require.NoError(t, err)
	assert.Equal(t, in, nibblesToBytes(syms))
	assert.Zero(t, fixed)
}

func TestViterbi_RepairsLowConfidenceFlip(t *testing.T) {
	t.Parallel()

	in := []byte{0x88, 0x3C}
	bits := GCREncodeC64(in)
	conf := ones(len(bits))
	bits[4] = 0 // 01001 -> 01000, outside the table
	conf[4] = 0.1

	v := newC64Viterbi(t, DefaultViterbiConfig())
	syms, fixed, err := v.Decode(bits, conf, 0, 4)
	require.NoError(t, err)
	assert.Equal(t, in, nibblesToBytes(syms))
	assert.Equal(t, 1, fixed)

	_, err = GCRDecodeC64(bits, 0, 2)
	assert.True(t, errors.Is(err, ErrInvalidCode), "strict decoding must still fail")
}

func TestViterbi_PrefersObservedValidCode(t *testing.T) {
	t.Parallel()

	// A confident valid code is never replaced.
	bits := GCREncodeC64([]byte{0x01})
	v := newC64Viterbi(t, DefaultViterbiConfig())
	syms, fixed, err := v.Decode(bits, ones(len(bits)), 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint8{0, 1}, syms)
	assert.Zero(t, fixed)
}

func TestViterbi_WindowedDecodeMatchesLongInput(t *testing.T) {
	t.Parallel()

	in := make([]byte, 100)
	for i := range in {
		in[i] = byte(i * 37)
	}
	bits := GCREncodeC64(in)
	cfg := DefaultViterbiConfig()
	cfg.Depth = 7
	v := newC64Viterbi(t, cfg)

	syms, fixed, err := v.Decode(bits, ones(len(bits)), 0, 2*len(in))
	require.NoError(t, err)
	assert.Equal(t, in, nibblesToBytes(syms))
	assert.Zero(t, fixed)
}

func TestViterbi_Bounds(t *testing.T) {
	t.Parallel()

	v := newC64Viterbi(t, DefaultViterbiConfig())
	_, _, err := v.Decode(make([]uint8, 9), ones(9), 0, 2)
	assert.True(t, errors.Is(err, flux.ErrBoundsExceeded))

	_, err = NewViterbi(ViterbiConfig{Enable: true, Depth: 0, Candidates: 1, MaxZeroRun: 2}, C64Codebook)
	assert.True(t, errors.Is(err, flux.ErrInvalidArgument))
}
