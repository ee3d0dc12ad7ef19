package l5fusion

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/flux.recovery/internal/flux"
	"github.com/banshee-data/flux.recovery/internal/flux/l2bits"
)

func randomBits(rng *rand.Rand, n int) []uint8 {
	out := make([]uint8, n)
	for i := range out {
		out[i] = uint8(rng.Intn(2))
	}
	return out
}

func streamOf(bits []uint8) *l2bits.BitCellStream {
	s := l2bits.NewBitCellStream(len(bits))
	for _, b := range bits {
		s.Append(b, 1, 2000)
	}
	return s
}

// passAt builds a pass whose first off bits are noise followed by body.
func passAt(rng *rand.Rand, body []uint8, off, length int) RevolutionDecode {
	bits := append(randomBits(rng, off), body[:length-off]...)
	return RevolutionDecode{Stream: streamOf(bits), SyncOffset: off, HasSync: true, RPM: 300}
}

func newVoter(t *testing.T, cfg Config) *Voter {
	t.Helper()
	v, err := NewVoter(cfg)
	require.NoError(t, err)
	return v
}

func TestFuse_ThreeRevolutions(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(1))
	body := randomBits(rng, 6000)
	passes := func() []RevolutionDecode {
		return []RevolutionDecode{
			passAt(rng, body, 10, 5000),
			passAt(rng, body, 12, 4998),
			passAt(rng, body, 11, 5001),
		}
	}

	t.Run("agreement", func(t *testing.T) {
		res, err := newVoter(t, DefaultConfig()).Fuse(passes())
		require.NoError(t, err)
		assert.Equal(t, 4986, res.VotedLength)
		assert.Equal(t, 4986, res.Considered)
		assert.Equal(t, 4986, res.Unanimous)
		assert.Equal(t, 1.0, res.Quality)
		assert.Equal(t, 100.0, res.QualityPercent())
		assert.Equal(t, body[:4986], res.Bits)
		assert.Empty(t, res.WeakPositions)
		assert.Equal(t, 0, res.ReferencePass)
		assert.Equal(t, 3, res.Passes)
	})

	t.Run("one disagreement", func(t *testing.T) {
		ps := passes()
		ps[1].Stream.Bits[12+100] ^= 1
		res, err := newVoter(t, DefaultConfig()).Fuse(ps)
		require.NoError(t, err)
		assert.Equal(t, 4986, res.VotedLength)
		assert.Greater(t, res.Quality, 0.0)
		assert.Less(t, res.Quality, 1.0)
		assert.InDelta(t, 4985.0/4986.0, res.Quality, 1e-12)
		assert.Equal(t, body[100], res.Bits[100], "majority wins")
		assert.Equal(t, []int{100}, res.WeakPositions)
		assert.InDelta(t, 2.0/3.0, res.Confidence[100], 1e-12)
	})

	t.Run("dropped transitions", func(t *testing.T) {
		ps := passes()
		ps[2].Stream.Stats.SpikeRejections = 150
		ps[2].Stream.Stats.Gaps = 50
		res, err := newVoter(t, DefaultConfig()).Fuse(ps)
		require.NoError(t, err)
		assert.Equal(t, 200, res.Dropped)
		assert.InDelta(t, 0.75, res.Quality, 1e-12)
	})
}

func TestFuse_TieGoesToReference(t *testing.T) {
	t.Parallel()

	a := []uint8{1, 0, 1, 1, 0, 0, 1, 0}
	b := []uint8{1, 0, 1, 1, 0, 1, 1, 0}

	res, err := newVoter(t, DefaultConfig()).Fuse([]RevolutionDecode{
		{Stream: streamOf(a), HasSync: true},
		{Stream: streamOf(b), HasSync: true},
	})
	require.NoError(t, err)
	assert.Equal(t, uint8(0), res.Bits[5])
	assert.Equal(t, []int{5}, res.WeakPositions)

	// The first pass has no sync, so the second one is the reference.
	res, err = newVoter(t, DefaultConfig()).Fuse([]RevolutionDecode{
		{Stream: streamOf(a)},
		{Stream: streamOf(b), HasSync: true},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.ReferencePass)
	assert.Equal(t, uint8(1), res.Bits[5])
}

func TestFuse_NoSyncUsesFirstPassWithBits(t *testing.T) {
	t.Parallel()

	bits := []uint8{1, 0, 0, 1}
	res, err := newVoter(t, DefaultConfig()).Fuse([]RevolutionDecode{
		{Stream: l2bits.NewBitCellStream(0)},
		{Stream: streamOf(bits), SyncOffset: 2},
		{Stream: streamOf(bits)},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.ReferencePass)
	assert.Equal(t, 2, res.Passes)
	// Without a sync every pass is read from offset 0.
	assert.Equal(t, bits, res.Bits)
}

func TestFuse_InsufficientPasses(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.MinPasses = 2
	res, err := newVoter(t, cfg).Fuse([]RevolutionDecode{
		{Stream: streamOf([]uint8{1, 0, 1})},
		{Stream: nil},
	})
	assert.True(t, errors.Is(err, flux.ErrInsufficientPasses))
	require.NotNil(t, res)
	assert.Zero(t, res.VotedLength)
	assert.Zero(t, res.Quality)
	assert.Empty(t, res.Bits)

	_, err = newVoter(t, cfg).Fuse(nil)
	assert.True(t, errors.Is(err, flux.ErrInvalidArgument))
}

func TestFuse_Limits(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(2))
	body := randomBits(rng, 1000)
	cfg := DefaultConfig()
	cfg.MaxVotedBits = 64
	cfg.MaxPasses = 2

	ps := []RevolutionDecode{
		{Stream: streamOf(body)},
		{Stream: streamOf(body)},
		{Stream: streamOf(randomBits(rng, 1000))},
	}
	res, err := newVoter(t, cfg).Fuse(ps)
	require.NoError(t, err)
	assert.Equal(t, 64, res.VotedLength)
	assert.Equal(t, 2, res.Passes)
	assert.Equal(t, 1.0, res.Quality)
}

func TestFuse_SinglePassHasNoWeakPositions(t *testing.T) {
	t.Parallel()

	res, err := newVoter(t, DefaultConfig()).Fuse([]RevolutionDecode{{Stream: streamOf([]uint8{1, 0, 1})}})
	require.NoError(t, err)
	assert.Empty(t, res.WeakPositions)
	assert.Equal(t, 1.0, res.Quality)
}

func TestFuse_RPMAndStream(t *testing.T) {
	t.Parallel()

	bits := []uint8{0, 1, 0, 1}
	ps := []RevolutionDecode{
		{Stream: streamOf(bits), RPM: 300},
		{Stream: streamOf(bits), RPM: 301},
		{Stream: streamOf(bits), RPM: 299},
	}
	res, err := newVoter(t, DefaultConfig()).Fuse(ps)
	require.NoError(t, err)
	assert.InDelta(t, 300, res.RPM.Mean, 1e-9)
	assert.InDelta(t, 1, res.RPM.StdDev, 1e-9)
	assert.Equal(t, 299.0, res.RPM.Min)
	assert.Equal(t, 301.0, res.RPM.Max)
	assert.Equal(t, 3, res.RPM.N)

	s := res.Stream()
	assert.Equal(t, bits, s.Bits)
	assert.Equal(t, []float64{2000, 2000, 2000, 2000}, s.CellNs)
	assert.Equal(t, Digest(bits), res.Digest())
	assert.NotEqual(t, Digest([]byte{1, 1, 0, 1}), res.Digest())
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, DefaultConfig().Validate())
	for name, mut := range map[string]func(*Config){
		"min passes":    func(c *Config) { c.MinPasses = 0 },
		"max below min": func(c *Config) { c.MaxPasses = 0 },
		"voted bits":    func(c *Config) { c.MaxVotedBits = 0 },
		"variance":      func(c *Config) { c.WeakVariance = 0.3 },
		"weak revs":     func(c *Config) { c.WeakRevolutions = 1 },
	} {
		c := DefaultConfig()
		mut(&c)
		err := c.Validate()
		assert.True(t, errors.Is(err, flux.ErrInvalidArgument), name)
	}
}
