package l3decode

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/flux.recovery/internal/flux"
)

func TestCRC16_CheckValue(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint16(0x29B1), CRC16([]byte("123456789"), CRCInit))
	assert.Equal(t, uint16(0x29B1), CRC16Table([]byte("123456789"), CRCInit))
	assert.Equal(t, uint16(0xCDB4), CRC16([]byte{0xA1, 0xA1, 0xA1}, CRCInit))
}

func TestCRC16_TableMatchesBitwise(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		buf := make([]byte, rng.Intn(1024))
		rng.Read(buf)
		assert.Equal(t, CRC16(buf, CRCInit), CRC16Table(buf, CRCInit))
	}
}

func TestMFM_RoundTrip(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(1))
	cases := [][]byte{
		{},
		{0x00},
		{0xFF, 0x00, 0xA1, 0x4E},
	}
	for i := 0; i < 20; i++ {
		buf := make([]byte, 1+rng.Intn(600))
		rng.Read(buf)
		cases = append(cases, buf)
	}
	for _, in := range cases {
		for _, prev := range []uint8{0, 1} {
			enc := MFMEncode(in, prev)
			require.Len(t, enc, len(in)*16)
			out, err := MFMDecode(enc)
			require.NoError(t, err)
			if diff := cmp.Diff(in, out); diff != "" {
				t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
			}
			assert.Zero(t, MFMClockViolations(append([]uint8{prev}, enc...), 1, len(in)))
		}
	}
}

func TestMFM_ClockRule(t *testing.T) {
	t.Parallel()

	// 0x00 after a zero data bit: every clock set.
	assert.Equal(t, WordBits(0xAAAA, 16), MFMEncode([]byte{0x00}, 0))
	// 0xA1 encodes to 0x44A9; the sync form 0x4489 drops one clock.
	assert.Equal(t, WordBits(0x44A9, 16), MFMEncode([]byte{0xA1}, 0))
	b, err := MFMDecode(WordBits(uint32(MFMSyncA1), 16))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xA1}, b)

	_, err = MFMDecode(make([]uint8, 15))
	assert.True(t, errors.Is(err, flux.ErrInvalidArgument))
}

func TestFM_Marks(t *testing.T) {
	t.Parallel()

	assert.Equal(t, WordBits(uint32(FMIDAM), 16), FMEncodeMark(MarkIDAM, FMClockMark))
	assert.Equal(t, WordBits(uint32(FMDAM), 16), FMEncodeMark(MarkDAM, FMClockMark))
	assert.Equal(t, WordBits(uint32(FMDeleted), 16), FMEncodeMark(MarkDeletedDAM, FMClockMark))

	in := []byte{0x00, 0x5A, 0xFF}
	out, err := DecodeCells(FMEncode(in), 0, len(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)
	assert.Zero(t, FMClockViolations(FMEncode(in), 0, len(in)))
	assert.Equal(t, 3, FMClockViolations(FMEncodeMark(MarkIDAM, FMClockMark), 0, 1))
}

func TestFindPatternAndRun(t *testing.T) {
	t.Parallel()

	bits := []uint8{0, 1, 0, 1, 1, 0, 1, 1, 1, 1, 0}
	off, ok := FindPattern(bits, []uint8{1, 1, 0}, 0)
	assert.True(t, ok)
	assert.Equal(t, 3, off)
	off, ok = FindPattern(bits, []uint8{1, 1, 0}, 4)
	assert.True(t, ok)
	assert.Equal(t, 8, off)
	_, ok = FindPattern(bits, []uint8{0, 0, 0}, 0)
	assert.False(t, ok)

	end, ok := FindRun(bits, 1, 4, 0)
	assert.True(t, ok)
	assert.Equal(t, 10, end)
	_, ok = FindRun(bits, 1, 5, 0)
	assert.False(t, ok)

	// A run cut off by the end of the stream still counts.
	tail := []uint8{0, 1, 1, 1, 1, 1}
	end, ok = FindRun(tail, 1, 5, 0)
	assert.True(t, ok)
	assert.Equal(t, len(tail), end)
	_, ok = FindRun(tail, 1, 6, 0)
	assert.False(t, ok)
	_, ok = FindRun(nil, 1, 1, 0)
	assert.False(t, ok)
}

func TestGCRC64_Tables(t *testing.T) {
	t.Parallel()

	valid := 0
	for code := uint8(0); code < 32; code++ {
		if n, ok := GCRC64Nibble(code); ok {
			valid++
			assert.Equal(t, code, GCRC64Code(n))
		}
	}
	assert.Equal(t, 16, valid)

	in := []byte{0x08, 0x00, 0x12, 0x01, 0x42, 0x41, 0x0F, 0x0F}
	out, err := GCRDecodeC64(GCREncodeC64(in), 0, len(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)

	bad := GCREncodeC64([]byte{0x88})
	bad[4] = 0 // 01001 -> 01000
	_, err = GCRDecodeC64(bad, 0, 1)
	assert.True(t, errors.Is(err, ErrInvalidCode))
}

func TestApple_44(t *testing.T) {
	t.Parallel()

	for v := 0; v < 256; v++ {
		a, b := Encode44(byte(v))
		assert.Equal(t, byte(v), Decode44(a, b))
		assert.NotZero(t, a&0x80)
		assert.NotZero(t, b&0x80)
	}
}

func TestApple_Tables(t *testing.T) {
	t.Parallel()

	for v := uint8(0); v < 64; v++ {
		got, ok := Apple62Value(Apple62Nibble(v))
		require.True(t, ok)
		assert.Equal(t, v, got)
	}
	for v := uint8(0); v < 32; v++ {
		got, ok := Apple53Value(Apple53Nibble(v))
		require.True(t, ok)
		assert.Equal(t, v, got)
	}
	_, ok := Apple62Value(0xD5)
	assert.False(t, ok, "prologue byte is reserved")
	_, ok = Apple53Value(0x96)
	assert.False(t, ok)
}

func TestApple62_RoundTrip(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(3))
	data := make([]byte, AppleSectorBytes)
	rng.Read(data)

	nibs, err := Encode62(data)
	require.NoError(t, err)
	require.Len(t, nibs, AppleNibbleCount)
	for _, n := range nibs {
		assert.NotZero(t, n&0x80)
	}

	out, read, calc, err := Decode62(nibs)
	require.NoError(t, err)
	assert.Equal(t, read, calc)
	assert.Equal(t, data, out)

	nibs[100] = Apple62Nibble(0x3F ^ mustValue(t, nibs[100]))
	_, read, calc, err = Decode62(nibs)
	require.NoError(t, err)
	assert.NotEqual(t, read, calc)

	nibs[5] = 0xAA
	_, _, _, err = Decode62(nibs)
	assert.True(t, errors.Is(err, ErrInvalidCode))

	_, err = Encode62(data[:10])
	assert.True(t, errors.Is(err, flux.ErrInvalidArgument))
}

func TestApple53_RoundTrip(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(5))
	random := make([]byte, AppleSectorBytes)
	rng.Read(random)
	ramp := make([]byte, AppleSectorBytes)
	for i := range ramp {
		ramp[i] = byte(i)
	}

	for _, data := range [][]byte{random, ramp, make([]byte, AppleSectorBytes)} {
		nibs, err := Encode53(data)
		require.NoError(t, err)
		require.Len(t, nibs, Apple53NibbleCount)
		for _, n := range nibs {
			_, ok := Apple53Value(n)
			require.True(t, ok, "nibble %02X", n)
		}

		out, read, calc, err := Decode53(nibs)
		require.NoError(t, err)
		assert.Equal(t, read, calc)
		if diff := cmp.Diff(data, out); diff != "" {
			t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
		}
	}

	// Every bit of every byte must survive on its own.
	for i := 0; i < AppleSectorBytes; i++ {
		for bit := 0; bit < 8; bit++ {
			data := make([]byte, AppleSectorBytes)
			data[i] = 1 << uint(bit)
			nibs, err := Encode53(data)
			require.NoError(t, err)
			out, _, _, err := Decode53(nibs)
			require.NoError(t, err)
			require.Equal(t, data, out, "byte %d bit %d", i, bit)
		}
	}

	nibs, err := Encode53(random)
	require.NoError(t, err)
	v, ok := Apple53Value(nibs[200])
	require.True(t, ok)
	nibs[200] = Apple53Nibble(v ^ 0x1F)
	_, read, calc, err := Decode53(nibs)
	require.NoError(t, err)
	assert.NotEqual(t, read, calc)

	nibs[7] = 0x96
	_, _, _, err = Decode53(nibs)
	assert.True(t, errors.Is(err, ErrInvalidCode))

	_, _, _, err = Decode53(nibs[:Apple53NibbleCount-1])
	assert.True(t, errors.Is(err, flux.ErrBoundsExceeded))

	_, err = Encode53(random[:200])
	assert.True(t, errors.Is(err, flux.ErrInvalidArgument))
}

func mustValue(t *testing.T, nib byte) uint8 {
	t.Helper()
	v, ok := Apple62Value(nib)
	require.True(t, ok)
	return v
}

func TestNibbles_SelfSync(t *testing.T) {
	t.Parallel()

	bits := append([]uint8{0, 0, 1}, NibbleBits([]byte{0xD5, 0xAA, 0x96}, 8)...)
	nibs, offs := Nibbles(bits, 0)
	// The leading 1 starts a misaligned nibble; sync bytes pull it back.
	i, ok := FindBytes(nibs, AppleAddressPrologue, 0)
	require.True(t, ok)
	assert.Equal(t, 3+80, offs[i])
}

func TestFormats(t *testing.T) {
	t.Parallel()

	f, err := LookupFormat("c64_gcr")
	require.NoError(t, err)
	assert.Equal(t, 21, f.SectorsFor(0))
	assert.Equal(t, "c64_zone1", f.PresetFor(16))
	assert.Equal(t, 19, f.SectorsFor(17))
	assert.Equal(t, 18, f.SectorsFor(24))
	assert.Equal(t, 17, f.SectorsFor(30))
	assert.Equal(t, "c64_zone4", f.PresetFor(34))

	dd, err := LookupFormat("ibm_mfm_dd")
	require.NoError(t, err)
	assert.Equal(t, 512, dd.SectorSize())
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9}, dd.SectorIDs(0))

	a13, err := LookupFormat("apple_gcr_13")
	require.NoError(t, err)
	assert.Equal(t, EncodingGCRApple53, a13.Encoding)
	assert.Equal(t, 13, a13.SectorsFor(0))
	assert.Equal(t, 256, a13.SectorSize())
	assert.Equal(t, "apple_gcr", a13.PresetFor(20))

	_, err = LookupFormat("amiga")
	assert.True(t, errors.Is(err, flux.ErrInvalidArgument))
	assert.Len(t, Formats(), 7)
}
