package l3decode

import (
	"errors"
	"fmt"

	"github.com/banshee-data/flux.recovery/internal/flux"
)

// ErrInvalidCode reports a GCR group that is not in the code table.
var ErrInvalidCode = errors.New("invalid GCR code")

// invalidCode marks unused entries in decode tables.
const invalidCode = 0xFF

// gcrC64Encode maps a nibble to its 5-bit Commodore GCR code. No code has
// more than two consecutive zeros, including across code boundaries.
var gcrC64Encode = [16]uint8{
	0x0A, 0x0B, 0x12, 0x13, 0x0E, 0x0F, 0x16, 0x17,
	0x09, 0x19, 0x1A, 0x1B, 0x0D, 0x1D, 0x1E, 0x15,
}

var gcrC64Decode = func() [32]uint8 {
	var t [32]uint8
	for i := range t {
		t[i] = invalidCode
	}
	for n, c := range gcrC64Encode {
		t[c] = uint8(n)
	}
	return t
}()

// C64Codebook is the 4-to-5 Commodore code used by the Viterbi decoder.
var C64Codebook = Codebook{Width: 5, Decode: gcrC64Decode[:]}

// GCRC64Code returns the 5-bit code of nibble n.
func GCRC64Code(n uint8) uint8 { return gcrC64Encode[n&0x0F] }

// GCRC64Nibble returns the nibble for a 5-bit code and false for codes
// outside the table.
func GCRC64Nibble(code uint8) (uint8, bool) {
	v := gcrC64Decode[code&0x1F]
	return v, v != invalidCode
}

// GCREncodeC64 encodes bytes as 10 cells each, high nibble first.
func GCREncodeC64(data []byte) []uint8 {
	out := make([]uint8, 0, len(data)*10)
	for _, b := range data {
		out = append(out, WordBits(uint32(gcrC64Encode[b>>4]), 5)...)
		out = append(out, WordBits(uint32(gcrC64Encode[b&0x0F]), 5)...)
	}
	return out
}

// GCRDecodeC64 is the strict table decoder: the first code outside the
// table fails the whole field with ErrInvalidCode.
func GCRDecodeC64(bits []uint8, start, n int) ([]byte, error) {
	if start < 0 || start+n*10 > len(bits) {
		return nil, fmt.Errorf("need %d cells at %d, stream has %d: %w", n*10, start, len(bits), flux.ErrBoundsExceeded)
	}
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		base := start + i*10
		hi, ok := GCRC64Nibble(uint8(BitsWord(bits[base : base+5])))
		if !ok {
			return nil, fmt.Errorf("code %05b at cell %d: %w", BitsWord(bits[base:base+5]), base, ErrInvalidCode)
		}
		lo, ok := GCRC64Nibble(uint8(BitsWord(bits[base+5 : base+10])))
		if !ok {
			return nil, fmt.Errorf("code %05b at cell %d: %w", BitsWord(bits[base+5:base+10]), base+5, ErrInvalidCode)
		}
		out[i] = hi<<4 | lo
	}
	return out, nil
}

// nibblesToBytes packs pairs of nibbles, high first.
func nibblesToBytes(nibbles []uint8) []byte {
	out := make([]byte, len(nibbles)/2)
	for i := range out {
		out[i] = nibbles[2*i]<<4 | nibbles[2*i+1]&0x0F
	}
	return out
}
