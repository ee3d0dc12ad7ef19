package l3decode

import (
	"fmt"

	"github.com/banshee-data/flux.recovery/internal/flux"
)

// Apple field prologues and epilogue. 13-sector disks open their address
// fields with D5 AA B5 and share the data prologue.
var (
	AppleAddressPrologue   = []byte{0xD5, 0xAA, 0x96}
	AppleAddressPrologue13 = []byte{0xD5, 0xAA, 0xB5}
	AppleDataPrologue      = []byte{0xD5, 0xAA, 0xAD}
	AppleEpilogue          = []byte{0xDE, 0xAA, 0xEB}
)

// AppleSectorBytes is the payload of one 6-and-2 sector.
const AppleSectorBytes = 256

// appleAuxCount is the number of 6-bit values that carry the low two bits
// of every payload byte.
const appleAuxCount = 86

// AppleNibbleCount is the number of disk nibbles in a 6-and-2 data field,
// checksum included.
const AppleNibbleCount = appleAuxCount + AppleSectorBytes + 1

// 5-and-3 splits the sector into five groups of 51 bytes plus one final
// byte. Three secondary values per group index carry the low three bits.
const (
	apple53Group          = 51
	apple53SecondaryCount = 3*apple53Group + 1
)

// Apple53NibbleCount is the number of disk nibbles in a 5-and-3 data field,
// checksum included.
const Apple53NibbleCount = apple53SecondaryCount + AppleSectorBytes + 1

// apple62Encode is the 6-and-2 write translate table.
var apple62Encode = [64]uint8{
	0x96, 0x97, 0x9A, 0x9B, 0x9D, 0x9E, 0x9F, 0xA6,
	0xA7, 0xAB, 0xAC, 0xAD, 0xAE, 0xAF, 0xB2, 0xB3,
	0xB4, 0xB5, 0xB6, 0xB7, 0xB9, 0xBA, 0xBB, 0xBC,
	0xBD, 0xBE, 0xBF, 0xCB, 0xCD, 0xCE, 0xCF, 0xD3,
	0xD6, 0xD7, 0xD9, 0xDA, 0xDB, 0xDC, 0xDD, 0xDE,
	0xDF, 0xE5, 0xE6, 0xE7, 0xE9, 0xEA, 0xEB, 0xEC,
	0xED, 0xEE, 0xEF, 0xF2, 0xF3, 0xF4, 0xF5, 0xF6,
	0xF7, 0xF9, 0xFA, 0xFB, 0xFC, 0xFD, 0xFE, 0xFF,
}

// apple53Encode is the 13-sector 5-and-3 write translate table.
var apple53Encode = [32]uint8{
	0xAB, 0xAD, 0xAE, 0xAF, 0xB5, 0xB6, 0xB7, 0xBA,
	0xBB, 0xBD, 0xBE, 0xBF, 0xD6, 0xD7, 0xDA, 0xDB,
	0xDD, 0xDE, 0xDF, 0xEA, 0xEB, 0xED, 0xEE, 0xEF,
	0xF5, 0xF6, 0xF7, 0xFA, 0xFB, 0xFD, 0xFE, 0xFF,
}

func invert(table []uint8) [256]uint8 {
	var t [256]uint8
	for i := range t {
		t[i] = invalidCode
	}
	for v, nib := range table {
		t[nib] = uint8(v)
	}
	return t
}

var (
	apple62Decode = invert(apple62Encode[:])
	apple53Decode = invert(apple53Encode[:])
)

// Apple62Nibble maps a 6-bit value to its disk nibble.
func Apple62Nibble(v uint8) uint8 { return apple62Encode[v&0x3F] }

// Apple62Value maps a disk nibble back to its 6-bit value.
func Apple62Value(nib uint8) (uint8, bool) {
	v := apple62Decode[nib]
	return v, v != invalidCode
}

// Apple53Nibble maps a 5-bit value to its disk nibble.
func Apple53Nibble(v uint8) uint8 { return apple53Encode[v&0x1F] }

// Apple53Value maps a disk nibble back to its 5-bit value.
func Apple53Value(nib uint8) (uint8, bool) {
	v := apple53Decode[nib]
	return v, v != invalidCode
}

// Encode44 splits b into the odd-bits and even-bits nibbles of the address
// field's 4-and-4 code.
func Encode44(b byte) (byte, byte) {
	return (b >> 1) | 0xAA, b | 0xAA
}

// Decode44 joins a 4-and-4 nibble pair.
func Decode44(a, b byte) byte {
	return ((a << 1) | 1) & b
}

func swap2(v uint8) uint8 {
	return (v&1)<<1 | (v&2)>>1
}

// xorChain translates vals, each XORed with its predecessor, and appends
// the last value as the checksum nibble.
func xorChain(table []uint8, vals []uint8) []byte {
	out := make([]byte, 0, len(vals)+1)
	var prev uint8
	for _, v := range vals {
		out = append(out, table[v^prev])
		prev = v
	}
	return append(out, table[prev])
}

// unchain reverses xorChain for n values. It returns the values, the
// checksum read from disk and the value the chain produced.
func unchain(nibbles []byte, n int, value func(uint8) (uint8, bool)) ([]uint8, uint8, uint8, error) {
	if len(nibbles) < n+1 {
		return nil, 0, 0, fmt.Errorf("need %d nibbles, have %d: %w", n+1, len(nibbles), flux.ErrBoundsExceeded)
	}
	vals := make([]uint8, n)
	var prev uint8
	for i := range vals {
		v, ok := value(nibbles[i])
		if !ok {
			return nil, 0, 0, fmt.Errorf("nibble %02X at %d: %w", nibbles[i], i, ErrInvalidCode)
		}
		prev ^= v
		vals[i] = prev
	}
	read, ok := value(nibbles[n])
	if !ok {
		return nil, 0, 0, fmt.Errorf("checksum nibble %02X: %w", nibbles[n], ErrInvalidCode)
	}
	return vals, read, prev, nil
}

// Encode62 converts a 256-byte sector into 343 disk nibbles: 86 auxiliary
// values holding the swapped low bit pairs, 256 high six-bit values, then a
// checksum. Consecutive values are XOR-chained.
func Encode62(data []byte) ([]byte, error) {
	if len(data) != AppleSectorBytes {
		return nil, flux.InvalidArgf("6-and-2 sector must be %d bytes, got %d", AppleSectorBytes, len(data))
	}
	vals := make([]uint8, 0, appleAuxCount+AppleSectorBytes)
	for i := 0; i < appleAuxCount; i++ {
		v := swap2(data[i] & 3)
		v |= swap2(data[i+appleAuxCount]&3) << 2
		if i+2*appleAuxCount < AppleSectorBytes {
			v |= swap2(data[i+2*appleAuxCount]&3) << 4
		}
		vals = append(vals, v)
	}
	for _, b := range data {
		vals = append(vals, b>>2)
	}
	return xorChain(apple62Encode[:], vals), nil
}

// Decode62 reverses Encode62. It returns the sector together with the
// checksum value read from disk and the value the XOR chain produced; they
// are equal for an intact field. An untranslatable nibble is ErrInvalidCode.
func Decode62(nibbles []byte) ([]byte, uint8, uint8, error) {
	vals, read, calc, err := unchain(nibbles, AppleNibbleCount-1, Apple62Value)
	if err != nil {
		return nil, 0, 0, err
	}
	out := make([]byte, AppleSectorBytes)
	for j := range out {
		aux := vals[j%appleAuxCount] >> (2 * uint(j/appleAuxCount))
		out[j] = vals[appleAuxCount+j]<<2 | swap2(aux&3)
	}
	return out, read, calc, nil
}

// Encode53 converts a 256-byte sector into 411 disk nibbles for 13-sector
// disks: 154 secondary values, 256 primary values holding the top five
// bits of each byte, then a checksum.
//
// For bytes a..e at index i of the five 51-byte groups, secondary i is
// a's low three bits followed by bit 2 of d and bit 2 of e. Secondaries
// 51+i and 102+i do the same for b and c with bits 1 and 0 of d and e.
// The last byte's low bits fill secondary 153.
func Encode53(data []byte) ([]byte, error) {
	if len(data) != AppleSectorBytes {
		return nil, flux.InvalidArgf("5-and-3 sector must be %d bytes, got %d", AppleSectorBytes, len(data))
	}
	secondary := make([]uint8, apple53SecondaryCount, Apple53NibbleCount-1)
	primary := make([]uint8, AppleSectorBytes)
	for i, b := range data {
		primary[i] = b >> 3
	}
	for i := 0; i < apple53Group; i++ {
		a, b, c := data[i], data[apple53Group+i], data[2*apple53Group+i]
		d, e := data[3*apple53Group+i], data[4*apple53Group+i]
		secondary[i] = (a&7)<<2 | (d>>2&1)<<1 | e>>2&1
		secondary[apple53Group+i] = (b&7)<<2 | (d>>1&1)<<1 | e>>1&1
		secondary[2*apple53Group+i] = (c&7)<<2 | (d&1)<<1 | e&1
	}
	secondary[apple53SecondaryCount-1] = data[AppleSectorBytes-1] & 7
	return xorChain(apple53Encode[:], append(secondary, primary...)), nil
}

// Decode53 reverses Encode53 with the same results as Decode62.
func Decode53(nibbles []byte) ([]byte, uint8, uint8, error) {
	vals, read, calc, err := unchain(nibbles, Apple53NibbleCount-1, Apple53Value)
	if err != nil {
		return nil, 0, 0, err
	}
	secondary, primary := vals[:apple53SecondaryCount], vals[apple53SecondaryCount:]
	out := make([]byte, AppleSectorBytes)
	for i := 0; i < apple53Group; i++ {
		s0, s1, s2 := secondary[i], secondary[apple53Group+i], secondary[2*apple53Group+i]
		out[i] = primary[i]<<3 | s0>>2
		out[apple53Group+i] = primary[apple53Group+i]<<3 | s1>>2
		out[2*apple53Group+i] = primary[2*apple53Group+i]<<3 | s2>>2
		out[3*apple53Group+i] = primary[3*apple53Group+i]<<3 | (s0>>1&1)<<2 | (s1>>1&1)<<1 | s2>>1&1
		out[4*apple53Group+i] = primary[4*apple53Group+i]<<3 | (s0&1)<<2 | (s1&1)<<1 | s2&1
	}
	last := AppleSectorBytes - 1
	out[last] = primary[last]<<3 | secondary[apple53SecondaryCount-1]&7
	return out, read, calc, nil
}

// Nibbles reads a self-synchronising nibble stream the way the Disk II
// controller does: zeros are skipped until a one arrives, which starts an
// 8-cell nibble. offsets[i] is the cell where nibble i starts.
func Nibbles(bits []uint8, start int) (nibbles []byte, offsets []int) {
	i := start
	for i < len(bits) {
		if bits[i] == 0 {
			i++
			continue
		}
		if i+8 > len(bits) {
			break
		}
		nibbles = append(nibbles, byte(BitsWord(bits[i:i+8])))
		offsets = append(offsets, i)
		i += 8
	}
	return nibbles, offsets
}

// NibbleBits expands disk nibbles to cells. sync bytes become 10-cell
// self-sync patterns (0xFF followed by two zeros).
func NibbleBits(nibbles []byte, syncBytes int) []uint8 {
	out := make([]uint8, 0, len(nibbles)*8+syncBytes*10)
	for i := 0; i < syncBytes; i++ {
		out = append(out, 1, 1, 1, 1, 1, 1, 1, 1, 0, 0)
	}
	for _, n := range nibbles {
		out = append(out, WordBits(uint32(n), 8)...)
	}
	return out
}

// FindBytes returns the index of the first occurrence of pat in buf at or
// after start.
func FindBytes(buf, pat []byte, start int) (int, bool) {
	for i := start; i >= 0 && i+len(pat) <= len(buf); i++ {
		match := true
		for j := range pat {
			if buf[i+j] != pat[j] {
				match = false
				break
			}
		}
		if match {
			return i, true
		}
	}
	return 0, false
}
