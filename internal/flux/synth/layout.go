// Package synth generates synthetic flux captures of formatted tracks for
// tests, demos and regression runs. Tracks are laid out the way the real
// formatters write them, then turned into flux timings with configurable
// jitter, speed wobble, spikes and weak (randomised) regions.
package synth

import (
	"math/rand"

	"github.com/banshee-data/flux.recovery/internal/flux"
	"github.com/banshee-data/flux.recovery/internal/flux/l2bits"
	"github.com/banshee-data/flux.recovery/internal/flux/l3decode"
)

// rotationNs is one revolution at 300 rpm.
const rotationNs = 200e6

// Sector is one sector to lay down on a synthetic track.
type Sector struct {
	ID      int
	Data    []byte
	Deleted bool

	// BadCRC writes a data checksum that does not match the payload.
	BadCRC bool

	// WeakOffset and WeakLength select payload bytes that read back
	// differently on every revolution while the stored checksum still
	// covers the original payload.
	WeakOffset int
	WeakLength int
}

// Pattern fills a payload with a byte sequence unique to the sector.
func Pattern(cyl, head, sector, size int) []byte {
	out := make([]byte, size)
	for i := range out {
		out[i] = byte(i*7 + cyl*13 + head*29 + sector*31)
	}
	return out
}

// StandardSectors returns the format's full sector set with Pattern payloads.
func StandardSectors(f l3decode.Format, cyl, head int) []Sector {
	ids := f.SectorIDs(cyl)
	out := make([]Sector, len(ids))
	for i, id := range ids {
		out[i] = Sector{ID: id, Data: Pattern(cyl, head, id, f.SectorSize())}
	}
	return out
}

// TrackBits lays out a track and returns its cells. rng randomises weak
// regions; nil writes them as stored.
func TrackBits(f l3decode.Format, cyl, head int, sectors []Sector, rng *rand.Rand) ([]uint8, error) {
	var bits []uint8
	switch f.Encoding {
	case l3decode.EncodingMFM:
		bits = mfmTrack(cyl, head, f.SizeCode, sectors, rng)
	case l3decode.EncodingFM:
		bits = fmTrack(cyl, head, f.SizeCode, sectors, rng)
	case l3decode.EncodingGCRC64:
		bits = c64Track(cyl, sectors, rng)
	case l3decode.EncodingGCRApple, l3decode.EncodingGCRApple53:
		var err error
		if bits, err = appleTrack(f.Encoding, cyl, sectors, rng); err != nil {
			return nil, err
		}
	default:
		return nil, flux.InvalidArgf("cannot synthesise encoding %q", f.Encoding)
	}

	p, err := l2bits.LookupPreset(f.PresetFor(cyl))
	if err != nil {
		return nil, err
	}
	target := int(rotationNs / p.NominalCellNs)
	return padTrack(f.Encoding, bits, target), nil
}

func payload(s Sector, rng *rand.Rand) []byte {
	data := append([]byte(nil), s.Data...)
	if rng == nil || s.WeakLength <= 0 {
		return data
	}
	end := s.WeakOffset + s.WeakLength
	if end > len(data) {
		end = len(data)
	}
	for i := s.WeakOffset; i < end; i++ {
		data[i] = byte(rng.Intn(256))
	}
	return data
}

func repeat(b byte, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}

// mfmWriter tracks the previous data bit across encoded chunks.
type mfmWriter struct {
	bits []uint8
}

func (w *mfmWriter) prev() uint8 {
	if len(w.bits) == 0 {
		return 0
	}
	return w.bits[len(w.bits)-1]
}

func (w *mfmWriter) bytes(data []byte) {
	w.bits = append(w.bits, l3decode.MFMEncode(data, w.prev())...)
}

func (w *mfmWriter) sync(word uint16, n int) {
	for i := 0; i < n; i++ {
		w.bits = append(w.bits, l3decode.WordBits(uint32(word), 16)...)
	}
}

func crcBytes(c uint16) []byte { return []byte{byte(c >> 8), byte(c)} }

// mfmTrack writes the IBM System/34 layout.
func mfmTrack(cyl, head, sizeCode int, sectors []Sector, rng *rand.Rand) []uint8 {
	w := &mfmWriter{}
	w.bytes(repeat(0x4E, 80))
	w.bytes(repeat(0x00, 12))
	w.sync(l3decode.MFMSyncC2, 3)
	w.bytes([]byte{0xFC})
	w.bytes(repeat(0x4E, 50))

	for _, s := range sectors {
		id := []byte{byte(cyl), byte(head), byte(s.ID), byte(sizeCode)}
		w.bytes(repeat(0x00, 12))
		w.sync(l3decode.MFMSyncA1, 3)
		hdr := append([]byte{l3decode.MarkIDAM}, id...)
		w.bytes(hdr)
		w.bytes(crcBytes(l3decode.CRC16(append([]byte{0xA1, 0xA1, 0xA1}, hdr...), l3decode.CRCInit)))
		w.bytes(repeat(0x4E, 22))

		dam := l3decode.MarkDAM
		if s.Deleted {
			dam = l3decode.MarkDeletedDAM
		}
		crc := l3decode.CRC16(append([]byte{0xA1, 0xA1, 0xA1, dam}, s.Data...), l3decode.CRCInit)
		if s.BadCRC {
			crc ^= 0xFFFF
		}
		w.bytes(repeat(0x00, 12))
		w.sync(l3decode.MFMSyncA1, 3)
		w.bytes([]byte{dam})
		w.bytes(payload(s, rng))
		w.bytes(crcBytes(crc))
		w.bytes(repeat(0x4E, 84))
	}
	return w.bits
}

// fmTrack writes the single-density IBM 3740 layout.
func fmTrack(cyl, head, sizeCode int, sectors []Sector, rng *rand.Rand) []uint8 {
	var bits []uint8
	put := func(data []byte) { bits = append(bits, l3decode.FMEncode(data)...) }

	put(repeat(0xFF, 40))
	for _, s := range sectors {
		id := []byte{byte(cyl), byte(head), byte(s.ID), byte(sizeCode)}
		put(repeat(0x00, 6))
		bits = append(bits, l3decode.FMEncodeMark(l3decode.MarkIDAM, l3decode.FMClockMark)...)
		put(id)
		put(crcBytes(l3decode.CRC16(append([]byte{l3decode.MarkIDAM}, id...), l3decode.CRCInit)))
		put(repeat(0xFF, 11))

		dam := l3decode.MarkDAM
		if s.Deleted {
			dam = l3decode.MarkDeletedDAM
		}
		crc := l3decode.CRC16(append([]byte{dam}, s.Data...), l3decode.CRCInit)
		if s.BadCRC {
			crc ^= 0xFFFF
		}
		put(repeat(0x00, 6))
		bits = append(bits, l3decode.FMEncodeMark(dam, l3decode.FMClockMark)...)
		put(payload(s, rng))
		put(crcBytes(crc))
		put(repeat(0xFF, 14))
	}
	return bits
}

// rawBytes writes bytes to cells without any encoding, as C64 gaps are.
func rawBytes(b byte, n int) []uint8 {
	var out []uint8
	for i := 0; i < n; i++ {
		out = append(out, l3decode.WordBits(uint32(b), 8)...)
	}
	return out
}

// c64Track writes the 1541 layout: sync, header block, gap, sync, data block.
func c64Track(cyl int, sectors []Sector, rng *rand.Rand) []uint8 {
	const id1, id2 = 0x41, 0x42
	track := byte(cyl + 1)
	var bits []uint8
	for _, s := range sectors {
		sec := byte(s.ID)
		hdr := []byte{l3decode.C64HeaderID, sec ^ track ^ id2 ^ id1, sec, track, id2, id1, 0x0F, 0x0F}
		bits = append(bits, rawBytes(0xFF, 5)...)
		bits = append(bits, l3decode.GCREncodeC64(hdr)...)
		bits = append(bits, rawBytes(0x55, 9)...)

		sum := l3decode.XORChecksum(s.Data)
		if s.BadCRC {
			sum ^= 0xFF
		}
		block := append([]byte{l3decode.C64DataID}, payload(s, rng)...)
		block = append(block, sum, 0x00, 0x00)
		bits = append(bits, rawBytes(0xFF, 5)...)
		bits = append(bits, l3decode.GCREncodeC64(block)...)
		bits = append(bits, rawBytes(0x55, 8)...)
	}
	return bits
}

// appleTrack writes DOS 3.3 (6-and-2) or DOS 3.2 (5-and-3) fields
// separated by self-sync bytes.
func appleTrack(enc l3decode.Encoding, cyl int, sectors []Sector, rng *rand.Rand) ([]uint8, error) {
	const volume = 254
	prologue, encode := l3decode.AppleAddressPrologue, l3decode.Encode62
	value, nibble := l3decode.Apple62Value, l3decode.Apple62Nibble
	if enc == l3decode.EncodingGCRApple53 {
		prologue, encode = l3decode.AppleAddressPrologue13, l3decode.Encode53
		value, nibble = l3decode.Apple53Value, l3decode.Apple53Nibble
	}

	trk := byte(cyl)
	var bits []uint8
	bits = append(bits, l3decode.NibbleBits(nil, 40)...)
	for _, s := range sectors {
		sec := byte(s.ID)
		addr := append([]byte{}, prologue...)
		for _, v := range []byte{volume, trk, sec, volume ^ trk ^ sec} {
			a, b := l3decode.Encode44(v)
			addr = append(addr, a, b)
		}
		addr = append(addr, l3decode.AppleEpilogue...)
		bits = append(bits, l3decode.NibbleBits(addr, 0)...)
		bits = append(bits, l3decode.NibbleBits(nil, 6)...)

		field, err := encode(payload(s, rng))
		if err != nil {
			return nil, err
		}
		if s.BadCRC {
			last := len(field) - 1
			v, _ := value(field[last])
			field[last] = nibble(v ^ 0x01)
		}
		data := append([]byte{}, l3decode.AppleDataPrologue...)
		data = append(data, field...)
		data = append(data, l3decode.AppleEpilogue...)
		bits = append(bits, l3decode.NibbleBits(data, 0)...)
		bits = append(bits, l3decode.NibbleBits(nil, 10)...)
	}
	return bits, nil
}

// padTrack fills the track to target cells with the encoding's gap byte.
func padTrack(enc l3decode.Encoding, bits []uint8, target int) []uint8 {
	for len(bits) < target {
		var fill []uint8
		switch enc {
		case l3decode.EncodingMFM:
			fill = l3decode.MFMEncode([]byte{0x4E}, bits[len(bits)-1])
		case l3decode.EncodingFM:
			fill = l3decode.FMEncode([]byte{0xFF})
		case l3decode.EncodingGCRC64:
			fill = rawBytes(0x55, 1)
		default:
			fill = l3decode.NibbleBits(nil, 1)
		}
		bits = append(bits, fill...)
	}
	return bits
}
