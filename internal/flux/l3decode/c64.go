package l3decode

import (
	"errors"

	"github.com/banshee-data/flux.recovery/internal/flux"
	"github.com/banshee-data/flux.recovery/internal/flux/l2bits"
)

// Commodore 1541 block layout.
const (
	C64HeaderID    byte = 0x08
	C64DataID      byte = 0x07
	C64SyncMinRun       = 10
	c64HeaderBytes      = 8   // ID, checksum, sector, track, id2, id1, 0x0F, 0x0F
	c64DataBytes        = 260 // ID, 256 payload, checksum, 0x00, 0x00
	c64DataWindow       = 1000
)

// c64Decoder decodes 1541 tracks. When Viterbi is enabled every GCR field
// goes through the soft-decision decoder, otherwise through the strict
// table decoder.
type c64Decoder struct {
	format  Format
	viterbi *Viterbi
}

func newC64Decoder(cfg Config) (*c64Decoder, error) {
	d := &c64Decoder{format: cfg.Format}
	if cfg.Viterbi.Enable {
		v, err := NewViterbi(cfg.Viterbi, C64Codebook)
		if err != nil {
			return nil, err
		}
		d.viterbi = v
	}
	return d, nil
}

// gcrField decodes n bytes at start and reports Viterbi corrections plus
// the count of observed groups outside the code table.
func (d *c64Decoder) gcrField(stream *l2bits.BitCellStream, start, n int) ([]byte, int, int, error) {
	bits := stream.Bits
	if start < 0 || start+n*10 > len(bits) {
		return nil, 0, 0, flux.ErrBoundsExceeded
	}
	invalid := 0
	for g := 0; g < 2*n; g++ {
		off := start + g*5
		if _, ok := GCRC64Nibble(uint8(BitsWord(bits[off : off+5]))); !ok {
			invalid++
		}
	}
	if d.viterbi == nil {
		out, err := GCRDecodeC64(bits, start, n)
		return out, 0, invalid, err
	}
	syms, fixed, err := d.viterbi.Decode(bits, stream.Confidence, start, 2*n)
	if err != nil {
		return nil, 0, invalid, err
	}
	return nibblesToBytes(syms), fixed, invalid, nil
}

func (d *c64Decoder) FindSync(bits []uint8, start int) (int, bool) {
	for {
		s, ok := FindRun(bits, 1, C64SyncMinRun, start)
		if !ok {
			return 0, false
		}
		if id, err := GCRDecodeC64(bits, s, 1); err == nil && id[0] == C64HeaderID {
			return s, true
		}
		start = s + 1
	}
}

func (d *c64Decoder) DecodeTrack(stream *l2bits.BitCellStream, key flux.TrackKey) (*TrackDecode, error) {
	if stream == nil {
		return nil, flux.InvalidArgf("nil bit stream")
	}
	bits := stream.Bits
	td := &TrackDecode{}
	off, ok := d.FindSync(bits, 0)
	if !ok {
		return td, noSync(key)
	}
	td.SyncOffset, td.HasSync = off, true

	// off already sits on the first header; searching again from there
	// would skip past it to the second sector.
	for s := off; ; {
		rec, next, ok := d.decodeSector(stream, s)
		if !ok {
			break
		}
		if err := appendRecord(td, rec, d.format.MaxSectors); err != nil {
			return td, err
		}
		if s, ok = d.FindSync(bits, next); !ok {
			break
		}
	}
	return td, nil
}

func (d *c64Decoder) decodeSector(stream *l2bits.BitCellStream, start int) (SectorRecord, int, bool) {
	hdr, fixed, invalid, err := d.gcrField(stream, start, c64HeaderBytes)
	if errors.Is(err, flux.ErrBoundsExceeded) {
		return SectorRecord{}, 0, false
	}
	hdrEnd := start + c64HeaderBytes*10
	rec := SectorRecord{
		SizeCode:     1,
		BitStart:     start,
		DataBitStart: -1,
		BitEnd:       hdrEnd,
		Corrections:  fixed,
		Bitslips:     invalid,
	}
	if err == nil {
		rec.Sector = int(hdr[2])
		rec.Cylinder = int(hdr[3]) - 1
		rec.HeaderCRCRead = uint16(hdr[1])
		rec.HeaderCRCCalc = uint16(XORChecksum(hdr[2:6]))
		rec.HeaderCRCOK = hdr[0] == C64HeaderID && rec.HeaderCRCRead == rec.HeaderCRCCalc
	}

	next := hdrEnd
	ds, ok := FindRun(stream.Bits, 1, C64SyncMinRun, hdrEnd)
	if ok && ds-hdrEnd <= c64DataWindow {
		data, fixed, invalid, err := d.gcrField(stream, ds, c64DataBytes)
		switch {
		case errors.Is(err, flux.ErrBoundsExceeded):
		case err != nil:
			rec.Bitslips += invalid
			rec.DataBitStart = ds
			rec.BitEnd = ds + c64DataBytes*10
			next = rec.BitEnd
		case data[0] == C64DataID:
			rec.HasData = true
			rec.Data = data[1:257]
			rec.DataCRCRead = uint16(data[257])
			rec.DataCRCCalc = uint16(XORChecksum(rec.Data))
			rec.DataCRCOK = rec.DataCRCRead == rec.DataCRCCalc
			rec.Corrections += fixed
			rec.Bitslips += invalid
			rec.DataBitStart = ds
			rec.BitEnd = ds + c64DataBytes*10
			next = rec.BitEnd
		}
	}
	rec.Head = 0
	rec.Confidence = stream.MeanConfidence(rec.BitStart, rec.BitEnd)
	return rec, next, true
}
