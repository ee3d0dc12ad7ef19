package l3decode

import (
	"github.com/banshee-data/flux.recovery/internal/flux"
	"github.com/banshee-data/flux.recovery/internal/flux/l2bits"
)

// mark is one located IBM address mark.
type mark struct {
	pos   int  // first cell of the sync
	value byte // IDAM, DAM or deleted DAM
	body  int  // first cell after the mark byte
}

// markScheme abstracts how MFM and FM write address marks.
type markScheme interface {
	find(bits []uint8, start int) (mark, bool)
	crcPrefix(value byte) []byte
	clockViolations(bits []uint8, start, n int) int
	dataWindow() int // max cells between header end and the data mark
}

var mfmSyncPattern = func() []uint8 {
	w := WordBits(uint32(MFMSyncA1), 16)
	return append(append(append([]uint8{}, w...), w...), w...)
}()

type mfmMarks struct{}

func (mfmMarks) find(bits []uint8, start int) (mark, bool) {
	for {
		p, ok := FindPattern(bits, mfmSyncPattern, start)
		if !ok {
			return mark{}, false
		}
		b, err := DecodeCells(bits, p+48, 1)
		if err != nil {
			return mark{}, false
		}
		switch b[0] {
		case MarkIDAM, MarkDAM, MarkDeletedDAM:
			return mark{pos: p, value: b[0], body: p + 64}, true
		}
		start = p + 1
	}
}

func (mfmMarks) crcPrefix(value byte) []byte { return []byte{0xA1, 0xA1, 0xA1, value} }

func (mfmMarks) clockViolations(bits []uint8, start, n int) int {
	return MFMClockViolations(bits, start, n)
}

func (mfmMarks) dataWindow() int { return 60 * 16 }

var (
	fmIDAMPattern    = WordBits(uint32(FMIDAM), 16)
	fmDAMPattern     = WordBits(uint32(FMDAM), 16)
	fmDeletedPattern = WordBits(uint32(FMDeleted), 16)
)

type fmMarks struct{}

func (fmMarks) find(bits []uint8, start int) (mark, bool) {
	best := mark{pos: -1}
	for _, c := range []struct {
		pattern []uint8
		value   byte
	}{
		{fmIDAMPattern, MarkIDAM},
		{fmDAMPattern, MarkDAM},
		{fmDeletedPattern, MarkDeletedDAM},
	} {
		if p, ok := FindPattern(bits, c.pattern, start); ok && (best.pos < 0 || p < best.pos) {
			best = mark{pos: p, value: c.value, body: p + 16}
		}
	}
	return best, best.pos >= 0
}

func (fmMarks) crcPrefix(value byte) []byte { return []byte{value} }

func (fmMarks) clockViolations(bits []uint8, start, n int) int {
	return FMClockViolations(bits, start, n)
}

func (fmMarks) dataWindow() int { return 30 * 16 }

// ibmDecoder walks IBM System/34 style tracks: an ID field (IDAM, C, H, R,
// N, CRC) followed within a short gap by a data field (DAM, payload, CRC).
type ibmDecoder struct {
	format Format
	marks  markScheme
}

func newIBMDecoder(f Format, m markScheme) *ibmDecoder {
	return &ibmDecoder{format: f, marks: m}
}

func (d *ibmDecoder) FindSync(bits []uint8, start int) (int, bool) {
	for {
		m, ok := d.marks.find(bits, start)
		if !ok {
			return 0, false
		}
		if m.value == MarkIDAM {
			return m.pos, true
		}
		start = m.pos + 1
	}
}

func (d *ibmDecoder) DecodeTrack(stream *l2bits.BitCellStream, key flux.TrackKey) (*TrackDecode, error) {
	if stream == nil {
		return nil, flux.InvalidArgf("nil bit stream")
	}
	bits := stream.Bits
	td := &TrackDecode{}
	if off, ok := d.FindSync(bits, 0); ok {
		td.SyncOffset, td.HasSync = off, true
	} else {
		return td, noSync(key)
	}

	pos := td.SyncOffset
	for {
		m, ok := d.marks.find(bits, pos)
		if !ok {
			break
		}
		if m.value != MarkIDAM {
			// Data field without a preceding header.
			pos = m.pos + 1
			continue
		}
		rec, next, ok := d.decodeSector(stream, m)
		if !ok {
			break
		}
		if err := appendRecord(td, rec, d.format.MaxSectors); err != nil {
			return td, err
		}
		pos = next
	}
	return td, nil
}

// decodeSector reads the ID field at m and the data field that follows it.
// It returns false when the stream ends inside the ID field.
func (d *ibmDecoder) decodeSector(stream *l2bits.BitCellStream, m mark) (SectorRecord, int, bool) {
	bits := stream.Bits
	hdr, err := DecodeCells(bits, m.body, 6)
	if err != nil {
		return SectorRecord{}, 0, false
	}
	hdrEnd := m.body + 6*16

	rec := SectorRecord{
		Cylinder:      int(hdr[0]),
		Head:          int(hdr[1]),
		Sector:        int(hdr[2]),
		SizeCode:      int(hdr[3]),
		HeaderCRCRead: uint16(hdr[4])<<8 | uint16(hdr[5]),
		HeaderCRCCalc: CRC16(append(d.marks.crcPrefix(m.value), hdr[:4]...), CRCInit),
		BitStart:      m.pos,
		DataBitStart:  -1,
		BitEnd:        hdrEnd,
	}
	rec.HeaderCRCOK = rec.HeaderCRCRead == rec.HeaderCRCCalc
	rec.Bitslips = d.marks.clockViolations(bits, m.body, 6)

	next := hdrEnd
	dm, ok := d.marks.find(bits, hdrEnd)
	if ok && dm.value != MarkIDAM && dm.pos-hdrEnd <= d.marks.dataWindow() && rec.SizeCode <= 6 {
		size := SectorSize(rec.SizeCode)
		field, err := DecodeCells(bits, dm.body, size+2)
		if err == nil {
			rec.HasData = true
			rec.Deleted = dm.value == MarkDeletedDAM
			rec.Data = field[:size]
			rec.DataCRCRead = uint16(field[size])<<8 | uint16(field[size+1])
			rec.DataCRCCalc = CRC16Table(append(d.marks.crcPrefix(dm.value), rec.Data...), CRCInit)
			rec.DataCRCOK = rec.DataCRCRead == rec.DataCRCCalc
			rec.DataBitStart = dm.pos
			rec.BitEnd = dm.body + (size+2)*16
			rec.Bitslips += d.marks.clockViolations(bits, dm.body, size+2)
			next = rec.BitEnd
		}
	}
	rec.Confidence = stream.MeanConfidence(rec.BitStart, rec.BitEnd)
	return rec, next, true
}
