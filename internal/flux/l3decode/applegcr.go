package l3decode

import (
	"github.com/banshee-data/flux.recovery/internal/flux"
	"github.com/banshee-data/flux.recovery/internal/flux/l2bits"
)

// appleDataWindow is the most nibbles allowed between an address field and
// its data prologue.
const appleDataWindow = 48

// appleScheme is what differs between 16-sector and 13-sector tracks.
type appleScheme struct {
	addressPrologue []byte
	fieldNibbles    int
	decodeField     func([]byte) ([]byte, uint8, uint8, error)
}

var (
	apple62Scheme = appleScheme{AppleAddressPrologue, AppleNibbleCount, Decode62}
	apple53Scheme = appleScheme{AppleAddressPrologue13, Apple53NibbleCount, Decode53}
)

// appleDecoder decodes Apple II tracks with 4-and-4 address fields and
// either 6-and-2 or 5-and-3 data fields.
type appleDecoder struct {
	format Format
	scheme appleScheme
}

func newAppleDecoder(f Format) *appleDecoder {
	d := &appleDecoder{format: f, scheme: apple62Scheme}
	if f.Encoding == EncodingGCRApple53 {
		d.scheme = apple53Scheme
	}
	return d
}

func (d *appleDecoder) FindSync(bits []uint8, start int) (int, bool) {
	nibs, offs := Nibbles(bits, start)
	i, ok := FindBytes(nibs, d.scheme.addressPrologue, 0)
	if !ok {
		return 0, false
	}
	return offs[i], true
}

func (d *appleDecoder) DecodeTrack(stream *l2bits.BitCellStream, key flux.TrackKey) (*TrackDecode, error) {
	if stream == nil {
		return nil, flux.InvalidArgf("nil bit stream")
	}
	nibs, offs := Nibbles(stream.Bits, 0)
	td := &TrackDecode{}

	i := 0
	for {
		a, ok := FindBytes(nibs, d.scheme.addressPrologue, i)
		if !ok || a+11 > len(nibs) {
			break
		}
		if !td.HasSync {
			td.SyncOffset, td.HasSync = offs[a], true
		}
		f := nibs[a+3 : a+11]
		vol := Decode44(f[0], f[1])
		trk := Decode44(f[2], f[3])
		sec := Decode44(f[4], f[5])
		chk := Decode44(f[6], f[7])

		rec := SectorRecord{
			Cylinder:      int(trk),
			Head:          key.Head,
			Sector:        int(sec),
			SizeCode:      1,
			HeaderCRCRead: uint16(chk),
			HeaderCRCCalc: uint16(vol ^ trk ^ sec),
			BitStart:      offs[a],
			DataBitStart:  -1,
			BitEnd:        offs[a+10] + 8,
		}
		rec.HeaderCRCOK = rec.HeaderCRCRead == rec.HeaderCRCCalc
		i = a + 11

		dp, ok := FindBytes(nibs, AppleDataPrologue, i)
		n := d.scheme.fieldNibbles
		if ok && dp-i <= appleDataWindow && dp+3+n <= len(nibs) {
			field := nibs[dp+3 : dp+3+n]
			data, read, calc, err := d.scheme.decodeField(field)
			rec.DataBitStart = offs[dp]
			rec.BitEnd = offs[dp+2+n] + 8
			if err != nil {
				rec.Bitslips++
			} else {
				rec.HasData = true
				rec.Data = data
				rec.DataCRCRead = uint16(read)
				rec.DataCRCCalc = uint16(calc)
				rec.DataCRCOK = read == calc
			}
			i = dp + 3 + n
		}
		rec.Confidence = stream.MeanConfidence(rec.BitStart, rec.BitEnd)
		if err := appendRecord(td, rec, d.format.MaxSectors); err != nil {
			return td, err
		}
	}
	if !td.HasSync {
		return td, noSync(key)
	}
	return td, nil
}
