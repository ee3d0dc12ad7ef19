package l3decode

import "fmt"

// SectorRecord is one decoded sector as found in one bit stream.
//
// Cylinder, Head and Sector are the values read from the address field,
// which may differ from the physical track on protected or misformatted
// media. Checksums are stored read-versus-computed; GCR formats keep their
// 8-bit checksum in the low byte.
type SectorRecord struct {
	Cylinder int
	Head     int
	Sector   int
	SizeCode int
	Data     []byte

	HeaderCRCRead uint16
	HeaderCRCCalc uint16
	DataCRCRead   uint16
	DataCRCCalc   uint16
	HeaderCRCOK   bool
	DataCRCOK     bool
	HasData       bool
	Deleted       bool

	Confidence  float64 // mean cell confidence over the sector's cell range
	Corrections int     // groups the Viterbi pass substituted
	Bitslips    int     // clock-rule violations or untranslatable groups

	BitStart     int // first cell of the address mark sync
	DataBitStart int // first cell of the data field sync, -1 without data
	BitEnd       int // cell after the last checksum cell
}

// Usable reports whether both fields verified.
func (r *SectorRecord) Usable() bool {
	return r.HeaderCRCOK && r.HasData && r.DataCRCOK
}

// DataCRC returns the checksum of the payload as stored on disk.
func (r *SectorRecord) DataCRC() uint16 { return r.DataCRCRead }

func (r *SectorRecord) String() string {
	state := "ok"
	switch {
	case !r.HeaderCRCOK:
		state = "bad header"
	case !r.HasData:
		state = "no data"
	case !r.DataCRCOK:
		state = "bad data"
	}
	return fmt.Sprintf("C%d H%d R%d N%d %s conf=%.2f", r.Cylinder, r.Head, r.Sector, r.SizeCode, state, r.Confidence)
}
