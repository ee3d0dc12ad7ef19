package l4sectors

import "github.com/banshee-data/flux.recovery/internal/flux/l3decode"

// badCRCConfidence caps the confidence of a payload whose checksum failed.
const badCRCConfidence = 50

// FromRecord turns one decoded record into a fresh status on the physical
// track. It returns false when the address field failed its checksum,
// since the sector number cannot be trusted.
func FromRecord(rec *l3decode.SectorRecord, track, head int) (*SectorStatus, bool) {
	if rec == nil || !rec.HeaderCRCOK {
		return nil, false
	}
	size := l3decode.SectorSize(rec.SizeCode)
	s := Init(track, head, rec.Sector, size)

	var flags Flags
	if rec.Deleted {
		flags |= FlagDeleted
	}
	if rec.Bitslips > 0 {
		flags |= FlagJitter
	}
	if rec.Corrections > 0 {
		flags |= FlagCorrected
	}
	conf := rec.Confidence * 100

	switch {
	case !rec.HasData:
		s.Mark(StateMissing, 0, flags|FlagHeaderOnly, rec.HeaderCRCRead)
	case !rec.DataCRCOK:
		if conf > badCRCConfidence {
			conf = badCRCConfidence
		}
		s.Mark(StateBadCRC, conf, flags, rec.DataCRCRead)
		s.Data = rec.Data
	case rec.Corrections > 0:
		s.Mark(StateRecovered, conf, flags, rec.DataCRCRead)
		s.Data = rec.Data
	default:
		s.Mark(StateOK, conf, flags, rec.DataCRCRead)
		s.Data = rec.Data
	}
	return s, true
}
