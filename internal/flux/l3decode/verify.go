package l3decode

// VerifyData reports whether data matches the data checksum stored in rec
// under f's checksum rule. Sector voting uses it to re-check a payload
// assembled from several disagreeing copies. Apple fields always fail.
func VerifyData(f Format, rec *SectorRecord, data []byte) bool {
	if rec == nil || len(data) == 0 {
		return false
	}
	mark := MarkDAM
	if rec.Deleted {
		mark = MarkDeletedDAM
	}
	switch f.Encoding {
	case EncodingMFM:
		return CRC16Table(append([]byte{0xA1, 0xA1, 0xA1, mark}, data...), CRCInit) == rec.DataCRCRead
	case EncodingFM:
		return CRC16Table(append([]byte{mark}, data...), CRCInit) == rec.DataCRCRead
	case EncodingGCRC64:
		return uint16(XORChecksum(data)) == rec.DataCRCRead
	case EncodingGCRApple, EncodingGCRApple53:
		// The nibble checksum only protects the nibble chain; a payload
		// rebuilt from votes cannot be checked against it.
		return false
	}
	return false
}
