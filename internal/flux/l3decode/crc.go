package l3decode

// CRCInit is the CCITT preset used by every IBM-style header and data field.
const CRCInit uint16 = 0xFFFF

// CRC16Update folds one byte into crc with the polynomial 0x1021, using the
// nibble-folded form that needs no table.
func CRC16Update(crc uint16, b byte) uint16 {
	x := byte(crc>>8) ^ b
	x ^= x >> 4
	return (crc << 8) ^ uint16(x)<<12 ^ uint16(x)<<5 ^ uint16(x)
}

// CRC16 computes CRC-16-CCITT over data starting from init.
func CRC16(data []byte, init uint16) uint16 {
	crc := init
	for _, b := range data {
		crc = CRC16Update(crc, b)
	}
	return crc
}

// crcTable is built once during package initialisation and never written
// afterwards, so concurrent readers need no synchronisation.
var crcTable = func() [256]uint16 {
	var t [256]uint16
	for i := range t {
		t[i] = CRC16Update(0, byte(i))
	}
	return t
}()

// CRC16Table is the table-driven equivalent of CRC16 for long data fields.
func CRC16Table(data []byte, init uint16) uint16 {
	crc := init
	for _, b := range data {
		crc = crc<<8 ^ crcTable[byte(crc>>8)^b]
	}
	return crc
}

// XORChecksum is the Commodore block checksum.
func XORChecksum(data []byte) byte {
	var c byte
	for _, b := range data {
		c ^= b
	}
	return c
}
