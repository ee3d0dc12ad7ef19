// Package l3decode owns Layer 3 (Bitstream decoding) of the recovery data
// model.
//
// Responsibilities: sync and address-mark search, MFM/FM clock stripping,
// C64 and Apple GCR table decoding with an optional soft-decision Viterbi
// pass, CRC-16-CCITT and GCR checksums, and per-format track decoders that
// turn a bit-cell stream into a bounded list of SectorRecords.
//
// Dependency rule: L3 may depend on L1 and L2, but never on L4+.
package l3decode
