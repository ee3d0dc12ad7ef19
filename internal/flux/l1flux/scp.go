package l1flux

import (
	"encoding/binary"

	"github.com/banshee-data/flux.recovery/internal/flux"
)

// scpOverflow is added for every zero word in an SCP delta stream.
const scpOverflow = 0x10000

// DecodeSCPDeltas converts raw SCP flux words into cumulative transition
// times in nanoseconds. Each word is a 16-bit big-endian tick count; a zero
// word adds 0x10000 ticks and accumulation continues with the next word.
// tickNs is the sample period (25 for the common 40MHz capture clock).
func DecodeSCPDeltas(raw []byte, tickNs float64) ([]uint64, error) {
	if len(raw) == 0 {
		return nil, flux.InvalidArgf("empty SCP delta stream")
	}
	if len(raw)%2 != 0 {
		return nil, flux.InvalidArgf("SCP delta stream has odd length %d", len(raw))
	}
	if tickNs <= 0 {
		return nil, flux.InvalidArgf("tick period %.3fns must be positive", tickNs)
	}

	out := make([]uint64, 0, len(raw)/2)
	var ticks uint64
	var pending uint64
	for i := 0; i < len(raw); i += 2 {
		v := binary.BigEndian.Uint16(raw[i:])
		if v == 0 {
			pending += scpOverflow
			continue
		}
		ticks += pending + uint64(v)
		pending = 0
		out = append(out, uint64(float64(ticks)*tickNs+0.5))
	}
	return out, nil
}

// EncodeSCPDeltas is the inverse of DecodeSCPDeltas for tick-aligned times.
// It exists for synthetic captures and tests.
func EncodeSCPDeltas(transitionsNs []uint64, tickNs float64) []byte {
	out := make([]byte, 0, len(transitionsNs)*2)
	var prevTicks uint64
	for _, t := range transitionsNs {
		ticks := uint64(float64(t)/tickNs + 0.5)
		d := ticks - prevTicks
		prevTicks = ticks
		for d >= scpOverflow {
			out = append(out, 0, 0)
			d -= scpOverflow
		}
		if d == 0 {
			// A transition landing exactly on an overflow boundary cannot be
			// represented; nudge it by one tick.
			d = 1
			prevTicks++
		}
		out = binary.BigEndian.AppendUint16(out, uint16(d))
	}
	return out
}
