// Package l4sectors holds the per-sector verdict that survives across read
// attempts. A SectorStatus only changes through Mark and Merge, and Merge
// never lowers its confidence or state.
package l4sectors

import (
	"fmt"
	"strings"
)

// SectorState is the verdict on one physical sector.
type SectorState string

const (
	StateMissing   SectorState = "MISSING"   // never seen with a usable header
	StateBadCRC    SectorState = "BAD_CRC"   // data read but checksum failed
	StatePartial   SectorState = "PARTIAL"   // voted payload that still fails its checksum
	StateRecovered SectorState = "RECOVERED" // checksum verified after correction or voting
	StateOK        SectorState = "OK"        // read clean
)

// Rank orders states for Merge. Unknown states rank below MISSING.
func (s SectorState) Rank() int {
	switch s {
	case StateOK:
		return 4
	case StateRecovered:
		return 3
	case StatePartial:
		return 2
	case StateBadCRC:
		return 1
	case StateMissing:
		return 0
	}
	return -1
}

// Flags annotate how a verdict was reached.
type Flags uint32

const (
	FlagWeak Flags = 1 << iota
	FlagJitter
	FlagSpeedDrift
	FlagVoted
	FlagProtection
	FlagCorrected
	FlagDeleted
	FlagHeaderOnly
)

var flagNames = []struct {
	flag Flags
	name string
}{
	{FlagWeak, "WEAK"},
	{FlagJitter, "JITTER"},
	{FlagSpeedDrift, "SPEED_DRIFT"},
	{FlagVoted, "VOTED"},
	{FlagProtection, "PROTECTION"},
	{FlagCorrected, "CORRECTED"},
	{FlagDeleted, "DELETED"},
	{FlagHeaderOnly, "HEADER_ONLY"},
}

// Has reports whether every bit of x is set.
func (f Flags) Has(x Flags) bool { return f&x == x }

func (f Flags) String() string {
	if f == 0 {
		return "-"
	}
	var parts []string
	for _, n := range flagNames {
		if f&n.flag != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// SectorStatus tracks one logical sector across every read attempt.
type SectorStatus struct {
	Track  int
	Head   int
	Sector int
	Size   int

	State      SectorState
	Confidence float64 // percent, 0..100
	Retries    int     // Merge calls
	Flags      Flags
	CRC        uint16

	// Data is the payload that goes with State; it is replaced together
	// with State and CRC.
	Data []byte
}

// Init returns a MISSING status for the given sector.
func Init(track, head, sector, size int) *SectorStatus {
	return &SectorStatus{Track: track, Head: head, Sector: sector, Size: size, State: StateMissing}
}

// Key identifies the sector.
func (s *SectorStatus) Key() Key { return Key{Track: s.Track, Head: s.Head, Sector: s.Sector} }

// Mark overwrites the verdict with a single fresh observation.
func (s *SectorStatus) Mark(state SectorState, confidence float64, flags Flags, crc uint16) {
	s.State = state
	s.Confidence = clampPercent(confidence)
	s.Flags = flags
	s.CRC = crc
}

// Merge folds another observation of the same sector into s. Retries
// counts every call; State, CRC and Data are adopted only from a strictly
// better ranked src; Confidence is the maximum and Flags the union.
func (s *SectorStatus) Merge(src *SectorStatus) {
	s.Retries++
	if src == nil {
		return
	}
	if src.State.Rank() > s.State.Rank() {
		s.State = src.State
		s.CRC = src.CRC
		s.Data = src.Data
		if s.Size == 0 {
			s.Size = src.Size
		}
	}
	if src.Confidence > s.Confidence {
		s.Confidence = src.Confidence
	}
	s.Flags |= src.Flags
}

// Usable reports whether the payload verified, directly or after recovery.
func (s *SectorStatus) Usable() bool {
	return s.State == StateOK || s.State == StateRecovered
}

// Clone returns a deep copy.
func (s *SectorStatus) Clone() *SectorStatus {
	c := *s
	if s.Data != nil {
		c.Data = append([]byte(nil), s.Data...)
	}
	return &c
}

func (s *SectorStatus) String() string {
	return fmt.Sprintf("%02d.%d/%02d %s %.0f%% retries=%d flags=%s", s.Track, s.Head, s.Sector, s.State, s.Confidence, s.Retries, s.Flags)
}

func clampPercent(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
