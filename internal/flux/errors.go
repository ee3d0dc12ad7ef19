// Package flux holds the vocabulary shared by every layer of the
// flux-to-sector pipeline: the error taxonomy and the track key used to
// merge results.
//
// Layer packages live beneath it:
//
//	l1flux       flux revolutions and capture ingestion
//	l2bits       Kalman bit-cell synchronizer
//	l3decode     MFM/FM/GCR decoding, CRC and sync search
//	l4sectors    sector status state machine
//	l5fusion     multi-revolution voting
//	l6protection weak-sector protection detection
//
// Dependency rule: a layer may import lower layers and this package, never
// a higher layer or the pipeline.
package flux

import (
	"errors"
	"fmt"
)

// Error kinds. Callers classify with errors.Is; layers wrap them with
// fmt.Errorf("...: %w", ErrX) to add context.
var (
	// ErrInvalidArgument reports empty input or malformed configuration.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrSyncNotFound reports that no address mark exists in a bit stream.
	ErrSyncNotFound = errors.New("sync not found")
	// ErrCrcMismatch reports a header or data checksum failure.
	ErrCrcMismatch = errors.New("crc mismatch")
	// ErrInsufficientPasses reports fewer usable passes than min_passes.
	ErrInsufficientPasses = errors.New("insufficient passes")
	// ErrBoundsExceeded reports that output needed more capacity than allowed.
	ErrBoundsExceeded = errors.New("bounds exceeded")
	// ErrSyncDrift reports that the cell-time estimate left its valid range.
	ErrSyncDrift = errors.New("sync drift")
)

// Kind names an error class for reports and CLI output.
type Kind string

const (
	KindNone               Kind = ""
	KindInvalidArgument    Kind = "invalid_argument"
	KindSyncNotFound       Kind = "sync_not_found"
	KindCrcMismatch        Kind = "crc_mismatch"
	KindInsufficientPasses Kind = "insufficient_passes"
	KindBoundsExceeded     Kind = "bounds_exceeded"
	KindSyncDrift          Kind = "sync_drift"
	KindOther              Kind = "other"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrInvalidArgument, KindInvalidArgument},
	{ErrSyncNotFound, KindSyncNotFound},
	{ErrCrcMismatch, KindCrcMismatch},
	{ErrInsufficientPasses, KindInsufficientPasses},
	{ErrBoundsExceeded, KindBoundsExceeded},
	{ErrSyncDrift, KindSyncDrift},
}

// KindOf classifies err. A nil error is KindNone; an error that wraps none of
// the package sentinels is KindOther.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindOther
}

// IsFatal reports whether err must abort a whole pipeline invocation. Only
// configuration problems do; everything else is recorded per track or sector.
func IsFatal(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

// InvalidArgf wraps ErrInvalidArgument with a formatted message.
func InvalidArgf(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidArgument)
}

// TrackKey identifies one physical track side.
type TrackKey struct {
	Cylinder int `json:"cylinder"`
	Head     int `json:"head"`
}

func (k TrackKey) String() string {
	return fmt.Sprintf("%02d.%d", k.Cylinder, k.Head)
}

// Less orders keys by cylinder, then head.
func (k TrackKey) Less(o TrackKey) bool {
	if k.Cylinder != o.Cylinder {
		return k.Cylinder < o.Cylinder
	}
	return k.Head < o.Head
}
