package l3decode

import (
	"fmt"

	"github.com/banshee-data/flux.recovery/internal/config"
	"github.com/banshee-data/flux.recovery/internal/flux"
	"github.com/banshee-data/flux.recovery/internal/flux/l2bits"
)

// TrackDecode is the result of decoding one bit stream.
type TrackDecode struct {
	Sectors    []SectorRecord
	SyncOffset int  // cell offset of the first address mark
	HasSync    bool // false when no address mark was found
}

// TrackDecoder decodes a whole track's bit stream.
type TrackDecoder interface {
	// FindSync returns the first address-mark offset at or after start.
	FindSync(bits []uint8, start int) (int, bool)
	// DecodeTrack walks the stream collecting sectors. It returns
	// ErrSyncNotFound when the stream holds no address mark, and
	// ErrBoundsExceeded (with the records found so far) when the stream
	// holds more sectors than the format allows.
	DecodeTrack(stream *l2bits.BitCellStream, key flux.TrackKey) (*TrackDecode, error)
}

// Config selects and tunes a track decoder.
type Config struct {
	Format  Format
	Viterbi ViterbiConfig
}

// ConfigFromTuning maps tuning values onto a decoder config.
func ConfigFromTuning(cfg *config.TuningConfig) (Config, error) {
	f, err := LookupFormat(cfg.GetFormat())
	if err != nil {
		return Config{}, err
	}
	v := DefaultViterbiConfig()
	v.Enable = cfg.GetViterbiEnable()
	v.Depth = cfg.GetViterbiDepth()
	v.Threshold = cfg.GetViterbiThreshold()
	v.Candidates = cfg.GetViterbiCandidates()
	return Config{Format: f, Viterbi: v}, nil
}

// NewTrackDecoder returns the decoder for cfg.Format's encoding.
func NewTrackDecoder(cfg Config) (TrackDecoder, error) {
	if err := cfg.Viterbi.Validate(); err != nil {
		return nil, err
	}
	if cfg.Format.MaxSectors <= 0 {
		return nil, flux.InvalidArgf("format %q has no sector capacity", cfg.Format.Name)
	}
	switch cfg.Format.Encoding {
	case EncodingMFM:
		return newIBMDecoder(cfg.Format, mfmMarks{}), nil
	case EncodingFM:
		return newIBMDecoder(cfg.Format, fmMarks{}), nil
	case EncodingGCRC64:
		return newC64Decoder(cfg)
	case EncodingGCRApple, EncodingGCRApple53:
		return newAppleDecoder(cfg.Format), nil
	default:
		return nil, flux.InvalidArgf("format %q has unknown encoding %q", cfg.Format.Name, cfg.Format.Encoding)
	}
}

// appendRecord enforces the format capacity.
func appendRecord(td *TrackDecode, rec SectorRecord, max int) error {
	if len(td.Sectors) >= max {
		return fmt.Errorf("more than %d sectors on track: %w", max, flux.ErrBoundsExceeded)
	}
	td.Sectors = append(td.Sectors, rec)
	return nil
}

func noSync(key flux.TrackKey) error {
	return fmt.Errorf("track %s: %w", key, flux.ErrSyncNotFound)
}
