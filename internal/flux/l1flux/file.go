package l1flux

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// ZstdSuffix marks a zstd-compressed capture file. Flux deltas compress
// well, typically to a fifth of the JSON size.
const ZstdSuffix = ".zst"

// LoadCaptureFile reads a capture from path, decompressing it when the name
// ends in ZstdSuffix.
func LoadCaptureFile(path string) (*Capture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ZstdSuffix) {
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		defer zr.Close()
		r = zr
	}
	c, err := LoadCapture(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// WriteCaptureFile writes c to path, compressing it when the name ends in
// ZstdSuffix.
func WriteCaptureFile(path string, c *Capture) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create capture: %w", err)
	}
	if !strings.HasSuffix(path, ZstdSuffix) {
		if err := WriteCapture(f, c); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}

	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		f.Close()
		return fmt.Errorf("zstd writer: %w", err)
	}
	if err := WriteCapture(zw, c); err != nil {
		zw.Close()
		f.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return fmt.Errorf("zstd flush: %w", err)
	}
	return f.Close()
}
