package main

import (
	"fmt"

	"github.com/banshee-data/flux.recovery/internal/config"
	"github.com/banshee-data/flux.recovery/internal/flux/l1flux"
)

func loadCapture(path string) (*l1flux.Capture, error) {
	if path == "" {
		return nil, fmt.Errorf("--capture is required")
	}
	c, err := l1flux.LoadCaptureFile(path)
	if err != nil {
		return nil, err
	}
	if len(c.Tracks) == 0 {
		return nil, fmt.Errorf("%s: capture holds no tracks", path)
	}
	return c, nil
}

// resolveFormat picks the format: an explicit flag wins, then the config
// file, then the capture header.
func resolveFormat(tc *config.TuningConfig, flagValue string, c *l1flux.Capture) {
	switch {
	case flagValue != "":
		tc.Format = &flagValue
	case tc.Format == nil && c != nil && c.Format != "":
		f := c.Format
		tc.Format = &f
	}
}
