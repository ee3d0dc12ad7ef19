// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/banshee-data/flux.recovery/internal/flux/l1flux"
	"github.com/banshee-data/flux.recovery/internal/flux/l3decode"
	"github.com/banshee-data/flux.recovery/internal/flux/synth"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// MustFormat looks up a track format by name.
func MustFormat(t testing.TB, name string) l3decode.Format {
	t.Helper()
	f, err := l3decode.LookupFormat(name)
	AssertNoError(t, err)
	return f
}

// SyntheticCapture builds a deterministic capture of a cleanly formatted
// disk. Pass a non-nil sectors func to lay down custom sectors.
func SyntheticCapture(t testing.TB, format string, cylinders, heads int, seed int64, sectors func(cyl, head int) []synth.Sector) *l1flux.Capture {
	t.Helper()
	g := synth.NewGenerator(MustFormat(t, format), seed)
	g.Sectors = sectors
	c, err := g.Capture(cylinders, heads)
	AssertNoError(t, err)
	return c
}

// WriteTempFile writes data to name under a fresh temp dir and returns the
// path.
func WriteTempFile(t testing.TB, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
