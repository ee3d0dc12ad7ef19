package version

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	old := Version
	defer func() { Version = old }()
	Version = "v1.2.3"

	got := String()
	if !strings.HasPrefix(got, "fluxrecover v1.2.3") {
		t.Errorf("String() = %q, want prefix %q", got, "fluxrecover v1.2.3")
	}
	if !strings.Contains(got, GitSHA) {
		t.Errorf("String() = %q, want it to contain the commit", got)
	}
}
