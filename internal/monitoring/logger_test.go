package monitoring

import (
	"fmt"
	"testing"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) {
		called = true
	})
	Logf("test message")
	if !called {
		t.Error("Custom logger was not called")
	}

	// Now set to nil and verify it doesn't call our logger
	called = false
	SetLogger(nil)
	Logf("test")
	if called {
		t.Error("No-op logger should not have triggered callback")
	}
}

func TestLogf_Default(t *testing.T) {
	if Logf == nil {
		t.Error("Logf should not be nil by default")
	}

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("Logf panicked: %v", r)
		}
	}()

	Logf("test message: %s", "value")
}

func TestSetDebugLogger(t *testing.T) {
	original := Debugf
	defer func() { Debugf = original }()

	var got string
	SetDebugLogger(func(format string, v ...interface{}) {
		got = fmt.Sprintf(format, v...)
	})
	Debugf("[pll] cell=%d", 2000)
	if got != "[pll] cell=2000" {
		t.Errorf("Debugf captured %q", got)
	}

	got = ""
	SetDebugLogger(nil)
	Debugf("[pll] cell=%d", 2100)
	if got != "" {
		t.Errorf("muted Debugf should not capture output, got %q", got)
	}
}
