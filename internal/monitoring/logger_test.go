package monitoring

import (
	"bytes"
	"log/slog"
	"strings"
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

	// A nil logger is a no-op and must not call the previous one.
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

func TestSetSlogger(t *testing.T) {
	defer SetSlogger(slog.Default())

	var buf bytes.Buffer
	SetSlogger(slog.New(slog.NewTextHandler(&buf, nil)))
	Logger().Info("grid point set", "grid_point", 3)
	if !strings.Contains(buf.String(), "grid_point=3") {
		t.Errorf("structured record missing attribute: %q", buf.String())
	}

	buf.Reset()
	SetSlogger(nil)
	Logger().Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("nil slogger should discard records, got %q", buf.String())
	}
}
