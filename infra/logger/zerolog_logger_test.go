package logger

import (
	"os"
	"testing"
)

func TestZerologLoggerMethods(t *testing.T) {
	os.Setenv("APP_ENV", "dev")
	defer os.Unsetenv("APP_ENV")
	l := NewZerologLogger("test")
	if l == nil {
		t.Fatalf("nil logger")
	}
	l.Debugf("debug %d", 1)
	l.Debugw("debug", map[string]any{"k": "v"})
	l.Infof("info %s", "test")
	l.Warnf("warn")
	l.Errorf("error")
}

func TestNewReturnsLogger(t *testing.T) {
	if New("component") == nil {
		t.Fatal("nil logger")
	}
}

func TestLogLevelBound(t *testing.T) {
	os.Setenv("LOG_LEVEL", "warn")
	defer os.Unsetenv("LOG_LEVEL")
	l := NewZerologLogger("test")
	// Suppressed levels must be safe no-ops.
	l.Debugf("suppressed")
	l.Infof("suppressed")
	l.Warnf("emitted")
}
