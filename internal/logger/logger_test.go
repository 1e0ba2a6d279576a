package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew_Levels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		log, err := New(level, "json")
		if err != nil {
			t.Fatalf("New(%q): %v", level, err)
		}
		want, _ := zapcore.ParseLevel(level)
		if !log.Core().Enabled(want) {
			t.Errorf("level %s not enabled on logger built for %s", want, level)
		}
		if want > zapcore.DebugLevel && log.Core().Enabled(want-1) {
			t.Errorf("level %s unexpectedly enabled on logger built for %s", want-1, level)
		}
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	if _, err := New("loud", "console"); err == nil {
		t.Fatal("expected error for invalid level")
	}
}
