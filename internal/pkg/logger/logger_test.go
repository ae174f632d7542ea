package logger

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLoggerForwardsFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := Wrap(zap.New(core))

	l.Info("run finished", map[string]interface{}{"attempts": 2})
	l.Error("oracle failed", errors.New("boom"), map[string]interface{}{"provider": "groq"})

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["attempts"]; got != int64(2) {
		t.Fatalf("attempts field = %v (%T)", got, got)
	}
	ctx := entries[1].ContextMap()
	if ctx["error"] != "boom" || ctx["provider"] != "groq" {
		t.Fatalf("unexpected error entry context: %v", ctx)
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New(Options{Level: "loud"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestNopDiscards(t *testing.T) {
	l := Nop()
	l.Debug("ignored", nil)
	l.Warn("ignored", map[string]interface{}{"k": "v"})
}
