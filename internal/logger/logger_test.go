package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	for _, json := range []bool{false, true} {
		l, err := New(json, true)
		if err != nil {
			t.Fatalf("New(json=%v) error: %v", json, err)
		}
		if !l.Core().Enabled(zapcore.DebugLevel) {
			t.Errorf("expected debug level enabled (json=%v)", json)
		}
	}

	l, err := New(false, false)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if l.Core().Enabled(zapcore.DebugLevel) {
		t.Error("expected debug level disabled")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input    string
		limit    int
		expected string
	}{
		{"short", 10, "short"},
		{"  padded  ", 10, "padded"},
		{"abcdefgh", 3, "abc..."},
		{"éèêë", 2, "éè..."},
		{"anything", 0, ""},
	}

	for _, tt := range tests {
		if got := Truncate(tt.input, tt.limit); got != tt.expected {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.input, tt.limit, got, tt.expected)
		}
	}
}

func TestWithService(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	l := WithService(zap.New(core), "ollama", " llama3:8b ")
	l.Info("judge call", Offer(42))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	ctx := entries[0].ContextMap()
	if ctx[FieldProvider] != "ollama" {
		t.Errorf("expected provider field, got %v", ctx)
	}
	if ctx[FieldModel] != "llama3:8b" {
		t.Errorf("expected trimmed model field, got %v", ctx[FieldModel])
	}
	if ctx[FieldOffer] != int64(42) {
		t.Errorf("expected offer field 42, got %v", ctx[FieldOffer])
	}
}

func TestWithServiceNil(t *testing.T) {
	l := WithService(nil, "", "")
	if l == nil {
		t.Fatal("expected no-op logger")
	}
	l.Info("dropped")
}
