package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"pfm/internal/core"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("%q: expected %v, got %v", in, want, got)
		}
	}
}

func TestLoggerTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Format: "json", Output: &buf, Component: ComponentExpense})

	fields := NewFields().
		WithLedger(7, "expense", 42, core.MustMoney("-30"), core.MustMoney("70")).
		WithError(errors.New("boom"))
	logger.InfoContext(context.Background(), "expense created", fields.ToSlice()...)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("invalid json %q: %v", buf.String(), err)
	}
	if rec[FieldComponent] != ComponentExpense {
		t.Fatalf("unexpected component %v", rec[FieldComponent])
	}
	if rec[FieldDelta] != "-30.00" || rec[FieldBalance] != "70.00" {
		t.Fatalf("unexpected ledger fields %v", rec)
	}
	if rec[FieldError] != "boom" {
		t.Fatalf("missing error field %v", rec)
	}
}

func TestFromContextFallsBack(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("expected default logger")
	}
	logger := Nop().WithComponent(ComponentHTTP)
	if got := FromContext(NewContext(context.Background(), logger)); got != logger {
		t.Fatal("expected logger from context")
	}
}
