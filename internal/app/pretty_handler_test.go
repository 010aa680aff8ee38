package app

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestStripANSI(t *testing.T) {
	t.Parallel()

	in := ansiBlue + "INFO" + ansiReset + " plain " + ansiRed + "ERR" + ansiReset
	got := stripANSI(in)
	want := "INFO plain ERR"
	if got != want {
		t.Fatalf("stripANSI()=%q want=%q", got, want)
	}
}

func TestPrettyHandlerLine(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	h := newPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}, false)
	log := slog.New(h)

	log.Info("http.request",
		"method", "GET",
		"path", "/auth/validate",
		"status", 200,
		"duration_ms", int64(12),
		"user_agent", "test agent",
	)

	line := strings.TrimSpace(buf.String())
	for _, want := range []string{
		"msg=http.request",
		"method=GET",
		"path=/auth/validate",
		"status=200",
		"duration=12ms",
		`user_agent="test agent"`,
	} {
		if !strings.Contains(line, want) {
			t.Fatalf("line %q missing %q", line, want)
		}
	}
}

func TestPrettyHandlerGroupsAndAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	h := newPrettyHandler(&buf, nil, false)
	log := slog.New(h).With("service", "auth").WithGroup("req")

	log.Warn("rejected", "reason", "TOKEN_EXPIRED")

	line := strings.TrimSpace(buf.String())
	if !strings.Contains(line, "lvl=[WARN]") {
		t.Fatalf("line %q missing level tag", line)
	}
	if !strings.Contains(line, "service=auth") {
		t.Fatalf("line %q missing inherited attr", line)
	}
	if !strings.Contains(line, "req.reason=TOKEN_EXPIRED") {
		t.Fatalf("line %q missing grouped attr", line)
	}
}

func TestPrettyHandlerLevelGate(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	h := newPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}, false)

	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("info should be gated at warn level")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("error should pass at warn level")
	}
}

func TestQuoteIfNeeded(t *testing.T) {
	t.Parallel()

	if got := quoteIfNeeded("plain"); got != "plain" {
		t.Fatalf("quoteIfNeeded(plain)=%q", got)
	}
	if got := quoteIfNeeded(""); got != `""` {
		t.Fatalf("quoteIfNeeded(empty)=%q", got)
	}
	if got := quoteIfNeeded("two words"); got != `"two words"` {
		t.Fatalf("quoteIfNeeded(two words)=%q", got)
	}
}

func TestValueToString(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	if got := valueToString(slog.TimeValue(at)); got != "2025-03-01T10:00:00Z" {
		t.Fatalf("time value=%q", got)
	}
	if got := valueToString(slog.DurationValue(1500 * time.Millisecond)); got != "1.5s" {
		t.Fatalf("duration value=%q", got)
	}
	if got := valueToString(slog.BoolValue(true)); got != "true" {
		t.Fatalf("bool value=%q", got)
	}
}
