package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"ludex/internal/services"
)

func newBufferLogger(t *testing.T) (*slog.Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelDebug)
	return slog.New(newConsoleHandler(&buf, lvl)), &buf
}

func TestConsoleHandlerFormat(t *testing.T) {
	logger, buf := newBufferLogger(t)
	logger = WithComponent(logger, "sync")

	logger.Info("path confirmed", String("game", "Portal 2"), Int64(FieldPathID, 7))

	line := strings.TrimSpace(buf.String())
	if !strings.Contains(line, "INFO sync: path confirmed") {
		t.Fatalf("unexpected line: %q", line)
	}
	if !strings.Contains(line, `game="Portal 2"`) {
		t.Fatalf("expected quoted value in %q", line)
	}
	if !strings.Contains(line, "path_id=7") {
		t.Fatalf("expected path_id field in %q", line)
	}
}

func TestConsoleHandlerGroups(t *testing.T) {
	logger, buf := newBufferLogger(t)
	logger.Info("search page", slog.Group("page", Int("offset", 10), Int("limit", 20)))

	line := buf.String()
	if !strings.Contains(line, "page.offset=10") || !strings.Contains(line, "page.limit=20") {
		t.Fatalf("expected flattened group keys, got %q", line)
	}
}

func TestWithContext(t *testing.T) {
	logger, buf := newBufferLogger(t)

	ctx := services.WithPathID(context.Background(), 3)
	ctx = services.WithProvider(ctx, "igdb")

	WithContext(ctx, logger).Info("searching")

	line := buf.String()
	if !strings.Contains(line, "path_id=3") || !strings.Contains(line, "provider=igdb") {
		t.Fatalf("expected context fields, got %q", line)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"bogus": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := NewNop()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("nop logger should be disabled at every level")
	}
}
