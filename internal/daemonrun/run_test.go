package daemonrun

import (
	"testing"

	"ludex/internal/testsupport"
)

func TestLoggerOptionsIncludeLogFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	opts := LoggerOptions(cfg, "")
	if opts.Level != cfg.Logging.Level {
		t.Fatalf("expected level %q, got %q", cfg.Logging.Level, opts.Level)
	}
	found := false
	for _, path := range opts.OutputPaths {
		if path == cfg.LogFilePath() {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected output paths %v to include %s", opts.OutputPaths, cfg.LogFilePath())
	}
}

func TestLoggerOptionsHonorOverride(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Logging.Level = "info"

	opts := LoggerOptions(cfg, "debug")
	if opts.Level != "debug" {
		t.Fatalf("expected override level debug, got %q", opts.Level)
	}
}
