package main

import (
	"strings"
	"testing"
)

func TestRenderStatusLine(t *testing.T) {
	line := renderStatusLine("Ludex", statusOK, "Running (pid 42)", false)
	requireContains(t, line, "Ludex:")
	requireContains(t, line, "[OK] Running (pid 42)")
	if strings.Contains(line, ansiGreen) {
		t.Fatal("expected no color codes when colorize is false")
	}

	colored := renderStatusLine("Ludex", statusError, "", true)
	if !strings.HasPrefix(colored, ansiRed) || !strings.HasSuffix(colored, ansiReset) {
		t.Fatalf("expected red wrapping, got %q", colored)
	}
}

func TestRenderSectionHeader(t *testing.T) {
	lines := renderSectionHeader("Daemon", false)
	if len(lines) != 2 {
		t.Fatalf("expected header and rule, got %d lines", len(lines))
	}
	if lines[0] != "== Daemon ==" {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if len(lines[1]) != len(lines[0]) {
		t.Fatalf("rule length %d does not match header length %d", len(lines[1]), len(lines[0]))
	}
}

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable([]string{"A", "B"}, [][]string{{"only"}}, alignLeft, alignRight)
	requireContains(t, out, "only")
	requireContains(t, out, "A")
}

func TestRenderTableKeepsHeaderCase(t *testing.T) {
	out := renderTable([]string{"Library"}, [][]string{{"PC"}})
	requireContains(t, out, "Library")
	if strings.Contains(out, "LIBRARY") {
		t.Fatalf("header was uppercased:\n%s", out)
	}
}
