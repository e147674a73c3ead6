package main

import (
	"testing"
)

func TestPathsAddListRemove(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"paths", "add", "PC", "Hades", "--platform", "PC"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("paths add: %v", err)
	}
	requireContains(t, out, "Added PC/Hades")

	out, _, err = runCLI(t, []string{"paths", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("paths list: %v", err)
	}
	requireContains(t, out, "Hades")
	requireContains(t, out, "Library")

	out, _, err = runCLI(t, []string{"paths", "remove", "PC/Hades"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("paths remove: %v", err)
	}
	requireContains(t, out, "Removed PC/Hades")

	out, _, err = runCLI(t, []string{"paths", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("paths list after remove: %v", err)
	}
	requireContains(t, out, "No library paths registered")
}

func TestPathsRemoveMissingFails(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"paths", "remove", "PC/Nothing"}, env.socketPath, env.configPath)
	if err == nil {
		t.Fatal("expected error removing unknown path")
	}
}

func TestParsePathArg(t *testing.T) {
	key, err := parsePathArg("PC/Hollow Knight")
	if err != nil {
		t.Fatalf("parsePathArg: %v", err)
	}
	if key.Library != "PC" || key.Dir != "Hollow Knight" {
		t.Fatalf("unexpected key %+v", key)
	}

	for _, bad := range []string{"", "PC", "/Hades", "PC/"} {
		if _, err := parsePathArg(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
