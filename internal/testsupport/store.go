package testsupport

import (
	"context"
	"testing"

	"ludex/internal/config"
	"ludex/internal/library"
)

// MustOpenStore opens a library.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *library.Store {
	t.Helper()

	store, err := library.Open(cfg)
	if err != nil {
		t.Fatalf("library.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewPath registers a library path for tests using the provided store.
func NewPath(t testing.TB, store *library.Store, libraryName, dir string) *library.Path {
	t.Helper()

	path, err := store.AddPath(context.Background(), library.Path{Library: libraryName, Dir: dir})
	if err != nil {
		t.Fatalf("store.AddPath: %v", err)
	}
	return path
}
