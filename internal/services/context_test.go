package services

import (
	"context"
	"testing"
)

func TestContextRoundTrips(t *testing.T) {
	ctx := context.Background()

	if _, ok := PathIDFromContext(ctx); ok {
		t.Fatal("expected no path id on empty context")
	}

	ctx = WithPathID(ctx, 42)
	ctx = WithProvider(ctx, "giantbomb")
	ctx = WithTask(ctx, "Syncing Library")
	ctx = WithRequestID(ctx, "req-1")

	if id, ok := PathIDFromContext(ctx); !ok || id != 42 {
		t.Fatalf("path id = %d, %v", id, ok)
	}
	if p, ok := ProviderFromContext(ctx); !ok || p != "giantbomb" {
		t.Fatalf("provider = %q, %v", p, ok)
	}
	if title, ok := TaskFromContext(ctx); !ok || title != "Syncing Library" {
		t.Fatalf("task = %q, %v", title, ok)
	}
	if id, ok := RequestIDFromContext(ctx); !ok || id != "req-1" {
		t.Fatalf("request id = %q, %v", id, ok)
	}
}

func TestEmptyAnnotationsAreNoops(t *testing.T) {
	ctx := context.Background()
	if WithProvider(ctx, "") != ctx {
		t.Fatal("empty provider should not allocate a new context")
	}
	if WithRequestID(ctx, "") != ctx {
		t.Fatal("empty request id should not allocate a new context")
	}
}
