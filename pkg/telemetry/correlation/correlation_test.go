package correlation

import (
	"context"
	"testing"
)

func TestEnsureCorrelationIDKeepsExisting(t *testing.T) {
	ctx := ContextWithCorrelationID(context.Background(), "abc")
	ctx, id := EnsureCorrelationID(ctx)
	if id != "abc" || ExtractCorrelationID(ctx) != "abc" {
		t.Fatalf("expected existing id to be kept, got %q", id)
	}

	_, generated := EnsureCorrelationID(context.Background())
	if len(generated) != 26 {
		t.Fatalf("expected a ULID, got %q", generated)
	}
}

func TestDetachSurvivesCancel(t *testing.T) {
	parent, cancel := context.WithCancel(ContextWithCorrelationID(context.Background(), "run-1"))
	detached := Detach(parent)
	cancel()

	if detached.Err() != nil {
		t.Fatalf("expected detached context to stay alive, got %v", detached.Err())
	}
	if ExtractCorrelationID(detached) != "run-1" {
		t.Fatalf("expected correlation id to carry over")
	}
}
