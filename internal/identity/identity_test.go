package identity

import (
	"context"
	"testing"
)

func TestActorRoundTrip(t *testing.T) {
	ctx := WithActor(context.Background(), " alice ")

	id, ok := ActorFrom(ctx)
	if !ok || id != "alice" {
		t.Fatalf("ActorFrom() = %q, %v; want alice, true", id, ok)
	}
}

func TestActorMissing(t *testing.T) {
	if _, ok := ActorFrom(context.Background()); ok {
		t.Fatal("expected no actor on a bare context")
	}
	if _, ok := ActorFrom(WithActor(context.Background(), "  ")); ok {
		t.Fatal("blank actor should not count")
	}
}
