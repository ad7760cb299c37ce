package unseen

import (
	"context"
	"testing"

	"github.com/salespulse/docchat/internal/storage/memory"
)

func TestCounterIncrementsWhileInactive(t *testing.T) {
	ctx := context.Background()
	c := NewCounter(memory.New())

	for i := 1; i <= 3; i++ {
		n, err := c.MessageDelivered(ctx, "DOC-100", "bob")
		if err != nil {
			t.Fatalf("MessageDelivered: %v", err)
		}
		if n != int64(i) {
			t.Errorf("count after %d deliveries = %d, want %d", i, n, i)
		}
	}

	counts, err := c.Snapshot(ctx, "bob")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if counts["DOC-100"] != 3 {
		t.Errorf("snapshot[DOC-100] = %d, want 3", counts["DOC-100"])
	}
}

func TestCounterResetOnActivation(t *testing.T) {
	ctx := context.Background()
	c := NewCounter(memory.New())

	if _, err := c.MessageDelivered(ctx, "DOC-100", "bob"); err != nil {
		t.Fatalf("MessageDelivered: %v", err)
	}
	if err := c.RoomActivated(ctx, "bob", "DOC-100"); err != nil {
		t.Fatalf("RoomActivated: %v", err)
	}

	counts, err := c.Snapshot(ctx, "bob")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if _, ok := counts["DOC-100"]; ok {
		t.Errorf("snapshot contains DOC-100 after activation, want absent")
	}
}

func TestCounterResetIsIdempotentAndNeverNegative(t *testing.T) {
	ctx := context.Background()
	c := NewCounter(memory.New())

	// Resetting a counter that was never incremented is a no-op.
	if err := c.RoomActivated(ctx, "bob", "DOC-200"); err != nil {
		t.Fatalf("RoomActivated on empty counter: %v", err)
	}
	if err := c.RoomActivated(ctx, "bob", "DOC-200"); err != nil {
		t.Fatalf("second RoomActivated: %v", err)
	}

	// First delivery after a double reset starts from 1, not below.
	n, err := c.MessageDelivered(ctx, "DOC-200", "bob")
	if err != nil {
		t.Fatalf("MessageDelivered: %v", err)
	}
	if n != 1 {
		t.Errorf("count after reset+delivery = %d, want 1", n)
	}
}

func TestCounterTracksRoomsIndependently(t *testing.T) {
	ctx := context.Background()
	c := NewCounter(memory.New())

	if _, err := c.MessageDelivered(ctx, "DOC-1", "bob"); err != nil {
		t.Fatalf("MessageDelivered DOC-1: %v", err)
	}
	if _, err := c.MessageDelivered(ctx, "DOC-2", "bob"); err != nil {
		t.Fatalf("MessageDelivered DOC-2: %v", err)
	}
	if _, err := c.MessageDelivered(ctx, "DOC-2", "bob"); err != nil {
		t.Fatalf("MessageDelivered DOC-2: %v", err)
	}
	if err := c.RoomActivated(ctx, "bob", "DOC-1"); err != nil {
		t.Fatalf("RoomActivated: %v", err)
	}

	counts, err := c.Snapshot(ctx, "bob")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if counts["DOC-2"] != 2 {
		t.Errorf("snapshot[DOC-2] = %d, want 2", counts["DOC-2"])
	}
	if _, ok := counts["DOC-1"]; ok {
		t.Errorf("snapshot contains DOC-1 after activation, want absent")
	}
}
