package chunker

import "testing"

func TestHash_Deterministic(t *testing.T) {
	a := Hash("Пай — это доля инвестора.")
	b := Hash("Пай — это доля инвестора.")
	if a != b {
		t.Fatalf("same text hashed differently: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected hex sha256 (64 chars), got %d", len(a))
	}
}

func TestHash_TrimsBeforeHashing(t *testing.T) {
	if Hash("  text  ") != Hash("text") {
		t.Fatal("hash must be computed over trimmed text")
	}
}

func TestDedup_FirstOccurrenceWins(t *testing.T) {
	d := NewDedup()

	if d.IsDuplicate("chunk one") {
		t.Fatal("first occurrence reported as duplicate")
	}
	if !d.IsDuplicate("chunk one") {
		t.Fatal("second occurrence not reported as duplicate")
	}
	// Same trimmed text from a different document is still a duplicate.
	if !d.IsDuplicate("  chunk one  ") {
		t.Fatal("whitespace variant not reported as duplicate")
	}
	if d.Len() != 1 {
		t.Fatalf("Len = %d, want 1", d.Len())
	}
}

func TestDedup_FreshRunReadmitsContent(t *testing.T) {
	d1 := NewDedup()
	d1.IsDuplicate("repeatable chunk")

	d2 := NewDedup()
	if d2.IsDuplicate("repeatable chunk") {
		t.Fatal("a fresh dedup set must re-admit previously seen content")
	}
}
