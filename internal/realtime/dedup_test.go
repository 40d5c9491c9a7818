package realtime

import "testing"

func TestDedupSuppressesRepeats(t *testing.T) {
	d := NewDedup()
	d.Reset("s1")

	if !d.ShouldProcess("m1") {
		t.Fatal("first delivery must process")
	}
	d.MarkProcessed("m1")

	if d.ShouldProcess("m1") {
		t.Fatal("redelivery must be suppressed")
	}
	if !d.ShouldProcess("m2") {
		t.Fatal("unrelated id must process")
	}
}

func TestDedupResetOnSessionChange(t *testing.T) {
	d := NewDedup()
	d.Reset("s1")
	d.MarkProcessed("m1")

	// Same session: no-op, memory kept.
	d.Reset("s1")
	if d.ShouldProcess("m1") {
		t.Fatal("reset with same session must keep the seen set")
	}

	// New session: a fresh seen set.
	d.Reset("s2")
	if !d.ShouldProcess("m1") {
		t.Fatal("new session must start clean")
	}
}

func TestDedupIgnoresEmptyIDs(t *testing.T) {
	d := NewDedup()
	if d.ShouldProcess("") {
		t.Fatal("empty id must not process")
	}
	d.MarkProcessed("") // must not panic or poison the set
}
