package voice

import "testing"

func TestCleanTranscript(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"   ", ""},
		{"hello there", "hello there"},
		{"hello there there", "hello there"},
		{"no no no", "no"},
		{"my order my order is late", "my order is late"},
		{"the the invoice is is wrong", "the invoice is wrong"},
		{"hello   there \t world", "hello there world"},
		{"Hello hello there", "Hello there"},
	}
	for _, tc := range cases {
		if got := CleanTranscript(tc.in); got != tc.want {
			t.Errorf("CleanTranscript(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestAccumulatorFinalWins(t *testing.T) {
	a := NewAccumulator()
	a.Begin()
	a.Add("hel")
	a.Add("hello ther")
	a.Add("hello there there")

	got, ok := a.Finalize("hello there there")
	if !ok {
		t.Fatal("expected a final")
	}
	if got != "hello there" {
		t.Fatalf("got %q, want %q", got, "hello there")
	}
	if a.Pending() != "" {
		t.Fatalf("pending not cleared: %q", a.Pending())
	}
}

func TestAccumulatorFlushFromChunks(t *testing.T) {
	a := NewAccumulator()
	a.Begin()
	a.Add("refund")
	a.Add("please")

	got, ok := a.Flush()
	if !ok || got != "refund please" {
		t.Fatalf("got %q ok=%v", got, ok)
	}
}

func TestAccumulatorSuppressesDuplicateFinal(t *testing.T) {
	a := NewAccumulator()
	if _, ok := a.Finalize("hello there"); !ok {
		t.Fatal("first final should emit")
	}
	if _, ok := a.Finalize("hello there"); ok {
		t.Fatal("repeated final should be suppressed")
	}
	if got, ok := a.Finalize("something else"); !ok || got != "something else" {
		t.Fatalf("different final should emit, got %q ok=%v", got, ok)
	}
}

func TestAccumulatorBeginDiscardsPending(t *testing.T) {
	a := NewAccumulator()
	a.Add("stale partial")
	a.Begin()
	if a.Pending() != "" {
		t.Fatalf("Begin kept chunks: %q", a.Pending())
	}
	if _, ok := a.Flush(); ok {
		t.Fatal("nothing should flush after Begin")
	}
}

func TestAccumulatorEmptyFinal(t *testing.T) {
	a := NewAccumulator()
	if _, ok := a.Finalize(""); ok {
		t.Fatal("empty final with no chunks should not emit")
	}
}
