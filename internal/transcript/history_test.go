package transcript_test

import (
	"testing"

	"github.com/nami-os/nami/internal/transcript"
)

func TestHistory_MostRecentFirst(t *testing.T) {
	t.Parallel()

	h := transcript.NewHistory(10)
	h.Add("first")
	h.Add("second")
	h.Add("third")

	want := []string{"third", "second", "first"}
	got := h.Entries()
	if len(got) != len(want) {
		t.Fatalf("Entries() = %v; want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Entries()[%d] = %q; want %q", i, got[i], want[i])
		}
	}
}

func TestHistory_DedupeMovesToFront(t *testing.T) {
	t.Parallel()

	h := transcript.NewHistory(10)
	h.Add("alpha")
	h.Add("beta")
	h.Add("alpha")

	got := h.Entries()
	if len(got) != 2 {
		t.Fatalf("Entries() = %v; want exactly 2 entries", got)
	}
	if got[0] != "alpha" || got[1] != "beta" {
		t.Errorf("Entries() = %v; want [alpha beta]", got)
	}
}

func TestHistory_DedupeIsExact(t *testing.T) {
	t.Parallel()

	h := transcript.NewHistory(10)
	h.Add("Hello")
	h.Add("hello")

	if got := h.Len(); got != 2 {
		t.Errorf("Len() = %d; want 2 (dedupe is case-sensitive)", got)
	}
}

func TestHistory_EvictsOldestAtCapacity(t *testing.T) {
	t.Parallel()

	h := transcript.NewHistory(3)
	h.Add("a")
	h.Add("b")
	h.Add("c")
	h.Add("d")

	got := h.Entries()
	if len(got) != 3 {
		t.Fatalf("Len() = %d; want 3", len(got))
	}
	if got[0] != "d" || got[2] != "b" {
		t.Errorf("Entries() = %v; want [d c b]", got)
	}
}

func TestHistory_IgnoresEmpty(t *testing.T) {
	t.Parallel()

	h := transcript.NewHistory(10)
	h.Add("")
	if got := h.Len(); got != 0 {
		t.Errorf("Len() = %d; want 0", got)
	}
}

func TestHistory_DefaultCapacity(t *testing.T) {
	t.Parallel()

	h := transcript.NewHistory(0)
	for i := range 20 {
		h.Add(string(rune('a' + i)))
	}
	if got := h.Len(); got != transcript.DefaultHistoryCapacity {
		t.Errorf("Len() = %d; want %d", got, transcript.DefaultHistoryCapacity)
	}
}

func TestHistory_Clear(t *testing.T) {
	t.Parallel()

	h := transcript.NewHistory(10)
	h.Add("something")
	h.Clear()
	if got := h.Len(); got != 0 {
		t.Errorf("Len() after Clear = %d; want 0", got)
	}
}
