package ids

import (
	"testing"
	"time"
)

func TestNewIsSortableAndValid(t *testing.T) {
	a := NewAt(time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC))
	b := NewAt(time.Date(2024, 6, 1, 10, 0, 1, 0, time.UTC))
	if !(a < b) {
		t.Fatalf("expected %s < %s", a, b)
	}
	if !Valid(a) || !Valid(New()) {
		t.Fatalf("expected generated ids to be valid")
	}
}

func TestValidRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "abc", "not-a-ulid-but-26-chars-xx", "../../etc/passwd"} {
		if Valid(s) {
			t.Fatalf("Valid(%q) = true", s)
		}
	}
}

func TestShort(t *testing.T) {
	s := Short()
	if len(s) != 6 {
		t.Fatalf("unexpected short id %q", s)
	}
}
