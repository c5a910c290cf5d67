package session

import "testing"

func TestProjectHashIsPureAndStable(t *testing.T) {
	a := ProjectHash("/home/dev/project-a")
	b := ProjectHash("/home/dev/project-a")
	c := ProjectHash("/home/dev/project-b")

	if a != b {
		t.Fatalf("ProjectHash not stable: %s != %s", a, b)
	}
	if a == c {
		t.Fatalf("distinct paths collided: %s", a)
	}
	if len(a) != 12 {
		t.Fatalf("expected 12-hex hash, got %q (%d chars)", a, len(a))
	}
}
