package util

import "testing"

func TestManyKeyIgnoresOrderAndDuplicates(t *testing.T) {
	a := ManyKey("many:users", []string{"u2", "u1", "u3"})
	b := ManyKey("many:users", []string{"u3", "u1", "u2", "u1"})
	if a != b {
		t.Fatalf("keys differ: %q vs %q", a, b)
	}
	if len(a) != len("many:users")+1+16 {
		t.Fatalf("unexpected key shape %q", a)
	}
	if c := ManyKey("many:users", []string{"u1", "u2"}); c == a {
		t.Fatalf("different sets share key %q", c)
	}
	// the separator keeps ["ab"] and ["a","b"] apart
	if ManyKey("p", []string{"ab"}) == ManyKey("p", []string{"a", "b"}) {
		t.Fatalf("join collision")
	}
}

func TestSortedUniqueDoesNotMutateInput(t *testing.T) {
	in := []string{"b", "a", "b"}
	got := SortedUnique(in)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("got=%v", got)
	}
	if in[0] != "b" || in[1] != "a" || in[2] != "b" {
		t.Fatalf("input mutated: %v", in)
	}
}
