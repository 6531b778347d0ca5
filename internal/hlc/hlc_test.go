package hlc

import "testing"

func TestNowIsMonotonic(t *testing.T) {
	c := NewClock("sentryd-1")
	prev := c.Now()
	for i := 0; i < 1000; i++ {
		next := c.Now()
		if !next.After(prev) {
			t.Fatalf("timestamp did not advance: prev=%+v next=%+v", prev, next)
		}
		prev = next
	}
}

func TestCompareOrdering(t *testing.T) {
	a := Timestamp{Physical: 1, Logical: 0, Node: "a"}
	b := Timestamp{Physical: 1, Logical: 1, Node: "a"}
	c := Timestamp{Physical: 2, Logical: 0, Node: "a"}

	if !a.Before(b) {
		t.Error("a should be before b (lower logical)")
	}
	if !b.Before(c) {
		t.Error("b should be before c (lower physical)")
	}
	if Compare(a, a) != 0 {
		t.Error("a should equal itself")
	}
}

func TestCompareNodeTieBreak(t *testing.T) {
	a := Timestamp{Physical: 1, Logical: 1, Node: "a"}
	b := Timestamp{Physical: 1, Logical: 1, Node: "b"}
	if !a.Before(b) {
		t.Error("equal physical/logical should tie-break on node name")
	}
}
