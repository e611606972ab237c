package value

import "testing"

func TestToKeySetOrderingStable(t *testing.T) {
	s1 := NewSet(NewInt(3), NewInt(1), NewInt(2))
	s2 := NewSet(NewInt(2), NewInt(3), NewInt(1))
	if ToKey(s1) != ToKey(s2) {
		t.Fatalf("set canonical key not stable under re-ordering: %s vs %s", ToKey(s1), ToKey(s2))
	}
}

func TestToKeyDistinguishesIntFromFloat(t *testing.T) {
	i := NewInt(1)
	f := Float(1.0)
	if ToKey(i) == ToKey(f) {
		t.Fatalf("expected 1 and 1.0 to have distinct canonical keys, got %s", ToKey(i))
	}
}

func TestToKeyObjectKeyOrderIndependent(t *testing.T) {
	a := NewObject()
	a.Set(String("x"), NewInt(1))
	a.Set(String("y"), NewInt(2))

	b := NewObject()
	b.Set(String("y"), NewInt(2))
	b.Set(String("x"), NewInt(1))

	if ToKey(a) != ToKey(b) {
		t.Fatalf("object canonical key should not depend on insertion order: %s vs %s", ToKey(a), ToKey(b))
	}
}

func TestMergeObjectsConflict(t *testing.T) {
	a := NewObject()
	a.Set(String("x"), NewInt(1))
	b := NewObject()
	b.Set(String("x"), NewInt(2))

	if _, err := MergeObjects(a, b); err == nil {
		t.Fatalf("expected conflict error merging objects with unequal leaf values")
	}
}

func TestMergeObjectsRecursive(t *testing.T) {
	inner1 := NewObject()
	inner1.Set(String("a"), NewInt(1))
	outer1 := NewObject()
	outer1.Set(String("n"), inner1)

	inner2 := NewObject()
	inner2.Set(String("b"), NewInt(2))
	outer2 := NewObject()
	outer2.Set(String("n"), inner2)

	merged, err := MergeObjects(outer1, outer2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mo := merged.(*Object)
	n, _ := mo.Get(String("n"))
	no := n.(*Object)
	if _, ok := no.Get(String("a")); !ok {
		t.Fatalf("expected merged nested object to retain key a")
	}
	if _, ok := no.Get(String("b")); !ok {
		t.Fatalf("expected merged nested object to retain key b")
	}
}

func TestSetAlgebra(t *testing.T) {
	a := NewSet(NewInt(1), NewInt(2), NewInt(3))
	b := NewSet(NewInt(2))

	diff := SetDifference(a, b)
	if diff.Len() != 2 || !diff.Contains(NewInt(1)) || !diff.Contains(NewInt(3)) {
		t.Fatalf("expected {1,3}, got %s", ToKey(diff))
	}

	union, err := MergeSets(NewSet(NewInt(1), NewInt(2)), NewSet(NewInt(2), NewInt(3)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if union.(*Set).Len() != 3 {
		t.Fatalf("expected union of size 3, got %d", union.(*Set).Len())
	}

	inter := SetIntersection(NewSet(NewInt(1), NewInt(2)), NewSet(NewInt(2), NewInt(3)))
	if inter.Len() != 1 || !inter.Contains(NewInt(2)) {
		t.Fatalf("expected {2}, got %s", ToKey(inter))
	}
}

func TestBigIntDivModByZero(t *testing.T) {
	a := NewBigIntFromInt64(10)
	z := NewBigIntFromInt64(0)
	if _, ok := a.Div(z); ok {
		t.Fatalf("expected division by zero to fail")
	}
	if _, ok := a.Mod(z); ok {
		t.Fatalf("expected modulo by zero to fail")
	}
}
