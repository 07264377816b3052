package value

import "testing"

func TestEqualIntFloatCrossKind(t *testing.T) {
	if !Equal(Int(3), Float(3.0)) {
		t.Error("Int(3) should equal Float(3.0)")
	}
	if Equal(Int(3), Float(3.5)) {
		t.Error("Int(3) should not equal Float(3.5)")
	}
}

func TestEqualBoolNeverEqualsInt(t *testing.T) {
	if Equal(Bool(true), Int(1)) {
		t.Error("Bool(true) must not equal Int(1)")
	}
}

func TestEqualList(t *testing.T) {
	a := List([]Value{Int(1), String("x")})
	b := List([]Value{Int(1), String("x")})
	c := List([]Value{Int(1), String("y")})
	if !Equal(a, b) {
		t.Error("identical lists should be equal")
	}
	if Equal(a, c) {
		t.Error("differing lists should not be equal")
	}
}

func TestEqualMapOrderIndependent(t *testing.T) {
	m1 := NewOrderedMap()
	m1.Set("a", Int(1))
	m1.Set("b", Int(2))
	m2 := NewOrderedMap()
	m2.Set("b", Int(2))
	m2.Set("a", Int(1))
	if !Equal(Map(m1), Map(m2)) {
		t.Error("maps with the same entries in different insertion order should be equal")
	}
}

func TestToDisplay(t *testing.T) {
	cases := []struct {
		v    Value
		want string
	}{
		{Null(), ""},
		{Bool(true), "true"},
		{Bool(false), "false"},
		{Int(42), "42"},
		{Float(3.5), "3.5"},
		{Float(3.0), "3.0"},
		{String("hi"), "hi"},
		{List([]Value{String("a"), String("b")}), "ab"},
	}
	for _, c := range cases {
		if got := ToDisplay(c.v); got != c.want {
			t.Errorf("ToDisplay(%+v) = %q, want %q", c.v, got, c.want)
		}
	}
}

func TestOrderedMapPreservesInsertionOrder(t *testing.T) {
	m := NewOrderedMap()
	m.Set("z", Int(1))
	m.Set("a", Int(2))
	m.Set("m", Int(3))
	want := []string{"z", "a", "m"}
	got := m.Keys()
	if len(got) != len(want) {
		t.Fatalf("Keys() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Keys()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestOrderedMapDeleteThenReinsertAppendsAtEnd(t *testing.T) {
	m := NewOrderedMap()
	m.Set("a", Int(1))
	m.Set("b", Int(2))
	m.Delete("a")
	m.Set("a", Int(3))
	want := []string{"b", "a"}
	got := m.Keys()
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Keys() = %v, want %v", got, want)
		}
	}
	v, ok := m.Get("a")
	if !ok || v.Int != 3 {
		t.Errorf("Get(a) = %+v, %v, want Int(3), true", v, ok)
	}
}
