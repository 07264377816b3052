package mathexpr

import (
	"testing"

	"github.com/tallowoak/taskline/internal/value"
)

type fakeResolver map[string]value.Value

func (f fakeResolver) Resolve(name string) (value.Value, bool) {
	v, ok := f[name]
	return v, ok
}

func TestEvalArithmetic(t *testing.T) {
	cases := []struct {
		expr string
		want int64
	}{
		{"1+2", 3},
		{"10-3", 7},
		{"4*5", 20},
		{"17/5", 3},
		{"17%5", 2},
		{"2+3*4", 14},
		{"(2+3)*4", 20},
		{"-5+2", -3},
		{"-(3+4)", -7},
	}
	for _, c := range cases {
		got, err := Eval(c.expr, nil)
		if err != nil {
			t.Errorf("Eval(%q) returned error: %v", c.expr, err)
			continue
		}
		if got != c.want {
			t.Errorf("Eval(%q) = %d, want %d", c.expr, got, c.want)
		}
	}
}

func TestEvalDivisionByZero(t *testing.T) {
	if _, err := Eval("1/0", nil); err == nil {
		t.Error("expected division by zero error")
	}
}

func TestEvalModuloByZero(t *testing.T) {
	if _, err := Eval("1%0", nil); err == nil {
		t.Error("expected modulo by zero error")
	}
}

func TestEvalOverflow(t *testing.T) {
	if _, err := Eval("9223372036854775807+1", nil); err == nil {
		t.Error("expected overflow error on addition")
	}
}

func TestEvalLengthOfListInsert(t *testing.T) {
	res := fakeResolver{"xs": value.List([]value.Value{value.Int(10), value.Int(20)})}
	got, err := Eval("length(xs)", res)
	if err != nil {
		t.Fatalf("Eval returned error: %v", err)
	}
	if got != 2 {
		t.Errorf("length(xs) = %d, want 2", got)
	}
}

func TestEvalLengthOfStringInsert(t *testing.T) {
	res := fakeResolver{"name": value.String("hello")}
	got, err := Eval("length(name)", res)
	if err != nil {
		t.Fatalf("Eval returned error: %v", err)
	}
	if got != 5 {
		t.Errorf("length(name) = %d, want 5", got)
	}
}

func TestEvalMinMaxCommaForm(t *testing.T) {
	got, err := Eval("max(1,2,3)", nil)
	if err != nil {
		t.Fatalf("Eval returned error: %v", err)
	}
	if got != 3 {
		t.Errorf("max(1,2,3) = %d, want 3", got)
	}
	got, err = Eval("min(1,2,3)", nil)
	if err != nil {
		t.Fatalf("Eval returned error: %v", err)
	}
	if got != 1 {
		t.Errorf("min(1,2,3) = %d, want 1", got)
	}
}

func TestEvalMaxPlusLengthBareNameForm(t *testing.T) {
	res := fakeResolver{"xs": value.List([]value.Value{value.Int(10), value.Int(20)})}
	got, err := Eval("max(1,2,3)+length(xs)", res)
	if err != nil {
		t.Fatalf("Eval returned error: %v", err)
	}
	if got != 5 {
		t.Errorf("max(1,2,3)+length(xs) = %d, want 5", got)
	}
}

func TestEvalRound(t *testing.T) {
	got, err := Eval("round(7)", nil)
	if err != nil {
		t.Fatalf("Eval returned error: %v", err)
	}
	if got != 7 {
		t.Errorf("round(7) = %d, want 7", got)
	}
}

func TestEvalSign(t *testing.T) {
	cases := []struct {
		expr string
		want int64
	}{
		{"sign(5)", 1},
		{"sign(-5)", -1},
		{"sign(0)", 0},
	}
	for _, c := range cases {
		got, err := Eval(c.expr, nil)
		if err != nil {
			t.Errorf("Eval(%q) returned error: %v", c.expr, err)
			continue
		}
		if got != c.want {
			t.Errorf("Eval(%q) = %d, want %d", c.expr, got, c.want)
		}
	}
}

func TestEvalUnknownIdentifierIsError(t *testing.T) {
	if _, err := Eval("bogus(1)", nil); err == nil {
		t.Error("expected error for unknown function")
	}
}

func TestEvalTrailingGarbageIsError(t *testing.T) {
	if _, err := Eval("1+2 garbage", nil); err == nil {
		t.Error("expected error for trailing input")
	}
}
