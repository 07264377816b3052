package program

import (
	"testing"

	"github.com/tallowoak/taskline/internal/value"
)

func TestParseMinimalProgram(t *testing.T) {
	src := []byte(`{
		order: [
			{ cmd: "print", text: "hello" },
		],
	}`)
	p, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(p.Order) != 1 {
		t.Fatalf("Order has %d tasks, want 1", len(p.Order))
	}
	if p.Order[0].Cmd != "print" {
		t.Errorf("Order[0].Cmd = %q, want %q", p.Order[0].Cmd, "print")
	}
	textVal, ok := p.Order[0].Field("text")
	if !ok || textVal.Str != "hello" {
		t.Errorf("Order[0].Field(text) = %+v, %v, want %q, true", textVal, ok, "hello")
	}
}

func TestParseDistinguishesIntFromFloat(t *testing.T) {
	src := []byte(`{
		order: [
			{ cmd: "sleep", seconds: 3 },
			{ cmd: "sleep", seconds: 3.5 },
		],
	}`)
	p, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	secs0, _ := p.Order[0].Field("seconds")
	if secs0.Kind != value.KindInt || secs0.Int != 3 {
		t.Errorf("first seconds = %+v, want KindInt 3", secs0)
	}
	secs1, _ := p.Order[1].Field("seconds")
	if secs1.Kind != value.KindFloat || secs1.Float != 3.5 {
		t.Errorf("second seconds = %+v, want KindFloat 3.5", secs1)
	}
}

func TestParseTracksLineNumbers(t *testing.T) {
	src := []byte("{\n  order: [\n    { cmd: \"print\", text: \"a\" },\n  ],\n}")
	p, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if p.Order[0].Line != 3 {
		t.Errorf("Order[0].Line = %d, want 3", p.Order[0].Line)
	}
}

func TestParseAllowsCommentsAndTrailingCommas(t *testing.T) {
	src := []byte(`{
		// a leading comment
		order: [
			{ cmd: "clear" }, // trailing comma above and below
		],
	}`)
	if _, err := Parse(src); err != nil {
		t.Errorf("Parse returned error on commented/trailing-comma input: %v", err)
	}
}

func TestParseUnquotedAndQuotedKeysAreEquivalent(t *testing.T) {
	src := []byte(`{
		"order": [
			{ "cmd": "clear" },
		],
	}`)
	p, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(p.Order) != 1 || p.Order[0].Cmd != "clear" {
		t.Errorf("quoted-key program did not parse the same as unquoted: %+v", p.Order)
	}
}

func TestParseEscapedBracesSurviveIntoMemory(t *testing.T) {
	src := []byte(`{
		order: [
			{ cmd: "print", text: "literal \{not a key\}" },
		],
	}`)
	p, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	textVal, _ := p.Order[0].Field("text")
	want := `literal \{not a key\}`
	if textVal.Str != want {
		t.Errorf("text = %q, want %q", textVal.Str, want)
	}
}

func TestParseMissingOrderIsError(t *testing.T) {
	src := []byte(`{ named_tasks: {} }`)
	if _, err := Parse(src); err == nil {
		t.Error("expected an error for a program with no order array")
	}
}

func TestParseMissingCmdIsError(t *testing.T) {
	src := []byte(`{ order: [ { text: "no cmd here" } ] }`)
	if _, err := Parse(src); err == nil {
		t.Error("expected an error for a task missing cmd")
	}
}

func TestParseNestedTasksArePreserved(t *testing.T) {
	src := []byte(`{
		order: [
			{ cmd: "serial", tasks: [
				{ cmd: "print", text: "a" },
				{ cmd: "print", text: "b" },
			]},
		],
	}`)
	p, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(p.Order[0].Tasks) != 2 {
		t.Fatalf("nested tasks = %d, want 2", len(p.Order[0].Tasks))
	}
}

func TestParseNamedTasksAndDefaultState(t *testing.T) {
	src := []byte(`{
		order: [ { cmd: "run_task", task_name: "greet" } ],
		named_tasks: {
			greet: { cmd: "print", text: "hi {name}" },
		},
		default_state: { inserts: { name: "Ada" } },
	}`)
	p, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	greet, ok := p.NamedTasks["greet"]
	if !ok || greet.Cmd != "print" {
		t.Fatalf("NamedTasks[greet] = %+v, %v", greet, ok)
	}
	nameVal, ok := p.DefaultState.Inserts.Get("name")
	if !ok || nameVal.Str != "Ada" {
		t.Errorf("DefaultState.Inserts[name] = %+v, %v, want %q, true", nameVal, ok, "Ada")
	}
}

func TestParseMalformedJSON5IsRejectedByProbe(t *testing.T) {
	src := []byte(`{ order: [ { cmd: "print" text: "missing comma" } ] }`)
	if _, err := Parse(src); err == nil {
		t.Error("expected an error for malformed JSON5")
	}
}
