package program

import "testing"

func mustParse(t *testing.T, src string) *Program {
	t.Helper()
	p, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	return p
}

func TestAnalyzeAcceptsWellFormedProgram(t *testing.T) {
	p := mustParse(t, `{
		order: [
			{ cmd: "print", text: "hi" },
			{ cmd: "sleep", seconds: 1 },
		],
	}`)
	if errs := Analyze(p); len(errs) != 0 {
		t.Errorf("Analyze found unexpected errors: %v", errs)
	}
}

func TestAnalyzeRejectsUnknownCommand(t *testing.T) {
	p := mustParse(t, `{ order: [ { cmd: "not_a_real_command" } ] }`)
	errs := Analyze(p)
	if len(errs) != 1 {
		t.Fatalf("Analyze found %d errors, want 1", len(errs))
	}
}

func TestAnalyzeRejectsMissingRequiredField(t *testing.T) {
	p := mustParse(t, `{ order: [ { cmd: "print" } ] }`)
	errs := Analyze(p)
	if len(errs) != 1 {
		t.Fatalf("Analyze found %d errors, want 1 (missing \"text\")", len(errs))
	}
}

func TestAnalyzeCollectsEveryError(t *testing.T) {
	p := mustParse(t, `{
		order: [
			{ cmd: "bogus_one" },
			{ cmd: "bogus_two" },
			{ cmd: "print" },
		],
	}`)
	errs := Analyze(p)
	if len(errs) != 3 {
		t.Fatalf("Analyze found %d errors, want 3: %v", len(errs), errs)
	}
}

func TestAnalyzeRejectsUnresolvableLiteralGotoLabel(t *testing.T) {
	p := mustParse(t, `{
		order: [
			{ cmd: "goto", name: "nowhere" },
		],
	}`)
	errs := Analyze(p)
	if len(errs) != 1 {
		t.Fatalf("Analyze found %d errors, want 1", len(errs))
	}
}

func TestAnalyzeAcceptsGotoToLabelInSameTopLevelList(t *testing.T) {
	p := mustParse(t, `{
		order: [
			{ cmd: "label", name: "top" },
			{ cmd: "goto", name: "top" },
		],
	}`)
	if errs := Analyze(p); len(errs) != 0 {
		t.Errorf("Analyze found unexpected errors: %v", errs)
	}
}

func TestAnalyzeAcceptsGotoToLabelDefinedInSameNestedList(t *testing.T) {
	p := mustParse(t, `{
		order: [
			{ cmd: "serial", tasks: [
				{ cmd: "label", name: "inner" },
				{ cmd: "goto", name: "inner" },
			]},
		],
	}`)
	if errs := Analyze(p); len(errs) != 0 {
		t.Errorf("Analyze found unexpected errors: %v", errs)
	}
}

func TestAnalyzeAcceptsGotoToLabelInEnclosingList(t *testing.T) {
	p := mustParse(t, `{
		order: [
			{ cmd: "label", name: "outer" },
			{ cmd: "serial", tasks: [
				{ cmd: "goto", name: "outer" },
			]},
		],
	}`)
	if errs := Analyze(p); len(errs) != 0 {
		t.Errorf("Analyze found unexpected errors: %v", errs)
	}
}
