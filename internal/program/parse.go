package program

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	json5 "github.com/titanous/json5"

	"github.com/tallowoak/taskline/internal/value"
)

// ParseError is a malformed-document error per §7, carrying the line the
// scanner had reached when it gave up. Line is 0 when the json5 validity
// gate in Parse rejected the document, since that library reports no line.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// Parse decodes a JSON5 program document into a Program.
//
// It first runs the document through github.com/titanous/json5's own
// Unmarshal purely as a validity gate: that library's decoder has seen far
// more real-world JSON5 than a bespoke one, so a document it rejects is
// reported with its message rather than this package's. The document is
// then walked a second time by rawParse below, which is hand-written
// because neither json5.Unmarshal nor encoding/json preserves int-vs-float
// literal shape or source line numbers, both of which §3/§6.1 require.
func Parse(src []byte) (*Program, error) {
	var probe any
	if err := json5.Unmarshal(src, &probe); err != nil {
		return nil, &ParseError{Msg: err.Error()}
	}

	root, err := rawParse(string(src))
	if err != nil {
		return nil, err
	}
	if root.kind != rawObject {
		return nil, &ParseError{Line: root.line, Msg: "program must be a JSON5 object"}
	}

	p := &Program{SourceText: string(src)}

	orderNode, ok := root.field("order")
	if !ok || orderNode.kind != rawArray {
		return nil, &ParseError{Line: root.line, Msg: "program requires an \"order\" array"}
	}
	for _, item := range orderNode.arr {
		t, err := buildTaskNode(item)
		if err != nil {
			return nil, err
		}
		p.Order = append(p.Order, t)
	}

	if namedNode, ok := root.field("named_tasks"); ok {
		if namedNode.kind != rawObject {
			return nil, &ParseError{Line: namedNode.line, Msg: "named_tasks must be an object"}
		}
		p.NamedTasks = make(map[string]*TaskNode)
		for _, f := range namedNode.obj {
			t, err := buildTaskNode(f.val)
			if err != nil {
				return nil, err
			}
			p.NamedTasks[f.key] = t
		}
	}

	if dsNode, ok := root.field("default_state"); ok {
		inserts := dsNode
		if insertsNode, ok := dsNode.field("inserts"); ok {
			inserts = insertsNode
		}
		v := rawToValue(inserts)
		if v.Kind == value.KindMap {
			p.DefaultState = DefaultState{Inserts: v.Map}
		} else {
			p.DefaultState = DefaultState{Inserts: value.NewOrderedMap()}
		}
	} else {
		p.DefaultState = DefaultState{Inserts: value.NewOrderedMap()}
	}

	if caNode, ok := root.field("completion_args"); ok {
		v := rawToValue(caNode)
		if v.Kind == value.KindMap {
			p.CompletionArgs = v.Map
		}
	}

	if ssNode, ok := root.field("save_states"); ok {
		v := rawToValue(ssNode)
		if v.Kind == value.KindMap {
			p.SaveStates = v.Map
		}
	}

	return p, nil
}

// buildTaskNode converts a raw object node into a TaskNode, recursively
// building any nested "tasks" array so serial/for/parallel_* commands
// don't need to re-parse their own body.
func buildTaskNode(n *rawNode) (*TaskNode, error) {
	if n.kind != rawObject {
		return nil, &ParseError{Line: n.line, Msg: "each task must be an object"}
	}
	cmdNode, ok := n.field("cmd")
	if !ok || cmdNode.kind != rawString {
		return nil, &ParseError{Line: n.line, Msg: "task is missing a string \"cmd\" field"}
	}

	fieldsVal := rawToValue(n)
	t := &TaskNode{
		Cmd:    cmdNode.str,
		Fields: fieldsVal.Map,
		Line:   n.line,
	}

	if tasksNode, ok := n.field("tasks"); ok {
		if tasksNode.kind != rawArray {
			return nil, &ParseError{Line: tasksNode.line, Msg: "\"tasks\" must be an array"}
		}
		for _, item := range tasksNode.arr {
			child, err := buildTaskNode(item)
			if err != nil {
				return nil, err
			}
			t.Tasks = append(t.Tasks, child)
		}
	}

	return t, nil
}

// --- rawNode: a line-annotated, int/float-distinguishing JSON5 tree ---

type rawKind int

const (
	rawNull rawKind = iota
	rawBool
	rawInt
	rawFloat
	rawString
	rawArray
	rawObject
)

type rawField struct {
	key string
	val *rawNode
}

type rawNode struct {
	kind rawKind
	line int

	b   bool
	i   int64
	f   float64
	str string
	arr []*rawNode
	obj []rawField
}

func (n *rawNode) field(key string) (*rawNode, bool) {
	if n == nil || n.kind != rawObject {
		return nil, false
	}
	for _, f := range n.obj {
		if f.key == key {
			return f.val, true
		}
	}
	return nil, false
}

func rawToValue(n *rawNode) value.Value {
	if n == nil {
		return value.Null()
	}
	switch n.kind {
	case rawNull:
		return value.Null()
	case rawBool:
		return value.Bool(n.b)
	case rawInt:
		return value.Int(n.i)
	case rawFloat:
		return value.Float(n.f)
	case rawString:
		return value.String(n.str)
	case rawArray:
		items := make([]value.Value, len(n.arr))
		for i, e := range n.arr {
			items[i] = rawToValue(e)
		}
		return value.List(items)
	case rawObject:
		m := value.NewOrderedMap()
		for _, f := range n.obj {
			m.Set(f.key, rawToValue(f.val))
		}
		return value.Map(m)
	}
	return value.Null()
}

// --- scanner ---

type scanner struct {
	src  []rune
	pos  int
	line int
}

func rawParse(src string) (*rawNode, error) {
	s := &scanner{src: []rune(src), line: 1}
	s.skipSpaceAndComments()
	n, err := s.parseValue()
	if err != nil {
		return nil, err
	}
	s.skipSpaceAndComments()
	return n, nil
}

func (s *scanner) errf(format string, args ...any) error {
	return &ParseError{Line: s.line, Msg: fmt.Sprintf(format, args...)}
}

func (s *scanner) peek() rune {
	if s.pos >= len(s.src) {
		return 0
	}
	return s.src[s.pos]
}

func (s *scanner) advance() rune {
	r := s.src[s.pos]
	s.pos++
	if r == '\n' {
		s.line++
	}
	return r
}

func (s *scanner) skipSpaceAndComments() {
	for s.pos < len(s.src) {
		c := s.peek()
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			s.advance()
		case c == '/' && s.pos+1 < len(s.src) && s.src[s.pos+1] == '/':
			for s.pos < len(s.src) && s.peek() != '\n' {
				s.pos++
			}
		case c == '/' && s.pos+1 < len(s.src) && s.src[s.pos+1] == '*':
			s.pos += 2
			for s.pos < len(s.src) {
				if s.peek() == '*' && s.pos+1 < len(s.src) && s.src[s.pos+1] == '/' {
					s.pos += 2
					break
				}
				s.advance()
			}
		case c == ',':
			// trailing commas are skipped contextually by callers; a bare
			// comma here is whitespace-equivalent between skip calls.
			return
		default:
			return
		}
	}
}

func (s *scanner) parseValue() (*rawNode, error) {
	s.skipSpaceAndComments()
	line := s.line
	if s.pos >= len(s.src) {
		return nil, s.errf("unexpected end of input")
	}
	switch c := s.peek(); {
	case c == '{':
		return s.parseObject()
	case c == '[':
		return s.parseArray()
	case c == '"' || c == '\'':
		str, err := s.parseString()
		if err != nil {
			return nil, err
		}
		return &rawNode{kind: rawString, str: str, line: line}, nil
	case c == '-' || c == '+' || (c >= '0' && c <= '9') || c == '.':
		return s.parseNumber()
	case unicode.IsLetter(c) || c == '_' || c == '$':
		return s.parseKeyword()
	}
	return nil, s.errf("unexpected character %q", s.peek())
}

func (s *scanner) parseObject() (*rawNode, error) {
	line := s.line
	s.advance() // '{'
	n := &rawNode{kind: rawObject, line: line}
	for {
		s.skipSpaceAndComments()
		if s.peek() == '}' {
			s.advance()
			return n, nil
		}
		if s.peek() == ',' {
			s.advance()
			continue
		}
		key, err := s.parseKey()
		if err != nil {
			return nil, err
		}
		s.skipSpaceAndComments()
		if s.peek() != ':' {
			return nil, s.errf("expected ':' after object key %q", key)
		}
		s.advance()
		val, err := s.parseValue()
		if err != nil {
			return nil, err
		}
		n.obj = append(n.obj, rawField{key: key, val: val})
		s.skipSpaceAndComments()
		if s.peek() == ',' {
			s.advance()
			continue
		}
		if s.peek() == '}' {
			s.advance()
			return n, nil
		}
		return nil, s.errf("expected ',' or '}' in object")
	}
}

func (s *scanner) parseKey() (string, error) {
	s.skipSpaceAndComments()
	c := s.peek()
	if c == '"' || c == '\'' {
		return s.parseString()
	}
	start := s.pos
	for s.pos < len(s.src) {
		r := s.src[s.pos]
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '$' {
			s.pos++
			continue
		}
		break
	}
	if s.pos == start {
		return "", s.errf("expected an object key")
	}
	return string(s.src[start:s.pos]), nil
}

func (s *scanner) parseArray() (*rawNode, error) {
	line := s.line
	s.advance() // '['
	n := &rawNode{kind: rawArray, line: line}
	for {
		s.skipSpaceAndComments()
		if s.peek() == ']' {
			s.advance()
			return n, nil
		}
		if s.peek() == ',' {
			s.advance()
			continue
		}
		val, err := s.parseValue()
		if err != nil {
			return nil, err
		}
		n.arr = append(n.arr, val)
		s.skipSpaceAndComments()
		if s.peek() == ',' {
			s.advance()
			continue
		}
		if s.peek() == ']' {
			s.advance()
			return n, nil
		}
		return nil, s.errf("expected ',' or ']' in array")
	}
}

// parseString scans a single- or double-quoted JSON5 string. A backslash
// followed by { or } is passed through unchanged (both characters kept)
// rather than treated as an unrecognized escape, per §6's requirement that
// escaped braces survive into in-memory strings untouched.
func (s *scanner) parseString() (string, error) {
	quote := s.advance()
	var b strings.Builder
	for {
		if s.pos >= len(s.src) {
			return "", s.errf("unterminated string literal")
		}
		c := s.advance()
		if c == quote {
			return b.String(), nil
		}
		if c != '\\' {
			b.WriteRune(c)
			continue
		}
		if s.pos >= len(s.src) {
			return "", s.errf("unterminated escape sequence")
		}
		next := s.peek()
		switch next {
		case '{', '}':
			b.WriteRune('\\')
			b.WriteRune(next)
			s.advance()
		case 'n':
			b.WriteRune('\n')
			s.advance()
		case 't':
			b.WriteRune('\t')
			s.advance()
		case 'r':
			b.WriteRune('\r')
			s.advance()
		case '"', '\'', '\\', '/':
			b.WriteRune(next)
			s.advance()
		case '\n':
			// line continuation: JSON5 allows an escaped newline in strings
			s.advance()
		default:
			b.WriteRune('\\')
			b.WriteRune(next)
			s.advance()
		}
	}
}

func (s *scanner) parseNumber() (*rawNode, error) {
	line := s.line
	start := s.pos
	isFloat := false
	if s.peek() == '-' || s.peek() == '+' {
		s.pos++
	}
	for s.pos < len(s.src) && s.src[s.pos] >= '0' && s.src[s.pos] <= '9' {
		s.pos++
	}
	if s.pos < len(s.src) && s.src[s.pos] == '.' {
		isFloat = true
		s.pos++
		for s.pos < len(s.src) && s.src[s.pos] >= '0' && s.src[s.pos] <= '9' {
			s.pos++
		}
	}
	if s.pos < len(s.src) && (s.src[s.pos] == 'e' || s.src[s.pos] == 'E') {
		isFloat = true
		s.pos++
		if s.pos < len(s.src) && (s.src[s.pos] == '+' || s.src[s.pos] == '-') {
			s.pos++
		}
		for s.pos < len(s.src) && s.src[s.pos] >= '0' && s.src[s.pos] <= '9' {
			s.pos++
		}
	}
	text := string(s.src[start:s.pos])
	if isFloat {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, s.errf("invalid number %q", text)
		}
		return &rawNode{kind: rawFloat, f: f, line: line}, nil
	}
	i, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return nil, s.errf("invalid number %q", text)
	}
	return &rawNode{kind: rawInt, i: i, line: line}, nil
}

func (s *scanner) parseKeyword() (*rawNode, error) {
	line := s.line
	start := s.pos
	for s.pos < len(s.src) && (unicode.IsLetter(s.src[s.pos]) || unicode.IsDigit(s.src[s.pos]) || s.src[s.pos] == '_') {
		s.pos++
	}
	word := string(s.src[start:s.pos])
	switch word {
	case "true":
		return &rawNode{kind: rawBool, b: true, line: line}, nil
	case "false":
		return &rawNode{kind: rawBool, b: false, line: line}, nil
	case "null":
		return &rawNode{kind: rawNull, line: line}, nil
	}
	return nil, s.errf("unexpected identifier %q", word)
}
