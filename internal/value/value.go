// Package value implements the tagged variant used by every inserts entry
// and every task field once interpolated.
package value

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind discriminates the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindMap
)

// Value is a tagged union over null, bool, int64, float64, string, an
// ordered list of Value, and a string-keyed mapping of Value.
//
// Only the field matching Kind is meaningful; the zero Value is KindNull.
type Value struct {
	Kind Kind

	Bool   bool
	Int    int64
	Float  float64
	Str    string
	List   []Value
	Map    *OrderedMap
}

func Null() Value               { return Value{Kind: KindNull} }
func Bool(b bool) Value         { return Value{Kind: KindBool, Bool: b} }
func Int(i int64) Value         { return Value{Kind: KindInt, Int: i} }
func Float(f float64) Value     { return Value{Kind: KindFloat, Float: f} }
func String(s string) Value     { return Value{Kind: KindString, Str: s} }
func List(items []Value) Value  { return Value{Kind: KindList, List: items} }
func Map(m *OrderedMap) Value   { return Value{Kind: KindMap, Map: m} }

func (v Value) IsNull() bool { return v.Kind == KindNull }

// OrderedMap is a string-keyed map that remembers insertion order (Keys
// returns keys in that order). to_display(mapping), and so show_inserts,
// renders keys sorted rather than in insertion order.
type OrderedMap struct {
	keys   []string
	values map[string]Value
}

func NewOrderedMap() *OrderedMap {
	return &OrderedMap{values: make(map[string]Value)}
}

func (m *OrderedMap) Set(key string, v Value) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
}

func (m *OrderedMap) Get(key string) (Value, bool) {
	v, ok := m.values[key]
	return v, ok
}

func (m *OrderedMap) Delete(key string) {
	if _, ok := m.values[key]; !ok {
		return
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

func (m *OrderedMap) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

func (m *OrderedMap) Len() int { return len(m.keys) }

// State is everything a save slot needs to resume a program later: which
// top-level task is next and the full inserts snapshot at that point.
// taskline itself never writes one to disk — that belongs to whatever
// savestate.Collaborator the host process supplies — but the type lives
// here so both internal/taskrun and internal/savestate can share it
// without either importing the other.
type State struct {
	OrderIndex int
	Inserts    *OrderedMap
}

// Equal implements structural equality per §4.1: int/float compare equal
// only when the float exactly equals the integer; bool and int never
// compare equal even when numerically coincident.
func Equal(a, b Value) bool {
	switch {
	case a.Kind == KindInt && b.Kind == KindFloat:
		return float64(a.Int) == b.Float
	case a.Kind == KindFloat && b.Kind == KindInt:
		return a.Float == float64(b.Int)
	case a.Kind != b.Kind:
		return false
	}

	switch a.Kind {
	case KindNull:
		return true
	case KindBool:
		return a.Bool == b.Bool
	case KindInt:
		return a.Int == b.Int
	case KindFloat:
		return a.Float == b.Float
	case KindString:
		return a.Str == b.Str
	case KindList:
		if len(a.List) != len(b.List) {
			return false
		}
		for i := range a.List {
			if !Equal(a.List[i], b.List[i]) {
				return false
			}
		}
		return true
	case KindMap:
		ak, bk := a.Map.Keys(), b.Map.Keys()
		if len(ak) != len(bk) {
			return false
		}
		seen := make(map[string]bool, len(ak))
		for _, k := range ak {
			seen[k] = true
		}
		for _, k := range bk {
			if !seen[k] {
				return false
			}
		}
		for _, k := range ak {
			av, _ := a.Map.Get(k)
			bv, _ := b.Map.Get(k)
			if !Equal(av, bv) {
				return false
			}
		}
		return true
	}
	return false
}

// ToDisplay renders v the way interpolation and the trailing "last output"
// print do. Lists concatenate their elements with no separator: this
// matches ''-join semantics, not a debug repr.
func ToDisplay(v Value) string {
	switch v.Kind {
	case KindNull:
		return ""
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return formatFloat(v.Float)
	case KindString:
		return v.Str
	case KindList:
		var b strings.Builder
		for _, item := range v.List {
			b.WriteString(ToDisplay(item))
		}
		return b.String()
	case KindMap:
		return canonicalText(v)
	}
	return ""
}

// formatFloat yields the shortest round-trippable decimal, trimming
// trailing zeros but keeping at least one fractional digit.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// canonicalText renders a mapping as JSON5-like text, used only by
// show_inserts.
func canonicalText(v Value) string {
	var b strings.Builder
	writeCanonical(&b, v, 0)
	return b.String()
}

func writeCanonical(b *strings.Builder, v Value, indent int) {
	pad := strings.Repeat("  ", indent)
	switch v.Kind {
	case KindMap:
		b.WriteString("{\n")
		keys := v.Map.Keys()
		sort.Strings(keys)
		for _, k := range keys {
			val, _ := v.Map.Get(k)
			b.WriteString(pad + "  " + k + ": ")
			writeCanonical(b, val, indent+1)
			b.WriteString("\n")
		}
		b.WriteString(pad + "}")
	case KindList:
		b.WriteString("[\n")
		for _, item := range v.List {
			b.WriteString(pad + "  ")
			writeCanonical(b, item, indent+1)
			b.WriteString(",\n")
		}
		b.WriteString(pad + "]")
	case KindString:
		b.WriteString(fmt.Sprintf("%q", v.Str))
	default:
		b.WriteString(ToDisplay(v))
	}
}
