package object

import (
	"fmt"
	"strings"
)

// String is an immutable byte sequence. Strings compare by content.
type String struct {
	base
	Value string
}

func (s *String) String() string   { return s.Value }
func (s *String) TypeName() string { return "String" }

// Array is an ordered sequence of values.
type Array struct {
	base
	Items []Value
}

func (a *Array) String() string {
	parts := make([]string, len(a.Items))
	for i, item := range a.Items {
		parts[i] = item.Inspect()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (a *Array) TypeName() string { return "Array" }

// Map is a mapping from string keys to values with insertion order
// preserved.
type Map struct {
	base
	keys  []string
	items map[string]Value
}

// Len returns the number of entries.
func (m *Map) Len() int { return len(m.keys) }

// Keys returns the keys in insertion order.
func (m *Map) Keys() []string { return m.keys }

// Get returns the value for the key.
func (m *Map) Get(key string) (Value, bool) {
	v, ok := m.items[key]
	return v, ok
}

// Set assigns the key, preserving first-insertion order. It returns the
// previous value, if any, so the caller can release it.
func (m *Map) Set(key string, value Value) (prev Value, replaced bool) {
	if m.items == nil {
		m.items = map[string]Value{}
	}
	prev, replaced = m.items[key]
	if !replaced {
		m.keys = append(m.keys, key)
	}
	m.items[key] = value
	return prev, replaced
}

func (m *Map) String() string {
	if len(m.keys) == 0 {
		return "[:]"
	}
	parts := make([]string, 0, len(m.keys))
	for _, k := range m.keys {
		parts = append(parts, fmt.Sprintf("%q: %s", k, m.items[k].Inspect()))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (m *Map) TypeName() string { return "Dictionary" }

// Tuple is an ordered sequence of values with an optional parallel label
// sequence. An unlabeled component has an empty string label.
type Tuple struct {
	base
	Items  []Value
	Labels []string
}

// LabelIndex returns the index of the component with the given label.
func (t *Tuple) LabelIndex(label string) (int, bool) {
	for i, l := range t.Labels {
		if l == label && l != "" {
			return i, true
		}
	}
	return 0, false
}

func (t *Tuple) String() string {
	parts := make([]string, len(t.Items))
	for i, item := range t.Items {
		if i < len(t.Labels) && t.Labels[i] != "" {
			parts[i] = t.Labels[i] + ": " + item.Inspect()
		} else {
			parts[i] = item.Inspect()
		}
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func (t *Tuple) TypeName() string { return "Tuple" }

// Range is a bounded integer range produced by the ... and ..< operators.
type Range struct {
	base
	From      int64
	To        int64
	Inclusive bool
}

// Len returns the number of integers in the range.
func (r *Range) Len() int64 {
	n := r.To - r.From
	if r.Inclusive {
		n++
	}
	if n < 0 {
		return 0
	}
	return n
}

func (r *Range) String() string {
	if r.Inclusive {
		return fmt.Sprintf("%d...%d", r.From, r.To)
	}
	return fmt.Sprintf("%d..<%d", r.From, r.To)
}

func (r *Range) TypeName() string { return "Range" }
