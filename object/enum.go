package object

import (
	"fmt"
	"strings"
)

// EnumCaseDef describes one declared case of an enum type: its name, an
// optional raw value, and the labels of its associated values.
type EnumCaseDef struct {
	Name        string
	HasRaw      bool
	Raw         Value
	AssocLabels []string
}

// EnumType is a runtime enum type object.
type EnumType struct {
	base
	Name  string
	Cases []*EnumCaseDef

	MethodOrder []string
	Methods     map[string]*Method
	Computed    map[string]*ComputedDef
}

// CaseIndex returns the index of the named case.
func (e *EnumType) CaseIndex(name string) (int, bool) {
	for i, c := range e.Cases {
		if c.Name == name {
			return i, true
		}
	}
	return 0, false
}

// AddCase registers a case definition.
func (e *EnumType) AddCase(def *EnumCaseDef) {
	e.Cases = append(e.Cases, def)
}

// AddMethod attaches a method to the enum type.
func (e *EnumType) AddMethod(name string, m *Method) {
	if e.Methods == nil {
		e.Methods = map[string]*Method{}
	}
	if _, exists := e.Methods[name]; !exists {
		e.MethodOrder = append(e.MethodOrder, name)
	}
	e.Methods[name] = m
}

// AddComputed attaches a computed property to the enum type.
func (e *EnumType) AddComputed(d *ComputedDef) {
	if e.Computed == nil {
		e.Computed = map[string]*ComputedDef{}
	}
	e.Computed[d.Name] = d
}

func (e *EnumType) String() string   { return fmt.Sprintf("enum %s", e.Name) }
func (e *EnumType) TypeName() string { return e.Name }

// EnumCase is a runtime enum value: the enum-type handle, the case index,
// the optional raw value, and any associated values.
type EnumCase struct {
	base
	Enum      *EnumType
	CaseIndex int
	Raw       Value
	Assoc     []Value
}

// CaseName returns the declared name of the case.
func (c *EnumCase) CaseName() string {
	return c.Enum.Cases[c.CaseIndex].Name
}

// SameCase reports whether two enum values are the same case of the same
// enum with equal associated values.
func (c *EnumCase) SameCase(other *EnumCase) bool {
	if c.Enum != other.Enum || c.CaseIndex != other.CaseIndex {
		return false
	}
	if len(c.Assoc) != len(other.Assoc) {
		return false
	}
	for i := range c.Assoc {
		if !c.Assoc[i].Equals(other.Assoc[i]) {
			return false
		}
	}
	return true
}

func (c *EnumCase) String() string {
	name := fmt.Sprintf("%s.%s", c.Enum.Name, c.CaseName())
	if len(c.Assoc) == 0 {
		return name
	}
	labels := c.Enum.Cases[c.CaseIndex].AssocLabels
	parts := make([]string, len(c.Assoc))
	for i, v := range c.Assoc {
		if i < len(labels) && labels[i] != "" {
			parts[i] = labels[i] + ": " + v.Inspect()
		} else {
			parts[i] = v.Inspect()
		}
	}
	return fmt.Sprintf("%s(%s)", name, strings.Join(parts, ", "))
}

func (c *EnumCase) TypeName() string { return c.Enum.Name }
