package object

import (
	"fmt"
	"strings"
)

// Method is a named callable attached to a class, struct, or enum type.
// Mutating marks struct methods that may reassign self.
type Method struct {
	Fn       *Closure
	Mutating bool
}

// PropertyDef describes a stored property: its default value and optional
// willSet/didSet observers.
type PropertyDef struct {
	Name    string
	Default Value
	WillSet *Closure
	DidSet  *Closure
}

// ComputedDef describes a computed property: a getter and an optional
// setter.
type ComputedDef struct {
	Name   string
	Getter *Closure
	Setter *Closure
}

// Class is a runtime type object for both classes and structs; IsStruct
// selects value semantics. Method and property descriptors are copied down
// from the superclass at INHERIT time so lookup never walks a chain.
type Class struct {
	base
	Name     string
	Super    *Class
	IsStruct bool

	MethodOrder []string
	Methods     map[string]*Method

	// Props are the stored property descriptors in declaration order.
	Props     []*PropertyDef
	propIndex map[string]int

	Computed map[string]*ComputedDef

	// Protocols lists conformed protocol names.
	Protocols []string
}

// AddMethod attaches a method, replacing any inherited one with the same
// name.
func (c *Class) AddMethod(name string, m *Method) {
	if c.Methods == nil {
		c.Methods = map[string]*Method{}
	}
	if _, exists := c.Methods[name]; !exists {
		c.MethodOrder = append(c.MethodOrder, name)
	}
	c.Methods[name] = m
}

// Method returns the named method.
func (c *Class) Method(name string) (*Method, bool) {
	m, ok := c.Methods[name]
	return m, ok
}

// AddProperty appends a stored property descriptor.
func (c *Class) AddProperty(p *PropertyDef) {
	if c.propIndex == nil {
		c.propIndex = map[string]int{}
	}
	if i, exists := c.propIndex[p.Name]; exists {
		c.Props[i] = p
		return
	}
	c.propIndex[p.Name] = len(c.Props)
	c.Props = append(c.Props, p)
}

// Property returns the named stored property descriptor.
func (c *Class) Property(name string) (*PropertyDef, bool) {
	i, ok := c.propIndex[name]
	if !ok {
		return nil, false
	}
	return c.Props[i], true
}

// AddComputed attaches a computed property descriptor.
func (c *Class) AddComputed(d *ComputedDef) {
	if c.Computed == nil {
		c.Computed = map[string]*ComputedDef{}
	}
	c.Computed[d.Name] = d
}

// ComputedProperty returns the named computed property descriptor.
func (c *Class) ComputedProperty(name string) (*ComputedDef, bool) {
	d, ok := c.Computed[name]
	return d, ok
}

// ConformsTo reports whether the class lists the protocol by name, or
// satisfies the given requirement sets by name matching.
func (c *Class) ConformsTo(name string, methods, properties []string) bool {
	for _, p := range c.Protocols {
		if p == name {
			return true
		}
	}
	for _, m := range methods {
		if _, ok := c.Methods[m]; !ok {
			return false
		}
	}
	if len(methods) == 0 && len(properties) == 0 {
		return false
	}
	for _, p := range properties {
		if _, ok := c.Property(p); ok {
			continue
		}
		if _, ok := c.ComputedProperty(p); !ok {
			return false
		}
	}
	return true
}

func (c *Class) String() string {
	if c.IsStruct {
		return fmt.Sprintf("struct %s", c.Name)
	}
	return fmt.Sprintf("class %s", c.Name)
}

func (c *Class) TypeName() string { return c.Name }

// Instance is an instance of a class or struct: the type handle plus a
// stored-field map.
type Instance struct {
	base
	Class  *Class
	fields map[string]Value
	order  []string
}

// Field returns the named stored field.
func (i *Instance) Field(name string) (Value, bool) {
	v, ok := i.fields[name]
	return v, ok
}

// SetField assigns a stored field, returning the previous value for the
// caller to release.
func (i *Instance) SetField(name string, v Value) (prev Value, replaced bool) {
	if i.fields == nil {
		i.fields = map[string]Value{}
	}
	prev, replaced = i.fields[name]
	if !replaced {
		i.order = append(i.order, name)
	}
	i.fields[name] = v
	return prev, replaced
}

// FieldNames returns stored field names in insertion order.
func (i *Instance) FieldNames() []string { return i.order }

func (i *Instance) String() string {
	parts := make([]string, 0, len(i.order))
	for _, name := range i.order {
		parts = append(parts, fmt.Sprintf("%s: %s", name, i.fields[name].Inspect()))
	}
	return fmt.Sprintf("%s(%s)", i.Class.Name, strings.Join(parts, ", "))
}

func (i *Instance) TypeName() string { return i.Class.Name }

// Protocol is a runtime protocol descriptor: requirement names used for
// conformance checks by the type operators.
type Protocol struct {
	base
	Name       string
	Methods    []string
	Properties []string
}

func (p *Protocol) String() string   { return fmt.Sprintf("protocol %s", p.Name) }
func (p *Protocol) TypeName() string { return p.Name }
