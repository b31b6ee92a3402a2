package object

import (
	"fmt"
	"strings"

	"github.com/sunscript-lang/sunscript/bytecode"
)

// Function is a runtime function template: parameter names and labels,
// default values, and a pointer to the compiled body. A Function becomes
// callable when wrapped in a Closure.
type Function struct {
	base
	Name   string
	Params []string
	Labels []string

	// Defaults holds default parameter values; HasDefault is the parallel
	// presence vector.
	Defaults   []Value
	HasDefault []bool

	Body *bytecode.Chunk

	// Proto carries the upvalue descriptors used by the CLOSURE handler.
	Proto *bytecode.FunctionProto

	IsInitializer bool
	IsOverride    bool
}

// RequiredParamCount returns the number of parameters lacking a default.
func (f *Function) RequiredParamCount() int {
	n := 0
	for i := range f.Params {
		if i >= len(f.HasDefault) || !f.HasDefault[i] {
			n++
		}
	}
	return n
}

func (f *Function) String() string {
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		if i < len(f.Labels) && f.Labels[i] != "" && f.Labels[i] != p {
			params[i] = f.Labels[i] + " " + p
		} else {
			params[i] = p
		}
	}
	if f.Name == "" {
		return fmt.Sprintf("func(%s)", strings.Join(params, ", "))
	}
	return fmt.Sprintf("func %s(%s)", f.Name, strings.Join(params, ", "))
}

func (f *Function) TypeName() string { return "Function" }

// Closure is a callable instance of a Function together with its captured
// upvalues, one per upvalue declared by the function's prototype.
type Closure struct {
	base
	Fn       *Function
	Upvalues []*Upvalue
}

func (c *Closure) String() string   { return c.Fn.String() }
func (c *Closure) TypeName() string { return "Function" }

// Name returns the underlying function name.
func (c *Closure) Name() string { return c.Fn.Name }

// Upvalue mediates a closure's access to a variable from an enclosing
// scope. While open it points at a live operand-stack slot; when the slot
// leaves scope the upvalue closes over a copy and owns it from then on.
type Upvalue struct {
	base

	// Location points at the live stack slot while open, and at &closed
	// after closing.
	Location *Value

	// Slot is the absolute operand-stack index while open; -1 once closed.
	Slot int

	closed Value
}

// Get returns the current value of the captured variable.
func (u *Upvalue) Get() Value { return *u.Location }

// Set updates the captured variable.
func (u *Upvalue) Set(v Value) { *u.Location = v }

// IsClosed reports whether the upvalue owns its value.
func (u *Upvalue) IsClosed() bool { return u.Slot < 0 }

// Close copies the referenced stack slot inward so the upvalue owns the
// value and no longer points into the stack.
func (u *Upvalue) Close() {
	u.closed = *u.Location
	u.Location = &u.closed
	u.Slot = -1
}

func (u *Upvalue) String() string   { return fmt.Sprintf("upvalue(%s)", u.Get()) }
func (u *Upvalue) TypeName() string { return "Upvalue" }
