package object

import (
	"context"
	"fmt"
)

// NativeFuncImpl is the signature of a host callback invocable from
// script: it receives the evaluated arguments and returns a result.
// A returned error is rethrown in the script as a thrown value.
type NativeFuncImpl func(ctx context.Context, args []Value) (Value, error)

// NativeFunc is a host callback registered with a VM's native bridge and
// callable like any other function.
type NativeFunc struct {
	base
	Name string
	Fn   NativeFuncImpl
}

func (n *NativeFunc) String() string   { return fmt.Sprintf("native func %s", n.Name) }
func (n *NativeFunc) TypeName() string { return "NativeFunction" }

// NativeHandle wraps an opaque host pointer. EngineOwned suppresses
// VM-initiated release of the host resource; Release, when set, notifies
// the host when the VM-side object is destroyed regardless.
type NativeHandle struct {
	base
	Ptr         any
	Type        string
	Release     func(ptr any)
	EngineOwned bool
}

func (n *NativeHandle) String() string { return fmt.Sprintf("<native %s>", n.Type) }

func (n *NativeHandle) TypeName() string {
	if n.Type != "" {
		return n.Type
	}
	return "Native"
}
