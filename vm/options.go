package vm

import (
	"bufio"
	"io"

	"github.com/sunscript-lang/sunscript/object"
)

// Option configures a VM at construction time.
type Option func(*VM)

// WithOutput sets the writer for PRINT output. The default is stdout.
func WithOutput(w io.Writer) Option {
	return func(vm *VM) {
		vm.output = w
	}
}

// WithErrorOutput sets the writer for uncaught-error reports. The default
// is stderr.
func WithErrorOutput(w io.Writer) Option {
	return func(vm *VM) {
		vm.errOut = w
	}
}

// WithInput sets the reader for READ_LINE. The default is stdin.
func WithInput(r io.Reader) Option {
	return func(vm *VM) {
		vm.input = bufio.NewReader(r)
	}
}

// WithStackSize sets the operand stack capacity. Crossing the cap raises
// a stack-overflow error.
func WithStackSize(n int) Option {
	return func(vm *VM) {
		if n > 0 {
			vm.stack = make([]object.Value, n)
		}
	}
}

// WithDebugger attaches a debug controller. The controller's instruction
// hook runs at every instruction boundary.
func WithDebugger(d *Debugger) Option {
	return func(vm *VM) {
		vm.debugger = d
	}
}

// WithNative registers a host callback under the given global name.
// This option is additive.
func WithNative(name string, fn object.NativeFuncImpl) Option {
	return func(vm *VM) {
		vm.RegisterNative(name, fn)
	}
}
