// Package vm provides the SunScript virtual machine: a single-threaded
// stack VM executing compiled bytecode chunks, with deterministic
// reference-counted object lifetime and an embedded debug controller.
package vm

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sunscript-lang/sunscript/bytecode"
	"github.com/sunscript-lang/sunscript/errz"
	"github.com/sunscript-lang/sunscript/object"
	"github.com/sunscript-lang/sunscript/op"
)

const (
	// DefaultStackSize is the operand stack capacity. The stack is
	// allocated once so open upvalues can hold stable slot pointers.
	DefaultStackSize = 1024

	// MaxFrameDepth bounds the call stack.
	MaxFrameDepth = 256

	// MaxArgs bounds the argument count of one call.
	MaxArgs = 255
)

// State is the VM execution state.
type State int

const (
	// Idle means execution has not started.
	Idle State = iota
	// Running means the dispatch loop is active.
	Running
	// PausedState means the debug controller is holding the VM.
	PausedState
	// Faulted means an uncaught error terminated execution.
	Faulted
	// Halted means execution finished.
	Halted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case PausedState:
		return "paused"
	case Faulted:
		return "faulted"
	case Halted:
		return "halted"
	}
	return "invalid"
}

// handler is one active do/catch region.
type handler struct {
	frameIndex int
	stackBase  int
	catchIP    int
}

// VM executes compiled SunScript bytecode.
type VM struct {
	heap  *object.Heap
	stack []object.Value
	sp    int // next free slot

	frames []frame
	fp     int // active frame count

	chunk *bytecode.Chunk
	ip    int

	globals      map[string]object.Value
	globalOrder  []string
	openUpvalues []*object.Upvalue // sorted by slot, ascending
	handlers     []handler

	natives map[string]*object.NativeFunc

	debugger *Debugger
	state    State

	// unwound is set when a throw unwinds past an inline-call sentinel
	// frame; the interrupted instruction aborts without re-raising.
	unwound bool

	output io.Writer
	errOut io.Writer
	input  *bufio.Reader

	ctx context.Context
}

// New creates a VM with the given options.
func New(opts ...Option) *VM {
	vm := &VM{
		heap:    object.NewHeap(),
		stack:   make([]object.Value, DefaultStackSize),
		frames:  make([]frame, MaxFrameDepth),
		globals: map[string]object.Value{},
		natives: map[string]*object.NativeFunc{},
		output:  os.Stdout,
		errOut:  os.Stderr,
		input:   bufio.NewReader(os.Stdin),
	}
	for _, opt := range opts {
		opt(vm)
	}
	registerBuiltins(vm)
	return vm
}

// Heap returns the VM's object heap.
func (vm *VM) Heap() *object.Heap {
	return vm.heap
}

// State returns the current execution state.
func (vm *VM) State() State {
	return vm.state
}

// Debugger returns the attached debug controller, or nil.
func (vm *VM) Debugger() *Debugger {
	return vm.debugger
}

// Global returns a global by name.
func (vm *VM) Global(name string) (object.Value, error) {
	v, ok := vm.globals[name]
	if !ok {
		return object.Null, errz.Newf(errz.ErrNotFound, errz.SourceLocation{}, nil, "global %q not found", name)
	}
	return v, nil
}

// SetGlobal defines or replaces a global, retaining the new value.
func (vm *VM) SetGlobal(name string, v object.Value) {
	vm.heap.Retain(v)
	if old, ok := vm.globals[name]; ok {
		vm.heap.Release(old)
	} else {
		vm.globalOrder = append(vm.globalOrder, name)
	}
	vm.globals[name] = v
	vm.heap.Drain()
}

// Run executes the chunk to completion and returns the value left on top
// of the stack (the script result), or Null when none.
func (vm *VM) Run(ctx context.Context, chunk *bytecode.Chunk) (object.Value, error) {
	if vm.state == Running || vm.state == PausedState {
		return object.Null, errz.Newf(errz.ErrInvalidArg, errz.SourceLocation{}, nil, "vm is already running")
	}
	vm.ctx = ctx
	vm.chunk = chunk
	vm.ip = 0
	// Slot 0 of the main frame stands in for the callee slot that every
	// other frame has; the compiler numbers top-level locals from slot 1.
	vm.stack[0] = object.Null
	vm.sp = 1
	vm.fp = 1
	vm.frames[0] = frame{base: 0, returnIP: stopSignal, name: "<main>"}
	vm.state = Running

	if vm.debugger != nil {
		vm.debugger.attach(vm)
		vm.debugger.onEntry()
	}

	err := vm.dispatchLoop(0)
	if vm.debugger != nil {
		vm.debugger.onTerminated()
	}
	if err != nil {
		vm.state = Faulted
		if e, ok := err.(*errz.Error); ok {
			fmt.Fprintln(vm.errOut, e.FriendlyErrorMessage())
		} else {
			fmt.Fprintln(vm.errOut, err)
		}
		return object.Null, err
	}
	vm.state = Halted
	var result object.Value = object.Null
	if vm.sp > 0 {
		result = vm.stack[vm.sp-1]
	}
	return result, nil
}

// stopSignal as a frame return address makes the dispatch loop exit when
// that frame returns.
const stopSignal = -1

// dispatchLoop runs instructions until the frame at stopFP returns or the
// chunk halts. Nested invocations implement inline accessor and observer
// calls.
func (vm *VM) dispatchLoop(stopFP int) error {
	for {
		if vm.ctx != nil {
			select {
			case <-vm.ctx.Done():
				return errz.Newf(errz.ErrRuntime, vm.location(), nil, "execution cancelled")
			default:
			}
		}

		opIP := vm.ip
		opcode := op.Code(vm.chunk.Code[vm.ip])
		vm.ip++

		halted, err := vm.dispatch(opcode)
		if err != nil {
			if err == errUnwound {
				// Control already transferred to a catch block. If that block
				// lives outside this loop's region, keep propagating.
				if vm.fp <= stopFP {
					return errUnwound
				}
			} else {
				caught, cerr := vm.raise(err)
				if cerr != nil {
					return cerr
				}
				if !caught {
					return err
				}
			}
		}

		// Deferred destruction: objects whose refcount reached zero during
		// this instruction are destroyed only at the boundary.
		vm.heap.Drain()

		if vm.debugger != nil {
			vm.debugger.instructionHook(opIP)
			if vm.debugger.isDisconnected() {
				return nil
			}
		}
		if halted {
			return nil
		}
		if vm.fp <= stopFP {
			return nil
		}
	}
}

// location reports the source position of the current instruction.
func (vm *VM) location() errz.SourceLocation {
	ip := vm.ip - 1
	if ip < 0 {
		ip = 0
	}
	loc := errz.SourceLocation{Line: vm.chunk.LineForOffset(ip)}
	if vm.chunk.Debug != nil {
		loc.File = vm.chunk.Debug.SourceFile
	}
	return loc
}

// captureStack builds a script stack trace, innermost frame first.
func (vm *VM) captureStack() []errz.StackFrame {
	var frames []errz.StackFrame
	for i := vm.fp - 1; i >= 0; i-- {
		f := &vm.frames[i]
		name := f.name
		if name == "" {
			name = "<anonymous>"
		}
		chunk := vm.chunk
		ip := vm.ip - 1
		if i < vm.fp-1 {
			chunk = vm.frames[i+1].returnChunk
			ip = vm.frames[i+1].returnIP - 1
		}
		loc := errz.SourceLocation{}
		if chunk != nil {
			loc.Line = chunk.LineForOffset(ip)
			if chunk.Debug != nil {
				loc.File = chunk.Debug.SourceFile
			}
		}
		frames = append(frames, errz.StackFrame{Function: name, Location: loc})
	}
	return frames
}

// runtimeError creates a structured runtime error at the current location.
func (vm *VM) runtimeError(format string, args ...any) error {
	return errz.Newf(errz.ErrRuntime, vm.location(), vm.captureStack(), format, args...)
}

// raise converts an error into a thrown value and transfers control to
// the innermost handler. It reports whether the throw was caught.
func (vm *VM) raise(err error) (bool, error) {
	return vm.throwValue(vm.heap.NewStringValue(err.Error()), err)
}

// throwValue unwinds to the nearest handler with the thrown value. When no
// handler is active the original error (or one formed from the value) is
// returned for the caller to surface.
func (vm *VM) throwValue(thrown object.Value, origin error) (bool, error) {
	if len(vm.handlers) == 0 {
		vm.heap.Release(thrown)
		if origin != nil {
			return false, origin
		}
		return false, errz.Newf(errz.ErrRuntime, vm.location(), vm.captureStack(), "uncaught error: %s", thrown.String())
	}
	h := vm.handlers[len(vm.handlers)-1]
	vm.handlers = vm.handlers[:len(vm.handlers)-1]

	// Unwind frames above the handler's frame, closing their upvalues.
	for vm.fp-1 > h.frameIndex {
		f := &vm.frames[vm.fp-1]
		if f.returnIP == stopSignal {
			vm.unwound = true
		}
		vm.closeUpvalues(f.base)
		// Release the unwound frame's stack region.
		for vm.sp > f.base {
			vm.sp--
			vm.heap.Release(vm.stack[vm.sp])
			vm.stack[vm.sp] = object.Null
		}
		vm.chunk = f.returnChunk
		vm.ip = f.returnIP
		vm.fp--
	}
	// Restore the handler's stack base, releasing everything above it.
	for vm.sp > h.stackBase {
		vm.sp--
		vm.heap.Release(vm.stack[vm.sp])
		vm.stack[vm.sp] = object.Null
	}
	vm.push(thrown)
	vm.ip = h.catchIP
	return true, nil
}

// Stack primitives. Slots own one reference to their value; push transfers
// the caller's reference and pop transfers it back to the caller.

func (vm *VM) push(v object.Value) error {
	if vm.sp >= len(vm.stack) {
		return errz.Newf(errz.ErrOutOfMemory, vm.location(), vm.captureStack(), "stack overflow")
	}
	vm.stack[vm.sp] = v
	vm.sp++
	return nil
}

func (vm *VM) pop() object.Value {
	vm.sp--
	v := vm.stack[vm.sp]
	vm.stack[vm.sp] = object.Null
	return v
}

func (vm *VM) peek(distance int) object.Value {
	return vm.stack[vm.sp-1-distance]
}

// fetchU8 reads a one-byte operand.
func (vm *VM) fetchU8() byte {
	b := vm.chunk.Code[vm.ip]
	vm.ip++
	return b
}

// fetchU16 reads a little-endian two-byte operand.
func (vm *VM) fetchU16() uint16 {
	lo := vm.chunk.Code[vm.ip]
	hi := vm.chunk.Code[vm.ip+1]
	vm.ip += 2
	return uint16(lo) | uint16(hi)<<8
}

func (vm *VM) stringAt(idx uint16) string {
	return vm.chunk.Strings[idx]
}

// valueForConstant converts a pooled constant into a runtime value.
func (vm *VM) valueForConstant(k bytecode.Constant) object.Value {
	switch k.Kind {
	case bytecode.ConstNull:
		return object.Null
	case bytecode.ConstBool:
		return object.NewBool(k.Bool)
	case bytecode.ConstInt:
		return object.NewInt(k.Int)
	case bytecode.ConstFloat:
		return object.NewFloat(k.Float)
	case bytecode.ConstString:
		return vm.heap.NewStringValue(k.Str)
	default:
		return object.Null
	}
}
