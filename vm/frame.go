package vm

import (
	"github.com/sunscript-lang/sunscript/bytecode"
	"github.com/sunscript-lang/sunscript/object"
)

// frame is one call-stack entry. base indexes the operand-stack slot of
// the callee, which doubles as local slot 0 (self in methods). returnIP
// and returnChunk restore the caller when the frame returns; a returnIP of
// stopSignal ends the enclosing dispatch loop instead.
type frame struct {
	base        int
	returnIP    int
	returnChunk *bytecode.Chunk
	closure     *object.Closure
	name        string
	isInit      bool

	// methodClass is the class that defines the running method; SUPER
	// resolves against its superclass.
	methodClass *object.Class
}

// pushFrame activates a new frame for the callee occupying stack slot
// base.
func (vm *VM) pushFrame(base int, chunk *bytecode.Chunk, closure *object.Closure, name string) error {
	if vm.fp >= len(vm.frames) {
		return vm.runtimeError("call stack overflow (max depth %d)", len(vm.frames))
	}
	vm.frames[vm.fp] = frame{
		base:        base,
		returnIP:    vm.ip,
		returnChunk: vm.chunk,
		closure:     closure,
		name:        name,
	}
	vm.fp++
	vm.chunk = chunk
	vm.ip = 0
	return nil
}

// activeFrame returns the currently executing frame.
func (vm *VM) activeFrame() *frame {
	return &vm.frames[vm.fp-1]
}

// frameDepth reports the current call depth, used by the debug controller.
func (vm *VM) frameDepth() int {
	return vm.fp
}

// captureUpvalue returns the open upvalue for the given stack slot,
// creating it if needed. Two closures capturing the same slot share the
// upvalue. The open list stays sorted by slot.
func (vm *VM) captureUpvalue(slot int) *object.Upvalue {
	for _, uv := range vm.openUpvalues {
		if uv.Slot == slot {
			vm.heap.RetainObject(uv)
			return uv
		}
	}
	uv := vm.heap.NewUpvalue(&vm.stack[slot], slot)
	// The open list holds its own reference in addition to the closure's.
	vm.heap.RetainObject(uv)
	inserted := false
	for i, existing := range vm.openUpvalues {
		if existing.Slot > slot {
			vm.openUpvalues = append(vm.openUpvalues[:i], append([]*object.Upvalue{uv}, vm.openUpvalues[i:]...)...)
			inserted = true
			break
		}
	}
	if !inserted {
		vm.openUpvalues = append(vm.openUpvalues, uv)
	}
	return uv
}

// closeUpvalues closes every open upvalue at or above the given stack
// slot in one pass and removes them from the open list. The closed
// upvalue takes ownership of a copy of the slot value.
func (vm *VM) closeUpvalues(fromSlot int) {
	i := len(vm.openUpvalues)
	for i > 0 && vm.openUpvalues[i-1].Slot >= fromSlot {
		i--
	}
	for _, uv := range vm.openUpvalues[i:] {
		vm.heap.Retain(*uv.Location)
		uv.Close()
		vm.heap.ReleaseObject(uv)
	}
	vm.openUpvalues = vm.openUpvalues[:i]
}

// popFrame tears down the active frame: closes upvalues pointing into its
// stack region, releases the region's slots, and restores the caller.
func (vm *VM) popFrame() {
	f := vm.activeFrame()
	vm.closeUpvalues(f.base)
	for vm.sp > f.base {
		vm.sp--
		vm.heap.Release(vm.stack[vm.sp])
		vm.stack[vm.sp] = object.Null
	}
	vm.chunk = f.returnChunk
	vm.ip = f.returnIP
	vm.fp--
}
