package vm

import (
	"errors"

	"github.com/sunscript-lang/sunscript/object"
)

// errUnwound signals that a throw inside an inline call was caught by a
// handler outside the inline frame; control has already transferred, so
// the interrupted instruction must not continue.
var errUnwound = errors.New("unwound during inline call")

// makeClosure instantiates the function prototype at the given index,
// capturing or inheriting its upvalues.
func (vm *VM) makeClosure(protoIdx uint16) error {
	if int(protoIdx) >= len(vm.chunk.Functions) {
		return vm.runtimeError("function prototype index %d out of range", protoIdx)
	}
	proto := vm.chunk.Functions[protoIdx]

	defaults := make([]object.Value, len(proto.Defaults))
	for i, k := range proto.Defaults {
		if i < len(proto.HasDefault) && proto.HasDefault[i] {
			defaults[i] = vm.valueForConstant(k)
		} else {
			defaults[i] = object.Null
		}
	}
	fn := vm.heap.NewFunction(&object.Function{
		Name:          proto.Name,
		Params:        proto.Params,
		Labels:        proto.Labels,
		Defaults:      defaults,
		HasDefault:    proto.HasDefault,
		Body:          proto.Body,
		Proto:         proto,
		IsInitializer: proto.IsInitializer,
		IsOverride:    proto.IsOverride,
	})

	ups := make([]*object.Upvalue, len(proto.Upvalues))
	f := vm.activeFrame()
	for i, desc := range proto.Upvalues {
		if desc.IsLocal {
			ups[i] = vm.captureUpvalue(f.base + int(desc.Index))
		} else {
			if f.closure == nil || int(desc.Index) >= len(f.closure.Upvalues) {
				return vm.runtimeError("invalid upvalue inheritance")
			}
			uv := f.closure.Upvalues[desc.Index]
			vm.heap.RetainObject(uv)
			ups[i] = uv
		}
	}
	closure := vm.heap.NewClosure(fn, ups)
	return vm.push(object.NewObjectValue(closure))
}

// callValue invokes the callee sitting beneath argc arguments on the
// stack. labels is nil for positional calls.
func (vm *VM) callValue(argc int, labels []string) error {
	if argc > MaxArgs {
		return vm.runtimeError("too many arguments (max %d)", MaxArgs)
	}
	calleeSlot := vm.sp - argc - 1
	if calleeSlot < 0 {
		return vm.runtimeError("stack underflow in call")
	}
	callee := vm.stack[calleeSlot]

	switch target := callee.Obj().(type) {
	case *object.Closure:
		return vm.callClosure(target, calleeSlot, argc, labels, frameExtras{})
	case *object.BoundMethod:
		// Rebind slot 0 to the receiver; the method stays reachable through
		// the receiver's type.
		recv := target.Receiver
		method := target.Method
		extras := frameExtras{methodClass: target.DefiningClass}
		if extras.methodClass == nil {
			if inst, ok := recv.Obj().(*object.Instance); ok {
				extras.methodClass = inst.Class
			}
		}
		vm.heap.Retain(recv)
		vm.stack[calleeSlot] = recv
		vm.heap.ReleaseObject(target)
		return vm.callClosure(method, calleeSlot, argc, labels, extras)
	case *object.Class:
		return vm.callInitializer(target, calleeSlot, argc, labels)
	case *object.EnumCaseCtor:
		return vm.callEnumCtor(target, calleeSlot, argc, labels)
	case *object.NativeFunc:
		args := make([]object.Value, argc)
		for i := argc - 1; i >= 0; i-- {
			args[i] = vm.pop()
		}
		vm.pop() // callee; still referenced by target below
		result, err := target.Fn(vm.ctx, args)
		for _, a := range args {
			vm.heap.Release(a)
		}
		vm.heap.ReleaseObject(target)
		if err != nil {
			return vm.runtimeError("%s", err.Error())
		}
		return vm.push(result)
	default:
		return vm.runtimeError("value of type %s is not callable", callee.TypeName())
	}
}

// frameExtras carries method-specific frame fields.
type frameExtras struct {
	methodClass *object.Class
	isInit      bool
}

// callClosure binds arguments into the callee's frame slots and pushes
// the frame. The callee (or receiver) occupies the base slot.
func (vm *VM) callClosure(closure *object.Closure, base, argc int, labels []string, extras frameExtras) error {
	fn := closure.Fn
	if labels != nil {
		if err := vm.bindLabeledArgs(fn, base, argc, labels); err != nil {
			return err
		}
	} else {
		if err := vm.bindPositionalArgs(fn, base, argc); err != nil {
			return err
		}
	}
	if err := vm.pushFrame(base, fn.Body, closure, fn.Name); err != nil {
		return err
	}
	f := vm.activeFrame()
	f.methodClass = extras.methodClass
	f.isInit = extras.isInit
	return nil
}

// bindPositionalArgs checks the argument count and fills trailing
// defaults so the stack holds exactly one value per parameter.
func (vm *VM) bindPositionalArgs(fn *object.Function, base, argc int) error {
	params := len(fn.Params)
	required := fn.RequiredParamCount()
	if argc < required || argc > params {
		return vm.argCountError(fn, argc, required, params)
	}
	for i := argc; i < params; i++ {
		d := fn.Defaults[i]
		vm.heap.Retain(d)
		if err := vm.push(d); err != nil {
			return err
		}
	}
	return nil
}

func (vm *VM) argCountError(fn *object.Function, argc, required, params int) error {
	name := fn.Name
	if name == "" {
		name = "closure"
	}
	if required == params {
		return vm.runtimeError("%s expects %d arguments (got %d)", name, params, argc)
	}
	return vm.runtimeError("%s expects between %d and %d arguments (got %d)", name, required, params, argc)
}

// bindLabeledArgs places labeled arguments into parameter order. A label
// must match the parameter label at its position, or name exactly one
// other parameter. Unlabeled arguments bind positionally.
func (vm *VM) bindLabeledArgs(fn *object.Function, base, argc int, labels []string) error {
	params := len(fn.Params)
	if argc > params {
		return vm.argCountError(fn, argc, fn.RequiredParamCount(), params)
	}
	// Lift the arguments off the stack.
	args := make([]object.Value, argc)
	for i := argc - 1; i >= 0; i-- {
		args[i] = vm.pop()
	}
	bound := make([]object.Value, params)
	has := make([]bool, params)

	place := func(idx int, v object.Value, label string) error {
		if has[idx] {
			return vm.runtimeError("duplicate argument for parameter %q", label)
		}
		bound[idx] = v
		has[idx] = true
		return nil
	}

	for i, arg := range args {
		label := labels[i]
		if label == "" {
			if i >= params {
				return vm.argCountError(fn, argc, fn.RequiredParamCount(), params)
			}
			if err := place(i, arg, fn.Params[i]); err != nil {
				return err
			}
			continue
		}
		if i < params && fn.Labels[i] == label && !has[i] {
			if err := place(i, arg, label); err != nil {
				return err
			}
			continue
		}
		matched := -1
		for j := 0; j < params; j++ {
			if fn.Labels[j] == label {
				if matched >= 0 {
					return vm.runtimeError("ambiguous argument label %q", label)
				}
				matched = j
			}
		}
		if matched < 0 {
			return vm.runtimeError("no parameter matches argument label %q", label)
		}
		if err := place(matched, arg, label); err != nil {
			return err
		}
	}

	for i := 0; i < params; i++ {
		if has[i] {
			continue
		}
		if i >= len(fn.HasDefault) || !fn.HasDefault[i] {
			return vm.runtimeError("missing argument for parameter %q", fn.Params[i])
		}
		bound[i] = fn.Defaults[i]
		vm.heap.Retain(bound[i])
		has[i] = true
	}
	for _, v := range bound {
		if err := vm.push(v); err != nil {
			return err
		}
	}
	return nil
}

// callInitializer allocates an instance and either runs the declared init
// method or performs memberwise initialization against the stored
// properties.
func (vm *VM) callInitializer(class *object.Class, base, argc int, labels []string) error {
	inst := vm.heap.NewInstance(class)
	// Stored properties start from their declared defaults; struct-typed
	// defaults are copied so instances never share value-typed state.
	for _, prop := range class.Props {
		v := prop.Default
		if dup, copied := vm.heap.CopyValue(v); copied {
			v = dup
		} else {
			vm.heap.Retain(v)
		}
		if prev, replaced := inst.SetField(prop.Name, v); replaced {
			vm.heap.Release(prev)
		}
	}

	if m, ok := class.Method("init"); ok {
		instValue := object.NewObjectValue(inst)
		vm.heap.Release(vm.stack[base])
		vm.stack[base] = instValue
		return vm.callClosure(m.Fn, base, argc, labels, frameExtras{
			methodClass: class,
			isInit:      true,
		})
	}

	// Memberwise initialization: arguments bind to stored properties in
	// declaration order, or by label.
	if argc > len(class.Props) {
		vm.heap.ReleaseObject(inst)
		return vm.runtimeError("%s accepts at most %d arguments (got %d)", class.Name, len(class.Props), argc)
	}
	args := make([]object.Value, argc)
	for i := argc - 1; i >= 0; i-- {
		args[i] = vm.pop()
	}
	for i, arg := range args {
		name := class.Props[i].Name
		if labels != nil && labels[i] != "" {
			if _, ok := class.Property(labels[i]); !ok {
				for _, a := range args[i:] {
					vm.heap.Release(a)
				}
				vm.heap.ReleaseObject(inst)
				return vm.runtimeError("%s has no stored property %q", class.Name, labels[i])
			}
			name = labels[i]
		}
		if prev, replaced := inst.SetField(name, arg); replaced {
			vm.heap.Release(prev)
		}
	}
	vm.heap.Release(vm.pop()) // the class value in the callee slot
	return vm.push(object.NewObjectValue(inst))
}

// callEnumCtor constructs an enum case carrying associated values.
func (vm *VM) callEnumCtor(ctor *object.EnumCaseCtor, base, argc int, labels []string) error {
	def := ctor.Enum.Cases[ctor.CaseIndex]
	if argc != len(def.AssocLabels) {
		return vm.runtimeError("%s.%s expects %d associated values (got %d)",
			ctor.Enum.Name, def.Name, len(def.AssocLabels), argc)
	}
	args := make([]object.Value, argc)
	for i := argc - 1; i >= 0; i-- {
		args[i] = vm.pop()
	}
	if labels != nil {
		for i, label := range labels {
			if label != "" && label != def.AssocLabels[i] {
				for _, a := range args {
					vm.heap.Release(a)
				}
				return vm.runtimeError("%s.%s has no associated value labeled %q",
					ctor.Enum.Name, def.Name, label)
			}
		}
	}
	var raw object.Value = object.Null
	if def.HasRaw {
		raw = def.Raw
		vm.heap.Retain(raw)
	}
	c := vm.heap.NewEnumCase(ctor.Enum, ctor.CaseIndex, raw, args)
	vm.heap.Release(vm.pop()) // the ctor in the callee slot
	return vm.push(object.NewObjectValue(c))
}

// callInline runs a closure to completion inside the current instruction:
// computed-property accessors and property observers execute this way. The
// receiver binds to slot 0.
func (vm *VM) callInline(closure *object.Closure, receiver object.Value, args ...object.Value) (object.Value, error) {
	base := vm.sp
	vm.heap.Retain(receiver)
	if err := vm.push(receiver); err != nil {
		return object.Null, err
	}
	for _, a := range args {
		vm.heap.Retain(a)
		if err := vm.push(a); err != nil {
			return object.Null, err
		}
	}
	fn := closure.Fn
	if len(args) > len(fn.Params) {
		return object.Null, vm.runtimeError("%s expects %d arguments (got %d)", fn.Name, len(fn.Params), len(args))
	}
	for i := len(args); i < len(fn.Params); i++ {
		if i >= len(fn.HasDefault) || !fn.HasDefault[i] {
			return object.Null, vm.runtimeError("missing argument for parameter %q", fn.Params[i])
		}
		d := fn.Defaults[i]
		vm.heap.Retain(d)
		if err := vm.push(d); err != nil {
			return object.Null, err
		}
	}

	savedIP := vm.ip
	if err := vm.pushFrame(base, fn.Body, closure, fn.Name); err != nil {
		return object.Null, err
	}
	f := vm.activeFrame()
	f.returnIP = stopSignal
	if inst, ok := receiver.Obj().(*object.Instance); ok {
		f.methodClass = inst.Class
	}

	stopFP := vm.fp - 1
	if err := vm.dispatchLoop(stopFP); err != nil {
		return object.Null, err
	}
	if vm.unwound {
		// A throw escaped the inline frame and was caught further out;
		// control has already moved to the catch block.
		vm.unwound = false
		return object.Null, errUnwound
	}
	vm.ip = savedIP
	return vm.pop(), nil
}
