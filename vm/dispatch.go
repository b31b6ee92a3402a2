package vm

import (
	"fmt"
	"strings"

	"github.com/sunscript-lang/sunscript/object"
	"github.com/sunscript-lang/sunscript/op"
)

// dispatch executes one instruction. It returns halted=true for HALT and
// an error for any raised condition; errors become thrown values in the
// dispatch loop.
func (vm *VM) dispatch(opcode op.Code) (bool, error) {
	switch opcode {
	case op.Constant:
		return false, vm.push(vm.valueForConstant(vm.chunk.Constants[vm.fetchU16()]))
	case op.String:
		return false, vm.push(vm.heap.NewStringValue(vm.stringAt(vm.fetchU16())))
	case op.Nil:
		return false, vm.push(object.Null)
	case op.True:
		return false, vm.push(object.True)
	case op.False:
		return false, vm.push(object.False)
	case op.Pop:
		vm.heap.Release(vm.pop())
		return false, nil
	case op.Dup:
		v := vm.peek(0)
		vm.heap.Retain(v)
		return false, vm.push(v)

	case op.Add, op.Subtract, op.Multiply, op.Divide, op.Modulo,
		op.Less, op.Greater, op.LessEqual, op.GreaterEqual:
		return false, vm.binaryOp(opcode)
	case op.Equal, op.NotEqual:
		return false, vm.equalityOp(opcode)
	case op.Negate:
		v := vm.pop()
		switch {
		case v.IsInt():
			return false, vm.push(object.NewInt(-v.Int()))
		case v.IsFloat():
			return false, vm.push(object.NewFloat(-v.Float()))
		default:
			vm.heap.Release(v)
			return false, vm.runtimeError("operand must be a number (got %s)", v.TypeName())
		}
	case op.Not:
		v := vm.pop()
		truthy := v.IsTruthy()
		vm.heap.Release(v)
		return false, vm.push(object.NewBool(!truthy))

	case op.BitwiseNot:
		v := vm.pop()
		if !v.IsInt() {
			vm.heap.Release(v)
			return false, vm.runtimeError("operand must be an integer (got %s)", v.TypeName())
		}
		return false, vm.push(object.NewInt(^v.Int()))
	case op.BitwiseAnd, op.BitwiseOr, op.BitwiseXor, op.LeftShift, op.RightShift:
		return false, vm.bitwiseOp(opcode)

	case op.GetGlobal:
		name := vm.stringAt(vm.fetchU16())
		v, ok := vm.globals[name]
		if !ok {
			return false, vm.runtimeError("undefined variable %q", name)
		}
		vm.heap.Retain(v)
		return false, vm.push(v)
	case op.DefineGlobal:
		name := vm.stringAt(vm.fetchU16())
		v := vm.pop()
		if old, ok := vm.globals[name]; ok {
			vm.heap.Release(old)
		} else {
			vm.globalOrder = append(vm.globalOrder, name)
		}
		vm.globals[name] = v
		return false, nil
	case op.SetGlobal:
		name := vm.stringAt(vm.fetchU16())
		v := vm.peek(0)
		old, ok := vm.globals[name]
		if !ok {
			return false, vm.runtimeError("assignment to undefined variable %q", name)
		}
		vm.heap.Retain(v)
		vm.heap.Release(old)
		vm.globals[name] = v
		return false, nil
	case op.GetLocal:
		slot := int(vm.fetchU16())
		v := vm.stack[vm.activeFrame().base+slot]
		vm.heap.Retain(v)
		return false, vm.push(v)
	case op.SetLocal:
		slot := int(vm.fetchU16())
		base := vm.activeFrame().base
		v := vm.peek(0)
		vm.heap.Retain(v)
		vm.heap.Release(vm.stack[base+slot])
		vm.stack[base+slot] = v
		return false, nil

	case op.Jump:
		offset := int(vm.fetchU16())
		vm.ip += offset
		return false, nil
	case op.JumpIfFalse:
		offset := int(vm.fetchU16())
		v := vm.pop()
		if !v.IsTruthy() {
			vm.ip += offset
		}
		vm.heap.Release(v)
		return false, nil
	case op.JumpIfNil:
		offset := int(vm.fetchU16())
		v := vm.pop()
		if v.IsNull() {
			vm.ip += offset
		}
		vm.heap.Release(v)
		return false, nil
	case op.Loop:
		offset := int(vm.fetchU16())
		vm.ip -= offset
		return false, nil

	case op.Function, op.Closure:
		return false, vm.makeClosure(vm.fetchU16())
	case op.GetUpvalue:
		idx := int(vm.fetchU16())
		closure := vm.activeFrame().closure
		if closure == nil || idx >= len(closure.Upvalues) {
			return false, vm.runtimeError("invalid upvalue access")
		}
		v := closure.Upvalues[idx].Get()
		vm.heap.Retain(v)
		return false, vm.push(v)
	case op.SetUpvalue:
		idx := int(vm.fetchU16())
		closure := vm.activeFrame().closure
		if closure == nil || idx >= len(closure.Upvalues) {
			return false, vm.runtimeError("invalid upvalue access")
		}
		uv := closure.Upvalues[idx]
		v := vm.peek(0)
		vm.heap.Retain(v)
		vm.heap.Release(uv.Get())
		uv.Set(v)
		return false, nil
	case op.CloseUpvalue:
		vm.closeUpvalues(vm.sp - 1)
		vm.heap.Release(vm.pop())
		return false, nil

	case op.Call:
		argc := int(vm.fetchU8())
		return false, vm.callValue(argc, nil)
	case op.CallNamed:
		argc := int(vm.fetchU8())
		labels := make([]string, argc)
		for i := 0; i < argc; i++ {
			idx := vm.fetchU16()
			if idx != noLabel {
				labels[i] = vm.stringAt(idx)
			}
		}
		return false, vm.callValue(argc, labels)
	case op.Return:
		result := vm.pop()
		f := vm.activeFrame()
		if f.isInit {
			// Initializers yield the constructed instance regardless of any
			// returned value.
			vm.heap.Release(result)
			result = vm.stack[f.base]
			vm.heap.Retain(result)
		}
		stop := f.returnIP == stopSignal
		vm.popFrame()
		if err := vm.push(result); err != nil {
			return false, err
		}
		return stop, nil

	case op.Class:
		name := vm.stringAt(vm.fetchU16())
		return false, vm.push(object.NewObjectValue(vm.heap.NewClass(name, false)))
	case op.Struct:
		name := vm.stringAt(vm.fetchU16())
		return false, vm.push(object.NewObjectValue(vm.heap.NewClass(name, true)))
	case op.Inherit:
		return false, vm.inherit()
	case op.Method:
		name := vm.stringAt(vm.fetchU16())
		return false, vm.defineMethod(name, false)
	case op.StructMethod:
		name := vm.stringAt(vm.fetchU16())
		mutating := vm.fetchU8() == 1
		return false, vm.defineMethod(name, mutating)
	case op.DefineProperty:
		name := vm.stringAt(vm.fetchU16())
		return false, vm.defineProperty(name, 0)
	case op.DefineComputedProperty:
		name := vm.stringAt(vm.fetchU16())
		hasSetter := vm.fetchU8() == 1
		return false, vm.defineComputedProperty(name, hasSetter)
	case op.DefinePropertyWithObservers:
		name := vm.stringAt(vm.fetchU16())
		flags := vm.fetchU8()
		return false, vm.defineProperty(name, flags)

	case op.GetProperty:
		name := vm.stringAt(vm.fetchU16())
		return false, vm.getProperty(name, false)
	case op.OptionalChain:
		name := vm.stringAt(vm.fetchU16())
		return false, vm.getProperty(name, true)
	case op.SetProperty:
		name := vm.stringAt(vm.fetchU16())
		return false, vm.setProperty(name)
	case op.Super:
		name := vm.stringAt(vm.fetchU16())
		return false, vm.superMethod(name)

	case op.Unwrap:
		v := vm.peek(0)
		if v.IsNull() {
			vm.heap.Release(vm.pop())
			return false, vm.runtimeError("unexpectedly found nil while unwrapping an optional value")
		}
		return false, nil
	case op.NilCoalesce:
		fallback := vm.pop()
		v := vm.pop()
		if v.IsNull() {
			vm.heap.Release(v)
			return false, vm.push(fallback)
		}
		vm.heap.Release(fallback)
		return false, vm.push(v)

	case op.RangeInclusive, op.RangeExclusive:
		to := vm.pop()
		from := vm.pop()
		if !from.IsInt() || !to.IsInt() {
			vm.heap.Release(from)
			vm.heap.Release(to)
			return false, vm.runtimeError("range bounds must be integers")
		}
		r := vm.heap.NewRange(from.Int(), to.Int(), opcode == op.RangeInclusive)
		return false, vm.push(object.NewObjectValue(r))

	case op.Array:
		count := int(vm.fetchU16())
		items := make([]object.Value, count)
		for i := count - 1; i >= 0; i-- {
			items[i] = vm.pop()
		}
		return false, vm.push(object.NewObjectValue(vm.heap.NewArray(items)))
	case op.Dict:
		count := int(vm.fetchU16())
		m := vm.heap.NewMap()
		entries := make([]object.Value, 2*count)
		for i := 2*count - 1; i >= 0; i-- {
			entries[i] = vm.pop()
		}
		for i := 0; i < count; i++ {
			key := entries[2*i]
			val := entries[2*i+1]
			s, ok := key.AsString()
			if !ok {
				for _, v := range entries[2*i:] {
					vm.heap.Release(v)
				}
				vm.heap.ReleaseObject(m)
				return false, vm.runtimeError("dictionary keys must be strings (got %s)", key.TypeName())
			}
			if prev, replaced := m.Set(s, val); replaced {
				vm.heap.Release(prev)
			}
			vm.heap.Release(key)
		}
		return false, vm.push(object.NewObjectValue(m))
	case op.GetSubscript:
		return false, vm.getSubscript()
	case op.SetSubscript:
		return false, vm.setSubscript()

	case op.Tuple:
		count := int(vm.fetchU16())
		labels := make([]string, count)
		for i := 0; i < count; i++ {
			idx := vm.fetchU16()
			if idx != noLabel {
				labels[i] = vm.stringAt(idx)
			}
		}
		items := make([]object.Value, count)
		for i := count - 1; i >= 0; i-- {
			items[i] = vm.pop()
		}
		return false, vm.push(object.NewObjectValue(vm.heap.NewTuple(items, labels)))
	case op.GetTupleIndex:
		idx := int(vm.fetchU16())
		v := vm.pop()
		tup, ok := v.Obj().(*object.Tuple)
		if !ok {
			vm.heap.Release(v)
			return false, vm.runtimeError("value of type %s has no tuple components", v.TypeName())
		}
		if idx < 0 || idx >= len(tup.Items) {
			vm.heap.Release(v)
			return false, vm.runtimeError("tuple index %d out of range", idx)
		}
		item := tup.Items[idx]
		vm.heap.Retain(item)
		vm.heap.Release(v)
		return false, vm.push(item)
	case op.GetTupleLabel:
		name := vm.stringAt(vm.fetchU16())
		v := vm.pop()
		tup, ok := v.Obj().(*object.Tuple)
		if !ok {
			vm.heap.Release(v)
			return false, vm.runtimeError("value of type %s has no tuple components", v.TypeName())
		}
		idx, ok := tup.LabelIndex(name)
		if !ok {
			vm.heap.Release(v)
			return false, vm.runtimeError("tuple has no component labeled %q", name)
		}
		item := tup.Items[idx]
		vm.heap.Retain(item)
		vm.heap.Release(v)
		return false, vm.push(item)

	case op.CopyValue:
		v := vm.peek(0)
		if dup, copied := vm.heap.CopyValue(v); copied {
			vm.heap.Release(vm.pop())
			return false, vm.push(dup)
		}
		return false, nil

	case op.Enum:
		name := vm.stringAt(vm.fetchU16())
		return false, vm.push(object.NewObjectValue(vm.heap.NewEnumType(name)))
	case op.EnumCase:
		name := vm.stringAt(vm.fetchU16())
		hasRaw := vm.fetchU8() == 1
		assocCount := int(vm.fetchU8())
		labels := make([]string, assocCount)
		for i := 0; i < assocCount; i++ {
			idx := vm.fetchU16()
			if idx != noLabel {
				labels[i] = vm.stringAt(idx)
			}
		}
		var raw object.Value = object.Null
		if hasRaw {
			raw = vm.pop()
		}
		enum, ok := vm.peek(0).Obj().(*object.EnumType)
		if !ok {
			vm.heap.Release(raw)
			return false, vm.runtimeError("ENUM_CASE outside of enum definition")
		}
		enum.AddCase(&object.EnumCaseDef{Name: name, HasRaw: hasRaw, Raw: raw, AssocLabels: labels})
		return false, nil
	case op.MatchEnumCase:
		name := vm.stringAt(vm.fetchU16())
		v := vm.pop()
		matched := false
		if c, ok := v.Obj().(*object.EnumCase); ok {
			matched = c.CaseName() == name
		}
		vm.heap.Release(v)
		return false, vm.push(object.NewBool(matched))
	case op.GetAssociated:
		idx := int(vm.fetchU16())
		v := vm.pop()
		c, ok := v.Obj().(*object.EnumCase)
		if !ok {
			vm.heap.Release(v)
			return false, vm.runtimeError("value of type %s has no associated values", v.TypeName())
		}
		if idx < 0 || idx >= len(c.Assoc) {
			vm.heap.Release(v)
			return false, vm.runtimeError("associated value index %d out of range", idx)
		}
		item := c.Assoc[idx]
		vm.heap.Retain(item)
		vm.heap.Release(v)
		return false, vm.push(item)

	case op.Protocol:
		idx := vm.fetchU16()
		desc := vm.chunk.Protocols[idx]
		p := vm.heap.NewProtocol(desc.Name, desc.Methods, desc.Properties)
		return false, vm.push(object.NewObjectValue(p))

	case op.TypeCheck:
		name := vm.stringAt(vm.fetchU16())
		v := vm.pop()
		ok := vm.typeMatches(v, name)
		vm.heap.Release(v)
		return false, vm.push(object.NewBool(ok))
	case op.TypeCast, op.TypeCastForced:
		name := vm.stringAt(vm.fetchU16())
		return false, vm.typeCast(name, false)
	case op.TypeCastOptional:
		name := vm.stringAt(vm.fetchU16())
		return false, vm.typeCast(name, true)

	case op.Throw:
		thrown := vm.pop()
		if _, err := vm.throwValue(thrown, nil); err != nil {
			return false, err
		}
		return false, nil
	case op.PushHandler:
		offset := int(vm.fetchU16())
		vm.handlers = append(vm.handlers, handler{
			frameIndex: vm.fp - 1,
			stackBase:  vm.sp,
			catchIP:    vm.ip + offset,
		})
		return false, nil
	case op.PopHandler:
		if len(vm.handlers) == 0 {
			return false, vm.runtimeError("handler stack underflow")
		}
		vm.handlers = vm.handlers[:len(vm.handlers)-1]
		return false, nil

	case op.ReadLine:
		line, err := vm.input.ReadString('\n')
		if err != nil && line == "" {
			return false, vm.push(object.Null)
		}
		line = strings.TrimRight(line, "\r\n")
		return false, vm.push(vm.heap.NewStringValue(line))
	case op.Print:
		v := vm.pop()
		fmt.Fprintln(vm.output, v.String())
		vm.heap.Release(v)
		return false, nil

	case op.Halt:
		return true, nil
	default:
		return false, vm.runtimeError("unknown opcode %d", opcode)
	}
}

// noLabel marks an unlabeled element in label operand lists. It matches
// the compiler's encoding.
const noLabel = uint16(0xFFFF)
