package vm

import (
	"math"

	"github.com/sunscript-lang/sunscript/object"
	"github.com/sunscript-lang/sunscript/op"
)

// binaryOp implements the arithmetic and ordered-comparison opcodes.
// Integer operands stay integer (except true division); mixed operands
// promote to float; strings concatenate with +; anything else dispatches
// to a user-defined operator method on the left operand's type.
func (vm *VM) binaryOp(opcode op.Code) error {
	b := vm.pop()
	a := vm.pop()

	if a.IsNumeric() && b.IsNumeric() {
		result, err := vm.numericOp(opcode, a, b)
		if err != nil {
			return err
		}
		return vm.push(result)
	}

	// String concatenation and ordering.
	if as, ok := a.AsString(); ok {
		if bs, ok := b.AsString(); ok {
			vm.heap.Release(a)
			vm.heap.Release(b)
			switch opcode {
			case op.Add:
				return vm.push(vm.heap.NewStringValue(as + bs))
			case op.Less:
				return vm.push(object.NewBool(as < bs))
			case op.Greater:
				return vm.push(object.NewBool(as > bs))
			case op.LessEqual:
				return vm.push(object.NewBool(as <= bs))
			case op.GreaterEqual:
				return vm.push(object.NewBool(as >= bs))
			}
			return vm.operandTypeError(opcode, "String", "String")
		}
	}

	if handled, result, err := vm.operatorOverload(opcode, a, b); handled {
		if err != nil {
			return err
		}
		return vm.push(result)
	}

	aType, bType := a.TypeName(), b.TypeName()
	vm.heap.Release(a)
	vm.heap.Release(b)
	return vm.operandTypeError(opcode, aType, bType)
}

func (vm *VM) operandTypeError(opcode op.Code, aType, bType string) error {
	symbol := op.OperatorSymbol(opcode)
	switch opcode {
	case op.Add, op.Subtract, op.Multiply, op.Divide, op.Modulo:
		return vm.runtimeError("operands must be numbers for %q (got %s and %s)", symbol, aType, bType)
	default:
		return vm.runtimeError("operands must be comparable for %q (got %s and %s)", symbol, aType, bType)
	}
}

// numericOp applies the int-stays-int promotion rule. True division
// yields a float unless both operands are integers.
func (vm *VM) numericOp(opcode op.Code, a, b object.Value) (object.Value, error) {
	if a.IsInt() && b.IsInt() {
		x, y := a.Int(), b.Int()
		switch opcode {
		case op.Add:
			return object.NewInt(x + y), nil
		case op.Subtract:
			return object.NewInt(x - y), nil
		case op.Multiply:
			return object.NewInt(x * y), nil
		case op.Divide:
			if y == 0 {
				return object.Null, vm.runtimeError("integer division by zero")
			}
			return object.NewInt(x / y), nil
		case op.Modulo:
			if y == 0 {
				return object.Null, vm.runtimeError("integer division by zero")
			}
			return object.NewInt(x % y), nil
		case op.Less:
			return object.NewBool(x < y), nil
		case op.Greater:
			return object.NewBool(x > y), nil
		case op.LessEqual:
			return object.NewBool(x <= y), nil
		case op.GreaterEqual:
			return object.NewBool(x >= y), nil
		}
	}
	x, _ := a.AsFloat()
	y, _ := b.AsFloat()
	switch opcode {
	case op.Add:
		return object.NewFloat(x + y), nil
	case op.Subtract:
		return object.NewFloat(x - y), nil
	case op.Multiply:
		return object.NewFloat(x * y), nil
	case op.Divide:
		return object.NewFloat(x / y), nil
	case op.Modulo:
		return object.NewFloat(math.Mod(x, y)), nil
	case op.Less:
		return object.NewBool(x < y), nil
	case op.Greater:
		return object.NewBool(x > y), nil
	case op.LessEqual:
		return object.NewBool(x <= y), nil
	case op.GreaterEqual:
		return object.NewBool(x >= y), nil
	}
	return object.Null, vm.runtimeError("invalid numeric operation")
}

// operatorOverload searches the left operand's type for a method named
// after the operator symbol and invokes it with the right operand.
// It reports whether an overload was found; the operand references are
// consumed when it was.
func (vm *VM) operatorOverload(opcode op.Code, a, b object.Value) (bool, object.Value, error) {
	symbol := op.OperatorSymbol(opcode)
	if symbol == "" {
		return false, object.Null, nil
	}
	var m *object.Method
	switch obj := a.Obj().(type) {
	case *object.Instance:
		if method, ok := obj.Class.Method(symbol); ok {
			m = method
		}
	case *object.EnumCase:
		if method, ok := obj.Enum.Methods[symbol]; ok {
			m = method
		}
	}
	if m == nil {
		return false, object.Null, nil
	}
	result, err := vm.callInline(m.Fn, a, b)
	vm.heap.Release(a)
	vm.heap.Release(b)
	if err != nil {
		return true, object.Null, err
	}
	return true, result, nil
}

// equalityOp implements EQUAL and NOT_EQUAL: a user-defined == method
// wins for instances; everything else follows structural value equality.
func (vm *VM) equalityOp(opcode op.Code) error {
	b := vm.pop()
	a := vm.pop()

	if inst, ok := a.Obj().(*object.Instance); ok {
		if m, found := inst.Class.Method("=="); found {
			result, err := vm.callInline(m.Fn, a, b)
			vm.heap.Release(a)
			vm.heap.Release(b)
			if err != nil {
				return err
			}
			if opcode == op.NotEqual {
				eq := result.IsTruthy()
				vm.heap.Release(result)
				return vm.push(object.NewBool(!eq))
			}
			return vm.push(result)
		}
	}

	eq := a.Equals(b)
	vm.heap.Release(a)
	vm.heap.Release(b)
	if opcode == op.NotEqual {
		eq = !eq
	}
	return vm.push(object.NewBool(eq))
}

// bitwiseOp implements the bitwise and shift opcodes, which require
// integer operands.
func (vm *VM) bitwiseOp(opcode op.Code) error {
	b := vm.pop()
	a := vm.pop()
	if !a.IsInt() || !b.IsInt() {
		aType, bType := a.TypeName(), b.TypeName()
		vm.heap.Release(a)
		vm.heap.Release(b)
		return vm.runtimeError("operands must be integers (got %s and %s)", aType, bType)
	}
	x, y := a.Int(), b.Int()
	switch opcode {
	case op.BitwiseAnd:
		return vm.push(object.NewInt(x & y))
	case op.BitwiseOr:
		return vm.push(object.NewInt(x | y))
	case op.BitwiseXor:
		return vm.push(object.NewInt(x ^ y))
	case op.LeftShift:
		return vm.push(object.NewInt(x << uint64(y)))
	case op.RightShift:
		return vm.push(object.NewInt(x >> uint64(y)))
	}
	return vm.runtimeError("invalid bitwise operation")
}

// typeMatches implements the is operator. Class checks walk the
// superclass chain; protocol checks match requirement sets by name.
func (vm *VM) typeMatches(v object.Value, name string) bool {
	switch name {
	case "Int":
		return v.IsInt()
	case "Float":
		return v.IsFloat()
	case "Bool":
		return v.IsBool()
	case "String":
		return v.IsString()
	case "Array":
		_, ok := v.Obj().(*object.Array)
		return ok
	case "Dictionary":
		_, ok := v.Obj().(*object.Map)
		return ok
	case "Tuple":
		_, ok := v.Obj().(*object.Tuple)
		return ok
	case "Range":
		_, ok := v.Obj().(*object.Range)
		return ok
	case "Function":
		switch v.Obj().(type) {
		case *object.Closure, *object.BoundMethod, *object.NativeFunc:
			return true
		}
		return false
	}

	if inst, ok := v.Obj().(*object.Instance); ok {
		for class := inst.Class; class != nil; class = class.Super {
			if class.Name == name {
				return true
			}
		}
		if pv, ok := vm.globals[name]; ok {
			if proto, ok := pv.Obj().(*object.Protocol); ok {
				return inst.Class.ConformsTo(proto.Name, proto.Methods, proto.Properties)
			}
		}
		return false
	}
	if c, ok := v.Obj().(*object.EnumCase); ok {
		return c.Enum.Name == name
	}
	return v.TypeName() == name
}

// typeCast implements as, as? and as!. The checked value stays on the
// stack on success; numeric casts convert between Int and Float.
func (vm *VM) typeCast(name string, optional bool) error {
	v := vm.pop()
	if name == "Float" && v.IsInt() {
		return vm.push(object.NewFloat(float64(v.Int())))
	}
	if name == "Int" && v.IsFloat() {
		return vm.push(object.NewInt(int64(v.Float())))
	}
	if vm.typeMatches(v, name) {
		return vm.push(v)
	}
	typeName := v.TypeName()
	vm.heap.Release(v)
	if optional {
		return vm.push(object.Null)
	}
	return vm.runtimeError("cannot cast value of type %s to %s", typeName, name)
}
