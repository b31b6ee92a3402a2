package vm

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/sunscript-lang/sunscript/object"
)

// RegisterNative maps a name to a host callback invocable as an ordinary
// call. The registry is per-VM so tests and embeddings cannot
// cross-contaminate.
func (vm *VM) RegisterNative(name string, fn object.NativeFuncImpl) {
	native := vm.heap.NewNativeFunc(name, fn)
	vm.natives[name] = native
	vm.SetGlobal(name, object.NewObjectValue(native))
	vm.heap.ReleaseObject(native)
	vm.heap.Drain()
}

// UnregisterNative removes a previously registered host callback.
func (vm *VM) UnregisterNative(name string) {
	if _, ok := vm.natives[name]; !ok {
		return
	}
	delete(vm.natives, name)
	if old, ok := vm.globals[name]; ok {
		delete(vm.globals, name)
		for i, n := range vm.globalOrder {
			if n == name {
				vm.globalOrder = append(vm.globalOrder[:i], vm.globalOrder[i+1:]...)
				break
			}
		}
		vm.heap.Release(old)
		vm.heap.Drain()
	}
}

// WrapNativePointer wraps a host pointer as a value usable from script.
// engineOwned suppresses VM-initiated release of the host resource;
// release, when set, is notified when the VM-side handle is destroyed.
func (vm *VM) WrapNativePointer(ptr any, typeName string, release func(any), engineOwned bool) object.Value {
	return object.NewObjectValue(vm.heap.NewNativeHandle(ptr, typeName, release, engineOwned))
}

func argsError(name string, want string, args []object.Value) error {
	return fmt.Errorf("%s expects %s (got %d arguments)", name, want, len(args))
}

// registerBuiltins installs the default native library.
func registerBuiltins(vm *VM) {
	h := vm.heap

	vm.RegisterNative("len", func(_ context.Context, args []object.Value) (object.Value, error) {
		if len(args) != 1 {
			return object.Null, argsError("len", "one argument", args)
		}
		switch obj := args[0].Obj().(type) {
		case *object.String:
			return object.NewInt(int64(len(obj.Value))), nil
		case *object.Array:
			return object.NewInt(int64(len(obj.Items))), nil
		case *object.Map:
			return object.NewInt(int64(obj.Len())), nil
		case *object.Tuple:
			return object.NewInt(int64(len(obj.Items))), nil
		case *object.Range:
			return object.NewInt(obj.Len()), nil
		default:
			return object.Null, fmt.Errorf("len: value of type %s has no length", args[0].TypeName())
		}
	})

	vm.RegisterNative("append", func(_ context.Context, args []object.Value) (object.Value, error) {
		if len(args) < 2 {
			return object.Null, argsError("append", "an array and a value", args)
		}
		arr, ok := args[0].Obj().(*object.Array)
		if !ok {
			return object.Null, fmt.Errorf("append: first argument must be an array")
		}
		for _, v := range args[1:] {
			h.Retain(v)
			arr.Items = append(arr.Items, v)
		}
		h.Retain(args[0])
		return args[0], nil
	})

	vm.RegisterNative("keys", func(_ context.Context, args []object.Value) (object.Value, error) {
		if len(args) != 1 {
			return object.Null, argsError("keys", "one dictionary", args)
		}
		m, ok := args[0].Obj().(*object.Map)
		if !ok {
			return object.Null, fmt.Errorf("keys: argument must be a dictionary")
		}
		items := make([]object.Value, 0, m.Len())
		for _, k := range m.Keys() {
			items = append(items, h.NewStringValue(k))
		}
		return object.NewObjectValue(h.NewArray(items)), nil
	})

	vm.RegisterNative("typeof", func(_ context.Context, args []object.Value) (object.Value, error) {
		if len(args) != 1 {
			return object.Null, argsError("typeof", "one argument", args)
		}
		return h.NewStringValue(args[0].TypeName()), nil
	})

	vm.RegisterNative("abs", func(_ context.Context, args []object.Value) (object.Value, error) {
		if len(args) != 1 {
			return object.Null, argsError("abs", "one number", args)
		}
		if args[0].IsInt() {
			n := args[0].Int()
			if n < 0 {
				n = -n
			}
			return object.NewInt(n), nil
		}
		f, ok := args[0].AsFloat()
		if !ok {
			return object.Null, fmt.Errorf("abs: argument must be a number")
		}
		return object.NewFloat(math.Abs(f)), nil
	})

	vm.RegisterNative("min", func(_ context.Context, args []object.Value) (object.Value, error) {
		return minMax(args, "min", true)
	})
	vm.RegisterNative("max", func(_ context.Context, args []object.Value) (object.Value, error) {
		return minMax(args, "max", false)
	})

	vm.RegisterNative("sqrt", func(_ context.Context, args []object.Value) (object.Value, error) {
		if len(args) != 1 {
			return object.Null, argsError("sqrt", "one number", args)
		}
		f, ok := args[0].AsFloat()
		if !ok {
			return object.Null, fmt.Errorf("sqrt: argument must be a number")
		}
		return object.NewFloat(math.Sqrt(f)), nil
	})

	vm.RegisterNative("uppercased", func(_ context.Context, args []object.Value) (object.Value, error) {
		s, err := oneString("uppercased", args)
		if err != nil {
			return object.Null, err
		}
		return h.NewStringValue(strings.ToUpper(s)), nil
	})
	vm.RegisterNative("lowercased", func(_ context.Context, args []object.Value) (object.Value, error) {
		s, err := oneString("lowercased", args)
		if err != nil {
			return object.Null, err
		}
		return h.NewStringValue(strings.ToLower(s)), nil
	})

	vm.RegisterNative("contains", func(_ context.Context, args []object.Value) (object.Value, error) {
		if len(args) != 2 {
			return object.Null, argsError("contains", "a string and a substring", args)
		}
		s, ok1 := args[0].AsString()
		sub, ok2 := args[1].AsString()
		if !ok1 || !ok2 {
			return object.Null, fmt.Errorf("contains: both arguments must be strings")
		}
		return object.NewBool(strings.Contains(s, sub)), nil
	})

	vm.RegisterNative("split", func(_ context.Context, args []object.Value) (object.Value, error) {
		if len(args) != 2 {
			return object.Null, argsError("split", "a string and a separator", args)
		}
		s, ok1 := args[0].AsString()
		sep, ok2 := args[1].AsString()
		if !ok1 || !ok2 {
			return object.Null, fmt.Errorf("split: both arguments must be strings")
		}
		parts := strings.Split(s, sep)
		items := make([]object.Value, len(parts))
		for i, p := range parts {
			items[i] = h.NewStringValue(p)
		}
		return object.NewObjectValue(h.NewArray(items)), nil
	})

	vm.RegisterNative("joined", func(_ context.Context, args []object.Value) (object.Value, error) {
		if len(args) != 2 {
			return object.Null, argsError("joined", "an array and a separator", args)
		}
		arr, ok := args[0].Obj().(*object.Array)
		if !ok {
			return object.Null, fmt.Errorf("joined: first argument must be an array")
		}
		sep, ok := args[1].AsString()
		if !ok {
			return object.Null, fmt.Errorf("joined: separator must be a string")
		}
		parts := make([]string, len(arr.Items))
		for i, v := range arr.Items {
			parts[i] = v.String()
		}
		return h.NewStringValue(strings.Join(parts, sep)), nil
	})
}

func minMax(args []object.Value, name string, wantMin bool) (object.Value, error) {
	if len(args) < 2 {
		return object.Null, argsError(name, "at least two numbers", args)
	}
	best := args[0]
	for _, v := range args[1:] {
		bf, ok1 := best.AsFloat()
		vf, ok2 := v.AsFloat()
		if !ok1 || !ok2 {
			return object.Null, fmt.Errorf("%s: arguments must be numbers", name)
		}
		if (wantMin && vf < bf) || (!wantMin && vf > bf) {
			best = v
		}
	}
	return best, nil
}

func oneString(name string, args []object.Value) (string, error) {
	if len(args) != 1 {
		return "", argsError(name, "one string", args)
	}
	s, ok := args[0].AsString()
	if !ok {
		return "", fmt.Errorf("%s: argument must be a string", name)
	}
	return s, nil
}
