package vm

import (
	"github.com/sunscript-lang/sunscript/object"
)

// getProperty implements GET_PROPERTY and OPTIONAL_CHAIN. The receiver is
// on top of the stack.
func (vm *VM) getProperty(name string, optional bool) error {
	v := vm.pop()
	if v.IsNull() || !v.IsObject() {
		if optional {
			// A null (or primitive) receiver short-circuits the chain.
			vm.heap.Release(v)
			return vm.push(object.Null)
		}
		vm.heap.Release(v)
		return vm.runtimeError("value of type %s has no property %q", v.TypeName(), name)
	}

	switch target := v.Obj().(type) {
	case *object.Instance:
		// Computed properties win over stored fields and methods.
		if comp, ok := target.Class.ComputedProperty(name); ok {
			result, err := vm.callInline(comp.Getter, v)
			vm.heap.Release(v)
			if err != nil {
				return err
			}
			return vm.push(result)
		}
		if field, ok := target.Field(name); ok {
			vm.heap.Retain(field)
			vm.heap.Release(v)
			return vm.push(field)
		}
		if m, ok := target.Class.Method(name); ok {
			bm := vm.heap.NewBoundMethod(v, m.Fn, target.Class, m.Mutating)
			vm.heap.Release(v)
			return vm.push(object.NewObjectValue(bm))
		}
		defer vm.heap.Release(v)
		return vm.runtimeError("%s has no property %q", target.Class.Name, name)

	case *object.Map:
		item, ok := target.Get(name)
		if !ok {
			vm.heap.Release(v)
			return vm.push(object.Null)
		}
		vm.heap.Retain(item)
		vm.heap.Release(v)
		return vm.push(item)

	case *object.EnumType:
		if idx, ok := target.CaseIndex(name); ok {
			def := target.Cases[idx]
			if len(def.AssocLabels) > 0 {
				ctor := vm.heap.NewEnumCaseCtor(target, idx)
				vm.heap.Release(v)
				return vm.push(object.NewObjectValue(ctor))
			}
			var raw object.Value = object.Null
			if def.HasRaw {
				raw = def.Raw
				vm.heap.Retain(raw)
			}
			c := vm.heap.NewEnumCase(target, idx, raw, nil)
			vm.heap.Release(v)
			return vm.push(object.NewObjectValue(c))
		}
		defer vm.heap.Release(v)
		return vm.runtimeError("enum %s has no case %q", target.Name, name)

	case *object.EnumCase:
		if name == "rawValue" {
			raw := target.Raw
			vm.heap.Retain(raw)
			vm.heap.Release(v)
			return vm.push(raw)
		}
		labels := target.Enum.Cases[target.CaseIndex].AssocLabels
		for i, label := range labels {
			if label == name {
				item := target.Assoc[i]
				vm.heap.Retain(item)
				vm.heap.Release(v)
				return vm.push(item)
			}
		}
		if comp, ok := target.Enum.Computed[name]; ok {
			result, err := vm.callInline(comp.Getter, v)
			vm.heap.Release(v)
			if err != nil {
				return err
			}
			return vm.push(result)
		}
		if m, ok := target.Enum.Methods[name]; ok {
			bm := vm.heap.NewBoundMethod(v, m.Fn, nil, false)
			vm.heap.Release(v)
			return vm.push(object.NewObjectValue(bm))
		}
		defer vm.heap.Release(v)
		return vm.runtimeError("%s has no property %q", target.Enum.Name, name)

	case *object.Tuple:
		if idx, ok := target.LabelIndex(name); ok {
			item := target.Items[idx]
			vm.heap.Retain(item)
			vm.heap.Release(v)
			return vm.push(item)
		}
		if name == "count" {
			n := len(target.Items)
			vm.heap.Release(v)
			return vm.push(object.NewInt(int64(n)))
		}
		defer vm.heap.Release(v)
		return vm.runtimeError("tuple has no component labeled %q", name)

	case *object.Array:
		if name == "count" {
			n := len(target.Items)
			vm.heap.Release(v)
			return vm.push(object.NewInt(int64(n)))
		}
	case *object.String:
		if name == "count" {
			n := len(target.Value)
			vm.heap.Release(v)
			return vm.push(object.NewInt(int64(n)))
		}
	case *object.Range:
		if name == "count" {
			n := target.Len()
			vm.heap.Release(v)
			return vm.push(object.NewInt(n))
		}
	}
	typeName := v.TypeName()
	vm.heap.Release(v)
	if optional {
		return vm.push(object.Null)
	}
	return vm.runtimeError("value of type %s has no property %q", typeName, name)
}

// setProperty implements SET_PROPERTY. Stack: target, value.
func (vm *VM) setProperty(name string) error {
	value := vm.pop()
	target := vm.pop()

	switch obj := target.Obj().(type) {
	case *object.Instance:
		if comp, ok := obj.Class.ComputedProperty(name); ok {
			if comp.Setter == nil {
				vm.heap.Release(value)
				vm.heap.Release(target)
				return vm.runtimeError("%s.%s is get-only", obj.Class.Name, name)
			}
			_, err := vm.callInline(comp.Setter, target, value)
			vm.heap.Release(target)
			if err != nil {
				vm.heap.Release(value)
				return err
			}
			return vm.push(value)
		}
		prop, declared := obj.Class.Property(name)
		if _, ok := obj.Field(name); !ok && !declared {
			vm.heap.Release(value)
			vm.heap.Release(target)
			return vm.runtimeError("%s has no property %q", obj.Class.Name, name)
		}

		// willSet runs before the write with the incoming value.
		if declared && prop.WillSet != nil {
			if _, err := vm.callInline(prop.WillSet, target, value); err != nil {
				vm.heap.Release(value)
				vm.heap.Release(target)
				return err
			}
		}
		old, hadOld := obj.Field(name)
		if hadOld {
			vm.heap.Retain(old)
		}
		vm.heap.Retain(value)
		if prev, replaced := obj.SetField(name, value); replaced {
			vm.heap.Release(prev)
		}
		// didSet runs after the write with the previous value.
		if declared && prop.DidSet != nil {
			oldArg := object.Null
			if hadOld {
				oldArg = old
			}
			if _, err := vm.callInline(prop.DidSet, target, oldArg); err != nil {
				if hadOld {
					vm.heap.Release(old)
				}
				vm.heap.Release(value)
				vm.heap.Release(target)
				return err
			}
		}
		if hadOld {
			vm.heap.Release(old)
		}
		vm.heap.Release(target)
		return vm.push(value)

	case *object.Map:
		vm.heap.Retain(value)
		if prev, replaced := obj.Set(name, value); replaced {
			vm.heap.Release(prev)
		}
		vm.heap.Release(target)
		return vm.push(value)

	default:
		typeName := target.TypeName()
		vm.heap.Release(value)
		vm.heap.Release(target)
		return vm.runtimeError("cannot assign property %q on value of type %s", name, typeName)
	}
}

// superMethod implements SUPER: a bound method on self resolved against
// the defining class's superclass.
func (vm *VM) superMethod(name string) error {
	f := vm.activeFrame()
	if f.methodClass == nil || f.methodClass.Super == nil {
		return vm.runtimeError("super used outside of a subclass method")
	}
	super := f.methodClass.Super
	m, ok := super.Method(name)
	if !ok {
		return vm.runtimeError("%s has no method %q", super.Name, name)
	}
	recv := vm.stack[f.base]
	bm := vm.heap.NewBoundMethod(recv, m.Fn, super, m.Mutating)
	return vm.push(object.NewObjectValue(bm))
}

// inherit implements INHERIT. Stack: subclass, superclass-or-protocol.
// A protocol descriptor records a conformance; a class links as the
// superclass, copying its method and property descriptors down so member
// lookup never walks a chain.
func (vm *VM) inherit() error {
	sup := vm.pop()
	class, ok := vm.peek(0).Obj().(*object.Class)
	if !ok {
		vm.heap.Release(sup)
		return vm.runtimeError("INHERIT outside of type definition")
	}

	switch parent := sup.Obj().(type) {
	case *object.Protocol:
		class.Protocols = append(class.Protocols, parent.Name)
		vm.heap.Release(sup)
		return nil
	case *object.Class:
		if class.IsStruct || parent.IsStruct {
			name := parent.Name
			vm.heap.Release(sup)
			return vm.runtimeError("struct types cannot participate in inheritance (%s)", name)
		}
		for _, mname := range parent.MethodOrder {
			m := parent.Methods[mname]
			vm.heap.RetainObject(m.Fn)
			class.AddMethod(mname, &object.Method{Fn: m.Fn, Mutating: m.Mutating})
		}
		for _, p := range parent.Props {
			vm.heap.Retain(p.Default)
			if p.WillSet != nil {
				vm.heap.RetainObject(p.WillSet)
			}
			if p.DidSet != nil {
				vm.heap.RetainObject(p.DidSet)
			}
			class.AddProperty(&object.PropertyDef{
				Name:    p.Name,
				Default: p.Default,
				WillSet: p.WillSet,
				DidSet:  p.DidSet,
			})
		}
		for cname, comp := range parent.Computed {
			vm.heap.RetainObject(comp.Getter)
			if comp.Setter != nil {
				vm.heap.RetainObject(comp.Setter)
			}
			class.AddComputed(&object.ComputedDef{Name: cname, Getter: comp.Getter, Setter: comp.Setter})
		}
		class.Protocols = append(class.Protocols, parent.Protocols...)
		class.Super = parent // transfers the popped reference
		return nil
	default:
		typeName := sup.TypeName()
		vm.heap.Release(sup)
		return vm.runtimeError("superclass must be a class (got %s)", typeName)
	}
}

// defineMethod implements METHOD and STRUCT_METHOD, validating override
// declarations against inherited methods.
func (vm *VM) defineMethod(name string, mutating bool) error {
	mv := vm.pop()
	closure, ok := mv.Obj().(*object.Closure)
	if !ok {
		vm.heap.Release(mv)
		return vm.runtimeError("METHOD requires a function")
	}

	switch target := vm.peek(0).Obj().(type) {
	case *object.Class:
		_, inherited := target.Method(name)
		if !closure.Fn.IsInitializer {
			if closure.Fn.IsOverride && !inherited {
				vm.heap.Release(mv)
				return vm.runtimeError(
					"method %q in class %s is marked override but does not override a superclass method",
					name, target.Name)
			}
			if !closure.Fn.IsOverride && inherited {
				vm.heap.Release(mv)
				return vm.runtimeError(
					"method %q in class %s shadows a superclass method; declare it with override",
					name, target.Name)
			}
		}
		if inherited {
			old := target.Methods[name]
			defer vm.heap.ReleaseObject(old.Fn)
		}
		target.AddMethod(name, &object.Method{Fn: closure, Mutating: mutating})
		return nil
	case *object.EnumType:
		if old, exists := target.Methods[name]; exists {
			defer vm.heap.ReleaseObject(old.Fn)
		}
		target.AddMethod(name, &object.Method{Fn: closure, Mutating: mutating})
		return nil
	default:
		vm.heap.Release(mv)
		return vm.runtimeError("METHOD outside of type definition")
	}
}

// defineProperty implements DEFINE_PROPERTY and
// DEFINE_PROPERTY_WITH_OBSERVERS. Stack: type, default, then optional
// willSet and didSet closures selected by flags.
func (vm *VM) defineProperty(name string, flags byte) error {
	var willSet, didSet *object.Closure
	if flags&2 != 0 {
		v := vm.pop()
		c, ok := v.Obj().(*object.Closure)
		if !ok {
			vm.heap.Release(v)
			return vm.runtimeError("didSet observer must be a function")
		}
		didSet = c
	}
	if flags&1 != 0 {
		v := vm.pop()
		c, ok := v.Obj().(*object.Closure)
		if !ok {
			vm.heap.Release(v)
			return vm.runtimeError("willSet observer must be a function")
		}
		willSet = c
	}
	def := vm.pop()
	class, ok := vm.peek(0).Obj().(*object.Class)
	if !ok {
		vm.heap.Release(def)
		return vm.runtimeError("DEFINE_PROPERTY outside of type definition")
	}
	if old, exists := class.Property(name); exists {
		vm.heap.Release(old.Default)
		if old.WillSet != nil {
			vm.heap.ReleaseObject(old.WillSet)
		}
		if old.DidSet != nil {
			vm.heap.ReleaseObject(old.DidSet)
		}
	}
	class.AddProperty(&object.PropertyDef{
		Name:    name,
		Default: def,
		WillSet: willSet,
		DidSet:  didSet,
	})
	return nil
}

// defineComputedProperty implements DEFINE_COMPUTED_PROPERTY. Stack:
// type, getter, then the setter when present.
func (vm *VM) defineComputedProperty(name string, hasSetter bool) error {
	var setter *object.Closure
	if hasSetter {
		v := vm.pop()
		c, ok := v.Obj().(*object.Closure)
		if !ok {
			vm.heap.Release(v)
			return vm.runtimeError("property setter must be a function")
		}
		setter = c
	}
	gv := vm.pop()
	getter, ok := gv.Obj().(*object.Closure)
	if !ok {
		vm.heap.Release(gv)
		return vm.runtimeError("property getter must be a function")
	}
	switch target := vm.peek(0).Obj().(type) {
	case *object.Class:
		if old, exists := target.ComputedProperty(name); exists {
			vm.heap.ReleaseObject(old.Getter)
			if old.Setter != nil {
				vm.heap.ReleaseObject(old.Setter)
			}
		}
		target.AddComputed(&object.ComputedDef{Name: name, Getter: getter, Setter: setter})
		return nil
	case *object.EnumType:
		target.AddComputed(&object.ComputedDef{Name: name, Getter: getter, Setter: setter})
		return nil
	default:
		vm.heap.ReleaseObject(getter)
		return vm.runtimeError("DEFINE_COMPUTED_PROPERTY outside of type definition")
	}
}

// getSubscript implements GET_SUBSCRIPT: arrays index by integer, maps by
// string, ranges by integer offset.
func (vm *VM) getSubscript() error {
	index := vm.pop()
	target := vm.pop()
	defer vm.heap.Release(target)
	defer vm.heap.Release(index)

	switch obj := target.Obj().(type) {
	case *object.Array:
		if !index.IsInt() {
			return vm.runtimeError("array index must be an integer (got %s)", index.TypeName())
		}
		i := index.Int()
		if i < 0 || i >= int64(len(obj.Items)) {
			return vm.runtimeError("array index %d out of range (count %d)", i, len(obj.Items))
		}
		item := obj.Items[i]
		vm.heap.Retain(item)
		return vm.push(item)
	case *object.Map:
		key, ok := index.AsString()
		if !ok {
			return vm.runtimeError("dictionary key must be a string (got %s)", index.TypeName())
		}
		item, ok := obj.Get(key)
		if !ok {
			return vm.push(object.Null)
		}
		vm.heap.Retain(item)
		return vm.push(item)
	case *object.Range:
		if !index.IsInt() {
			return vm.runtimeError("range index must be an integer (got %s)", index.TypeName())
		}
		i := index.Int()
		if i < 0 || i >= obj.Len() {
			return vm.runtimeError("range index %d out of range (count %d)", i, obj.Len())
		}
		return vm.push(object.NewInt(obj.From + i))
	case *object.Tuple:
		if !index.IsInt() {
			return vm.runtimeError("tuple index must be an integer (got %s)", index.TypeName())
		}
		i := index.Int()
		if i < 0 || i >= int64(len(obj.Items)) {
			return vm.runtimeError("tuple index %d out of range", i)
		}
		item := obj.Items[i]
		vm.heap.Retain(item)
		return vm.push(item)
	default:
		return vm.runtimeError("value of type %s is not subscriptable", target.TypeName())
	}
}

// setSubscript implements SET_SUBSCRIPT. Stack: target, index, value.
func (vm *VM) setSubscript() error {
	value := vm.pop()
	index := vm.pop()
	target := vm.pop()
	defer vm.heap.Release(target)
	defer vm.heap.Release(index)

	switch obj := target.Obj().(type) {
	case *object.Array:
		if !index.IsInt() {
			vm.heap.Release(value)
			return vm.runtimeError("array index must be an integer (got %s)", index.TypeName())
		}
		i := index.Int()
		if i < 0 || i >= int64(len(obj.Items)) {
			vm.heap.Release(value)
			return vm.runtimeError("array index %d out of range (count %d)", i, len(obj.Items))
		}
		vm.heap.Retain(value)
		vm.heap.Release(obj.Items[i])
		obj.Items[i] = value
		return vm.push(value)
	case *object.Map:
		key, ok := index.AsString()
		if !ok {
			vm.heap.Release(value)
			return vm.runtimeError("dictionary key must be a string (got %s)", index.TypeName())
		}
		vm.heap.Retain(value)
		if prev, replaced := obj.Set(key, value); replaced {
			vm.heap.Release(prev)
		}
		return vm.push(value)
	default:
		vm.heap.Release(value)
		return vm.runtimeError("value of type %s is not subscript-assignable", target.TypeName())
	}
}
