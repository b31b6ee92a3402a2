package object

import "sync/atomic"

// Heap allocates heap objects and tracks their lifetime with deterministic
// reference counting. Objects begin with a refcount of 1. When a refcount
// drops to zero the object is enqueued on the cleanup queue rather than
// destroyed in place; the VM drains the queue after each instruction, so
// destructors never run in the middle of an instruction handler and owned
// children are released iteratively instead of recursively.
//
// Allocation constructors take ownership of the values passed to them: the
// caller transfers its reference into the new container.
type Heap struct {
	live  int64
	queue []Object
}

// NewHeap creates an empty heap.
func NewHeap() *Heap {
	return &Heap{}
}

// LiveCount returns the number of live tracked objects, for diagnostics
// and leak checks.
func (h *Heap) LiveCount() int64 {
	return atomic.LoadInt64(&h.live)
}

// PendingCount returns the number of objects awaiting destruction.
func (h *Heap) PendingCount() int {
	return len(h.queue)
}

func (h *Heap) alloc(o Object, kind Kind) {
	hd := o.hdr()
	hd.kind = kind
	hd.refs = 1
	atomic.AddInt64(&h.live, 1)
}

// NewString allocates a string object.
func (h *Heap) NewString(s string) *String {
	o := &String{Value: s}
	h.alloc(o, KindString)
	return o
}

// NewStringValue allocates a string object wrapped in a Value.
func (h *Heap) NewStringValue(s string) Value {
	return NewObjectValue(h.NewString(s))
}

// NewArray allocates an array owning the given items.
func (h *Heap) NewArray(items []Value) *Array {
	o := &Array{Items: items}
	h.alloc(o, KindArray)
	return o
}

// NewMap allocates an empty map.
func (h *Heap) NewMap() *Map {
	o := &Map{items: map[string]Value{}}
	h.alloc(o, KindMap)
	return o
}

// NewTuple allocates a tuple owning the given items.
func (h *Heap) NewTuple(items []Value, labels []string) *Tuple {
	o := &Tuple{Items: items, Labels: labels}
	h.alloc(o, KindTuple)
	return o
}

// NewRange allocates a range object.
func (h *Heap) NewRange(from, to int64, inclusive bool) *Range {
	o := &Range{From: from, To: to, Inclusive: inclusive}
	h.alloc(o, KindRange)
	return o
}

// NewFunction allocates a function template owning the default values.
func (h *Heap) NewFunction(fn *Function) *Function {
	h.alloc(fn, KindFunction)
	return fn
}

// NewClosure allocates a closure owning one reference to the function and
// to each upvalue.
func (h *Heap) NewClosure(fn *Function, upvalues []*Upvalue) *Closure {
	o := &Closure{Fn: fn, Upvalues: upvalues}
	h.alloc(o, KindClosure)
	return o
}

// NewUpvalue allocates an open upvalue pointing at the given stack slot.
func (h *Heap) NewUpvalue(location *Value, slot int) *Upvalue {
	o := &Upvalue{Location: location, Slot: slot}
	h.alloc(o, KindUpvalue)
	return o
}

// NewClass allocates a class or struct type object.
func (h *Heap) NewClass(name string, isStruct bool) *Class {
	o := &Class{Name: name, IsStruct: isStruct, Methods: map[string]*Method{}, Computed: map[string]*ComputedDef{}, propIndex: map[string]int{}}
	h.alloc(o, KindClass)
	return o
}

// NewInstance allocates an instance of the given class, retaining the
// class handle.
func (h *Heap) NewInstance(class *Class) *Instance {
	o := &Instance{Class: class, fields: map[string]Value{}}
	h.alloc(o, KindInstance)
	h.RetainObject(class)
	return o
}

// NewEnumType allocates an enum type object.
func (h *Heap) NewEnumType(name string) *EnumType {
	o := &EnumType{Name: name, Methods: map[string]*Method{}, Computed: map[string]*ComputedDef{}}
	h.alloc(o, KindEnum)
	return o
}

// NewEnumCase allocates an enum value, retaining the enum type and owning
// the raw and associated values.
func (h *Heap) NewEnumCase(enum *EnumType, caseIndex int, raw Value, assoc []Value) *EnumCase {
	o := &EnumCase{Enum: enum, CaseIndex: caseIndex, Raw: raw, Assoc: assoc}
	h.alloc(o, KindEnumCase)
	h.RetainObject(enum)
	return o
}

// NewProtocol allocates a protocol descriptor object.
func (h *Heap) NewProtocol(name string, methods, properties []string) *Protocol {
	o := &Protocol{Name: name, Methods: methods, Properties: properties}
	h.alloc(o, KindProtocol)
	return o
}

// NewNativeFunc allocates a native function object.
func (h *Heap) NewNativeFunc(name string, fn NativeFuncImpl) *NativeFunc {
	o := &NativeFunc{Name: name, Fn: fn}
	h.alloc(o, KindNativeFunc)
	return o
}

// NewBoundMethod allocates a bound method, retaining the receiver and the
// method closure.
func (h *Heap) NewBoundMethod(receiver Value, method *Closure, definingClass *Class, mutating bool) *BoundMethod {
	o := &BoundMethod{Receiver: receiver, Method: method, DefiningClass: definingClass, Mutating: mutating}
	h.alloc(o, KindBoundMethod)
	h.Retain(receiver)
	h.RetainObject(method)
	return o
}

// NewEnumCaseCtor allocates an enum case constructor, retaining the enum
// type.
func (h *Heap) NewEnumCaseCtor(enum *EnumType, caseIndex int) *EnumCaseCtor {
	o := &EnumCaseCtor{Enum: enum, CaseIndex: caseIndex}
	h.alloc(o, KindEnumCaseCtor)
	h.RetainObject(enum)
	return o
}

// NewNativeHandle allocates a native handle wrapping a host pointer.
func (h *Heap) NewNativeHandle(ptr any, typeName string, release func(any), engineOwned bool) *NativeHandle {
	o := &NativeHandle{Ptr: ptr, Type: typeName, Release: release, EngineOwned: engineOwned}
	h.alloc(o, KindNativeHandle)
	return o
}

// Retain adds a strong reference to the value's object, if it has one.
func (h *Heap) Retain(v Value) {
	if o := v.Obj(); o != nil {
		h.RetainObject(o)
	}
}

// RetainObject adds a strong reference to the object.
func (h *Heap) RetainObject(o Object) {
	atomic.AddInt32(&o.hdr().refs, 1)
}

// Release drops a strong reference from the value's object, if it has one.
func (h *Heap) Release(v Value) {
	if o := v.Obj(); o != nil {
		h.ReleaseObject(o)
	}
}

// ReleaseObject drops a strong reference. At zero the object is enqueued
// for destruction on the next Drain.
func (h *Heap) ReleaseObject(o Object) {
	if o == nil {
		return
	}
	refs := atomic.AddInt32(&o.hdr().refs, -1)
	if refs == 0 {
		h.queue = append(h.queue, o)
	}
}

// Drain destroys every enqueued object, releasing owned children. A
// child's release may enqueue further objects; draining continues until
// the queue is empty.
func (h *Heap) Drain() {
	for len(h.queue) > 0 {
		o := h.queue[0]
		h.queue = h.queue[1:]
		h.destroy(o)
		atomic.AddInt64(&h.live, -1)
	}
}

// destroy releases the object's owned handles. It must not recurse into
// child destructors: children are released, which at most enqueues them.
func (h *Heap) destroy(o Object) {
	switch o := o.(type) {
	case *String, *Range, *Protocol, *NativeFunc:
	case *Array:
		for _, v := range o.Items {
			h.Release(v)
		}
		o.Items = nil
	case *Map:
		for _, k := range o.keys {
			h.Release(o.items[k])
		}
		o.keys = nil
		o.items = nil
	case *Tuple:
		for _, v := range o.Items {
			h.Release(v)
		}
		o.Items = nil
	case *Function:
		for i, v := range o.Defaults {
			if i < len(o.HasDefault) && o.HasDefault[i] {
				h.Release(v)
			}
		}
		o.Defaults = nil
	case *Closure:
		h.ReleaseObject(o.Fn)
		for _, uv := range o.Upvalues {
			h.ReleaseObject(uv)
		}
		o.Upvalues = nil
	case *Upvalue:
		if o.IsClosed() {
			h.Release(o.closed)
		}
	case *Class:
		for _, name := range o.MethodOrder {
			if m := o.Methods[name]; m != nil && m.Fn != nil {
				h.ReleaseObject(m.Fn)
			}
		}
		for _, p := range o.Props {
			h.Release(p.Default)
			if p.WillSet != nil {
				h.ReleaseObject(p.WillSet)
			}
			if p.DidSet != nil {
				h.ReleaseObject(p.DidSet)
			}
		}
		for _, d := range o.Computed {
			if d.Getter != nil {
				h.ReleaseObject(d.Getter)
			}
			if d.Setter != nil {
				h.ReleaseObject(d.Setter)
			}
		}
		if o.Super != nil {
			h.ReleaseObject(o.Super)
		}
		o.Methods = nil
		o.Props = nil
		o.Computed = nil
	case *Instance:
		for _, name := range o.order {
			h.Release(o.fields[name])
		}
		h.ReleaseObject(o.Class)
		o.fields = nil
		o.order = nil
	case *EnumType:
		for _, c := range o.Cases {
			if c.HasRaw {
				h.Release(c.Raw)
			}
		}
		for _, name := range o.MethodOrder {
			if m := o.Methods[name]; m != nil && m.Fn != nil {
				h.ReleaseObject(m.Fn)
			}
		}
		for _, d := range o.Computed {
			if d.Getter != nil {
				h.ReleaseObject(d.Getter)
			}
			if d.Setter != nil {
				h.ReleaseObject(d.Setter)
			}
		}
		o.Cases = nil
		o.Methods = nil
	case *EnumCase:
		h.Release(o.Raw)
		for _, v := range o.Assoc {
			h.Release(v)
		}
		h.ReleaseObject(o.Enum)
		o.Assoc = nil
	case *BoundMethod:
		h.Release(o.Receiver)
		h.ReleaseObject(o.Method)
	case *EnumCaseCtor:
		h.ReleaseObject(o.Enum)
	case *NativeHandle:
		if o.Release != nil {
			o.Release(o.Ptr)
		}
		o.Ptr = nil
	}
}

// CopyValue produces a deep copy of a struct instance: struct-typed fields
// are copied recursively, class-typed fields and every other object are
// shared with a retained reference. For non-struct values it reports
// copied=false and returns the value unchanged.
func (h *Heap) CopyValue(v Value) (Value, bool) {
	inst, ok := v.Obj().(*Instance)
	if !ok || !inst.Class.IsStruct {
		return v, false
	}
	dup := h.NewInstance(inst.Class)
	for _, name := range inst.order {
		fv := inst.fields[name]
		if c, copied := h.CopyValue(fv); copied {
			dup.SetField(name, c)
		} else {
			h.Retain(fv)
			dup.SetField(name, fv)
		}
	}
	return NewObjectValue(dup), true
}
