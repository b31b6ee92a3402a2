package object

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRefcountLifecycle(t *testing.T) {
	h := NewHeap()
	s := h.NewString("hello")
	require.Equal(t, int32(1), s.RefCount())
	require.Equal(t, int64(1), h.LiveCount())

	h.RetainObject(s)
	require.Equal(t, int32(2), s.RefCount())

	h.ReleaseObject(s)
	require.Equal(t, int64(1), h.LiveCount(), "still live until drained")

	h.ReleaseObject(s)
	require.Equal(t, 1, h.PendingCount())
	h.Drain()
	require.Equal(t, int64(0), h.LiveCount())
}

func TestDrainReleasesChildren(t *testing.T) {
	h := NewHeap()
	inner := h.NewString("inner")
	arr := h.NewArray([]Value{NewObjectValue(inner)})
	require.Equal(t, int64(2), h.LiveCount())

	h.ReleaseObject(arr)
	h.Drain()
	require.Equal(t, int64(0), h.LiveCount(), "array destruction releases its items")
}

func TestDeferredDestructionIsNotReentered(t *testing.T) {
	h := NewHeap()
	released := 0
	nested := h.NewNativeHandle("inner", "Res", func(any) { released++ }, false)
	outer := h.NewArray([]Value{NewObjectValue(nested)})

	h.ReleaseObject(outer)
	h.Drain()
	require.Equal(t, 1, released, "each object is destroyed exactly once")
	h.Drain()
	require.Equal(t, 1, released)
}

func TestNativeHandleReleaseNotification(t *testing.T) {
	h := NewHeap()
	var got any
	nh := h.NewNativeHandle(42, "Counter", func(ptr any) { got = ptr }, true)
	h.ReleaseObject(nh)
	h.Drain()
	require.Equal(t, 42, got)
}

func TestClosedUpvalueKeepsCaptureAliveAcrossScopeExit(t *testing.T) {
	h := NewHeap()

	// A stack slot holds a string captured by a closure's upvalue.
	stack := []Value{NewObjectValue(h.NewString("captured"))}
	uv := h.NewUpvalue(&stack[0], 0)
	fn := h.NewFunction(&Function{Name: "f"})
	cl := h.NewClosure(fn, []*Upvalue{uv})

	// Scope exit: the upvalue takes ownership of a copy of the slot and
	// the slot's reference drops.
	h.Retain(stack[0])
	uv.Close()
	require.True(t, uv.IsClosed())
	h.Release(stack[0])
	stack[0] = Null
	h.Drain()

	// The capture stays observable through the closure.
	s, ok := uv.Get().AsString()
	require.True(t, ok)
	require.Equal(t, "captured", s)

	// Dropping the closure releases the upvalue and the captured string;
	// each count reaches zero exactly once.
	h.ReleaseObject(cl)
	h.Drain()
	require.Equal(t, int64(0), h.LiveCount())
}

func TestCopyValueStructSemantics(t *testing.T) {
	h := NewHeap()
	point := h.NewClass("Point", true)
	point.AddProperty(&PropertyDef{Name: "x", Default: NewInt(0)})

	a := h.NewInstance(point)
	a.SetField("x", NewInt(10))

	v, copied := h.CopyValue(NewObjectValue(a))
	require.True(t, copied)
	b := v.Obj().(*Instance)
	b.SetField("x", NewInt(99))

	ax, _ := a.Field("x")
	bx, _ := b.Field("x")
	require.Equal(t, int64(10), ax.Int())
	require.Equal(t, int64(99), bx.Int())
}

func TestCopyValueSharesClassReferences(t *testing.T) {
	h := NewHeap()
	box := h.NewClass("Box", false)
	inner := h.NewInstance(box)

	holder := h.NewClass("Holder", true)
	outer := h.NewInstance(holder)
	outer.SetField("b", NewObjectValue(inner))

	v, copied := h.CopyValue(NewObjectValue(outer))
	require.True(t, copied)
	dup := v.Obj().(*Instance)

	got, _ := dup.Field("b")
	require.Same(t, inner, got.Obj(), "class-typed fields share identity")
	require.Equal(t, int32(2), inner.RefCount())
}

func TestCopyValueNonStructPassesThrough(t *testing.T) {
	h := NewHeap()
	_, copied := h.CopyValue(NewInt(1))
	require.False(t, copied)

	cls := h.NewClass("C", false)
	inst := h.NewInstance(cls)
	_, copied = h.CopyValue(NewObjectValue(inst))
	require.False(t, copied)
}

func TestUpvalueOpenAndClosedStates(t *testing.T) {
	h := NewHeap()
	stack := make([]Value, 4)
	stack[2] = NewInt(7)

	uv := h.NewUpvalue(&stack[2], 2)
	require.False(t, uv.IsClosed())
	require.Equal(t, int64(7), uv.Get().Int())

	uv.Set(NewInt(8))
	require.Equal(t, int64(8), stack[2].Int(), "open upvalue writes through to the slot")

	uv.Close()
	stack[2] = Null
	require.Equal(t, int64(8), uv.Get().Int(), "closed upvalue owns the value")
	uv.Set(NewInt(9))
	require.True(t, stack[2].IsNull())
	require.Equal(t, int64(9), uv.Get().Int())
}
