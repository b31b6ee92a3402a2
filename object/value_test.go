package object

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValueQueries(t *testing.T) {
	require.True(t, Null.IsNull())
	require.True(t, True.IsBool())
	require.True(t, NewInt(3).IsInt())
	require.True(t, NewFloat(1.5).IsFloat())

	h := NewHeap()
	s := h.NewStringValue("hi")
	require.True(t, s.IsObject())
	require.True(t, s.IsString())

	str, ok := s.AsString()
	require.True(t, ok)
	require.Equal(t, "hi", str)
}

func TestAsFloatPromotion(t *testing.T) {
	f, ok := NewInt(4).AsFloat()
	require.True(t, ok)
	require.Equal(t, 4.0, f)

	f, ok = NewFloat(2.5).AsFloat()
	require.True(t, ok)
	require.Equal(t, 2.5, f)

	_, ok = True.AsFloat()
	require.False(t, ok)
	_, ok = Null.AsFloat()
	require.False(t, ok)
}

func TestTruthiness(t *testing.T) {
	require.False(t, Null.IsTruthy())
	require.False(t, False.IsTruthy())
	require.True(t, True.IsTruthy())
	require.True(t, NewInt(0).IsTruthy())
	require.True(t, NewFloat(0).IsTruthy())

	h := NewHeap()
	require.True(t, h.NewStringValue("").IsTruthy())
}

func TestEquality(t *testing.T) {
	require.True(t, Null.Equals(Null))
	require.False(t, Null.Equals(NewInt(0)))
	require.True(t, NewInt(3).Equals(NewInt(3)))
	require.True(t, NewInt(3).Equals(NewFloat(3.0)))
	require.False(t, NewInt(3).Equals(NewFloat(3.5)))
	require.False(t, True.Equals(NewInt(1)))

	h := NewHeap()
	a := h.NewStringValue("x")
	b := h.NewStringValue("x")
	require.True(t, a.Equals(b), "strings compare by content")

	arr1 := NewObjectValue(h.NewArray(nil))
	arr2 := NewObjectValue(h.NewArray(nil))
	require.False(t, arr1.Equals(arr2), "non-string objects compare by identity")
	require.True(t, arr1.Equals(arr1))
}

func TestStringRepresentations(t *testing.T) {
	require.Equal(t, "nil", Null.String())
	require.Equal(t, "true", True.String())
	require.Equal(t, "42", NewInt(42).String())
	require.Equal(t, "2.5", NewFloat(2.5).String())
	require.Equal(t, "3.0", NewFloat(3).String(), "whole floats keep a decimal point")

	h := NewHeap()
	arr := h.NewArray([]Value{NewInt(1), h.NewStringValue("a")})
	require.Equal(t, `[1, "a"]`, NewObjectValue(arr).String())

	tup := h.NewTuple([]Value{NewInt(1), NewInt(2)}, []string{"", "y"})
	require.Equal(t, "(1, y: 2)", NewObjectValue(tup).String())
}

func TestMapInsertionOrder(t *testing.T) {
	h := NewHeap()
	m := h.NewMap()
	m.Set("b", NewInt(1))
	m.Set("a", NewInt(2))
	m.Set("b", NewInt(3))
	require.Equal(t, []string{"b", "a"}, m.Keys())
	v, ok := m.Get("b")
	require.True(t, ok)
	require.Equal(t, int64(3), v.Int())
}
