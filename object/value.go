package object

import (
	"fmt"
	"strconv"
	"strings"
)

// ValueKind tags the variant held by a Value.
type ValueKind uint8

const (
	ValueNull ValueKind = iota
	ValueBool
	ValueInt
	ValueFloat
	ValueObject
)

// Value is the tagged representation of every SunScript value: null, bool,
// 64-bit int, 64-bit float, or a handle to a heap object. Values are small
// and copied freely; object handles share the referent.
type Value struct {
	kind ValueKind
	i    int64
	f    float64
	obj  Object
}

// Null is the null value.
var Null = Value{kind: ValueNull}

// True and False are the boolean values.
var (
	True  = Value{kind: ValueBool, i: 1}
	False = Value{kind: ValueBool, i: 0}
)

// NewInt returns an integer value.
func NewInt(i int64) Value {
	return Value{kind: ValueInt, i: i}
}

// NewFloat returns a float value.
func NewFloat(f float64) Value {
	return Value{kind: ValueFloat, f: f}
}

// NewBool returns a boolean value.
func NewBool(b bool) Value {
	if b {
		return True
	}
	return False
}

// NewObjectValue wraps a heap object in a Value.
func NewObjectValue(o Object) Value {
	return Value{kind: ValueObject, obj: o}
}

// ValueKind returns the value's variant tag.
func (v Value) ValueKind() ValueKind { return v.kind }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.kind == ValueNull }

// IsBool reports whether the value is a boolean.
func (v Value) IsBool() bool { return v.kind == ValueBool }

// IsInt reports whether the value is an integer.
func (v Value) IsInt() bool { return v.kind == ValueInt }

// IsFloat reports whether the value is a float.
func (v Value) IsFloat() bool { return v.kind == ValueFloat }

// IsNumeric reports whether the value is an int or float.
func (v Value) IsNumeric() bool { return v.kind == ValueInt || v.kind == ValueFloat }

// IsObject reports whether the value is a heap object handle.
func (v Value) IsObject() bool { return v.kind == ValueObject }

// IsString reports whether the value is a string object.
func (v Value) IsString() bool {
	return v.kind == ValueObject && v.obj.Kind() == KindString
}

// Int returns the integer payload. Valid only when IsInt.
func (v Value) Int() int64 { return v.i }

// Float returns the float payload. Valid only when IsFloat.
func (v Value) Float() float64 { return v.f }

// Bool returns the boolean payload. Valid only when IsBool.
func (v Value) Bool() bool { return v.i != 0 }

// Obj returns the object handle, or nil for non-object values.
func (v Value) Obj() Object {
	if v.kind != ValueObject {
		return nil
	}
	return v.obj
}

// AsFloat coerces the value to a float: an int promotes, a float passes
// through, and anything else fails.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case ValueInt:
		return float64(v.i), true
	case ValueFloat:
		return v.f, true
	default:
		return 0, false
	}
}

// AsString returns the string content when the value is a string object.
func (v Value) AsString() (string, bool) {
	if !v.IsString() {
		return "", false
	}
	return v.obj.(*String).Value, true
}

// IsTruthy reports the value's truthiness: false and null are falsy,
// everything else is truthy.
func (v Value) IsTruthy() bool {
	switch v.kind {
	case ValueNull:
		return false
	case ValueBool:
		return v.i != 0
	default:
		return true
	}
}

// Equals compares two values. Primitives compare by content with numeric
// promotion across int and float. Strings compare by content. Enum cases
// compare by enum, case and associated values. Other objects compare by
// handle identity. Null equals only null.
func (v Value) Equals(other Value) bool {
	if v.kind == ValueNull || other.kind == ValueNull {
		return v.kind == ValueNull && other.kind == ValueNull
	}
	if v.IsNumeric() && other.IsNumeric() {
		if v.kind == ValueInt && other.kind == ValueInt {
			return v.i == other.i
		}
		a, _ := v.AsFloat()
		b, _ := other.AsFloat()
		return a == b
	}
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case ValueBool:
		return v.i == other.i
	case ValueObject:
		if v.obj.Kind() == KindString && other.obj.Kind() == KindString {
			return v.obj.(*String).Value == other.obj.(*String).Value
		}
		if v.obj.Kind() == KindEnumCase && other.obj.Kind() == KindEnumCase {
			return v.obj.(*EnumCase).SameCase(other.obj.(*EnumCase))
		}
		return v.obj == other.obj
	default:
		return false
	}
}

// TypeName returns the script-visible type name of the value.
func (v Value) TypeName() string {
	switch v.kind {
	case ValueNull:
		return "Null"
	case ValueBool:
		return "Bool"
	case ValueInt:
		return "Int"
	case ValueFloat:
		return "Float"
	case ValueObject:
		return v.obj.TypeName()
	default:
		return "Invalid"
	}
}

// String returns the printable representation of the value, used by the
// PRINT instruction and by diagnostics.
func (v Value) String() string {
	switch v.kind {
	case ValueNull:
		return "nil"
	case ValueBool:
		if v.i != 0 {
			return "true"
		}
		return "false"
	case ValueInt:
		return strconv.FormatInt(v.i, 10)
	case ValueFloat:
		return formatFloat(v.f)
	case ValueObject:
		return v.obj.String()
	default:
		return "<invalid>"
	}
}

// formatFloat prints floats with a trailing ".0" for whole numbers so that
// ints and floats remain visually distinct.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// Inspect returns the diagnostic representation: like String, but strings
// are quoted. Used when values appear inside containers.
func (v Value) Inspect() string {
	if s, ok := v.AsString(); ok {
		return fmt.Sprintf("%q", s)
	}
	return v.String()
}
