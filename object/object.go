// Package object provides the runtime value representation and heap object
// types for the SunScript virtual machine.
//
// Primitive values (null, bool, int, float) are stored inline in a Value.
// Everything else lives on the Heap as a reference-counted Object. Strings
// are heap objects but compare by content.
package object

import "sync/atomic"

// Kind identifies the variant of a heap object.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindString
	KindArray
	KindMap
	KindTuple
	KindRange
	KindFunction
	KindClosure
	KindUpvalue
	KindClass
	KindInstance
	KindEnum
	KindEnumCase
	KindProtocol
	KindNativeFunc
	KindNativeHandle
	KindBoundMethod
	KindEnumCaseCtor
)

// String returns the user-visible type name for the kind.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "String"
	case KindArray:
		return "Array"
	case KindMap:
		return "Dictionary"
	case KindTuple:
		return "Tuple"
	case KindRange:
		return "Range"
	case KindFunction:
		return "Function"
	case KindClosure:
		return "Function"
	case KindUpvalue:
		return "Upvalue"
	case KindClass:
		return "Class"
	case KindInstance:
		return "Instance"
	case KindEnum:
		return "Enum"
	case KindEnumCase:
		return "EnumCase"
	case KindProtocol:
		return "Protocol"
	case KindNativeFunc:
		return "NativeFunction"
	case KindNativeHandle:
		return "Native"
	case KindBoundMethod:
		return "Function"
	case KindEnumCaseCtor:
		return "Function"
	default:
		return "Invalid"
	}
}

// header is the common object header: variant tag plus strong refcount.
// Every heap object embeds it via base.
type header struct {
	kind Kind
	refs int32
}

// base is embedded by every object variant to supply the shared header.
type base struct {
	h header
}

func (b *base) hdr() *header { return &b.h }

// Kind returns the object's variant tag.
func (b *base) Kind() Kind { return b.h.kind }

// RefCount returns the current strong reference count.
func (b *base) RefCount() int32 { return atomic.LoadInt32(&b.h.refs) }

// Object is implemented by every heap object variant.
type Object interface {
	Kind() Kind
	RefCount() int32
	String() string
	hdr() *header

	// TypeName returns the script-visible type name: the class, struct,
	// enum, or protocol name for user types, the Kind name otherwise.
	TypeName() string
}
