// Package op defines opcodes used by the SunScript compiler and virtual machine.
package op

// Code is a one-byte opcode that indicates an operation to execute.
type Code byte

const (
	Invalid Code = 0

	// Constants and stack
	Constant Code = 1
	String   Code = 2
	Nil      Code = 3
	True     Code = 4
	False    Code = 5
	Pop      Code = 6
	Dup      Code = 7

	// Arithmetic
	Add      Code = 10
	Subtract Code = 11
	Multiply Code = 12
	Divide   Code = 13
	Modulo   Code = 14
	Negate   Code = 15

	// Bitwise
	BitwiseNot Code = 20
	BitwiseAnd Code = 21
	BitwiseOr  Code = 22
	BitwiseXor Code = 23
	LeftShift  Code = 24
	RightShift Code = 25

	// Comparison and logic
	Equal        Code = 30
	NotEqual     Code = 31
	Less         Code = 32
	Greater      Code = 33
	LessEqual    Code = 34
	GreaterEqual Code = 35
	Not          Code = 36

	// Variables
	GetGlobal    Code = 40
	SetGlobal    Code = 41
	DefineGlobal Code = 42
	GetLocal     Code = 43
	SetLocal     Code = 44

	// Control flow
	Jump        Code = 50
	JumpIfFalse Code = 51
	JumpIfNil   Code = 52
	Loop        Code = 53

	// Functions and closures
	Function     Code = 60
	Closure      Code = 61
	GetUpvalue   Code = 62
	SetUpvalue   Code = 63
	CloseUpvalue Code = 64
	Call         Code = 65
	CallNamed    Code = 66
	Return       Code = 67

	// Classes
	Class                       Code = 70
	Method                      Code = 71
	DefineProperty              Code = 72
	DefineComputedProperty      Code = 73
	DefinePropertyWithObservers Code = 74
	Inherit                     Code = 75

	// Members
	GetProperty   Code = 80
	SetProperty   Code = 81
	Super         Code = 82
	OptionalChain Code = 83

	// Optionals
	Unwrap      Code = 86
	NilCoalesce Code = 87

	// Ranges
	RangeInclusive Code = 90
	RangeExclusive Code = 91

	// Collections
	Array        Code = 100
	Dict         Code = 101
	GetSubscript Code = 102
	SetSubscript Code = 103

	// Tuples
	Tuple         Code = 106
	GetTupleIndex Code = 107
	GetTupleLabel Code = 108

	// Structs
	Struct       Code = 110
	StructMethod Code = 111
	CopyValue    Code = 112

	// Enums
	Enum          Code = 115
	EnumCase      Code = 116
	MatchEnumCase Code = 117
	GetAssociated Code = 118

	// Protocols
	Protocol Code = 120

	// Type operations
	TypeCheck        Code = 125
	TypeCast         Code = 126
	TypeCastOptional Code = 127
	TypeCastForced   Code = 128

	// Error handling
	Throw       Code = 130
	PushHandler Code = 131
	PopHandler  Code = 132

	// I/O
	ReadLine Code = 135
	Print    Code = 136

	Halt Code = 140
)

// Width is the size in bytes of one instruction operand.
type Width int

const (
	Width8  Width = 1
	Width16 Width = 2
)

// Info describes an opcode: its disassembly name and the widths of its
// fixed operands. Opcodes with a variable-length tail (CallNamed, Tuple,
// EnumCase) list only the fixed prefix here; the disassembler and
// the VM decode the tail from the prefix.
type Info struct {
	Code     Code
	Name     string
	Operands []Width
}

var infos = make([]Info, 256)

func init() {
	type opInfo struct {
		op       Code
		name     string
		operands []Width
	}
	ops := []opInfo{
		{Constant, "CONSTANT", []Width{Width16}},
		{String, "STRING", []Width{Width16}},
		{Nil, "NIL", nil},
		{True, "TRUE", nil},
		{False, "FALSE", nil},
		{Pop, "POP", nil},
		{Dup, "DUP", nil},
		{Add, "ADD", nil},
		{Subtract, "SUBTRACT", nil},
		{Multiply, "MULTIPLY", nil},
		{Divide, "DIVIDE", nil},
		{Modulo, "MODULO", nil},
		{Negate, "NEGATE", nil},
		{BitwiseNot, "BITWISE_NOT", nil},
		{BitwiseAnd, "BITWISE_AND", nil},
		{BitwiseOr, "BITWISE_OR", nil},
		{BitwiseXor, "BITWISE_XOR", nil},
		{LeftShift, "LEFT_SHIFT", nil},
		{RightShift, "RIGHT_SHIFT", nil},
		{Equal, "EQUAL", nil},
		{NotEqual, "NOT_EQUAL", nil},
		{Less, "LESS", nil},
		{Greater, "GREATER", nil},
		{LessEqual, "LESS_EQUAL", nil},
		{GreaterEqual, "GREATER_EQUAL", nil},
		{Not, "NOT", nil},
		{GetGlobal, "GET_GLOBAL", []Width{Width16}},
		{SetGlobal, "SET_GLOBAL", []Width{Width16}},
		{DefineGlobal, "DEFINE_GLOBAL", []Width{Width16}},
		{GetLocal, "GET_LOCAL", []Width{Width16}},
		{SetLocal, "SET_LOCAL", []Width{Width16}},
		{Jump, "JUMP", []Width{Width16}},
		{JumpIfFalse, "JUMP_IF_FALSE", []Width{Width16}},
		{JumpIfNil, "JUMP_IF_NIL", []Width{Width16}},
		{Loop, "LOOP", []Width{Width16}},
		{Function, "FUNCTION", []Width{Width16}},
		{Closure, "CLOSURE", []Width{Width16}},
		{GetUpvalue, "GET_UPVALUE", []Width{Width16}},
		{SetUpvalue, "SET_UPVALUE", []Width{Width16}},
		{CloseUpvalue, "CLOSE_UPVALUE", nil},
		{Call, "CALL", []Width{Width8}},
		{CallNamed, "CALL_NAMED", []Width{Width8}},
		{Return, "RETURN", nil},
		{Class, "CLASS", []Width{Width16}},
		{Method, "METHOD", []Width{Width16}},
		{DefineProperty, "DEFINE_PROPERTY", []Width{Width16}},
		{DefineComputedProperty, "DEFINE_COMPUTED_PROPERTY", []Width{Width16, Width8}},
		{DefinePropertyWithObservers, "DEFINE_PROPERTY_WITH_OBSERVERS", []Width{Width16, Width8}},
		{Inherit, "INHERIT", nil},
		{GetProperty, "GET_PROPERTY", []Width{Width16}},
		{SetProperty, "SET_PROPERTY", []Width{Width16}},
		{Super, "SUPER", []Width{Width16}},
		{OptionalChain, "OPTIONAL_CHAIN", []Width{Width16}},
		{Unwrap, "UNWRAP", nil},
		{NilCoalesce, "NIL_COALESCE", nil},
		{RangeInclusive, "RANGE_INCLUSIVE", nil},
		{RangeExclusive, "RANGE_EXCLUSIVE", nil},
		{Array, "ARRAY", []Width{Width16}},
		{Dict, "DICT", []Width{Width16}},
		{GetSubscript, "GET_SUBSCRIPT", nil},
		{SetSubscript, "SET_SUBSCRIPT", nil},
		{Tuple, "TUPLE", []Width{Width16}},
		{GetTupleIndex, "GET_TUPLE_INDEX", []Width{Width16}},
		{GetTupleLabel, "GET_TUPLE_LABEL", []Width{Width16}},
		{Struct, "STRUCT", []Width{Width16}},
		{StructMethod, "STRUCT_METHOD", []Width{Width16, Width8}},
		{CopyValue, "COPY_VALUE", nil},
		{Enum, "ENUM", []Width{Width16}},
		{EnumCase, "ENUM_CASE", []Width{Width16, Width8, Width8}},
		{MatchEnumCase, "MATCH_ENUM_CASE", []Width{Width16}},
		{GetAssociated, "GET_ASSOCIATED", []Width{Width16}},
		{Protocol, "PROTOCOL", []Width{Width16}},
		{TypeCheck, "TYPE_CHECK", []Width{Width16}},
		{TypeCast, "TYPE_CAST", []Width{Width16}},
		{TypeCastOptional, "TYPE_CAST_OPTIONAL", []Width{Width16}},
		{TypeCastForced, "TYPE_CAST_FORCED", []Width{Width16}},
		{Throw, "THROW", nil},
		{PushHandler, "PUSH_HANDLER", []Width{Width16}},
		{PopHandler, "POP_HANDLER", nil},
		{ReadLine, "READ_LINE", nil},
		{Print, "PRINT", nil},
		{Halt, "HALT", nil},
	}
	for _, o := range ops {
		infos[o.op] = Info{
			Code:     o.op,
			Name:     o.name,
			Operands: o.operands,
		}
	}
}

// GetInfo returns information about the given opcode.
func GetInfo(c Code) Info {
	return infos[c]
}

// OperatorSymbol returns the operator symbol a binary or comparison opcode
// dispatches to when operand types are not numeric, or "" if the opcode
// does not participate in operator-overload lookup.
func OperatorSymbol(c Code) string {
	switch c {
	case Add:
		return "+"
	case Subtract:
		return "-"
	case Multiply:
		return "*"
	case Divide:
		return "/"
	case Modulo:
		return "%"
	case Equal:
		return "=="
	case NotEqual:
		return "!="
	case Less:
		return "<"
	case Greater:
		return ">"
	case LessEqual:
		return "<="
	case GreaterEqual:
		return ">="
	default:
		return ""
	}
}
