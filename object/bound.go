package object

import "fmt"

// BoundMethod pairs a method closure with its receiver, produced by
// property access on an instance or by SUPER. Calling it binds the
// receiver as self.
type BoundMethod struct {
	base
	Receiver Value
	Method   *Closure

	// DefiningClass is the class the method was found on; SUPER dispatch
	// records it so nested super calls resolve correctly. Nil for enum
	// methods.
	DefiningClass *Class

	Mutating bool
}

func (b *BoundMethod) String() string {
	return fmt.Sprintf("bound method %s", b.Method.Name())
}

func (b *BoundMethod) TypeName() string { return "Function" }

// EnumCaseCtor is the callable produced by accessing an enum case that
// carries associated values, e.g. Resp.ok; calling it constructs the case.
type EnumCaseCtor struct {
	base
	Enum      *EnumType
	CaseIndex int
}

func (e *EnumCaseCtor) String() string {
	return fmt.Sprintf("%s.%s", e.Enum.Name, e.Enum.Cases[e.CaseIndex].Name)
}

func (e *EnumCaseCtor) TypeName() string { return e.Enum.Name }
