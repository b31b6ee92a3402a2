package ast

import "github.com/sunscript-lang/sunscript/token"

// Ident is a variable or type reference.
type Ident struct {
	Token token.Token
	Name  string
}

// IntLit is an integer literal.
type IntLit struct {
	Token token.Token
	Value int64
}

// FloatLit is a float literal.
type FloatLit struct {
	Token token.Token
	Value float64
}

// StringLit is a string literal.
type StringLit struct {
	Token token.Token
	Value string
}

// BoolLit is true or false.
type BoolLit struct {
	Token token.Token
	Value bool
}

// NilLit is the nil literal.
type NilLit struct {
	Token token.Token
}

// ArrayLit is [a, b, c].
type ArrayLit struct {
	Token token.Token
	Items []Expression
}

// DictLit is [k: v, ...] or [:].
type DictLit struct {
	Token  token.Token
	Keys   []Expression
	Values []Expression
}

// TupleLit is (a, label: b). A single unlabeled element is grouping, not a
// tuple; the parser never produces a one-element TupleLit.
type TupleLit struct {
	Token  token.Token
	Items  []Expression
	Labels []string
}

// Prefix is a unary operator expression: -x, !x, ~x.
type Prefix struct {
	Token token.Token
	Op    string
	Right Expression
}

// Infix is a binary operator expression, including ranges (... and ..<),
// logical && and ||, and ?? nil-coalescing.
type Infix struct {
	Token token.Token
	Op    string
	Left  Expression
	Right Expression
}

// Assign assigns Value to Target, which must be an Ident, Member,
// Subscript, or self reference. Op is "=" or a compound form like "+=".
type Assign struct {
	Token  token.Token
	Op     string
	Target Expression
	Value  Expression
}

// Member accesses a property or method: target.name. Optional marks ?.
// chaining.
type Member struct {
	Token    token.Token
	Target   Expression
	Name     string
	Optional bool
}

// TupleIndex accesses a tuple component by position: t.0, t.1.
type TupleIndex struct {
	Token  token.Token
	Target Expression
	Index  int
}

// Subscript is target[index].
type Subscript struct {
	Token  token.Token
	Target Expression
	Index  Expression
}

// Arg is one call argument with an optional label.
type Arg struct {
	Label string
	Value Expression
}

// Call invokes a callee with arguments.
type Call struct {
	Token  token.Token
	Callee Expression
	Args   []Arg
}

// SelfExpr is the self reference inside a method.
type SelfExpr struct {
	Token token.Token
}

// SuperExpr references a superclass member: super.name.
type SuperExpr struct {
	Token token.Token
	Name  string
}

// Param is a declared parameter: an external argument label (empty means
// positional-only, "_" in source), the internal name, an optional type
// annotation, and an optional default.
type Param struct {
	Label   string
	Name    string
	Type    string
	Default Expression
}

// ClosureLit is a closure expression: { (params) in body } or { body }.
type ClosureLit struct {
	Token  token.Token
	Params []Param
	Body   *Block
}

// TypeCheck is the is operator.
type TypeCheck struct {
	Token token.Token
	Expr  Expression
	Type  string
}

// CastMode selects the cast operator variant.
type CastMode int

const (
	CastPlain CastMode = iota
	CastOptional
	CastForced
)

// Cast is as, as?, or as!.
type Cast struct {
	Token token.Token
	Expr  Expression
	Type  string
	Mode  CastMode
}

// ForceUnwrap is the postfix ! operator.
type ForceUnwrap struct {
	Token token.Token
	Expr  Expression
}

func (n *Ident) Pos() token.Position       { return n.Token.Position }
func (n *IntLit) Pos() token.Position      { return n.Token.Position }
func (n *FloatLit) Pos() token.Position    { return n.Token.Position }
func (n *StringLit) Pos() token.Position   { return n.Token.Position }
func (n *BoolLit) Pos() token.Position     { return n.Token.Position }
func (n *NilLit) Pos() token.Position      { return n.Token.Position }
func (n *ArrayLit) Pos() token.Position    { return n.Token.Position }
func (n *DictLit) Pos() token.Position     { return n.Token.Position }
func (n *TupleLit) Pos() token.Position    { return n.Token.Position }
func (n *Prefix) Pos() token.Position      { return n.Token.Position }
func (n *Infix) Pos() token.Position       { return n.Token.Position }
func (n *Assign) Pos() token.Position      { return n.Token.Position }
func (n *Member) Pos() token.Position      { return n.Token.Position }
func (n *TupleIndex) Pos() token.Position  { return n.Token.Position }
func (n *Subscript) Pos() token.Position   { return n.Token.Position }
func (n *Call) Pos() token.Position        { return n.Token.Position }
func (n *SelfExpr) Pos() token.Position    { return n.Token.Position }
func (n *SuperExpr) Pos() token.Position   { return n.Token.Position }
func (n *ClosureLit) Pos() token.Position  { return n.Token.Position }
func (n *TypeCheck) Pos() token.Position   { return n.Token.Position }
func (n *Cast) Pos() token.Position        { return n.Token.Position }
func (n *ForceUnwrap) Pos() token.Position { return n.Token.Position }

func (*Ident) exprNode()       {}
func (*IntLit) exprNode()      {}
func (*FloatLit) exprNode()    {}
func (*StringLit) exprNode()   {}
func (*BoolLit) exprNode()     {}
func (*NilLit) exprNode()      {}
func (*ArrayLit) exprNode()    {}
func (*DictLit) exprNode()     {}
func (*TupleLit) exprNode()    {}
func (*Prefix) exprNode()      {}
func (*Infix) exprNode()       {}
func (*Assign) exprNode()      {}
func (*Member) exprNode()      {}
func (*TupleIndex) exprNode()  {}
func (*Subscript) exprNode()   {}
func (*Call) exprNode()        {}
func (*SelfExpr) exprNode()    {}
func (*SuperExpr) exprNode()   {}
func (*ClosureLit) exprNode()  {}
func (*TypeCheck) exprNode()   {}
func (*Cast) exprNode()        {}
func (*ForceUnwrap) exprNode() {}
