package ast

import "github.com/sunscript-lang/sunscript/token"

// Block is a braced statement sequence.
type Block struct {
	Token      token.Token
	Statements []Statement
}

// VarDecl declares a binding with let or var. Weak and Unowned record the
// memory keywords, which are parsed but have no runtime effect.
type VarDecl struct {
	Token   token.Token
	Name    string
	Type    string
	Value   Expression
	Mutable bool
	Weak    bool
	Unowned bool
}

// ExprStmt is an expression evaluated for effect.
type ExprStmt struct {
	Expr Expression
}

// FuncDecl declares a function, method, or initializer.
type FuncDecl struct {
	Token         token.Token
	Name          string
	Params        []Param
	ReturnType    string
	Body          *Block
	IsInitializer bool
	IsOverride    bool
	IsMutating    bool
}

// PropDecl is a stored property of a class or struct, with optional
// willSet/didSet observers.
type PropDecl struct {
	Token       token.Token
	Name        string
	Type        string
	Default     Expression
	WillSet     *Block
	WillSetName string
	DidSet      *Block
	DidSetName  string
	Weak        bool
	Unowned     bool
}

// ComputedDecl is a computed property with a getter and optional setter.
type ComputedDecl struct {
	Token      token.Token
	Name       string
	Type       string
	Getter     *Block
	Setter     *Block
	SetterName string
}

// ClassDecl declares a class or, when IsStruct is set, a struct.
type ClassDecl struct {
	Token      token.Token
	Name       string
	Superclass string
	Protocols  []string
	IsStruct   bool
	Props      []*PropDecl
	Computed   []*ComputedDecl
	Methods    []*FuncDecl
	Inits      []*FuncDecl
}

// EnumCaseDecl is one case of an enum: an optional raw value or a list of
// associated-value labels and types.
type EnumCaseDecl struct {
	Token token.Token
	Name  string
	Raw   Expression
	Assoc []Param
}

// EnumDecl declares an enum type.
type EnumDecl struct {
	Token    token.Token
	Name     string
	RawType  string
	Cases    []*EnumCaseDecl
	Methods  []*FuncDecl
	Computed []*ComputedDecl
}

// ProtocolDecl declares a protocol: named method and property
// requirements.
type ProtocolDecl struct {
	Token      token.Token
	Name       string
	Methods    []string
	Properties []string
}

// If is a conditional with an optional else branch; ElseIf chains are
// nested If statements in Else.
type If struct {
	Token token.Token
	Cond  Expression
	Then  *Block
	Else  Statement // *Block or *If, may be nil
}

// While is a condition-guarded loop.
type While struct {
	Token token.Token
	Cond  Expression
	Body  *Block
}

// ForIn iterates a range or array.
type ForIn struct {
	Token    token.Token
	Var      string
	Iterable Expression
	Body     *Block
}

// EnumPattern matches an enum case, optionally binding associated values:
// case Resp.ok(let m).
type EnumPattern struct {
	Token    token.Token
	EnumName string
	CaseName string
	Bindings []string
}

func (n *EnumPattern) Pos() token.Position { return n.Token.Position }
func (*EnumPattern) exprNode()             {}

// SwitchCase is one case clause: expression patterns or enum patterns.
type SwitchCase struct {
	Token    token.Token
	Patterns []Expression
	Body     *Block
}

// Switch matches a subject against case clauses.
type Switch struct {
	Token   token.Token
	Subject Expression
	Cases   []*SwitchCase
	Default *Block
}

// Return exits the enclosing function with an optional value.
type Return struct {
	Token token.Token
	Value Expression
}

// Break exits the enclosing loop.
type Break struct {
	Token token.Token
}

// Continue jumps to the next iteration of the enclosing loop.
type Continue struct {
	Token token.Token
}

// Throw raises a value.
type Throw struct {
	Token token.Token
	Value Expression
}

// DoCatch executes Body, transferring to CatchBody when a value is
// thrown; the thrown value binds to CatchVar ("error" when unnamed).
type DoCatch struct {
	Token     token.Token
	Body      *Block
	CatchVar  string
	CatchBody *Block
}

func (n *Block) Pos() token.Position        { return n.Token.Position }
func (n *VarDecl) Pos() token.Position      { return n.Token.Position }
func (n *ExprStmt) Pos() token.Position     { return n.Expr.Pos() }
func (n *FuncDecl) Pos() token.Position     { return n.Token.Position }
func (n *PropDecl) Pos() token.Position     { return n.Token.Position }
func (n *ComputedDecl) Pos() token.Position { return n.Token.Position }
func (n *ClassDecl) Pos() token.Position    { return n.Token.Position }
func (n *EnumCaseDecl) Pos() token.Position { return n.Token.Position }
func (n *EnumDecl) Pos() token.Position     { return n.Token.Position }
func (n *ProtocolDecl) Pos() token.Position { return n.Token.Position }
func (n *If) Pos() token.Position           { return n.Token.Position }
func (n *While) Pos() token.Position        { return n.Token.Position }
func (n *ForIn) Pos() token.Position        { return n.Token.Position }
func (n *Switch) Pos() token.Position       { return n.Token.Position }
func (n *Return) Pos() token.Position       { return n.Token.Position }
func (n *Break) Pos() token.Position        { return n.Token.Position }
func (n *Continue) Pos() token.Position     { return n.Token.Position }
func (n *Throw) Pos() token.Position        { return n.Token.Position }
func (n *DoCatch) Pos() token.Position      { return n.Token.Position }

func (*Block) stmtNode()        {}
func (*VarDecl) stmtNode()      {}
func (*ExprStmt) stmtNode()     {}
func (*FuncDecl) stmtNode()     {}
func (*ClassDecl) stmtNode()    {}
func (*EnumDecl) stmtNode()     {}
func (*ProtocolDecl) stmtNode() {}
func (*If) stmtNode()           {}
func (*While) stmtNode()        {}
func (*ForIn) stmtNode()        {}
func (*Switch) stmtNode()       {}
func (*Return) stmtNode()       {}
func (*Break) stmtNode()        {}
func (*Continue) stmtNode()     {}
func (*Throw) stmtNode()        {}
func (*DoCatch) stmtNode()      {}
