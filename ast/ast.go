// Package ast defines the abstract syntax tree produced by the SunScript
// parser and consumed by the compiler.
package ast

import "github.com/sunscript-lang/sunscript/token"

// Node is implemented by every syntax tree node.
type Node interface {
	// Pos returns the position of the node's first token.
	Pos() token.Position
}

// Expression nodes produce a value.
type Expression interface {
	Node
	exprNode()
}

// Statement nodes perform an action.
type Statement interface {
	Node
	stmtNode()
}

// Program is the root node: the ordered statements of one module.
type Program struct {
	Statements []Statement
	File       string
}

func (p *Program) Pos() token.Position {
	if len(p.Statements) > 0 {
		return p.Statements[0].Pos()
	}
	return token.Position{File: p.File}
}
