package compiler

import (
	"strings"

	"github.com/sunscript-lang/sunscript/ast"
	"github.com/sunscript-lang/sunscript/bytecode"
	"github.com/sunscript-lang/sunscript/op"
)

func intConstant(i int64) bytecode.Constant {
	return bytecode.IntConstant(i)
}

func (c *Compiler) compileExpression(expr ast.Expression) error {
	switch e := expr.(type) {
	case *ast.IntLit:
		c.emitWithU16(e.Pos().LineNumber(), op.Constant, c.constantIndexOf(bytecode.IntConstant(e.Value)))
		return nil
	case *ast.FloatLit:
		c.emitWithU16(e.Pos().LineNumber(), op.Constant, c.constantIndexOf(bytecode.FloatConstant(e.Value)))
		return nil
	case *ast.StringLit:
		c.emitWithU16(e.Pos().LineNumber(), op.String, c.stringIndexOf(e.Value))
		return nil
	case *ast.BoolLit:
		if e.Value {
			c.emit(e.Pos().LineNumber(), op.True)
		} else {
			c.emit(e.Pos().LineNumber(), op.False)
		}
		return nil
	case *ast.NilLit:
		c.emit(e.Pos().LineNumber(), op.Nil)
		return nil
	case *ast.Ident:
		return c.compileIdent(e)
	case *ast.SelfExpr:
		return c.compileSelf(e)
	case *ast.SuperExpr:
		if !c.current.isMethod {
			return c.errorf(e.Pos(), "super may only appear inside a method")
		}
		c.emitWithU16(e.Pos().LineNumber(), op.Super, c.stringIndexOf(e.Name))
		return nil
	case *ast.Prefix:
		return c.compilePrefix(e)
	case *ast.Infix:
		return c.compileInfix(e)
	case *ast.Assign:
		return c.compileAssign(e)
	case *ast.Member:
		if err := c.compileExpression(e.Target); err != nil {
			return err
		}
		opcode := op.GetProperty
		if c.isOptionalChain(e) {
			opcode = op.OptionalChain
		}
		c.emitWithU16(e.Pos().LineNumber(), opcode, c.stringIndexOf(e.Name))
		return nil
	case *ast.TupleIndex:
		if err := c.compileExpression(e.Target); err != nil {
			return err
		}
		c.emitWithU16(e.Pos().LineNumber(), op.GetTupleIndex, uint16(e.Index))
		return nil
	case *ast.Subscript:
		if err := c.compileExpression(e.Target); err != nil {
			return err
		}
		if err := c.compileExpression(e.Index); err != nil {
			return err
		}
		c.emit(e.Pos().LineNumber(), op.GetSubscript)
		return nil
	case *ast.Call:
		return c.compileCall(e)
	case *ast.ArrayLit:
		for _, item := range e.Items {
			if err := c.compileExpression(item); err != nil {
				return err
			}
		}
		c.emitWithU16(e.Pos().LineNumber(), op.Array, uint16(len(e.Items)))
		return nil
	case *ast.DictLit:
		for i := range e.Keys {
			if err := c.compileExpression(e.Keys[i]); err != nil {
				return err
			}
			if err := c.compileExpression(e.Values[i]); err != nil {
				return err
			}
		}
		c.emitWithU16(e.Pos().LineNumber(), op.Dict, uint16(len(e.Keys)))
		return nil
	case *ast.TupleLit:
		for _, item := range e.Items {
			if err := c.compileExpression(item); err != nil {
				return err
			}
		}
		line := e.Pos().LineNumber()
		c.emitWithU16(line, op.Tuple, uint16(len(e.Items)))
		for _, label := range e.Labels {
			if label == "" {
				c.emitU16(line, noLabel)
			} else {
				c.emitU16(line, c.stringIndexOf(label))
			}
		}
		return nil
	case *ast.ClosureLit:
		return c.compileClosureLit(e)
	case *ast.TypeCheck:
		if err := c.compileExpression(e.Expr); err != nil {
			return err
		}
		c.emitWithU16(e.Pos().LineNumber(), op.TypeCheck, c.stringIndexOf(strings.TrimSuffix(e.Type, "?")))
		return nil
	case *ast.Cast:
		if err := c.compileExpression(e.Expr); err != nil {
			return err
		}
		opcode := op.TypeCast
		switch e.Mode {
		case ast.CastOptional:
			opcode = op.TypeCastOptional
		case ast.CastForced:
			opcode = op.TypeCastForced
		}
		c.emitWithU16(e.Pos().LineNumber(), opcode, c.stringIndexOf(strings.TrimSuffix(e.Type, "?")))
		return nil
	case *ast.ForceUnwrap:
		if err := c.compileExpression(e.Expr); err != nil {
			return err
		}
		c.emit(e.Pos().LineNumber(), op.Unwrap)
		return nil
	case *ast.EnumPattern:
		return c.errorf(e.Pos(), "enum pattern is only valid in a switch case")
	default:
		return c.errorf(expr.Pos(), "cannot compile expression of type %T", expr)
	}
}

// noLabel marks an unlabeled tuple component in the label operand list.
const noLabel = uint16(0xFFFF)

func (c *Compiler) compileSelf(e ast.Expression) error {
	if !c.current.isMethod {
		return c.errorf(e.Pos(), "self may only appear inside a method")
	}
	c.emitWithU16(e.Pos().LineNumber(), op.GetLocal, 0)
	return nil
}

func (c *Compiler) compileIdent(e *ast.Ident) error {
	line := e.Pos().LineNumber()
	b := c.current
	if slot, ok := resolveLocal(b, e.Name); ok {
		c.emitWithU16(line, op.GetLocal, uint16(slot))
		return nil
	}
	if idx, ok := c.resolveUpvalue(b, e.Name); ok {
		c.emitWithU16(line, op.GetUpvalue, uint16(idx))
		return nil
	}
	if b.isMethod && b.members[e.Name] {
		// Implicit self member access.
		c.emitWithU16(line, op.GetLocal, 0)
		c.emitWithU16(line, op.GetProperty, c.stringIndexOf(e.Name))
		return nil
	}
	c.emitWithU16(line, op.GetGlobal, c.stringIndexOf(e.Name))
	return nil
}

func (c *Compiler) compilePrefix(e *ast.Prefix) error {
	if err := c.compileExpression(e.Right); err != nil {
		return err
	}
	line := e.Pos().LineNumber()
	switch e.Op {
	case "-":
		c.emit(line, op.Negate)
	case "!":
		c.emit(line, op.Not)
	case "~":
		c.emit(line, op.BitwiseNot)
	default:
		return c.errorf(e.Pos(), "unknown prefix operator %q", e.Op)
	}
	return nil
}

func (c *Compiler) compileInfix(e *ast.Infix) error {
	line := e.Pos().LineNumber()
	switch e.Op {
	case "&&":
		// Short-circuit: keep the left value when it is falsy.
		if err := c.compileExpression(e.Left); err != nil {
			return err
		}
		c.emit(line, op.Dup)
		end := c.emitJump(line, op.JumpIfFalse)
		c.emit(line, op.Pop)
		if err := c.compileExpression(e.Right); err != nil {
			return err
		}
		return c.patchJump(e.Pos(), end)
	case "||":
		if err := c.compileExpression(e.Left); err != nil {
			return err
		}
		c.emit(line, op.Dup)
		c.emit(line, op.Not)
		end := c.emitJump(line, op.JumpIfFalse)
		c.emit(line, op.Pop)
		if err := c.compileExpression(e.Right); err != nil {
			return err
		}
		return c.patchJump(e.Pos(), end)
	}

	if err := c.compileExpression(e.Left); err != nil {
		return err
	}
	if err := c.compileExpression(e.Right); err != nil {
		return err
	}
	switch e.Op {
	case "+":
		c.emit(line, op.Add)
	case "-":
		c.emit(line, op.Subtract)
	case "*":
		c.emit(line, op.Multiply)
	case "/":
		c.emit(line, op.Divide)
	case "%":
		c.emit(line, op.Modulo)
	case "==":
		c.emit(line, op.Equal)
	case "!=":
		c.emit(line, op.NotEqual)
	case "<":
		c.emit(line, op.Less)
	case ">":
		c.emit(line, op.Greater)
	case "<=":
		c.emit(line, op.LessEqual)
	case ">=":
		c.emit(line, op.GreaterEqual)
	case "&":
		c.emit(line, op.BitwiseAnd)
	case "|":
		c.emit(line, op.BitwiseOr)
	case "^":
		c.emit(line, op.BitwiseXor)
	case "<<":
		c.emit(line, op.LeftShift)
	case ">>":
		c.emit(line, op.RightShift)
	case "??":
		c.emit(line, op.NilCoalesce)
	case "...":
		c.emit(line, op.RangeInclusive)
	case "..<":
		c.emit(line, op.RangeExclusive)
	default:
		return c.errorf(e.Pos(), "unknown operator %q", e.Op)
	}
	return nil
}

// isOptionalChain reports whether a member access participates in a ?.
// chain: either this link is optional or an earlier link in the receiver
// chain is.
func (c *Compiler) isOptionalChain(e *ast.Member) bool {
	if e.Optional {
		return true
	}
	if inner, ok := e.Target.(*ast.Member); ok {
		return c.isOptionalChain(inner)
	}
	return false
}

func (c *Compiler) compileAssign(e *ast.Assign) error {
	line := e.Pos().LineNumber()
	switch target := e.Target.(type) {
	case *ast.Ident:
		b := c.current
		_, isLocal := resolveLocal(b, target.Name)
		isMember := false
		if !isLocal {
			if _, isUpvalue := c.resolveUpvalue(b, target.Name); !isUpvalue {
				isMember = b.isMethod && b.members[target.Name]
			}
		}
		if isMember {
			// Implicit self member assignment.
			c.emitWithU16(line, op.GetLocal, 0)
			if e.Op != "=" {
				c.emit(line, op.Dup)
				c.emitWithU16(line, op.GetProperty, c.stringIndexOf(target.Name))
				if err := c.compileExpression(e.Value); err != nil {
					return err
				}
				c.emit(line, compoundOp(e.Op))
			} else {
				if err := c.compileExpression(e.Value); err != nil {
					return err
				}
				c.emit(line, op.CopyValue)
			}
			c.emitWithU16(line, op.SetProperty, c.stringIndexOf(target.Name))
			return nil
		}
		if e.Op != "=" {
			if err := c.compileIdent(target); err != nil {
				return err
			}
			if err := c.compileExpression(e.Value); err != nil {
				return err
			}
			c.emit(line, compoundOp(e.Op))
		} else {
			if err := c.compileExpression(e.Value); err != nil {
				return err
			}
			c.emit(line, op.CopyValue)
		}
		if slot, ok := resolveLocal(b, target.Name); ok {
			c.emitWithU16(line, op.SetLocal, uint16(slot))
			return nil
		}
		if idx, ok := c.resolveUpvalue(b, target.Name); ok {
			c.emitWithU16(line, op.SetUpvalue, uint16(idx))
			return nil
		}
		c.emitWithU16(line, op.SetGlobal, c.stringIndexOf(target.Name))
		return nil
	case *ast.Member:
		if err := c.compileExpression(target.Target); err != nil {
			return err
		}
		if e.Op != "=" {
			c.emit(line, op.Dup)
			c.emitWithU16(line, op.GetProperty, c.stringIndexOf(target.Name))
			if err := c.compileExpression(e.Value); err != nil {
				return err
			}
			c.emit(line, compoundOp(e.Op))
		} else {
			if err := c.compileExpression(e.Value); err != nil {
				return err
			}
			c.emit(line, op.CopyValue)
		}
		c.emitWithU16(line, op.SetProperty, c.stringIndexOf(target.Name))
		return nil
	case *ast.Subscript:
		if err := c.compileExpression(target.Target); err != nil {
			return err
		}
		if err := c.compileExpression(target.Index); err != nil {
			return err
		}
		if e.Op != "=" {
			// Compound subscript assignment re-evaluates target and index.
			if err := c.compileExpression(target.Target); err != nil {
				return err
			}
			if err := c.compileExpression(target.Index); err != nil {
				return err
			}
			c.emit(line, op.GetSubscript)
			if err := c.compileExpression(e.Value); err != nil {
				return err
			}
			c.emit(line, compoundOp(e.Op))
		} else {
			if err := c.compileExpression(e.Value); err != nil {
				return err
			}
			c.emit(line, op.CopyValue)
		}
		c.emit(line, op.SetSubscript)
		return nil
	default:
		return c.errorf(e.Pos(), "invalid assignment target")
	}
}

func compoundOp(assignOp string) op.Code {
	switch assignOp {
	case "+=":
		return op.Add
	case "-=":
		return op.Subtract
	case "*=":
		return op.Multiply
	default:
		return op.Divide
	}
}

func (c *Compiler) compileCall(e *ast.Call) error {
	line := e.Pos().LineNumber()

	// print and readLine compile to dedicated instructions when not
	// shadowed by a local binding.
	if ident, ok := e.Callee.(*ast.Ident); ok && !c.isShadowed(ident.Name) {
		switch ident.Name {
		case "print":
			if len(e.Args) != 1 {
				return c.errorf(e.Pos(), "print expects one argument")
			}
			if err := c.compileExpression(e.Args[0].Value); err != nil {
				return err
			}
			c.emit(line, op.Print)
			c.emit(line, op.Nil) // calls are expressions; print yields nil
			return nil
		case "readLine":
			if len(e.Args) != 0 {
				return c.errorf(e.Pos(), "readLine expects no arguments")
			}
			c.emit(line, op.ReadLine)
			return nil
		}
	}

	if err := c.compileExpression(e.Callee); err != nil {
		return err
	}
	labeled := false
	for _, arg := range e.Args {
		if arg.Label != "" {
			labeled = true
		}
	}
	for _, arg := range e.Args {
		if err := c.compileExpression(arg.Value); err != nil {
			return err
		}
		// Struct-typed arguments copy into the callee.
		c.emit(line, op.CopyValue)
	}
	if len(e.Args) > 255 {
		return c.errorf(e.Pos(), "too many arguments (max 255)")
	}
	if labeled {
		c.emit(line, op.CallNamed)
		c.emitByte(line, byte(len(e.Args)))
		for _, arg := range e.Args {
			if arg.Label == "" {
				c.emitU16(line, noLabel)
			} else {
				c.emitU16(line, c.stringIndexOf(arg.Label))
			}
		}
	} else {
		c.emit(line, op.Call)
		c.emitByte(line, byte(len(e.Args)))
	}
	return nil
}

func (c *Compiler) isShadowed(name string) bool {
	if _, ok := resolveLocal(c.current, name); ok {
		return true
	}
	for b := c.current.enclosing; b != nil; b = b.enclosing {
		if _, ok := resolveLocal(b, name); ok {
			return true
		}
	}
	return false
}
