package compiler

import (
	"github.com/sunscript-lang/sunscript/ast"
	"github.com/sunscript-lang/sunscript/op"
)

func (c *Compiler) compileStatement(stmt ast.Statement) error {
	switch s := stmt.(type) {
	case *ast.VarDecl:
		return c.compileVarDecl(s)
	case *ast.ExprStmt:
		line := s.Pos().LineNumber()
		if err := c.compileExpression(s.Expr); err != nil {
			return err
		}
		c.emit(line, op.Pop)
		return nil
	case *ast.Block:
		c.beginScope()
		for _, inner := range s.Statements {
			if err := c.compileStatement(inner); err != nil {
				return err
			}
		}
		c.endScope(blockEndLine(s))
		return nil
	case *ast.FuncDecl:
		return c.compileFuncDecl(s)
	case *ast.ClassDecl:
		return c.compileClassDecl(s)
	case *ast.EnumDecl:
		return c.compileEnumDecl(s)
	case *ast.ProtocolDecl:
		return c.compileProtocolDecl(s)
	case *ast.If:
		return c.compileIf(s)
	case *ast.While:
		return c.compileWhile(s)
	case *ast.ForIn:
		return c.compileForIn(s)
	case *ast.Switch:
		return c.compileSwitch(s)
	case *ast.Return:
		return c.compileReturn(s)
	case *ast.Break:
		return c.compileBreak(s)
	case *ast.Continue:
		return c.compileContinue(s)
	case *ast.Throw:
		line := s.Pos().LineNumber()
		if err := c.compileExpression(s.Value); err != nil {
			return err
		}
		c.emit(line, op.Throw)
		return nil
	case *ast.DoCatch:
		return c.compileDoCatch(s)
	default:
		return c.errorf(stmt.Pos(), "cannot compile statement of type %T", stmt)
	}
}

func blockEndLine(b *ast.Block) int {
	if len(b.Statements) == 0 {
		return b.Token.Position.LineNumber()
	}
	return b.Statements[len(b.Statements)-1].Pos().LineNumber()
}

// compileBlockInline compiles a block's statements without opening a new
// scope; used when the caller already arranged scope-level bindings.
func (c *Compiler) compileBlockInline(b *ast.Block) error {
	for _, inner := range b.Statements {
		if err := c.compileStatement(inner); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) compileVarDecl(s *ast.VarDecl) error {
	line := s.Pos().LineNumber()
	if s.Value != nil {
		if err := c.compileExpression(s.Value); err != nil {
			return err
		}
		// Struct-typed values copy on assignment into a new binding.
		c.emit(line, op.CopyValue)
	} else {
		c.emit(line, op.Nil)
	}
	b := c.current
	if b.scopeDepth == 0 && b.enclosing == nil {
		c.emitWithU16(line, op.DefineGlobal, c.stringIndexOf(s.Name))
		return nil
	}
	_, err := c.declareLocal(s.Pos(), s.Name)
	return err
}

func (c *Compiler) compileIf(s *ast.If) error {
	line := s.Pos().LineNumber()
	if err := c.compileExpression(s.Cond); err != nil {
		return err
	}
	elseJump := c.emitJump(line, op.JumpIfFalse)
	if err := c.compileStatement(s.Then); err != nil {
		return err
	}
	endJump := c.emitJump(blockEndLine(s.Then), op.Jump)
	if err := c.patchJump(s.Pos(), elseJump); err != nil {
		return err
	}
	if s.Else != nil {
		if err := c.compileStatement(s.Else); err != nil {
			return err
		}
	}
	return c.patchJump(s.Pos(), endJump)
}

func (c *Compiler) compileWhile(s *ast.While) error {
	line := s.Pos().LineNumber()
	b := c.current
	loop := &loopContext{start: len(b.chunk.Code), enclosing: b.loop}
	b.loop = loop

	if err := c.compileExpression(s.Cond); err != nil {
		return err
	}
	exitJump := c.emitJump(line, op.JumpIfFalse)
	if err := c.compileStatement(s.Body); err != nil {
		return err
	}
	if err := c.emitLoop(s.Pos(), blockEndLine(s.Body), loop.start); err != nil {
		return err
	}
	if err := c.patchJump(s.Pos(), exitJump); err != nil {
		return err
	}
	for _, pos := range loop.breakPos {
		if err := c.patchJump(s.Pos(), pos); err != nil {
			return err
		}
	}
	b.loop = loop.enclosing
	return nil
}

// compileForIn lowers `for x in iterable`. Range expressions iterate by
// stepping an index; any other iterable is indexed through the len builtin
// and subscripting.
func (c *Compiler) compileForIn(s *ast.ForIn) error {
	line := s.Pos().LineNumber()
	if r, ok := s.Iterable.(*ast.Infix); ok && (r.Op == "..." || r.Op == "..<") {
		return c.compileForRange(s, r)
	}

	c.beginScope()
	// Hidden locals: the sequence, its length, and the index.
	if err := c.compileExpression(s.Iterable); err != nil {
		return err
	}
	seqSlot, err := c.declareLocal(s.Pos(), "")
	if err != nil {
		return err
	}
	c.emitWithU16(line, op.GetGlobal, c.stringIndexOf("len"))
	c.emitWithU16(line, op.GetLocal, uint16(seqSlot))
	c.emit(line, op.Call)
	c.emitByte(line, 1)
	lenSlot, err := c.declareLocal(s.Pos(), "")
	if err != nil {
		return err
	}
	c.emitWithU16(line, op.Constant, c.constantIndexOf(intConstant(0)))
	idxSlot, err := c.declareLocal(s.Pos(), "")
	if err != nil {
		return err
	}

	b := c.current
	loop := &loopContext{start: len(b.chunk.Code), forward: true, enclosing: b.loop}
	b.loop = loop

	// while idx < len
	c.emitWithU16(line, op.GetLocal, uint16(idxSlot))
	c.emitWithU16(line, op.GetLocal, uint16(lenSlot))
	c.emit(line, op.Less)
	exitJump := c.emitJump(line, op.JumpIfFalse)

	// x = seq[idx]
	c.beginScope()
	c.emitWithU16(line, op.GetLocal, uint16(seqSlot))
	c.emitWithU16(line, op.GetLocal, uint16(idxSlot))
	c.emit(line, op.GetSubscript)
	if _, err := c.declareLocal(s.Pos(), s.Var); err != nil {
		return err
	}
	if err := c.compileBlockInline(s.Body); err != nil {
		return err
	}
	c.endScope(blockEndLine(s.Body))

	// idx += 1; continue lands here
	endLine := blockEndLine(s.Body)
	for _, pos := range loop.continuePos {
		if err := c.patchJump(s.Pos(), pos); err != nil {
			return err
		}
	}
	c.emitWithU16(endLine, op.GetLocal, uint16(idxSlot))
	c.emitWithU16(endLine, op.Constant, c.constantIndexOf(intConstant(1)))
	c.emit(endLine, op.Add)
	c.emitWithU16(endLine, op.SetLocal, uint16(idxSlot))
	c.emit(endLine, op.Pop)

	if err := c.emitLoop(s.Pos(), endLine, loop.start); err != nil {
		return err
	}
	if err := c.patchJump(s.Pos(), exitJump); err != nil {
		return err
	}
	for _, pos := range loop.breakPos {
		if err := c.patchJump(s.Pos(), pos); err != nil {
			return err
		}
	}
	b.loop = loop.enclosing
	c.endScope(endLine)
	return nil
}

// compileForRange lowers `for i in a...b` into an index-stepping loop
// without materializing a range object.
func (c *Compiler) compileForRange(s *ast.ForIn, r *ast.Infix) error {
	line := s.Pos().LineNumber()
	c.beginScope()

	if err := c.compileExpression(r.Left); err != nil {
		return err
	}
	iSlot, err := c.declareLocal(s.Pos(), s.Var)
	if err != nil {
		return err
	}
	if err := c.compileExpression(r.Right); err != nil {
		return err
	}
	limitSlot, err := c.declareLocal(s.Pos(), "")
	if err != nil {
		return err
	}

	b := c.current
	loop := &loopContext{start: len(b.chunk.Code), forward: true, enclosing: b.loop}
	b.loop = loop

	c.emitWithU16(line, op.GetLocal, uint16(iSlot))
	c.emitWithU16(line, op.GetLocal, uint16(limitSlot))
	if r.Op == "..." {
		c.emit(line, op.LessEqual)
	} else {
		c.emit(line, op.Less)
	}
	exitJump := c.emitJump(line, op.JumpIfFalse)

	if err := c.compileStatement(s.Body); err != nil {
		return err
	}

	endLine := blockEndLine(s.Body)
	for _, pos := range loop.continuePos {
		if err := c.patchJump(s.Pos(), pos); err != nil {
			return err
		}
	}
	c.emitWithU16(endLine, op.GetLocal, uint16(iSlot))
	c.emitWithU16(endLine, op.Constant, c.constantIndexOf(intConstant(1)))
	c.emit(endLine, op.Add)
	c.emitWithU16(endLine, op.SetLocal, uint16(iSlot))
	c.emit(endLine, op.Pop)

	if err := c.emitLoop(s.Pos(), endLine, loop.start); err != nil {
		return err
	}
	if err := c.patchJump(s.Pos(), exitJump); err != nil {
		return err
	}
	for _, pos := range loop.breakPos {
		if err := c.patchJump(s.Pos(), pos); err != nil {
			return err
		}
	}
	b.loop = loop.enclosing
	// The exit path runs after the last iteration, so it carries the loop
	// header's line rather than the body's.
	c.endScope(line)
	return nil
}

func (c *Compiler) compileBreak(s *ast.Break) error {
	b := c.current
	if b.loop == nil {
		return c.errorf(s.Pos(), "break outside of a loop")
	}
	pos := c.emitJump(s.Pos().LineNumber(), op.Jump)
	b.loop.breakPos = append(b.loop.breakPos, pos)
	return nil
}

func (c *Compiler) compileContinue(s *ast.Continue) error {
	b := c.current
	if b.loop == nil {
		return c.errorf(s.Pos(), "continue outside of a loop")
	}
	if b.loop.forward {
		pos := c.emitJump(s.Pos().LineNumber(), op.Jump)
		b.loop.continuePos = append(b.loop.continuePos, pos)
		return nil
	}
	return c.emitLoop(s.Pos(), s.Pos().LineNumber(), b.loop.start)
}

func (c *Compiler) compileReturn(s *ast.Return) error {
	line := s.Pos().LineNumber()
	if s.Value != nil {
		if err := c.compileExpression(s.Value); err != nil {
			return err
		}
		// Struct-typed return values copy out of the frame.
		c.emit(line, op.CopyValue)
	} else {
		c.emit(line, op.Nil)
	}
	c.emit(line, op.Return)
	return nil
}

func (c *Compiler) compileDoCatch(s *ast.DoCatch) error {
	line := s.Pos().LineNumber()
	handlerPos := c.emitJump(line, op.PushHandler)
	if err := c.compileStatement(s.Body); err != nil {
		return err
	}
	c.emit(blockEndLine(s.Body), op.PopHandler)
	endJump := c.emitJump(blockEndLine(s.Body), op.Jump)

	// Catch block: the thrown value is on the stack.
	if err := c.patchJump(s.Pos(), handlerPos); err != nil {
		return err
	}
	c.beginScope()
	if _, err := c.declareLocal(s.Pos(), s.CatchVar); err != nil {
		return err
	}
	if err := c.compileBlockInline(s.CatchBody); err != nil {
		return err
	}
	c.endScope(blockEndLine(s.CatchBody))
	return c.patchJump(s.Pos(), endJump)
}

// compileSwitch lowers a switch over value patterns and enum-case patterns
// into MATCH_ENUM_CASE / EQUAL tests with jumps.
func (c *Compiler) compileSwitch(s *ast.Switch) error {
	line := s.Pos().LineNumber()
	c.beginScope()
	if err := c.compileExpression(s.Subject); err != nil {
		return err
	}
	subjectSlot, err := c.declareLocal(s.Pos(), "")
	if err != nil {
		return err
	}

	var endJumps []int
	for _, clause := range s.Cases {
		if len(clause.Patterns) > 1 {
			for _, p := range clause.Patterns {
				if ep, ok := p.(*ast.EnumPattern); ok && len(ep.Bindings) > 0 {
					return c.errorf(clause.Token.Position, "bindings require a single pattern per case")
				}
			}
		}

		// Each pattern tests the subject; any match enters the body.
		var bodyJumps []int
		var nextCase int = -1
		for i, pattern := range clause.Patterns {
			caseLine := clause.Token.Position.LineNumber()
			c.emitWithU16(caseLine, op.GetLocal, uint16(subjectSlot))
			if ep, ok := pattern.(*ast.EnumPattern); ok {
				c.emitWithU16(caseLine, op.MatchEnumCase, c.stringIndexOf(ep.CaseName))
			} else {
				if err := c.compileExpression(pattern); err != nil {
					return err
				}
				c.emit(caseLine, op.Equal)
			}
			if i == len(clause.Patterns)-1 {
				nextCase = c.emitJump(caseLine, op.JumpIfFalse)
			} else {
				noMatch := c.emitJump(caseLine, op.JumpIfFalse)
				bodyJumps = append(bodyJumps, c.emitJump(caseLine, op.Jump))
				if err := c.patchJump(clause.Token.Position, noMatch); err != nil {
					return err
				}
			}
		}
		for _, j := range bodyJumps {
			if err := c.patchJump(clause.Token.Position, j); err != nil {
				return err
			}
		}

		// Body, with associated-value bindings for a single enum pattern.
		c.beginScope()
		if len(clause.Patterns) == 1 {
			if ep, ok := clause.Patterns[0].(*ast.EnumPattern); ok {
				for i, binding := range ep.Bindings {
					bindLine := clause.Token.Position.LineNumber()
					c.emitWithU16(bindLine, op.GetLocal, uint16(subjectSlot))
					c.emitWithU16(bindLine, op.GetAssociated, uint16(i))
					if _, err := c.declareLocal(clause.Token.Position, binding); err != nil {
						return err
					}
				}
			}
		}
		if err := c.compileBlockInline(clause.Body); err != nil {
			return err
		}
		c.endScope(blockEndLine(clause.Body))
		endJumps = append(endJumps, c.emitJump(blockEndLine(clause.Body), op.Jump))
		if err := c.patchJump(clause.Token.Position, nextCase); err != nil {
			return err
		}
	}

	if s.Default != nil {
		if err := c.compileStatement(s.Default); err != nil {
			return err
		}
	}
	for _, j := range endJumps {
		if err := c.patchJump(s.Pos(), j); err != nil {
			return err
		}
	}
	c.endScope(line)
	return nil
}
