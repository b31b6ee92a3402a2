// Package compiler translates a SunScript AST into bytecode chunks.
package compiler

import (
	"fmt"

	"github.com/sunscript-lang/sunscript/ast"
	"github.com/sunscript-lang/sunscript/bytecode"
	"github.com/sunscript-lang/sunscript/errz"
	"github.com/sunscript-lang/sunscript/op"
	"github.com/sunscript-lang/sunscript/token"
)

// BuildKind selects whether debug info is embedded in the artifact.
type BuildKind int

const (
	// Release omits debug info.
	Release BuildKind = iota
	// Debug embeds per-body debug info: source path and local scope ranges.
	Debug
)

// Option configures a compilation.
type Option func(*Compiler)

// WithBuildKind selects the build kind. The default is Release.
func WithBuildKind(kind BuildKind) Option {
	return func(c *Compiler) {
		c.buildKind = kind
	}
}

// WithSourceFile records the source path in debug info and error messages.
func WithSourceFile(path string) Option {
	return func(c *Compiler) {
		c.sourceFile = path
	}
}

// Compiler holds compilation-wide state.
type Compiler struct {
	buildKind  BuildKind
	sourceFile string
	current    *body
}

// Compile translates a parsed program into a root chunk.
func Compile(prog *ast.Program, opts ...Option) (*bytecode.Chunk, error) {
	c := &Compiler{}
	for _, opt := range opts {
		opt(c)
	}
	if c.sourceFile == "" {
		c.sourceFile = prog.File
	}
	c.beginBody("", false)
	for _, stmt := range prog.Statements {
		if err := c.compileStatement(stmt); err != nil {
			return nil, err
		}
	}
	c.emit(lastLine(prog), op.Halt)
	return c.endBody(), nil
}

func lastLine(prog *ast.Program) int {
	if len(prog.Statements) == 0 {
		return 1
	}
	return prog.Statements[len(prog.Statements)-1].Pos().LineNumber()
}

// local is one declared local variable in the current body.
type local struct {
	name       string
	depth      int
	isCaptured bool
	scopeStart int
	synthetic  bool
}

// loopContext tracks patch targets for break and continue. Loops with a
// trailing increment (for-in) route continue through forward jumps patched
// to the increment; while loops jump straight back to the condition.
type loopContext struct {
	start       int
	breakPos    []int
	continuePos []int
	forward     bool
	enclosing   *loopContext
}

// body compiles one function body (or the top-level script).
type body struct {
	enclosing  *body
	chunk      *bytecode.Chunk
	locals     []local
	upvalues   []bytecode.UpvalueDesc
	scopeDepth int
	loop       *loopContext
	isInit     bool
	isMethod   bool

	// members holds the declared member names of the enclosing type so
	// method bodies can reference properties and methods without an
	// explicit self.
	members map[string]bool

	stringIndex map[string]uint16
	debugLocals []bytecode.LocalVar
}

func (c *Compiler) beginBody(selfName string, isMethod bool) *body {
	b := &body{
		enclosing:   c.current,
		chunk:       &bytecode.Chunk{},
		stringIndex: map[string]uint16{},
		isMethod:    isMethod,
	}
	// Slot 0 holds the callee; in methods it is rebound to self.
	name := ""
	if isMethod {
		name = selfName
	}
	b.locals = append(b.locals, local{name: name, depth: 0, synthetic: name == ""})
	c.current = b
	return b
}

func (c *Compiler) endBody() *bytecode.Chunk {
	b := c.current
	if c.buildKind == Debug {
		for i := range b.locals {
			c.recordDebugLocal(i, len(b.chunk.Code))
		}
		b.chunk.Debug = &bytecode.DebugInfo{
			SourceFile: c.sourceFile,
			Locals:     b.debugLocals,
		}
	}
	c.current = b.enclosing
	return b.chunk
}

// recordDebugLocal finalizes the scope range of a still-live local.
func (c *Compiler) recordDebugLocal(index, end int) {
	b := c.current
	l := b.locals[index]
	if l.synthetic || l.name == "" {
		return
	}
	b.debugLocals = append(b.debugLocals, bytecode.LocalVar{
		Name:       l.name,
		Slot:       uint16(index),
		ScopeStart: uint32(l.scopeStart),
		ScopeEnd:   uint32(end),
	})
}

func (c *Compiler) errorf(pos token.Position, format string, args ...any) error {
	return errz.CompileErrorf(errz.SourceLocation{
		File:   c.sourceFile,
		Line:   pos.LineNumber(),
		Column: pos.ColumnNumber(),
	}, format, args...)
}

// Emit helpers. Every byte written records the current source line.

func (c *Compiler) emit(line int, opcode op.Code) int {
	b := c.current
	offset := len(b.chunk.Code)
	b.chunk.Code = append(b.chunk.Code, byte(opcode))
	b.chunk.Lines = append(b.chunk.Lines, int32(line))
	return offset
}

func (c *Compiler) emitByte(line int, v byte) {
	b := c.current
	b.chunk.Code = append(b.chunk.Code, v)
	b.chunk.Lines = append(b.chunk.Lines, int32(line))
}

func (c *Compiler) emitU16(line int, v uint16) {
	c.emitByte(line, byte(v))
	c.emitByte(line, byte(v>>8))
}

func (c *Compiler) emitWithU16(line int, opcode op.Code, operand uint16) int {
	offset := c.emit(line, opcode)
	c.emitU16(line, operand)
	return offset
}

// emitJump writes a forward jump with a placeholder offset and returns the
// position of the operand for patching.
func (c *Compiler) emitJump(line int, opcode op.Code) int {
	c.emit(line, opcode)
	operandPos := len(c.current.chunk.Code)
	c.emitU16(line, 0xFFFF)
	return operandPos
}

// patchJump resolves a forward jump to the current code position. The
// offset is measured from the byte after the operand.
func (c *Compiler) patchJump(pos token.Position, operandPos int) error {
	b := c.current
	jump := len(b.chunk.Code) - operandPos - 2
	if jump > 0xFFFF {
		return c.errorf(pos, "jump distance %d exceeds limit", jump)
	}
	b.chunk.Code[operandPos] = byte(jump)
	b.chunk.Code[operandPos+1] = byte(jump >> 8)
	return nil
}

// emitLoop writes a backward jump to the given code position.
func (c *Compiler) emitLoop(pos token.Position, line, target int) error {
	c.emit(line, op.Loop)
	// The operand counts back from the byte after itself.
	offset := len(c.current.chunk.Code) + 2 - target
	if offset > 0xFFFF {
		return c.errorf(pos, "loop body too large")
	}
	c.emitU16(line, uint16(offset))
	return nil
}

// stringIndexOf interns a string in the current chunk's string pool.
func (c *Compiler) stringIndexOf(s string) uint16 {
	b := c.current
	if idx, ok := b.stringIndex[s]; ok {
		return idx
	}
	idx := uint16(len(b.chunk.Strings))
	b.chunk.Strings = append(b.chunk.Strings, s)
	b.stringIndex[s] = idx
	return idx
}

// constantIndexOf returns the pool index of an equal constant, appending
// the constant when the pool has none.
func (c *Compiler) constantIndexOf(k bytecode.Constant) uint16 {
	b := c.current
	for i, existing := range b.chunk.Constants {
		if existing == k {
			return uint16(i)
		}
	}
	b.chunk.Constants = append(b.chunk.Constants, k)
	return uint16(len(b.chunk.Constants) - 1)
}

// Scope handling.

func (c *Compiler) beginScope() {
	c.current.scopeDepth++
}

// endScope pops locals declared in the closing scope. Captured locals are
// closed instead of popped so live closures keep observing them.
func (c *Compiler) endScope(line int) {
	b := c.current
	b.scopeDepth--
	for len(b.locals) > 0 {
		l := b.locals[len(b.locals)-1]
		if l.depth <= b.scopeDepth {
			break
		}
		if c.buildKind == Debug {
			c.recordDebugLocal(len(b.locals)-1, len(b.chunk.Code))
		}
		if l.isCaptured {
			c.emit(line, op.CloseUpvalue)
		} else {
			c.emit(line, op.Pop)
		}
		b.locals = b.locals[:len(b.locals)-1]
	}
}

// declareLocal registers a new local for the value currently on top of the
// stack.
func (c *Compiler) declareLocal(pos token.Position, name string) (int, error) {
	b := c.current
	for i := len(b.locals) - 1; i >= 0; i-- {
		l := b.locals[i]
		if l.depth < b.scopeDepth {
			break
		}
		if l.name == name && name != "" {
			return 0, c.errorf(pos, "variable %q is already declared in this scope", name)
		}
	}
	if len(b.locals) >= 0xFFFF {
		return 0, c.errorf(pos, "too many local variables")
	}
	slot := len(b.locals)
	b.locals = append(b.locals, local{
		name:       name,
		depth:      b.scopeDepth,
		scopeStart: len(b.chunk.Code),
		synthetic:  name == "",
	})
	return slot, nil
}

// resolveLocal finds a local slot by name in the given body.
func resolveLocal(b *body, name string) (int, bool) {
	for i := len(b.locals) - 1; i >= 0; i-- {
		if b.locals[i].name == name && !b.locals[i].synthetic {
			return i, true
		}
	}
	return 0, false
}

// resolveUpvalue finds or creates an upvalue for a name defined in an
// enclosing body.
func (c *Compiler) resolveUpvalue(b *body, name string) (int, bool) {
	if b.enclosing == nil {
		return 0, false
	}
	if slot, ok := resolveLocal(b.enclosing, name); ok {
		b.enclosing.locals[slot].isCaptured = true
		return c.addUpvalue(b, uint16(slot), true), true
	}
	if idx, ok := c.resolveUpvalue(b.enclosing, name); ok {
		return c.addUpvalue(b, uint16(idx), false), true
	}
	return 0, false
}

// addUpvalue registers an upvalue descriptor, deduplicating so two
// references to the same slot share one upvalue.
func (c *Compiler) addUpvalue(b *body, index uint16, isLocal bool) int {
	for i, uv := range b.upvalues {
		if uv.Index == index && uv.IsLocal == isLocal {
			return i
		}
	}
	b.upvalues = append(b.upvalues, bytecode.UpvalueDesc{Index: index, IsLocal: isLocal})
	return len(b.upvalues) - 1
}

func (c *Compiler) functionIndexOf(proto *bytecode.FunctionProto) (uint16, error) {
	b := c.current
	if len(b.chunk.Functions) >= 0xFFFF {
		return 0, fmt.Errorf("too many functions in one body")
	}
	b.chunk.Functions = append(b.chunk.Functions, proto)
	return uint16(len(b.chunk.Functions) - 1), nil
}
