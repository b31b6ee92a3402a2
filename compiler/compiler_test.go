package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sunscript-lang/sunscript/bytecode"
	"github.com/sunscript-lang/sunscript/op"
	"github.com/sunscript-lang/sunscript/parser"
)

func compile(t *testing.T, src string, opts ...Option) *bytecode.Chunk {
	t.Helper()
	prog, err := parser.Parse(src)
	require.NoError(t, err)
	chunk, err := Compile(prog, opts...)
	require.NoError(t, err)
	return chunk
}

func opcodes(c *bytecode.Chunk) []op.Code {
	var out []op.Code
	offset := 0
	for offset < len(c.Code) {
		code := op.Code(c.Code[offset])
		out = append(out, code)
		offset++
		for _, w := range op.GetInfo(code).Operands {
			offset += int(w)
		}
		// Variable tails.
		switch code {
		case op.CallNamed:
			offset += 2 * int(c.Code[offset-1])
		case op.Tuple:
			count := int(uint16(c.Code[offset-2]) | uint16(c.Code[offset-1])<<8)
			offset += 2 * count
		case op.EnumCase:
			offset += 2 * int(c.Code[offset-1])
		}
	}
	return out
}

func contains(codes []op.Code, want op.Code) bool {
	for _, c := range codes {
		if c == want {
			return true
		}
	}
	return false
}

func TestSimpleExpression(t *testing.T) {
	chunk := compile(t, "print(1 + 2)")
	codes := opcodes(chunk)
	require.Equal(t, op.Code(op.Constant), codes[0])
	require.True(t, contains(codes, op.Add))
	require.True(t, contains(codes, op.Print))
	require.Equal(t, op.Halt, codes[len(codes)-1])
}

func TestLineTableParallelsCode(t *testing.T) {
	chunk := compile(t, "let a = 1\nlet b = 2")
	require.Equal(t, len(chunk.Code), len(chunk.Lines))
	require.Equal(t, int32(1), chunk.Lines[0])
	require.Equal(t, int32(2), chunk.Lines[len(chunk.Lines)-2])
}

func TestGlobalsVersusLocals(t *testing.T) {
	chunk := compile(t, `
let g = 1
func f() { let l = 2; print(l) }`)
	codes := opcodes(chunk)
	require.True(t, contains(codes, op.DefineGlobal))

	body := chunk.Functions[0].Body
	bodyCodes := opcodes(body)
	require.True(t, contains(bodyCodes, op.GetLocal))
	require.False(t, contains(bodyCodes, op.DefineGlobal))
}

func TestUpvalueResolution(t *testing.T) {
	chunk := compile(t, `
func make() -> () -> Int { var n = 0; return { n = n + 1; return n } }`)
	outer := chunk.Functions[0]
	require.Len(t, outer.Body.Functions, 1)
	inner := outer.Body.Functions[0]
	require.Len(t, inner.Upvalues, 1)
	require.True(t, inner.Upvalues[0].IsLocal)
}

func TestSharedUpvalueIsDeduplicated(t *testing.T) {
	chunk := compile(t, `
func make() {
    var n = 0
    let a = { n = n + 1; return n }
    let b = { return n + n }
    print(a()); print(b())
}`)
	outer := chunk.Functions[0]
	require.Len(t, outer.Body.Functions, 2)
	for _, inner := range outer.Body.Functions {
		require.Len(t, inner.Upvalues, 1, "each closure holds one shared upvalue")
	}
}

func TestStructAssignmentEmitsCopyValue(t *testing.T) {
	chunk := compile(t, `
struct P { var x: Int = 0 }
var a = P(10)
var b = a`)
	codes := opcodes(chunk)
	require.True(t, contains(codes, op.CopyValue))
	require.True(t, contains(codes, op.Struct))
}

func TestMethodsUseImplicitSelf(t *testing.T) {
	chunk := compile(t, `
class R {
    var w: Int = 0
    func wide() -> Int { return w * 2 }
}`)
	method := findFunction(t, chunk, "wide")
	codes := opcodes(method.Body)
	require.Equal(t, op.GetLocal, codes[0], "implicit self access loads slot 0")
	require.Equal(t, op.GetProperty, codes[1])
}

func findFunction(t *testing.T, c *bytecode.Chunk, name string) *bytecode.FunctionProto {
	t.Helper()
	for _, fn := range c.Functions {
		if fn.Name == name {
			return fn
		}
	}
	for _, fn := range c.Functions {
		if found := findFunctionIn(fn.Body, name); found != nil {
			return found
		}
	}
	t.Fatalf("function %q not found", name)
	return nil
}

func findFunctionIn(c *bytecode.Chunk, name string) *bytecode.FunctionProto {
	for _, fn := range c.Functions {
		if fn.Name == name {
			return fn
		}
		if found := findFunctionIn(fn.Body, name); found != nil {
			return found
		}
	}
	return nil
}

func TestOverrideFlagReachesPrototype(t *testing.T) {
	chunk := compile(t, `
class A { func f() { } }
class B: A { override func f() { } }`)
	var overrides []bool
	for _, fn := range chunk.Functions {
		if fn.Name == "f" {
			overrides = append(overrides, fn.IsOverride)
		}
	}
	require.Equal(t, []bool{false, true}, overrides)
}

func TestInitializerFlag(t *testing.T) {
	chunk := compile(t, `
class A { var x: Int = 0
    init(x: Int) { self.x = x }
}`)
	fn := findFunction(t, chunk, "A.init")
	require.True(t, fn.IsInitializer)
}

func TestEnumCompilation(t *testing.T) {
	chunk := compile(t, `
enum Resp { case ok(msg: String); case err(code: Int) }`)
	codes := opcodes(chunk)
	require.True(t, contains(codes, op.Enum))
	require.True(t, contains(codes, op.EnumCase))
}

func TestSwitchLowering(t *testing.T) {
	chunk := compile(t, `
enum Resp { case ok(msg: String) }
let x = Resp.ok(msg: "hi")
switch x { case Resp.ok(let m): print(m) default: print("?") }`)
	codes := opcodes(chunk)
	require.True(t, contains(codes, op.MatchEnumCase))
	require.True(t, contains(codes, op.GetAssociated))
}

func TestDoCatchLowering(t *testing.T) {
	chunk := compile(t, `do { throw "x" } catch e { print(e) }`)
	codes := opcodes(chunk)
	require.True(t, contains(codes, op.PushHandler))
	require.True(t, contains(codes, op.PopHandler))
	require.True(t, contains(codes, op.Throw))
}

func TestDebugBuildEmitsDebugInfo(t *testing.T) {
	src := `
func f() {
    let a = 1
    print(a)
}`
	release := compile(t, src, WithSourceFile("main.sun"))
	require.Nil(t, release.Debug)

	debug := compile(t, src, WithBuildKind(Debug), WithSourceFile("main.sun"))
	require.NotNil(t, debug.Debug)
	require.Equal(t, "main.sun", debug.Debug.SourceFile)

	body := debug.Functions[0].Body
	require.NotNil(t, body.Debug)
	require.Len(t, body.Debug.Locals, 1)
	local := body.Debug.Locals[0]
	require.Equal(t, "a", local.Name)
	require.Equal(t, uint16(1), local.Slot)
}

func TestProtocolDescriptor(t *testing.T) {
	chunk := compile(t, `
protocol Drawable {
    func draw()
    var bounds: Int { get }
}`)
	require.Len(t, chunk.Protocols, 1)
	require.Equal(t, "Drawable", chunk.Protocols[0].Name)
	require.Equal(t, []string{"draw"}, chunk.Protocols[0].Methods)
	require.Equal(t, []string{"bounds"}, chunk.Protocols[0].Properties)
}

func TestCompileErrors(t *testing.T) {
	prog, err := parser.Parse("break")
	require.NoError(t, err)
	_, err = Compile(prog)
	require.Error(t, err)
	require.Contains(t, err.Error(), "break outside of a loop")

	prog, err = parser.Parse("self")
	require.NoError(t, err)
	_, err = Compile(prog)
	require.Error(t, err)
	require.Contains(t, err.Error(), "self may only appear inside a method")

	prog, err = parser.Parse("func f(a: Int = g()) { }")
	require.NoError(t, err)
	_, err = Compile(prog)
	require.Error(t, err)
	require.Contains(t, err.Error(), "default must be a literal")
}
