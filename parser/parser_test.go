package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sunscript-lang/sunscript/ast"
)

func parse(t *testing.T, src string) *ast.Program {
	t.Helper()
	prog, err := Parse(src)
	require.NoError(t, err)
	return prog
}

func TestVarDecl(t *testing.T) {
	prog := parse(t, "let x: Int = 1 + 2\nvar y = x")
	require.Len(t, prog.Statements, 2)

	decl := prog.Statements[0].(*ast.VarDecl)
	require.Equal(t, "x", decl.Name)
	require.Equal(t, "Int", decl.Type)
	require.False(t, decl.Mutable)
	infix := decl.Value.(*ast.Infix)
	require.Equal(t, "+", infix.Op)

	decl = prog.Statements[1].(*ast.VarDecl)
	require.True(t, decl.Mutable)
}

func TestFuncDeclWithLabelsAndDefaults(t *testing.T) {
	prog := parse(t, "func greet(name: String, times count: Int = 1) -> String { return name }")
	fn := prog.Statements[0].(*ast.FuncDecl)
	require.Equal(t, "greet", fn.Name)
	require.Equal(t, "String", fn.ReturnType)
	require.Len(t, fn.Params, 2)
	require.Equal(t, "name", fn.Params[0].Label)
	require.Equal(t, "name", fn.Params[0].Name)
	require.Equal(t, "times", fn.Params[1].Label)
	require.Equal(t, "count", fn.Params[1].Name)
	require.NotNil(t, fn.Params[1].Default)
}

func TestUnlabeledParam(t *testing.T) {
	prog := parse(t, "func f(_ x: Int) { }")
	fn := prog.Statements[0].(*ast.FuncDecl)
	require.Equal(t, "", fn.Params[0].Label)
	require.Equal(t, "x", fn.Params[0].Name)
}

func TestClosureLiteral(t *testing.T) {
	prog := parse(t, "let c = { n = n + 1; return n }")
	decl := prog.Statements[0].(*ast.VarDecl)
	closure := decl.Value.(*ast.ClosureLit)
	require.Empty(t, closure.Params)
	require.Len(t, closure.Body.Statements, 2)

	prog = parse(t, "let f = { (a, b) in return a }")
	closure = prog.Statements[0].(*ast.VarDecl).Value.(*ast.ClosureLit)
	require.Len(t, closure.Params, 2)
	require.Equal(t, "a", closure.Params[0].Name)

	prog = parse(t, "let g = { x in x }")
	closure = prog.Statements[0].(*ast.VarDecl).Value.(*ast.ClosureLit)
	require.Len(t, closure.Params, 1)
}

func TestClassWithComputedPropertyAndObservers(t *testing.T) {
	src := `
class R {
    var w: Int = 0
    var h: Int = 0 {
        willSet { print(newValue) }
        didSet(old) { print(old) }
    }
    var area: Int {
        get { return w * h }
        set { w = newValue / h }
    }
    override func describe() { }
    init(w: Int) { self.w = w }
}`
	prog := parse(t, src)
	cls := prog.Statements[0].(*ast.ClassDecl)
	require.Equal(t, "R", cls.Name)
	require.Len(t, cls.Props, 2)
	require.Nil(t, cls.Props[0].WillSet)
	require.NotNil(t, cls.Props[1].WillSet)
	require.Equal(t, "newValue", cls.Props[1].WillSetName)
	require.Equal(t, "old", cls.Props[1].DidSetName)

	require.Len(t, cls.Computed, 1)
	require.Equal(t, "area", cls.Computed[0].Name)
	require.NotNil(t, cls.Computed[0].Getter)
	require.NotNil(t, cls.Computed[0].Setter)

	require.Len(t, cls.Methods, 1)
	require.True(t, cls.Methods[0].IsOverride)
	require.Len(t, cls.Inits, 1)
}

func TestStructDecl(t *testing.T) {
	prog := parse(t, "struct P { var x: Int = 0\n mutating func bump() { x = x + 1 } }")
	cls := prog.Statements[0].(*ast.ClassDecl)
	require.True(t, cls.IsStruct)
	require.True(t, cls.Methods[0].IsMutating)
}

func TestInheritanceClause(t *testing.T) {
	prog := parse(t, "class B: A, Drawable { }")
	cls := prog.Statements[0].(*ast.ClassDecl)
	require.Equal(t, "A", cls.Superclass)
	require.Equal(t, []string{"Drawable"}, cls.Protocols)
}

func TestEnumDecl(t *testing.T) {
	src := `
enum Resp {
    case ok(msg: String)
    case err(code: Int)
    case unknown
}`
	prog := parse(t, src)
	e := prog.Statements[0].(*ast.EnumDecl)
	require.Equal(t, "Resp", e.Name)
	require.Len(t, e.Cases, 3)
	require.Equal(t, "msg", e.Cases[0].Assoc[0].Label)
	require.Equal(t, "String", e.Cases[0].Assoc[0].Type)
	require.Empty(t, e.Cases[2].Assoc)
}

func TestEnumWithRawValues(t *testing.T) {
	prog := parse(t, "enum Dir: Int { case north = 0, south = 1 }")
	e := prog.Statements[0].(*ast.EnumDecl)
	require.Equal(t, "Int", e.RawType)
	require.Len(t, e.Cases, 2)
	require.NotNil(t, e.Cases[0].Raw)
}

func TestSwitchWithEnumPatterns(t *testing.T) {
	src := `
switch x {
case Resp.ok(let m): print(m)
case Resp.err(let c): print(c)
default: print("?")
}`
	prog := parse(t, src)
	sw := prog.Statements[0].(*ast.Switch)
	require.Len(t, sw.Cases, 2)
	p0 := sw.Cases[0].Patterns[0].(*ast.EnumPattern)
	require.Equal(t, "Resp", p0.EnumName)
	require.Equal(t, "ok", p0.CaseName)
	require.Equal(t, []string{"m"}, p0.Bindings)
	require.NotNil(t, sw.Default)
}

func TestSwitchWithValuePatterns(t *testing.T) {
	prog := parse(t, "switch n { case 1, 2: print(\"small\") default: print(\"big\") }")
	sw := prog.Statements[0].(*ast.Switch)
	require.Len(t, sw.Cases[0].Patterns, 2)
}

func TestOptionalOperators(t *testing.T) {
	prog := parse(t, "let v = a?.b ?? c!")
	decl := prog.Statements[0].(*ast.VarDecl)
	infix := decl.Value.(*ast.Infix)
	require.Equal(t, "??", infix.Op)
	member := infix.Left.(*ast.Member)
	require.True(t, member.Optional)
	_, ok := infix.Right.(*ast.ForceUnwrap)
	require.True(t, ok)
}

func TestCastsAndTypeCheck(t *testing.T) {
	prog := parse(t, "let a = x is Int\nlet b = x as? Shape\nlet c = x as! Shape")
	require.IsType(t, &ast.TypeCheck{}, prog.Statements[0].(*ast.VarDecl).Value)
	cast := prog.Statements[1].(*ast.VarDecl).Value.(*ast.Cast)
	require.Equal(t, ast.CastOptional, cast.Mode)
	cast = prog.Statements[2].(*ast.VarDecl).Value.(*ast.Cast)
	require.Equal(t, ast.CastForced, cast.Mode)
}

func TestTuplesAndAccess(t *testing.T) {
	prog := parse(t, "let t = (1, y: 2)\nlet a = t.0\nlet b = t.y")
	tuple := prog.Statements[0].(*ast.VarDecl).Value.(*ast.TupleLit)
	require.Equal(t, []string{"", "y"}, tuple.Labels)
	idx := prog.Statements[1].(*ast.VarDecl).Value.(*ast.TupleIndex)
	require.Equal(t, 0, idx.Index)
	member := prog.Statements[2].(*ast.VarDecl).Value.(*ast.Member)
	require.Equal(t, "y", member.Name)
}

func TestRanges(t *testing.T) {
	prog := parse(t, "for i in 0..<10 { print(i) }")
	loop := prog.Statements[0].(*ast.ForIn)
	r := loop.Iterable.(*ast.Infix)
	require.Equal(t, "..<", r.Op)
}

func TestDoCatchThrow(t *testing.T) {
	prog := parse(t, "do { throw \"bad\" } catch e { print(e) }")
	dc := prog.Statements[0].(*ast.DoCatch)
	require.Equal(t, "e", dc.CatchVar)
	require.Len(t, dc.Body.Statements, 1)
}

func TestProtocolDecl(t *testing.T) {
	prog := parse(t, "protocol Drawable { func draw()\n var bounds: Int { get } }")
	proto := prog.Statements[0].(*ast.ProtocolDecl)
	require.Equal(t, []string{"draw"}, proto.Methods)
	require.Equal(t, []string{"bounds"}, proto.Properties)
}

func TestLabeledCallArgs(t *testing.T) {
	prog := parse(t, "move(x: 1, 2)")
	call := prog.Statements[0].(*ast.ExprStmt).Expr.(*ast.Call)
	require.Equal(t, "x", call.Args[0].Label)
	require.Equal(t, "", call.Args[1].Label)
}

func TestWeakIsParsed(t *testing.T) {
	prog := parse(t, "class C { weak var d: Delegate }")
	cls := prog.Statements[0].(*ast.ClassDecl)
	require.True(t, cls.Props[0].Weak)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse("func (")
	require.Error(t, err)
	_, err = Parse("let = 3")
	require.Error(t, err)
	_, err = Parse("class C { let }")
	require.Error(t, err)
}
