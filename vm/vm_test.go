package vm

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sunscript-lang/sunscript/bytecode"
	"github.com/sunscript-lang/sunscript/compiler"
	"github.com/sunscript-lang/sunscript/object"
	"github.com/sunscript-lang/sunscript/parser"
)

func compileSource(t *testing.T, src string) *bytecode.Chunk {
	t.Helper()
	prog, err := parser.Parse(src, parser.WithFile("test.sun"))
	require.NoError(t, err)
	chunk, err := compiler.Compile(prog,
		compiler.WithBuildKind(compiler.Debug),
		compiler.WithSourceFile("test.sun"),
	)
	require.NoError(t, err)
	return chunk
}

func runSource(t *testing.T, src string, opts ...Option) (string, error) {
	t.Helper()
	chunk := compileSource(t, src)
	var out bytes.Buffer
	var errOut bytes.Buffer
	options := append([]Option{WithOutput(&out), WithErrorOutput(&errOut)}, opts...)
	machine := New(options...)
	_, err := machine.Run(context.Background(), chunk)
	return out.String(), err
}

func expectOutput(t *testing.T, src, want string) {
	t.Helper()
	got, err := runSource(t, src)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestArithmeticPromotion(t *testing.T) {
	expectOutput(t, "print(1 + 2)", "3\n")
	expectOutput(t, "print(7 / 2)", "3\n")
	expectOutput(t, "print(7.0 / 2)", "3.5\n")
	expectOutput(t, "print(7 % 3)", "1\n")
	expectOutput(t, "print(2.5 + 1)", "3.5\n")
	expectOutput(t, "print(-3)", "-3\n")
	expectOutput(t, "print(1 + 2 * 3)", "7\n")
}

func TestIntegerDivisionByZeroIsThrown(t *testing.T) {
	_, err := runSource(t, "print(1 / 0)")
	require.Error(t, err)
	require.Contains(t, err.Error(), "division by zero")

	// Catchable by do/catch.
	expectOutput(t, `
do {
    let x = 1 / 0
    print(x)
} catch e {
    print("caught")
}`, "caught\n")
}

func TestBitwiseOps(t *testing.T) {
	expectOutput(t, "print(6 & 3)", "2\n")
	expectOutput(t, "print(6 | 3)", "7\n")
	expectOutput(t, "print(6 ^ 3)", "5\n")
	expectOutput(t, "print(1 << 4)", "16\n")
	expectOutput(t, "print(16 >> 2)", "4\n")
	_, err := runSource(t, "print(1.5 & 2)")
	require.Error(t, err)
	require.Contains(t, err.Error(), "integers")
}

func TestStringsAndConcat(t *testing.T) {
	expectOutput(t, `print("hello " + "world")`, "hello world\n")
	expectOutput(t, `print("a" == "a")`, "true\n")
	expectOutput(t, `print("a" < "b")`, "true\n")
}

func TestTruthinessAndLogic(t *testing.T) {
	expectOutput(t, "print(true && false)", "false\n")
	expectOutput(t, "print(false || true)", "true\n")
	expectOutput(t, "print(!false)", "true\n")
	expectOutput(t, "print(nil == nil)", "true\n")
	expectOutput(t, "print(nil == 0)", "false\n")
	// Short-circuit: the right side must not run.
	expectOutput(t, `
func boom() -> Bool { print("boom"); return true }
print(false && boom())`, "false\n")
}

func TestGlobalsAndLocals(t *testing.T) {
	expectOutput(t, `
var total = 0
func add(n: Int) { total = total + n }
add(n: 5)
add(n: 7)
print(total)`, "12\n")
}

func TestWhileAndFor(t *testing.T) {
	expectOutput(t, `
var i = 0
while i < 3 { print(i); i = i + 1 }`, "0\n1\n2\n")

	expectOutput(t, "for i in 0..<3 { print(i) }", "0\n1\n2\n")
	expectOutput(t, "for i in 1...3 { print(i) }", "1\n2\n3\n")
	expectOutput(t, `for x in [10, 20] { print(x) }`, "10\n20\n")
	expectOutput(t, `
for i in 0..<10 {
    if i == 2 { break }
    print(i)
}`, "0\n1\n")
}

func TestClosureCaptureAfterScopeExit(t *testing.T) {
	// Scenario: the captured binding survives the enclosing frame and keeps
	// observing writes through the closure.
	expectOutput(t, `
func make() -> () -> Int { var n = 0; return { n = n + 1; return n } }
let c = make()
print(c()); print(c()); print(c())`, "1\n2\n3\n")
}

func TestTwoClosuresShareOneUpvalue(t *testing.T) {
	expectOutput(t, `
func make() -> Array {
    var n = 0
    let inc = { n = n + 1; return n }
    let read = { return n }
    return [inc, read]
}
let fns = make()
let inc = fns[0]
let read = fns[1]
inc()
inc()
print(read())`, "2\n")
}

func TestStructValueSemantics(t *testing.T) {
	expectOutput(t, `
struct P { var x: Int = 0 }
var a = P(10); var b = a; b.x = 99
print(a.x); print(b.x)`, "10\n99\n")
}

func TestStructMutatingMethod(t *testing.T) {
	expectOutput(t, `
struct Counter {
    var n: Int = 0
    mutating func bump() { n = n + 1 }
}
var c = Counter()
c.bump()
c.bump()
print(c.n)`, "2\n")
}

func TestClassReferenceSemantics(t *testing.T) {
	expectOutput(t, `
class Box { var v: Int = 0 }
let a = Box()
let b = a
b.v = 42
print(a.v)`, "42\n")
}

func TestOverrideValidationFailure(t *testing.T) {
	_, err := runSource(t, `
class A { func f() { print("a") } }
class B: A { func f() { print("b") } }
B().f()`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "override")
}

func TestOverrideMarkedWithoutAncestorFails(t *testing.T) {
	_, err := runSource(t, `
class A { }
class B: A { override func f() { } }
B().f()`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "override")
}

func TestOverrideAndSuper(t *testing.T) {
	expectOutput(t, `
class A {
    func describe() -> String { return "A" }
}
class B: A {
    override func describe() -> String { return super.describe() + "B" }
}
print(B().describe())`, "AB\n")
}

func TestInitializersAreExemptFromOverrideRules(t *testing.T) {
	expectOutput(t, `
class A { var x: Int = 0
    init(x: Int) { self.x = x }
}
class B: A {
    init(x: Int) { self.x = x + 1 }
}
print(B(x: 1).x)`, "2\n")
}

func TestComputedPropertyWithSetter(t *testing.T) {
	expectOutput(t, `
class R { var w: Int = 0; var h: Int = 0
  var area: Int { get { return w*h } set { w = newValue/h } } }
let r = R(); r.w = 4; r.h = 5; print(r.area); r.area = 40; print(r.w)`, "20\n8\n")
}

func TestGetOnlyComputedPropertyRejectsWrites(t *testing.T) {
	_, err := runSource(t, `
class C { var v: Int { get { return 1 } } }
let c = C()
c.v = 2`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "get-only")
}

func TestPropertyObservers(t *testing.T) {
	expectOutput(t, `
class Gauge {
    var level: Int = 0 {
        willSet { print("will " + typeof(newValue)) }
        didSet(old) { print(old) }
    }
}
let g = Gauge()
g.level = 5
g.level = 9`, "will Int\n0\nwill Int\n5\n")
}

func TestEnumWithAssociatedValuesInSwitch(t *testing.T) {
	expectOutput(t, `
enum Resp { case ok(msg: String); case err(code: Int) }
let x = Resp.ok(msg: "hi")
switch x { case Resp.ok(let m): print(m) case Resp.err(let c): print(c) }`, "hi\n")
}

func TestEnumRawValues(t *testing.T) {
	expectOutput(t, `
enum Dir: Int { case north = 0, south = 1 }
print(Dir.south.rawValue)`, "1\n")
}

func TestEnumEquality(t *testing.T) {
	expectOutput(t, `
enum Resp { case ok(msg: String); case err(code: Int) }
print(Resp.ok(msg: "a") == Resp.ok(msg: "a"))
print(Resp.ok(msg: "a") == Resp.ok(msg: "b"))
print(Resp.ok(msg: "a") == Resp.err(code: 1))`, "true\nfalse\nfalse\n")
}

func TestSwitchValuePatternsAndDefault(t *testing.T) {
	expectOutput(t, `
let n = 5
switch n {
case 1, 2: print("small")
case 5: print("five")
default: print("other")
}`, "five\n")

	expectOutput(t, `
switch 99 {
case 1: print("one")
default: print("default")
}`, "default\n")
}

func TestTuples(t *testing.T) {
	expectOutput(t, `
let t = (3, y: 4)
print(t.0)
print(t.y)
print(t)`, "3\n4\n(3, y: 4)\n")
}

func TestArraysAndDictionaries(t *testing.T) {
	expectOutput(t, `
var a = [1, 2, 3]
a[0] = 9
print(a[0] + a[2])
print(len(a))`, "12\n3\n")

	expectOutput(t, `
var d = ["one": 1]
d["two"] = 2
print(d["one"])
print(d["two"])
print(d["missing"])`, "1\n2\nnil\n")

	_, err := runSource(t, "let a = [1]\nprint(a[5])")
	require.Error(t, err)
	require.Contains(t, err.Error(), "out of range")
}

func TestOptionals(t *testing.T) {
	expectOutput(t, `
let d = ["k": 1]
print(d["missing"] ?? 42)`, "42\n")

	expectOutput(t, `
class C { var v: Int = 7 }
var c = C()
print(c.v)
var maybe = nil
print(maybe?.v)`, "7\nnil\n")

	_, err := runSource(t, "let x = nil\nprint(x!)")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unwrapping")
}

func TestDefaultsAndLabeledBinding(t *testing.T) {
	expectOutput(t, `
func greet(name: String, punct: String = "!") -> String { return name + punct }
print(greet(name: "hi"))
print(greet(name: "yo", punct: "?"))`, "hi!\nyo?\n")

	// Labels may be reordered when unambiguous.
	expectOutput(t, `
func pair(a: Int, b: Int) -> Int { return a * 10 + b }
print(pair(b: 2, a: 1))`, "12\n")

	_, err := runSource(t, `
func f(a: Int, b: Int) { }
f(a: 1, a: 2)`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate")

	_, err = runSource(t, `
func f(a: Int) { }
f(wrong: 1)`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "label")
}

func TestUnlabeledParams(t *testing.T) {
	expectOutput(t, `
func double(_ n: Int) -> Int { return n * 2 }
print(double(21))`, "42\n")
}

func TestOperatorOverload(t *testing.T) {
	expectOutput(t, `
class Vec {
    var x: Int = 0
    var y: Int = 0
    func +(other: Vec) -> Vec { return Vec(x + other.x, y + other.y) }
    func ==(other: Vec) -> Bool { return x == other.x && y == other.y }
}
let v = Vec(1, 2) + Vec(3, 4)
print(v.x)
print(v.y)
print(v == Vec(4, 6))`, "4\n6\ntrue\n")
}

func TestOperatorOverloadMissingFails(t *testing.T) {
	_, err := runSource(t, `
class C { }
let x = C() + C()`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "operands must be")
}

func TestTypeCheckAndCasts(t *testing.T) {
	expectOutput(t, `
print(1 is Int)
print(1.5 is Int)
print("s" is String)
class A { }
class B: A { }
print(B() is A)
print(A() is B)`, "true\nfalse\ntrue\ntrue\nfalse\n")

	expectOutput(t, `
print(1 as Float)
print(2.9 as Int)`, "1.0\n2\n")

	expectOutput(t, `
class A { }
class B: A { }
let x = B() as? A
print(x is A)
let y = A() as? B
print(y)`, "true\nnil\n")

	_, err := runSource(t, `
class A { }
let x = 1 as! A`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "cannot cast")
}

func TestProtocolConformance(t *testing.T) {
	expectOutput(t, `
protocol Drawable { func draw() }
class Circle: Drawable { func draw() { print("circle") } }
class Blob { }
let c = Circle()
print(c is Drawable)
print(Blob() is Drawable)
c.draw()`, "true\nfalse\ncircle\n")
}

func TestThrowAndCatch(t *testing.T) {
	expectOutput(t, `
func risky(n: Int) -> Int {
    if n < 0 { throw "negative" }
    return n * 2
}
do {
    print(risky(n: 2))
    print(risky(n: -1))
} catch e {
    print("caught: " + e)
}`, "4\ncaught: negative\n")
}

func TestUncaughtThrowFaultsTheVM(t *testing.T) {
	chunk := compileSource(t, `throw "boom"`)
	var out, errOut bytes.Buffer
	machine := New(WithOutput(&out), WithErrorOutput(&errOut))
	_, err := machine.Run(context.Background(), chunk)
	require.Error(t, err)
	require.Contains(t, err.Error(), "boom")
	require.Equal(t, Faulted, machine.State())
	require.Contains(t, errOut.String(), "boom")
}

func TestThrowUnwindsNestedFrames(t *testing.T) {
	expectOutput(t, `
func inner() { throw "deep" }
func outer() { inner() }
do { outer() } catch e { print(e) }`, "deep\n")
}

func TestRecursion(t *testing.T) {
	expectOutput(t, `
func fib(n: Int) -> Int {
    if n < 2 { return n }
    return fib(n: n - 1) + fib(n: n - 2)
}
print(fib(n: 10))`, "55\n")
}

func TestStackOverflow(t *testing.T) {
	_, err := runSource(t, `
func loop() { loop() }
loop()`)
	require.Error(t, err)
	require.Contains(t, strings.ToLower(err.Error()), "overflow")
}

func TestNativeBridge(t *testing.T) {
	chunk := compileSource(t, `print(shout("hey"))`)
	var out bytes.Buffer
	machine := New(WithOutput(&out))
	machine.RegisterNative("shout", func(_ context.Context, args []object.Value) (object.Value, error) {
		s, _ := args[0].AsString()
		return machine.Heap().NewStringValue(strings.ToUpper(s) + "!"), nil
	})
	_, err := machine.Run(context.Background(), chunk)
	require.NoError(t, err)
	require.Equal(t, "HEY!\n", out.String())
}

func TestNativeErrorIsThrown(t *testing.T) {
	chunk := compileSource(t, `
do { fail() } catch e { print("caught") }`)
	var out bytes.Buffer
	machine := New(
		WithOutput(&out),
		WithNative("fail", func(_ context.Context, _ []object.Value) (object.Value, error) {
			return object.Null, errors.New("native failure")
		}),
	)
	_, err := machine.Run(context.Background(), chunk)
	require.NoError(t, err)
	require.Equal(t, "caught\n", out.String())
}

func TestBuiltins(t *testing.T) {
	expectOutput(t, `print(len("hello"))`, "5\n")
	expectOutput(t, `print(abs(-4))`, "4\n")
	expectOutput(t, `print(min(3, 1, 2))`, "1\n")
	expectOutput(t, `print(max(3, 1, 2))`, "3\n")
	expectOutput(t, `print(uppercased("abc"))`, "ABC\n")
	expectOutput(t, `print(contains("hello", "ell"))`, "true\n")
	expectOutput(t, `print(joined(["a", "b"], "-"))`, "a-b\n")
	expectOutput(t, `
var a = [1]
append(a, 2)
print(len(a))`, "2\n")
	expectOutput(t, `
let d = ["x": 1, "y": 2]
print(joined(keys(d), ","))`, "x,y\n")
}

func TestDeterministicExecution(t *testing.T) {
	src := `
var acc = 0
for i in 1...10 { acc = acc + i }
print(acc)
let t = (acc, label: "sum")
print(t.label)`
	first, err := runSource(t, src)
	require.NoError(t, err)
	second, err := runSource(t, src)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, "55\nsum\n", first)
}

func TestSerializedChunkRunsIdentically(t *testing.T) {
	src := `
func make() -> () -> Int { var n = 0; return { n = n + 1; return n } }
let c = make()
print(c()); print(c())`
	chunk := compileSource(t, src)

	var buf bytes.Buffer
	require.NoError(t, bytecode.Write(&buf, chunk))
	restored, err := bytecode.Read(&buf)
	require.NoError(t, err)

	var out bytes.Buffer
	machine := New(WithOutput(&out))
	_, err = machine.Run(context.Background(), restored)
	require.NoError(t, err)
	require.Equal(t, "1\n2\n", out.String())
}

func TestEngineOwnedNativeHandleNotifiesOnRelease(t *testing.T) {
	released := []any{}
	machine := New()
	handle := machine.WrapNativePointer("resource-7", "Resource", func(ptr any) {
		released = append(released, ptr)
	}, true)
	machine.SetGlobal("res", handle)
	machine.Heap().Release(handle)
	machine.Heap().Drain()
	require.Empty(t, released, "still referenced by the global")

	machine.SetGlobal("res", object.Null)
	require.Equal(t, []any{"resource-7"}, released)
}

func TestRangesAsValues(t *testing.T) {
	expectOutput(t, `
let r = 1...4
print(r)
print(len(r))
print(r[0])`, "1...4\n4\n1\n")
}

func TestResultValueOfRun(t *testing.T) {
	chunk := compileSource(t, "print(1)")
	var out bytes.Buffer
	machine := New(WithOutput(&out))
	result, err := machine.Run(context.Background(), chunk)
	require.NoError(t, err)
	require.Equal(t, Halted, machine.State())
	require.True(t, result.IsNull())
}
