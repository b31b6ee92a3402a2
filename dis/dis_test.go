package dis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sunscript-lang/sunscript/compiler"
	"github.com/sunscript-lang/sunscript/parser"
)

func disassemble(t *testing.T, src string) string {
	t.Helper()
	prog, err := parser.Parse(src)
	require.NoError(t, err)
	chunk, err := compiler.Compile(prog)
	require.NoError(t, err)
	var b strings.Builder
	require.NoError(t, Disassemble(&b, chunk, ""))
	return b.String()
}

func TestDisassembleSimple(t *testing.T) {
	out := disassemble(t, "print(1 + 2)")
	require.Contains(t, out, "== <main> ==")
	require.Contains(t, out, "CONSTANT")
	require.Contains(t, out, "ADD")
	require.Contains(t, out, "PRINT")
	require.Contains(t, out, "HALT")

	// Offsets and lines lead each row.
	require.Regexp(t, `(?m)^0000 +1 +CONSTANT`, out)
}

func TestDisassembleNestedFunctions(t *testing.T) {
	out := disassemble(t, "func f() -> Int { return 1 }")
	require.Contains(t, out, "== f ==")
	require.Contains(t, out, "CLOSURE")
	require.Contains(t, out, "RETURN")
}

func TestDisassembleNamesOperands(t *testing.T) {
	out := disassemble(t, `
let greeting = "hi"
print(greeting)`)
	require.Contains(t, out, `DEFINE_GLOBAL`)
	require.Contains(t, out, `"greeting"`)
}

func TestDisassembleLabeledCall(t *testing.T) {
	out := disassemble(t, `
func f(a: Int, b: Int) { }
f(a: 1, b: 2)`)
	require.Contains(t, out, "CALL_NAMED")
	require.Contains(t, out, "[a, b]")
}
