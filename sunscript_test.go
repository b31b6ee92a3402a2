package sunscript

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sunscript-lang/sunscript/object"
)

func TestEval(t *testing.T) {
	var out bytes.Buffer
	_, err := Eval(context.Background(), `print("hello")`, WithOutput(&out))
	require.NoError(t, err)
	require.Equal(t, "hello\n", out.String())
}

func TestCompileThenRunTwice(t *testing.T) {
	chunk, err := Compile("print(1 + 1)")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		var out bytes.Buffer
		_, err := Run(context.Background(), chunk, WithOutput(&out))
		require.NoError(t, err)
		require.Equal(t, "2\n", out.String())
	}
}

func TestCompileError(t *testing.T) {
	_, err := Compile("func (")
	require.Error(t, err)
}

func TestRuntimeErrorSurfaces(t *testing.T) {
	var errOut bytes.Buffer
	_, err := Eval(context.Background(), `let x = nil
print(x!)`, WithErrorOutput(&errOut), WithOutput(&bytes.Buffer{}))
	require.Error(t, err)
	require.Contains(t, errOut.String(), "unwrapping")
}

func TestWithNative(t *testing.T) {
	var out bytes.Buffer
	_, err := Eval(context.Background(), `print(answer())`,
		WithOutput(&out),
		WithNative("answer", func(_ context.Context, _ []object.Value) (object.Value, error) {
			return object.NewInt(42), nil
		}),
	)
	require.NoError(t, err)
	require.Equal(t, "42\n", out.String())
}

func TestDebugBuildCarriesFilename(t *testing.T) {
	chunk, err := Compile("print(1)", WithFilename("app.sun"), WithDebugBuild())
	require.NoError(t, err)
	require.NotNil(t, chunk.Debug)
	require.Equal(t, "app.sun", chunk.Debug.SourceFile)
}
