package bytecode

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sunscript-lang/sunscript/op"
)

func sampleChunk() *Chunk {
	inner := &Chunk{
		Code:      []byte{byte(op.GetLocal), 1, 0, byte(op.Return)},
		Lines:     []int32{2, 2, 2, 2},
		Constants: []Constant{IntConstant(1)},
	}
	return &Chunk{
		Code: []byte{
			byte(op.Constant), 0, 0,
			byte(op.Print),
			byte(op.Halt),
		},
		Lines:     []int32{1, 1, 1, 1, 1},
		Constants: []Constant{IntConstant(42), FloatConstant(3.5), BoolConstant(true), NullConstant()},
		Strings:   []string{"greeting", "hello"},
		Functions: []*FunctionProto{
			{
				Name:       "increment",
				Params:     []string{"by"},
				Labels:     []string{"by"},
				Defaults:   []Constant{IntConstant(1)},
				HasDefault: []bool{true},
				Upvalues:   []UpvalueDesc{{Index: 0, IsLocal: true}},
				Body:       inner,
				IsOverride: true,
			},
		},
		Protocols: []*Protocol{
			{Name: "Drawable", Methods: []string{"draw"}, Properties: []string{"bounds"}},
		},
		Debug: &DebugInfo{
			SourceFile: "main.sun",
			Locals: []LocalVar{
				{Name: "greeting", Slot: 1, ScopeStart: 0, ScopeEnd: 0},
			},
		},
	}
}

func TestRoundTrip(t *testing.T) {
	c := sampleChunk()

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, c))

	got, err := Read(&buf)
	require.NoError(t, err)

	require.Equal(t, c.Code, got.Code)
	require.Equal(t, c.Lines, got.Lines)
	require.Equal(t, c.Constants, got.Constants)
	require.Equal(t, c.Strings, got.Strings)
	require.Equal(t, c.Protocols, got.Protocols)
	require.Equal(t, c.Debug, got.Debug)

	require.Len(t, got.Functions, 1)
	fn := got.Functions[0]
	require.Equal(t, "increment", fn.Name)
	require.Equal(t, []string{"by"}, fn.Params)
	require.Equal(t, []string{"by"}, fn.Labels)
	require.Equal(t, []bool{true}, fn.HasDefault)
	require.Equal(t, IntConstant(1), fn.Defaults[0])
	require.True(t, fn.IsOverride)
	require.False(t, fn.IsInitializer)
	require.Equal(t, c.Functions[0].Body.Code, fn.Body.Code)
}

func TestRejectsBadMagic(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte("NOPE\x01\x00")))
	require.Error(t, err)
	require.Contains(t, err.Error(), "not a SunScript bytecode artifact")
}

func TestRejectsBadVersion(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, &Chunk{Code: []byte{byte(op.Halt)}, Lines: []int32{1}}))
	raw := buf.Bytes()
	raw[4] = 0xFF
	_, err := Read(bytes.NewReader(raw))
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported bytecode version")
}

func TestRequiredParamCount(t *testing.T) {
	fn := &FunctionProto{
		Params:     []string{"a", "b", "c"},
		Labels:     []string{"", "b", "c"},
		HasDefault: []bool{false, false, true},
	}
	require.Equal(t, 2, fn.RequiredParamCount())
}

func TestLocalVarScope(t *testing.T) {
	l := LocalVar{Name: "n", Slot: 1, ScopeStart: 4, ScopeEnd: 10}
	require.False(t, l.InScope(3))
	require.True(t, l.InScope(4))
	require.True(t, l.InScope(9))
	require.False(t, l.InScope(10))

	// Zero scope end means live to the end of the body.
	open := LocalVar{Name: "n", Slot: 1, ScopeStart: 4, ScopeEnd: 0}
	require.True(t, open.InScope(400000))
}
