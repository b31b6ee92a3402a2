package lexer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sunscript-lang/sunscript/token"
)

func kinds(t *testing.T, src string) []token.Type {
	t.Helper()
	toks, err := New(src).Tokenize()
	require.NoError(t, err)
	var out []token.Type
	for _, tok := range toks {
		out = append(out, tok.Type)
	}
	return out
}

func TestKeywordsAndIdents(t *testing.T) {
	got := kinds(t, "func make() -> Int")
	require.Equal(t, []token.Type{
		token.FUNC, token.IDENT, token.LPAREN, token.RPAREN,
		token.ARROW, token.IDENT, token.EOF,
	}, got)
}

func TestNumbers(t *testing.T) {
	toks, err := New("42 3.5 1_000 0xFF 2e3").Tokenize()
	require.NoError(t, err)
	require.Equal(t, token.INT, toks[0].Type)
	require.Equal(t, "42", toks[0].Literal)
	require.Equal(t, token.FLOAT, toks[1].Type)
	require.Equal(t, "3.5", toks[1].Literal)
	require.Equal(t, token.INT, toks[2].Type)
	require.Equal(t, "1000", toks[2].Literal)
	require.Equal(t, token.INT, toks[3].Type)
	require.Equal(t, "0xFF", toks[3].Literal)
	require.Equal(t, token.FLOAT, toks[4].Type)
}

func TestRangesVsFloats(t *testing.T) {
	got := kinds(t, "1...5 1..<5 t.0")
	require.Equal(t, []token.Type{
		token.INT, token.RANGE_INCL, token.INT,
		token.INT, token.RANGE_EXCL, token.INT,
		token.IDENT, token.DOT, token.INT,
		token.EOF,
	}, got)
}

func TestStringsAndEscapes(t *testing.T) {
	toks, err := New(`"hi\n" "a\"b"`).Tokenize()
	require.NoError(t, err)
	require.Equal(t, "hi\n", toks[0].Literal)
	require.Equal(t, `a"b`, toks[1].Literal)

	_, err = New(`"unterminated`).Tokenize()
	require.Error(t, err)
}

func TestOperators(t *testing.T) {
	got := kinds(t, "a ?? b?.c as? Int x += 1")
	require.Equal(t, []token.Type{
		token.IDENT, token.NULLISH, token.IDENT, token.QUESTION_DOT, token.IDENT,
		token.AS, token.QUESTION, token.IDENT,
		token.IDENT, token.PLUS_EQUALS, token.INT,
		token.EOF,
	}, got)
}

func TestCommentsAndNewlines(t *testing.T) {
	src := "let a = 1 // trailing\n/* block\ncomment */ let b = 2"
	got := kinds(t, src)
	require.Equal(t, []token.Type{
		token.LET, token.IDENT, token.ASSIGN, token.INT, token.NEWLINE,
		token.LET, token.IDENT, token.ASSIGN, token.INT,
		token.EOF,
	}, got)
}

func TestPositions(t *testing.T) {
	toks, err := New("let\n  x").Tokenize()
	require.NoError(t, err)
	require.Equal(t, 1, toks[0].Position.LineNumber())
	require.Equal(t, "x", toks[2].Literal)
	require.Equal(t, 2, toks[2].Position.LineNumber())
	require.Equal(t, 3, toks[2].Position.ColumnNumber())
}

func TestMemoryKeywordsAreLexed(t *testing.T) {
	got := kinds(t, "weak var d: Delegate")
	require.Equal(t, []token.Type{
		token.WEAK, token.VAR, token.IDENT, token.COLON, token.IDENT, token.EOF,
	}, got)
}
