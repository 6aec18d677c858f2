package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcdoc/ast"
)

func kinds(t *testing.T, toks []ast.Token) []ast.TokenKind {
	t.Helper()
	out := make([]ast.TokenKind, len(toks))
	for i, tok := range toks {
		out[i] = tok.Kind
	}
	return out
}

func TestTokenizePunctuation(t *testing.T) {
	toks, err := Tokenize(":: .. ... . : < > | ? @ %")
	require.NoError(t, err)
	got := kinds(t, toks)
	want := []ast.TokenKind{
		ast.TokenDoubleColon, ast.TokenDotDot, ast.TokenDotDotDot, ast.TokenDot,
		ast.TokenColon, ast.TokenLess, ast.TokenGreater, ast.TokenPipe,
		ast.TokenQuestion, ast.TokenAt, ast.TokenPercent, ast.TokenEOF,
	}
	assert.Equal(t, want, got)
}

func TestTokenizeKeywordsAndIdents(t *testing.T) {
	toks, err := Tokenize("struct Foo enum dispatch to super use bar_baz")
	require.NoError(t, err)
	require.Len(t, toks, 9)
	assert.Equal(t, ast.TokenStruct, toks[0].Kind)
	assert.Equal(t, ast.TokenIdent, toks[1].Kind)
	assert.Equal(t, "Foo", toks[1].Text)
	assert.Equal(t, ast.TokenEnum, toks[2].Kind)
	assert.Equal(t, ast.TokenDispatch, toks[3].Kind)
	assert.Equal(t, ast.TokenTo, toks[4].Kind)
	assert.Equal(t, ast.TokenSuper, toks[5].Kind)
	assert.Equal(t, ast.TokenUse, toks[6].Kind)
	assert.Equal(t, ast.TokenIdent, toks[7].Kind)
	assert.Equal(t, "bar_baz", toks[7].Text)
}

func TestTokenizeBooleans(t *testing.T) {
	toks, err := Tokenize("true false")
	require.NoError(t, err)
	if toks[0].Kind != ast.TokenBool || toks[0].Bool != true {
		t.Errorf("expected true token, got %+v", toks[0])
	}
	if toks[1].Kind != ast.TokenBool || toks[1].Bool != false {
		t.Errorf("expected false token, got %+v", toks[1])
	}
}

func TestTokenizeNegativeNumberIsOneToken(t *testing.T) {
	toks, err := Tokenize("-80..80")
	require.NoError(t, err)
	require.Len(t, toks, 4) // Number, DotDot, Number, Eof
	assert.Equal(t, ast.TokenNumber, toks[0].Kind)
	assert.Equal(t, -80.0, toks[0].Num)
	assert.Equal(t, ast.TokenDotDot, toks[1].Kind)
	assert.Equal(t, ast.TokenNumber, toks[2].Kind)
	assert.Equal(t, 80.0, toks[2].Num)
}

func TestTokenizeFractionalNumber(t *testing.T) {
	toks, err := Tokenize("3.14")
	require.NoError(t, err)
	assert.Equal(t, 3.14, toks[0].Num)
}

func TestTokenizeStringEscapes(t *testing.T) {
	toks, err := Tokenize(`"a\"b" 'c\'d'`)
	require.NoError(t, err)
	assert.Equal(t, `a\"b`, toks[0].Text)
	assert.Equal(t, `c\'d`, toks[1].Text)
}

func TestTokenizeUnterminatedString(t *testing.T) {
	_, err := Tokenize(`"unterminated`)
	require.Error(t, err)
	lerr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, UnterminatedString, lerr.Kind)
}

func TestTokenizeNewlineInsideStringIsError(t *testing.T) {
	_, err := Tokenize("\"line1\nline2\"")
	require.Error(t, err)
}

func TestTokenizeLineComment(t *testing.T) {
	toks, err := Tokenize("struct // a comment\nFoo")
	require.NoError(t, err)
	// comment is skipped entirely; struct, newline, Foo, eof
	assert.Equal(t, ast.TokenStruct, toks[0].Kind)
	assert.Equal(t, ast.TokenNewline, toks[1].Kind)
	assert.Equal(t, ast.TokenIdent, toks[2].Kind)
}

func TestTokenizeNestedBlockComment(t *testing.T) {
	toks, err := Tokenize("/* outer /* inner */ still outer */ struct")
	require.NoError(t, err)
	assert.Equal(t, ast.TokenStruct, toks[0].Kind)
}

func TestTokenizeUnterminatedBlockComment(t *testing.T) {
	_, err := Tokenize("/* never closes")
	require.Error(t, err)
	lerr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, UnterminatedBlockComment, lerr.Kind)
}

func TestTokenizeAnnotationRawText(t *testing.T) {
	toks, err := Tokenize(`#[id(registry="item")] struct`)
	require.NoError(t, err)
	require.Equal(t, ast.TokenAnnotation, toks[0].Kind)
	assert.Equal(t, `#[id(registry="item")]`, toks[0].Text)
}

func TestTokenizeNestedAnnotationBrackets(t *testing.T) {
	toks, err := Tokenize(`#[tags=["a","b"]]`)
	require.NoError(t, err)
	assert.Equal(t, `#[tags=["a","b"]]`, toks[0].Text)
}

func TestTokenizeUnexpectedCharacter(t *testing.T) {
	_, err := Tokenize("$")
	require.Error(t, err)
	lerr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, UnexpectedCharacter, lerr.Kind)
}

func TestTokenizeEndsInEOF(t *testing.T) {
	toks, err := Tokenize("struct Foo {}")
	require.NoError(t, err)
	assert.Equal(t, ast.TokenEOF, toks[len(toks)-1].Kind)
}

func TestTokenizePositionsTrackLineAndColumn(t *testing.T) {
	toks, err := Tokenize("a\nb")
	require.NoError(t, err)
	assert.Equal(t, ast.Pos{Line: 1, Column: 1, Offset: 0}, toks[0].Pos)
	assert.Equal(t, ast.Pos{Line: 2, Column: 1, Offset: 2}, toks[2].Pos)
}
