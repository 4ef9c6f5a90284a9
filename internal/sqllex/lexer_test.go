package sqllex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func types(tokens []Token) []TokenType {
	out := make([]TokenType, len(tokens))
	for i, tok := range tokens {
		out[i] = tok.Type
	}
	return out
}

func TestTokenize_CreateTable(t *testing.T) {
	tokens := Tokenize(`CREATE TABLE "t" (a VARCHAR(10), b INT);`)

	assert.Equal(t, []TokenType{
		IDENT, IDENT, QUOTED_IDENT, LPAREN,
		IDENT, IDENT, LPAREN, NUMBER, RPAREN, COMMA,
		IDENT, IDENT, RPAREN, SEMICOLON, EOF,
	}, types(tokens))
	assert.Equal(t, "t", tokens[2].Literal)
	assert.True(t, tokens[0].Is("create"))
	assert.False(t, tokens[2].Is("t"), "quoted identifiers are never keywords")
}

func TestTokenize_QuotedForms(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		typ     TokenType
		literal string
	}{
		{"double quotes", `"first name"`, QUOTED_IDENT, "first name"},
		{"backticks", "`order`", QUOTED_IDENT, "order"},
		{"brackets", "[Home Town]", QUOTED_IDENT, "Home Town"},
		{"doubled escape", `'it''s'`, STRING, "it's"},
		{"doubled identifier escape", `"a""b"`, QUOTED_IDENT, `a"b`},
		{"unterminated string", `'abc`, STRING, "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := Tokenize(tt.input)
			require.Len(t, tokens, 2)
			assert.Equal(t, tt.typ, tokens[0].Type)
			assert.Equal(t, tt.literal, tokens[0].Literal)
			assert.Equal(t, len(tt.input), tokens[0].End)
		})
	}
}

func TestTokenize_Operators(t *testing.T) {
	tokens := Tokenize("a <= 1 AND b <> 2 OR c != 3 AND d >= 4.5e2 || x::int")

	var ops []TokenType
	for _, tok := range tokens {
		switch tok.Type {
		case LE, NE, GE, OP:
			ops = append(ops, tok.Type)
		}
	}
	assert.Equal(t, []TokenType{LE, NE, NE, GE, OP, OP}, ops)

	for _, tok := range tokens {
		if tok.Type == NUMBER && tok.Literal != "1" && tok.Literal != "2" && tok.Literal != "3" {
			assert.Equal(t, "4.5e2", tok.Literal)
		}
	}
}

func TestTokenize_Positions(t *testing.T) {
	tokens := Tokenize("SELECT a\nFROM t")
	require.Len(t, tokens, 5)

	from := tokens[2]
	assert.Equal(t, "FROM", from.Literal)
	assert.Equal(t, Position{Line: 2, Column: 1, Offset: 9}, from.Pos)
	assert.Equal(t, 13, from.End)
}

func TestLexer_CollectsComments(t *testing.T) {
	l := NewLexer("-- header\nCREATE /* inline */ TABLE t (a INT)")
	for l.NextToken().Type != EOF {
	}

	require.Len(t, l.Comments, 2)
	assert.Equal(t, LineComment, l.Comments[0].Kind)
	assert.Equal(t, "-- header", l.Comments[0].Text)
	assert.Equal(t, BlockComment, l.Comments[1].Kind)
	assert.Equal(t, "/* inline */", l.Comments[1].Text)
}

func TestTokenize_Empty(t *testing.T) {
	tokens := Tokenize("   \n\t ")
	require.Len(t, tokens, 1)
	assert.Equal(t, EOF, tokens[0].Type)
}
