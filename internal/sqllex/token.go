// Package sqllex provides a small SQL lexer used to split schema files into
// statements and to group statement tokens by parenthesis depth.
//
// Keywords are not given their own token types; they lex as IDENT and are
// matched case-insensitively with Token.Is.
package sqllex

import (
	"fmt"
	"strings"
)

// TokenType represents the type of a lexical token.
//
//nolint:revive // token.TokenType reads clearly at call sites
type TokenType int

const (
	// Special tokens
	EOF TokenType = iota
	ILLEGAL

	// Literals
	IDENT        // identifier or keyword
	QUOTED_IDENT // "name", `name` or [name]
	NUMBER       // 123, 45.67, 1e10
	STRING       // 'hello'

	// Punctuation and operators
	COMMA     // ,
	LPAREN    // (
	RPAREN    // )
	SEMICOLON // ;
	DOT       // .
	STAR      // *
	EQ        // =
	NE        // != or <>
	LT        // <
	GT        // >
	LE        // <=
	GE        // >=
	OP        // any other operator (+ - / % || :: ...)
)

var tokenNames = map[TokenType]string{
	EOF:          "EOF",
	ILLEGAL:      "ILLEGAL",
	IDENT:        "IDENT",
	QUOTED_IDENT: "QUOTED_IDENT",
	NUMBER:       "NUMBER",
	STRING:       "STRING",
	COMMA:        ",",
	LPAREN:       "(",
	RPAREN:       ")",
	SEMICOLON:    ";",
	DOT:          ".",
	STAR:         "*",
	EQ:           "=",
	NE:           "!=",
	LT:           "<",
	GT:           ">",
	LE:           "<=",
	GE:           ">=",
	OP:           "OP",
}

// String returns a human-readable representation of the token type.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TOKEN(%d)", int(t))
}

// Position represents a location in the source text.
type Position struct {
	Line   int // 1-based line number
	Column int // 1-based column number
	Offset int // 0-based byte offset
}

// IsValid returns true if the position is valid (line > 0).
func (p Position) IsValid() bool {
	return p.Line > 0
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Token represents a lexical token with position information.
//
// Literal holds the token value: quoted identifiers and strings are stored
// without their delimiters. End is the byte offset just past the raw token.
type Token struct {
	Type    TokenType
	Literal string
	Pos     Position
	End     int
}

// Is reports whether the token is an unquoted identifier equal to kw,
// ignoring case.
func (t Token) Is(kw string) bool {
	return t.Type == IDENT && strings.EqualFold(t.Literal, kw)
}

// IsIdent reports whether the token names something (quoted or not).
func (t Token) IsIdent() bool {
	return t.Type == IDENT || t.Type == QUOTED_IDENT
}

// CommentKind distinguishes line vs block comments.
type CommentKind int

// Comment kinds.
const (
	LineComment  CommentKind = iota // -- comment
	BlockComment                    // /* comment */
)

// Comment represents a SQL comment with position.
type Comment struct {
	Kind CommentKind
	Text string // includes delimiters (-- or /* */)
	Pos  Position
}
