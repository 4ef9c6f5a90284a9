package sqllex

import "strings"

// Statement is a single SQL statement cut from a larger script.
// Text excludes the terminating semicolon and any leading comments.
type Statement struct {
	Text   string
	Pos    Position
	Tokens []Token // statement tokens, without the semicolon and EOF
}

// Keyword returns the lower-cased first keyword of the statement, or "" if
// the statement does not start with an identifier.
func (s Statement) Keyword() string {
	if len(s.Tokens) == 0 || s.Tokens[0].Type != IDENT {
		return ""
	}
	return strings.ToLower(s.Tokens[0].Literal)
}

// SplitStatements splits a SQL script on top-level semicolons.
// Semicolons inside string literals, quoted identifiers and comments do not
// end a statement. Empty statements are dropped.
func SplitStatements(src string) []Statement {
	var (
		stmts   []Statement
		current []Token
	)

	flush := func() {
		if len(current) == 0 {
			return
		}
		first, last := current[0], current[len(current)-1]
		stmts = append(stmts, Statement{
			Text:   src[first.Pos.Offset:last.End],
			Pos:    first.Pos,
			Tokens: current,
		})
		current = nil
	}

	l := NewLexer(src)
	for {
		tok := l.NextToken()
		switch tok.Type {
		case EOF:
			flush()
			return stmts
		case SEMICOLON:
			flush()
		default:
			current = append(current, tok)
		}
	}
}
