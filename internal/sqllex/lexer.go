package sqllex

import (
	"strings"
	"unicode"
)

// Lexer tokenizes SQL input.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination
	line    int  // current line number (1-based)
	col     int  // current column number (1-based)

	// Comments collected during lexing
	Comments []*Comment
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
		col:   0,
	}
	l.readChar()
	return l
}

// readChar advances to the next character.
func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0 // ASCII NUL = EOF
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++

	if l.pos > 0 && l.pos <= len(l.input) && l.input[l.pos-1] == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
}

// peekChar returns the next character without advancing.
func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *Lexer) atEOF() bool {
	return l.pos >= len(l.input)
}

func (l *Lexer) currentPos() Position {
	return Position{Line: l.line, Column: l.col, Offset: l.pos}
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	l.skipWhitespaceAndComments()

	pos := l.currentPos()
	if l.atEOF() {
		return Token{Type: EOF, Pos: pos, End: len(l.input)}
	}

	switch l.ch {
	case ',':
		return l.single(COMMA, pos)
	case '(':
		return l.single(LPAREN, pos)
	case ')':
		return l.single(RPAREN, pos)
	case ';':
		return l.single(SEMICOLON, pos)
	case '.':
		if isDigit(l.peekChar()) {
			return l.finish(NUMBER, l.readNumber(), pos)
		}
		return l.single(DOT, pos)
	case '*':
		return l.single(STAR, pos)
	case '=':
		return l.single(EQ, pos)
	case '<':
		switch l.peekChar() {
		case '=':
			return l.double(LE, pos)
		case '>':
			return l.double(NE, pos)
		default:
			return l.single(LT, pos)
		}
	case '>':
		if l.peekChar() == '=' {
			return l.double(GE, pos)
		}
		return l.single(GT, pos)
	case '!':
		if l.peekChar() == '=' {
			return l.double(NE, pos)
		}
		return l.single(ILLEGAL, pos)
	case '|':
		if l.peekChar() == '|' {
			return l.double(OP, pos)
		}
		return l.single(OP, pos)
	case ':':
		if l.peekChar() == ':' {
			return l.double(OP, pos)
		}
		return l.single(OP, pos)
	case '+', '-', '/', '%', '^', '&', '~':
		return l.single(OP, pos)
	case '\'':
		return l.finish(STRING, l.readQuoted('\''), pos)
	case '"':
		return l.finish(QUOTED_IDENT, l.readQuoted('"'), pos)
	case '`':
		return l.finish(QUOTED_IDENT, l.readQuoted('`'), pos)
	case '[':
		return l.finish(QUOTED_IDENT, l.readBracketed(), pos)
	}

	switch {
	case isLetter(l.ch) || l.ch == '_':
		return l.finish(IDENT, l.readIdentifier(), pos)
	case isDigit(l.ch):
		return l.finish(NUMBER, l.readNumber(), pos)
	default:
		return l.single(ILLEGAL, pos)
	}
}

func (l *Lexer) single(t TokenType, pos Position) Token {
	lit := string(l.ch)
	l.readChar()
	return Token{Type: t, Literal: lit, Pos: pos, End: l.pos}
}

func (l *Lexer) double(t TokenType, pos Position) Token {
	lit := l.input[l.pos : l.pos+2]
	l.readChar()
	l.readChar()
	return Token{Type: t, Literal: lit, Pos: pos, End: l.pos}
}

func (l *Lexer) finish(t TokenType, lit string, pos Position) Token {
	return Token{Type: t, Literal: lit, Pos: pos, End: l.pos}
}

// skipWhitespaceAndComments skips whitespace and collects comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for !l.atEOF() && isSpace(l.ch) {
			l.readChar()
		}

		if l.ch == '-' && l.peekChar() == '-' {
			l.collectLineComment()
			continue
		}
		if l.ch == '/' && l.peekChar() == '*' {
			l.collectBlockComment()
			continue
		}
		break
	}
}

func (l *Lexer) collectLineComment() {
	pos := l.currentPos()
	start := l.pos
	for !l.atEOF() && l.ch != '\n' {
		l.readChar()
	}
	l.Comments = append(l.Comments, &Comment{Kind: LineComment, Text: l.input[start:l.pos], Pos: pos})
}

func (l *Lexer) collectBlockComment() {
	pos := l.currentPos()
	start := l.pos
	l.readChar() // skip '/'
	l.readChar() // skip '*'
	for !l.atEOF() {
		if l.ch == '*' && l.peekChar() == '/' {
			l.readChar()
			l.readChar()
			break
		}
		l.readChar()
	}
	l.Comments = append(l.Comments, &Comment{Kind: BlockComment, Text: l.input[start:l.pos], Pos: pos})
}

// readQuoted reads a literal delimited by quote. A doubled delimiter is an
// escaped delimiter: 'it''s' -> it's. An unterminated literal runs to EOF.
func (l *Lexer) readQuoted(quote byte) string {
	l.readChar() // skip opening quote

	var b strings.Builder
	for !l.atEOF() {
		if l.ch == quote {
			if l.peekChar() == quote {
				b.WriteByte(quote)
				l.readChar()
				l.readChar()
				continue
			}
			l.readChar() // skip closing quote
			break
		}
		b.WriteByte(l.ch)
		l.readChar()
	}
	return b.String()
}

func (l *Lexer) readBracketed() string {
	l.readChar() // skip '['
	start := l.pos
	for !l.atEOF() && l.ch != ']' {
		l.readChar()
	}
	lit := l.input[start:l.pos]
	if !l.atEOF() {
		l.readChar() // skip ']'
	}
	return lit
}

func (l *Lexer) readIdentifier() string {
	start := l.pos
	for !l.atEOF() && (isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' || l.ch == '$') {
		l.readChar()
	}
	return l.input[start:l.pos]
}

// readNumber reads a numeric literal (integer, decimal, or scientific).
func (l *Lexer) readNumber() string {
	start := l.pos
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if (l.ch == 'e' || l.ch == 'E') && (isDigit(l.peekChar()) || l.peekChar() == '+' || l.peekChar() == '-') {
		l.readChar()
		if l.ch == '+' || l.ch == '-' {
			l.readChar()
		}
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	return l.input[start:l.pos]
}

// isLetter treats every non-ASCII byte as a letter so UTF-8 identifiers lex
// as a single IDENT.
func isLetter(ch byte) bool {
	return ch >= 0x80 || unicode.IsLetter(rune(ch))
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '\f' || ch == '\v'
}

// Tokenize returns all tokens from the input, ending with EOF.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			break
		}
	}
	return tokens
}
