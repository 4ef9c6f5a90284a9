package schema

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/clasql/internal/sqllex"
)

// Diagnostic is a non-fatal observation made while parsing, such as a CREATE
// statement that does not define a table.
type Diagnostic struct {
	Pos       sqllex.Position
	Statement string
	Message   string
}

// ParseResult is the outcome of ParseWithDiagnostics.
type ParseResult struct {
	Schema      *Schema
	Diagnostics []Diagnostic
}

// Option configures parsing.
type Option func(*parser)

// WithLogger routes diagnostics to logger as well as returning them.
func WithLogger(logger *slog.Logger) Option {
	return func(p *parser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Parse reads every CREATE TABLE statement in sql and returns the resulting
// schema. Other statements are skipped.
//
// Table and column names are lower-cased and unquoted. Column lists are split
// on top-level commas only, so "a VARCHAR(10), b INT" yields two columns.
// Table-level constraints (PRIMARY KEY, FOREIGN KEY, CONSTRAINT, UNIQUE (...)
// and CHECK (...)) are not columns. A table defined twice keeps its first
// position and its last column list.
//
// Parse returns a *MalformedSchemaError when a CREATE TABLE statement has no
// identifiable name followed by a parenthesized column list.
func Parse(sql string, opts ...Option) (*Schema, error) {
	res, err := ParseWithDiagnostics(sql, opts...)
	if err != nil {
		return nil, err
	}
	return res.Schema, nil
}

// ParseWithDiagnostics is Parse that also returns the diagnostics collected
// along the way.
func ParseWithDiagnostics(sql string, opts ...Option) (*ParseResult, error) {
	p := &parser{
		src:    sql,
		schema: New(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}

	for _, stmt := range sqllex.SplitStatements(sql) {
		if err := p.statement(stmt); err != nil {
			return nil, err
		}
	}

	return &ParseResult{Schema: p.schema, Diagnostics: p.diagnostics}, nil
}

type parser struct {
	src         string
	schema      *Schema
	diagnostics []Diagnostic
	logger      *slog.Logger
}

func (p *parser) warn(stmt sqllex.Statement, format string, args ...any) {
	d := Diagnostic{Pos: stmt.Pos, Statement: stmt.Text, Message: fmt.Sprintf(format, args...)}
	p.diagnostics = append(p.diagnostics, d)
	p.logger.Warn(d.Message, "line", d.Pos.Line, "column", d.Pos.Column)
}

func (p *parser) malformed(stmt sqllex.Statement, reason string, err error) error {
	return &MalformedSchemaError{
		Statement: stmt.Text,
		Reason:    reason,
		Pos:       stmt.Pos,
		Err:       err,
	}
}

// statement handles one statement. Non-CREATE statements are ignored.
func (p *parser) statement(stmt sqllex.Statement) error {
	if stmt.Keyword() != "create" {
		p.logger.Debug("skipping statement", "keyword", stmt.Keyword(), "line", stmt.Pos.Line)
		return nil
	}

	kind := createKind(stmt.Tokens[1:])
	switch kind {
	case "table":
	case "virtual table":
		p.warn(stmt, "skipping CREATE VIRTUAL TABLE statement")
		return nil
	default:
		if kind == "" {
			kind = "unknown"
		}
		p.warn(stmt, "skipping non-table CREATE statement (%s)", kind)
		return nil
	}

	nodes, err := sqllex.Group(stmt.Tokens)
	if err != nil {
		return p.malformed(stmt, "unbalanced parentheses", err)
	}

	name, body, err := p.tableParts(stmt, nodes)
	if err != nil {
		return err
	}

	var cols []string
	for _, attr := range sqllex.SplitTopLevel(body.Children) {
		col, ok := p.columnName(stmt, attr)
		if ok {
			cols = append(cols, col)
		}
	}

	p.schema.Set(name, cols)
	return nil
}

// createKind names what a CREATE statement creates, skipping the TEMP,
// TEMPORARY and UNIQUE modifiers.
func createKind(tokens []sqllex.Token) string {
	for i, tok := range tokens {
		switch {
		case tok.Is("temp"), tok.Is("temporary"), tok.Is("unique"):
			continue
		case tok.Is("virtual"):
			if i+1 < len(tokens) && tokens[i+1].Is("table") {
				return "virtual table"
			}
			return "virtual"
		case tok.Type == sqllex.IDENT:
			return strings.ToLower(tok.Literal)
		default:
			return ""
		}
	}
	return ""
}

// tableParts finds the table name: the identifier immediately before the
// first top-level parenthesized group. SQLite also accepts a string literal
// there.
func (p *parser) tableParts(stmt sqllex.Statement, nodes []sqllex.Node) (string, sqllex.Paren, error) {
	for i, n := range nodes {
		switch n := n.(type) {
		case sqllex.Leaf:
			if n.Token.Is("as") {
				return "", sqllex.Paren{}, p.malformed(stmt, "CREATE TABLE ... AS SELECT has no column list", nil)
			}
		case sqllex.Paren:
			if i == 0 {
				return "", sqllex.Paren{}, p.malformed(stmt, "missing table name before column list", nil)
			}
			prev, ok := nodes[i-1].(sqllex.Leaf)
			if !ok || !isName(prev.Token) || prev.Token.Is("table") || prev.Token.Is("exists") {
				return "", sqllex.Paren{}, p.malformed(stmt, "missing table name before column list", nil)
			}
			return normalizeName(prev.Token), n, nil
		}
	}
	return "", sqllex.Paren{}, p.malformed(stmt, "missing parenthesized column list", nil)
}

// columnName extracts the column defined by one comma-separated attribute.
// The second result is false for blanks and table-level constraints.
func (p *parser) columnName(stmt sqllex.Statement, attr []sqllex.Node) (string, bool) {
	if len(attr) == 0 {
		return "", false
	}

	first, ok := attr[0].(sqllex.Leaf)
	if !ok {
		p.warn(stmt, "skipping column definition that starts with '('")
		return "", false
	}
	if isConstraint(attr) {
		return "", false
	}

	if first.Token.Type == sqllex.QUOTED_IDENT || first.Token.Type == sqllex.STRING {
		return strings.ToLower(first.Token.Literal), true
	}

	text := sqllex.Text(p.src, attr)
	word := strings.Fields(text)[0]
	return strings.ToLower(strings.Trim(word, "\"`")), true
}

// isConstraint reports whether attr declares a table-level constraint.
func isConstraint(attr []sqllex.Node) bool {
	tok := func(i int) sqllex.Token {
		if i < len(attr) {
			if leaf, ok := attr[i].(sqllex.Leaf); ok {
				return leaf.Token
			}
		}
		return sqllex.Token{}
	}
	isParen := func(i int) bool {
		if i < len(attr) {
			_, ok := attr[i].(sqllex.Paren)
			return ok
		}
		return false
	}

	switch first := tok(0); {
	case first.Is("primary"), first.Is("foreign"):
		return tok(1).Is("key")
	case first.Is("constraint"):
		return true
	case first.Is("unique"), first.Is("check"):
		return isParen(1)
	}
	return false
}

// normalizeName lower-cases an identifier. Quoted identifiers arrive
// unquoted from the lexer.
func isName(tok sqllex.Token) bool {
	return tok.IsIdent() || tok.Type == sqllex.STRING
}

func normalizeName(tok sqllex.Token) string {
	return strings.ToLower(strings.Trim(tok.Literal, "\"`"))
}
