package queryir

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// clauseKeywords end the SELECT/FROM region of a token stream.
var clauseKeywords = []string{"where", "order", "limit"}

// Decode turns lower-cased query tokens into a Query holding the projected
// columns and the FROM table.
//
// Everything from the first "where", "order" or "limit" on is ignored. In the
// region before it, "select" and "," are skipped and every other token up to
// "from" becomes a column; the token after "from" is the table.
//
// Decode returns a *MalformedQueryError when "from" is missing or is the last
// token of the region.
func Decode(tokens []string) (Query, error) {
	region := tokens[:clauseBoundary(tokens)]

	columns, table, _, err := decodeSelect(tokens, region)
	if err != nil {
		return Query{}, err
	}
	return Query{Select: columns, From: table}, nil
}

// DecodeFull is Decode that also parses the flat WHERE, ORDER BY and LIMIT
// clauses.
//
// A lone "*" projection decodes to select-all. Operators split by the token
// stream ("<" "=") are reassembled. Joins, aliases, subqueries, nested or
// mixed AND/OR predicates, aggregate or DISTINCT projections and unsupported
// operators such as LIKE or IN are rejected with a *MalformedQueryError.
func DecodeFull(tokens []string) (Query, error) {
	boundary := clauseBoundary(tokens)

	columns, table, rest, err := decodeSelect(tokens, tokens[:boundary])
	if err != nil {
		return Query{}, err
	}
	for len(rest) > 0 && rest[len(rest)-1] == ";" {
		rest = rest[:len(rest)-1]
	}
	if len(rest) > 0 {
		return Query{}, malformed(tokens, "unsupported tokens after FROM table: %s", strings.Join(rest, " "))
	}
	if slices.Equal(columns, []string{"*"}) {
		columns = nil
	}
	for _, c := range columns {
		if c == "distinct" || !isWord(c) {
			return Query{}, malformed(tokens, "unsupported projection: %s", strings.Join(columns, " "))
		}
	}
	if !isWord(table) {
		return Query{}, malformed(tokens, "FROM table %q is not an identifier", table)
	}

	q := Query{Select: columns, From: table}
	d := &clauseDecoder{all: tokens, tokens: tokens[boundary:]}
	if err := d.decode(&q); err != nil {
		return Query{}, err
	}
	return q, nil
}

// clauseBoundary returns the index of the earliest clause keyword, or
// len(tokens).
func clauseBoundary(tokens []string) int {
	for i := range tokens {
		if slices.Contains(clauseKeywords, tokens[i]) {
			return i
		}
	}
	return len(tokens)
}

// decodeSelect walks the select region. rest holds the region tokens after
// the table name.
func decodeSelect(all, region []string) (columns []string, table string, rest []string, err error) {
	for i, tok := range region {
		switch tok {
		case "from":
			if i+1 >= len(region) {
				return nil, "", nil, malformed(all, "no table after FROM")
			}
			return columns, region[i+1], region[i+2:], nil
		case "select", ",":
			continue
		default:
			columns = append(columns, tok)
		}
	}
	return nil, "", nil, malformed(all, "missing FROM")
}

func malformed(tokens []string, format string, args ...any) *MalformedQueryError {
	return &MalformedQueryError{
		Tokens: slices.Clone(tokens),
		Reason: fmt.Sprintf(format, args...),
	}
}

// clauseDecoder consumes WHERE, ORDER BY and LIMIT clauses.
type clauseDecoder struct {
	all    []string
	tokens []string
	pos    int
}

func (d *clauseDecoder) peek() string {
	if d.pos < len(d.tokens) {
		return d.tokens[d.pos]
	}
	return ""
}

func (d *clauseDecoder) next() string {
	tok := d.peek()
	if d.pos < len(d.tokens) {
		d.pos++
	}
	return tok
}

func (d *clauseDecoder) atEnd() bool {
	return d.pos >= len(d.tokens) || d.peek() == ";"
}

func (d *clauseDecoder) decode(q *Query) error {
	seen := map[string]bool{}
	for !d.atEnd() {
		kw := d.next()
		if seen[kw] {
			return malformed(d.all, "duplicate %s clause", strings.ToUpper(kw))
		}
		seen[kw] = true

		var err error
		switch kw {
		case "where":
			q.Where, err = d.where()
		case "order":
			q.OrderBy, err = d.orderBy()
		case "limit":
			q.Limit, err = d.limit()
		default:
			err = malformed(d.all, "unsupported clause starting at %q", kw)
		}
		if err != nil {
			return err
		}
	}

	for d.peek() == ";" {
		d.next()
	}
	if d.pos < len(d.tokens) {
		return malformed(d.all, "unexpected tokens after ';'")
	}
	return nil
}

// isClauseEnd reports whether tok ends the current clause.
func isClauseEnd(tok string) bool {
	return tok == "" || tok == ";" || slices.Contains(clauseKeywords, tok)
}

func (d *clauseDecoder) where() (Where, error) {
	var w Where
	for {
		pred, err := d.predicate()
		if err != nil {
			return Where{}, err
		}
		w.Predicates = append(w.Predicates, pred)

		switch tok := d.peek(); tok {
		case "and", "or":
			d.next()
			op := BoolOperator(strings.ToUpper(tok))
			if w.BoolOperator != "" && w.BoolOperator != op {
				return Where{}, malformed(d.all, "mixed AND/OR predicates")
			}
			w.BoolOperator = op
		default:
			if w.BoolOperator == "" {
				w.BoolOperator = And
			}
			return w, nil
		}
	}
}

func (d *clauseDecoder) predicate() (Predicate, error) {
	col := d.next()
	switch {
	case col == "(" || col == ")":
		return Predicate{}, malformed(d.all, "nested predicates are not supported")
	case isClauseEnd(col) || !isWord(col):
		return Predicate{}, malformed(d.all, "expected column in WHERE, got %q", col)
	}

	op, err := d.operator()
	if err != nil {
		return Predicate{}, err
	}

	var words []string
	for {
		tok := d.peek()
		if isClauseEnd(tok) || tok == "and" || tok == "or" {
			break
		}
		if tok == "(" || tok == ")" {
			return Predicate{}, malformed(d.all, "nested predicates are not supported")
		}
		if !isWord(tok) {
			return Predicate{}, malformed(d.all, "unexpected %q in predicate value", tok)
		}
		words = append(words, d.next())
	}
	if len(words) == 0 {
		return Predicate{}, malformed(d.all, "missing value for %s %s", col, op)
	}

	return Predicate{Column: col, Operator: op, Value: ParseValue(strings.Join(words, " "))}, nil
}

// operator reads a comparison operator, joining split forms such as "<" "=".
func (d *clauseDecoder) operator() (Operator, error) {
	first := d.next()
	switch first {
	case "=":
		return OpEqual, nil
	case "!":
		if d.peek() == "=" {
			d.next()
			return OpNotEqual, nil
		}
	case "<", ">":
		switch second := d.peek(); {
		case second == "=":
			d.next()
			return ParseOperator(first + "=")
		case first == "<" && second == ">":
			d.next()
			return OpNotEqual, nil
		}
		return ParseOperator(first)
	case "!=", "<>", ">=", "<=":
		return ParseOperator(first)
	}
	return "", malformed(d.all, "unsupported operator %q", first)
}

func (d *clauseDecoder) orderBy() ([]OrderBy, error) {
	if d.next() != "by" {
		return nil, malformed(d.all, "expected BY after ORDER")
	}

	var terms []OrderBy
	for {
		col := d.next()
		if isClauseEnd(col) || !isWord(col) {
			return nil, malformed(d.all, "expected column in ORDER BY, got %q", col)
		}
		term := OrderBy{Column: col, Ascending: true}
		switch d.peek() {
		case "asc":
			d.next()
		case "desc":
			d.next()
			term.Ascending = false
		}
		terms = append(terms, term)

		if d.peek() != "," {
			return terms, nil
		}
		d.next()
	}
}

func (d *clauseDecoder) limit() (*int, error) {
	tok := d.next()
	n, err := strconv.Atoi(tok)
	if err != nil || n < 0 {
		return nil, malformed(d.all, "LIMIT expects a non-negative integer, got %q", tok)
	}
	return &n, nil
}

// isWord reports whether tok is a \w+ token rather than punctuation.
func isWord(tok string) bool {
	if tok == "" {
		return false
	}
	for _, r := range tok {
		if !(r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r > 0x7f) {
			return false
		}
	}
	return true
}
