// Package querysql renders a queryir.Query as SQL text.
package querysql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/clasql/internal/queryir"
)

// Mode selects how the WHERE clause is rendered.
type Mode int

const (
	// ModeReference reproduces historical output byte for byte: the boolean
	// operator is written once, before the predicates, and predicates are
	// joined by a single space. Two predicates render as
	// "WHERE  ANDa = '1' b = '2'".
	ModeReference Mode = iota

	// ModeStandard writes the boolean operator between predicates and
	// escapes single quotes inside values: "WHERE a = '1' AND b = '2'".
	ModeStandard
)

// String returns the configuration name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeReference:
		return "reference"
	case ModeStandard:
		return "standard"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses "reference" or "standard".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "reference", "":
		return ModeReference, nil
	case "standard":
		return ModeStandard, nil
	default:
		return 0, fmt.Errorf("unknown render mode %q (want reference or standard)", s)
	}
}

// Renderer turns queries into SQL text.
type Renderer struct {
	mode Mode
}

// NewRenderer creates a Renderer for mode.
func NewRenderer(mode Mode) *Renderer {
	return &Renderer{mode: mode}
}

// Render renders q in ModeReference.
func Render(q queryir.Query) (string, error) {
	return NewRenderer(ModeReference).Render(q)
}

// Render converts q to SQL text ending in ";".
//
// Clauses appear in the order SELECT, FROM, WHERE, ORDER BY, LIMIT. An empty
// select list renders as "*". Every predicate value is single-quoted,
// numbers included. WHERE, ORDER BY and LIMIT are omitted when empty; a zero
// LIMIT counts as empty.
//
// Render returns a *queryir.InvalidQueryError when q has no FROM table, a
// negative LIMIT or an unsupported operator.
func (r *Renderer) Render(q queryir.Query) (string, error) {
	if err := queryir.CheckStructure(q); err != nil {
		return "", err
	}

	var b strings.Builder

	b.WriteString("SELECT ")
	if q.SelectsAll() {
		b.WriteString("*")
	} else {
		b.WriteString(strings.Join(q.Select, ", "))
	}

	b.WriteString(" FROM ")
	b.WriteString(q.From)

	if !q.Where.IsEmpty() {
		b.WriteString(" WHERE ")
		b.WriteString(r.where(q.Where))
	}

	if len(q.OrderBy) > 0 {
		terms := make([]string, len(q.OrderBy))
		for i, o := range q.OrderBy {
			dir := "ASC"
			if !o.Ascending {
				dir = "DESC"
			}
			terms[i] = o.Column + " " + dir
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(terms, ", "))
	}

	if q.HasLimit() {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(*q.Limit))
	}

	b.WriteString(";")
	return b.String(), nil
}

func (r *Renderer) where(w queryir.Where) string {
	op := string(w.BoolOperator.OrDefault())

	conds := make([]string, len(w.Predicates))
	for i, p := range w.Predicates {
		conds[i] = r.predicate(p)
	}

	if r.mode == ModeStandard {
		return strings.Join(conds, " "+op+" ")
	}
	return " " + op + strings.Join(conds, " ")
}

func (r *Renderer) predicate(p queryir.Predicate) string {
	value := p.Value.String()
	if r.mode == ModeStandard {
		value = strings.ReplaceAll(value, "'", "''")
	}
	return fmt.Sprintf("%s %s '%s'", p.Column, p.Operator, value)
}
