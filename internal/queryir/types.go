package queryir

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Operator is a comparison operator of a Predicate.
type Operator string

const (
	OpEqual        Operator = "="
	OpNotEqual     Operator = "!="
	OpGreater      Operator = ">"
	OpLess         Operator = "<"
	OpGreaterEqual Operator = ">="
	OpLessEqual    Operator = "<="
)

// Valid reports whether o is one of the supported operators.
func (o Operator) Valid() bool {
	switch o {
	case OpEqual, OpNotEqual, OpGreater, OpLess, OpGreaterEqual, OpLessEqual:
		return true
	}
	return false
}

// ParseOperator parses an operator. "<>" is accepted as "!=".
func ParseOperator(s string) (Operator, error) {
	if s == "<>" {
		return OpNotEqual, nil
	}
	op := Operator(s)
	if !op.Valid() {
		return "", fmt.Errorf("unsupported operator %q", s)
	}
	return op, nil
}

// BoolOperator joins the predicates of a Where clause.
// The zero value means AND.
type BoolOperator string

const (
	And BoolOperator = "AND"
	Or  BoolOperator = "OR"
)

// OrDefault returns b, or And when b is unset.
func (b BoolOperator) OrDefault() BoolOperator {
	if b == "" {
		return And
	}
	return b
}

// Valid reports whether b is unset, AND or OR.
func (b BoolOperator) Valid() bool {
	switch b {
	case "", And, Or:
		return true
	}
	return false
}

// Value is a predicate literal.
//
// This is a sealed interface: StringValue, IntValue and FloatValue are the
// only implementations.
type Value interface {
	valueNode()

	// String renders the literal without quotes.
	String() string
}

// StringValue is a text literal.
type StringValue string

func (StringValue) valueNode() {}

func (v StringValue) String() string { return string(v) }

// IntValue is an integer literal.
type IntValue int64

func (IntValue) valueNode() {}

func (v IntValue) String() string { return strconv.FormatInt(int64(v), 10) }

// FloatValue is a floating point literal. Whole numbers render with a
// trailing ".0" so 3.0 and 3 stay distinguishable in SQL text.
type FloatValue float64

func (FloatValue) valueNode() {}

func (v FloatValue) String() string {
	f := float64(v)
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if math.IsInf(f, 0) || math.IsNaN(f) || strings.ContainsAny(s, ".e") {
		return s
	}
	return s + ".0"
}

// ParseValue interprets a literal: integers become IntValue, other numbers
// FloatValue and everything else StringValue.
func ParseValue(s string) Value {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return IntValue(n)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return FloatValue(f)
	}
	return StringValue(s)
}

// Predicate compares a column to a literal.
type Predicate struct {
	Column   string
	Operator Operator
	Value    Value
}

// Where is a flat list of predicates joined by one boolean operator.
type Where struct {
	Predicates   []Predicate
	BoolOperator BoolOperator
}

// IsEmpty reports whether the clause has no predicates.
func (w Where) IsEmpty() bool {
	return len(w.Predicates) == 0
}

// OrderBy is one ORDER BY term.
type OrderBy struct {
	Column    string
	Ascending bool
}

// Query is a single-table SELECT.
//
// An empty Select means every column. From is required by rendering and
// labeling. A nil or zero Limit means no limit.
type Query struct {
	Select  []string
	From    string
	Where   Where
	OrderBy []OrderBy
	Limit   *int
}

// LimitOf returns a pointer to n for Query.Limit.
func LimitOf(n int) *int {
	return &n
}

// HasLimit reports whether the query carries a non-zero limit.
func (q Query) HasLimit() bool {
	return q.Limit != nil && *q.Limit != 0
}

// SelectsAll reports whether the query projects every column.
func (q Query) SelectsAll() bool {
	return len(q.Select) == 0
}
