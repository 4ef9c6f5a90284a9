package queryir

import (
	"fmt"
	"slices"

	"github.com/roach88/clasql/internal/schema"
)

// ValidationResult lists problems that do not stop labeling or rendering but
// mean the query does not describe the schema faithfully.
type ValidationResult struct {
	// Warnings is empty for a query that only references known columns.
	Warnings []string
}

// OK reports whether there are no warnings.
func (r ValidationResult) OK() bool {
	return len(r.Warnings) == 0
}

// Validate checks q against s.
//
// Structural problems (missing or unknown FROM table, unsupported operators,
// negative LIMIT) are errors. References to columns the table does not
// define are warnings, since labeling ignores them.
//
// Validate is a pure function with no side effects.
func Validate(q Query, s *schema.Schema) (ValidationResult, error) {
	if err := CheckStructure(q); err != nil {
		return ValidationResult{}, err
	}
	cols, ok := s.Columns(q.From)
	if !ok {
		return ValidationResult{}, &UnknownTableError{Table: q.From, Available: s.Tables()}
	}

	v := &validator{table: q.From, columns: cols, warnings: []string{}}
	for _, col := range q.Select {
		if col == "*" {
			v.addWarning("'*' in select list is not a column; an empty select means all columns")
			continue
		}
		v.checkColumn("select", col)
	}
	for _, p := range q.Where.Predicates {
		v.checkColumn("where", p.Column)
	}
	for _, o := range q.OrderBy {
		v.checkColumn("order by", o.Column)
	}

	return ValidationResult{Warnings: v.warnings}, nil
}

// CheckStructure reports an *InvalidQueryError for a query that cannot be
// rendered: no FROM table, an unknown operator, a predicate without a value
// or a negative LIMIT.
func CheckStructure(q Query) error {
	if q.From == "" {
		return &InvalidQueryError{Reason: "FROM table is not specified"}
	}
	if !q.Where.BoolOperator.Valid() {
		return &InvalidQueryError{Reason: fmt.Sprintf("unsupported boolean operator %q", q.Where.BoolOperator)}
	}
	for i, p := range q.Where.Predicates {
		if !p.Operator.Valid() {
			return &InvalidQueryError{Reason: fmt.Sprintf("predicate %d: unsupported operator %q", i, p.Operator)}
		}
		if p.Value == nil {
			return &InvalidQueryError{Reason: fmt.Sprintf("predicate %d: missing value", i)}
		}
	}
	if q.Limit != nil && *q.Limit < 0 {
		return &InvalidQueryError{Reason: fmt.Sprintf("negative LIMIT %d", *q.Limit)}
	}
	return nil
}

// validator accumulates warnings during traversal.
type validator struct {
	table    string
	columns  []string
	warnings []string
}

// addWarning appends a warning message.
func (v *validator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validator) checkColumn(clause, col string) {
	if !slices.Contains(v.columns, col) {
		v.addWarning("%s: column %q is not defined by table %q", clause, col, v.table)
	}
}
