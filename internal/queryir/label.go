package queryir

import (
	"fmt"
	"slices"

	"github.com/roach88/clasql/internal/schema"
)

// Label encodes which table and which columns a query touches, relative to
// a schema.
//
// TableBits is one-hot over the schema's table order. ColumnBits has one
// slot per column of the widest table; slots past the chosen table's column
// count stay zero.
type Label struct {
	TableBits  []int
	ColumnBits []int
}

// NewLabel returns an all-zero label shaped for s.
func NewLabel(s *schema.Schema) Label {
	return Label{
		TableBits:  make([]int, s.Len()),
		ColumnBits: make([]int, s.MaxColumns()),
	}
}

// Vector returns the table bits followed by the column bits.
func (l Label) Vector() []int {
	return slices.Concat(l.TableBits, l.ColumnBits)
}

// Len returns the vector length.
func (l Label) Len() int {
	return len(l.TableBits) + len(l.ColumnBits)
}

// Table returns the index of the first set table bit, or -1.
func (l Label) Table() int {
	return slices.Index(l.TableBits, 1)
}

// Columns returns the indices of the set column bits.
func (l Label) Columns() []int {
	var idx []int
	for i, b := range l.ColumnBits {
		if b != 0 {
			idx = append(idx, i)
		}
	}
	return idx
}

// ToLabel projects q onto s.
//
// The table bit at the position of q.From is set. With an empty select every
// column of that table is set; otherwise the first occurrence of each
// selected column is set and unknown columns are ignored.
//
// ToLabel returns an *InvalidQueryError when q has no FROM table and an
// *UnknownTableError when s does not define it.
func ToLabel(q Query, s *schema.Schema) (Label, error) {
	if q.From == "" {
		return Label{}, &InvalidQueryError{Reason: "FROM table is not specified"}
	}
	tableIdx := s.Index(q.From)
	if tableIdx < 0 {
		return Label{}, &UnknownTableError{Table: q.From, Available: s.Tables()}
	}

	label := NewLabel(s)
	label.TableBits[tableIdx] = 1

	cols, _ := s.Columns(q.From)
	if q.SelectsAll() {
		for i := range cols {
			label.ColumnBits[i] = 1
		}
		return label, nil
	}

	for _, col := range q.Select {
		if i := slices.Index(cols, col); i >= 0 {
			label.ColumnBits[i] = 1
		}
	}
	return label, nil
}

// Match compares a predicted label with a gold label.
type Match struct {
	// Correct is the number of positions where both vectors agree.
	Correct int

	// Total is the vector length.
	Total int

	// TableMatch is true when the table bits agree.
	TableMatch bool

	// Exact is true when every position agrees.
	Exact bool
}

// Accuracy is the fraction of agreeing positions.
func (m Match) Accuracy() float64 {
	if m.Total == 0 {
		return 0
	}
	return float64(m.Correct) / float64(m.Total)
}

// Compare scores pred against gold elementwise. Both labels must have the
// same shape.
func Compare(gold, pred Label) (Match, error) {
	if len(gold.TableBits) != len(pred.TableBits) || len(gold.ColumnBits) != len(pred.ColumnBits) {
		return Match{}, fmt.Errorf("label shape mismatch: gold %d+%d, prediction %d+%d",
			len(gold.TableBits), len(gold.ColumnBits), len(pred.TableBits), len(pred.ColumnBits))
	}
	if gold.Len() == 0 {
		return Match{}, fmt.Errorf("cannot compare empty labels")
	}

	g, p := gold.Vector(), pred.Vector()
	m := Match{Total: len(g)}
	for i := range g {
		if g[i] == p[i] {
			m.Correct++
		}
	}
	m.TableMatch = slices.Equal(gold.TableBits, pred.TableBits)
	m.Exact = m.Correct == m.Total
	return m, nil
}
