// Package schema turns SQL DDL into an ordered table to columns mapping.
//
// A Schema keeps tables in first-definition order because that order decides
// the table positions of a label vector. Column order within a table is the
// order of the DDL, and duplicate column names are kept as written.
package schema

import (
	"slices"
	"strings"

	"github.com/roach88/clasql/internal/canonical"
)

// Schema is an ordered mapping from table name to column names.
//
// The zero value is an empty schema ready to use. A Schema is not safe for
// concurrent mutation; once built it is treated as read-only and may be
// shared freely.
type Schema struct {
	tables  []string
	columns map[string][]string
}

// New returns an empty schema.
func New() *Schema {
	return &Schema{columns: make(map[string][]string)}
}

// Set stores cols under table. Redefining a table replaces its columns but
// keeps the position of the first definition.
func (s *Schema) Set(table string, cols []string) {
	if s.columns == nil {
		s.columns = make(map[string][]string)
	}
	if _, ok := s.columns[table]; !ok {
		s.tables = append(s.tables, table)
	}
	s.columns[table] = slices.Clone(cols)
}

// Tables returns table names in schema order.
func (s *Schema) Tables() []string {
	if s == nil {
		return nil
	}
	return slices.Clone(s.tables)
}

// Columns returns the columns of table and whether the table exists.
func (s *Schema) Columns(table string) ([]string, bool) {
	if s == nil {
		return nil, false
	}
	cols, ok := s.columns[table]
	return slices.Clone(cols), ok
}

// Index returns the position of table, or -1 if it is absent.
func (s *Schema) Index(table string) int {
	if s == nil {
		return -1
	}
	return slices.Index(s.tables, table)
}

// Has reports whether table is defined.
func (s *Schema) Has(table string) bool {
	if s == nil {
		return false
	}
	_, ok := s.columns[table]
	return ok
}

// Len returns the number of tables.
func (s *Schema) Len() int {
	if s == nil {
		return 0
	}
	return len(s.tables)
}

// MaxColumns returns the column count of the widest table.
func (s *Schema) MaxColumns() int {
	if s == nil {
		return 0
	}
	widest := 0
	for _, cols := range s.columns {
		widest = max(widest, len(cols))
	}
	return widest
}

// LabelWidth is the length of a label vector computed against s.
func (s *Schema) LabelWidth() int {
	return s.Len() + s.MaxColumns()
}

// Equal reports whether both schemas hold the same tables, in the same order,
// with the same columns.
func (s *Schema) Equal(other *Schema) bool {
	if s.Len() != other.Len() {
		return false
	}
	for i, name := range s.tables {
		if other.tables[i] != name {
			return false
		}
		if !slices.Equal(s.columns[name], other.columns[name]) {
			return false
		}
	}
	return true
}

// Text renders the schema as "t1(a, b); t2(c);", the form fed to the text
// encoder. An empty schema renders as ";".
func Text(s *Schema) string {
	parts := make([]string, 0, s.Len())
	for _, name := range s.Tables() {
		cols, _ := s.Columns(name)
		parts = append(parts, name+"("+strings.Join(cols, ", ")+")")
	}
	return strings.Join(parts, "; ") + ";"
}

// Fingerprint returns a content hash of the schema that depends on table
// order, column order and names.
func Fingerprint(s *Schema) (string, error) {
	entries := make([]any, 0, s.Len())
	for _, name := range s.Tables() {
		cols, _ := s.Columns(name)
		if cols == nil {
			cols = []string{}
		}
		entries = append(entries, []any{name, cols})
	}
	return canonical.Hash(canonical.DomainSchema, entries)
}
