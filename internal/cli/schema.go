package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/roach88/clasql/internal/schema"
)

// SchemaTable is one table of a parsed schema.
type SchemaTable struct {
	Index   int      `json:"index"`
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
}

// SchemaDiagnostic is a non-fatal parse observation.
type SchemaDiagnostic struct {
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Message string `json:"message"`
}

// SchemaOutput is the result of the schema command.
type SchemaOutput struct {
	Path        string             `json:"path"`
	Tables      []SchemaTable      `json:"tables"`
	LabelWidth  int                `json:"label_width"`
	Text        string             `json:"text"`
	Fingerprint string             `json:"fingerprint"`
	Diagnostics []SchemaDiagnostic `json:"diagnostics,omitempty"`
}

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema <file.sql|file.sqlite>",
		Short: "Parse a schema and print its table mapping",
		Long: `Parse CREATE TABLE statements from a DDL file, or introspect a SQLite
database, and print the table-to-columns mapping in label order.

Non-table CREATE statements are reported as diagnostics.

Examples:
  clasql schema data/spider_data/database/concert_singer/schema.sql
  clasql schema concert_singer.sqlite --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchema(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runSchema(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	logger := newLogger(opts, cmd.ErrOrStderr())

	if _, err := os.Stat(path); err != nil {
		return NewExitError(ExitCommandError, fmt.Sprintf("schema file not found: %s", path))
	}

	var (
		s     *schema.Schema
		diags []schema.Diagnostic
	)
	if strings.EqualFold(filepath.Ext(path), ".sql") {
		data, err := os.ReadFile(path)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read schema", err)
		}
		res, err := schema.ParseWithDiagnostics(string(data), schema.WithLogger(logger))
		if err != nil {
			return f.Fail(ExitCommandError, CodeSchema, "failed to parse schema", err)
		}
		s, diags = res.Schema, res.Diagnostics
	} else {
		var err error
		s, err = schema.LoadFile(cmd.Context(), path, schema.WithLogger(logger))
		if err != nil {
			return f.Fail(ExitCommandError, CodeSchema, "failed to load schema", err)
		}
	}

	fp, err := schema.Fingerprint(s)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to fingerprint schema", err)
	}

	out := SchemaOutput{
		Path:        path,
		Tables:      make([]SchemaTable, 0, s.Len()),
		LabelWidth:  s.LabelWidth(),
		Text:        schema.Text(s),
		Fingerprint: fp,
	}
	for i, name := range s.Tables() {
		cols, _ := s.Columns(name)
		if cols == nil {
			cols = []string{}
		}
		out.Tables = append(out.Tables, SchemaTable{Index: i, Name: name, Columns: cols})
	}
	for _, d := range diags {
		out.Diagnostics = append(out.Diagnostics, SchemaDiagnostic{
			Line: d.Pos.Line, Column: d.Pos.Column, Message: d.Message,
		})
	}

	return f.Emit(out, func(w io.Writer) error {
		return writeSchemaText(w, out)
	})
}

func writeSchemaText(w io.Writer, out SchemaOutput) error {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Table", "Columns"})
	for _, tbl := range out.Tables {
		t.AppendRow(table.Row{tbl.Index, tbl.Name, strings.Join(tbl.Columns, ", ")})
	}
	t.Render()

	fmt.Fprintf(w, "Label width: %d\n", out.LabelWidth)
	fmt.Fprintf(w, "Text: %s\n", out.Text)
	fmt.Fprintf(w, "Fingerprint: %s\n", out.Fingerprint)
	for _, d := range out.Diagnostics {
		fmt.Fprintf(w, "warning %d:%d: %s\n", d.Line, d.Column, d.Message)
	}
	return nil
}
