package eval

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/clasql/internal/dataset"
	"github.com/roach88/clasql/internal/queryir"
	"github.com/roach88/clasql/internal/querysql"
	"github.com/roach88/clasql/internal/schema"
)

// CaseFile is a set of conformance cases over one schema.
type CaseFile struct {
	// Name identifies the case file in reports.
	Name string `yaml:"name"`

	// Description explains what the cases pin down.
	Description string `yaml:"description"`

	// Schema is inline DDL. Exactly one of Schema and SchemaFile is set.
	Schema string `yaml:"schema,omitempty"`

	// SchemaFile is a .sql or .sqlite file, relative to the case file.
	SchemaFile string `yaml:"schema_file,omitempty"`

	Cases []Case `yaml:"cases"`
}

// Case is one query and what decoding, labeling and rendering it must yield.
type Case struct {
	Name string `yaml:"name"`

	// SQL is tokenized like dataset queries. Exactly one of SQL and Tokens
	// is set.
	SQL    string   `yaml:"sql,omitempty"`
	Tokens []string `yaml:"tokens,omitempty"`

	// Full selects DecodeFull instead of Decode.
	Full bool `yaml:"full,omitempty"`

	Expect Expectation `yaml:"expect"`
}

// Expectation lists the checked outcomes. Unset fields are not checked.
type Expectation struct {
	Select         []string `yaml:"select,omitempty"`
	SelectAll      bool     `yaml:"select_all,omitempty"`
	From           string   `yaml:"from,omitempty"`
	Label          []int    `yaml:"label,omitempty"`
	Render         string   `yaml:"render,omitempty"`
	RenderStandard string   `yaml:"render_standard,omitempty"`

	// Error is the expected error kind: malformed_query, invalid_query or
	// unknown_table. When set, the other fields are not checked.
	Error string `yaml:"error,omitempty"`
}

func (e Expectation) isEmpty() bool {
	return len(e.Select) == 0 && !e.SelectAll && e.From == "" && len(e.Label) == 0 &&
		e.Render == "" && e.RenderStandard == "" && e.Error == ""
}

// Error kinds a case may expect.
const (
	ErrorMalformedQuery = "malformed_query"
	ErrorInvalidQuery   = "invalid_query"
	ErrorUnknownTable   = "unknown_table"
)

// LoadCases reads and validates a case file. Unknown fields are rejected and
// SchemaFile is resolved relative to the case file.
func LoadCases(path string) (*CaseFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read case file: %w", err)
	}

	var cf CaseFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cf); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cf.SchemaFile != "" && !filepath.IsAbs(cf.SchemaFile) {
		cf.SchemaFile = filepath.Join(filepath.Dir(path), cf.SchemaFile)
	}

	if err := validateCaseFile(&cf); err != nil {
		return nil, fmt.Errorf("invalid case file: %w", err)
	}
	return &cf, nil
}

func validateCaseFile(cf *CaseFile) error {
	if cf.Name == "" {
		return fmt.Errorf("name is required")
	}
	if (cf.Schema == "") == (cf.SchemaFile == "") {
		return fmt.Errorf("exactly one of schema and schema_file is required")
	}
	if cf.SchemaFile != "" {
		if _, err := os.Stat(cf.SchemaFile); os.IsNotExist(err) {
			return fmt.Errorf("schema file not found: %s", cf.SchemaFile)
		}
	}
	if len(cf.Cases) == 0 {
		return fmt.Errorf("cases list is required and must be non-empty")
	}

	seen := make(map[string]bool, len(cf.Cases))
	for i, c := range cf.Cases {
		if c.Name == "" {
			return fmt.Errorf("cases[%d]: name is required", i)
		}
		if seen[c.Name] {
			return fmt.Errorf("cases[%d]: duplicate name %q", i, c.Name)
		}
		seen[c.Name] = true
		if (c.SQL == "") == (len(c.Tokens) == 0) {
			return fmt.Errorf("cases[%d]: exactly one of sql and tokens is required", i)
		}
		if c.Expect.isEmpty() {
			return fmt.Errorf("cases[%d]: expect must check something", i)
		}
		switch c.Expect.Error {
		case "", ErrorMalformedQuery, ErrorInvalidQuery, ErrorUnknownTable:
		default:
			return fmt.Errorf("cases[%d]: unknown error kind %q", i, c.Expect.Error)
		}
	}
	return nil
}

// CaseResult is the outcome of one case.
type CaseResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// AddError records a mismatch and marks the case failed.
func (r *CaseResult) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}

// CaseReport is the outcome of a case file.
type CaseReport struct {
	Name    string       `json:"name"`
	Passed  int          `json:"passed"`
	Failed  int          `json:"failed"`
	Results []CaseResult `json:"results"`
}

// Pass reports whether every case passed.
func (r *CaseReport) Pass() bool {
	return r.Failed == 0
}

// RunCases runs every case of cf. It returns an error only when the schema
// cannot be loaded; case mismatches are reported in the CaseReport.
func RunCases(ctx context.Context, cf *CaseFile) (*CaseReport, error) {
	s, err := caseSchema(ctx, cf)
	if err != nil {
		return nil, fmt.Errorf("load schema for %s: %w", cf.Name, err)
	}

	report := &CaseReport{Name: cf.Name}
	for _, c := range cf.Cases {
		res := runCase(c, s)
		if res.Pass {
			report.Passed++
		} else {
			report.Failed++
		}
		report.Results = append(report.Results, res)
	}
	return report, nil
}

func caseSchema(ctx context.Context, cf *CaseFile) (*schema.Schema, error) {
	if cf.SchemaFile != "" {
		return schema.LoadFile(ctx, cf.SchemaFile)
	}
	return schema.Parse(cf.Schema)
}

func runCase(c Case, s *schema.Schema) CaseResult {
	res := CaseResult{Name: c.Name, Pass: true}
	want := c.Expect

	tokens := c.Tokens
	if c.SQL != "" {
		tokens = dataset.TokenizeQuery(c.SQL)
	}
	decode := queryir.Decode
	if c.Full {
		decode = queryir.DecodeFull
	}

	q, label, rendered, standard, err := pipeline(decode, tokens, s)
	if want.Error != "" {
		if got := errorKind(err); got != want.Error {
			res.AddError("error: want %s, got %s", want.Error, describeError(err))
		}
		return res
	}
	if err != nil {
		res.AddError("unexpected error: %v", err)
		return res
	}

	if len(want.Select) > 0 && !slices.Equal(q.Select, want.Select) {
		res.AddError("select: want %v, got %v", want.Select, q.Select)
	}
	if want.SelectAll && !q.SelectsAll() {
		res.AddError("select_all: want select-all, got %v", q.Select)
	}
	if want.From != "" && q.From != want.From {
		res.AddError("from: want %q, got %q", want.From, q.From)
	}
	if len(want.Label) > 0 && !slices.Equal(label.Vector(), want.Label) {
		res.AddError("label: want %v, got %v", want.Label, label.Vector())
	}
	if want.Render != "" && rendered != want.Render {
		res.AddError("render: want %q, got %q", want.Render, rendered)
	}
	if want.RenderStandard != "" && standard != want.RenderStandard {
		res.AddError("render_standard: want %q, got %q", want.RenderStandard, standard)
	}
	return res
}

func pipeline(decode Decoder, tokens []string, s *schema.Schema) (q queryir.Query, label queryir.Label, rendered, standard string, err error) {
	if q, err = decode(tokens); err != nil {
		return
	}
	if rendered, err = querysql.NewRenderer(querysql.ModeReference).Render(q); err != nil {
		return
	}
	if standard, err = querysql.NewRenderer(querysql.ModeStandard).Render(q); err != nil {
		return
	}
	label, err = queryir.ToLabel(q, s)
	return
}

func errorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case queryir.IsMalformedQueryError(err):
		return ErrorMalformedQuery
	case queryir.IsInvalidQueryError(err):
		return ErrorInvalidQuery
	case queryir.IsUnknownTableError(err):
		return ErrorUnknownTable
	default:
		return "other"
	}
}

func describeError(err error) string {
	if err == nil {
		return "no error"
	}
	return fmt.Sprintf("%s (%v)", errorKind(err), err)
}
