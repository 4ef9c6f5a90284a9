package eval

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/clasql/internal/testutil"
)

func TestLoadCases(t *testing.T) {
	cf, err := LoadCases("testdata/concert_singer_cases.yaml")
	require.NoError(t, err)

	assert.Equal(t, "concert_singer", cf.Name)
	assert.Equal(t, filepath.Join("testdata", "concert_singer.sql"), cf.SchemaFile)
	assert.Len(t, cf.Cases, 9)
	assert.True(t, cf.Cases[3].Full)
}

func TestRunCases_Fixture(t *testing.T) {
	cf, err := LoadCases("testdata/concert_singer_cases.yaml")
	require.NoError(t, err)

	report, err := RunCases(context.Background(), cf)
	require.NoError(t, err)

	for _, r := range report.Results {
		assert.True(t, r.Pass, "%s: %v", r.Name, r.Errors)
	}
	assert.True(t, report.Pass())
	assert.Equal(t, 9, report.Passed)
}

func TestRunCases_ReportsMismatches(t *testing.T) {
	cf := &CaseFile{
		Name:   "inline",
		Schema: "CREATE TABLE t (a INT, b INT);",
		Cases: []Case{
			{Name: "wrong_select", SQL: "SELECT a FROM t", Expect: Expectation{Select: []string{"b"}}},
			{Name: "wrong_label", SQL: "SELECT a FROM t", Expect: Expectation{Label: []int{1, 0, 1}}},
			{Name: "wrong_render", SQL: "SELECT a FROM t", Expect: Expectation{Render: "SELECT a FROM t"}},
			{Name: "expected_error", SQL: "SELECT a FROM t", Expect: Expectation{Error: ErrorUnknownTable}},
			{Name: "unexpected_error", SQL: "SELECT a", Expect: Expectation{From: "t"}},
			{Name: "ok", SQL: "SELECT b FROM t", Expect: Expectation{Label: []int{1, 0, 1}}},
		},
	}

	report, err := RunCases(context.Background(), cf)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Passed)
	assert.Equal(t, 5, report.Failed)
	assert.False(t, report.Pass())

	byName := map[string]CaseResult{}
	for _, r := range report.Results {
		byName[r.Name] = r
	}
	assert.Equal(t, []string{`select: want [b], got [a]`}, byName["wrong_select"].Errors)
	assert.Equal(t, []string{`label: want [1 0 1], got [1 1 0]`}, byName["wrong_label"].Errors)
	assert.Equal(t, []string{`render: want "SELECT a FROM t", got "SELECT a FROM t;"`}, byName["wrong_render"].Errors)
	assert.Equal(t, []string{`error: want unknown_table, got no error`}, byName["expected_error"].Errors)
	assert.Contains(t, byName["unexpected_error"].Errors[0], "unexpected error: malformed query: missing FROM")
}

func TestRunCases_BadSchema(t *testing.T) {
	cf := &CaseFile{Name: "broken", Schema: "CREATE TABLE (a INT);", Cases: []Case{{Name: "x", SQL: "SELECT a FROM t"}}}
	_, err := RunCases(context.Background(), cf)
	assert.ErrorContains(t, err, "load schema for broken")
}

func TestLoadCases_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "unknown field",
			content: "name: x\nschema: \"CREATE TABLE t (a INT);\"\ncases:\n  - name: a\n    sql: SELECT a FROM t\n    expect: {from: t}\n    expected: {}\n",
			wantErr: "failed to parse YAML",
		},
		{
			name:    "missing name",
			content: "schema: \"CREATE TABLE t (a INT);\"\ncases:\n  - name: a\n    sql: SELECT a FROM t\n    expect: {from: t}\n",
			wantErr: "name is required",
		},
		{
			name:    "no schema",
			content: "name: x\ncases:\n  - name: a\n    sql: SELECT a FROM t\n    expect: {from: t}\n",
			wantErr: "exactly one of schema and schema_file",
		},
		{
			name:    "missing schema file",
			content: "name: x\nschema_file: nope.sql\ncases:\n  - name: a\n    sql: SELECT a FROM t\n    expect: {from: t}\n",
			wantErr: "schema file not found",
		},
		{
			name:    "no cases",
			content: "name: x\nschema: \"CREATE TABLE t (a INT);\"\n",
			wantErr: "cases list is required",
		},
		{
			name:    "sql and tokens",
			content: "name: x\nschema: \"CREATE TABLE t (a INT);\"\ncases:\n  - name: a\n    sql: SELECT a FROM t\n    tokens: [select]\n    expect: {from: t}\n",
			wantErr: "exactly one of sql and tokens",
		},
		{
			name:    "empty expect",
			content: "name: x\nschema: \"CREATE TABLE t (a INT);\"\ncases:\n  - name: a\n    sql: SELECT a FROM t\n    expect: {}\n",
			wantErr: "expect must check something",
		},
		{
			name:    "duplicate case",
			content: "name: x\nschema: \"CREATE TABLE t (a INT);\"\ncases:\n  - name: a\n    sql: SELECT a FROM t\n    expect: {from: t}\n  - name: a\n    sql: SELECT a FROM t\n    expect: {from: t}\n",
			wantErr: "duplicate name",
		},
		{
			name:    "unknown error kind",
			content: "name: x\nschema: \"CREATE TABLE t (a INT);\"\ncases:\n  - name: a\n    sql: SELECT a FROM t\n    expect: {error: boom}\n",
			wantErr: "unknown error kind",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := testutil.WriteFile(t, t.TempDir(), "cases.yaml", tt.content)
			_, err := LoadCases(path)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}

	_, err := LoadCases(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read case file")
}
