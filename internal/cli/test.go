package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/clasql/internal/eval"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Filter string // case name filter (glob pattern)
}

// FileResult holds the result of one case file.
type FileResult struct {
	Path    string            `json:"path"`
	Name    string            `json:"name"`
	Pass    bool              `json:"pass"`
	Error   string            `json:"error,omitempty"`
	Results []eval.CaseResult `json:"results,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Files  []FileResult `json:"files"`
	Passed int          `json:"passed"`
	Failed int          `json:"failed"`
	Total  int          `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <cases.yaml|dir>...",
		Short: "Run conformance cases",
		Long: `Run YAML conformance cases that decode, label and render queries against
a schema and compare the outcome with the expectations in the file.

Directories are searched for .yaml and .yml files.

Exit codes:
  0 - All cases passed
  1 - One or more cases failed
  2 - Command error (invalid paths, malformed case files, etc.)

Examples:
  clasql test testdata/concert_singer_cases.yaml
  clasql test ./cases --filter "full_*"
  clasql test ./cases --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter cases by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, paths []string, cmd *cobra.Command) error {
	if _, err := filepath.Match(opts.Filter, ""); err != nil {
		return WrapExitError(ExitCommandError, "invalid filter pattern", err)
	}

	var files []string
	for _, p := range paths {
		found, err := findCaseFiles(p)
		if err != nil {
			return err
		}
		files = append(files, found...)
	}

	if len(files) == 0 {
		if opts.Format == "json" {
			return outputTestJSON(cmd, TestResult{Files: []FileResult{}})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No case files found.")
		return nil
	}

	result := TestResult{Files: make([]FileResult, 0, len(files))}
	loadFailed := false
	for _, path := range files {
		fr := runCaseFile(opts, path, cmd)
		if fr.Error != "" {
			loadFailed = true
		}
		for _, r := range fr.Results {
			result.Total++
			if r.Pass {
				result.Passed++
			} else {
				result.Failed++
			}
		}
		result.Files = append(result.Files, fr)
	}

	var err error
	if opts.Format == "json" {
		err = outputTestJSON(cmd, result)
	} else {
		err = outputTestText(cmd, result)
	}
	if err != nil {
		return err
	}
	if loadFailed {
		return NewExitError(ExitCommandError, "one or more case files could not be loaded")
	}
	return nil
}

// findCaseFiles returns path itself when it is a file, or every YAML file
// under it when it is a directory.
func findCaseFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("case path not found: %s", path))
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ext := filepath.Ext(p); ext == ".yaml" || ext == ".yml" {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to find case files", err)
	}
	return files, nil
}

// runCaseFile loads and runs one case file, printing per-case lines in text
// mode.
func runCaseFile(opts *TestOptions, path string, cmd *cobra.Command) FileResult {
	w := cmd.OutOrStdout()
	text := opts.Format != "json"
	fr := FileResult{Path: path, Name: filepath.Base(path)}

	cf, err := eval.LoadCases(path)
	if err != nil {
		fr.Error = err.Error()
		if text {
			fmt.Fprintf(w, "✗ %s\n  Load error: %v\n", fr.Name, err)
		}
		return fr
	}
	fr.Name = cf.Name

	if opts.Filter != "" {
		kept := cf.Cases[:0]
		for _, c := range cf.Cases {
			if ok, _ := filepath.Match(opts.Filter, c.Name); ok {
				kept = append(kept, c)
			}
		}
		cf.Cases = kept
	}

	report, err := eval.RunCases(cmd.Context(), cf)
	if err != nil {
		fr.Error = err.Error()
		if text {
			fmt.Fprintf(w, "✗ %s\n  Execution error: %v\n", fr.Name, err)
		}
		return fr
	}

	fr.Pass = report.Pass()
	fr.Results = report.Results
	if text {
		for _, r := range report.Results {
			if r.Pass {
				fmt.Fprintf(w, "✓ %s/%s\n", cf.Name, r.Name)
				continue
			}
			fmt.Fprintf(w, "✗ %s/%s\n", cf.Name, r.Name)
			for _, e := range r.Errors {
				fmt.Fprintf(w, "  %s\n", e)
			}
		}
	}
	return fr
}

// outputTestJSON outputs the test result as JSON.
func outputTestJSON(cmd *cobra.Command, result TestResult) error {
	status := "ok"
	if result.Failed > 0 {
		status = "error"
	}

	response := CLIResponse{
		Status: status,
		Data:   result,
	}

	if result.Failed > 0 {
		response.Error = &CLIError{
			Code:    CodeTestFailed,
			Message: fmt.Sprintf("%d case(s) failed", result.Failed),
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d case(s) failed", result.Failed))
	}
	return nil
}

// outputTestText outputs the test result as text.
func outputTestText(cmd *cobra.Command, result TestResult) error {
	w := cmd.OutOrStdout()

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d case(s) failed", result.Failed))
	}

	fmt.Fprintln(w, "✓ All cases passed")
	return nil
}
