package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/roach88/clasql/internal/eval"
	"github.com/roach88/clasql/internal/store"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	Limit   int
	Records bool
}

// RunDetail is the result of showing one run.
type RunDetail struct {
	Run     store.Run     `json:"run"`
	Records []eval.Record `json:"records,omitempty"`
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List stored evaluation runs or show one",
		Long: `List the runs stored in the results database, newest first, or show the
summary of one run.

Examples:
  clasql runs --results-db runs.db
  clasql runs --results-db runs.db --limit 5
  clasql runs --results-db runs.db 0193a5c2-... --records --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return showRun(opts, args[0], cmd)
			}
			return listRuns(opts, cmd)
		},
	}

	cmd.Flags().String("results-db", "", "SQLite results database")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum runs to list (0 for all)")
	cmd.Flags().BoolVar(&opts.Records, "records", false, "include per-example records")

	return cmd
}

func openResults(opts *RunsOptions, cmd *cobra.Command) (*store.Store, error) {
	cfg, err := loadConfig(opts.RootOptions, cmd)
	if err != nil {
		return nil, err
	}
	if cfg.ResultsDB == "" {
		return nil, NewExitError(ExitCommandError, "results database is not configured (set --results-db or results_db)")
	}
	st, err := store.Open(cfg.ResultsDB)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open results database", err)
	}
	return st, nil
}

func listRuns(opts *RunsOptions, cmd *cobra.Command) error {
	st, err := openResults(opts, cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.ListRuns(cmd.Context(), opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	return newFormatter(opts.RootOptions, cmd).Emit(runs, func(w io.Writer) error {
		if len(runs) == 0 {
			_, err := fmt.Fprintln(w, "No runs found.")
			return err
		}
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"ID", "Model", "Split", "Status", "Started", "Examples", "Mean accuracy"})
		for _, r := range runs {
			t.AppendRow(table.Row{
				r.ID, r.Model, r.Split, r.Status,
				r.StartedAt.Format(time.RFC3339), r.Examples, fmt.Sprintf("%.4f", r.MeanAccuracy),
			})
		}
		t.Render()
		return nil
	})
}

func showRun(opts *RunsOptions, id string, cmd *cobra.Command) error {
	st, err := openResults(opts, cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	f := newFormatter(opts.RootOptions, cmd)
	run, err := st.GetRun(cmd.Context(), id)
	if errors.Is(err, store.ErrRunNotFound) {
		return f.Fail(ExitCommandError, CodeRunNotFound, "run not found", err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	detail := RunDetail{Run: run}
	if opts.Records {
		if detail.Records, err = st.ReadPredictions(cmd.Context(), id); err != nil {
			return WrapExitError(ExitCommandError, "failed to read predictions", err)
		}
	}

	return f.Emit(detail, func(w io.Writer) error {
		return writeRunText(w, detail)
	})
}

func writeRunText(w io.Writer, d RunDetail) error {
	r := d.Run
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendRows([]table.Row{
		{"ID", r.ID},
		{"Model", r.Model},
		{"Split", r.Split},
		{"Seed", r.Seed},
		{"Status", r.Status},
		{"Started", r.StartedAt.Format(time.RFC3339)},
	})
	if r.FinishedAt != nil {
		t.AppendRow(table.Row{"Finished", r.FinishedAt.Format(time.RFC3339)})
	}
	if r.Error != "" {
		t.AppendRow(table.Row{"Error", r.Error})
	}
	t.AppendRows([]table.Row{
		{"Examples", r.Examples},
		{"Evaluated", r.Evaluated},
		{"Skipped", r.Skipped},
		{"Failed", r.Failed},
		{"Mean accuracy", fmt.Sprintf("%.4f", r.MeanAccuracy)},
		{"Table accuracy", fmt.Sprintf("%.4f", r.TableAccuracy)},
		{"Exact match", fmt.Sprintf("%.4f", r.ExactMatch)},
	})
	t.Render()

	if len(d.Records) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	rt := table.NewWriter()
	rt.SetOutputMirror(w)
	rt.SetStyle(table.StyleLight)
	rt.AppendHeader(table.Row{"#", "Database", "Status", "Accuracy", "Question"})
	for _, rec := range d.Records {
		rt.AppendRow(table.Row{rec.Index, rec.DBID, rec.Status, fmt.Sprintf("%.4f", rec.Accuracy), rec.Question})
	}
	rt.Render()
	return nil
}
