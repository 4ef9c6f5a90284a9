package eval

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
)

// maxFailureRows caps the failure table of a text report.
const maxFailureRows = 20

// WriteReport writes res as "text" (summary table plus failures) or "json"
// (the full Result including records).
func WriteReport(w io.Writer, res *Result, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case "", "text":
		return writeTextReport(w, res)
	default:
		return fmt.Errorf("unknown report format %q (want text or json)", format)
	}
}

func writeTextReport(w io.Writer, res *Result) error {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Model", res.Model},
		{"Examples", res.Examples},
		{"Evaluated", res.Evaluated},
		{"Skipped (no schema)", res.Skipped},
		{"Failed", res.Failed},
		{"Mean accuracy", formatRatio(res.MeanAccuracy)},
		{"Table accuracy", formatRatio(res.TableAccuracy)},
		{"Exact match", formatRatio(res.ExactMatch)},
	})
	t.Render()

	if res.Failed == 0 {
		return nil
	}

	_, _ = fmt.Fprintln(w)
	f := table.NewWriter()
	f.SetOutputMirror(w)
	f.SetStyle(table.StyleLight)
	f.AppendHeader(table.Row{"#", "Database", "Error"})
	shown := 0
	for _, r := range res.Records {
		if r.Status != StatusFailed {
			continue
		}
		if shown == maxFailureRows {
			break
		}
		f.AppendRow(table.Row{r.Index, r.DBID, r.Error})
		shown++
	}
	f.Render()
	if res.Failed > shown {
		_, _ = fmt.Fprintf(w, "(%d more failures)\n", res.Failed-shown)
	}
	return nil
}

func formatRatio(v float64) string {
	return fmt.Sprintf("%.4f", v)
}
