package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/clasql/internal/config"
	"github.com/roach88/clasql/internal/dataset"
	"github.com/roach88/clasql/internal/queryir"
	"github.com/roach88/clasql/internal/querysql"
)

// DecodeOptions holds flags for the decode command.
type DecodeOptions struct {
	*RootOptions
	Full bool
}

// DecodeOutput is the result of the decode command.
type DecodeOutput struct {
	Tokens   []string      `json:"tokens"`
	Decoder  string        `json:"decoder"`
	Query    queryir.Query `json:"query"`
	Mode     string        `json:"render_mode"`
	SQL      string        `json:"sql"`
	Identity string        `json:"identity"`
}

// NewDecodeCommand creates the decode command.
func NewDecodeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DecodeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "decode [--full] <sql...>",
		Short: "Decode SQL into a structured query",
		Long: `Tokenize SQL the way the dataset loader does, decode the tokens into a
structured query and render it back to SQL.

The reference decoder keeps only the projected columns and the FROM table.
--full also decodes a flat WHERE, ORDER BY and LIMIT.

Examples:
  clasql decode "SELECT name, age FROM singer"
  clasql decode --full "SELECT name FROM singer WHERE age > 30 LIMIT 5"
  clasql decode --full --render-mode standard "SELECT * FROM t WHERE a = 1 AND b = 2"`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecode(opts, strings.Join(args, " "), cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Full, "full", false, "also decode WHERE, ORDER BY and LIMIT")
	cmd.Flags().String("render-mode", config.DefaultRenderMode, "WHERE rendering (reference|standard)")

	return cmd
}

func runDecode(opts *DecodeOptions, sql string, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	f := newFormatter(opts.RootOptions, cmd)

	decoderName := cfg.Decoder
	if opts.Full {
		decoderName = config.DecoderFull
	}

	tokens := dataset.TokenizeQuery(sql)
	q, err := decoderFor(decoderName)(tokens)
	if err != nil {
		return f.Fail(ExitCommandError, CodeQuery, "failed to decode query", err)
	}

	rendered, err := querysql.NewRenderer(cfg.Mode()).Render(q)
	if err != nil {
		return f.Fail(ExitCommandError, CodeQuery, "failed to render query", err)
	}
	id, err := queryir.Identity(q)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to hash query", err)
	}

	out := DecodeOutput{
		Tokens:   tokens,
		Decoder:  decoderName,
		Query:    q,
		Mode:     cfg.Mode().String(),
		SQL:      rendered,
		Identity: id,
	}
	return f.Emit(out, func(w io.Writer) error {
		fmt.Fprintf(w, "Tokens:  %s\n", strings.Join(out.Tokens, " "))
		writeQueryText(w, out.Query)
		fmt.Fprintf(w, "SQL:     %s\n", out.SQL)
		return nil
	})
}

// decoderFor maps a decoder name to its function. Config validation has
// already rejected unknown names.
func decoderFor(name string) func([]string) (queryir.Query, error) {
	if name == config.DecoderFull {
		return queryir.DecodeFull
	}
	return queryir.Decode
}

func writeQueryText(w io.Writer, q queryir.Query) {
	sel := "*"
	if !q.SelectsAll() {
		sel = strings.Join(q.Select, ", ")
	}
	fmt.Fprintf(w, "Select:  %s\n", sel)
	fmt.Fprintf(w, "From:    %s\n", q.From)
	if !q.Where.IsEmpty() {
		preds := make([]string, len(q.Where.Predicates))
		for i, p := range q.Where.Predicates {
			preds[i] = fmt.Sprintf("%s %s %s", p.Column, p.Operator, p.Value)
		}
		fmt.Fprintf(w, "Where:   %s\n", strings.Join(preds, " "+string(q.Where.BoolOperator.OrDefault())+" "))
	}
	for _, o := range q.OrderBy {
		dir := "ASC"
		if !o.Ascending {
			dir = "DESC"
		}
		fmt.Fprintf(w, "Order:   %s %s\n", o.Column, dir)
	}
	if q.HasLimit() {
		fmt.Fprintf(w, "Limit:   %d\n", *q.Limit)
	}
}

// RenderOutput is the result of the render command.
type RenderOutput struct {
	Mode string `json:"render_mode"`
	SQL  string `json:"sql"`
}

// NewRenderCommand creates the render command.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render <query.json>",
		Short: "Render a JSON-described query as SQL",
		Long: `Render a structured query read from a JSON file ("-" for stdin).

The JSON form is:
  {"select": ["a"], "from": "t",
   "where": {"predicates": [{"column": "a", "operator": "=", "value": 1}], "bool_operator": "AND"},
   "order_by": [{"column": "a", "ascending": false}], "limit": 5}

Examples:
  clasql render query.json
  clasql render --render-mode standard query.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(rootOpts, args[0], cmd)
		},
	}

	cmd.Flags().String("render-mode", config.DefaultRenderMode, "WHERE rendering (reference|standard)")

	return cmd
}

func runRender(opts *RootOptions, path string, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts, cmd)
	if err != nil {
		return err
	}
	f := newFormatter(opts, cmd)

	var data []byte
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read query", err)
	}

	var q queryir.Query
	if err := json.Unmarshal(data, &q); err != nil {
		return f.Fail(ExitCommandError, CodeQuery, "failed to parse query", err)
	}

	rendered, err := querysql.NewRenderer(cfg.Mode()).Render(q)
	if err != nil {
		return f.Fail(ExitCommandError, CodeQuery, "failed to render query", err)
	}

	out := RenderOutput{Mode: cfg.Mode().String(), SQL: rendered}
	return f.Emit(out, func(w io.Writer) error {
		_, err := fmt.Fprintln(w, out.SQL)
		return err
	})
}
