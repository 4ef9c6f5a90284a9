package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/clasql/internal/config"
	"github.com/roach88/clasql/internal/dataset"
	"github.com/roach88/clasql/internal/encode"
	"github.com/roach88/clasql/internal/queryir"
	"github.com/roach88/clasql/internal/schema"
)

// LabelOutput is the result of the label command.
type LabelOutput struct {
	Query   queryir.Query `json:"query"`
	Label   []int         `json:"label"`
	Table   string        `json:"table"`
	Columns []string      `json:"columns"`
}

// NewLabelCommand creates the label command.
func NewLabelCommand(rootOpts *RootOptions) *cobra.Command {
	var schemaPath string

	cmd := &cobra.Command{
		Use:   "label --schema <file> <sql...>",
		Short: "Print the label vector of a query",
		Long: `Decode SQL and label it against a schema.

The label has one slot per table followed by one slot per column position
up to the widest table. Exactly one table slot is set; the column slots are
set for every selected column of that table.

Examples:
  clasql label --schema concert_singer.sql "SELECT name, age FROM singer"
  clasql label --schema concert_singer.sqlite --decoder full "SELECT * FROM concert"`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLabel(rootOpts, schemaPath, strings.Join(args, " "), cmd)
		},
	}

	cmd.Flags().StringVar(&schemaPath, "schema", "", "schema DDL or SQLite database (required)")
	cmd.Flags().String("decoder", config.DecoderReference, "query decoder (reference|full)")
	_ = cmd.MarkFlagRequired("schema")

	return cmd
}

func runLabel(opts *RootOptions, schemaPath, sql string, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts, cmd)
	if err != nil {
		return err
	}
	f := newFormatter(opts, cmd)

	s, err := loadSchema(opts, schemaPath, cmd)
	if err != nil {
		return err
	}

	q, err := decoderFor(cfg.Decoder)(dataset.TokenizeQuery(sql))
	if err != nil {
		return f.Fail(ExitCommandError, CodeQuery, "failed to decode query", err)
	}
	label, err := queryir.ToLabel(q, s)
	if err != nil {
		return f.Fail(ExitCommandError, CodeLabel, "failed to label query", err)
	}

	out := LabelOutput{
		Query:   q,
		Label:   label.Vector(),
		Table:   s.Tables()[label.Table()],
		Columns: []string{},
	}
	cols, _ := s.Columns(out.Table)
	for _, i := range label.Columns() {
		out.Columns = append(out.Columns, cols[i])
	}

	return f.Emit(out, func(w io.Writer) error {
		fmt.Fprintf(w, "Table:   %s\n", out.Table)
		fmt.Fprintf(w, "Columns: %s\n", strings.Join(out.Columns, ", "))
		fmt.Fprintf(w, "Label:   %s\n", formatVector(out.Label))
		return nil
	})
}

// EncodeOutput is the result of the encode command.
type EncodeOutput struct {
	Encoder    string          `json:"encoder"`
	SchemaText string          `json:"schema_text,omitempty"`
	Encoding   encode.Encoding `json:"encoding"`
}

// NewEncodeCommand creates the encode command.
func NewEncodeCommand(rootOpts *RootOptions) *cobra.Command {
	var schemaPath string

	cmd := &cobra.Command{
		Use:   "encode --schema <file> <question...>",
		Short: "Print the model input for a question",
		Long: `Encode the schema text followed by a question as one sequence, the
input a model sees.

With a vocabulary (--vocab or the vocab config key) the WordPiece encoder is
used; otherwise word pieces are hashed into a fixed id space.

Examples:
  clasql encode --schema concert_singer.sql "How many singers are there?"
  clasql encode --schema concert_singer.sql --vocab vocab.txt --max-length 64 "Show all stadium names"`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEncode(rootOpts, schemaPath, strings.Join(args, " "), cmd)
		},
	}

	cmd.Flags().StringVar(&schemaPath, "schema", "", "schema DDL or SQLite database (required)")
	cmd.Flags().String("vocab", "", "WordPiece vocab.txt (default: hashing encoder)")
	cmd.Flags().Int("max-length", config.DefaultMaxLength, "maximum sequence length including [CLS] and [SEP]")
	_ = cmd.MarkFlagRequired("schema")

	return cmd
}

func runEncode(opts *RootOptions, schemaPath, question string, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts, cmd)
	if err != nil {
		return err
	}
	f := newFormatter(opts, cmd)

	s, err := loadSchema(opts, schemaPath, cmd)
	if err != nil {
		return err
	}
	enc, name, err := newEncoder(cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create encoder", err)
	}

	text := schema.Text(s)
	encoding, err := encode.EncodeInput(enc, text, question)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to encode", err)
	}

	out := EncodeOutput{Encoder: name, SchemaText: text, Encoding: encoding}
	return f.Emit(out, func(w io.Writer) error {
		fmt.Fprintf(w, "Encoder:   %s\n", out.Encoder)
		fmt.Fprintf(w, "Length:    %d\n", out.Encoding.Len())
		fmt.Fprintf(w, "Tokens:    %s\n", strings.Join(out.Encoding.Tokens, " "))
		fmt.Fprintf(w, "Input IDs: %s\n", formatVector(out.Encoding.InputIDs))
		return nil
	})
}

// Encoder names reported by newEncoder.
const (
	encoderWordPiece = "wordpiece"
	encoderHashing   = "hashing"
)

// newEncoder builds the WordPiece encoder when a vocabulary is configured and
// the hashing encoder otherwise.
func newEncoder(cfg *config.Config) (encode.Encoder, string, error) {
	if cfg.Vocab == "" {
		enc, err := encode.NewHashingEncoder(cfg.HashBuckets, cfg.MaxLength)
		return enc, encoderHashing, err
	}
	vocab, err := encode.LoadVocab(cfg.Vocab)
	if err != nil {
		return nil, "", err
	}
	enc, err := encode.NewWordPiece(vocab, cfg.MaxLength)
	return enc, encoderWordPiece, err
}

func loadSchema(opts *RootOptions, path string, cmd *cobra.Command) (*schema.Schema, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("schema file not found: %s", path))
	}
	logger := newLogger(opts, cmd.ErrOrStderr())
	s, err := schema.LoadFile(cmd.Context(), path, schema.WithLogger(logger))
	if err != nil {
		return nil, newFormatter(opts, cmd).Fail(ExitCommandError, CodeSchema, "failed to load schema", err)
	}
	return s, nil
}

func formatVector(v []int) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = fmt.Sprint(x)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
