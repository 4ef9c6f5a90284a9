package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/clasql/internal/config"
	"github.com/roach88/clasql/internal/dataset"
	"github.com/roach88/clasql/internal/eval"
	"github.com/roach88/clasql/internal/model"
	"github.com/roach88/clasql/internal/querysql"
	"github.com/roach88/clasql/internal/store"
)

// EvalOptions holds flags for the eval command.
type EvalOptions struct {
	*RootOptions

	// Limit evaluates only the first Limit examples. Zero means all.
	Limit int

	// StoreOptions are passed to store.Open (for testing).
	StoreOptions []store.Option
}

// EvalOutput is the result of the eval command.
type EvalOutput struct {
	RunID  string        `json:"run_id,omitempty"`
	Split  string        `json:"split"`
	Load   dataset.Stats `json:"load"`
	Result *eval.Result  `json:"result"`
}

// NewEvalCommand creates the eval command.
func NewEvalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EvalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Evaluate a baseline model on a Spider split",
		Long: `Load a Spider split, label every gold query against its database
schema, and score the configured model's predictions.

Examples without a schema are skipped. Examples whose gold query cannot be
decoded or labeled are counted as failed, or abort the run with --strict.
When results_db is configured the run and every prediction are stored.

Exit codes:
  0 - Evaluation finished
  1 - Evaluation aborted (--strict failure, interrupted)
  2 - Command error (bad config, missing dataset, etc.)

Examples:
  clasql eval
  clasql eval --split dev --seed 7 --workers 8
  clasql eval --spider-dir ./spider --results-db runs.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(opts, cmd)
		},
	}

	flags := cmd.Flags()
	flags.String("data-dir", config.DefaultDataDir, "directory holding spider_data/ and sql_exclude_tokens.txt")
	flags.String("spider-dir", "", "Spider release directory (default <data-dir>/spider_data)")
	flags.String("split", config.DefaultSplit, "dataset split (train|dev|test)")
	flags.String("exclude-tokens", "", "file of SQL tokens whose queries are skipped")
	flags.String("model", config.DefaultModel, fmt.Sprintf("model to evaluate %v", model.Names()))
	flags.Uint64("seed", 0, "model seed")
	flags.Int("workers", 0, "concurrent examples (default GOMAXPROCS)")
	flags.String("decoder", config.DecoderReference, "gold query decoder (reference|full)")
	flags.Bool("strict", false, "abort on the first failed example")
	flags.String("results-db", "", "SQLite database to store the run in")
	flags.String("render-mode", config.DefaultRenderMode, "gold SQL rendering (reference|standard)")
	flags.String("vocab", "", "WordPiece vocab.txt (default: hashing encoder)")
	flags.Int("max-length", config.DefaultMaxLength, "maximum encoded sequence length")
	flags.IntVar(&opts.Limit, "limit", 0, "evaluate only the first N examples")

	return cmd
}

func runEval(opts *EvalOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	f := newFormatter(opts.RootOptions, cmd)

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	loader, err := dataset.NewLoader(dataset.Config{
		SpiderDir:         cfg.SpiderDir,
		Split:             cfg.SplitValue(),
		ExcludeTokensPath: cfg.ExcludeTokens,
		Logger:            logger,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to configure dataset", err)
	}
	logger.Info("loading examples", "path", loader.ExamplesPath())
	examples, stats, err := loader.Load(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load dataset", err)
	}
	if opts.Limit > 0 && opts.Limit < len(examples) {
		examples = examples[:opts.Limit]
	}

	m, err := model.New(cfg.Model, cfg.Seed)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create model", err)
	}
	enc, encName, err := newEncoder(cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create encoder", err)
	}

	var (
		st    *store.Store
		runID string
	)
	if cfg.ResultsDB != "" {
		st, err = store.Open(cfg.ResultsDB, opts.StoreOptions...)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open results database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing results database", "error", closeErr)
			}
		}()
		run, err := st.CreateRun(ctx, store.RunSpec{
			Model: m.Name(),
			Split: string(cfg.SplitValue()),
			Seed:  cfg.Seed,
			Params: map[string]string{
				"decoder":     cfg.Decoder,
				"encoder":     encName,
				"examples":    strconv.Itoa(len(examples)),
				"render_mode": cfg.Mode().String(),
				"strict":      strconv.FormatBool(cfg.Strict),
			},
		})
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to create run", err)
		}
		runID = run.ID
		logger.Info("run started", "run_id", runID)
	}

	evaluator := &eval.Evaluator{
		Model:    m,
		Encoder:  enc,
		Schemas:  dataset.NewSchemaCache(loader.DatabaseDir(), logger),
		Decoder:  decoderFor(cfg.Decoder),
		Renderer: querysql.NewRenderer(cfg.Mode()),
		Workers:  cfg.Workers,
		Strict:   cfg.Strict,
		Logger:   logger,
	}
	res, err := evaluator.Run(ctx, examples)
	if err != nil {
		if st != nil {
			failRun(st, runID, err, logger)
		}
		return WrapExitError(ExitFailure, "evaluation aborted", err)
	}

	if st != nil {
		if err := st.WritePredictions(ctx, runID, res.Records); err != nil {
			failRun(st, runID, err, logger)
			return WrapExitError(ExitCommandError, "failed to store predictions", err)
		}
		if err := st.FinishRun(ctx, runID, res); err != nil {
			return WrapExitError(ExitCommandError, "failed to finish run", err)
		}
		logger.Info("run stored", "run_id", runID, "db", cfg.ResultsDB)
	}

	out := EvalOutput{RunID: runID, Split: string(cfg.SplitValue()), Load: stats, Result: res}
	return f.Emit(out, func(w io.Writer) error {
		fmt.Fprintf(w, "Split: %s (loaded %d, excluded %d, invalid %d, databases %d)\n",
			out.Split, stats.Loaded, stats.Excluded, stats.Invalid, stats.Databases)
		if out.RunID != "" {
			fmt.Fprintf(w, "Run: %s\n", out.RunID)
		}
		return eval.WriteReport(w, res, "text")
	})
}

// failRun marks the run failed. The run's own context may already be
// canceled, so the update uses a fresh one.
func failRun(st *store.Store, runID string, cause error, logger *slog.Logger) {
	if err := st.FailRun(context.Background(), runID, cause.Error()); err != nil {
		logger.Error("failed to mark run failed", "run_id", runID, "error", err)
	}
}
