package eval

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/clasql/internal/dataset"
	"github.com/roach88/clasql/internal/encode"
	"github.com/roach88/clasql/internal/model"
	"github.com/roach88/clasql/internal/queryir"
	"github.com/roach88/clasql/internal/querysql"
	"github.com/roach88/clasql/internal/schema"
)

// SchemaSource resolves a database id to its schema. found is false when the
// database has no usable schema.
type SchemaSource interface {
	Get(ctx context.Context, db string) (s *schema.Schema, found bool, err error)
}

// Decoder turns gold query tokens into a Query.
type Decoder func(tokens []string) (queryir.Query, error)

// Status is the outcome of evaluating one example.
type Status string

const (
	StatusEvaluated Status = "evaluated"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// Record is the outcome for one example.
type Record struct {
	Index     int    `json:"index"`
	DBID      string `json:"db_id"`
	Question  string `json:"question"`
	Status    Status `json:"status"`
	Error     string `json:"error,omitempty"`
	GoldSQL   string `json:"gold_sql,omitempty"`
	Gold      []int  `json:"gold,omitempty"`
	Predicted []int  `json:"predicted,omitempty"`

	Accuracy   float64 `json:"accuracy"`
	TableMatch bool    `json:"table_match"`
	Exact      bool    `json:"exact"`
}

// Result aggregates the records of one run.
type Result struct {
	Model     string `json:"model"`
	Examples  int    `json:"examples"`
	Evaluated int    `json:"evaluated"`
	Skipped   int    `json:"skipped"`
	Failed    int    `json:"failed"`

	// MeanAccuracy is the mean per-example elementwise accuracy over
	// evaluated examples. TableAccuracy and ExactMatch are the fractions of
	// evaluated examples whose table, or whole label, matched.
	MeanAccuracy  float64 `json:"mean_accuracy"`
	TableAccuracy float64 `json:"table_accuracy"`
	ExactMatch    float64 `json:"exact_match"`

	Records []Record `json:"records"`
}

// Evaluator scores a model over examples.
type Evaluator struct {
	Model   model.Model
	Encoder encode.Encoder
	Schemas SchemaSource

	// Decoder defaults to queryir.Decode.
	Decoder Decoder

	// Renderer renders the decoded gold query into Record.GoldSQL. Defaults
	// to the reference renderer.
	Renderer *querysql.Renderer

	// Workers bounds concurrent examples. Zero means GOMAXPROCS.
	Workers int

	// Strict aborts the run on the first failed example instead of
	// counting it.
	Strict bool

	Logger *slog.Logger
}

// FailedExampleError is returned by a Strict run.
type FailedExampleError struct {
	Index int
	DBID  string
	Err   error
}

// Error implements the error interface.
func (e *FailedExampleError) Error() string {
	return fmt.Sprintf("example %d (%s): %v", e.Index, e.DBID, e.Err)
}

// Unwrap returns the underlying error.
func (e *FailedExampleError) Unwrap() error {
	return e.Err
}

// IsFailedExampleError reports whether err is or wraps a FailedExampleError.
func IsFailedExampleError(err error) bool {
	var fe *FailedExampleError
	return errors.As(err, &fe)
}

// Run evaluates every example. It returns an error only when ctx is
// canceled, the evaluator is misconfigured, or a Strict run hits a failure.
func (e *Evaluator) Run(ctx context.Context, examples []dataset.Example) (*Result, error) {
	if e.Model == nil || e.Encoder == nil || e.Schemas == nil {
		return nil, fmt.Errorf("evaluator requires a model, an encoder and a schema source")
	}
	logger := e.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	workers := e.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	records := make([]Record, len(examples))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, ex := range examples {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			rec := e.evaluate(gctx, i, ex)
			records[i] = rec
			if rec.Status == StatusFailed {
				logger.Warn("example failed", "index", i, "db", ex.DBID, "error", rec.Error)
				if e.Strict {
					return &FailedExampleError{Index: i, DBID: ex.DBID, Err: errors.New(rec.Error)}
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := summarize(e.Model.Name(), records)
	logger.Info("evaluation finished",
		"model", res.Model,
		"examples", res.Examples,
		"evaluated", res.Evaluated,
		"skipped", res.Skipped,
		"failed", res.Failed,
		"mean_accuracy", res.MeanAccuracy)
	return res, nil
}

func (e *Evaluator) evaluate(ctx context.Context, i int, ex dataset.Example) Record {
	rec := Record{Index: i, DBID: ex.DBID, Question: ex.QuestionText()}
	fail := func(err error) Record {
		rec.Status = StatusFailed
		rec.Error = err.Error()
		return rec
	}

	s, found, err := e.Schemas.Get(ctx, ex.DBID)
	if err != nil {
		return fail(fmt.Errorf("load schema: %w", err))
	}
	if !found {
		rec.Status = StatusSkipped
		return rec
	}

	enc, err := encode.EncodeInput(e.Encoder, schema.Text(s), rec.Question)
	if err != nil {
		return fail(fmt.Errorf("encode: %w", err))
	}

	decode := e.Decoder
	if decode == nil {
		decode = queryir.Decode
	}
	q, err := decode(ex.Query)
	if err != nil {
		return fail(err)
	}
	renderer := e.Renderer
	if renderer == nil {
		renderer = querysql.NewRenderer(querysql.ModeReference)
	}
	if rec.GoldSQL, err = renderer.Render(q); err != nil {
		return fail(err)
	}

	gold, err := queryir.ToLabel(q, s)
	if err != nil {
		return fail(err)
	}
	pred, err := e.Model.Predict(enc, s)
	if err != nil {
		return fail(err)
	}
	m, err := queryir.Compare(gold, pred)
	if err != nil {
		return fail(err)
	}

	rec.Status = StatusEvaluated
	rec.Gold = gold.Vector()
	rec.Predicted = pred.Vector()
	rec.Accuracy = m.Accuracy()
	rec.TableMatch = m.TableMatch
	rec.Exact = m.Exact
	return rec
}

func summarize(modelName string, records []Record) *Result {
	res := &Result{Model: modelName, Examples: len(records), Records: records}

	var accuracy float64
	var tables, exact int
	for _, r := range records {
		switch r.Status {
		case StatusSkipped:
			res.Skipped++
		case StatusFailed:
			res.Failed++
		case StatusEvaluated:
			res.Evaluated++
			accuracy += r.Accuracy
			if r.TableMatch {
				tables++
			}
			if r.Exact {
				exact++
			}
		}
	}

	if res.Evaluated > 0 {
		n := float64(res.Evaluated)
		res.MeanAccuracy = accuracy / n
		res.TableAccuracy = float64(tables) / n
		res.ExactMatch = float64(exact) / n
	}
	return res
}
