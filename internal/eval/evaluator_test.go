package eval

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/clasql/internal/dataset"
	"github.com/roach88/clasql/internal/encode"
	"github.com/roach88/clasql/internal/model"
	"github.com/roach88/clasql/internal/queryir"
	"github.com/roach88/clasql/internal/schema"
	"github.com/roach88/clasql/internal/testutil"
)

// mapSchemas is an in-memory SchemaSource.
type mapSchemas map[string]*schema.Schema

func (m mapSchemas) Get(_ context.Context, db string) (*schema.Schema, bool, error) {
	s, ok := m[db]
	return s, ok, nil
}

// failingSchemas returns err for every database.
type failingSchemas struct{ err error }

func (f failingSchemas) Get(context.Context, string) (*schema.Schema, bool, error) {
	return nil, false, f.err
}

// fixedModel always predicts the first table and its second column.
type fixedModel struct {
	calls atomic.Int64
}

func (m *fixedModel) Name() string { return "fixed" }

func (m *fixedModel) Train(context.Context, []model.TrainingExample) error { return nil }

func (m *fixedModel) Predict(_ encode.Encoding, s *schema.Schema) (queryir.Label, error) {
	m.calls.Add(1)
	label := queryir.NewLabel(s)
	label.TableBits[0] = 1
	label.ColumnBits[1] = 1
	return label, nil
}

func musicSchema() *schema.Schema {
	s := schema.New()
	s.Set("singer", []string{"singer_id", "name", "country", "age"})
	s.Set("concert", []string{"concert_id", "year"})
	return s
}

func example(db, question, query string) dataset.Example {
	return dataset.Example{
		DBID:        db,
		Question:    dataset.TokenizeQuestion(question),
		Query:       dataset.TokenizeQuery(query),
		RawQuestion: question,
		RawQuery:    query,
	}
}

func fixtureExamples() []dataset.Example {
	return []dataset.Example{
		example("music", "How many singers?", "SELECT name FROM singer"),
		example("music", "Which years had concerts?", "SELECT year FROM concert"),
		example("unknown_db", "Anything?", "SELECT a FROM b"),
		example("music", "List stadiums", "SELECT name FROM stadium"),
	}
}

func newEvaluator(t *testing.T, m model.Model) *Evaluator {
	t.Helper()
	enc, err := encode.NewHashingEncoder(64, 32)
	require.NoError(t, err)
	return &Evaluator{
		Model:   m,
		Encoder: enc,
		Schemas: mapSchemas{"music": musicSchema()},
		Workers: 2,
		Logger:  testutil.NewTestLogger(t),
	}
}

func TestEvaluator_Run(t *testing.T) {
	m := &fixedModel{}
	res, err := newEvaluator(t, m).Run(context.Background(), fixtureExamples())
	require.NoError(t, err)

	assert.Equal(t, 4, res.Examples)
	assert.Equal(t, 2, res.Evaluated)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 1, res.Failed)
	assert.InDelta(t, 5.0/6.0, res.MeanAccuracy, 1e-9)
	assert.InDelta(t, 0.5, res.TableAccuracy, 1e-9)
	assert.InDelta(t, 0.5, res.ExactMatch, 1e-9)
	assert.Equal(t, int64(2), m.calls.Load(), "skipped and failed examples are not predicted")

	for i, r := range res.Records {
		assert.Equal(t, i, r.Index, "records keep input order")
	}
	assert.Equal(t, StatusFailed, res.Records[3].Status)
	assert.Contains(t, res.Records[3].Error, `table "stadium" not found`)
}

func TestEvaluator_Golden(t *testing.T) {
	res, err := newEvaluator(t, &fixedModel{}).Run(context.Background(), fixtureExamples())
	require.NoError(t, err)

	AssertGolden(t, "fixed_model_run", res)
}

func TestEvaluator_Strict(t *testing.T) {
	ev := newEvaluator(t, &fixedModel{})
	ev.Strict = true
	ev.Workers = 1

	_, err := ev.Run(context.Background(), fixtureExamples())
	require.Error(t, err)
	assert.True(t, IsFailedExampleError(err))

	var fe *FailedExampleError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 3, fe.Index)
	assert.Equal(t, "music", fe.DBID)
}

func TestEvaluator_SchemaErrorsFail(t *testing.T) {
	ev := newEvaluator(t, &fixedModel{})
	ev.Schemas = failingSchemas{err: errors.New("disk on fire")}

	res, err := ev.Run(context.Background(), fixtureExamples()[:1])
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Contains(t, res.Records[0].Error, "load schema: disk on fire")
	assert.Zero(t, res.MeanAccuracy)
}

func TestEvaluator_FullDecoder(t *testing.T) {
	ev := newEvaluator(t, &fixedModel{})
	ev.Decoder = queryir.DecodeFull

	examples := []dataset.Example{
		example("music", "Singers older than 30", "SELECT name FROM singer WHERE age > 30"),
		example("music", "Join", "SELECT T1.name FROM singer AS T1 JOIN concert AS T2"),
	}
	res, err := ev.Run(context.Background(), examples)
	require.NoError(t, err)

	assert.Equal(t, StatusEvaluated, res.Records[0].Status)
	assert.Equal(t, "SELECT name FROM singer WHERE  ANDage > '30';", res.Records[0].GoldSQL)
	assert.Equal(t, StatusFailed, res.Records[1].Status)
	assert.Contains(t, res.Records[1].Error, "unsupported tokens after FROM table")
}

func TestEvaluator_RandomBaseline(t *testing.T) {
	ev := newEvaluator(t, model.NewRandomSelect(7))

	first, err := ev.Run(context.Background(), fixtureExamples())
	require.NoError(t, err)
	ev.Workers = 8
	second, err := ev.Run(context.Background(), fixtureExamples())
	require.NoError(t, err)

	assert.Equal(t, first, second, "predictions do not depend on scheduling")
	assert.GreaterOrEqual(t, first.MeanAccuracy, 0.0)
	assert.LessOrEqual(t, first.MeanAccuracy, 1.0)
}

func TestEvaluator_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newEvaluator(t, &fixedModel{}).Run(ctx, fixtureExamples())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEvaluator_Misconfigured(t *testing.T) {
	_, err := (&Evaluator{}).Run(context.Background(), nil)
	assert.ErrorContains(t, err, "requires a model")
}

func TestEvaluator_NoExamples(t *testing.T) {
	res, err := newEvaluator(t, &fixedModel{}).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, res.Examples)
	assert.Zero(t, res.MeanAccuracy)
	assert.Empty(t, res.Records)
}

func TestWriteReport(t *testing.T) {
	res, err := newEvaluator(t, &fixedModel{}).Run(context.Background(), fixtureExamples())
	require.NoError(t, err)

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteReport(&buf, res, "text"))
		out := buf.String()
		assert.Contains(t, out, "Mean accuracy")
		assert.Contains(t, out, "0.8333")
		assert.Contains(t, out, "Skipped (no schema)")
		assert.Contains(t, out, `table "stadium" not found`)
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteReport(&buf, res, "json"))

		var decoded Result
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, res.Evaluated, decoded.Evaluated)
		assert.Len(t, decoded.Records, 4)
	})

	t.Run("unknown", func(t *testing.T) {
		assert.ErrorContains(t, WriteReport(&bytes.Buffer{}, res, "xml"), "unknown report format")
	})
}
