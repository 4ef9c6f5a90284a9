package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/clasql/internal/eval"
	"github.com/roach88/clasql/internal/testutil"
)

func sampleResult() *eval.Result {
	return &eval.Result{
		Model:         "random",
		Examples:      3,
		Evaluated:     1,
		Skipped:       1,
		Failed:        1,
		MeanAccuracy:  0.75,
		TableAccuracy: 1,
		ExactMatch:    0,
		Records: []eval.Record{
			{
				Index: 0, DBID: "concert_singer", Question: "how many singers",
				Status: eval.StatusEvaluated, GoldSQL: "SELECT name FROM singer;",
				Gold: []int{0, 1, 0, 1}, Predicted: []int{0, 1, 1, 1},
				Accuracy: 0.75, TableMatch: true,
			},
			{Index: 1, DBID: "missing", Question: "anything", Status: eval.StatusSkipped},
			{
				Index: 2, DBID: "concert_singer", Question: "list stadiums",
				Status: eval.StatusFailed, Error: `table "stadium" not found`,
			},
		},
	}
}

func TestRuns_Lifecycle(t *testing.T) {
	s := createTestStore(t, "run-1")
	ctx := context.Background()

	run, err := s.CreateRun(ctx, RunSpec{
		Model:  "random",
		Split:  "dev",
		Seed:   42,
		Params: map[string]string{"workers": "4", "decoder": "reference"},
	})
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, RunRunning, run.Status)
	assert.True(t, run.StartedAt.Equal(testutil.Epoch))

	res := sampleResult()
	require.NoError(t, s.WritePredictions(ctx, run.ID, res.Records))
	require.NoError(t, s.FinishRun(ctx, run.ID, res))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunFinished, got.Status)
	assert.Equal(t, uint64(42), got.Seed)
	assert.Equal(t, map[string]string{"workers": "4", "decoder": "reference"}, got.Params)
	assert.Equal(t, 3, got.Examples)
	assert.Equal(t, 1, got.Evaluated)
	assert.Equal(t, 1, got.Skipped)
	assert.Equal(t, 1, got.Failed)
	assert.InDelta(t, 0.75, got.MeanAccuracy, 1e-12)
	assert.InDelta(t, 1.0, got.TableAccuracy, 1e-12)
	require.NotNil(t, got.FinishedAt)
	assert.True(t, got.FinishedAt.Equal(testutil.Epoch.Add(time.Second)))

	records, err := s.ReadPredictions(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Records, records)
}

func TestRuns_WritePredictionIdempotent(t *testing.T) {
	s := createTestStore(t, "run-1")
	ctx := context.Background()

	run, err := s.CreateRun(ctx, RunSpec{Model: "random", Split: "dev"})
	require.NoError(t, err)

	first := eval.Record{Index: 0, DBID: "a", Question: "q", Status: eval.StatusSkipped}
	second := eval.Record{Index: 0, DBID: "b", Question: "q", Status: eval.StatusSkipped}
	require.NoError(t, s.WritePrediction(ctx, run.ID, first))
	require.NoError(t, s.WritePrediction(ctx, run.ID, second))

	records, err := s.ReadPredictions(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "a", records[0].DBID, "the first write wins")
}

func TestRuns_PredictionRequiresRun(t *testing.T) {
	s := createTestStore(t)

	err := s.WritePrediction(context.Background(), "nope",
		eval.Record{Index: 0, DBID: "a", Status: eval.StatusSkipped})
	assert.Error(t, err, "foreign key enforcement")
}

func TestRuns_WritePredictionsRollsBack(t *testing.T) {
	s := createTestStore(t, "run-1")
	ctx := context.Background()

	run, err := s.CreateRun(ctx, RunSpec{Model: "random", Split: "dev"})
	require.NoError(t, err)

	recs := []eval.Record{
		{Index: 0, DBID: "a", Status: eval.StatusSkipped},
		{Index: 1, DBID: "b", Status: "bogus"},
	}
	err = s.WritePredictions(ctx, run.ID, recs)
	assert.ErrorContains(t, err, "index 1")

	records, err := s.ReadPredictions(ctx, run.ID)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRuns_FailRun(t *testing.T) {
	s := createTestStore(t, "run-1")
	ctx := context.Background()

	run, err := s.CreateRun(ctx, RunSpec{Model: "random", Split: "test"})
	require.NoError(t, err)
	require.NoError(t, s.FailRun(ctx, run.ID, "context canceled"))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunFailed, got.Status)
	assert.Equal(t, "context canceled", got.Error)
	assert.NotNil(t, got.FinishedAt)
	assert.Nil(t, got.Params)
}

func TestRuns_NotFound(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.GetRun(ctx, "nope")
	assert.True(t, errors.Is(err, ErrRunNotFound))

	err = s.FinishRun(ctx, "nope", sampleResult())
	assert.ErrorIs(t, err, ErrRunNotFound)

	err = s.FailRun(ctx, "nope", "x")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestRuns_ListNewestFirst(t *testing.T) {
	s := createTestStore(t, "run-a", "run-b", "run-c")
	ctx := context.Background()

	for range 3 {
		_, err := s.CreateRun(ctx, RunSpec{Model: "random", Split: "dev"})
		require.NoError(t, err)
	}

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	ids := make([]string, len(runs))
	for i, r := range runs {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"run-c", "run-b", "run-a"}, ids)

	limited, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestRuns_ListEmpty(t *testing.T) {
	runs, err := createTestStore(t).ListRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)
}

func TestRuns_ReadPredictionsUnknownRun(t *testing.T) {
	records, err := createTestStore(t).ReadPredictions(context.Background(), "nope")
	require.NoError(t, err)
	assert.Empty(t, records)
}
