package eval

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/clasql/internal/canonical"
)

// Snapshot converts res to a map[string]any for canonical JSON.
// Ratios become fixed four-decimal strings since canonical JSON has no floats.
func Snapshot(res *Result) map[string]any {
	records := make([]any, len(res.Records))
	for i, r := range res.Records {
		m := map[string]any{
			"index":       r.Index,
			"db_id":       r.DBID,
			"question":    r.Question,
			"status":      string(r.Status),
			"accuracy":    formatRatio(r.Accuracy),
			"table_match": r.TableMatch,
			"exact":       r.Exact,
		}
		if r.Error != "" {
			m["error"] = r.Error
		}
		if r.GoldSQL != "" {
			m["gold_sql"] = r.GoldSQL
		}
		if r.Gold != nil {
			m["gold"] = r.Gold
		}
		if r.Predicted != nil {
			m["predicted"] = r.Predicted
		}
		records[i] = m
	}

	return map[string]any{
		"model":          res.Model,
		"examples":       res.Examples,
		"evaluated":      res.Evaluated,
		"skipped":        res.Skipped,
		"failed":         res.Failed,
		"mean_accuracy":  formatRatio(res.MeanAccuracy),
		"table_accuracy": formatRatio(res.TableAccuracy),
		"exact_match":    formatRatio(res.ExactMatch),
		"records":        records,
	}
}

// AssertGolden compares the canonical JSON of v against
// testdata/golden/{name}.golden. A *Result is snapshotted first; any other
// value must be accepted by canonical.Marshal.
//
// To regenerate golden files, run:
//
//	go test ./internal/eval -update
func AssertGolden(t *testing.T, name string, v any) {
	t.Helper()

	if res, ok := v.(*Result); ok {
		v = Snapshot(res)
	}
	data, err := canonical.Marshal(v)
	if err != nil {
		t.Fatalf("canonical snapshot %s: %v", name, err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}
