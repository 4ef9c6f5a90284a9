package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/clasql/internal/canonical"
	"github.com/roach88/clasql/internal/eval"
)

// ErrRunNotFound is returned for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// Run status values.
const (
	RunRunning  = "running"
	RunFinished = "finished"
	RunFailed   = "failed"
)

// RunSpec describes a run about to start.
type RunSpec struct {
	Model  string
	Split  string
	Seed   uint64
	Params map[string]string
}

// Run is a stored evaluation run.
type Run struct {
	ID         string            `json:"id"`
	Model      string            `json:"model"`
	Split      string            `json:"split"`
	Seed       uint64            `json:"seed"`
	Params     map[string]string `json:"params,omitempty"`
	Status     string            `json:"status"`
	Error      string            `json:"error,omitempty"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`

	Examples      int     `json:"examples"`
	Evaluated     int     `json:"evaluated"`
	Skipped       int     `json:"skipped"`
	Failed        int     `json:"failed"`
	MeanAccuracy  float64 `json:"mean_accuracy"`
	TableAccuracy float64 `json:"table_accuracy"`
	ExactMatch    float64 `json:"exact_match"`
}

// CreateRun inserts a running run and returns it.
func (s *Store) CreateRun(ctx context.Context, spec RunSpec) (Run, error) {
	params := make(map[string]any, len(spec.Params))
	for k, v := range spec.Params {
		params[k] = v
	}
	paramsJSON, err := canonical.Marshal(params)
	if err != nil {
		return Run{}, fmt.Errorf("create run: %w", err)
	}

	run := Run{
		ID:        s.ids.Generate(),
		Model:     spec.Model,
		Split:     spec.Split,
		Seed:      spec.Seed,
		Params:    spec.Params,
		Status:    RunRunning,
		StartedAt: s.clock.Now().UTC(),
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, model, split, seed, params, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Model,
		run.Split,
		int64(run.Seed),
		string(paramsJSON),
		run.Status,
		formatTime(run.StartedAt),
	)
	if err != nil {
		return Run{}, fmt.Errorf("create run: %w", err)
	}
	return run, nil
}

// WritePrediction stores one record of a run. Writing the same index twice
// keeps the first write.
func (s *Store) WritePrediction(ctx context.Context, runID string, rec eval.Record) error {
	if err := writePrediction(ctx, s.db, runID, rec); err != nil {
		return fmt.Errorf("write prediction: %w", err)
	}
	return nil
}

// WritePredictions stores records in one transaction.
func (s *Store) WritePredictions(ctx context.Context, runID string, recs []eval.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write predictions: %w", err)
	}
	defer tx.Rollback()

	for _, rec := range recs {
		if err := writePrediction(ctx, tx, runID, rec); err != nil {
			return fmt.Errorf("write predictions: index %d: %w", rec.Index, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write predictions: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func writePrediction(ctx context.Context, db execer, runID string, rec eval.Record) error {
	gold, err := canonical.Marshal(rec.Gold)
	if err != nil {
		return err
	}
	predicted, err := canonical.Marshal(rec.Predicted)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO predictions
		(run_id, idx, db_id, question, status, error, gold_sql, gold, predicted, accuracy, table_match, exact)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, idx) DO NOTHING
	`,
		runID,
		rec.Index,
		rec.DBID,
		rec.Question,
		string(rec.Status),
		rec.Error,
		rec.GoldSQL,
		string(gold),
		string(predicted),
		rec.Accuracy,
		rec.TableMatch,
		rec.Exact,
	)
	return err
}

// FinishRun records the summary of res and marks the run finished.
func (s *Store) FinishRun(ctx context.Context, runID string, res *eval.Result) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE runs SET
			status = ?, finished_at = ?,
			examples = ?, evaluated = ?, skipped = ?, failed = ?,
			mean_accuracy = ?, table_accuracy = ?, exact_match = ?
		WHERE id = ?
	`,
		RunFinished,
		formatTime(s.clock.Now()),
		res.Examples, res.Evaluated, res.Skipped, res.Failed,
		res.MeanAccuracy, res.TableAccuracy, res.ExactMatch,
		runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return expectOneRow(result, runID)
}

// FailRun marks the run failed with reason.
func (s *Store) FailRun(ctx context.Context, runID, reason string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, error = ?, finished_at = ? WHERE id = ?
	`, RunFailed, reason, formatTime(s.clock.Now()), runID)
	if err != nil {
		return fmt.Errorf("fail run: %w", err)
	}
	return expectOneRow(result, runID)
}

func expectOneRow(result sql.Result, runID string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

const runColumns = `id, model, split, seed, params, status, error, started_at, finished_at,
	examples, evaluated, skipped, failed, mean_accuracy, table_accuracy, exact_match`

// GetRun returns the run with id, or an error wrapping ErrRunNotFound.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns returns up to limit runs, newest first. A limit of zero or less
// returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		ORDER BY started_at DESC, id COLLATE BINARY DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadPredictions returns the records of a run ordered by index.
func (s *Store) ReadPredictions(ctx context.Context, runID string) ([]eval.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT idx, db_id, question, status, error, gold_sql, gold, predicted, accuracy, table_match, exact
		FROM predictions
		WHERE run_id = ?
		ORDER BY idx ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query predictions: %w", err)
	}
	defer rows.Close()

	records := []eval.Record{}
	for rows.Next() {
		var (
			rec             eval.Record
			status          string
			gold, predicted string
		)
		if err := rows.Scan(&rec.Index, &rec.DBID, &rec.Question, &status, &rec.Error, &rec.GoldSQL,
			&gold, &predicted, &rec.Accuracy, &rec.TableMatch, &rec.Exact); err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		rec.Status = eval.Status(status)
		if rec.Gold, err = unmarshalVector(gold); err != nil {
			return nil, fmt.Errorf("prediction %d gold: %w", rec.Index, err)
		}
		if rec.Predicted, err = unmarshalVector(predicted); err != nil {
			return nil, fmt.Errorf("prediction %d predicted: %w", rec.Index, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate predictions: %w", err)
	}
	return records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run        Run
		seed       int64
		params     string
		startedAt  string
		finishedAt sql.NullString
	)
	err := row.Scan(&run.ID, &run.Model, &run.Split, &seed, &params, &run.Status, &run.Error,
		&startedAt, &finishedAt,
		&run.Examples, &run.Evaluated, &run.Skipped, &run.Failed,
		&run.MeanAccuracy, &run.TableAccuracy, &run.ExactMatch)
	if err != nil {
		return Run{}, err
	}
	run.Seed = uint64(seed)

	if err := json.Unmarshal([]byte(params), &run.Params); err != nil {
		return Run{}, fmt.Errorf("run %s params: %w", run.ID, err)
	}
	if len(run.Params) == 0 {
		run.Params = nil
	}
	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return Run{}, fmt.Errorf("run %s started_at: %w", run.ID, err)
	}
	if finishedAt.Valid {
		t, err := parseTime(finishedAt.String)
		if err != nil {
			return Run{}, fmt.Errorf("run %s finished_at: %w", run.ID, err)
		}
		run.FinishedAt = &t
	}
	return run, nil
}

// unmarshalVector decodes a stored label vector. Empty vectors read as nil,
// matching records that never had a label.
func unmarshalVector(data string) ([]int, error) {
	var v []int
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return nil, err
	}
	if len(v) == 0 {
		return nil, nil
	}
	return v, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
