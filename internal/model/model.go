// Package model defines the predictor contract and the baseline models.
package model

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/roach88/clasql/internal/encode"
	"github.com/roach88/clasql/internal/queryir"
	"github.com/roach88/clasql/internal/schema"
)

// TrainingExample is one supervised example.
type TrainingExample struct {
	DBID     string
	Encoding encode.Encoding
	Schema   *schema.Schema
	Label    queryir.Label
}

// Model predicts a label for an encoded question against a schema.
//
// Implementations must be safe for concurrent Predict calls once Train has
// returned.
type Model interface {
	// Name identifies the model in reports and stored runs.
	Name() string

	// Train fits the model. Models without parameters return nil.
	Train(ctx context.Context, examples []TrainingExample) error

	// Predict returns a label shaped for s.
	Predict(enc encode.Encoding, s *schema.Schema) (queryir.Label, error)
}

// PredictionError reports a schema a model cannot produce a label for.
type PredictionError struct {
	Model  string
	Reason string
}

// Error implements the error interface.
func (e *PredictionError) Error() string {
	return fmt.Sprintf("%s: cannot predict: %s", e.Model, e.Reason)
}

// IsPredictionError reports whether err is or wraps a PredictionError.
func IsPredictionError(err error) bool {
	var pe *PredictionError
	return errors.As(err, &pe)
}

// Factory builds a model from a seed.
type Factory func(seed uint64) Model

var registry = map[string]Factory{
	RandomSelectName: func(seed uint64) Model { return NewRandomSelect(seed) },
}

// New builds the model registered under name.
func New(name string, seed uint64) (Model, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown model %q (available: %v)", name, Names())
	}
	return f(seed), nil
}

// Names lists the registered model names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
