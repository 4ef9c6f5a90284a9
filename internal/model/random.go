package model

import (
	"context"
	"encoding/binary"
	"hash/fnv"
	"math/rand/v2"

	"github.com/roach88/clasql/internal/encode"
	"github.com/roach88/clasql/internal/queryir"
	"github.com/roach88/clasql/internal/schema"
)

// RandomSelectName is the registry name of RandomSelect.
const RandomSelectName = "random"

// RandomSelect is the strawman baseline. It picks one table uniformly, then
// a uniform number k in [1, MaxColumns] of distinct column slots, ignoring
// how many columns the chosen table really has.
//
// Each prediction draws from a generator seeded by the model seed and the
// encoded input, so results do not depend on the order or concurrency of
// Predict calls.
type RandomSelect struct {
	seed uint64
}

// NewRandomSelect creates the baseline with a seed.
func NewRandomSelect(seed uint64) *RandomSelect {
	return &RandomSelect{seed: seed}
}

// Name implements Model.
func (m *RandomSelect) Name() string {
	return RandomSelectName
}

// Train implements Model. There is nothing to fit.
func (m *RandomSelect) Train(ctx context.Context, _ []TrainingExample) error {
	return ctx.Err()
}

// Predict implements Model.
func (m *RandomSelect) Predict(enc encode.Encoding, s *schema.Schema) (queryir.Label, error) {
	if s.Len() == 0 {
		return queryir.Label{}, &PredictionError{Model: m.Name(), Reason: "schema has no tables"}
	}
	maxCols := s.MaxColumns()
	if maxCols == 0 {
		return queryir.Label{}, &PredictionError{Model: m.Name(), Reason: "schema has no columns"}
	}

	rng := rand.New(rand.NewPCG(m.seed, inputKey(enc, s)))

	label := queryir.NewLabel(s)
	label.TableBits[rng.IntN(s.Len())] = 1

	k := 1 + rng.IntN(maxCols)
	for _, i := range rng.Perm(maxCols)[:k] {
		label.ColumnBits[i] = 1
	}
	return label, nil
}

// inputKey hashes the encoded input and the schema shape.
func inputKey(enc encode.Encoding, s *schema.Schema) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	for _, id := range enc.InputIDs {
		binary.LittleEndian.PutUint64(buf[:], uint64(id))
		h.Write(buf[:])
	}
	for _, table := range s.Tables() {
		h.Write([]byte(table))
		h.Write([]byte{0})
	}
	return h.Sum64()
}
