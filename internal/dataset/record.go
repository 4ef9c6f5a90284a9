package dataset

import (
	"encoding/json"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

// recordSchema constrains the fields the loader reads. Other Spider fields
// (query_toks, sql, ...) are allowed and ignored.
const recordSchema = `
#Record: {
	db_id:    string & =~"^[A-Za-z0-9_]+$"
	question: string & !=""
	query:    string & !=""
	...
}
`

type record struct {
	DBID     string `json:"db_id"`
	Question string `json:"question"`
	Query    string `json:"query"`
}

// recordValidator checks raw records against recordSchema.
//
// Thread-safety: not safe for concurrent use; the CUE context is shared.
type recordValidator struct {
	ctx    *cue.Context
	schema cue.Value
}

func newRecordValidator() (*recordValidator, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(recordSchema)
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile record schema: %w", err)
	}
	return &recordValidator{ctx: ctx, schema: v.LookupPath(cue.ParsePath("#Record"))}, nil
}

// validate decodes raw and checks it. Only the three fields the loader uses
// are handed to CUE, so large "sql" trees are not encoded.
func (r *recordValidator) validate(raw json.RawMessage) (record, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return record{}, fmt.Errorf("record is not an object: %w", err)
	}

	subset := make(map[string]any, 3)
	for _, key := range []string{"db_id", "question", "query"} {
		value, ok := fields[key]
		if !ok {
			continue
		}
		var decoded any
		if err := json.Unmarshal(value, &decoded); err != nil {
			return record{}, fmt.Errorf("field %s: %w", key, err)
		}
		if decoded != nil {
			subset[key] = decoded
		}
	}

	unified := r.schema.Unify(r.ctx.Encode(subset))
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return record{}, fmt.Errorf("%s", cueerrors.Details(err, nil))
	}

	var rec record
	if err := unified.Decode(&rec); err != nil {
		return record{}, err
	}
	return rec, nil
}
