package queryir

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/clasql/internal/canonical"
)

// queryJSON is the wire form of a Query:
//
//	{"select": ["a"], "from": "t",
//	 "where": {"predicates": [{"column": "a", "operator": "=", "value": 1}], "bool_operator": "AND"},
//	 "order_by": [{"column": "a", "ascending": false}], "limit": 5}
type queryJSON struct {
	Select  []string      `json:"select"`
	From    string        `json:"from"`
	Where   *whereJSON    `json:"where,omitempty"`
	OrderBy []orderByJSON `json:"order_by,omitempty"`
	Limit   *int          `json:"limit,omitempty"`
}

type whereJSON struct {
	Predicates   []predicateJSON `json:"predicates"`
	BoolOperator BoolOperator    `json:"bool_operator,omitempty"`
}

type predicateJSON struct {
	Column   string          `json:"column"`
	Operator Operator        `json:"operator"`
	Value    json.RawMessage `json:"value"`
}

type orderByJSON struct {
	Column    string `json:"column"`
	Ascending *bool  `json:"ascending,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (q Query) MarshalJSON() ([]byte, error) {
	out := queryJSON{Select: q.Select, From: q.From, Limit: q.Limit}
	if out.Select == nil {
		out.Select = []string{}
	}
	if !q.Where.IsEmpty() {
		w := &whereJSON{BoolOperator: q.Where.BoolOperator.OrDefault()}
		for _, p := range q.Where.Predicates {
			raw, err := marshalValue(p.Value)
			if err != nil {
				return nil, fmt.Errorf("predicate on %s: %w", p.Column, err)
			}
			w.Predicates = append(w.Predicates, predicateJSON{Column: p.Column, Operator: p.Operator, Value: raw})
		}
		out.Where = w
	}
	for _, o := range q.OrderBy {
		asc := o.Ascending
		out.OrderBy = append(out.OrderBy, orderByJSON{Column: o.Column, Ascending: &asc})
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler. Numeric values without a
// fraction or exponent decode as IntValue, other numbers as FloatValue.
// A missing "ascending" means ascending.
func (q *Query) UnmarshalJSON(data []byte) error {
	var in queryJSON
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		return err
	}

	out := Query{From: in.From, Limit: in.Limit}
	if len(in.Select) > 0 {
		out.Select = in.Select
	}
	if in.Where != nil {
		out.Where.BoolOperator = in.Where.BoolOperator
		for i, p := range in.Where.Predicates {
			v, err := unmarshalValue(p.Value)
			if err != nil {
				return fmt.Errorf("where.predicates[%d].value: %w", i, err)
			}
			out.Where.Predicates = append(out.Where.Predicates, Predicate{Column: p.Column, Operator: p.Operator, Value: v})
		}
	}
	for _, o := range in.OrderBy {
		term := OrderBy{Column: o.Column, Ascending: true}
		if o.Ascending != nil {
			term.Ascending = *o.Ascending
		}
		out.OrderBy = append(out.OrderBy, term)
	}

	*q = out
	return nil
}

func marshalValue(v Value) (json.RawMessage, error) {
	switch val := v.(type) {
	case StringValue:
		return json.Marshal(string(val))
	case IntValue:
		return json.Marshal(int64(val))
	case FloatValue:
		return json.RawMessage(val.String()), nil
	case nil:
		return nil, fmt.Errorf("missing value")
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

func unmarshalValue(raw json.RawMessage) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	switch val := v.(type) {
	case string:
		return StringValue(val), nil
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return IntValue(n), nil
		}
		f, err := val.Float64()
		if err != nil {
			return nil, err
		}
		return FloatValue(f), nil
	default:
		return nil, fmt.Errorf("value must be a string or number, got %T", v)
	}
}

// canonicalMap is the float-free form hashed by Identity. Values carry their
// variant so 1, 1.0 and "1" stay distinct.
func (q Query) canonicalMap() map[string]any {
	sel := q.Select
	if sel == nil {
		sel = []string{}
	}

	preds := make([]any, 0, len(q.Where.Predicates))
	for _, p := range q.Where.Predicates {
		kind := "string"
		switch p.Value.(type) {
		case IntValue:
			kind = "int"
		case FloatValue:
			kind = "float"
		}
		value := ""
		if p.Value != nil {
			value = p.Value.String()
		}
		preds = append(preds, map[string]any{
			"column":   p.Column,
			"operator": string(p.Operator),
			"kind":     kind,
			"value":    value,
		})
	}

	order := make([]any, 0, len(q.OrderBy))
	for _, o := range q.OrderBy {
		order = append(order, map[string]any{"column": o.Column, "ascending": o.Ascending})
	}

	limit := 0
	if q.Limit != nil {
		limit = *q.Limit
	}

	return map[string]any{
		"select":        sel,
		"from":          q.From,
		"predicates":    preds,
		"bool_operator": string(q.Where.BoolOperator.OrDefault()),
		"order_by":      order,
		"limit":         limit,
	}
}

// Identity returns a content hash of q. Queries that render identically and
// carry the same value types share an identity.
func Identity(q Query) (string, error) {
	return canonical.Hash(canonical.DomainQuery, q.canonicalMap())
}
