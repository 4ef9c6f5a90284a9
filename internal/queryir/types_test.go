package queryir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOperator(t *testing.T) {
	tests := []struct {
		in   string
		want Operator
		err  bool
	}{
		{"=", OpEqual, false},
		{"!=", OpNotEqual, false},
		{"<>", OpNotEqual, false},
		{">", OpGreater, false},
		{"<", OpLess, false},
		{">=", OpGreaterEqual, false},
		{"<=", OpLessEqual, false},
		{"like", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOperator(tt.in)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBoolOperator_Default(t *testing.T) {
	var zero BoolOperator
	assert.Equal(t, And, zero.OrDefault())
	assert.Equal(t, Or, Or.OrDefault())
	assert.True(t, zero.Valid())
	assert.False(t, BoolOperator("XOR").Valid())
}

func TestValue_String(t *testing.T) {
	tests := []struct {
		name  string
		value Value
		want  string
	}{
		{"string", StringValue("Paris"), "Paris"},
		{"int", IntValue(-42), "-42"},
		{"whole float", FloatValue(3), "3.0"},
		{"fraction", FloatValue(2.5), "2.5"},
		{"exponent", FloatValue(1e21), "1e+21"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.value.String())
		})
	}
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, IntValue(2010), ParseValue("2010"))
	assert.Equal(t, FloatValue(2.5), ParseValue("2.5"))
	assert.Equal(t, StringValue("new york"), ParseValue("new york"))
	assert.Equal(t, StringValue("inf"), ParseValue("inf"))
}

func TestQuery_Limit(t *testing.T) {
	assert.False(t, Query{}.HasLimit())
	assert.False(t, Query{Limit: LimitOf(0)}.HasLimit())
	assert.True(t, Query{Limit: LimitOf(3)}.HasLimit())
}

func TestQuery_JSON(t *testing.T) {
	q := Query{
		Select: []string{"name", "age"},
		From:   "singer",
		Where: Where{
			Predicates: []Predicate{
				{Column: "age", Operator: OpGreater, Value: IntValue(30)},
				{Column: "country", Operator: OpEqual, Value: StringValue("France")},
				{Column: "rating", Operator: OpGreaterEqual, Value: FloatValue(4.0)},
			},
			BoolOperator: Or,
		},
		OrderBy: []OrderBy{{Column: "age", Ascending: false}},
		Limit:   LimitOf(5),
	}

	data, err := json.Marshal(q)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"select": ["name", "age"],
		"from": "singer",
		"where": {
			"predicates": [
				{"column": "age", "operator": ">", "value": 30},
				{"column": "country", "operator": "=", "value": "France"},
				{"column": "rating", "operator": ">=", "value": 4.0}
			],
			"bool_operator": "OR"
		},
		"order_by": [{"column": "age", "ascending": false}],
		"limit": 5
	}`, string(data))

	var back Query
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, q, back)
}

func TestQuery_UnmarshalDefaults(t *testing.T) {
	var q Query
	require.NoError(t, json.Unmarshal([]byte(`{"select": [], "from": "t", "order_by": [{"column": "a"}]}`), &q))

	assert.Nil(t, q.Select)
	assert.True(t, q.SelectsAll())
	assert.Equal(t, []OrderBy{{Column: "a", Ascending: true}}, q.OrderBy)
	assert.Nil(t, q.Limit)
}

func TestQuery_UnmarshalRejects(t *testing.T) {
	tests := map[string]string{
		"unknown field": `{"from": "t", "group_by": ["a"]}`,
		"bool value":    `{"from": "t", "where": {"predicates": [{"column": "a", "operator": "=", "value": true}]}}`,
		"null value":    `{"from": "t", "where": {"predicates": [{"column": "a", "operator": "=", "value": null}]}}`,
	}

	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			var q Query
			assert.Error(t, json.Unmarshal([]byte(input), &q))
		})
	}
}

func TestIdentity(t *testing.T) {
	base := Query{From: "t", Where: Where{Predicates: []Predicate{{Column: "a", Operator: OpEqual, Value: IntValue(1)}}}}
	asString := Query{From: "t", Where: Where{Predicates: []Predicate{{Column: "a", Operator: OpEqual, Value: StringValue("1")}}}}
	explicitAnd := Query{From: "t", Where: Where{Predicates: base.Where.Predicates, BoolOperator: And}}

	id, err := Identity(base)
	require.NoError(t, err)
	other, err := Identity(asString)
	require.NoError(t, err)
	same, err := Identity(explicitAnd)
	require.NoError(t, err)

	assert.NotEqual(t, id, other, "value kind is part of the identity")
	assert.Equal(t, id, same, "unset bool operator means AND")
}
