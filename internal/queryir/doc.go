// Package queryir provides the typed intermediate representation of a
// single-table SELECT query.
//
// A Query sits between three shapes of the same intent:
//
//	[query tokens] --Decode--> [Query] --querysql.Render--> [SQL text]
//	                              |
//	                              +--ToLabel(schema)--> [Label]
//
// SUPPORTED SUBSET:
//
// The representation covers one table, a projected column list (empty means
// every column), a flat WHERE clause joined by a single AND or OR, ORDER BY
// and LIMIT. Joins, subqueries, nested predicates and aggregates are out of
// scope; DecodeFull rejects them with a MalformedQueryError.
//
// DECODERS:
//
// Decode recovers only the SELECT and FROM parts and treats WHERE, ORDER and
// LIMIT as boundaries. It accumulates every token of the select region as a
// column, including '*' and aggregate punctuation, so its labels match
// historical results. DecodeFull additionally parses the flat clauses and
// maps a lone '*' to select-all.
//
// LABELS:
//
// A Label is a one-hot table indicator over the schema's table order
// followed by a multi-hot indicator over column slots. Selected columns that
// the table does not define are ignored.
//
// VALUES:
//
// Predicate values are a sealed variant (StringValue, IntValue, FloatValue),
// so a type switch over Value is exhaustive.
package queryir
