// Package eval runs a model over dataset examples and measures how well its
// predicted labels match the labels of the gold queries.
//
// # Evaluation
//
// For every example the Evaluator:
//
//  1. looks up the database schema (examples without one are skipped),
//  2. encodes the schema text followed by the question,
//  3. decodes the gold query tokens into a Query and projects it onto the
//     schema as a label,
//  4. asks the model for a predicted label and compares the two elementwise.
//
// Examples are independent, so they are evaluated by a bounded pool of
// workers; Result.Records keeps the input order regardless.
//
// # Conformance Cases
//
// Decoder, labeling and rendering behavior can be pinned with YAML case files:
//
//	name: concert_singer
//	description: "Decoding and labeling over the concert_singer schema"
//	schema_file: concert_singer.sql
//	cases:
//	  - name: select_two_columns
//	    sql: "SELECT name, age FROM singer"
//	    expect:
//	      select: [name, age]
//	      from: singer
//	      label: [0, 1, 0, 0, 0, 1, 0, 0, 0, 1, 0]
//	      render: "SELECT name, age FROM singer;"
//	  - name: unknown_table
//	    tokens: [select, a, from, nowhere]
//	    expect:
//	      error: unknown_table
//
// Unknown fields are rejected so typos fail loudly.
package eval
