package compiler

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/asaidimu/go-sqlgate/core/query"
)

// Operation selects the statement a QueryDocument compiles to.
type Operation string

const (
	OperationSelect Operation = "select"
	OperationInsert Operation = "insert"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// QueryDocument is the request-facing description of a statement. Filter
// and Having use the Mongo-style JSON accepted by query.ParseFilter and are
// treated as untrusted; Sort uses the "name,-created_at" form.
type QueryDocument struct {
	Operation  Operation             `json:"operation,omitempty"`
	Dialect    string                `json:"dialect,omitempty"`
	Table      string                `json:"table"`
	Fields     []string              `json:"fields,omitempty"`
	Computed   []query.ComputedField `json:"computed,omitempty"`
	Aggregates []query.Aggregate     `json:"aggregates,omitempty"`
	Filter     json.RawMessage       `json:"filter,omitempty"`
	GroupBy    []string              `json:"group_by,omitempty"`
	Having     json.RawMessage       `json:"having,omitempty"`
	Sort       string                `json:"sort,omitempty"`
	Limit      *int                  `json:"limit,omitempty"`
	Offset     *int                  `json:"offset,omitempty"`
	Page       *int                  `json:"page,omitempty"`
	After      string                `json:"after,omitempty"`
	Before     string                `json:"before,omitempty"`

	Columns   []string           `json:"columns,omitempty"`
	Rows      [][]query.Value    `json:"rows,omitempty"`
	Set       []query.Assignment `json:"set,omitempty"`
	Returning []string           `json:"returning,omitempty"`

	// Unscoped allows an UPDATE or DELETE that ends up with no WHERE clause.
	Unscoped bool `json:"unscoped,omitempty"`
}

// ParseDocument decodes a QueryDocument, rejecting unknown keys and
// trailing data.
func ParseDocument(data []byte) (QueryDocument, error) {
	var doc QueryDocument
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return QueryDocument{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if dec.More() {
		return QueryDocument{}, fmt.Errorf("%w: trailing data after document", ErrInvalidDocument)
	}
	return doc, nil
}

func (d QueryDocument) operation() Operation {
	if d.Operation == "" {
		return OperationSelect
	}
	return d.Operation
}

func present(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}
