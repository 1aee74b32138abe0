// Package store provides the document store and sequential counters backing
// scholarship applications, payments, coupons and orders.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrNotFound    = errors.New("DOCUMENT_NOT_FOUND")
	ErrConflict    = errors.New("DOCUMENT_ALREADY_EXISTS")
	ErrInvalidData = errors.New("INVALID_DOCUMENT_DATA")
)

// Document is a stored JSON object. Data always carries the document id
// under the "id" key so it decodes straight into model structs.
type Document struct {
	ID   string
	Data json.RawMessage
}

// Decode unmarshals the document into v.
func (d Document) Decode(v interface{}) error {
	if err := json.Unmarshal(d.Data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return nil
}

// Filter is an equality match on a top-level field.
type Filter struct {
	Field string
	Value interface{}
}

func Where(field string, value interface{}) Filter {
	return Filter{Field: field, Value: value}
}

// DocumentStore is a collection/id keyed JSON store.
type DocumentStore interface {
	Get(ctx context.Context, collection, id string) (*Document, error)
	Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error)
	Set(ctx context.Context, collection, id string, data interface{}) error
	// Create inserts a new document and fails with ErrConflict if the id is taken.
	Create(ctx context.Context, collection, id string, data interface{}) error
	Add(ctx context.Context, collection string, data interface{}) (string, error)
	// Update merges fields into an existing document.
	Update(ctx context.Context, collection, id string, fields map[string]interface{}) error
	// Increment atomically adds delta to a numeric field and returns the new value.
	Increment(ctx context.Context, collection, id, field string, delta int64) (int64, error)
}

// GetAs loads a document and decodes it into v.
func GetAs(ctx context.Context, s DocumentStore, collection, id string, v interface{}) error {
	doc, err := s.Get(ctx, collection, id)
	if err != nil {
		return err
	}
	return doc.Decode(v)
}

func newID() string {
	return uuid.NewString()
}

// toFields converts a struct or map into a JSON object map with the id set.
func toFields(id string, data interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	fields := make(map[string]interface{})
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: document must be a JSON object", ErrInvalidData)
	}
	fields["id"] = id
	return fields, nil
}

// filterJSON builds a containment object from equality filters.
func filterJSON(filters []Filter) ([]byte, error) {
	obj := make(map[string]interface{}, len(filters))
	for _, f := range filters {
		obj[f.Field] = f.Value
	}
	return json.Marshal(obj)
}
