// Package docstore describes the document database the tracker is built on:
// schemaless collections of JSON-shaped records with provider generated ids.
package docstore

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a document does not exist at the requested id.
var ErrNotFound = errors.New("document not found")

// ErrInvalidQuery reports a query the store cannot serve.
var ErrInvalidQuery = errors.New("invalid query")

// Collection names.
const (
	Farmers   = "farmers"
	Visits    = "visits"
	Purchases = "purchases"
	Crops     = "crops"
	Users     = "users"
)

// Document is a raw stored record.
type Document map[string]any

// Snapshot pairs a stored record with its id.
type Snapshot struct {
	ID   string
	Data Document
}

// Equal filters on an exact field value. Array fields match when any element
// matches, so "crops.id" selects farmers growing a given crop.
type Equal struct {
	Field string
	Value any
}

// Range is a half-open [Start, End) filter on a single field. A nil bound is
// unbounded.
type Range struct {
	Field string
	Start any
	End   any
}

// Query is the only read shape the store supports: zero or one equality
// filter, an optional range, one order field and a page size.
type Query struct {
	Collection string
	Where      *Equal
	Range      *Range
	OrderBy    string
	Descending bool
	Limit      int
	After      Cursor
}

// Page is one window of a query result.
type Page struct {
	Docs []Snapshot
	// Next resumes after the last document of this page. Empty when the page
	// is empty.
	Next Cursor
	// HasMore reports whether at least one more document follows this page.
	HasMore bool
}

// Store is implemented by the MongoDB and in-memory backends.
type Store interface {
	Create(ctx context.Context, collection string, doc Document) (string, error)
	Get(ctx context.Context, collection, id string) (Document, error)
	// Update merges fields into an existing document.
	Update(ctx context.Context, collection, id string, fields Document) error
	// Increment atomically adds the deltas to numeric fields.
	Increment(ctx context.Context, collection, id string, deltas map[string]float64) error
	// Delete removes a document. Deleting an absent id is not an error.
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, q Query) (Page, error)
}

// PrefixEnd is appended to a search term to close a prefix range.
const PrefixEnd = "\uf8ff"

// PrefixRange matches values of field starting with term, case-sensitively.
func PrefixRange(field, term string) *Range {
	return &Range{Field: field, Start: term, End: term + PrefixEnd}
}

// Validate checks the structural limits of q.
func (q Query) Validate() error {
	if q.Collection == "" {
		return fmt.Errorf("%w: collection is required", ErrInvalidQuery)
	}
	if q.Limit < 0 {
		return fmt.Errorf("%w: negative limit", ErrInvalidQuery)
	}
	if q.Range != nil && q.OrderBy != "" && q.Range.Field != q.OrderBy {
		return fmt.Errorf("%w: range on %s must be ordered by the same field, got %s", ErrInvalidQuery, q.Range.Field, q.OrderBy)
	}
	return nil
}

// OrderField returns the effective order field, defaulting to the range field.
func (q Query) OrderField() string {
	if q.OrderBy != "" {
		return q.OrderBy
	}
	if q.Range != nil {
		return q.Range.Field
	}
	return ""
}
