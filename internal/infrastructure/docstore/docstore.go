// Package docstore provides the hierarchical document store the compliance
// services are written against. Paths are slash-separated, company-scoped
// (e.g. "compliance/audit/<companyID>/<recordID>"), values are JSON documents.
// The store guarantees at-least-once durability per write and last-write-wins
// on concurrent updates to the same path; it enforces no relational integrity.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Store is the key-path document store boundary. All compliance services are
// thin read-modify-write layers over this interface.
type Store interface {
	// Get decodes the document at path into dest. Returns ErrPathNotFound
	// if no document exists at the path.
	Get(ctx context.Context, path string, dest interface{}) error

	// Set writes the document at path, replacing any existing document.
	Set(ctx context.Context, path string, value interface{}) error

	// Update merges the given fields into the document at path. Returns
	// ErrPathNotFound if no document exists at the path.
	Update(ctx context.Context, path string, fields map[string]interface{}) error

	// Push writes value under a newly generated unique child key of path
	// and returns the key.
	Push(ctx context.Context, path string, value interface{}) (string, error)

	// Remove deletes the document at path and any documents below it.
	// Removing a missing path is not an error.
	Remove(ctx context.Context, path string) error

	// Query returns the direct children of path, optionally ordered and
	// range-filtered by a document field.
	Query(ctx context.Context, path string, opts QueryOptions) ([]Snapshot, error)

	// Close releases any underlying resources.
	Close() error
}

// QueryOptions mirrors the ordered/ranged child queries the services rely on.
// OrderBy names a top-level document field; StartAt/EndAt bound its value
// (string comparison, which orders RFC 3339 UTC timestamps correctly).
// LimitToLast keeps only the highest N entries in the ordering.
type QueryOptions struct {
	OrderBy     string
	StartAt     string
	EndAt       string
	LimitToLast int
}

// Snapshot is one child document returned by Query.
type Snapshot struct {
	Key  string
	data []byte
}

// NewSnapshot creates a snapshot from raw JSON (used by store implementations)
func NewSnapshot(key string, data []byte) Snapshot {
	return Snapshot{Key: key, data: data}
}

// Decode unmarshals the snapshot document into dest
func (s Snapshot) Decode(dest interface{}) error {
	if err := json.Unmarshal(s.data, dest); err != nil {
		return fmt.Errorf("decode document %s: %w", s.Key, err)
	}
	return nil
}

// Field extracts a top-level string field from the snapshot document
func (s Snapshot) Field(name string) string {
	var doc map[string]interface{}
	if err := json.Unmarshal(s.data, &doc); err != nil {
		return ""
	}
	if v, ok := doc[name].(string); ok {
		return v
	}
	return ""
}

// ErrPathNotFound indicates no document exists at the requested path
type ErrPathNotFound struct {
	Path string
}

func (e ErrPathNotFound) Error() string {
	return fmt.Sprintf("no document at path: %s", e.Path)
}

// IsNotFound reports whether err is an ErrPathNotFound
func IsNotFound(err error) bool {
	var e ErrPathNotFound
	return errors.As(err, &e)
}
