// Package store is the document-store boundary. Backends keep keyed JSON-like
// documents in named collections under a tenant (application id) prefix and
// push full-collection snapshots to subscribers.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
)

// Collections
const (
	CollectionProfiles = "profiles"
	CollectionRides    = "rides"
	CollectionRequests = "requests"
	CollectionWallets  = "wallets"
	CollectionLedger   = "ledger"
	CollectionChats    = "chats"
)

var (
	// ErrNotFound is returned when a requested document does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store closed")
)

// Data is the field map of a document.
type Data map[string]interface{}

// Document is one stored record.
type Document struct {
	ID   string `json:"id"`
	Data Data   `json:"data"`
}

// Filter is an equality condition on a top-level field.
type Filter struct {
	Field string
	Value interface{}
}

// Eq builds an equality filter.
func Eq(field string, value interface{}) Filter {
	return Filter{Field: field, Value: value}
}

// Snapshot is the full, immutable content of a (filtered) collection at one
// point in time. Consumers replace their view with it; they never patch.
type Snapshot struct {
	Collection string     `json:"collection"`
	Documents  []Document `json:"documents"`
}

// SnapshotHandler receives snapshots. It is called from a backend goroutine,
// one call at a time per subscription.
type SnapshotHandler func(Snapshot)

// Subscription is a live query. Unsubscribe is the only way to stop it.
type Subscription interface {
	Unsubscribe()
}

// Reader reads documents. Both Store and Tx satisfy it.
type Reader interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error)
}

// Writer writes documents. Both Store and Tx satisfy it.
type Writer interface {
	Set(ctx context.Context, collection, id string, data Data) error
	Update(ctx context.Context, collection, id string, fields Data) error
}

// Session is the surface repositories work against.
type Session interface {
	Reader
	Writer
}

// Tx is a transactional session. All reads should happen before writes.
type Tx interface {
	Session
}

// TxFunc runs inside a transaction; returning an error rolls it back.
type TxFunc func(ctx context.Context, tx Tx) error

// Store is a document store backend.
type Store interface {
	Session

	// Add stores a document under a generated id.
	Add(ctx context.Context, collection string, data Data) (string, error)

	// Delete removes a document. Deleting a missing document is not an error.
	Delete(ctx context.Context, collection, id string) error

	// Subscribe delivers an initial snapshot and one after every change.
	Subscribe(ctx context.Context, collection string, handler SnapshotHandler, filters ...Filter) (Subscription, error)

	// RunTransaction applies fn atomically.
	RunTransaction(ctx context.Context, fn TxFunc) error

	Close() error
}

// Encode turns a struct into document data through its JSON form.
func Encode(v interface{}) (Data, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var data Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return data, nil
}

// Decode fills v from document data.
func Decode(data Data, v interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

// Normalize returns a value in the same shape Encode produces, so filter
// values compare equal to stored fields.
func Normalize(v interface{}) interface{} {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}

// Matches reports whether data satisfies every filter.
func Matches(data Data, filters []Filter) bool {
	for _, f := range filters {
		got, ok := data[f.Field]
		if !ok {
			return false
		}
		if !reflect.DeepEqual(Normalize(got), Normalize(f.Value)) {
			return false
		}
	}
	return true
}

// SortByID orders documents by id so snapshots are deterministic.
func SortByID(docs []Document) {
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
}

// Clone deep-copies document data.
func Clone(data Data) Data {
	if data == nil {
		return nil
	}
	out := make(Data, len(data))
	for k, v := range data {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return map[string]interface{}(Clone(Data(t)))
	case Data:
		return Clone(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
