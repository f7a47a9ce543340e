// Package memory is an in-process document store. It backs tests and local
// development and behaves like the hosted backends: tenant-scoped paths,
// equality queries, full snapshots to subscribers and serialized transactions.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/developerashishcanada/carpoolreact/internal/store"
)

// Store keeps documents in maps guarded by a lock.
type Store struct {
	appID string

	// writeMu serializes every mutation, transactional or not, so a
	// transaction's reads cannot be invalidated before it commits.
	writeMu sync.Mutex

	mu          sync.RWMutex
	collections map[string]map[string]store.Data
	closed      bool

	feed *store.Feed
}

// New creates an empty store scoped to appID.
func New(appID string) *Store {
	s := &Store{
		appID:       appID,
		collections: make(map[string]map[string]store.Data),
	}
	s.feed = store.NewFeed(func(ctx context.Context, collection string, filters []store.Filter) ([]store.Document, error) {
		return s.Query(ctx, collection, filters...)
	}, nil)
	return s
}

var _ store.Store = (*Store)(nil)

func (s *Store) path(collection string) string {
	return s.appID + "/" + collection
}

// Get retrieves a document.
func (s *Store) Get(ctx context.Context, collection, id string) (store.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return store.Document{}, store.ErrClosed
	}
	data, ok := s.collections[s.path(collection)][id]
	if !ok {
		return store.Document{}, store.ErrNotFound
	}
	return store.Document{ID: id, Data: store.Clone(data)}, nil
}

// Query returns documents matching every filter, ordered by id.
func (s *Store) Query(ctx context.Context, collection string, filters ...store.Filter) ([]store.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, store.ErrClosed
	}
	docs := make([]store.Document, 0)
	for id, data := range s.collections[s.path(collection)] {
		if store.Matches(data, filters) {
			docs = append(docs, store.Document{ID: id, Data: store.Clone(data)})
		}
	}
	store.SortByID(docs)
	return docs, nil
}

// Set creates or replaces a document.
func (s *Store) Set(ctx context.Context, collection, id string, data store.Data) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.commit([]write{{collection: collection, id: id, data: data, replace: true}})
}

// Update merges fields into an existing document.
func (s *Store) Update(ctx context.Context, collection, id string, fields store.Data) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.Get(ctx, collection, id); err != nil {
		return err
	}
	return s.commit([]write{{collection: collection, id: id, data: fields}})
}

// Add stores a document under a generated id.
func (s *Store) Add(ctx context.Context, collection string, data store.Data) (string, error) {
	id := uuid.NewString()
	if err := s.Set(ctx, collection, id, data); err != nil {
		return "", err
	}
	return id, nil
}

// Delete removes a document.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.commit([]write{{collection: collection, id: id, delete: true}})
}

// RunTransaction runs fn with staged writes and applies them only when fn
// succeeds.
func (s *Store) RunTransaction(ctx context.Context, fn store.TxFunc) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx := &transaction{store: s, staged: make(map[string]map[string]store.Data)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.commit(tx.writes)
}

// Subscribe starts a live query on collection.
func (s *Store) Subscribe(ctx context.Context, collection string, handler store.SnapshotHandler, filters ...store.Filter) (store.Subscription, error) {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return nil, store.ErrClosed
	}
	return s.feed.Subscribe(ctx, collection, handler, filters...)
}

// Close stops all subscriptions and rejects further calls.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.feed.Close()
	return nil
}

type write struct {
	collection string
	id         string
	data       store.Data
	replace    bool
	delete     bool
}

// commit applies writes under the data lock and wakes subscribers of every
// touched collection. Callers hold writeMu.
func (s *Store) commit(writes []write) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return store.ErrClosed
	}
	touched := make(map[string]struct{})
	for _, w := range writes {
		p := s.path(w.collection)
		coll, ok := s.collections[p]
		if !ok {
			coll = make(map[string]store.Data)
			s.collections[p] = coll
		}
		switch {
		case w.delete:
			delete(coll, w.id)
		case w.replace:
			coll[w.id] = store.Clone(w.data)
		default:
			merged := store.Clone(coll[w.id])
			if merged == nil {
				merged = make(store.Data)
			}
			for k, v := range store.Clone(w.data) {
				merged[k] = v
			}
			coll[w.id] = merged
		}
		touched[w.collection] = struct{}{}
	}
	s.mu.Unlock()

	for c := range touched {
		s.feed.Notify(c)
	}
	return nil
}

// transaction stages writes over the committed state.
type transaction struct {
	store  *Store
	staged map[string]map[string]store.Data
	writes []write
}

func (t *transaction) Get(ctx context.Context, collection, id string) (store.Document, error) {
	if coll, ok := t.staged[collection]; ok {
		if data, ok := coll[id]; ok {
			if data == nil {
				return store.Document{}, store.ErrNotFound
			}
			return store.Document{ID: id, Data: store.Clone(data)}, nil
		}
	}
	return t.store.Get(ctx, collection, id)
}

func (t *transaction) Query(ctx context.Context, collection string, filters ...store.Filter) ([]store.Document, error) {
	committed, err := t.store.Query(ctx, collection)
	if err != nil {
		return nil, err
	}
	merged := make(map[string]store.Data, len(committed))
	for _, d := range committed {
		merged[d.ID] = d.Data
	}
	for id, data := range t.staged[collection] {
		if data == nil {
			delete(merged, id)
			continue
		}
		merged[id] = data
	}
	docs := make([]store.Document, 0, len(merged))
	for id, data := range merged {
		if store.Matches(data, filters) {
			docs = append(docs, store.Document{ID: id, Data: store.Clone(data)})
		}
	}
	store.SortByID(docs)
	return docs, nil
}

func (t *transaction) Set(ctx context.Context, collection, id string, data store.Data) error {
	t.stage(collection, id, store.Clone(data))
	t.writes = append(t.writes, write{collection: collection, id: id, data: data, replace: true})
	return nil
}

func (t *transaction) Update(ctx context.Context, collection, id string, fields store.Data) error {
	current, err := t.Get(ctx, collection, id)
	if err != nil {
		return err
	}
	for k, v := range store.Clone(fields) {
		current.Data[k] = v
	}
	t.stage(collection, id, current.Data)
	t.writes = append(t.writes, write{collection: collection, id: id, data: fields})
	return nil
}

func (t *transaction) stage(collection, id string, data store.Data) {
	coll, ok := t.staged[collection]
	if !ok {
		coll = make(map[string]store.Data)
		t.staged[collection] = coll
	}
	coll[id] = data
}
