// Package firestore backs the document store with Cloud Firestore. Documents
// of a tenant live under artifacts/<appID>/public/data/<collection>, and
// subscriptions use Firestore's native query snapshots.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/developerashishcanada/carpoolreact/internal/store"
	"github.com/developerashishcanada/carpoolreact/pkg/logger"
)

// Store is a Firestore document store for one tenant.
type Store struct {
	client *firestore.Client
	appID  string
	log    *logger.Logger

	mu   sync.Mutex
	subs map[*subscription]struct{}
}

var _ store.Store = (*Store)(nil)

// New wraps a Firestore client. The client is closed by Close.
func New(client *firestore.Client, appID string, log *logger.Logger) *Store {
	return &Store{
		client: client,
		appID:  appID,
		log:    log.Named("firestore-store"),
		subs:   make(map[*subscription]struct{}),
	}
}

// CollectionPath returns the tenant-scoped path of a collection.
func CollectionPath(appID, collection string) string {
	return "artifacts/" + appID + "/public/data/" + collection
}

func (s *Store) collection(name string) *firestore.CollectionRef {
	return s.client.Collection(CollectionPath(s.appID, name))
}

func (s *Store) query(collection string, filters []store.Filter) firestore.Query {
	q := s.collection(collection).Query
	for _, f := range filters {
		q = q.Where(f.Field, "==", store.Normalize(f.Value))
	}
	return q.OrderBy(firestore.DocumentID, firestore.Asc)
}

// Get retrieves a document.
func (s *Store) Get(ctx context.Context, collection, id string) (store.Document, error) {
	snap, err := s.collection(collection).Doc(id).Get(ctx)
	if err != nil {
		return store.Document{}, translate(err, collection, id)
	}
	return toDocument(snap), nil
}

// Query returns documents matching every filter, ordered by id.
func (s *Store) Query(ctx context.Context, collection string, filters ...store.Filter) ([]store.Document, error) {
	snaps, err := s.query(collection, filters).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	return toDocuments(snaps), nil
}

// Set creates or replaces a document.
func (s *Store) Set(ctx context.Context, collection, id string, data store.Data) error {
	if _, err := s.collection(collection).Doc(id).Set(ctx, map[string]interface{}(data)); err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}
	return nil
}

// Update merges fields into an existing document.
func (s *Store) Update(ctx context.Context, collection, id string, fields store.Data) error {
	if _, err := s.collection(collection).Doc(id).Update(ctx, updates(fields)); err != nil {
		return translate(err, collection, id)
	}
	return nil
}

// Add stores a document under a Firestore-generated id.
func (s *Store) Add(ctx context.Context, collection string, data store.Data) (string, error) {
	ref, _, err := s.collection(collection).Add(ctx, map[string]interface{}(data))
	if err != nil {
		return "", fmt.Errorf("add %s: %w", collection, err)
	}
	return ref.ID, nil
}

// Delete removes a document.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.collection(collection).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

// RunTransaction runs fn in a Firestore transaction. Firestore may call fn
// more than once on contention, so fn must not have side effects outside tx.
func (s *Store) RunTransaction(ctx context.Context, fn store.TxFunc) error {
	return s.client.RunTransaction(ctx, func(ctx context.Context, ftx *firestore.Transaction) error {
		return fn(ctx, &transaction{store: s, tx: ftx})
	})
}

// Subscribe starts a Firestore snapshot listener on the filtered collection.
func (s *Store) Subscribe(ctx context.Context, collection string, handler store.SnapshotHandler, filters ...store.Filter) (store.Subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{store: s, cancel: cancel}

	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	it := s.query(collection, filters).Snapshots(subCtx)
	go func() {
		defer it.Stop()
		defer sub.Unsubscribe()
		for {
			snap, err := it.Next()
			if err != nil {
				if subCtx.Err() == nil && !errors.Is(err, iterator.Done) && status.Code(err) != codes.Canceled {
					s.log.Error("Snapshot listener stopped",
						logger.String("collection", collection),
						logger.Err(err),
					)
				}
				return
			}
			docs, err := snap.Documents.GetAll()
			if err != nil {
				s.log.Error("Failed to read snapshot",
					logger.String("collection", collection),
					logger.Err(err),
				)
				continue
			}
			if subCtx.Err() != nil {
				return
			}
			handler(store.Snapshot{Collection: collection, Documents: toDocuments(docs)})
		}
	}()

	return sub, nil
}

// Close stops every listener and closes the client.
func (s *Store) Close() error {
	s.mu.Lock()
	subs := make([]*subscription, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
	return s.client.Close()
}

type subscription struct {
	store  *Store
	cancel context.CancelFunc
	once   sync.Once
}

func (sub *subscription) Unsubscribe() {
	sub.once.Do(func() {
		sub.cancel()
		sub.store.mu.Lock()
		delete(sub.store.subs, sub)
		sub.store.mu.Unlock()
	})
}

type transaction struct {
	store *Store
	tx    *firestore.Transaction
}

func (t *transaction) Get(ctx context.Context, collection, id string) (store.Document, error) {
	snap, err := t.tx.Get(t.store.collection(collection).Doc(id))
	if err != nil {
		return store.Document{}, translate(err, collection, id)
	}
	return toDocument(snap), nil
}

func (t *transaction) Query(ctx context.Context, collection string, filters ...store.Filter) ([]store.Document, error) {
	snaps, err := t.tx.Documents(t.store.query(collection, filters)).GetAll()
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	return toDocuments(snaps), nil
}

func (t *transaction) Set(ctx context.Context, collection, id string, data store.Data) error {
	return t.tx.Set(t.store.collection(collection).Doc(id), map[string]interface{}(data))
}

func (t *transaction) Update(ctx context.Context, collection, id string, fields store.Data) error {
	return t.tx.Update(t.store.collection(collection).Doc(id), updates(fields))
}

func updates(fields store.Data) []firestore.Update {
	out := make([]firestore.Update, 0, len(fields))
	for k, v := range fields {
		out = append(out, firestore.Update{Path: k, Value: v})
	}
	return out
}

func toDocument(snap *firestore.DocumentSnapshot) store.Document {
	return store.Document{ID: snap.Ref.ID, Data: store.Data(snap.Data())}
}

func toDocuments(snaps []*firestore.DocumentSnapshot) []store.Document {
	docs := make([]store.Document, 0, len(snaps))
	for _, snap := range snaps {
		docs = append(docs, toDocument(snap))
	}
	return docs
}

func translate(err error, collection, id string) error {
	if status.Code(err) == codes.NotFound {
		return store.ErrNotFound
	}
	return fmt.Errorf("%s/%s: %w", collection, id, err)
}
