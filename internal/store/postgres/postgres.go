// Package postgres keeps store documents as JSONB rows in PostgreSQL.
//
// Every document lives in one table keyed by (tenant, collection, id).
// Writes send a NOTIFY on commit; a single pq.Listener turns those into
// snapshot refreshes for subscribers.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/developerashishcanada/carpoolreact/internal/store"
	"github.com/developerashishcanada/carpoolreact/pkg/logger"
)

// NotifyChannel is the LISTEN/NOTIFY channel for document changes.
const NotifyChannel = "carpool_documents"

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	tenant     TEXT        NOT NULL,
	collection TEXT        NOT NULL,
	id         TEXT        NOT NULL,
	data       JSONB       NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (tenant, collection, id)
);
CREATE INDEX IF NOT EXISTS documents_data_gin ON documents USING GIN (data);
`

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

var (
	_ Querier = (*sql.DB)(nil)
	_ Querier = (*sql.Tx)(nil)
)

// Store is a PostgreSQL document store for one tenant.
type Store struct {
	db     *sql.DB
	tenant string
	log    *logger.Logger

	feed     *store.Feed
	listener *pq.Listener
	done     chan struct{}
}

var _ store.Store = (*Store)(nil)

// New prepares the schema and starts listening for changes. dsn is used for
// the dedicated LISTEN connection.
func New(ctx context.Context, db *sql.DB, dsn, tenant string, log *logger.Logger) (*Store, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to create documents schema: %w", err)
	}

	s := &Store{
		db:     db,
		tenant: tenant,
		log:    log.Named("postgres-store"),
		done:   make(chan struct{}),
	}
	s.feed = store.NewFeed(func(ctx context.Context, collection string, filters []store.Filter) ([]store.Document, error) {
		return s.query(ctx, s.db, collection, filters, false)
	}, func(collection string, err error) {
		s.log.Error("Failed to refresh subscription",
			logger.String("collection", collection),
			logger.Err(err),
		)
	})

	s.listener = pq.NewListener(dsn, 10*time.Second, time.Minute, s.onListenerEvent)
	if err := s.listener.Listen(NotifyChannel); err != nil {
		s.listener.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", NotifyChannel, err)
	}
	go s.listen()

	return s, nil
}

func (s *Store) onListenerEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventDisconnected:
		s.log.Warn("Document listener disconnected", logger.Err(err))
	case pq.ListenerEventReconnected:
		s.log.Info("Document listener reconnected")
	case pq.ListenerEventConnectionAttemptFailed:
		s.log.Warn("Document listener reconnect failed", logger.Err(err))
	}
}

func (s *Store) listen() {
	ticker := time.NewTicker(90 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case n := <-s.listener.Notify:
			if n == nil {
				// Reconnected; changes may have been missed.
				s.feed.NotifyAll()
				continue
			}
			if collection, ok := parsePayload(n.Extra, s.tenant); ok {
				s.feed.Notify(collection)
			}
		case <-ticker.C:
			if err := s.listener.Ping(); err != nil {
				s.log.Warn("Document listener ping failed", logger.Err(err))
			}
		}
	}
}

// Get retrieves a document.
func (s *Store) Get(ctx context.Context, collection, id string) (store.Document, error) {
	return s.get(ctx, s.db, collection, id, false)
}

// Query returns documents matching every filter, ordered by id.
func (s *Store) Query(ctx context.Context, collection string, filters ...store.Filter) ([]store.Document, error) {
	return s.query(ctx, s.db, collection, filters, false)
}

// Set creates or replaces a document.
func (s *Store) Set(ctx context.Context, collection, id string, data store.Data) error {
	if err := s.set(ctx, s.db, collection, id, data); err != nil {
		return err
	}
	return s.notify(ctx, s.db, collection)
}

// Update merges fields into an existing document.
func (s *Store) Update(ctx context.Context, collection, id string, fields store.Data) error {
	if err := s.update(ctx, s.db, collection, id, fields); err != nil {
		return err
	}
	return s.notify(ctx, s.db, collection)
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
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE tenant = $1 AND collection = $2 AND id = $3`,
		s.tenant, collection, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return s.notify(ctx, s.db, collection)
}

// Subscribe starts a live query on collection.
func (s *Store) Subscribe(ctx context.Context, collection string, handler store.SnapshotHandler, filters ...store.Filter) (store.Subscription, error) {
	return s.feed.Subscribe(ctx, collection, handler, filters...)
}

// RunTransaction runs fn inside a database transaction. Transactions of one
// tenant are serialized with an advisory lock, so reads made by fn (including
// queries that find nothing) stay valid until commit.
func (s *Store) RunTransaction(ctx context.Context, fn store.TxFunc) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if _, err := sqlTx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, s.tenant); err != nil {
		return fmt.Errorf("failed to lock tenant: %w", err)
	}

	tx := &transaction{store: s, tx: sqlTx, touched: make(map[string]struct{})}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	for collection := range tx.touched {
		if err := s.notify(ctx, sqlTx, collection); err != nil {
			return err
		}
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close stops the listener and all subscriptions. The *sql.DB belongs to
// the caller.
func (s *Store) Close() error {
	select {
	case <-s.done:
		return nil
	default:
	}
	close(s.done)
	s.feed.Close()
	return s.listener.Close()
}

func (s *Store) get(ctx context.Context, q Querier, collection, id string, forUpdate bool) (store.Document, error) {
	query := `SELECT data FROM documents WHERE tenant = $1 AND collection = $2 AND id = $3`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var raw []byte
	err := q.QueryRowContext(ctx, query, s.tenant, collection, id).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Document{}, store.ErrNotFound
		}
		return store.Document{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}

	data, err := decode(raw)
	if err != nil {
		return store.Document{}, err
	}
	return store.Document{ID: id, Data: data}, nil
}

func (s *Store) query(ctx context.Context, q Querier, collection string, filters []store.Filter, forUpdate bool) ([]store.Document, error) {
	where, args := whereClause(filters, 3)
	query := `SELECT id, data FROM documents WHERE tenant = $1 AND collection = $2` + where + ` ORDER BY id`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	rows, err := q.QueryContext(ctx, query, append([]interface{}{s.tenant, collection}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer rows.Close()

	docs := make([]store.Document, 0)
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("query %s: %w", collection, err)
		}
		data, err := decode(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, store.Document{ID: id, Data: data})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	return docs, nil
}

func (s *Store) set(ctx context.Context, q Querier, collection, id string, data store.Data) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO documents (tenant, collection, id, data, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (tenant, collection, id)
		DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()
	`, s.tenant, collection, id, raw)
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *Store) update(ctx context.Context, q Querier, collection, id string, fields store.Data) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	res, err := q.ExecContext(ctx, `
		UPDATE documents SET data = data || $4::jsonb, updated_at = NOW()
		WHERE tenant = $1 AND collection = $2 AND id = $3
	`, s.tenant, collection, id, raw)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// notify queues a change notification. Inside a transaction it is delivered
// on commit and dropped on rollback.
func (s *Store) notify(ctx context.Context, q Querier, collection string) error {
	if _, err := q.ExecContext(ctx, `SELECT pg_notify($1, $2)`, NotifyChannel, payload(s.tenant, collection)); err != nil {
		return fmt.Errorf("notify %s: %w", collection, err)
	}
	return nil
}

// transaction runs store calls on a *sql.Tx, locking the rows it reads.
type transaction struct {
	store   *Store
	tx      *sql.Tx
	touched map[string]struct{}
}

func (t *transaction) Get(ctx context.Context, collection, id string) (store.Document, error) {
	return t.store.get(ctx, t.tx, collection, id, true)
}

func (t *transaction) Query(ctx context.Context, collection string, filters ...store.Filter) ([]store.Document, error) {
	return t.store.query(ctx, t.tx, collection, filters, true)
}

func (t *transaction) Set(ctx context.Context, collection, id string, data store.Data) error {
	if err := t.store.set(ctx, t.tx, collection, id, data); err != nil {
		return err
	}
	t.touched[collection] = struct{}{}
	return nil
}

func (t *transaction) Update(ctx context.Context, collection, id string, fields store.Data) error {
	if err := t.store.update(ctx, t.tx, collection, id, fields); err != nil {
		return err
	}
	t.touched[collection] = struct{}{}
	return nil
}

func decode(raw []byte) (store.Data, error) {
	var data store.Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return data, nil
}

// whereClause turns equality filters into JSONB text comparisons. Field names
// are bound as parameters, never spliced into the SQL. next is the first free
// placeholder number.
func whereClause(filters []store.Filter, next int) (string, []interface{}) {
	var b strings.Builder
	var args []interface{}
	for _, f := range filters {
		value, isNull := filterText(f.Value)
		if isNull {
			fmt.Fprintf(&b, " AND data->>$%d IS NULL", next)
			args = append(args, f.Field)
			next++
			continue
		}
		fmt.Fprintf(&b, " AND data->>$%d = $%d", next, next+1)
		args = append(args, f.Field, value)
		next += 2
	}
	return b.String(), args
}

// filterText renders a filter value the way ->> renders the stored field.
func filterText(v interface{}) (string, bool) {
	switch t := store.Normalize(v).(type) {
	case nil:
		return "", true
	case string:
		return t, false
	case bool:
		return strconv.FormatBool(t), false
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), false
	default:
		raw, _ := json.Marshal(t)
		return string(raw), false
	}
}

func payload(tenant, collection string) string {
	return tenant + "/" + collection
}

func parsePayload(extra, tenant string) (string, bool) {
	prefix := tenant + "/"
	if !strings.HasPrefix(extra, prefix) {
		return "", false
	}
	return strings.TrimPrefix(extra, prefix), true
}
