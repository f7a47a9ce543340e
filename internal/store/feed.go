package store

import (
	"context"
	"sync"
)

// QueryFunc loads the current documents of a filtered collection.
type QueryFunc func(ctx context.Context, collection string, filters []Filter) ([]Document, error)

// Feed fans change notifications out to subscriptions. Backends without a
// native listener API call Notify after each committed write; every
// subscription re-queries and hands its handler a fresh full snapshot.
// Notifications coalesce, so a burst of writes produces at least one snapshot
// that reflects all of them.
type Feed struct {
	query   QueryFunc
	onError func(collection string, err error)

	mu     sync.Mutex
	subs   map[string]map[*feedSub]struct{}
	closed bool
}

// NewFeed creates a feed over query. onError may be nil.
func NewFeed(query QueryFunc, onError func(collection string, err error)) *Feed {
	return &Feed{
		query:   query,
		onError: onError,
		subs:    make(map[string]map[*feedSub]struct{}),
	}
}

type feedSub struct {
	feed       *Feed
	collection string
	filters    []Filter
	handler    SnapshotHandler

	notify chan struct{}
	done   chan struct{}
	once   sync.Once
}

// Subscribe registers handler and delivers the initial snapshot
// asynchronously. Cancelling ctx unsubscribes.
func (f *Feed) Subscribe(ctx context.Context, collection string, handler SnapshotHandler, filters ...Filter) (Subscription, error) {
	sub := &feedSub{
		feed:       f,
		collection: collection,
		filters:    filters,
		handler:    handler,
		notify:     make(chan struct{}, 1),
		done:       make(chan struct{}),
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, ErrClosed
	}
	if f.subs[collection] == nil {
		f.subs[collection] = make(map[*feedSub]struct{})
	}
	f.subs[collection][sub] = struct{}{}
	f.mu.Unlock()

	sub.poke()
	go sub.run()
	go func() {
		select {
		case <-ctx.Done():
			sub.Unsubscribe()
		case <-sub.done:
		}
	}()
	return sub, nil
}

// Notify wakes every subscription on collection.
func (f *Feed) Notify(collection string) {
	f.mu.Lock()
	subs := make([]*feedSub, 0, len(f.subs[collection]))
	for sub := range f.subs[collection] {
		subs = append(subs, sub)
	}
	f.mu.Unlock()

	for _, sub := range subs {
		sub.poke()
	}
}

// NotifyAll wakes every subscription, e.g. after a listener reconnect.
func (f *Feed) NotifyAll() {
	f.mu.Lock()
	var subs []*feedSub
	for _, set := range f.subs {
		for sub := range set {
			subs = append(subs, sub)
		}
	}
	f.mu.Unlock()

	for _, sub := range subs {
		sub.poke()
	}
}

// Len returns the number of live subscriptions.
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, set := range f.subs {
		n += len(set)
	}
	return n
}

// Close unsubscribes everything and refuses new subscriptions.
func (f *Feed) Close() {
	f.mu.Lock()
	f.closed = true
	var subs []*feedSub
	for _, set := range f.subs {
		for sub := range set {
			subs = append(subs, sub)
		}
	}
	f.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
}

func (s *feedSub) poke() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *feedSub) run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-s.done
		cancel()
	}()

	for {
		select {
		case <-s.done:
			return
		case <-s.notify:
			docs, err := s.feed.query(ctx, s.collection, s.filters)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if s.feed.onError != nil {
					s.feed.onError(s.collection, err)
				}
				continue
			}
			select {
			case <-s.done:
				return
			default:
			}
			s.handler(Snapshot{Collection: s.collection, Documents: docs})
		}
	}
}

// Unsubscribe stops delivery. It is safe to call more than once.
func (s *feedSub) Unsubscribe() {
	s.once.Do(func() {
		s.feed.mu.Lock()
		delete(s.feed.subs[s.collection], s)
		s.feed.mu.Unlock()
		close(s.done)
	})
}
