package view

import (
	"context"
	"sync"

	"github.com/developerashishcanada/carpoolreact/internal/domain/request"
	"github.com/developerashishcanada/carpoolreact/internal/domain/ride"
	"github.com/developerashishcanada/carpoolreact/internal/store"
)

// Replica is a read-only local copy of store collections. Each snapshot
// replaces the previous one wholesale; nothing is merged.
type Replica struct {
	mu        sync.RWMutex
	snapshots map[string]store.Snapshot
	onChange  func(collection string)
	subs      []store.Subscription
}

// NewReplica creates an empty replica. onChange, if set, runs after every
// applied snapshot.
func NewReplica(onChange func(collection string)) *Replica {
	return &Replica{
		snapshots: make(map[string]store.Snapshot),
		onChange:  onChange,
	}
}

// Follow subscribes the replica to a filtered collection
func (r *Replica) Follow(ctx context.Context, s store.Store, collection string, filters ...store.Filter) error {
	sub, err := s.Subscribe(ctx, collection, r.Apply, filters...)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.subs = append(r.subs, sub)
	r.mu.Unlock()
	return nil
}

// Apply replaces the cached snapshot of its collection
func (r *Replica) Apply(snap store.Snapshot) {
	docs := make([]store.Document, len(snap.Documents))
	for i, d := range snap.Documents {
		docs[i] = store.Document{ID: d.ID, Data: store.Clone(d.Data)}
	}

	r.mu.Lock()
	r.snapshots[snap.Collection] = store.Snapshot{Collection: snap.Collection, Documents: docs}
	r.mu.Unlock()

	if r.onChange != nil {
		r.onChange(snap.Collection)
	}
}

// Snapshot returns the latest snapshot of collection and whether one arrived
func (r *Replica) Snapshot(collection string) (store.Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap, ok := r.snapshots[collection]
	return snap, ok
}

// Rides decodes the latest rides snapshot
func (r *Replica) Rides() ([]*ride.Ride, error) {
	snap, _ := r.Snapshot(store.CollectionRides)
	return DecodeRides(snap)
}

// Requests decodes the latest requests snapshot
func (r *Replica) Requests() ([]*request.Request, error) {
	snap, _ := r.Snapshot(store.CollectionRequests)
	return DecodeRequests(snap)
}

// Close unsubscribes everything the replica follows
func (r *Replica) Close() {
	r.mu.Lock()
	subs := r.subs
	r.subs = nil
	r.mu.Unlock()
	for _, sub := range subs {
		sub.Unsubscribe()
	}
}

// DecodeRides turns a rides snapshot into entities
func DecodeRides(snap store.Snapshot) ([]*ride.Ride, error) {
	rides := make([]*ride.Ride, 0, len(snap.Documents))
	for _, d := range snap.Documents {
		var rd ride.Ride
		if err := store.Decode(d.Data, &rd); err != nil {
			return nil, err
		}
		rides = append(rides, &rd)
	}
	return rides, nil
}

// DecodeRequests turns a requests snapshot into entities
func DecodeRequests(snap store.Snapshot) ([]*request.Request, error) {
	reqs := make([]*request.Request, 0, len(snap.Documents))
	for _, d := range snap.Documents {
		var req request.Request
		if err := store.Decode(d.Data, &req); err != nil {
			return nil, err
		}
		reqs = append(reqs, &req)
	}
	return reqs, nil
}
