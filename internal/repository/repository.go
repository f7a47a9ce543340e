// Package repository maps domain entities onto store documents. Every
// repository works against a store.Session, so the same type serves plain
// calls on the Store and calls inside a transaction.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/developerashishcanada/carpoolreact/internal/store"
)

// Repositories groups the typed repositories built over one session.
type Repositories struct {
	Profiles *ProfileRepository
	Rides    *RideRepository
	Requests *RequestRepository
	Wallets  *WalletRepository
	Chats    *ChatRepository
}

// New builds every repository over s. Pass the Store for plain calls and
// the Tx inside a transaction.
func New(s store.Session) *Repositories {
	return &Repositories{
		Profiles: NewProfileRepository(s),
		Rides:    NewRideRepository(s),
		Requests: NewRequestRepository(s),
		Wallets:  NewWalletRepository(s),
		Chats:    NewChatRepository(s),
	}
}

func get(ctx context.Context, s store.Reader, collection, id string, notFound error, v interface{}) error {
	doc, err := s.Get(ctx, collection, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound
		}
		return fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return store.Decode(doc.Data, v)
}

func put(ctx context.Context, s store.Writer, collection, id string, v interface{}) error {
	data, err := store.Encode(v)
	if err != nil {
		return err
	}
	if err := s.Set(ctx, collection, id, data); err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}
	return nil
}

// list decodes every document matching filters, calling decode for each
func list(ctx context.Context, s store.Reader, collection string, decode func(store.Data) error, filters ...store.Filter) error {
	docs, err := s.Query(ctx, collection, filters...)
	if err != nil {
		return fmt.Errorf("query %s: %w", collection, err)
	}
	for _, doc := range docs {
		if err := decode(doc.Data); err != nil {
			return err
		}
	}
	return nil
}
