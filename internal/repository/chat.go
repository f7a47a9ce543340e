package repository

import (
	"context"

	"github.com/developerashishcanada/carpoolreact/internal/domain/chat"
	"github.com/developerashishcanada/carpoolreact/internal/store"
)

// ChatRepository stores chat threads keyed by thread id.
type ChatRepository struct {
	s store.Session
}

// NewChatRepository creates a chat repository over s.
func NewChatRepository(s store.Session) *ChatRepository {
	return &ChatRepository{s: s}
}

var _ chat.Repository = (*ChatRepository)(nil)

// Get retrieves a thread.
func (r *ChatRepository) Get(ctx context.Context, id string) (*chat.Thread, error) {
	var t chat.Thread
	if err := get(ctx, r.s, store.CollectionChats, id, chat.ErrThreadNotFound, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Save replaces a thread.
func (r *ChatRepository) Save(ctx context.Context, t *chat.Thread) error {
	return put(ctx, r.s, store.CollectionChats, t.ID, t)
}
