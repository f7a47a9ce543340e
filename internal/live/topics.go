// Package live turns document-store snapshots into websocket pushes. Each
// topic is a live query; every snapshot is re-projected in full and sent to
// the client, which replaces its view with it.
package live

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/developerashishcanada/carpoolreact/internal/domain/chat"
	"github.com/developerashishcanada/carpoolreact/internal/domain/request"
	"github.com/developerashishcanada/carpoolreact/internal/domain/ride"
	"github.com/developerashishcanada/carpoolreact/internal/domain/wallet"
	"github.com/developerashishcanada/carpoolreact/internal/repository"
	"github.com/developerashishcanada/carpoolreact/internal/service/marketplace"
	"github.com/developerashishcanada/carpoolreact/internal/store"
	"github.com/developerashishcanada/carpoolreact/internal/view"
	apperrors "github.com/developerashishcanada/carpoolreact/pkg/errors"
	"github.com/developerashishcanada/carpoolreact/pkg/logger"
	"github.com/developerashishcanada/carpoolreact/pkg/monitoring"
	"github.com/developerashishcanada/carpoolreact/pkg/websocket"
)

// Topics a client may subscribe to. A single thread is "chat:<thread id>".
const (
	TopicRides        = "rides"
	TopicOpenRequests = "open_requests"
	TopicRequests     = "requests"
	TopicWallet       = "wallet"
	TopicChats        = "chats"
	TopicChatPrefix   = "chat:"
)

// ErrUnknownTopic is returned for topics no feed serves
var ErrUnknownTopic = apperrors.Validation("Unknown topic", "topic")

// Topics serves websocket topic subscriptions from the store
type Topics struct {
	store  store.Store
	svc    *marketplace.Service
	nr     *monitoring.NewRelicApp
	logger *logger.Logger
	active int64
}

var _ websocket.TopicHandler = (*Topics)(nil)

// NewTopics creates the topic handler. nr may be nil.
func NewTopics(s store.Store, svc *marketplace.Service, nr *monitoring.NewRelicApp, log *logger.Logger) *Topics {
	return &Topics{
		store:  s,
		svc:    svc,
		nr:     nr,
		logger: log.Named("live"),
	}
}

// Subscribe starts the feed for topic on behalf of the connected user
func (t *Topics) Subscribe(ctx context.Context, c *websocket.Client, topic string) (func(), error) {
	var (
		release func()
		err     error
	)
	switch {
	case topic == TopicRides:
		release, err = t.follow(ctx, c, topic, store.CollectionRides, t.rides, store.Eq("status", string(ride.StatusActive)))
	case topic == TopicOpenRequests:
		release, err = t.follow(ctx, c, topic, store.CollectionRequests, t.requests, store.Eq("status", string(request.StatusSearching)))
	case topic == TopicRequests:
		release, err = t.myRequests(ctx, c)
	case topic == TopicWallet:
		release, err = t.follow(ctx, c, topic, store.CollectionWallets, t.wallet(c.UserID), store.Eq("owner_id", c.UserID))
	case topic == TopicChats:
		release, err = t.chatList(ctx, c)
	case strings.HasPrefix(topic, TopicChatPrefix):
		release, err = t.thread(ctx, c, strings.TrimPrefix(topic, TopicChatPrefix))
	default:
		return nil, ErrUnknownTopic
	}
	if err != nil {
		return nil, err
	}
	t.track(1)

	var once atomic.Bool
	return func() {
		if once.CompareAndSwap(false, true) {
			release()
			t.track(-1)
		}
	}, nil
}

// Active returns the number of live topic feeds
func (t *Topics) Active() int {
	return int(atomic.LoadInt64(&t.active))
}

func (t *Topics) track(delta int64) {
	n := atomic.AddInt64(&t.active, delta)
	t.nr.RecordSubscriptions(int(n))
}

// project turns a snapshot into the payload pushed to the client
type project func(store.Snapshot) (interface{}, error)

func (t *Topics) follow(ctx context.Context, c *websocket.Client, topic, collection string, fn project, filters ...store.Filter) (func(), error) {
	sub, err := t.store.Subscribe(ctx, collection, func(snap store.Snapshot) {
		t.push(c, topic, snap, fn)
	}, filters...)
	if err != nil {
		return nil, err
	}
	return sub.Unsubscribe, nil
}

func (t *Topics) push(c *websocket.Client, topic string, snap store.Snapshot, fn project) {
	data, err := fn(snap)
	if err != nil {
		t.logger.Error("Failed to project snapshot",
			logger.String("topic", topic),
			logger.String("client_id", c.ID),
			logger.Err(err),
		)
		return
	}
	c.SendMessage(websocket.Message{Type: websocket.TypeSnapshot, Topic: topic, Data: data})
}

func (t *Topics) rides(snap store.Snapshot) (interface{}, error) {
	rides, err := view.DecodeRides(snap)
	if err != nil {
		return nil, err
	}
	repository.SortRides(rides)
	return rides, nil
}

func (t *Topics) requests(snap store.Snapshot) (interface{}, error) {
	reqs, err := view.DecodeRequests(snap)
	if err != nil {
		return nil, err
	}
	sortRequests(reqs)
	return reqs, nil
}

func (t *Topics) wallet(ownerID string) project {
	return func(snap store.Snapshot) (interface{}, error) {
		if len(snap.Documents) == 0 {
			return wallet.NewBalance(ownerID), nil
		}
		var b wallet.Balance
		if err := store.Decode(snap.Documents[0].Data, &b); err != nil {
			return nil, err
		}
		return &b, nil
	}
}

// myRequests follows the requests on a driver's rides, or a rider's own
func (t *Topics) myRequests(ctx context.Context, c *websocket.Client) (func(), error) {
	caller, err := t.svc.Caller(ctx, c.UserID)
	if err != nil {
		return nil, err
	}
	if caller.Profile == nil {
		return nil, apperrors.ErrNotRegistered
	}
	field := "rider_id"
	if caller.Profile.IsDriver() {
		field = "driver_id"
	}
	return t.follow(ctx, c, TopicRequests, store.CollectionRequests, t.requests, store.Eq(field, c.UserID))
}

// chatList keeps a replica of rides and requests and recomputes the chat
// list from both on every snapshot
func (t *Topics) chatList(ctx context.Context, c *websocket.Client) (func(), error) {
	caller, err := t.svc.Caller(ctx, c.UserID)
	if err != nil {
		return nil, err
	}
	if caller.Profile == nil {
		return nil, apperrors.ErrNotRegistered
	}

	var replica *view.Replica
	replica = view.NewReplica(func(string) {
		rides, err := replica.Rides()
		if err != nil {
			t.logger.Error("Failed to decode rides", logger.Err(err))
			return
		}
		reqs, err := replica.Requests()
		if err != nil {
			t.logger.Error("Failed to decode requests", logger.Err(err))
			return
		}
		c.SendMessage(websocket.Message{
			Type:  websocket.TypeChatList,
			Topic: TopicChats,
			Data:  view.ChatList(c.UserID, rides, reqs),
		})
	})
	for _, collection := range []string{store.CollectionRides, store.CollectionRequests} {
		if err := replica.Follow(ctx, t.store, collection); err != nil {
			replica.Close()
			return nil, err
		}
	}
	return replica.Close, nil
}

// thread follows one conversation the user takes part in
func (t *Topics) thread(ctx context.Context, c *websocket.Client, threadID string) (func(), error) {
	if threadID == "" {
		return nil, apperrors.Validation("Thread id is required", "topic")
	}
	caller, err := t.svc.Caller(ctx, c.UserID)
	if err != nil {
		return nil, err
	}
	if _, err := t.svc.Thread(ctx, caller, threadID); err != nil {
		return nil, err
	}

	topic := fmt.Sprintf("%s%s", TopicChatPrefix, threadID)
	return t.follow(ctx, c, topic, store.CollectionChats, func(snap store.Snapshot) (interface{}, error) {
		for _, d := range snap.Documents {
			if d.ID != threadID {
				continue
			}
			var th chat.Thread
			if err := store.Decode(d.Data, &th); err != nil {
				return nil, err
			}
			return &th, nil
		}
		return nil, chat.ErrThreadNotFound
	}, store.Eq("id", threadID))
}

func sortRequests(reqs []*request.Request) {
	sort.SliceStable(reqs, func(i, j int) bool {
		return reqs[i].CreatedAt.Before(reqs[j].CreatedAt)
	})
}
