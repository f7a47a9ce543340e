package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/developerashishcanada/carpoolreact/pkg/logger"
)

type countingHandler struct {
	mu       sync.Mutex
	active   map[string]int
	released int
}

func (h *countingHandler) Subscribe(ctx context.Context, c *Client, topic string) (func(), error) {
	if topic == "forbidden" {
		return nil, errors.New("not allowed")
	}
	h.mu.Lock()
	h.active[topic]++
	h.mu.Unlock()
	c.SendMessage(Message{Type: TypeSnapshot, Topic: topic, Data: []string{}})
	return func() {
		h.mu.Lock()
		h.active[topic]--
		h.released++
		h.mu.Unlock()
	}, nil
}

func newTestClient(t *testing.T) (*Client, *countingHandler) {
	t.Helper()
	handler := &countingHandler{active: make(map[string]int)}
	hub := NewHub(handler, Config{}, logger.NewNop())
	return NewClient(hub, nil, "user-1", logger.NewNop()), handler
}

func readMessage(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case data := <-c.Send:
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	default:
		t.Fatal("no message queued")
		return Message{}
	}
}

func TestClient_SubscribeOnce(t *testing.T) {
	c, handler := newTestClient(t)

	c.Subscribe("rides")
	c.Subscribe("rides")

	assert.Equal(t, 1, handler.active["rides"])
	assert.Equal(t, 1, c.SubscriptionCount())
	msg := readMessage(t, c)
	assert.Equal(t, TypeSnapshot, msg.Type)
	assert.Equal(t, "rides", msg.Topic)

	c.Unsubscribe("rides")
	assert.Equal(t, 0, handler.active["rides"])
	assert.Equal(t, 0, c.SubscriptionCount())
}

func TestClient_RefusedTopic(t *testing.T) {
	c, _ := newTestClient(t)

	c.Subscribe("forbidden")

	assert.Equal(t, 0, c.SubscriptionCount())
	msg := readMessage(t, c)
	assert.Equal(t, TypeError, msg.Type)
	assert.Equal(t, "forbidden", msg.Topic)
}

func TestClient_CloseReleasesEverything(t *testing.T) {
	c, handler := newTestClient(t)
	c.Subscribe("rides")
	c.Subscribe("requests")

	c.close()
	c.close()

	assert.Equal(t, 2, handler.released)
	assert.Equal(t, 0, c.SubscriptionCount())
	assert.Error(t, c.ctx.Err())

	// Late pushes from store goroutines are dropped, not panics.
	assert.NotPanics(t, func() {
		c.SendMessage(Message{Type: TypeSnapshot, Topic: "rides"})
	})
	c.Subscribe("chats")
	assert.Equal(t, 0, handler.active["chats"])
}

func TestClient_HandleMessage(t *testing.T) {
	c, handler := newTestClient(t)

	c.handleMessage([]byte(`{"type":"subscribe","topic":"wallet"}`))
	assert.Equal(t, 1, handler.active["wallet"])
	readMessage(t, c)

	c.handleMessage([]byte(`{"type":"ping"}`))
	assert.Equal(t, TypePong, readMessage(t, c).Type)

	c.handleMessage([]byte(`{"type":"unsubscribe","topic":"wallet"}`))
	assert.Equal(t, 0, handler.active["wallet"])

	c.handleMessage([]byte(`not json`))
}

func TestHub_RunStopsOnContext(t *testing.T) {
	handler := &countingHandler{active: make(map[string]int)}
	hub := NewHub(handler, Config{}, logger.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	c := NewClient(hub, nil, "user-1", logger.NewNop())
	hub.Register(c)
	c.Subscribe("rides")
	assert.Eventually(t, func() bool { return hub.GetActiveConnections() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, hub.GetActiveSubscriptions())

	cancel()
	<-done
	assert.Equal(t, 0, hub.GetActiveConnections())
	assert.Equal(t, 1, handler.released)
}
