package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/developerashishcanada/carpoolreact/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 1024
)

// Client represents a WebSocket client connection
type Client struct {
	ID     string
	UserID string
	Hub    *Hub
	Conn   *websocket.Conn
	Send   chan []byte

	ctx           context.Context
	cancel        context.CancelFunc
	subscriptions map[string]func()
	closed        bool
	mu            sync.RWMutex
	logger        *logger.Logger
}

// ClientMessage represents a message from the client
type ClientMessage struct {
	Type  string `json:"type"`
	Topic string `json:"topic,omitempty"`
}

// NewClient creates a new WebSocket client
func NewClient(hub *Hub, conn *websocket.Conn, userID string, log *logger.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		ID:            uuid.NewString(),
		UserID:        userID,
		Hub:           hub,
		Conn:          conn,
		Send:          make(chan []byte, 256),
		ctx:           ctx,
		cancel:        cancel,
		subscriptions: make(map[string]func()),
		logger:        log,
	}
}

// ReadPump pumps messages from the WebSocket connection to the hub
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	pongWait := c.Hub.config.HeartbeatInterval * 10 / 9
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket read error",
					logger.Err(err),
					logger.String("client_id", c.ID),
				)
			}
			break
		}

		c.handleMessage(message)
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.Hub.config.HeartbeatInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// One frame per message: every frame is a complete JSON document.
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes incoming messages from the client
func (c *Client) handleMessage(message []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.logger.Warn("Failed to unmarshal client message",
			logger.Err(err),
			logger.String("client_id", c.ID),
		)
		return
	}

	switch msg.Type {
	case "subscribe":
		c.Subscribe(msg.Topic)
	case "unsubscribe":
		c.Unsubscribe(msg.Topic)
	case "ping":
		c.SendMessage(Message{Type: TypePong})
	default:
		c.logger.Warn("Unknown message type",
			logger.String("type", msg.Type),
			logger.String("client_id", c.ID),
		)
	}
}

// Subscribe starts the feed for topic. Subscribing twice is a no-op.
func (c *Client) Subscribe(topic string) {
	c.mu.RLock()
	_, exists := c.subscriptions[topic]
	closed := c.closed
	c.mu.RUnlock()
	if exists || closed {
		return
	}

	release, err := c.Hub.handler.Subscribe(c.ctx, c, topic)
	if err != nil {
		c.logger.Warn("Subscription refused",
			logger.String("client_id", c.ID),
			logger.String("topic", topic),
			logger.Err(err),
		)
		c.SendMessage(Message{Type: TypeError, Topic: topic, Data: err.Error()})
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		release()
		return
	}
	if _, exists := c.subscriptions[topic]; exists {
		c.mu.Unlock()
		release()
		return
	}
	c.subscriptions[topic] = release
	c.mu.Unlock()

	c.logger.Info("Client subscribed",
		logger.String("client_id", c.ID),
		logger.String("topic", topic),
	)
}

// Unsubscribe stops the feed for topic
func (c *Client) Unsubscribe(topic string) {
	c.mu.Lock()
	release, ok := c.subscriptions[topic]
	delete(c.subscriptions, topic)
	c.mu.Unlock()
	if !ok {
		return
	}

	release()
	c.logger.Info("Client unsubscribed",
		logger.String("client_id", c.ID),
		logger.String("topic", topic),
	)
}

// SubscriptionCount returns the number of live topic feeds of the client
func (c *Client) SubscriptionCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subscriptions)
}

// SendMessage queues a message for the client. Messages for a closed client
// are dropped.
func (c *Client) SendMessage(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("Failed to marshal message",
			logger.Err(err),
			logger.String("client_id", c.ID),
		)
		return
	}

	if !c.send(data) {
		c.logger.Warn("Client send buffer full",
			logger.String("client_id", c.ID),
		)
	}
}

func (c *Client) send(data []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return true
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// close releases every subscription and closes Send. It is idempotent.
func (c *Client) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	subs := c.subscriptions
	c.subscriptions = make(map[string]func())
	close(c.Send)
	c.mu.Unlock()

	c.cancel()
	for _, release := range subs {
		release()
	}
}
