package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/developerashishcanada/carpoolreact/pkg/logger"
)

// Message represents a WebSocket message
type Message struct {
	Type  string      `json:"type"`
	Topic string      `json:"topic,omitempty"`
	Data  interface{} `json:"data,omitempty"`
}

// Message types sent by the server
const (
	TypeSnapshot = "snapshot"
	TypeChatList = "chat_list"
	TypeError    = "error"
	TypePong     = "pong"
)

// TopicHandler starts a live feed for one client topic. It pushes messages
// with Client.SendMessage and returns a function that stops the feed. The
// context ends when the client disconnects.
type TopicHandler interface {
	Subscribe(ctx context.Context, c *Client, topic string) (release func(), err error)
}

// TopicHandlerFunc adapts a function to TopicHandler
type TopicHandlerFunc func(ctx context.Context, c *Client, topic string) (func(), error)

// Subscribe calls f
func (f TopicHandlerFunc) Subscribe(ctx context.Context, c *Client, topic string) (func(), error) {
	return f(ctx, c, topic)
}

// Config holds connection tuning
type Config struct {
	ReadBufferSize    int
	WriteBufferSize   int
	HeartbeatInterval time.Duration
}

// Hub maintains active client connections and routes topic subscriptions
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	handler    TopicHandler
	config     Config
	mu         sync.RWMutex
	logger     *logger.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(handler TopicHandler, config Config, log *logger.Logger) *Hub {
	if config.HeartbeatInterval <= 0 {
		config.HeartbeatInterval = 30 * time.Second
	}
	if config.ReadBufferSize <= 0 {
		config.ReadBufferSize = 1024
	}
	if config.WriteBufferSize <= 0 {
		config.WriteBufferSize = 1024
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		handler:    handler,
		config:     config,
		logger:     log.Named("websocket"),
	}
}

// Config returns the connection tuning of the hub
func (h *Hub) Config() Config {
	return h.config
}

// Run starts the hub's main loop. It returns when ctx is done, after
// disconnecting every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Info("Client registered",
				logger.String("client_id", client.ID),
				logger.String("user_id", client.UserID),
			)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
				h.logger.Info("Client unregistered",
					logger.String("client_id", client.ID),
				)
			}
			h.mu.Unlock()

		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				client.close()
			}
			h.mu.Unlock()
			return
		}
	}
}

// Register registers a new client
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister unregisters a client
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// SendToUser sends a message to every connection of a user
func (h *Hub) SendToUser(userID string, message Message) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("Failed to marshal message", logger.Err(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if client.UserID == userID && !client.send(data) {
			h.logger.Warn("Failed to send message to client",
				logger.String("user_id", userID),
				logger.String("client_id", client.ID),
			)
		}
	}
}

// GetActiveConnections returns the number of active connections
func (h *Hub) GetActiveConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetActiveSubscriptions returns the number of live topic feeds
func (h *Hub) GetActiveSubscriptions() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for client := range h.clients {
		count += client.SubscriptionCount()
	}
	return count
}
