package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"kyro-backend/internal/models"
	"kyro-backend/internal/session"
)

const (
	channelPrefix = "session_updates:"
	writeWait     = 10 * time.Second
	subscribeWait = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// TokenParser resolves a bearer token to its user id.
type TokenParser interface {
	ParseUserID(token string) (uuid.UUID, error)
}

type client struct {
	conn *websocket.Conn // nil until the handshake completes
	mu   sync.Mutex      // gorilla allows one concurrent writer
}

func (c *client) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return errors.New("connection not established")
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
	}
}

// subscription is one Redis channel subscription shared by a session's subscribers.
type subscription struct {
	refs   int
	cancel context.CancelFunc
	ready  chan struct{} // closed once Redis confirms the subscription
}

// Hub streams session events to websocket subscribers. With a Redis client, events
// travel over pub/sub so subscribers on every replica see them; otherwise they are
// delivered in-process.
type Hub struct {
	mu            sync.RWMutex
	connections   map[string][]*client
	subscriptions map[string]*subscription
	redisClient   *redis.Client
	auth          TokenParser
}

// NewHub accepts a nil redisClient (local delivery) and a nil auth (anonymous subscribers).
func NewHub(redisClient *redis.Client, auth TokenParser) *Hub {
	return &Hub{
		connections:   make(map[string][]*client),
		subscriptions: make(map[string]*subscription),
		redisClient:   redisClient,
		auth:          auth,
	}
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		http.Error(w, "sessionId required", http.StatusBadRequest)
		return
	}

	if h.auth != nil {
		tokenStr := r.URL.Query().Get("token")
		if tokenStr == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		userID, err := h.auth.ParseUserID(tokenStr)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		sessionID = session.ScopedID(userID, sessionID)
	}

	key := session.HashKey(sessionID)

	// Subscribe before completing the handshake so no event published after the
	// client sees the connection open is missed.
	ready := h.acquire(key)
	select {
	case <-ready:
	case <-r.Context().Done():
		h.release(key)
		return
	case <-time.After(subscribeWait):
		log.Printf("[hub] subscription for session %s not confirmed in %s", key[:12], subscribeWait)
	}

	// Registered before the upgrade with its write lock held, so events arriving during
	// the handshake wait for the connection instead of being dropped.
	c := &client{}
	c.mu.Lock()
	h.registerConnection(key, c)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.mu.Unlock()
		log.Printf("[hub] upgrade failed: %v", err)
		h.unregisterConnection(key, c)
		return
	}
	c.conn = conn
	c.mu.Unlock()

	// Keep connection alive and handle disconnect
	go func() {
		defer h.unregisterConnection(key, c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

// Publish implements services.Publisher.
func (h *Hub) Publish(ctx context.Context, sessionID string, msg models.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[hub] failed to encode %s event: %v", msg.Type, err)
		return
	}

	key := session.HashKey(sessionID)
	if h.redisClient == nil {
		h.broadcast(key, data)
		return
	}

	if err := h.redisClient.Publish(ctx, channelPrefix+key, data).Err(); err != nil {
		log.Printf("[hub] failed to publish %s event: %v", msg.Type, err)
	}
}

// Close drops every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	var clients []*client
	for key, conns := range h.connections {
		clients = append(clients, conns...)
		delete(h.connections, key)
	}
	for key, sub := range h.subscriptions {
		if sub.cancel != nil {
			sub.cancel()
		}
		delete(h.subscriptions, key)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

// acquire takes a reference on key's subscription, starting it for the first
// subscriber. The returned channel closes once events for key will be delivered.
func (h *Hub) acquire(key string) <-chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub, ok := h.subscriptions[key]
	if !ok {
		sub = &subscription{ready: make(chan struct{})}
		if h.redisClient != nil {
			ctx, cancel := context.WithCancel(context.Background())
			sub.cancel = cancel
			go h.subscribeToPubSub(ctx, key, sub.ready)
		} else {
			close(sub.ready)
		}
		h.subscriptions[key] = sub
	}
	sub.refs++
	return sub.ready
}

// release drops a reference taken by acquire; the last one cancels the subscription.
func (h *Hub) release(key string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.releaseLocked(key)
}

func (h *Hub) releaseLocked(key string) {
	sub, ok := h.subscriptions[key]
	if !ok {
		return
	}
	sub.refs--
	if sub.refs > 0 {
		return
	}
	if sub.cancel != nil {
		sub.cancel()
	}
	delete(h.subscriptions, key)
}

func (h *Hub) registerConnection(key string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[key] = append(h.connections[key], c)
	log.Printf("[hub] subscriber joined session %s (total: %d)", key[:12], len(h.connections[key]))
}

func (h *Hub) unregisterConnection(key string, c *client) {
	c.close()

	h.mu.Lock()
	defer h.mu.Unlock()

	conns := h.connections[key]
	found := false
	for i, existing := range conns {
		if existing == c {
			h.connections[key] = append(conns[:i], conns[i+1:]...)
			found = true
			break
		}
	}
	if len(h.connections[key]) == 0 {
		delete(h.connections, key)
	}

	// Close already dropped every reference when the connection is gone from the map.
	if found {
		h.releaseLocked(key)
	}

	log.Printf("[hub] subscriber left session %s", key[:12])
}

func (h *Hub) subscribeToPubSub(ctx context.Context, key string, ready chan struct{}) {
	pubsub := h.redisClient.Subscribe(ctx, channelPrefix+key)
	defer pubsub.Close()

	// Receive returns the subscribe confirmation.
	if _, err := pubsub.Receive(ctx); err != nil {
		log.Printf("[hub] subscribe for session %s failed: %v", key[:12], err)
	}
	close(ready)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.broadcast(key, []byte(msg.Payload))
		}
	}
}

func (h *Hub) broadcast(key string, data []byte) {
	h.mu.RLock()
	conns := append([]*client(nil), h.connections[key]...)
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.write(data); err != nil {
			log.Printf("[hub] write to session %s failed: %v", key[:12], err)
		}
	}
}

func (h *Hub) subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[session.HashKey(sessionID)])
}
