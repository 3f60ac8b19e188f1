package sse

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"mailsorter/internal/logger"
	"mailsorter/internal/metrics"
)

const (
	clientBuffer = 16
	sendTimeout  = 2 * time.Second
)

// Message is one server-sent event.
type Message struct {
	Event string
	Data  []byte
}

// Envelope is the JSON body of every event.
type Envelope struct {
	UserID string          `json:"-"`
	Type   string          `json:"type"`
	Data   json.RawMessage `json:"data,omitempty"`
	Time   int64           `json:"time"`
}

// Client is one live connection of a user.
type Client struct {
	ch   chan Message
	done chan struct{}
	once sync.Once
}

func (c *Client) Events() <-chan Message {
	return c.ch
}

// Done is closed when the client is removed or the manager shuts down.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) stop() {
	c.once.Do(func() { close(c.done) })
}

// Publisher fans events out to every instance. The manager delivers locally without one.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
}

// SSEManager manages Server-Sent Event connections
type SSEManager struct {
	clients    map[string]map[*Client]struct{} // userID -> connections
	clientsMux sync.RWMutex

	publisher Publisher
	logger    *logger.Logger
}

// NewSSEManager creates a new SSE manager
func NewSSEManager(logger *logger.Logger) *SSEManager {
	return &SSEManager{
		clients: make(map[string]map[*Client]struct{}),
		logger:  logger,
	}
}

// SetPublisher routes Notify through p, e.g. a RedisRelay.
func (s *SSEManager) SetPublisher(p Publisher) {
	s.publisher = p
}

// AddClient adds a new client connection for a specific user
func (s *SSEManager) AddClient(userID string) *Client {
	s.clientsMux.Lock()
	defer s.clientsMux.Unlock()

	if s.clients[userID] == nil {
		s.clients[userID] = make(map[*Client]struct{})
	}
	client := &Client{ch: make(chan Message, clientBuffer), done: make(chan struct{})}
	s.clients[userID][client] = struct{}{}
	metrics.SSEConnections.Inc()

	s.logger.Info("Added SSE client for user:", userID, "total clients:", len(s.clients[userID]))
	return client
}

// RemoveClient removes a client connection
func (s *SSEManager) RemoveClient(userID string, client *Client) {
	s.clientsMux.Lock()
	defer s.clientsMux.Unlock()

	userClients, exists := s.clients[userID]
	if !exists {
		return
	}
	if _, ok := userClients[client]; !ok {
		return
	}
	delete(userClients, client)
	client.stop()
	metrics.SSEConnections.Dec()

	s.logger.Info("Removed SSE client for user:", userID, "remaining clients:", len(userClients))
	if len(userClients) == 0 {
		delete(s.clients, userID)
	}
}

// Notify sends event to every live connection of userID.
func (s *SSEManager) Notify(userID, event string, payload interface{}) {
	env := Envelope{UserID: userID, Type: event, Time: time.Now().Unix()}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			s.logger.Error("Failed to marshal event payload:", event, err)
			return
		}
		env.Data = data
	}

	if s.publisher != nil {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		err := s.publisher.Publish(ctx, env)
		if err == nil {
			return
		}
		s.logger.Warn("Failed to publish event, delivering locally:", event, err)
	}
	s.Deliver(env)
}

// Deliver writes env to this instance's connections for env.UserID.
func (s *SSEManager) Deliver(env Envelope) {
	body, err := json.Marshal(env)
	if err != nil {
		s.logger.Error("Failed to marshal event:", env.Type, err)
		return
	}
	msg := Message{Event: env.Type, Data: body}

	s.clientsMux.RLock()
	targets := make([]*Client, 0, len(s.clients[env.UserID]))
	for client := range s.clients[env.UserID] {
		targets = append(targets, client)
	}
	s.clientsMux.RUnlock()

	for _, client := range targets {
		timer := time.NewTimer(sendTimeout)
		select {
		case client.ch <- msg:
		case <-client.done:
		case <-timer.C:
			s.logger.Warn("Timeout sending", env.Type, "to user:", env.UserID)
		}
		timer.Stop()
	}
}

// Close shuts down the SSE manager
func (s *SSEManager) Close() {
	s.clientsMux.Lock()
	defer s.clientsMux.Unlock()

	for userID, userClients := range s.clients {
		for client := range userClients {
			client.stop()
			metrics.SSEConnections.Dec()
		}
		delete(s.clients, userID)
	}
}

// GetUserConnectionCount returns the number of active connections for a user
func (s *SSEManager) GetUserConnectionCount(userID string) int {
	s.clientsMux.RLock()
	defer s.clientsMux.RUnlock()
	return len(s.clients[userID])
}

// HasUserConnection checks if a user has active SSE connections
func (s *SSEManager) HasUserConnection(userID string) bool {
	return s.GetUserConnectionCount(userID) > 0
}

// ConnectedUsers lists users with at least one live connection.
func (s *SSEManager) ConnectedUsers() []string {
	s.clientsMux.RLock()
	defer s.clientsMux.RUnlock()

	users := make([]string, 0, len(s.clients))
	for userID := range s.clients {
		users = append(users, userID)
	}
	return users
}
