package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"watch-match-backend/internal/metrics"
	"watch-match-backend/internal/models"
)

// WebSocket event types
const (
	EventMatch        = "match"
	EventQueueUpdated = "queue_updated"
	EventGroups       = "groups"
	EventPong         = "pong"
	EventError        = "error"
)

const writeWait = 10 * time.Second

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type      string      `json:"type"`
	GroupID   string      `json:"group_id,omitempty"`
	Timestamp int64       `json:"timestamp,omitempty"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// WSHub manages WebSocket connections, one per user
type WSHub struct {
	mu          sync.RWMutex
	connections map[string]*wsClient
}

// NewWSHub creates a new WebSocket hub
func NewWSHub() *WSHub {
	return &WSHub{
		connections: make(map[string]*wsClient),
	}
}

// Register registers a new WebSocket connection for a user, replacing any older one
func (h *WSHub) Register(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, exists := h.connections[userID]; exists {
		existing.conn.Close()
	} else {
		metrics.WebSocketConnections.Inc()
	}
	h.connections[userID] = &wsClient{conn: conn}

	log.Info().Str("user_id", userID).Msg("WebSocket connection registered")
}

// Unregister removes conn if it is still the user's active connection
func (h *WSHub) Unregister(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, exists := h.connections[userID]
	if !exists || client.conn != conn {
		return
	}
	client.conn.Close()
	delete(h.connections, userID)
	metrics.WebSocketConnections.Dec()
	log.Info().Str("user_id", userID).Msg("WebSocket connection unregistered")
}

// SendToUser sends a message to a specific user
func (h *WSHub) SendToUser(userID string, message WSMessage) error {
	h.mu.RLock()
	client, exists := h.connections[userID]
	h.mu.RUnlock()

	if !exists {
		return fmt.Errorf("user %s is not connected", userID)
	}

	if message.Timestamp == 0 {
		message.Timestamp = time.Now().UnixMilli()
	}
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := client.write(data); err != nil {
		h.Unregister(userID, client.conn)
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}

// IsOnline checks if a user is online
func (h *WSHub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, exists := h.connections[userID]
	return exists
}

// broadcast sends message to every connected member of the group
func (h *WSHub) broadcast(group *models.Group, message WSMessage, channel string) {
	for _, memberID := range group.Members {
		if !h.IsOnline(memberID) {
			continue
		}
		if err := h.SendToUser(memberID, message); err != nil {
			metrics.NotificationsSent.WithLabelValues(channel, "error").Inc()
			log.Error().
				Err(err).
				Str("user_id", memberID).
				Str("group_id", group.ID).
				Msgf("Failed to send %s", message.Type)
			continue
		}
		metrics.NotificationsSent.WithLabelValues(channel, "ok").Inc()
	}
}

// NotifyMatch tells every connected group member about a new match
func (h *WSHub) NotifyMatch(_ context.Context, group *models.Group, match models.Match) {
	h.broadcast(group, WSMessage{Type: EventMatch, GroupID: group.ID, Data: match}, "websocket")
}

// NotifyQueueUpdated tells every connected group member that an item was queued
func (h *WSHub) NotifyQueueUpdated(_ context.Context, group *models.Group, item models.CandidateItem) {
	h.broadcast(group, WSMessage{Type: EventQueueUpdated, GroupID: group.ID, Data: item}, "websocket")
}
