// Rinkrelay - Multi-Camera Game Recording Coordination
// Copyright 2026 The Rinkrelay Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rinklab/rinkrelay

package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"github.com/rinklab/rinkrelay/internal/logging"
	"github.com/rinklab/rinkrelay/internal/metrics"
	"github.com/rinklab/rinkrelay/internal/models"
)

// Message types pushed to dashboard clients.
const (
	MessageTypeDecision = "decision"
	MessageTypeStatus   = "status"
	MessageTypeWarning  = "warning"
	MessageTypePing     = "ping"
	MessageTypePong     = "pong"
)

// Message is one dashboard frame.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// StatusData is the payload of a status frame.
type StatusData struct {
	SessionID string               `json:"session_id"`
	Status    models.SessionStatus `json:"status"`
}

// WarningData is the payload of a warning frame.
type WarningData struct {
	SessionID string                `json:"session_id"`
	Warning   models.SessionWarning `json:"warning"`
	CameraID  string                `json:"camera_id,omitempty"`
}

// Hub fans decision and status events out to connected dashboard
// clients. Slow clients are dropped rather than allowed to block the
// broadcast path.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a hub. Run it under the api supervisor.
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan Message, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// Serve runs the hub until the context is cancelled. Lifecycle events
// are drained before broadcasts so client state is settled when a
// message fans out; Go's select picks randomly among ready channels,
// hence the explicit priority pass.
func (h *Hub) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.addClient(client)
			continue
		case client := <-h.Unregister:
			h.removeClient(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown()
			return ctx.Err()
		case client := <-h.Register:
			h.addClient(client)
		case client := <-h.Unregister:
			h.removeClient(client)
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

// String names the service in supervisor logs.
func (h *Hub) String() string { return "websocket-hub" }

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WebSocketConnections.Set(float64(total))
	logging.Info().Int("total_clients", total).Msg("dashboard client connected")
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WebSocketConnections.Set(float64(total))
	logging.Info().Int("total_clients", total).Msg("dashboard client disconnected")
}

// broadcastToClients sends to every client in id order. Clients whose
// send buffer is full are disconnected; a stalled dashboard is cheaper
// to reconnect than to buffer indefinitely.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	var toRemove []*Client
	for _, client := range clients {
		select {
		case client.send <- message:
		default:
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
		metrics.WebSocketDropped.Inc()
		logging.Warn().Uint64("client_id", client.id).Msg("dropping slow dashboard client")
	}
	metrics.WebSocketConnections.Set(float64(len(h.clients)))
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	for _, client := range clients {
		close(client.send)
		delete(h.clients, client)
	}

	metrics.WebSocketConnections.Set(0)
	logging.Info().
		Str("component", "websocket-hub").
		Int("clients_closed", len(clients)).
		Msg("websocket hub stopped")
}

// BroadcastDecision pushes a switching decision to all clients.
func (h *Hub) BroadcastDecision(d models.SwitchingDecision) {
	h.enqueue(Message{Type: MessageTypeDecision, Data: d})
}

// BroadcastStatus pushes a session status change to all clients.
func (h *Hub) BroadcastStatus(sessionID string, status models.SessionStatus) {
	h.enqueue(Message{Type: MessageTypeStatus, Data: StatusData{SessionID: sessionID, Status: status}})
}

// BroadcastWarning pushes an operator warning to all clients.
func (h *Hub) BroadcastWarning(sessionID string, warning models.SessionWarning, cameraID string) {
	h.enqueue(Message{Type: MessageTypeWarning, Data: WarningData{
		SessionID: sessionID,
		Warning:   warning,
		CameraID:  cameraID,
	}})
}

// BroadcastRaw forwards a pre-encoded event payload, used by the NATS
// bridge which receives events already serialized.
func (h *Hub) BroadcastRaw(messageType string, data []byte) {
	var payload map[string]interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		logging.Warn().Err(err).Msg("unreadable event payload for dashboard broadcast")
		return
	}
	h.enqueue(Message{Type: messageType, Data: payload})
}

func (h *Hub) enqueue(message Message) {
	select {
	case h.broadcast <- message:
	default:
		metrics.WebSocketDropped.Inc()
		logging.Warn().Str("message_type", message.Type).Msg("broadcast channel full, dropping message")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// MarshalMessage encodes a dashboard frame.
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
