// Watchpost - Continuous Sensor Monitoring and Analysis Pipeline
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

// Package websocket pushes live pipeline events to dashboard clients: raised
// alerts, finished workflows, and fresh reports. The hub fans broadcasts out
// to every connected client; slow clients are dropped rather than allowed to
// stall the hub.
package websocket

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/watchpost/watchpost/internal/logging"
	"github.com/watchpost/watchpost/internal/metrics"
	"github.com/watchpost/watchpost/internal/models"
)

// Message types pushed to clients.
const (
	MessageTypeAlert    = "alert"
	MessageTypeWorkflow = "workflow"
	MessageTypeReport   = "report"
	MessageTypePing     = "ping"
	MessageTypePong     = "pong"
)

// Message is one frame on the wire.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a hub. Run it under the supervisor via Serve.
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan Message, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// String names the service in supervisor logs.
func (h *Hub) String() string { return "websocket-hub" }

// Serve runs the hub loop until ctx is cancelled, then closes every client.
// It satisfies suture.Service.
//
// Lifecycle events are drained before broadcasts so client state is settled
// when a message fans out; Go's select picks randomly among ready channels,
// which would otherwise interleave the two.
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
			h.add(client)
			continue
		case client := <-h.Unregister:
			h.remove(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown()
			return ctx.Err()
		case client := <-h.Register:
			h.add(client)
		case client := <-h.Unregister:
			h.remove(client)
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

func (h *Hub) add(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(total))
	logging.Info().Int("total_clients", total).Msg("websocket client connected")
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(total))
	logging.Info().Int("total_clients", total).Msg("websocket client disconnected")
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })
	for _, client := range clients {
		close(client.send)
		delete(h.clients, client)
	}
	h.mu.Unlock()

	metrics.WSConnections.Set(0)
	logging.Info().
		Str("component", "websocket-hub").
		Int("clients_closed", len(clients)).
		Msg("websocket hub stopped")
}

// broadcastToClients fans one message out in client-ID order. A client whose
// send buffer is full is dropped; it reconnects rather than backpressuring
// the hub.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })

	var toRemove []*Client
	for _, client := range clients {
		select {
		case client.send <- message:
			metrics.WSMessagesSent.Inc()
		default:
			toRemove = append(toRemove, client)
		}
	}
	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
		metrics.WSClientsDropped.Inc()
		logging.Warn().Uint64("client_id", client.id).Msg("dropped slow websocket client")
	}
}

// enqueue puts a message on the broadcast channel, dropping it when the hub
// itself is saturated.
func (h *Hub) enqueue(message Message) {
	select {
	case h.broadcast <- message:
	default:
		logging.Warn().Str("message_type", message.Type).Msg("broadcast channel full, dropping message")
	}
}

// BroadcastAlert pushes a raised alert to all clients.
func (h *Hub) BroadcastAlert(alert *models.SystemAlert) {
	h.enqueue(Message{Type: MessageTypeAlert, Data: alert})
}

// WorkflowData is the payload of a workflow message.
type WorkflowData struct {
	Timestamp   string `json:"timestamp"`
	WorkflowID  string `json:"workflow_id"`
	Success     bool   `json:"success"`
	FailedPhase string `json:"failed_phase,omitempty"`
	DurationMs  int64  `json:"duration_ms"`
}

// BroadcastWorkflow notifies all clients that a workflow finished.
func (h *Hub) BroadcastWorkflow(workflowID string, success bool, failedPhase string, durationMs int64) {
	h.enqueue(Message{Type: MessageTypeWorkflow, Data: WorkflowData{
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		WorkflowID:  workflowID,
		Success:     success,
		FailedPhase: failedPhase,
		DurationMs:  durationMs,
	}})
}

// BroadcastReport pushes a fresh concise report to all clients.
func (h *Hub) BroadcastReport(report *models.ConciseReport) {
	h.enqueue(Message{Type: MessageTypeReport, Data: report})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
