// Watchpost - Continuous Sensor Monitoring and Analysis Pipeline
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package websocket

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/watchpost/watchpost/internal/models"
)

// registerTestClient adds a client directly to the hub, bypassing the
// connection upgrade.
func registerTestClient(h *Hub, buffer int) *Client {
	c := &Client{
		id:   clientIDCounter.Add(1),
		hub:  h,
		send: make(chan Message, buffer),
	}
	h.Register <- c
	return c
}

func startHub(t *testing.T) (*Hub, context.CancelFunc, chan error) {
	t.Helper()
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Serve(ctx) }()
	return h, cancel, done
}

func TestBroadcastReachesAllClients(t *testing.T) {
	h, cancel, done := startHub(t)
	defer func() { cancel(); <-done }()

	c1 := registerTestClient(h, 4)
	c2 := registerTestClient(h, 4)

	waitForClients(t, h, 2)
	h.BroadcastAlert(&models.SystemAlert{ID: "a1", Severity: models.SeverityWarning})

	for _, c := range []*Client{c1, c2} {
		select {
		case msg := <-c.send:
			if msg.Type != MessageTypeAlert {
				t.Errorf("expected alert message, got %s", msg.Type)
			}
		case <-time.After(time.Second):
			t.Fatal("client never received the broadcast")
		}
	}
}

func TestSlowClientDropped(t *testing.T) {
	h, cancel, done := startHub(t)
	defer func() { cancel(); <-done }()

	slow := registerTestClient(h, 1)
	waitForClients(t, h, 1)

	// Fill the buffer, then broadcast again; the second message cannot be
	// queued and the client is dropped.
	h.BroadcastWorkflow("wf-1", true, "", 100)
	h.BroadcastWorkflow("wf-2", true, "", 100)

	waitForClients(t, h, 0)

	// The buffered first message is still readable; the channel closes
	// behind it.
	<-slow.send
	if _, open := <-slow.send; open {
		t.Error("dropped client's channel should be closed")
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	h, cancel, done := startHub(t)
	registerTestClient(h, 4)
	waitForClients(t, h, 1)

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("hub did not stop on cancel")
	}
	if h.ClientCount() != 0 {
		t.Errorf("all clients should be closed on shutdown, %d remain", h.ClientCount())
	}
}

func waitForClients(t *testing.T, h *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for h.ClientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("client count never reached %d (now %d)", want, h.ClientCount())
		}
		time.Sleep(time.Millisecond)
	}
}
