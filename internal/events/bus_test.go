// Watchpost - Continuous Sensor Monitoring and Analysis Pipeline
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package events

import (
	"context"
	"testing"
	"time"
)

func TestPublishSubscribeRoundTrip(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	msgs, err := bus.Subscribe(ctx, TopicCaptureFire)
	if err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}

	sent := FireEvent{Window: "day", ItemCount: 3, ScheduledAt: time.Now().UTC(), Manual: false}
	if err := bus.Publish(TopicCaptureFire, sent); err != nil {
		t.Fatalf("Publish() failed: %v", err)
	}

	select {
	case msg := <-msgs:
		var got FireEvent
		if err := Decode(msg, &got); err != nil {
			t.Fatalf("Decode() failed: %v", err)
		}
		msg.Ack()
		if got.Window != "day" || got.ItemCount != 3 || got.Manual {
			t.Errorf("unexpected event: %+v", got)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}

func TestSubscribeIsolationAcrossTopics(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	fires, err := bus.Subscribe(ctx, TopicCaptureFire)
	if err != nil {
		t.Fatal(err)
	}

	if err := bus.Publish(TopicWorkflow, WorkflowEvent{WorkflowID: "wf-1", Success: true}); err != nil {
		t.Fatal(err)
	}

	select {
	case msg := <-fires:
		t.Errorf("fire subscriber received message from another topic: %s", msg.UUID)
	case <-time.After(100 * time.Millisecond):
	}
}
