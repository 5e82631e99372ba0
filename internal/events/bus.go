// Watchpost - Continuous Sensor Monitoring and Analysis Pipeline
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

// Package events is the in-process event bus connecting the scheduler to the
// orchestrator and fanning alerts out to observers. It runs on Watermill's
// gochannel pub/sub: single process, no broker, but the same message contract
// a brokered transport would use.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/watchpost/watchpost/internal/logging"
)

// Topics carried on the bus.
const (
	// TopicCaptureFire carries FireEvent messages from the scheduler to
	// the workflow consumer.
	TopicCaptureFire = "capture.fire"

	// TopicAlerts carries models.SystemAlert messages raised anywhere in
	// the pipeline.
	TopicAlerts = "alerts.raised"

	// TopicWorkflow carries WorkflowEvent messages on workflow completion.
	TopicWorkflow = "workflow.finished"
)

// FireEvent tells the orchestrator to run one capture workflow.
type FireEvent struct {
	Window      string    `json:"window"`
	ItemCount   int       `json:"item_count"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Manual      bool      `json:"manual"`
}

// WorkflowEvent summarizes one finished workflow for observers.
type WorkflowEvent struct {
	WorkflowID  string `json:"workflow_id"`
	Success     bool   `json:"success"`
	FailedPhase string `json:"failed_phase,omitempty"`
	DurationMs  int64  `json:"duration_ms"`
}

// Bus wraps the gochannel pub/sub with JSON marshaling.
type Bus struct {
	pubsub *gochannel.GoChannel
}

// NewBus creates the event bus. Output buffering keeps a slow observer from
// blocking the scheduler's publish path.
func NewBus() *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 64},
			logging.NewWatermillAdapter(),
		),
	}
}

// Publish marshals v as JSON and publishes it on topic.
func (b *Bus) Publish(topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", topic, err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := b.pubsub.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe returns a channel of raw messages for topic. Each message must be
// Acked or Nacked by the consumer.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return b.pubsub.Subscribe(ctx, topic)
}

// Close shuts down the pub/sub and closes all subscriber channels.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}

// Decode unmarshals a message payload into v.
func Decode(msg *message.Message, v any) error {
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		return fmt.Errorf("decode message %s: %w", msg.UUID, err)
	}
	return nil
}
