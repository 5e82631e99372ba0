// Watchpost - Continuous Sensor Monitoring and Analysis Pipeline
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package pipeline

import (
	"context"

	"github.com/watchpost/watchpost/internal/events"
	"github.com/watchpost/watchpost/internal/logging"
	"github.com/watchpost/watchpost/internal/models"
)

// FireConsumer turns scheduler fire events into workflow executions and feeds
// the outcome back into the scheduler's failure streak.
type FireConsumer struct {
	p *Pipeline
}

// NewFireConsumer creates the fire consumer for p.
func NewFireConsumer(p *Pipeline) *FireConsumer {
	return &FireConsumer{p: p}
}

// String names the service in supervisor logs.
func (c *FireConsumer) String() string { return "fire-consumer" }

// Serve consumes fire events until ctx is cancelled. It satisfies
// suture.Service.
//
// A fire arriving while a workflow runs is acked and dropped: the busy gate
// lives in the orchestrator, and dropped fires are intentional shedding, not
// message loss.
func (c *FireConsumer) Serve(ctx context.Context) error {
	msgs, err := c.p.Bus.Subscribe(ctx, events.TopicCaptureFire)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return ctx.Err()
			}

			var fire events.FireEvent
			if err := events.Decode(msg, &fire); err != nil {
				logging.Err(err).Msg("malformed fire event")
				msg.Ack()
				continue
			}
			msg.Ack()

			c.handle(ctx, fire)
		}
	}
}

func (c *FireConsumer) handle(ctx context.Context, fire events.FireEvent) {
	trigger := models.TriggerScheduled
	if fire.Manual {
		trigger = models.TriggerManual
	}

	wf, err := c.p.Orch.Execute(ctx, trigger, fire.ItemCount, fire.ScheduledAt)
	if err != nil {
		if models.AsPipelineError(err).Code == models.ErrCodeBusy {
			logging.Info().
				Str("window", fire.Window).
				Bool("manual", fire.Manual).
				Msg("fire dropped, workflow already running")
			return
		}
		logging.Err(err).Msg("workflow execution rejected")
		return
	}

	// Manual fires do not feed the scheduler's failure streak; the streak
	// measures the unattended cadence.
	if !fire.Manual {
		c.p.Sched.RecordFireResult(wf.Success, wf.ID)
	}
}

// HubRelay forwards bus events to the websocket hub so dashboard clients see
// alerts and workflow completions live.
type HubRelay struct {
	p *Pipeline
}

// NewHubRelay creates the relay for p.
func NewHubRelay(p *Pipeline) *HubRelay {
	return &HubRelay{p: p}
}

// String names the service in supervisor logs.
func (r *HubRelay) String() string { return "hub-relay" }

// Serve relays until ctx is cancelled. It satisfies suture.Service.
func (r *HubRelay) Serve(ctx context.Context) error {
	alerts, err := r.p.Bus.Subscribe(ctx, events.TopicAlerts)
	if err != nil {
		return err
	}
	workflows, err := r.p.Bus.Subscribe(ctx, events.TopicWorkflow)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case msg, ok := <-alerts:
			if !ok {
				return ctx.Err()
			}
			var alert models.SystemAlert
			if err := events.Decode(msg, &alert); err != nil {
				logging.Err(err).Msg("malformed alert event")
			} else {
				r.p.Hub.BroadcastAlert(&alert)
			}
			msg.Ack()

		case msg, ok := <-workflows:
			if !ok {
				return ctx.Err()
			}
			var wf events.WorkflowEvent
			if err := events.Decode(msg, &wf); err != nil {
				logging.Err(err).Msg("malformed workflow event")
			} else {
				r.p.Hub.BroadcastWorkflow(wf.WorkflowID, wf.Success, wf.FailedPhase, wf.DurationMs)
				if wf.Success {
					if recent := r.p.Reports.Recent(1); len(recent) > 0 {
						r.p.Hub.BroadcastReport(recent[0])
					}
				}
			}
			msg.Ack()
		}
	}
}
