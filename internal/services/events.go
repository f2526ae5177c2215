// Package services – run event hub
//
// This file implements the in-process publish/subscribe hub behind the live
// run-event stream. The pipeline publishes coarse stage events as it works;
// websocket sessions subscribe and forward them to connected clients. The hub
// is deliberately lossy: a subscriber that cannot keep up loses events rather
// than stalling the pipeline.
package services

import (
	"sync"
	"time"
)

// Stages published by the pipeline over its lifetime. Every run produces a
// "started" and a "finished" event; the stages between depend on how far the
// run got.
const (
	StageStarted     = "started"
	StageAcquired    = "acquired"
	StageSummarizing = "summarizing"
	StageBriefing    = "briefing_created"
	StageFinished    = "finished"
)

// runEventBuffer is the per-subscriber channel capacity. Runs emit a handful
// of events over minutes, so a small buffer absorbs any realistic burst.
const runEventBuffer = 16

// RunEvent is one pipeline progress notification.
type RunEvent struct {
	OwnerID string    `json:"owner_id"`
	RunID   string    `json:"run_id,omitempty"`
	Stage   string    `json:"stage"`
	Detail  string    `json:"detail,omitempty"`
	At      time.Time `json:"at"`
}

// RunEventHub fans pipeline events out to any number of subscribers. The zero
// value is not usable; construct with NewRunEventHub. All methods are safe for
// concurrent use, and Publish additionally tolerates a nil receiver so the
// pipeline can run without a hub wired in.
type RunEventHub struct {
	mu   sync.Mutex
	subs map[chan RunEvent]struct{}
}

// NewRunEventHub constructs an empty hub.
func NewRunEventHub() *RunEventHub {
	return &RunEventHub{subs: make(map[chan RunEvent]struct{})}
}

// Subscribe registers a listener and returns its event channel plus a cancel
// function. Cancel closes the channel and is safe to call more than once;
// callers must cancel when done or the subscription leaks.
func (h *RunEventHub) Subscribe() (<-chan RunEvent, func()) {
	ch := make(chan RunEvent, runEventBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers ev to every current subscriber, dropping it for any whose
// buffer is full. A zero At is stamped with the current time.
func (h *RunEventHub) Publish(ev RunEvent) {
	if h == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	h.mu.Lock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	h.mu.Unlock()
}

// Subscribers reports the current listener count.
func (h *RunEventHub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
