// Package events provides a publish/subscribe event bus for operational
// observability. Events flow from pipeline components (poller, feed
// handlers, incident service) to subscribers (the admin WebSocket
// handler, future metrics collectors). The bus is nil-safe: calling
// Publish on a nil *Bus is a no-op, so components do not need guard
// checks.
package events

import (
	"sync"
	"time"
)

// Source constants identify which component published an event.
const (
	// SourcePoller identifies events from the feed poll loop.
	SourcePoller = "poller"
	// SourceFeed identifies events from a feed handler (raw-error or
	// monitoring).
	SourceFeed = "feed"
	// SourceIncident identifies events from the incident service.
	SourceIncident = "incident"
	// SourceDedup identifies events from the message dedup tracker.
	SourceDedup = "dedup"
	// SourceAdmin identifies events from the admin HTTP surface.
	SourceAdmin = "admin"
)

// Kind constants describe the type of event within a source.
const (
	// KindPollStart signals the start of a poll tick.
	// Data: tick_id, team_id.
	KindPollStart = "poll_start"
	// KindPollComplete signals the end of a poll tick.
	// Data: tick_id, feed1_count, feed2_count.
	KindPollComplete = "poll_complete"
	// KindUpstreamFetchFailed signals a feed fetch error that was
	// recovered by treating the tick as empty.
	// Data: tick_id, channel_id, error.
	KindUpstreamFetchFailed = "upstream_fetch_failed"

	// KindMessageDropped signals a polled message that did not survive
	// the dispatch gate (non-webhook origin, no card attachment, or
	// malformed card). Duplicate ids are reported as KindDedupDropped.
	// Data: tick_id, message_id, reason.
	KindMessageDropped = "message_dropped"
	// KindDedupDropped signals a message id already seen by the dedup
	// tracker.
	// Data: message_id.
	KindDedupDropped = "dedup_dropped"

	// KindForwardDispatched signals a raw-error event forwarded to the
	// general error channel.
	// Data: delivered.
	KindForwardDispatched = "forward_dispatched"
	// KindIncidentTriggered signals the correlation engine crossed a
	// threshold and an incident was emitted.
	// Data: kind, delivered.
	KindIncidentTriggered = "incident_triggered"
	// KindDownstreamPostFailed signals a notifier delivery failure.
	// Data: channel, status.
	KindDownstreamPostFailed = "downstream_post_failed"

	// KindDetectorReset signals an operator-triggered detector state
	// reset via the admin surface.
	KindDetectorReset = "detector_reset"
)

// Event represents a single operational event published by a component.
type Event struct {
	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"ts"`
	// Source identifies the component that published the event.
	Source string `json:"source"`
	// Kind describes the type of event within the source.
	Kind string `json:"kind"`
	// Data holds event-specific key/value pairs.
	Data map[string]any `json:"data,omitempty"`
}

// Bus is a non-blocking broadcast event bus for the admin live-event
// feed. Subscribers receive events on buffered channels; slow
// subscribers miss events rather than blocking publishers.
type Bus struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
	// recvToSend maps the receive-only channel returned by Subscribe
	// back to the bidirectional channel stored in subs. This allows
	// Unsubscribe to accept <-chan Event (the caller's view) without
	// an illegal type conversion.
	recvToSend map[<-chan Event]chan Event
}

// New creates a new event bus ready for use.
func New() *Bus {
	return &Bus{
		subs:       make(map[chan Event]struct{}),
		recvToSend: make(map[<-chan Event]chan Event),
	}
}

// Publish sends an event to all subscribers. Non-blocking: if a
// subscriber's channel is full, the event is dropped for that
// subscriber. Safe to call on a nil receiver (no-op).
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			// Subscriber is full — drop the event rather than block.
		}
	}
}

// Subscribe returns a channel that receives published events. The
// caller must eventually call Unsubscribe to avoid resource leaks.
// bufSize controls the channel buffer; 64 is a reasonable default for
// WebSocket consumers.
func (b *Bus) Subscribe(bufSize int) <-chan Event {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[ch] = struct{}{}
	b.recvToSend[ch] = ch
	return ch
}

// Unsubscribe removes a subscription and closes the channel. Safe to
// call with a channel that is already unsubscribed (no-op).
func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sendCh, ok := b.recvToSend[ch]
	if !ok {
		return
	}
	delete(b.subs, sendCh)
	delete(b.recvToSend, ch)
	close(sendCh)
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
