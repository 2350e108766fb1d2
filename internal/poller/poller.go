// Package poller implements the periodic two-channel pull loop that
// feeds the pipeline: it polls feed-1 and feed-2 on a fixed cadence,
// dispatches each message through the shared message-parser /
// dedup-tracker gate, and routes surviving messages to the
// appropriate feed handler.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nugget/alert-sentinel/internal/cardmodel"
	"github.com/nugget/alert-sentinel/internal/dedup"
	"github.com/nugget/alert-sentinel/internal/events"
	"github.com/nugget/alert-sentinel/internal/feed"
	"github.com/nugget/alert-sentinel/internal/msgparser"
	"github.com/nugget/alert-sentinel/internal/source"
)

// State is the poller's lifecycle: Idle -> Running -> Stopping -> Idle.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "idle"
	}
}

// DefaultPollInterval is the between-tick sleep, including after a
// failed tick.
const DefaultPollInterval = 10 * time.Second

// DefaultTop bounds per-channel, per-tick message fetch size.
const DefaultTop = 10

// Config holds the channel identifiers the poller reads from.
type Config struct {
	TeamID         string
	Feed1ChannelID string
	Feed2ChannelID string
	PollInterval   time.Duration
	Top            int
}

// Poller owns the dispatch loop, the per-channel checkpoints, and the
// dedup tracker. All mutation of this state happens on the single
// loop goroutine, except where noted (Stop, State).
type Poller struct {
	cfg     Config
	source  source.MessageSource
	alert   *feed.AlertHandler
	monitor *feed.MonitoringHandler
	dedup   *dedup.Tracker
	bus     *events.Bus
	logger  *slog.Logger

	mu         sync.Mutex
	state      State
	checkpoint map[string]time.Time
	stopCh     chan struct{}
	wg         sync.WaitGroup
}

// New creates a Poller in the Idle state.
func New(cfg Config, src source.MessageSource, alert *feed.AlertHandler, monitor *feed.MonitoringHandler, tracker *dedup.Tracker, logger *slog.Logger) *Poller {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Top <= 0 {
		cfg.Top = DefaultTop
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		cfg:     cfg,
		source:  src,
		alert:   alert,
		monitor: monitor,
		dedup:   tracker,
		logger:  logger,
	}
}

// SetEventBus wires the operational event bus. When unset, dispatch
// publishes nothing (Bus itself is also nil-safe).
func (p *Poller) SetEventBus(b *events.Bus) {
	p.bus = b
}

// State reports the poller's current lifecycle state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Start transitions Idle -> Running and begins the dispatch loop on a
// dedicated goroutine. Re-entry from Idle is permitted after a full
// Stop. Calling Start while already Running is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.state != StateIdle {
		p.mu.Unlock()
		return
	}
	now := time.Now().UTC()
	p.checkpoint = map[string]time.Time{
		p.cfg.Feed1ChannelID: now,
		p.cfg.Feed2ChannelID: now,
	}
	p.stopCh = make(chan struct{})
	p.state = StateRunning
	p.mu.Unlock()

	p.logger.Info("poller: starting",
		"team_id", p.cfg.TeamID,
		"feed1_channel_id", p.cfg.Feed1ChannelID,
		"feed2_channel_id", p.cfg.Feed2ChannelID,
		"poll_interval", p.cfg.PollInterval.String(),
	)

	p.wg.Add(1)
	go p.run(ctx)
}

// Stop transitions Running -> Stopping -> Idle, allowing any in-flight
// I/O to complete, then blocks until the loop goroutine has exited.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.state != StateRunning {
		p.mu.Unlock()
		return
	}
	p.state = StateStopping
	stopCh := p.stopCh
	p.mu.Unlock()

	close(stopCh)
	p.wg.Wait()

	p.mu.Lock()
	p.state = StateIdle
	p.mu.Unlock()
}

func (p *Poller) run(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		default:
		}

		tickID := uuid.NewString()
		p.tick(ctx, tickID)

		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-time.After(p.cfg.PollInterval):
		}
	}
}

// tick runs one pass over feed-1 then feed-2, in that order.
func (p *Poller) tick(ctx context.Context, tickID string) {
	p.bus.Publish(events.Event{
		Timestamp: time.Now().UTC(),
		Source:    events.SourcePoller,
		Kind:      events.KindPollStart,
		Data:      map[string]any{"tick_id": tickID, "team_id": p.cfg.TeamID},
	})

	feed1Count := p.pollChannel(ctx, tickID, p.cfg.Feed1ChannelID, "feed1")
	feed2Count := p.pollChannel(ctx, tickID, p.cfg.Feed2ChannelID, "feed2")

	p.bus.Publish(events.Event{
		Timestamp: time.Now().UTC(),
		Source:    events.SourcePoller,
		Kind:      events.KindPollComplete,
		Data:      map[string]any{"tick_id": tickID, "feed1_count": feed1Count, "feed2_count": feed2Count},
	})
}

func (p *Poller) pollChannel(ctx context.Context, tickID, channelID, feedType string) int {
	p.mu.Lock()
	since := p.checkpoint[channelID]
	p.mu.Unlock()

	messages, err := p.source.GetMessages(ctx, p.cfg.TeamID, channelID, since, p.cfg.Top)
	if err != nil {
		// Per the UpstreamFetchFailed recovery policy: log, treat as
		// "no messages this tick," and still advance the checkpoint
		// below so the next tick does not replay old history.
		p.logger.Error("poller: fetch failed", "tick", tickID, "channel_id", channelID, "error", err)
		p.bus.Publish(events.Event{
			Timestamp: time.Now().UTC(),
			Source:    events.SourcePoller,
			Kind:      events.KindUpstreamFetchFailed,
			Data:      map[string]any{"tick_id": tickID, "channel_id": channelID, "error": err.Error()},
		})
		messages = nil
	}

	for _, msg := range messages {
		p.dispatch(ctx, tickID, feedType, msg)
	}

	p.mu.Lock()
	p.checkpoint[channelID] = time.Now().UTC()
	p.mu.Unlock()

	return len(messages)
}

// dispatch applies the single-message dispatch rules (§4.J): dedup,
// origin check, card-attachment check, parse, route, mark.
func (p *Poller) dispatch(ctx context.Context, tickID, feedType string, msg source.Message) {
	if msg.ID == "" {
		return
	}
	if p.dedup.Seen(msg.ID) {
		p.logger.Debug("poller: dropping duplicate", "tick", tickID, "message_id", msg.ID)
		p.bus.Publish(events.Event{
			Timestamp: time.Now().UTC(),
			Source:    events.SourceDedup,
			Kind:      events.KindDedupDropped,
			Data:      map[string]any{"message_id": msg.ID},
		})
		return
	}
	if !msgparser.IsWebhookOrigin(msg) {
		p.publishMessageDropped(tickID, msg.ID, "not_webhook_origin")
		return
	}
	if !msgparser.IsCardAttachment(msg) {
		p.publishMessageDropped(tickID, msg.ID, "no_card_attachment")
		return
	}

	card, ok := msgparser.ParseCard(msg)
	if !ok {
		p.logger.Warn("poller: failed to parse card", "tick", tickID, "message_id", msg.ID)
		p.publishMessageDropped(tickID, msg.ID, "malformed_card")
		return
	}

	p.route(ctx, feedType, card)
	p.dedup.Mark(msg.ID)
}

func (p *Poller) publishMessageDropped(tickID, messageID, reason string) {
	p.bus.Publish(events.Event{
		Timestamp: time.Now().UTC(),
		Source:    events.SourcePoller,
		Kind:      events.KindMessageDropped,
		Data:      map[string]any{"tick_id": tickID, "message_id": messageID, "reason": reason},
	})
}

func (p *Poller) route(ctx context.Context, feedType string, card cardmodel.Card) {
	switch feedType {
	case "feed1":
		p.alert.HandleRaw(ctx, card.AsObject())
	case "feed2":
		p.monitor.HandleMonitoring(ctx, card.AsObject())
	}
}
