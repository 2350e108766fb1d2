// Package feed implements the per-feed handlers that sit between the
// poller's message dispatch and the incident service: the raw-error
// (feed-1) handler and the monitoring (feed-2) handler.
package feed

import (
	"context"
	"log/slog"

	"github.com/nugget/alert-sentinel/internal/cardevent"
	"github.com/nugget/alert-sentinel/internal/cardmodel"
	"github.com/nugget/alert-sentinel/internal/events"
	"github.com/nugget/alert-sentinel/internal/incident"
	"github.com/nugget/alert-sentinel/internal/notifier"
	"github.com/nugget/alert-sentinel/internal/policy"
)

// AlertHandler processes feed-1 (raw-error) payloads.
type AlertHandler struct {
	notifier notifier.Notifier
	incident *incident.Service
	bus      *events.Bus
	logger   *slog.Logger
}

// NewAlertHandler creates an AlertHandler.
func NewAlertHandler(n notifier.Notifier, inc *incident.Service, logger *slog.Logger) *AlertHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AlertHandler{notifier: n, incident: inc, logger: logger}
}

// SetEventBus wires the operational event bus. When unset, HandleRaw
// publishes nothing (Bus itself is also nil-safe).
func (h *AlertHandler) SetEventBus(b *events.Bus) {
	h.bus = b
}

// HandleRaw parses payload as a Card, applies the forwarding policy,
// and unconditionally invokes the incident service. Returns whether
// the event was forwarded to the general error channel.
func (h *AlertHandler) HandleRaw(ctx context.Context, payload any) bool {
	card, err := cardmodel.Parse(payload)
	if err != nil {
		h.logger.Warn("alert handler: malformed card", "error", err)
		return false
	}

	event := cardevent.RawErrorEventFrom(card)
	original, _ := payload.(map[string]any)

	forwarded := policy.ShouldForward(event)
	if forwarded {
		delivered := h.notifier.SendToForward(ctx, original)
		h.logger.Debug("alert handler: forwarded", "delivered", delivered)
		h.bus.Publish(events.Event{
			Timestamp: event.Timestamp(),
			Source:    events.SourceFeed,
			Kind:      events.KindForwardDispatched,
			Data:      map[string]any{"delivered": delivered},
		})
	}

	h.incident.HandleRawError(ctx, event, original)

	return forwarded
}
