package feed

import (
	"context"
	"log/slog"

	"github.com/nugget/alert-sentinel/internal/cardevent"
	"github.com/nugget/alert-sentinel/internal/cardmodel"
	"github.com/nugget/alert-sentinel/internal/incident"
)

// MonitoringHandler processes feed-2 (monitoring) payloads.
type MonitoringHandler struct {
	incident *incident.Service
	logger   *slog.Logger
}

// NewMonitoringHandler creates a MonitoringHandler.
func NewMonitoringHandler(inc *incident.Service, logger *slog.Logger) *MonitoringHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MonitoringHandler{incident: inc, logger: logger}
}

// HandleMonitoring parses payload as a Card, classifies the derived
// MonitoringEvent, and invokes the incident service when a kind is
// recognized. Returns whether an incident was triggered.
func (h *MonitoringHandler) HandleMonitoring(ctx context.Context, payload any) bool {
	card, err := cardmodel.Parse(payload)
	if err != nil {
		h.logger.Warn("monitoring handler: malformed card", "error", err)
		return false
	}

	event := cardevent.MonitoringEventFrom(card)
	kind := event.Classify()
	if kind == cardevent.KindNone {
		return false
	}

	original, _ := payload.(map[string]any)
	return h.incident.Handle(ctx, kind, event.Timestamp(), original)
}
