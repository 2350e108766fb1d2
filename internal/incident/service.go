// Package incident implements the dispatch service that sits between
// classified events and the detector: it records an event against the
// correlation engine and, on trigger, emits the original payload to
// the incident channel.
package incident

import (
	"context"
	"log/slog"
	"time"

	"github.com/nugget/alert-sentinel/internal/anomaly"
	"github.com/nugget/alert-sentinel/internal/cardevent"
	"github.com/nugget/alert-sentinel/internal/events"
	"github.com/nugget/alert-sentinel/internal/notifier"
)

// telemetryPublisher is the subset of telemetry.Publisher the incident
// service needs. Declared locally so this package does not import
// telemetry when no broker is configured.
type telemetryPublisher interface {
	Publish(ctx context.Context, kind string, ts time.Time) error
}

// Service wires a Detector to a Notifier.
type Service struct {
	detector  *anomaly.Detector
	notifier  notifier.Notifier
	telemetry telemetryPublisher
	bus       *events.Bus
	logger    *slog.Logger
}

// New creates an incident Service.
func New(detector *anomaly.Detector, n notifier.Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{detector: detector, notifier: n, logger: logger}
}

// SetTelemetry wires an optional MQTT incident publisher. When unset,
// incident triggers are never published to the telemetry topic.
func (s *Service) SetTelemetry(t telemetryPublisher) {
	s.telemetry = t
}

// SetEventBus wires the operational event bus. When unset, Handle
// publishes nothing (Bus itself is also nil-safe).
func (s *Service) SetEventBus(b *events.Bus) {
	s.bus = b
}

// Handle records one classified event at ts against the detector. If
// kind is cardevent.KindNone, it returns false without touching the
// detector. If the detector decides to trigger, payload is emitted to
// the incident channel via the notifier and Handle returns true.
func (s *Service) Handle(ctx context.Context, kind cardevent.IncidentKind, ts time.Time, payload map[string]any) bool {
	if kind == cardevent.KindNone {
		return false
	}

	triggered, err := s.detector.Record(kind, ts)
	if err != nil {
		s.logger.Error("incident: detector record failed", "kind", kind, "error", err)
		return false
	}
	if !triggered {
		return false
	}

	ok := s.notifier.SendToIncident(ctx, payload)
	s.logger.Info("incident: emitted", "kind", kind, "delivered", ok)

	s.bus.Publish(events.Event{
		Timestamp: ts,
		Source:    events.SourceIncident,
		Kind:      events.KindIncidentTriggered,
		Data:      map[string]any{"kind": string(kind), "delivered": ok},
	})

	if s.telemetry != nil {
		if err := s.telemetry.Publish(ctx, string(kind), ts); err != nil {
			s.logger.Warn("incident: telemetry publish failed", "kind", kind, "error", err)
		}
	}

	return true
}

// HandleRawError classifies event internally and delegates to Handle.
func (s *Service) HandleRawError(ctx context.Context, event cardevent.RawErrorEvent, payload map[string]any) bool {
	return s.Handle(ctx, event.Classify(), event.Timestamp(), payload)
}
