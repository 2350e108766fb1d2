package incident

import (
	"context"
	"testing"
	"time"

	"github.com/nugget/alert-sentinel/internal/anomaly"
	"github.com/nugget/alert-sentinel/internal/cardevent"
)

type recordingNotifier struct {
	forwardCalls  int
	incidentCalls int
	lastIncident  map[string]any
}

func (r *recordingNotifier) SendToForward(_ context.Context, card map[string]any) bool {
	r.forwardCalls++
	return true
}

func (r *recordingNotifier) SendToIncident(_ context.Context, card map[string]any) bool {
	r.incidentCalls++
	r.lastIncident = card
	return true
}

func TestHandle_NoneKindNeverRecords(t *testing.T) {
	n := &recordingNotifier{}
	svc := New(anomaly.New(), n, nil)

	got := svc.Handle(context.Background(), cardevent.KindNone, time.Now(), nil)
	if got {
		t.Error("expected false for KindNone")
	}
	if n.incidentCalls != 0 {
		t.Error("expected no incident notifier call for KindNone")
	}
}

func TestHandle_TriggersOnThirdMonitoringEvent(t *testing.T) {
	n := &recordingNotifier{}
	svc := New(anomaly.New(), n, nil)
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	payload := map[string]any{"title": "incident"}

	results := []bool{
		svc.Handle(context.Background(), cardevent.KindLiveAPIDBOverload, base, payload),
		svc.Handle(context.Background(), cardevent.KindLiveAPIDBOverload, base.Add(10*time.Second), payload),
		svc.Handle(context.Background(), cardevent.KindLiveAPIDBOverload, base.Add(20*time.Second), payload),
	}
	if results[0] || results[1] || !results[2] {
		t.Fatalf("unexpected results: %v", results)
	}
	if n.incidentCalls != 1 {
		t.Errorf("incidentCalls = %d, want 1", n.incidentCalls)
	}
}

type recordingTelemetry struct {
	calls int
	kind  string
	fail  bool
}

func (r *recordingTelemetry) Publish(_ context.Context, kind string, _ time.Time) error {
	r.calls++
	r.kind = kind
	if r.fail {
		return context.DeadlineExceeded
	}
	return nil
}

func TestHandle_PublishesTelemetryOnTrigger(t *testing.T) {
	n := &recordingNotifier{}
	svc := New(anomaly.New(), n, nil)
	tel := &recordingTelemetry{}
	svc.SetTelemetry(tel)

	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	payload := map[string]any{}
	svc.Handle(context.Background(), cardevent.KindLiveAPIDBOverload, base, payload)
	svc.Handle(context.Background(), cardevent.KindLiveAPIDBOverload, base.Add(10*time.Second), payload)
	svc.Handle(context.Background(), cardevent.KindLiveAPIDBOverload, base.Add(20*time.Second), payload)

	if tel.calls != 1 {
		t.Errorf("telemetry calls = %d, want 1", tel.calls)
	}
	if tel.kind != string(cardevent.KindLiveAPIDBOverload) {
		t.Errorf("telemetry kind = %q, want %q", tel.kind, cardevent.KindLiveAPIDBOverload)
	}
}

func TestHandle_TelemetryFailureDoesNotAffectTrigger(t *testing.T) {
	n := &recordingNotifier{}
	svc := New(anomaly.New(), n, nil)
	svc.SetTelemetry(&recordingTelemetry{fail: true})

	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	svc.Handle(context.Background(), cardevent.KindLiveAPIDBOverload, base, nil)
	svc.Handle(context.Background(), cardevent.KindLiveAPIDBOverload, base.Add(10*time.Second), nil)
	got := svc.Handle(context.Background(), cardevent.KindLiveAPIDBOverload, base.Add(20*time.Second), nil)

	if !got {
		t.Error("expected trigger even when telemetry publish fails")
	}
}

func TestHandleRawError_ClassifiesAndDelegates(t *testing.T) {
	n := &recordingNotifier{}
	svc := New(anomaly.New(), n, nil)
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	event := cardevent.RawErrorEvent{FailureReason: "TIMEOUT", Time: base.Format("2006-01-02T15:04:05Z")}

	svc.HandleRawError(context.Background(), event, map[string]any{})
	svc.HandleRawError(context.Background(), cardevent.RawErrorEvent{FailureReason: "TIMEOUT", Time: base.Add(20 * time.Minute).Format("2006-01-02T15:04:05Z")}, map[string]any{})
	got := svc.HandleRawError(context.Background(), cardevent.RawErrorEvent{FailureReason: "TIMEOUT", Time: base.Add(40 * time.Minute).Format("2006-01-02T15:04:05Z")}, map[string]any{})

	if !got {
		t.Error("expected trigger on third TIMEOUT within window")
	}
}
