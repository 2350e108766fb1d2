package feed

import (
	"context"
	"testing"

	"github.com/nugget/alert-sentinel/internal/anomaly"
	"github.com/nugget/alert-sentinel/internal/incident"
)

type recordingNotifier struct {
	forwardCalls, incidentCalls int
}

func (r *recordingNotifier) SendToForward(_ context.Context, card map[string]any) bool {
	r.forwardCalls++
	return true
}

func (r *recordingNotifier) SendToIncident(_ context.Context, card map[string]any) bool {
	r.incidentCalls++
	return true
}

func cardPayload(facts map[string]string) map[string]any {
	fs := make([]any, 0, len(facts))
	for name, value := range facts {
		fs = append(fs, map[string]any{"name": name, "value": value})
	}
	return map[string]any{"sections": []any{map[string]any{"facts": fs}}}
}

func TestHandleRaw_ForwardByWhitelist(t *testing.T) {
	n := &recordingNotifier{}
	inc := incident.New(anomaly.New(), n, nil)
	h := NewAlertHandler(n, inc, nil)

	payload := cardPayload(map[string]string{"Error Detail": "Failure Reason: AUDIO_PIPELINE_FAILED"})
	got := h.HandleRaw(context.Background(), payload)
	if !got {
		t.Error("expected forwarded = true for whitelisted reason")
	}
	if n.forwardCalls != 1 {
		t.Errorf("forwardCalls = %d, want 1", n.forwardCalls)
	}
	if n.incidentCalls != 1 {
		t.Errorf("incidentCalls = %d, want 1 (unconditional)", n.incidentCalls)
	}
}

func TestHandleRaw_Drop(t *testing.T) {
	n := &recordingNotifier{}
	inc := incident.New(anomaly.New(), n, nil)
	h := NewAlertHandler(n, inc, nil)

	payload := cardPayload(map[string]string{"Error Detail": "Failure Reason: ENGINE_ERROR"})
	got := h.HandleRaw(context.Background(), payload)
	if got {
		t.Error("expected forwarded = false for non-whitelisted reason")
	}
	if n.forwardCalls != 0 {
		t.Errorf("forwardCalls = %d, want 0", n.forwardCalls)
	}
}

func TestHandleRaw_MalformedPayload(t *testing.T) {
	n := &recordingNotifier{}
	inc := incident.New(anomaly.New(), n, nil)
	h := NewAlertHandler(n, inc, nil)

	got := h.HandleRaw(context.Background(), "not an object")
	if got {
		t.Error("expected false for malformed payload")
	}
	if n.incidentCalls != 0 {
		t.Error("expected no incident call on malformed payload")
	}
}
