package feed

import (
	"context"
	"testing"

	"github.com/nugget/alert-sentinel/internal/anomaly"
	"github.com/nugget/alert-sentinel/internal/incident"
)

func TestHandleMonitoring_TriggersAfterThreeInOneMinute(t *testing.T) {
	n := &recordingNotifier{}
	inc := incident.New(anomaly.New(), n, nil)
	h := NewMonitoringHandler(inc, nil)

	payload := cardPayload(map[string]string{
		"Description": "영상 생성 실패 - 더빙/오디오 생성 실패",
		"Time":        "2025-01-01T12:00:00Z",
	})
	results := []bool{
		h.HandleMonitoring(context.Background(), payload),
		h.HandleMonitoring(context.Background(), payload),
		h.HandleMonitoring(context.Background(), payload),
	}
	if results[0] || results[1] || !results[2] {
		t.Fatalf("unexpected results: %v", results)
	}
	if n.incidentCalls != 1 {
		t.Errorf("incidentCalls = %d, want 1", n.incidentCalls)
	}
}

func TestHandleMonitoring_UnclassifiedReturnsFalse(t *testing.T) {
	n := &recordingNotifier{}
	inc := incident.New(anomaly.New(), n, nil)
	h := NewMonitoringHandler(inc, nil)

	payload := cardPayload(map[string]string{"Description": "unrelated"})
	if h.HandleMonitoring(context.Background(), payload) {
		t.Error("expected false for unclassified description")
	}
}

func TestHandleMonitoring_MalformedPayload(t *testing.T) {
	n := &recordingNotifier{}
	inc := incident.New(anomaly.New(), n, nil)
	h := NewMonitoringHandler(inc, nil)

	if h.HandleMonitoring(context.Background(), 42) {
		t.Error("expected false for malformed payload")
	}
}
