package policy

import (
	"testing"

	"github.com/nugget/alert-sentinel/internal/cardevent"
)

func TestShouldForward_Whitelist(t *testing.T) {
	event := cardevent.RawErrorEvent{FailureReason: "AUDIO_PIPELINE_FAILED"}
	if !ShouldForward(event) {
		t.Error("expected whitelisted failure reason to forward")
	}
}

func TestShouldForward_SpecialKeyword(t *testing.T) {
	event := cardevent.RawErrorEvent{
		ErrorMessage: "Invalid FailureReason value: VIDEO_QUEUE_FULL",
	}
	if !ShouldForward(event) {
		t.Error("expected special keyword to forward")
	}
}

func TestShouldForward_Drop(t *testing.T) {
	event := cardevent.RawErrorEvent{FailureReason: "ENGINE_ERROR"}
	if ShouldForward(event) {
		t.Error("expected non-whitelisted, non-keyword event to drop")
	}
}

func TestShouldForward_Pure(t *testing.T) {
	event := cardevent.RawErrorEvent{FailureReason: "TIMEOUT"}
	a := ShouldForward(event)
	b := ShouldForward(event)
	if a != b {
		t.Error("expected ShouldForward to be pure")
	}
}

func TestShouldForward_KeywordInStackTrace(t *testing.T) {
	event := cardevent.RawErrorEvent{CauseOrStackTrace: "com.vt.Error: VT5001 at line 42"}
	if !ShouldForward(event) {
		t.Error("expected keyword match in stack trace to forward")
	}
}
