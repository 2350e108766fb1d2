// Package policy decides whether a raw-feed error event is forwarded
// to the general error channel.
package policy

import (
	"strings"

	"github.com/nugget/alert-sentinel/internal/cardevent"
)

var whitelist = map[string]bool{
	"AUDIO_PIPELINE_FAILED": true,
	"VIDEO_PIPELINE_FAILED": true,
	"TIMEOUT":               true,
	"API_ERROR":             true,
}

var specialKeywords = []string{
	"VIDEO_QUEUE_FULL",
	"VT5001",
}

// ShouldForward is a pure function of the event: calling it twice on
// the same event yields the same result. Returns true iff the
// failure reason is whitelisted, or any special keyword appears as a
// substring of the error message, error detail, or stack trace.
func ShouldForward(event cardevent.RawErrorEvent) bool {
	if whitelist[event.FailureReason] {
		return true
	}

	haystack := event.ErrorMessage + event.ErrorDetail + event.CauseOrStackTrace
	for _, kw := range specialKeywords {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}
