// Package cardevent derives the two domain events — RawErrorEvent and
// MonitoringEvent — from a parsed card, and classifies them into the
// fixed IncidentKind taxonomy the anomaly detector tracks.
package cardevent

import (
	"regexp"
	"strings"
	"time"

	"github.com/nugget/alert-sentinel/internal/cardmodel"
)

// IncidentKind is a closed enumeration of the failure categories the
// detector tracks independently.
type IncidentKind string

const (
	KindNone               IncidentKind = ""
	KindTimeout            IncidentKind = "TIMEOUT"
	KindAPIError           IncidentKind = "API_ERROR"
	KindLiveAPIDBOverload  IncidentKind = "LIVE_API_DB_OVERLOAD"
	KindYTDownloadFail     IncidentKind = "YT_DOWNLOAD_FAIL"
	KindYTExternalFail     IncidentKind = "YT_EXTERNAL_FAIL"
)

var failureReasonPattern = regexp.MustCompile(`Failure Reason:\s*([A-Z0-9_]+)`)

// RawErrorEvent is derived from a feed-1 card via named-fact lookup.
type RawErrorEvent struct {
	Project           string
	ErrorMessage      string
	ErrorDetail       string
	Time              string
	FailureReason     string // empty means absent
	CauseOrStackTrace string
}

// RawErrorEventFrom derives a RawErrorEvent from a Card. Every field
// defaults to the empty string when the corresponding fact is absent;
// there is no failure mode.
func RawErrorEventFrom(card cardmodel.Card) RawErrorEvent {
	errorDetail, _ := card.GetFact("Error Detail")
	event := RawErrorEvent{
		ErrorDetail:       errorDetail,
		CauseOrStackTrace: mustFact(card, "Cause or Stack Trace"),
	}
	event.Project = mustFact(card, "Project")
	event.ErrorMessage = mustFact(card, "Error Message")
	event.Time = mustFact(card, "Time")

	if m := failureReasonPattern.FindStringSubmatch(errorDetail); m != nil {
		event.FailureReason = m[1]
	}
	return event
}

// Timestamp returns the UTC instant derived from the event's raw Time
// field per the timestamp parsing rule, falling back to now on any
// parse failure.
func (e RawErrorEvent) Timestamp() time.Time {
	return ParseTimestamp(e.Time)
}

// Classify maps a RawErrorEvent to an IncidentKind via its failure
// reason. Returns KindNone when no rule matches.
func (e RawErrorEvent) Classify() IncidentKind {
	switch e.FailureReason {
	case "TIMEOUT":
		return KindTimeout
	case "API_ERROR":
		return KindAPIError
	default:
		return KindNone
	}
}

// MonitoringEvent is derived from a feed-2 card.
type MonitoringEvent struct {
	Title       string
	Description string
	Time        string
}

// MonitoringEventFrom derives a MonitoringEvent from a Card.
func MonitoringEventFrom(card cardmodel.Card) MonitoringEvent {
	return MonitoringEvent{
		Title:       card.Title,
		Description: mustFact(card, "Description"),
		Time:        mustFact(card, "Time"),
	}
}

// Timestamp returns the UTC instant derived from the event's raw Time
// field per the timestamp parsing rule.
func (e MonitoringEvent) Timestamp() time.Time {
	return ParseTimestamp(e.Time)
}

// monitoringKeywords maps a case-insensitive substring of Description
// to the IncidentKind it signals. Checked in the order below; the
// first substring match wins.
var monitoringKeywords = []struct {
	substr string
	kind   IncidentKind
}{
	{"더빙/오디오 생성 실패", KindLiveAPIDBOverload},
	{"youtube url 다운로드 실패", KindYTDownloadFail},
	{"외부 url 다운로드 실패", KindYTExternalFail},
	{"video 파일 업로드 실패", KindYTExternalFail},
}

// Classify maps a MonitoringEvent to an IncidentKind via a
// case-insensitive substring match on Description.
func (e MonitoringEvent) Classify() IncidentKind {
	desc := strings.ToLower(e.Description)
	for _, rule := range monitoringKeywords {
		if strings.Contains(desc, strings.ToLower(rule.substr)) {
			return rule.kind
		}
	}
	return KindNone
}

func mustFact(card cardmodel.Card, name string) string {
	v, _ := card.GetFact(name)
	return v
}

// ParseTimestamp implements the §3 timestamp parsing rule: split at
// the first "Z", keep the prefix, right-pad or truncate any fractional
// seconds component to exactly 6 digits, and interpret as UTC. Falls
// back to time.Now().UTC() on any missing input or parse failure.
func ParseTimestamp(raw string) time.Time {
	if raw == "" {
		return time.Now().UTC()
	}

	idx := strings.IndexByte(raw, 'Z')
	prefix := raw
	if idx >= 0 {
		prefix = raw[:idx]
	}

	if dot := strings.IndexByte(prefix, '.'); dot >= 0 {
		frac := prefix[dot+1:]
		if len(frac) > 6 {
			frac = frac[:6]
		} else {
			frac = frac + strings.Repeat("0", 6-len(frac))
		}
		prefix = prefix[:dot+1] + frac
	}

	layout := "2006-01-02T15:04:05.000000"
	if !strings.Contains(prefix, ".") {
		layout = "2006-01-02T15:04:05"
	}

	t, err := time.Parse(layout, prefix)
	if err != nil {
		return time.Now().UTC()
	}
	return t.UTC()
}
