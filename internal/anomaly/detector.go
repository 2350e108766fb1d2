// Package anomaly implements the sliding-window / same-minute-bucket
// / cooldown correlation engine that decides whether a stream of
// classified events constitutes an incident worth alerting on.
package anomaly

import (
	"fmt"
	"sync"
	"time"

	"github.com/nugget/alert-sentinel/internal/cardevent"
)

// threshold is the static, per-kind configuration the detector reads
// to decide which branches apply. Adding a kind is a data change to
// this table, not a control-flow change.
type threshold struct {
	window          time.Duration // zero means "no window branch"
	windowCount     int
	sameMinuteCount int // zero means "no same-minute branch"
	cooldown        time.Duration
}

var thresholds = map[cardevent.IncidentKind]threshold{
	cardevent.KindTimeout: {
		window:      60 * time.Minute,
		windowCount: 3,
		cooldown:    10 * time.Minute,
	},
	cardevent.KindAPIError: {
		window:          5 * time.Minute,
		windowCount:     5,
		sameMinuteCount: 3,
		cooldown:        5 * time.Minute,
	},
	cardevent.KindLiveAPIDBOverload: {
		sameMinuteCount: 3,
		cooldown:        5 * time.Minute,
	},
	cardevent.KindYTDownloadFail: {
		window:      30 * time.Minute,
		windowCount: 3,
		cooldown:    10 * time.Minute,
	},
	cardevent.KindYTExternalFail: {
		window:      30 * time.Minute,
		windowCount: 3,
		cooldown:    10 * time.Minute,
	},
}

const minuteBucketRetention = 2 * time.Hour

// InvalidArgumentError reports a programmer error: Record was called
// with a zero-value timestamp. A non-UTC timestamp is not an error;
// Record converts it to UTC.
type InvalidArgumentError struct {
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("anomaly: invalid argument: %s", e.Reason)
}

type kindState struct {
	window       []time.Time
	minuteBucket map[string]int
	lastAlert    time.Time
	hasLastAlert bool
}

// Detector owns per-kind correlation state. It is safe for concurrent
// use: on the happy path the poller's single dispatch loop is the only
// mutator, but the admin surface's debug-reset endpoint runs on a
// second goroutine and must be able to clear state without racing it.
type Detector struct {
	mu     sync.Mutex
	states map[cardevent.IncidentKind]*kindState
}

// New creates a Detector with empty state for every configured kind.
func New() *Detector {
	d := &Detector{states: make(map[cardevent.IncidentKind]*kindState)}
	return d
}

func (d *Detector) stateFor(kind cardevent.IncidentKind) *kindState {
	s, ok := d.states[kind]
	if !ok {
		s = &kindState{minuteBucket: make(map[string]int)}
		d.states[kind] = s
	}
	return s
}

// Record applies one classified event of the given kind at ts to the
// detector's state and returns true iff this event causes an incident
// alert to be emitted. ts must be non-zero; it is converted to UTC.
func (d *Detector) Record(kind cardevent.IncidentKind, ts time.Time) (bool, error) {
	if ts.IsZero() {
		return false, &InvalidArgumentError{Reason: "timestamp must not be zero"}
	}
	ts = ts.UTC()

	cfg, ok := thresholds[kind]
	if !ok {
		return false, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	state := d.stateFor(kind)
	triggered := false

	if cfg.window > 0 && cfg.windowCount > 0 {
		cutoff := ts.Add(-cfg.window)
		kept := state.window[:0]
		for _, t := range state.window {
			if t.After(cutoff) {
				kept = append(kept, t)
			}
		}
		kept = append(kept, ts)
		state.window = kept
		if len(state.window) >= cfg.windowCount {
			triggered = true
		}
	}

	if cfg.sameMinuteCount > 0 {
		minuteCutoff := ts.Add(-minuteBucketRetention)
		for key := range state.minuteBucket {
			bucketStart, err := time.ParseInLocation("2006-01-02 15:04", key, time.UTC)
			if err != nil {
				delete(state.minuteBucket, key)
				continue
			}
			if bucketStart.Before(minuteCutoff) {
				delete(state.minuteBucket, key)
			}
		}

		key := minuteKey(ts)
		state.minuteBucket[key]++
		if state.minuteBucket[key] >= cfg.sameMinuteCount {
			triggered = true
		}
	}

	if !triggered {
		return false, nil
	}

	if state.hasLastAlert && ts.Sub(state.lastAlert) < cfg.cooldown {
		return false, nil
	}

	state.lastAlert = ts
	state.hasLastAlert = true
	return true, nil
}

// ResetState clears every kind's correlation state. Idempotent.
func (d *Detector) ResetState() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.states = make(map[cardevent.IncidentKind]*kindState)
}

func minuteKey(ts time.Time) string {
	return ts.Format("2006-01-02 15:04")
}
