package anomaly

import (
	"testing"
	"time"

	"github.com/nugget/alert-sentinel/internal/cardevent"
)

var base = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func mustRecord(t *testing.T, d *Detector, kind cardevent.IncidentKind, ts time.Time) bool {
	t.Helper()
	got, err := d.Record(kind, ts)
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	return got
}

func TestTimeoutThresholdExactlyMet(t *testing.T) {
	d := New()
	got := []bool{
		mustRecord(t, d, cardevent.KindTimeout, base),
		mustRecord(t, d, cardevent.KindTimeout, base.Add(20*time.Minute)),
		mustRecord(t, d, cardevent.KindTimeout, base.Add(40*time.Minute)),
	}
	want := []bool{false, false, true}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("record[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	if got := mustRecord(t, d, cardevent.KindTimeout, base.Add(45*time.Minute)); got {
		t.Error("expected cooldown suppression at +45m")
	}
}

func TestTimeoutWindowBoundary(t *testing.T) {
	d := New()
	got := []bool{
		mustRecord(t, d, cardevent.KindTimeout, base),
		mustRecord(t, d, cardevent.KindTimeout, base.Add(30*time.Minute)),
		mustRecord(t, d, cardevent.KindTimeout, base.Add(60*time.Minute)),
	}
	want := []bool{false, false, false}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("record[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestAPIErrorSameMinutePath(t *testing.T) {
	d := New()
	got := []bool{
		mustRecord(t, d, cardevent.KindAPIError, base),
		mustRecord(t, d, cardevent.KindAPIError, base.Add(10*time.Second)),
		mustRecord(t, d, cardevent.KindAPIError, base.Add(20*time.Second)),
	}
	want := []bool{false, false, true}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("record[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestAPIError5MinutePath(t *testing.T) {
	d := New()
	times := []time.Time{
		base,
		base.Add(1 * time.Minute),
		base.Add(2 * time.Minute),
		base.Add(3 * time.Minute),
		base.Add(4*time.Minute + 59*time.Second),
	}
	want := []bool{false, false, false, false, true}
	for i, ts := range times {
		if got := mustRecord(t, d, cardevent.KindAPIError, ts); got != want[i] {
			t.Errorf("record[%d] = %v, want %v", i, got, want[i])
		}
	}
}

func TestLiveAPIDBOverload_ThreeInOneMinute(t *testing.T) {
	d := New()
	want := []bool{false, false, true}
	for i := 0; i < 3; i++ {
		ts := base.Add(time.Duration(i*15) * time.Second)
		if got := mustRecord(t, d, cardevent.KindLiveAPIDBOverload, ts); got != want[i] {
			t.Errorf("record[%d] = %v, want %v", i, got, want[i])
		}
	}
}

func TestRecord_UnconfiguredKindReturnsFalse(t *testing.T) {
	d := New()
	got, err := d.Record(cardevent.KindNone, base)
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if got {
		t.Error("expected false for unconfigured kind")
	}
}

func TestRecord_ZeroTimestampIsInvalidArgument(t *testing.T) {
	d := New()
	_, err := d.Record(cardevent.KindTimeout, time.Time{})
	if err == nil {
		t.Fatal("expected InvalidArgumentError for zero timestamp")
	}
}

func TestRecord_CooldownReopensAfterExactBoundary(t *testing.T) {
	d := New()
	mustRecord(t, d, cardevent.KindTimeout, base)
	mustRecord(t, d, cardevent.KindTimeout, base.Add(20*time.Minute))
	if !mustRecord(t, d, cardevent.KindTimeout, base.Add(40*time.Minute)) {
		t.Fatal("expected trigger at +40m")
	}

	// Exactly at last+cooldown (10m), the event is no longer suppressed.
	reopenAt := base.Add(50 * time.Minute)
	if !mustRecord(t, d, cardevent.KindTimeout, reopenAt) {
		t.Error("expected trigger to reopen exactly at last+cooldown")
	}
}

func TestResetState_ClearsAllKinds(t *testing.T) {
	d := New()
	mustRecord(t, d, cardevent.KindTimeout, base)
	mustRecord(t, d, cardevent.KindTimeout, base.Add(20*time.Minute))
	mustRecord(t, d, cardevent.KindTimeout, base.Add(40*time.Minute))

	d.ResetState()

	got := []bool{
		mustRecord(t, d, cardevent.KindTimeout, base),
		mustRecord(t, d, cardevent.KindTimeout, base.Add(20*time.Minute)),
	}
	if got[0] || got[1] {
		t.Error("expected fresh state after ResetState")
	}

	// Second reset is a no-op.
	d.ResetState()
	d.ResetState()
}

func TestRecord_Deterministic(t *testing.T) {
	d1, d2 := New(), New()
	events := []time.Time{base, base.Add(time.Minute), base.Add(2 * time.Minute)}
	for _, ts := range events {
		a := mustRecord(t, d1, cardevent.KindTimeout, ts)
		b := mustRecord(t, d2, cardevent.KindTimeout, ts)
		if a != b {
			t.Errorf("non-deterministic result at %v: %v vs %v", ts, a, b)
		}
	}
}
