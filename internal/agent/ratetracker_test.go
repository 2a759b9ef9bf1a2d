package agent

import (
	"testing"
	"time"
)

func TestRateTrackerSteadyIncrease(t *testing.T) {
	rt := NewRateTracker()
	base := time.Now()

	rt.Observe(1000, 2000, base)

	rx, tx := rt.Observe(2000, 6000, base.Add(2*time.Second))
	if rx != 500 {
		t.Fatalf("expected rx rate 500, got %d", rx)
	}
	if tx != 2000 {
		t.Fatalf("expected tx rate 2000, got %d", tx)
	}
}

func TestRateTrackerCounterReset(t *testing.T) {
	rt := NewRateTracker()
	base := time.Now()

	// Baseline, increase, reset, recovery: [1000, 1500, 400, 900] at 1s
	// spacing should report rates [-, 500, 0, 500].
	rt.Observe(1000, 0, base)

	steps := []struct {
		rx   uint64
		want uint64
	}{
		{1500, 500},
		{400, 0},
		{900, 500},
	}
	for i, step := range steps {
		now := base.Add(time.Duration(i+1) * time.Second)
		rx, _ := rt.Observe(step.rx, 0, now)
		if rx != step.want {
			t.Fatalf("step %d: expected rx rate %d, got %d", i, step.want, rx)
		}
	}
}

func TestRateTrackerResetAdoptsNewBaseline(t *testing.T) {
	rt := NewRateTracker()
	base := time.Now()

	rt.Observe(5000, 5000, base)
	rt.Observe(100, 100, base.Add(time.Second)) // reset

	rx, tx := rt.Observe(600, 1100, base.Add(2*time.Second))
	if rx != 500 || tx != 1000 {
		t.Fatalf("expected rates (500, 1000) from new baseline, got (%d, %d)", rx, tx)
	}
}

func TestRateTrackerShortIntervalDoesNotAdvanceState(t *testing.T) {
	rt := NewRateTracker()
	base := time.Now()

	rt.Observe(1000, 1000, base)

	rx, tx := rt.Observe(9999, 9999, base.Add(50*time.Millisecond))
	if rx != 0 || tx != 0 {
		t.Fatalf("expected (0, 0) for back-to-back observation, got (%d, %d)", rx, tx)
	}

	// The 50ms observation must not have become the baseline.
	rx, _ = rt.Observe(2000, 1000, base.Add(time.Second))
	if rx != 1000 {
		t.Fatalf("expected rate 1000 from original baseline, got %d", rx)
	}
}

func TestRateTrackerFirstObservationIsBaseline(t *testing.T) {
	rt := NewRateTracker()
	rx, tx := rt.Observe(123456, 654321, time.Now())
	if rx != 0 || tx != 0 {
		t.Fatalf("expected (0, 0) for first observation, got (%d, %d)", rx, tx)
	}
}
