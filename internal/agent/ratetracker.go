package agent

import "time"

// minRateInterval is the shortest elapsed span we compute a rate over.
// Back-to-back observations under this produce (0, 0) to avoid
// divide-by-near-zero spikes.
const minRateInterval = 100 * time.Millisecond

// RateTracker turns cumulative rx/tx counters into instantaneous byte rates.
// It tolerates counter resets (interface restart, agent restart): a decrease
// yields a zero rate for that interval and the lower value becomes the new
// baseline. Not safe for concurrent use; the collection ticker is the only
// caller.
type RateTracker struct {
	lastRx   uint64
	lastTx   uint64
	lastSeen time.Time
	primed   bool
}

func NewRateTracker() *RateTracker {
	return &RateTracker{}
}

// Observe records the current cumulative counters and returns the rx/tx rates
// in bytes per second since the previous observation. The first observation
// only establishes a baseline and reports (0, 0).
func (r *RateTracker) Observe(rx, tx uint64, now time.Time) (rxRate, txRate uint64) {
	if !r.primed {
		r.lastRx, r.lastTx, r.lastSeen = rx, tx, now
		r.primed = true
		return 0, 0
	}

	elapsed := now.Sub(r.lastSeen)
	if elapsed < minRateInterval {
		return 0, 0
	}

	secs := elapsed.Seconds()
	if rx >= r.lastRx {
		rxRate = uint64(float64(rx-r.lastRx) / secs)
	}
	if tx >= r.lastTx {
		txRate = uint64(float64(tx-r.lastTx) / secs)
	}

	r.lastRx, r.lastTx, r.lastSeen = rx, tx, now
	return rxRate, txRate
}
