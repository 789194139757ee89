package reactor

import (
	"slices"
	"time"
)

// Stats is a snapshot of runtime statistics, see [Reactor.Stats].
type Stats struct {
	// Iterations counts completed waits, including those that produced
	// nothing to dispatch.
	Iterations uint64
	// Wakeups counts waits that returned at least one backend event.
	Wakeups uint64
	// Dispatched counts primary callback invocations.
	Dispatched uint64
	// Prepared counts prepare callback invocations.
	Prepared uint64
	// CallbackErrors counts callbacks that returned an error or panicked.
	CallbackErrors uint64
	// LastBatch is the number of callbacks of the most recent batch.
	LastBatch int
	// Sources is the number of registered sources, excluding released ones.
	Sources int
	// Pending is the number of sources awaiting dispatch.
	Pending int
	// Latency summarizes the duration of recent batches.
	Latency LatencyStats
}

// LatencyStats summarizes recent batch durations.
type LatencyStats struct {
	P50     time.Duration
	P90     time.Duration
	P99     time.Duration
	Max     time.Duration
	Mean    time.Duration
	Samples int
}

// sampleSize is the maximum number of latency samples to retain.
const sampleSize = 512

// latencyRecorder keeps a rolling window of batch durations.
type latencyRecorder struct {
	samples     [sampleSize]time.Duration
	sum         time.Duration
	sampleIdx   int
	sampleCount int
}

func (l *latencyRecorder) record(d time.Duration) {
	// If buffer is full, subtract the old sample that we're replacing
	if l.sampleCount >= sampleSize {
		l.sum -= l.samples[l.sampleIdx]
	}
	l.samples[l.sampleIdx] = d
	l.sum += d
	l.sampleIdx++
	if l.sampleIdx >= sampleSize {
		l.sampleIdx = 0
	}
	if l.sampleCount < sampleSize {
		l.sampleCount++
	}
}

func (l *latencyRecorder) summary() LatencyStats {
	count := l.sampleCount
	if count == 0 {
		return LatencyStats{}
	}
	sorted := slices.Clone(l.samples[:count])
	slices.Sort(sorted)
	return LatencyStats{
		P50:     sorted[percentileIndex(count, 50)],
		P90:     sorted[percentileIndex(count, 90)],
		P99:     sorted[percentileIndex(count, 99)],
		Max:     sorted[count-1],
		Mean:    l.sum / time.Duration(count),
		Samples: count,
	}
}

// percentileIndex computes the index for a given percentile (0-100).
func percentileIndex(n, p int) int {
	index := (p * n) / 100
	if index >= n {
		return n - 1
	}
	return index
}
