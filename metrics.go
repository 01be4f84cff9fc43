package asyncrt

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// metricsCollector is the scheduler-facing entry point onto Metrics: it
// times each job's execution and feeds the result into Latency, tracks
// queue depth once per Run iteration, and drives the job throughput
// counter.
type metricsCollector struct {
	m           Metrics
	jobStart    time.Time
	jobsTotal   atomic.Int64
	pollCount   atomic.Int64
	timersFired atomic.Int64
	openFds     atomic.Int64
	throughput  *ThroughputCounter
}

func newMetricsCollector() *metricsCollector {
	return &metricsCollector{throughput: NewThroughputCounter(10*time.Second, 100*time.Millisecond)}
}

// recordJob marks one job's completion for latency purposes; callers
// bracket a job's execution with beginJob/recordJob.
func (c *metricsCollector) recordJob() {
	c.jobsTotal.Add(1)
	c.throughput.Increment()
	if !c.jobStart.IsZero() {
		c.m.Latency.Record(time.Since(c.jobStart))
	}
}

func (c *metricsCollector) beginJob() { c.jobStart = time.Now() }

// recordPoll marks one fd-watcher Poll call, with the count of timer
// events it let fire on the same cycle and the current open-fd count.
func (c *metricsCollector) recordPoll(timersFired, openFds int) {
	c.pollCount.Add(1)
	c.timersFired.Add(int64(timersFired))
	c.openFds.Store(int64(openFds))
}

// recordQueueDepths is sampled once per Run iteration, before the
// external-fill staging queue is drained into the job queue, so External
// reflects genuine cross-goroutine backlog rather than always reading 0.
func (c *metricsCollector) recordQueueDepths(external, job, timers int) {
	c.m.Queue.UpdateExternal(external)
	c.m.Queue.UpdateJob(job)
	c.m.Queue.UpdateTimers(timers)
}

// Snapshot computes and returns a copy of the current metrics,
// including freshly sampled latency percentiles and throughput.
func (c *metricsCollector) Snapshot() Metrics {
	c.m.Latency.Sample()
	c.m.JobsTotal = c.jobsTotal.Load()
	c.m.PollCount = c.pollCount.Load()
	c.m.TimersFired = c.timersFired.Load()
	c.m.OpenFds = c.openFds.Load()
	c.m.JobsPerSec = c.throughput.Rate()
	return c.m
}

// Metrics tracks runtime statistics for the scheduler. Metrics are
// designed to be low-overhead and thread-safe, and are only collected at
// all when WithMetrics(true) is set.
//
// Thread Safety:
//   - All Metrics methods are thread-safe and can be called from any goroutine.
//   - LatencyMetrics uses sync.RWMutex (single-writer, multi-reader).
//   - QueueMetrics uses sync.RWMutex (single-writer, multi-reader).
//   - ThroughputCounter uses atomic operations and mutex for rotation.
//   - Scheduler.Metrics() returns a copy, safe for concurrent reads.
//
// Example:
//
//	s, _ := NewScheduler(WithMetrics(true))
//	go s.Run()
//	stats := s.Metrics()
//	fmt.Printf("jobs/sec: %.2f, P99 latency: %v\n",
//		stats.JobsPerSec, stats.Latency.P99)
type Metrics struct {
	// Latency metrics (has pointer field - put first for alignment)
	Latency LatencyMetrics

	// Queue depth metrics
	Queue QueueMetrics

	mu sync.Mutex

	// JobsPerSec is the rolling-window job execution rate.
	JobsPerSec float64

	// JobsTotal is the number of jobs run since the scheduler started.
	JobsTotal int64

	// PollCount is the number of fd-watcher Poll calls made.
	PollCount int64

	// TimersFired is the number of clock events that have fired.
	TimersFired int64

	// OpenFds is the number of distinct raw descriptors registered with
	// the watcher since the scheduler started, sampled at the most recent
	// poll cycle; entries are not removed when an Fd is closed or replaced.
	OpenFds int64
}

// LatencyMetrics tracks latency distribution with percentiles.
// Uses the P-Square algorithm for O(1) streaming percentile estimation,
// which is more efficient than the previous O(n log n) sorting approach.
type LatencyMetrics struct {
	// Pointer fields first for optimal alignment (betteralign)
	psquare *pSquareMultiQuantile

	// Lock for thread-safe access
	mu sync.RWMutex

	// Legacy sample buffer (kept for backward compatibility with tests
	// that check exact percentile values with small sample counts)
	sampleIdx   int
	sampleCount int
	samples     [sampleSize]time.Duration

	// Computed percentiles (cached after Sample() call)
	P50 time.Duration
	P90 time.Duration
	P95 time.Duration
	P99 time.Duration
	Max time.Duration

	// Statistics
	Mean time.Duration
	Sum  time.Duration
}

// sampleSize is the maximum number of latency samples to retain.
// We keep a rolling buffer of 1000 samples to compute percentiles.
const sampleSize = 1000

// Record records a latency sample.
// This is called internally by the loop after each task execution.
// Uses O(1) P-Square algorithm for streaming percentile updates.
func (l *LatencyMetrics) Record(duration time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Initialize P-Square estimator on first use (lazy initialization)
	if l.psquare == nil {
		// Track P50 (0.5), P90 (0.9), P95 (0.95), P99 (0.99)
		l.psquare = newPSquareMultiQuantile(0.50, 0.90, 0.95, 0.99)
	}

	// Update P-Square estimator with the new sample (O(1))
	l.psquare.Update(float64(duration))

	// Also update legacy sample buffer for backward compatibility
	// (used when sample count < sampleSize for exact percentiles)
	if l.sampleCount >= sampleSize {
		old := l.samples[l.sampleIdx]
		l.Sum -= old
	}

	l.samples[l.sampleIdx] = duration
	l.Sum += duration
	l.sampleIdx++
	if l.sampleIdx >= sampleSize {
		l.sampleIdx = 0
	}
	if l.sampleCount < sampleSize {
		l.sampleCount++
	}
}

// Sample computes percentiles from collected samples.
// This should be called periodically to update the cached percentile values.
// Returns the number of samples used for computation.
//
// Performance note: For sample counts >= 5, this uses the P-Square algorithm
// which is O(1). For smaller counts, falls back to O(n log n) sorting for
// exact percentile values. The previous implementation was always O(n log n).
func (l *LatencyMetrics) Sample() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	count := l.sampleCount
	if count == 0 {
		return 0
	}

	// For small sample counts (< 5), use exact sorting method
	// This ensures backward compatibility with tests that expect exact values
	if count < 5 || l.psquare == nil {
		// Clone and sort samples for percentile computation
		sorted := make([]time.Duration, count)
		copy(sorted, l.samples[:count])

		// Use standard library sort (O(n log n))
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i] < sorted[j]
		})

		// Compute percentiles
		l.P50 = sorted[percentileIndex(count, 50)]
		l.P90 = sorted[percentileIndex(count, 90)]
		l.P95 = sorted[percentileIndex(count, 95)]
		l.P99 = sorted[percentileIndex(count, 99)]
		l.Max = sorted[count-1]
		l.Mean = l.Sum / time.Duration(count)

		return count
	}

	// Use P-Square algorithm for O(1) percentile retrieval
	// Index 0 = P50, Index 1 = P90, Index 2 = P95, Index 3 = P99
	l.P50 = time.Duration(l.psquare.Quantile(0))
	l.P90 = time.Duration(l.psquare.Quantile(1))
	l.P95 = time.Duration(l.psquare.Quantile(2))
	l.P99 = time.Duration(l.psquare.Quantile(3))
	l.Max = time.Duration(l.psquare.Max())

	// Use the ring buffer's Sum for Mean calculation to maintain semantic
	// compatibility with the circular buffer (tracks last sampleSize samples)
	l.Mean = l.Sum / time.Duration(count)

	return count
}

// percentileIndex computes the index for a given percentile (0-100).
func percentileIndex(n, p int) int {
	index := (p * n) / 100
	if index >= n {
		return n - 1
	}
	return index
}

// QueueMetrics tracks depth statistics for the scheduler's three sources
// of work: the cross-goroutine staging queue ExternalFill appends to, the
// main job queue jobs are actually popped from, and the Clock's pending
// timer heap.
type QueueMetrics struct {
	mu sync.RWMutex

	// Current depths
	ExternalCurrent int
	JobCurrent      int
	TimersCurrent   int

	// Maximum observed depths
	ExternalMax int
	JobMax      int
	TimersMax   int

	// Average depths (exponential moving average with alpha=0.1)
	// Warmstart: EMA initializes to first observed value for accuracy
	ExternalAvg float64
	JobAvg      float64
	TimersAvg   float64

	externalEMAInitialized bool
	jobEMAInitialized      bool
	timersEMAInitialized   bool
}

// UpdateExternal updates the external-fill staging queue depth metrics.
func (q *QueueMetrics) UpdateExternal(depth int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.ExternalCurrent = depth
	if depth > q.ExternalMax {
		q.ExternalMax = depth
	}
	// Exponential moving average with alpha=0.1
	// Warmstart: initialize to first observed value for accuracy
	if !q.externalEMAInitialized {
		q.ExternalAvg = float64(depth)
		q.externalEMAInitialized = true
	} else {
		q.ExternalAvg = 0.9*q.ExternalAvg + 0.1*float64(depth)
	}
}

// UpdateJob updates the main job queue depth metrics.
func (q *QueueMetrics) UpdateJob(depth int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.JobCurrent = depth
	if depth > q.JobMax {
		q.JobMax = depth
	}
	// Exponential moving average with alpha=0.1
	if !q.jobEMAInitialized {
		q.JobAvg = float64(depth)
		q.jobEMAInitialized = true
	} else {
		q.JobAvg = 0.9*q.JobAvg + 0.1*float64(depth)
	}
}

// UpdateTimers updates the Clock's pending-timer-heap depth metrics.
func (q *QueueMetrics) UpdateTimers(depth int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.TimersCurrent = depth
	if depth > q.TimersMax {
		q.TimersMax = depth
	}
	// Exponential moving average with alpha=0.1
	if !q.timersEMAInitialized {
		q.TimersAvg = float64(depth)
		q.timersEMAInitialized = true
	} else {
		q.TimersAvg = 0.9*q.TimersAvg + 0.1*float64(depth)
	}
}

// ThroughputCounter tracks the scheduler's job execution rate with a
// rolling window, feeding Metrics.JobsPerSec.
//
// Implementation Details:
//   - Rolling window length: configurable via windowSize parameter
//   - Bucket granularity: configurable via bucketSize parameter
//   - Rolling window algorithm: ring buffer with time-based rotation
//
// Configuration Trade-offs:
//
//	Window Size (windowSize):
//	  - Larger windows (e.g., 30 seconds): Smoother rate, slower to detect changes
//	  - Smaller windows (e.g., 5 seconds): Faster response, more volatile
//	  - Recommended: 10-30 seconds for production monitoring
//
//	Bucket Size (bucketSize):
//	  - Smaller buckets (e.g., 50ms): Higher precision, more CPU overhead
//	  - Larger buckets (e.g., 500ms): Lower precision, less CPU overhead
//	  - Recommended: 100ms for good balance in production
//
// Behavior:
//
//	The rate is 0 only while no job has been counted in the window. It
//	always divides by the full window length, so before the window has
//	filled it reads lower than the true rate. After warmup, it reflects
//	the average job rate over the entire window.
//
// Thread Safety: All methods (Increment, Rate) are thread-safe.
// Concurrent calls are safe from multiple goroutines.
type ThroughputCounter struct {
	lastRotation atomic.Value // Stores time.Time
	buckets      []int64
	bucketSize   time.Duration
	windowSize   time.Duration
	mu           sync.Mutex
}

// NewThroughputCounter creates a new throughput counter with a
// configurable rolling window.
//
// Parameters:
//
//	windowSize - Time window for rate calculation. Larger windows provide
//	            a smoother rate but slower change detection. Recommended:
//	            10-30 seconds for production monitoring. Must be > 0.
//	bucketSize - Granularity of the rolling window. Smaller buckets give
//	            higher precision but more CPU overhead. Recommended: 100ms.
//	            Must be > 0 and <= windowSize.
//
// Configuration Examples:
//
//	// Production: Balanced precision and smoothness
//	NewThroughputCounter(10*time.Second, 100*time.Millisecond) // 100 buckets
//
//	// Fast response, more volatile
//	NewThroughputCounter(5*time.Second, 50*time.Millisecond) // 100 buckets
//
//	// Long-term analysis: Very smooth, slow response
//	NewThroughputCounter(60*time.Second, 500*time.Millisecond) // 120 buckets
//
// Returns:
//
//	Ready-to-use throughput counter. Until the window fills, Rate divides
//	by the full window length and so reads low.
func NewThroughputCounter(windowSize, bucketSize time.Duration) *ThroughputCounter {
	// Input validation: Prevent zero or negative durations
	if windowSize <= 0 {
		panic("asyncrt: windowSize must be positive (use > 0 duration)")
	}
	if bucketSize <= 0 {
		panic("asyncrt: bucketSize must be positive (use > 0 duration)")
	}
	if bucketSize > windowSize {
		panic("asyncrt: bucketSize cannot exceed windowSize (use <= windowSize)")
	}

	// bucketCount is guaranteed to be >= 1 after the above validation
	bucketCount := int(windowSize / bucketSize)
	counter := &ThroughputCounter{
		buckets:    make([]int64, bucketCount),
		bucketSize: bucketSize,
		windowSize: windowSize,
	}
	counter.lastRotation.Store(time.Now())
	return counter
}

// Increment records one job execution.
// Thread-safe and O(1).
func (t *ThroughputCounter) Increment() {
	t.rotate()
	t.mu.Lock()
	t.buckets[len(t.buckets)-1]++
	t.mu.Unlock()
}

// rotate advances the bucket counter if time has passed.
func (t *ThroughputCounter) rotate() {
	t.mu.Lock() // critical fix: lock first to prevent race
	defer t.mu.Unlock()

	now := time.Now()
	lastRotation := t.lastRotation.Load().(time.Time)
	elapsed := now.Sub(lastRotation)

	// Overflow protection: calculate as int64, clamp to safe range, then cast to int
	// This prevents 32-bit overflow on extreme time jumps (system suspend, NTP changes)
	bucketsToAdvanceInt64 := int64(elapsed) / int64(t.bucketSize)

	// Clamp to window size to handle extreme negative/positive elapsed values
	if bucketsToAdvanceInt64 < 0 {
		// Clock jumped backwards - trigger full reset to recover
		bucketsToAdvanceInt64 = int64(len(t.buckets))
	} else if bucketsToAdvanceInt64 > int64(len(t.buckets)) {
		// Elapsed time exceeded window - clamp to full window reset
		bucketsToAdvanceInt64 = int64(len(t.buckets))
	}

	// NOW safe to cast to int (value guaranteed to be within [0, len(buckets)])
	bucketsToAdvance := int(bucketsToAdvanceInt64)

	// Full window reset: if we've exceeded window duration, reset all buckets
	// and sync lastRotation to current time to prevent permanent lag
	if bucketsToAdvance >= len(t.buckets) {
		for i := range t.buckets {
			t.buckets[i] = 0
		}
		t.lastRotation.Store(now)
		return
	}

	if bucketsToAdvance <= 0 {
		return
	}

	// Shift buckets left
	// Use copy for efficiency: bucket[0] gets bucket[advance], etc.
	copy(t.buckets, t.buckets[bucketsToAdvance:])

	// Zero out the new buckets at the end
	for i := len(t.buckets) - bucketsToAdvance; i < len(t.buckets); i++ {
		t.buckets[i] = 0
	}

	// Update last rotation aligned to bucket size
	t.lastRotation.Store(lastRotation.Add(time.Duration(bucketsToAdvance) * t.bucketSize))
}

// Rate returns the current jobs-per-second rate.
func (t *ThroughputCounter) Rate() float64 {
	t.rotate()

	t.mu.Lock()
	defer t.mu.Unlock()

	var sum int64
	for _, count := range t.buckets {
		sum += count
	}

	if sum == 0 {
		return 0
	}

	// rate = total count / monitored duration (len(buckets) * bucketSize)
	// This uses the actual monitored duration, not the configured windowSize.
	monitoredDuration := float64(len(t.buckets)) * t.bucketSize.Seconds()
	return float64(sum) / monitoredDuration
}
