package asyncrt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsCollectorRecordsJobLatency(t *testing.T) {
	c := newMetricsCollector()
	c.beginJob()
	time.Sleep(time.Millisecond)
	c.recordJob()

	snap := c.Snapshot()
	assert.EqualValues(t, 1, snap.JobsTotal)
	assert.Greater(t, snap.Latency.Sum, time.Duration(0))
}

func TestMetricsCollectorRecordPollAccumulates(t *testing.T) {
	c := newMetricsCollector()
	c.recordPoll(2, 5)
	c.recordPoll(3, 7)

	snap := c.Snapshot()
	assert.EqualValues(t, 2, snap.PollCount)
	assert.EqualValues(t, 5, snap.TimersFired)
	assert.EqualValues(t, 7, snap.OpenFds, "openFds is a gauge: it reflects the most recent poll, not a sum")
}

func TestThroughputCounterRejectsNonPositiveDurations(t *testing.T) {
	assert.Panics(t, func() { NewThroughputCounter(0, time.Millisecond) })
	assert.Panics(t, func() { NewThroughputCounter(time.Second, 0) })
	assert.Panics(t, func() { NewThroughputCounter(time.Second, 2*time.Second) })
}

func TestThroughputCounterZeroBeforeAnyIncrement(t *testing.T) {
	c := NewThroughputCounter(time.Second, 100*time.Millisecond)
	assert.Zero(t, c.Rate())
}

func TestThroughputCounterReflectsIncrements(t *testing.T) {
	c := NewThroughputCounter(time.Second, 100*time.Millisecond)
	c.Increment()
	c.Increment()
	assert.Greater(t, c.Rate(), float64(0))
}

func TestLatencyMetricsSampleComputesPercentilesForSmallCounts(t *testing.T) {
	l := &LatencyMetrics{}
	l.Record(10 * time.Millisecond)
	l.Record(20 * time.Millisecond)
	l.Record(30 * time.Millisecond)

	count := l.Sample()
	require.Equal(t, 3, count)
	assert.Equal(t, 30*time.Millisecond, l.Max)
}

func TestQueueMetricsUpdateExternalTracksMaxAndAverage(t *testing.T) {
	q := &QueueMetrics{}
	q.UpdateExternal(5)
	q.UpdateExternal(2)
	assert.Equal(t, 2, q.ExternalCurrent)
	assert.Equal(t, 5, q.ExternalMax)
	assert.InDelta(t, 4.7, q.ExternalAvg, 0.01)
}

func TestQueueMetricsUpdateJobAndTimersTrackIndependently(t *testing.T) {
	q := &QueueMetrics{}
	q.UpdateJob(3)
	q.UpdateTimers(1)
	assert.Equal(t, 3, q.JobCurrent)
	assert.Equal(t, 1, q.TimersCurrent)
}

func TestMetricsCollectorSnapshotReportsThroughput(t *testing.T) {
	c := newMetricsCollector()
	c.recordJob()
	c.recordJob()

	snap := c.Snapshot()
	assert.Greater(t, snap.JobsPerSec, float64(0))
}
