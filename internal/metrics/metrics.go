package metrics

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Metric names recorded by the bot
const (
	EventsCreated           = "events_created"
	EventsStarted           = "events_started"
	EventsCancelledQuorum   = "events_cancelled_quorum"
	EventsCancelledManual   = "events_cancelled_manually"
	EventsLive              = "events_live"
	SignupsJoined           = "signups_joined"
	SignupsLeft             = "signups_left"
	SignupsRejectedFull     = "signups_rejected_full"
	SignupsIgnored          = "signups_ignored"
	ValidationFailures      = "validation_failures"
	CollaboratorFailures    = "collaborator_failures"
	PublishFailures         = "publish_failures"
	IntentLatency           = "intent_latency"
	ResolutionFanoutLatency = "resolution_fanout_latency"
	HTTPRequests            = "http_requests"
	HTTPErrors              = "http_errors"
	HTTPLatency             = "http_latency"
)

// TimerMetric captures timing information
type TimerMetric struct {
	Count         int64   `json:"count"`
	TotalTimeMs   int64   `json:"total_time_ms"`
	AverageTimeMs float64 `json:"average_time_ms"`
	MinTimeMs     int64   `json:"min_time_ms"`
	MaxTimeMs     int64   `json:"max_time_ms"`
}

type timer struct {
	count       int64
	totalTimeMs int64
	minTimeMs   int64
	maxTimeMs   int64
}

// Metrics is an in-process metrics collector
type Metrics struct {
	mu           sync.RWMutex
	counters     map[string]*int64
	gauges       map[string]*int64
	timers       map[string]*timer
	healthChecks map[string]*int64
	startTime    time.Time
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	return &Metrics{
		counters:     make(map[string]*int64),
		gauges:       make(map[string]*int64),
		timers:       make(map[string]*timer),
		healthChecks: make(map[string]*int64),
		startTime:    time.Now(),
	}
}

// IncrementCounter increments a counter by 1
func (m *Metrics) IncrementCounter(name string) {
	m.IncrementCounterBy(name, 1)
}

// IncrementCounterBy increments a counter by the specified value
func (m *Metrics) IncrementCounterBy(name string, value int64) {
	atomic.AddInt64(m.slot(m.counters, name), value)
}

// SetGauge sets a gauge to a specific value
func (m *Metrics) SetGauge(name string, value int64) {
	atomic.StoreInt64(m.slot(m.gauges, name), value)
}

// SetHealth sets the health status of a component
func (m *Metrics) SetHealth(component string, isHealthy bool) {
	var value int64
	if isHealthy {
		value = 1
	}
	atomic.StoreInt64(m.slot(m.healthChecks, component), value)
}

// slot returns the value cell for name, creating it on first use
func (m *Metrics) slot(values map[string]*int64, name string) *int64 {
	m.mu.RLock()
	v, exists := values[name]
	m.mu.RUnlock()
	if exists {
		return v
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Check again to avoid race conditions
	if v, exists = values[name]; !exists {
		v = new(int64)
		values[name] = v
	}
	return v
}

// RecordTimer records a timing measurement
func (m *Metrics) RecordTimer(name string, d time.Duration) {
	durationMs := d.Milliseconds()

	m.mu.RLock()
	t, exists := m.timers[name]
	m.mu.RUnlock()

	if !exists {
		m.mu.Lock()
		if t, exists = m.timers[name]; !exists {
			t = &timer{minTimeMs: math.MaxInt64}
			m.timers[name] = t
		}
		m.mu.Unlock()
	}

	atomic.AddInt64(&t.count, 1)
	atomic.AddInt64(&t.totalTimeMs, durationMs)

	for {
		currentMin := atomic.LoadInt64(&t.minTimeMs)
		if durationMs >= currentMin || atomic.CompareAndSwapInt64(&t.minTimeMs, currentMin, durationMs) {
			break
		}
	}
	for {
		currentMax := atomic.LoadInt64(&t.maxTimeMs)
		if durationMs <= currentMax || atomic.CompareAndSwapInt64(&t.maxTimeMs, currentMax, durationMs) {
			break
		}
	}
}

// Counter returns the current value of a counter
func (m *Metrics) Counter(name string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.counters[name]; ok {
		return atomic.LoadInt64(c)
	}
	return 0
}

// GetCounters returns all counters
func (m *Metrics) GetCounters() map[string]int64 {
	return m.load(m.counters)
}

// GetGauges returns all gauges
func (m *Metrics) GetGauges() map[string]int64 {
	return m.load(m.gauges)
}

func (m *Metrics) load(values map[string]*int64) map[string]int64 {
	out := make(map[string]int64)

	m.mu.RLock()
	defer m.mu.RUnlock()

	for name, v := range values {
		out[name] = atomic.LoadInt64(v)
	}
	return out
}

// GetTimers returns all timers
func (m *Metrics) GetTimers() map[string]TimerMetric {
	timers := make(map[string]TimerMetric)

	m.mu.RLock()
	defer m.mu.RUnlock()

	for name, t := range m.timers {
		count := atomic.LoadInt64(&t.count)
		totalTime := atomic.LoadInt64(&t.totalTimeMs)

		var average float64
		if count > 0 {
			average = float64(totalTime) / float64(count)
		}

		timers[name] = TimerMetric{
			Count:         count,
			TotalTimeMs:   totalTime,
			AverageTimeMs: average,
			MinTimeMs:     atomic.LoadInt64(&t.minTimeMs),
			MaxTimeMs:     atomic.LoadInt64(&t.maxTimeMs),
		}
	}

	return timers
}

// GetHealthChecks returns all health checks
func (m *Metrics) GetHealthChecks() map[string]bool {
	checks := make(map[string]bool)

	m.mu.RLock()
	defer m.mu.RUnlock()

	for name, health := range m.healthChecks {
		checks[name] = atomic.LoadInt64(health) > 0
	}

	return checks
}

// GetUptimeSeconds returns the bot uptime in seconds
func (m *Metrics) GetUptimeSeconds() int64 {
	return int64(time.Since(m.startTime).Seconds())
}

// GetAllMetrics returns all metrics in a structured format
func (m *Metrics) GetAllMetrics() map[string]interface{} {
	return map[string]interface{}{
		"uptime_seconds": m.GetUptimeSeconds(),
		"counters":       m.GetCounters(),
		"gauges":         m.GetGauges(),
		"timers":         m.GetTimers(),
		"health_checks":  m.GetHealthChecks(),
	}
}
