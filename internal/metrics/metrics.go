package metrics

import (
	"sort"
	"sync"
	"time"
)

type Metrics struct {
	mu sync.RWMutex

	// Counters
	QueriesIssued      int64
	QueriesFailed      int64
	ArticlesAccepted   int64
	ArticlesRejected   int64
	DuplicatesFiltered int64
	CacheHits          int64
	CacheMisses        int64
	QuotesFetched      int64
	QuoteFailures      int64

	// Timings
	LastProcessingTime    time.Duration
	AverageProcessingTime time.Duration
	TotalProcessingTime   time.Duration
	ProcessingCount       int64

	// Status
	LastRunTime   time.Time
	LastErrorTime time.Time
	LastError     string
	IsHealthy     bool

	// failing holds the last error of each source whose latest fetch failed.
	failing map[string]string
}

var Global = New()

func New() *Metrics {
	return &Metrics{IsHealthy: true, failing: make(map[string]string)}
}

func (m *Metrics) IncrementQueriesIssued() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.QueriesIssued++
}

func (m *Metrics) IncrementQueriesFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.QueriesFailed++
}

// RecordFiltered adds the outcome of one quality-filter pass.
func (m *Metrics) RecordFiltered(accepted, rejected int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ArticlesAccepted += int64(accepted)
	m.ArticlesRejected += int64(rejected)
}

func (m *Metrics) AddDuplicatesFiltered(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DuplicatesFiltered += int64(n)
}

func (m *Metrics) IncrementCacheHits() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CacheHits++
}

func (m *Metrics) IncrementCacheMisses() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CacheMisses++
}

func (m *Metrics) RecordQuote(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ok {
		m.QuotesFetched++
	} else {
		m.QuoteFailures++
	}
}

func (m *Metrics) RecordProcessingTime(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastProcessingTime = duration
	m.TotalProcessingTime += duration
	m.ProcessingCount++
	m.AverageProcessingTime = m.TotalProcessingTime / time.Duration(m.ProcessingCount)
}

// SetLastRun records a successful run. Health is restored only when no
// source is still failing.
func (m *Metrics) SetLastRun() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastRunTime = time.Now()
	m.IsHealthy = len(m.failing) == 0
}

// SetSourceError marks source as failing until SetSourceOK clears it.
func (m *Metrics) SetSourceError(source, err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing == nil {
		m.failing = make(map[string]string)
	}
	m.failing[source] = err
	m.LastError = err
	m.LastErrorTime = time.Now()
	m.IsHealthy = false
}

func (m *Metrics) SetSourceOK(source string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.failing, source)
	m.LastRunTime = time.Now()
	m.IsHealthy = len(m.failing) == 0
}

// FailingSources returns the sources whose latest fetch failed, sorted.
func (m *Metrics) FailingSources() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.failingSources()
}

func (m *Metrics) failingSources() []string {
	sources := make([]string, 0, len(m.failing))
	for s := range m.failing {
		sources = append(sources, s)
	}
	sort.Strings(sources)
	return sources
}

func (m *Metrics) SetError(err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err
	m.LastErrorTime = time.Now()
	m.IsHealthy = false
}

func (m *Metrics) Healthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.IsHealthy
}

func (m *Metrics) cacheHitRate() float64 {
	total := m.CacheHits + m.CacheMisses
	if total == 0 {
		return 0
	}
	return float64(m.CacheHits) / float64(total) * 100
}

func (m *Metrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"queries_issued":             m.QueriesIssued,
		"queries_failed":             m.QueriesFailed,
		"articles_accepted":          m.ArticlesAccepted,
		"articles_rejected":          m.ArticlesRejected,
		"duplicates_filtered":        m.DuplicatesFiltered,
		"cache_hits":                 m.CacheHits,
		"cache_misses":               m.CacheMisses,
		"cache_hit_rate":             m.cacheHitRate(),
		"quotes_fetched":             m.QuotesFetched,
		"quote_failures":             m.QuoteFailures,
		"last_processing_time_ms":    m.LastProcessingTime.Milliseconds(),
		"average_processing_time_ms": m.AverageProcessingTime.Milliseconds(),
		"last_run_time":              formatTime(m.LastRunTime),
		"last_error_time":            formatTime(m.LastErrorTime),
		"last_error":                 m.LastError,
		"is_healthy":                 m.IsHealthy,
		"failing_sources":            m.failingSources(),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
