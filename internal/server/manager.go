package server

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/formulary-dev/formulary/internal/formula"
)

// SessionManager bounds the number of live pricing sessions and records pricing metrics
type SessionManager struct {
	maxSessions  int
	currentCount int
	mu           sync.RWMutex

	// Metrics
	totalSessions     prometheus.Counter
	activeSessions    prometheus.Gauge
	calculations      *prometheus.CounterVec
	recomputeDuration *prometheus.HistogramVec
	formulaFailures   *prometheus.CounterVec
}

// NewSessionManager creates a session manager registered with the default prometheus registry
func NewSessionManager(maxSessions int) *SessionManager {
	return NewSessionManagerWithRegistry(maxSessions, prometheus.DefaultRegisterer)
}

// NewSessionManagerWithRegistry creates a session manager with a custom registry. A nil
// registerer leaves the metrics unregistered.
func NewSessionManagerWithRegistry(maxSessions int, registerer prometheus.Registerer) *SessionManager {
	sm := &SessionManager{
		maxSessions: maxSessions,

		totalSessions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "formulary_live_sessions_total",
			Help: "Total number of live pricing sessions opened",
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "formulary_live_sessions_active",
			Help: "Number of currently open live pricing sessions",
		}),
		calculations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formulary_calculations_total",
			Help: "Total calculations by product and source",
		}, []string{"product_id", "source"}),
		recomputeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "formulary_recompute_duration_seconds",
			Help:    "Recompute request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"product_id"}),
		formulaFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formulary_formula_failures_total",
			Help: "Formulas that failed at price time and contributed 0, by error kind",
		}, []string{"kind"}),
	}

	if registerer != nil {
		registerer.MustRegister(sm.totalSessions)
		registerer.MustRegister(sm.activeSessions)
		registerer.MustRegister(sm.calculations)
		registerer.MustRegister(sm.recomputeDuration)
		registerer.MustRegister(sm.formulaFailures)
	}

	return sm
}

// OpenSession reserves a live session slot, reporting false when the server is at capacity
func (sm *SessionManager) OpenSession() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.currentCount >= sm.maxSessions {
		return false
	}
	sm.currentCount++
	sm.totalSessions.Inc()
	sm.activeSessions.Inc()
	return true
}

// CloseSession releases a slot taken by OpenSession
func (sm *SessionManager) CloseSession() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.currentCount == 0 {
		return
	}
	sm.currentCount--
	sm.activeSessions.Dec()
}

// ActiveSessions returns the number of open live sessions
func (sm *SessionManager) ActiveSessions() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.currentCount
}

// Calculated counts one calculation
func (sm *SessionManager) Calculated(productID, source string) {
	sm.calculations.WithLabelValues(productID, source).Inc()
}

// ObserveRecompute records how long a recompute request took
func (sm *SessionManager) ObserveRecompute(productID string, d time.Duration) {
	sm.recomputeDuration.WithLabelValues(productID).Observe(d.Seconds())
}

// FormulaFailed counts a formula evaluation that degraded to 0
func (sm *SessionManager) FormulaFailed(_ int, err error) {
	kind := string(formula.KindOf(err))
	if kind == "" {
		kind = "unknown"
	}
	sm.formulaFailures.WithLabelValues(kind).Inc()
}
