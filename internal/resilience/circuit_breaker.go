package resilience

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/hivetechs-collective/hive-consensus/internal/gomindlog"
)

// CircuitState is the circuit breaker's current state.
type CircuitState int32

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures a CircuitBreaker.
type CircuitBreakerConfig struct {
	Name             string
	ErrorThreshold   float64 // error rate in [0,1] that trips the breaker open
	VolumeThreshold  int     // minimum requests before the error rate is evaluated
	SleepWindow      time.Duration
	HalfOpenRequests int
	Logger           gomindlog.Logger
}

// DefaultCircuitBreakerConfig matches the teacher's production defaults:
// 50% error rate over a minimum of 10 requests trips the breaker, a
// 30s sleep window, 5 half-open probes.
func DefaultCircuitBreakerConfig(name string) *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		Name:             name,
		ErrorThreshold:   0.5,
		VolumeThreshold:  10,
		SleepWindow:      30 * time.Second,
		HalfOpenRequests: 5,
		Logger:           gomindlog.NoOpLogger{},
	}
}

// CircuitBreaker is a threshold-based breaker over a rolling request
// count: closed allows all traffic, open rejects everything until the
// sleep window elapses, half-open allows a bounded number of probes to
// decide whether to close again.
type CircuitBreaker struct {
	config *CircuitBreakerConfig

	mu            sync.Mutex
	state         CircuitState
	openedAt      time.Time
	halfOpenCount int

	successCount int64
	failureCount int64
}

func NewCircuitBreaker(config *CircuitBreakerConfig) *CircuitBreaker {
	if config == nil {
		config = DefaultCircuitBreakerConfig("default")
	}
	if config.Logger == nil {
		config.Logger = gomindlog.NoOpLogger{}
	}
	return &CircuitBreaker{config: config, state: StateClosed}
}

// CanExecute reports whether a new call may proceed, transitioning
// Open -> HalfOpen once the sleep window has elapsed.
func (cb *CircuitBreaker) CanExecute() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(cb.openedAt) >= cb.config.SleepWindow {
			cb.transitionTo(StateHalfOpen)
			cb.halfOpenCount = 0
			return true
		}
		return false
	case StateHalfOpen:
		if cb.halfOpenCount < cb.config.HalfOpenRequests {
			cb.halfOpenCount++
			return true
		}
		return false
	default:
		return false
	}
}

// RecordSuccess registers a successful call.
func (cb *CircuitBreaker) RecordSuccess() {
	atomic.AddInt64(&cb.successCount, 1)

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateHalfOpen {
		cb.transitionTo(StateClosed)
		cb.resetCountsLocked()
	}
}

// RecordFailure registers a failed call, tripping the breaker open once
// the configured error rate over the volume threshold is exceeded.
func (cb *CircuitBreaker) RecordFailure() {
	atomic.AddInt64(&cb.failureCount, 1)

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen {
		cb.transitionTo(StateOpen)
		cb.openedAt = time.Now()
		return
	}

	successes := atomic.LoadInt64(&cb.successCount)
	failures := atomic.LoadInt64(&cb.failureCount)
	total := successes + failures
	if total < int64(cb.config.VolumeThreshold) {
		return
	}
	if float64(failures)/float64(total) >= cb.config.ErrorThreshold {
		cb.transitionTo(StateOpen)
		cb.openedAt = time.Now()
	}
}

func (cb *CircuitBreaker) resetCountsLocked() {
	atomic.StoreInt64(&cb.successCount, 0)
	atomic.StoreInt64(&cb.failureCount, 0)
}

func (cb *CircuitBreaker) transitionTo(to CircuitState) {
	from := cb.state
	cb.state = to
	if from != to {
		cb.config.Logger.Info("circuit breaker state change", map[string]interface{}{
			"breaker": cb.config.Name,
			"from":    from.String(),
			"to":      to.String(),
		})
	}
}

// State returns the breaker's current state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
