package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records checkout session outcomes and widget lifecycle
// events.
type CheckoutMetrics struct {
	sessionsStarted   prometheus.Counter
	sessionsConfirmed prometheus.Counter
	sessionsFailed    *prometheus.CounterVec
	widgetResets      prometheus.Counter
	lateResponses     *prometheus.CounterVec
	stepDuration      *prometheus.HistogramVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided
// registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	sessionsStarted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "checkout_sessions_started",
		Help: "Checkout sessions opened.",
	})
	sessionsConfirmed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "checkout_sessions_confirmed",
		Help: "Checkout sessions that reached settlement confirmation.",
	})
	sessionsFailed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_sessions_failed",
		Help: "Checkout sessions that ended in a failure state.",
	}, []string{"kind"})
	widgetResets := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "checkout_widget_resets",
		Help: "Payment widget teardown/remount cycles.",
	})
	lateResponses := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_late_responses_ignored",
		Help: "Responses that arrived after the session was cancelled.",
	}, []string{"operation"})
	stepDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_step_duration_seconds",
		Help:    "Wall time spent in each checkout step.",
		Buckets: prometheus.DefBuckets,
	}, []string{"step"})
	reg.MustRegister(sessionsStarted, sessionsConfirmed, sessionsFailed, widgetResets, lateResponses, stepDuration)
	return &CheckoutMetrics{
		sessionsStarted:   sessionsStarted,
		sessionsConfirmed: sessionsConfirmed,
		sessionsFailed:    sessionsFailed,
		widgetResets:      widgetResets,
		lateResponses:     lateResponses,
		stepDuration:      stepDuration,
	}
}

// IncSessionStarted counts a freshly opened checkout session.
func (c *CheckoutMetrics) IncSessionStarted() {
	if c == nil || c.sessionsStarted == nil {
		return
	}
	c.sessionsStarted.Inc()
}

// IncSessionConfirmed counts a session that reached the confirmed state.
func (c *CheckoutMetrics) IncSessionConfirmed() {
	if c == nil || c.sessionsConfirmed == nil {
		return
	}
	c.sessionsConfirmed.Inc()
}

// IncSessionFailed counts a terminal failure labeled by error kind.
func (c *CheckoutMetrics) IncSessionFailed(kind string) {
	if c == nil || c.sessionsFailed == nil {
		return
	}
	c.sessionsFailed.WithLabelValues(normalizeLabel(kind)).Inc()
}

// IncWidgetReset counts one widget teardown/remount cycle.
func (c *CheckoutMetrics) IncWidgetReset() {
	if c == nil || c.widgetResets == nil {
		return
	}
	c.widgetResets.Inc()
}

// IncLateResponse counts a response discarded because the session had
// already been cancelled.
func (c *CheckoutMetrics) IncLateResponse(operation string) {
	if c == nil || c.lateResponses == nil {
		return
	}
	c.lateResponses.WithLabelValues(normalizeLabel(operation)).Inc()
}

// ObserveStepDuration records the wall time spent in the named step.
func (c *CheckoutMetrics) ObserveStepDuration(step string, duration time.Duration) {
	if c == nil || c.stepDuration == nil {
		return
	}
	c.stepDuration.WithLabelValues(normalizeLabel(step)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
