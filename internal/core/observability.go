package core

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Logger is the structured logging surface used by the service. Key/value
// pairs follow the message.
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() Logger { return noopLogger{} }

// ZapLogger adapts a zap sugared logger to the Logger surface.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger wraps the given zap logger. A nil logger falls back to
// zap.NewNop.
func NewZapLogger(logger *zap.Logger) *ZapLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapLogger{sugar: logger.Sugar()}
}

// Debug logs at debug level.
func (l *ZapLogger) Debug(msg string, kv ...any) { l.sugar.Debugw(msg, kv...) }

// Info logs at info level.
func (l *ZapLogger) Info(msg string, kv ...any) { l.sugar.Infow(msg, kv...) }

// Warn logs at warn level.
func (l *ZapLogger) Warn(msg string, kv ...any) { l.sugar.Warnw(msg, kv...) }

// Error logs at error level.
func (l *ZapLogger) Error(msg string, kv ...any) { l.sugar.Errorw(msg, kv...) }

// MetricsRecorder receives one observation per service operation.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// Tracer opens a span per service operation.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is closed exactly once with the operation's terminal error.
type TraceSpan interface {
	End(err error)
}

// PrometheusMetricsRecorder exports operation timings and result counters
// through a prometheus registry.
type PrometheusMetricsRecorder struct {
	durations *prometheus.HistogramVec
	results   *prometheus.CounterVec
}

// NewPrometheusMetricsRecorder registers the collectors with reg (the
// default registerer when nil).
func NewPrometheusMetricsRecorder(reg prometheus.Registerer) *PrometheusMetricsRecorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &PrometheusMetricsRecorder{
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "blockcore",
			Subsystem: "service",
			Name:      "operation_duration_seconds",
			Help:      "Duration of model operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blockcore",
			Subsystem: "service",
			Name:      "operation_results_total",
			Help:      "Model operation outcomes by status.",
		}, []string{"operation", "status"}),
	}
	reg.MustRegister(r.durations, r.results)
	return r
}

// Observe records one operation outcome.
func (r *PrometheusMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	r.durations.WithLabelValues(operation).Observe(duration.Seconds())
	r.results.WithLabelValues(operation, status).Inc()
}
