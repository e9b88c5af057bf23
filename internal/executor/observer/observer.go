// Package observer defines metrics hooks for code execution.
package observer

import (
	"context"
	"time"
)

// MetricsRecorder records execution metrics.
type MetricsRecorder interface {
	ObserveCompile(ctx context.Context, languageID string, ok bool, duration time.Duration)
	ObserveRun(ctx context.Context, languageID string, outcome string, duration time.Duration)
	ObserveRejected(ctx context.Context, languageID string, reason string)
	ObserveSweep(ctx context.Context, removed int, err error)
}

// NoopMetricsRecorder discards all metrics.
type NoopMetricsRecorder struct{}

func (NoopMetricsRecorder) ObserveCompile(ctx context.Context, languageID string, ok bool, duration time.Duration) {
}

func (NoopMetricsRecorder) ObserveRun(ctx context.Context, languageID string, outcome string, duration time.Duration) {
}

func (NoopMetricsRecorder) ObserveRejected(ctx context.Context, languageID string, reason string) {}

func (NoopMetricsRecorder) ObserveSweep(ctx context.Context, removed int, err error) {}
