// Package core provides the service-facing interfaces of the analysis job system.
package core

import (
	"context"
	"errors"

	"github.com/target/analysis-api/internal/domain/model"
)

// ErrPipelineDone is returned by Pipeline.Next when the snapshot sequence is
// exhausted without error.
var ErrPipelineDone = errors.New("pipeline done")

// Pipeline produces a finite, ordered, lazy sequence of partial-result
// snapshots for one job. Implementations resolve provider and stage selection
// internally; the core only consumes snapshots and usage counters.
type Pipeline interface {
	// Next blocks until the next snapshot is available and returns it.
	// It returns ErrPipelineDone after the final snapshot has been consumed,
	// or any other error to terminate the sequence as failed.
	Next(ctx context.Context) (model.Snapshot, error)

	// Usage returns a point-in-time read of cumulative usage counters.
	Usage() model.UsageStats
}

// PipelineFactory builds a Pipeline for one job's request parameters.
type PipelineFactory interface {
	New(ctx context.Context, req model.AnalysisRequest) (Pipeline, error)
}

// PipelineFactoryFunc adapts a function to the PipelineFactory interface.
type PipelineFactoryFunc func(ctx context.Context, req model.AnalysisRequest) (Pipeline, error)

// New calls f.
func (f PipelineFactoryFunc) New(ctx context.Context, req model.AnalysisRequest) (Pipeline, error) {
	return f(ctx, req)
}

// EventSink receives a copy of every appended event. Delivery is best-effort
// and must never block the append path.
type EventSink interface {
	Publish(ctx context.Context, jobID string, ev model.Event)
}
