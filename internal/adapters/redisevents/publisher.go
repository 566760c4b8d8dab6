// Package redisevents mirrors job events to redis pub/sub channels so
// external consumers can tap the stream. Delivery is fire-and-forget;
// exactly-once semantics are out of scope.
package redisevents

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/target/analysis-api/internal/domain/model"
)

const publishTimeout = 2 * time.Second

// Publisher publishes every appended event to analysis:jobs:<id>:events.
type Publisher struct {
	client redis.UniversalClient
	logger *slog.Logger
}

// Options groups dependencies for the Publisher.
type Options struct {
	Client redis.UniversalClient // Required
	Logger *slog.Logger          // Optional
}

// NewPublisher constructs a Publisher.
func NewPublisher(opts Options) (*Publisher, error) {
	if opts.Client == nil {
		return nil, errors.New("redis client is required")
	}
	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "redis_events")
	}
	return &Publisher{client: opts.Client, logger: logger}, nil
}

// Channel returns the pub/sub channel name for a job.
func Channel(jobID string) string {
	return "analysis:jobs:" + jobID + ":events"
}

// Publish mirrors one event. Failures are logged and swallowed so the
// append path never stalls on the mirror.
func (p *Publisher) Publish(ctx context.Context, jobID string, ev model.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		if p.logger != nil {
			p.logger.Error("marshal event for mirror", "job_id", jobID, "seq", ev.Seq, "error", err)
		}
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := p.client.Publish(pubCtx, Channel(jobID), payload).Err(); err != nil {
		if p.logger != nil {
			p.logger.Debug("event mirror publish failed", "job_id", jobID, "seq", ev.Seq, "error", err)
		}
	}
}
