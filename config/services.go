package config

import "time"

// WorkerConfig contains worker pool configuration.
type WorkerConfig struct {
	// Width is the number of concurrently running jobs.
	Width int `env:"WORKER_WIDTH" envDefault:"2"`

	// QueueDepth is the maximum number of jobs waiting for a worker.
	// Admission beyond this depth is rejected with a queue-full error.
	QueueDepth int `env:"WORKER_QUEUE_DEPTH" envDefault:"64"`
}

// Sanitize applies guardrails to worker configuration values.
func (w *WorkerConfig) Sanitize() {
	if w.Width < 1 {
		w.Width = 1
	}
	if w.QueueDepth < 1 {
		w.QueueDepth = 1
	}
}

// StreamConfig contains event stream configuration.
type StreamConfig struct {
	// HeartbeatInterval is how long a stream may sit idle before a
	// heartbeat comment is written to keep intermediaries from timing out.
	HeartbeatInterval time.Duration `env:"STREAM_HEARTBEAT_INTERVAL" envDefault:"10s"`

	// PollInterval is the fallback wakeup interval for stream subscribers.
	PollInterval time.Duration `env:"STREAM_POLL_INTERVAL" envDefault:"500ms"`
}

// Sanitize applies guardrails to stream configuration values.
func (s *StreamConfig) Sanitize() {
	if s.HeartbeatInterval < time.Second {
		s.HeartbeatInterval = time.Second
	}
	if s.PollInterval < 50*time.Millisecond {
		s.PollInterval = 50 * time.Millisecond
	}
}

// PipelineConfig contains analysis pipeline configuration.
type PipelineConfig struct {
	// DemoStepDelay is the pause between demo pipeline snapshots.
	// The demo pipeline backs local development and smoke tests; a real
	// provider-backed pipeline replaces it through the factory seam.
	DemoStepDelay time.Duration `env:"PIPELINE_DEMO_STEP_DELAY" envDefault:"200ms"`
}

// Sanitize applies guardrails to pipeline configuration values.
func (p *PipelineConfig) Sanitize() {
	if p.DemoStepDelay < 0 {
		p.DemoStepDelay = 0
	}
}
