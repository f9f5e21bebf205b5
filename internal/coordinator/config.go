package coordinator

import (
	"time"

	"go.uber.org/zap"

	"github.com/prime30/synapse-sub013/internal/engine"
	"github.com/prime30/synapse-sub013/internal/patch"
)

// DefaultApprovalThreshold is the confidence below which a change needs a
// human decision.
const DefaultApprovalThreshold = 0.7

// Config holds execution policy.
type Config struct {
	// ApprovalThreshold sends any change with lower confidence to
	// awaiting_approval.
	ApprovalThreshold float64
	// MaxRetries bounds re-dispatches of a task after recoverable errors.
	MaxRetries int
	Retry      engine.RetryPolicy
	// ExecutionTimeout bounds the wall-clock time of one execution, 0 disables.
	ExecutionTimeout time.Duration
	// MaxConcurrent bounds the workers running at once within one execution.
	MaxConcurrent int
	// ReviewRequired hands the aggregate changes to the reviewer before
	// completion.
	ReviewRequired bool
	// WriteOnComplete writes final contents to the store when an execution
	// completes without needing approval.
	WriteOnComplete bool
	// Budget is checked against every applied change.
	Budget patch.ChangeBudget
	// StuckWindow bounds each worker's loop detection history.
	StuckWindow int
}

// DefaultConfig returns the default execution policy.
func DefaultConfig() Config {
	return Config{
		ApprovalThreshold: DefaultApprovalThreshold,
		MaxRetries:        2,
		Retry: engine.RetryPolicy{
			MaxRetries:   2,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     10 * time.Second,
			Multiplier:   2.0,
			Jitter:       true,
		},
		ExecutionTimeout: 15 * time.Minute,
		MaxConcurrent:    4,
		StuckWindow:      256,
	}
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.log = l
		}
	}
}

// WithReviewer sets the review step used when Config.ReviewRequired is set.
func WithReviewer(r Reviewer) Option {
	return func(c *Coordinator) { c.reviewer = r }
}

// WithConfig replaces the execution policy.
func WithConfig(cfg Config) Option {
	return func(c *Coordinator) {
		if cfg.MaxConcurrent <= 0 {
			cfg.MaxConcurrent = 1
		}
		if cfg.MaxRetries < 0 {
			cfg.MaxRetries = 0
		}
		c.cfg = cfg
	}
}

// WithOnFinish registers a callback invoked with the final state of every
// execution, after it reached a terminal status.
func WithOnFinish(fn func(ExecutionState)) Option {
	return func(c *Coordinator) { c.onFinish = fn }
}
