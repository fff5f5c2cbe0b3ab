package model

import (
	"time"

	"github.com/sparklive/rustmailer/internal/idgen"
)

// TaskID is the 96-bit scheduler task identifier.
type TaskID = idgen.TaskID

// TaskStatus is the scheduler's monotone (mostly) status lattice:
// Scheduled -> Running -> {Success, Failed -> Scheduled (retry), Removed, Stopped}.
type TaskStatus int8

const (
	TaskScheduled TaskStatus = iota
	TaskRunning
	TaskSuccess
	TaskFailed
	TaskRemoved
	TaskStopped
)

func (s TaskStatus) String() string {
	switch s {
	case TaskScheduled:
		return "scheduled"
	case TaskRunning:
		return "running"
	case TaskSuccess:
		return "success"
	case TaskFailed:
		return "failed"
	case TaskRemoved:
		return "removed"
	case TaskStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is one completion status must not overwrite.
func (s TaskStatus) Terminal() bool {
	return s == TaskRemoved || s == TaskStopped
}

// RetryStrategyKind selects how next_run is pushed forward on failure.
type RetryStrategyKind string

const (
	RetryLinear      RetryStrategyKind = "linear"
	RetryExponential RetryStrategyKind = "exponential"
)

// RetryPolicy is re-read from task metadata on every completion so operator
// tweaks of a running task's policy take effect without a code change.
type RetryPolicy struct {
	Strategy   RetryStrategyKind `json:"strategy"`
	IntervalS  uint32            `json:"interval_s,omitempty"`  // Linear
	BaseS      uint32            `json:"base_s,omitempty"`      // Exponential
	MaxRetries *uint32           `json:"max_retries,omitempty"` // nil == unlimited
}

// NextWait computes the backoff duration for the attempt that just failed,
// where retryCount is the number of prior failures (0 on first failure).
func (p RetryPolicy) NextWait(retryCount uint32) time.Duration {
	switch p.Strategy {
	case RetryExponential:
		base := p.BaseS
		if base == 0 {
			base = 2
		}
		wait := uint64(1)
		for i := uint32(0); i < retryCount+1; i++ {
			wait *= uint64(base)
		}
		return time.Duration(wait) * time.Second
	default: // RetryLinear
		interval := p.IntervalS
		if interval == 0 {
			interval = 2
		}
		return time.Duration(interval) * time.Second
	}
}

// ExhaustedAfter reports whether a failure that brings retryCount to
// retryCount+1 should terminate the task instead of rescheduling it.
func (p RetryPolicy) ExhaustedAfter(retryCount uint32) bool {
	if p.MaxRetries == nil {
		return false
	}
	return retryCount+1 >= *p.MaxRetries
}

// TaskMeta is the central scheduler entity: a 96-bit id, a task-kind key, the
// opaque serialized parameters, its queue, status and retry bookkeeping.
type TaskMeta struct {
	ID          TaskID      `json:"id"`
	TaskKey     string      `json:"task_key"`
	Params      []byte      `json:"params"`
	Queue       string      `json:"queue"`
	Status      TaskStatus  `json:"status"`
	StopReason  *string     `json:"stop_reason,omitempty"`
	LastError   *string     `json:"last_error,omitempty"`
	LastDuration time.Duration `json:"last_duration"`
	RetryCount  uint32      `json:"retry_count"`
	RetryPolicy RetryPolicy `json:"retry_policy"`
	NextRun     time.Time   `json:"next_run"`
	HeartbeatAt *time.Time  `json:"heartbeat_at,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}
