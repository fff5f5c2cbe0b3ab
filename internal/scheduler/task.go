// Package scheduler is RustMailer's task scheduler (C3): registration of
// task kinds, per-queue worker pools, a 200ms dispatch loop driving the
// store's atomic fetch-and-flip, heartbeats, retry-on-failure, and periodic
// cleanup. Grounded on original_source/src/modules/scheduler/{flow,
// processor,updater,periodic,cleaner}.rs, translated from tokio tasks and
// mpsc channels into goroutines and buffered Go channels.
package scheduler

import (
	"context"
	"encoding/json"

	"github.com/sparklive/rustmailer/internal/model"
)

// Task is implemented by every registered task kind's parameter struct.
type Task interface {
	// Key is the stable task-kind string, e.g. "send_email".
	Key() string
	// Queue is the named worker pool this task dispatches into.
	Queue() string
	// DelaySeconds is the default delay applied on first insert.
	DelaySeconds() uint32
	// RetryPolicy is the default retry policy for this kind; the scheduler
	// re-reads the policy stored on the task row on every completion so
	// operator tweaks apply without a code change.
	RetryPolicy() model.RetryPolicy
	// Run executes the task. The context is cancelled on scheduler shutdown;
	// well-behaved tasks poll ctx.Err() at safe points but are not forcibly
	// cancelled mid-flight.
	Run(ctx context.Context, taskID model.TaskID) error
}

// Decoder deserializes a task kind's opaque parameter blob back into a Task.
type Decoder func(params []byte) (Task, error)

// Registry maps task-kind keys to their Decoder.
type Registry struct {
	decoders map[string]Decoder
}

func NewRegistry() *Registry {
	return &Registry{decoders: make(map[string]Decoder)}
}

// Register adds kind's decoder. Panics on duplicate registration, since a
// duplicate kind registration is a programmer error. Queues are not
// registered: the scheduler creates a queue's processor on first dispatch,
// so a task naming any queue is run and no queue is rejected as unknown.
func (r *Registry) Register(kind string, dec Decoder) {
	if _, exists := r.decoders[kind]; exists {
		panic("scheduler: duplicate task kind registered: " + kind)
	}
	r.decoders[kind] = dec
}

func (r *Registry) Decode(kind string, params []byte) (Task, error) {
	dec, ok := r.decoders[kind]
	if !ok {
		return nil, unknownKindError{kind: kind}
	}
	return dec(params)
}

type unknownKindError struct{ kind string }

func (e unknownKindError) Error() string { return "scheduler: unknown task kind " + e.kind }

// MarshalParams is a small json.Marshal convenience used by every task
// kind's submit-side constructor.
func MarshalParams(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}
