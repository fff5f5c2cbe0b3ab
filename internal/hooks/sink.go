package hooks

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sparklive/rustmailer/internal/apperr"
	"github.com/sparklive/rustmailer/internal/events"
	"github.com/sparklive/rustmailer/internal/scheduler"
	"github.com/sparklive/rustmailer/internal/store"
)

// Sink implements events.HookTaskSink by turning each HookTaskParams into an
// EventHookTask and submitting it to the scheduler.
type Sink struct {
	scheduler *scheduler.Scheduler
	meta      *store.MetaStore
	nats      NATSPublisher
	http      *http.Client
}

func NewSink(sched *scheduler.Scheduler, meta *store.MetaStore, nats NATSPublisher) *Sink {
	return &Sink{
		scheduler: sched,
		meta:      meta,
		nats:      nats,
		http:      &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *Sink) SubmitHookTasks(params []events.HookTaskParams) error {
	tasks := make([]scheduler.Task, 0, len(params))
	for _, p := range params {
		payload, err := json.Marshal(p.EventPayload)
		if err != nil {
			return apperr.Wrap(err, apperr.InternalError, "failed to marshal hook event payload")
		}
		task := (&EventHookTask{
			HookID:       p.HookID,
			AccountID:    p.AccountID,
			AccountEmail: p.AccountEmail,
			EventType:    p.EventType,
			EventPayload: payload,
		}).Bind(s.meta, s.nats, s.http)
		tasks = append(tasks, task)
	}
	return s.scheduler.SubmitBatch(tasks, nil)
}
