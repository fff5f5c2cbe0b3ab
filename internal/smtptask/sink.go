package smtptask

import (
	"github.com/sparklive/rustmailer/internal/diskcache"
	"github.com/sparklive/rustmailer/internal/events"
	"github.com/sparklive/rustmailer/internal/model"
	"github.com/sparklive/rustmailer/internal/scheduler"
	"github.com/sparklive/rustmailer/internal/store"
)

// Sink implements compose.SendTaskSink.
type Sink struct {
	scheduler *scheduler.Scheduler
	cache     *diskcache.Cache
	meta      *store.MetaStore
	resolver  ExecutorResolver
	flagger   MailboxFlagger
	events    *events.Channel
	instance  string
}

func NewSink(sched *scheduler.Scheduler, cache *diskcache.Cache, meta *store.MetaStore,
	resolver ExecutorResolver, flagger MailboxFlagger, ch *events.Channel, instanceURL string) *Sink {
	return &Sink{scheduler: sched, cache: cache, meta: meta, resolver: resolver, flagger: flagger, events: ch, instance: instanceURL}
}

func (s *Sink) SubmitSendTasks(params []model.SmtpTaskParams, delaySeconds *uint32) error {
	tasks := make([]scheduler.Task, 0, len(params))
	for _, p := range params {
		tasks = append(tasks, (&SmtpTask{Params: p}).Bind(s.cache, s.meta, s.resolver, s.flagger, s.events, s.instance))
	}
	return s.scheduler.SubmitBatch(tasks, delaySeconds)
}
