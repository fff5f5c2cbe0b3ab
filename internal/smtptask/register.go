package smtptask

import (
	"github.com/sparklive/rustmailer/internal/diskcache"
	"github.com/sparklive/rustmailer/internal/events"
	"github.com/sparklive/rustmailer/internal/scheduler"
	"github.com/sparklive/rustmailer/internal/store"
)

// RegisterDecoder wires the "send_email" task kind into registry.
func RegisterDecoder(registry *scheduler.Registry, cache *diskcache.Cache, meta *store.MetaStore,
	resolver ExecutorResolver, flagger MailboxFlagger, ch *events.Channel, instanceURL string) {
	registry.Register(TaskKey, func(raw []byte) (scheduler.Task, error) {
		params, err := decodeParams(raw)
		if err != nil {
			return nil, err
		}
		return (&SmtpTask{Params: params}).Bind(cache, meta, resolver, flagger, ch, instanceURL), nil
	})
}
