package hooks

import (
	"encoding/json"
	"net/http"

	"github.com/sparklive/rustmailer/internal/apperr"
	"github.com/sparklive/rustmailer/internal/scheduler"
	"github.com/sparklive/rustmailer/internal/store"
)

// RegisterDecoder wires the "event_hook" task kind into registry, binding
// every decoded task to meta/nats/httpClient so Run has what it needs.
func RegisterDecoder(registry *scheduler.Registry, meta *store.MetaStore, nats NATSPublisher, httpClient *http.Client) {
	registry.Register(TaskKey, func(params []byte) (scheduler.Task, error) {
		var t EventHookTask
		if err := json.Unmarshal(params, &t); err != nil {
			return nil, apperr.Wrap(err, apperr.InternalError, "failed to decode event_hook task params")
		}
		return t.Bind(meta, nats, httpClient), nil
	})
}
