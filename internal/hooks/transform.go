package hooks

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dop251/goja"

	"github.com/sparklive/rustmailer/internal/apperr"
)

const transformTimeout = 2 * time.Second

// RunTransform evaluates script against the event payload and returns the
// transformed JSON, or nil if the script returned null/undefined (meaning
// "drop this delivery"). A fresh goja runtime is used per call: no shared
// state between invocations, no filesystem or network bindings, and an
// execution deadline enforced by an interrupt timer. Grounded on
// sekia-ai-sekia's gopher-lua sandboxing pattern (fresh interpreter per
// call, no host bindings beyond the input value), adapted to goja because
// its native JS value <-> Go interface{} conversion is the closest fit for
// "map one JSON value to another."
func RunTransform(ctx context.Context, script string, payload []byte) ([]byte, error) {
	var event interface{}
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, apperr.Wrap(err, apperr.InternalError, "failed to decode event payload for transform")
	}

	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))

	deadline, cancel := context.WithTimeout(ctx, transformTimeout)
	defer cancel()
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-deadline.Done():
			vm.Interrupt("transform script exceeded its execution deadline")
		case <-done:
		}
	}()

	if err := vm.Set("event", event); err != nil {
		return nil, apperr.Wrap(err, apperr.InternalError, "failed to bind event into transform script")
	}

	wrapped := "(function(event) {\n" + script + "\n})(event)"
	value, err := vm.RunString(wrapped)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.VRLScriptSyntaxError, "hook transform script failed")
	}

	exported := value.Export()
	if exported == nil {
		return nil, nil
	}

	out, err := json.Marshal(exported)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.InternalError, "failed to re-encode transform script result")
	}
	return out, nil
}
