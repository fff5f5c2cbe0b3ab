// Package hooks implements the hook delivery task (C5): HTTP POST/PUT or
// NATS publish, an optional sandboxed transform script, and call/success/
// failure counters. Grounded on
// original_source/src/modules/hook/task.rs.
package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sparklive/rustmailer/internal/apperr"
	"github.com/sparklive/rustmailer/internal/model"
	"github.com/sparklive/rustmailer/internal/store"
)

const (
	TaskKey = "event_hook"
	Queue   = "event_hook"
	Version = "1.0.0" // stamped into the User-Agent header
)

// NATSPublisher is the narrow surface this package needs from the NATS
// connection pool (C1); implemented by internal/transport/nats. cfg carries
// the hook's own NATS endpoint, since distinct hooks may point at distinct
// clusters.
type NATSPublisher interface {
	Publish(ctx context.Context, cfg *model.NATSHookConfig, subject string, headers map[string]string, payload []byte) error
}

// EventHookTask is the scheduler.Task for kind "event_hook".
type EventHookTask struct {
	HookID       uint64          `json:"hook_id"`
	AccountID    uint64          `json:"account_id"`
	AccountEmail string          `json:"account_email"`
	EventType    model.EventType `json:"event_type"`
	EventPayload json.RawMessage `json:"event_payload"`

	meta *store.MetaStore `json:"-"`
	nats NATSPublisher    `json:"-"`
	http *http.Client     `json:"-"`
}

func (t *EventHookTask) Key() string   { return TaskKey }
func (t *EventHookTask) Queue() string { return Queue }
func (t *EventHookTask) DelaySeconds() uint32 { return 0 }

func (t *EventHookTask) RetryPolicy() model.RetryPolicy {
	max := uint32(10)
	return model.RetryPolicy{Strategy: model.RetryExponential, BaseS: 2, MaxRetries: &max}
}

// Run loads the hook, applies the optional transform, and dispatches over
// HTTP or NATS.
//
// If the hook vanished or was disabled between enqueue and run, Run
// delivers nothing and returns nil (not a failure), so no hook counter is
// incremented. EventHookTask holds no handle on the task store, so the task
// is not marked Stopped: the scheduler's completion path records it as
// Success.
func (t *EventHookTask) Run(ctx context.Context, taskID model.TaskID) error {
	hook, err := t.meta.GetHook(t.HookID)
	if err != nil || !hook.Enabled {
		// nothing left to deliver to; the task completes as Success.
		return nil
	}

	if err := t.meta.IncrementHookCounter(hook.ID, "call"); err != nil {
		return apperr.Wrap(err, apperr.InternalError, "failed to increment hook call counter")
	}

	payload := []byte(t.EventPayload)
	if hook.TransformScript != nil {
		transformed, err := RunTransform(ctx, *hook.TransformScript, payload)
		if err != nil {
			t.recordFailure(hook.ID, err.Error())
			return err
		}
		if transformed == nil {
			// null result means "drop"; this is still a success.
			_ = t.meta.IncrementHookCounter(hook.ID, "success")
			return nil
		}
		payload = transformed
	}

	var dispatchErr error
	switch hook.Type {
	case model.HookHTTP:
		dispatchErr = t.dispatchHTTP(ctx, hook, taskID, payload)
	case model.HookNATS:
		dispatchErr = t.dispatchNATS(ctx, hook, payload)
	default:
		dispatchErr = apperr.New(apperr.MissingConfiguration, "hook has no delivery configuration")
	}

	if dispatchErr != nil {
		t.recordFailure(hook.ID, dispatchErr.Error())
		return dispatchErr
	}
	_ = t.meta.IncrementHookCounter(hook.ID, "success")
	return nil
}

func (t *EventHookTask) recordFailure(hookID uint64, msg string) {
	_ = t.meta.IncrementHookCounter(hookID, "failure")
	_ = t.meta.SetHookLastError(hookID, msg)
}

func (t *EventHookTask) dispatchHTTP(ctx context.Context, hook *model.EventHook, taskID model.TaskID, payload []byte) error {
	if hook.HTTP == nil {
		return apperr.New(apperr.MissingConfiguration, "http hook missing http config")
	}
	req, err := http.NewRequestWithContext(ctx, string(hook.HTTP.Method), hook.HTTP.URL, bytes.NewReader(payload))
	if err != nil {
		return apperr.Wrap(err, apperr.InvalidParameter, "failed to build hook http request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Task-Id", taskID.String())
	req.Header.Set("X-Task-Retry-Count", "0")
	req.Header.Set("User-Agent", fmt.Sprintf("rustmailer/%s", Version))
	for k, v := range hook.HTTP.Headers {
		req.Header.Set(k, v)
	}

	client := t.http
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return apperr.Wrap(err, apperr.HTTPResponseError, "hook http delivery failed")
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperr.New(apperr.HTTPResponseError, fmt.Sprintf("hook endpoint returned %d: %s", resp.StatusCode, body))
	}
	return nil
}

func (t *EventHookTask) dispatchNATS(ctx context.Context, hook *model.EventHook, payload []byte) error {
	if hook.NATS == nil {
		return apperr.New(apperr.MissingConfiguration, "nats hook missing nats config")
	}
	if t.nats == nil {
		return apperr.New(apperr.NatsConnectionFailed, "no nats publisher configured")
	}
	subject := fmt.Sprintf("%s.%s", hook.NATS.Namespace, t.EventType)
	headers := map[string]string{"X-Task-Retry-Count": "0"}
	if err := t.nats.Publish(ctx, hook.NATS, subject, headers, payload); err != nil {
		return apperr.Wrap(err, apperr.NatsRequestFailed, "nats publish failed")
	}
	return nil
}

// Bind attaches runtime collaborators the decoder cannot construct from the
// serialized params alone.
func (t *EventHookTask) Bind(meta *store.MetaStore, nats NATSPublisher, httpClient *http.Client) *EventHookTask {
	t.meta = meta
	t.nats = nats
	t.http = httpClient
	return t
}
