package events

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sparklive/rustmailer/internal/idgen"
	"github.com/sparklive/rustmailer/internal/model"
	"github.com/sparklive/rustmailer/internal/store"
)

const (
	channelCapacity = 1000
	batchSize       = 50
	flushInterval   = time.Second
	submitChunkSize = 50
)

// Event is one envelope carrying account identity plus the domain event
// itself.
type Event struct {
	AccountID    uint64
	AccountEmail string
	Record       model.EventRecord
}

// HookTaskSink is implemented by the scheduler facade that accepts batches
// of hook-delivery tasks; kept as a narrow interface so this package does
// not import internal/hooks directly (hooks imports events for the payload
// types, not the other way around).
type HookTaskSink interface {
	SubmitHookTasks(tasks []HookTaskParams) error
}

// HookTaskParams is the payload an EventHookTask is constructed from.
type HookTaskParams struct {
	HookID       uint64
	AccountID    uint64
	AccountEmail string
	EventType    model.EventType
	EventPayload model.EventPayload
}

// Channel is the process-wide event channel and hook matcher (C4).
type Channel struct {
	meta   *store.MetaStore
	sink   HookTaskSink
	logger *zap.Logger

	ch chan Event

	mu      sync.Mutex
	buf     []Event
}

func NewChannel(meta *store.MetaStore, sink HookTaskSink, logger *zap.Logger) *Channel {
	return &Channel{
		meta:   meta,
		sink:   sink,
		logger: logger,
		ch:     make(chan Event, channelCapacity),
	}
}

// Queue enqueues one event, blocking if the channel is full (backpressure).
func (c *Channel) Queue(ctx context.Context, ev Event) {
	select {
	case c.ch <- ev:
	case <-ctx.Done():
	}
}

// AnyWatching is the cheap pre-flight check: is anyone watching eventType
// for accountID? Used by callers (the sync collaborator) to skip expensive
// event construction when nobody would receive it.
func (c *Channel) AnyWatching(accountID uint64, eventType model.EventType) (bool, error) {
	if hook, err := c.meta.HookForAccount(accountID); err != nil {
		return false, err
	} else if hook != nil && hook.Watches(eventType) {
		return true, nil
	}
	globals, err := c.meta.GlobalHooks()
	if err != nil {
		return false, err
	}
	for _, h := range globals {
		if h.Watches(eventType) {
			return true, nil
		}
	}
	return false, nil
}

// Run drains the channel with batched receive: flush at batchSize buffered
// or flushInterval elapsed since the last flush, whichever comes first.
func (c *Channel) Run(ctx context.Context) {
	timer := time.NewTimer(flushInterval)
	defer timer.Stop()

	flush := func() {
		c.mu.Lock()
		batch := c.buf
		c.buf = nil
		c.mu.Unlock()
		if len(batch) == 0 {
			return
		}
		if err := c.dispatch(batch); err != nil {
			c.logger.Error("hook matcher dispatch failed", zap.Error(err))
		}
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case ev := <-c.ch:
			c.mu.Lock()
			c.buf = append(c.buf, ev)
			full := len(c.buf) >= batchSize
			c.mu.Unlock()
			if full {
				if !timer.Stop() {
					<-timer.C
				}
				flush()
				timer.Reset(flushInterval)
			}
		case <-timer.C:
			flush()
			timer.Reset(flushInterval)
		}
	}
}

// dispatch resolves matching hooks for each event, in arrival order, then
// submits the resulting hook tasks to the scheduler in chunks of
// submitChunkSize.
func (c *Channel) dispatch(batch []Event) error {
	var tasks []HookTaskParams
	for _, ev := range batch {
		matches, err := c.matchingHooks(ev.AccountID, ev.Record.Type)
		if err != nil {
			return err
		}
		for _, h := range matches {
			tasks = append(tasks, HookTaskParams{
				HookID:       h.ID,
				AccountID:    ev.AccountID,
				AccountEmail: ev.AccountEmail,
				EventType:    ev.Record.Type,
				EventPayload: ev.Record.Payload,
			})
		}
	}

	for start := 0; start < len(tasks); start += submitChunkSize {
		end := start + submitChunkSize
		if end > len(tasks) {
			end = len(tasks)
		}
		if err := c.sink.SubmitHookTasks(tasks[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (c *Channel) matchingHooks(accountID uint64, eventType model.EventType) ([]*model.EventHook, error) {
	var out []*model.EventHook
	hook, err := c.meta.HookForAccount(accountID)
	if err != nil {
		return nil, err
	}
	if hook != nil && hook.Watches(eventType) {
		out = append(out, hook)
	}
	globals, err := c.meta.GlobalHooks()
	if err != nil {
		return nil, err
	}
	for _, h := range globals {
		if h.Watches(eventType) {
			out = append(out, h)
		}
	}
	return out, nil
}

// NewEventRecord stamps a fresh EventRecord with a public id and timestamp.
func NewEventRecord(eventType model.EventType, instanceURL string, payload model.EventPayload) model.EventRecord {
	return model.EventRecord{
		ID:          idgen.PublicID(),
		Type:        eventType,
		InstanceURL: instanceURL,
		Timestamp:   time.Now(),
		Payload:     payload,
	}
}
