package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sparklive/rustmailer/internal/metrics"
	"github.com/sparklive/rustmailer/internal/model"
)

const processorChannelDepth = 200

// packet is either a task dispatch or the poison pill shutdown marker.
type packet struct {
	meta   *model.TaskMeta
	poison bool
}

// processor is the per-queue worker pool: a buffered channel of packets, N
// concurrent workers gated by a counting semaphore (a buffered channel used
// purely for its capacity, the idiom the teacher's services package already
// leans on for bounding concurrency).
type processor struct {
	name       string
	ch         chan packet
	sem        chan struct{}
	registry   *Registry
	updates    chan<- statusUpdate
	logger     *zap.Logger
	done       chan struct{}
}

func newProcessor(name string, concurrency int, registry *Registry, updates chan<- statusUpdate, logger *zap.Logger) *processor {
	return &processor{
		name:     name,
		ch:       make(chan packet, processorChannelDepth),
		sem:      make(chan struct{}, concurrency),
		registry: registry,
		updates:  updates,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

func (p *processor) run(ctx context.Context) {
	defer close(p.done)
	for pkt := range p.ch {
		metrics.TaskQueueLength.WithLabelValues(p.name).Set(float64(len(p.ch)))
		if pkt.poison {
			// Drain: acquiring every semaphore slot waits for all
			// in-flight tasks to finish before the worker exits.
			for i := 0; i < cap(p.sem); i++ {
				p.sem <- struct{}{}
			}
			return
		}
		p.sem <- struct{}{}
		go func(meta *model.TaskMeta) {
			defer func() { <-p.sem }()
			p.execute(ctx, meta)
		}(pkt.meta)
	}
}

func (p *processor) execute(ctx context.Context, meta *model.TaskMeta) {
	task, err := p.registry.Decode(meta.TaskKey, meta.Params)
	if err != nil {
		p.logger.Error("failed to decode task params", zap.String("task_key", meta.TaskKey), zap.Error(err))
		p.updates <- statusUpdate{id: meta.ID, failed: true, errMsg: err.Error(), policy: meta.RetryPolicy, retryCount: meta.RetryCount}
		return
	}

	heartbeat := time.NewTicker(10 * time.Second)
	defer heartbeat.Stop()
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		for {
			select {
			case <-heartbeat.C:
				p.updates <- statusUpdate{id: meta.ID, heartbeat: true}
			case <-runCtx.Done():
				return
			}
		}
	}()

	start := time.Now()
	runErr := task.Run(runCtx, meta.ID)
	duration := time.Since(start)

	if runErr != nil {
		p.updates <- statusUpdate{id: meta.ID, failed: true, errMsg: runErr.Error(), policy: meta.RetryPolicy, retryCount: meta.RetryCount, duration: duration}
		return
	}
	p.updates <- statusUpdate{id: meta.ID, success: true, duration: duration}
}

func (p *processor) submit(meta *model.TaskMeta) {
	p.ch <- packet{meta: meta}
}

func (p *processor) stop() {
	p.ch <- packet{poison: true}
	<-p.done
}

// statusUpdate funnels every heartbeat and completion through one updater
// goroutine to avoid lock contention on the store, matching the Rust
// "dedicated status-updater channel" note in §4.3.
type statusUpdate struct {
	id         model.TaskID
	heartbeat  bool
	success    bool
	failed     bool
	errMsg     string
	policy     model.RetryPolicy
	retryCount uint32
	duration   time.Duration
}
