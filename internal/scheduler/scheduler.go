package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sparklive/rustmailer/internal/apperr"
	"github.com/sparklive/rustmailer/internal/metrics"
	"github.com/sparklive/rustmailer/internal/model"
	"github.com/sparklive/rustmailer/internal/store"
)

const (
	dispatchTick       = 200 * time.Millisecond
	dispatchBatchLimit = 500
	cleanupTick        = 10 * time.Minute
	defaultConcurrency = 4
)

// Scheduler is the process-wide task-queue singleton (C3). Construct with
// New, Register every task kind, then Start.
type Scheduler struct {
	store    *store.TaskStore
	registry *Registry
	logger   *zap.Logger

	mu         sync.RWMutex
	processors map[string]*processor
	concurrency map[string]int

	updates chan statusUpdate
	runCtx  context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	cleanupRetention time.Duration
}

// New constructs a Scheduler bound to store and registry. cleanupRetention
// defaults to 72h when zero, per §4.2.
func New(taskStore *store.TaskStore, registry *Registry, cleanupRetention time.Duration, logger *zap.Logger) *Scheduler {
	if cleanupRetention == 0 {
		cleanupRetention = 72 * time.Hour
	}
	return &Scheduler{
		store:            taskStore,
		registry:         registry,
		logger:           logger,
		processors:       make(map[string]*processor),
		concurrency:      make(map[string]int),
		updates:          make(chan statusUpdate, 1024),
		cleanupRetention: cleanupRetention,
	}
}

// SetConcurrency configures queue's worker count; must be called before
// Start for the setting to take effect on first construction of that queue.
func (s *Scheduler) SetConcurrency(queue string, n int) *Scheduler {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.concurrency[queue] = n
	return s
}

func (s *Scheduler) queueFor(name string) *processor {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.processors[name]; ok {
		return p
	}
	n := s.concurrency[name]
	if n == 0 {
		n = defaultConcurrency
	}
	p := newProcessor(name, n, s.registry, s.updates, s.logger)
	s.processors[name] = p
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		p.run(s.runCtx)
	}()
	return p
}

// Start performs crash recovery, then launches the updater, dispatcher and
// cleaner goroutines.
func (s *Scheduler) Start(ctx context.Context) error {
	scheduled, removed, err := s.store.RestoreOnStartup()
	if err != nil {
		return apperr.Wrap(err, apperr.InternalError, "failed to restore tasks from the scheduler metadata database")
	}
	s.logger.Info("scheduler crash recovery complete", zap.Int("rescheduled", scheduled), zap.Int("removed", removed))

	runCtx, cancel := context.WithCancel(ctx)
	s.runCtx = runCtx
	s.cancel = cancel

	s.wg.Add(3)
	go s.runUpdater(runCtx)
	go s.runDispatcher(runCtx)
	go s.runCleaner(runCtx)

	return nil
}

// Shutdown pushes a poison pill into every queue and waits for in-flight
// tasks to drain, cooperative per §5.
func (s *Scheduler) Shutdown() {
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.RLock()
	procs := make([]*processor, 0, len(s.processors))
	for _, p := range s.processors {
		procs = append(procs, p)
	}
	s.mu.RUnlock()

	for _, p := range procs {
		p.stop()
	}
	s.wg.Wait()
}

func (s *Scheduler) runDispatcher(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(dispatchTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()
			metas, err := s.store.FetchPending(time.Now(), dispatchBatchLimit)
			metrics.TaskFetchDuration.Observe(time.Since(start).Seconds())
			if err != nil {
				s.logger.Error("fetch_pending_tasks failed", zap.Error(err))
				continue
			}
			buckets := make(map[string][]*model.TaskMeta)
			for _, m := range metas {
				buckets[m.Queue] = append(buckets[m.Queue], m)
			}
			for queue, batch := range buckets {
				p := s.queueFor(queue)
				for _, m := range batch {
					p.submit(m)
				}
			}
		}
	}
}

func (s *Scheduler) runUpdater(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-s.updates:
			switch {
			case u.heartbeat:
				if err := s.store.Heartbeat(u.id, time.Now()); err != nil {
					s.logger.Warn("heartbeat update failed", zap.Error(err))
				}
			case u.success:
				if err := s.store.CompleteSuccess(u.id, u.duration); err != nil {
					s.logger.Warn("complete-success update failed", zap.Error(err))
				}
			case u.failed:
				if _, err := s.store.CompleteFailure(u.id, u.policy, u.retryCount, u.errMsg, u.duration); err != nil {
					s.logger.Warn("complete-failure update failed", zap.Error(err))
				}
			}
		}
	}
}

func (s *Scheduler) runCleaner(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(cleanupTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.store.Cleanup(s.cleanupRetention, 100)
			if err != nil {
				s.logger.Error("task cleanup failed", zap.Error(err))
				continue
			}
			if n > 0 {
				s.logger.Info("cleaned up terminal tasks", zap.Int("count", n))
			}
		}
	}
}

// Submit enqueues one task with delaySeconds overriding its default when
// non-nil.
func (s *Scheduler) Submit(task Task, delaySeconds *uint32) error {
	params, err := MarshalParams(task)
	if err != nil {
		return apperr.Wrap(err, apperr.InternalError, "failed to serialize task params")
	}
	delay := task.DelaySeconds()
	if delaySeconds != nil {
		delay = *delaySeconds
	}
	meta := store.NewTaskMeta(task.Key(), task.Queue(), params, task.RetryPolicy(), delay)
	if err := s.store.Insert(meta); err != nil {
		return apperr.Wrap(err, apperr.InternalError, "failed to insert task")
	}
	return nil
}

// SubmitBatch enqueues many tasks of the same kind.
func (s *Scheduler) SubmitBatch(tasks []Task, delaySeconds *uint32) error {
	for _, t := range tasks {
		if err := s.Submit(t, delaySeconds); err != nil {
			return err
		}
	}
	return nil
}

// StopTask marks a task Stopped with an optional reason. Completion logic
// will not overwrite this status.
func (s *Scheduler) StopTask(id model.TaskID, reason *string) error {
	return s.store.SetStatus(id, model.TaskStopped, reason)
}

// RemoveTask marks a task Removed.
func (s *Scheduler) RemoveTask(id model.TaskID) error {
	return s.store.SetStatus(id, model.TaskRemoved, nil)
}

func (s *Scheduler) Get(id model.TaskID) (*model.TaskMeta, error) {
	return s.store.Get(id)
}

func (s *Scheduler) ListByStatus(taskKey string, status model.TaskStatus) ([]*model.TaskMeta, error) {
	return s.store.ListByStatus(taskKey, status)
}

func (s *Scheduler) ListPaginated(taskKey string, page, pageSize uint64, desc bool) ([]*model.TaskMeta, uint64, error) {
	return s.store.ListPaginated(taskKey, page, pageSize, desc)
}
