package services

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-ingest/internal/logger"
)

// historyRetention is how many results are kept per task.
const historyRetention = 100

// Ensure Scheduler implements the interface.
var _ driving.Scheduler = (*Scheduler)(nil)

// Scheduler runs the periodic source sync and stale-sync recovery tasks.
// It is a pure core service with no external control API.
type Scheduler struct {
	config   domain.SchedulerConfig
	store    driven.SchedulerStore
	syncOrch driving.SyncOrchestrator
	now      func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
	active  map[string]bool
}

// NewScheduler creates a scheduler with configuration.
func NewScheduler(
	config domain.SchedulerConfig,
	store driven.SchedulerStore,
	syncOrch driving.SyncOrchestrator,
) *Scheduler {
	return &Scheduler{
		config:   config,
		store:    store,
		syncOrch: syncOrch,
		now:      time.Now,
		active:   make(map[string]bool),
	}
}

// Start begins the scheduler loop. This method blocks until Stop is called
// or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.config.Enabled {
		logger.Info("scheduler: disabled")
		return nil
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil // Already running
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	if err := s.initialiseTasks(ctx); err != nil {
		logger.Error("scheduler: failed to initialise tasks: %v", err)
	}

	err := s.run(ctx, stopCh)
	s.wg.Wait()
	return err
}

// Stop gracefully shuts down the scheduler and waits for running tasks.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// initialiseTasks ensures all configured tasks exist in the store.
func (s *Scheduler) initialiseTasks(ctx context.Context) error {
	tasks := []struct{ id, name string }{
		{domain.TaskIDStaleReset, "Stale Sync Reset"},
		{domain.TaskIDSourceSync, "Source Sync"},
	}
	for _, t := range tasks {
		cfg := s.config.GetTaskConfig(t.id)
		if cfg.Interval <= 0 {
			cfg.Enabled = false
		}
		if err := s.ensureTask(ctx, t.id, t.name, cfg); err != nil {
			return err
		}
	}
	return nil
}

// ensureTask creates or updates a task in the store.
func (s *Scheduler) ensureTask(ctx context.Context, id, name string, cfg domain.TaskConfig) error {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return err
	}

	now := s.now()
	if task == nil {
		if !cfg.Enabled {
			return nil
		}
		// Stale reset runs straight away so a crash is recovered on boot.
		next := now.Add(cfg.Interval)
		if id == domain.TaskIDStaleReset {
			next = now
		}
		task = &domain.ScheduledTask{
			ID:       id,
			Name:     name,
			Interval: cfg.Interval,
			Enabled:  cfg.Enabled,
			NextRun:  next,
		}
	} else {
		if cfg.Enabled && task.Interval != cfg.Interval {
			task.Interval = cfg.Interval
			task.NextRun = now.Add(cfg.Interval)
		}
		task.Enabled = cfg.Enabled
	}

	return s.store.SaveTask(ctx, task)
}

// run is the main scheduler loop.
func (s *Scheduler) run(ctx context.Context, stopCh <-chan struct{}) error {
	s.checkAndRunDueTasks(ctx)

	interval := s.config.TickInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-ticker.C:
			s.checkAndRunDueTasks(ctx)
		}
	}
}

// checkAndRunDueTasks finds and executes tasks that are due.
func (s *Scheduler) checkAndRunDueTasks(ctx context.Context) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		logger.Error("scheduler: failed to list tasks: %v", err)
		return
	}

	now := s.now()
	for i := range tasks {
		task := tasks[i]
		if task.IsDue(now) {
			s.runTask(ctx, &task)
		}
	}
}

// runTask executes a single task unless a previous run is still going.
func (s *Scheduler) runTask(ctx context.Context, task *domain.ScheduledTask) {
	s.mu.Lock()
	if s.active[task.ID] {
		s.mu.Unlock()
		logger.Debug("scheduler: %s still running, skipping", task.ID)
		return
	}
	s.active[task.ID] = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.active, task.ID)
			s.mu.Unlock()
		}()

		result := &domain.TaskResult{
			TaskID:    task.ID,
			StartedAt: s.now(),
		}

		var err error
		switch task.ID {
		case domain.TaskIDStaleReset:
			result.ItemsProcessed, err = s.runStaleReset(ctx)
		case domain.TaskIDSourceSync:
			result.ItemsProcessed, err = s.runSourceSync(ctx)
		default:
			logger.Warn("scheduler: unknown task ID: %s", task.ID)
			return
		}

		result.EndedAt = s.now()
		if err != nil {
			result.Success = false
			result.Error = err.Error()
			task.LastError = err.Error()
			logger.Warn("scheduler: task %s failed: %v", task.ID, err)
		} else {
			result.Success = true
			task.LastError = ""
			task.LastSuccess = result.EndedAt
		}

		task.LastRun = result.StartedAt
		task.NextRun = result.EndedAt.Add(task.Interval)

		// Bookkeeping outlives a cancelled run.
		bookCtx := context.WithoutCancel(ctx)
		if saveErr := s.store.SaveTask(bookCtx, task); saveErr != nil {
			logger.Error("scheduler: failed to save task %s: %v", task.ID, saveErr)
		}
		if recordErr := s.store.RecordResult(bookCtx, result); recordErr != nil {
			logger.Error("scheduler: failed to record result for %s: %v", task.ID, recordErr)
		}
		if pruneErr := s.store.PruneHistory(bookCtx, historyRetention); pruneErr != nil {
			logger.Error("scheduler: failed to prune history: %v", pruneErr)
		}
	}()
}

// runStaleReset fails abandoned syncs.
func (s *Scheduler) runStaleReset(ctx context.Context) (int, error) {
	if s.syncOrch == nil {
		return 0, nil
	}
	return s.syncOrch.ResetStale(ctx, s.config.StaleAfter)
}

// runSourceSync recovers abandoned syncs, then syncs every active source.
// Returns the number of sources that completed.
func (s *Scheduler) runSourceSync(ctx context.Context) (int, error) {
	if s.syncOrch == nil {
		return 0, nil
	}
	if _, err := s.syncOrch.ResetStale(ctx, s.config.StaleAfter); err != nil {
		return 0, err
	}

	results, err := s.syncOrch.SyncAll(ctx, "")
	completed := 0
	for _, r := range results {
		if r.Status == domain.SyncStatusCompleted {
			completed++
		}
	}
	return completed, err
}
