// Package poll runs caller-owned periodic refreshes, such as the live quote
// on a stock detail view. Every schedule is returned as a Handle that the
// caller must Stop on teardown.
package poll

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bobmcallan/tradeonly/internal/common"
)

// DefaultInterval is the suggested live quote refresh period
const DefaultInterval = 10 * time.Second

// Scheduler wraps a running cron instance
type Scheduler struct {
	cron   *cron.Cron
	logger *common.Logger

	mu      sync.Mutex
	handles map[cron.EntryID]*Handle
	ctx     context.Context
	cancel  context.CancelFunc
	stopped bool
}

// NewScheduler creates and starts a scheduler. Panicking jobs are recovered
// and logged.
func NewScheduler(logger *common.Logger) *Scheduler {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	cl := cronLogger{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		cron:    cron.New(cron.WithChain(cron.Recover(cl)), cron.WithLogger(cl)),
		logger:  logger,
		handles: make(map[cron.EntryID]*Handle),
		ctx:     ctx,
		cancel:  cancel,
	}
	s.cron.Start()
	return s
}

// Handle is one registered schedule
type Handle struct {
	name     string
	interval time.Duration
	id       cron.EntryID
	sched    *Scheduler
	ctx      context.Context
	cancel   context.CancelFunc
	once     sync.Once
}

// Every runs fn every interval until the handle is stopped. Runs never
// overlap; a tick that arrives while fn is still running is skipped. fn
// receives a context that is cancelled by Stop. Intervals are rounded to
// whole seconds, with a minimum of one second.
func (s *Scheduler) Every(name string, interval time.Duration, fn func(ctx context.Context)) (*Handle, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("poll %s: interval must be positive, got %s", name, interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil, fmt.Errorf("poll %s: scheduler is stopped", name)
	}

	ctx, cancel := context.WithCancel(s.ctx)
	h := &Handle{name: name, interval: interval, sched: s, ctx: ctx, cancel: cancel}

	job := cron.NewChain(cron.SkipIfStillRunning(cronLogger{logger: s.logger})).Then(cron.FuncJob(func() {
		if ctx.Err() != nil {
			return
		}
		fn(ctx)
	}))
	h.id = s.cron.Schedule(cron.Every(interval), job)
	s.handles[h.id] = h

	s.logger.Debug().Str("name", name).Str("interval", interval.String()).Msg("Poll scheduled")
	return h, nil
}

// Stop removes the schedule and cancels its context. Stop is idempotent.
func (h *Handle) Stop() {
	h.once.Do(func() {
		h.cancel()
		h.sched.cron.Remove(h.id)

		h.sched.mu.Lock()
		delete(h.sched.handles, h.id)
		h.sched.mu.Unlock()

		h.sched.logger.Debug().Str("name", h.name).Msg("Poll stopped")
	})
}

// Name returns the name given to Every
func (h *Handle) Name() string {
	return h.name
}

// Done is closed once the handle is stopped
func (h *Handle) Done() <-chan struct{} {
	return h.ctx.Done()
}

// Active returns the number of live schedules
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

// Close stops every handle and waits for running jobs to return
func (s *Scheduler) Close() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	handles := make([]*Handle, 0, len(s.handles))
	for _, h := range s.handles {
		handles = append(handles, h)
	}
	s.mu.Unlock()

	for _, h := range handles {
		h.Stop()
	}
	s.cancel()
	<-s.cron.Stop().Done()
	return nil
}

// cronLogger adapts common.Logger to cron.Logger
type cronLogger struct {
	logger *common.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Trace().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
