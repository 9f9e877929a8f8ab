package scheduler

import (
	"context"
	"sync"
	"time"
)

type Job interface{ Run(ctx context.Context) }

type FuncJob func(ctx context.Context)

func (f FuncJob) Run(ctx context.Context) { f(ctx) }

// Handle is an owned timer or subscription. Stop is idempotent and safe to
// call from inside the job it stops.
type Handle interface {
	Stop()
}

type Scheduler struct {
	ctx    context.Context
	cancel context.CancelFunc
	reg    *Registry
}

// New returns a scheduler whose handles are tracked in reg. A nil reg gets a
// private registry.
func New(reg *Registry) *Scheduler {
	if reg == nil {
		reg = NewRegistry()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{ctx: ctx, cancel: cancel, reg: reg}
}

func (s *Scheduler) Registry() *Registry { return s.reg }

// Stop cancels every loop started by this scheduler.
func (s *Scheduler) Stop() { s.cancel() }

// Every runs job every d, first run after d.
func (s *Scheduler) Every(name string, d time.Duration, job Job) Handle {
	h := s.newLoop(name)
	go h.loopEvery(d, job, false)
	return h
}

// EveryNow runs job immediately, then every d.
func (s *Scheduler) EveryNow(name string, d time.Duration, job Job) Handle {
	h := s.newLoop(name)
	go h.loopEvery(d, job, true)
	return h
}

// OnceAfter runs job once after d unless stopped first.
func (s *Scheduler) OnceAfter(name string, d time.Duration, job Job) Handle {
	h := s.newLoop(name)
	go h.onceAfter(d, job)
	return h
}

type loopHandle struct {
	ctx     context.Context
	cancel  context.CancelFunc
	release func()
	once    sync.Once
}

func (s *Scheduler) newLoop(name string) *loopHandle {
	ctx, cancel := context.WithCancel(s.ctx)
	h := &loopHandle{ctx: ctx, cancel: cancel}
	h.release = s.reg.track(name)
	// a scheduler-wide Stop also releases the registry slot
	go func() {
		<-ctx.Done()
		h.Stop()
	}()
	return h
}

func (h *loopHandle) Stop() {
	h.once.Do(func() {
		h.cancel()
		h.release()
	})
}

func (h *loopHandle) loopEvery(d time.Duration, job Job, immediate bool) {
	if immediate {
		job.Run(h.ctx)
	}
	t := time.NewTicker(d)
	defer t.Stop()
	for {
		select {
		case <-h.ctx.Done():
			return
		case <-t.C:
			if h.ctx.Err() != nil {
				return
			}
			job.Run(h.ctx)
		}
	}
}

func (h *loopHandle) onceAfter(d time.Duration, job Job) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-h.ctx.Done():
		return
	case <-t.C:
		job.Run(h.ctx)
		h.Stop()
	}
}
