package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type Cron struct {
	c   *cron.Cron
	loc *time.Location
	reg *Registry
}

// NewCron builds a cron runner. Overlapping runs of the same entry are
// skipped, so a slow poll never stacks up behind itself.
func NewCron(loc *time.Location, reg *Registry, log *zap.Logger) *Cron {
	if loc == nil {
		loc = time.Local
	}
	if reg == nil {
		reg = NewRegistry()
	}
	if log == nil {
		log = zap.NewNop()
	}
	l := cronLogger{log.Sugar()}
	c := cron.New(cron.WithLocation(loc), cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)))
	return &Cron{c: c, loc: loc, reg: reg}
}

func (cr *Cron) Start() { cr.c.Start() }
func (cr *Cron) Stop()  { ctx := cr.c.Stop(); <-ctx.Done() }

// Add schedules job under expr ("@every 30s", "*/5 * * * *"). Stopping the
// returned handle removes the entry.
func (cr *Cron) Add(name, expr string, job Job) (Handle, error) {
	ctx, cancel := context.WithCancel(context.Background())
	id, err := cr.c.AddFunc(expr, func() { job.Run(ctx) })
	if err != nil {
		cancel()
		return nil, err
	}
	return cr.reg.Track(name, func() {
		cancel()
		cr.c.Remove(id)
	}), nil
}

func (cr *Cron) Entries() []cron.Entry { return cr.c.Entries() }

// cronLogger adapts zap to cron.Logger.
type cronLogger struct{ s *zap.SugaredLogger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
