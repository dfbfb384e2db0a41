package schedule

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/xxxsen/careercopilot/internal/pkg/errors"
)

type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type Scheduler interface {
	AddJob(job Job, spec string) error
	RunOnce(name string) error
	Start(ctx context.Context)
	Stop()
}

type Option func(*CronScheduler)

// WithRunTimeout bounds a single run of any job. Zero means no bound.
func WithRunTimeout(d time.Duration) Option {
	return func(c *CronScheduler) {
		c.timeout = d
	}
}

type CronScheduler struct {
	cron    *cron.Cron
	timeout time.Duration

	mu    sync.Mutex
	ctx   context.Context
	tasks map[string]*task
}

type task struct {
	job     Job
	spec    string
	entry   cron.EntryID
	running atomic.Bool
}

func NewCronScheduler(opts ...Option) *CronScheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := &CronScheduler{
		cron:  cron.New(cron.WithParser(parser)),
		ctx:   context.Background(),
		tasks: make(map[string]*task),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CronScheduler) AddJob(job Job, spec string) error {
	name := job.Name()
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.tasks[name]; ok {
		return fmt.Errorf("%w: job %s already scheduled", appErr.ErrConflict, name)
	}
	t := &task{job: job, spec: spec}
	entry, err := c.cron.AddFunc(spec, func() { c.run(t) })
	if err != nil {
		return fmt.Errorf("%w: job %s spec %q: %v", appErr.ErrConfiguration, name, spec, err)
	}
	t.entry = entry
	c.tasks[name] = t
	logutil.GetLogger(context.Background()).Info("job scheduled", zap.String("job", name), zap.String("spec", spec))
	return nil
}

// RunOnce runs a registered job now, in the background, unless it is
// already running.
func (c *CronScheduler) RunOnce(name string) error {
	c.mu.Lock()
	t, ok := c.tasks[name]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: job %s", appErr.ErrNotFound, name)
	}
	go c.run(t)
	return nil
}

func (c *CronScheduler) Start(ctx context.Context) {
	if ctx != nil {
		c.mu.Lock()
		c.ctx = ctx
		c.mu.Unlock()
	}
	c.cron.Start()
}

// Stop halts scheduling and waits for running jobs to return.
func (c *CronScheduler) Stop() {
	<-c.cron.Stop().Done()
}

func (c *CronScheduler) run(t *task) {
	c.mu.Lock()
	ctx := c.ctx
	c.mu.Unlock()
	logger := logutil.GetLogger(ctx).With(zap.String("job", t.job.Name()), zap.String("spec", t.spec))
	if !t.running.CompareAndSwap(false, true) {
		logger.Info("job skipped: still running")
		return
	}
	defer t.running.Store(false)

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	start := time.Now()
	err := t.job.Run(ctx)
	elapsed := time.Since(start)
	if err != nil {
		logger.Error("job failed", zap.Error(err), zap.Duration("duration", elapsed))
		return
	}
	logger.Debug("job finished", zap.Duration("duration", elapsed))
}
