package app

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/solarfleet/control-plane/internal/app/system"
	"github.com/solarfleet/control-plane/pkg/logger"
)

// tickerJob runs fn on a fixed interval until stopped, logging and
// swallowing any error so one bad tick never kills the loop.
type tickerJob struct {
	name     string
	interval time.Duration
	fn       func(ctx context.Context) error
	log      *logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

func newTickerJob(name string, interval time.Duration, log *logger.Logger, fn func(ctx context.Context) error) *tickerJob {
	if log == nil {
		log = logger.NewDefault(name)
	}
	return &tickerJob{name: name, interval: interval, fn: fn, log: log}
}

func (j *tickerJob) Name() string { return j.name }

func (j *tickerJob) Start(ctx context.Context) error {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.running = true
	j.mu.Unlock()

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if err := j.fn(runCtx); err != nil {
					j.log.WithError(err).Warn("job tick failed")
				}
			}
		}
	}()

	j.log.WithField("interval", j.interval.String()).Info("job started")
	return nil
}

func (j *tickerJob) Stop(ctx context.Context) error {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return nil
	}
	cancel := j.cancel
	j.running = false
	j.cancel = nil
	j.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		j.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	j.log.Info("job stopped")
	return nil
}

var _ system.Service = (*tickerJob)(nil)

// cronJob runs fn on a cron schedule via robfig/cron until stopped.
type cronJob struct {
	name string
	spec string
	fn   func(ctx context.Context) error
	log  *logger.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

func newCronJob(name, spec string, log *logger.Logger, fn func(ctx context.Context) error) *cronJob {
	if log == nil {
		log = logger.NewDefault(name)
	}
	return &cronJob{name: name, spec: spec, fn: fn, log: log}
}

func (j *cronJob) Name() string { return j.name }

func (j *cronJob) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(j.spec, func() {
		if err := j.fn(ctx); err != nil {
			j.log.WithError(err).Warn("job run failed")
		}
	}); err != nil {
		return err
	}
	c.Start()
	j.cron = c
	j.running = true
	j.log.WithField("schedule", j.spec).Info("job started")
	return nil
}

func (j *cronJob) Stop(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.running {
		return nil
	}
	stopCtx := j.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	j.running = false
	j.log.Info("job stopped")
	return nil
}

var _ system.Service = (*cronJob)(nil)
