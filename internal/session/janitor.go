package session

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"account-portal/internal/metrics"
)

// Purger removes expired sessions. *Manager implements it.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

type JanitorConfig struct {
	Interval time.Duration
	Logger   logrus.FieldLogger
	Metrics  *metrics.Metrics
}

// Janitor periodically purges expired sessions in the background.
type Janitor struct {
	cfg    JanitorConfig
	purger Purger

	wg     sync.WaitGroup
	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewJanitor(cfg JanitorConfig, purger Purger) *Janitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Janitor{cfg: cfg, purger: purger}
}

// Start launches the purge loop. It stops when ctx is cancelled or
// Shutdown is called. Starting twice is a no-op.
func (j *Janitor) Start(ctx context.Context) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cancel != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		j.run(loopCtx)
	}()
	j.cfg.Logger.Infof("session janitor started, interval %s", j.cfg.Interval)
}

// Shutdown stops the loop and waits for it to exit.
func (j *Janitor) Shutdown() {
	j.mu.Lock()
	cancel := j.cancel
	j.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	j.wg.Wait()
	j.cfg.Logger.Info("session janitor stopped")
}

func (j *Janitor) run(ctx context.Context) {
	ticker := time.NewTicker(j.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.purge(ctx)
		}
	}
}

func (j *Janitor) purge(ctx context.Context) {
	n, err := j.purger.PurgeExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			j.cfg.Logger.Warnf("purge expired sessions: %v", err)
		}
		return
	}
	j.cfg.Metrics.ObservePurged(n)
	if n > 0 {
		j.cfg.Logger.WithField("count", n).Debug("purged expired sessions")
	}
}
