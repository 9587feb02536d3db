package sessions

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// Sweeper evicts expired sessions on a fixed interval, in addition to the
// sweep that runs on every write.
type Sweeper struct {
	Cache    *Cache
	Interval time.Duration
	Logger   glog.Logger
}

func NewSweeper(cache *Cache, interval time.Duration, logger glog.Logger) *Sweeper {
	return &Sweeper{Cache: cache, Interval: interval, Logger: glog.Ensure(logger)}
}

func (s *Sweeper) Enabled() bool {
	return s != nil && s.Cache != nil && s.Interval > 0
}

// Run blocks until ctx is done. It returns immediately when the sweeper is
// disabled.
func (s *Sweeper) Run(ctx context.Context) {
	if !s.Enabled() {
		return
	}
	logger := glog.Ensure(s.Logger)
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	logger.Info("session sweeper started", "interval", s.Interval.String())
	for {
		select {
		case <-ctx.Done():
			logger.Info("session sweeper stopped")
			return
		case <-ticker.C:
			if removed := s.Cache.Sweep(ctx); removed > 0 {
				logger.Info("session sweep completed", "removed", removed)
			}
		}
	}
}
