package cache

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// DefaultSweepInterval is used when a sweeper is started with interval <= 0.
const DefaultSweepInterval = time.Minute

// startSweeper calls sweep on every tick until the returned stop function is
// called. Errors from sweep are logged and the loop keeps running.
func startSweeper(clk clock.Clock, interval time.Duration, log *zap.Logger, sweep func() (int, error)) func() {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := clk.Ticker(interval)
	done := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				n, err := sweep()
				if err != nil {
					log.Warn("sweep failed", zap.Error(err))
					continue
				}
				if n > 0 {
					log.Debug("swept expired entries", zap.Int("removed", n))
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
			wg.Wait()
		})
	}
}
