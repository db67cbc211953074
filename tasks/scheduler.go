package tasks

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"bskyrelay/pipeline"
)

// RunScheduler triggers a pipeline run at a fixed cadence until the context
// is cancelled. Runs skipped because a manual trigger holds the lock are not
// an error; the next tick tries again.
func RunScheduler(ctx context.Context, p *pipeline.Pipeline, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats, err := p.RunOnce(ctx)
			switch {
			case errors.Is(err, pipeline.ErrBusy):
			case err != nil:
				log.Errorf("Scheduled run failed: %v", err)
			case stats.Delivered > 0 || stats.Failed > 0:
				log.Infof("Scheduled run finished: %s", stats)
			}
		}
	}
}
