package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/saturnino-fabrica-de-software/eventcore/internal/bus"
)

// Reporter periodically logs the bus counters and their change since the
// previous report.
type Reporter struct {
	source   Snapshotter
	logger   *slog.Logger
	interval time.Duration
	done     chan struct{}

	last bus.Metrics
}

// NewReporter creates a new metrics reporter worker
func NewReporter(source Snapshotter, logger *slog.Logger, interval time.Duration) *Reporter {
	if interval == 0 {
		interval = 1 * time.Minute
	}

	return &Reporter{
		source:   source,
		logger:   logger.With("component", "metrics_reporter"),
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start runs the reporter until ctx is done or Stop is called.
func (r *Reporter) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("metrics reporter started", "interval", r.interval)

	for {
		select {
		case <-ctx.Done():
			r.report(context.Background())
			r.logger.Info("metrics reporter stopped")
			return
		case <-r.done:
			r.report(ctx)
			r.logger.Info("metrics reporter stopped")
			return
		case <-ticker.C:
			r.report(ctx)
		}
	}
}

// Stop gracefully shuts down the reporter
func (r *Reporter) Stop() {
	close(r.done)
}

func (r *Reporter) report(ctx context.Context) {
	cur := r.source.Metrics()
	delta := bus.Metrics{
		Published:    cur.Published - r.last.Published,
		Delivered:    cur.Delivered - r.last.Delivered,
		Failed:       cur.Failed - r.last.Failed,
		Deduplicated: cur.Deduplicated - r.last.Deduplicated,
	}
	r.last = cur

	level := slog.LevelInfo
	if delta.Failed > 0 {
		level = slog.LevelWarn
	}

	r.logger.Log(ctx, level, "bus metrics",
		"published", cur.Published,
		"delivered", cur.Delivered,
		"failed", cur.Failed,
		"deduplicated", cur.Deduplicated,
		"published_delta", delta.Published,
		"failed_delta", delta.Failed,
	)
}
