package gameserver

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// StatsSource reports broker load.
type StatsSource interface {
	Stats() Stats
}

// StatsReporter logs broker load on a fixed interval.
type StatsReporter struct {
	source   StatsSource
	interval time.Duration
	logger   *zap.Logger
}

// NewStatsReporter returns a reporter that samples source every interval.
//
// Precondition: interval must be > 0; source and logger must be non-nil.
func NewStatsReporter(source StatsSource, interval time.Duration, logger *zap.Logger) *StatsReporter {
	if interval <= 0 {
		panic("gameserver.NewStatsReporter: interval must be > 0")
	}
	return &StatsReporter{source: source, interval: interval, logger: logger}
}

// Start begins reporting. Runs until ctx is cancelled.
func (r *StatsReporter) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				st := r.source.Stats()
				r.logger.Info("broker stats",
					zap.Int("sessions", st.Sessions),
					zap.Int("active", st.Active),
					zap.Int("pending", st.Pending),
				)
			}
		}
	}()
}
