// Package retention owns periodic cleanup: expired metric samples and stale
// debounce records.
package retention

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/proactivedb/fleetmon/internal/monitoring/alerting"
	"github.com/proactivedb/fleetmon/internal/monitoring/metrics"
	"github.com/proactivedb/fleetmon/internal/monitoring/model"
	"github.com/proactivedb/fleetmon/internal/monitoring/store"
)

type Sweeper struct {
	series      store.TimeSeriesStore
	debounce    alerting.DebounceStore
	interval    time.Duration
	retention   time.Duration
	debounceTTL time.Duration
	now         func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSweeper(series store.TimeSeriesStore, debounce alerting.DebounceStore, interval, retention, debounceTTL time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	if retention <= 0 {
		retention = model.RetentionWindow
	}
	if debounceTTL <= 0 {
		debounceTTL = 48 * time.Hour
	}
	return &Sweeper{
		series:      series,
		debounce:    debounce,
		interval:    interval,
		retention:   retention,
		debounceTTL: debounceTTL,
		now:         time.Now,
	}
}

func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	done := make(chan struct{})
	s.done = done
	go s.run(ctx, done)
	log.Info().Dur("interval", s.interval).Dur("retention", s.retention).Msg("retention sweeper started")
}

func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Sweeper) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one cleanup pass.
func (s *Sweeper) Sweep(ctx context.Context) {
	now := s.now().UTC()

	pruned, err := s.series.Prune(ctx, now.Add(-s.retention))
	if err != nil {
		log.Error().Err(err).Msg("retention sweep: prune samples failed")
	} else if pruned > 0 {
		metrics.RowsPruned.Add(float64(pruned))
		log.Info().Int64("rows", pruned).Msg("pruned expired metric samples")
	}

	purged, err := s.debounce.PurgeStale(ctx, now.Add(-s.debounceTTL))
	if err != nil {
		log.Error().Err(err).Msg("retention sweep: purge debounce records failed")
	} else if purged > 0 {
		log.Info().Int("records", purged).Msg("purged stale debounce records")
	}
}
