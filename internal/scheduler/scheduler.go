package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/weather-eto-aggregation/internal/weather"
)

const (
	defaultInterval = 15 * time.Minute
	refreshTimeout  = 30 * time.Second
)

// Refresher runs one forecast refresh for a location.
type Refresher interface {
	Refresh(ctx context.Context, loc weather.Location) (weather.Forecast, error)
}

// Scheduler periodically refreshes the forecast of every configured location.
type Scheduler struct {
	scheduler *gocron.Scheduler
	service   Refresher
	locations []weather.Location
	interval  time.Duration
	logger    *slog.Logger
}

// New creates a new Scheduler.
func New(locations []weather.Location, interval time.Duration, service Refresher, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		service:   service,
		locations: locations,
		interval:  interval,
		logger:    logger.With("component", "scheduler"),
	}
}

// Start schedules the periodic job and starts the underlying scheduler. The
// first run happens immediately.
func (s *Scheduler) Start() error {
	if len(s.locations) == 0 {
		s.logger.Warn("no locations configured; nothing to schedule")
		return nil
	}

	_, err := s.scheduler.Every(s.interval).SingletonMode().Do(func() {
		s.RunOnce(context.Background())
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info("scheduler started", "interval", s.interval, "locations", len(s.locations))
	return nil
}

// RunOnce refreshes every location concurrently and returns the number of
// failed refreshes.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	s.logger.Info("running forecast refresh")

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
	)
	for _, loc := range s.locations {
		loc := loc // per-iteration copy; go.mod targets go 1.21 loop semantics
		wg.Add(1)
		go func() {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
			defer cancel()

			forecast, err := s.service.Refresh(ctx, loc)
			if err != nil {
				s.logger.Error("refresh failed", "location", loc.Key(), "error", err)
				mu.Lock()
				failed++
				mu.Unlock()
				return
			}
			s.logger.Debug("refresh stored", "location", loc.Key(), "run", forecast.RunID, "provider", forecast.Provider)
		}()
	}
	wg.Wait()
	s.logger.Info("completed forecast refresh", "locations", len(s.locations), "failed", failed)
	return failed
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
