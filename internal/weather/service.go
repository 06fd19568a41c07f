package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/i474232898/weather-eto-aggregation/internal/eto"
	"github.com/i474232898/weather-eto-aggregation/internal/observability"
	"github.com/i474232898/weather-eto-aggregation/internal/units"
)

// ErrNoFeeds is returned by Refresh when no feed is configured.
var ErrNoFeeds = errors.New("no weather feeds configured")

// Service runs the fetch, aggregate, evapotranspiration and publish pipeline
// and serves the stored results.
type Service struct {
	store   Store
	feeds   []Feed
	site    SiteParameters
	sink    Sink
	zone    *time.Location
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
}

// Option customizes a Service.
type Option func(*Service)

// WithSink publishes every day report of a refresh to sink.
func WithSink(sink Sink) Option {
	return func(s *Service) { s.sink = sink }
}

// WithZone fixes the time zone days are bucketed in. Without it the feed's
// reported offset is used, then time.Local.
func WithZone(zone *time.Location) Option {
	return func(s *Service) { s.zone = zone }
}

func WithClock(clock clockwork.Clock) Option {
	return func(s *Service) { s.clock = clock }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a new Service. Feeds are tried in order on every refresh.
func NewService(store Store, feeds []Feed, site SiteParameters, opts ...Option) *Service {
	s := &Service{
		store:  store,
		feeds:  feeds,
		site:   site,
		clock:  clockwork.NewRealClock(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Site returns the parameters the service runs with.
func (s *Service) Site() SiteParameters {
	return s.site
}

// Refresh fetches a forecast for loc and renders the configured number of day
// slots. Days that are missing, incomplete or carry out-of-range readings are
// reported as no data. Invalid site parameters abort the refresh before
// anything is stored.
func (s *Service) Refresh(ctx context.Context, loc Location) (Forecast, error) {
	started := s.clock.Now()
	log := s.logger.With("location", loc.Key())

	if err := s.site.Validate(); err != nil {
		s.metrics.RefreshDone("invalid_site", s.clock.Since(started))
		return Forecast{}, fmt.Errorf("site parameters: %w", err)
	}

	res, provider, err := s.fetchForecast(ctx, loc)
	if err != nil {
		s.metrics.RefreshDone("feed_error", s.clock.Since(started))
		return Forecast{}, err
	}

	days, err := AggregateDays(res.Samples, res.UV, s.zoneFor(res))
	if err != nil {
		s.metrics.RefreshDone("aggregate_error", s.clock.Since(started))
		return Forecast{}, fmt.Errorf("aggregate %s forecast: %w", provider, err)
	}

	lat := res.Latitude
	if s.site.Latitude != nil {
		lat = *s.site.Latitude
	}

	forecast := Forecast{
		RunID:       uuid.NewString(),
		Location:    loc,
		Provider:    provider,
		GeneratedAt: started.UTC(),
		Latitude:    lat,
		Days:        make([]DayReport, 0, s.site.ForecastDays),
	}

	for slot := 0; slot < s.site.ForecastDays; slot++ {
		if slot >= len(days) {
			forecast.Days = append(forecast.Days, NoDataReport(slot, time.Time{}, s.site.Units, ErrNoSamples))
			continue
		}
		agg := days[slot]
		if err := agg.CompleteAt(res.Interval); err != nil {
			log.Debug("day slot has insufficient data", "day", slot, "samples", agg.SampleCount, "error", err)
			forecast.Days = append(forecast.Days, NoDataReport(slot, agg.Start, s.site.Units, err))
			continue
		}
		mm, err := s.evapotranspiration(agg, lat)
		if errors.Is(err, eto.ErrHumidity) || errors.Is(err, eto.ErrTemperatureRange) {
			// Out-of-range feed readings only cost their own day.
			log.Warn("day slot has invalid readings", "day", slot, "error", err)
			forecast.Days = append(forecast.Days, NoDataReport(slot, agg.Start, s.site.Units, err))
			continue
		}
		if err != nil {
			s.metrics.RefreshDone("eto_error", s.clock.Since(started))
			return Forecast{}, fmt.Errorf("day %d: %w", slot, err)
		}
		forecast.Days = append(forecast.Days, RenderDay(agg, mm, s.site.Units))
	}

	if cf, ok := s.feedByName(provider).(ConditionsFeed); ok {
		if c, err := cf.FetchConditions(ctx, loc, s.site.Units); err != nil {
			log.Warn("current conditions unavailable", "provider", provider, "error", err)
		} else if rep, err := RenderConditions(c, s.site.Units); err != nil {
			log.Warn("render current conditions", "error", err)
		} else {
			forecast.Conditions = &rep
		}
	}

	s.store.SaveForecast(loc, forecast)
	s.publish(ctx, loc, forecast)

	s.metrics.RefreshDone("success", s.clock.Since(started))
	log.Info("forecast refreshed",
		"run_id", forecast.RunID,
		"provider", provider,
		"samples", len(res.Samples),
		"days", len(forecast.Days),
	)
	return forecast, nil
}

func (s *Service) fetchForecast(ctx context.Context, loc Location) (FeedResult, string, error) {
	if len(s.feeds) == 0 {
		return FeedResult{}, "", ErrNoFeeds
	}

	var errs []error
	for _, f := range s.feeds {
		res, err := f.FetchForecast(ctx, loc, s.site.Units)
		s.metrics.FeedRequest(f.Name(), err)
		if err != nil {
			s.logger.Warn("feed failed", "provider", f.Name(), "location", loc.Key(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", f.Name(), err))
			continue
		}
		return res, f.Name(), nil
	}
	return FeedResult{}, "", fmt.Errorf("all feeds failed: %w", errors.Join(errs...))
}

func (s *Service) feedByName(name string) Feed {
	for _, f := range s.feeds {
		if f.Name() == name {
			return f
		}
	}
	return nil
}

func (s *Service) zoneFor(res FeedResult) *time.Location {
	switch {
	case s.zone != nil:
		return s.zone
	case res.Zone != nil:
		return res.Zone
	default:
		return time.Local
	}
}

// evapotranspiration converts the aggregate to metric inputs and runs the model.
func (s *Service) evapotranspiration(agg DailyAggregate, lat float64) (float64, error) {
	tmax, tmin, wind := agg.TempMax, agg.TempMin, agg.WindSpeedAvg
	if s.site.Units == units.Imperial {
		tmax = units.FahrenheitToCelsius(tmax)
		tmin = units.FahrenheitToCelsius(tmin)
		wind = units.MphToMs(wind)
	}
	return eto.Evapotranspiration(eto.Input{
		TempMaxC:         tmax,
		TempMinC:         tmin,
		WindSpeedMs:      wind,
		ElevationM:       s.site.Elevation,
		HumidityMaxPct:   agg.HumidityMax,
		HumidityMinPct:   agg.HumidityMin,
		LatitudeDeg:      lat,
		PlantCoefficient: s.site.PlantCoefficient,
		DayOfYear:        agg.Start.YearDay(),
	})
}

func (s *Service) publish(ctx context.Context, loc Location, forecast Forecast) {
	for _, day := range forecast.Days {
		s.metrics.DayReported(string(day.Status))
		if day.EToMm != nil {
			s.metrics.SetETo(loc.Key(), strconv.Itoa(day.Day), *day.EToMm)
		}
		if s.sink == nil {
			continue
		}
		if err := s.sink.Publish(ctx, loc, day); err != nil {
			s.metrics.SinkFailed()
			s.logger.Error("publish day report", "location", loc.Key(), "day", day.Day, "error", err)
		}
	}
}

// Latest returns the most recent forecast for loc.
func (s *Service) Latest(loc Location) (Forecast, error) {
	return s.store.GetLatest(loc)
}

// Range returns the forecasts generated in [from, to].
func (s *Service) Range(loc Location, from, to time.Time) ([]Forecast, error) {
	return s.store.GetRange(loc, from, to)
}
