package weather

import (
	"context"
	"time"

	"github.com/i474232898/weather-eto-aggregation/internal/units"
)

// FeedResult is one retrieved forecast, already ordered by time.
type FeedResult struct {
	Samples  []IntervalSample
	UV       []UvSample
	Interval time.Duration
	// Coordinates and UTC offset as reported by the feed. Zone may be nil.
	Latitude  float64
	Longitude float64
	Zone      *time.Location
}

// Feed abstracts a forecast source (e.g. OpenWeatherMap, WeatherAPI, Open-Meteo).
// Temperatures and wind speeds are returned in sys.
type Feed interface {
	Name() string
	FetchForecast(ctx context.Context, loc Location, sys units.System) (FeedResult, error)
}

// ConditionsFeed is implemented by feeds that also report current conditions.
type ConditionsFeed interface {
	FetchConditions(ctx context.Context, loc Location, sys units.System) (Conditions, error)
}

// Sink receives every rendered day slot of a refresh.
type Sink interface {
	Publish(ctx context.Context, loc Location, report DayReport) error
}

// Store is the contract the in-memory store (and any future persistent store) must satisfy.
type Store interface {
	SaveForecast(loc Location, forecast Forecast)
	GetLatest(loc Location) (Forecast, error)
	GetRange(loc Location, from, to time.Time) ([]Forecast, error)
}
