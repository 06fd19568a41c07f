package store

import (
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/i474232898/weather-eto-aggregation/internal/weather"
)

var (
	// ErrNotFound is returned when no forecast is available for a given location.
	ErrNotFound = errors.New("no forecast for location")
)

// forecastHistory holds the forecasts of a location ordered by generation time.
type forecastHistory struct {
	forecasts []weather.Forecast
}

// MemoryStore is a concurrency-safe in-memory implementation of weather.Store.
type MemoryStore struct {
	mu sync.RWMutex

	// key: location key, value: history
	data map[string]*forecastHistory

	// retention configuration
	maxHistory int           // max number of forecasts per location
	maxAge     time.Duration // optional max age for forecasts

	clock clockwork.Clock
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return NewMemoryStoreWithClock(maxHistory, maxAge, clockwork.NewRealClock())
}

func NewMemoryStoreWithClock(maxHistory int, maxAge time.Duration, clock clockwork.Clock) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string]*forecastHistory),
		maxHistory: maxHistory,
		maxAge:     maxAge,
		clock:      clock,
	}
}

// SaveForecast appends a forecast for a location and enforces retention.
func (s *MemoryStore) SaveForecast(loc weather.Location, forecast weather.Forecast) {
	key := loc.Key()

	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.data[key]
	if !ok {
		history = &forecastHistory{}
		s.data[key] = history
	}

	history.forecasts = append(history.forecasts, forecast)

	// Enforce retention by count.
	if s.maxHistory > 0 && len(history.forecasts) > s.maxHistory {
		over := len(history.forecasts) - s.maxHistory
		history.forecasts = history.forecasts[over:]
	}

	// Enforce retention by age, always keeping the newest forecast.
	if s.maxAge > 0 {
		cutoff := s.clock.Now().Add(-s.maxAge)
		i := 0
		for ; i < len(history.forecasts)-1; i++ {
			if !history.forecasts[i].GeneratedAt.Before(cutoff) {
				break
			}
		}
		history.forecasts = history.forecasts[i:]
	}
}

// GetLatest returns the most recent forecast for a location.
func (s *MemoryStore) GetLatest(loc weather.Location) (weather.Forecast, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[loc.Key()]
	if !ok || len(history.forecasts) == 0 {
		return weather.Forecast{}, ErrNotFound
	}
	return history.forecasts[len(history.forecasts)-1], nil
}

// GetRange returns all forecasts for a location generated between from and to (inclusive).
func (s *MemoryStore) GetRange(loc weather.Location, from, to time.Time) ([]weather.Forecast, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[loc.Key()]
	if !ok || len(history.forecasts) == 0 {
		return nil, ErrNotFound
	}

	var result []weather.Forecast
	for _, f := range history.forecasts {
		if !f.GeneratedAt.Before(from) && !f.GeneratedAt.After(to) {
			result = append(result, f)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return result, nil
}
