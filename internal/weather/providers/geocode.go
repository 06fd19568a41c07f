package providers

import (
	"context"
	"fmt"
	"sync"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/weather-eto-aggregation/internal/weather"
)

// Geocoder resolves a location to latitude and longitude.
type Geocoder interface {
	Geocode(ctx context.Context, loc weather.Location) (lat, lon float64, err error)
}

// GeocoderFunc adapts a function to the Geocoder interface.
type GeocoderFunc func(ctx context.Context, loc weather.Location) (float64, float64, error)

func (f GeocoderFunc) Geocode(ctx context.Context, loc weather.Location) (float64, float64, error) {
	return f(ctx, loc)
}

// NewGoogleGeocoder resolves city and country with the Google Geocoding API.
func NewGoogleGeocoder(apiKey string) Geocoder {
	geocoder.ApiKey = apiKey
	return GeocoderFunc(func(ctx context.Context, loc weather.Location) (float64, float64, error) {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}
		res, err := geocoder.Geocoding(geocoder.Address{
			City:       loc.City,
			Country:    loc.Country,
			PostalCode: loc.Zip,
		})
		if err != nil {
			return 0, 0, fmt.Errorf("geocode %s: %w", loc.Key(), err)
		}
		return res.Latitude, res.Longitude, nil
	})
}

// cachingGeocoder remembers successful lookups per location.
type cachingGeocoder struct {
	next Geocoder

	mu    sync.Mutex
	cache map[string][2]float64
}

func newCachingGeocoder(next Geocoder) *cachingGeocoder {
	return &cachingGeocoder{next: next, cache: make(map[string][2]float64)}
}

func (c *cachingGeocoder) Geocode(ctx context.Context, loc weather.Location) (float64, float64, error) {
	c.mu.Lock()
	hit, ok := c.cache[loc.Key()]
	c.mu.Unlock()
	if ok {
		return hit[0], hit[1], nil
	}

	lat, lon, err := c.next.Geocode(ctx, loc)
	if err != nil {
		return 0, 0, err
	}

	c.mu.Lock()
	c.cache[loc.Key()] = [2]float64{lat, lon}
	c.mu.Unlock()
	return lat, lon, nil
}
