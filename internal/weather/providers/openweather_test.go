package providers

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-eto-aggregation/internal/units"
	"github.com/i474232898/weather-eto-aggregation/internal/weather"
)

const owmForecastBody = `{
  "list": [
    {"dt": 1718841600, "main": {"temp": 21.5, "humidity": 60, "pressure": 1012},
     "wind": {"speed": 3.2, "deg": 200}, "clouds": {"all": 40},
     "rain": {"3h": 1.25}, "weather": [{"id": 500}]},
    {"dt": 1718852400, "main": {"temp": 24.0, "humidity": 55, "pressure": 1011},
     "wind": {"speed": 4.0, "deg": 210}, "clouds": {"all": 20},
     "weather": [{"id": 801}]}
  ],
  "city": {"coord": {"lat": 48.85, "lon": 2.35}, "timezone": 7200}
}`

func newOWMServer(t *testing.T, uvStatus int) (*httptest.Server, func() []url.URL) {
	t.Helper()
	var (
		mu   sync.Mutex
		seen []url.URL
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, *r.URL)
		mu.Unlock()
		switch r.URL.Path {
		case "/forecast":
			_, _ = w.Write([]byte(owmForecastBody))
		case "/uvi/forecast":
			if uvStatus != http.StatusOK {
				w.WriteHeader(uvStatus)
				return
			}
			_, _ = w.Write([]byte(`[{"date": 1718884800, "value": 7.1}, {"date": 1718971200, "value": 8.4}]`))
		case "/weather":
			_, _ = w.Write([]byte(`{"dt": 1718870000, "main": {"temp": 22, "temp_min": 18, "temp_max": 26,
				"humidity": 50, "pressure": 1015}, "visibility": 10000, "weather": [{"id": 800}],
				"coord": {"lat": 48.85, "lon": 2.35}, "timezone": 7200}`))
		case "/uvi":
			_, _ = w.Write([]byte(`{"date": 1718870000, "value": 6.3}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, func() []url.URL {
		mu.Lock()
		defer mu.Unlock()
		return append([]url.URL(nil), seen...)
	}
}

func newTestOWM(base string) *OpenWeatherProvider {
	cfg := testHTTPConfig()
	cfg.Backoff.MaxRetries = 0
	p := NewOpenWeatherProvider(cfg, "secret", nil)
	p.baseURL = base
	return p
}

func TestOpenWeatherFetchForecast(t *testing.T) {
	srv, seen := newOWMServer(t, http.StatusOK)
	p := newTestOWM(srv.URL)

	res, err := p.FetchForecast(context.Background(), weather.Location{City: "Paris", Country: "FR"}, units.Metric)
	require.NoError(t, err)

	require.Len(t, res.Samples, 2)
	first := res.Samples[0]
	assert.Equal(t, time.Unix(1718841600, 0).UTC(), first.Time)
	assert.Equal(t, 21.5, *first.Temperature)
	assert.Equal(t, 1.25, first.Rain.Amount())
	assert.Nil(t, first.Snow)
	assert.Equal(t, 500, *first.Condition)
	assert.Nil(t, res.Samples[1].Rain)

	require.Len(t, res.UV, 2)
	assert.Equal(t, 8.4, res.UV[1].Index)
	assert.Equal(t, weather.DefaultInterval, res.Interval)
	assert.Equal(t, 48.85, res.Latitude)
	_, offset := time.Unix(0, 0).In(res.Zone).Zone()
	assert.Equal(t, 7200, offset)

	urls := seen()
	require.Len(t, urls, 2)
	q := urls[0].Query()
	assert.Equal(t, "Paris,FR", q.Get("q"))
	assert.Equal(t, "metric", q.Get("units"))
	assert.Equal(t, "secret", q.Get("appid"))
	assert.Equal(t, "48.85", urls[1].Query().Get("lat"))
}

func TestOpenWeatherUVFailureIsNotFatal(t *testing.T) {
	srv, _ := newOWMServer(t, http.StatusBadRequest)
	var buf bytes.Buffer
	p := newTestOWM(srv.URL)
	p.logger = slog.New(slog.NewJSONHandler(&buf, nil))

	res, err := p.FetchForecast(context.Background(), weather.Location{City: "Paris"}, units.Imperial)
	require.NoError(t, err)
	assert.Len(t, res.Samples, 2)
	assert.Empty(t, res.UV)
	assert.Contains(t, buf.String(), "openweather uv forecast unavailable")
	assert.Contains(t, buf.String(), `"location":"Paris:"`)
}

func TestOpenWeatherRequiresKey(t *testing.T) {
	p := NewOpenWeatherProvider(testHTTPConfig(), "", nil)
	_, err := p.FetchForecast(context.Background(), weather.Location{City: "Paris"}, units.Metric)
	require.ErrorIs(t, err, errNoAPIKey)
}

func TestOpenWeatherFetchConditions(t *testing.T) {
	srv, _ := newOWMServer(t, http.StatusOK)
	p := newTestOWM(srv.URL)

	c, err := p.FetchConditions(context.Background(), weather.Location{City: "Paris"}, units.Metric)
	require.NoError(t, err)
	assert.Equal(t, 22.0, *c.Temperature)
	assert.Equal(t, 26.0, *c.TempMax)
	assert.Equal(t, 18.0, *c.TempMin)
	assert.Equal(t, 10000.0, *c.Visibility)
	assert.Equal(t, 800, *c.Condition)
	require.NotNil(t, c.UVIndex)
	assert.Equal(t, 6.3, *c.UVIndex)
}

func TestLocationQuery(t *testing.T) {
	cases := map[string]struct {
		loc  weather.Location
		key  string
		want string
	}{
		"zip":          {weather.Location{City: "San Francisco", Zip: "94110,us"}, "zip", "94110,us"},
		"city as zip":  {weather.Location{City: "10115,de"}, "zip", "10115,de"},
		"coordinates":  {weather.Location{City: "Paris", Lat: f64(48.85), Lon: f64(2.35)}, "lat", "48.85"},
		"city only":    {weather.Location{City: "Paris"}, "q", "Paris"},
		"city country": {weather.Location{City: "Paris", Country: "FR"}, "q", "Paris,FR"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			values := url.Values{}
			locationQuery(tc.loc, values)
			assert.Equal(t, tc.want, values.Get(tc.key))
		})
	}
}
