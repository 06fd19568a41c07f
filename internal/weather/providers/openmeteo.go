package providers

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-eto-aggregation/internal/units"
	"github.com/i474232898/weather-eto-aggregation/internal/weather"
)

const openMeteoHourly = "temperature_2m,relative_humidity_2m,surface_pressure,wind_speed_10m," +
	"wind_direction_10m,cloud_cover,rain,snowfall,weather_code"

// OpenMeteoProvider implements weather.Feed for Open-Meteo. The API is hourly;
// rows are folded into 3-hour windows to match the aggregation interval.
type OpenMeteoProvider struct {
	name     string
	baseURL  string
	days     int
	httpCfg  HTTPClientConfig
	circuit  *gobreaker.CircuitBreaker
	geocoder Geocoder
}

// NewOpenMeteoProvider creates the feed. geo resolves locations configured
// without coordinates and may be nil.
func NewOpenMeteoProvider(httpCfg HTTPClientConfig, geo Geocoder) *OpenMeteoProvider {
	p := &OpenMeteoProvider{
		name:    "openmeteo",
		baseURL: "https://api.open-meteo.com/v1/forecast",
		days:    weather.MaxForecastDays,
		httpCfg: httpCfg,
		circuit: newCircuitBreaker("openmeteo"),
	}
	if geo != nil {
		p.geocoder = newCachingGeocoder(geo)
	}
	return p
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

type openMeteoResponse struct {
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	Timezone         string  `json:"timezone"`
	UTCOffsetSeconds int     `json:"utc_offset_seconds"`
	Hourly           struct {
		Time          []string   `json:"time"`
		Temperature   []*float64 `json:"temperature_2m"`
		Humidity      []*float64 `json:"relative_humidity_2m"`
		Pressure      []*float64 `json:"surface_pressure"`
		WindSpeed     []*float64 `json:"wind_speed_10m"`
		WindDirection []*float64 `json:"wind_direction_10m"`
		CloudCover    []*float64 `json:"cloud_cover"`
		Rain          []*float64 `json:"rain"`
		Snowfall      []*float64 `json:"snowfall"` // centimetres
		WeatherCode   []*int     `json:"weather_code"`
	} `json:"hourly"`
	Daily struct {
		Time       []string   `json:"time"`
		UVIndexMax []*float64 `json:"uv_index_max"`
	} `json:"daily"`
}

func (p *OpenMeteoProvider) coordinates(ctx context.Context, loc weather.Location) (float64, float64, error) {
	if loc.Lat != nil && loc.Lon != nil {
		return *loc.Lat, *loc.Lon, nil
	}
	if p.geocoder == nil {
		return 0, 0, fmt.Errorf("openmeteo: %w", errNoCoordinates)
	}
	return p.geocoder.Geocode(ctx, loc)
}

func (p *OpenMeteoProvider) FetchForecast(ctx context.Context, loc weather.Location, sys units.System) (weather.FeedResult, error) {
	lat, lon, err := p.coordinates(ctx, loc)
	if err != nil {
		return weather.FeedResult{}, err
	}

	values := url.Values{}
	values.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	values.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	values.Set("hourly", openMeteoHourly)
	values.Set("daily", "uv_index_max")
	values.Set("timezone", "auto")
	values.Set("forecast_days", strconv.Itoa(p.days))
	values.Set("precipitation_unit", "mm")
	if sys == units.Imperial {
		values.Set("temperature_unit", "fahrenheit")
		values.Set("wind_speed_unit", "mph")
	} else {
		values.Set("wind_speed_unit", "ms")
	}

	var payload openMeteoResponse
	if err := getJSON(ctx, p.httpCfg, p.circuit, p.baseURL, values, &payload); err != nil {
		return weather.FeedResult{}, err
	}

	zone := payload.zone()
	hourly, err := payload.hourlySamples(zone)
	if err != nil {
		return weather.FeedResult{}, err
	}
	if len(hourly) == 0 {
		return weather.FeedResult{}, fmt.Errorf("openmeteo: %w", errEmptyForecast)
	}

	res := weather.FeedResult{
		Samples:   resample(hourly, weather.DefaultInterval, zone),
		Interval:  weather.DefaultInterval,
		Latitude:  payload.Latitude,
		Longitude: payload.Longitude,
		Zone:      zone,
	}
	for i, d := range payload.Daily.Time {
		day, err := time.ParseInLocation(time.DateOnly, d, zone)
		if err != nil {
			return weather.FeedResult{}, fmt.Errorf("openmeteo: parse day %q: %w", d, err)
		}
		u := weather.UvSample{Time: day}
		if v := at(payload.Daily.UVIndexMax, i); v != nil {
			u.Index = *v
		}
		res.UV = append(res.UV, u)
	}
	return res, nil
}

// zone prefers the IANA name so offsets follow daylight saving changes
// within the forecast window; the fixed offset is the fallback.
func (r openMeteoResponse) zone() *time.Location {
	if r.Timezone != "" {
		if z, err := time.LoadLocation(r.Timezone); err == nil {
			return z
		}
	}
	return time.FixedZone("", r.UTCOffsetSeconds)
}

func (r openMeteoResponse) hourlySamples(zone *time.Location) ([]weather.IntervalSample, error) {
	h := r.Hourly
	out := make([]weather.IntervalSample, 0, len(h.Time))
	for i, ts := range h.Time {
		t, err := time.ParseInLocation("2006-01-02T15:04", ts, zone)
		if err != nil {
			return nil, fmt.Errorf("openmeteo: parse time %q: %w", ts, err)
		}
		s := weather.IntervalSample{
			Time:        t.UTC(),
			Temperature: at(h.Temperature, i),
			Humidity:    at(h.Humidity, i),
			Pressure:    at(h.Pressure, i),
			WindSpeed:   at(h.WindSpeed, i),
			WindDir:     at(h.WindDirection, i),
			Clouds:      at(h.CloudCover, i),
		}
		if v := at(h.Rain, i); v != nil {
			s.Rain = &weather.Precipitation{OneHour: v}
		}
		if v := at(h.Snowfall, i); v != nil {
			mm := *v * 10
			s.Snow = &weather.Precipitation{OneHour: &mm}
		}
		if code := at(h.WeatherCode, i); code != nil {
			id := wmoToConditionID(*code)
			s.Condition = &id
		}
		out = append(out, s)
	}
	return out, nil
}

func at[T any](xs []*T, i int) *T {
	if i < len(xs) {
		return xs[i]
	}
	return nil
}

// wmoToConditionID maps a WMO weather interpretation code onto the nearest
// OpenWeatherMap condition id.
func wmoToConditionID(code int) int {
	switch {
	case code == 0:
		return 800
	case code == 1:
		return 801
	case code == 2:
		return 802
	case code == 3:
		return 804
	case code == 45 || code == 48:
		return 741
	case code >= 51 && code <= 57:
		return 300 + (code-51)/2
	case code >= 61 && code <= 67:
		return 500 + (code-61)/2
	case code >= 71 && code <= 77:
		return 600 + (code-71)/2
	case code >= 80 && code <= 82:
		return 520 + (code - 80)
	case code == 85 || code == 86:
		return 620 + (code - 85)
	case code >= 95:
		return 211
	default:
		return 0
	}
}
