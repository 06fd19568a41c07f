package providers

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-eto-aggregation/internal/common"
	"github.com/i474232898/weather-eto-aggregation/internal/units"
	"github.com/i474232898/weather-eto-aggregation/internal/weather"
)

// OpenWeatherProvider implements weather.Feed and weather.ConditionsFeed for
// OpenWeatherMap's free 3-hour forecast API.
type OpenWeatherProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewOpenWeatherProvider creates the feed. logger may be nil.
func NewOpenWeatherProvider(httpCfg HTTPClientConfig, apiKey string, logger *slog.Logger) *OpenWeatherProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenWeatherProvider{
		name:    "openweathermap",
		apiKey:  apiKey,
		baseURL: "https://api.openweathermap.org/data/2.5",
		httpCfg: httpCfg,
		circuit: newCircuitBreaker("openweather"),
		logger:  logger.With("provider", "openweathermap"),
	}
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

// owmPrecip is the rain or snow object; either figure may be absent.
type owmPrecip struct {
	OneH   *float64 `json:"1h"`
	ThreeH *float64 `json:"3h"`
}

func (o *owmPrecip) toPrecipitation() *weather.Precipitation {
	if o == nil {
		return nil
	}
	return &weather.Precipitation{OneHour: o.OneH, ThreeHour: o.ThreeH}
}

type owmMain struct {
	Temp     *float64 `json:"temp"`
	TempMin  *float64 `json:"temp_min"`
	TempMax  *float64 `json:"temp_max"`
	Pressure *float64 `json:"pressure"`
	Humidity *float64 `json:"humidity"`
}

type owmWind struct {
	Speed *float64 `json:"speed"`
	Deg   *float64 `json:"deg"`
}

type owmClouds struct {
	All *float64 `json:"all"`
}

type owmCondition struct {
	ID int `json:"id"`
}

type owmCoord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type owmEntry struct {
	Dt         int64          `json:"dt"`
	Main       *owmMain       `json:"main"`
	Wind       *owmWind       `json:"wind"`
	Clouds     *owmClouds     `json:"clouds"`
	Rain       *owmPrecip     `json:"rain"`
	Snow       *owmPrecip     `json:"snow"`
	Weather    []owmCondition `json:"weather"`
	Visibility *float64       `json:"visibility"`
}

type owmForecast struct {
	List []owmEntry `json:"list"`
	City struct {
		Coord    owmCoord `json:"coord"`
		Timezone *int     `json:"timezone"`
	} `json:"city"`
}

type owmCurrent struct {
	owmEntry
	Coord    owmCoord `json:"coord"`
	Timezone *int     `json:"timezone"`
}

type owmUV struct {
	Date  int64   `json:"date"`
	Value float64 `json:"value"`
}

// locationQuery selects how OpenWeatherMap is asked for loc: by zip when one
// is configured (or the city itself looks like a zip), else by coordinates,
// else by city and country.
func locationQuery(loc weather.Location, values url.Values) {
	switch {
	case loc.Zip != "" && common.IsZipQuery(loc.Zip):
		values.Set("zip", loc.Zip)
	case common.IsZipQuery(loc.City):
		values.Set("zip", loc.City)
	case loc.Lat != nil && loc.Lon != nil:
		values.Set("lat", strconv.FormatFloat(*loc.Lat, 'f', -1, 64))
		values.Set("lon", strconv.FormatFloat(*loc.Lon, 'f', -1, 64))
	default:
		q := loc.City
		if loc.Country != "" {
			q = fmt.Sprintf("%s,%s", loc.City, loc.Country)
		}
		values.Set("q", q)
	}
}

func (p *OpenWeatherProvider) query(loc weather.Location, sys units.System) url.Values {
	values := url.Values{}
	values.Set("appid", p.apiKey)
	values.Set("units", string(sys))
	locationQuery(loc, values)
	return values
}

func (p *OpenWeatherProvider) uvQuery(coord owmCoord) url.Values {
	values := url.Values{}
	values.Set("appid", p.apiKey)
	values.Set("lat", strconv.FormatFloat(coord.Lat, 'f', -1, 64))
	values.Set("lon", strconv.FormatFloat(coord.Lon, 'f', -1, 64))
	return values
}

// FetchForecast reads the 5 day / 3 hour forecast and the daily UV forecast
// for the coordinates the forecast reports.
func (p *OpenWeatherProvider) FetchForecast(ctx context.Context, loc weather.Location, sys units.System) (weather.FeedResult, error) {
	if p.apiKey == "" {
		return weather.FeedResult{}, fmt.Errorf("openweather: %w", errNoAPIKey)
	}

	var fc owmForecast
	if err := getJSON(ctx, p.httpCfg, p.circuit, p.baseURL+"/forecast", p.query(loc, sys), &fc); err != nil {
		return weather.FeedResult{}, err
	}
	if len(fc.List) == 0 {
		return weather.FeedResult{}, fmt.Errorf("openweather: %w", errEmptyForecast)
	}

	samples := make([]weather.IntervalSample, 0, len(fc.List))
	for _, e := range fc.List {
		samples = append(samples, e.toSample())
	}

	var uv []owmUV
	if err := getJSON(ctx, p.httpCfg, p.circuit, p.baseURL+"/uvi/forecast", p.uvQuery(fc.City.Coord), &uv); err != nil {
		// UV is reported as zero when missing, the forecast is still usable.
		p.logger.Warn("openweather uv forecast unavailable", "location", loc.Key(), "error", err)
		uv = nil
	}

	res := weather.FeedResult{
		Samples:   samples,
		UV:        make([]weather.UvSample, 0, len(uv)),
		Interval:  weather.DefaultInterval,
		Latitude:  fc.City.Coord.Lat,
		Longitude: fc.City.Coord.Lon,
		Zone:      fixedZone(fc.City.Timezone),
	}
	for _, u := range uv {
		res.UV = append(res.UV, weather.UvSample{Time: time.Unix(u.Date, 0).UTC(), Index: u.Value})
	}
	return res, nil
}

// FetchConditions reads the current weather and the current UV index.
func (p *OpenWeatherProvider) FetchConditions(ctx context.Context, loc weather.Location, sys units.System) (weather.Conditions, error) {
	if p.apiKey == "" {
		return weather.Conditions{}, fmt.Errorf("openweather: %w", errNoAPIKey)
	}

	var cur owmCurrent
	if err := getJSON(ctx, p.httpCfg, p.circuit, p.baseURL+"/weather", p.query(loc, sys), &cur); err != nil {
		return weather.Conditions{}, err
	}

	s := cur.toSample()
	c := weather.Conditions{
		Time:        s.Time,
		Temperature: s.Temperature,
		Humidity:    s.Humidity,
		Pressure:    s.Pressure,
		WindSpeed:   s.WindSpeed,
		WindDir:     s.WindDir,
		Visibility:  cur.Visibility,
		Clouds:      s.Clouds,
		Rain:        s.Rain,
		Snow:        s.Snow,
		Condition:   s.Condition,
	}
	if cur.Main != nil {
		c.TempMax = cur.Main.TempMax
		c.TempMin = cur.Main.TempMin
	}

	var uv owmUV
	if err := getJSON(ctx, p.httpCfg, p.circuit, p.baseURL+"/uvi", p.uvQuery(cur.Coord), &uv); err != nil {
		p.logger.Warn("openweather uv index unavailable", "location", loc.Key(), "error", err)
	} else {
		c.UVIndex = &uv.Value
	}
	return c, nil
}

func (e owmEntry) toSample() weather.IntervalSample {
	s := weather.IntervalSample{
		Rain: e.Rain.toPrecipitation(),
		Snow: e.Snow.toPrecipitation(),
	}
	if e.Dt > 0 {
		s.Time = time.Unix(e.Dt, 0).UTC()
	}
	if e.Main != nil {
		s.Temperature = e.Main.Temp
		s.Humidity = e.Main.Humidity
		s.Pressure = e.Main.Pressure
	}
	if e.Wind != nil {
		s.WindSpeed = e.Wind.Speed
		s.WindDir = e.Wind.Deg
	}
	if e.Clouds != nil {
		s.Clouds = e.Clouds.All
	}
	if len(e.Weather) > 0 {
		id := e.Weather[0].ID
		s.Condition = &id
	}
	return s
}

func fixedZone(offsetSeconds *int) *time.Location {
	if offsetSeconds == nil {
		return nil
	}
	return time.FixedZone("", *offsetSeconds)
}
