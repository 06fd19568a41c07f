package providers

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-eto-aggregation/internal/common"
	"github.com/i474232898/weather-eto-aggregation/internal/units"
	"github.com/i474232898/weather-eto-aggregation/internal/weather"
)

const kphToMs = 1 / 3.6

// WeatherAPIProvider implements weather.Feed and weather.ConditionsFeed for
// WeatherAPI.com. Hourly forecast rows are folded into 3-hour windows.
type WeatherAPIProvider struct {
	name    string
	apiKey  string
	baseURL string
	days    int
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewWeatherAPIProvider(httpCfg HTTPClientConfig, apiKey string) *WeatherAPIProvider {
	return &WeatherAPIProvider{
		name:    "weatherapi",
		apiKey:  apiKey,
		baseURL: "https://api.weatherapi.com/v1",
		days:    weather.MaxForecastDays,
		httpCfg: httpCfg,
		circuit: newCircuitBreaker("weatherapi"),
	}
}

func (p *WeatherAPIProvider) Name() string {
	return p.name
}

type weatherAPICondition struct {
	Text string `json:"text"`
}

type weatherAPIReading struct {
	TimeEpoch  int64               `json:"time_epoch"`
	TempC      *float64            `json:"temp_c"`
	TempF      *float64            `json:"temp_f"`
	Humidity   *float64            `json:"humidity"`
	PressureMb *float64            `json:"pressure_mb"`
	WindKph    *float64            `json:"wind_kph"`
	WindMph    *float64            `json:"wind_mph"`
	WindDegree *float64            `json:"wind_degree"`
	Cloud      *float64            `json:"cloud"`
	PrecipMm   *float64            `json:"precip_mm"`
	SnowCm     *float64            `json:"snow_cm"`
	VisKm      *float64            `json:"vis_km"`
	UV         *float64            `json:"uv"`
	Condition  weatherAPICondition `json:"condition"`
}

type weatherAPIResponse struct {
	Location struct {
		Lat            float64 `json:"lat"`
		Lon            float64 `json:"lon"`
		TzID           string  `json:"tz_id"`
		LocaltimeEpoch int64   `json:"localtime_epoch"`
	} `json:"location"`
	Current  weatherAPIReading `json:"current"`
	Forecast struct {
		ForecastDay []struct {
			Date string `json:"date"`
			Day  struct {
				MaxTempC *float64 `json:"maxtemp_c"`
				MaxTempF *float64 `json:"maxtemp_f"`
				MinTempC *float64 `json:"mintemp_c"`
				MinTempF *float64 `json:"mintemp_f"`
				UV       float64  `json:"uv"`
			} `json:"day"`
			Hour []weatherAPIReading `json:"hour"`
		} `json:"forecastday"`
	} `json:"forecast"`
}

func (p *WeatherAPIProvider) fetch(ctx context.Context, loc weather.Location, days int) (weatherAPIResponse, error) {
	var payload weatherAPIResponse
	if p.apiKey == "" {
		return payload, fmt.Errorf("weatherapi: %w", errNoAPIKey)
	}

	values := url.Values{}
	values.Set("key", p.apiKey)
	values.Set("days", strconv.Itoa(days))
	values.Set("aqi", "no")
	values.Set("alerts", "no")
	// WeatherAPI uses "q" for location; it accepts "city,country", a zip or "lat,lon".
	switch {
	case loc.Lat != nil && loc.Lon != nil:
		values.Set("q", fmt.Sprintf("%f,%f", *loc.Lat, *loc.Lon))
	case loc.Zip != "":
		values.Set("q", loc.Zip)
	default:
		q := loc.City
		if loc.Country != "" {
			q = fmt.Sprintf("%s,%s", loc.City, loc.Country)
		}
		values.Set("q", q)
	}

	err := getJSON(ctx, p.httpCfg, p.circuit, p.baseURL+"/forecast.json", values, &payload)
	return payload, err
}

func (p *WeatherAPIProvider) FetchForecast(ctx context.Context, loc weather.Location, sys units.System) (weather.FeedResult, error) {
	payload, err := p.fetch(ctx, loc, p.days)
	if err != nil {
		return weather.FeedResult{}, err
	}

	zone := time.UTC
	if payload.Location.TzID != "" {
		if z, err := time.LoadLocation(payload.Location.TzID); err == nil {
			zone = z
		}
	}

	var hourly []weather.IntervalSample
	res := weather.FeedResult{
		Interval:  weather.DefaultInterval,
		Latitude:  payload.Location.Lat,
		Longitude: payload.Location.Lon,
		Zone:      zone,
	}
	for _, fd := range payload.Forecast.ForecastDay {
		day, err := time.ParseInLocation(time.DateOnly, fd.Date, zone)
		if err != nil {
			return weather.FeedResult{}, fmt.Errorf("weatherapi: parse day %q: %w", fd.Date, err)
		}
		res.UV = append(res.UV, weather.UvSample{Time: day, Index: fd.Day.UV})
		for _, h := range fd.Hour {
			hourly = append(hourly, h.toSample(sys))
		}
	}
	if len(hourly) == 0 {
		return weather.FeedResult{}, fmt.Errorf("weatherapi: %w", errEmptyForecast)
	}
	res.Samples = resample(hourly, weather.DefaultInterval, zone)
	return res, nil
}

// FetchConditions reads the current block of a one day forecast, which also
// carries the day's extremes.
func (p *WeatherAPIProvider) FetchConditions(ctx context.Context, loc weather.Location, sys units.System) (weather.Conditions, error) {
	payload, err := p.fetch(ctx, loc, 1)
	if err != nil {
		return weather.Conditions{}, err
	}

	cur := payload.Current
	s := cur.toSample(sys)
	if s.Time.IsZero() && payload.Location.LocaltimeEpoch > 0 {
		s.Time = time.Unix(payload.Location.LocaltimeEpoch, 0).UTC()
	}
	c := weather.Conditions{
		Time:        s.Time,
		Temperature: s.Temperature,
		Humidity:    s.Humidity,
		Pressure:    s.Pressure,
		WindSpeed:   s.WindSpeed,
		WindDir:     s.WindDir,
		Clouds:      s.Clouds,
		Rain:        s.Rain,
		Snow:        s.Snow,
		Condition:   s.Condition,
		UVIndex:     cur.UV,
	}
	if cur.VisKm != nil {
		m := *cur.VisKm * 1000
		c.Visibility = &m
	}
	if len(payload.Forecast.ForecastDay) > 0 {
		d := payload.Forecast.ForecastDay[0].Day
		if sys == units.Imperial {
			c.TempMax, c.TempMin = d.MaxTempF, d.MinTempF
		} else {
			c.TempMax, c.TempMin = d.MaxTempC, d.MinTempC
		}
	}
	return c, nil
}

func (r weatherAPIReading) toSample(sys units.System) weather.IntervalSample {
	s := weather.IntervalSample{
		Humidity: r.Humidity,
		Pressure: r.PressureMb,
		WindDir:  r.WindDegree,
		Clouds:   r.Cloud,
	}
	if r.TimeEpoch > 0 {
		s.Time = time.Unix(r.TimeEpoch, 0).UTC()
	}
	if sys == units.Imperial {
		s.Temperature = r.TempF
		s.WindSpeed = r.WindMph
	} else {
		s.Temperature = r.TempC
		if r.WindKph != nil {
			ms := *r.WindKph * kphToMs
			s.WindSpeed = &ms
		}
	}
	if r.PrecipMm != nil {
		s.Rain = &weather.Precipitation{OneHour: r.PrecipMm}
	}
	if r.SnowCm != nil {
		mm := *r.SnowCm * 10
		s.Snow = &weather.Precipitation{OneHour: &mm}
	}
	if r.Condition.Text != "" {
		id := weatherAPIConditionID(r.Condition.Text)
		s.Condition = &id
	}
	return s
}

// weatherAPIConditionID maps WeatherAPI's condition text onto an
// OpenWeatherMap condition id.
func weatherAPIConditionID(text string) int {
	t := strings.ToLower(text)
	switch {
	case common.HasAny(t, "thunder", "storm"):
		return 211
	case common.HasAny(t, "snow", "sleet", "blizzard", "ice pellets"):
		return 601
	case common.HasAny(t, "drizzle"):
		return 301
	case common.HasAny(t, "rain", "shower"):
		return 501
	case common.HasAny(t, "mist", "fog"):
		return 741
	case common.HasAny(t, "overcast"):
		return 804
	case common.HasAny(t, "partly"):
		return 802
	case common.HasAny(t, "cloud"):
		return 803
	case common.HasAny(t, "sunny", "clear"):
		return 800
	default:
		return 0
	}
}
