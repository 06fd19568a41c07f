package weather

import (
	"fmt"
	"time"

	"github.com/i474232898/weather-eto-aggregation/internal/eto"
	"github.com/i474232898/weather-eto-aggregation/internal/units"
)

// Condition represents a normalized high-level weather condition.
type Condition string

const (
	ConditionUnknown Condition = "unknown"
	ConditionClear   Condition = "clear"
	ConditionCloudy  Condition = "cloudy"
	ConditionRain    Condition = "rain"
	ConditionSnow    Condition = "snow"
	ConditionStorm   Condition = "storm"
	ConditionMist    Condition = "mist"
)

// ConditionFromCode groups an OpenWeatherMap condition id. Feeds with other
// code tables translate into these ids before handing samples over.
func ConditionFromCode(code int) Condition {
	switch {
	case code >= 200 && code < 300:
		return ConditionStorm
	case code >= 300 && code < 600:
		return ConditionRain
	case code >= 600 && code < 700:
		return ConditionSnow
	case code >= 700 && code < 800:
		return ConditionMist
	case code == 800:
		return ConditionClear
	case code > 800 && code < 900:
		return ConditionCloudy
	default:
		return ConditionUnknown
	}
}

// Location represents a logical place for which we track weather.
// City/Country identify it; Zip and coordinates refine the feed query.
type Location struct {
	City    string   `json:"city"`
	Country string   `json:"country"`
	Zip     string   `json:"zip,omitempty"`
	Lat     *float64 `json:"lat,omitempty"`
	Lon     *float64 `json:"lon,omitempty"`
}

// Key returns a canonical string key for indexing this location in stores.
func (l Location) Key() string {
	return l.City + ":" + l.Country
}

// Precipitation is an accumulated amount in millimetres over the window the
// feed reported it for.
type Precipitation struct {
	OneHour   *float64 `json:"1h,omitempty"`
	ThreeHour *float64 `json:"3h,omitempty"`
}

// IntervalSample is one feed reading, nominally every three hours.
// Temperature and wind speed are in the feed's unit system; pressure is hPa,
// humidity and clouds are percent. Nil fields were absent from the feed.
type IntervalSample struct {
	Time        time.Time
	Temperature *float64
	Humidity    *float64
	Pressure    *float64
	WindSpeed   *float64
	WindDir     *float64
	Clouds      *float64
	Rain        *Precipitation
	Snow        *Precipitation
	Condition   *int
}

// UvSample is a daily UV index. Its position in the series is the day ordinal.
type UvSample struct {
	Time  time.Time
	Index float64
}

// DailyAggregate summarizes one local day of samples. Temperatures and wind
// speed stay in the feed's unit system; precipitation totals are millimetres.
type DailyAggregate struct {
	Day          int
	SampleCount  int
	TempMin      float64
	TempMax      float64
	HumidityMin  float64
	HumidityMax  float64
	PressureAvg  float64
	WindSpeedAvg float64
	WindDirAvg   float64
	CloudAvg     float64
	RainTotal    float64
	SnowTotal    float64
	Condition    int
	UVIndex      float64
	// Start is the first sample of the day in the aggregation time zone.
	Start time.Time

	TempReadings     int
	HumidityReadings int
}

// SiteParameters configure the evapotranspiration model and the display.
type SiteParameters struct {
	// Latitude overrides the coordinates reported by the feed when set.
	Latitude         *float64
	Elevation        float64
	PlantCoefficient float64
	Units            units.System
	ForecastDays     int
}

// MaxForecastDays bounds the horizon: day buckets are keyed by weekday.
const MaxForecastDays = 7

// Validate rejects parameters the model cannot run with.
func (p SiteParameters) Validate() error {
	if !p.Units.Valid() {
		return fmt.Errorf("unknown unit system %q", p.Units)
	}
	if p.Latitude != nil && (*p.Latitude < -90 || *p.Latitude > 90) {
		return fmt.Errorf("%w: %v", eto.ErrLatitude, *p.Latitude)
	}
	if p.ForecastDays < 0 || p.ForecastDays > MaxForecastDays {
		return fmt.Errorf("forecast days must be within 0-%d, got %d", MaxForecastDays, p.ForecastDays)
	}
	return nil
}

// Conditions are the current observed conditions. Visibility is metres,
// precipitation millimetres, the rest follows IntervalSample.
type Conditions struct {
	Time        time.Time
	Temperature *float64
	Humidity    *float64
	Pressure    *float64
	TempMax     *float64
	TempMin     *float64
	WindSpeed   *float64
	WindDir     *float64
	Visibility  *float64
	Clouds      *float64
	Rain        *Precipitation
	Snow        *Precipitation
	Condition   *int
	UVIndex     *float64
}

// Forecast is the outcome of one refresh for a location.
type Forecast struct {
	RunID       string            `json:"runId"`
	Location    Location          `json:"location"`
	Provider    string            `json:"provider"`
	GeneratedAt time.Time         `json:"generatedAt"` // always UTC
	Latitude    float64           `json:"latitude"`
	Days        []DayReport       `json:"days"`
	Conditions  *ConditionsReport `json:"conditions,omitempty"`
}
