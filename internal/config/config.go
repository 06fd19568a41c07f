package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/i474232898/weather-eto-aggregation/internal/common"
	"github.com/i474232898/weather-eto-aggregation/internal/eto"
	"github.com/i474232898/weather-eto-aggregation/internal/units"
	"github.com/i474232898/weather-eto-aggregation/internal/weather"
)

type AppConfig struct {
	OpenWeatherAPIKey string
	WeatherAPIKey     string
	GeocoderAPIKey    string

	// Providers lists the forecast feeds in the order they are tried.
	Providers []string `validate:"min=1,dive,oneof=openweathermap openmeteo weatherapi"`

	// FetchInterval controls how often we refresh each location.
	FetchInterval time.Duration `validate:"gt=0"`
	HTTPTimeout   time.Duration `validate:"gt=0"`

	// Locations to track.
	Locations []weather.Location `validate:"min=1"`

	// Site parameters for the evapotranspiration model.
	Latitude         *float64     `validate:"omitempty,gte=-90,lte=90"`
	Longitude        *float64     `validate:"omitempty,gte=-180,lte=180"`
	Elevation        float64      `validate:"gte=-500,lte=9000"`
	PlantCoefficient float64      `validate:"gte=0,lte=1"`
	Units            units.System `validate:"oneof=metric imperial"`
	ForecastDays     int          `validate:"gte=0,lte=7"`
	// Timezone for day boundaries; nil means the feed's offset.
	Timezone *time.Location

	// In-memory store retention.
	StoreMaxHistory int           `validate:"gte=0"` // max number of forecasts per location (0 = unlimited)
	StoreMaxAge     time.Duration `validate:"gte=0"` // max age of forecasts (0 = unlimited)

	// Optional sinks; empty disables them.
	SQLitePath      string
	MQTTBroker      string
	MQTTClientID    string
	MQTTTopicPrefix string
	KafkaBrokers    []string
	KafkaTopic      string `validate:"required_with=KafkaBrokers"`

	LogLevel  slog.Level
	LogFormat string `validate:"oneof=json text"`

	Port string `validate:"required,numeric"`
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file loaded", "error", err)
	}
	return FromEnv()
}

// FromEnv builds and validates the configuration from the process environment.
func FromEnv() (*AppConfig, error) {
	cfg := &AppConfig{
		OpenWeatherAPIKey: os.Getenv("OPENWEATHER_API_KEY"),
		WeatherAPIKey:     os.Getenv("WEATHERAPI_API_KEY"),
		GeocoderAPIKey:    os.Getenv("GEOCODER_API_KEY"),
		Providers:         splitList(getenvDefault("WEATHER_PROVIDERS", "openweathermap,openmeteo,weatherapi")),
		SQLitePath:        os.Getenv("SQLITE_PATH"),
		MQTTBroker:        os.Getenv("MQTT_BROKER"),
		MQTTClientID:      getenvDefault("MQTT_CLIENT_ID", "weather-eto"),
		MQTTTopicPrefix:   getenvDefault("MQTT_TOPIC_PREFIX", "weather"),
		KafkaBrokers:      splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:        getenvDefault("KAFKA_TOPIC", "daily-eto"),
		LogFormat:         strings.ToLower(getenvDefault("LOG_FORMAT", "json")),
		Port:              getenvDefault("PORT", "8080"),
		StoreMaxHistory:   getenvInt("STORE_MAX_HISTORY", 96), // roughly 24h at 15-minute intervals
		ForecastDays:      common.ClampInt(getenvInt("FORECAST_DAYS", 0), 0, weather.MaxForecastDays),
	}

	var err error
	if cfg.FetchInterval, err = getenvDuration("FETCH_INTERVAL", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.StoreMaxAge, err = getenvDuration("STORE_MAX_AGE", 24*time.Hour); err != nil {
		return nil, err
	}

	if cfg.Latitude, err = getenvOptionalFloat("LATITUDE"); err != nil {
		return nil, err
	}
	if cfg.Longitude, err = getenvOptionalFloat("LONGITUDE"); err != nil {
		return nil, err
	}
	if cfg.Elevation, err = getenvFloat("ELEVATION", 0); err != nil {
		return nil, err
	}
	if cfg.PlantCoefficient, err = getenvFloat("PLANT_COEFFICIENT", eto.DefaultPlantCoefficient); err != nil {
		return nil, err
	}

	if cfg.Units, err = units.ParseSystem(getenvDefault("UNITS", string(units.Imperial))); err != nil {
		return nil, fmt.Errorf("invalid UNITS: %w", err)
	}

	if tz := os.Getenv("TIMEZONE"); tz != "" {
		if cfg.Timezone, err = time.LoadLocation(tz); err != nil {
			return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
		}
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getenvDefault("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	if cfg.Locations, err = loadLocations(cfg.Latitude, cfg.Longitude); err != nil {
		return nil, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Site returns the evapotranspiration and display parameters.
func (c *AppConfig) Site() weather.SiteParameters {
	return weather.SiteParameters{
		Latitude:         c.Latitude,
		Elevation:        c.Elevation,
		PlantCoefficient: c.PlantCoefficient,
		Units:            c.Units,
		ForecastDays:     c.ForecastDays,
	}
}

// loadLocations pairs the comma separated city and country lists. Site
// coordinates only make sense for a single location and are attached to it.
func loadLocations(lat, lon *float64) ([]weather.Location, error) {
	cities := splitList(os.Getenv("WEATHER_LOCATION_CITY"))
	countries := splitList(os.Getenv("WEATHER_LOCATION_COUNTRY"))
	zips := splitList(os.Getenv("WEATHER_LOCATION_ZIP"))
	if len(cities) == 0 {
		return nil, fmt.Errorf("WEATHER_LOCATION_CITY is required")
	}
	if len(cities) != len(countries) {
		return nil, fmt.Errorf("number of cities and countries must be the same")
	}
	if len(zips) > 0 && len(zips) != len(cities) {
		return nil, fmt.Errorf("number of zip codes must match the number of cities")
	}

	locs := make([]weather.Location, 0, len(cities))
	for i := range cities {
		loc := weather.Location{
			City:    cities[i],
			Country: countries[i],
		}
		if len(zips) > 0 {
			loc.Zip = zips[i]
		}
		if len(cities) == 1 {
			loc.Lat, loc.Lon = lat, lon
		}
		locs = append(locs, loc)
	}
	return locs, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getenvOptionalFloat(key string) (*float64, error) {
	if os.Getenv(key) == "" {
		return nil, nil
	}
	f, err := getenvFloat(key, 0)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
