package httpapi

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/weather-eto-aggregation/internal/eto"
	"github.com/i474232898/weather-eto-aggregation/internal/store"
	"github.com/i474232898/weather-eto-aggregation/internal/units"
	"github.com/i474232898/weather-eto-aggregation/internal/weather"
)

var validate = validator.New()

// HistoryReader serves stored evapotranspiration days.
type HistoryReader interface {
	History(ctx context.Context, loc weather.Location, from, to time.Time) ([]store.EToRecord, error)
}

// RegisterOps wires the health and Prometheus endpoints.
func RegisterOps(app *fiber.App, name string, gatherer prometheus.Gatherer) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": name,
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
}

// RegisterRoutes wires the HTTP handlers into the Fiber app. history may be
// nil when no ETo history is kept.
func RegisterRoutes(app *fiber.App, service *weather.Service, history HistoryReader) {
	v1 := app.Group("/api/v1")

	v1.Get("/weather/current", func(c *fiber.Ctx) error {
		locReq, err := parseLocationQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		forecast, err := service.Latest(locReq.toLocation())
		if err != nil {
			return storeError(err, "no weather data for requested location")
		}
		if forecast.Conditions == nil {
			return fiber.NewError(fiber.StatusNotFound, "no current conditions for requested location")
		}

		return c.JSON(fiber.Map{
			"location":    forecast.Location,
			"provider":    forecast.Provider,
			"generatedAt": forecast.GeneratedAt,
			"conditions":  forecast.Conditions,
		})
	})

	v1.Get("/weather/forecast", func(c *fiber.Ctx) error {
		var req forecastQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		forecast, err := service.Latest(req.Location.toLocation())
		if err != nil {
			return storeError(err, "no forecast for requested location")
		}

		days := forecast.Days
		if len(days) > req.Days {
			days = days[:req.Days]
		}
		return c.JSON(fiber.Map{
			"location":    forecast.Location,
			"runId":       forecast.RunID,
			"provider":    forecast.Provider,
			"generatedAt": forecast.GeneratedAt,
			"latitude":    forecast.Latitude,
			"days":        days,
		})
	})

	v1.Get("/weather/history", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		loc := req.Location.toLocation()
		forecasts, err := service.Range(loc, req.From, req.To)
		if err != nil {
			return storeError(err, "no weather history for requested range")
		}

		return c.JSON(fiber.Map{
			"location":  loc,
			"from":      req.From,
			"to":        req.To,
			"forecasts": forecasts,
		})
	})

	v1.Get("/eto/history", func(c *fiber.Ctx) error {
		if history == nil {
			return fiber.NewError(fiber.StatusNotFound, "evapotranspiration history is not enabled")
		}

		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		loc := req.Location.toLocation()
		records, err := history.History(c.UserContext(), loc, req.From, req.To)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read evapotranspiration history")
		}
		if len(records) == 0 {
			return fiber.NewError(fiber.StatusNotFound, "no evapotranspiration history for requested range")
		}

		return c.JSON(fiber.Map{
			"location": loc,
			"from":     req.From,
			"to":       req.To,
			"days":     records,
		})
	})

	v1.Post("/eto", func(c *fiber.Ctx) error {
		var req etoRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		in, sys := req.toInput(service.Site())
		mm, err := eto.Evapotranspiration(in)
		if err != nil {
			return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
		}

		return c.JSON(fiber.Map{
			"etoMm": mm,
			"eto":   weather.RenderETo(mm, sys),
		})
	})
}

func storeError(err error, notFound string) error {
	if errors.Is(err, store.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, notFound)
	}
	return fiber.NewError(fiber.StatusInternalServerError, "failed to read stored forecasts")
}

// locationQuery holds query parameters for identifying a location.
type locationQuery struct {
	City    string `validate:"required"`
	Country string `validate:"required"`
}

func (l locationQuery) toLocation() weather.Location {
	return weather.Location{
		City:    l.City,
		Country: l.Country,
	}
}

func parseLocationQuery(c *fiber.Ctx) (locationQuery, error) {
	var q locationQuery

	q.City = c.Query("city")
	q.Country = c.Query("country")

	if err := validate.Struct(q); err != nil {
		return q, err
	}

	return q, nil
}

// forecastQuery holds query parameters for the forecast endpoint.
type forecastQuery struct {
	Location locationQuery
	Days     int `validate:"required,min=1,max=7"`
}

func (f *forecastQuery) bind(c *fiber.Ctx) error {
	loc, err := parseLocationQuery(c)
	if err != nil {
		return err
	}
	f.Location = loc

	raw := c.Query("days")
	if raw == "" {
		return errors.New("days query parameter is required")
	}
	days, err := strconv.Atoi(raw)
	if err != nil {
		return errors.New("days must be an integer")
	}
	f.Days = days
	return nil
}

// historyQuery holds query parameters for the history endpoints.
type historyQuery struct {
	Location locationQuery
	From     time.Time `validate:"required"`
	To       time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	loc, err := parseLocationQuery(c)
	if err != nil {
		return err
	}
	h.Location = loc

	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	return nil
}

// etoRequest is the body of an ad-hoc evapotranspiration computation.
// Temperatures and wind speed are in Units; omitted site fields fall back to
// the configured site.
type etoRequest struct {
	TempMax          float64  `json:"tempMax" validate:"gtefield=TempMin"`
	TempMin          float64  `json:"tempMin"`
	HumidityMax      float64  `json:"humidityMax" validate:"gte=0,lte=100"`
	HumidityMin      float64  `json:"humidityMin" validate:"gte=0,lte=100,ltefield=HumidityMax"`
	WindSpeed        float64  `json:"windSpeed" validate:"gte=0"`
	Latitude         float64  `json:"latitude" validate:"gte=-90,lte=90"`
	DayOfYear        int      `json:"dayOfYear" validate:"required,gte=1,lte=366"`
	Elevation        *float64 `json:"elevation" validate:"omitempty,gte=-500,lte=9000"`
	PlantCoefficient *float64 `json:"plantCoefficient" validate:"omitempty,gte=0,lte=1"`
	Units            string   `json:"units" validate:"omitempty,oneof=metric imperial"`
}

func (r etoRequest) toInput(site weather.SiteParameters) (eto.Input, units.System) {
	sys := site.Units
	if r.Units != "" {
		sys = units.System(r.Units)
	}

	in := eto.Input{
		TempMaxC:         r.TempMax,
		TempMinC:         r.TempMin,
		WindSpeedMs:      r.WindSpeed,
		ElevationM:       site.Elevation,
		HumidityMaxPct:   r.HumidityMax,
		HumidityMinPct:   r.HumidityMin,
		LatitudeDeg:      r.Latitude,
		PlantCoefficient: site.PlantCoefficient,
		DayOfYear:        r.DayOfYear,
	}
	if sys == units.Imperial {
		in.TempMaxC = units.FahrenheitToCelsius(r.TempMax)
		in.TempMinC = units.FahrenheitToCelsius(r.TempMin)
		in.WindSpeedMs = units.MphToMs(r.WindSpeed)
	}
	if r.Elevation != nil {
		in.ElevationM = *r.Elevation
	}
	if r.PlantCoefficient != nil {
		in.PlantCoefficient = *r.PlantCoefficient
	}
	return in, sys
}

// parseTime tries to parse either RFC3339, a date or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if ts, err := time.Parse(time.DateOnly, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339, YYYY-MM-DD or unix seconds")
}
