package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	httpapi "github.com/i474232898/weather-eto-aggregation/internal/api/http"
	"github.com/i474232898/weather-eto-aggregation/internal/config"
	"github.com/i474232898/weather-eto-aggregation/internal/logging"
	"github.com/i474232898/weather-eto-aggregation/internal/observability"
	"github.com/i474232898/weather-eto-aggregation/internal/scheduler"
	"github.com/i474232898/weather-eto-aggregation/internal/store"
	"github.com/i474232898/weather-eto-aggregation/internal/weather"
	"github.com/i474232898/weather-eto-aggregation/internal/weather/providers"
	"github.com/i474232898/weather-eto-aggregation/internal/weather/sinks"
)

const appName = "weather-eto"

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal(slog.Default(), "failed to load config", err)
	}

	log := logging.New(cfg, appName)
	metrics := observability.NewMetrics()

	// Shared HTTP client for outbound provider calls.
	httpCfg := providers.DefaultHTTPConfig(&http.Client{Timeout: cfg.HTTPTimeout})

	// Providers with resilience (backoff + circuit breaker), tried in configured order.
	var geo providers.Geocoder
	if cfg.GeocoderAPIKey != "" {
		geo = providers.NewGoogleGeocoder(cfg.GeocoderAPIKey)
	}
	var feeds []weather.Feed
	for _, name := range cfg.Providers {
		switch name {
		case "openweathermap":
			feeds = append(feeds, providers.NewOpenWeatherProvider(httpCfg, cfg.OpenWeatherAPIKey, log))
		case "openmeteo":
			feeds = append(feeds, providers.NewOpenMeteoProvider(httpCfg, geo))
		case "weatherapi":
			feeds = append(feeds, providers.NewWeatherAPIProvider(httpCfg, cfg.WeatherAPIKey))
		}
	}

	// Optional sinks.
	var sink weather.MultiSink
	var history httpapi.HistoryReader
	if cfg.SQLitePath != "" {
		db, err := store.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			logging.Fatal(log, "failed to open sqlite", err)
		}
		defer closeDB(log, db)

		h, err := store.NewSQLiteHistory(context.Background(), db, clockwork.NewRealClock())
		if err != nil {
			logging.Fatal(log, "failed to prepare eto history", err)
		}
		sink = append(sink, h)
		history = h
	}
	if cfg.MQTTBroker != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		m, err := sinks.NewMQTT(ctx, sinks.MQTTConfig{
			Broker:      cfg.MQTTBroker,
			ClientID:    cfg.MQTTClientID,
			TopicPrefix: cfg.MQTTTopicPrefix,
		}, log)
		cancel()
		if err != nil {
			logging.Fatal(log, "failed to connect mqtt", err)
		}
		defer m.Close()
		sink = append(sink, m)
	}
	if len(cfg.KafkaBrokers) > 0 {
		k := sinks.NewKafka(sinks.KafkaConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic}, log)
		defer func() {
			if err := k.Close(); err != nil {
				log.Error("close kafka writer", "error", err)
			}
		}()
		sink = append(sink, k)
	}

	// In-memory store with configured retention.
	memStore := store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge)

	// Core service orchestrating feeds, the model, the store and sinks.
	opts := []weather.Option{
		weather.WithLogger(log),
		weather.WithMetrics(metrics),
	}
	if len(sink) > 0 {
		opts = append(opts, weather.WithSink(sink))
	}
	if cfg.Timezone != nil {
		opts = append(opts, weather.WithZone(cfg.Timezone))
	}
	service := weather.NewService(memStore, feeds, cfg.Site(), opts...)

	// Scheduler that periodically refreshes every location.
	sched := scheduler.New(cfg.Locations, cfg.FetchInterval, service, log)
	if err := sched.Start(); err != nil {
		logging.Fatal(log, "failed to start scheduler", err)
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               appName,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	httpapi.RegisterOps(app, appName, prometheus.DefaultGatherer)
	httpapi.RegisterRoutes(app, service, history)

	go func() {
		log.Info("http server listening", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error("fiber server stopped", "error", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error("error during shutdown", "error", err)
	}
}

func closeDB(log *slog.Logger, db *sql.DB) {
	if err := db.Close(); err != nil {
		log.Error("close sqlite", "error", err)
	}
}
