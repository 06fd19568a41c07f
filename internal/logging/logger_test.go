package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-eto-aggregation/internal/config"
	"github.com/i474232898/weather-eto-aggregation/internal/units"
)

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, &config.AppConfig{LogFormat: "json", LogLevel: slog.LevelInfo, Units: units.Metric}, "weather-eto")

	logger.Debug("hidden")
	logger.Info("forecast refreshed", "days", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "forecast refreshed", entry["msg"])
	assert.Equal(t, "weather-eto", entry["app"])
	assert.Equal(t, "metric", entry["units"])
	assert.EqualValues(t, 3, entry["days"])
}

func TestNewWithWriter_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, &config.AppConfig{LogFormat: "text", LogLevel: slog.LevelDebug}, "weather-eto")

	logger.Debug("feed failed", "provider", "owm")
	assert.Contains(t, buf.String(), "feed failed")
	assert.Contains(t, buf.String(), "owm")
}
