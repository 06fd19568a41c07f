package weather

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-eto-aggregation/internal/units"
)

func renderedDay() DailyAggregate {
	return DailyAggregate{
		Day:          1,
		SampleCount:  8,
		TempMin:      17.96,
		TempMax:      30.04,
		HumidityMin:  40,
		HumidityMax:  80,
		PressureAvg:  1012.6,
		WindSpeedAvg: 2.04,
		CloudAvg:     37.5,
		RainTotal:    4,
		Condition:    501,
		UVIndex:      8.25,
		Start:        midsummer,
	}
}

func TestRenderDay_Metric(t *testing.T) {
	rep := RenderDay(renderedDay(), 5.55259, units.Metric)

	assert.Equal(t, StatusOK, rep.Status)
	assert.Equal(t, "2024-06-20", rep.Date)
	assert.Equal(t, ConditionRain, rep.Condition)
	require.NotNil(t, rep.EToMm)
	assert.Equal(t, 5.55259, *rep.EToMm)

	want := map[Field]Value{
		FieldDayOfWeek: {FieldDayOfWeek, 4, ""},
		FieldTempMax:   {FieldTempMax, 30.0, "°C"},
		FieldTempMin:   {FieldTempMin, 18.0, "°C"},
		FieldHumidity:  {FieldHumidity, 60, "%"},
		FieldPressure:  {FieldPressure, 1013, "hPa"},
		FieldWindSpeed: {FieldWindSpeed, 2.0, "m/s"},
		FieldRain:      {FieldRain, 4, "mm"},
		FieldUVIndex:   {FieldUVIndex, 8.3, ""},
		FieldETo:       {FieldETo, 5.55, "mm/day"},
	}
	for f, v := range want {
		got, ok := find(rep.Values, f)
		require.True(t, ok, "missing %s", f)
		assert.Equal(t, v, got, "field %s", f)
	}
}

func TestRenderDay_Imperial(t *testing.T) {
	rep := RenderDay(renderedDay(), 5.55259, units.Imperial)

	eto, ok := find(rep.Values, FieldETo)
	require.True(t, ok)
	assert.Equal(t, Value{FieldETo, 0.219, "in/day"}, eto)

	rain, ok := find(rep.Values, FieldRain)
	require.True(t, ok)
	assert.Equal(t, Value{FieldRain, 0.16, "in"}, rain)

	require.NotNil(t, rep.EToMm)
	assert.Equal(t, 5.55259, *rep.EToMm, "raw value stays in mm")
}

func TestNoDataReport(t *testing.T) {
	rep := NoDataReport(2, time.Time{}, units.Metric, errors.New("incomplete day: 5 of 8 samples"))

	assert.Equal(t, StatusNoData, rep.Status)
	assert.Equal(t, 2, rep.Day)
	assert.Empty(t, rep.Date)
	assert.Empty(t, rep.Values)
	assert.Nil(t, rep.EToMm)
	assert.Equal(t, "incomplete day: 5 of 8 samples", rep.Reason)
}

func TestRenderConditions(t *testing.T) {
	c := Conditions{
		Time:        midsummer.Add(12 * time.Hour),
		Temperature: f64(71.26),
		Humidity:    f64(48),
		Visibility:  f64(10000),
		Rain:        &Precipitation{OneHour: f64(2.54)},
		Condition:   intp(803),
	}

	rep, err := RenderConditions(c, units.Imperial)
	require.NoError(t, err)
	assert.Equal(t, ConditionCloudy, rep.Condition)

	temp, ok := rep.Value(FieldTemperature)
	require.True(t, ok)
	assert.Equal(t, 71.3, temp)

	vis, ok := rep.Value(FieldVisibility)
	require.True(t, ok)
	assert.Equal(t, 6.2, vis)

	rain, ok := rep.Value(FieldRain)
	require.True(t, ok)
	assert.Equal(t, 0.1, rain)

	_, ok = rep.Value(FieldWindSpeed)
	assert.False(t, ok, "absent fields are not rendered")
}

func TestConditionFromCode(t *testing.T) {
	assert.Equal(t, ConditionStorm, ConditionFromCode(211))
	assert.Equal(t, ConditionRain, ConditionFromCode(301))
	assert.Equal(t, ConditionSnow, ConditionFromCode(601))
	assert.Equal(t, ConditionMist, ConditionFromCode(741))
	assert.Equal(t, ConditionClear, ConditionFromCode(800))
	assert.Equal(t, ConditionCloudy, ConditionFromCode(804))
	assert.Equal(t, ConditionUnknown, ConditionFromCode(0))
}

func find(values []Value, f Field) (Value, bool) {
	for _, v := range values {
		if v.Field == f {
			return v, true
		}
	}
	return Value{}, false
}
