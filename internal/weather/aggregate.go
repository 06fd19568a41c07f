package weather

import (
	"errors"
	"fmt"
	"time"
)

// DefaultInterval is the sample spacing of the reference forecast feed.
const DefaultInterval = 3 * time.Hour

var (
	// ErrHorizonExceeded is returned when the samples span a week or more.
	// Days are bucketed by weekday, so a longer window would merge two days.
	ErrHorizonExceeded = errors.New("sample horizon exceeds seven days")
	// ErrIncompleteDay marks a day holding fewer samples than a full day.
	ErrIncompleteDay = errors.New("incomplete day")
	// ErrNoSamples marks a requested day slot past the end of the forecast.
	ErrNoSamples = errors.New("no samples for day")
	// ErrMissingReadings marks a day whose samples lack temperature or humidity.
	ErrMissingReadings = errors.New("missing temperature or humidity readings")
)

// ExpectedSamples is the number of samples a complete day holds at the given
// interval. Zero or negative intervals fall back to DefaultInterval.
func ExpectedSamples(interval time.Duration) int {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return int(24 * time.Hour / interval)
}

// Complete reports whether the aggregate can be fed to the evapotranspiration
// model.
func (a DailyAggregate) Complete(expected int) error {
	if a.SampleCount != expected {
		return fmt.Errorf("%w: %d of %d samples", ErrIncompleteDay, a.SampleCount, expected)
	}
	if a.TempReadings == 0 || a.HumidityReadings == 0 {
		return ErrMissingReadings
	}
	return nil
}

// CompleteAt is Complete for the local day the aggregate started in. A day
// lengthened or shortened by a daylight saving change holds either the floor
// or the ceiling of its length over interval, depending on how the samples
// align, and both counts are accepted.
func (a DailyAggregate) CompleteAt(interval time.Duration) error {
	expected := ExpectedSamples(interval)
	if a.Start.IsZero() {
		return a.Complete(expected)
	}
	if interval <= 0 {
		interval = DefaultInterval
	}

	y, m, d := a.Start.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, a.Start.Location())
	length := midnight.AddDate(0, 0, 1).Sub(midnight)
	if length == 24*time.Hour {
		return a.Complete(expected)
	}

	lo := int(length / interval)
	hi := int((length + interval - 1) / interval)
	if a.SampleCount == hi {
		return a.Complete(hi)
	}
	return a.Complete(lo)
}

// AggregateDays folds an ordered sample series into one aggregate per local
// day. A new day starts whenever the weekday in zone changes. uv is indexed by
// day ordinal; days past its end get a UV index of zero.
//
// Samples without a timestamp join the day that is currently open.
func AggregateDays(samples []IntervalSample, uv []UvSample, zone *time.Location) ([]DailyAggregate, error) {
	if len(samples) == 0 {
		return nil, nil
	}
	if zone == nil {
		zone = time.UTC
	}
	if err := checkHorizon(samples); err != nil {
		return nil, err
	}

	var (
		days []DailyAggregate
		acc  dayAccumulator
	)

	for _, s := range samples {
		if !s.Time.IsZero() {
			local := s.Time.In(zone)
			if acc.keyed && local.Weekday() != acc.weekday {
				days = append(days, acc.finalize(len(days), uv))
				acc = dayAccumulator{}
			}
			if !acc.keyed {
				acc.key(local)
			}
		}
		acc.add(s)
	}

	days = append(days, acc.finalize(len(days), uv))
	return days, nil
}

func checkHorizon(samples []IntervalSample) error {
	var first, last time.Time
	for _, s := range samples {
		if s.Time.IsZero() {
			continue
		}
		if first.IsZero() {
			first = s.Time
		}
		last = s.Time
	}
	if span := last.Sub(first); span >= MaxForecastDays*24*time.Hour {
		return fmt.Errorf("%w: samples span %s", ErrHorizonExceeded, span)
	}
	return nil
}

// mean keeps a running sum together with the number of readings in it.
type mean struct {
	sum float64
	n   int
}

func (m *mean) add(v *float64) {
	if v == nil {
		return
	}
	m.sum += *v
	m.n++
}

func (m mean) value() float64 {
	if m.n == 0 {
		return 0
	}
	return m.sum / float64(m.n)
}

// extremes tracks the min and max of a field.
type extremes struct {
	min, max float64
	n        int
}

func (e *extremes) add(v *float64) {
	if v == nil {
		return
	}
	if e.n == 0 || *v < e.min {
		e.min = *v
	}
	if e.n == 0 || *v > e.max {
		e.max = *v
	}
	e.n++
}

type dayAccumulator struct {
	keyed   bool
	weekday time.Weekday
	first   time.Time

	count     int
	temp      extremes
	humidity  extremes
	pressure  mean
	windSpeed mean
	windDir   mean
	clouds    mean
	rain      float64
	snow      float64
	condition int
}

// key binds the day to the weekday of its first timestamped sample.
func (a *dayAccumulator) key(local time.Time) {
	a.keyed = true
	a.weekday = local.Weekday()
	a.first = local
}

func (a *dayAccumulator) add(s IntervalSample) {
	a.count++
	a.temp.add(s.Temperature)
	a.humidity.add(s.Humidity)
	a.pressure.add(s.Pressure)
	a.windSpeed.add(s.WindSpeed)
	a.windDir.add(s.WindDir)
	a.clouds.add(s.Clouds)
	a.rain += PrecipitationAmount(s, Rain)
	a.snow += PrecipitationAmount(s, Snow)
	if s.Condition != nil {
		a.condition = *s.Condition
	}
}

func (a dayAccumulator) finalize(day int, uv []UvSample) DailyAggregate {
	agg := DailyAggregate{
		Day:              day,
		SampleCount:      a.count,
		TempMin:          a.temp.min,
		TempMax:          a.temp.max,
		HumidityMin:      a.humidity.min,
		HumidityMax:      a.humidity.max,
		PressureAvg:      a.pressure.value(),
		WindSpeedAvg:     a.windSpeed.value(),
		WindDirAvg:       a.windDir.value(),
		CloudAvg:         a.clouds.value(),
		RainTotal:        a.rain,
		SnowTotal:        a.snow,
		Condition:        a.condition,
		Start:            a.first,
		TempReadings:     a.temp.n,
		HumidityReadings: a.humidity.n,
	}
	if day < len(uv) {
		agg.UVIndex = uv[day].Index
	}
	return agg
}
