package weather

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-eto-aggregation/internal/eto"
	"github.com/i474232898/weather-eto-aggregation/internal/observability"
	"github.com/i474232898/weather-eto-aggregation/internal/units"
)

type fakeFeed struct {
	name       string
	result     FeedResult
	err        error
	conditions *Conditions
	calls      int
}

func (f *fakeFeed) Name() string { return f.name }

func (f *fakeFeed) FetchForecast(context.Context, Location, units.System) (FeedResult, error) {
	f.calls++
	return f.result, f.err
}

type conditionsFeed struct {
	*fakeFeed
}

func (f conditionsFeed) FetchConditions(context.Context, Location, units.System) (Conditions, error) {
	if f.conditions == nil {
		return Conditions{}, errors.New("no conditions")
	}
	return *f.conditions, nil
}

type fakeStore struct {
	mu    sync.Mutex
	saved []Forecast
}

func (s *fakeStore) SaveForecast(_ Location, f Forecast) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, f)
}

func (s *fakeStore) GetLatest(Location) (Forecast, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.saved) == 0 {
		return Forecast{}, errors.New("not found")
	}
	return s.saved[len(s.saved)-1], nil
}

func (s *fakeStore) GetRange(Location, time.Time, time.Time) ([]Forecast, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Forecast(nil), s.saved...), nil
}

type recordingSink struct {
	reports []DayReport
	err     error
}

func (s *recordingSink) Publish(_ context.Context, _ Location, r DayReport) error {
	s.reports = append(s.reports, r)
	return s.err
}

var paris = Location{City: "Paris", Country: "FR"}

// summerForecast is a trailing Wednesday sample, a full Thursday and nothing
// after it: 30/18 °C, 80/40 % humidity, 2 m/s wind.
func summerForecast(sys units.System) FeedResult {
	temps := []float64{18, 20, 24, 28, 30, 27, 23, 20}
	hum := []float64{80, 75, 60, 45, 40, 50, 65, 75}
	wind := 2.0
	if sys == units.Imperial {
		for i := range temps {
			temps[i] = units.CelsiusToFahrenheit(temps[i])
		}
		wind = units.MsToMph(wind)
	}

	samples := series(midsummer.Add(-3*time.Hour), 9)
	for i := 1; i < len(samples); i++ {
		samples[i].Temperature = f64(temps[i-1])
		samples[i].Humidity = f64(hum[i-1])
		samples[i].WindSpeed = f64(wind)
	}
	return FeedResult{
		Samples:   samples,
		UV:        []UvSample{{Index: 6}, {Index: 9}},
		Interval:  3 * time.Hour,
		Latitude:  40,
		Longitude: 2.35,
		Zone:      time.UTC,
	}
}

func summerSite(sys units.System) SiteParameters {
	return SiteParameters{
		Elevation:        100,
		PlantCoefficient: eto.DefaultPlantCoefficient,
		Units:            sys,
		ForecastDays:     3,
	}
}

func TestService_Refresh(t *testing.T) {
	clock := clockwork.NewFakeClockAt(midsummer.Add(-5 * time.Hour))
	feed := &fakeFeed{name: "owm", result: summerForecast(units.Metric)}
	store := &fakeStore{}
	sink := &recordingSink{}

	svc := NewService(store, []Feed{feed}, summerSite(units.Metric),
		WithSink(sink),
		WithClock(clock),
		WithMetrics(observability.NewMetricsForTesting()),
	)

	got, err := svc.Refresh(context.Background(), paris)
	require.NoError(t, err)

	assert.NotEmpty(t, got.RunID)
	assert.Equal(t, "owm", got.Provider)
	assert.Equal(t, clock.Now().UTC(), got.GeneratedAt)
	assert.Equal(t, 40.0, got.Latitude)
	require.Len(t, got.Days, 3)

	assert.Equal(t, StatusNoData, got.Days[0].Status, "one Wednesday sample is not a day")
	assert.Contains(t, got.Days[0].Reason, "1 of 8")

	day := got.Days[1]
	require.Equal(t, StatusOK, day.Status)
	require.NotNil(t, day.EToMm)
	assert.InDelta(t, 5.55259, *day.EToMm, 1e-4)
	v, ok := day.Value(FieldETo)
	require.True(t, ok)
	assert.Equal(t, 5.55, v)
	uv, _ := day.Value(FieldUVIndex)
	assert.Equal(t, 9.0, uv)

	assert.Equal(t, StatusNoData, got.Days[2].Status)
	assert.Equal(t, ErrNoSamples.Error(), got.Days[2].Reason)

	require.Len(t, store.saved, 1)
	assert.Equal(t, got.RunID, store.saved[0].RunID)
	assert.Len(t, sink.reports, 3)
}

func TestService_RefreshImperialMatchesMetric(t *testing.T) {
	feed := &fakeFeed{name: "owm", result: summerForecast(units.Imperial)}
	svc := NewService(&fakeStore{}, []Feed{feed}, summerSite(units.Imperial))

	got, err := svc.Refresh(context.Background(), paris)
	require.NoError(t, err)

	day := got.Days[1]
	require.Equal(t, StatusOK, day.Status)
	assert.InDelta(t, 5.55259, *day.EToMm, 1e-4)
	v, ok := day.Value(FieldETo)
	require.True(t, ok)
	assert.Equal(t, 0.219, v)
	tmax, _ := day.Value(FieldTempMax)
	assert.Equal(t, 86.0, tmax)
}

func TestService_RefreshFallsThroughFeeds(t *testing.T) {
	broken := &fakeFeed{name: "owm", err: errors.New("503")}
	backup := &fakeFeed{name: "openmeteo", result: summerForecast(units.Metric)}
	svc := NewService(&fakeStore{}, []Feed{broken, backup}, summerSite(units.Metric))

	got, err := svc.Refresh(context.Background(), paris)
	require.NoError(t, err)
	assert.Equal(t, "openmeteo", got.Provider)
	assert.Equal(t, 1, broken.calls)
}

func TestService_RefreshAllFeedsFail(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, []Feed{
		&fakeFeed{name: "a", err: errors.New("boom")},
		&fakeFeed{name: "b", err: errors.New("bang")},
	}, summerSite(units.Metric))

	_, err := svc.Refresh(context.Background(), paris)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Contains(t, err.Error(), "bang")
	assert.Empty(t, store.saved)

	_, err = NewService(store, nil, summerSite(units.Metric)).Refresh(context.Background(), paris)
	assert.ErrorIs(t, err, ErrNoFeeds)
}

func TestService_RefreshInvalidLatitudeStoresNothing(t *testing.T) {
	site := summerSite(units.Metric)
	site.Latitude = f64(95)
	store := &fakeStore{}
	svc := NewService(store, []Feed{&fakeFeed{name: "owm", result: summerForecast(units.Metric)}}, site)

	_, err := svc.Refresh(context.Background(), paris)
	assert.ErrorIs(t, err, eto.ErrLatitude)
	assert.Empty(t, store.saved)

	// a feed reporting nonsense coordinates fails in the engine instead
	res := summerForecast(units.Metric)
	res.Latitude = -120
	svc = NewService(store, []Feed{&fakeFeed{name: "owm", result: res}}, summerSite(units.Metric))
	_, err = svc.Refresh(context.Background(), paris)
	assert.ErrorIs(t, err, eto.ErrLatitude)
	assert.Empty(t, store.saved)
}

func TestService_RefreshBadReadingsOnlyCostTheirDay(t *testing.T) {
	res := summerForecast(units.Metric)
	friday := series(midsummer.Add(24*time.Hour), 8)
	friday[4].Humidity = f64(100.5)
	res.Samples = append(res.Samples, friday...)
	res.UV = append(res.UV, UvSample{Index: 8})

	store := &fakeStore{}
	sink := &recordingSink{}
	svc := NewService(store, []Feed{&fakeFeed{name: "owm", result: res}}, summerSite(units.Metric), WithSink(sink))

	got, err := svc.Refresh(context.Background(), paris)
	require.NoError(t, err)
	require.Len(t, got.Days, 3)

	assert.Equal(t, StatusOK, got.Days[1].Status)
	assert.InDelta(t, 5.55259, *got.Days[1].EToMm, 1e-4)

	bad := got.Days[2]
	assert.Equal(t, StatusNoData, bad.Status)
	assert.Equal(t, "2024-06-21", bad.Date)
	assert.Contains(t, bad.Reason, eto.ErrHumidity.Error())
	assert.Nil(t, bad.EToMm)

	require.Len(t, store.saved, 1)
	assert.Len(t, sink.reports, 3)
}

func TestService_RefreshSinkErrorsDoNotAbort(t *testing.T) {
	sink := &recordingSink{err: errors.New("broker down")}
	store := &fakeStore{}
	svc := NewService(store, []Feed{&fakeFeed{name: "owm", result: summerForecast(units.Metric)}},
		summerSite(units.Metric), WithSink(sink))

	_, err := svc.Refresh(context.Background(), paris)
	require.NoError(t, err)
	assert.Len(t, sink.reports, 3)
	assert.Len(t, store.saved, 1)
}

func TestService_RefreshZeroDays(t *testing.T) {
	site := summerSite(units.Metric)
	site.ForecastDays = 0
	sink := &recordingSink{}
	svc := NewService(&fakeStore{}, []Feed{&fakeFeed{name: "owm", result: summerForecast(units.Metric)}}, site, WithSink(sink))

	got, err := svc.Refresh(context.Background(), paris)
	require.NoError(t, err)
	assert.Empty(t, got.Days)
	assert.Empty(t, sink.reports)
}

func TestService_RefreshConditions(t *testing.T) {
	feed := conditionsFeed{&fakeFeed{
		name:   "owm",
		result: summerForecast(units.Metric),
		conditions: &Conditions{
			Time:        midsummer,
			Temperature: f64(22.5),
			Condition:   intp(800),
		},
	}}
	svc := NewService(&fakeStore{}, []Feed{feed}, summerSite(units.Metric))

	got, err := svc.Refresh(context.Background(), paris)
	require.NoError(t, err)
	require.NotNil(t, got.Conditions)
	assert.Equal(t, ConditionClear, got.Conditions.Condition)

	feed.conditions = nil
	got, err = svc.Refresh(context.Background(), paris)
	require.NoError(t, err, "conditions are optional")
	assert.Nil(t, got.Conditions)
}

func TestService_LatestAndRange(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, []Feed{&fakeFeed{name: "owm", result: summerForecast(units.Metric)}}, summerSite(units.Metric))

	_, err := svc.Latest(paris)
	require.Error(t, err)

	first, err := svc.Refresh(context.Background(), paris)
	require.NoError(t, err)
	second, err := svc.Refresh(context.Background(), paris)
	require.NoError(t, err)

	latest, err := svc.Latest(paris)
	require.NoError(t, err)
	assert.Equal(t, second.RunID, latest.RunID)
	assert.NotEqual(t, first.RunID, second.RunID)

	all, err := svc.Range(paris, time.Time{}, time.Now())
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestMultiSink(t *testing.T) {
	ok := &recordingSink{}
	failing := &recordingSink{err: errors.New("mqtt: not connected")}
	var calls int
	fn := SinkFunc(func(context.Context, Location, DayReport) error {
		calls++
		return errors.New("kafka: timeout")
	})

	err := MultiSink{ok, failing, fn}.Publish(context.Background(), paris, DayReport{Day: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mqtt: not connected")
	assert.Contains(t, err.Error(), "kafka: timeout")
	assert.Len(t, ok.reports, 1)
	assert.Equal(t, 1, calls)

	assert.NoError(t, MultiSink{ok}.Publish(context.Background(), paris, DayReport{}))
}
