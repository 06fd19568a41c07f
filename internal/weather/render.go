package weather

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/i474232898/weather-eto-aggregation/internal/units"
)

// Field names a rendered value.
type Field string

const (
	FieldDayOfWeek   Field = "day_of_week"
	FieldTemperature Field = "temperature"
	FieldTempMax     Field = "temp_max"
	FieldTempMin     Field = "temp_min"
	FieldHumidity    Field = "humidity"
	FieldPressure    Field = "pressure"
	FieldCondition   Field = "condition"
	FieldClouds      Field = "clouds"
	FieldWindSpeed   Field = "wind_speed"
	FieldWindDir     Field = "wind_dir"
	FieldVisibility  Field = "visibility"
	FieldRain        Field = "rain"
	FieldSnow        Field = "snow"
	FieldUVIndex     Field = "uv_index"
	FieldETo         Field = "eto"
)

// ReportStatus tells whether a day slot carries values.
type ReportStatus string

const (
	StatusOK     ReportStatus = "ok"
	StatusNoData ReportStatus = "no_data"
)

type display struct {
	unit      string
	precision int32
}

var displayTable = map[units.System]map[Field]display{
	units.Metric: {
		FieldDayOfWeek:   {"", 0},
		FieldTemperature: {"°C", 1},
		FieldTempMax:     {"°C", 1},
		FieldTempMin:     {"°C", 1},
		FieldHumidity:    {"%", 0},
		FieldPressure:    {"hPa", 0},
		FieldCondition:   {"", 0},
		FieldClouds:      {"%", 0},
		FieldWindSpeed:   {"m/s", 1},
		FieldWindDir:     {"°", 0},
		FieldVisibility:  {"km", 1},
		FieldRain:        {"mm", 2},
		FieldSnow:        {"mm", 2},
		FieldUVIndex:     {"", 1},
		FieldETo:         {"mm/day", 2},
	},
	units.Imperial: {
		FieldDayOfWeek:   {"", 0},
		FieldTemperature: {"°F", 1},
		FieldTempMax:     {"°F", 1},
		FieldTempMin:     {"°F", 1},
		FieldHumidity:    {"%", 0},
		FieldPressure:    {"hPa", 0},
		FieldCondition:   {"", 0},
		FieldClouds:      {"%", 0},
		FieldWindSpeed:   {"mph", 1},
		FieldWindDir:     {"°", 0},
		FieldVisibility:  {"mi", 1},
		FieldRain:        {"in", 2},
		FieldSnow:        {"in", 2},
		FieldUVIndex:     {"", 1},
		FieldETo:         {"in/day", 3},
	},
}

// Value is one rounded field with its display unit.
type Value struct {
	Field Field   `json:"field"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
}

// DayReport is the rendered outcome of one forecast day slot.
type DayReport struct {
	Day       int          `json:"day"`
	Date      string       `json:"date,omitempty"`
	Status    ReportStatus `json:"status"`
	Reason    string       `json:"reason,omitempty"`
	Units     units.System `json:"units"`
	Condition Condition    `json:"condition,omitempty"`
	// EToMm is the unrounded evapotranspiration in mm/day, kept for history.
	EToMm  *float64 `json:"etoMm,omitempty"`
	Values []Value  `json:"values,omitempty"`
}

// Value looks up a rendered field.
func (r DayReport) Value(f Field) (float64, bool) {
	for _, v := range r.Values {
		if v.Field == f {
			return v.Value, true
		}
	}
	return 0, false
}

// ConditionsReport is the rendered current conditions.
type ConditionsReport struct {
	Time      time.Time    `json:"time"`
	Units     units.System `json:"units"`
	Condition Condition    `json:"condition"`
	Values    []Value      `json:"values"`
}

// Value looks up a rendered field.
func (r ConditionsReport) Value(f Field) (float64, bool) {
	for _, v := range r.Values {
		if v.Field == f {
			return v.Value, true
		}
	}
	return 0, false
}

type renderer struct {
	table  map[Field]display
	values []Value
}

func newRenderer(sys units.System) *renderer {
	table, ok := displayTable[sys]
	if !ok {
		table = displayTable[units.Metric]
	}
	return &renderer{table: table}
}

func (r *renderer) add(f Field, v float64) {
	d := r.table[f]
	r.values = append(r.values, Value{Field: f, Value: round(v, d.precision), Unit: d.unit})
}

func (r *renderer) addOptional(f Field, v *float64) {
	if v != nil {
		r.add(f, *v)
	}
}

func round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

func precipForDisplay(mm float64, sys units.System) float64 {
	if sys == units.Imperial {
		return units.MmToInch(mm)
	}
	return mm
}

// RenderDay turns a complete aggregate and its evapotranspiration into a day
// report. etoMm is millimetres per day regardless of sys.
func RenderDay(agg DailyAggregate, etoMm float64, sys units.System) DayReport {
	r := newRenderer(sys)

	r.add(FieldDayOfWeek, float64(agg.Start.Weekday()))
	r.add(FieldTempMax, agg.TempMax)
	r.add(FieldTempMin, agg.TempMin)
	r.add(FieldHumidity, (agg.HumidityMin+agg.HumidityMax)/2)
	r.add(FieldPressure, agg.PressureAvg)
	r.add(FieldCondition, float64(agg.Condition))
	r.add(FieldClouds, agg.CloudAvg)
	r.add(FieldWindSpeed, agg.WindSpeedAvg)
	r.add(FieldRain, precipForDisplay(agg.RainTotal, sys))
	r.add(FieldSnow, precipForDisplay(agg.SnowTotal, sys))
	r.add(FieldUVIndex, agg.UVIndex)

	r.values = append(r.values, RenderETo(etoMm, sys))

	return DayReport{
		Day:       agg.Day,
		Date:      formatDate(agg.Start),
		Status:    StatusOK,
		Units:     sys,
		Condition: ConditionFromCode(agg.Condition),
		EToMm:     &etoMm,
		Values:    r.values,
	}
}

// RenderETo rounds an evapotranspiration in mm/day for display in sys.
func RenderETo(mm float64, sys units.System) Value {
	r := newRenderer(sys)
	if sys == units.Imperial {
		mm = units.MmToInch(mm)
	}
	r.add(FieldETo, mm)
	return r.values[0]
}

// NoDataReport marks a day slot that could not be rendered.
func NoDataReport(day int, start time.Time, sys units.System, reason error) DayReport {
	rep := DayReport{
		Day:    day,
		Date:   formatDate(start),
		Status: StatusNoData,
		Units:  sys,
	}
	if reason != nil {
		rep.Reason = reason.Error()
	}
	return rep
}

// RenderConditions renders the fields present in c.
func RenderConditions(c Conditions, sys units.System) (ConditionsReport, error) {
	r := newRenderer(sys)

	r.addOptional(FieldTemperature, c.Temperature)
	r.addOptional(FieldHumidity, c.Humidity)
	r.addOptional(FieldPressure, c.Pressure)
	r.addOptional(FieldTempMax, c.TempMax)
	r.addOptional(FieldTempMin, c.TempMin)
	r.addOptional(FieldWindSpeed, c.WindSpeed)
	r.addOptional(FieldWindDir, c.WindDir)
	if c.Visibility != nil {
		vis, err := units.Visibility(*c.Visibility, sys)
		if err != nil {
			return ConditionsReport{}, err
		}
		r.add(FieldVisibility, vis)
	}
	r.add(FieldRain, precipForDisplay(c.Rain.Amount(), sys))
	r.add(FieldSnow, precipForDisplay(c.Snow.Amount(), sys))
	r.addOptional(FieldClouds, c.Clouds)

	cond := ConditionUnknown
	if c.Condition != nil {
		r.add(FieldCondition, float64(*c.Condition))
		cond = ConditionFromCode(*c.Condition)
	}
	r.addOptional(FieldUVIndex, c.UVIndex)

	return ConditionsReport{
		Time:      c.Time.UTC(),
		Units:     sys,
		Condition: cond,
		Values:    r.values,
	}, nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}
