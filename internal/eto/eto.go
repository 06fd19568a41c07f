// Package eto estimates daily reference evapotranspiration with the FAO-56
// Penman-Monteith equation. Solar radiation is not measured by the feeds, so
// it is derived from the daily temperature range and the extraterrestrial
// radiation for the site's latitude and day of year.
//
// All inputs are metric: degrees Celsius, metres per second, metres. Results
// are millimetres per day.
package eto

import (
	"errors"
	"fmt"
	"math"
)

const (
	// SolarConstant in MJ m-2 min-1.
	SolarConstant = 0.0820
	// StefanBoltzmann in MJ K-4 m-2 day-1.
	StefanBoltzmann = 4.903e-9
	// DefaultPlantCoefficient is the reflection coefficient of the hypothetical
	// grass reference crop.
	DefaultPlantCoefficient = 0.23

	// radiationAdjustment is the Hargreaves kRs for interior locations.
	radiationAdjustment = 0.16
	kelvinOffset        = 273.15
)

var (
	ErrLatitude         = errors.New("latitude out of range")
	ErrDayOfYear        = errors.New("day of year out of range")
	ErrHumidity         = errors.New("relative humidity out of range")
	ErrTemperatureRange = errors.New("minimum temperature above maximum")
)

// Input is one day of aggregated weather plus the site parameters.
type Input struct {
	TempMaxC         float64
	TempMinC         float64
	WindSpeedMs      float64
	ElevationM       float64
	HumidityMaxPct   float64
	HumidityMinPct   float64
	LatitudeDeg      float64
	PlantCoefficient float64
	DayOfYear        int
}

// Validate checks the domain of the inputs the model cannot extrapolate over.
func (in Input) Validate() error {
	if in.LatitudeDeg < -90 || in.LatitudeDeg > 90 || math.IsNaN(in.LatitudeDeg) {
		return fmt.Errorf("%w: %v", ErrLatitude, in.LatitudeDeg)
	}
	if in.DayOfYear < 1 || in.DayOfYear > 366 {
		return fmt.Errorf("%w: %d", ErrDayOfYear, in.DayOfYear)
	}
	for _, rh := range []float64{in.HumidityMinPct, in.HumidityMaxPct} {
		if rh < 0 || rh > 100 || math.IsNaN(rh) {
			return fmt.Errorf("%w: %v", ErrHumidity, rh)
		}
	}
	if in.TempMinC > in.TempMaxC {
		return fmt.Errorf("%w: %v > %v", ErrTemperatureRange, in.TempMinC, in.TempMaxC)
	}
	return nil
}

// Evapotranspiration returns the reference evapotranspiration in mm/day.
// The result is not clamped; a negative value means the inputs describe a
// day with net radiative loss the model was not built for.
func Evapotranspiration(in Input) (float64, error) {
	if err := in.Validate(); err != nil {
		return 0, err
	}

	lat := in.LatitudeDeg * math.Pi / 180
	ra := ExtraterrestrialRadiation(lat, in.DayOfYear)
	rso := ClearSkyRadiation(in.ElevationM, ra)
	rs := math.Min(radiationAdjustment*math.Sqrt(in.TempMaxC-in.TempMinC)*ra, rso)

	svpMax := SaturationVaporPressure(in.TempMaxC)
	svpMin := SaturationVaporPressure(in.TempMinC)
	es := (svpMax + svpMin) / 2
	ea := ActualVaporPressure(svpMin, svpMax, in.HumidityMinPct, in.HumidityMaxPct)

	rns := (1 - in.PlantCoefficient) * rs
	rnl := NetLongwaveRadiation(in.TempMinC, in.TempMaxC, rs, rso, ea)
	rn := rns - rnl

	tmean := (in.TempMaxC + in.TempMinC) / 2
	delta := SaturationSlope(tmean)
	gamma := PsychrometricConstant(AtmosphericPressure(in.ElevationM))

	return penmanMonteith(rn, tmean+kelvinOffset, in.WindSpeedMs, es, ea, delta, gamma), nil
}

// penmanMonteith is FAO-56 eq. 6 with soil heat flux taken as zero for daily
// steps. t is the mean air temperature in kelvin.
func penmanMonteith(rn, t, ws, es, ea, delta, gamma float64) float64 {
	denom := delta + gamma*(1+0.34*ws)
	radiation := 0.408 * delta * rn / denom
	aerodynamic := gamma * (900 / t) * ws * (es - ea) / denom
	return radiation + aerodynamic
}

// SolarDeclination in radians for a day of year.
func SolarDeclination(doy int) float64 {
	return 0.409 * math.Sin(2*math.Pi/365*float64(doy)-1.39)
}

// InverseRelativeDistance is the inverse relative Earth-Sun distance.
func InverseRelativeDistance(doy int) float64 {
	return 1 + 0.033*math.Cos(2*math.Pi/365*float64(doy))
}

// SunsetHourAngle in radians. The argument of acos is clamped so polar day and
// night yield pi and 0.
func SunsetHourAngle(lat, declination float64) float64 {
	x := -math.Tan(lat) * math.Tan(declination)
	return math.Acos(math.Max(-1, math.Min(1, x)))
}

// ExtraterrestrialRadiation (Ra) in MJ m-2 day-1, latitude in radians.
func ExtraterrestrialRadiation(lat float64, doy int) float64 {
	dec := SolarDeclination(doy)
	ws := SunsetHourAngle(lat, dec)
	dr := InverseRelativeDistance(doy)
	return 24 * 60 / math.Pi * SolarConstant * dr *
		(ws*math.Sin(lat)*math.Sin(dec) + math.Cos(lat)*math.Cos(dec)*math.Sin(ws))
}

// ClearSkyRadiation (Rso) in MJ m-2 day-1.
func ClearSkyRadiation(elevation, ra float64) float64 {
	return (0.75 + 2e-5*elevation) * ra
}

// SaturationVaporPressure in kPa at temperature t (Celsius).
func SaturationVaporPressure(t float64) float64 {
	return 0.6108 * math.Exp(17.27*t/(t+237.3))
}

// SaturationSlope is the slope of the saturation vapour pressure curve in
// kPa per degree Celsius.
func SaturationSlope(t float64) float64 {
	return 4098 * SaturationVaporPressure(t) / math.Pow(t+237.3, 2)
}

// ActualVaporPressure from the daily humidity extremes (FAO-56 eq. 17).
func ActualVaporPressure(svpMin, svpMax, rhMin, rhMax float64) float64 {
	return (svpMin*rhMax/100 + svpMax*rhMin/100) / 2
}

// AtmosphericPressure in kPa at an elevation in metres.
func AtmosphericPressure(elevation float64) float64 {
	return 101.3 * math.Pow((293-0.0065*elevation)/293, 5.26)
}

// PsychrometricConstant in kPa per degree Celsius.
func PsychrometricConstant(pressure float64) float64 {
	return 0.000665 * pressure
}

// NetLongwaveRadiation (Rnl) in MJ m-2 day-1.
func NetLongwaveRadiation(tmin, tmax, rs, rso, ea float64) float64 {
	// FAO-56 allows 0.4-0.6 for Rs/Rso when the sun never rises.
	ratio := 0.5
	if rso > 0 {
		ratio = rs / rso
	}
	tk := (math.Pow(tmax+kelvinOffset, 4) + math.Pow(tmin+kelvinOffset, 4)) / 2
	return StefanBoltzmann * tk * (0.34 - 0.14*math.Sqrt(ea)) * (1.35*ratio - 0.35)
}
