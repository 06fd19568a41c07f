// Package units holds the unit systems the feeds report in and the conversions
// between them. Conversions are exact and never round; rounding for display
// belongs to the renderer.
package units

import (
	"fmt"
	"strings"

	gounits "github.com/bcicen/go-units"
)

// System is the unit system a feed reports in and a sink displays in.
type System string

const (
	Metric   System = "metric"
	Imperial System = "imperial"
)

const (
	mphToMs   = 0.44704
	mmPerInch = 25.4
)

// ParseSystem accepts "metric" or "imperial", case-insensitive.
func ParseSystem(s string) (System, error) {
	switch System(strings.ToLower(strings.TrimSpace(s))) {
	case Metric:
		return Metric, nil
	case Imperial:
		return Imperial, nil
	default:
		return "", fmt.Errorf("unknown unit system %q", s)
	}
}

// Valid reports whether s is one of the known systems.
func (s System) Valid() bool {
	return s == Metric || s == Imperial
}

func FahrenheitToCelsius(f float64) float64 {
	return (f - 32) * 5 / 9
}

func CelsiusToFahrenheit(c float64) float64 {
	return c*9/5 + 32
}

func MphToMs(mph float64) float64 {
	return mph * mphToMs
}

func MsToMph(ms float64) float64 {
	return ms / mphToMs
}

func MmToInch(mm float64) float64 {
	return mm / mmPerInch
}

func InchToMm(in float64) float64 {
	return in * mmPerInch
}

// Visibility converts a distance in metres to kilometres (metric) or miles
// (imperial).
func Visibility(meters float64, sys System) (float64, error) {
	target := gounits.KiloMeter
	if sys == Imperial {
		target = gounits.Mile
	}
	v, err := gounits.NewValue(meters, gounits.Meter).Convert(target)
	if err != nil {
		return 0, fmt.Errorf("convert visibility: %w", err)
	}
	return v.Float(), nil
}
