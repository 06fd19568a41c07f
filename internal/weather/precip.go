package weather

// PrecipKind selects rain or snow from a sample.
type PrecipKind int

const (
	Rain PrecipKind = iota
	Snow
)

func (k PrecipKind) String() string {
	if k == Snow {
		return "snow"
	}
	return "rain"
}

// Amount returns the millimetres attributable to one sample: the 3-hour
// figure when present, else the 1-hour figure, else zero. The 1-hour figure is
// taken as is; it is not scaled up to the sample interval.
func (p *Precipitation) Amount() float64 {
	switch {
	case p == nil:
		return 0
	case p.ThreeHour != nil:
		return *p.ThreeHour
	case p.OneHour != nil:
		return *p.OneHour
	default:
		return 0
	}
}

// PrecipitationAmount returns the sample's rain or snow in millimetres.
func PrecipitationAmount(s IntervalSample, kind PrecipKind) float64 {
	if kind == Snow {
		return s.Snow.Amount()
	}
	return s.Rain.Amount()
}
