package nmea

// Default quality thresholds.
const (
	DefaultMinSatellites = 4
	DefaultMaxHDOP       = 10.0
	DefaultMaxVDOP       = 10.0
)

// Quality is a minimum bar for a record's satellite geometry. Lower
// dilution is better. A negative threshold disables that check, and a
// metric the record does not carry never disqualifies it.
type Quality struct {
	MinSatellites int
	MaxHDOP       float64
	MaxVDOP       float64
}

func DefaultQuality() Quality {
	return Quality{
		MinSatellites: DefaultMinSatellites,
		MaxHDOP:       DefaultMaxHDOP,
		MaxVDOP:       DefaultMaxVDOP,
	}
}

// Accept reports whether r meets the bar.
func (q Quality) Accept(r Record) bool {
	if n, ok := r.SatelliteCount(); ok && q.MinSatellites >= 0 && n < q.MinSatellites {
		return false
	}
	if r.HDOP != nil && q.MaxHDOP >= 0 && *r.HDOP > q.MaxHDOP {
		return false
	}
	if r.VDOP != nil && q.MaxVDOP >= 0 && *r.VDOP > q.MaxVDOP {
		return false
	}
	return true
}
