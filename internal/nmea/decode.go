package nmea

import (
	"fmt"
	"strconv"
	"strings"
)

// Minimum field counts, including field 0 (talker+type).
const (
	minFieldsGGA = 15
	minFieldsGLL = 6
	minFieldsGSA = 18
	minFieldsGSV = 4
	minFieldsRMC = 12
	minFieldsVTG = 9
)

// decoded is the outcome of decoding one sentence. utc is set only for
// sentences that establish the cursor.
type decoded struct {
	utc    string
	fields Record
}

type decodeFunc func(f *fieldReader) decoded

type layout struct {
	min    int
	decode decodeFunc
}

var layouts = map[SentenceType]layout{
	TypeGGA: {minFieldsGGA, decodeGGA},
	TypeGLL: {minFieldsGLL, decodeGLL},
	TypeGSA: {minFieldsGSA, decodeGSA},
	TypeGSV: {minFieldsGSV, decodeGSV},
	TypeRMC: {minFieldsRMC, decodeRMC},
	TypeVTG: {minFieldsVTG, decodeVTG},
}

func decode(t SentenceType, fields []string) (decoded, error) {
	l, ok := layouts[t]
	if !ok {
		return decoded{}, fmt.Errorf("nmea: no decoder for %s", t)
	}
	if len(fields) < l.min {
		return decoded{}, fmt.Errorf("%w: %s has %d fields, need %d", ErrFieldCountMismatch, t, len(fields), l.min)
	}
	f := &fieldReader{t: t, f: fields}
	d := l.decode(f)
	if f.err != nil {
		return decoded{}, f.err
	}
	d.fields.Types.Add(t)
	return d, nil
}

// fieldReader reads positional fields and keeps the first decoding error.
// Indices below the layout minimum are always present; opt reads past it.
type fieldReader struct {
	t   SentenceType
	f   []string
	err error
}

func (r *fieldReader) fail(err error) {
	if r.err == nil {
		r.err = fmt.Errorf("%s: %w", r.t, err)
	}
}

func (r *fieldReader) str(i int) string {
	return strings.TrimSpace(r.f[i])
}

func (r *fieldReader) opt(i int) string {
	if i >= len(r.f) {
		return ""
	}
	return r.str(i)
}

func (r *fieldReader) utc(i int) string {
	s, err := NormalizeUTC(r.f[i])
	if err != nil {
		r.fail(err)
	}
	return s
}

func (r *fieldReader) date(i int) string {
	s := r.str(i)
	if s == "" {
		return ""
	}
	d, err := ParseDate(s)
	if err != nil {
		r.fail(err)
	}
	return d
}

func (r *fieldReader) float(i int, name string) *float64 {
	s := r.opt(i)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		r.fail(fmt.Errorf("%w: %s %q", ErrMalformedField, name, s))
		return nil
	}
	return &v
}

func (r *fieldReader) integer(i int, name string) *int {
	s := r.opt(i)
	if s == "" {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		r.fail(fmt.Errorf("%w: %s %q", ErrMalformedField, name, s))
		return nil
	}
	return &v
}

// coord decodes a value/hemisphere pair. axis holds the two hemisphere
// letters allowed for it ("NS" or "EW").
func (r *fieldReader) coord(vi, hi int, axis string) (*Coordinate, string) {
	v, h := r.str(vi), strings.ToUpper(r.str(hi))
	if v == "" {
		return nil, h
	}
	if len(h) != 1 || !strings.Contains(axis, h) {
		r.fail(fmt.Errorf("%w: hemisphere %q", ErrMalformedField, h))
		return nil, h
	}
	c, err := DecimalDegrees(v, h)
	if err != nil {
		r.fail(err)
		return nil, h
	}
	return &c, h
}

// GGA: Global Positioning System Fix Data
//
//	$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47
//
//	1: time (hhmmss[.sss])
//	2,3: latitude, N/S
//	4,5: longitude, E/W
//	6: fix quality (0=invalid, 1=GPS, 2=DGPS, ...)
//	7: satellites tracked
//	8: HDOP
//	9,10: altitude, unit
//	11,12: geoid separation, unit
//	13: seconds since last DGPS update
//	14: DGPS station id
func decodeGGA(f *fieldReader) decoded {
	var rec Record
	utc := f.utc(1)
	rec.UTC = utc
	rec.Latitude, rec.LatHemisphere = f.coord(2, 3, "NS")
	rec.Longitude, rec.LonHemisphere = f.coord(4, 5, "EW")
	rec.FixQuality = f.integer(6, "fix quality")
	rec.NumSatellites = f.integer(7, "satellites")
	rec.HDOP = f.float(8, "hdop")
	rec.Altitude = f.float(9, "altitude")
	rec.AltitudeUnit = f.str(10)
	rec.GeoidalSeparation = f.float(11, "geoidal separation")
	rec.GeoidalUnit = f.str(12)
	rec.DGPSAge = f.float(13, "dgps age")
	rec.DGPSStation = f.str(14)
	return decoded{utc: utc, fields: rec}
}

// GLL: Geographic Position
//
//	$GPGLL,4916.45,N,12311.12,W,225444,A,*1D
//
//	1,2: latitude, N/S
//	3,4: longitude, E/W
//	5: time (hhmmss[.sss])
//	6: status (A=active, V=void), optional before NMEA 2.3
//	7: mode indicator, optional
//
// Time comes from field 5 of this layout rather than field 3, and the
// position ahead of it is decoded too.
func decodeGLL(f *fieldReader) decoded {
	var rec Record
	utc := f.utc(5)
	rec.UTC = utc
	rec.Latitude, rec.LatHemisphere = f.coord(1, 2, "NS")
	rec.Longitude, rec.LonHemisphere = f.coord(3, 4, "EW")
	rec.Status = strings.ToUpper(f.opt(6))
	rec.ModeIndicator = strings.ToUpper(f.opt(7))
	return decoded{utc: utc, fields: rec}
}

// GSA: DOP and active satellites
//
//	$GPGSA,A,3,04,05,,09,12,,,24,,,,,2.5,1.3,2.1*39
//
//	1: selection mode (A=auto, M=manual)
//	2: fix mode (1=none, 2=2D, 3=3D)
//	3-14: PRNs used in the fix, empty slots skipped
//	15,16,17: PDOP, HDOP, VDOP
func decodeGSA(f *fieldReader) decoded {
	var rec Record
	rec.SelectMode = strings.ToUpper(f.str(1))
	rec.FixMode = f.integer(2, "fix mode")
	rec.SatellitesUsed = make([]int, 0, 12)
	for i := 3; i <= 14; i++ {
		if prn := f.integer(i, "prn"); prn != nil {
			rec.SatellitesUsed = append(rec.SatellitesUsed, *prn)
		}
	}
	rec.PDOP = f.float(15, "pdop")
	rec.HDOP = f.float(16, "hdop")
	rec.VDOP = f.float(17, "vdop")
	return decoded{fields: rec}
}

// GSV: Satellites in view
//
//	$GPGSV,2,1,08,01,40,083,46,02,17,308,41,12,07,344,39,14,22,228,45*75
//
//	1: total messages in this cycle
//	2: message number
//	3: satellites in view
//	4-7: PRN, elevation (deg), azimuth (deg), SNR (dB), repeated up to
//	     four times; a short trailing group leaves the missing values unset
//	last: signal ID (NMEA 4.10+), a single field after the groups
func decodeGSV(f *fieldReader) decoded {
	var rec Record
	rec.SatMessages = f.integer(1, "message count")
	rec.SatMessageIndex = f.integer(2, "message number")
	rec.SatellitesInView = f.integer(3, "satellites in view")
	end := len(f.f)
	if (end-4)%4 == 1 {
		end--
	}
	for i := 4; i < end; i += 4 {
		prn := f.integer(i, "prn")
		if prn == nil {
			continue
		}
		rec.Satellites = append(rec.Satellites, Satellite{
			PRN:       *prn,
			Elevation: f.integer(i+1, "elevation"),
			Azimuth:   f.integer(i+2, "azimuth"),
			SNR:       f.integer(i+3, "snr"),
		})
	}
	return decoded{fields: rec}
}

// RMC: Recommended Minimum Specific GNSS Data
//
//	$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A
//
//	1: time (hhmmss[.sss])
//	2: status (A=active, V=void)
//	3,4: latitude, N/S
//	5,6: longitude, E/W
//	7: speed over ground (knots)
//	8: track angle (degrees true)
//	9: date (ddmmyy)
//	10,11: magnetic variation, E/W
//	12: mode indicator, optional
func decodeRMC(f *fieldReader) decoded {
	var rec Record
	utc := f.utc(1)
	rec.UTC = utc
	rec.RMCStatus = strings.ToUpper(f.str(2))
	rec.Latitude, rec.LatHemisphere = f.coord(3, 4, "NS")
	rec.Longitude, rec.LonHemisphere = f.coord(5, 6, "EW")
	rec.SpeedOverGround = f.float(7, "speed")
	rec.TrackAngle = f.float(8, "track")
	rec.Date = f.date(9)
	rec.MagneticVariation = f.float(10, "magnetic variation")
	rec.MagneticVariationDir = strings.ToUpper(f.str(11))
	rec.ModeIndicator = strings.ToUpper(f.opt(12))
	return decoded{utc: utc, fields: rec}
}

// VTG: Track made good and ground speed
//
//	$GPVTG,054.7,T,034.4,M,005.5,N,010.2,K*48
//
//	1,2: true track (deg), T
//	3,4: magnetic track (deg), M
//	5,6: speed, N (knots)
//	7,8: speed, K (km/h)
//	9: mode indicator, optional
func decodeVTG(f *fieldReader) decoded {
	var rec Record
	rec.TrueTrack = f.float(1, "true track")
	rec.TrueTrackRef = f.str(2)
	rec.MagneticTrack = f.float(3, "magnetic track")
	rec.MagneticTrackRef = f.str(4)
	rec.SpeedKnots = f.float(5, "speed knots")
	rec.SpeedKnotsUnit = f.str(6)
	rec.SpeedKPH = f.float(7, "speed kph")
	rec.SpeedKPHUnit = f.str(8)
	rec.ModeIndicator = strings.ToUpper(f.opt(9))
	return decoded{fields: rec}
}
