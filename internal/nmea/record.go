package nmea

import (
	"encoding/json"
	"fmt"
)

// TypeSet records which sentence types contributed to a Record.
type TypeSet uint8

func (s TypeSet) Has(t SentenceType) bool {
	return t != TypeUnrecognized && s&(1<<t) != 0
}

func (s *TypeSet) Add(t SentenceType) {
	if t == TypeUnrecognized {
		return
	}
	*s |= 1 << t
}

// Types lists the members in a stable order.
func (s TypeSet) Types() []SentenceType {
	out := make([]SentenceType, 0, 6)
	for t := TypeGGA; t <= TypeVTG; t++ {
		if s.Has(t) {
			out = append(out, t)
		}
	}
	return out
}

func (s TypeSet) MarshalJSON() ([]byte, error) {
	names := make([]string, 0, 6)
	for _, t := range s.Types() {
		names = append(names, t.String())
	}
	return json.Marshal(names)
}

func (s *TypeSet) UnmarshalJSON(b []byte) error {
	var names []string
	if err := json.Unmarshal(b, &names); err != nil {
		return err
	}
	var out TypeSet
	for _, n := range names {
		t, ok := sentenceTokens[n]
		if !ok {
			return fmt.Errorf("unknown sentence type %q", n)
		}
		out.Add(t)
	}
	*s = out
	return nil
}

// Satellite is one satellite reported by GSV.
type Satellite struct {
	PRN       int  `json:"prn"`
	Elevation *int `json:"elevation_deg,omitempty"`
	Azimuth   *int `json:"azimuth_deg,omitempty"`
	SNR       *int `json:"snr,omitempty"`
}

// Record is everything known about one fix. UTC is the store key and never
// changes once the record exists. Nil pointers and empty strings mean the
// field has not been reported.
type Record struct {
	UTC   string  `json:"utc"`
	Types TypeSet `json:"type"`

	Latitude      *Coordinate `json:"lat,omitempty"`
	LatHemisphere string      `json:"ns,omitempty"`
	Longitude     *Coordinate `json:"long,omitempty"`
	LonHemisphere string      `json:"ew,omitempty"`

	// GGA
	FixQuality        *int     `json:"fix_quality,omitempty"`
	NumSatellites     *int     `json:"num_satellites,omitempty"`
	Altitude          *float64 `json:"alt,omitempty"`
	AltitudeUnit      string   `json:"alt_unit,omitempty"`
	GeoidalSeparation *float64 `json:"geoidal,omitempty"`
	GeoidalUnit       string   `json:"geoidal_unit,omitempty"`
	DGPSAge           *float64 `json:"dgps_age,omitempty"`
	DGPSStation       string   `json:"dgps_station,omitempty"`

	// GLL
	Status string `json:"status,omitempty"`

	// RMC
	RMCStatus            string   `json:"status_rmc,omitempty"`
	SpeedOverGround      *float64 `json:"speed,omitempty"`
	TrackAngle           *float64 `json:"track,omitempty"`
	Date                 string   `json:"date,omitempty"`
	MagneticVariation    *float64 `json:"magvar,omitempty"`
	MagneticVariationDir string   `json:"magvar_ew,omitempty"`
	Unix                 *int64   `json:"unix,omitempty"`

	// FAA mode indicator (NMEA 2.3+) from GLL, RMC or VTG.
	ModeIndicator string `json:"mode_indicator,omitempty"`

	// GSA
	SelectMode     string   `json:"select_mode,omitempty"`
	FixMode        *int     `json:"fix_mode,omitempty"`
	SatellitesUsed []int    `json:"sats_used,omitempty"`
	PDOP           *float64 `json:"pdop,omitempty"`
	// HDOP is reported by both GGA and GSA; the later sentence wins.
	HDOP           *float64 `json:"hdop,omitempty"`
	VDOP           *float64 `json:"vdop,omitempty"`

	// GSV
	SatMessages      *int        `json:"sat_messages,omitempty"`
	SatMessageIndex  *int        `json:"sat_message_index,omitempty"`
	SatellitesInView *int        `json:"sats_in_view,omitempty"`
	Satellites       []Satellite `json:"satellites,omitempty"`

	// VTG
	TrueTrack        *float64 `json:"true_track,omitempty"`
	TrueTrackRef     string   `json:"true_track_ref,omitempty"`
	MagneticTrack    *float64 `json:"magnetic_track,omitempty"`
	MagneticTrackRef string   `json:"magnetic_track_ref,omitempty"`
	SpeedKnots       *float64 `json:"speed_knots,omitempty"`
	SpeedKnotsUnit   string   `json:"speed_knots_unit,omitempty"`
	SpeedKPH         *float64 `json:"speed_kph,omitempty"`
	SpeedKPHUnit     string   `json:"speed_kph_unit,omitempty"`
}

// IsComplete reports whether the record has date, utc, latitude and
// longitude, the minimum needed to place the fix in time and space.
func (r *Record) IsComplete() bool {
	return r.Date != "" && r.UTC != "" && r.Latitude != nil && r.Longitude != nil
}

// SatelliteCount returns the GGA satellite count, or the number of GSA
// satellites used when GGA has not been seen.
func (r *Record) SatelliteCount() (int, bool) {
	if r.NumSatellites != nil {
		return *r.NumSatellites, true
	}
	if r.SatellitesUsed != nil {
		return len(r.SatellitesUsed), true
	}
	return 0, false
}

// Clone returns a deep copy.
func (r *Record) Clone() Record {
	out := Record{UTC: r.UTC}
	out.merge(r)
	out.Types = r.Types
	return out
}

// merge copies every reported field of src over r.
func (r *Record) merge(src *Record) {
	r.Types |= src.Types

	mergeCoord(&r.Latitude, src.Latitude)
	mergeString(&r.LatHemisphere, src.LatHemisphere)
	mergeCoord(&r.Longitude, src.Longitude)
	mergeString(&r.LonHemisphere, src.LonHemisphere)

	mergeInt(&r.FixQuality, src.FixQuality)
	mergeInt(&r.NumSatellites, src.NumSatellites)
	mergeFloat(&r.Altitude, src.Altitude)
	mergeString(&r.AltitudeUnit, src.AltitudeUnit)
	mergeFloat(&r.GeoidalSeparation, src.GeoidalSeparation)
	mergeString(&r.GeoidalUnit, src.GeoidalUnit)
	mergeFloat(&r.DGPSAge, src.DGPSAge)
	mergeString(&r.DGPSStation, src.DGPSStation)

	mergeString(&r.Status, src.Status)

	mergeString(&r.RMCStatus, src.RMCStatus)
	mergeFloat(&r.SpeedOverGround, src.SpeedOverGround)
	mergeFloat(&r.TrackAngle, src.TrackAngle)
	mergeString(&r.Date, src.Date)
	mergeFloat(&r.MagneticVariation, src.MagneticVariation)
	mergeString(&r.MagneticVariationDir, src.MagneticVariationDir)
	if src.Unix != nil {
		v := *src.Unix
		r.Unix = &v
	}
	mergeString(&r.ModeIndicator, src.ModeIndicator)

	mergeString(&r.SelectMode, src.SelectMode)
	mergeInt(&r.FixMode, src.FixMode)
	if src.SatellitesUsed != nil {
		r.SatellitesUsed = append(make([]int, 0, len(src.SatellitesUsed)), src.SatellitesUsed...)
	}
	mergeFloat(&r.PDOP, src.PDOP)
	mergeFloat(&r.HDOP, src.HDOP)
	mergeFloat(&r.VDOP, src.VDOP)

	mergeInt(&r.SatMessages, src.SatMessages)
	mergeInt(&r.SatMessageIndex, src.SatMessageIndex)
	mergeInt(&r.SatellitesInView, src.SatellitesInView)
	for _, sat := range src.Satellites {
		r.upsertSatellite(sat)
	}

	mergeFloat(&r.TrueTrack, src.TrueTrack)
	mergeString(&r.TrueTrackRef, src.TrueTrackRef)
	mergeFloat(&r.MagneticTrack, src.MagneticTrack)
	mergeString(&r.MagneticTrackRef, src.MagneticTrackRef)
	mergeFloat(&r.SpeedKnots, src.SpeedKnots)
	mergeString(&r.SpeedKnotsUnit, src.SpeedKnotsUnit)
	mergeFloat(&r.SpeedKPH, src.SpeedKPH)
	mergeString(&r.SpeedKPHUnit, src.SpeedKPHUnit)
}

// deriveEpoch sets Unix when both UTC and Date are present.
func (r *Record) deriveEpoch() {
	if r.UTC == "" || r.Date == "" {
		return
	}
	ts, err := Epoch(r.UTC, r.Date)
	if err != nil {
		return
	}
	r.Unix = &ts
}

func (r *Record) upsertSatellite(sat Satellite) {
	sat = Satellite{
		PRN:       sat.PRN,
		Elevation: copyInt(sat.Elevation),
		Azimuth:   copyInt(sat.Azimuth),
		SNR:       copyInt(sat.SNR),
	}
	for i := range r.Satellites {
		if r.Satellites[i].PRN == sat.PRN {
			r.Satellites[i] = sat
			return
		}
	}
	r.Satellites = append(r.Satellites, sat)
}

func mergeString(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}

func mergeInt(dst **int, src *int) {
	if src != nil {
		*dst = copyInt(src)
	}
}

func mergeFloat(dst **float64, src *float64) {
	if src != nil {
		v := *src
		*dst = &v
	}
}

func mergeCoord(dst **Coordinate, src *Coordinate) {
	if src != nil {
		v := *src
		*dst = &v
	}
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
