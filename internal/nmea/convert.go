package nmea

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CoordinatePlaces is the number of decimal places kept for coordinates.
const CoordinatePlaces = 6

var (
	hundred = decimal.NewFromInt(100)
	sixty   = decimal.NewFromInt(60)
)

// Coordinate is a signed decimal-degrees value at CoordinatePlaces
// precision. It marshals to a JSON number with exactly six decimals.
type Coordinate struct {
	d decimal.Decimal
}

// NewCoordinate rounds deg to CoordinatePlaces.
func NewCoordinate(deg float64) Coordinate {
	return Coordinate{d: decimal.NewFromFloat(deg).Round(CoordinatePlaces)}
}

// String returns the fixed-precision form, e.g. "48.117300".
func (c Coordinate) String() string {
	return c.d.StringFixed(CoordinatePlaces)
}

// Degrees returns the value as a float.
func (c Coordinate) Degrees() float64 {
	f, _ := c.d.Float64()
	return f
}

func (c Coordinate) Equal(o Coordinate) bool {
	return c.d.Equal(o.d)
}

func (c Coordinate) MarshalJSON() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Coordinate) UnmarshalJSON(b []byte) error {
	s := string(bytes.Trim(b, `"`))
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("coordinate %q: %w", s, err)
	}
	c.d = d.Round(CoordinatePlaces)
	return nil
}

// DecimalDegrees converts an NMEA degrees-minutes value (DDMM.mmmm or
// DDDMM.mmmm) and hemisphere letter to decimal degrees. South and west
// values are negative. Rounding is half-up on the magnitude.
func DecimalDegrees(value, hemi string) (Coordinate, error) {
	value = strings.TrimSpace(value)
	hemi = strings.ToUpper(strings.TrimSpace(hemi))
	switch hemi {
	case "N", "S", "E", "W":
	default:
		return Coordinate{}, fmt.Errorf("%w: hemisphere %q", ErrMalformedField, hemi)
	}

	if !isPlainDecimal(value) {
		return Coordinate{}, fmt.Errorf("%w: coordinate %q", ErrMalformedField, value)
	}
	v, err := decimal.NewFromString(value)
	if err != nil || v.IsNegative() {
		return Coordinate{}, fmt.Errorf("%w: coordinate %q", ErrMalformedField, value)
	}

	deg := decimal.NewFromInt(v.IntPart() / 100)
	minutes := v.Sub(deg.Mul(hundred))
	if minutes.GreaterThanOrEqual(sixty) {
		return Coordinate{}, fmt.Errorf("%w: coordinate %q minutes out of range", ErrMalformedField, value)
	}

	out := deg.Add(minutes.DivRound(sixty, 16)).Round(CoordinatePlaces)
	if hemi == "S" || hemi == "W" {
		out = out.Neg()
	}
	return Coordinate{d: out}, nil
}

// NormalizeUTC strips any fractional seconds from an hhmmss[.sss] field and
// returns the six-digit hhmmss part. ':' separators are tolerated. Hours
// above 23, minutes above 59 and seconds above 60 are rejected.
func NormalizeUTC(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		s = s[:dot]
	}
	s = strings.ReplaceAll(s, ":", "")
	if !isDigits(s, 6) || atoi2(s[0:2]) > 23 || atoi2(s[2:4]) > 59 || atoi2(s[4:6]) > 60 {
		return "", fmt.Errorf("%w: utc %q", ErrMalformedTimestamp, raw)
	}
	return s, nil
}

// ParseDate validates a DDMMYY field and returns it trimmed.
func ParseDate(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if !isDigits(s, 6) {
		return "", fmt.Errorf("%w: date %q", ErrMalformedTimestamp, raw)
	}
	day, month, year := atoi2(s[0:2]), atoi2(s[2:4]), centuryYear(atoi2(s[4:6]))
	if month < 1 || month > 12 || day < 1 || day > daysIn(time.Month(month), year) {
		return "", fmt.Errorf("%w: date %q", ErrMalformedTimestamp, raw)
	}
	return s, nil
}

// Epoch converts hhmmss and DDMMYY to seconds since the Unix epoch, UTC.
// Two-digit years 80-99 are 1980-1999, 00-79 are 2000-2079.
func Epoch(utc, date string) (int64, error) {
	hms, err := NormalizeUTC(utc)
	if err != nil {
		return 0, err
	}
	dmy, err := ParseDate(date)
	if err != nil {
		return 0, err
	}
	h, m, sec := atoi2(hms[0:2]), atoi2(hms[2:4]), atoi2(hms[4:6])
	day, month, year := atoi2(dmy[0:2]), atoi2(dmy[2:4]), centuryYear(atoi2(dmy[4:6]))
	t := time.Date(year, time.Month(month), day, h, m, sec, 0, time.UTC)
	return t.Unix(), nil
}

func centuryYear(yy int) int {
	if yy >= 80 {
		return 1900 + yy
	}
	return 2000 + yy
}

func daysIn(m time.Month, year int) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func isDigits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// isPlainDecimal reports whether s is digits with at most one '.', and at
// least one digit. Signs and exponents are not NMEA.
func isPlainDecimal(s string) bool {
	digits, dots := 0, 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= '0' && c <= '9':
			digits++
		case c == '.':
			dots++
		default:
			return false
		}
	}
	return digits > 0 && dots <= 1
}

// atoi2 parses two ASCII digits already checked by isDigits.
func atoi2(s string) int {
	return int(s[0]-'0')*10 + int(s[1]-'0')
}
