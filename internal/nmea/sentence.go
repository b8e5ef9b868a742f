package nmea

import (
	"errors"
	"strings"
)

var (
	// ErrMalformedSentence is returned for lines too short to carry a
	// talker+type token.
	ErrMalformedSentence = errors.New("nmea: malformed sentence")
	// ErrFieldCountMismatch is returned when a sentence has fewer fields than
	// its layout requires.
	ErrFieldCountMismatch = errors.New("nmea: field count mismatch")
	// ErrMalformedTimestamp is returned for UTC or date fields that are not a
	// six digit sequence.
	ErrMalformedTimestamp = errors.New("nmea: malformed timestamp")
	// ErrMalformedField is returned for a non-empty numeric, coordinate or
	// hemisphere field that cannot be decoded.
	ErrMalformedField = errors.New("nmea: malformed field")
	// ErrNoCursor is returned when a sentence without a timestamp arrives
	// before any timestamped sentence.
	ErrNoCursor = errors.New("nmea: no current record")
	// ErrChecksum is returned by VerifyChecksum.
	ErrChecksum = errors.New("nmea: checksum")
)

// SentenceType identifies one of the supported sentences.
type SentenceType uint8

const (
	TypeUnrecognized SentenceType = iota
	TypeGGA
	TypeGLL
	TypeGSA
	TypeGSV
	TypeRMC
	TypeVTG
)

var sentenceTokens = map[string]SentenceType{
	"GPGGA": TypeGGA,
	"GPGLL": TypeGLL,
	"GPGSA": TypeGSA,
	"GPGSV": TypeGSV,
	"GPRMC": TypeRMC,
	"GPVTG": TypeVTG,
}

// String returns the talker+type token, e.g. "GPRMC".
func (t SentenceType) String() string {
	switch t {
	case TypeGGA:
		return "GPGGA"
	case TypeGLL:
		return "GPGLL"
	case TypeGSA:
		return "GPGSA"
	case TypeGSV:
		return "GPGSV"
	case TypeRMC:
		return "GPRMC"
	case TypeVTG:
		return "GPVTG"
	default:
		return "unrecognized"
	}
}

// establishesCursor reports whether the sentence carries its own UTC field.
func (t SentenceType) establishesCursor() bool {
	return t == TypeGGA || t == TypeGLL || t == TypeRMC
}

// Classify returns the sentence type of a raw line. The leading '$' and
// surrounding whitespace are optional. Unsupported sentences classify as
// TypeUnrecognized with a nil error.
func Classify(line string) (SentenceType, error) {
	s := strings.TrimSpace(line)
	s = strings.TrimPrefix(s, "$")
	if len(s) < 5 {
		return TypeUnrecognized, ErrMalformedSentence
	}
	token := strings.ToUpper(strings.TrimSpace(s[:5]))
	if t, ok := sentenceTokens[token]; ok {
		return t, nil
	}
	return TypeUnrecognized, nil
}

// splitFields returns the comma-separated fields of a sentence with the
// leading '$', the '*hh' checksum suffix and line endings removed. Field 0
// is the talker+type token.
func splitFields(line string) []string {
	s := strings.TrimSpace(line)
	s = strings.TrimPrefix(s, "$")
	if star := strings.LastIndexByte(s, '*'); star >= 0 {
		s = s[:star]
	}
	return strings.Split(s, ",")
}
