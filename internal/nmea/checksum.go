package nmea

import (
	"fmt"
	"strings"

	gonmea "github.com/adrianmo/go-nmea"
)

// ChecksumMode selects how VerifyChecksum treats the '*hh' suffix.
type ChecksumMode string

const (
	// ChecksumPresent verifies the checksum when the line carries one.
	ChecksumPresent ChecksumMode = "present"
	// ChecksumRequire rejects lines without a checksum.
	ChecksumRequire ChecksumMode = "require"
	// ChecksumIgnore skips verification.
	ChecksumIgnore ChecksumMode = "ignore"
)

func ParseChecksumMode(s string) (ChecksumMode, error) {
	switch m := ChecksumMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ChecksumPresent, nil
	case ChecksumPresent, ChecksumRequire, ChecksumIgnore:
		return m, nil
	default:
		return "", fmt.Errorf("unknown checksum mode %q", s)
	}
}

// VerifyChecksum checks the XOR checksum of a raw sentence. It is a caller
// side pre-check; Parser never verifies checksums itself.
func VerifyChecksum(line string, mode ChecksumMode) error {
	if mode == ChecksumIgnore {
		return nil
	}
	s := strings.TrimSpace(line)
	s = strings.TrimPrefix(s, gonmea.SentenceStart)
	star := strings.LastIndex(s, gonmea.ChecksumSep)
	if star < 0 {
		if mode == ChecksumRequire {
			return fmt.Errorf("%w: missing", ErrChecksum)
		}
		return nil
	}
	got := strings.ToUpper(strings.TrimSpace(s[star+1:]))
	want := gonmea.Checksum(s[:star])
	if got != want {
		return fmt.Errorf("%w: mismatch got %q want %q", ErrChecksum, got, want)
	}
	return nil
}
