package replay

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/runproof/internal/canon"
)

// ParseSeed converts a seed taken from a decoded document. Only integer
// values are accepted; strings, booleans and fractional numbers are
// rejected with ErrCodeInvalidSeed, even when a string holds digits.
func ParseSeed(v any) (int64, error) {
	switch s := v.(type) {
	case int:
		return int64(s), nil
	case int8:
		return int64(s), nil
	case int16:
		return int64(s), nil
	case int32:
		return int64(s), nil
	case int64:
		return s, nil
	case uint8:
		return int64(s), nil
	case uint16:
		return int64(s), nil
	case uint32:
		return int64(s), nil
	case uint:
		if uint64(s) > math.MaxInt64 {
			return 0, seedError(v, nil)
		}
		return int64(s), nil
	case uint64:
		if s > math.MaxInt64 {
			return 0, seedError(v, nil)
		}
		return int64(s), nil
	case canon.Int:
		return int64(s), nil
	case json.Number:
		n, err := strconv.ParseInt(s.String(), 10, 64)
		if err != nil {
			return 0, seedError(v, err)
		}
		return n, nil
	default:
		return 0, seedError(v, nil)
	}
}

// ParseSeedFlag converts a seed given as command-line text.
func ParseSeedFlag(s string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, seedError(s, err)
	}
	return n, nil
}

func seedError(v any, err error) error {
	return &ConfigurationError{
		Code:    ErrCodeInvalidSeed,
		Message: fmt.Sprintf("seed must be an integer, got %T %v", v, v),
		Err:     err,
	}
}

// ParseFixedClock parses an RFC3339 timestamp with an explicit offset and
// returns it in UTC. Naive or unparsable values are rejected with
// ErrCodeInvalidClock.
func ParseFixedClock(value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, &ConfigurationError{
			Code:    ErrCodeInvalidClock,
			Message: "fixed clock is required",
		}
	}
	t, ok := canon.ParseTimestamp(value)
	if !ok {
		return time.Time{}, &ConfigurationError{
			Code:    ErrCodeInvalidClock,
			Message: fmt.Sprintf("fixed clock %q must be RFC3339 with an explicit offset", value),
		}
	}
	return t.UTC(), nil
}

// FormatClock renders a fixed clock in the canonical timestamp form.
func FormatClock(t time.Time) string {
	return t.UTC().Format(canon.TimestampLayout)
}
