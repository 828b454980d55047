package uxum

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ISO-8601 durations are the wire format for the X-Timeout header. Only
// exact units are supported: weeks, days, hours, minutes, and (fractional)
// seconds. Years and months have no fixed length and are rejected.

var errInvalidDuration = errors.New("invalid ISO-8601 duration")

// ParseDuration parses an ISO-8601 duration such as "PT3S", "PT0.1S",
// "PT2M30S" or "P1DT12H" into a time.Duration.
func ParseDuration(s string) (time.Duration, error) {
	orig := s
	if len(s) < 2 || (s[0] != 'P' && s[0] != 'p') {
		return 0, fmt.Errorf("%w: %q", errInvalidDuration, orig)
	}
	s = s[1:]

	var total time.Duration
	inTime := false
	seen := false

	for len(s) > 0 {
		if s[0] == 'T' || s[0] == 't' {
			if inTime {
				return 0, fmt.Errorf("%w: %q", errInvalidDuration, orig)
			}
			inTime = true
			s = s[1:]
			continue
		}

		i := 0
		for i < len(s) && (s[i] >= '0' && s[i] <= '9' || s[i] == '.' || s[i] == ',') {
			i++
		}
		if i == 0 || i == len(s) {
			return 0, fmt.Errorf("%w: %q", errInvalidDuration, orig)
		}

		num := strings.ReplaceAll(s[:i], ",", ".")
		val, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", errInvalidDuration, orig)
		}

		unit := s[i]
		s = s[i+1:]
		seen = true

		var scale time.Duration
		switch {
		case !inTime && (unit == 'W' || unit == 'w'):
			scale = 7 * 24 * time.Hour
		case !inTime && (unit == 'D' || unit == 'd'):
			scale = 24 * time.Hour
		case inTime && (unit == 'H' || unit == 'h'):
			scale = time.Hour
		case inTime && (unit == 'M' || unit == 'm'):
			scale = time.Minute
		case inTime && (unit == 'S' || unit == 's'):
			scale = time.Second
		default:
			// Y and calendar M are not exact units; anything else is garbage.
			return 0, fmt.Errorf("%w: %q", errInvalidDuration, orig)
		}

		total += time.Duration(val * float64(scale))
	}

	if !seen || total < 0 {
		return 0, fmt.Errorf("%w: %q", errInvalidDuration, orig)
	}
	return total, nil
}

// FormatDuration renders d as an ISO-8601 duration, e.g. "PT1M30S" or
// "PT0.5S". Negative durations are clamped to "PT0S".
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "PT0S"
	}

	var b strings.Builder
	b.WriteString("PT")

	if h := d / time.Hour; h > 0 {
		b.WriteString(strconv.FormatInt(int64(h), 10))
		b.WriteByte('H')
		d -= h * time.Hour
	}
	if m := d / time.Minute; m > 0 {
		b.WriteString(strconv.FormatInt(int64(m), 10))
		b.WriteByte('M')
		d -= m * time.Minute
	}
	if d > 0 || b.Len() == 2 {
		secs := float64(d) / float64(time.Second)
		b.WriteString(strconv.FormatFloat(secs, 'f', -1, 64))
		b.WriteByte('S')
	}

	return b.String()
}
