package mikrotik

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Units accepted in RouterOS duration strings, longest suffix first so "ms"
// is not read as "m".
var durationUnits = []struct {
	suffix string
	unit   time.Duration
}{
	{"ms", time.Millisecond},
	{"w", 7 * 24 * time.Hour},
	{"d", 24 * time.Hour},
	{"h", time.Hour},
	{"m", time.Minute},
	{"s", time.Second},
}

// ParseDuration parses a RouterOS duration.
//
// Accepted forms:
//   - unit sequences: "500ms", "1s", "1m30s", "1d2h", "1w"
//   - clock form: "hh:mm:ss", optionally with fractional seconds and a
//     leading day count ("1d00:00:05")
//   - a bare integer, read as seconds
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidDuration)
	}

	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
		}
		return time.Duration(n) * time.Second, nil
	}

	if strings.Contains(s, ":") {
		return parseClockDuration(s)
	}

	var total time.Duration
	rest := s
	for rest != "" {
		i := 0
		for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
			i++
		}
		if i == 0 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
		}
		n, err := strconv.Atoi(rest[:i])
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
		}
		rest = rest[i:]

		matched := false
		for _, u := range durationUnits {
			if strings.HasPrefix(rest, u.suffix) {
				total += time.Duration(n) * u.unit
				rest = rest[len(u.suffix):]
				matched = true
				break
			}
		}
		if !matched {
			return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
		}
	}

	return total, nil
}

// parseClockDuration handles "[Nd]hh:mm:ss[.fff]".
func parseClockDuration(s string) (time.Duration, error) {
	var total time.Duration
	clock := s

	if before, after, found := strings.Cut(s, "d"); found {
		days, err := strconv.Atoi(before)
		if err != nil || days < 0 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
		}
		total += time.Duration(days) * 24 * time.Hour
		clock = after
	}

	parts := strings.Split(clock, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}

	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}
	seconds, err := strconv.ParseFloat(parts[2], 64)
	if err != nil || seconds < 0 || seconds >= 60 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}

	total += time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute
	total += time.Duration(seconds * float64(time.Second))
	return total, nil
}

// FormatTimeout renders a watch timeout in whole milliseconds ("1000ms").
func FormatTimeout(d time.Duration) string {
	return strconv.FormatInt(d.Milliseconds(), 10) + "ms"
}

// FormatInterval renders a watch interval in whole seconds ("10s").
func FormatInterval(d time.Duration) string {
	return strconv.FormatInt(int64(d/time.Second), 10) + "s"
}
