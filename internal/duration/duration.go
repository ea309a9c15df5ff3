// Package duration parses operator-supplied duration specs of the form
// "1days 2hours 30minutes 10seconds". Components are optional,
// case-insensitive and may appear in any order, but each kind at most
// once and at least one must be present and nonzero.
package duration

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kuichiro/combogen/internal/model"
)

var componentPattern = regexp.MustCompile(`^(\d+)(days?|hours?|minutes?|seconds?)$`)

// Parse converts a duration spec into a time.Duration.
func Parse(spec string) (time.Duration, error) {
	fields := strings.Fields(strings.ToLower(spec))
	if len(fields) == 0 {
		return 0, model.ErrInvalidDuration
	}

	seen := make(map[string]bool, 4)
	var total time.Duration
	for _, field := range fields {
		m := componentPattern.FindStringSubmatch(field)
		if m == nil {
			return 0, model.ErrInvalidDuration
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, model.ErrInvalidDuration
		}
		unit := strings.TrimSuffix(m[2], "s")
		if seen[unit] {
			return 0, model.ErrInvalidDuration
		}
		seen[unit] = true

		switch unit {
		case "day":
			total += time.Duration(n) * 24 * time.Hour
		case "hour":
			total += time.Duration(n) * time.Hour
		case "minute":
			total += time.Duration(n) * time.Minute
		case "second":
			total += time.Duration(n) * time.Second
		}
	}

	if total == 0 {
		return 0, model.ErrInvalidDuration
	}
	return total, nil
}

// Breakdown splits a duration into the days/hours/minutes/seconds form
// shown to users. Negative durations collapse to zero.
func Breakdown(d time.Duration) model.Remaining {
	if d < 0 {
		return model.Remaining{}
	}
	total := int(d / time.Second)
	return model.Remaining{
		Days:    total / 86400,
		Hours:   total % 86400 / 3600,
		Minutes: total % 3600 / 60,
		Seconds: total % 60,
	}
}
