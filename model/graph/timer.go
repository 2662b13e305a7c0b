package graph

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var isoDuration = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:\.\d+)?)S)?)?$`)

// DueDate resolves the timer definition relative to now.
func (d *EventDefinition) DueDate(now time.Time) (time.Time, error) {
	if d.TimeDate != "" {
		return time.Parse(time.RFC3339, d.TimeDate)
	}
	duration, err := ParseDuration(d.TimeDuration)
	if err != nil {
		return time.Time{}, err
	}
	return now.Add(duration), nil
}

// ParseDuration parses ISO-8601 durations (PT5M, P1DT2H) and Go duration strings.
func ParseDuration(expr string) (time.Duration, error) {
	if expr == "" {
		return 0, fmt.Errorf("empty duration")
	}
	if expr[0] != 'P' {
		return time.ParseDuration(expr)
	}
	parts := isoDuration.FindStringSubmatch(expr)
	if parts == nil || expr == "P" || expr == "PT" {
		return 0, fmt.Errorf("invalid duration: %v", expr)
	}
	units := []time.Duration{24 * time.Hour, time.Hour, time.Minute, time.Second}
	var result time.Duration
	for i, unit := range units {
		if parts[i+1] == "" {
			continue
		}
		value, err := strconv.ParseFloat(parts[i+1], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %v: %w", expr, err)
		}
		result += time.Duration(value * float64(unit))
	}
	return result, nil
}
