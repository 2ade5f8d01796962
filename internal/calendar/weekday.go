package calendar

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// ParseWeekday accepts short ("mon") or long ("monday") English names in any case.
func ParseWeekday(value string) (time.Weekday, error) {
	day, ok := weekdayNames[strings.ToLower(strings.TrimSpace(value))]
	if !ok {
		return time.Sunday, fmt.Errorf("calendar: unknown weekday %q", value)
	}
	return day, nil
}

// ParseWeekdays parses every entry of values, rejecting the whole list on the
// first unknown name.
func ParseWeekdays(values []string) ([]time.Weekday, error) {
	out := make([]time.Weekday, 0, len(values))
	for _, v := range values {
		day, err := ParseWeekday(v)
		if err != nil {
			return nil, err
		}
		out = append(out, day)
	}
	return NormalizeWeekdays(out), nil
}

// NormalizeWeekdays removes duplicates and orders the set Sunday first.
func NormalizeWeekdays(days []time.Weekday) []time.Weekday {
	seen := make(map[time.Weekday]struct{}, len(days))
	out := make([]time.Weekday, 0, len(days))
	for _, day := range days {
		if day < time.Sunday || day > time.Saturday {
			continue
		}
		if _, ok := seen[day]; ok {
			continue
		}
		seen[day] = struct{}{}
		out = append(out, day)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// WeekdayCode returns the short lower-case name used on the wire.
func WeekdayCode(day time.Weekday) string {
	return strings.ToLower(day.String()[:3])
}

// FormatWeekdays renders a set of weekdays as a comma separated list of short
// names, the form used for storage.
func FormatWeekdays(days []time.Weekday) string {
	days = NormalizeWeekdays(days)
	codes := make([]string, 0, len(days))
	for _, day := range days {
		codes = append(codes, WeekdayCode(day))
	}
	return strings.Join(codes, ",")
}

// SplitWeekdays is the inverse of FormatWeekdays. Unknown entries are skipped.
func SplitWeekdays(value string) []time.Weekday {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]time.Weekday, 0, len(parts))
	for _, part := range parts {
		if day, err := ParseWeekday(part); err == nil {
			out = append(out, day)
		}
	}
	return NormalizeWeekdays(out)
}

// LoadLocation resolves an IANA zone name, falling back to fallback when the
// name is empty or unknown.
func LoadLocation(name string, fallback *time.Location) *time.Location {
	if fallback == nil {
		fallback = time.UTC
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fallback
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return fallback
	}
	return loc
}
