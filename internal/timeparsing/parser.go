// Package timeparsing turns the time expressions accepted on the command
// line into instants. Expressions are tried in layers:
//  1. Compact duration (+6h, -1d, 2w)
//  2. Absolute timestamp (RFC3339, "2006-01-02 15:04", date-only)
//  3. Natural language (yesterday, last monday, 3 days ago)
package timeparsing

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// compactDurationRe matches [+-]?(\d+)([hdwmy]), e.g. +6h, -1d, 2w.
var compactDurationRe = regexp.MustCompile(`^([+-]?)(\d+)([hdwmy])$`)

var absoluteLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

var parser = newParser()

func newParser() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}

// ParseCompactDuration applies a compact duration to now. Units are h, d,
// w, m (months) and y; a missing sign means forward.
func ParseCompactDuration(s string, now time.Time) (time.Time, error) {
	sign, amount, unit, ok := splitCompact(s)
	if !ok {
		return time.Time{}, fmt.Errorf("not a compact duration: %q", s)
	}
	if sign == "-" {
		amount = -amount
	}
	return applyDuration(now, amount, unit), nil
}

// IsCompactDuration reports whether s matches compact duration syntax.
func IsCompactDuration(s string) bool {
	return compactDurationRe.MatchString(s)
}

func splitCompact(s string) (sign string, amount int, unit string, ok bool) {
	m := compactDurationRe.FindStringSubmatch(s)
	if m == nil {
		return "", 0, "", false
	}
	amount, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, "", false
	}
	return m[1], amount, m[3], true
}

func applyDuration(base time.Time, amount int, unit string) time.Time {
	switch unit {
	case "h":
		return base.Add(time.Duration(amount) * time.Hour)
	case "d":
		return base.AddDate(0, 0, amount)
	case "w":
		return base.AddDate(0, 0, amount*7)
	case "m":
		return base.AddDate(0, amount, 0)
	case "y":
		return base.AddDate(amount, 0, 0)
	}
	return base
}

// ParseAbsolute parses a timestamp or date in one of the accepted layouts.
// Layouts without a zone are read in loc.
func ParseAbsolute(s string, loc *time.Location) (time.Time, error) {
	for _, layout := range absoluteLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("not a timestamp: %q", s)
}

// ParseNaturalLanguage resolves an English expression relative to now.
func ParseNaturalLanguage(s string, now time.Time) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, errors.New("empty time expression")
	}
	r, err := parser.Parse(s, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %q: %w", s, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("not a recognizable time: %q", s)
	}
	return r.Time, nil
}

// ParseRelativeTime tries each layer in order and returns the first match.
func ParseRelativeTime(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty time expression")
	}
	if IsCompactDuration(s) {
		return ParseCompactDuration(s, now)
	}
	if t, err := ParseAbsolute(s, now.Location()); err == nil {
		return t, nil
	}
	return ParseNaturalLanguage(s, now)
}

// ParseSince is ParseRelativeTime for look-back windows: an unsigned
// compact duration counts back from now ("7d" is a week ago), and the
// result may not lie in the future.
func ParseSince(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if sign, amount, unit, ok := splitCompact(s); ok && sign == "" {
		s = "-" + strconv.Itoa(amount) + unit
	}
	t, err := ParseRelativeTime(s, now)
	if err != nil {
		return time.Time{}, err
	}
	if t.After(now) {
		return time.Time{}, fmt.Errorf("%q is in the future", s)
	}
	return t, nil
}
