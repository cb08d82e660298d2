package event

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultTimezone is the zone venue listings are published in.
const DefaultTimezone = "Asia/Jerusalem"

var (
	// ErrUnparseableDate reports a date string matching none of the accepted shapes.
	ErrUnparseableDate = errors.New("unparseable date")

	// ErrUnknownMonth reports a well-shaped date whose month name is not recognized.
	ErrUnknownMonth = errors.New("unknown month")
)

// hebrewMonths maps month literals, as venues print them, to calendar months.
// Values are 1-indexed to match time.Month.
var hebrewMonths = map[string]time.Month{
	"ינואר":   time.January,
	"פברואר":  time.February,
	"מרץ":     time.March,
	"אפריל":   time.April,
	"מאי":     time.May,
	"יוני":    time.June,
	"יולי":    time.July,
	"אוגוסט":  time.August,
	"ספטמבר":  time.September,
	"אוקטובר": time.October,
	"נובמבר":  time.November,
	"דצמבר":   time.December,
}

func init() {
	if err := validateMonths(hebrewMonths); err != nil {
		panic(err)
	}
}

// validateMonths checks that the table names each of the twelve months exactly once.
func validateMonths(table map[string]time.Month) error {
	if len(table) != 12 {
		return fmt.Errorf("month table has %d entries, want 12", len(table))
	}
	seen := make(map[time.Month]string, 12)
	for name, m := range table {
		if m < time.January || m > time.December {
			return fmt.Errorf("month %q maps to out-of-range value %d", name, m)
		}
		if other, dup := seen[m]; dup {
			return fmt.Errorf("months %q and %q both map to %s", other, name, m)
		}
		seen[m] = name
	}
	return nil
}

// MonthFromName resolves a Hebrew month literal. Matching is exact.
func MonthFromName(name string) (time.Month, bool) {
	m, ok := hebrewMonths[name]
	return m, ok
}

var (
	// "05 מאי 2023 יום שישי 20:30": day, month name, year, weekday tokens, time.
	// Labels before the date and notes after the time are ignored.
	longDatePattern = regexp.MustCompile(`\b(\d{1,2}) (\S+) (\d{4}) \S+(?: \S+)*? (\d{1,2}):(\d{2})\b`)

	// "15/06/2023", possibly embedded in surrounding text.
	numericDatePattern = regexp.MustCompile(`\b(\d{1,2}/\d{1,2}/\d{4})\b`)
)

// DateParseError is returned when a listing date cannot be turned into a timestamp.
type DateParseError struct {
	Raw string
	Err error
}

func (e *DateParseError) Error() string {
	return fmt.Sprintf("parsing date %q: %v", e.Raw, e.Err)
}

func (e *DateParseError) Unwrap() error {
	return e.Err
}

// UnknownMonthError carries the month token that failed the lookup.
type UnknownMonthError struct {
	Month string
}

func (e *UnknownMonthError) Error() string {
	return fmt.Sprintf("unknown month [%s]", e.Month)
}

func (e *UnknownMonthError) Is(target error) bool {
	return target == ErrUnknownMonth
}

// DateParser turns venue date strings into timestamps in a fixed location.
type DateParser struct {
	loc *time.Location
}

// NewDateParser creates a parser that builds timestamps in loc.
// A nil loc means UTC.
func NewDateParser(loc *time.Location) *DateParser {
	if loc == nil {
		loc = time.UTC
	}
	return &DateParser{loc: loc}
}

// LoadDateParser creates a parser for the named IANA zone, falling back to
// UTC when the zone database has no such entry.
func LoadDateParser(zone string) (*DateParser, error) {
	if zone == "" {
		zone = DefaultTimezone
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return NewDateParser(time.UTC), fmt.Errorf("loading timezone %s: %w", zone, err)
	}
	return NewDateParser(loc), nil
}

// Location returns the zone timestamps are built in.
func (p *DateParser) Location() *time.Location {
	return p.loc
}

// Parse converts a listing date into a timestamp.
//
// Accepted shapes, tried in order:
//   - "DD <Hebrew month> YYYY <weekday> HH:MM", e.g. "05 מאי 2023 יום שישי 20:30"
//   - "DD/MM/YYYY" anywhere in the string, at midnight
//
// A string with the first shape but an unrecognized month fails with an
// UnknownMonthError instead of falling back.
func (p *DateParser) Parse(raw string) (time.Time, error) {
	text := strings.Join(strings.Fields(raw), " ")

	if m := longDatePattern.FindStringSubmatch(text); m != nil {
		month, ok := MonthFromName(m[2])
		if !ok {
			return time.Time{}, &DateParseError{Raw: raw, Err: &UnknownMonthError{Month: m[2]}}
		}
		day, _ := strconv.Atoi(m[1])
		year, _ := strconv.Atoi(m[3])
		hour, _ := strconv.Atoi(m[4])
		minute, _ := strconv.Atoi(m[5])
		if hour > 23 || minute > 59 || day < 1 || day > daysIn(month, year) {
			return time.Time{}, &DateParseError{Raw: raw, Err: ErrUnparseableDate}
		}
		return time.Date(year, month, day, hour, minute, 0, 0, p.loc), nil
	}

	if m := numericDatePattern.FindString(text); m != "" {
		t, err := time.ParseInLocation("2/1/2006", m, p.loc)
		if err == nil {
			return t, nil
		}
	}

	return time.Time{}, &DateParseError{Raw: raw, Err: ErrUnparseableDate}
}

// daysIn returns the number of days in month of year.
func daysIn(month time.Month, year int) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
