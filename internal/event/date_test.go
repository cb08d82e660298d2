package event

import (
	"errors"
	"testing"
	"time"
)

func TestDateParser_Parse(t *testing.T) {
	p := NewDateParser(time.UTC)

	tests := []struct {
		name    string
		raw     string
		want    time.Time
		wantErr error
	}{
		{
			name: "long form with two-word weekday",
			raw:  "05 מאי 2023 יום שישי 20:30",
			want: time.Date(2023, time.May, 5, 20, 30, 0, 0, time.UTC),
		},
		{
			name: "long form with single weekday token",
			raw:  "12 דצמבר 2024 חמישי 09:15",
			want: time.Date(2024, time.December, 12, 9, 15, 0, 0, time.UTC),
		},
		{
			name: "long form January is month one",
			raw:  "01 ינואר 2025 יום רביעי 00:00",
			want: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "scraped whitespace is collapsed",
			raw:  "\n  17   אוגוסט 2023\n\t יום חמישי   21:00 ",
			want: time.Date(2023, time.August, 17, 21, 0, 0, 0, time.UTC),
		},
		{
			name: "long form after a label",
			raw:  "מועד: 05 מאי 2023 יום שישי 20:30",
			want: time.Date(2023, time.May, 5, 20, 30, 0, 0, time.UTC),
		},
		{
			name: "long form followed by a note",
			raw:  "05 מאי 2023 יום שישי 20:30 (פתיחת דלתות 19:45)",
			want: time.Date(2023, time.May, 5, 20, 30, 0, 0, time.UTC),
		},
		{
			name: "numeric fallback",
			raw:  "15/06/2023",
			want: time.Date(2023, time.June, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "numeric fallback embedded in text",
			raw:  "יום ג' 07/11/2023",
			want: time.Date(2023, time.November, 7, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "numeric fallback single digits",
			raw:  "3/9/2024",
			want: time.Date(2024, time.September, 3, 0, 0, 0, 0, time.UTC),
		},
		{
			name:    "unknown month does not fall back",
			raw:     "05 XXXX 2023 ... 20:30",
			wantErr: ErrUnknownMonth,
		},
		{
			name:    "month names are case and form sensitive",
			raw:     "05 May 2023 Friday 20:30",
			wantErr: ErrUnknownMonth,
		},
		{
			name:    "neither shape",
			raw:     "next friday",
			wantErr: ErrUnparseableDate,
		},
		{
			name:    "empty",
			raw:     "",
			wantErr: ErrUnparseableDate,
		},
		{
			name:    "impossible calendar day",
			raw:     "31/02/2023",
			wantErr: ErrUnparseableDate,
		},
		{
			name:    "impossible long form day",
			raw:     "31 אפריל 2023 יום שני 20:00",
			wantErr: ErrUnparseableDate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Parse(tt.raw)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Parse(%q) error = %v, want %v", tt.raw, err, tt.wantErr)
				}
				var parseErr *DateParseError
				if !errors.As(err, &parseErr) {
					t.Fatalf("Parse(%q) error %T is not a *DateParseError", tt.raw, err)
				}
				if parseErr.Raw != tt.raw {
					t.Errorf("DateParseError.Raw = %q, want %q", parseErr.Raw, tt.raw)
				}
				return
			}

			if err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", tt.raw, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("Parse(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestDateParser_EveryMonth(t *testing.T) {
	p := NewDateParser(time.UTC)

	for name, month := range hebrewMonths {
		t.Run(name, func(t *testing.T) {
			got, err := p.Parse("10 " + name + " 2026 יום ראשון 19:45")
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if got.Year() != 2026 || got.Day() != 10 || got.Hour() != 19 || got.Minute() != 45 {
				t.Errorf("Parse() = %v, want 2026-xx-10 19:45", got)
			}
			if got.Month() != month {
				t.Errorf("Parse().Month() = %v, want %v", got.Month(), month)
			}
		})
	}
}

func TestDateParser_UnknownMonthToken(t *testing.T) {
	_, err := NewDateParser(nil).Parse("05 XXXX 2023 ... 20:30")

	var monthErr *UnknownMonthError
	if !errors.As(err, &monthErr) {
		t.Fatalf("error = %v, want *UnknownMonthError", err)
	}
	if monthErr.Month != "XXXX" {
		t.Errorf("Month = %q, want XXXX", monthErr.Month)
	}
}

func TestDateParser_Location(t *testing.T) {
	loc := time.FixedZone("IDT", 3*60*60)
	p := NewDateParser(loc)

	got, err := p.Parse("05 מאי 2023 יום שישי 20:30")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got.Location() != loc {
		t.Errorf("Location() = %v, want %v", got.Location(), loc)
	}
	if want := time.Date(2023, time.May, 5, 17, 30, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("Parse() = %v, want instant %v", got.UTC(), want)
	}
}

func TestLoadDateParser_BadZone(t *testing.T) {
	p, err := LoadDateParser("Not/AZone")
	if err == nil {
		t.Fatal("expected error for unknown zone")
	}
	if p == nil || p.Location() != time.UTC {
		t.Errorf("expected UTC fallback parser, got %v", p)
	}
}

func TestValidateMonths(t *testing.T) {
	if err := validateMonths(hebrewMonths); err != nil {
		t.Fatalf("validateMonths(hebrewMonths) = %v", err)
	}

	short := map[string]time.Month{"ינואר": time.January}
	if err := validateMonths(short); err == nil {
		t.Error("expected error for incomplete table")
	}

	dup := make(map[string]time.Month, 12)
	for name, m := range hebrewMonths {
		dup[name] = m
	}
	dup["מרץ"] = time.April
	if err := validateMonths(dup); err == nil {
		t.Error("expected error for duplicated month")
	}
}
