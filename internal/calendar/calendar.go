// Package calendar renders indexed events as an iCalendar feed.
package calendar

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/pfrederiksen/venue-events/internal/index"
)

const (
	ProductID = "-//venue-events//venue-events//HE"

	// DefaultDuration is used for events whose listing has no end time.
	DefaultDuration = 2 * time.Hour

	uidDomain = "venue-events"
)

// Feed builds a calendar with one VEVENT per document.
func Feed(docs []index.Document, now time.Time) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.SetProductId(ProductID)
	cal.SetMethod(ical.MethodPublish)

	for _, d := range docs {
		addEvent(cal, d, now)
	}
	return cal
}

// Write serializes the feed for docs to w.
func Write(w io.Writer, docs []index.Document, now time.Time) error {
	_, err := io.WriteString(w, Feed(docs, now).Serialize())
	return err
}

func addEvent(cal *ical.Calendar, d index.Document, now time.Time) {
	ev := cal.AddEvent(UID(d.URL))
	ev.SetDtStampTime(now.UTC())
	if !d.CreatedAt.IsZero() {
		ev.SetCreatedTime(d.CreatedAt.UTC())
	}

	ev.SetStartAt(d.StartTime)
	end := d.StartTime.Add(DefaultDuration)
	if d.EndTime != nil && d.EndTime.After(d.StartTime) {
		end = *d.EndTime
	}
	ev.SetEndAt(end)

	ev.SetSummary(d.Title)
	if desc := description(d); desc != "" {
		ev.SetDescription(desc)
	}
	if loc := location(d); loc != "" {
		ev.SetLocation(loc)
	}
	if d.URL != "" {
		ev.SetURL(d.URL)
	}
	if d.Source != "" {
		ev.SetProperty(ical.ComponentPropertyCategories, d.Source)
	}
}

// UID derives a stable identifier from the event URL so re-fetched feeds
// update existing calendar entries instead of duplicating them.
func UID(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:16]) + "@" + uidDomain
}

func description(d index.Document) string {
	parts := make([]string, 0, 2)
	if d.Description != "" {
		parts = append(parts, d.Description)
	}
	if d.URL != "" {
		parts = append(parts, d.URL)
	}
	return strings.Join(parts, "\n\n")
}

// location prefers the venue's own address, falling back to the resolved city.
func location(d index.Document) string {
	switch {
	case d.RawLocation != "" && d.City != "" && !strings.Contains(d.RawLocation, d.City):
		return d.RawLocation + ", " + d.City
	case d.RawLocation != "":
		return d.RawLocation
	default:
		return d.City
	}
}
