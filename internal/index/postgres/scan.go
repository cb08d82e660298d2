package postgres

import (
	"database/sql"
	"time"

	"github.com/pfrederiksen/venue-events/internal/index"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanDocument scans a single row in eventColumns order.
func scanDocument(row scannable) (index.Document, error) {
	var (
		d         index.Document
		endTime   sql.NullTime
		latitude  sql.NullFloat64
		longitude sql.NullFloat64
	)

	err := row.Scan(
		&d.URL,
		&d.Title,
		&d.Description,
		&d.Source,
		&d.StartTime,
		&endTime,
		&d.RawLocation,
		&d.City,
		&latitude,
		&longitude,
		&d.CreatedAt,
	)
	if err != nil {
		return index.Document{}, err
	}

	if endTime.Valid {
		t := endTime.Time
		d.EndTime = &t
	}
	d.ExactLocation = []float64{}
	if latitude.Valid && longitude.Valid {
		d.ExactLocation = []float64{latitude.Float64, longitude.Float64}
	}
	return d, nil
}

// nullTimePtr converts an optional time into a nullable column value.
func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// nullCoordinates splits [lat, lng] into nullable columns; anything else is NULL.
func nullCoordinates(loc []float64) (sql.NullFloat64, sql.NullFloat64) {
	if len(loc) != 2 {
		return sql.NullFloat64{}, sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: loc[0], Valid: true}, sql.NullFloat64{Float64: loc[1], Valid: true}
}
