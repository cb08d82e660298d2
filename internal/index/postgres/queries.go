package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pfrederiksen/venue-events/internal/index"
)

// eventColumns is the column list used for SELECT statements on the events table.
const eventColumns = `url, title, description, source, start_time, end_time,
	raw_location, city, latitude, longitude, created_at`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// queryUpsert writes doc, replacing every column of an existing row with the same url.
func queryUpsert(ctx context.Context, db executor, d index.Document) error {
	lat, lng := nullCoordinates(d.ExactLocation)
	_, err := db.ExecContext(ctx, `
		INSERT INTO events (
			url, title, description, source, start_time, end_time,
			raw_location, city, latitude, longitude, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11
		)
		ON CONFLICT (url) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			source = EXCLUDED.source,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			raw_location = EXCLUDED.raw_location,
			city = EXCLUDED.city,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			created_at = EXCLUDED.created_at`,
		d.URL,
		d.Title,
		d.Description,
		d.Source,
		d.StartTime,
		nullTimePtr(d.EndTime),
		d.RawLocation,
		d.City,
		lat,
		lng,
		d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert event %s: %w", d.URL, err)
	}
	return nil
}

func querySearch(ctx context.Context, db executor, q index.Query) ([]index.Document, error) {
	var (
		whereClauses []string
		args         []any
		argIdx       int
	)

	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	if !q.From.IsZero() {
		whereClauses = append(whereClauses, "start_time >= "+nextArg())
		args = append(args, q.From)
	}

	if city := q.CityFilter(); city != "" {
		whereClauses = append(whereClauses, "city = "+nextArg())
		args = append(args, city)
	}

	if text := strings.TrimSpace(q.Text); text != "" {
		p := nextArg()
		whereClauses = append(whereClauses,
			fmt.Sprintf("(title ILIKE '%%' || %s || '%%' OR description ILIKE '%%' || %s || '%%')", p, p))
		args = append(args, escapeLike(text))
	}

	whereSQL := ""
	if len(whereClauses) > 0 {
		whereSQL = " WHERE " + strings.Join(whereClauses, " AND ")
	}

	dataQuery := "SELECT " + eventColumns + " FROM events" + whereSQL + " ORDER BY start_time ASC, url ASC"
	if q.Limit > 0 {
		dataQuery += " LIMIT " + nextArg()
		args = append(args, q.Limit)
	}

	rows, err := db.QueryContext(ctx, dataQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("search events: %w", err)
	}
	defer rows.Close()

	docs := make([]index.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan events: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search events: %w", err)
	}
	return docs, nil
}

func queryCities(ctx context.Context, db executor) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT DISTINCT city FROM events WHERE city <> '' ORDER BY city`)
	if err != nil {
		return nil, fmt.Errorf("list cities: %w", err)
	}
	defer rows.Close()

	cities := make([]string, 0)
	for rows.Next() {
		var city string
		if err := rows.Scan(&city); err != nil {
			return nil, fmt.Errorf("scan city: %w", err)
		}
		cities = append(cities, city)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list cities: %w", err)
	}
	return cities, nil
}

// escapeLike escapes ILIKE wildcards so user text matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
