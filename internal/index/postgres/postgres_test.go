package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/pfrederiksen/venue-events/internal/index"
)

// newMockDB creates a sqlmock database with automatic cleanup and expectation checking.
func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		db.Close()
	})
	return db, mock
}

// eventRowColumns is the column list for scanDocument results.
var eventRowColumns = []string{
	"url", "title", "description", "source", "start_time", "end_time",
	"raw_location", "city", "latitude", "longitude", "created_at",
}

var (
	start   = time.Date(2023, time.May, 5, 20, 30, 0, 0, time.UTC)
	created = time.Date(2023, time.April, 1, 12, 0, 0, 0, time.UTC)
)

func TestUpsert(t *testing.T) {
	db, mock := newMockDB(t)
	idx := NewWithDB(db)

	doc := index.Document{
		Title:         "Concert",
		Description:   "A show",
		Source:        "Venue X",
		StartTime:     start,
		URL:           "https://x.test/e/1",
		RawLocation:   "1 Main St, Tel Aviv",
		City:          "תל אביב יפו",
		ExactLocation: []float64{32.08, 34.78},
		CreatedAt:     created,
	}

	mock.ExpectExec("INSERT INTO events .+ ON CONFLICT \\(url\\) DO UPDATE SET").
		WithArgs(
			"https://x.test/e/1", "Concert", "A show", "Venue X", sqlmock.AnyArg(), nil,
			"1 Main St, Tel Aviv", "תל אביב יפו", 32.08, 34.78, sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := idx.Upsert(context.Background(), doc); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
}

func TestUpsert_WithoutLocation(t *testing.T) {
	db, mock := newMockDB(t)
	idx := NewWithDB(db)

	end := start.Add(2 * time.Hour)
	doc := index.Document{
		Title:         "Lecture",
		StartTime:     start,
		EndTime:       &end,
		URL:           "https://x.test/e/2",
		ExactLocation: []float64{},
		CreatedAt:     created,
	}

	mock.ExpectExec("INSERT INTO events").
		WithArgs(
			"https://x.test/e/2", "Lecture", "", "", sqlmock.AnyArg(), sqlmock.AnyArg(),
			"", "", nil, nil, sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := idx.Upsert(context.Background(), doc); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
}

func TestUpsert_Error(t *testing.T) {
	db, mock := newMockDB(t)
	idx := NewWithDB(db)

	mock.ExpectExec("INSERT INTO events").WillReturnError(errors.New("value too long"))

	err := idx.Upsert(context.Background(), index.Document{URL: "https://x.test/e/3", StartTime: start})
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, index.ErrUnavailable) {
		t.Errorf("row-level failure classified as unavailable: %v", err)
	}
}

func TestSearch(t *testing.T) {
	db, mock := newMockDB(t)
	idx := NewWithDB(db)

	from := time.Date(2023, time.May, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	rows := sqlmock.NewRows(eventRowColumns).
		AddRow("https://x.test/e/1", "Jazz Night", "Live", "הקתדרה", start, end,
			"1 Main St", "תל אביב יפו", 32.08, 34.78, created).
		AddRow("https://x.test/e/2", "Jazz 100%", "", "הקתדרה", start.Add(24*time.Hour), nil,
			"", "תל אביב יפו", nil, nil, created)

	mock.ExpectQuery("SELECT .+ FROM events WHERE start_time >= \\$1 AND city = \\$2 AND \\(title ILIKE .+\\$3.+\\) ORDER BY start_time ASC, url ASC LIMIT \\$4").
		WithArgs(sqlmock.AnyArg(), "תל אביב יפו", `jazz 100\%`, 10).
		WillReturnRows(rows)

	docs, err := idx.Search(context.Background(), index.Query{
		Text:  " jazz 100% ",
		City:  "תל אביב יפו",
		From:  from,
		Limit: 10,
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d documents, want 2", len(docs))
	}

	if docs[0].EndTime == nil || !docs[0].EndTime.Equal(end) {
		t.Errorf("EndTime = %v, want %v", docs[0].EndTime, end)
	}
	if len(docs[0].ExactLocation) != 2 || docs[0].ExactLocation[0] != 32.08 {
		t.Errorf("ExactLocation = %v", docs[0].ExactLocation)
	}
	if docs[1].EndTime != nil {
		t.Errorf("EndTime = %v, want nil", docs[1].EndTime)
	}
	if docs[1].ExactLocation == nil || len(docs[1].ExactLocation) != 0 {
		t.Errorf("ExactLocation = %#v, want empty slice", docs[1].ExactLocation)
	}
}

func TestSearch_NoFilters(t *testing.T) {
	db, mock := newMockDB(t)
	idx := NewWithDB(db)

	mock.ExpectQuery("SELECT .+ FROM events ORDER BY start_time ASC, url ASC$").
		WithArgs().
		WillReturnRows(sqlmock.NewRows(eventRowColumns))

	docs, err := idx.Search(context.Background(), index.Query{City: "all"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if docs == nil || len(docs) != 0 {
		t.Errorf("Search() = %#v, want empty slice", docs)
	}
}

func TestCities(t *testing.T) {
	db, mock := newMockDB(t)
	idx := NewWithDB(db)

	mock.ExpectQuery("SELECT DISTINCT city FROM events WHERE city <> '' ORDER BY city").
		WillReturnRows(sqlmock.NewRows([]string{"city"}).AddRow("ירושלים").AddRow("תל אביב יפו"))

	cities, err := idx.Cities(context.Background())
	if err != nil {
		t.Fatalf("Cities() error = %v", err)
	}
	if len(cities) != 2 || cities[0] != "ירושלים" || cities[1] != "תל אביב יפו" {
		t.Errorf("Cities() = %v", cities)
	}
}

func TestPing(t *testing.T) {
	db, mock := newMockDB(t)
	idx := NewWithDB(db)

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	err := idx.Ping(context.Background())
	if !errors.Is(err, index.ErrUnavailable) {
		t.Errorf("Ping() error = %v, want ErrUnavailable", err)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		unavailable bool
	}{
		{"nil", nil, false},
		{"bad conn", driver.ErrBadConn, true},
		{"conn done", sql.ErrConnDone, true},
		{"network", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("refused")}, true},
		{"constraint", errors.New("violates check constraint"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			if tt.err == nil {
				if got != nil {
					t.Errorf("classify(nil) = %v", got)
				}
				return
			}
			if errors.Is(got, index.ErrUnavailable) != tt.unavailable {
				t.Errorf("classify(%v) = %v, unavailable want %v", tt.err, got, tt.unavailable)
			}
		})
	}
}

func TestEscapeLike(t *testing.T) {
	if got := escapeLike(`50%_off\`); got != `50\%\_off\\` {
		t.Errorf("escapeLike() = %q", got)
	}
}
