package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	_ "github.com/mattn/go-sqlite3"

	"github.com/i474232898/weather-eto-aggregation/internal/units"
	"github.com/i474232898/weather-eto-aggregation/internal/weather"
)

//go:embed sql/schema.sql
var schemaSQL string

//go:embed sql/upsert-eto.sql
var upsertEToSQL string

//go:embed sql/get-eto-history.sql
var getEToHistorySQL string

// EToRecord is one stored day slot.
type EToRecord struct {
	Location   string               `json:"location"`
	Date       string               `json:"date"`
	Day        int                  `json:"day"`
	Status     weather.ReportStatus `json:"status"`
	EToMm      *float64             `json:"etoMm,omitempty"`
	Units      units.System         `json:"units"`
	Reason     string               `json:"reason,omitempty"`
	RecordedAt time.Time            `json:"recordedAt"`
}

// SQLiteHistory keeps one evapotranspiration row per location and date. A
// later refresh replaces the row unless it would turn a computed day back
// into a no-data one.
type SQLiteHistory struct {
	db    *sql.DB
	clock clockwork.Clock
}

// OpenSQLite opens (creating if needed) a file backed database at path.
// ":memory:" opens a private in-memory database.
func OpenSQLite(path string) (*sql.DB, error) {
	dsn := path
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("mkdir %s: %w", dir, err)
			}
		}
		dsn = "file:" + path + "?_busy_timeout=5000&_journal_mode=WAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	// one connection: writes are serialized anyway and :memory: is per connection
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// NewSQLiteHistory creates the schema if missing.
func NewSQLiteHistory(ctx context.Context, db *sql.DB, clock clockwork.Clock) (*SQLiteHistory, error) {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return nil, fmt.Errorf("create eto_history: %w", err)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &SQLiteHistory{db: db, clock: clock}, nil
}

// Publish stores a day report. Reports without a date have nothing to key on
// and are skipped.
func (h *SQLiteHistory) Publish(ctx context.Context, loc weather.Location, report weather.DayReport) error {
	if report.Date == "" {
		return nil
	}

	var eto any
	if report.EToMm != nil {
		eto = *report.EToMm
	}

	_, err := h.db.ExecContext(ctx, upsertEToSQL,
		loc.Key(),
		report.Date,
		report.Day,
		string(report.Status),
		eto,
		string(report.Units),
		report.Reason,
		h.clock.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert eto history: %w", err)
	}
	return nil
}

// History returns the rows of loc whose date falls within [from, to].
func (h *SQLiteHistory) History(ctx context.Context, loc weather.Location, from, to time.Time) ([]EToRecord, error) {
	rows, err := h.db.QueryContext(ctx, getEToHistorySQL,
		loc.Key(), from.Format(time.DateOnly), to.Format(time.DateOnly))
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close eto history rows", "error", err)
		}
	}()

	var out []EToRecord
	for rows.Next() {
		var (
			rec      EToRecord
			status   string
			sys      string
			eto      sql.NullFloat64
			recorded string
		)
		if err := rows.Scan(&rec.Location, &rec.Date, &rec.Day, &status, &eto, &sys, &rec.Reason, &recorded); err != nil {
			return nil, err
		}
		rec.Status = weather.ReportStatus(status)
		rec.Units = units.System(sys)
		if eto.Valid {
			v := eto.Float64
			rec.EToMm = &v
		}
		if rec.RecordedAt, err = time.Parse(time.RFC3339Nano, recorded); err != nil {
			return nil, fmt.Errorf("parse recorded_at %q: %w", recorded, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
