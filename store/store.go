// Package store persists run outcomes, slot sightings and blocked IPs in
// SQLite. Callers treat writes as best-effort: failures are logged by the
// caller and never abort a run.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/embassy-watch/embassy-eye/models"
)

// timeFormat keeps full timestamp precision through the TEXT column. The
// fractional part is fixed-width so the TEXT values sort the same way the
// instants do; RFC3339Nano trims trailing zeros and breaks that.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS run_statistics (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	embassy    TEXT NOT NULL,
	location   TEXT,
	service    TEXT,
	run_at     TEXT NOT NULL,
	outcome    TEXT NOT NULL,
	ip_address TEXT,
	country    TEXT,
	notes      TEXT
);
CREATE INDEX IF NOT EXISTS ix_run_statistics_embassy ON run_statistics(embassy);
CREATE INDEX IF NOT EXISTS ix_run_statistics_location ON run_statistics(location);
CREATE INDEX IF NOT EXISTS ix_run_statistics_run_at ON run_statistics(run_at);
CREATE INDEX IF NOT EXISTS ix_run_statistics_outcome ON run_statistics(outcome);

CREATE TABLE IF NOT EXISTS slot_statistics (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	embassy     TEXT NOT NULL,
	location    TEXT,
	service     TEXT,
	detected_at TEXT NOT NULL,
	notes       TEXT
);
CREATE INDEX IF NOT EXISTS ix_slot_statistics_embassy ON slot_statistics(embassy);
CREATE INDEX IF NOT EXISTS ix_slot_statistics_detected_at ON slot_statistics(detected_at);

CREATE TABLE IF NOT EXISTS blocked_vpns (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	ip_address TEXT NOT NULL,
	country    TEXT,
	embassy    TEXT,
	blocked_at TEXT NOT NULL,
	notes      TEXT
);
CREATE INDEX IF NOT EXISTS ix_blocked_vpns_ip_address ON blocked_vpns(ip_address);
CREATE INDEX IF NOT EXISTS ix_blocked_vpns_blocked_at ON blocked_vpns(blocked_at);
`

// Store wraps the statistics database.
type Store struct {
	db *sql.DB
}

// New wraps an already opened database. Call Init before use.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open opens (or creates) the database at path with WAL and a busy
// timeout, and creates the tables.
func Open(path string) (*Store, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(10000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open statistics db: %w", err)
	}
	// modernc sqlite serializes access per connection; one connection
	// avoids SQLITE_BUSY between concurrent writers.
	db.SetMaxOpenConns(1)

	s := New(db)
	if err := s.Init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Init creates the tables and indexes.
func (s *Store) Init() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("init statistics schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun writes one completed run.
func (s *Store) RecordRun(r models.RunRecord) (int64, error) {
	runAt := r.RunAt
	if runAt.IsZero() {
		runAt = time.Now().UTC()
	}
	res, err := s.db.Exec(
		`INSERT INTO run_statistics (embassy, location, service, run_at, outcome, ip_address, country, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Embassy, r.Location, r.Service, runAt.UTC().Format(timeFormat),
		r.Outcome, r.IPAddress, r.Country, r.Notes,
	)
	if err != nil {
		return 0, fmt.Errorf("record run: %w", err)
	}
	return res.LastInsertId()
}

// RecordSlotFound writes one slot sighting.
func (s *Store) RecordSlotFound(rec models.SlotRecord) (int64, error) {
	detectedAt := rec.DetectedAt
	if detectedAt.IsZero() {
		detectedAt = time.Now().UTC()
	}
	res, err := s.db.Exec(
		`INSERT INTO slot_statistics (embassy, location, service, detected_at, notes)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.Embassy, rec.Location, rec.Service, detectedAt.UTC().Format(timeFormat), rec.Notes,
	)
	if err != nil {
		return 0, fmt.Errorf("record slot: %w", err)
	}
	return res.LastInsertId()
}

// RecordBlockedIP writes one blocked-IP notice.
func (s *Store) RecordBlockedIP(rec models.BlockedIP) (int64, error) {
	blockedAt := rec.BlockedAt
	if blockedAt.IsZero() {
		blockedAt = time.Now().UTC()
	}
	res, err := s.db.Exec(
		`INSERT INTO blocked_vpns (ip_address, country, embassy, blocked_at, notes)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.IPAddress, rec.Country, rec.Embassy, blockedAt.UTC().Format(timeFormat), rec.Notes,
	)
	if err != nil {
		return 0, fmt.Errorf("record blocked ip: %w", err)
	}
	return res.LastInsertId()
}

// IsIPRecentlyBlocked reports whether ip was recorded blocked within the
// lookback window.
func (s *Store) IsIPRecentlyBlocked(ip string, window time.Duration) (bool, error) {
	cutoff := time.Now().UTC().Add(-window).Format(timeFormat)
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(1) FROM blocked_vpns WHERE ip_address = ? AND blocked_at >= ?`,
		ip, cutoff,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check blocked ip: %w", err)
	}
	return n > 0, nil
}

// RunFilter narrows RecentRuns. Zero values mean "no filter".
type RunFilter struct {
	Embassy  string
	Location string
	Days     int
	Limit    int
}

// RecentRuns returns runs in reverse chronological order.
func (s *Store) RecentRuns(f RunFilter) ([]models.RunRecord, error) {
	if f.Days <= 0 {
		f.Days = 7
	}
	if f.Limit <= 0 {
		f.Limit = 100
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -f.Days).Format(timeFormat)

	query := `SELECT id, embassy, location, service, run_at, outcome, ip_address, country, notes
	          FROM run_statistics WHERE run_at >= ?`
	args := []any{cutoff}
	if f.Embassy != "" {
		query += ` AND embassy = ?`
		args = append(args, f.Embassy)
	}
	if f.Location != "" {
		query += ` AND location = ?`
		args = append(args, f.Location)
	}
	query += ` ORDER BY run_at DESC LIMIT ?`
	args = append(args, f.Limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []models.RunRecord
	for rows.Next() {
		var r models.RunRecord
		var runAt string
		if err := rows.Scan(&r.ID, &r.Embassy, &r.Location, &r.Service, &runAt,
			&r.Outcome, &r.IPAddress, &r.Country, &r.Notes); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if r.RunAt, err = time.Parse(timeFormat, runAt); err != nil {
			return nil, fmt.Errorf("parse run_at %q: %w", runAt, err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RecentBlockedIPs returns blocked addresses seen within the window.
func (s *Store) RecentBlockedIPs(window time.Duration, limit int) ([]models.BlockedIP, error) {
	if limit <= 0 {
		limit = 100
	}
	cutoff := time.Now().UTC().Add(-window).Format(timeFormat)

	rows, err := s.db.Query(
		`SELECT id, ip_address, country, embassy, blocked_at, notes
		 FROM blocked_vpns WHERE blocked_at >= ?
		 ORDER BY blocked_at DESC LIMIT ?`,
		cutoff, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query blocked ips: %w", err)
	}
	defer rows.Close()

	var blocked []models.BlockedIP
	for rows.Next() {
		var b models.BlockedIP
		var blockedAt string
		if err := rows.Scan(&b.ID, &b.IPAddress, &b.Country, &b.Embassy, &blockedAt, &b.Notes); err != nil {
			return nil, fmt.Errorf("scan blocked ip: %w", err)
		}
		if b.BlockedAt, err = time.Parse(timeFormat, blockedAt); err != nil {
			return nil, fmt.Errorf("parse blocked_at %q: %w", blockedAt, err)
		}
		blocked = append(blocked, b)
	}
	return blocked, rows.Err()
}

// OutcomeSummary aggregates run outcomes per location over the lookback
// window.
func (s *Store) OutcomeSummary(days int, embassy string) ([]models.OutcomeCount, error) {
	if days <= 0 {
		days = 7
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days).Format(timeFormat)

	query := `SELECT location, outcome, COUNT(1) FROM run_statistics WHERE run_at >= ?`
	args := []any{cutoff}
	if embassy != "" {
		query += ` AND embassy = ?`
		args = append(args, embassy)
	}
	query += ` GROUP BY location, outcome ORDER BY location, outcome`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query summary: %w", err)
	}
	defer rows.Close()

	var counts []models.OutcomeCount
	for rows.Next() {
		var c models.OutcomeCount
		if err := rows.Scan(&c.Location, &c.Outcome, &c.Count); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}
