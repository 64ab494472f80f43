package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tolmol-io/tolmol/internal/safety"
	"github.com/tolmol-io/tolmol/pkg/protocol"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// persistErr tags write failures so callers can match
// protocol.ErrPersistence through the wrapping.
func persistErr(op string, err error) error {
	return fmt.Errorf("store: %s: %v: %w", op, err, protocol.ErrPersistence)
}

// NewSQLiteStore opens (or creates) a SQLite database and runs migrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}

	// Enable WAL mode for better concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: wal: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS trips (
			id             TEXT PRIMARY KEY,
			user_id        TEXT NOT NULL DEFAULT '',
			request        TEXT NOT NULL,
			phase          TEXT NOT NULL DEFAULT 'planning',
			deal           TEXT,
			failure_reason TEXT NOT NULL DEFAULT '',
			created_at     TEXT NOT NULL,
			updated_at     TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS vendors (
			phone            TEXT PRIMARY KEY,
			name             TEXT NOT NULL DEFAULT '',
			category         TEXT NOT NULL DEFAULT '',
			location         TEXT NOT NULL DEFAULT '',
			total_calls      INTEGER NOT NULL DEFAULT 0,
			successful_deals INTEGER NOT NULL DEFAULT 0,
			avg_discount_pct REAL NOT NULL DEFAULT 0,
			trust_score      REAL NOT NULL DEFAULT 0,
			blacklisted      INTEGER NOT NULL DEFAULT 0,
			blacklist_reason TEXT NOT NULL DEFAULT '',
			first_seen       TEXT NOT NULL,
			last_seen        TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS sessions (
			id                TEXT PRIMARY KEY,
			trip_id           TEXT NOT NULL REFERENCES trips(id),
			vendor_phone      TEXT NOT NULL,
			vendor_name       TEXT NOT NULL DEFAULT '',
			phase             TEXT NOT NULL,
			round             INTEGER NOT NULL DEFAULT 0,
			market_rate       REAL NOT NULL DEFAULT 0,
			vendor_last_price REAL NOT NULL DEFAULT 0,
			agent_last_price  REAL NOT NULL DEFAULT 0,
			final_price       REAL NOT NULL DEFAULT 0,
			stretch_flag      INTEGER NOT NULL DEFAULT 0,
			outcome           TEXT NOT NULL DEFAULT '',
			safety_flags      TEXT NOT NULL DEFAULT '[]',
			started_at        TEXT NOT NULL,
			ended_at          TEXT
		);

		CREATE TABLE IF NOT EXISTS session_events (
			session_id TEXT NOT NULL REFERENCES sessions(id),
			seq        INTEGER NOT NULL,
			speaker    TEXT NOT NULL,
			utterance  TEXT NOT NULL,
			phase      TEXT NOT NULL,
			timestamp  TEXT NOT NULL,
			PRIMARY KEY (session_id, seq)
		);

		CREATE TABLE IF NOT EXISTS log_entries (
			id      INTEGER PRIMARY KEY AUTOINCREMENT,
			time    TEXT NOT NULL,
			level   TEXT NOT NULL,
			message TEXT NOT NULL,
			attrs   TEXT NOT NULL DEFAULT '{}'
		);

		CREATE INDEX IF NOT EXISTS idx_trips_phase ON trips(phase);
		CREATE INDEX IF NOT EXISTS idx_sessions_trip ON sessions(trip_id);
		CREATE INDEX IF NOT EXISTS idx_vendors_category ON vendors(category);
	`)
	if err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveTrip(t *protocol.TripState) error {
	request, err := json.Marshal(t.Request)
	if err != nil {
		return persistErr("save trip", err)
	}
	var deal *string
	if t.Deal != nil {
		b, err := json.Marshal(t.Deal)
		if err != nil {
			return persistErr("save trip", err)
		}
		v := string(b)
		deal = &v
	}

	_, err = s.db.Exec(`
		INSERT INTO trips (id, user_id, request, phase, deal, failure_reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			phase=excluded.phase, deal=excluded.deal,
			failure_reason=excluded.failure_reason, updated_at=excluded.updated_at
	`, t.ID, t.UserID, string(request), string(t.Phase), deal, t.FailureReason,
		t.CreatedAt.Format(time.RFC3339), time.Now().Format(time.RFC3339))
	if err != nil {
		return persistErr("save trip", err)
	}
	return nil
}

func (s *SQLiteStore) GetTrip(id string) (*protocol.TripState, error) {
	row := s.db.QueryRow(`SELECT id, user_id, request, phase, deal, failure_reason, created_at, updated_at FROM trips WHERE id = ?`, id)

	t, err := scanTripFromRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("trip %q: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("store: get trip: %w", err)
	}
	return t, nil
}

func (s *SQLiteStore) ListTrips(filter TripFilter) ([]*protocol.TripState, error) {
	query := "SELECT id, user_id, request, phase, deal, failure_reason, created_at, updated_at FROM trips WHERE 1=1"
	var args []any

	if filter.Phase != nil {
		query += " AND phase = ?"
		args = append(args, string(*filter.Phase))
	}
	if filter.Active {
		query += " AND phase NOT IN (?, ?)"
		args = append(args, string(protocol.TripComplete), string(protocol.TripFailed))
	}
	if filter.UserID != "" {
		query += " AND user_id = ?"
		args = append(args, filter.UserID)
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list trips: %w", err)
	}
	defer rows.Close()

	var trips []*protocol.TripState
	for rows.Next() {
		t, err := scanTripFromRow(rows)
		if err != nil {
			return nil, fmt.Errorf("store: list trips scan: %w", err)
		}
		trips = append(trips, t)
	}
	return trips, rows.Err()
}

func (s *SQLiteStore) UpdateTripPhase(id string, phase protocol.TripPhase) error {
	result, err := s.db.Exec(`UPDATE trips SET phase = ?, updated_at = ? WHERE id = ?`,
		string(phase), time.Now().Format(time.RFC3339), id)
	if err != nil {
		return persistErr("update trip phase", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("trip %q: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) GetVendor(phone string) (*protocol.Vendor, error) {
	row := s.db.QueryRow(`SELECT phone, name, category, location, total_calls, successful_deals,
		avg_discount_pct, trust_score, blacklisted, blacklist_reason, first_seen, last_seen
		FROM vendors WHERE phone = ?`, phone)

	v, err := scanVendorFromRow(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("vendor %q: %w", phone, ErrNotFound)
		}
		return nil, fmt.Errorf("store: get vendor: %w", err)
	}
	return v, nil
}

func (s *SQLiteStore) UpsertVendor(v *protocol.Vendor) error {
	firstSeen := v.FirstSeen
	if firstSeen.IsZero() {
		firstSeen = time.Now()
	}
	lastSeen := v.LastSeen
	if lastSeen.IsZero() {
		lastSeen = time.Now()
	}

	// Stats and blacklist state stay untouched on conflict; they have their
	// own write paths.
	_, err := s.db.Exec(`
		INSERT INTO vendors (phone, name, category, location, trust_score, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(phone) DO UPDATE SET
			name=excluded.name, category=excluded.category, location=excluded.location,
			last_seen=excluded.last_seen
	`, v.Phone, v.Name, string(v.Category), v.Location, v.Stats.TrustScore,
		firstSeen.Format(time.RFC3339), lastSeen.Format(time.RFC3339))
	if err != nil {
		return persistErr("upsert vendor", err)
	}
	return nil
}

// RecordCallResult reads, recomputes and writes the vendor's statistics in
// one transaction so concurrent sessions never lose an update.
func (s *SQLiteStore) RecordCallResult(phone string, success bool, discountPct float64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return persistErr("record call", err)
	}
	defer tx.Rollback()

	var stats protocol.VendorStats
	err = tx.QueryRow(`SELECT total_calls, successful_deals, avg_discount_pct, trust_score
		FROM vendors WHERE phone = ?`, phone).
		Scan(&stats.TotalCalls, &stats.SuccessfulDeals, &stats.AvgDiscountPct, &stats.TrustScore)
	if err == sql.ErrNoRows {
		return fmt.Errorf("vendor %q: %w", phone, ErrNotFound)
	}
	if err != nil {
		return persistErr("record call", err)
	}

	stats = safety.TrustUpdate(stats, success, discountPct)

	_, err = tx.Exec(`UPDATE vendors SET total_calls = ?, successful_deals = ?,
		avg_discount_pct = ?, trust_score = ?, last_seen = ? WHERE phone = ?`,
		stats.TotalCalls, stats.SuccessfulDeals, stats.AvgDiscountPct, stats.TrustScore,
		time.Now().Format(time.RFC3339), phone)
	if err != nil {
		return persistErr("record call", err)
	}
	if err := tx.Commit(); err != nil {
		return persistErr("record call", err)
	}
	return nil
}

func (s *SQLiteStore) BlacklistVendor(phone, reason string) error {
	result, err := s.db.Exec(`UPDATE vendors SET blacklisted = 1, blacklist_reason = ? WHERE phone = ?`,
		reason, phone)
	if err != nil {
		return persistErr("blacklist vendor", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("vendor %q: %w", phone, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) SaveSession(sess *protocol.Session) error {
	flags, _ := json.Marshal(sess.SafetyFlags)
	var endedAt *string
	if !sess.EndedAt.IsZero() {
		v := sess.EndedAt.Format(time.RFC3339)
		endedAt = &v
	}

	tx, err := s.db.Begin()
	if err != nil {
		return persistErr("save session", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO sessions (id, trip_id, vendor_phone, vendor_name, phase, round, market_rate,
			vendor_last_price, agent_last_price, final_price, stretch_flag, outcome, safety_flags,
			started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			phase=excluded.phase, round=excluded.round,
			vendor_last_price=excluded.vendor_last_price, agent_last_price=excluded.agent_last_price,
			final_price=excluded.final_price, stretch_flag=excluded.stretch_flag,
			outcome=excluded.outcome, safety_flags=excluded.safety_flags, ended_at=excluded.ended_at
	`, sess.ID, sess.TripID, sess.VendorPhone, sess.VendorName, string(sess.Phase), sess.Round,
		sess.MarketRate, sess.VendorLastPrice, sess.AgentLastPrice, sess.FinalPrice,
		boolToInt(sess.StretchFlag), string(sess.Outcome), string(flags),
		sess.StartedAt.Format(time.RFC3339), endedAt)
	if err != nil {
		return persistErr("save session", err)
	}

	if _, err := tx.Exec(`DELETE FROM session_events WHERE session_id = ?`, sess.ID); err != nil {
		return persistErr("save session events", err)
	}
	for i, e := range sess.Events {
		_, err := tx.Exec(`INSERT INTO session_events (session_id, seq, speaker, utterance, phase, timestamp) VALUES (?, ?, ?, ?, ?, ?)`,
			sess.ID, i, string(e.Speaker), e.Utterance, string(e.Phase), e.Timestamp.Format(time.RFC3339Nano))
		if err != nil {
			return persistErr("save session events", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return persistErr("save session", err)
	}
	return nil
}

func (s *SQLiteStore) ListSessions(tripID string) ([]*protocol.Session, error) {
	rows, err := s.db.Query(`SELECT id, trip_id, vendor_phone, vendor_name, phase, round, market_rate,
		vendor_last_price, agent_last_price, final_price, stretch_flag, outcome, safety_flags,
		started_at, ended_at FROM sessions WHERE trip_id = ? ORDER BY started_at`, tripID)
	if err != nil {
		return nil, fmt.Errorf("store: list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*protocol.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("store: list sessions scan: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, sess := range sessions {
		events, err := s.loadEvents(sess.ID)
		if err != nil {
			return nil, err
		}
		sess.Events = events
	}
	return sessions, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection (for testing or direct access).
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// --- helpers ---

func (s *SQLiteStore) loadEvents(sessionID string) ([]protocol.SessionEvent, error) {
	rows, err := s.db.Query(`SELECT speaker, utterance, phase, timestamp FROM session_events WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: load events: %w", err)
	}
	defer rows.Close()

	var events []protocol.SessionEvent
	for rows.Next() {
		var e protocol.SessionEvent
		var speaker, phase, ts string
		if err := rows.Scan(&speaker, &e.Utterance, &phase, &ts); err != nil {
			return nil, fmt.Errorf("store: scan event: %w", err)
		}
		e.Speaker = protocol.Speaker(speaker)
		e.Phase = protocol.SessionPhase(phase)
		e.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		events = append(events, e)
	}
	return events, rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanTripFromRow(s scannable) (*protocol.TripState, error) {
	var t protocol.TripState
	var requestJSON, phase, createdAtStr, updatedAtStr string
	var dealJSON *string

	err := s.Scan(&t.ID, &t.UserID, &requestJSON, &phase, &dealJSON, &t.FailureReason,
		&createdAtStr, &updatedAtStr)
	if err != nil {
		return nil, err
	}

	t.Phase = protocol.TripPhase(phase)
	if err := json.Unmarshal([]byte(requestJSON), &t.Request); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	if dealJSON != nil {
		var d protocol.Deal
		if err := json.Unmarshal([]byte(*dealJSON), &d); err != nil {
			return nil, fmt.Errorf("decode deal: %w", err)
		}
		t.Deal = &d
	}
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAtStr)
	t.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAtStr)
	return &t, nil
}

func scanVendorFromRow(s scannable) (*protocol.Vendor, error) {
	var v protocol.Vendor
	var category, firstSeenStr, lastSeenStr string
	var blacklisted int

	err := s.Scan(&v.Phone, &v.Name, &category, &v.Location,
		&v.Stats.TotalCalls, &v.Stats.SuccessfulDeals, &v.Stats.AvgDiscountPct, &v.Stats.TrustScore,
		&blacklisted, &v.BlacklistReason, &firstSeenStr, &lastSeenStr)
	if err != nil {
		return nil, err
	}

	v.Category = protocol.VendorCategory(category)
	v.Blacklisted = blacklisted != 0
	v.FirstSeen, _ = time.Parse(time.RFC3339, firstSeenStr)
	v.LastSeen, _ = time.Parse(time.RFC3339, lastSeenStr)
	return &v, nil
}

func scanSession(rows *sql.Rows) (*protocol.Session, error) {
	var sess protocol.Session
	var phase, outcome, flagsJSON, startedAtStr string
	var endedAtStr *string
	var stretch int

	err := rows.Scan(&sess.ID, &sess.TripID, &sess.VendorPhone, &sess.VendorName, &phase,
		&sess.Round, &sess.MarketRate, &sess.VendorLastPrice, &sess.AgentLastPrice,
		&sess.FinalPrice, &stretch, &outcome, &flagsJSON, &startedAtStr, &endedAtStr)
	if err != nil {
		return nil, err
	}

	sess.Phase = protocol.SessionPhase(phase)
	sess.Outcome = protocol.Outcome(outcome)
	sess.StretchFlag = stretch != 0
	json.Unmarshal([]byte(flagsJSON), &sess.SafetyFlags)
	sess.StartedAt, _ = time.Parse(time.RFC3339, startedAtStr)
	if endedAtStr != nil {
		sess.EndedAt, _ = time.Parse(time.RFC3339, *endedAtStr)
	}
	return &sess, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
