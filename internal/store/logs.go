package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tolmol-io/tolmol/internal/logbuf"
)

// maxLogRows bounds the persisted log trail; older rows are pruned on every
// append.
const maxLogRows = 10000

func (s *SQLiteStore) AppendLogEntries(entries []logbuf.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return persistErr("append logs", err)
	}
	defer tx.Rollback()

	for _, e := range entries {
		attrs, err := json.Marshal(e.Attrs)
		if err != nil {
			attrs = []byte("{}")
		}
		_, err = tx.Exec(`INSERT INTO log_entries (time, level, message, attrs) VALUES (?, ?, ?, ?)`,
			e.Time.Format(time.RFC3339Nano), e.Level, e.Message, string(attrs))
		if err != nil {
			return persistErr("append logs", err)
		}
	}

	_, err = tx.Exec(`DELETE FROM log_entries WHERE id NOT IN
		(SELECT id FROM log_entries ORDER BY id DESC LIMIT ?)`, maxLogRows)
	if err != nil {
		return persistErr("prune logs", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) RecentLogEntries(limit int) ([]logbuf.Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`SELECT time, level, message, attrs FROM log_entries
		ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: recent logs: %w", err)
	}
	defer rows.Close()

	var entries []logbuf.Entry
	for rows.Next() {
		var e logbuf.Entry
		var ts, attrs string
		if err := rows.Scan(&ts, &e.Level, &e.Message, &attrs); err != nil {
			return nil, fmt.Errorf("store: scan log entry: %w", err)
		}
		e.Time, _ = time.Parse(time.RFC3339Nano, ts)
		json.Unmarshal([]byte(attrs), &e.Attrs)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Newest-first from the query; flip to chronological order.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}
