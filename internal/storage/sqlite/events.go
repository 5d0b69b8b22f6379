// Package sqlite persists enforcement events. Audio and transcripts are
// never stored; only the matched terms and the action taken.
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// EnforcementEvent is one audit row.
type EnforcementEvent struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	SpeakerID string    `json:"speaker_id"`
	Terms     []string  `json:"terms"`
	Action    string    `json:"action"`
	Succeeded bool      `json:"succeeded"`
	CreatedAt time.Time `json:"created_at"`
}

// EventStorage handles storage of enforcement events.
type EventStorage struct {
	db *sql.DB
}

// Open opens (creating if needed) the event database at path.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db %s: %w", path, err)
	}
	return db, nil
}

// NewEventStorage creates the storage and its schema.
func NewEventStorage(db *sql.DB) (*EventStorage, error) {
	s := &EventStorage{db: db}
	if err := s.initDB(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *EventStorage) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS enforcement_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			speaker_id TEXT NOT NULL,
			terms TEXT NOT NULL,
			action TEXT NOT NULL,
			succeeded BOOLEAN NOT NULL,
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create enforcement_events table: %w", err)
	}
	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_events_speaker ON enforcement_events(speaker_id)`)
	if err != nil {
		return fmt.Errorf("failed to create speaker index: %w", err)
	}
	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_events_created ON enforcement_events(created_at)`)
	if err != nil {
		return fmt.Errorf("failed to create created_at index: %w", err)
	}
	return nil
}

// RecordEnforcement inserts one audit row.
func (s *EventStorage) RecordEnforcement(sessionID, speakerID string, terms []string, action string, succeeded bool) error {
	_, err := s.db.Exec(
		`INSERT INTO enforcement_events (session_id, speaker_id, terms, action, succeeded, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, speakerID, strings.Join(terms, ","), action, succeeded,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert enforcement event: %w", err)
	}
	return nil
}

// RecentEvents returns the newest events up to limit.
func (s *EventStorage) RecentEvents(limit int) ([]*EnforcementEvent, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, speaker_id, terms, action, succeeded, created_at
		 FROM enforcement_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query enforcement events: %w", err)
	}
	defer rows.Close()

	var events []*EnforcementEvent
	for rows.Next() {
		var e EnforcementEvent
		var terms, createdAt string
		if err := rows.Scan(&e.ID, &e.SessionID, &e.SpeakerID, &terms, &e.Action, &e.Succeeded, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan enforcement event: %w", err)
		}
		if terms != "" {
			e.Terms = strings.Split(terms, ",")
		}
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			e.CreatedAt = t
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}
