// Package journal stores bridge events in SQLite so runs can be inspected
// after the fact.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"splitwatch/bridge"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

var ErrNotConfigured = errors.New("journal is not configured")

const drainTimeout = 5 * time.Second

// Entry is one stored event
type Entry struct {
	ID       uuid.UUID       `json:"id"`
	Seq      uint64          `json:"seq"`
	AttachID uuid.UUID       `json:"attach_id"`
	Kind     bridge.Kind     `json:"kind"`
	Payload  json.RawMessage `json:"payload"`
	Time     time.Time       `json:"time"`
}

type Store struct {
	db  *sql.DB
	log *logger.Logger
}

func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("journal path is required")
	}

	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{
		db:  db,
		log: logger.NewLogger(coloransi.Color(coloransi.ColorLimeGreen, coloransi.ColorOrange, "journal")),
	}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record stores ev under a fresh entry ID
func (s *Store) Record(ctx context.Context, ev bridge.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return ErrNotConfigured
	}
	if ev.Payload == nil {
		return fmt.Errorf("event #%d has no payload", ev.Seq)
	}

	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", ev.Kind(), err)
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO events (
	id,
	seq,
	attach_id,
	kind,
	payload,
	created_at
) VALUES (?, ?, ?, ?, ?, ?)
`,
		uuid.New().String(),
		int64(ev.Seq),
		ev.AttachID.String(),
		string(ev.Kind()),
		string(payload),
		ev.Time.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record event #%d: %w", ev.Seq, err)
	}
	return nil
}

// Recent lists up to limit entries, newest first
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	return s.query(ctx, limit, `
SELECT id, seq, attach_id, kind, payload, created_at
FROM events
ORDER BY created_at DESC, rowid DESC
LIMIT ?
`)
}

// ByAttach lists up to limit entries of one attach, oldest first
func (s *Store) ByAttach(ctx context.Context, attachID uuid.UUID, limit int) ([]Entry, error) {
	return s.query(ctx, limit, `
SELECT id, seq, attach_id, kind, payload, created_at
FROM events
WHERE attach_id = ?
ORDER BY created_at ASC, rowid ASC
LIMIT ?
`, attachID.String())
}

// query runs q with args followed by limit
func (s *Store) query(ctx context.Context, limit int, q string, args ...any) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, ErrNotConfigured
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.db.QueryContext(ctx, q, append(args, limit)...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e                  Entry
			id, attachID, kind string
			payload            string
			seq, createdAt     int64
		)
		if err := rows.Scan(&id, &seq, &attachID, &kind, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("event id %q: %w", id, err)
		}
		if e.AttachID, err = uuid.Parse(attachID); err != nil {
			return nil, fmt.Errorf("attach id %q: %w", attachID, err)
		}
		e.Seq = uint64(seq)
		e.Kind = bridge.Kind(kind)
		e.Payload = json.RawMessage(payload)
		e.Time = time.UnixMilli(createdAt).UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

// Run records every event of sub until the subscription closes. Once ctx is
// done it keeps recording the backlog, so cancel ctx before closing the bridge.
func (s *Store) Run(ctx context.Context, sub *bridge.Subscription) error {
	for {
		select {
		case <-ctx.Done():
			return s.drain(ctx, sub)
		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if err := s.Record(ctx, ev); err != nil {
				if ctx.Err() == nil {
					s.log.Warn("dropping event: ", err)
					continue
				}
				if err := s.Record(context.WithoutCancel(ctx), ev); err != nil {
					s.log.Warn("dropping event: ", err)
				}
				return s.drain(ctx, sub)
			}
		}
	}
}

// drain records what is still queued once ctx is done, until the bridge
// closes the subscription or drainTimeout passes
func (s *Store) drain(ctx context.Context, sub *bridge.Subscription) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drainTimeout)
	defer cancel()

	n := 0
	for {
		select {
		case <-ctx.Done():
			s.log.Warn(fmt.Sprintf("gave up draining after %d events: subscription still open", n))
			return nil
		case ev, ok := <-sub.Events():
			if !ok {
				if n > 0 {
					s.log.Debugln("drained", n, "events")
				}
				return nil
			}
			if err := s.Record(ctx, ev); err != nil {
				s.log.Warn("dropping event: ", err)
				continue
			}
			n++
		}
	}
}
