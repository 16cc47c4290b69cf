// Package tlmdb persists captured telemetry packets to sqlite for
// query-by-time playback and session bookkeeping. It archives raw records
// alongside (not instead of) pcap containers: the container stays the
// interchange format, the database serves indexed queries.
package tlmdb

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is an open telemetry archive database.
type Store struct {
	*sql.DB
}

// Open opens (creating if needed) the archive at path and applies any
// pending schema migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate %s: %w", path, err)
	}

	return &Store{db}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}

	drv, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", drv)
	if err != nil {
		return err
	}
	// Note: don't close m, it would close the underlying DB connection.

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// Session is one recording run against one telemetry source.
type Session struct {
	ID        string
	Source    string
	LinkType  uint32
	CreatedAt time.Time
}

// Packet is one archived record.
type Packet struct {
	SessionID string
	Seq       int64
	Timestamp time.Time
	InclLen   uint32
	OrigLen   uint32
	Payload   []byte
}

// CreateSession registers a new capture session and returns it with a
// fresh identifier.
func (s *Store) CreateSession(source string, linkType uint32) (*Session, error) {
	sess := &Session{
		ID:        uuid.NewString(),
		Source:    source,
		LinkType:  linkType,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.Exec(
		"INSERT INTO capture_sessions (session_id, source, link_type, created_utc) VALUES (?, ?, ?, ?)",
		sess.ID, sess.Source, sess.LinkType, sess.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return sess, nil
}

// InsertPacket archives one record under its session.
func (s *Store) InsertPacket(p *Packet) error {
	_, err := s.Exec(
		"INSERT INTO packets (session_id, seq, ts_utc_ns, incl_len, orig_len, payload) VALUES (?, ?, ?, ?, ?, ?)",
		p.SessionID, p.Seq, p.Timestamp.UnixNano(), p.InclLen, p.OrigLen, p.Payload,
	)
	if err != nil {
		return fmt.Errorf("failed to insert packet %d of session %s: %w", p.Seq, p.SessionID, err)
	}
	return nil
}

// PacketsBetween returns a session's records with timestamps in
// [start, end], ordered by sequence number.
func (s *Store) PacketsBetween(sessionID string, start, end time.Time) ([]Packet, error) {
	rows, err := s.Query(
		"SELECT session_id, seq, ts_utc_ns, incl_len, orig_len, payload FROM packets WHERE session_id = ? AND ts_utc_ns >= ? AND ts_utc_ns <= ? ORDER BY seq",
		sessionID, start.UnixNano(), end.UnixNano(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var packets []Packet
	for rows.Next() {
		var (
			p  Packet
			ns int64
		)
		if err := rows.Scan(&p.SessionID, &p.Seq, &ns, &p.InclLen, &p.OrigLen, &p.Payload); err != nil {
			return nil, err
		}
		p.Timestamp = time.Unix(0, ns).UTC()
		packets = append(packets, p)
	}
	return packets, rows.Err()
}

// SessionStats reports the record count and stored payload bytes of one
// session.
func (s *Store) SessionStats(sessionID string) (count int64, bytes int64, err error) {
	row := s.QueryRow(
		"SELECT COUNT(*), COALESCE(SUM(incl_len), 0) FROM packets WHERE session_id = ?",
		sessionID,
	)
	if err := row.Scan(&count, &bytes); err != nil {
		return 0, 0, err
	}
	return count, bytes, nil
}

// Sessions lists all capture sessions, newest first.
func (s *Store) Sessions() ([]Session, error) {
	rows, err := s.Query(
		"SELECT session_id, source, link_type, created_utc FROM capture_sessions ORDER BY created_utc DESC",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.Source, &sess.LinkType, &sess.CreatedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}
