package store

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
	pgxvector "github.com/pgvector/pgvector-go/pgx"
	"github.com/vigilcam/vigil/internal/recognize"
)

// Store manages the PostgreSQL mirror: watch sessions, their presence
// events, and a pgvector copy of the enrolled encodings. The JSON store
// stays authoritative; the mirror exists for history across sessions and
// for nearest-neighbor cross-checks.
type Store struct {
	conn *pgx.Conn
}

// New establishes a connection to the database and ensures the schema is initialized.
func New(ctx context.Context, connString string) (*Store, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}

	// Initialize schema (Auto-Migration)
	if err := initSchema(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	// Register the vector codec so pgvector.Vector round-trips natively.
	// Must run after initSchema: the OID lookup needs the extension installed.
	if err := pgxvector.RegisterTypes(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to register vector types: %w", err)
	}

	return &Store{conn: conn}, nil
}

// initSchema creates the necessary tables and vector extension if they don't exist (Auto-Migration).
func initSchema(ctx context.Context, conn *pgx.Conn) error {
	query := `
		CREATE EXTENSION IF NOT EXISTS vector;
		CREATE TABLE IF NOT EXISTS sessions (
			id UUID PRIMARY KEY,
			camera TEXT NOT NULL,
			threshold DOUBLE PRECISION NOT NULL,
			started_at TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS events (
			id BIGSERIAL PRIMARY KEY,
			session_id UUID REFERENCES sessions(id),
			ts TIMESTAMPTZ NOT NULL,
			identity TEXT NOT NULL,
			distance DOUBLE PRECISION NOT NULL,
			frame_index INT NOT NULL,
			kind TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS enrolled_faces (
			id SERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			embedding VECTOR(128) NOT NULL,
			enrolled_at TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS events_session_id_idx ON events (session_id);
	`
	_, err := conn.Exec(ctx, query)
	return err
}

// Close terminates the database connection.
func (s *Store) Close(ctx context.Context) {
	s.conn.Close(ctx)
}

// BeginSession registers one watch run and returns the ID its events will
// hang off.
func (s *Store) BeginSession(ctx context.Context, camera string, threshold float64) (uuid.UUID, error) {
	id := uuid.New()
	_, err := s.conn.Exec(ctx, `
		INSERT INTO sessions (id, camera, threshold, started_at)
		VALUES ($1, $2, $3, NOW())
	`, id, camera, threshold)
	return id, err
}

// AppendEvent mirrors one presence event into the session's history.
func (s *Store) AppendEvent(ctx context.Context, session uuid.UUID, ev recognize.Event) error {
	_, err := s.conn.Exec(ctx, `
		INSERT INTO events (session_id, ts, identity, distance, frame_index, kind)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, session, ev.TS, ev.Key, ev.Distance, ev.Frame, string(ev.Kind))
	return err
}

// Mirror binds a session ID to the store so the watch loop can append
// events through the same sink interface the CSV log implements.
type Mirror struct {
	store   *Store
	session uuid.UUID
}

// Mirror returns the event sink for one session.
func (s *Store) Mirror(session uuid.UUID) *Mirror {
	return &Mirror{store: s, session: session}
}

// Append implements the watch loop's event sink.
func (m *Mirror) Append(ctx context.Context, ev recognize.Event) error {
	return m.store.AppendEvent(ctx, m.session, ev)
}

// vecParam converts a 128-d encoding into a pgvector parameter.
func vecParam(vec []float64) pgvector.Vector {
	floats := make([]float32, len(vec))
	for i, v := range vec {
		floats[i] = float32(v)
	}
	return pgvector.NewVector(floats)
}

// ReplaceEnrolled swaps the mirrored gallery for the given one, one row per
// reference encoding. Runs in a transaction so a failed enroll never leaves
// the mirror half-replaced.
func (s *Store) ReplaceEnrolled(ctx context.Context, g *recognize.Gallery) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM enrolled_faces"); err != nil {
		return err
	}
	for _, id := range g.Identities() {
		for _, ref := range id.Refs {
			_, err := tx.Exec(ctx, `
				INSERT INTO enrolled_faces (name, embedding, enrolled_at)
				VALUES ($1, $2, NOW())
			`, id.Name, vecParam(ref))
			if err != nil {
				return err
			}
		}
	}
	return tx.Commit(ctx)
}

// FindClosestEnrolled searches for the nearest neighbor among the mirrored
// encodings. <-> is the Euclidean distance operator in pgvector, the same
// metric the in-memory matcher uses, so both sides agree on what "closest"
// means. An empty mirror reports +Inf, mirroring an empty gallery.
func (s *Store) FindClosestEnrolled(ctx context.Context, vec []float64) (string, float64, error) {
	query := `SELECT name, embedding <-> $1 FROM enrolled_faces ORDER BY embedding <-> $1 ASC LIMIT 1`

	var name string
	var distance float64
	err := s.conn.QueryRow(ctx, query, vecParam(vec)).Scan(&name, &distance)
	if err == pgx.ErrNoRows {
		return "", math.Inf(1), nil
	}
	if err != nil {
		return "", 0, err
	}

	return name, distance, nil
}

// RenameEnrolled relabels an identity's mirrored references.
func (s *Store) RenameEnrolled(ctx context.Context, oldName, newName string) error {
	_, err := s.conn.Exec(ctx, "UPDATE enrolled_faces SET name = $1 WHERE name = $2", newName, oldName)
	return err
}

// EventRecord is one mirrored event row as the history command reads it.
type EventRecord struct {
	TS       time.Time
	Session  uuid.UUID
	Identity string
	Distance float64
	Frame    int
	Kind     string
}

// RecentEvents returns the newest mirrored events across all sessions,
// newest first.
func (s *Store) RecentEvents(ctx context.Context, limit int) ([]EventRecord, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT ts, session_id, identity, distance, frame_index, kind
		FROM events
		ORDER BY ts DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []EventRecord
	for rows.Next() {
		var rec EventRecord
		if err := rows.Scan(&rec.TS, &rec.Session, &rec.Identity, &rec.Distance, &rec.Frame, &rec.Kind); err != nil {
			return nil, err
		}
		events = append(events, rec)
	}
	return events, rows.Err()
}

// Reset drops all application tables to clear the database state.
// This is useful for development to force a schema refresh without migrations.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.conn.Exec(ctx, `
		DROP TABLE IF EXISTS events CASCADE;
		DROP TABLE IF EXISTS sessions CASCADE;
		DROP TABLE IF EXISTS enrolled_faces CASCADE;
	`)
	return err
}
