// Package trackstore persists track lifecycle events to SQLite so runs can
// be reviewed after the fact: when each track started, which detection it
// was built from, how it moved through the cascade, and why it ended.
package trackstore

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"image"
	"time"

	"trackcam/tracking"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned when a track ID has no row.
var ErrNotFound = errors.New("track not found")

// Global debug function for trackstore package
var debugMsgFunc func(component, message string)

// SetDebugFunction allows main package to provide debug function
func SetDebugFunction(fn func(component, message string)) {
	debugMsgFunc = fn
}

func debugMsg(component, message string) {
	if debugMsgFunc != nil {
		debugMsgFunc(component, message)
	}
}

// Store is the SQLite track database
type Store struct {
	db *sql.DB
}

// TrackRow is one persisted track
type TrackRow struct {
	TrackID    string
	SessionID  string
	Pair       string
	StartedAt  time.Time
	EndedAt    time.Time // zero while the track is open
	EndReason  string
	FinalState string
	Box        image.Rectangle
	Confidence float64
	Detections int
	Selected   int
	BestIoU    float64
	UsedPrior  bool
}

// TransitionRow is one persisted state change
type TransitionRow struct {
	TrackID string
	At      time.Time
	From    string
	To      string
	Score   float64
	Source  string
	Reason  string
	Box     image.Rectangle
}

// Open opens or creates the database at path and migrates it to the latest schema
func Open(path string) (*Store, error) {
	// Pragmas in the DSN apply to every pooled connection.
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open track store: %w", err)
	}
	// One writer; also keeps ":memory:" databases on a single connection.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// MigrateUp runs all pending migrations up to the latest version.
func (s *Store) MigrateUp() error {
	m, err := s.newMigrate()
	if err != nil {
		return err
	}
	// Not closing m: that would close the shared *sql.DB.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// MigrateVersion returns the current schema version and dirty state
func (s *Store) MigrateVersion() (uint, bool, error) {
	m, err := s.newMigrate()
	if err != nil {
		return 0, false, err
	}
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func (s *Store) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = migrateLogger{}
	return m, nil
}

// migrateLogger implements migrate.Logger on the package debug hook
type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...interface{}) {
	debugMsg("STORE", "migrate: "+fmt.Sprintf(format, v...))
}

func (migrateLogger) Verbose() bool { return false }

// Apply writes one lifecycle event synchronously
func (s *Store) Apply(ev tracking.LifecycleEvent) error {
	switch ev.Kind {
	case tracking.KindStarted:
		_, err := s.db.Exec(`
			INSERT INTO tracks (track_id, session_id, pair, started_at,
				box_x, box_y, box_w, box_h, confidence, detections, selected, best_iou, used_prior)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ev.TrackID, ev.SessionID, ev.Pair, ev.At.UnixNano(),
			ev.Box.Min.X, ev.Box.Min.Y, ev.Box.Dx(), ev.Box.Dy(),
			ev.Score, ev.Detections, ev.Selected, ev.BestIoU, ev.UsedPrior)
		if err != nil {
			return fmt.Errorf("insert track %s: %w", ev.TrackID, err)
		}
	case tracking.KindStateChanged:
		_, err := s.db.Exec(`
			INSERT INTO transitions (track_id, at, from_state, to_state, score, source, reason,
				box_x, box_y, box_w, box_h)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ev.TrackID, ev.At.UnixNano(), ev.From.String(), ev.To.String(), ev.Score, ev.Source.String(), ev.Reason,
			ev.Box.Min.X, ev.Box.Min.Y, ev.Box.Dx(), ev.Box.Dy())
		if err != nil {
			return fmt.Errorf("insert transition for %s: %w", ev.TrackID, err)
		}
	case tracking.KindEnded:
		res, err := s.db.Exec(`
			UPDATE tracks SET ended_at = ?, end_reason = ?, final_state = ?
			WHERE track_id = ?`,
			ev.At.UnixNano(), ev.Reason, ev.To.String(), ev.TrackID)
		if err != nil {
			return fmt.Errorf("close track %s: %w", ev.TrackID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("close track %s: %w", ev.TrackID, ErrNotFound)
		}
	default:
		return fmt.Errorf("unsupported event kind %v", ev.Kind)
	}
	return nil
}

// Track loads one track by ID
func (s *Store) Track(id string) (TrackRow, error) {
	var (
		r          TrackRow
		started    int64
		ended      sql.NullInt64
		reason     sql.NullString
		finalState sql.NullString
		x, y, w, h int
	)
	err := s.db.QueryRow(`
		SELECT track_id, session_id, pair, started_at, ended_at, end_reason, final_state,
			box_x, box_y, box_w, box_h, confidence, detections, selected, best_iou, used_prior
		FROM tracks WHERE track_id = ?`, id).Scan(
		&r.TrackID, &r.SessionID, &r.Pair, &started, &ended, &reason, &finalState,
		&x, &y, &w, &h, &r.Confidence, &r.Detections, &r.Selected, &r.BestIoU, &r.UsedPrior)
	if errors.Is(err, sql.ErrNoRows) {
		return TrackRow{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return TrackRow{}, fmt.Errorf("query track %s: %w", id, err)
	}

	r.StartedAt = time.Unix(0, started)
	if ended.Valid {
		r.EndedAt = time.Unix(0, ended.Int64)
	}
	r.EndReason = reason.String
	r.FinalState = finalState.String
	r.Box = image.Rect(x, y, x+w, y+h)
	return r, nil
}

// Transitions returns the state changes of a track, oldest first
func (s *Store) Transitions(trackID string) ([]TransitionRow, error) {
	rows, err := s.db.Query(`
		SELECT track_id, at, from_state, to_state, score, source, COALESCE(reason, ''),
			box_x, box_y, box_w, box_h
		FROM transitions WHERE track_id = ? ORDER BY at, id`, trackID)
	if err != nil {
		return nil, fmt.Errorf("query transitions for %s: %w", trackID, err)
	}
	defer rows.Close()

	var out []TransitionRow
	for rows.Next() {
		var (
			r          TransitionRow
			at         int64
			x, y, w, h int
		)
		if err := rows.Scan(&r.TrackID, &at, &r.From, &r.To, &r.Score, &r.Source, &r.Reason, &x, &y, &w, &h); err != nil {
			return nil, err
		}
		r.At = time.Unix(0, at)
		r.Box = image.Rect(x, y, x+w, y+h)
		out = append(out, r)
	}
	return out, rows.Err()
}

// SessionTracks lists the track IDs of a session in start order
func (s *Store) SessionTracks(sessionID string) ([]string, error) {
	rows, err := s.db.Query(`SELECT track_id FROM tracks WHERE session_id = ? ORDER BY started_at`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
