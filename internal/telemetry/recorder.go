package telemetry

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"

	"github.com/banshee-data/gaitcore/internal/httputil"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Recorder stores telemetry frames of one run in SQLite.
type Recorder struct {
	db    *sql.DB
	path  string
	runID string
}

// Run describes one recorded daemon run.
type Run struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
	Note      string    `json:"note,omitempty"`
	Frames    int       `json:"frames"`
}

// OpenRecorder opens or creates the database at path, applies pending
// migrations and starts a new run.
func OpenRecorder(path, note string) (*Recorder, error) {
	r, err := OpenArchive(path)
	if err != nil {
		return nil, err
	}
	r.runID = uuid.NewString()
	if _, err := r.db.Exec(`INSERT INTO runs (run_id, started_at_unix_nanos, note) VALUES (?, ?, ?)`,
		r.runID, time.Now().UnixNano(), note); err != nil {
		r.db.Close()
		return nil, fmt.Errorf("failed to start run: %w", err)
	}
	log.Printf("Recording telemetry run %s to %s", r.runID, path)
	return r, nil
}

// OpenArchive opens the database at path for reading recorded runs. It
// migrates the schema but starts no run, so Record fails.
func OpenArchive(path string) (*Recorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection so the pragmas below hold for every statement.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	r := &Recorder{db: db, path: path}
	if err := r.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Recorder) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(r.db, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}
	return m, nil
}

// migrateUp applies all pending migrations. The migrate instance is not
// closed because that would close the shared database handle.
func (r *Recorder) migrateUp() error {
	m, err := r.newMigrate()
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// SchemaVersion returns the applied migration version.
func (r *Recorder) SchemaVersion() (uint, bool, error) {
	m, err := r.newMigrate()
	if err != nil {
		return 0, false, err
	}
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

// migrateLogger implements migrate.Logger
type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	log.Printf("[migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool { return false }

// ErrNoRun is returned by Record on a recorder opened with OpenArchive.
var ErrNoRun = errors.New("recorder has no active run")

// RunID returns the ID of the run being recorded.
func (r *Recorder) RunID() string { return r.runID }

// DB exposes the underlying handle.
func (r *Recorder) DB() *sql.DB { return r.db }

func encodeChannel(v []float64) (string, error) {
	b, err := json.Marshal(v)
	return string(b), err
}

// Record inserts frames in one transaction. Frames already recorded for this
// run (same seq) are ignored.
func (r *Recorder) Record(frames ...Frame) error {
	if r.runID == "" {
		return ErrNoRun
	}
	if len(frames) == 0 {
		return nil
	}
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO telemetry_frames (
		run_id, seq, tick, at_unix_nanos, base_ang_vel, dof_vel, dof_pos, dof_tau, lin_acc
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range frames {
		f := &frames[i]
		cols := make([]interface{}, 0, len(Channels))
		for _, name := range Channels {
			s, err := encodeChannel(f.Channel(name))
			if err != nil {
				return fmt.Errorf("failed to encode %s: %w", name, err)
			}
			cols = append(cols, s)
		}
		args := append([]interface{}{r.runID, int64(f.Seq), int64(f.Tick), f.At.UnixNano()}, cols...)
		if _, err := stmt.Exec(args...); err != nil {
			return fmt.Errorf("failed to insert frame %d: %w", f.Seq, err)
		}
	}
	return tx.Commit()
}

// Consume records frames from the hub until ctx is done, skipping repeats of
// the same snapshot and flushing every batch frames or every flushEvery.
func (r *Recorder) Consume(ctx context.Context, hub *Hub, batch int, flushEvery time.Duration) error {
	if batch < 1 {
		batch = 50
	}
	if flushEvery <= 0 {
		flushEvery = time.Second
	}
	id, frames := hub.Subscribe()
	defer hub.Unsubscribe(id)

	ticker := time.NewTicker(flushEvery)
	defer ticker.Stop()

	var pending []Frame
	var lastSeq uint64
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		err := r.Record(pending...)
		pending = pending[:0]
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return flush()
		case f, ok := <-frames:
			if !ok {
				return flush()
			}
			if f.Seq == lastSeq {
				continue
			}
			lastSeq = f.Seq
			pending = append(pending, f)
			if len(pending) >= batch {
				if err := flush(); err != nil {
					return err
				}
			}
		case <-ticker.C:
			if err := flush(); err != nil {
				return err
			}
		}
	}
}

// Runs lists recorded runs, newest first.
func (r *Recorder) Runs() ([]Run, error) {
	rows, err := r.db.Query(`
		SELECT runs.run_id, runs.started_at_unix_nanos, COALESCE(runs.note, ''), COUNT(f.seq)
		FROM runs LEFT JOIN telemetry_frames f ON f.run_id = runs.run_id
		GROUP BY runs.run_id
		ORDER BY runs.started_at_unix_nanos DESC, runs.rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run     Run
			started int64
		)
		if err := rows.Scan(&run.ID, &started, &run.Note, &run.Frames); err != nil {
			return nil, err
		}
		run.StartedAt = time.Unix(0, started).UTC()
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Frames returns the frames of a run in sequence order.
func (r *Recorder) Frames(runID string) ([]Frame, error) {
	rows, err := r.db.Query(`
		SELECT seq, tick, at_unix_nanos, base_ang_vel, dof_vel, dof_pos, dof_tau, lin_acc
		FROM telemetry_frames WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Frame
	for rows.Next() {
		var (
			f      Frame
			seq    int64
			tick   int64
			atNano int64
			raw    [5]string
		)
		if err := rows.Scan(&seq, &tick, &atNano, &raw[0], &raw[1], &raw[2], &raw[3], &raw[4]); err != nil {
			return nil, err
		}
		f.Seq = uint64(seq)
		f.Tick = uint32(tick)
		f.At = time.Unix(0, atNano).UTC()
		for i, name := range Channels {
			dst := f.Channel(name)
			var vals []float64
			if err := json.Unmarshal([]byte(raw[i]), &vals); err != nil {
				return nil, fmt.Errorf("failed to decode %s of frame %d: %w", name, seq, err)
			}
			if len(vals) != len(dst) {
				return nil, fmt.Errorf("%s of frame %d has %d values, want %d", name, seq, len(vals), len(dst))
			}
			copy(dst, vals)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// AttachAdminRoutes mounts tailsql over the recorder database at
// /debug/tailsql/.
func (r *Recorder) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("failed to create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://"+r.path, r.db, &tailsql.DBOptions{
		Label: "Telemetry DB",
	})
	debug.Handle("tailsql/", "SQL live debugging of recorded telemetry", tsql.NewMux())

	debug.HandleFunc("telemetry-runs", "Recorded telemetry runs", func(w http.ResponseWriter, req *http.Request) {
		runs, err := r.Runs()
		if err != nil {
			httputil.WriteJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"current": r.runID,
			"runs":    runs,
		})
	})
	return nil
}

func (r *Recorder) Close() error {
	return r.db.Close()
}
