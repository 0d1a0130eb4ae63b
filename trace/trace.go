// Package trace records covert-channel sessions to a SQLite database for
// offline analysis: the calibration in effect and, per transmitted or
// received symbol, the decoded bit, the observed occupancy, and how many
// synchronization polls the handshake took.
package trace

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/l1chan/cache"
)

const symbolBatchSize = 1024

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	role       TEXT NOT NULL,
	started_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS calibrations (
	session_id TEXT NOT NULL,
	hit        INTEGER NOT NULL,
	miss       INTEGER NOT NULL,
	threshold  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS symbols (
	session_id TEXT NOT NULL,
	seq        INTEGER NOT NULL,
	bit        INTEGER NOT NULL,
	occupancy  INTEGER NOT NULL,
	sync_polls INTEGER NOT NULL
);
`

type symbolRow struct {
	seq       int
	bit       int
	occupancy int
	syncPolls int
}

// Recorder writes one session's records. It implements channel.Observer.
// Symbol rows are buffered and written in batches; Close flushes the
// remainder. A Recorder is additionally flushed at process exit.
type Recorder struct {
	mu      sync.Mutex
	db      *sql.DB
	session string
	pending []symbolRow
}

// Open creates (or opens) the database at path and starts a new session
// for the given role.
func Open(path, role string) (*Recorder, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening trace database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating trace schema: %w", err)
	}

	r := &Recorder{
		db:      db,
		session: xid.New().String(),
	}

	_, err = db.Exec(
		"INSERT INTO sessions (id, role, started_at) VALUES (?, ?, ?)",
		r.session, role, time.Now().UnixNano())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("recording session: %w", err)
	}

	atexit.Register(func() { r.Flush() })

	return r, nil
}

// Session returns the session id rows are keyed by.
func (r *Recorder) Session() string {
	return r.session
}

// RecordCalibration stores the calibration in effect for this session.
func (r *Recorder) RecordCalibration(cal cache.Calibration) error {
	_, err := r.db.Exec(
		"INSERT INTO calibrations (session_id, hit, miss, threshold) "+
			"VALUES (?, ?, ?, ?)",
		r.session, cal.Hit, cal.Miss, cal.Threshold)
	if err != nil {
		return fmt.Errorf("recording calibration: %w", err)
	}
	return nil
}

// SymbolSent implements channel.Observer for the transmit role. Errors
// are deferred to Flush.
func (r *Recorder) SymbolSent(seq, bit, syncPolls int) {
	r.addSymbol(symbolRow{seq: seq, bit: bit, occupancy: -1, syncPolls: syncPolls})
}

// SymbolReceived implements channel.Observer for the receive role.
// Errors are deferred to Flush.
func (r *Recorder) SymbolReceived(seq, bit, occupancy, syncPolls int) {
	r.addSymbol(symbolRow{seq: seq, bit: bit, occupancy: occupancy, syncPolls: syncPolls})
}

func (r *Recorder) addSymbol(row symbolRow) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pending = append(r.pending, row)
	if len(r.pending) >= symbolBatchSize {
		r.flushLocked()
	}
}

// Flush writes all buffered symbol rows.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushLocked()
}

func (r *Recorder) flushLocked() error {
	if len(r.pending) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("flushing symbols: %w", err)
	}

	stmt, err := tx.Prepare(
		"INSERT INTO symbols (session_id, seq, bit, occupancy, sync_polls) " +
			"VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("flushing symbols: %w", err)
	}

	for _, row := range r.pending {
		if _, err := stmt.Exec(
			r.session, row.seq, row.bit, row.occupancy, row.syncPolls,
		); err != nil {
			stmt.Close()
			tx.Rollback()
			return fmt.Errorf("flushing symbols: %w", err)
		}
	}

	stmt.Close()
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("flushing symbols: %w", err)
	}

	r.pending = r.pending[:0]
	return nil
}

// Close flushes buffered rows and closes the database.
func (r *Recorder) Close() error {
	flushErr := r.Flush()
	closeErr := r.db.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}
