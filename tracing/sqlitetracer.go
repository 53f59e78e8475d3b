package tracing

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/csim/cache"
)

// SQLiteTracer writes accesses to the "access" table of a SQLite database.
// Addresses and tags are stored as hexadecimal text because SQLite integers
// are signed 64-bit.
type SQLiteTracer struct {
	accessBuffer

	path      string
	db        *sql.DB
	statement *sql.Stmt
	err       error
	closed    bool
}

// NewSQLiteTracer creates a new SQLiteTracer.
func NewSQLiteTracer(path string) *SQLiteTracer {
	return &SQLiteTracer{
		accessBuffer: accessBuffer{bufferSize: 100000},
		path:         path,
	}
}

// Path returns the database file path.
func (t *SQLiteTracer) Path() string {
	return t.path
}

// Init creates the database, the access table and the insert statement.
func (t *SQLiteTracer) Init() error {
	if t.path == "" {
		t.path = defaultPath(".sqlite3")
	}

	if _, err := os.Stat(t.path); err == nil {
		return fmt.Errorf("file %s already exists", t.path)
	}

	db, err := sql.Open("sqlite3", t.path)
	if err != nil {
		return fmt.Errorf("failed to open trace database: %w", err)
	}
	t.db = db

	_, err = t.db.Exec(`
		CREATE TABLE access (
			seq         INTEGER NOT NULL,
			step        INTEGER NOT NULL,
			op          TEXT NOT NULL,
			address     TEXT NOT NULL,
			size        INTEGER NOT NULL,
			set_index   INTEGER NOT NULL,
			tag         TEXT NOT NULL,
			outcome     TEXT NOT NULL,
			evicted_tag TEXT
		)`)
	if err != nil {
		t.release()
		return fmt.Errorf("failed to create access table: %w", err)
	}

	t.statement, err = t.db.Prepare(`
		INSERT INTO access (
			seq, step, op, address, size, set_index, tag, outcome, evicted_tag
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		t.release()
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}

	atexit.Register(func() { _ = t.Close() })

	return nil
}

// Func implements sim.Hook.
func (t *SQLiteTracer) Func(ctx sim.HookCtx) {
	if t.closed || t.statement == nil || t.err != nil {
		return
	}

	if t.collect(ctx) {
		t.keep(t.Flush())
	}
}

// Flush writes the buffered accesses in a single transaction. The buffer is
// emptied even when writing fails.
func (t *SQLiteTracer) Flush() error {
	if len(t.accesses) == 0 || t.statement == nil {
		return nil
	}

	accesses := t.accesses
	t.accesses = nil

	tx, err := t.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt := tx.Stmt(t.statement)
	for _, a := range accesses {
		evicted := sql.NullString{}
		if a.Outcome == cache.OutcomeMissEviction {
			evicted = sql.NullString{
				String: strconv.FormatUint(a.EvictedTag, 16),
				Valid:  true,
			}
		}

		_, err := stmt.Exec(
			int64(a.Seq),
			a.Step,
			a.Op.String(),
			strconv.FormatUint(a.Address, 16),
			int64(a.Size),
			int64(a.SetIndex),
			strconv.FormatUint(a.Tag, 16),
			a.Outcome.String(),
			evicted,
		)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to insert access %d: %w", a.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit accesses: %w", err)
	}

	return nil
}

// Close flushes the remaining accesses and closes the database.
func (t *SQLiteTracer) Close() error {
	if t.closed || t.db == nil {
		return nil
	}
	t.closed = true

	t.keep(t.Flush())
	if t.statement != nil {
		t.keep(t.statement.Close())
	}
	t.keep(t.db.Close())

	return t.err
}

// release closes the database after a failed Init.
func (t *SQLiteTracer) release() {
	if t.statement != nil {
		_ = t.statement.Close()
		t.statement = nil
	}
	_ = t.db.Close()
	t.db = nil
}

func (t *SQLiteTracer) keep(err error) {
	if err != nil {
		t.err = errors.Join(t.err, err)
	}
}
