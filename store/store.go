// Package store is the shared key-value store: a single SQLite table of
// JSON values that the watcher daemon and the panel both open.
//
// Writes bump a revision counter; Version exposes it so other processes can
// poll for changes (see package watch). In-process callers can Subscribe.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/snse/dbopen"
)

// Schema creates the kv table and its revision counter.
const Schema = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS kv_meta (
	id  INTEGER PRIMARY KEY CHECK (id = 1),
	rev INTEGER NOT NULL
);
INSERT OR IGNORE INTO kv_meta (id, rev) VALUES (1, 0);
`

// ErrUnavailable is wrapped by every failure to reach the database.
var ErrUnavailable = errors.New("store: unavailable")

// ErrNoChange is returned by an Update callback to skip the write.
var ErrNoChange = errors.New("store: no change")

// OpError is a failed store operation. It matches both ErrUnavailable and
// the driver error.
type OpError struct {
	Op  string
	Key string
	Err error
}

func (e *OpError) Error() string {
	if e.Key == "" {
		return "store: " + e.Op + ": " + e.Err.Error()
	}
	return "store: " + e.Op + " " + e.Key + ": " + e.Err.Error()
}

func (e *OpError) Unwrap() []error { return []error{ErrUnavailable, e.Err} }

// Change is one committed write.
type Change struct {
	Key     string
	Deleted bool
}

// Store is a JSON key-value store on SQLite. Safe for concurrent use.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time

	// mu serializes writes from this process so read-modify-write
	// sequences cannot interleave.
	mu sync.Mutex

	subsMu  sync.Mutex
	subs    map[int]func(Change)
	nextSub int
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option { return func(s *Store) { s.logger = l } }

// WithClock overrides time.Now for updated_at stamps.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// New wraps an open database and applies Schema.
func New(db *sql.DB, opts ...Option) (*Store, error) {
	s := &Store{
		db:     db,
		logger: slog.Default(),
		now:    time.Now,
		subs:   make(map[int]func(Change)),
	}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if _, err := db.Exec(Schema); err != nil {
		return nil, &OpError{Op: "schema", Err: err}
	}
	return s, nil
}

// Open opens (creating if needed) the database file at path.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll())
	if err != nil {
		return nil, &OpError{Op: "open", Err: err}
	}
	s, err := New(db, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Get decodes the value at key into dst. It reports false when the key is
// absent, leaving dst untouched.
func (s *Store) Get(ctx context.Context, key string, dst any) (bool, error) {
	return get(ctx, s.db, key, dst)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func get(ctx context.Context, q queryer, key string, dst any) (bool, error) {
	var raw string
	err := q.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, &OpError{Op: "get", Key: key, Err: err}
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, fmt.Errorf("store: decode %s: %w", key, err)
	}
	return true, nil
}

// Put stores v at key, overwriting any previous value.
func (s *Store) Put(ctx context.Context, key string, v any) error {
	return s.PutMany(ctx, map[string]any{key: v})
}

// PutMany stores several keys in one transaction. A nil value deletes the
// key.
func (s *Store) PutMany(ctx context.Context, values map[string]any) error {
	encoded := make(map[string][]byte, len(values))
	for k, v := range values {
		if v == nil {
			encoded[k] = nil
			continue
		}
		data, err := encode(v)
		if err != nil {
			return fmt.Errorf("store: encode %s: %w", k, err)
		}
		encoded[k] = data
	}

	s.mu.Lock()
	err := dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		for k, data := range encoded {
			if err := s.write(ctx, tx, k, data); err != nil {
				return err
			}
		}
		return bump(ctx, tx)
	})
	s.mu.Unlock()
	if err != nil {
		return wrapWrite("put", "", err)
	}

	for k, data := range encoded {
		s.notify(Change{Key: k, Deleted: data == nil})
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.PutMany(ctx, map[string]any{key: nil})
}

// Update runs a read-modify-write on key inside one transaction. dst is
// filled with the current value (left untouched when absent, reported via
// found), fn mutates it, and dst is written back. fn returning ErrNoChange
// skips the write without error; any other fn error is returned as-is.
func (s *Store) Update(ctx context.Context, key string, dst any, fn func(found bool) error) error {
	var callerErr error
	s.mu.Lock()
	err := dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		callerErr = nil
		found, err := get(ctx, tx, key, dst)
		if err != nil {
			return err
		}
		if err := fn(found); err != nil {
			callerErr = err
			return err
		}
		data, err := json.Marshal(dst)
		if err != nil {
			callerErr = fmt.Errorf("store: encode %s: %w", key, err)
			return callerErr
		}
		if err := s.write(ctx, tx, key, data); err != nil {
			return err
		}
		return bump(ctx, tx)
	})
	s.mu.Unlock()
	switch {
	case err == nil:
		s.notify(Change{Key: key})
		return nil
	case callerErr != nil && errors.Is(callerErr, ErrNoChange):
		return nil
	case callerErr != nil:
		return callerErr
	}
	return wrapWrite("update", key, err)
}

// Version returns the revision counter, incremented by every committed
// write from any process.
func (s *Store) Version(ctx context.Context) (int64, error) {
	var rev int64
	if err := s.db.QueryRowContext(ctx, "SELECT rev FROM kv_meta WHERE id = 1").Scan(&rev); err != nil {
		return 0, &OpError{Op: "version", Err: err}
	}
	return rev, nil
}

// Subscribe registers fn for changes committed by this process. fn runs on
// the writer's goroutine after commit and must not block.
func (s *Store) Subscribe(fn func(Change)) (cancel func()) {
	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subsMu.Unlock()
	return func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
}

func (s *Store) notify(c Change) {
	s.subsMu.Lock()
	fns := make([]func(Change), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subsMu.Unlock()
	for _, fn := range fns {
		fn(c)
	}
}

func (s *Store) write(ctx context.Context, tx *sql.Tx, key string, data []byte) error {
	var err error
	if data == nil {
		_, err = tx.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key)
	} else {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, string(data), s.now().UnixMilli())
	}
	if err != nil {
		return &OpError{Op: "write", Key: key, Err: err}
	}
	return nil
}

func encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func bump(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, "UPDATE kv_meta SET rev = rev + 1 WHERE id = 1"); err != nil {
		return &OpError{Op: "bump", Err: err}
	}
	return nil
}

// wrapWrite makes transaction-level failures (begin, commit, busy) match
// ErrUnavailable. Typed and decode errors pass through.
func wrapWrite(op, key string, err error) error {
	var opErr *OpError
	var decErr *json.UnmarshalTypeError
	var synErr *json.SyntaxError
	if errors.As(err, &opErr) || errors.As(err, &decErr) || errors.As(err, &synErr) {
		return err
	}
	return &OpError{Op: op, Key: key, Err: err}
}
