package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rcliao/engram/internal/dynamics"
)

func migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		id            TEXT PRIMARY KEY,
		key           TEXT NOT NULL UNIQUE,
		text          TEXT NOT NULL,
		encoder       TEXT NOT NULL DEFAULT 'hash',
		state         TEXT NOT NULL,
		ticks         INTEGER NOT NULL DEFAULT 0,
		rotation      INTEGER NOT NULL DEFAULT 0,
		attempts      INTEGER NOT NULL DEFAULT 1,
		created_at    TEXT NOT NULL,
		hit_count     INTEGER NOT NULL DEFAULT 0,
		last_accessed TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_entries_state ON entries(state);
	CREATE INDEX IF NOT EXISTS idx_entries_created ON entries(created_at DESC);

	CREATE TABLE IF NOT EXISTS chunk_meta (
		id            INTEGER PRIMARY KEY CHECK (id = 1),
		created_at    TEXT NOT NULL,
		store_count   INTEGER NOT NULL DEFAULT 0,
		last_accessed TEXT NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := db.Exec(
		`INSERT OR IGNORE INTO chunk_meta (id, created_at, store_count, last_accessed)
		 VALUES (1, ?, 0, ?)`, now, now)
	return err
}

const entryColumns = `id, key, text, encoder, state, ticks, rotation, attempts,
	created_at, hit_count, last_accessed`

// Put persists one memory into its chunk. The second return reports
// whether a new entry was created; an existing key follows p.Policy
// (Reinforce by default).
func (s *Store) Put(ctx context.Context, p PutParams) (*Entry, bool, error) {
	if err := validKey(p.Key); err != nil {
		return nil, false, err
	}
	h, err := s.handle(p.Chunk, true)
	if err != nil {
		return nil, false, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	existing, err := h.get(ctx, p.Key)
	if err != nil && err != ErrNotFound {
		return nil, false, err
	}

	now := time.Now().UTC()
	if existing != nil {
		switch p.Policy {
		case Skip:
			existing.Chunk = h.name
			return existing, false, nil
		case Overwrite:
			if err := s.writeArtifacts(h, p); err != nil {
				return nil, false, err
			}
			err := retryBusy(ctx, func() error {
				return h.tx(ctx, func(tx *sql.Tx) error {
					_, err := tx.ExecContext(ctx,
						`UPDATE entries SET state = ?, ticks = ?, rotation = ?, attempts = ?,
						        encoder = ?, last_accessed = ?
						 WHERE key = ?`,
						string(p.State), p.Ticks, p.Rotation, p.Attempts,
						p.Encoder, now.Format(time.RFC3339), p.Key)
					if err != nil {
						return err
					}
					return bumpMeta(ctx, tx, now, true)
				})
			})
			if err != nil {
				return nil, false, fmt.Errorf("overwrite entry: %w", err)
			}
			s.cache.Del(h.name + "/" + p.Key)
		default: // Reinforce
			err := retryBusy(ctx, func() error {
				return h.tx(ctx, func(tx *sql.Tx) error {
					_, err := tx.ExecContext(ctx,
						`UPDATE entries SET hit_count = hit_count + 1, last_accessed = ?
						 WHERE key = ?`,
						now.Format(time.RFC3339), p.Key)
					if err != nil {
						return err
					}
					return bumpMeta(ctx, tx, now, true)
				})
			})
			if err != nil {
				return nil, false, fmt.Errorf("reinforce entry: %w", err)
			}
		}
		updated, err := h.get(ctx, p.Key)
		if err != nil {
			return nil, false, err
		}
		updated.Chunk = h.name
		return updated, false, nil
	}

	if err := s.writeArtifacts(h, p); err != nil {
		return nil, false, err
	}

	e := &Entry{
		ID:           s.newID(),
		Key:          p.Key,
		Text:         p.Text,
		Chunk:        h.name,
		Encoder:      p.Encoder,
		State:        p.State,
		Ticks:        p.Ticks,
		Rotation:     p.Rotation,
		Attempts:     p.Attempts,
		CreatedAt:    now,
		HitCount:     0,
		LastAccessed: now,
	}
	err = retryBusy(ctx, func() error {
		return h.tx(ctx, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO entries (`+entryColumns+`)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`,
				e.ID, e.Key, e.Text, e.Encoder, string(e.State), e.Ticks,
				e.Rotation, e.Attempts, now.Format(time.RFC3339),
				now.Format(time.RFC3339))
			if err != nil {
				return err
			}
			return bumpMeta(ctx, tx, now, true)
		})
	})
	if err != nil {
		return nil, false, fmt.Errorf("insert entry: %w", err)
	}
	return e, true, nil
}

// Get returns the entry for key in one chunk.
func (s *Store) Get(ctx context.Context, chunk, key string) (*Entry, error) {
	h, err := s.handle(chunk, false)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, ErrNotFound
	}
	e, err := h.get(ctx, key)
	if err != nil {
		return nil, err
	}
	e.Chunk = h.name
	return e, nil
}

// Find returns the entry for key, searching every chunk on disk.
func (s *Store) Find(ctx context.Context, key string) (*Entry, error) {
	names, err := s.Chunks()
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		e, err := s.Get(ctx, name, key)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		return e, nil
	}
	return nil, ErrNotFound
}

// Scan returns every entry in a chunk, newest first. A chunk absent from
// disk scans as empty.
func (s *Store) Scan(ctx context.Context, chunk string) ([]Entry, error) {
	h, err := s.handle(chunk, false)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, nil
	}

	rows, err := h.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM entries ORDER BY created_at DESC, key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		e.Chunk = h.name
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Touch bumps hit_count and last_accessed for the given keys. Recall is
// not read-only; this is its write path.
func (s *Store) Touch(ctx context.Context, chunk string, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	h, err := s.handle(chunk, false)
	if err != nil {
		return err
	}
	if h == nil {
		return ErrNotFound
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now().UTC()
	return retryBusy(ctx, func() error {
		return h.tx(ctx, func(tx *sql.Tx) error {
			for _, key := range keys {
				if _, err := tx.ExecContext(ctx,
					`UPDATE entries SET hit_count = hit_count + 1, last_accessed = ?
					 WHERE key = ?`,
					now.Format(time.RFC3339), key); err != nil {
					return err
				}
			}
			return bumpMeta(ctx, tx, now, false)
		})
	})
}

func (h *chunkHandle) get(ctx context.Context, key string) (*Entry, error) {
	row := h.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE key = ? LIMIT 1`, key)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (h *chunkHandle) tx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func bumpMeta(ctx context.Context, tx *sql.Tx, now time.Time, stored bool) error {
	inc := 0
	if stored {
		inc = 1
	}
	_, err := tx.ExecContext(ctx,
		`UPDATE chunk_meta SET store_count = store_count + ?, last_accessed = ? WHERE id = 1`,
		inc, now.Format(time.RFC3339))
	return err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row scanner) (Entry, error) {
	var e Entry
	var state, createdAt, lastAccessed string

	err := row.Scan(
		&e.ID, &e.Key, &e.Text, &e.Encoder, &state, &e.Ticks,
		&e.Rotation, &e.Attempts, &createdAt, &e.HitCount, &lastAccessed,
	)
	if err != nil {
		return e, err
	}

	e.State = dynamics.State(state)
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	e.LastAccessed, _ = time.Parse(time.RFC3339, lastAccessed)
	return e, nil
}
