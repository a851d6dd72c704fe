// Package store persists memories as content-addressed attractor and
// brick files under per-chunk directories, with a SQLite index per chunk.
// A memory is created by store, mutated only by recall's access bumps or
// explicit reinforcement, and never deleted.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/rcliao/engram/internal/brick"
	"github.com/rcliao/engram/internal/dynamics"
	"github.com/rcliao/engram/internal/frame"
)

// ErrNotFound is returned when a key has no entry in the searched chunks.
var ErrNotFound = errors.New("memory not found")

// DuplicatePolicy decides what storing an already-known content key does.
type DuplicatePolicy string

const (
	// Reinforce bumps the existing entry's access counters. Meaning
	// survives repetition; repeated stores make a memory hotter.
	Reinforce DuplicatePolicy = "reinforce"
	// Overwrite replaces the stored attractor, brick, and outcome while
	// keeping the entry's identity and access history.
	Overwrite DuplicatePolicy = "overwrite"
	// Skip leaves the existing entry untouched.
	Skip DuplicatePolicy = "skip"
)

// Entry is one memory's index record. Chunk is filled from the directory
// the entry was read from.
type Entry struct {
	ID           string         `json:"id"`
	Key          string         `json:"key"`
	Text         string         `json:"text"`
	Chunk        string         `json:"chunk"`
	Encoder      string         `json:"encoder"`
	State        dynamics.State `json:"state"`
	Ticks        int            `json:"ticks"`
	Rotation     int            `json:"rotation"`
	Attempts     int            `json:"attempts"`
	CreatedAt    time.Time      `json:"created_at"`
	HitCount     int            `json:"hit_count"`
	LastAccessed time.Time      `json:"last_accessed"`
}

// PutParams holds everything a store operation persists.
type PutParams struct {
	Chunk     string
	Key       string
	Text      string
	Encoder   string
	State     dynamics.State
	Ticks     int
	Rotation  int
	Attempts  int
	Attractor *frame.Frame
	Brick     *brick.Brick
	Policy    DuplicatePolicy
}

// Store is the chunked storage layer. Safe for concurrent use; writers to
// one chunk are serialized, distinct chunks proceed in parallel.
type Store struct {
	root  string
	log   *zap.Logger
	cache *ristretto.Cache

	idMu    sync.Mutex
	entropy *rand.Rand

	mu     sync.Mutex
	chunks map[string]*chunkHandle
}

type chunkHandle struct {
	mu   sync.Mutex
	db   *sql.DB
	name string
	dir  string
}

// Open prepares the storage root. The directory tree is created on first
// write; opening an empty root is cheap.
func Open(root string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Join(root, "chunks"), 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     64 << 20, // attractor bytes held in memory
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create attractor cache: %w", err)
	}

	return &Store{
		root:    root,
		log:     log,
		cache:   cache,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
		chunks:  make(map[string]*chunkHandle),
	}, nil
}

// Root returns the storage root directory.
func (s *Store) Root() string { return s.root }

// Close releases every chunk index and the cache.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for _, h := range s.chunks {
		if err := h.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.chunks = make(map[string]*chunkHandle)
	s.cache.Close()
	return firstErr
}

func (s *Store) newID() string {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

// handle returns the chunk's open index, creating the directory tree and
// schema when create is set. Without create, a chunk that does not exist
// on disk yields (nil, nil).
func (s *Store) handle(name string, create bool) (*chunkHandle, error) {
	if err := validChunk(name); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.chunks[name]; ok {
		return h, nil
	}

	dir := filepath.Join(s.root, "chunks", name)
	dbPath := filepath.Join(dir, "index.db")
	if !create {
		if _, err := os.Stat(dbPath); err != nil {
			return nil, nil
		}
	}

	for _, sub := range []string{dir, filepath.Join(dir, "attractors"), filepath.Join(dir, "bricks")} {
		if err := os.MkdirAll(sub, 0o755); err != nil {
			return nil, fmt.Errorf("create chunk dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open chunk index: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate chunk index: %w", err)
	}

	h := &chunkHandle{db: db, name: name, dir: dir}
	s.chunks[name] = h
	return h, nil
}

// validChunk rejects names that would escape the chunks directory.
func validChunk(name string) error {
	if name == "" {
		return fmt.Errorf("empty chunk name")
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '-':
		default:
			return fmt.Errorf("invalid chunk name %q", name)
		}
	}
	return nil
}

// validKey accepts lowercase hex content keys only; keys name files.
func validKey(key string) error {
	if len(key) < 16 || len(key) > 128 {
		return fmt.Errorf("invalid content key %q", key)
	}
	for _, r := range key {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return fmt.Errorf("invalid content key %q", key)
		}
	}
	return nil
}

// retryBusy retries fn over brief backoff while SQLite reports a locked
// database. Contention never surfaces to callers as a hard failure until
// the retries are spent.
func retryBusy(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < 5; attempt++ {
		err = fn()
		if err == nil || !isBusy(err) {
			return err
		}
		select {
		case <-time.After(time.Duration(50*(attempt+1)) * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}
