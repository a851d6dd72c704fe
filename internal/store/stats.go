package store

import (
	"context"
	"database/sql"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// ChunkInfo holds one chunk's counters.
type ChunkInfo struct {
	Name         string    `json:"name"`
	Entries      int       `json:"entries"`
	StoreCount   int       `json:"store_count"`
	CreatedAt    time.Time `json:"created_at"`
	LastAccessed time.Time `json:"last_accessed"`
	IndexBytes   int64     `json:"index_bytes"`
}

// Stats holds storage-wide statistics.
type Stats struct {
	Root       string         `json:"root"`
	Entries    int            `json:"entries"`
	States     map[string]int `json:"states"`
	Chunks     []ChunkInfo    `json:"chunks"`
	TotalBytes int64          `json:"total_bytes"`
}

// Chunks lists every chunk present on disk, sorted by name.
func (s *Store) Chunks() ([]string, error) {
	root := filepath.Join(s.root, "chunks")
	dirs, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var names []string
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(root, d.Name(), "index.db")); err == nil {
			names = append(names, d.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// ChunkStats returns per-chunk counters for every chunk on disk.
func (s *Store) ChunkStats(ctx context.Context) ([]ChunkInfo, error) {
	names, err := s.Chunks()
	if err != nil {
		return nil, err
	}

	var infos []ChunkInfo
	for _, name := range names {
		h, err := s.handle(name, false)
		if err != nil {
			return nil, err
		}
		if h == nil {
			continue
		}

		info := ChunkInfo{Name: name}
		h.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&info.Entries)

		var created, accessed string
		err = h.db.QueryRowContext(ctx,
			`SELECT created_at, store_count, last_accessed FROM chunk_meta WHERE id = 1`).
			Scan(&created, &info.StoreCount, &accessed)
		if err != nil && err != sql.ErrNoRows {
			return nil, err
		}
		info.CreatedAt, _ = time.Parse(time.RFC3339, created)
		info.LastAccessed, _ = time.Parse(time.RFC3339, accessed)

		if fi, err := os.Stat(filepath.Join(h.dir, "index.db")); err == nil {
			info.IndexBytes = fi.Size()
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// GlobalStats aggregates entry counts, per-state counts, and disk usage
// across every chunk.
func (s *Store) GlobalStats(ctx context.Context) (*Stats, error) {
	st := &Stats{Root: s.root, States: make(map[string]int)}

	infos, err := s.ChunkStats(ctx)
	if err != nil {
		return nil, err
	}
	st.Chunks = infos

	for _, info := range infos {
		st.Entries += info.Entries

		h, err := s.handle(info.Name, false)
		if err != nil || h == nil {
			continue
		}
		rows, err := h.db.QueryContext(ctx,
			`SELECT state, COUNT(*) FROM entries GROUP BY state`)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var state string
			var n int
			if err := rows.Scan(&state, &n); err != nil {
				rows.Close()
				return nil, err
			}
			st.States[state] += n
		}
		rows.Close()
	}

	filepath.WalkDir(filepath.Join(s.root, "chunks"), func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if fi, err := d.Info(); err == nil {
			st.TotalBytes += fi.Size()
		}
		return nil
	})

	return st, nil
}
