package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/rcliao/engram/internal/brick"
	"github.com/rcliao/engram/internal/frame"
)

func attractorPath(dir, key string) string {
	return filepath.Join(dir, "attractors", key+".frame")
}

func brickPath(dir, key string) string {
	return filepath.Join(dir, "bricks", key+".brick")
}

func (s *Store) writeArtifacts(h *chunkHandle, p PutParams) error {
	if p.Attractor != nil {
		data, err := p.Attractor.Marshal()
		if err != nil {
			return fmt.Errorf("encode attractor: %w", err)
		}
		if err := os.WriteFile(attractorPath(h.dir, p.Key), data, 0o644); err != nil {
			return fmt.Errorf("write attractor: %w", err)
		}
	}
	if p.Brick != nil {
		data, err := p.Brick.Marshal()
		if err != nil {
			return fmt.Errorf("encode brick: %w", err)
		}
		if err := os.WriteFile(brickPath(h.dir, p.Key), data, 0o644); err != nil {
			return fmt.Errorf("write brick: %w", err)
		}
	}
	return nil
}

// LoadAttractor reads a stored attractor. Missing or corrupt files return
// nil rather than an error; scans log the corruption and skip the entry.
func (s *Store) LoadAttractor(ctx context.Context, chunk, key string) (*frame.Frame, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	cacheKey := chunk + "/" + key
	if v, ok := s.cache.Get(cacheKey); ok {
		return v.(*frame.Frame), nil
	}

	h, err := s.handle(chunk, false)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, nil
	}

	data, err := os.ReadFile(attractorPath(h.dir, key))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read attractor: %w", err)
	}

	f, err := frame.Unmarshal(data)
	if err != nil {
		s.log.Warn("skipping corrupt attractor",
			zap.String("chunk", chunk), zap.String("key", key), zap.Error(err))
		return nil, nil
	}

	s.cache.Set(cacheKey, f, int64(8*len(f.Cells)))
	return f, nil
}

// LoadBrick reads a stored brick. Missing or corrupt files return nil,
// matching LoadAttractor's skip-and-continue contract.
func (s *Store) LoadBrick(ctx context.Context, chunk, key string) (*brick.Brick, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	h, err := s.handle(chunk, false)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, nil
	}

	data, err := os.ReadFile(brickPath(h.dir, key))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read brick: %w", err)
	}

	b, err := brick.Unmarshal(data)
	if err != nil {
		s.log.Warn("skipping corrupt brick",
			zap.String("chunk", chunk), zap.String("key", key), zap.Error(err))
		return nil, nil
	}
	return b, nil
}

// FindBrick searches every chunk for a brick. Returns the brick and the
// chunk it was found in, or ErrNotFound.
func (s *Store) FindBrick(ctx context.Context, key string) (*brick.Brick, string, error) {
	names, err := s.Chunks()
	if err != nil {
		return nil, "", err
	}
	for _, name := range names {
		b, err := s.LoadBrick(ctx, name, key)
		if err != nil {
			return nil, "", err
		}
		if b != nil {
			return b, name, nil
		}
	}
	return nil, "", ErrNotFound
}
