package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/rcliao/engram/internal/brick"
	"github.com/rcliao/engram/internal/dynamics"
	"github.com/rcliao/engram/internal/frame"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func testFrame(fill float64) *frame.Frame {
	f := frame.New(8, 8)
	for i := range f.Cells {
		f.Cells[i] = fill
	}
	return f
}

func testPut(text, chunk string) PutParams {
	f := testFrame(0.5)
	return PutParams{
		Chunk:     chunk,
		Key:       testKey(text),
		Text:      text,
		Encoder:   "hash",
		State:     dynamics.StateConverged,
		Ticks:     12,
		Rotation:  0,
		Attempts:  1,
		Attractor: f,
		Brick: &brick.Brick{
			History:   []*frame.Frame{testFrame(0.2), f},
			Attractor: f,
			Ticks:     1,
			State:     dynamics.StateConverged,
		},
	}
}

func TestPutAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	p := testPut("remember this", "general")
	e, created, err := s.Put(ctx, p)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if !created {
		t.Fatal("expected a new entry")
	}
	if e.ID == "" {
		t.Fatal("expected non-empty ID")
	}
	if e.Chunk != "general" || e.Key != p.Key || e.HitCount != 0 {
		t.Fatalf("unexpected entry: %+v", e)
	}

	got, err := s.Get(ctx, "general", p.Key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Text != "remember this" || got.State != dynamics.StateConverged || got.Ticks != 12 {
		t.Fatalf("unexpected entry: %+v", got)
	}

	f, err := s.LoadAttractor(ctx, "general", p.Key)
	if err != nil {
		t.Fatalf("load attractor: %v", err)
	}
	if diff := cmp.Diff(p.Attractor, f); diff != "" {
		t.Fatalf("attractor mismatch (-want +got):\n%s", diff)
	}

	b, err := s.LoadBrick(ctx, "general", p.Key)
	if err != nil {
		t.Fatalf("load brick: %v", err)
	}
	if b == nil || len(b.History) != 2 {
		t.Fatalf("unexpected brick: %+v", b)
	}
}

func TestPutReinforces(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	p := testPut("repeated memory", "general")
	first, _, err := s.Put(ctx, p)
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	second, created, err := s.Put(ctx, p)
	if err != nil {
		t.Fatalf("second put: %v", err)
	}
	if created {
		t.Fatal("duplicate key should not create a new entry")
	}
	if second.ID != first.ID {
		t.Fatalf("entry identity changed: %s vs %s", second.ID, first.ID)
	}
	if second.HitCount != 1 {
		t.Fatalf("hit_count = %d, want 1 after reinforcement", second.HitCount)
	}
}

func TestPutSkip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	p := testPut("skip me", "general")
	s.Put(ctx, p)

	p.Policy = Skip
	e, created, err := s.Put(ctx, p)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if created || e.HitCount != 0 {
		t.Fatalf("skip mutated the entry: created=%v hits=%d", created, e.HitCount)
	}
}

func TestPutOverwrite(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	p := testPut("overwrite me", "general")
	first, _, err := s.Put(ctx, p)
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	p.Policy = Overwrite
	p.State = dynamics.StateOscillating
	p.Ticks = 77
	p.Rotation = 180
	p.Attempts = 3
	p.Attractor = testFrame(-0.5)

	e, created, err := s.Put(ctx, p)
	if err != nil {
		t.Fatalf("overwrite put: %v", err)
	}
	if created {
		t.Fatal("overwrite should not create a new entry")
	}
	if e.ID != first.ID {
		t.Fatal("overwrite changed entry identity")
	}
	if e.State != dynamics.StateOscillating || e.Ticks != 77 || e.Rotation != 180 {
		t.Fatalf("overwrite did not update outcome: %+v", e)
	}
	if e.HitCount != 0 {
		t.Fatalf("overwrite changed hit_count to %d", e.HitCount)
	}

	f, err := s.LoadAttractor(ctx, "general", p.Key)
	if err != nil {
		t.Fatalf("load attractor: %v", err)
	}
	if f.Cells[0] != -0.5 {
		t.Fatalf("attractor file not replaced, cell = %v", f.Cells[0])
	}
}

func TestScan(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, text := range []string{"one", "two", "three"} {
		if _, _, err := s.Put(ctx, testPut(text, "code")); err != nil {
			t.Fatalf("put %q: %v", text, err)
		}
	}
	s.Put(ctx, testPut("elsewhere", "general"))

	entries, err := s.Scan(ctx, "code")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("scanned %d entries, want 3", len(entries))
	}
	for _, e := range entries {
		if e.Chunk != "code" {
			t.Fatalf("entry chunk = %q, want code", e.Chunk)
		}
	}

	empty, err := s.Scan(ctx, "nonexistent")
	if err != nil {
		t.Fatalf("scan missing chunk: %v", err)
	}
	if empty != nil {
		t.Fatalf("missing chunk scanned %d entries", len(empty))
	}
}

func TestTouch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	p := testPut("touch me", "general")
	s.Put(ctx, p)

	before, _ := s.Get(ctx, "general", p.Key)
	time.Sleep(1100 * time.Millisecond)

	if err := s.Touch(ctx, "general", []string{p.Key}); err != nil {
		t.Fatalf("touch: %v", err)
	}

	after, _ := s.Get(ctx, "general", p.Key)
	if after.HitCount != 1 {
		t.Fatalf("hit_count = %d, want 1", after.HitCount)
	}
	if !after.LastAccessed.After(before.LastAccessed) {
		t.Fatalf("last_accessed not advanced: %v -> %v", before.LastAccessed, after.LastAccessed)
	}
}

func TestTouchMissingChunk(t *testing.T) {
	s := newTestStore(t)
	err := s.Touch(context.Background(), "nowhere", []string{testKey("x")})
	if err != ErrNotFound {
		t.Fatalf("touch on missing chunk = %v, want ErrNotFound", err)
	}
}

func TestFindAcrossChunks(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.Put(ctx, testPut("in general", "general"))
	p := testPut("in code", "code")
	s.Put(ctx, p)

	e, err := s.Find(ctx, p.Key)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if e.Chunk != "code" || e.Text != "in code" {
		t.Fatalf("found wrong entry: %+v", e)
	}

	if _, err := s.Find(ctx, testKey("never stored")); err != ErrNotFound {
		t.Fatalf("find missing = %v, want ErrNotFound", err)
	}
}

func TestFindBrick(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	p := testPut("brick holder", "science")
	s.Put(ctx, p)

	b, chunk, err := s.FindBrick(ctx, p.Key)
	if err != nil {
		t.Fatalf("find brick: %v", err)
	}
	if chunk != "science" || b == nil {
		t.Fatalf("FindBrick = %v in %q", b, chunk)
	}

	if _, _, err := s.FindBrick(ctx, testKey("no brick")); err != ErrNotFound {
		t.Fatalf("find missing brick = %v, want ErrNotFound", err)
	}
}

func TestLoadAttractorMissing(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.Put(ctx, testPut("exists", "general"))

	f, err := s.LoadAttractor(ctx, "general", testKey("missing"))
	if err != nil {
		t.Fatalf("load missing attractor: %v", err)
	}
	if f != nil {
		t.Fatal("missing attractor should load as nil")
	}

	f, err = s.LoadAttractor(ctx, "ghost-chunk", testKey("missing"))
	if err != nil || f != nil {
		t.Fatalf("missing chunk load = %v, %v", f, err)
	}
}

func TestCorruptFilesAreSkipped(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	p := testPut("soon corrupt", "general")
	s.Put(ctx, p)

	dir := filepath.Join(s.Root(), "chunks", "general")
	if err := os.WriteFile(attractorPath(dir, p.Key), []byte("garbage"), 0o644); err != nil {
		t.Fatalf("corrupt attractor: %v", err)
	}
	if err := os.WriteFile(brickPath(dir, p.Key), []byte("garbage"), 0o644); err != nil {
		t.Fatalf("corrupt brick: %v", err)
	}

	f, err := s.LoadAttractor(ctx, "general", p.Key)
	if err != nil {
		t.Fatalf("load corrupt attractor errored: %v", err)
	}
	if f != nil {
		t.Fatal("corrupt attractor should load as nil")
	}

	b, err := s.LoadBrick(ctx, "general", p.Key)
	if err != nil {
		t.Fatalf("load corrupt brick errored: %v", err)
	}
	if b != nil {
		t.Fatal("corrupt brick should load as nil")
	}
}

func TestChunksListing(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	names, err := s.Chunks()
	if err != nil {
		t.Fatalf("chunks on empty store: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("empty store lists %v", names)
	}

	s.Put(ctx, testPut("a", "general"))
	s.Put(ctx, testPut("b", "code"))

	names, err = s.Chunks()
	if err != nil {
		t.Fatalf("chunks: %v", err)
	}
	want := []string{"code", "general"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Fatalf("chunk names mismatch (-want +got):\n%s", diff)
	}
}

func TestChunkStats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.Put(ctx, testPut("one", "general"))
	s.Put(ctx, testPut("two", "general"))
	s.Put(ctx, testPut("one", "general")) // reinforce counts as a store

	infos, err := s.ChunkStats(ctx)
	if err != nil {
		t.Fatalf("chunk stats: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("got %d chunks, want 1", len(infos))
	}
	info := infos[0]
	if info.Name != "general" || info.Entries != 2 || info.StoreCount != 3 {
		t.Fatalf("unexpected chunk info: %+v", info)
	}
	if info.IndexBytes == 0 {
		t.Fatal("index size not reported")
	}
}

func TestGlobalStats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.Put(ctx, testPut("c1", "code"))
	s.Put(ctx, testPut("c2", "code"))
	p := testPut("osc", "general")
	p.State = dynamics.StateOscillating
	s.Put(ctx, p)

	st, err := s.GlobalStats(ctx)
	if err != nil {
		t.Fatalf("global stats: %v", err)
	}
	if st.Entries != 3 {
		t.Fatalf("entries = %d, want 3", st.Entries)
	}
	if st.States["CONVERGED"] != 2 || st.States["OSCILLATING"] != 1 {
		t.Fatalf("state counts: %v", st.States)
	}
	if st.TotalBytes == 0 {
		t.Fatal("total bytes not reported")
	}
}

func TestInvalidNames(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	p := testPut("bad chunk", "../evil")
	if _, _, err := s.Put(ctx, p); err == nil {
		t.Fatal("path-like chunk name should be rejected")
	}

	p = testPut("bad key", "general")
	p.Key = "../../etc/passwd"
	if _, _, err := s.Put(ctx, p); err == nil {
		t.Fatal("non-hex key should be rejected")
	}
}

func TestConcurrentTouches(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	p := testPut("contended", "general")
	s.Put(ctx, p)

	var wg sync.WaitGroup
	const workers = 8
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Touch(ctx, "general", []string{p.Key}); err != nil {
				t.Errorf("touch: %v", err)
			}
		}()
	}
	wg.Wait()

	e, err := s.Get(ctx, "general", p.Key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if e.HitCount != workers {
		t.Fatalf("hit_count = %d, want %d (lost updates)", e.HitCount, workers)
	}
}
