package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/ncmat/resilience"
)

// recordingObserver records store events for assertions.
type recordingObserver struct {
	mu      sync.Mutex
	lookups map[Result]int
	builds  int
	errors  int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{lookups: make(map[Result]int)}
}

func (o *recordingObserver) Lookup(_ context.Context, _, _ string, result Result) {
	o.mu.Lock()
	o.lookups[result]++
	o.mu.Unlock()
}

func (o *recordingObserver) Build(_ context.Context, _, _ string, _ time.Duration, err error) {
	o.mu.Lock()
	o.builds++
	if err != nil {
		o.errors++
	}
	o.mu.Unlock()
}

// fakeRegistry hands out indices and lets tests discard them.
type fakeRegistry struct {
	mu   sync.Mutex
	next int
	live map[int]bool
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{live: make(map[int]bool)}
}

func (r *fakeRegistry) add() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.next
	r.next++
	r.live[idx] = true
	return idx
}

func (r *fakeRegistry) drop(idx int) {
	r.mu.Lock()
	delete(r.live, idx)
	r.mu.Unlock()
}

func (r *fakeRegistry) alive(idx int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live[idx]
}

type material struct {
	name string
}

func newTestStore(reg *fakeRegistry, obs Observer) *Store[*material] {
	return NewStore(StoreConfig[*material]{
		Name:     "test",
		Validate: func(h *Handle[*material]) bool { return reg.alive(h.Index) },
		Observer: obs,
	})
}

func TestStore_GetOrCreate_HitReturnsSameHandle(t *testing.T) {
	reg := newFakeRegistry()
	obs := newRecordingObserver()
	s := newTestStore(reg, obs)
	ctx := context.Background()

	var calls int
	build := func(context.Context) (*material, int, error) {
		calls++
		return &material{name: "Al"}, reg.add(), nil
	}

	first, err := s.GetOrCreate(ctx, "Al", build)
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	second, err := s.GetOrCreate(ctx, "Al", build)
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}

	if calls != 1 {
		t.Errorf("builder calls = %d, want 1", calls)
	}
	if first != second {
		t.Error("second lookup should return the identical handle")
	}
	if first.Key != "Al" || first.Value.name != "Al" {
		t.Errorf("unexpected handle: %+v", first)
	}
	if obs.lookups[ResultMiss] != 1 || obs.lookups[ResultHit] != 1 {
		t.Errorf("lookups = %v, want 1 miss and 1 hit", obs.lookups)
	}
}

func TestStore_GetOrCreate_ConcurrentSingleBuild(t *testing.T) {
	reg := newFakeRegistry()
	s := newTestStore(reg, nil)
	ctx := context.Background()

	const numGoroutines = 64
	var calls atomic.Int32
	build := func(context.Context) (*material, int, error) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		return &material{name: "Fe2O3"}, reg.add(), nil
	}

	start := make(chan struct{})
	handles := make([]*Handle[*material], numGoroutines)
	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(i int) {
			defer wg.Done()
			<-start
			h, err := s.GetOrCreate(ctx, "Fe2O3", build)
			if err != nil {
				t.Errorf("GetOrCreate() error = %v", err)
				return
			}
			handles[i] = h
		}(i)
	}
	close(start)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("builder calls = %d, want 1", got)
	}
	for i, h := range handles {
		if h != handles[0] {
			t.Errorf("handle %d differs from handle 0", i)
		}
	}
}

func TestStore_GetOrCreate_DistinctKeysDoNotBlock(t *testing.T) {
	reg := newFakeRegistry()
	s := newTestStore(reg, nil)
	ctx := context.Background()

	started := make(chan struct{})
	unblock := make(chan struct{})
	slowDone := make(chan error, 1)

	go func() {
		_, err := s.GetOrCreate(ctx, "slow", func(context.Context) (*material, int, error) {
			close(started)
			<-unblock
			return &material{name: "slow"}, reg.add(), nil
		})
		slowDone <- err
	}()
	<-started

	fastDone := make(chan error, 1)
	go func() {
		_, err := s.GetOrCreate(ctx, "fast", func(context.Context) (*material, int, error) {
			return &material{name: "fast"}, reg.add(), nil
		})
		fastDone <- err
	}()

	select {
	case err := <-fastDone:
		if err != nil {
			t.Fatalf("fast GetOrCreate() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("build of an unrelated key blocked on a slow build")
	}

	close(unblock)
	if err := <-slowDone; err != nil {
		t.Fatalf("slow GetOrCreate() error = %v", err)
	}
}

func TestStore_GetOrCreate_StaleEntryRebuiltOnce(t *testing.T) {
	reg := newFakeRegistry()
	obs := newRecordingObserver()
	s := newTestStore(reg, obs)
	ctx := context.Background()

	var calls int
	build := func(context.Context) (*material, int, error) {
		calls++
		return &material{name: fmt.Sprintf("gen%d", calls)}, reg.add(), nil
	}

	first, err := s.GetOrCreate(ctx, "Cu", build)
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}

	reg.drop(first.Index)
	if _, ok := s.Get("Cu"); ok {
		t.Error("Get should not return a stale handle")
	}
	if n := s.Stale(); n != 1 {
		t.Errorf("Stale() = %d, want 1", n)
	}

	second, err := s.GetOrCreate(ctx, "Cu", build)
	if err != nil {
		t.Fatalf("GetOrCreate() after drop error = %v", err)
	}
	third, err := s.GetOrCreate(ctx, "Cu", build)
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}

	if calls != 2 {
		t.Errorf("builder calls = %d, want 2", calls)
	}
	if second == first || second.Index == first.Index {
		t.Error("stale handle should have been replaced")
	}
	if third != second {
		t.Error("rebuilt handle should be reused")
	}
	if !reg.alive(second.Index) {
		t.Error("rebuilt handle should be live")
	}
	if obs.lookups[ResultStale] != 1 {
		t.Errorf("stale lookups = %d, want 1", obs.lookups[ResultStale])
	}
	if s.Stale() != 0 {
		t.Errorf("Stale() = %d after rebuild, want 0", s.Stale())
	}
}

func TestStore_Prune(t *testing.T) {
	reg := newFakeRegistry()
	s := newTestStore(reg, nil)
	ctx := context.Background()

	handles := make(map[string]*Handle[*material])
	for _, key := range []string{"Al", "Cu", "Fe"} {
		h, err := s.GetOrCreate(ctx, key, func(context.Context) (*material, int, error) {
			return &material{name: key}, reg.add(), nil
		})
		if err != nil {
			t.Fatalf("GetOrCreate(%q) error = %v", key, err)
		}
		handles[key] = h
	}

	if n := s.Prune(); n != 0 {
		t.Errorf("Prune() on live store = %d, want 0", n)
	}

	reg.drop(handles["Cu"].Index)
	reg.drop(handles["Fe"].Index)
	if n := s.Prune(); n != 2 {
		t.Errorf("Prune() = %d, want 2", n)
	}
	if s.Len() != 1 || s.Stale() != 0 {
		t.Errorf("after Prune: Len() = %d, Stale() = %d, want 1, 0", s.Len(), s.Stale())
	}
	if keys := s.Keys(); len(keys) != 1 || keys[0] != "Al" {
		t.Errorf("Keys() = %v, want [Al]", keys)
	}
	if n := s.Prune(); n != 0 {
		t.Errorf("second Prune() = %d, want 0", n)
	}

	if NewStore(StoreConfig[int]{Name: "unvalidated"}).Prune() != 0 {
		t.Error("Prune() without a validator should drop nothing")
	}
}

func TestStore_GetOrCreate_ErrorsNotCached(t *testing.T) {
	reg := newFakeRegistry()
	obs := newRecordingObserver()
	s := newTestStore(reg, obs)
	ctx := context.Background()

	boom := errors.New("bad configuration")
	_, err := s.GetOrCreate(ctx, "bad", func(context.Context) (*material, int, error) {
		return nil, 0, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("GetOrCreate() error = %v, want %v", err, boom)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d after failed build, want 0", s.Len())
	}

	h, err := s.GetOrCreate(ctx, "bad", func(context.Context) (*material, int, error) {
		return &material{name: "fixed"}, reg.add(), nil
	})
	if err != nil {
		t.Fatalf("retry GetOrCreate() error = %v", err)
	}
	if h.Value.name != "fixed" {
		t.Errorf("Value = %q, want fixed", h.Value.name)
	}
	if obs.builds != 2 || obs.errors != 1 {
		t.Errorf("builds = %d, errors = %d; want 2 and 1", obs.builds, obs.errors)
	}
}

func TestStore_GetOrCreate_InvalidArguments(t *testing.T) {
	s := NewStore(StoreConfig[int]{Name: "ints"})
	ctx := context.Background()

	if _, err := s.GetOrCreate(ctx, "", func(context.Context) (int, int, error) { return 1, 0, nil }); err != ErrInvalidKey {
		t.Errorf("empty key error = %v, want ErrInvalidKey", err)
	}
	if _, err := s.GetOrCreate(ctx, "k", nil); err != ErrNilBuilder {
		t.Errorf("nil builder error = %v, want ErrNilBuilder", err)
	}
}

func TestStore_NoValidatorAlwaysLive(t *testing.T) {
	s := NewStore(StoreConfig[int]{Name: "ints"})
	ctx := context.Background()

	h, err := s.GetOrCreate(ctx, "k", func(context.Context) (int, int, error) { return 42, 7, nil })
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	got, ok := s.Get("k")
	if !ok || got != h || got.Value != 42 || got.Index != 7 {
		t.Errorf("Get() = %+v, %v", got, ok)
	}
	if s.Stale() != 0 {
		t.Errorf("Stale() = %d, want 0", s.Stale())
	}
	if s.Name() != "ints" {
		t.Errorf("Name() = %q, want ints", s.Name())
	}
}

func TestStore_InvalidateAndKeys(t *testing.T) {
	s := NewStore(StoreConfig[int]{Name: "ints"})
	ctx := context.Background()

	for i, k := range []string{"b", "a", "c"} {
		v := i
		if _, err := s.GetOrCreate(ctx, k, func(context.Context) (int, int, error) { return v, v, nil }); err != nil {
			t.Fatalf("GetOrCreate(%q) error = %v", k, err)
		}
	}
	keys := s.Keys()
	if len(keys) != 3 || keys[0] != "a" || keys[1] != "b" || keys[2] != "c" {
		t.Errorf("Keys() = %v, want [a b c]", keys)
	}

	s.Invalidate("b")
	s.Invalidate("missing")
	if s.Len() != 2 {
		t.Errorf("Len() = %d after Invalidate, want 2", s.Len())
	}
	if _, ok := s.Get("b"); ok {
		t.Error("invalidated key should miss")
	}
}

func TestStore_LimiterBoundsConcurrentBuilds(t *testing.T) {
	bulkhead := resilience.NewBulkhead(resilience.BulkheadConfig{MaxConcurrent: 2, MaxWait: -1})
	s := NewStore(StoreConfig[int]{Name: "limited", Limiter: bulkhead})
	ctx := context.Background()

	var active, peak atomic.Int32
	build := func(context.Context) (int, int, error) {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		active.Add(-1)
		return 1, 0, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := s.GetOrCreate(ctx, fmt.Sprintf("k%d", i), build); err != nil {
				t.Errorf("GetOrCreate() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	if p := peak.Load(); p > 2 {
		t.Errorf("peak concurrent builds = %d, want <= 2", p)
	}
	if s.Len() != 8 {
		t.Errorf("Len() = %d, want 8", s.Len())
	}
}

func TestStore_LimiterContextCancelled(t *testing.T) {
	bulkhead := resilience.NewBulkhead(resilience.BulkheadConfig{MaxConcurrent: 1, MaxWait: -1})
	if err := bulkhead.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer bulkhead.Release()

	s := NewStore(StoreConfig[int]{Name: "limited", Limiter: bulkhead})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := s.GetOrCreate(ctx, "k", func(context.Context) (int, int, error) { return 1, 0, nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("GetOrCreate() error = %v, want context.DeadlineExceeded", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
}
