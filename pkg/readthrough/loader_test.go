package readthrough

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/bistro-cache/internal/testutil"
	"github.com/Sternrassler/bistro-cache/pkg/cache"
	"github.com/Sternrassler/bistro-cache/pkg/coalesce"
	"github.com/rs/zerolog"
)

func setupTestLoader(t *testing.T) (*Loader, *cache.Manager) {
	t.Helper()

	manager := cache.NewManager(cache.DefaultConfig(), zerolog.Nop())
	co := coalesce.New(coalesce.DefaultConfig(), zerolog.Nop())
	return New(manager, co, zerolog.Nop()), manager
}

// brokenStore panics on every operation.
type brokenStore struct{}

func (brokenStore) Get(string) (any, bool) { panic("store corrupted") }
func (brokenStore) Set(string, any, time.Duration) { panic("store corrupted") }
func (brokenStore) Delete(string) { panic("store corrupted") }
func (brokenStore) IncrementVersion(string) uint64 { panic("store corrupted") }
func (brokenStore) ClearPattern(string) int { panic("store corrupted") }

// countingStore counts cache reads and can fail deletes.
type countingStore struct {
	*cache.Manager
	gets        int
	failDeletes bool
}

func (c *countingStore) Get(key string) (any, bool) {
	c.gets++
	return c.Manager.Get(key)
}

func (c *countingStore) Delete(key string) {
	if c.failDeletes {
		panic("store corrupted")
	}
	c.Manager.Delete(key)
}

func TestNew_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("New should panic with nil dependencies")
		}
	}()
	New(nil, nil, zerolog.Nop())
}

func TestLoad_MissThenHit(t *testing.T) {
	loader, manager := setupTestLoader(t)
	ctx := context.Background()

	calls := 0
	producer := func(ctx context.Context) (any, error) {
		calls++
		return []string{"soup"}, nil
	}

	val, hit, err := loader.Load(ctx, "menu-items:1:all", time.Hour, producer)
	if err != nil || hit {
		t.Fatalf("first Load() = (%v, hit=%v, %v), want miss", val, hit, err)
	}
	if _, ok := manager.Get("menu-items:1:all"); !ok {
		t.Fatal("result was not stored in the cache")
	}

	val, hit, err = loader.Load(ctx, "menu-items:1:all", time.Hour, producer)
	if err != nil || !hit {
		t.Fatalf("second Load() = (%v, hit=%v, %v), want hit", val, hit, err)
	}
	if calls != 1 {
		t.Errorf("producer calls = %d, want 1", calls)
	}
}

func TestLoad_ErrorNotCached(t *testing.T) {
	loader, manager := setupTestLoader(t)
	backendErr := errors.New("connection refused")

	_, _, err := loader.Load(context.Background(), "orders:1:all", time.Hour, func(ctx context.Context) (any, error) {
		return nil, backendErr
	})
	if !errors.Is(err, backendErr) {
		t.Fatalf("Load() error = %v, want %v", err, backendErr)
	}
	if manager.Len() != 0 {
		t.Errorf("failed load should not be cached, Len() = %d", manager.Len())
	}
}

// TestLoad_ConcurrentColdKey is the end-to-end scenario: ten concurrent reads
// of an uncached key cost one backend computation and share one result.
func TestLoad_ConcurrentColdKey(t *testing.T) {
	loader, manager := setupTestLoader(t)
	items := []string{"Tomato soup", "Sourdough", "Tiramisu"}
	p := testutil.NewGatedProducer(items)

	const callers = 10
	results := make([]any, callers)
	errs := make([]error, callers)
	var ready, wg sync.WaitGroup
	ready.Add(callers)
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer wg.Done()
			ready.Done()
			results[i], _, errs[i] = loader.Load(context.Background(), "menu-items:all", 3600*time.Second, p.Produce)
		}(i)
	}

	ready.Wait()
	if !p.WaitStarted(time.Second) {
		t.Fatal("producer never started")
	}
	time.Sleep(50 * time.Millisecond)
	p.Release()
	wg.Wait()

	if calls := p.Calls(); calls != 1 {
		t.Fatalf("backend computations = %d, want 1", calls)
	}
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Errorf("caller %d error = %v", i, errs[i])
			continue
		}
		got := results[i].([]string)
		if len(got) != len(items) || &got[0] != &items[0] {
			t.Errorf("caller %d got %v, want the shared item list", i, got)
		}
	}

	cached, ok := manager.Get("menu-items:all")
	if !ok || len(cached.([]string)) != 3 {
		t.Errorf("menu-items:all not cached after load")
	}
}

func TestLoad_SoftCacheFailure(t *testing.T) {
	co := coalesce.New(coalesce.DefaultConfig(), zerolog.Nop())
	loader := New(brokenStore{}, co, zerolog.Nop())

	val, hit, err := loader.Load(context.Background(), "categories:1:all", time.Hour, func(ctx context.Context) (any, error) {
		return "fresh", nil
	})
	if err != nil {
		t.Fatalf("Load() error = %v, cache failures must not fail the request", err)
	}
	if hit || val != "fresh" {
		t.Errorf("Load() = (%v, hit=%v), want (fresh, false)", val, hit)
	}
}

func TestInvalidate(t *testing.T) {
	loader, manager := setupTestLoader(t)
	ctx := context.Background()

	oldKey := manager.Key("orders", "page", "1", "50").String()
	if _, _, err := loader.Load(ctx, oldKey, time.Hour, func(ctx context.Context) (any, error) {
		return "page one", nil
	}); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	manager.Set("menu-items:1:all", "menu", time.Hour)

	if v := loader.Invalidate("orders"); v != 2 {
		t.Errorf("Invalidate() = %d, want 2", v)
	}

	if _, ok := manager.Get(oldKey); ok {
		t.Error("orphaned orders entry should be reclaimed")
	}
	if _, ok := manager.Get("menu-items:1:all"); !ok {
		t.Error("other namespaces must not be touched")
	}
	if newKey := manager.Key("orders", "page", "1", "50").String(); newKey != "orders:2:page:1:50" {
		t.Errorf("Key() after invalidate = %s, want orders:2:page:1:50", newKey)
	}
}

func TestGet_Typed(t *testing.T) {
	loader, _ := setupTestLoader(t)
	ctx := context.Background()

	fn := func(ctx context.Context) ([]int, error) { return []int{1, 2}, nil }

	got, hit, err := Get(ctx, loader, "categories:1:all", time.Hour, fn)
	if err != nil || hit || len(got) != 2 {
		t.Fatalf("first Get() = (%v, hit=%v, %v)", got, hit, err)
	}

	got, hit, err = Get(ctx, loader, "categories:1:all", time.Hour, fn)
	if err != nil || !hit || len(got) != 2 {
		t.Fatalf("second Get() = (%v, hit=%v, %v), want hit", got, hit, err)
	}
}

func TestGet_WrongCachedTypeReloads(t *testing.T) {
	loader, manager := setupTestLoader(t)
	manager.Set("categories:1:all", "not a slice", time.Hour)

	got, hit, err := Get(context.Background(), loader, "categories:1:all", time.Hour, func(ctx context.Context) ([]int, error) {
		return []int{7}, nil
	})
	if err != nil || hit {
		t.Fatalf("Get() = (%v, hit=%v, %v), want reload", got, hit, err)
	}
	if len(got) != 1 || got[0] != 7 {
		t.Errorf("Get() = %v, want [7]", got)
	}
}

func TestGet_OneLookupPerCall(t *testing.T) {
	store := &countingStore{Manager: cache.NewManager(cache.DefaultConfig(), zerolog.Nop())}
	loader := New(store, coalesce.New(coalesce.DefaultConfig(), zerolog.Nop()), zerolog.Nop())
	ctx := context.Background()

	fn := func(ctx context.Context) ([]int, error) { return []int{1}, nil }

	if _, hit, err := Get(ctx, loader, "menu-items:1:all", time.Hour, fn); err != nil || hit {
		t.Fatalf("first Get() = (hit=%v, %v), want miss", hit, err)
	}
	if store.gets != 1 {
		t.Errorf("cache lookups after miss = %d, want 1", store.gets)
	}

	if _, hit, err := Get(ctx, loader, "menu-items:1:all", time.Hour, fn); err != nil || !hit {
		t.Fatalf("second Get() = (hit=%v, %v), want hit", hit, err)
	}
	if store.gets != 2 {
		t.Errorf("cache lookups after hit = %d, want 2", store.gets)
	}
}

func TestGet_WrongCachedTypeFailingDelete(t *testing.T) {
	store := &countingStore{Manager: cache.NewManager(cache.DefaultConfig(), zerolog.Nop()), failDeletes: true}
	loader := New(store, coalesce.New(coalesce.DefaultConfig(), zerolog.Nop()), zerolog.Nop())
	store.Set("categories:1:all", "not a slice", time.Hour)

	got, hit, err := Get(context.Background(), loader, "categories:1:all", time.Hour, func(ctx context.Context) ([]int, error) {
		return []int{7}, nil
	})
	if err != nil || hit || len(got) != 1 {
		t.Fatalf("Get() = (%v, hit=%v, %v), want reload", got, hit, err)
	}
	if val, _ := store.Manager.Get("categories:1:all"); val == "not a slice" {
		t.Error("reloaded value should replace the stale entry")
	}
}

func TestLoad_TimeoutNotCached(t *testing.T) {
	manager := cache.NewManager(cache.DefaultConfig(), zerolog.Nop())
	co := coalesce.New(coalesce.Config{Timeout: 50 * time.Millisecond}, zerolog.Nop())
	loader := New(manager, co, zerolog.Nop())

	p := testutil.NewGatedProducer("late")
	p.IgnoreContext = true

	_, _, err := loader.Load(context.Background(), "orders:1:all", time.Hour, p.Produce)
	if !errors.Is(err, coalesce.ErrTimeout) {
		t.Fatalf("Load() error = %v, want ErrTimeout", err)
	}

	// Let the abandoned producer finish late
	p.Release()
	time.Sleep(50 * time.Millisecond)

	if _, ok := manager.Get("orders:1:all"); ok {
		t.Error("a result produced after the timeout must not be cached")
	}
}
