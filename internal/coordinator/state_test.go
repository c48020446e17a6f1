package coordinator

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arvil-systems/poolkeeper/pkg/metrics"
)

// fakeFactory is a minimal factory.WorkerFactory for exercising the
// Coordinator without any real backing resource.
type fakeFactory struct {
	seq         atomic.Int64
	spawns      atomic.Int64
	terminates  atomic.Int64
	failNextN   atomic.Int64
}

func (f *fakeFactory) Spawn(_ context.Context, poolName string, _ interface{}) (interface{}, error) {
	f.spawns.Add(1)
	if f.failNextN.Load() > 0 {
		f.failNextN.Add(-1)
		return nil, errSpawnRefused
	}
	return poolName + "#" + itoa(int(f.seq.Add(1))), nil
}

func (f *fakeFactory) Terminate(_ context.Context, _ string, _ interface{}) error {
	f.terminates.Add(1)
	return nil
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

var errSpawnRefused = errTestSpawnRefused{}

type errTestSpawnRefused struct{}

func (errTestSpawnRefused) Error() string { return "spawn refused" }

func newTestActor(f *fakeFactory) *Actor {
	a := NewActor(f, metrics.Noop{}, nil)
	a.Start()
	return a
}

func TestBasicCheckoutReturn(t *testing.T) {
	f := &fakeFactory{}
	a := newTestActor(f)
	defer a.Stop()
	ctx := context.Background()

	if err := a.AddPool(ctx, PoolConfig{Name: "p", MaxCount: 3, InitCount: 2}); err != nil {
		t.Fatalf("AddPool: %v", err)
	}

	stats := a.Stats()
	if stats[0].Free != 2 || stats[0].CheckedOut != 0 {
		t.Fatalf("after init: got free=%d in_use=%d, want free=2 in_use=0", stats[0].Free, stats[0].CheckedOut)
	}

	h1, err := a.TakeNamed(ctx, "p", "c1")
	if err != nil {
		t.Fatalf("TakeNamed: %v", err)
	}

	stats = a.Stats()
	if stats[0].Free != 1 || stats[0].CheckedOut != 1 {
		t.Fatalf("after take: got free=%d in_use=%d, want free=1 in_use=1", stats[0].Free, stats[0].CheckedOut)
	}

	a.Return(h1, StatusOK, "c1")
	stats = a.Stats()
	if stats[0].Free != 2 || stats[0].CheckedOut != 0 {
		t.Fatalf("after return: got free=%d in_use=%d, want free=2 in_use=0", stats[0].Free, stats[0].CheckedOut)
	}
}

// Growth happens on demand during take until max_count is reached,
// after which further takes fail with ErrNoMembers.
func TestOnDemandGrowth(t *testing.T) {
	f := &fakeFactory{}
	a := newTestActor(f)
	defer a.Stop()
	ctx := context.Background()

	if err := a.AddPool(ctx, PoolConfig{Name: "p", MaxCount: 3, InitCount: 1, AddMemberRetry: 2}); err != nil {
		t.Fatalf("AddPool: %v", err)
	}

	seen := map[interface{}]bool{}
	for _, c := range []string{"c1", "c2", "c3"} {
		h, err := a.TakeNamed(ctx, "p", c)
		if err != nil {
			t.Fatalf("TakeNamed(%s): %v", c, err)
		}
		if seen[h] {
			t.Fatalf("handle %v reused", h)
		}
		seen[h] = true
	}

	stats := a.Stats()
	if stats[0].Free != 0 || stats[0].CheckedOut != 3 {
		t.Fatalf("got free=%d in_use=%d, want free=0 in_use=3", stats[0].Free, stats[0].CheckedOut)
	}

	if _, err := a.TakeNamed(ctx, "p", "c4"); err != ErrNoMembers {
		t.Fatalf("TakeNamed(c4): got %v, want ErrNoMembers", err)
	}
}

func TestConsumerExitedReclaimsWorkers(t *testing.T) {
	f := &fakeFactory{}
	a := newTestActor(f)
	defer a.Stop()
	ctx := context.Background()

	if err := a.AddPool(ctx, PoolConfig{Name: "p", MaxCount: 3, InitCount: 2}); err != nil {
		t.Fatalf("AddPool: %v", err)
	}
	if _, err := a.TakeNamed(ctx, "p", "c1"); err != nil {
		t.Fatalf("TakeNamed: %v", err)
	}

	a.ConsumerExited("c1", ExitReason("killed"))

	stats := a.Stats()
	if stats[0].Free != 2 || stats[0].CheckedOut != 0 {
		t.Fatalf("got free=%d in_use=%d, want free=2 in_use=0", stats[0].Free, stats[0].CheckedOut)
	}
}

func TestWorkerExitedTriggersReplacement(t *testing.T) {
	f := &fakeFactory{}
	a := newTestActor(f)
	defer a.Stop()
	ctx := context.Background()

	if err := a.AddPool(ctx, PoolConfig{Name: "p", MaxCount: 2, InitCount: 2, AddMemberRetry: 1}); err != nil {
		t.Fatalf("AddPool: %v", err)
	}
	h1, err := a.TakeNamed(ctx, "p", "c1")
	if err != nil {
		t.Fatalf("TakeNamed: %v", err)
	}

	a.WorkerExited(h1)

	stats := a.Stats()
	if stats[0].Free != 2 || stats[0].CheckedOut != 0 {
		t.Fatalf("got free=%d in_use=%d, want free=2 in_use=0", stats[0].Free, stats[0].CheckedOut)
	}
	if f.spawns.Load() != 3 { // 2 init + 1 replacement
		t.Fatalf("got %d spawns, want 3", f.spawns.Load())
	}
}

// With pool A at capacity, TakeAny must fall through to pool B via the
// max_free/max_avail strategies rather than returning ErrNoMembers.
func TestTakeAnyFallsBackAcrossPools(t *testing.T) {
	f := &fakeFactory{}
	a := newTestActor(f)
	defer a.Stop()
	ctx := context.Background()

	if err := a.AddPool(ctx, PoolConfig{Name: "A", MaxCount: 1, InitCount: 1}); err != nil {
		t.Fatalf("AddPool(A): %v", err)
	}
	if err := a.AddPool(ctx, PoolConfig{Name: "B", MaxCount: 2, InitCount: 2}); err != nil {
		t.Fatalf("AddPool(B): %v", err)
	}
	if _, err := a.TakeNamed(ctx, "A", "c0"); err != nil {
		t.Fatalf("TakeNamed(A): %v", err)
	}

	h, err := a.TakeAny(ctx, "c1")
	if err != nil {
		t.Fatalf("TakeAny: %v", err)
	}
	if h == nil {
		t.Fatal("TakeAny returned nil handle")
	}

	stats := a.Stats()
	var bStat PoolStat
	for _, s := range stats {
		if s.Name == "B" {
			bStat = s
		}
	}
	if bStat.Free != 1 || bStat.CheckedOut != 1 {
		t.Fatalf("got B free=%d in_use=%d, want free=1 in_use=1", bStat.Free, bStat.CheckedOut)
	}
}

// Culling never drops the pool's total population (free plus in-use)
// below init_count, and only removes free members older than max_age.
func TestCullRespectsInitCountFloor(t *testing.T) {
	f := &fakeFactory{}
	s := newState(f, metrics.Noop{}, nil)

	if err := s.addPool(PoolConfig{Name: "p", MaxCount: 5, InitCount: 2, AddMemberRetry: 1, CullInterval: 100 * time.Millisecond, MaxAge: 50 * time.Millisecond}); err != nil {
		t.Fatalf("addPool: %v", err)
	}

	var handles []interface{}
	for i := 0; i < 4; i++ {
		h, err := s.takeNamed("p", i)
		if err != nil {
			t.Fatalf("takeNamed #%d: %v", i, err)
		}
		handles = append(handles, h)
	}
	for i, h := range handles {
		s.returnOK(h, i)
	}

	if s.pools["p"].freeCount != 4 {
		t.Fatalf("got free=%d, want 4", s.pools["p"].freeCount)
	}

	time.Sleep(60 * time.Millisecond)

	if _, ok := s.cull("p"); !ok {
		t.Fatal("cull: pool not found")
	}

	if s.pools["p"].freeCount != 2 {
		t.Fatalf("after cull: got free=%d, want 2 (max_cull = 4 - (2 - 0) = 2)", s.pools["p"].freeCount)
	}
	if f.terminates.Load() != 2 {
		t.Fatalf("got %d terminates, want 2", f.terminates.Load())
	}
}

// AddPool with a duplicate name fails without mutating existing state.
func TestAddPoolDuplicateName(t *testing.T) {
	f := &fakeFactory{}
	a := newTestActor(f)
	defer a.Stop()
	ctx := context.Background()

	if err := a.AddPool(ctx, PoolConfig{Name: "p", MaxCount: 1, InitCount: 1}); err != nil {
		t.Fatalf("AddPool: %v", err)
	}
	if err := a.AddPool(ctx, PoolConfig{Name: "p", MaxCount: 5, InitCount: 5}); err != ErrDuplicatePoolName {
		t.Fatalf("got %v, want ErrDuplicatePoolName", err)
	}

	stats := a.Stats()
	if stats[0].Capacity != 1 {
		t.Fatalf("got capacity=%d, want 1 (duplicate AddPool must not mutate the existing pool)", stats[0].Capacity)
	}
}

// TakeNamed against an unregistered pool fails with ErrNoPool.
func TestTakeNamedUnknownPool(t *testing.T) {
	f := &fakeFactory{}
	a := newTestActor(f)
	defer a.Stop()

	if _, err := a.TakeNamed(context.Background(), "ghost", "c1"); err != ErrNoPool {
		t.Fatalf("got %v, want ErrNoPool", err)
	}
}

// add_member_retry = 0 (NoRetry) never grows the pool during take.
func TestTakeNamedNoRetryNeverGrows(t *testing.T) {
	f := &fakeFactory{}
	a := newTestActor(f)
	defer a.Stop()
	ctx := context.Background()

	if err := a.AddPool(ctx, PoolConfig{Name: "p", MaxCount: 5, InitCount: 0, AddMemberRetry: 0}); err != nil {
		t.Fatalf("AddPool: %v", err)
	}

	if _, err := a.TakeNamed(ctx, "p", "c1"); err != ErrNoMembers {
		t.Fatalf("got %v, want ErrNoMembers", err)
	}
	if f.spawns.Load() != 0 {
		t.Fatalf("got %d spawns, want 0", f.spawns.Load())
	}
}
