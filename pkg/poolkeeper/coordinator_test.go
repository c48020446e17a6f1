package poolkeeper

import (
	"context"
	"sync/atomic"
	"testing"
)

type stubFactory struct {
	seq atomic.Int64
}

func (f *stubFactory) Spawn(_ context.Context, poolName string, _ interface{}) (interface{}, error) {
	return poolName + "-" + string(rune('a'+f.seq.Add(1)%26)), nil
}

func (f *stubFactory) Terminate(_ context.Context, _ string, _ interface{}) error {
	return nil
}

func TestCoordinatorAddPoolAndTake(t *testing.T) {
	coord := New(&stubFactory{})
	defer coord.Stop()
	ctx := context.Background()

	if err := coord.AddPool(ctx, PoolConfig{Name: "db", MaxCount: 2, InitCount: 1}); err != nil {
		t.Fatalf("AddPool: %v", err)
	}

	handle, err := coord.TakeNamed(ctx, "db", "consumer-1")
	if err != nil {
		t.Fatalf("TakeNamed: %v", err)
	}

	stats := coord.Stats()
	if len(stats) != 1 || stats[0].CheckedOut != 1 {
		t.Fatalf("got stats %+v, want one pool with CheckedOut=1", stats)
	}

	coord.Return(handle, StatusOK, "consumer-1")

	stats = coord.Stats()
	if stats[0].CheckedOut != 0 || stats[0].Free != 1 {
		t.Fatalf("got stats %+v, want Free=1 CheckedOut=0 after return", stats)
	}
}

func TestCoordinatorStopRejectsFurtherRequests(t *testing.T) {
	coord := New(&stubFactory{})
	ctx := context.Background()

	if err := coord.AddPool(ctx, PoolConfig{Name: "db", MaxCount: 1, InitCount: 1}); err != nil {
		t.Fatalf("AddPool: %v", err)
	}
	coord.Stop()

	if err := coord.AddPool(ctx, PoolConfig{Name: "other", MaxCount: 1, InitCount: 1}); err != ErrCoordinatorStopped {
		t.Fatalf("got %v, want ErrCoordinatorStopped", err)
	}
}

func TestTimeSpecDuration(t *testing.T) {
	cases := []struct {
		spec TimeSpec
		want int64 // nanoseconds
	}{
		{TimeSpec{N: 2, Unit: UnitMinute}, 2 * 60 * 1e9},
		{TimeSpec{N: 500, Unit: UnitMillisecond}, 500 * 1e6},
		{TimeSpec{N: 0, Unit: ""}, 0},
	}
	for _, c := range cases {
		got, err := c.spec.Duration()
		if err != nil {
			t.Fatalf("Duration(%+v): %v", c.spec, err)
		}
		if int64(got) != c.want {
			t.Fatalf("Duration(%+v) = %d, want %d", c.spec, int64(got), c.want)
		}
	}
}

func TestTimeSpecDurationRejectsUnknownUnit(t *testing.T) {
	_, err := TimeSpec{N: 1, Unit: "fortnight"}.Duration()
	if err == nil {
		t.Fatal("expected error for unrecognized unit")
	}
}
