package poolkeeper

import (
	"context"
	"io"

	"github.com/arvil-systems/poolkeeper/internal/coordinator"
	"github.com/arvil-systems/poolkeeper/pkg/factory"
	"github.com/arvil-systems/poolkeeper/pkg/metrics"
)

// Coordinator is the public facade over the internal, single-goroutine
// pool dispatch loop. It owns no state of its own; every method
// translates between the public types in this package and the internal
// mirror types coordinator.Actor works with, then delegates.
type Coordinator struct {
	actor *coordinator.Actor
}

// New constructs and starts a Coordinator backed by f. The Coordinator
// is ready to accept AddPool/AddPools calls immediately; it starts with
// no pools registered.
func New(f factory.WorkerFactory, opts ...Option) *Coordinator {
	o := &options{sink: metrics.Noop{}}
	for _, opt := range opts {
		opt(o)
	}

	actor := coordinator.NewActor(f, o.sink, o.logger)
	actor.Start()
	return &Coordinator{actor: actor}
}

func toInternalConfig(cfg PoolConfig) (coordinator.PoolConfig, error) {
	cfg = cfg.withDefaults()

	cullInterval, err := cfg.CullInterval.Duration()
	if err != nil {
		return coordinator.PoolConfig{}, err
	}
	maxAge, err := cfg.MaxAge.Duration()
	if err != nil {
		return coordinator.PoolConfig{}, err
	}

	return coordinator.PoolConfig{
		Name:           cfg.Name,
		MaxCount:       cfg.MaxCount,
		InitCount:      cfg.InitCount,
		Descriptor:     cfg.Descriptor,
		AddMemberRetry: cfg.AddMemberRetry,
		CullInterval:   cullInterval,
		MaxAge:         maxAge,
	}, nil
}

// AddPool registers a single pool, spawning its InitCount workers. It
// fails with ErrDuplicatePoolName if cfg.Name is already registered.
func (c *Coordinator) AddPool(ctx context.Context, cfg PoolConfig) error {
	internalCfg, err := toInternalConfig(cfg)
	if err != nil {
		return err
	}
	return translateErr(c.actor.AddPool(ctx, internalCfg))
}

// AddPools registers multiple pools. It attempts every pool in cfgs even
// after one fails to register, and returns the first error encountered,
// if any. A config whose time specs cannot be converted (an unrecognized
// unit) makes AddPools return that error before any pool is registered.
func (c *Coordinator) AddPools(ctx context.Context, cfgs []PoolConfig) error {
	internalCfgs := make([]coordinator.PoolConfig, len(cfgs))
	for i, cfg := range cfgs {
		internalCfg, err := toInternalConfig(cfg)
		if err != nil {
			return err
		}
		internalCfgs[i] = internalCfg
	}
	return translateErr(c.actor.AddPools(ctx, internalCfgs))
}

// TakeNamed checks out one free worker from the named pool, growing the
// pool on demand up to its configured retry budget. It returns
// ErrNoPool if poolName was never registered, or ErrNoMembers if the
// pool has no free worker and cannot grow to satisfy the request.
func (c *Coordinator) TakeNamed(ctx context.Context, poolName string, consumer ConsumerID) (WorkerHandle, error) {
	handle, err := c.actor.TakeNamed(ctx, poolName, consumer)
	return handle, translateErr(err)
}

// TakeAny checks out a free worker from whichever registered pool the
// selection strategy (random, then max-free, then max-available) can
// satisfy. It returns ErrNoPool if no pool is registered at all.
func (c *Coordinator) TakeAny(ctx context.Context, consumer ConsumerID) (WorkerHandle, error) {
	handle, err := c.actor.TakeAny(ctx, consumer)
	return handle, translateErr(err)
}

// Return releases handle back to its pool. status determines whether the
// worker is recycled as free (StatusOK) or destroyed and replaced
// (StatusFail). Return is asynchronous: it never blocks on the
// Coordinator's processing of the release.
func (c *Coordinator) Return(handle WorkerHandle, status Status, consumer ConsumerID) {
	c.actor.Return(handle, coordinator.Status(status), consumer)
}

// WorkerExited notifies the Coordinator that handle's underlying process
// terminated on its own. It is treated identically to Return(handle,
// StatusFail, ...): the worker is destroyed and the pool is repopulated.
func (c *Coordinator) WorkerExited(handle WorkerHandle) {
	c.actor.WorkerExited(handle)
}

// ConsumerExited notifies the Coordinator that consumer terminated.
// Every worker consumer still held is returned: with StatusOK if reason
// is Normal, StatusFail otherwise.
func (c *Coordinator) ConsumerExited(consumer ConsumerID, reason ExitReason) {
	c.actor.ConsumerExited(consumer, coordinator.ExitReason(reason))
}

// PoolStat is a read-only snapshot of one pool's population counters.
type PoolStat struct {
	Name       string
	Capacity   int
	Created    int
	CheckedOut int
	Free       int
	Available  int
}

// Stats returns a snapshot of every registered pool, in registration
// order.
func (c *Coordinator) Stats() []PoolStat {
	internalStats := c.actor.Stats()
	out := make([]PoolStat, len(internalStats))
	for i, s := range internalStats {
		out[i] = PoolStat{
			Name:       s.Name,
			Capacity:   s.Capacity,
			Created:    s.Created,
			CheckedOut: s.CheckedOut,
			Free:       s.Free,
			Available:  s.Available,
		}
	}
	return out
}

// Report writes a tab-aligned status table for every registered pool to
// w.
func (c *Coordinator) Report(w io.Writer) error {
	internalStats := c.actor.Stats()
	return coordinator.WriteReport(w, internalStats)
}

// Stop drains in-flight requests, cancels every cull timer, and shuts
// down the dispatch loop. AddPool, AddPools, TakeNamed and TakeAny
// submitted after Stop fail with ErrCoordinatorStopped; Return,
// WorkerExited and ConsumerExited are dropped, and Stats returns nil.
func (c *Coordinator) Stop() {
	c.actor.Stop()
}

func translateErr(err error) error {
	switch err {
	case coordinator.ErrDuplicatePoolName:
		return ErrDuplicatePoolName
	case coordinator.ErrNoPool:
		return ErrNoPool
	case coordinator.ErrNoMembers:
		return ErrNoMembers
	case coordinator.ErrCoordinatorStopped:
		return ErrCoordinatorStopped
	default:
		return err
	}
}
