package coordinator

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/arvil-systems/poolkeeper/pkg/factory"
	"github.com/arvil-systems/poolkeeper/pkg/metrics"
)

// Actor is the running Coordinator: request dispatch plus the state it
// dispatches against. Every exported method here enqueues a message
// and, for synchronous operations, blocks on a reply channel; the
// single goroutine started by Start is the only thing that ever touches
// the embedded *state, which is what gives every pool-state transition
// its linearizability without a lock.
//
// The Start/Stop lifecycle guards (atomic flags plus a start mutex)
// make repeated Start/Stop calls idempotent.
type Actor struct {
	mailbox *mailbox
	state   *state
	cull    *cullScheduler

	startMu sync.Mutex
	started atomic.Bool
	stopped atomic.Bool
	doneCh  chan struct{}
}

// NewActor constructs an Actor. It does not start the run loop; call
// Start.
func NewActor(f factory.WorkerFactory, sink metrics.Sink, logger *zap.Logger) *Actor {
	mb := newMailbox()
	return &Actor{
		mailbox: mb,
		state:   newState(f, sink, logger),
		cull:    newCullScheduler(mb),
		doneCh:  make(chan struct{}),
	}
}

// Start begins the dispatch loop in its own goroutine. Calling Start
// more than once is a no-op.
func (a *Actor) Start() {
	a.startMu.Lock()
	defer a.startMu.Unlock()
	if a.started.Swap(true) {
		return
	}
	go a.run()
}

func (a *Actor) run() {
	defer close(a.doneCh)
	for {
		msg, ok := a.mailbox.recv()
		if !ok {
			return
		}
		a.dispatch(msg)
	}
}

func (a *Actor) dispatch(msg interface{}) {
	switch m := msg.(type) {

	case reqAddPool:
		err := a.state.addPool(m.cfg)
		if err == nil {
			a.cull.schedule(m.cfg.Name, m.cfg.CullInterval)
		}
		m.reply <- err

	case reqAddPools:
		var firstErr error
		for _, cfg := range m.cfgs {
			if err := a.state.addPool(cfg); err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			a.cull.schedule(cfg.Name, cfg.CullInterval)
		}
		m.reply <- firstErr

	case reqTakeNamed:
		handle, err := a.state.takeNamed(m.poolName, m.consumer)
		m.reply <- takeReply{handle: handle, err: err}

	case reqTakeAny:
		handle, err := a.state.takeAny(m.consumer)
		m.reply <- takeReply{handle: handle, err: err}

	case reqReturn:
		a.state.returnWorker(m.handle, m.status, m.consumer)

	case reqStats:
		m.reply <- a.state.stats()

	case reqStop:
		a.cull.stopAll()
		close(m.reply)

	case evtWorkerExited:
		a.state.workerExited(m.handle)

	case evtConsumerExited:
		a.state.consumerExited(m.consumer, m.reason)

	case cullTick:
		if next, ok := a.state.cull(m.poolName); ok {
			a.cull.schedule(m.poolName, next)
		}
	}
}

// --- request/event message types ---

type takeReply struct {
	handle interface{}
	err    error
}

type reqAddPool struct {
	cfg   PoolConfig
	reply chan error
}

type reqAddPools struct {
	cfgs  []PoolConfig
	reply chan error
}

type reqTakeNamed struct {
	poolName string
	consumer interface{}
	reply    chan takeReply
}

type reqTakeAny struct {
	consumer interface{}
	reply    chan takeReply
}

type reqReturn struct {
	handle   interface{}
	status   Status
	consumer interface{}
}

type reqStats struct {
	reply chan []PoolStat
}

type reqStop struct {
	reply chan struct{}
}

type evtWorkerExited struct {
	handle interface{}
}

type evtConsumerExited struct {
	consumer interface{}
	reason   ExitReason
}

// --- public, blocking/fire-and-forget API ---

// AddPool implements the sync add_pool operation.
func (a *Actor) AddPool(ctx context.Context, cfg PoolConfig) error {
	if a.stopped.Load() {
		return ErrCoordinatorStopped
	}
	reply := make(chan error, 1)
	a.mailbox.send(reqAddPool{cfg: cfg, reply: reply})
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AddPools implements the sync add_pools operation.
func (a *Actor) AddPools(ctx context.Context, cfgs []PoolConfig) error {
	if a.stopped.Load() {
		return ErrCoordinatorStopped
	}
	reply := make(chan error, 1)
	a.mailbox.send(reqAddPools{cfgs: cfgs, reply: reply})
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TakeNamed implements the sync take_named operation. The actual wait
// happens on a channel the caller selects on alongside ctx.Done(); an
// abandoned reply is simply never read, since the channel is buffered
// and owned solely by this call.
func (a *Actor) TakeNamed(ctx context.Context, poolName string, consumer interface{}) (interface{}, error) {
	if a.stopped.Load() {
		return nil, ErrCoordinatorStopped
	}
	reply := make(chan takeReply, 1)
	a.mailbox.send(reqTakeNamed{poolName: poolName, consumer: consumer, reply: reply})
	select {
	case r := <-reply:
		return r.handle, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TakeAny implements the sync take_any operation.
func (a *Actor) TakeAny(ctx context.Context, consumer interface{}) (interface{}, error) {
	if a.stopped.Load() {
		return nil, ErrCoordinatorStopped
	}
	reply := make(chan takeReply, 1)
	a.mailbox.send(reqTakeAny{consumer: consumer, reply: reply})
	select {
	case r := <-reply:
		return r.handle, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Return implements the async return operation. It never blocks the
// caller on the Coordinator's processing of the return.
func (a *Actor) Return(handle interface{}, status Status, consumer interface{}) {
	if a.stopped.Load() {
		return
	}
	a.mailbox.send(reqReturn{handle: handle, status: status, consumer: consumer})
}

// Stats implements the sync pool_stats operation.
func (a *Actor) Stats() []PoolStat {
	if a.stopped.Load() {
		return nil
	}
	reply := make(chan []PoolStat, 1)
	a.mailbox.send(reqStats{reply: reply})
	return <-reply
}

// WorkerExited notifies the Coordinator that a worker process terminated
// on its own. Callers are the WorkerFactory implementation's own
// termination-adapter, not the Coordinator itself; detecting that a
// worker died is the factory's responsibility, since it is the one
// thing that knows how the worker was started.
func (a *Actor) WorkerExited(handle interface{}) {
	if a.stopped.Load() {
		return
	}
	a.mailbox.send(evtWorkerExited{handle: handle})
}

// ConsumerExited notifies the Coordinator that a borrowing consumer
// terminated. Callers are whatever completion-tracking adapter the
// embedding application uses for its consumers (a context cancellation
// watcher, a supervised-process monitor, ...).
func (a *Actor) ConsumerExited(consumer interface{}, reason ExitReason) {
	if a.stopped.Load() {
		return
	}
	a.mailbox.send(evtConsumerExited{consumer: consumer, reason: reason})
}

// Stop implements the sync stop operation: in-flight requests drain, all
// cull timers are cancelled, and the run loop exits. Stop is idempotent;
// subsequent calls return immediately.
func (a *Actor) Stop() {
	if a.stopped.Swap(true) {
		<-a.doneCh
		return
	}
	reply := make(chan struct{})
	a.mailbox.send(reqStop{reply: reply})
	<-reply
	a.mailbox.close()
	<-a.doneCh
}
