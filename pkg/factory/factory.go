// Package factory declares the interface the Coordinator uses to spawn
// and terminate workers. Factory implementations are external
// collaborators: the Coordinator never inspects a worker's internals,
// it only asks the factory to create one and, later, to destroy it.
package factory

import "context"

// WorkerFactory spawns and terminates workers for a single pool's
// descriptor. Implementations may back Spawn with any supervision
// mechanism (a goroutine, an external process, a pooled connection to a
// remote service) as long as:
//   - Spawn either returns a usable handle that will eventually be
//     reported to the Coordinator as exited (via a termination
//     notification channel the implementation owns), or fails fast;
//   - Terminate is eventually effective, even if it returns before the
//     worker has fully shut down.
type WorkerFactory interface {
	// Spawn creates a new worker for the given pool using descriptor
	// (the pool's opaque factory descriptor, i.e. PoolConfig.Descriptor).
	// It returns the new worker's handle, or an error if the worker
	// could not be created.
	Spawn(ctx context.Context, poolName string, descriptor interface{}) (interface{}, error)

	// Terminate asks the factory to destroy the worker identified by
	// handle. It does not need to block until termination completes.
	Terminate(ctx context.Context, poolName string, handle interface{}) error
}
