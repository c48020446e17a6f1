// Package poolkeeper provides a generic worker-process pool manager.
//
// A poolkeeper Coordinator owns one or more named pools of expensive,
// reusable worker resources (database connections, network sessions,
// external-process handles, etc.), hands them out on request under
// exclusive ownership, reclaims them when the borrowing consumer releases
// them or dies, and grows/shrinks each pool according to demand and age.
//
// # Overview
//
// All pool-state transitions are serialized through a single Coordinator
// goroutine. Callers never touch pool state directly; they enqueue
// requests (TakeNamed, Return, AddPool, ...) on the Coordinator's FIFO
// mailbox and the Coordinator's loop processes them one at a time. This gives linearizable pool-state updates
// without any lock inside the Coordinator.
//
// # Usage
//
//	factory := inmemfactory.New()
//	coord := poolkeeper.New(factory, poolkeeper.WithLogger(logger))
//
//	err := coord.AddPool(ctx, poolkeeper.PoolConfig{
//		Name:      "db",
//		MaxCount:  10,
//		InitCount: 2,
//		Descriptor: "postgres://...",
//	})
//
//	handle, err := coord.TakeNamed(ctx, "db", consumerID)
//	// ... use handle ...
//	coord.Return(handle, poolkeeper.StatusOK, consumerID)
//
// # Worker and consumer liveness
//
// Workers and consumers are not polled. Instead the caller notifies the
// Coordinator explicitly when either terminates, via WorkerExited and
// ConsumerExited. This mirrors the supervision-tree style of an Erlang
// pool manager: a crashed consumer's workers are deterministically
// reclaimed, and a crashed worker is deterministically replaced.
package poolkeeper
