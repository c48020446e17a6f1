package poolkeeper

import "errors"

// ErrDuplicatePoolName is returned by AddPool when a pool with the same
// name has already been registered. No other state is changed.
var ErrDuplicatePoolName = errors.New("poolkeeper: duplicate pool name")

// ErrNoPool is returned by TakeNamed when the requested pool name has not
// been registered, and by TakeAny when no pool is registered at all.
var ErrNoPool = errors.New("poolkeeper: no such pool")

// ErrNoMembers is returned by Take operations when a pool (or, for
// TakeAny, every pool) currently has no free worker and cannot grow to
// satisfy the request.
var ErrNoMembers = errors.New("poolkeeper: no members available")

// ErrCoordinatorStopped is returned by AddPool, AddPools, TakeNamed and
// TakeAny when they are called after Stop.
var ErrCoordinatorStopped = errors.New("poolkeeper: coordinator stopped")
