// Package coordinator implements the single serialized decision
// authority behind a pool keeper. Every exported method on Actor
// enqueues a message onto an internal mailbox and waits (for
// synchronous operations) or returns immediately (for async ones); the
// mailbox is drained by exactly one goroutine, so everything below this
// package's exported surface runs lock-free against its own state.
package coordinator

import "time"

// Status is the internal mirror of poolkeeper.Status. It is redeclared
// here, rather than importing pkg/poolkeeper, because pkg/poolkeeper
// itself imports this package to implement its public Coordinator
// facade.
type Status int

const (
	StatusOK Status = iota
	StatusFail
)

// ExitReason is the internal mirror of poolkeeper.ExitReason.
type ExitReason string

// Normal is the exit reason that yields StatusOK semantics for a
// terminated consumer's held workers.
const Normal ExitReason = "normal"

// PoolConfig is the internal, already-defaulted mirror of
// poolkeeper.PoolConfig: durations are resolved time.Duration instead of
// TimeSpec, and AddMemberRetry has already had its default applied by
// the caller.
type PoolConfig struct {
	Name           string
	MaxCount       int
	InitCount      int
	Descriptor     interface{}
	AddMemberRetry int
	CullInterval   time.Duration
	MaxAge         time.Duration
}

// free is the sentinel holder value for a memberEntry that is not
// currently checked out. Representing it as a distinguished empty
// struct, rather than a nil interface, means a consumer identity of nil
// can still be used without colliding with "free".
type freeSentinel struct{}

var free = freeSentinel{}

// memberEntry is one record per live worker.
type memberEntry struct {
	poolName  string
	holder    interface{} // `free` sentinel, or a ConsumerID
	sinceTime time.Time   // last transition into the current state
}

// consumerEntry is one record per consumer currently holding at least
// one worker. held is modeled as a set, via map, since a handle cannot
// be held twice by the same consumer.
type consumerEntry struct {
	held map[interface{}]struct{}
}

// poolRecord is one pool's bookkeeping plus its free-list discipline:
// popFree and pushFree treat free_pids as a LIFO stack. Culling still
// picks the *oldest* free worker regardless of that order, by
// memberEntry.sinceTime rather than list position.
type poolRecord struct {
	name           string
	maxCount       int
	initCount      int
	descriptor     interface{}
	addMemberRetry int
	cullInterval   time.Duration
	maxAge         time.Duration

	freePIDs   []interface{}
	inUseCount int
	freeCount  int
}

func (p *poolRecord) capacity() int  { return p.maxCount }
func (p *poolRecord) created() int   { return p.inUseCount + p.freeCount }
func (p *poolRecord) available() int { return p.maxCount - p.inUseCount }

// pushFree appends handle to the free list (LIFO push).
func (p *poolRecord) pushFree(handle interface{}) {
	p.freePIDs = append(p.freePIDs, handle)
	p.freeCount++
}

// popFree removes and returns the most recently freed handle, or
// (nil, false) if the pool has no free workers.
func (p *poolRecord) popFree() (interface{}, bool) {
	if len(p.freePIDs) == 0 {
		return nil, false
	}
	last := len(p.freePIDs) - 1
	handle := p.freePIDs[last]
	p.freePIDs = p.freePIDs[:last]
	p.freeCount--
	return handle, true
}

// removeFree removes handle from the free list regardless of position,
// used by removePID when culling a specific free worker.
func (p *poolRecord) removeFree(handle interface{}) bool {
	for i, h := range p.freePIDs {
		if h == handle {
			p.freePIDs = append(p.freePIDs[:i], p.freePIDs[i+1:]...)
			p.freeCount--
			return true
		}
	}
	return false
}

// PoolStat is the read-only snapshot a status report renders as one
// table row: Id | Capacity | Created | CheckedOut | Free | Available.
type PoolStat struct {
	Name       string
	Capacity   int
	Created    int
	CheckedOut int
	Free       int
	Available  int
}
