package coordinator

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/arvil-systems/poolkeeper/pkg/factory"
	"github.com/arvil-systems/poolkeeper/pkg/metrics"
)

// errMaxCountReached is grow's internal capacity signal. Callers of grow
// convert it into ErrNoMembers or silently ignore it depending on
// context (take vs. fail-return repopulation) rather than surfacing it
// raw.
var errMaxCountReached = errors.New("coordinator: max_count reached")

// errBadPoolName is grow's internal "pool not found" signal.
var errBadPoolName = errors.New("coordinator: bad pool name")

// ErrDuplicatePoolName, ErrNoPool, ErrNoMembers and ErrCoordinatorStopped
// are the errors actually surfaced to callers.
var (
	ErrDuplicatePoolName = errors.New("coordinator: duplicate pool name")
	ErrNoPool            = errors.New("coordinator: no such pool")
	ErrNoMembers         = errors.New("coordinator: no members available")
	ErrCoordinatorStopped = errors.New("coordinator: stopped")
)

// state is the pool registry, member index, consumer index and pool
// selector fused into one struct, because all four are owned
// exclusively by the Coordinator's single goroutine and mutated
// together on every request.
type state struct {
	factory factory.WorkerFactory
	sink    metrics.Sink
	logger  *zap.Logger
	rng     *rand.Rand

	pools     map[string]*poolRecord
	order     []string // PoolSelector: append-only, indexes into pools
	members   map[interface{}]*memberEntry
	consumers map[interface{}]*consumerEntry
}

func newState(f factory.WorkerFactory, sink metrics.Sink, logger *zap.Logger) *state {
	return &state{
		factory:   f,
		sink:      sink,
		logger:    logger,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		pools:     make(map[string]*poolRecord),
		members:   make(map[interface{}]*memberEntry),
		consumers: make(map[interface{}]*consumerEntry),
	}
}

func (s *state) notify(name string, value float64, kind metrics.Type) {
	if s.sink == nil {
		return
	}
	s.sink.Notify(name, value, kind)
}

// addPool registers a new named pool and spawns its initial members.
func (s *state) addPool(cfg PoolConfig) error {
	if _, exists := s.pools[cfg.Name]; exists {
		return ErrDuplicatePoolName
	}

	s.pools[cfg.Name] = &poolRecord{
		name:           cfg.Name,
		maxCount:       cfg.MaxCount,
		initCount:      cfg.InitCount,
		descriptor:     cfg.Descriptor,
		addMemberRetry: cfg.AddMemberRetry,
		cullInterval:   cfg.CullInterval,
		maxAge:         cfg.MaxAge,
	}
	s.order = append(s.order, cfg.Name)

	_, err := s.grow(cfg.Name, cfg.InitCount)
	if err != nil && !errors.Is(err, errMaxCountReached) {
		return err
	}
	return nil
}

// grow spawns up to n new members for poolName. It returns the number
// of workers actually added, and errBadPoolName / errMaxCountReached
// for its two internal failure signals.
func (s *state) grow(poolName string, n int) (int, error) {
	pool, ok := s.pools[poolName]
	if !ok {
		return 0, errBadPoolName
	}
	if n <= 0 {
		return 0, nil
	}
	if pool.created()+n > pool.maxCount {
		return 0, errMaxCountReached
	}

	added := 0
	for i := 0; i < n; i++ {
		handle, err := s.factory.Spawn(context.Background(), pool.name, pool.descriptor)
		if err != nil {
			continue
		}
		s.members[handle] = &memberEntry{
			poolName:  pool.name,
			holder:    free,
			sinceTime: time.Now(),
		}
		pool.pushFree(handle)
		added++
	}

	if added < n {
		if s.logger != nil {
			s.logger.Warn("pool grow spawned fewer workers than requested",
				zap.String("pool", pool.name), zap.Int("requested", n), zap.Int("added", added))
		}
		s.notify("add_pids_failed", 1, metrics.History)
	}

	s.notify("pooler."+pool.name+".in_use_count", float64(pool.inUseCount), metrics.Histogram)
	s.notify("pooler."+pool.name+".free_count", float64(pool.freeCount), metrics.Histogram)

	return added, nil
}

// takeNamed checks out a free member of poolName for consumer, growing
// the pool on demand when it has none free.
func (s *state) takeNamed(poolName string, consumer interface{}) (interface{}, error) {
	pool, ok := s.pools[poolName]
	if !ok {
		return nil, ErrNoPool
	}

	s.notify("pooler."+pool.name+".take_rate", 1, metrics.Meter)

	retriesLeft := pool.addMemberRetry
	for {
		if handle, ok := pool.popFree(); ok {
			s.checkout(pool, handle, consumer)
			return handle, nil
		}

		if pool.inUseCount == pool.maxCount {
			s.notify("pooler.error_no_members_count", 1, metrics.Counter)
			s.notify("error_no_members", 1, metrics.History)
			return nil, ErrNoMembers
		}

		if retriesLeft <= 0 {
			s.notify("pooler.error_no_members_count", 1, metrics.Counter)
			return nil, ErrNoMembers
		}

		_, err := s.grow(poolName, 1)
		if err != nil {
			// grow can only fail here with errMaxCountReached; the
			// pool is guaranteed to exist since we just looked it up.
			s.notify("pooler.error_no_members_count", 1, metrics.Counter)
			s.notify("error_no_members", 1, metrics.History)
			return nil, ErrNoMembers
		}
		retriesLeft--
		pool = s.pools[poolName]
	}
}

// checkout transitions handle from free to checked-out-by-consumer,
// updating both the member entry and the consumer entry.
func (s *state) checkout(pool *poolRecord, handle interface{}, consumer interface{}) {
	member := s.members[handle]
	member.holder = consumer
	member.sinceTime = time.Now()

	entry, ok := s.consumers[consumer]
	if !ok {
		entry = &consumerEntry{held: make(map[interface{}]struct{})}
		s.consumers[consumer] = entry
	}
	entry.held[handle] = struct{}{}

	pool.inUseCount++

	s.notify("pooler."+pool.name+".in_use_count", float64(pool.inUseCount), metrics.Histogram)
	s.notify("pooler."+pool.name+".free_count", float64(pool.freeCount), metrics.Histogram)
}

// takeAny tries every pool-selection strategy in turn (random, then
// max-free, then max-available) and checks out from the first pool
// that has a member to give.
func (s *state) takeAny(consumer interface{}) (interface{}, error) {
	if len(s.order) == 0 {
		return nil, ErrNoPool
	}

	tried := make(map[string]bool, 3)
	strategies := []func() (string, bool){
		s.randomPoolName,
		s.maxFreePoolName,
		s.maxAvailPoolName,
	}

	for _, pick := range strategies {
		name, ok := pick()
		if !ok || tried[name] {
			continue
		}
		tried[name] = true

		handle, err := s.takeNamed(name, consumer)
		if err == nil {
			return handle, nil
		}
		if !errors.Is(err, ErrNoMembers) {
			return nil, err
		}
	}
	return nil, ErrNoMembers
}

func (s *state) randomPoolName() (string, bool) {
	if len(s.order) == 0 {
		return "", false
	}
	return s.order[s.rng.Intn(len(s.order))], true
}

// maxFreePoolName picks the pool with the strictly greatest free_count.
// All-zero counts across every pool is treated as no match.
func (s *state) maxFreePoolName() (string, bool) {
	best := ""
	bestFree := 0
	for _, name := range s.order {
		pool := s.pools[name]
		if pool.freeCount > bestFree {
			bestFree = pool.freeCount
			best = name
		}
	}
	if best == "" {
		return "", false
	}
	return best, true
}

// maxAvailPoolName picks the pool with the strictly greatest available
// headroom (max_count minus in_use_count).
// All-zero headroom across every pool is treated as no match.
func (s *state) maxAvailPoolName() (string, bool) {
	best := ""
	bestAvail := 0
	for _, name := range s.order {
		pool := s.pools[name]
		if avail := pool.available(); avail > bestAvail {
			bestAvail = avail
			best = name
		}
	}
	if best == "" {
		return "", false
	}
	return best, true
}

// returnWorker routes a returned handle to the ok or fail path
// depending on the status the caller reports.
func (s *state) returnWorker(handle interface{}, status Status, consumer interface{}) {
	switch status {
	case StatusOK:
		s.returnOK(handle, consumer)
	case StatusFail:
		s.returnFail(handle)
	}
}

func (s *state) returnOK(handle interface{}, consumer interface{}) {
	member, ok := s.members[handle]
	if !ok {
		return
	}

	pool := s.pools[member.poolName]

	member.holder = free
	member.sinceTime = time.Now()
	pool.pushFree(handle)
	pool.inUseCount--

	s.dropFromConsumer(consumer, handle)

	s.notify("pooler."+pool.name+".in_use_count", float64(pool.inUseCount), metrics.Histogram)
	s.notify("pooler."+pool.name+".free_count", float64(pool.freeCount), metrics.Histogram)
}

func (s *state) returnFail(handle interface{}) {
	if _, ok := s.members[handle]; !ok {
		return
	}
	poolName := s.members[handle].poolName

	s.removePID(handle)

	_, err := s.grow(poolName, 1)
	if err != nil && !errors.Is(err, errMaxCountReached) {
		if s.logger != nil {
			s.logger.Warn("unexpected error repopulating pool after failed return",
				zap.String("pool", poolName), zap.Error(err))
		}
		s.notify("bad_return_from_add_pid", 1, metrics.History)
	}
}

// dropFromConsumer removes handle from consumer's held set, deleting the
// ConsumerEntry (and implicitly unlinking from the consumer) once empty.
func (s *state) dropFromConsumer(consumer interface{}, handle interface{}) {
	entry, ok := s.consumers[consumer]
	if !ok {
		return
	}
	delete(entry.held, handle)
	if len(entry.held) == 0 {
		delete(s.consumers, consumer)
	}
}

// removePID kills and forgets handle, wherever it currently sits
// (free, checked out, or unknown).
func (s *state) removePID(handle interface{}) {
	member, ok := s.members[handle]
	if !ok {
		s.notify("unknown_pid", 1, metrics.History)
		if s.logger != nil {
			s.logger.Warn("removePID: unknown worker handle", zap.Any("handle", handle))
		}
		return
	}

	pool := s.pools[member.poolName]

	if member.holder == free {
		pool.removeFree(handle)
		s.notify("pooler.killed_free_count", 1, metrics.Counter)
	} else {
		pool.inUseCount--
		s.dropFromConsumer(member.holder, handle)
		s.notify("pooler.killed_in_use_count", 1, metrics.Counter)
	}

	delete(s.members, handle)

	if err := s.factory.Terminate(context.Background(), pool.name, handle); err != nil && s.logger != nil {
		s.logger.Warn("worker terminate failed", zap.String("pool", pool.name), zap.Error(err))
	}
}

// cull removes free members older than maxAge, down to the init_count
// floor. It returns the next cull interval so the caller (the
// cullScheduler) can reschedule itself, and a bool reporting whether
// the pool still exists and still has culling enabled.
func (s *state) cull(poolName string) (time.Duration, bool) {
	pool, ok := s.pools[poolName]
	if !ok || pool.cullInterval == 0 {
		return 0, false
	}

	maxCull := pool.freeCount - (pool.initCount - pool.inUseCount)
	if maxCull > 0 {
		now := time.Now()
		candidates := make([]interface{}, 0, len(pool.freePIDs))
		for _, handle := range pool.freePIDs {
			member := s.members[handle]
			if now.Sub(member.sinceTime) > pool.maxAge {
				candidates = append(candidates, handle)
			}
		}
		sort.Slice(candidates, func(i, j int) bool {
			return s.members[candidates[i]].sinceTime.Before(s.members[candidates[j]].sinceTime)
		})
		if len(candidates) > maxCull {
			candidates = candidates[:maxCull]
		}
		for _, handle := range candidates {
			s.removePID(handle)
		}
	}

	return pool.cullInterval, true
}

// workerExited treats a worker's death as a return-with-fail of its
// handle, so the pool gets a chance to replace it.
func (s *state) workerExited(handle interface{}) {
	if _, ok := s.members[handle]; !ok {
		return
	}
	s.returnFail(handle)
}

// consumerExited returns every handle a dead consumer held. Order
// follows Go's map iteration, which is unspecified; no caller depends
// on a particular order across handles.
func (s *state) consumerExited(consumer interface{}, reason ExitReason) {
	entry, ok := s.consumers[consumer]
	if !ok {
		return
	}

	status := StatusFail
	if reason == Normal {
		status = StatusOK
	}

	handles := make([]interface{}, 0, len(entry.held))
	for handle := range entry.held {
		handles = append(handles, handle)
	}
	for _, handle := range handles {
		s.returnWorker(handle, status, consumer)
	}
}

func (s *state) stats() []PoolStat {
	out := make([]PoolStat, 0, len(s.order))
	for _, name := range s.order {
		pool := s.pools[name]
		out = append(out, PoolStat{
			Name:       pool.name,
			Capacity:   pool.capacity(),
			Created:    pool.created(),
			CheckedOut: pool.inUseCount,
			Free:       pool.freeCount,
			Available:  pool.available(),
		})
	}
	return out
}
