package coordinator

import (
	"time"

	"golang.org/x/sync/errgroup"
)

// cullTick is delivered into the mailbox when a pool's cull timer fires.
type cullTick struct {
	poolName string
}

// cullScheduler owns the per-pool timers that deliver cullTick events
// back into the Actor's mailbox. Timers are only ever created, reset or
// stopped while the Actor's single run-loop goroutine is handling a
// message (stopAll fans its Stop calls out to helper goroutines and
// waits for them before returning); the timer callback itself only
// touches the mailbox, which is safe for concurrent use by design.
type cullScheduler struct {
	mailbox *mailbox
	timers  map[string]*time.Timer
}

func newCullScheduler(mb *mailbox) *cullScheduler {
	return &cullScheduler{
		mailbox: mb,
		timers:  make(map[string]*time.Timer),
	}
}

// schedule arms (or re-arms) poolName's cull timer to fire after d. A
// zero d disables culling for that pool.
func (c *cullScheduler) schedule(poolName string, d time.Duration) {
	if existing, ok := c.timers[poolName]; ok {
		existing.Stop()
		delete(c.timers, poolName)
	}
	if d <= 0 {
		return
	}
	name := poolName
	c.timers[poolName] = time.AfterFunc(d, func() {
		c.mailbox.send(cullTick{poolName: name})
	})
}

// stopAll cancels every scheduled timer, called during Coordinator
// shutdown so no cullTick arrives after the mailbox is closed. Timers
// are stopped concurrently via errgroup since a Coordinator managing
// many pools may be holding just as many live timers.
func (c *cullScheduler) stopAll() {
	var g errgroup.Group
	for name, t := range c.timers {
		t := t
		g.Go(func() error {
			t.Stop()
			return nil
		})
		delete(c.timers, name)
	}
	_ = g.Wait()
}
