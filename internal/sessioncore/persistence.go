package sessioncore

import (
	"context"
	"sync"
	"time"
)

// persistenceChain serializes writes to a single document onto a
// single background goroutine. Adapted from the teacher's
// pkg/session/writer.go asyncWriter: instead of flushing every
// batched operation, it keeps only the most recently enqueued
// snapshot function per drain cycle — "a bounded queue of pending
// writes to one document, drained sequentially so only the latest
// coalesced state is ever visible" (spec.md §9). Coalescing is only
// correct when every enqueued op targets the same document, so Core
// keeps one persistenceChain per document kind (session, chat)
// instead of sharing one queue across them.
type persistenceChain struct {
	ch   chan func(context.Context) error
	done chan struct{}

	mu      sync.Mutex
	lastErr error
}

func newPersistenceChain() *persistenceChain {
	c := &persistenceChain{
		ch:   make(chan func(context.Context) error, 64),
		done: make(chan struct{}),
	}
	go c.run()
	return c
}

func (c *persistenceChain) run() {
	defer close(c.done)
	for {
		op, ok := <-c.ch
		if !ok {
			return
		}
		latest := op
		drain := true
		for drain {
			select {
			case op2, ok2 := <-c.ch:
				if !ok2 {
					c.exec(latest)
					return
				}
				latest = op2
			default:
				drain = false
			}
		}
		c.exec(latest)
	}
}

func (c *persistenceChain) exec(op func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := op(ctx)
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}

// Enqueue schedules a write. Returns false if the chain is already
// closed.
func (c *persistenceChain) Enqueue(op func(context.Context) error) (ok bool) {
	defer func() {
		// Sending on the closed channel after Close panics; report it
		// as a rejected enqueue instead.
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case c.ch <- op:
		return true
	default:
		// Buffer full: block until the writer frees a slot — this keeps
		// the chain ordered rather than silently losing a mutation.
		c.ch <- op
		return true
	}
}

// LastErr returns the error from the most recently executed write, if
// any. Persistence errors never propagate synchronously to the
// caller that triggered the mutation; they are kept here only and are
// not passed to a Logger.
func (c *persistenceChain) LastErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Close drains pending writes (waiting for the in-flight one, if any,
// to finish) and stops the background goroutine.
func (c *persistenceChain) Close() {
	close(c.ch)
	<-c.done
}
