package mailstatus

import (
	"context"
	"sync"
)

// Gate is a single-use latch. Wait blocks until Open has been called once;
// after that it never blocks again.
type Gate struct {
	once sync.Once
	ch   chan struct{}
}

func NewGate() *Gate {
	return &Gate{ch: make(chan struct{})}
}

// Open releases all current and future waiters. Calling it again is a no-op.
func (g *Gate) Open() {
	g.once.Do(func() { close(g.ch) })
}

// Wait returns nil once the gate is open, or ctx.Err() if ctx ends first.
func (g *Gate) Wait(ctx context.Context) error {
	select {
	case <-g.ch:
		return nil
	default:
	}
	select {
	case <-g.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Gate) IsOpen() bool {
	select {
	case <-g.ch:
		return true
	default:
		return false
	}
}
